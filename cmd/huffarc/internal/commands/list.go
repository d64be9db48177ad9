package commands

import (
	"fmt"
	"os"
	"strconv"

	"github.com/olekukonko/tablewriter"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"
)

const (
	formatFlag = "format"

	formatTable = "table"
	formatYAML  = "yaml"
)

type listItem struct {
	Path             string `yaml:"path"`
	OriginalByteSize uint64 `yaml:"original_size"`
	TreeBitSize      uint64 `yaml:"tree_bits"`
	DataBitSize      uint64 `yaml:"data_bits"`
	FileByteOffset   uint64 `yaml:"offset"`
}

func newListCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "list <archive>",
		Short: "List archive entries",
		Args:  cobra.ExactArgs(1),
		RunE:  runList,
	}

	cmd.Flags().String(formatFlag, formatTable, "Output format: table or yaml")

	return cmd
}

func runList(cmd *cobra.Command, args []string) (err error) {
	format, _ := cmd.Flags().GetString(formatFlag)
	if format != formatTable && format != formatYAML {
		return fmt.Errorf("unsupported output format %q", format)
	}

	e, err := setup(cmd)
	if err != nil {
		return err
	}
	defer func() {
		if cErr := e.close(); err == nil {
			err = cErr
		}
	}()

	f, err := os.Open(args[0])
	if err != nil {
		return fmt.Errorf("open archive: %w", err)
	}
	defer f.Close()

	blocks, err := loadBlocks(e, args[0], f)
	if err != nil {
		return err
	}

	items := make([]listItem, len(blocks))
	for i, b := range blocks {
		items[i] = listItem{
			Path:             b.Path,
			OriginalByteSize: b.OriginalByteSize,
			TreeBitSize:      b.TreeBitSize,
			DataBitSize:      b.DataBitSize,
			FileByteOffset:   b.FileByteOffset,
		}
	}

	if format == formatYAML {
		data, err := yaml.Marshal(items)
		if err != nil {
			return fmt.Errorf("encode entries: %w", err)
		}

		cmd.Print(string(data))

		return nil
	}

	out := tablewriter.NewWriter(cmd.OutOrStdout())
	out.SetHeader([]string{"Path", "Size", "Tree bits", "Data bits", "Offset", "Ratio"})
	out.SetAutoWrapText(false)

	for _, it := range items {
		ratio := "-"
		if it.OriginalByteSize > 0 {
			ratio = strconv.FormatFloat(float64(it.TreeBitSize+it.DataBitSize)/float64(8*it.OriginalByteSize), 'f', 3, 64)
		}

		out.Append([]string{
			it.Path,
			strconv.FormatUint(it.OriginalByteSize, 10),
			strconv.FormatUint(it.TreeBitSize, 10),
			strconv.FormatUint(it.DataBitSize, 10),
			strconv.FormatUint(it.FileByteOffset, 10),
			ratio,
		})
	}

	out.Render()

	return nil
}
