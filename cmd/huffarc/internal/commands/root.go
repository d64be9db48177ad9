package commands

import (
	"os"

	"github.com/nspcc-dev/huffarc/misc"
	"github.com/spf13/cobra"
)

const (
	configFlag   = "config"
	logLevelFlag = "log-level"
	versionFlag  = "version"
)

// NewRoot returns root huffarc command with all subcommands attached.
func NewRoot() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "huffarc",
		Short: "Huffman archiver",
		Long: `Huffman archiver packs files into a container of independently
Huffman-coded entries and extracts them back.`,
		RunE:          entryPoint,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	// use stdout as default output for cmd.Print()
	cmd.SetOut(os.Stdout)

	cmd.Flags().Bool(versionFlag, false, "Application version")

	pf := cmd.PersistentFlags()
	pf.StringP(configFlag, "c", "", "Path to the configuration file")
	pf.String(logLevelFlag, "", "Logging level (overrides logger.level)")

	cmd.AddCommand(
		newPackCommand(),
		newUnpackCommand(),
		newListCommand(),
		newVerifyCommand(),
	)

	return cmd
}

func entryPoint(cmd *cobra.Command, _ []string) error {
	printVersion, _ := cmd.Flags().GetBool(versionFlag)
	if printVersion {
		cmd.Print(misc.BuildInfo("Huffman archiver"))

		return nil
	}

	return cmd.Usage()
}
