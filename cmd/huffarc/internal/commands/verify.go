package commands

import (
	"bufio"
	"fmt"
	"os"

	"github.com/nspcc-dev/huffarc/pkg/archive"
	"github.com/nspcc-dev/huffarc/pkg/metrics"
	"github.com/spf13/cobra"
)

func newVerifyCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "verify <archive>",
		Short: "Check archive contents against its index",
		Long: `Check archive contents against its index. Entry headers are compared
with the index, then every entry is decoded and its BLAKE3 digest is
compared with the recorded one.`,
		Args: cobra.ExactArgs(1),
		RunE: runVerify,
	}

	cmd.Flags().BoolP(multithreadedFlag, "m", true, "Decode files concurrently")

	return cmd
}

func runVerify(cmd *cobra.Command, args []string) (err error) {
	e, err := setup(cmd,
		flagBinding{section: "pack", key: "multithreaded", flag: multithreadedFlag},
	)
	if err != nil {
		return err
	}
	defer func() {
		if cErr := e.close(); err == nil {
			err = cErr
		}
	}()

	idx, err := readIndexFile(args[0] + indexSuffix)
	if err != nil {
		return err
	}

	f, err := os.Open(args[0])
	if err != nil {
		return fmt.Errorf("open archive: %w", err)
	}
	defer f.Close()

	blocks, err := archive.Scan(bufio.NewReader(f))
	if err != nil {
		return fmt.Errorf("scan archive: %w", err)
	}

	if len(blocks) != len(idx.Entries) {
		return fmt.Errorf("%w: archive has %d entries, index has %d", archive.ErrCorrupt, len(blocks), len(idx.Entries))
	}

	for i := range blocks {
		if blocks[i] != idx.Entries[i].Block() {
			return fmt.Errorf("%w: header #%d (%s) mismatches the index", archive.ErrCorrupt, i, blocks[i].Path)
		}
	}

	pool, workers, err := e.pool(metrics.OperationUnpack, len(blocks))
	if err != nil {
		return err
	}
	defer pool.Release()

	opts, err := e.archiveOptions(workers, nil)
	if err != nil {
		return err
	}

	if err = archive.NewUnpacker(pool, opts...).Verify(cmd.Context(), f, idx.Entries); err != nil {
		return fmt.Errorf("verify %s: %w", args[0], err)
	}

	cmd.Printf("%d files verified\n", len(blocks))

	return nil
}
