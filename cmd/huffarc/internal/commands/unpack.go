package commands

import (
	"fmt"
	"os"

	"github.com/nspcc-dev/huffarc/pkg/archive"
	"github.com/nspcc-dev/huffarc/pkg/metrics"
	"github.com/nspcc-dev/huffarc/pkg/util"
	"github.com/spf13/cobra"
)

func newUnpackCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "unpack <archive> <dir>",
		Short: "Extract all archive entries into the directory",
		Long: `Extract all archive entries into the directory. Entry headers are taken
from the index if it exists, otherwise the archive is scanned. Entries with
paths leaving the directory are refused.`,
		Args: cobra.ExactArgs(2),
		RunE: runUnpack,
	}

	flags := cmd.Flags()
	flags.BoolP(multithreadedFlag, "m", true, "Decode files concurrently")
	flags.Bool(noProgressFlag, false, "Do not show progress bar")

	return cmd
}

func runUnpack(cmd *cobra.Command, args []string) (err error) {
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

	f, err := os.Open(args[0])
	if err != nil {
		return fmt.Errorf("open archive: %w", err)
	}
	defer f.Close()

	blocks, err := loadBlocks(e, args[0], f)
	if err != nil {
		return err
	}

	if err = util.MkdirAllX(args[1], 0o750); err != nil {
		return fmt.Errorf("create destination: %w", err)
	}

	pool, workers, err := e.pool(metrics.OperationUnpack, len(blocks))
	if err != nil {
		return err
	}
	defer pool.Release()

	progress, finish := newProgress(cmd, totalSize(blocks))
	defer finish()

	opts, err := e.archiveOptions(workers, progress)
	if err != nil {
		return err
	}

	err = archive.NewUnpacker(pool, opts...).Unpack(cmd.Context(), f, blocks, archive.DirTarget(args[1]))
	if err != nil {
		return fmt.Errorf("unpack %s: %w", args[0], err)
	}

	return nil
}
