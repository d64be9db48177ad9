package commands

import (
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/nspcc-dev/huffarc/cmd/huffarc/config"
	"github.com/nspcc-dev/huffarc/pkg/archive"
	"github.com/nspcc-dev/huffarc/pkg/metrics"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

const (
	noIndexFlag    = "no-index"
	indexCodecFlag = "index-codec"
)

func newPackCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "pack <archive> <path>...",
		Short: "Pack files and directories into the archive",
		Long: `Pack files and directories into the archive. Directories are walked
recursively, entries are named relative to the parent of each input path.
The index is written next to the archive unless disabled.`,
		Args: cobra.MinimumNArgs(2),
		RunE: runPack,
	}

	flags := cmd.Flags()
	flags.BoolP(multithreadedFlag, "m", true, "Encode files concurrently")
	flags.Int(bufferSizeFlag, config.PackBufferSizeDefault, "Length of bit buffers in bytes")
	flags.Bool(noIndexFlag, false, "Do not write the archive index")
	flags.String(indexCodecFlag, config.PackIndexCodecDefault, "Index compression: none, zstd or lz4")
	flags.Bool(noProgressFlag, false, "Do not show progress bar")

	return cmd
}

func runPack(cmd *cobra.Command, args []string) (err error) {
	e, err := setup(cmd,
		flagBinding{section: "pack", key: "multithreaded", flag: multithreadedFlag},
		flagBinding{section: "pack", key: "buffer_size", flag: bufferSizeFlag},
		flagBinding{section: "pack", key: "index_codec", flag: indexCodecFlag},
	)
	if err != nil {
		return err
	}
	defer func() {
		if cErr := e.close(); err == nil {
			err = cErr
		}
	}()

	withIndex, err := config.PackIndex(e.cfg)
	if err != nil {
		return err
	}
	if noIndex, _ := cmd.Flags().GetBool(noIndexFlag); noIndex {
		withIndex = false
	}

	codec, err := archive.ParseIndexCodec(config.PackIndexCodec(e.cfg))
	if err != nil {
		return err
	}

	entries, total, err := collectEntries(e.log, args[1:])
	if err != nil {
		return err
	}

	pool, workers, err := e.pool(metrics.OperationPack, len(entries))
	if err != nil {
		return err
	}
	defer pool.Release()

	progress, finish := newProgress(cmd, total)
	defer finish()

	opts, err := e.archiveOptions(workers, progress)
	if err != nil {
		return err
	}

	out := args[0]

	var index []archive.IndexEntry
	err = writeFile(out, func(w io.Writer) error {
		var pErr error
		index, pErr = archive.NewPacker(pool, opts...).Pack(cmd.Context(), w, entries)
		return pErr
	})
	if err != nil {
		return fmt.Errorf("pack %s: %w", out, err)
	}

	if !withIndex {
		if err = os.Remove(out + indexSuffix); err != nil && !os.IsNotExist(err) {
			return fmt.Errorf("remove stale index: %w", err)
		}
		return nil
	}

	err = writeFile(out+indexSuffix, func(w io.Writer) error {
		return archive.WriteIndex(w, archive.Index{Version: archive.IndexVersion, Entries: index}, codec)
	})
	if err != nil {
		return fmt.Errorf("write index: %w", err)
	}

	return nil
}

// collectEntries walks input paths and returns regular files found. Entry
// paths are relative to the parent directory of the corresponding input.
func collectEntries(l *zap.Logger, inputs []string) ([]archive.Entry, uint64, error) {
	var (
		res   []archive.Entry
		total uint64
	)

	for _, in := range inputs {
		in = filepath.Clean(in)
		base := filepath.Dir(in)

		err := filepath.WalkDir(in, func(path string, d fs.DirEntry, err error) error {
			if err != nil {
				return err
			}

			if d.IsDir() {
				return nil
			}

			if !d.Type().IsRegular() {
				l.Warn("skipping non-regular file", zap.String("path", path))
				return nil
			}

			info, err := d.Info()
			if err != nil {
				return err
			}

			rel, err := filepath.Rel(base, path)
			if err != nil {
				return err
			}

			res = append(res, archive.Entry{
				Path: filepath.ToSlash(rel),
				Open: func() (io.ReadCloser, error) { return os.Open(path) },
			})
			total += uint64(info.Size())

			return nil
		})
		if err != nil {
			return nil, 0, fmt.Errorf("walk %s: %w", in, err)
		}
	}

	return res, total, nil
}
