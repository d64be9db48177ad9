package commands

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/cheggaaa/pb"
	"github.com/nspcc-dev/huffarc/cmd/huffarc/config"
	"github.com/nspcc-dev/huffarc/misc"
	"github.com/nspcc-dev/huffarc/pkg/archive"
	"github.com/nspcc-dev/huffarc/pkg/bitio"
	"github.com/nspcc-dev/huffarc/pkg/metrics"
	"github.com/nspcc-dev/huffarc/pkg/util"
	"github.com/nspcc-dev/huffarc/pkg/util/logger"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/term"
)

const (
	multithreadedFlag = "multithreaded"
	bufferSizeFlag    = "buffer-size"
	noProgressFlag    = "no-progress"
)

// indexSuffix is appended to the archive path to get the index path.
const indexSuffix = ".idx"

// env groups components shared by all commands.
type env struct {
	cfg     *config.Config
	log     *zap.Logger
	metrics *metrics.ArchiverMetrics
}

// flagBinding is a config key overridden by a command line flag.
type flagBinding struct {
	section, key string
	flag         string
}

func setup(cmd *cobra.Command, bindings ...flagBinding) (*env, error) {
	var opts []config.Option
	if path, _ := cmd.Flags().GetString(configFlag); path != "" {
		opts = append(opts, config.WithConfigFile(path))
	}

	cfg, err := config.New(opts...)
	if err != nil {
		return nil, err
	}

	bindings = append(bindings, flagBinding{section: "logger", key: "level", flag: logLevelFlag})
	for _, b := range bindings {
		if err := cfg.Sub(b.section).BindFlag(b.key, cmd.Flags().Lookup(b.flag)); err != nil {
			return nil, fmt.Errorf("bind --%s flag: %w", b.flag, err)
		}
	}

	var prm logger.Prm

	if err := prm.SetLevelString(config.LoggerLevel(cfg)); err != nil {
		return nil, fmt.Errorf("invalid logger level: %w", err)
	}

	if err := prm.SetEncoding(config.LoggerEncoding(cfg)); err != nil {
		return nil, err
	}

	ts, set, err := config.LoggerTimestamp(cfg)
	if err != nil {
		return nil, err
	}
	if !set {
		ts = term.IsTerminal(int(os.Stdout.Fd()))
	}
	prm.SetTimestamp(ts)

	log, err := logger.NewLogger(&prm)
	if err != nil {
		return nil, err
	}

	return &env{
		cfg:     cfg,
		log:     log,
		metrics: metrics.NewArchiverMetrics(misc.Version),
	}, nil
}

// close exports collected metrics if configured and flushes the logger.
func (e *env) close() error {
	var err error

	if path := config.MetricsTextfile(e.cfg); path != "" {
		if err = e.metrics.WriteToTextfile(path); err != nil {
			err = fmt.Errorf("export metrics: %w", err)
		}
	}

	_ = e.log.Sync()

	return err
}

// pool returns worker pool for n files and its size.
func (e *env) pool(op string, n int) (util.WorkerPool, int, error) {
	parallel, err := config.PackMultithreaded(e.cfg)
	if err != nil {
		return nil, 0, err
	}

	workers, err := util.WorkerCount(parallel, n, util.HardwareConcurrency)
	if err != nil {
		return nil, 0, err
	}

	e.log.Info("running with workers", zap.String("operation", op), zap.Int("workers", workers))
	e.metrics.SetWorkers(op, workers)

	pool, err := util.NewWorkerPool(workers)
	if err != nil {
		return nil, 0, err
	}

	return pool, workers, nil
}

// archiveOptions returns options for Packer and Unpacker running on the pool
// of the given size.
func (e *env) archiveOptions(workers int, progress func(uint64)) ([]archive.Option, error) {
	size, err := config.PackBufferSize(e.cfg)
	if err != nil {
		return nil, err
	}

	return []archive.Option{
		archive.WithLogger(e.log),
		archive.WithMetrics(e.metrics),
		archive.WithBufferSize(size),
		archive.WithMaxPending(2 * workers),
		archive.WithProgress(progress),
	}, nil
}

// newProgress starts progress bar of total bytes on stderr. The bar is
// shown on terminals only.
func newProgress(cmd *cobra.Command, total uint64) (func(uint64), func()) {
	if off, _ := cmd.Flags().GetBool(noProgressFlag); off || !term.IsTerminal(int(os.Stderr.Fd())) {
		return nil, func() {}
	}

	p := pb.New64(int64(total))
	p.SetUnits(pb.U_BYTES)
	p.Output = cmd.ErrOrStderr()
	p.Start()

	return func(n uint64) { p.Add64(int64(n)) }, p.Finish
}

// loadBlocks returns entry headers of the archive from the index if it
// exists, otherwise the archive is scanned.
func loadBlocks(e *env, path string, f io.Reader) ([]bitio.Block, error) {
	idx, err := readIndexFile(path + indexSuffix)
	if err == nil {
		res := make([]bitio.Block, len(idx.Entries))
		for i := range idx.Entries {
			res[i] = idx.Entries[i].Block()
		}

		e.log.Debug("using archive index", zap.Int("files", len(res)))

		return res, nil
	}

	if !errors.Is(err, os.ErrNotExist) {
		return nil, err
	}

	blocks, err := archive.Scan(bufio.NewReader(f))
	if err != nil {
		return nil, fmt.Errorf("scan archive: %w", err)
	}

	return blocks, nil
}

func readIndexFile(path string) (archive.Index, error) {
	f, err := os.Open(path)
	if err != nil {
		return archive.Index{}, err
	}
	defer f.Close()

	idx, err := archive.ReadIndex(f)
	if err != nil {
		return idx, fmt.Errorf("read index %s: %w", path, err)
	}

	return idx, nil
}

// writeFile writes the file through a temporary one renamed on success.
func writeFile(path string, write func(io.Writer) error) error {
	tmp := path + ".tmp"

	f, err := os.OpenFile(tmp, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, 0o640)
	if err != nil {
		return fmt.Errorf("create file: %w", err)
	}

	err = write(f)
	if err == nil {
		err = f.Sync()
	}
	if cErr := f.Close(); err == nil && cErr != nil {
		err = fmt.Errorf("close file: %w", cErr)
	}

	if err == nil {
		err = os.Rename(tmp, path)
	}

	if err != nil {
		_ = os.Remove(tmp)
		return err
	}

	return nil
}

func totalSize(blocks []bitio.Block) uint64 {
	var res uint64
	for i := range blocks {
		res += blocks[i].OriginalByteSize
	}
	return res
}
