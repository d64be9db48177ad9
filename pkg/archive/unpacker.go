package archive

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/nspcc-dev/huffarc/pkg/bitio"
	"github.com/nspcc-dev/huffarc/pkg/metrics"
	"github.com/nspcc-dev/huffarc/pkg/util"
	"github.com/zeebo/blake3"
	"go.uber.org/zap"
)

// Target provides destination of the extracted entry.
type Target func(b bitio.Block) (io.WriteCloser, error)

// Discarder is implemented by destinations able to drop written contents.
// Unpacker calls Discard after Close if extraction failed.
type Discarder interface {
	Discard() error
}

// fileTarget is an extracted file removed on failure.
type fileTarget struct {
	*os.File
}

// Discard removes the file.
func (f fileTarget) Discard() error {
	return os.Remove(f.Name())
}

// DirTarget returns Target creating files under root. Entries with paths
// leaving root are rejected with ErrCorrupt. Files of entries failed to be
// extracted are removed.
func DirTarget(root string) Target {
	return func(b bitio.Block) (io.WriteCloser, error) {
		p := filepath.FromSlash(b.Path)
		if !filepath.IsLocal(p) {
			return nil, corruptf("entry path %q leaves the destination directory", b.Path)
		}

		p = filepath.Join(root, p)

		if err := util.MkdirAllX(filepath.Dir(p), 0o750); err != nil {
			return nil, fmt.Errorf("create directory: %w", err)
		}

		f, err := os.OpenFile(p, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, 0o640)
		if err != nil {
			return nil, fmt.Errorf("create file: %w", err)
		}

		return fileTarget{f}, nil
	}
}

// Unpacker decodes container entries in a worker pool.
type Unpacker struct {
	*cfg

	pool util.WorkerPool
}

// NewUnpacker returns Unpacker running decoding jobs in the pool. The pool
// is not released by the Unpacker.
func NewUnpacker(pool util.WorkerPool, opts ...Option) *Unpacker {
	c := defaultCfg()

	for i := range opts {
		opts[i](c)
	}

	c.log = c.log.With(zap.String("component", "Unpacker"))

	return &Unpacker{
		cfg:  c,
		pool: pool,
	}
}

// Unpack extracts the entries of src described by blocks into destinations
// given by target. Destinations are closed after extraction, failed ones
// implementing Discarder are discarded then. Blocks with repeated paths are
// rejected with ErrCorrupt before any extraction. All failures are joined
// into the returned error.
func (u *Unpacker) Unpack(ctx context.Context, src io.ReaderAt, blocks []bitio.Block, target Target) error {
	return u.run(ctx, blocks, func(b bitio.Block) error {
		w, err := target(b)
		if err != nil {
			return err
		}

		err = Extract(src, b, w)
		if cErr := w.Close(); err == nil && cErr != nil {
			err = fmt.Errorf("close destination: %w", cErr)
		}

		if d, ok := w.(Discarder); ok && err != nil {
			if dErr := d.Discard(); dErr != nil {
				u.log.Warn("failed to discard partially extracted file",
					zap.String("path", b.Path), zap.Error(dErr))
			}
		}

		return err
	})
}

// Verify decodes the entries of src listed in the index and compares
// contents digests with the recorded ones.
func (u *Unpacker) Verify(ctx context.Context, src io.ReaderAt, entries []IndexEntry) error {
	blocks := make([]bitio.Block, len(entries))
	digests := make(map[string][32]byte, len(entries))

	for i := range entries {
		blocks[i] = entries[i].Block()
		digests[entries[i].Path] = entries[i].Digest
	}

	return u.run(ctx, blocks, func(b bitio.Block) error {
		h := blake3.New()

		if err := Extract(src, b, h); err != nil {
			return err
		}

		exp := digests[b.Path]
		if sum := h.Sum(nil); !bytes.Equal(sum, exp[:]) {
			return corruptf("digest mismatch of %s", b.Path)
		}

		return nil
	})
}

func (u *Unpacker) run(ctx context.Context, blocks []bitio.Block, job func(bitio.Block) error) error {
	seen := make(map[string]struct{}, len(blocks))
	for i := range blocks {
		if _, ok := seen[blocks[i].Path]; ok {
			return corruptf("duplicate entry path %s", blocks[i].Path)
		}
		seen[blocks[i].Path] = struct{}{}
	}

	var (
		wg   sync.WaitGroup
		mtx  sync.Mutex
		errs []error
	)

	failed := func() bool {
		mtx.Lock()
		defer mtx.Unlock()
		return len(errs) > 0
	}

	for i := range blocks {
		if err := ctx.Err(); err != nil {
			mtx.Lock()
			errs = append(errs, err)
			mtx.Unlock()
			break
		}

		if failed() {
			break
		}

		b := blocks[i]

		wg.Add(1)
		err := u.pool.Submit(func() {
			defer wg.Done()

			start := time.Now()
			err := job(b)

			mtx.Lock()
			defer mtx.Unlock()

			if err != nil {
				u.metrics.IncFailures(metrics.OperationUnpack)
				errs = append(errs, fmt.Errorf("%s: %w", b.Path, err))
				return
			}

			u.metrics.AddFile(metrics.OperationUnpack, b.OriginalByteSize, b.PayloadByteSize(), time.Since(start))
			u.progress(b.OriginalByteSize)
			u.log.Debug("file unpacked", zap.String("path", b.Path))
		})
		if err != nil {
			wg.Done()
			mtx.Lock()
			errs = append(errs, fmt.Errorf("submit job: %w", err))
			mtx.Unlock()
			break
		}
	}

	wg.Wait()

	if len(errs) > 0 {
		return errors.Join(errs...)
	}

	u.log.Info("archive processed", zap.Int("files", len(blocks)))

	return nil
}
