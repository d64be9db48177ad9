package archive

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"io/fs"
	"sync"
	"time"

	"github.com/nspcc-dev/huffarc/pkg/bitio"
	"github.com/nspcc-dev/huffarc/pkg/huffman"
	"github.com/nspcc-dev/huffarc/pkg/metrics"
	"github.com/nspcc-dev/huffarc/pkg/util"
	"github.com/zeebo/blake3"
	"go.uber.org/zap"
)

// Entry is a file to be packed.
type Entry struct {
	// Path is stored in the entry header. See bitio.Block for restrictions.
	Path string

	// Open provides file contents.
	Open func() (io.ReadCloser, error)
}

// FSEntries returns entries for the named files of fsys stored under the
// same names.
func FSEntries(fsys fs.FS, names ...string) []Entry {
	res := make([]Entry, len(names))
	for i, name := range names {
		res[i] = Entry{
			Path: name,
			Open: func() (io.ReadCloser, error) { return fsys.Open(name) },
		}
	}
	return res
}

// Packer encodes files into a container. Each file is encoded by a
// separate job of the worker pool, encoded entries are appended to the
// container in the order of input.
type Packer struct {
	*cfg

	pool util.WorkerPool
}

// NewPacker returns Packer running encoding jobs in the pool. The pool is
// not released by the Packer.
func NewPacker(pool util.WorkerPool, opts ...Option) *Packer {
	c := defaultCfg()

	for i := range opts {
		opts[i](c)
	}

	c.log = c.log.With(zap.String("component", "Packer"))

	return &Packer{
		cfg:  c,
		pool: pool,
	}
}

// encoded is a result of a single encoding job.
type encoded struct {
	huffman.Encoded

	payload  []byte
	size     uint64
	digest   [32]byte
	duration time.Duration
	err      error
}

// Pack writes all entries to dst and returns their index records. dst
// receives nothing if some entry is invalid. On error the container written
// so far is incomplete and MUST be discarded.
//
// At most WithMaxPending entries are encoded or wait to be appended at any
// moment, so memory is bounded by the largest encoded entries rather than
// by the whole container.
//
// Context is checked between entries, started jobs are not interrupted.
// Pack returns after all submitted jobs are finished.
func (p *Packer) Pack(ctx context.Context, dst io.Writer, entries []Entry) ([]IndexEntry, error) {
	seen := make(map[string]struct{}, len(entries))
	for i := range entries {
		if err := (bitio.Block{Path: entries[i].Path}).Validate(); err != nil {
			return nil, fmt.Errorf("entry #%d: %w", i, err)
		}

		if _, ok := seen[entries[i].Path]; ok {
			return nil, fmt.Errorf("%w: %s", ErrDuplicatePath, entries[i].Path)
		}
		seen[entries[i].Path] = struct{}{}
	}

	ctx, cancel := context.WithCancel(ctx)

	var (
		wg      sync.WaitGroup
		results = make([]encoded, len(entries))
		done    = make([]chan struct{}, len(entries))
	)

	for i := range done {
		done[i] = make(chan struct{})
	}

	// a slot is taken before submission and freed after the append
	pending := make(chan struct{}, p.maxPending)

	defer func() {
		cancel()
		wg.Wait()
	}()

	wg.Add(1)
	go func() {
		defer wg.Done()
		p.submit(ctx, &wg, pending, entries, results, done)
	}()

	cw := bitio.NewWriter(dst, bitio.WithBufferSize(p.bufSize))
	index := make([]IndexEntry, 0, len(entries))

	for i := range entries {
		<-done[i]

		if err := ctx.Err(); err != nil {
			return nil, err
		}

		res := &results[i]
		if res.err != nil {
			p.metrics.IncFailures(metrics.OperationPack)
			return nil, fmt.Errorf("encode %s: %w", entries[i].Path, res.err)
		}

		block := bitio.Block{
			Path:             entries[i].Path,
			TreeBitSize:      res.TreeBits,
			DataBitSize:      res.DataBits,
			OriginalByteSize: res.size,
		}
		block.FileByteOffset = cw.BitsWritten()/8 + block.HeaderSize()

		err := appendEntry(cw, block, res.payload)
		if err != nil {
			p.metrics.IncFailures(metrics.OperationPack)
			return nil, fmt.Errorf("append %s: %w", block.Path, err)
		}

		p.metrics.AddFile(metrics.OperationPack, res.size, uint64(len(res.payload)), res.duration)
		p.progress(res.size)
		p.log.Debug("file packed",
			zap.String("path", block.Path),
			zap.Uint64("original size", block.OriginalByteSize),
			zap.Uint64("payload size", block.PayloadByteSize()),
			zap.Uint64("offset", block.FileByteOffset),
		)

		index = append(index, newIndexEntry(block, res.digest))
		res.payload = nil
		<-pending
	}

	if err := cw.Close(); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrFinalFlush, err)
	}

	p.log.Info("archive packed",
		zap.Int("files", len(index)),
		zap.Uint64("size", cw.BitsWritten()/8),
	)

	return index, nil
}

// submit queues encoding jobs. done[i] is closed once results[i] is ready.
// Each job occupies a pending slot, submission blocks while all slots are
// taken.
func (p *Packer) submit(ctx context.Context, wg *sync.WaitGroup, pending chan<- struct{}, entries []Entry, results []encoded, done []chan struct{}) {
	for i := range entries {
		select {
		case pending <- struct{}{}:
		case <-ctx.Done():
		}

		if err := ctx.Err(); err != nil {
			for j := i; j < len(entries); j++ {
				results[j].err = err
				close(done[j])
			}
			return
		}

		wg.Add(1)
		err := p.pool.Submit(func() {
			defer wg.Done()
			results[i] = p.encode(entries[i])
			close(done[i])
		})
		if err != nil {
			wg.Done()
			results[i].err = fmt.Errorf("submit job: %w", err)
			close(done[i])
		}
	}
}

func (p *Packer) encode(e Entry) encoded {
	var res encoded

	start := time.Now()

	f, err := e.Open()
	if err != nil {
		res.err = fmt.Errorf("open: %w", err)
		return res
	}

	data, err := io.ReadAll(f)
	_ = f.Close()
	if err != nil {
		res.err = fmt.Errorf("read: %w", err)
		return res
	}

	var payload bytes.Buffer

	w := bitio.NewWriter(&payload, bitio.WithBufferSize(p.bufSize))

	res.Encoded, res.err = huffman.Encode(w, data)
	if res.err != nil {
		return res
	}

	if res.err = w.Close(); res.err != nil {
		return res
	}

	res.payload = payload.Bytes()
	res.size = uint64(len(data))
	res.digest = blake3.Sum256(data)
	res.duration = time.Since(start)

	return res
}

// appendEntry writes the header and payload of a single entry.
func appendEntry(w *bitio.Writer, b bitio.Block, payload []byte) error {
	if uint64(len(payload)) != b.PayloadByteSize() {
		return fmt.Errorf("payload size %d mismatches header %d", len(payload), b.PayloadByteSize())
	}

	if err := w.WriteBlock(b); err != nil {
		return fmt.Errorf("write header: %w", err)
	}

	if _, err := w.Write(payload); err != nil {
		return fmt.Errorf("write payload: %w", err)
	}

	return nil
}
