package archive_test

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"math/rand"
	"os"
	"path/filepath"
	"strconv"
	"sync"
	"testing"
	"testing/fstest"
	"time"

	"github.com/nspcc-dev/huffarc/internal/testutil"
	"github.com/nspcc-dev/huffarc/pkg/archive"
	"github.com/nspcc-dev/huffarc/pkg/bitio"
	"github.com/nspcc-dev/huffarc/pkg/util"
	"github.com/stretchr/testify/require"
	"github.com/zeebo/blake3"
	"go.uber.org/atomic"
	"go.uber.org/zap"
)

func randomBytes(seed int64, n int) []byte {
	b := make([]byte, n)
	rand.New(rand.NewSource(seed)).Read(b)
	return b
}

func testFiles() (fstest.MapFS, []string) {
	fsys := fstest.MapFS{
		"hello.txt":    {Data: []byte("hello, huffman coding")},
		"empty":        {Data: []byte{}},
		"one":          {Data: []byte("x")},
		"same":         {Data: bytes.Repeat([]byte{0xAA}, 1000)},
		"dir/rand.bin": {Data: randomBytes(1, 10000)},
		"dir/text":     {Data: bytes.Repeat([]byte("abracadabra "), 500)},
	}
	return fsys, []string{"hello.txt", "empty", "one", "same", "dir/rand.bin", "dir/text"}
}

func newPool(t testing.TB, size int) util.WorkerPool {
	p, err := util.NewWorkerPool(size)
	require.NoError(t, err)
	t.Cleanup(p.Release)
	return p
}

func pack(t testing.TB, fsys fstest.MapFS, names []string, opts ...archive.Option) ([]byte, []archive.IndexEntry) {
	var buf bytes.Buffer

	idx, err := archive.NewPacker(newPool(t, 4), opts...).Pack(context.Background(), &buf, archive.FSEntries(fsys, names...))
	require.NoError(t, err)

	return buf.Bytes(), idx
}

func TestPackScanExtract(t *testing.T) {
	fsys, names := testFiles()

	for _, workers := range []int{1, 2, 8} {
		var buf bytes.Buffer

		idx, err := archive.NewPacker(newPool(t, workers)).Pack(context.Background(), &buf, archive.FSEntries(fsys, names...))
		require.NoError(t, err)
		require.Len(t, idx, len(names))

		blocks, err := archive.Scan(bytes.NewReader(buf.Bytes()))
		require.NoError(t, err)
		require.Len(t, blocks, len(names))

		for i := range blocks {
			require.Equal(t, names[i], blocks[i].Path)
			require.Equal(t, idx[i].Block(), blocks[i])
			require.EqualValues(t, len(fsys[names[i]].Data), blocks[i].OriginalByteSize)
			require.Equal(t, blake3.Sum256(fsys[names[i]].Data), idx[i].Digest)

			var out bytes.Buffer
			require.NoError(t, archive.Extract(bytes.NewReader(buf.Bytes()), blocks[i], &out))
			require.Equal(t, fsys[names[i]].Data, out.Bytes(), names[i])
		}
	}
}

func TestPack(t *testing.T) {
	t.Run("no entries", func(t *testing.T) {
		data, idx := pack(t, fstest.MapFS{}, nil)
		require.Empty(t, data)
		require.Empty(t, idx)

		blocks, err := archive.Scan(bytes.NewReader(data))
		require.NoError(t, err)
		require.Empty(t, blocks)
	})

	t.Run("empty file", func(t *testing.T) {
		data, idx := pack(t, fstest.MapFS{"e": {}}, []string{"e"})
		require.Len(t, idx, 1)
		require.Zero(t, idx[0].TreeBitSize)
		require.Zero(t, idx[0].DataBitSize)
		require.EqualValues(t, len(data), idx[0].FileByteOffset)
	})

	t.Run("single symbol", func(t *testing.T) {
		_, idx := pack(t, fstest.MapFS{"s": {Data: []byte("zzzz")}}, []string{"s"})
		require.EqualValues(t, 9, idx[0].TreeBitSize)
		require.EqualValues(t, 4, idx[0].DataBitSize)
	})

	t.Run("duplicate paths", func(t *testing.T) {
		var buf bytes.Buffer
		fsys := fstest.MapFS{"a": {Data: []byte("a")}}

		_, err := archive.NewPacker(newPool(t, 2)).Pack(context.Background(), &buf, archive.FSEntries(fsys, "a", "a"))
		require.ErrorIs(t, err, archive.ErrDuplicatePath)
		require.Zero(t, buf.Len())
	})

	t.Run("invalid path", func(t *testing.T) {
		var buf bytes.Buffer
		fsys := fstest.MapFS{"a": {Data: []byte("a")}}

		_, err := archive.NewPacker(newPool(t, 2)).Pack(context.Background(), &buf, []archive.Entry{
			archive.FSEntries(fsys, "a")[0],
			{Path: "b\x00c", Open: func() (io.ReadCloser, error) { return io.NopCloser(bytes.NewReader(nil)), nil }},
		})
		require.ErrorIs(t, err, bitio.ErrMalformedBlock)
		require.Zero(t, buf.Len())
	})

	t.Run("open failure", func(t *testing.T) {
		openErr := errors.New("any open error")

		_, err := archive.NewPacker(newPool(t, 2)).Pack(context.Background(), io.Discard, []archive.Entry{
			{Path: "a", Open: func() (io.ReadCloser, error) { return nil, openErr }},
		})
		require.ErrorIs(t, err, openErr)
		require.False(t, archive.IsCorrupt(err))
	})

	t.Run("canceled context", func(t *testing.T) {
		fsys, names := testFiles()

		ctx, cancel := context.WithCancel(context.Background())
		cancel()

		_, err := archive.NewPacker(newPool(t, 2)).Pack(ctx, io.Discard, archive.FSEntries(fsys, names...))
		require.ErrorIs(t, err, context.Canceled)
	})

	t.Run("final flush failure", func(t *testing.T) {
		fsys, names := testFiles()
		sinkErr := errors.New("any sink error")

		_, err := archive.NewPacker(newPool(t, 2), archive.WithBufferSize(1<<20)).
			Pack(context.Background(), failingWriter{sinkErr}, archive.FSEntries(fsys, names...))
		require.ErrorIs(t, err, archive.ErrFinalFlush)
		require.ErrorIs(t, err, sinkErr)
	})

	t.Run("sink failure", func(t *testing.T) {
		fsys, names := testFiles()
		sinkErr := errors.New("any sink error")

		_, err := archive.NewPacker(newPool(t, 2), archive.WithBufferSize(16)).
			Pack(context.Background(), failingWriter{sinkErr}, archive.FSEntries(fsys, names...))
		require.ErrorIs(t, err, sinkErr)
		require.NotErrorIs(t, err, archive.ErrFinalFlush)
	})

	t.Run("buffer sizes", func(t *testing.T) {
		fsys, names := testFiles()

		exp, _ := pack(t, fsys, names)
		for _, size := range []int{1, 7, 64} {
			got, _ := pack(t, fsys, names, archive.WithBufferSize(size))
			require.Equal(t, exp, got, size)
		}
	})

	t.Run("logs and metrics", func(t *testing.T) {
		fsys, names := testFiles()
		l, lr := testutil.NewLogRecorder(t, zap.InfoLevel)
		m := new(testMetrics)

		var progress uint64
		pack(t, fsys, names, archive.WithLogger(l), archive.WithMetrics(m), archive.WithProgress(func(n uint64) {
			progress += n
		}))

		var total uint64
		for _, name := range names {
			total += uint64(len(fsys[name].Data))
		}

		require.Equal(t, total, progress)
		require.Equal(t, len(names), m.files)
		require.Equal(t, total, m.original)
		require.Zero(t, m.failures)

		es := lr.Filter("archive packed")
		require.Len(t, es, 1)
		require.Equal(t, "Packer", es[0].Fields["component"])
		require.Equal(t, json.Number("6"), es[0].Fields["files"])
	})
}

func TestScan_Corrupt(t *testing.T) {
	fsys, names := testFiles()
	data, _ := pack(t, fsys, names)

	for _, tc := range []struct {
		name string
		data []byte
	}{
		{name: "truncated payload", data: data[:len(data)-1]},
		{name: "truncated header", data: data[:3]},
		{name: "trailing garbage", data: append(bytes.Clone(data), 'x', 'y')},
		{name: "broken offset", data: func() []byte {
			d := bytes.Clone(data)
			// the first header is "hello.txt\x00" followed by tree, data and offset fields
			d[len("hello.txt\x00")+16]++
			return d
		}()},
	} {
		t.Run(tc.name, func(t *testing.T) {
			_, err := archive.Scan(bytes.NewReader(tc.data))
			require.ErrorIs(t, err, archive.ErrCorrupt)
		})
	}
}

func TestExtract(t *testing.T) {
	fsys, names := testFiles()
	data, idx := pack(t, fsys, names)
	src := bytes.NewReader(data)

	t.Run("random access", func(t *testing.T) {
		for _, i := range []int{4, 0, 5, 2} {
			var out bytes.Buffer
			require.NoError(t, archive.Extract(src, idx[i].Block(), &out))
			require.Equal(t, fsys[names[i]].Data, out.Bytes())
		}
	})

	t.Run("wrong sizes", func(t *testing.T) {
		b := idx[0].Block()
		b.DataBitSize += 8

		require.ErrorIs(t, archive.Extract(src, b, io.Discard), archive.ErrCorrupt)
	})

	t.Run("wrong offset", func(t *testing.T) {
		b := idx[1].Block()
		b.FileByteOffset = 2

		require.ErrorIs(t, archive.Extract(src, b, io.Discard), archive.ErrCorrupt)
	})

	t.Run("beyond container", func(t *testing.T) {
		b := idx[5].Block()

		require.ErrorIs(t, archive.Extract(bytes.NewReader(data[:len(data)-10]), b, io.Discard), archive.ErrCorrupt)
	})

	t.Run("sink failure", func(t *testing.T) {
		sinkErr := errors.New("any sink error")

		err := archive.Extract(src, idx[4].Block(), failingWriter{sinkErr})
		require.ErrorIs(t, err, sinkErr)
		require.False(t, archive.IsCorrupt(err))
	})
}

func TestUnpacker(t *testing.T) {
	fsys, names := testFiles()
	data, idx := pack(t, fsys, names)

	blocks := make([]bitio.Block, len(idx))
	for i := range idx {
		blocks[i] = idx[i].Block()
	}

	t.Run("unpack", func(t *testing.T) {
		for _, workers := range []int{1, 3} {
			dir := t.TempDir()
			m := new(testMetrics)

			err := archive.NewUnpacker(newPool(t, workers), archive.WithMetrics(m)).
				Unpack(context.Background(), bytes.NewReader(data), blocks, archive.DirTarget(dir))
			require.NoError(t, err)
			require.Equal(t, len(names), m.files)

			for _, name := range names {
				got, err := os.ReadFile(filepath.Join(dir, filepath.FromSlash(name)))
				require.NoError(t, err)
				require.Equal(t, fsys[name].Data, got, name)
			}
		}
	})

	t.Run("unsafe path", func(t *testing.T) {
		var buf bytes.Buffer

		_, err := archive.NewPacker(newPool(t, 1)).Pack(context.Background(), &buf, []archive.Entry{{
			Path: "../evil",
			Open: func() (io.ReadCloser, error) { return io.NopCloser(bytes.NewReader([]byte("boo"))), nil },
		}})
		require.NoError(t, err)
		evil := buf.Bytes()

		bs, err := archive.Scan(bytes.NewReader(evil))
		require.NoError(t, err)

		dir := filepath.Join(t.TempDir(), "out")
		err = archive.NewUnpacker(newPool(t, 1)).Unpack(context.Background(), bytes.NewReader(evil), bs, archive.DirTarget(dir))
		require.ErrorIs(t, err, archive.ErrCorrupt)

		_, err = os.Stat(filepath.Join(dir, "..", "evil"))
		require.ErrorIs(t, err, os.ErrNotExist)
	})

	t.Run("canceled context", func(t *testing.T) {
		ctx, cancel := context.WithCancel(context.Background())
		cancel()

		err := archive.NewUnpacker(newPool(t, 2)).Unpack(ctx, bytes.NewReader(data), blocks, archive.DirTarget(t.TempDir()))
		require.ErrorIs(t, err, context.Canceled)
	})

	t.Run("verify", func(t *testing.T) {
		l, lr := testutil.NewLogRecorder(t, zap.InfoLevel)

		err := archive.NewUnpacker(newPool(t, 4), archive.WithLogger(l)).Verify(context.Background(), bytes.NewReader(data), idx)
		require.NoError(t, err)
		require.Len(t, lr.Filter("archive processed"), 1)
	})

	t.Run("verify mismatch", func(t *testing.T) {
		broken := append([]archive.IndexEntry(nil), idx...)
		broken[3].Digest[0]++

		m := new(testMetrics)

		err := archive.NewUnpacker(newPool(t, 1), archive.WithMetrics(m)).Verify(context.Background(), bytes.NewReader(data), broken)
		require.ErrorIs(t, err, archive.ErrCorrupt)
		require.ErrorContains(t, err, names[3])
		require.Equal(t, 1, m.failures)
	})
}

func TestIndex(t *testing.T) {
	fsys, names := testFiles()
	_, entries := pack(t, fsys, names)

	idx := archive.Index{Version: archive.IndexVersion, Entries: entries}

	for _, codec := range []archive.IndexCodec{archive.IndexCodecNone, archive.IndexCodecZstd, archive.IndexCodecLZ4} {
		t.Run(codec.String(), func(t *testing.T) {
			var buf bytes.Buffer
			require.NoError(t, archive.WriteIndex(&buf, idx, codec))

			res, err := archive.ReadIndex(&buf)
			require.NoError(t, err)
			require.Equal(t, idx, res)
		})
	}

	t.Run("parse codec", func(t *testing.T) {
		for _, codec := range []archive.IndexCodec{archive.IndexCodecNone, archive.IndexCodecZstd, archive.IndexCodecLZ4} {
			c, err := archive.ParseIndexCodec(codec.String())
			require.NoError(t, err)
			require.Equal(t, codec, c)
		}

		_, err := archive.ParseIndexCodec("gzip")
		require.Error(t, err)
	})

	t.Run("corrupt", func(t *testing.T) {
		var buf bytes.Buffer
		require.NoError(t, archive.WriteIndex(&buf, idx, archive.IndexCodecZstd))
		data := buf.Bytes()

		for _, tc := range []struct {
			name string
			data []byte
		}{
			{name: "empty", data: nil},
			{name: "unknown codec", data: append([]byte{42}, data[1:]...)},
			{name: "truncated", data: data[:len(data)/2]},
			{name: "huge length", data: append([]byte{0, 0, 0, 0, 0, 0, 0, 0, 1}, data[9:]...)},
		} {
			t.Run(tc.name, func(t *testing.T) {
				_, err := archive.ReadIndex(bytes.NewReader(tc.data))
				require.ErrorIs(t, err, archive.ErrCorrupt)
			})
		}

		t.Run("version", func(t *testing.T) {
			var buf bytes.Buffer
			require.NoError(t, archive.WriteIndex(&buf, archive.Index{Version: 99}, archive.IndexCodecNone))

			_, err := archive.ReadIndex(&buf)
			require.ErrorIs(t, err, archive.ErrCorrupt)
		})
	})
}

func TestPack_MaxPending(t *testing.T) {
	const maxPending = 3

	var (
		release     = make(chan struct{})
		releaseOnce = sync.OnceFunc(func() { close(release) })
		opened      atomic.Int32
		entries     = make([]archive.Entry, 20)
	)

	entries[0] = archive.Entry{Path: "slow", Open: func() (io.ReadCloser, error) {
		<-release
		return io.NopCloser(bytes.NewReader([]byte("first entry"))), nil
	}}
	for i := 1; i < len(entries); i++ {
		entries[i] = archive.Entry{Path: strconv.Itoa(i), Open: func() (io.ReadCloser, error) {
			opened.Inc()
			return io.NopCloser(bytes.NewReader(bytes.Repeat([]byte{byte(i)}, 100))), nil
		}}
	}

	pool := newPool(t, 2)
	t.Cleanup(releaseOnce)

	res := make(chan error, 1)
	go func() {
		_, err := archive.NewPacker(pool, archive.WithMaxPending(maxPending)).Pack(context.Background(), io.Discard, entries)
		res <- err
	}()

	// the slow entry holds one slot until it is appended
	require.Eventually(t, func() bool { return opened.Load() == maxPending-1 }, 5*time.Second, 10*time.Millisecond)
	time.Sleep(100 * time.Millisecond)
	require.EqualValues(t, maxPending-1, opened.Load())

	releaseOnce()

	select {
	case err := <-res:
		require.NoError(t, err)
	case <-time.After(10 * time.Second):
		t.Fatal("pack is not finished")
	}

	require.EqualValues(t, len(entries)-1, opened.Load())
}

// duplicateContainer returns container with two empty entries named "a".
func duplicateContainer(t *testing.T) []byte {
	var (
		buf bytes.Buffer
		pos uint64
		w   = bitio.NewWriter(&buf)
	)

	for range 2 {
		b := bitio.Block{Path: "a"}
		b.FileByteOffset = pos + b.HeaderSize()
		require.NoError(t, w.WriteBlock(b))
		pos = b.FileByteOffset
	}

	require.NoError(t, w.Close())

	return buf.Bytes()
}

func TestDuplicatePath(t *testing.T) {
	t.Run("scan", func(t *testing.T) {
		_, err := archive.Scan(bytes.NewReader(duplicateContainer(t)))
		require.ErrorIs(t, err, archive.ErrCorrupt)
		require.ErrorContains(t, err, "duplicate")
	})

	t.Run("index", func(t *testing.T) {
		_, idx := pack(t, fstest.MapFS{"a": {Data: []byte("abc")}}, []string{"a"})

		var buf bytes.Buffer
		require.NoError(t, archive.WriteIndex(&buf, archive.Index{
			Version: archive.IndexVersion,
			Entries: []archive.IndexEntry{idx[0], idx[0]},
		}, archive.IndexCodecNone))

		_, err := archive.ReadIndex(&buf)
		require.ErrorIs(t, err, archive.ErrCorrupt)
	})

	t.Run("unpack", func(t *testing.T) {
		data, idx := pack(t, fstest.MapFS{"a": {Data: []byte("abc")}}, []string{"a"})
		dir := t.TempDir()

		err := archive.NewUnpacker(newPool(t, 2)).Unpack(context.Background(), bytes.NewReader(data),
			[]bitio.Block{idx[0].Block(), idx[0].Block()}, archive.DirTarget(dir))
		require.ErrorIs(t, err, archive.ErrCorrupt)

		_, err = os.Stat(filepath.Join(dir, "a"))
		require.ErrorIs(t, err, os.ErrNotExist)
	})
}

func TestUnpacker_RemovesFailedFiles(t *testing.T) {
	fsys, names := testFiles()
	data, idx := pack(t, fsys, names)
	dir := t.TempDir()

	broken := idx[0].Block()
	broken.DataBitSize += 8

	err := archive.NewUnpacker(newPool(t, 1)).Unpack(context.Background(), bytes.NewReader(data),
		[]bitio.Block{broken}, archive.DirTarget(dir))
	require.ErrorIs(t, err, archive.ErrCorrupt)

	_, err = os.Stat(filepath.Join(dir, names[0]))
	require.ErrorIs(t, err, os.ErrNotExist)
}

type failingWriter struct{ err error }

func (x failingWriter) Write([]byte) (int, error) { return 0, x.err }

type testMetrics struct {
	mtx      sync.Mutex
	files    int
	original uint64
	failures int
}

func (x *testMetrics) AddFile(_ string, original, _ uint64, _ time.Duration) {
	x.mtx.Lock()
	defer x.mtx.Unlock()
	x.files++
	x.original += original
}

func (x *testMetrics) IncFailures(string) {
	x.mtx.Lock()
	defer x.mtx.Unlock()
	x.failures++
}
