package bitio_test

import (
	"bytes"
	"errors"
	"io"
	"testing"

	"github.com/nspcc-dev/huffarc/pkg/bitio"
	"github.com/stretchr/testify/require"
)

// recordingSink remembers every Write call separately.
type recordingSink struct {
	writes [][]byte
	// failures is a number of next Write calls to fail.
	failures int
	// accept is a number of bytes accepted by a failing call.
	accept int
}

var errSink = errors.New("sink is broken")

func (s *recordingSink) Write(p []byte) (int, error) {
	if s.failures > 0 {
		s.failures--
		n := min(s.accept, len(p))
		if n > 0 {
			s.writes = append(s.writes, bytes.Clone(p[:n]))
		}
		return n, errSink
	}

	s.writes = append(s.writes, bytes.Clone(p))
	return len(p), nil
}

func (s *recordingSink) bytes() []byte {
	return bytes.Join(s.writes, nil)
}

func TestWriter_BufferBoundary(t *testing.T) {
	const bufSize = 16
	const capBits = bufSize * 8

	var sink recordingSink
	w := bitio.NewWriter(&sink, bitio.WithBufferSize(bufSize))

	for i := range capBits {
		require.NoError(t, w.WriteBit(byte(i%3)))
	}
	require.Empty(t, sink.writes, "full buffer must not be flushed before the next write")

	require.NoError(t, w.WriteBit(1))
	require.Len(t, sink.writes, 1)
	require.Len(t, sink.writes[0], capBits/8)
	require.EqualValues(t, capBits+1, w.BitsWritten())

	require.NoError(t, w.Close())
	require.Len(t, sink.writes, 2)
	require.Equal(t, []byte{0x01}, sink.writes[1], "extra bit must start a fresh buffer")
}

func TestWriter_AlignToByte(t *testing.T) {
	w := bitio.NewWriter(io.Discard)

	w.AlignToByte()
	require.Zero(t, w.BitsWritten())

	require.NoError(t, w.WriteBits(0b101, 3))
	w.AlignToByte()
	require.EqualValues(t, 8, w.BitsWritten())
	w.AlignToByte()
	require.EqualValues(t, 8, w.BitsWritten())
	require.True(t, w.Aligned())
}

func TestWriter_Misaligned(t *testing.T) {
	var sink recordingSink
	w := bitio.NewWriter(&sink)

	require.NoError(t, w.WriteBit(1))
	require.ErrorIs(t, w.WriteByte(0xff), bitio.ErrMisaligned)
	require.ErrorIs(t, w.WriteUint64(1), bitio.ErrMisaligned)
	require.ErrorIs(t, w.WriteBlock(bitio.Block{Path: "a"}), bitio.ErrMisaligned)
	_, err := w.Write([]byte{1})
	require.ErrorIs(t, err, bitio.ErrMisaligned)
	require.EqualValues(t, 1, w.BitsWritten())

	w.AlignToByte()
	require.NoError(t, w.WriteByte(0xff))
	require.NoError(t, w.Close())
	require.Equal(t, []byte{0x01, 0xff}, sink.bytes())
}

func TestWriter_WriteBits(t *testing.T) {
	var sink recordingSink
	w := bitio.NewWriter(&sink)

	require.ErrorIs(t, w.WriteBits(0, 9), bitio.ErrBitCount)
	require.NoError(t, w.WriteBits(0xff, 0))
	require.NoError(t, w.WriteBits(0b0110, 4))
	require.NoError(t, w.WriteBits(0b1111_1001, 4))
	require.NoError(t, w.Close())

	require.Equal(t, []byte{0b1001_0110}, sink.bytes())
}

func TestWriter_WriteUint64(t *testing.T) {
	var sink recordingSink
	w := bitio.NewWriter(&sink)

	require.NoError(t, w.WriteUint64(0x0102030405060708))
	require.NoError(t, w.Close())

	require.Equal(t, []byte{0x08, 0x07, 0x06, 0x05, 0x04, 0x03, 0x02, 0x01}, sink.bytes())
}

func TestWriter_Close(t *testing.T) {
	t.Run("occupied prefix once", func(t *testing.T) {
		var sink recordingSink
		w := bitio.NewWriter(&sink, bitio.WithBufferSize(64))

		require.NoError(t, w.WriteByte(0xaa))
		require.NoError(t, w.WriteBits(0b11, 2))

		require.NoError(t, w.Close())
		require.Equal(t, [][]byte{{0xaa, 0b11}}, sink.writes)

		require.NoError(t, w.Close())
		require.Len(t, sink.writes, 1)
	})

	t.Run("empty", func(t *testing.T) {
		var sink recordingSink
		w := bitio.NewWriter(&sink)

		require.NoError(t, w.Close())
		require.Empty(t, sink.writes)
	})

	t.Run("writes after close", func(t *testing.T) {
		w := bitio.NewWriter(io.Discard)
		require.NoError(t, w.Close())

		require.ErrorIs(t, w.WriteBit(1), bitio.ErrClosed)
		require.ErrorIs(t, w.WriteByte(1), bitio.ErrClosed)
		require.ErrorIs(t, w.Flush(), bitio.ErrClosed)
		_, err := w.Write([]byte{1})
		require.ErrorIs(t, err, bitio.ErrClosed)
	})

	t.Run("failure is reported once", func(t *testing.T) {
		sink := recordingSink{failures: 1}
		w := bitio.NewWriter(&sink)

		require.NoError(t, w.WriteByte(1))

		err := w.Close()
		var ioErr *bitio.IOError
		require.ErrorAs(t, err, &ioErr)
		require.ErrorIs(t, err, errSink)

		require.Equal(t, err, w.Close())
		require.Empty(t, sink.writes)
	})
}

func TestWriter_FlushRetry(t *testing.T) {
	const bufSize = 4

	sink := recordingSink{failures: 1, accept: 3}
	w := bitio.NewWriter(&sink, bitio.WithBufferSize(bufSize))

	_, err := w.Write([]byte{1, 2, 3, 4})
	require.NoError(t, err)

	err = w.WriteByte(5)
	require.ErrorIs(t, err, errSink)
	require.False(t, bitio.IsDecodeError(err))
	require.EqualValues(t, 32, w.BitsWritten())

	require.NoError(t, w.Flush())
	require.NoError(t, w.WriteByte(5))
	require.NoError(t, w.Close())

	require.Equal(t, []byte{1, 2, 3, 4, 5}, sink.bytes())
}

func TestWriter_ShortWrite(t *testing.T) {
	w := bitio.NewWriter(shortWriter{})

	require.NoError(t, w.WriteByte(1))
	require.NoError(t, w.WriteByte(2))
	require.ErrorIs(t, w.Close(), io.ErrShortWrite)
}

type shortWriter struct{}

func (shortWriter) Write(p []byte) (int, error) {
	return len(p) / 2, nil
}

func TestWriter_WriteSymbol(t *testing.T) {
	var sink recordingSink
	w := bitio.NewWriter(&sink)

	require.ErrorIs(t, w.WriteSymbol(bitio.Code{}), bitio.ErrInvalidCode)

	c, err := bitio.NewCode(0b1, 1)
	require.NoError(t, err)
	require.NoError(t, w.WriteSymbol(c))

	c, err = bitio.NewCode(0b1100, 4)
	require.NoError(t, err)
	require.NoError(t, w.WriteSymbol(c))

	require.NoError(t, w.Close())
	require.Equal(t, []byte{0b1_1001}, sink.bytes())
}

func TestWriter_WriteBlock(t *testing.T) {
	var sink recordingSink
	w := bitio.NewWriter(&sink)

	require.ErrorIs(t, w.WriteBlock(bitio.Block{}), bitio.ErrMalformedBlock)
	require.ErrorIs(t, w.WriteBlock(bitio.Block{Path: "a\x00b"}), bitio.ErrMalformedBlock)

	require.NoError(t, w.WriteBlock(bitio.Block{
		Path:             "ab",
		TreeBitSize:      1,
		DataBitSize:      2,
		FileByteOffset:   3,
		OriginalByteSize: 4,
	}))
	require.NoError(t, w.Close())

	exp := []byte{'a', 'b', 0}
	for _, n := range []byte{1, 2, 3, 4} {
		exp = append(exp, n, 0, 0, 0, 0, 0, 0, 0)
	}
	require.Equal(t, exp, sink.bytes())
}

func TestWriter_Write(t *testing.T) {
	var sink recordingSink
	w := bitio.NewWriter(&sink, bitio.WithBufferSize(3))

	data := []byte("0123456789")
	n, err := w.Write(data)
	require.NoError(t, err)
	require.Len(t, data, n)
	require.NoError(t, w.Close())

	require.Equal(t, data, sink.bytes())
	require.Len(t, sink.writes, 4)
}
