package bitio

import (
	"io"
)

// Writer packs bits into a byte sink. Bits fill each byte starting from
// the least significant one, multi-byte integers are little-endian.
//
// Writer accumulates data in a fixed-size buffer and hands the buffer to
// the sink once it is full. The remaining bits reach the sink on Close,
// which MUST be called and checked: an error returned by Close means data
// loss.
//
// Writer is not safe for concurrent use.
type Writer struct {
	w   io.Writer
	buf buffer

	// flushed is a number of leading buffer bytes already accepted by w.
	flushed int
	// total is a number of bits in the buffers handed to w before.
	total uint64

	closed   bool
	closeErr error
}

// NewWriter returns Writer writing to w.
func NewWriter(w io.Writer, opts ...Option) *Writer {
	c := applyOptions(opts)

	return &Writer{
		w:   w,
		buf: newBuffer(c.bufSize),
	}
}

// BitsWritten returns number of bits written so far including alignment
// padding.
func (w *Writer) BitsWritten() uint64 {
	return w.total + w.buf.pos
}

// Aligned checks whether the cursor is on a byte boundary.
func (w *Writer) Aligned() bool {
	return w.buf.aligned()
}

// AlignToByte moves the cursor to the next byte boundary leaving zero bits
// behind. Does nothing if the cursor is already aligned.
func (w *Writer) AlignToByte() {
	w.buf.align()
}

// WriteBit writes the lowest bit of bit. Any non-zero value is written as 1.
func (w *Writer) WriteBit(bit byte) error {
	if w.closed {
		return ErrClosed
	}

	if err := w.makeRoom(); err != nil {
		return err
	}

	w.buf.putBit(bit)

	return nil
}

// WriteBits writes n low bits of v starting from the least significant one.
// Returns ErrBitCount if n > 8.
func (w *Writer) WriteBits(v byte, n uint8) error {
	if n > 8 {
		return ErrBitCount
	}

	for i := range n {
		if err := w.WriteBit((v >> i) & 1); err != nil {
			return err
		}
	}

	return nil
}

// WriteSymbol writes c.Len() bits of the code in transmission order.
// Returns ErrInvalidCode for the zero Code.
func (w *Writer) WriteSymbol(c Code) error {
	if c.len == 0 {
		return ErrInvalidCode
	}

	for i := range c.len {
		if err := w.WriteBit(c.Bit(i)); err != nil {
			return err
		}
	}

	return nil
}

// WriteByte writes a whole byte. The cursor MUST be byte-aligned,
// ErrMisaligned is returned otherwise and nothing is written.
func (w *Writer) WriteByte(b byte) error {
	if w.closed {
		return ErrClosed
	}

	if !w.buf.aligned() {
		return ErrMisaligned
	}

	if err := w.makeRoom(); err != nil {
		return err
	}

	w.buf.data[w.buf.pos/8] = b
	w.buf.pos += 8

	return nil
}

// WriteUint64 writes n as 8 little-endian bytes. Same alignment
// requirements as for WriteByte apply.
func (w *Writer) WriteUint64(n uint64) error {
	for i := 0; i < 8; i++ {
		if err := w.WriteByte(byte(n >> (8 * i))); err != nil {
			return err
		}
	}

	return nil
}

// WriteBlock writes the block header: path bytes terminated with NUL and
// then TreeBitSize, DataBitSize, FileByteOffset and OriginalByteSize as
// WriteUint64 does. The cursor MUST be byte-aligned.
func (w *Writer) WriteBlock(b Block) error {
	if err := b.Validate(); err != nil {
		return err
	}

	for i := 0; i < len(b.Path); i++ {
		if err := w.WriteByte(b.Path[i]); err != nil {
			return err
		}
	}

	if err := w.WriteByte(0); err != nil {
		return err
	}

	for _, n := range [...]uint64{b.TreeBitSize, b.DataBitSize, b.FileByteOffset, b.OriginalByteSize} {
		if err := w.WriteUint64(n); err != nil {
			return err
		}
	}

	return nil
}

// Write implements io.Writer for byte-aligned cursor. Returns ErrMisaligned
// otherwise.
func (w *Writer) Write(p []byte) (int, error) {
	if w.closed {
		return 0, ErrClosed
	}

	if !w.buf.aligned() {
		return 0, ErrMisaligned
	}

	var n int
	for n < len(p) {
		if err := w.makeRoom(); err != nil {
			return n, err
		}

		k := copy(w.buf.data[w.buf.pos/8:], p[n:])
		w.buf.pos += uint64(k) * 8
		n += k
	}

	return n, nil
}

// Flush hands all complete buffered bytes to the sink. A trailing partial
// byte stays buffered. Flush may be retried after an error.
func (w *Writer) Flush() error {
	if w.closed {
		return ErrClosed
	}

	return w.flushBytes(int(w.buf.pos / 8))
}

// Close pads the last byte with zeros and hands the rest of the buffer to
// the sink. The sink is touched once at most: subsequent calls return the
// result of the first one.
//
// Close does not close the sink.
func (w *Writer) Close() error {
	if w.closed {
		return w.closeErr
	}

	w.closed = true
	w.buf.align()
	w.closeErr = w.flushBytes(w.buf.usedBytes())

	return w.closeErr
}

// makeRoom hands the buffer to the sink and resets it if it is full.
// Buffer is left untouched on failure.
func (w *Writer) makeRoom() error {
	if !w.buf.full() {
		return nil
	}

	if err := w.flushBytes(len(w.buf.data)); err != nil {
		return err
	}

	w.total += w.buf.pos
	w.flushed = 0
	w.buf.reset()

	return nil
}

func (w *Writer) flushBytes(end int) error {
	if w.flushed >= end {
		return nil
	}

	n, err := w.w.Write(w.buf.data[w.flushed:end])
	w.flushed += n
	if err == nil && w.flushed < end {
		err = io.ErrShortWrite
	}

	if err != nil {
		return &IOError{Op: "write buffer", Err: err}
	}

	return nil
}
