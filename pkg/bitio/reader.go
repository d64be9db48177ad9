package bitio

import (
	"errors"
	"fmt"
	"io"
)

// maxEmptyReads limits sequential empty reads of the source.
const maxEmptyReads = 100

// Reader unpacks bits written by Writer from a byte source using the same
// bit and byte order.
//
// Reader is not safe for concurrent use.
type Reader struct {
	r   io.Reader
	buf buffer

	// n is a number of valid bytes in the buffer.
	n int
	// total is a number of bits consumed from previous buffer loads.
	total uint64
}

// NewReader returns Reader reading from r.
func NewReader(r io.Reader, opts ...Option) *Reader {
	c := applyOptions(opts)

	return &Reader{
		r:   r,
		buf: newBuffer(c.bufSize),
	}
}

// Reset discards buffered data and switches the Reader to src.
func (r *Reader) Reset(src io.Reader) {
	r.r = src
	r.n = 0
	r.total = 0
	r.buf.pos = 0
}

// BitsRead returns number of bits consumed so far including skipped
// alignment padding.
func (r *Reader) BitsRead() uint64 {
	return r.total + r.buf.pos
}

// Aligned checks whether the cursor is on a byte boundary.
func (r *Reader) Aligned() bool {
	return r.buf.aligned()
}

// AlignToByte skips bits up to the next byte boundary.
func (r *Reader) AlignToByte() {
	r.buf.align()
}

// AtEOF checks whether the source is exhausted. Remaining padding bits of
// the current byte are not taken into account, so AtEOF is meaningful on
// byte-aligned cursor only.
func (r *Reader) AtEOF() (bool, error) {
	err := r.fill()
	if errors.Is(err, io.EOF) {
		return true, nil
	}

	return false, err
}

// ReadBit reads a single bit.
func (r *Reader) ReadBit() (byte, error) {
	if err := r.need(); err != nil {
		return 0, err
	}

	return r.buf.takeBit(), nil
}

// ReadBits reads n bits and returns them right-justified, the first bit
// read being the least significant. Returns ErrBitCount if n > 8.
func (r *Reader) ReadBits(n uint8) (byte, error) {
	if n > 8 {
		return 0, ErrBitCount
	}

	var v byte
	for i := range n {
		bit, err := r.ReadBit()
		if err != nil {
			return 0, err
		}
		v |= bit << i
	}

	return v, nil
}

// ReadCode reads n bits as a Code.
func (r *Reader) ReadCode(n uint8) (Code, error) {
	if n == 0 || n > MaxCodeLen {
		return Code{}, fmt.Errorf("%w: length %d", ErrInvalidCode, n)
	}

	var pattern uint64
	for i := range n {
		bit, err := r.ReadBit()
		if err != nil {
			return Code{}, err
		}
		pattern |= uint64(bit) << i
	}

	return Code{pattern: pattern, len: n}, nil
}

// ReadSymbol reads bits one by one until they form a code of t and returns
// its symbol. Returns ErrUnknownCode if no code matches after t.MaxLen()
// bits.
func (r *Reader) ReadSymbol(t *Table) (byte, error) {
	var c Code
	for c.len < t.maxLen {
		bit, err := r.ReadBit()
		if err != nil {
			return 0, err
		}

		c.pattern |= uint64(bit) << c.len
		c.len++

		if sym, ok := t.symbols[c]; ok {
			return sym, nil
		}
	}

	return 0, fmt.Errorf("%w: %s", ErrUnknownCode, c)
}

// ReadByte reads a whole byte. The cursor MUST be byte-aligned,
// ErrMisaligned is returned otherwise.
func (r *Reader) ReadByte() (byte, error) {
	if !r.buf.aligned() {
		return 0, ErrMisaligned
	}

	if err := r.need(); err != nil {
		return 0, err
	}

	b := r.buf.data[r.buf.pos/8]
	r.buf.pos += 8

	return b, nil
}

// ReadUint64 reads 8 little-endian bytes.
func (r *Reader) ReadUint64() (uint64, error) {
	var n uint64
	for i := 0; i < 8; i++ {
		b, err := r.ReadByte()
		if err != nil {
			return 0, err
		}
		n |= uint64(b) << (8 * i)
	}

	return n, nil
}

// ReadBlock reads the block header written by Writer.WriteBlock.
func (r *Reader) ReadBlock() (Block, error) {
	var (
		b    Block
		path = make([]byte, 0, 64)
	)

	for {
		c, err := r.ReadByte()
		if err != nil {
			return Block{}, err
		}

		if c == 0 {
			break
		}

		if len(path) == MaxPathLength {
			return Block{}, fmt.Errorf("%w: path exceeds %d bytes", ErrMalformedBlock, MaxPathLength)
		}

		path = append(path, c)
	}

	b.Path = string(path)

	err := b.Validate()
	if err != nil {
		return Block{}, err
	}

	for _, f := range [...]*uint64{&b.TreeBitSize, &b.DataBitSize, &b.FileByteOffset, &b.OriginalByteSize} {
		*f, err = r.ReadUint64()
		if err != nil {
			return Block{}, err
		}
	}

	return b, nil
}

// Read implements io.Reader for byte-aligned cursor. Returns ErrMisaligned
// otherwise.
func (r *Reader) Read(p []byte) (int, error) {
	if !r.buf.aligned() {
		return 0, ErrMisaligned
	}

	var n int
	for n < len(p) {
		if err := r.fill(); err != nil {
			if errors.Is(err, io.EOF) && n > 0 {
				return n, nil
			}
			return n, err
		}

		k := copy(p[n:], r.buf.data[r.buf.pos/8:r.n])
		r.buf.pos += uint64(k) * 8
		n += k
	}

	return n, nil
}

// need is fill for reads that must not hit the end of the source.
func (r *Reader) need() error {
	err := r.fill()
	if errors.Is(err, io.EOF) {
		return ErrUnexpectedEOF
	}

	return err
}

// fill loads the next portion of the source once every loaded bit is
// consumed. Returns io.EOF if the source is exhausted.
func (r *Reader) fill() error {
	if r.buf.pos < uint64(r.n)*8 {
		return nil
	}

	r.total += r.buf.pos
	r.buf.pos = 0
	r.n = 0

	for range maxEmptyReads {
		n, err := r.r.Read(r.buf.data)
		if n > 0 {
			r.n = n
			return nil
		}

		switch {
		case errors.Is(err, io.EOF):
			return io.EOF
		case err != nil:
			return &IOError{Op: "read buffer", Err: err}
		}
	}

	return &IOError{Op: "read buffer", Err: io.ErrNoProgress}
}
