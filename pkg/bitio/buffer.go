package bitio

// DefaultBufferSize is the length in bytes of the buffer used by Writer and
// Reader unless WithBufferSize is given.
const DefaultBufferSize = 4096

// buffer is a fixed-size byte array addressed by a bit cursor. Bits are
// numbered from the least significant bit of each byte.
type buffer struct {
	data []byte
	// pos is in [0, 8*len(data)].
	pos uint64
}

func newBuffer(size int) buffer {
	return buffer{data: make([]byte, size)}
}

func (b *buffer) capBits() uint64 {
	return uint64(len(b.data)) * 8
}

func (b *buffer) full() bool {
	return b.pos == b.capBits()
}

func (b *buffer) aligned() bool {
	return b.pos%8 == 0
}

func (b *buffer) align() {
	b.pos = (b.pos + 7) &^ 7
}

// usedBytes returns number of bytes touched by the cursor, the partial one
// included.
func (b *buffer) usedBytes() int {
	return int((b.pos + 7) / 8)
}

// putBit relies on the buffer being zeroed past the cursor.
func (b *buffer) putBit(bit byte) {
	if bit != 0 {
		b.data[b.pos/8] |= 1 << (b.pos % 8)
	}
	b.pos++
}

func (b *buffer) takeBit() byte {
	bit := (b.data[b.pos/8] >> (b.pos % 8)) & 1
	b.pos++
	return bit
}

func (b *buffer) reset() {
	clear(b.data)
	b.pos = 0
}

// Option is an option for Writer and Reader constructors.
type Option func(*cfg)

type cfg struct {
	bufSize int
}

func defaultCfg() *cfg {
	return &cfg{
		bufSize: DefaultBufferSize,
	}
}

// WithBufferSize returns option to set the buffer length in bytes.
// Non-positive values are ignored.
func WithBufferSize(size int) Option {
	return func(c *cfg) {
		if size > 0 {
			c.bufSize = size
		}
	}
}

func applyOptions(opts []Option) *cfg {
	c := defaultCfg()

	for i := range opts {
		opts[i](c)
	}

	return c
}
