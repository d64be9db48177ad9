package bitio

import (
	"fmt"
	"strings"
)

// MaxCodeLen is the maximum length of a Code in bits.
const MaxCodeLen = 64

// Code is a prefix code assigned to a symbol: a right-justified bit pattern
// and its length. Bit 0 of the pattern is transmitted first. Code values
// are comparable and may be used as map keys.
//
// Instances MUST be created using NewCode.
type Code struct {
	pattern uint64
	len     uint8
}

// NewCode returns Code of bitLen bits taken from the low bits of pattern.
// Higher pattern bits are cleared. Returns ErrInvalidCode if bitLen is not
// in [1, MaxCodeLen].
func NewCode(pattern uint64, bitLen uint8) (Code, error) {
	if bitLen == 0 || bitLen > MaxCodeLen {
		return Code{}, fmt.Errorf("%w: length %d", ErrInvalidCode, bitLen)
	}

	return Code{
		pattern: pattern & lowMask(bitLen),
		len:     bitLen,
	}, nil
}

// Pattern returns code bits, right-justified.
func (c Code) Pattern() uint64 {
	return c.pattern
}

// Len returns code length in bits. Zero for the zero Code.
func (c Code) Len() uint8 {
	return c.len
}

// Bit returns i-th bit of the code in transmission order.
func (c Code) Bit(i uint8) byte {
	return byte(c.pattern>>i) & 1
}

// IsPrefixOf checks whether c is a prefix of (or equal to) other.
func (c Code) IsPrefixOf(other Code) bool {
	return c.len <= other.len && other.pattern&lowMask(c.len) == c.pattern
}

// String returns code bits in transmission order, e.g. "0110".
func (c Code) String() string {
	var sb strings.Builder

	sb.Grow(int(c.len))
	for i := range c.len {
		sb.WriteByte('0' + c.Bit(i))
	}

	return sb.String()
}

func lowMask(n uint8) uint64 {
	if n >= 64 {
		return ^uint64(0)
	}
	return 1<<n - 1
}
