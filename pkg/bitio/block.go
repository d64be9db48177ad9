package bitio

import (
	"fmt"
	"strings"
	"unicode/utf8"
)

// MaxPathLength limits the length in bytes of Block.Path.
const MaxPathLength = 4096

// Block is a header of one archived file entry.
type Block struct {
	// Path of the file relative to the archive root. Must not contain NUL.
	Path string

	// TreeBitSize is an exact size of the serialized code tree in bits.
	TreeBitSize uint64

	// DataBitSize is an exact size of the encoded content in bits.
	DataBitSize uint64

	// FileByteOffset is an absolute container offset of the entry payload.
	FileByteOffset uint64

	// OriginalByteSize is the size of the file before encoding.
	OriginalByteSize uint64
}

// Validate checks whether b can be serialized.
func (b Block) Validate() error {
	switch {
	case b.Path == "":
		return fmt.Errorf("%w: empty path", ErrMalformedBlock)
	case len(b.Path) > MaxPathLength:
		return fmt.Errorf("%w: path exceeds %d bytes", ErrMalformedBlock, MaxPathLength)
	case strings.IndexByte(b.Path, 0) >= 0:
		return fmt.Errorf("%w: NUL byte in path %q", ErrMalformedBlock, b.Path)
	case !utf8.ValidString(b.Path):
		return fmt.Errorf("%w: path is not valid UTF-8", ErrMalformedBlock)
	}

	return nil
}

// HeaderSize returns serialized header length in bytes.
func (b Block) HeaderSize() uint64 {
	return uint64(len(b.Path)) + 1 + 4*8
}

// TreeByteSize returns number of bytes occupied by the code tree.
func (b Block) TreeByteSize() uint64 {
	return bytesFor(b.TreeBitSize)
}

// DataByteSize returns number of bytes occupied by the encoded content.
func (b Block) DataByteSize() uint64 {
	return bytesFor(b.DataBitSize)
}

// PayloadByteSize returns number of bytes following the header.
func (b Block) PayloadByteSize() uint64 {
	return b.TreeByteSize() + b.DataByteSize()
}

func bytesFor(bits uint64) uint64 {
	return bits/8 + (bits%8+7)/8
}
