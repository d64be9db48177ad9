package bitio

import (
	"errors"
	"fmt"
	"io"
)

var (
	// ErrUnexpectedEOF is returned when the source is exhausted before the
	// requested bits are available. It is io.ErrUnexpectedEOF so callers may
	// check either value.
	ErrUnexpectedEOF = io.ErrUnexpectedEOF

	// ErrMisaligned is returned by byte-level operations called when the
	// cursor is not on a byte boundary.
	ErrMisaligned = errors.New("cursor is not byte-aligned")

	// ErrBitCount is returned when more than 8 bits are requested from
	// WriteBits or ReadBits.
	ErrBitCount = errors.New("bit count out of range")

	// ErrInvalidCode is returned for codes with length outside [1, 64] and
	// for code tables that are not prefix-free.
	ErrInvalidCode = errors.New("invalid symbol code")

	// ErrUnknownCode is returned by ReadSymbol when the bits read do not
	// match any code of the table.
	ErrUnknownCode = errors.New("unknown symbol code")

	// ErrMalformedBlock is returned for block headers that can not be
	// written or were read in a broken state.
	ErrMalformedBlock = errors.New("malformed block header")

	// ErrClosed is returned by writes to a closed Writer.
	ErrClosed = errors.New("writer is closed")
)

// IOError is an error of the underlying byte sink or source.
type IOError struct {
	Op  string
	Err error
}

func (e *IOError) Error() string {
	return fmt.Sprintf("%s: %v", e.Op, e.Err)
}

func (e *IOError) Unwrap() error { return e.Err }

// IsDecodeError checks whether err means broken or truncated input rather
// than a failure of the source itself.
func IsDecodeError(err error) bool {
	var ioErr *IOError
	if errors.As(err, &ioErr) {
		return false
	}

	return errors.Is(err, ErrUnexpectedEOF) ||
		errors.Is(err, ErrUnknownCode) ||
		errors.Is(err, ErrMalformedBlock)
}
