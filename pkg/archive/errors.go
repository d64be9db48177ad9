package archive

import (
	"errors"
	"fmt"

	"github.com/nspcc-dev/huffarc/pkg/bitio"
	"github.com/nspcc-dev/huffarc/pkg/huffman"
)

var (
	// ErrCorrupt is returned for malformed or truncated archives.
	ErrCorrupt = errors.New("corrupt archive")

	// ErrFinalFlush is returned when the last buffered part of the
	// container could not be written. The container is incomplete then.
	ErrFinalFlush = errors.New("final container flush failed")

	// ErrDuplicatePath is returned by Pack for entries with the same path.
	ErrDuplicatePath = errors.New("duplicate entry path")
)

// IsCorrupt checks whether err is caused by broken archive contents rather
// than by a failure of the storage.
func IsCorrupt(err error) bool {
	return errors.Is(err, ErrCorrupt)
}

// corrupt wraps decoding errors into ErrCorrupt and returns other errors
// unchanged.
func corrupt(err error) error {
	if err == nil || errors.Is(err, ErrCorrupt) {
		return err
	}

	if bitio.IsDecodeError(err) || errors.Is(err, huffman.ErrMalformedTree) {
		return fmt.Errorf("%w: %w", ErrCorrupt, err)
	}

	return err
}

func corruptf(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrCorrupt, fmt.Sprintf(format, args...))
}
