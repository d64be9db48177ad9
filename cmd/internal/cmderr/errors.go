package cmderr

import (
	"errors"
	"fmt"
	"os"

	"github.com/nspcc-dev/huffarc/pkg/archive"
)

// Exit codes of huffarc commands.
const (
	CodeGeneral    = 1
	CodeCorrupt    = 2
	CodeFinalFlush = 3
)

// ExitErr specific error for ExitOnErr function that passes the exit code and error caused.
type ExitErr struct {
	Code  int
	Cause error
}

func (x ExitErr) Error() string { return x.Cause.Error() }

func (x ExitErr) Unwrap() error { return x.Cause }

// Code returns exit code for err. ExitErr codes are kept, broken archives
// and failed container flushes have dedicated codes, others are general.
func Code(err error) int {
	var e ExitErr
	switch {
	case errors.As(err, &e):
		return e.Code
	case errors.Is(err, archive.ErrFinalFlush):
		return CodeFinalFlush
	case archive.IsCorrupt(err):
		return CodeCorrupt
	default:
		return CodeGeneral
	}
}

// ExitOnErr writes error to os.Stderr and calls os.Exit with the code
// returned by Code. Does nothing if err is nil.
func ExitOnErr(err error) {
	if err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(Code(err))
	}
}
