// Package blkerr classifies the fatal-vs-recoverable error distinctions
// spec §7 draws, so callers can map them to the right process exit code
// (0 success, 1 user/config error, 2 fatal I/O or invariant violation).
package blkerr

import (
	"errors"
	"fmt"
)

// ErrUser marks a configuration or input problem the user can fix
// (e.g. "no blocks discovered"). Exit code 1.
var ErrUser = errors.New("user error")

// ErrFatal marks an I/O failure or broken invariant that indicates
// corrupted state rather than bad input (e.g. a tx-index miss for a
// non-coinbase input). Exit code 2.
var ErrFatal = errors.New("fatal error")

// Fatal names the file/offset a fatal error occurred at, per spec §7's
// "propagates to process termination with a message naming the failing
// file/offset where applicable."
type Fatal struct {
	File   string
	Offset int64
	Err    error
}

func (f *Fatal) Error() string {
	if f.File == "" {
		return fmt.Sprintf("%v", f.Err)
	}
	return fmt.Sprintf("%s @ offset %d: %v", f.File, f.Offset, f.Err)
}

func (f *Fatal) Unwrap() error { return errors.Join(ErrFatal, f.Err) }

// NewFatal wraps err as a Fatal naming the file/offset it occurred at.
func NewFatal(file string, offset int64, err error) error {
	return &Fatal{File: file, Offset: offset, Err: err}
}

// ExitCode maps an error returned from the engine to the process exit
// code spec §6.4/§7 expect.
func ExitCode(err error) int {
	switch {
	case err == nil:
		return 0
	case errors.Is(err, ErrUser):
		return 1
	default:
		return 2
	}
}
