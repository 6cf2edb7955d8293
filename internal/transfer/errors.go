// SPDX-License-Identifier: MPL-2.0

package transfer

import (
	"errors"
	"fmt"
)

var (
	// ErrUnreachable indicates the artifact source could not be contacted,
	// answered with an unusable response, or closed the stream early.
	ErrUnreachable = errors.New("artifact source unreachable")

	// ErrIO indicates a local filesystem failure.
	ErrIO = errors.New("local file operation failed")

	// ErrCancelled indicates the transfer was stopped by its context. The
	// partial file and marker are left resumable.
	ErrCancelled = errors.New("transfer cancelled")
)

// Error describes a failed transfer step. It unwraps to both its Kind
// sentinel and the underlying cause.
type Error struct {
	Kind error  // ErrUnreachable, ErrIO or ErrCancelled
	Op   string // Step that failed, e.g. "probe", "open partial"
	Path string // URL (redacted) or file path involved
	Err  error  // Underlying cause, may be nil
}

// Error implements the error interface.
func (e *Error) Error() string {
	msg := fmt.Sprintf("%s %s", e.Op, e.Path)
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return fmt.Sprintf("%s: %s", e.Kind, msg)
}

// Unwrap returns the kind sentinel and the cause for errors.Is/As.
func (e *Error) Unwrap() []error {
	if e.Err == nil {
		return []error{e.Kind}
	}
	return []error{e.Kind, e.Err}
}

func unreachable(op, path string, err error) *Error {
	return &Error{Kind: ErrUnreachable, Op: op, Path: path, Err: err}
}

func ioFailure(op, path string, err error) *Error {
	return &Error{Kind: ErrIO, Op: op, Path: path, Err: err}
}

func cancelled(path string, cause error) *Error {
	return &Error{Kind: ErrCancelled, Op: "download", Path: path, Err: cause}
}
