// Package failure classifies the errors a commenting run can produce.
//
// Callers use errors.Is against the sentinel kinds below instead of
// matching on message text.
package failure

import (
	"errors"
	"fmt"
	"strings"
)

// Sentinel kinds.
var (
	// ErrInput indicates bad invocation: neither or both targets, a missing
	// path, or a path of the wrong kind.
	ErrInput = errors.New("invalid input")

	// ErrConfig indicates missing or unusable configuration, such as an
	// absent API credential.
	ErrConfig = errors.New("configuration error")

	// ErrProvider indicates the model client failed (auth, quota, network,
	// rejected request).
	ErrProvider = errors.New("provider error")

	// ErrMalformedResponse indicates the model reply could not be turned
	// into the expected shape.
	ErrMalformedResponse = errors.New("malformed response")

	// ErrPartialBatch indicates a batch reply that omitted requested files.
	ErrPartialBatch = errors.New("partial batch")

	// ErrIO indicates a local read or write failure on a specific path.
	ErrIO = errors.New("i/o error")
)

// Error wraps an underlying error with a kind, the operation that failed and
// the path involved, if any.
type Error struct {
	Kind error
	Op   string
	Path string
	Err  error
}

func (e *Error) Error() string {
	var b strings.Builder
	b.WriteString(e.Op)
	if e.Path != "" {
		b.WriteString(" ")
		b.WriteString(e.Path)
	}
	b.WriteString(": ")
	b.WriteString(e.Kind.Error())
	if e.Err != nil {
		b.WriteString(": ")
		b.WriteString(e.Err.Error())
	}
	return b.String()
}

// Unwrap returns the underlying error.
func (e *Error) Unwrap() error {
	return e.Err
}

// Is reports whether the error's kind matches target.
func (e *Error) Is(target error) bool {
	return errors.Is(e.Kind, target)
}

// New creates a classified error.
func New(kind error, op, path string, err error) *Error {
	return &Error{Kind: kind, Op: op, Path: path, Err: err}
}

// Input is shorthand for an ErrInput built from a format string.
func Input(op, path, format string, args ...any) *Error {
	return New(ErrInput, op, path, fmt.Errorf(format, args...))
}

// IO wraps a local file-system error for path. Returns nil if err is nil.
func IO(op, path string, err error) error {
	if err == nil {
		return nil
	}
	return New(ErrIO, op, path, err)
}

// PartialBatchError lists the files that were sent but did not come back.
// Files that did come back have already been written when this is returned.
type PartialBatchError struct {
	Missing []string
}

func (e *PartialBatchError) Error() string {
	return fmt.Sprintf("%v: %d file(s) missing from reply: %s",
		ErrPartialBatch, len(e.Missing), strings.Join(e.Missing, ", "))
}

// Is reports whether target is ErrPartialBatch.
func (e *PartialBatchError) Is(target error) bool {
	return target == ErrPartialBatch
}
