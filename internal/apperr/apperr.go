// Package apperr defines the error kinds produced by the processing pipeline.
//
// Only DecodeError and ValidationError ever reach a caller. Every other kind
// is recovered inside the pipeline with a documented fallback and is kept
// around for logging and for the per-request record.
package apperr

import (
	"errors"
	"fmt"
)

// Kind classifies a pipeline failure.
type Kind string

const (
	DecodeError                 Kind = "decode_error"
	ValidationError             Kind = "validation_error"
	UpstreamTimeout             Kind = "upstream_timeout"
	EnhancementOperationFailure Kind = "enhancement_operation_failure"
	PlacementFailure            Kind = "placement_failure"
	RenderFailure               Kind = "render_failure"
)

// Surfaced reports whether errors of this kind are returned to the caller.
func (k Kind) Surfaced() bool {
	return k == DecodeError || k == ValidationError
}

// Error is a pipeline failure tagged with its Kind.
type Error struct {
	Kind Kind
	Msg  string
	Err  error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Msg, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Msg)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// New creates an Error of the given kind.
func New(kind Kind, format string, args ...any) *Error {
	return &Error{Kind: kind, Msg: fmt.Sprintf(format, args...)}
}

// Wrap attaches a kind and message to an underlying error.
func Wrap(kind Kind, err error, format string, args ...any) *Error {
	return &Error{Kind: kind, Msg: fmt.Sprintf(format, args...), Err: err}
}

// KindOf returns the kind of the first *Error in err's chain, or "" if none.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return ""
}

// Is reports whether err carries the given kind.
func Is(err error, kind Kind) bool {
	return err != nil && KindOf(err) == kind
}
