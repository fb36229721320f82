// Package imgerr defines the error taxonomy shared by discovery, validation,
// per-file processing and the final batch report.
package imgerr

import (
	"errors"
	"fmt"
	"strings"

	"go.uber.org/multierr"
)

// Kind classifies where in a run an error happened. Discovery and validation
// errors are fatal for the whole run; the rest fail a single file.
type Kind string

const (
	KindDiscovery      Kind = "discovery"
	KindValidation     Kind = "validation"
	KindDecode         Kind = "decode"
	KindDegenerateSize Kind = "degenerate_size"
	KindEncode         Kind = "encode"
	KindWrite          Kind = "write"
	KindInterrupted    Kind = "interrupted"
)

// Fatal reports whether an error of this kind stops the run before any file
// is processed.
func (k Kind) Fatal() bool {
	return k == KindDiscovery || k == KindValidation
}

// Error is a classified failure. Input and Task are empty when they do not
// apply (a bad --quality value has neither).
type Error struct {
	Kind  Kind
	Input string
	Task  string
	Err   error
}

func (e *Error) Error() string {
	var b strings.Builder
	b.WriteString(string(e.Kind))
	if e.Input != "" {
		b.WriteString(": ")
		b.WriteString(e.Input)
	}
	if e.Task != "" {
		b.WriteString(" [")
		b.WriteString(e.Task)
		b.WriteString("]")
	}
	if e.Err != nil {
		b.WriteString(": ")
		b.WriteString(e.Err.Error())
	}
	return b.String()
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Is reports whether any error in err's chain is an *Error of the given kind.
func Is(err error, kind Kind) bool {
	var target *Error
	for err != nil {
		if !errors.As(err, &target) {
			return false
		}
		if target.Kind == kind {
			return true
		}
		err = target.Err
	}
	return false
}

// KindOf returns the kind of the outermost *Error in err's chain, or "".
func KindOf(err error) Kind {
	var target *Error
	if errors.As(err, &target) {
		return target.Kind
	}
	return ""
}

func New(kind Kind, input string, err error) *Error {
	return &Error{Kind: kind, Input: input, Err: err}
}

var (
	Discovery = func(input string, err error) *Error {
		return &Error{Kind: KindDiscovery, Input: input, Err: err}
	}
	Validation = func(format string, args ...any) *Error {
		return &Error{Kind: KindValidation, Err: fmt.Errorf(format, args...)}
	}
	Decode = func(input string, err error) *Error {
		return &Error{Kind: KindDecode, Input: input, Err: err}
	}
	DegenerateSize = func(input, task string, width, height, scale int) *Error {
		return &Error{
			Kind:  KindDegenerateSize,
			Input: input,
			Task:  task,
			Err:   fmt.Errorf("resulting dimensions too small: %dx%d (scale: %d%%)", width, height, scale),
		}
	}
	Encode = func(input string, err error) *Error {
		return &Error{Kind: KindEncode, Input: input, Err: err}
	}
	Write = func(input string, err error) *Error {
		return &Error{Kind: KindWrite, Input: input, Err: err}
	}
	Interrupted = func(input string, err error) *Error {
		return &Error{Kind: KindInterrupted, Input: input, Err: err}
	}
)

// WithTask returns err labelled with the input file and task. Errors that
// are not an *Error are wrapped as kind fallback.
func WithTask(err error, input, task string, fallback Kind) *Error {
	var e *Error
	if errors.As(err, &e) {
		cp := *e
		cp.Input = input
		cp.Task = task
		return &cp
	}
	return &Error{Kind: fallback, Input: input, Task: task, Err: err}
}

// AggregateError is returned at the end of a run in which one or more files
// failed. Errors are kept in the order the files finished.
type AggregateError struct {
	Errors []error
}

// NewAggregate flattens a multierr-combined error into an AggregateError.
// It returns nil when combined is nil.
func NewAggregate(combined error) *AggregateError {
	errs := multierr.Errors(combined)
	if len(errs) == 0 {
		return nil
	}
	return &AggregateError{Errors: errs}
}

func (e *AggregateError) Error() string {
	if len(e.Errors) == 1 {
		return "1 image was not processed correctly"
	}
	return fmt.Sprintf("%d images were not processed correctly", len(e.Errors))
}

func (e *AggregateError) Unwrap() []error {
	return e.Errors
}

// Len is the number of failed files.
func (e *AggregateError) Len() int {
	return len(e.Errors)
}
