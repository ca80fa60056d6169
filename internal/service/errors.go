package service

import (
	"errors"
	"fmt"
)

// ErrorKind classifies generation failures for callers.
type ErrorKind int

const (
	// KindInvalidInput means the request itself was unusable. Nothing was written.
	KindInvalidInput ErrorKind = iota + 1
	// KindProcessing means a valid request failed inside the pipeline.
	KindProcessing
)

func (k ErrorKind) String() string {
	switch k {
	case KindInvalidInput:
		return "invalid_input"
	case KindProcessing:
		return "processing_failure"
	default:
		return "unknown"
	}
}

// Error is returned by the generator for every failed request.
type Error struct {
	Kind ErrorKind
	Op   string // pipeline step that failed
	Msg  string // client facing message, set for invalid input
	Err  error
}

func (e *Error) Error() string {
	switch {
	case e.Msg != "":
		return e.Msg
	case e.Op != "" && e.Err != nil:
		return fmt.Sprintf("%s: %v", e.Op, e.Err)
	case e.Err != nil:
		return e.Err.Error()
	default:
		return e.Kind.String()
	}
}

func (e *Error) Unwrap() error { return e.Err }

func invalidInput(err error, format string, args ...interface{}) *Error {
	return &Error{Kind: KindInvalidInput, Msg: fmt.Sprintf(format, args...), Err: err}
}

func processingFailure(op string, err error) *Error {
	return &Error{Kind: KindProcessing, Op: op, Err: err}
}

// KindOf reports the kind of err, or 0 when err did not come from the generator.
func KindOf(err error) ErrorKind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return 0
}

// IsInvalidInput reports whether err was caused by the request itself.
func IsInvalidInput(err error) bool {
	return KindOf(err) == KindInvalidInput
}
