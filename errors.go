package imgio

import (
	"errors"
	"fmt"
)

// Code classifies the errors returned by this package.
type Code int

// Error codes.
const (
	Success Code = iota
	// BadFormat: an invalid, disabled or inconsistent pixel format was requested.
	BadFormat
	// InternalFailure: a pixel format invariant was violated.
	InternalFailure
	// InvalidArgument: dimensions or buffer sizes do not match.
	InvalidArgument
	OpenFailedEmptyInput
	UnsupportedFileType
	LoadFailed
	WriteFailed
	InvalidEncodeArgs
)

var codeText = map[Code]string{
	Success:              "success",
	BadFormat:            "bad format",
	InternalFailure:      "internal failure",
	InvalidArgument:      "invalid argument",
	OpenFailedEmptyInput: "empty input",
	UnsupportedFileType:  "unsupported file type",
	LoadFailed:           "load failed",
	WriteFailed:          "write failed",
	InvalidEncodeArgs:    "invalid encode arguments",
}

func (c Code) String() string {
	if s, ok := codeText[c]; ok {
		return s
	}
	return fmt.Sprintf("code(%d)", int(c))
}

// Error is the error type returned by every fallible operation of this package.
type Error struct {
	Code    Code
	Op      string // operation name
	Details string // human-readable details
	Err     error  // underlying codec or I/O error, if any
}

func (e *Error) Error() string {
	msg := e.Code.String()
	if e.Op != "" {
		msg = e.Op + ": " + msg
	}
	if e.Details != "" {
		msg += ": " + e.Details
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *Error) Unwrap() error { return e.Err }

// Is reports whether target is an *Error with the same Code.
// It makes the Err* sentinels below usable with errors.Is.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	return ok && t.Code == e.Code && t.Op == "" && t.Details == "" && t.Err == nil
}

// Sentinel errors, one per code, for use with errors.Is.
var (
	ErrBadFormat            = &Error{Code: BadFormat}
	ErrInternalFailure      = &Error{Code: InternalFailure}
	ErrInvalidArgument      = &Error{Code: InvalidArgument}
	ErrOpenFailedEmptyInput = &Error{Code: OpenFailedEmptyInput}
	ErrUnsupportedFileType  = &Error{Code: UnsupportedFileType}
	ErrLoadFailed           = &Error{Code: LoadFailed}
	ErrWriteFailed          = &Error{Code: WriteFailed}
	ErrInvalidEncodeArgs    = &Error{Code: InvalidEncodeArgs}
)

func newError(code Code, op, format string, a ...any) *Error {
	return &Error{Code: code, Op: op, Details: fmt.Sprintf(format, a...)}
}

func wrapError(code Code, op string, err error) error {
	if err == nil {
		return nil
	}
	var e *Error
	if errors.As(err, &e) {
		return err
	}
	return &Error{Code: code, Op: op, Err: err}
}

// CodeOf returns the Code carried by err: Success for nil and
// InternalFailure for errors that did not originate in this package.
func CodeOf(err error) Code {
	if err == nil {
		return Success
	}
	var e *Error
	if errors.As(err, &e) {
		return e.Code
	}
	return InternalFailure
}

// Details returns the human-readable details of err, if it is an *Error.
func Details(err error) string {
	var e *Error
	if errors.As(err, &e) {
		return e.Details
	}
	if err != nil {
		return err.Error()
	}
	return ""
}
