// Package apperr holds the error taxonomy shared by the readings and firmware
// modules. Each typed error wraps one of the sentinels below so callers can
// branch with errors.Is, while the HTTP layer reads Code and Status via errors.As.
package apperr

import (
	"errors"
	"fmt"
	"net/http"
)

type Code string

const (
	CodeMissingField       Code = "MissingField"
	CodeOutOfRange         Code = "OutOfRange"
	CodeInvalidTimestamp   Code = "InvalidTimestamp"
	CodeDuplicateKey       Code = "DuplicateKey"
	CodeNotFound           Code = "NotFound"
	CodeStorageUnavailable Code = "StorageUnavailable"
)

var (
	ErrMissingField       = errors.New("missing field")
	ErrOutOfRange         = errors.New("out of range")
	ErrInvalidTimestamp   = errors.New("invalid timestamp")
	ErrDuplicateKey       = errors.New("duplicate key")
	ErrNotFound           = errors.New("not found")
	ErrStorageUnavailable = errors.New("storage unavailable")

	// ErrInvalidReading matches every input validation failure:
	// MissingField, OutOfRange and InvalidTimestamp.
	ErrInvalidReading = errors.New("invalid reading")
)

// Error is the concrete error carried across module boundaries.
type Error struct {
	Code  Code
	Field string
	Msg   string
	Err   error
}

func (e *Error) Error() string {
	if e.Err != nil && e.Code == CodeStorageUnavailable {
		return fmt.Sprintf("%s: %v", e.Msg, e.Err)
	}
	return e.Msg
}

func (e *Error) Unwrap() []error {
	out := []error{sentinel(e.Code)}
	switch e.Code {
	case CodeMissingField, CodeOutOfRange, CodeInvalidTimestamp:
		out = append(out, ErrInvalidReading)
	}
	if e.Err != nil {
		out = append(out, e.Err)
	}
	return out
}

func sentinel(c Code) error {
	switch c {
	case CodeMissingField:
		return ErrMissingField
	case CodeOutOfRange:
		return ErrOutOfRange
	case CodeInvalidTimestamp:
		return ErrInvalidTimestamp
	case CodeDuplicateKey:
		return ErrDuplicateKey
	case CodeNotFound:
		return ErrNotFound
	default:
		return ErrStorageUnavailable
	}
}

func MissingField(field string) error {
	return &Error{Code: CodeMissingField, Field: field, Msg: fmt.Sprintf("missing required field %q", field)}
}

func OutOfRange(field string, value, lo, hi float64) error {
	return &Error{
		Code:  CodeOutOfRange,
		Field: field,
		Msg:   fmt.Sprintf("%s out of range: %g (must be %g-%g)", field, value, lo, hi),
	}
}

func InvalidTimestamp(raw string, err error) error {
	return &Error{Code: CodeInvalidTimestamp, Field: "timestamp", Msg: fmt.Sprintf("invalid timestamp %s", raw), Err: err}
}

func DuplicateKey(msg string) error {
	return &Error{Code: CodeDuplicateKey, Msg: msg}
}

func NotFound(msg string) error {
	return &Error{Code: CodeNotFound, Msg: msg}
}

// StorageUnavailable wraps a driver error. It is fatal to the request and is
// never retried here.
func StorageUnavailable(op string, err error) error {
	return &Error{Code: CodeStorageUnavailable, Msg: op, Err: err}
}

// HTTPStatus maps err to a response status; unknown errors are 500.
func HTTPStatus(err error) int {
	var e *Error
	if !errors.As(err, &e) {
		return http.StatusInternalServerError
	}
	switch e.Code {
	case CodeMissingField, CodeOutOfRange, CodeInvalidTimestamp:
		return http.StatusBadRequest
	case CodeDuplicateKey:
		return http.StatusConflict
	case CodeNotFound:
		return http.StatusNotFound
	case CodeStorageUnavailable:
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

// CodeOf returns the taxonomy code of err, or "" when err is not an *Error.
func CodeOf(err error) Code {
	var e *Error
	if errors.As(err, &e) {
		return e.Code
	}
	return ""
}
