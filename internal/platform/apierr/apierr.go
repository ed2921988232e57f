package apierr

import (
	"errors"
	"fmt"
	"net/http"
)

// Error is the HTTP-facing error carried from services up to handlers.
// Status and Code are what the client sees; Err keeps the internal cause
// for logs.
type Error struct {
	Status int
	Code   string
	Err    error
}

func (e *Error) Error() string {
	if e == nil {
		return ""
	}
	if e.Err != nil {
		return e.Err.Error()
	}
	if e.Code != "" {
		return e.Code
	}
	if e.Status != 0 {
		return fmt.Sprintf("api error (%d)", e.Status)
	}
	return "api error"
}

func (e *Error) Unwrap() error { return e.Err }

func New(status int, code string, err error) *Error {
	return &Error{Status: status, Code: code, Err: err}
}

// E formats a message into a new *Error, saving the fmt.Errorf boilerplate
// at call sites.
func E(status int, code, format string, args ...any) *Error {
	return &Error{Status: status, Code: code, Err: fmt.Errorf(format, args...)}
}

// From pulls the *Error out of a wrapped chain, or classifies plain errors
// as internal so handlers always have a status to respond with.
func From(err error) *Error {
	if err == nil {
		return nil
	}
	var ae *Error
	if errors.As(err, &ae) {
		return ae
	}
	return &Error{Status: http.StatusInternalServerError, Code: "internal", Err: err}
}
