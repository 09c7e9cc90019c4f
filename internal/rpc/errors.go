// Package rpc defines the contract between the pages and the server: the
// procedure names and their input/output types, the error taxonomy and a
// typed HTTP client.
package rpc

import (
	"errors"
	"net/http"
)

// Code is the machine-readable error code carried in error responses.
type Code string

const (
	CodeBadRequest      Code = "BAD_REQUEST"
	CodeUnauthorized    Code = "UNAUTHORIZED"
	CodeForbidden       Code = "FORBIDDEN"
	CodeNotFound        Code = "NOT_FOUND"
	CodeConflict        Code = "CONFLICT"
	CodePayloadTooLarge Code = "PAYLOAD_TOO_LARGE"
	CodeTooManyRequests Code = "TOO_MANY_REQUESTS"
	CodeInternal        Code = "INTERNAL_SERVER_ERROR"
)

// HTTPStatus maps the code to its response status.
func (c Code) HTTPStatus() int {
	switch c {
	case CodeBadRequest:
		return http.StatusBadRequest
	case CodeUnauthorized:
		return http.StatusUnauthorized
	case CodeForbidden:
		return http.StatusForbidden
	case CodeNotFound:
		return http.StatusNotFound
	case CodeConflict:
		return http.StatusConflict
	case CodePayloadTooLarge:
		return http.StatusRequestEntityTooLarge
	case CodeTooManyRequests:
		return http.StatusTooManyRequests
	}
	return http.StatusInternalServerError
}

// CodeFromStatus is the inverse of HTTPStatus, used by the client when a
// response carries no envelope.
func CodeFromStatus(status int) Code {
	switch status {
	case http.StatusBadRequest:
		return CodeBadRequest
	case http.StatusUnauthorized:
		return CodeUnauthorized
	case http.StatusForbidden:
		return CodeForbidden
	case http.StatusNotFound:
		return CodeNotFound
	case http.StatusConflict:
		return CodeConflict
	case http.StatusRequestEntityTooLarge:
		return CodePayloadTooLarge
	case http.StatusTooManyRequests:
		return CodeTooManyRequests
	}
	return CodeInternal
}

// Issue is a field-level validation problem.
type Issue struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

// Error is the result of a failed procedure.  Message is safe to show to
// end users; Cause keeps the underlying failure for logs and is never
// serialised.
type Error struct {
	Code    Code    `json:"code"`
	Message string  `json:"message"`
	Issues  []Issue `json:"issues,omitempty"`
	Cause   error   `json:"-"`
}

func (e *Error) Error() string {
	if e.Cause != nil {
		return string(e.Code) + ": " + e.Message + ": " + e.Cause.Error()
	}
	return string(e.Code) + ": " + e.Message
}

func (e *Error) Unwrap() error { return e.Cause }

// NewError builds an Error.  An empty message falls back to a default for
// the code.
func NewError(code Code, message string, cause error) *Error {
	if message == "" {
		message = defaultMessage(code)
	}
	return &Error{Code: code, Message: message, Cause: cause}
}

func BadRequest(message string, cause error) *Error {
	return NewError(CodeBadRequest, message, cause)
}

func Unauthorized(message string, cause error) *Error {
	return NewError(CodeUnauthorized, message, cause)
}

func NotFound(message string, cause error) *Error {
	return NewError(CodeNotFound, message, cause)
}

func Conflict(message string, cause error) *Error {
	return NewError(CodeConflict, message, cause)
}

func Internal(cause error) *Error {
	return NewError(CodeInternal, "", cause)
}

// From converts any error into an *Error, treating unknown errors as
// internal failures.
func From(err error) *Error {
	if err == nil {
		return nil
	}
	var rerr *Error
	if errors.As(err, &rerr) {
		return rerr
	}
	return Internal(err)
}

// CodeOf returns the code of err, or "" when err is nil.
func CodeOf(err error) Code {
	if err == nil {
		return ""
	}
	return From(err).Code
}

func defaultMessage(code Code) string {
	switch code {
	case CodeBadRequest:
		return "bad request"
	case CodeUnauthorized:
		return "unauthorized"
	case CodeForbidden:
		return "forbidden"
	case CodeNotFound:
		return "not found"
	case CodeConflict:
		return "conflict"
	case CodeTooManyRequests:
		return "too many requests"
	}
	return "internal server error"
}
