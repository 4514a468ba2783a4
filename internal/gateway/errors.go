package gateway

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
)

// Code classifies a failed gateway operation for the caller.
type Code string

const (
	// CodeNetwork means the request never completed. Retrying is the
	// caller's choice; the store never retries on its own.
	CodeNetwork Code = "NETWORK"

	// CodeValidation means the server rejected the payload.
	CodeValidation Code = "VALIDATION"

	// CodeNotFound means the id vanished server-side.
	CodeNotFound Code = "NOT_FOUND"

	// CodeUnauthorized means the credential was rejected. The store treats
	// this as an ordinary failure; routing to a logout flow is up to the
	// caller.
	CodeUnauthorized Code = "UNAUTHORIZED"

	// CodeServer means an opaque 5xx-class failure.
	CodeServer Code = "SERVER"
)

// Error is a classified gateway failure.
type Error struct {
	Code    Code
	Status  int // HTTP status, 0 when the request never completed
	Message string
	cause   error
}

// Error implements the error interface.
func (e *Error) Error() string {
	if e.Status > 0 {
		return fmt.Sprintf("gateway: %s (%d): %s", e.Code, e.Status, e.Message)
	}
	return fmt.Sprintf("gateway: %s: %s", e.Code, e.Message)
}

// Unwrap exposes the underlying transport error, if any.
func (e *Error) Unwrap() error { return e.cause }

// ErrorCode extracts the classification from any error. Unclassified errors
// report CodeNetwork when wrapping a transport failure is impossible to
// distinguish; callers should only see *Error values from this package.
func ErrorCode(err error) (Code, bool) {
	var gerr *Error
	if errors.As(err, &gerr) {
		return gerr.Code, true
	}
	return "", false
}

// IsCode reports whether err carries the given classification.
func IsCode(err error, code Code) bool {
	got, ok := ErrorCode(err)
	return ok && got == code
}

func networkError(err error) *Error {
	return &Error{Code: CodeNetwork, Message: err.Error(), cause: err}
}

// detailBody mirrors the service error body {"detail": "..."}.
type detailBody struct {
	Detail string `json:"detail"`
}

func statusError(status int, body []byte) *Error {
	msg := http.StatusText(status)
	var detail detailBody
	if err := json.Unmarshal(body, &detail); err == nil && detail.Detail != "" {
		msg = detail.Detail
	}

	code := CodeServer
	switch {
	case status == http.StatusNotFound:
		code = CodeNotFound
	case status == http.StatusUnauthorized || status == http.StatusForbidden:
		code = CodeUnauthorized
	case status >= 400 && status < 500:
		code = CodeValidation
	}
	return &Error{Code: code, Status: status, Message: msg}
}
