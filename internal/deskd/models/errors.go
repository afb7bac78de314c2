package models

import (
	"errors"
	"time"
)

// Error codes returned in ErrorResponse.Code
const (
	CodeInvalidRequest   = "invalid_request"
	CodeUnauthorized     = "unauthorized"
	CodeForbidden        = "forbidden"
	CodeNotFound         = "not_found"
	CodeGenerationFailed = "generation_failed"
	CodeChannelTimeout   = "channel_timeout"
	CodeStorageError     = "storage_error"
	CodeInternal         = "internal_error"
)

var (
	ErrInvalidRequest = errors.New("invalid request")
	ErrUnauthorized   = errors.New("unauthorized")
	ErrForbidden      = errors.New("forbidden")
	ErrNotFound       = errors.New("not found")
	ErrStorage        = errors.New("storage error")
)

// ErrorResponse is the body of every synchronous error
type ErrorResponse struct {
	Code    string    `json:"code"`
	Error   string    `json:"error"`
	Details string    `json:"details,omitempty"`
	Time    time.Time `json:"time"`
}

// CodeFor maps an error to its taxonomy code.
func CodeFor(err error) string {
	switch {
	case errors.Is(err, ErrInvalidRequest):
		return CodeInvalidRequest
	case errors.Is(err, ErrUnauthorized):
		return CodeUnauthorized
	case errors.Is(err, ErrForbidden):
		return CodeForbidden
	case errors.Is(err, ErrNotFound):
		return CodeNotFound
	case errors.Is(err, ErrStorage):
		return CodeStorageError
	default:
		return CodeInternal
	}
}
