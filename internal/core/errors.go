package core

import (
	"context"
	"errors"
	"fmt"
)

var (
	ErrRateLimited     = errors.New("rate limit exceeded")
	ErrAccessDenied    = errors.New("access denied")
	ErrBackendTimeout  = errors.New("model backend timed out")
	ErrBackend         = errors.New("model backend failed")
	ErrSessionNotFound = errors.New("session not found")
	ErrPersistence     = errors.New("persistence failed")
	ErrQueueFull       = errors.New("task queue is full")
	ErrInvalidRequest  = errors.New("invalid request")
)

type ErrorKind string

const (
	KindNone             ErrorKind = ""
	KindRateLimited      ErrorKind = "rate_limited"
	KindAccessDenied     ErrorKind = "access_denied"
	KindBackendTimeout   ErrorKind = "backend_timeout"
	KindBackendError     ErrorKind = "backend_error"
	KindPersistenceError ErrorKind = "persistence_error"
	KindInvalidRequest   ErrorKind = "invalid_request"
)

// BackendError is returned by model backends on transport failure,
// non-2xx responses and deadline expiry.
type BackendError struct {
	Provider   string
	StatusCode int
	Timeout    bool
	Err        error
}

func (e *BackendError) Error() string {
	switch {
	case e.Timeout:
		return fmt.Sprintf("%s: timeout: %v", e.Provider, e.Err)
	case e.StatusCode != 0:
		return fmt.Sprintf("%s: http %d: %v", e.Provider, e.StatusCode, e.Err)
	default:
		return fmt.Sprintf("%s: %v", e.Provider, e.Err)
	}
}

func (e *BackendError) Unwrap() error {
	return e.Err
}

func (e *BackendError) Is(target error) bool {
	if e.Timeout {
		return target == ErrBackendTimeout
	}
	return target == ErrBackend
}

// KindOf classifies err into the kind reported to callers.
func KindOf(err error) ErrorKind {
	switch {
	case err == nil:
		return KindNone
	case errors.Is(err, ErrRateLimited):
		return KindRateLimited
	case errors.Is(err, ErrAccessDenied):
		return KindAccessDenied
	case errors.Is(err, ErrBackendTimeout), errors.Is(err, context.DeadlineExceeded):
		return KindBackendTimeout
	case errors.Is(err, ErrBackend):
		return KindBackendError
	case errors.Is(err, ErrPersistence):
		return KindPersistenceError
	case errors.Is(err, ErrInvalidRequest):
		return KindInvalidRequest
	default:
		return KindBackendError
	}
}
