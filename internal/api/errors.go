package api

import (
	"errors"
	"fmt"
)

// ErrSessionExpired is the one refresh-path error that is fatal to the
// session: the caller must drop credentials instead of retrying.
var ErrSessionExpired = errors.New("session expired")

// NetworkError wraps a transport-level failure. The next periodic trigger
// is the retry; nothing in the client loops.
type NetworkError struct {
	Err error
}

func (e *NetworkError) Error() string { return "network error: " + e.Err.Error() }
func (e *NetworkError) Unwrap() error { return e.Err }

// ServerError is a non-2xx response that is not an auth failure.
type ServerError struct {
	Status  int
	Message string
}

func (e *ServerError) Error() string {
	if e.Message != "" {
		return fmt.Sprintf("server error (%d): %s", e.Status, e.Message)
	}
	return fmt.Sprintf("server error (%d)", e.Status)
}
