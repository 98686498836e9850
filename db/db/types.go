package db

import "fmt"

// Backend names, also used as configuration values.
const (
	BackendFile  = "file"
	BackendSheet = "sheet"
	BackendMem   = "mem"
	BackendPG    = "pg"
)

// BackendError is any I/O, timeout or application-level failure reported by a backend.
type BackendError struct {
	Backend string
	Op      string
	// Code is the upstream application status code, when there is one.
	Code int
	Msg  string
	Err  error
}

func (e *BackendError) Error() string {
	msg := fmt.Sprintf("%s backend: %s failed", e.Backend, e.Op)
	if e.Code != 0 {
		msg += fmt.Sprintf(" (code %d)", e.Code)
	}
	if e.Msg != "" {
		msg += ": " + e.Msg
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *BackendError) Unwrap() error {
	return e.Err
}

// NewBackendError wraps err as a BackendError.
func NewBackendError(backend, op string, err error) *BackendError {
	return &BackendError{Backend: backend, Op: op, Err: err}
}
