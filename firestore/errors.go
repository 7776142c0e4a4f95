package firestore

import (
	"errors"
	"fmt"
)

// ErrNotFound is returned by GetDocument when the document does not exist.
// A missing document is not a store failure.
var ErrNotFound = errors.New("document not found")

// UnavailableError wraps transport-level failures (DNS, TLS, timeout,
// connection refused) reaching the document store.
type UnavailableError struct {
	Op  string
	Err error
}

func (e *UnavailableError) Error() string {
	return fmt.Sprintf("document store unavailable (%s): %v", e.Op, e.Err)
}

func (e *UnavailableError) Unwrap() error {
	return e.Err
}

// WriteError means the store accepted the connection but rejected the
// request. It carries the upstream status and body for the error report.
type WriteError struct {
	StatusCode int
	Body       string
}

func (e *WriteError) Error() string {
	return fmt.Sprintf("document store error %d: %s", e.StatusCode, e.Body)
}

// ReadError means the store rejected a fetch, listing or query. It is
// distinct from WriteError so callers can tell a failed pull from a
// failed push.
type ReadError struct {
	StatusCode int
	Body       string
}

func (e *ReadError) Error() string {
	return fmt.Sprintf("document store read error %d: %s", e.StatusCode, e.Body)
}

// DecodeError means a response or a stored value could not be mapped to
// the native value model.
type DecodeError struct {
	Reason string
	Err    error
}

func (e *DecodeError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("decode %s: %v", e.Reason, e.Err)
	}
	return "decode " + e.Reason
}

func (e *DecodeError) Unwrap() error {
	return e.Err
}
