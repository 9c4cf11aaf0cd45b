package coordinator

import (
	"errors"
	"fmt"
)

// Sentinel errors. Callers should check with errors.Is against these,
// never against the concrete CoordinatorError type.
var (
	// ErrConcurrentModification is the only expected, recoverable
	// failure: another client's artifact was observed at a check
	// point, or the Adjudicator fenced the attempt. Callers should
	// retry the whole Commit call after backoff.
	ErrConcurrentModification = errors.New("coordinator: concurrent modification detected")

	// ErrCorruptLayout is raised when a filename that should parse as
	// an integer (or as an archive tombstone name) does not. The
	// implementation does not attempt to repair the layout.
	ErrCorruptLayout = errors.New("coordinator: corrupt persisted layout")
)

// CoordinatorError wraps a sentinel error with the operational context
// needed to diagnose a failed commit attempt: which version/attempt it
// happened under, and which client.
type CoordinatorError struct {
	// Op names the phase that failed: "resolve_version", "resolve_attempt",
	// "precommit", "commit", "publish", "adjudicate", "archive", "gc".
	Op string

	// Version and Attempt identify where in the protocol the failure
	// occurred.
	Version int
	Attempt int

	// ClientID is the caller's own id for "precommit" and "commit"
	// failures. For "adjudicate" it is the id of the abandoned client
	// whose hint was recovered, or empty when the attempt was fenced or
	// simply contended (no id is generated before adjudication).
	ClientID string

	// Err is the wrapped sentinel error.
	Err error
}

func (e *CoordinatorError) Error() string {
	return fmt.Sprintf("coordinator %s: %s (version=%d, attempt=%d, client=%s)",
		e.Op, e.Err, e.Version, e.Attempt, e.ClientID)
}

// Unwrap lets errors.Is/errors.As match through to the sentinel.
func (e *CoordinatorError) Unwrap() error {
	return e.Err
}

// newError builds a CoordinatorError wrapping err with commit context.
func newError(op string, version, attempt int, clientID string, err error) *CoordinatorError {
	return &CoordinatorError{
		Op:       op,
		Version:  version,
		Attempt:  attempt,
		ClientID: clientID,
		Err:      err,
	}
}
