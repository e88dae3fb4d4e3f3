// ABOUTME: Error taxonomy for backend calls and gateway fallback exhaustion.
// ABOUTME: Distinguishes transport-level unavailability from generation-level failures.

package backend

import (
	"fmt"
	"strings"
)

// UnavailableError indicates a transport-level failure: the backend could not
// be reached or refused the connection. The gateway falls back to the next
// configured backend on this error.
type UnavailableError struct {
	Backend string
	Reason  error
}

func (e *UnavailableError) Error() string {
	return fmt.Sprintf("backend %q unavailable: %v", e.Backend, e.Reason)
}

func (e *UnavailableError) Unwrap() error { return e.Reason }

// BackendError indicates the backend was reached but the generation itself
// failed (bad request, content refusal, server-side error). The gateway does
// not fall back on this error: the selected backend answered, and its answer
// was a failure.
type BackendError struct {
	Backend string
	Message string
}

func (e *BackendError) Error() string {
	return fmt.Sprintf("backend %q: %s", e.Backend, e.Message)
}

// Attempt records one failed backend try during fallback.
type Attempt struct {
	Backend string
	Reason  error
}

// NoBackendAvailableError is returned when every backend in the fallback
// order was tried and none could serve the request. Attempts preserves the
// order in which backends were tried and why each failed.
type NoBackendAvailableError struct {
	Attempts []Attempt
}

func (e *NoBackendAvailableError) Error() string {
	if len(e.Attempts) == 0 {
		return "no backend available: none configured"
	}
	parts := make([]string, len(e.Attempts))
	for i, a := range e.Attempts {
		parts[i] = fmt.Sprintf("%s (%v)", a.Backend, a.Reason)
	}
	return "no backend available, tried: " + strings.Join(parts, ", ")
}
