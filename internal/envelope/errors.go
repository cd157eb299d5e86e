package envelope

import (
	"errors"
	"fmt"
)

// Kind classifies a failed call. Callers branch on the kind, never on the
// message text.
type Kind string

const (
	// KindTimeout means the per-attempt deadline elapsed before a response arrived.
	KindTimeout Kind = "timeout"
	// KindNetworkError covers DNS, connection, and other transport failures.
	KindNetworkError Kind = "network_error"
	// KindServerError carries a terminal HTTP status (non-retryable 4xx, or 5xx after retries).
	KindServerError Kind = "server_error"
	// KindAuthRejected marks a 401/403 response. Never retried; the stored
	// session must be cleared before the caller sees this error.
	KindAuthRejected Kind = "auth_rejected"
	// KindInvalidSchema marks a response body that failed structural validation.
	KindInvalidSchema Kind = "invalid_schema"
	// KindCaptureError marks an unusable image payload (no frame, bad file).
	KindCaptureError Kind = "capture_error"
	// KindRateLimited marks a locally enforced cooldown, not a server response.
	KindRateLimited Kind = "rate_limited"
)

// Error is the tagged failure type returned by every envelope call.
type Error struct {
	Kind   Kind
	Status int // HTTP status when one was observed, zero otherwise
	Err    error
}

func (e *Error) Error() string {
	switch {
	case e.Status != 0 && e.Err != nil:
		return fmt.Sprintf("%s (status %d): %v", e.Kind, e.Status, e.Err)
	case e.Status != 0:
		return fmt.Sprintf("%s (status %d)", e.Kind, e.Status)
	case e.Err != nil:
		return fmt.Sprintf("%s: %v", e.Kind, e.Err)
	default:
		return string(e.Kind)
	}
}

func (e *Error) Unwrap() error { return e.Err }

// NewError constructs a classified error.
func NewError(kind Kind, err error) *Error {
	return &Error{Kind: kind, Err: err}
}

// NewStatusError constructs a classified error carrying an HTTP status.
func NewStatusError(kind Kind, status int, err error) *Error {
	return &Error{Kind: kind, Status: status, Err: err}
}

// KindOf extracts the Kind from err, or empty string when err is not an
// envelope error (including nil and caller cancellation).
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return ""
}
