package dispatch

import (
	"errors"
	"fmt"
)

// ErrRateLimited marks an attempt refused because a rate ceiling left no
// usable slot. It is transient and credential-independent: it consumes an
// attempt but never rotates the ring.
var ErrRateLimited = errors.New("rate limit ceiling reached")

// QuotaSignaler classifies an upstream error as quota exhaustion. Drivers
// attach it to their typed errors; the dispatcher discovers it with errors.As
// instead of inspecting provider-specific payloads.
type QuotaSignaler interface {
	QuotaExhausted() bool
}

// IsQuotaExhausted reports whether err signals credential quota exhaustion.
func IsQuotaExhausted(err error) bool {
	var sig QuotaSignaler
	return errors.As(err, &sig) && sig.QuotaExhausted()
}

// RingExhaustedError is returned when every credential in the ring reported
// quota exhaustion and fallback was not permitted.
type RingExhaustedError struct {
	Attempts  int
	Rotations int
}

func (e *RingExhaustedError) Error() string {
	return fmt.Sprintf("all credentials exhausted after %d attempts (%d rotations)", e.Attempts, e.Rotations)
}

// IsRingExhausted reports whether err is a ring exhaustion failure.
func IsRingExhausted(err error) bool {
	var target *RingExhaustedError
	return errors.As(err, &target)
}

// ErrorKind names the dispatch error taxonomy for metrics and audit records.
func ErrorKind(err error) string {
	switch {
	case err == nil:
		return ""
	case IsRingExhausted(err):
		return "ring_exhausted"
	case errors.Is(err, ErrRateLimited):
		return "rate_limited"
	case IsQuotaExhausted(err):
		return "quota_exhausted"
	default:
		return "upstream_error"
	}
}
