package dispatch

import "sync/atomic"

// Decision is the arbiter's per-request verdict.
type Decision int

const (
	// UseDegraded routes the request to the locally produced fallback result.
	UseDegraded Decision = iota
	// UseReal attempts the upstream service, with fallback permitted on failure.
	UseReal
	// UseRealNoFallback attempts the upstream service and propagates failures.
	// The operator explicitly demanded real service, so degrading silently
	// would hide the very failures they asked to see.
	UseRealNoFallback
)

func (d Decision) String() string {
	switch d {
	case UseReal:
		return "real"
	case UseRealNoFallback:
		return "real_no_fallback"
	default:
		return "degraded"
	}
}

// ModePrefs is the operator-set mode configuration. It is populated once at
// startup and treated as immutable afterwards, so reads need no locking.
type ModePrefs struct {
	ForceReal     bool
	ForceDegraded bool
	AllowFallback bool
}

// Arbiter decides, per request, whether the system should attempt a real
// upstream call at all. Its only mutable input is the availability signal the
// dispatcher updates after each observed success or failure.
type Arbiter struct {
	prefs     ModePrefs
	available atomic.Bool
}

// NewArbiter returns an arbiter that considers the upstream available until
// the dispatcher observes otherwise.
func NewArbiter(prefs ModePrefs) *Arbiter {
	a := &Arbiter{prefs: prefs}
	a.available.Store(true)
	return a
}

// Decide evaluates the mode state machine fresh for one request.
// ForceDegraded wins over everything, ForceReal over the availability signal.
func (a *Arbiter) Decide() Decision {
	switch {
	case a.prefs.ForceDegraded:
		return UseDegraded
	case a.prefs.ForceReal:
		return UseRealNoFallback
	case a.available.Load():
		return UseReal
	default:
		return UseDegraded
	}
}

// SetRealAvailable records the externally observed upstream availability.
func (a *Arbiter) SetRealAvailable(v bool) {
	a.available.Store(v)
}

// RealAvailable reports the current availability signal.
func (a *Arbiter) RealAvailable() bool {
	return a.available.Load()
}

// AllowFallback reports whether a failed real-mode attempt may degrade.
// It governs post-attempt behavior only; a UseRealNoFallback decision always
// overrides it.
func (a *Arbiter) AllowFallback() bool {
	return a.prefs.AllowFallback
}

// Mode names the configured operating mode for diagnostics.
func (a *Arbiter) Mode() string {
	switch {
	case a.prefs.ForceDegraded:
		return "forced_degraded"
	case a.prefs.ForceReal:
		return "forced_real"
	default:
		return "auto"
	}
}
