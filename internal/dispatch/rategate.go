package dispatch

import (
	"context"
	"sync"
	"time"
)

// Default ceilings. These are conservative safety margins against upstream
// billing surprises, not exact quota mirrors; operators tune them in config.
const (
	DefaultRequestsPerMinute = 15
	DefaultRequestsPerHour   = 100
)

// Gate bounds call issuance against a per-minute and a per-hour ceiling using
// a sliding window over recorded issuance timestamps.
//
// Admission checks and recording are deliberately separate operations: a call
// may pass Admit and still be refused by mode arbitration, in which case it
// must not consume a slot. Because the upstream call itself runs outside the
// lock, two concurrent callers can both pass Admit before either records, so
// the gate is advisory with bounded overshoot rather than a hard semaphore.
type Gate struct {
	mu  sync.Mutex
	log []time.Time

	perMinute int
	perHour   int

	clock func() time.Time
	sleep func(ctx context.Context, d time.Duration) error
}

// NewGate returns a gate with the given ceilings; non-positive values fall
// back to the defaults.
func NewGate(perMinute, perHour int) *Gate {
	if perMinute <= 0 {
		perMinute = DefaultRequestsPerMinute
	}
	if perHour <= 0 {
		perHour = DefaultRequestsPerHour
	}
	return &Gate{
		perMinute: perMinute,
		perHour:   perHour,
		clock:     func() time.Time { return time.Now().UTC() },
		sleep:     sleepContext,
	}
}

// Admit prunes the timestamp log to the trailing hour and reports whether a
// new call may be issued right now. It records nothing.
func (g *Gate) Admit() bool {
	g.mu.Lock()
	defer g.mu.Unlock()

	now := g.clock()
	g.pruneLocked(now)

	if len(g.log) >= g.perHour {
		return false
	}
	return g.minuteCountLocked(now) < g.perMinute
}

// Record appends "now" to the issuance log. Callers record once per call that
// actually proceeds; correctness does not depend on a prior Admit because
// pruning re-evaluates the window on every check.
func (g *Gate) Record() {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.log = append(g.log, g.clock())
}

// WaitForSlot sleeps until the oldest call inside the one-minute window falls
// outside it, when the per-minute ceiling is the limiting factor. It returns
// the duration waited and true after such a wait. When the gate is already
// admissible, or when the hourly ceiling is the limiting factor (no
// short-term remedy; callers degrade instead of blocking for up to an hour),
// it returns false without sleeping.
//
// The sleep happens outside the lock so other callers' admission checks are
// not blocked while one caller waits.
func (g *Gate) WaitForSlot(ctx context.Context) (time.Duration, bool, error) {
	g.mu.Lock()
	now := g.clock()
	g.pruneLocked(now)

	if len(g.log) >= g.perHour {
		g.mu.Unlock()
		return 0, false, nil
	}

	minuteCount := g.minuteCountLocked(now)
	if minuteCount < g.perMinute {
		g.mu.Unlock()
		return 0, false, nil
	}

	oldest := g.log[len(g.log)-minuteCount]
	wait := oldest.Add(time.Minute).Sub(now)
	g.mu.Unlock()

	if wait <= 0 {
		return 0, false, nil
	}
	if err := g.sleep(ctx, wait); err != nil {
		return 0, false, err
	}
	return wait, true, nil
}

// Counts reports how many recorded calls fall inside the trailing minute and
// hour windows. Diagnostic use only.
func (g *Gate) Counts() (minute int, hour int) {
	g.mu.Lock()
	defer g.mu.Unlock()
	now := g.clock()
	g.pruneLocked(now)
	return g.minuteCountLocked(now), len(g.log)
}

// pruneLocked drops entries older than the hour window. Entries are appended
// in non-decreasing order, so a single scan from the front suffices.
func (g *Gate) pruneLocked(now time.Time) {
	cutoff := now.Add(-time.Hour)
	keep := 0
	for keep < len(g.log) && !g.log[keep].After(cutoff) {
		keep++
	}
	if keep > 0 {
		g.log = append(g.log[:0], g.log[keep:]...)
	}
}

func (g *Gate) minuteCountLocked(now time.Time) int {
	cutoff := now.Add(-time.Minute)
	count := 0
	for i := len(g.log) - 1; i >= 0; i-- {
		if !g.log[i].After(cutoff) {
			break
		}
		count++
	}
	return count
}

func sleepContext(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
