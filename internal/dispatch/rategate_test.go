package dispatch

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func newTestGate(perMinute, perHour int, start time.Time) (*Gate, *time.Time) {
	now := start
	gate := NewGate(perMinute, perHour)
	gate.clock = func() time.Time { return now }
	return gate, &now
}

func TestGateDefaults(t *testing.T) {
	gate := NewGate(0, 0)
	require.Equal(t, DefaultRequestsPerMinute, gate.perMinute)
	require.Equal(t, DefaultRequestsPerHour, gate.perHour)
}

func TestGateMinuteCeiling(t *testing.T) {
	start := time.Date(2026, 2, 1, 10, 0, 0, 0, time.UTC)
	gate, _ := newTestGate(15, 100, start)

	for i := 0; i < 15; i++ {
		require.True(t, gate.Admit(), "call %d should be admitted", i+1)
		gate.Record()
	}
	require.False(t, gate.Admit())

	minute, hour := gate.Counts()
	require.Equal(t, 15, minute)
	require.Equal(t, 15, hour)
}

func TestGateMinuteWindowSlides(t *testing.T) {
	start := time.Date(2026, 2, 1, 10, 0, 0, 0, time.UTC)
	gate, now := newTestGate(2, 100, start)

	gate.Record()
	gate.Record()
	require.False(t, gate.Admit())

	*now = start.Add(61 * time.Second)
	require.True(t, gate.Admit())
}

func TestGateHourCeiling(t *testing.T) {
	start := time.Date(2026, 2, 1, 10, 0, 0, 0, time.UTC)
	gate, now := newTestGate(100, 5, start)

	for i := 0; i < 5; i++ {
		require.True(t, gate.Admit())
		gate.Record()
		// Spread calls so the minute window never limits.
		*now = now.Add(2 * time.Minute)
	}
	require.False(t, gate.Admit())

	// Hourly limit leaves no short-term remedy: no wait is offered.
	waited, slept, err := gate.WaitForSlot(context.Background())
	require.NoError(t, err)
	require.False(t, slept)
	require.Zero(t, waited)

	// Once the oldest entries age past the hour, admission resumes.
	*now = start.Add(time.Hour + time.Second)
	require.True(t, gate.Admit())
}

func TestGateWaitForSlotSleepsUntilOldestExits(t *testing.T) {
	// Scenario: 16 instantaneous calls against a per-minute ceiling of 15.
	start := time.Date(2026, 2, 1, 10, 0, 0, 0, time.UTC)
	gate, now := newTestGate(15, 100, start)

	for i := 0; i < 15; i++ {
		require.True(t, gate.Admit())
		gate.Record()
	}
	require.False(t, gate.Admit())

	var sleptFor time.Duration
	gate.sleep = func(ctx context.Context, d time.Duration) error {
		sleptFor = d
		*now = now.Add(d)
		return nil
	}

	waited, slept, err := gate.WaitForSlot(context.Background())
	require.NoError(t, err)
	require.True(t, slept)
	require.Equal(t, time.Minute, sleptFor)
	require.Equal(t, time.Minute, waited)
	require.True(t, gate.Admit())
}

func TestGateWaitForSlotAlreadyAdmissible(t *testing.T) {
	start := time.Date(2026, 2, 1, 10, 0, 0, 0, time.UTC)
	gate, _ := newTestGate(15, 100, start)

	waited, slept, err := gate.WaitForSlot(context.Background())
	require.NoError(t, err)
	require.False(t, slept)
	require.Zero(t, waited)
}

func TestGateWaitForSlotHonorsContext(t *testing.T) {
	start := time.Date(2026, 2, 1, 10, 0, 0, 0, time.UTC)
	gate, _ := newTestGate(1, 100, start)
	gate.Record()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, _, err := gate.WaitForSlot(ctx)
	require.ErrorIs(t, err, context.Canceled)
}

func TestGateCeilingEnforcement(t *testing.T) {
	// For a strictly sequential admit+record stream, no trailing 60s window
	// ever holds more than the per-minute ceiling and no trailing hour more
	// than the per-hour ceiling.
	start := time.Date(2026, 2, 1, 10, 0, 0, 0, time.UTC)
	gate, now := newTestGate(3, 10, start)

	admitted := make([]time.Time, 0, 32)
	for i := 0; i < 200; i++ {
		if gate.Admit() {
			gate.Record()
			admitted = append(admitted, *now)
		}
		*now = now.Add(5 * time.Second)
	}

	for _, pivot := range admitted {
		inMinute, inHour := 0, 0
		for _, ts := range admitted {
			if ts.After(pivot.Add(-time.Minute)) && !ts.After(pivot) {
				inMinute++
			}
			if ts.After(pivot.Add(-time.Hour)) && !ts.After(pivot) {
				inHour++
			}
		}
		require.LessOrEqual(t, inMinute, 3)
		require.LessOrEqual(t, inHour, 10)
	}
}

func TestGatePruneKeepsHourWindowOnly(t *testing.T) {
	start := time.Date(2026, 2, 1, 10, 0, 0, 0, time.UTC)
	gate, now := newTestGate(100, 100, start)

	gate.Record()
	*now = now.Add(30 * time.Minute)
	gate.Record()
	*now = now.Add(31 * time.Minute)

	_, hour := gate.Counts()
	require.Equal(t, 1, hour)
}
