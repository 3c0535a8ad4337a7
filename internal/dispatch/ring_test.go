package dispatch

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestNewRingRejectsEmpty(t *testing.T) {
	_, err := NewRing(nil)
	require.Error(t, err)

	_, err = NewRing([]string{"", "  "})
	require.Error(t, err)
}

func TestRingRotationWraps(t *testing.T) {
	ring, err := NewRing([]string{"key-one", "key-two", "key-three"})
	require.NoError(t, err)

	require.Equal(t, 0, ring.Current().Index)
	require.Equal(t, 1, ring.Rotate().Index)
	require.Equal(t, 2, ring.Rotate().Index)
	require.Equal(t, 0, ring.Rotate().Index)
}

func TestRingRotationMonotonicity(t *testing.T) {
	// After k consecutive exhaustion events on a ring of size n the current
	// index is k mod n and exactly min(k, n) credentials are flagged.
	const n = 3
	ring, err := NewRing([]string{"key-a", "key-b", "key-c"})
	require.NoError(t, err)

	for k := 1; k <= 5; k++ {
		ring.MarkExhausted(ring.Current().Index)
		ring.Rotate()

		require.Equal(t, k%n, ring.Current().Index)

		flagged := 0
		for _, status := range ring.StatusReport() {
			if !status.Available {
				flagged++
			}
		}
		expected := k
		if expected > n {
			expected = n
		}
		require.Equal(t, expected, flagged)
	}
	require.True(t, ring.AllExhausted())
}

func TestRingSizeOneRotatesOntoItself(t *testing.T) {
	ring, err := NewRing([]string{"only-key"})
	require.NoError(t, err)

	require.Equal(t, 0, ring.Rotate().Index)
	require.False(t, ring.AllExhausted())

	ring.MarkExhausted(0)
	require.True(t, ring.AllExhausted())
	// Still reports a current credential, best effort.
	require.Equal(t, "only-key", ring.Current().Secret)
}

func TestRingMarkExhaustedStampsTime(t *testing.T) {
	ring, err := NewRing([]string{"key-one", "key-two"})
	require.NoError(t, err)

	now := time.Date(2026, 2, 1, 12, 0, 0, 0, time.UTC)
	ring.clock = func() time.Time { return now }

	ring.MarkExhausted(1)

	report := ring.StatusReport()
	require.True(t, report[0].Available)
	require.False(t, report[1].Available)
	require.NotNil(t, report[1].LastExhaustedAt)
	require.Equal(t, now, *report[1].LastExhaustedAt)

	// Marking does not move the selection.
	require.Equal(t, 0, ring.Current().Index)
}

func TestRingStatusReportIdempotent(t *testing.T) {
	ring, err := NewRing([]string{"sk-first-key", "sk-second-key"})
	require.NoError(t, err)
	ring.MarkExhausted(0)

	first := ring.StatusReport()
	second := ring.StatusReport()
	require.Equal(t, first, second)
}

func TestRingStatusReportRedactsSecrets(t *testing.T) {
	ring, err := NewRing([]string{"sk-live-abcdef123456"})
	require.NoError(t, err)

	report := ring.StatusReport()
	require.Len(t, report, 1)
	require.Equal(t, "...3456", report[0].SecretSuffix)
	require.True(t, report[0].Current)
}
