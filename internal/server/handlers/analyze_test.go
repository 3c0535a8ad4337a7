package handlers

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/lensgate/lensgate/internal/dispatch"
)

func exhaustedAt(t *testing.T, value string) *time.Time {
	t.Helper()
	ts, err := time.Parse(time.RFC3339, value)
	require.NoError(t, err)
	return &ts
}

func TestNewlyExhaustedHandsOutEachCredentialOnce(t *testing.T) {
	h := &DispatchHandler{}

	report := []dispatch.CredentialStatus{
		{Index: 0, SecretSuffix: "...1111", Available: true},
		{Index: 1, SecretSuffix: "...2222", Available: false, LastExhaustedAt: exhaustedAt(t, "2026-08-23T10:00:00Z")},
	}

	fresh := h.newlyExhausted(report)
	require.Len(t, fresh, 1)
	require.Equal(t, 1, fresh[0].Index)

	// Same report again: nothing new to persist.
	require.Empty(t, h.newlyExhausted(report))

	// A further credential burns out later; only that one is handed out.
	report[0].Available = false
	report[0].LastExhaustedAt = exhaustedAt(t, "2026-08-23T11:00:00Z")

	fresh = h.newlyExhausted(report)
	require.Len(t, fresh, 1)
	require.Equal(t, 0, fresh[0].Index)
}

func TestNewlyExhaustedSkipsAvailableCredentials(t *testing.T) {
	h := &DispatchHandler{}

	report := []dispatch.CredentialStatus{
		{Index: 0, Available: true},
		{Index: 1, Available: true},
	}

	require.Empty(t, h.newlyExhausted(report))
}
