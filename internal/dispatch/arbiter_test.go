package dispatch

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestArbiterForceDegradedWins(t *testing.T) {
	arbiter := NewArbiter(ModePrefs{ForceDegraded: true, ForceReal: true})

	require.Equal(t, UseDegraded, arbiter.Decide())

	// Availability has no influence on a forced mode.
	arbiter.SetRealAvailable(false)
	require.Equal(t, UseDegraded, arbiter.Decide())
	require.Equal(t, "forced_degraded", arbiter.Mode())
}

func TestArbiterForceRealDisablesFallback(t *testing.T) {
	arbiter := NewArbiter(ModePrefs{ForceReal: true, AllowFallback: true})

	arbiter.SetRealAvailable(false)
	require.Equal(t, UseRealNoFallback, arbiter.Decide())
	require.Equal(t, "forced_real", arbiter.Mode())
}

func TestArbiterAutoFollowsAvailability(t *testing.T) {
	arbiter := NewArbiter(ModePrefs{AllowFallback: true})

	require.True(t, arbiter.RealAvailable())
	require.Equal(t, UseReal, arbiter.Decide())

	arbiter.SetRealAvailable(false)
	require.Equal(t, UseDegraded, arbiter.Decide())

	arbiter.SetRealAvailable(true)
	require.Equal(t, UseReal, arbiter.Decide())
	require.Equal(t, "auto", arbiter.Mode())
}

func TestDecisionString(t *testing.T) {
	require.Equal(t, "real", UseReal.String())
	require.Equal(t, "real_no_fallback", UseRealNoFallback.String())
	require.Equal(t, "degraded", UseDegraded.String())
}
