package metrics

import (
	"strconv"

	"github.com/lensgate/lensgate/internal/observability"
)

// Dispatch metrics following Prometheus conventions
var (
	DispatchTotal          = "dispatch_requests_total"
	DispatchAttempts       = "dispatch_attempts_total"
	DispatchRotationsTotal = "dispatch_rotations_total"
	QuotaExhaustedTotal    = "dispatch_quota_exhausted_total"
	RateLimitedTotal       = "dispatch_rate_limited_total"
	UpstreamErrorsTotal    = "dispatch_upstream_errors_total"
)

// RecordDispatch records one completed dispatch outcome.
func RecordDispatch(servedBy string, attempts, rotations int) {
	if observability.TelemetrySystem == nil {
		return
	}

	_ = observability.TelemetrySystem.Counter(
		DispatchTotal,
		1,
		map[string]string{"served_by": servedBy},
	)
	if attempts > 0 {
		_ = observability.TelemetrySystem.Counter(
			DispatchAttempts,
			float64(attempts),
			map[string]string{"served_by": servedBy},
		)
	}
	if rotations > 0 {
		_ = observability.TelemetrySystem.Counter(
			DispatchRotationsTotal,
			float64(rotations),
			nil,
		)
	}
}

// RecordQuotaExhausted records a quota-exhaustion event for one credential.
func RecordQuotaExhausted(credentialIndex int) {
	if observability.TelemetrySystem == nil {
		return
	}
	_ = observability.TelemetrySystem.Counter(
		QuotaExhaustedTotal,
		1,
		map[string]string{"credential": strconv.Itoa(credentialIndex)},
	)
}

// RecordRateLimited records an attempt refused by a rate ceiling.
func RecordRateLimited() {
	if observability.TelemetrySystem == nil {
		return
	}
	_ = observability.TelemetrySystem.Counter(RateLimitedTotal, 1, nil)
}

// RecordUpstreamError records a non-quota upstream failure by error kind.
func RecordUpstreamError(kind string) {
	if observability.TelemetrySystem == nil {
		return
	}
	_ = observability.TelemetrySystem.Counter(
		UpstreamErrorsTotal,
		1,
		map[string]string{"kind": kind},
	)
}
