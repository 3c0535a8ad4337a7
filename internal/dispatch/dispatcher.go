package dispatch

import (
	"context"
	"errors"
	"time"

	"github.com/fulmenhq/gofulmen/logging"
	"go.uber.org/zap"

	"github.com/lensgate/lensgate/internal/metrics"
)

// Request is the provider-neutral analysis request handed to the upstream
// invoker. The dispatcher does not interpret its contents.
type Request struct {
	ID          string
	Description string
	ImageB64    string
}

// Result is the analysis produced by either the real upstream or the
// degraded provider.
type Result struct {
	Source   string
	Model    string
	Analysis string
}

// ServedBy tags which path produced an outcome.
type ServedBy string

const (
	ServedByReal     ServedBy = "real"
	ServedByDegraded ServedBy = "degraded"
)

// Outcome is the completed result of one Execute call. Callers only ever see
// an Outcome or a propagated failure; the internal rotation and retry churn
// is visible through diagnostics alone.
type Outcome struct {
	ServedBy  ServedBy
	Result    *Result
	Attempts  int
	Rotations int
	Duration  time.Duration
}

// Invoker issues one upstream call authenticated with the supplied secret.
// Implementations carry their own timeout; the dispatcher treats a timeout
// like any other non-quota failure.
type Invoker interface {
	Invoke(ctx context.Context, secret string, req *Request) (*Result, error)
}

// FallbackProvider produces a locally generated degraded result. It is
// expected to always succeed; a failure here is fatal to the whole request.
type FallbackProvider interface {
	ProduceFallback(ctx context.Context, req *Request) (*Result, error)
}

// Dispatcher composes mode arbitration, rate gating and credential rotation
// into a single entry point for the request-handling path. One instance is
// constructed at process start and shared by all workers; no lock is held
// across the upstream call itself.
type Dispatcher struct {
	ring     *Ring
	gate     *Gate
	arbiter  *Arbiter
	invoker  Invoker
	fallback FallbackProvider

	// Logger is optional; nil disables dispatch logging.
	Logger *logging.Logger
}

// New wires a dispatcher from its collaborators.
func New(ring *Ring, gate *Gate, arbiter *Arbiter, invoker Invoker, fallback FallbackProvider) (*Dispatcher, error) {
	switch {
	case ring == nil:
		return nil, errors.New("credential ring is required")
	case gate == nil:
		return nil, errors.New("rate gate is required")
	case arbiter == nil:
		return nil, errors.New("mode arbiter is required")
	case invoker == nil:
		return nil, errors.New("upstream invoker is required")
	case fallback == nil:
		return nil, errors.New("fallback provider is required")
	}
	return &Dispatcher{
		ring:     ring,
		gate:     gate,
		arbiter:  arbiter,
		invoker:  invoker,
		fallback: fallback,
	}, nil
}

// Ring exposes the credential ring for diagnostics.
func (d *Dispatcher) Ring() *Ring { return d.ring }

// Gate exposes the rate gate for diagnostics.
func (d *Dispatcher) Gate() *Gate { return d.gate }

// Arbiter exposes the mode arbiter for diagnostics.
func (d *Dispatcher) Arbiter() *Arbiter { return d.arbiter }

// Execute runs one analysis request through mode arbitration, rate gating and
// the retry-with-rotation loop. Quota exhaustion rotates to the next
// credential up to the ring size; any other upstream failure falls back or
// propagates according to the mode decision.
func (d *Dispatcher) Execute(ctx context.Context, req *Request) (*Outcome, error) {
	if req == nil {
		return nil, errors.New("request is required")
	}

	start := time.Now()
	decision := d.arbiter.Decide()
	if decision == UseDegraded {
		return d.degrade(ctx, req, 0, 0, start)
	}

	attempts := 0
	rotations := 0
	var lastErr error

	for attempt := 0; attempt < d.ring.Size(); attempt++ {
		attempts++

		if !d.gate.Admit() {
			waited, slept, err := d.gate.WaitForSlot(ctx)
			if err != nil {
				return nil, err
			}
			if !slept && !d.gate.Admit() {
				// Hourly ceiling: no short-term remedy, count the attempt
				// as a transient failure instead of blocking for up to an hour.
				lastErr = ErrRateLimited
				metrics.RecordRateLimited()
				continue
			}
			if slept {
				d.logDebug("waited for rate gate slot",
					zap.Duration("waited", waited),
					zap.String("request_id", req.ID))
			}
		}

		cred := d.ring.Current()
		d.gate.Record()

		result, err := d.invoker.Invoke(ctx, cred.Secret, req)
		if err == nil {
			d.arbiter.SetRealAvailable(true)
			outcome := &Outcome{
				ServedBy:  ServedByReal,
				Result:    result,
				Attempts:  attempts,
				Rotations: rotations,
				Duration:  time.Since(start),
			}
			metrics.RecordDispatch(string(ServedByReal), attempts, rotations)
			return outcome, nil
		}

		if IsQuotaExhausted(err) {
			d.ring.MarkExhausted(cred.Index)
			next := d.ring.Rotate()
			rotations++
			lastErr = err
			metrics.RecordQuotaExhausted(cred.Index)
			d.logWarn("credential quota exhausted, rotating",
				zap.Int("exhausted_index", cred.Index),
				zap.Int("next_index", next.Index),
				zap.String("request_id", req.ID))
			continue
		}

		// Non-quota failure: rotating would waste a working credential on a
		// problem that is not credential-specific.
		lastErr = err
		metrics.RecordUpstreamError(ErrorKind(err))
		if decision == UseRealNoFallback {
			return nil, err
		}
		break
	}

	d.arbiter.SetRealAvailable(false)

	failure := lastErr
	if d.ring.AllExhausted() {
		failure = &RingExhaustedError{Attempts: attempts, Rotations: rotations}
	}

	// An explicit real-mode override propagates ring exhaustion even when
	// fallback is otherwise allowed.
	if decision == UseRealNoFallback || !d.arbiter.AllowFallback() {
		return nil, failure
	}

	d.logWarn("real path failed, serving degraded result",
		zap.String("error_kind", ErrorKind(failure)),
		zap.Int("attempts", attempts),
		zap.Int("rotations", rotations),
		zap.String("request_id", req.ID))
	return d.degrade(ctx, req, attempts, rotations, start)
}

func (d *Dispatcher) degrade(ctx context.Context, req *Request, attempts, rotations int, start time.Time) (*Outcome, error) {
	result, err := d.fallback.ProduceFallback(ctx, req)
	if err != nil {
		return nil, err
	}
	metrics.RecordDispatch(string(ServedByDegraded), attempts, rotations)
	return &Outcome{
		ServedBy:  ServedByDegraded,
		Result:    result,
		Attempts:  attempts,
		Rotations: rotations,
		Duration:  time.Since(start),
	}, nil
}

func (d *Dispatcher) logDebug(msg string, fields ...zap.Field) {
	if d.Logger != nil {
		d.Logger.Debug(msg, fields...)
	}
}

func (d *Dispatcher) logWarn(msg string, fields ...zap.Field) {
	if d.Logger != nil {
		d.Logger.Warn(msg, fields...)
	}
}
