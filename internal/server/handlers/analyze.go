package handlers

import (
	"encoding/json"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/fulmenhq/gofulmen/logging"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/lensgate/lensgate/internal/dispatch"
	apperrors "github.com/lensgate/lensgate/internal/errors"
	"github.com/lensgate/lensgate/internal/server/middleware"
	"github.com/lensgate/lensgate/internal/store"
)

// DispatchHandler serves the analysis and dispatch status endpoints.
type DispatchHandler struct {
	Dispatcher *dispatch.Dispatcher

	// Audit is optional; nil disables outcome persistence.
	Audit *store.Store

	// Logger is optional; nil disables handler logging.
	Logger *logging.Logger

	exhMu     sync.Mutex
	persisted map[int]bool
}

// NewDispatchHandler wires the dispatch endpoints.
func NewDispatchHandler(dispatcher *dispatch.Dispatcher, audit *store.Store, logger *logging.Logger) *DispatchHandler {
	return &DispatchHandler{
		Dispatcher: dispatcher,
		Audit:      audit,
		Logger:     logger,
	}
}

// AnalyzeRequest is the inbound analysis request body.
type AnalyzeRequest struct {
	RequestID   string `json:"request_id,omitempty"`
	Description string `json:"description"`
	// ImageB64 is the base64-encoded image payload without a data: prefix.
	ImageB64 string `json:"image_b64,omitempty"`
}

// AnalyzeResponse is the successful analysis response body.
type AnalyzeResponse struct {
	RequestID  string          `json:"request_id"`
	ServedBy   string          `json:"served_by"`
	Source     string          `json:"source"`
	Model      string          `json:"model"`
	Analysis   json.RawMessage `json:"analysis"`
	Attempts   int             `json:"attempts"`
	Rotations  int             `json:"rotations"`
	DurationMs int64           `json:"duration_ms"`
}

// Analyze handles POST /v1/analyze.
func (h *DispatchHandler) Analyze(w http.ResponseWriter, r *http.Request) {
	if h == nil || h.Dispatcher == nil {
		respondWithError(w, r, apperrors.NewInternalError("dispatcher not initialized"))
		return
	}

	var body AnalyzeRequest
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		respondWithError(w, r, apperrors.WrapInvalidInput(r.Context(), err, "request body must be valid JSON"))
		return
	}

	description := strings.TrimSpace(body.Description)
	image := strings.TrimSpace(body.ImageB64)
	if description == "" && image == "" {
		respondWithError(w, r, apperrors.NewValidationError("description or image_b64 is required"))
		return
	}

	requestID := strings.TrimSpace(body.RequestID)
	if requestID == "" {
		requestID = middleware.GetRequestID(r.Context())
	}
	if requestID == "" {
		requestID = uuid.New().String()
	}

	outcome, err := h.Dispatcher.Execute(r.Context(), &dispatch.Request{
		ID:          requestID,
		Description: description,
		ImageB64:    image,
	})
	if err != nil {
		h.recordFailure(r, requestID, err)
		h.persistExhaustions(r)
		respondWithError(w, r, dispatchErrorEnvelope(r, err))
		return
	}

	h.recordOutcome(r, requestID, outcome)
	h.persistExhaustions(r)

	response := AnalyzeResponse{
		RequestID:  requestID,
		ServedBy:   string(outcome.ServedBy),
		Source:     outcome.Result.Source,
		Model:      outcome.Result.Model,
		Analysis:   analysisJSON(outcome.Result.Analysis),
		Attempts:   outcome.Attempts,
		Rotations:  outcome.Rotations,
		DurationMs: outcome.Duration.Milliseconds(),
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	_ = json.NewEncoder(w).Encode(response)
}

// Status handles GET /v1/dispatch/status.
func (h *DispatchHandler) Status(w http.ResponseWriter, r *http.Request) {
	if h == nil || h.Dispatcher == nil {
		respondWithError(w, r, apperrors.NewInternalError("dispatcher not initialized"))
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	_ = json.NewEncoder(w).Encode(h.Dispatcher.Status())
}

// analysisJSON passes model output through as JSON when it already is, and
// wraps it as a JSON string otherwise. Providers occasionally return prose
// despite the json_object response format.
func analysisJSON(analysis string) json.RawMessage {
	trimmed := strings.TrimSpace(analysis)
	if json.Valid([]byte(trimmed)) {
		return json.RawMessage(trimmed)
	}
	quoted, err := json.Marshal(analysis)
	if err != nil {
		return json.RawMessage(`""`)
	}
	return json.RawMessage(quoted)
}

func dispatchErrorEnvelope(r *http.Request, err error) error {
	ctx := r.Context()
	switch dispatch.ErrorKind(err) {
	case "ring_exhausted", "quota_exhausted":
		return apperrors.WrapUpstreamExhausted(ctx, err, "all upstream credentials are exhausted")
	case "rate_limited":
		return apperrors.WrapRateLimited(ctx, err, "upstream rate ceiling reached")
	default:
		return apperrors.WrapUpstream(ctx, err, "upstream analysis failed")
	}
}

func (h *DispatchHandler) recordOutcome(r *http.Request, requestID string, outcome *dispatch.Outcome) {
	if h.Audit == nil || outcome == nil {
		return
	}

	rec := &store.OutcomeRecord{
		RequestID: requestID,
		ServedBy:  string(outcome.ServedBy),
		Source:    outcome.Result.Source,
		Model:     outcome.Result.Model,
		Attempts:  outcome.Attempts,
		Rotations: outcome.Rotations,
		Duration:  outcome.Duration,
	}

	// Audit writes never fail the request.
	if err := h.Audit.RecordOutcome(r.Context(), rec); err != nil && h.Logger != nil {
		h.Logger.Warn("failed to record dispatch outcome",
			zap.String("request_id", requestID),
			zap.Error(err))
	}
}

// persistExhaustions writes credential exhaustion marks that have not been
// persisted yet. Exhaustion is never cleared in-process, so one row per
// credential suffices for post-mortem inspection.
func (h *DispatchHandler) persistExhaustions(r *http.Request) {
	if h.Audit == nil {
		return
	}

	for _, cred := range h.newlyExhausted(h.Dispatcher.Ring().StatusReport()) {
		var at time.Time
		if cred.LastExhaustedAt != nil {
			at = *cred.LastExhaustedAt
		}
		if err := h.Audit.RecordExhaustion(r.Context(), cred.Index, at); err != nil {
			// Unmark so a later request retries the write.
			h.exhMu.Lock()
			delete(h.persisted, cred.Index)
			h.exhMu.Unlock()
			if h.Logger != nil {
				h.Logger.Warn("failed to record credential exhaustion",
					zap.Int("credential_index", cred.Index),
					zap.Error(err))
			}
		}
	}
}

// newlyExhausted filters the ring status report down to exhausted credentials
// that have not been handed out for persistence before.
func (h *DispatchHandler) newlyExhausted(report []dispatch.CredentialStatus) []dispatch.CredentialStatus {
	h.exhMu.Lock()
	defer h.exhMu.Unlock()

	var fresh []dispatch.CredentialStatus
	for _, cred := range report {
		if cred.Available || h.persisted[cred.Index] {
			continue
		}
		if h.persisted == nil {
			h.persisted = make(map[int]bool)
		}
		h.persisted[cred.Index] = true
		fresh = append(fresh, cred)
	}
	return fresh
}

func (h *DispatchHandler) recordFailure(r *http.Request, requestID string, dispatchErr error) {
	if h.Audit == nil {
		return
	}

	rec := &store.OutcomeRecord{
		RequestID: requestID,
		ServedBy:  "none",
		Source:    "none",
		Model:     "none",
		ErrorKind: dispatch.ErrorKind(dispatchErr),
	}

	if err := h.Audit.RecordOutcome(r.Context(), rec); err != nil && h.Logger != nil {
		h.Logger.Warn("failed to record dispatch failure",
			zap.String("request_id", requestID),
			zap.Error(err))
	}
}
