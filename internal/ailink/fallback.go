package ailink

import (
	"context"
	"crypto/sha256"
	"encoding/binary"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/lensgate/lensgate/internal/dispatch"
)

// DemoProvider produces deterministic locally generated analysis when the
// real upstream is unavailable. The same request always yields the same
// result so degraded behavior is reproducible in demos and tests.
type DemoProvider struct{}

// NewDemoProvider returns a fallback provider.
func NewDemoProvider() *DemoProvider {
	return &DemoProvider{}
}

var demoClassifications = []string{"physical", "digital", "unclear"}

var demoActions = map[string][]string{
	"physical": {"Dispatch a field crew to verify the report", "Photograph the site after remediation"},
	"digital":  {"Forward the report to the service desk", "Confirm resolution with the reporter"},
	"unclear":  {"Request a clearer photo from the reporter", "Hold the report for manual review"},
}

type demoAnalysis struct {
	Title            string   `json:"title"`
	Summary          string   `json:"summary"`
	Classification   string   `json:"classification"`
	Severity         float64  `json:"severity"`
	SuggestedActions []string `json:"suggested_actions"`
}

// ProduceFallback implements dispatch.FallbackProvider. The classification
// and severity are derived from a digest of the request contents.
func (p *DemoProvider) ProduceFallback(_ context.Context, req *dispatch.Request) (*dispatch.Result, error) {
	if req == nil {
		return nil, fmt.Errorf("request is required")
	}

	digest := sha256.Sum256([]byte(req.Description + "\x00" + req.ImageB64))
	seed := binary.BigEndian.Uint64(digest[:8])

	class := demoClassifications[seed%uint64(len(demoClassifications))]
	severity := float64(seed%100) / 100.0

	title := strings.TrimSpace(req.Description)
	if title == "" {
		title = "Submitted report"
	}
	if len(title) > 60 {
		title = title[:60]
	}

	analysis := demoAnalysis{
		Title:            title,
		Summary:          "Demo analysis generated without upstream access. Contents were not inspected by a model.",
		Classification:   class,
		Severity:         severity,
		SuggestedActions: demoActions[class],
	}

	body, err := json.Marshal(analysis)
	if err != nil {
		return nil, fmt.Errorf("encode demo analysis: %w", err)
	}

	return &dispatch.Result{
		Source:   "demo",
		Model:    "demo",
		Analysis: string(body),
	}, nil
}
