package driver

import (
	"fmt"
	"net/http"
	"strings"
)

// ProviderError is returned when a provider responds with a non-2xx status.
//
// Drivers should populate RawResponse with the provider response body bytes.
// RawResponse must never include API keys.
type ProviderError struct {
	Provider    string
	StatusCode  int
	Message     string
	RawResponse []byte
}

func (e *ProviderError) Error() string {
	if e == nil {
		return "provider error"
	}
	if e.StatusCode > 0 {
		return fmt.Sprintf("%s request failed: status %d: %s", e.Provider, e.StatusCode, e.Message)
	}
	return fmt.Sprintf("%s request failed: %s", e.Provider, e.Message)
}

// QuotaExhausted reports whether this error signals that the credential used
// for the call has no remaining budget. HTTP 429 and the OpenAI-style
// insufficient_quota tag both count; the dispatcher rotates on either.
func (e *ProviderError) QuotaExhausted() bool {
	if e == nil {
		return false
	}
	if e.StatusCode == http.StatusTooManyRequests {
		return true
	}
	return strings.Contains(strings.ToLower(e.Message), "insufficient_quota")
}
