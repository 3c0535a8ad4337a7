package driver

import "context"

// Driver defines the interface for AI analysis providers.
//
// The API key is supplied per call rather than held by the driver so that
// credential rotation stays a dispatch concern and one driver instance can
// serve the whole ring.
type Driver interface {
	// Analyze sends one image analysis request and returns the response.
	Analyze(ctx context.Context, apiKey string, req *Request) (*Response, error)
	// Name returns the driver identifier (e.g., "openai").
	Name() string
}

// Usage contains token usage statistics.
type Usage struct {
	PromptTokens     int `json:"prompt_tokens"`
	CompletionTokens int `json:"completion_tokens"`
	TotalTokens      int `json:"total_tokens"`
}

// Request is a provider-agnostic image analysis request.
type Request struct {
	Model        string
	SystemPrompt string
	Description  string
	// ImageB64 is the base64-encoded image payload, without a data: prefix.
	// Optional; a text-only request is valid.
	ImageB64    string
	Temperature *float64
	MaxTokens   *int
}

// Response is a provider-agnostic analysis response.
type Response struct {
	Content      string
	Model        string
	FinishReason string
	Usage        *Usage
}
