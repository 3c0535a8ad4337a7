package openai

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/lensgate/lensgate/internal/ailink/driver"
)

func TestAnalyzeSuccess(t *testing.T) {
	var captured chatCompletionRequest
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, http.MethodPost, r.Method)
		require.Equal(t, "/chat/completions", r.URL.Path)
		require.Equal(t, "Bearer sk-test-key", r.Header.Get("Authorization"))
		require.Equal(t, "application/json", r.Header.Get("Content-Type"))

		require.NoError(t, json.NewDecoder(r.Body).Decode(&captured))

		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{
			"model": "gpt-4o-mini",
			"choices": [{"message": {"content": "{\"title\":\"Broken pipe\"}"}, "finish_reason": "stop"}],
			"usage": {"prompt_tokens": 120, "completion_tokens": 40, "total_tokens": 160}
		}`))
	}))
	defer server.Close()

	client := NewClient(server.URL)
	resp, err := client.Analyze(context.Background(), "sk-test-key", &driver.Request{
		Model:        "gpt-4o-mini",
		SystemPrompt: "You are an analyst.",
		Description:  "Water leaking in basement",
		ImageB64:     "aGVsbG8=",
	})
	require.NoError(t, err)
	require.Equal(t, `{"title":"Broken pipe"}`, resp.Content)
	require.Equal(t, "gpt-4o-mini", resp.Model)
	require.Equal(t, "stop", resp.FinishReason)
	require.NotNil(t, resp.Usage)
	require.Equal(t, 160, resp.Usage.TotalTokens)

	require.Equal(t, "gpt-4o-mini", captured.Model)
	require.Len(t, captured.Messages, 2)
	require.Equal(t, "system", captured.Messages[0].Role)
	require.Equal(t, "user", captured.Messages[1].Role)
	require.NotNil(t, captured.ResponseFormat)
	require.Equal(t, "json_object", captured.ResponseFormat.Type)

	blocks, ok := captured.Messages[1].Content.([]interface{})
	require.True(t, ok)
	require.Len(t, blocks, 2)
}

func TestAnalyzeQuotaExhausted(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
		_, _ = w.Write([]byte(`{"error": {"message": "Rate limit reached", "type": "insufficient_quota"}}`))
	}))
	defer server.Close()

	client := NewClient(server.URL)
	_, err := client.Analyze(context.Background(), "sk-test-key", &driver.Request{
		Model:       "gpt-4o-mini",
		Description: "Graffiti on wall",
	})
	require.Error(t, err)

	var provErr *driver.ProviderError
	require.ErrorAs(t, err, &provErr)
	require.Equal(t, http.StatusTooManyRequests, provErr.StatusCode)
	require.True(t, provErr.QuotaExhausted())
}

func TestAnalyzeServerError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
		_, _ = w.Write([]byte(`{"error": {"message": "upstream blew up"}}`))
	}))
	defer server.Close()

	client := NewClient(server.URL)
	_, err := client.Analyze(context.Background(), "sk-test-key", &driver.Request{
		Model:       "gpt-4o-mini",
		Description: "Pothole on main street",
	})
	require.Error(t, err)

	var provErr *driver.ProviderError
	require.ErrorAs(t, err, &provErr)
	require.Equal(t, http.StatusInternalServerError, provErr.StatusCode)
	require.False(t, provErr.QuotaExhausted())
}

func TestAnalyzeTextOnlyRequest(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var captured chatCompletionRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&captured))
		require.Len(t, captured.Messages, 1)

		content, ok := captured.Messages[0].Content.(string)
		require.True(t, ok)
		require.Equal(t, "Abandoned vehicle", content)

		_, _ = w.Write([]byte(`{"model": "gpt-4o-mini", "choices": [{"message": {"content": "{}"}, "finish_reason": "stop"}]}`))
	}))
	defer server.Close()

	client := NewClient(server.URL)
	resp, err := client.Analyze(context.Background(), "sk-test-key", &driver.Request{
		Model:       "gpt-4o-mini",
		Description: "Abandoned vehicle",
	})
	require.NoError(t, err)
	require.Equal(t, "{}", resp.Content)
}

func TestAnalyzeValidation(t *testing.T) {
	client := NewClient("")

	_, err := client.Analyze(context.Background(), "", &driver.Request{Model: "gpt-4o-mini", Description: "x"})
	require.ErrorContains(t, err, "api key is required")

	_, err = client.Analyze(context.Background(), "sk-test-key", &driver.Request{Description: "x"})
	require.ErrorContains(t, err, "model is required")

	_, err = client.Analyze(context.Background(), "sk-test-key", &driver.Request{Model: "gpt-4o-mini"})
	require.ErrorContains(t, err, "description or image is required")
}
