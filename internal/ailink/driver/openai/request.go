package openai

import (
	"fmt"
	"strings"

	"github.com/lensgate/lensgate/internal/ailink/driver"
)

type chatCompletionRequest struct {
	Model          string          `json:"model"`
	Messages       []chatMessage   `json:"messages"`
	ResponseFormat *responseFormat `json:"response_format,omitempty"`
	Temperature    *float64        `json:"temperature,omitempty"`
	MaxTokens      *int            `json:"max_tokens,omitempty"`
}

type chatMessage struct {
	Role    string      `json:"role"`
	Content interface{} `json:"content"`
}

type responseFormat struct {
	Type string `json:"type"`
}

type contentBlock struct {
	Type     string    `json:"type"`
	Text     string    `json:"text,omitempty"`
	ImageURL *imageURL `json:"image_url,omitempty"`
}

type imageURL struct {
	URL string `json:"url"`
}

func buildChatRequest(req *driver.Request) (*chatCompletionRequest, error) {
	if req == nil {
		return nil, fmt.Errorf("request is required")
	}
	if strings.TrimSpace(req.Model) == "" {
		return nil, fmt.Errorf("model is required")
	}

	messages := make([]chatMessage, 0, 2)
	if system := strings.TrimSpace(req.SystemPrompt); system != "" {
		messages = append(messages, chatMessage{Role: "system", Content: system})
	}

	user, err := buildUserMessage(req)
	if err != nil {
		return nil, err
	}
	messages = append(messages, user)

	return &chatCompletionRequest{
		Model:          req.Model,
		Messages:       messages,
		ResponseFormat: &responseFormat{Type: "json_object"},
		Temperature:    req.Temperature,
		MaxTokens:      req.MaxTokens,
	}, nil
}

func buildUserMessage(req *driver.Request) (chatMessage, error) {
	description := strings.TrimSpace(req.Description)
	image := strings.TrimSpace(req.ImageB64)

	if description == "" && image == "" {
		return chatMessage{}, fmt.Errorf("description or image is required")
	}

	// Text-only requests use the plain string content form.
	if image == "" {
		return chatMessage{Role: "user", Content: description}, nil
	}

	blocks := make([]contentBlock, 0, 2)
	if description != "" {
		blocks = append(blocks, contentBlock{Type: "text", Text: description})
	}
	blocks = append(blocks, contentBlock{
		Type:     "image_url",
		ImageURL: &imageURL{URL: "data:image/jpeg;base64," + image},
	})

	return chatMessage{Role: "user", Content: blocks}, nil
}
