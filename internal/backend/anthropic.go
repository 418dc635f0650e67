package backend

import (
	"context"
	"fmt"
	"net/http"
)

const (
	anthropicURL     = "https://api.anthropic.com/v1/messages"
	anthropicVersion = "2023-06-01"
)

// AnthropicRequest represents the request body for Anthropic API
type AnthropicRequest struct {
	Model     string             `json:"model"`
	MaxTokens int                `json:"max_tokens"`
	System    string             `json:"system,omitempty"`
	Messages  []AnthropicMessage `json:"messages"`
}

// AnthropicMessage represents a message in the conversation
type AnthropicMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// AnthropicContent represents a content block of a response
type AnthropicContent struct {
	Type string `json:"type"`
	Text string `json:"text,omitempty"`
}

// AnthropicResponse represents the response from Anthropic API
type AnthropicResponse struct {
	ID         string                 `json:"id"`
	Type       string                 `json:"type"`
	Role       string                 `json:"role"`
	Content    []AnthropicContent     `json:"content"`
	Model      string                 `json:"model"`
	StopReason string                 `json:"stop_reason"`
	Usage      map[string]interface{} `json:"usage"`
}

// Anthropic calls the Anthropic Messages API
type Anthropic struct {
	apiKey     string
	model      string
	url        string
	httpClient *http.Client
	telemetry  Telemetry
}

// NewAnthropic creates an Anthropic backend
func NewAnthropic(apiKey, model string, httpClient *http.Client, tel Telemetry) (*Anthropic, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("%w: ANTHROPIC_API_KEY not set", ErrNotConfigured)
	}
	return &Anthropic{apiKey: apiKey, model: model, url: anthropicURL, httpClient: httpClient, telemetry: tel}, nil
}

func (a *Anthropic) Name() string { return "anthropic" }

func (a *Anthropic) Complete(ctx context.Context, req Request) (Response, error) {
	return a.telemetry.observe(ctx, a.Name(), a.model, func(ctx context.Context) (Response, error) {
		reqMessages := make([]AnthropicMessage, len(req.Messages))
		for i, msg := range req.Messages {
			reqMessages[i] = AnthropicMessage{Role: msg.Role, Content: msg.Content}
		}

		maxTokens := req.MaxTokens
		if maxTokens == 0 {
			maxTokens = 1024
		}
		body := AnthropicRequest{
			Model:     a.model,
			MaxTokens: maxTokens,
			System:    req.System,
			Messages:  reqMessages,
		}

		headers := map[string]string{
			"x-api-key":         a.apiKey,
			"anthropic-version": anthropicVersion,
		}

		var apiResp AnthropicResponse
		if err := postJSON(ctx, a.httpClient, a.Name(), a.url, headers, body, &apiResp); err != nil {
			return Response{}, err
		}

		for _, content := range apiResp.Content {
			if content.Type == "text" {
				return Response{Text: content.Text, Model: apiResp.Model, Usage: numericUsage(apiResp.Usage)}, nil
			}
		}
		return Response{}, fmt.Errorf("empty response from Anthropic")
	})
}
