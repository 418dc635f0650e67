package backend

import (
	"context"
	"fmt"
	"net/http"
	"strings"
)

// DefaultOpenAIBaseURL is the OpenAI API root; any compatible server works
const DefaultOpenAIBaseURL = "https://api.openai.com/v1"

// OpenAIRequest represents the request body for OpenAI-compatible APIs
type OpenAIRequest struct {
	Model          string              `json:"model"`
	Messages       []map[string]string `json:"messages"`
	MaxTokens      int                 `json:"max_tokens,omitempty"`
	ResponseFormat *OpenAIFormat       `json:"response_format,omitempty"`
}

// OpenAIFormat selects the response format
type OpenAIFormat struct {
	Type string `json:"type"`
}

// OpenAIResponse represents the response from OpenAI-compatible APIs
type OpenAIResponse struct {
	ID      string `json:"id"`
	Object  string `json:"object"`
	Created int64  `json:"created"`
	Model   string `json:"model"`
	Choices []struct {
		Index   int `json:"index"`
		Message struct {
			Role    string `json:"role"`
			Content string `json:"content"`
		} `json:"message"`
		FinishReason string `json:"finish_reason"`
	} `json:"choices"`
	Usage map[string]interface{} `json:"usage"`
}

// OpenAI calls an OpenAI-compatible chat completions endpoint
type OpenAI struct {
	name       string
	apiKey     string
	model      string
	baseURL    string
	httpClient *http.Client
	telemetry  Telemetry
}

// NewOpenAI creates an OpenAI-compatible backend. name distinguishes
// several compatible providers (openai, grok) in logs and metrics.
func NewOpenAI(name, apiKey, baseURL, model string, httpClient *http.Client, tel Telemetry) (*OpenAI, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("%w: %s api key not set", ErrNotConfigured, name)
	}
	if baseURL == "" {
		baseURL = DefaultOpenAIBaseURL
	}
	return &OpenAI{
		name:       name,
		apiKey:     apiKey,
		model:      model,
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: httpClient,
		telemetry:  tel,
	}, nil
}

func (o *OpenAI) Name() string { return o.name }

func (o *OpenAI) Complete(ctx context.Context, req Request) (Response, error) {
	return o.telemetry.observe(ctx, o.name, o.model, func(ctx context.Context) (Response, error) {
		reqMessages := make([]map[string]string, 0, len(req.Messages)+1)
		if req.System != "" {
			reqMessages = append(reqMessages, map[string]string{"role": "system", "content": req.System})
		}
		for _, msg := range req.Messages {
			reqMessages = append(reqMessages, map[string]string{
				"role":    msg.Role,
				"content": msg.Content,
			})
		}

		body := OpenAIRequest{
			Model:     o.model,
			Messages:  reqMessages,
			MaxTokens: req.MaxTokens,
		}
		if req.JSON {
			body.ResponseFormat = &OpenAIFormat{Type: "json_object"}
		}

		headers := map[string]string{"Authorization": "Bearer " + o.apiKey}

		var apiResp OpenAIResponse
		if err := postJSON(ctx, o.httpClient, o.name, o.baseURL+"/chat/completions", headers, body, &apiResp); err != nil {
			return Response{}, err
		}

		if len(apiResp.Choices) > 0 {
			return Response{
				Text:  apiResp.Choices[0].Message.Content,
				Model: apiResp.Model,
				Usage: numericUsage(apiResp.Usage),
			}, nil
		}
		return Response{}, fmt.Errorf("empty response from %s", o.name)
	})
}
