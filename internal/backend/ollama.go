package backend

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
)

// DefaultOllamaURL is the local Ollama server
const DefaultOllamaURL = "http://localhost:11434"

// OllamaRequest represents the request body for Ollama API
type OllamaRequest struct {
	Model    string              `json:"model"`
	Messages []map[string]string `json:"messages"`
	Stream   bool                `json:"stream"`
	Format   string              `json:"format,omitempty"`
}

// OllamaResponse represents the response from Ollama API
type OllamaResponse struct {
	Model     string `json:"model"`
	CreatedAt string `json:"created_at"`
	Message   struct {
		Role    string `json:"role"`
		Content string `json:"content"`
	} `json:"message"`
	Done            bool    `json:"done"`
	PromptEvalCount float64 `json:"prompt_eval_count"`
	EvalCount       float64 `json:"eval_count"`
}

// OllamaTagsResponse represents the response from Ollama /api/tags endpoint
type OllamaTagsResponse struct {
	Models []OllamaModel `json:"models"`
}

// OllamaModel represents a single model in the Ollama tags response
type OllamaModel struct {
	Name       string `json:"name"`
	ModifiedAt string `json:"modified_at"`
	Size       int64  `json:"size"`
	Digest     string `json:"digest"`
}

// Ollama calls a local Ollama server
type Ollama struct {
	baseURL    string
	model      string
	httpClient *http.Client
	telemetry  Telemetry
}

// NewOllama creates an Ollama backend. model uses the "model:version" form.
func NewOllama(baseURL, model string, httpClient *http.Client, tel Telemetry) *Ollama {
	if baseURL == "" {
		baseURL = DefaultOllamaURL
	}
	return &Ollama{baseURL: strings.TrimRight(baseURL, "/"), model: model, httpClient: httpClient, telemetry: tel}
}

func (o *Ollama) Name() string { return "ollama" }

func (o *Ollama) Complete(ctx context.Context, req Request) (Response, error) {
	return o.telemetry.observe(ctx, o.Name(), o.model, func(ctx context.Context) (Response, error) {
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

		body := OllamaRequest{
			Model:    o.model,
			Messages: reqMessages,
			Stream:   false,
		}
		if req.JSON {
			body.Format = "json"
		}

		var apiResp OllamaResponse
		if err := postJSON(ctx, o.httpClient, o.Name(), o.baseURL+"/api/chat", nil, body, &apiResp); err != nil {
			return Response{}, err
		}

		return Response{
			Text:  apiResp.Message.Content,
			Model: apiResp.Model,
			Usage: map[string]float64{
				"prompt_tokens":     apiResp.PromptEvalCount,
				"completion_tokens": apiResp.EvalCount,
			},
		}, nil
	})
}

// ListModels fetches the list of available Ollama models
func (o *Ollama) ListModels(ctx context.Context) ([]OllamaModel, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, o.baseURL+"/api/tags", nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	resp, err := o.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to send request (is Ollama running?): %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		return nil, httpError(o.Name(), resp, body)
	}

	var tagsResp OllamaTagsResponse
	if err := json.Unmarshal(body, &tagsResp); err != nil {
		return nil, fmt.Errorf("failed to unmarshal response: %w", err)
	}
	return tagsResp.Models, nil
}

// Ready checks that the server is reachable and has the configured model pulled
func (o *Ollama) Ready(ctx context.Context) error {
	models, err := o.ListModels(ctx)
	if err != nil {
		return err
	}
	for _, m := range models {
		if m.Name == o.model {
			return nil
		}
	}
	return fmt.Errorf("ollama model %s is not pulled", o.model)
}
