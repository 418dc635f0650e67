package backend

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"google.golang.org/genai"
)

// Gemini calls Google's Gemini API through the genai SDK. It accepts media
// inline or through the Files API.
type Gemini struct {
	client       *genai.Client
	model        string
	telemetry    Telemetry
	pollInterval time.Duration
}

// GeminiConfig configures a Gemini backend
type GeminiConfig struct {
	APIKey     string
	Model      string
	BaseURL    string // overrides the API endpoint, used by tests
	HTTPClient *http.Client
}

// NewGemini creates a Gemini backend
func NewGemini(ctx context.Context, cfg GeminiConfig, tel Telemetry) (*Gemini, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("%w: GEMINI_API_KEY not set", ErrNotConfigured)
	}

	cc := &genai.ClientConfig{
		APIKey:     cfg.APIKey,
		Backend:    genai.BackendGeminiAPI,
		HTTPClient: cfg.HTTPClient,
	}
	if cfg.BaseURL != "" {
		cc.HTTPOptions = genai.HTTPOptions{BaseURL: cfg.BaseURL}
	}

	client, err := genai.NewClient(ctx, cc)
	if err != nil {
		return nil, fmt.Errorf("failed to create gemini client: %w", err)
	}
	return &Gemini{client: client, model: cfg.Model, telemetry: tel, pollInterval: time.Second}, nil
}

func (g *Gemini) Name() string { return "gemini" }

// SupportsMedia reports that Gemini accepts audio and video parts
func (g *Gemini) SupportsMedia() bool { return true }

// Ready confirms the configured model is reachable with the current key
func (g *Gemini) Ready(ctx context.Context) error {
	if _, err := g.client.Models.Get(ctx, g.model, nil); err != nil {
		return g.classify(err)
	}
	return nil
}

func (g *Gemini) Complete(ctx context.Context, req Request) (Response, error) {
	return g.telemetry.observe(ctx, g.Name(), g.model, func(ctx context.Context) (Response, error) {
		contents := make([]*genai.Content, 0, len(req.Messages))
		for i, msg := range req.Messages {
			role := genai.Role(genai.RoleUser)
			if msg.Role == "assistant" {
				role = genai.RoleModel
			}
			parts := []*genai.Part{genai.NewPartFromText(msg.Content)}
			// Media rides along with the final user message.
			if i == len(req.Messages)-1 && role == genai.RoleUser {
				for _, m := range req.Media {
					parts = append(parts, mediaPart(m))
				}
			}
			contents = append(contents, genai.NewContentFromParts(parts, role))
		}

		config := &genai.GenerateContentConfig{}
		if req.System != "" {
			config.SystemInstruction = genai.NewContentFromText(req.System, genai.RoleUser)
		}
		if req.JSON {
			config.ResponseMIMEType = "application/json"
		}
		if req.MaxTokens > 0 {
			config.MaxOutputTokens = int32(req.MaxTokens)
		}

		resp, err := g.client.Models.GenerateContent(ctx, g.model, contents, config)
		if err != nil {
			return Response{}, g.classify(err)
		}

		text := resp.Text()
		if text == "" {
			return Response{}, fmt.Errorf("empty response from Gemini")
		}

		out := Response{Text: text, Model: resp.ModelVersion}
		if u := resp.UsageMetadata; u != nil {
			out.Usage = map[string]float64{
				"prompt_tokens":     float64(u.PromptTokenCount),
				"completion_tokens": float64(u.CandidatesTokenCount),
				"total_tokens":      float64(u.TotalTokenCount),
			}
		}
		return out, nil
	})
}

// Upload stores media through the Files API and waits until it can be referenced
func (g *Gemini) Upload(ctx context.Context, r io.Reader, mimeType string) (Media, error) {
	file, err := g.client.Files.Upload(ctx, r, &genai.UploadFileConfig{MIMEType: mimeType})
	if err != nil {
		return Media{}, fmt.Errorf("failed to upload media: %w", g.classify(err))
	}

	for file.State == genai.FileStateProcessing {
		select {
		case <-ctx.Done():
			g.release(file.Name)
			return Media{}, ctx.Err()
		case <-time.After(g.pollInterval):
		}
		file, err = g.client.Files.Get(ctx, file.Name, nil)
		if err != nil {
			return Media{}, fmt.Errorf("failed to poll uploaded media: %w", g.classify(err))
		}
	}
	if file.State == genai.FileStateFailed {
		g.release(file.Name)
		return Media{}, fmt.Errorf("media processing failed for %s", file.Name)
	}

	return Media{MIMEType: mimeType, URI: file.URI, Name: file.Name}, nil
}

// Release deletes uploaded media
func (g *Gemini) Release(ctx context.Context, m Media) error {
	if m.Name == "" {
		return nil
	}
	if _, err := g.client.Files.Delete(ctx, m.Name, nil); err != nil {
		return fmt.Errorf("failed to delete media %s: %w", m.Name, err)
	}
	return nil
}

// release is a best-effort delete on a fresh context
func (g *Gemini) release(name string) {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	_, _ = g.client.Files.Delete(ctx, name, nil)
}

// classify converts SDK errors into backend errors carrying a failure kind
func (g *Gemini) classify(err error) error {
	var apiErr genai.APIError
	if errors.As(err, &apiErr) {
		return &Error{
			Backend:    g.Name(),
			Kind:       Classify(apiErr.Code, apiErr.Status, apiErr.Message),
			StatusCode: apiErr.Code,
			Status:     apiErr.Status,
			Message:    apiErr.Message,
		}
	}
	var apiErrPtr *genai.APIError
	if errors.As(err, &apiErrPtr) && apiErrPtr != nil {
		return &Error{
			Backend:    g.Name(),
			Kind:       Classify(apiErrPtr.Code, apiErrPtr.Status, apiErrPtr.Message),
			StatusCode: apiErrPtr.Code,
			Status:     apiErrPtr.Status,
			Message:    apiErrPtr.Message,
		}
	}
	return err
}

func mediaPart(m Media) *genai.Part {
	if m.URI != "" {
		return genai.NewPartFromURI(m.URI, m.MIMEType)
	}
	return genai.NewPartFromBytes(m.Data, m.MIMEType)
}
