package coach

import (
	"context"
	"fmt"
	"net/http"

	"InterviewCoach/internal/backend"
	"InterviewCoach/internal/config"
)

// Candidate builds the lazily initialized backend for name. Backends that
// need a live check (gemini, ollama) do it in Init.
func Candidate(cfg *config.Config, name string, httpClient *http.Client, tel backend.Telemetry) backend.Candidate {
	p := cfg.Provider(name)
	c := backend.Candidate{Name: name}

	switch name {
	case config.BackendGemini:
		c.Init = func(ctx context.Context) (backend.Completer, error) {
			g, err := backend.NewGemini(ctx, backend.GeminiConfig{
				APIKey:     p.APIKey,
				Model:      p.Model,
				BaseURL:    p.BaseURL,
				HTTPClient: httpClient,
			}, tel)
			if err != nil {
				return nil, err
			}
			if err := g.Ready(ctx); err != nil {
				return nil, err
			}
			return g, nil
		}
	case config.BackendOpenAI, config.BackendGrok:
		c.Init = func(context.Context) (backend.Completer, error) {
			o, err := backend.NewOpenAI(name, p.APIKey, p.BaseURL, p.Model, httpClient, tel)
			if err != nil {
				return nil, err
			}
			return o, nil
		}
	case config.BackendAnthropic:
		c.Init = func(context.Context) (backend.Completer, error) {
			a, err := backend.NewAnthropic(p.APIKey, p.Model, httpClient, tel)
			if err != nil {
				return nil, err
			}
			return a, nil
		}
	case config.BackendOllama:
		c.Init = func(ctx context.Context) (backend.Completer, error) {
			o := backend.NewOllama(p.BaseURL, p.Model, httpClient, tel)
			if err := o.Ready(ctx); err != nil {
				return nil, err
			}
			return o, nil
		}
	}
	return c
}

// AnalysisCandidates returns the configured analysis backends in priority order
func AnalysisCandidates(cfg *config.Config, httpClient *http.Client, tel backend.Telemetry) []backend.Candidate {
	candidates := make([]backend.Candidate, 0, len(cfg.Analysis.Candidates))
	for _, name := range cfg.Analysis.Candidates {
		candidates = append(candidates, Candidate(cfg, name, httpClient, tel))
	}
	return candidates
}

// ConversationBackend initializes the backend that answers interview turns
func ConversationBackend(ctx context.Context, cfg *config.Config, httpClient *http.Client, tel backend.Telemetry) (backend.Completer, error) {
	a := backend.Check(ctx, Candidate(cfg, cfg.Conversation.Backend, httpClient, tel), cfg.Conversation.StartupTimeout)
	if !a.Available() {
		return nil, fmt.Errorf("failed to initialize conversation backend %s: %w", a.Name, a.Reason)
	}
	return a.Backend, nil
}
