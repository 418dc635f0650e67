// Package coach wires configuration, storage, backends and the HTTP server
// into a running interview service.
package coach

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"InterviewCoach/internal/analysis"
	"InterviewCoach/internal/backend"
	"InterviewCoach/internal/cache"
	"InterviewCoach/internal/config"
	"InterviewCoach/internal/interview"
	"InterviewCoach/internal/orchestrator"
	"InterviewCoach/internal/server"
	"InterviewCoach/internal/sessionstore"
	"InterviewCoach/internal/speech"
	"InterviewCoach/internal/statemachine"
)

const shutdownTimeout = 10 * time.Second

// App represents the main application
type App struct {
	config *config.Config
	logger *slog.Logger

	store    sessionstore.Store
	replies  *cache.Replies
	Machine  *statemachine.Machine
	Turns    *interview.Turns
	Pipeline *analysis.Pipeline
	Server   *server.Server
}

// New builds every service from cfg. The conversation backend must
// initialize; analysis backends are checked per request.
func New(ctx context.Context, cfg *config.Config, logger *slog.Logger, tel backend.Telemetry) (*App, error) {
	httpClient := &http.Client{Timeout: 120 * time.Second}

	store, err := OpenStore(ctx, cfg.Storage, logger)
	if err != nil {
		return nil, err
	}
	logger.Info("session store opened", "type", cfg.Storage.Type)

	conv, err := ConversationBackend(ctx, cfg, httpClient, tel)
	if err != nil {
		store.Close()
		return nil, err
	}

	replies := cache.NewReplies(cfg.Conversation.CacheTTL, logger)
	orch, err := orchestrator.New(conv, orchestrator.Options{
		HistoryTurns: cfg.Conversation.HistoryTurns,
		TokenBudget:  cfg.Conversation.TokenBudget,
		MaxSentences: cfg.Conversation.MaxSentences,
		Cache:        replies,
	}, logger)
	if err != nil {
		store.Close()
		return nil, err
	}

	machine := statemachine.New(store, logger, statemachine.WithIdleTimeout(cfg.Session.IdleTimeout))
	turns := interview.NewTurns(machine, orch, logger)
	pipeline := NewPipeline(cfg, httpClient, tel, logger)

	if cfg.Speech.RelayURL == "" {
		logger.Warn("no speech relay configured, capture will record without a transcript")
	}

	srv := server.New(cfg.Server.Addr, server.Deps{
		Machine:    machine,
		Turns:      turns,
		Analyzer:   pipeline,
		Recognizer: RecognizerFactory(cfg.Speech.RelayURL, logger),
		Speech: speech.Options{
			RestartDelay: cfg.Speech.RestartDelay,
			MaxDuration:  cfg.Speech.MaxDuration,
		},
		MediaDir: cfg.Server.MediaDir,
	}, logger)

	logger.Info("interview coach initialized",
		"conversation_backend", conv.Name(),
		"analysis_candidates", cfg.Analysis.Candidates,
	)

	return &App{
		config:   cfg,
		logger:   logger,
		store:    store,
		replies:  replies,
		Machine:  machine,
		Turns:    turns,
		Pipeline: pipeline,
		Server:   srv,
	}, nil
}

// NewPipeline builds the analysis pipeline on its own, for one-shot use
func NewPipeline(cfg *config.Config, httpClient *http.Client, tel backend.Telemetry, logger *slog.Logger) *analysis.Pipeline {
	return analysis.New(AnalysisCandidates(cfg, httpClient, tel), analysis.Options{
		InlineBudget:   cfg.Analysis.InlineBudget,
		HardLimit:      cfg.Analysis.HardLimit,
		MaxAttempts:    cfg.Analysis.MaxAttempts,
		BaseDelay:      cfg.Analysis.BaseDelay,
		StartupTimeout: cfg.Analysis.StartupTimeout,
	}, logger, analysis.WithTelemetry(tel.Tracer, tel.Meter))
}

// RecognizerFactory opens a relay recognizer per capture, or nothing when
// no relay is configured
func RecognizerFactory(relayURL string, logger *slog.Logger) func() speech.Recognizer {
	return func() speech.Recognizer {
		r, err := speech.NewWebSocketRecognizer(relayURL, nil, logger)
		if err != nil {
			return nil
		}
		return r
	}
}

// Run serves until ctx is cancelled, then shuts down gracefully
func (a *App) Run(ctx context.Context) error {
	errCh := make(chan error, 1)
	go func() { errCh <- a.Server.Start() }()

	if ttl := a.config.Conversation.CacheTTL; ttl > 0 {
		go a.sweep(ctx, ttl)
	}

	select {
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("server stopped: %w", err)
		}
		return nil
	case <-ctx.Done():
	}

	a.logger.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := a.Server.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("failed to shut down server: %w", err)
	}
	return <-errCh
}

// sweep drops expired cached replies until ctx is done
func (a *App) sweep(ctx context.Context, every time.Duration) {
	ticker := time.NewTicker(every)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if n := a.replies.Sweep(); n > 0 {
				a.logger.Debug("swept reply cache", "removed", n)
			}
		}
	}
}

// Close stops the session actors and releases the store
func (a *App) Close() error {
	a.Machine.Close()
	if err := a.store.Close(); err != nil {
		return fmt.Errorf("failed to close session store: %w", err)
	}
	return nil
}
