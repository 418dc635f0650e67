// Package server exposes the interview services over HTTP and websockets.
package server

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/gorilla/websocket"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"InterviewCoach/internal/analysis"
	"InterviewCoach/internal/interview"
	"InterviewCoach/internal/session"
	"InterviewCoach/internal/speech"
	"InterviewCoach/internal/statemachine"
)

// TurnRunner runs one conversation turn
type TurnRunner interface {
	Submit(ctx context.Context, sessionID, transcript string, history []session.Message) (interview.TurnResult, error)
}

// Analyzer evaluates recorded answers
type Analyzer interface {
	Analyze(ctx context.Context, req analysis.Request) (analysis.Result, error)
}

// Deps are the services the handlers call into
type Deps struct {
	Machine  *statemachine.Machine
	Turns    TurnRunner
	Analyzer Analyzer

	// Recognizer opens a speech recognizer per capture socket; nil, or a
	// nil result, records without a transcript
	Recognizer func() speech.Recognizer
	Speech     speech.Options

	// MediaDir is the root that analysis mediaRefs are resolved under
	MediaDir string
}

type Server struct {
	Router *chi.Mux
	Addr   string

	deps     Deps
	logger   *slog.Logger
	upgrader websocket.Upgrader
	http     *http.Server
}

// New builds the router with request ids, request logging, panic recovery
// and OpenTelemetry instrumentation, in that order
func New(addr string, deps Deps, logger *slog.Logger) *Server {
	r := chi.NewRouter()
	r.Use(RequestIDMiddleware)
	r.Use(LoggingMiddleware(logger))
	r.Use(middleware.Recoverer)
	r.Use(func(next http.Handler) http.Handler {
		return otelhttp.NewHandler(next, "interviewcoach")
	})

	s := &Server{
		Router: r,
		Addr:   addr,
		deps:   deps,
		logger: logger,
		upgrader: websocket.Upgrader{
			CheckOrigin: func(*http.Request) bool { return true },
		},
	}
	s.routes()
	s.http = &http.Server{
		Addr:              addr,
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}
	return s
}

func (s *Server) routes() {
	s.Router.Route("/api", func(r chi.Router) {
		r.Post("/turn", s.handleTurn)
		r.Post("/analyze", s.handleAnalyze)

		r.Post("/sessions", s.handleCreateSession)
		r.Route("/sessions/{id}", func(r chi.Router) {
			r.Get("/", s.handleGetSession)
			r.Get("/feed", s.handleFeed)
			r.Get("/speech", s.handleSpeech)
			r.Post("/playback-finished", s.handlePlaybackFinished)
			r.Post("/advance", s.handleAdvance)
		})
	})
	s.Router.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})
}

// Start serves until Shutdown is called
func (s *Server) Start() error {
	s.logger.Info("starting server", slog.String("addr", s.Addr))
	if err := s.http.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Shutdown stops accepting requests and waits for in-flight ones
func (s *Server) Shutdown(ctx context.Context) error {
	return s.http.Shutdown(ctx)
}
