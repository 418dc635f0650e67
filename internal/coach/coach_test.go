package coach

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"
	"time"

	"InterviewCoach/internal/backend"
	"InterviewCoach/internal/config"
	"InterviewCoach/internal/session"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func testConfig(t *testing.T) *config.Config {
	t.Helper()
	for _, key := range []string{"GEMINI_API_KEY", "OPENAI_API_KEY", "XAI_API_KEY", "ANTHROPIC_API_KEY"} {
		t.Setenv(key, "")
	}
	cfg, err := config.Load("")
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	cfg.Server.Addr = "127.0.0.1:0"
	return cfg
}

func TestCandidates_NotConfigured(t *testing.T) {
	cfg := testConfig(t)
	for _, name := range []string{config.BackendGemini, config.BackendOpenAI, config.BackendGrok, config.BackendAnthropic} {
		a := backend.Check(context.Background(), Candidate(cfg, name, http.DefaultClient, backend.Telemetry{}), time.Second)
		if a.Available() {
			t.Errorf("%s available without a key", name)
		}
		if !errors.Is(a.Reason, backend.ErrNotConfigured) {
			t.Errorf("%s reason = %v, want ErrNotConfigured", name, a.Reason)
		}
	}
}

func TestAnalysisCandidates_Order(t *testing.T) {
	cfg := testConfig(t)
	cfg.Analysis.Candidates = []string{config.BackendAnthropic, config.BackendGemini}

	got := AnalysisCandidates(cfg, http.DefaultClient, backend.Telemetry{})
	if len(got) != 2 || got[0].Name != config.BackendAnthropic || got[1].Name != config.BackendGemini {
		t.Errorf("AnalysisCandidates() = %+v", got)
	}
}

func TestOpenStore(t *testing.T) {
	ctx := context.Background()

	tests := []struct {
		name    string
		cfg     config.StorageConfig
		wantErr bool
	}{
		{"memory", config.StorageConfig{Type: config.StoreMemory}, false},
		{"sqlite", config.StorageConfig{Type: config.StoreSQLite, SQLite: config.SQLiteConfig{Path: filepath.Join(t.TempDir(), "sessions.db")}}, false},
		{"unknown", config.StorageConfig{Type: "etcd"}, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			store, err := OpenStore(ctx, tt.cfg, discardLogger())
			if (err != nil) != tt.wantErr {
				t.Fatalf("OpenStore() error = %v, wantErr %v", err, tt.wantErr)
			}
			if err != nil {
				return
			}
			defer store.Close()

			state := session.State{SessionID: "s1", Status: session.StatusIdle, History: []session.Message{}}
			if err := store.Create(ctx, state); err != nil {
				t.Fatalf("Create() error = %v", err)
			}
			if _, err := store.Get(ctx, "s1"); err != nil {
				t.Errorf("Get() error = %v", err)
			}
		})
	}
}

func TestNew_ConversationBackendRequired(t *testing.T) {
	cfg := testConfig(t)
	if _, err := New(context.Background(), cfg, discardLogger(), backend.Telemetry{}); !errors.Is(err, backend.ErrNotConfigured) {
		t.Fatalf("New() error = %v, want ErrNotConfigured", err)
	}
}

func TestApp_Turn(t *testing.T) {
	llm := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/chat/completions" {
			t.Errorf("path = %s", r.URL.Path)
		}
		reply := `{"response":"Good start. What did you learn?","emotion":"encouraging","nextQuestion":"What did you learn?","readyToAdvance":false,"followUp":true}`
		json.NewEncoder(w).Encode(map[string]any{
			"model": "gpt-4o-mini",
			"choices": []map[string]any{
				{"index": 0, "message": map[string]string{"role": "assistant", "content": reply}},
			},
		})
	}))
	defer llm.Close()

	cfg := testConfig(t)
	cfg.Conversation.Backend = config.BackendOpenAI
	cfg.Backends.OpenAI = config.ProviderConfig{APIKey: "sk-test", BaseURL: llm.URL, Model: "gpt-4o-mini"}

	app, err := New(context.Background(), cfg, discardLogger(), backend.Telemetry{})
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	defer app.Close()

	body, _ := json.Marshal(map[string]any{"sessionId": "s1", "userTranscript": "I built a billing service."})
	rec := httptest.NewRecorder()
	app.Server.Router.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/api/turn", bytes.NewReader(body)))
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d (%s)", rec.Code, rec.Body.String())
	}

	state, err := app.Machine.Read(context.Background(), "s1")
	if err != nil {
		t.Fatalf("Read() error = %v", err)
	}
	if state.Status != session.StatusSpeaking || len(state.History) != 2 {
		t.Errorf("state = %s with %d messages, want speaking with 2", state.Status, len(state.History))
	}
	if state.Avatar.VideoRef == nil || *state.Avatar.VideoRef != "avatar/encouraging" {
		t.Errorf("avatar = %+v", state.Avatar)
	}
}

func TestApp_RunStopsOnCancel(t *testing.T) {
	llm := httptest.NewServer(http.NotFoundHandler())
	defer llm.Close()

	cfg := testConfig(t)
	cfg.Conversation.Backend = config.BackendOpenAI
	cfg.Backends.OpenAI = config.ProviderConfig{APIKey: "sk-test", BaseURL: llm.URL, Model: "gpt-4o-mini"}

	app, err := New(context.Background(), cfg, discardLogger(), backend.Telemetry{})
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	defer app.Close()

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- app.Run(ctx) }()
	time.Sleep(50 * time.Millisecond)
	cancel()

	select {
	case err := <-done:
		if err != nil {
			t.Errorf("Run() error = %v", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("Run() did not return after cancel")
	}
}

func TestConversationBackend_OwnStartupTimeout(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-r.Context().Done():
		case <-time.After(5 * time.Second):
		}
	}))
	defer srv.Close()

	cfg := testConfig(t)
	cfg.Conversation.Backend = config.BackendOllama
	cfg.Backends.Ollama.BaseURL = srv.URL
	cfg.Conversation.StartupTimeout = 50 * time.Millisecond
	cfg.Analysis.StartupTimeout = time.Hour

	start := time.Now()
	_, err := ConversationBackend(context.Background(), cfg, srv.Client(), backend.Telemetry{})
	if err == nil {
		t.Fatal("ConversationBackend() error = nil, want startup timeout")
	}
	if elapsed := time.Since(start); elapsed > 2*time.Second {
		t.Errorf("ConversationBackend() took %v, want the conversation timeout to apply", elapsed)
	}
}
