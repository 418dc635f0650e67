package backend

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"
)

type stubCompleter struct{ name string }

func (s stubCompleter) Name() string { return s.name }
func (s stubCompleter) Complete(ctx context.Context, req Request) (Response, error) {
	return Response{Text: s.name}, nil
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestCheck(t *testing.T) {
	boom := errors.New("missing key")
	tests := []struct {
		name      string
		candidate Candidate
		available bool
		reason    error
	}{
		{"no init", Candidate{Name: "none"}, false, ErrNotConfigured},
		{"init fails", Candidate{Name: "bad", Init: func(context.Context) (Completer, error) { return nil, boom }}, false, boom},
		{"nil backend", Candidate{Name: "nil", Init: func(context.Context) (Completer, error) { return nil, nil }}, false, ErrNotConfigured},
		{"ok", Candidate{Name: "ok", Init: func(context.Context) (Completer, error) { return stubCompleter{"ok"}, nil }}, true, nil},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			a := Check(context.Background(), tt.candidate, time.Second)
			if a.Available() != tt.available {
				t.Fatalf("Available() = %v, want %v", a.Available(), tt.available)
			}
			if tt.reason != nil && !errors.Is(a.Reason, tt.reason) {
				t.Errorf("Reason = %v, want %v", a.Reason, tt.reason)
			}
		})
	}
}

func TestCheck_Timeout(t *testing.T) {
	c := Candidate{Name: "slow", Init: func(ctx context.Context) (Completer, error) {
		<-ctx.Done()
		return nil, ctx.Err()
	}}
	a := Check(context.Background(), c, 10*time.Millisecond)
	if !errors.Is(a.Reason, context.DeadlineExceeded) {
		t.Errorf("Reason = %v, want deadline exceeded", a.Reason)
	}
}

func TestFirstAvailable(t *testing.T) {
	var calls []string
	mk := func(name string, ok bool) Candidate {
		return Candidate{Name: name, Init: func(context.Context) (Completer, error) {
			calls = append(calls, name)
			if !ok {
				return nil, ErrNotConfigured
			}
			return stubCompleter{name}, nil
		}}
	}

	b, err := FirstAvailable(context.Background(), []Candidate{mk("a", false), mk("b", true), mk("c", true)}, time.Second, discardLogger())
	if err != nil {
		t.Fatalf("FirstAvailable() error = %v", err)
	}
	if b.Name() != "b" {
		t.Errorf("selected %q, want b", b.Name())
	}
	if len(calls) != 2 {
		t.Errorf("initialized %v, want to stop after b", calls)
	}

	_, err = FirstAvailable(context.Background(), []Candidate{mk("x", false)}, time.Second, discardLogger())
	if !errors.Is(err, ErrNoBackendAvailable) {
		t.Errorf("FirstAvailable() error = %v, want ErrNoBackendAvailable", err)
	}
}
