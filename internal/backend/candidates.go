package backend

import (
	"context"
	"fmt"
	"log/slog"
	"time"
)

// Candidate is a backend that may or may not be usable right now
type Candidate struct {
	Name string
	Init func(ctx context.Context) (Completer, error)
}

// Availability is the outcome of probing a candidate: Backend is set when
// it is available, Reason otherwise
type Availability struct {
	Name    string
	Backend Completer
	Reason  error
}

// Available reports whether the check produced a usable backend
func (a Availability) Available() bool {
	return a.Backend != nil
}

// Check tries to initialize c within timeout
func Check(ctx context.Context, c Candidate, timeout time.Duration) Availability {
	if c.Init == nil {
		return Availability{Name: c.Name, Reason: ErrNotConfigured}
	}
	if timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}
	b, err := c.Init(ctx)
	if err != nil {
		return Availability{Name: c.Name, Reason: err}
	}
	if b == nil {
		return Availability{Name: c.Name, Reason: ErrNotConfigured}
	}
	return Availability{Name: c.Name, Backend: b}
}

// FirstAvailable walks candidates in priority order and returns the first
// one that initializes
func FirstAvailable(ctx context.Context, candidates []Candidate, timeout time.Duration, logger *slog.Logger) (Completer, error) {
	for _, c := range candidates {
		a := Check(ctx, c, timeout)
		if a.Available() {
			logger.Info("selected backend", "backend", a.Name)
			return a.Backend, nil
		}
		logger.Warn("backend unavailable", "backend", a.Name, "reason", a.Reason)
	}
	return nil, fmt.Errorf("%w: tried %d candidates", ErrNoBackendAvailable, len(candidates))
}
