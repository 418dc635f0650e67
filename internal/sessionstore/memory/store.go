package memory

import (
	"context"
	"fmt"
	"sync"

	"InterviewCoach/internal/session"
	"InterviewCoach/internal/sessionstore"
)

// Store is an in-memory implementation of sessionstore.Store
type Store struct {
	mu       sync.RWMutex
	sessions map[string]session.State
	feed     *sessionstore.Feed
}

var _ sessionstore.Store = (*Store)(nil)

// New creates a new in-memory store
func New() *Store {
	return &Store{
		sessions: make(map[string]session.State),
		feed:     sessionstore.NewFeed(),
	}
}

func (s *Store) Create(ctx context.Context, state session.State) error {
	s.mu.Lock()
	if _, exists := s.sessions[state.SessionID]; exists {
		s.mu.Unlock()
		return fmt.Errorf("session %s: %w", state.SessionID, sessionstore.ErrExists)
	}
	s.sessions[state.SessionID] = state.Clone()
	s.mu.Unlock()

	s.feed.Publish(state)
	return nil
}

func (s *Store) Get(ctx context.Context, id string) (session.State, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	state, exists := s.sessions[id]
	if !exists {
		return session.State{}, fmt.Errorf("session %s: %w", id, sessionstore.ErrNotFound)
	}
	return state.Clone(), nil
}

func (s *Store) Put(ctx context.Context, state session.State) error {
	s.mu.Lock()
	s.sessions[state.SessionID] = state.Clone()
	s.mu.Unlock()

	s.feed.Publish(state)
	return nil
}

func (s *Store) Watch(ctx context.Context, id string, fn func(session.State)) (func(), error) {
	return sessionstore.BindContext(ctx, s.feed.Add(id, fn)), nil
}

func (s *Store) Close() error {
	return nil
}
