// Package sessionstore holds the shared session document store. The store
// only knows whole documents; merging partial updates is the caller's job.
package sessionstore

import (
	"context"
	"errors"

	"InterviewCoach/internal/session"
)

var (
	// ErrNotFound is returned when no document exists for a session id
	ErrNotFound = errors.New("session not found")
	// ErrExists is returned by Create when the id is already taken
	ErrExists = errors.New("session already exists")
)

// Store is a key-value document store keyed by session id with push-based
// change notification. Implementations apply no isolation between writers.
type Store interface {
	// Create writes a new document, failing with ErrExists if one is present
	Create(ctx context.Context, state session.State) error

	// Get returns the current document or ErrNotFound
	Get(ctx context.Context, id string) (session.State, error)

	// Put replaces the whole document
	Put(ctx context.Context, state session.State) error

	// Watch delivers every written snapshot for id until ctx is done or the
	// returned stop func is called
	Watch(ctx context.Context, id string, fn func(session.State)) (stop func(), err error)

	// Close releases the store's resources
	Close() error
}
