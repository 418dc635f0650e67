package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/mattn/go-sqlite3"

	"InterviewCoach/internal/session"
	"InterviewCoach/internal/sessionstore"
)

// Store keeps session documents as JSON rows. The database is expected to
// carry the session_documents table created by telemetry.InitDB.
type Store struct {
	db   *sql.DB
	feed *sessionstore.Feed
}

var _ sessionstore.Store = (*Store)(nil)

// New wraps an open database handle
func New(db *sql.DB) *Store {
	return &Store{db: db, feed: sessionstore.NewFeed()}
}

func (s *Store) Create(ctx context.Context, state session.State) error {
	doc, err := json.Marshal(state)
	if err != nil {
		return fmt.Errorf("failed to marshal session: %w", err)
	}

	_, err = s.db.ExecContext(ctx,
		"INSERT INTO session_documents (id, document, updated_at) VALUES (?, ?, ?)",
		state.SessionID, string(doc), time.Now(),
	)
	if err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("session %s: %w", state.SessionID, sessionstore.ErrExists)
		}
		return fmt.Errorf("failed to insert session: %w", err)
	}

	s.feed.Publish(state)
	return nil
}

func (s *Store) Get(ctx context.Context, id string) (session.State, error) {
	var doc string
	err := s.db.QueryRowContext(ctx, "SELECT document FROM session_documents WHERE id = ?", id).Scan(&doc)
	if errors.Is(err, sql.ErrNoRows) {
		return session.State{}, fmt.Errorf("session %s: %w", id, sessionstore.ErrNotFound)
	}
	if err != nil {
		return session.State{}, fmt.Errorf("failed to load session: %w", err)
	}

	var state session.State
	if err := json.Unmarshal([]byte(doc), &state); err != nil {
		return session.State{}, fmt.Errorf("failed to unmarshal session: %w", err)
	}
	return state, nil
}

func (s *Store) Put(ctx context.Context, state session.State) error {
	doc, err := json.Marshal(state)
	if err != nil {
		return fmt.Errorf("failed to marshal session: %w", err)
	}

	_, err = s.db.ExecContext(ctx,
		"INSERT OR REPLACE INTO session_documents (id, document, updated_at) VALUES (?, ?, ?)",
		state.SessionID, string(doc), time.Now(),
	)
	if err != nil {
		return fmt.Errorf("failed to save session: %w", err)
	}

	s.feed.Publish(state)
	return nil
}

func (s *Store) Watch(ctx context.Context, id string, fn func(session.State)) (func(), error) {
	return sessionstore.BindContext(ctx, s.feed.Add(id, fn)), nil
}

func (s *Store) Close() error {
	return s.db.Close()
}

func isUniqueViolation(err error) bool {
	var sqliteErr sqlite3.Error
	if !errors.As(err, &sqliteErr) {
		return false
	}
	return sqliteErr.ExtendedCode == sqlite3.ErrConstraintPrimaryKey ||
		sqliteErr.ExtendedCode == sqlite3.ErrConstraintUnique
}
