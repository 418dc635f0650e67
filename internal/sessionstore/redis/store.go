package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	goredis "github.com/redis/go-redis/v9"

	"InterviewCoach/internal/session"
	"InterviewCoach/internal/sessionstore"
)

const keyPrefix = "interview:session:"

// Store keeps session documents in redis and announces every write on a
// per-session pub/sub channel, so watchers in other processes see changes.
type Store struct {
	client *goredis.Client
	ttl    time.Duration
	logger *slog.Logger
}

var _ sessionstore.Store = (*Store)(nil)

// New creates a redis-backed store. Abandoned sessions expire after ttl;
// zero keeps them forever.
func New(client *goredis.Client, ttl time.Duration, logger *slog.Logger) *Store {
	return &Store{client: client, ttl: ttl, logger: logger}
}

// Dial connects to addr and verifies the connection with PING
func Dial(ctx context.Context, addr, password string, db int) (*goredis.Client, error) {
	client := goredis.NewClient(&goredis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("failed to connect to redis at %s: %w", addr, err)
	}
	return client, nil
}

// Key returns the document key for a session id
func Key(id string) string {
	return keyPrefix + id
}

// Channel returns the pub/sub channel for a session id
func Channel(id string) string {
	return keyPrefix + id + ":changes"
}

func (s *Store) Create(ctx context.Context, state session.State) error {
	doc, err := json.Marshal(state)
	if err != nil {
		return fmt.Errorf("failed to marshal session: %w", err)
	}

	ok, err := s.client.SetNX(ctx, Key(state.SessionID), doc, s.ttl).Result()
	if err != nil {
		return fmt.Errorf("failed to create session: %w", err)
	}
	if !ok {
		return fmt.Errorf("session %s: %w", state.SessionID, sessionstore.ErrExists)
	}

	s.publish(ctx, state.SessionID, doc)
	return nil
}

func (s *Store) Get(ctx context.Context, id string) (session.State, error) {
	doc, err := s.client.Get(ctx, Key(id)).Bytes()
	if errors.Is(err, goredis.Nil) {
		return session.State{}, fmt.Errorf("session %s: %w", id, sessionstore.ErrNotFound)
	}
	if err != nil {
		return session.State{}, fmt.Errorf("failed to load session: %w", err)
	}
	return decode(doc)
}

func (s *Store) Put(ctx context.Context, state session.State) error {
	doc, err := json.Marshal(state)
	if err != nil {
		return fmt.Errorf("failed to marshal session: %w", err)
	}

	if err := s.client.Set(ctx, Key(state.SessionID), doc, s.ttl).Err(); err != nil {
		return fmt.Errorf("failed to save session: %w", err)
	}

	s.publish(ctx, state.SessionID, doc)
	return nil
}

func (s *Store) Watch(ctx context.Context, id string, fn func(session.State)) (func(), error) {
	sub := s.client.Subscribe(ctx, Channel(id))
	if _, err := sub.Receive(ctx); err != nil {
		sub.Close()
		return nil, fmt.Errorf("failed to subscribe to session %s: %w", id, err)
	}

	go func() {
		for msg := range sub.Channel() {
			state, err := decode([]byte(msg.Payload))
			if err != nil {
				s.logger.Warn("dropping undecodable session change", "session_id", id, "error", err)
				continue
			}
			fn(state)
		}
	}()

	return sessionstore.BindContext(ctx, func() {
		if err := sub.Close(); err != nil {
			s.logger.Warn("failed to close session subscription", "session_id", id, "error", err)
		}
	}), nil
}

func (s *Store) Close() error {
	return s.client.Close()
}

// publish announces a write that has already landed. A failed announcement
// only delays watchers until the next change; the write itself stands.
func (s *Store) publish(ctx context.Context, id string, doc []byte) {
	if err := s.client.Publish(ctx, Channel(id), doc).Err(); err != nil {
		s.logger.Warn("failed to publish session change", "session_id", id, "error", err)
	}
}

func decode(doc []byte) (session.State, error) {
	var state session.State
	if err := json.Unmarshal(doc, &state); err != nil {
		return session.State{}, fmt.Errorf("failed to unmarshal session: %w", err)
	}
	return state, nil
}
