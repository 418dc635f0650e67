// Package storetest checks a sessionstore.Store implementation against the
// store contract.
package storetest

import (
	"context"
	"errors"
	"testing"
	"time"

	"InterviewCoach/internal/session"
	"InterviewCoach/internal/sessionstore"
)

// Run exercises create, read, replace and watch on a fresh store
func Run(t *testing.T, newStore func(t *testing.T) sessionstore.Store) {
	t.Run("CreateGet", func(t *testing.T) {
		s := newStore(t)
		ctx := context.Background()

		state := newState("create-get")
		if err := s.Create(ctx, state); err != nil {
			t.Fatalf("Create() error = %v", err)
		}
		if err := s.Create(ctx, state); !errors.Is(err, sessionstore.ErrExists) {
			t.Errorf("second Create() error = %v, want ErrExists", err)
		}

		got, err := s.Get(ctx, "create-get")
		if err != nil {
			t.Fatalf("Get() error = %v", err)
		}
		if got.Status != session.StatusIdle || got.Owner != "alice" || len(got.History) != 0 {
			t.Errorf("Get() = %+v", got)
		}

		if _, err := s.Get(ctx, "missing"); !errors.Is(err, sessionstore.ErrNotFound) {
			t.Errorf("Get(missing) error = %v, want ErrNotFound", err)
		}
	})

	t.Run("PutReplaces", func(t *testing.T) {
		s := newStore(t)
		ctx := context.Background()

		state := newState("put")
		if err := s.Create(ctx, state); err != nil {
			t.Fatalf("Create() error = %v", err)
		}
		videoRef := "avatar/encouraging"
		state.Status = session.StatusSpeaking
		state.History = []session.Message{
			{Role: session.RoleUser, Text: "I built it", Timestamp: 1},
			{Role: session.RoleAssistant, Text: "Great", Timestamp: 2},
		}
		state.Avatar = session.Avatar{Emotion: session.EmotionEncouraging, VideoRef: &videoRef, IsPlaying: true}
		if err := s.Put(ctx, state); err != nil {
			t.Fatalf("Put() error = %v", err)
		}

		got, err := s.Get(ctx, "put")
		if err != nil {
			t.Fatalf("Get() error = %v", err)
		}
		if got.Status != session.StatusSpeaking || len(got.History) != 2 || got.History[1].Text != "Great" {
			t.Errorf("Get() = %+v", got)
		}
		if got.Avatar.VideoRef == nil || *got.Avatar.VideoRef != videoRef || got.Avatar.AudioRef != nil {
			t.Errorf("Avatar = %+v", got.Avatar)
		}
	})

	t.Run("Watch", func(t *testing.T) {
		s := newStore(t)
		ctx := context.Background()

		updates := make(chan session.State, 8)
		stop, err := s.Watch(ctx, "watch", func(st session.State) { updates <- st })
		if err != nil {
			t.Fatalf("Watch() error = %v", err)
		}

		state := newState("watch")
		if err := s.Create(ctx, state); err != nil {
			t.Fatalf("Create() error = %v", err)
		}
		state.Status = session.StatusProcessing
		if err := s.Put(ctx, state); err != nil {
			t.Fatalf("Put() error = %v", err)
		}

		for _, want := range []session.Status{session.StatusIdle, session.StatusProcessing} {
			select {
			case got := <-updates:
				if got.Status != want {
					t.Errorf("update status = %s, want %s", got.Status, want)
				}
			case <-time.After(2 * time.Second):
				t.Fatalf("no update with status %s", want)
			}
		}

		stop()
		state.Status = session.StatusIdle
		if err := s.Put(ctx, state); err != nil {
			t.Fatalf("Put() error = %v", err)
		}
		select {
		case got := <-updates:
			t.Errorf("update after stop: %+v", got)
		case <-time.After(100 * time.Millisecond):
		}
	})
}

func newState(id string) session.State {
	now := time.Now().UTC().Truncate(time.Millisecond)
	return session.State{
		SessionID: id,
		Owner:     "alice",
		Status:    session.StatusIdle,
		History:   []session.Message{},
		Avatar:    session.NeutralAvatar(),
		CreatedAt: now,
		UpdatedAt: now,
	}
}
