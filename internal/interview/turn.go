package interview

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"InterviewCoach/internal/orchestrator"
	"InterviewCoach/internal/session"
	"InterviewCoach/internal/sessionstore"
	"InterviewCoach/internal/statemachine"
)

// Replier produces the avatar's reply for a transcript
type Replier interface {
	Reply(ctx context.Context, history []session.Message, transcript string) (orchestrator.Reply, error)
}

// TurnResult is the outcome of a completed turn
type TurnResult struct {
	Reply orchestrator.Reply
	State session.State
}

// Turns runs submit-answer to receive-reply cycles
type Turns struct {
	machine *statemachine.Machine
	replier Replier
	logger  *slog.Logger
}

// NewTurns creates a turn runner
func NewTurns(machine *statemachine.Machine, replier Replier, logger *slog.Logger) *Turns {
	return &Turns{machine: machine, replier: replier, logger: logger}
}

// Submit takes one answer through a turn. The session moves to processing,
// the orchestrator is asked for a reply, then both messages are appended and
// the session moves to speaking. When the reply fails the session returns to
// idle with its history untouched so the turn can be retried.
//
// history is the context the client holds; when empty the stored history is used.
// A session that does not exist yet is created.
func (t *Turns) Submit(ctx context.Context, sessionID, transcript string, history []session.Message) (TurnResult, error) {
	transcript = strings.TrimSpace(transcript)
	if transcript == "" {
		return TurnResult{}, orchestrator.ErrEmptyInput
	}

	current, err := t.machine.SubmitAnswer(ctx, sessionID)
	if errors.Is(err, sessionstore.ErrNotFound) {
		if _, err = t.machine.Create(ctx, sessionID, ""); err != nil && !errors.Is(err, sessionstore.ErrExists) {
			return TurnResult{}, fmt.Errorf("failed to create session: %w", err)
		}
		current, err = t.machine.SubmitAnswer(ctx, sessionID)
	}
	if err != nil {
		return TurnResult{}, err
	}

	if len(history) == 0 {
		history = current.History
	}
	userMsg := session.NewMessage(session.RoleUser, transcript)

	reply, err := t.replier.Reply(ctx, history, transcript)
	if err != nil {
		t.abort(sessionID, err)
		return TurnResult{}, err
	}

	assistantMsg := session.NewMessage(session.RoleAssistant, reply.Text)
	videoRef := reply.VideoRef
	avatar := session.Avatar{Emotion: reply.Emotion, VideoRef: &videoRef}

	state, err := t.machine.BeginSpeaking(ctx, sessionID, userMsg, assistantMsg, avatar)
	if err != nil {
		t.abort(sessionID, err)
		return TurnResult{}, fmt.Errorf("failed to record turn: %w", err)
	}

	t.logger.Info("turn completed",
		"session_id", sessionID,
		"history_len", len(state.History),
		"ready_to_advance", reply.ReadyToAdvance,
	)
	return TurnResult{Reply: reply, State: state}, nil
}

// abort returns the session to idle on a context of its own, so a
// cancelled request cannot leave the session stuck in processing
func (t *Turns) abort(sessionID string, cause error) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if _, err := t.machine.AbortTurn(ctx, sessionID); err != nil {
		t.logger.Error("failed to abort turn", "session_id", sessionID, "error", err)
		return
	}
	t.logger.Warn("turn aborted", "session_id", sessionID, "error", cause)
}
