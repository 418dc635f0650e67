package statemachine

import (
	"context"
	"fmt"

	"InterviewCoach/internal/session"
)

// SubmitAnswer moves a resting session to processing. Submitting while a
// turn is in flight fails with ErrSessionBusy.
func (m *Machine) SubmitAnswer(ctx context.Context, id string) (session.State, error) {
	return m.Update(ctx, id, func(s session.State) (session.Patch, error) {
		if !s.Status.Resting() {
			return session.Patch{}, fmt.Errorf("%w: status is %s", ErrSessionBusy, s.Status)
		}
		return session.WithStatus(session.StatusProcessing), nil
	})
}

// BeginSpeaking records a completed turn: both messages are appended to the
// history, the avatar is replaced and the session moves to speaking.
func (m *Machine) BeginSpeaking(ctx context.Context, id string, user, assistant session.Message, avatar session.Avatar) (session.State, error) {
	return m.Update(ctx, id, func(s session.State) (session.Patch, error) {
		if s.Status != session.StatusProcessing {
			return session.Patch{}, fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, s.Status, session.StatusSpeaking)
		}
		history := make([]session.Message, 0, len(s.History)+2)
		history = append(history, s.History...)
		history = append(history, user, assistant)

		status := session.StatusSpeaking
		avatar.IsPlaying = true
		return session.Patch{Status: &status, History: &history, Avatar: &avatar}, nil
	})
}

// FinishPlayback returns a speaking session to idle. It is a no-op on a
// session that is already resting.
func (m *Machine) FinishPlayback(ctx context.Context, id string) (session.State, error) {
	return m.Update(ctx, id, func(s session.State) (session.Patch, error) {
		switch s.Status {
		case session.StatusSpeaking:
			status := session.StatusIdle
			avatar := s.Avatar
			avatar.IsPlaying = false
			return session.Patch{Status: &status, Avatar: &avatar}, nil
		case session.StatusIdle, session.StatusListening:
			return session.Patch{}, nil
		default:
			return session.Patch{}, fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, s.Status, session.StatusIdle)
		}
	})
}

// AdvanceQuestion moves to the next question and leaves the session idle,
// cutting any playback short
func (m *Machine) AdvanceQuestion(ctx context.Context, id string) (session.State, error) {
	return m.Update(ctx, id, func(s session.State) (session.Patch, error) {
		if s.Status == session.StatusProcessing {
			return session.Patch{}, fmt.Errorf("%w: cannot advance while processing", ErrInvalidTransition)
		}
		status := session.StatusIdle
		index := s.CurrentQuestionIndex + 1
		avatar := s.Avatar
		avatar.IsPlaying = false
		return session.Patch{Status: &status, CurrentQuestionIndex: &index, Avatar: &avatar}, nil
	})
}

// AbortTurn returns a processing session to idle without touching history,
// so the candidate can retry the turn
func (m *Machine) AbortTurn(ctx context.Context, id string) (session.State, error) {
	return m.Update(ctx, id, func(s session.State) (session.Patch, error) {
		if s.Status != session.StatusProcessing {
			return session.Patch{}, nil
		}
		return session.WithStatus(session.StatusIdle), nil
	})
}

// StartListening marks a resting session as recording. Recording does not
// block a later SubmitAnswer.
func (m *Machine) StartListening(ctx context.Context, id string) (session.State, error) {
	return m.Update(ctx, id, func(s session.State) (session.Patch, error) {
		switch s.Status {
		case session.StatusListening:
			return session.Patch{}, nil
		case session.StatusIdle:
			return session.WithStatus(session.StatusListening), nil
		}
		return session.Patch{}, fmt.Errorf("%w: status is %s", ErrSessionBusy, s.Status)
	})
}

// StopListening returns a recording session to idle. Any other status is
// left alone since a turn may already have started.
func (m *Machine) StopListening(ctx context.Context, id string) (session.State, error) {
	return m.Update(ctx, id, func(s session.State) (session.Patch, error) {
		if s.Status != session.StatusListening {
			return session.Patch{}, nil
		}
		return session.WithStatus(session.StatusIdle), nil
	})
}
