package server

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/gorilla/websocket"

	"InterviewCoach/internal/speech"
)

// AudioSink accepts captured audio for a running recognizer
type AudioSink interface {
	SendAudio(data []byte) error
}

// speechCommand is a text frame from the capture client
type speechCommand struct {
	Type string `json:"type"` // "start" or "stop"
}

// speechEvent is a frame pushed to the capture client
type speechEvent struct {
	Type  string `json:"type"` // transcript, final, unavailable, error
	Text  string `json:"text,omitempty"`
	Error string `json:"error,omitempty"`
}

// handleSpeech runs one capture socket. Binary frames carry audio; text
// frames carry start and stop commands. The displayed transcript is pushed
// after every recognition event and the committed transcript on stop.
func (s *Server) handleSpeech(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	AddLogField(r.Context(), "session_id", id)

	if _, err := s.deps.Machine.Read(r.Context(), id); err != nil {
		writeError(w, r, err)
		return
	}

	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.Warn("speech upgrade failed", "session_id", id, "error", err)
		return
	}
	ws := &wsConn{conn: conn}
	defer ws.close(websocket.CloseNormalClosure, "")

	ctx, cancel := context.WithCancel(r.Context())
	defer cancel()

	var recognizer speech.Recognizer
	if s.deps.Recognizer != nil {
		recognizer = s.deps.Recognizer()
	}
	sink, _ := recognizer.(AudioSink)

	push := func(ev speechEvent) {
		if err := ws.writeJSON(ev); err != nil {
			s.logger.Debug("speech push failed", "session_id", id, "error", err)
		}
	}

	opts := s.deps.Speech
	opts.OnTranscript = func(text string) { push(speechEvent{Type: "transcript", Text: text}) }
	opts.OnFatal = func(err error) { push(speechEvent{Type: "unavailable", Error: err.Error()}) }
	opts.OnFinalized = func(text string) {
		s.stopListening(id)
		push(speechEvent{Type: "final", Text: text})
	}
	acc := speech.NewAccumulator(recognizer, opts, s.logger.With("session_id", id))

	defer func() {
		acc.Stop()
		s.stopListening(id)
	}()

	for {
		kind, data, err := conn.ReadMessage()
		if err != nil {
			return
		}

		if kind == websocket.BinaryMessage {
			if sink != nil && acc.State() == speech.StateActive {
				if err := sink.SendAudio(data); err != nil {
					s.logger.Debug("failed to forward audio", "session_id", id, "error", err)
				}
			}
			continue
		}

		var cmd speechCommand
		if err := json.Unmarshal(data, &cmd); err != nil {
			push(speechEvent{Type: "error", Error: "invalid command"})
			continue
		}
		switch cmd.Type {
		case "start":
			if _, err := s.deps.Machine.StartListening(ctx, id); err != nil {
				push(speechEvent{Type: "error", Error: err.Error()})
				continue
			}
			if err := acc.Start(ctx); err != nil {
				push(speechEvent{Type: "error", Error: err.Error()})
				continue
			}
			if err := acc.Unavailable(); err != nil {
				push(speechEvent{Type: "unavailable", Error: err.Error()})
			}
		case "stop":
			final := acc.Stop()
			s.stopListening(id)
			push(speechEvent{Type: "final", Text: final})
		default:
			push(speechEvent{Type: "error", Error: "unknown command " + cmd.Type})
		}
	}
}

// stopListening runs on its own context so a closed socket still resets the status
func (s *Server) stopListening(id string) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if _, err := s.deps.Machine.StopListening(ctx, id); err != nil {
		s.logger.Warn("failed to clear listening status", "session_id", id, "error", err)
	}
}
