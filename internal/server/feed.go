package server

import (
	"context"
	"net/http"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/gorilla/websocket"

	"InterviewCoach/internal/session"
)

const writeWait = 5 * time.Second

// wsConn serializes writes; gorilla connections allow one concurrent writer
type wsConn struct {
	mu   sync.Mutex
	conn *websocket.Conn
}

func (c *wsConn) writeJSON(v any) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.conn.SetWriteDeadline(time.Now().Add(writeWait))
	return c.conn.WriteJSON(v)
}

func (c *wsConn) close(code int, text string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	_ = c.conn.WriteControl(websocket.CloseMessage, websocket.FormatCloseMessage(code, text), time.Now().Add(writeWait))
	c.conn.Close()
}

// latest holds the newest snapshot not yet written. Subscriber callbacks run
// on the session actor, so they only swap the slot and never block on the
// socket; a slow client skips intermediate snapshots, not the final one.
type latest struct {
	mu      sync.Mutex
	state   *session.State
	pending chan struct{}
}

func newLatest() *latest {
	return &latest{pending: make(chan struct{}, 1)}
}

func (l *latest) set(s session.State) {
	l.mu.Lock()
	l.state = &s
	l.mu.Unlock()
	select {
	case l.pending <- struct{}{}:
	default:
	}
}

func (l *latest) take() (session.State, bool) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.state == nil {
		return session.State{}, false
	}
	s := *l.state
	l.state = nil
	return s, true
}

// handleFeed pushes every snapshot of a session to a websocket client
func (s *Server) handleFeed(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	AddLogField(r.Context(), "session_id", id)

	if _, err := s.deps.Machine.Read(r.Context(), id); err != nil {
		writeError(w, r, err)
		return
	}

	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.Warn("feed upgrade failed", "session_id", id, "error", err)
		return
	}
	defer conn.Close()
	ws := &wsConn{conn: conn}

	ctx, cancel := context.WithCancel(r.Context())
	defer cancel()

	// the client sends nothing; reading only detects the close
	go func() {
		defer cancel()
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	slot := newLatest()
	unsubscribe, err := s.deps.Machine.Subscribe(ctx, id, slot.set)
	if err != nil {
		s.logger.Error("failed to subscribe to session", "session_id", id, "error", err)
		ws.close(websocket.CloseInternalServerErr, "subscription failed")
		return
	}
	defer unsubscribe()
	s.logger.Info("session feed opened", "session_id", id)

	for {
		select {
		case <-ctx.Done():
			ws.close(websocket.CloseNormalClosure, "")
			s.logger.Info("session feed closed", "session_id", id)
			return
		case <-slot.pending:
			state, ok := slot.take()
			if !ok {
				continue
			}
			if err := ws.writeJSON(state); err != nil {
				s.logger.Warn("session feed write failed", "session_id", id, "error", err)
				return
			}
		}
	}
}
