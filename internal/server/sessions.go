package server

import (
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
)

type createSessionRequest struct {
	SessionID string `json:"sessionId"`
	Owner     string `json:"owner"`
}

func (s *Server) handleCreateSession(w http.ResponseWriter, r *http.Request) {
	var req createSessionRequest
	// an empty body creates an anonymous session
	if err := decodeOptional(r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	id := strings.TrimSpace(req.SessionID)
	if id == "" {
		id = uuid.NewString()
	}
	AddLogField(r.Context(), "session_id", id)

	state, err := s.deps.Machine.Create(r.Context(), id, req.Owner)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, state)
}

func (s *Server) handleGetSession(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	AddLogField(r.Context(), "session_id", id)

	state, err := s.deps.Machine.Read(r.Context(), id)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, state)
}

func (s *Server) handlePlaybackFinished(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	AddLogField(r.Context(), "session_id", id)

	state, err := s.deps.Machine.FinishPlayback(r.Context(), id)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, state)
}

func (s *Server) handleAdvance(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	AddLogField(r.Context(), "session_id", id)

	state, err := s.deps.Machine.AdvanceQuestion(r.Context(), id)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, state)
}
