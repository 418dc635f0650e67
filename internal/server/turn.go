package server

import (
	"net/http"
	"strings"

	"InterviewCoach/internal/session"
)

type turnRequest struct {
	SessionID           string            `json:"sessionId"`
	UserTranscript      string            `json:"userTranscript"`
	ConversationHistory []session.Message `json:"conversationHistory"`
}

type avatarResponse struct {
	Text           string          `json:"text"`
	Emotion        session.Emotion `json:"emotion"`
	VideoRef       *string         `json:"videoRef"`
	AudioRef       *string         `json:"audioRef"`
	ReadyToAdvance bool            `json:"readyToAdvance"`
}

type turnResponse struct {
	AvatarResponse avatarResponse `json:"avatarResponse"`
	NextQuestion   string         `json:"nextQuestion,omitempty"`
}

func (s *Server) handleTurn(w http.ResponseWriter, r *http.Request) {
	var req turnRequest
	if err := decode(r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	if strings.TrimSpace(req.SessionID) == "" {
		writeError(w, r, badRequest("missing_field", "sessionId is required"))
		return
	}
	if strings.TrimSpace(req.UserTranscript) == "" {
		writeError(w, r, badRequest("missing_field", "userTranscript is required"))
		return
	}
	AddLogField(r.Context(), "session_id", req.SessionID)

	result, err := s.deps.Turns.Submit(r.Context(), req.SessionID, req.UserTranscript, req.ConversationHistory)
	if err != nil {
		writeError(w, r, err)
		return
	}

	avatar := result.State.Avatar
	writeJSON(w, http.StatusOK, turnResponse{
		AvatarResponse: avatarResponse{
			Text:           result.Reply.Text,
			Emotion:        result.Reply.Emotion,
			VideoRef:       avatar.VideoRef,
			AudioRef:       avatar.AudioRef,
			ReadyToAdvance: result.Reply.ReadyToAdvance,
		},
		NextQuestion: result.Reply.NextQuestion,
	})
}
