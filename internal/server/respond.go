package server

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"

	"InterviewCoach/internal/analysis"
	"InterviewCoach/internal/orchestrator"
	"InterviewCoach/internal/sessionstore"
	"InterviewCoach/internal/statemachine"
)

type errorResponse struct {
	Error string `json:"error"`
	Code  string `json:"code"`
}

// apiError is a request problem the handler detected itself
type apiError struct {
	status  int
	code    string
	message string
}

func (e *apiError) Error() string { return e.message }

func badRequest(code, message string) error {
	return &apiError{status: http.StatusBadRequest, code: code, message: message}
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

// writeError maps err to a status and a machine-readable code. Internal
// failures are logged with the request but not echoed to the client.
func writeError(w http.ResponseWriter, r *http.Request, err error) {
	AddError(r.Context(), err)
	status, code := classify(err)
	message := err.Error()
	if status == http.StatusInternalServerError {
		message = "internal error"
	}
	writeJSON(w, status, errorResponse{Error: message, Code: code})
}

func classify(err error) (int, string) {
	var ae *apiError
	switch {
	case errors.As(err, &ae):
		return ae.status, ae.code
	case errors.Is(err, orchestrator.ErrEmptyInput), errors.Is(err, analysis.ErrEmptyInput):
		return http.StatusBadRequest, "empty_input"
	case errors.Is(err, sessionstore.ErrNotFound):
		return http.StatusNotFound, "session_not_found"
	case errors.Is(err, sessionstore.ErrExists):
		return http.StatusConflict, "session_exists"
	case errors.Is(err, statemachine.ErrSessionBusy):
		return http.StatusConflict, "session_busy"
	case errors.Is(err, statemachine.ErrInvalidTransition):
		return http.StatusConflict, "invalid_transition"
	case errors.Is(err, analysis.ErrMediaTooLarge):
		return http.StatusRequestEntityTooLarge, "media_too_large"
	case errors.Is(err, analysis.ErrBackendDisabled):
		return http.StatusServiceUnavailable, "backend_disabled"
	case errors.Is(err, analysis.ErrBackendUnavailable):
		return http.StatusServiceUnavailable, "backend_unavailable"
	case errors.Is(err, analysis.ErrNoBackendAvailable):
		return http.StatusServiceUnavailable, "no_backend"
	case errors.Is(err, orchestrator.ErrMalformedReply):
		return http.StatusInternalServerError, "malformed_reply"
	case errors.Is(err, context.DeadlineExceeded):
		return http.StatusGatewayTimeout, "timeout"
	}
	return http.StatusInternalServerError, "internal"
}

func decode(r *http.Request, v any) error {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		return badRequest("invalid_json", "request body is not valid JSON: "+err.Error())
	}
	return nil
}

// decodeOptional is decode that accepts an empty body
func decodeOptional(r *http.Request, v any) error {
	err := json.NewDecoder(r.Body).Decode(v)
	if err == nil || errors.Is(err, io.EOF) {
		return nil
	}
	return badRequest("invalid_json", "request body is not valid JSON: "+err.Error())
}
