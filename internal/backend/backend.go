// Package backend talks to the hosted language models used for interview
// turns and final analysis.
package backend

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
)

// Message is one chat message sent to a backend
type Message struct {
	Role    string // "user" or "assistant"
	Content string
}

// Media is an attachment for multimodal backends. Either Data is inlined or
// URI references a previous upload.
type Media struct {
	MIMEType string
	Data     []byte
	URI      string
	Name     string // backend handle for uploaded media
}

// Request is a single completion request
type Request struct {
	System    string
	Messages  []Message
	Media     []Media
	JSON      bool // ask for a JSON document
	MaxTokens int
}

// Response is the text a backend produced
type Response struct {
	Text  string
	Model string
	Usage map[string]float64
}

// Completer is a request/response completion backend
type Completer interface {
	Name() string
	Complete(ctx context.Context, req Request) (Response, error)
}

// MediaCompleter is implemented by backends that accept media attachments
type MediaCompleter interface {
	Completer
	SupportsMedia() bool
}

// Uploader is implemented by backends that can host large media temporarily
type Uploader interface {
	Upload(ctx context.Context, r io.Reader, mimeType string) (Media, error)
	Release(ctx context.Context, m Media) error
}

// Kind classifies backend failures for retry decisions
type Kind int

const (
	KindOther Kind = iota
	// KindTransient covers overload, unavailable and resource-exhausted signals
	KindTransient
	// KindDisabled means the backend is administratively disabled or not provisioned
	KindDisabled
)

func (k Kind) String() string {
	switch k {
	case KindTransient:
		return "transient"
	case KindDisabled:
		return "disabled"
	}
	return "other"
}

// Error is a failed backend call
type Error struct {
	Backend    string
	Kind       Kind
	StatusCode int
	Status     string
	Message    string
}

func (e *Error) Error() string {
	if e.Status != "" {
		return fmt.Sprintf("%s: %s (%d %s): %s", e.Backend, e.Kind, e.StatusCode, e.Status, e.Message)
	}
	return fmt.Sprintf("%s: %s (%d): %s", e.Backend, e.Kind, e.StatusCode, e.Message)
}

var (
	// ErrNoBackendAvailable is returned when no candidate backend can be initialized
	ErrNoBackendAvailable = errors.New("no analysis backend available")
	// ErrNotConfigured is returned by Init funcs when credentials are missing
	ErrNotConfigured = errors.New("backend not configured")
)

// KindOf returns the failure kind of err, KindOther when it is not a backend error
func KindOf(err error) Kind {
	var be *Error
	if errors.As(err, &be) {
		return be.Kind
	}
	return KindOther
}

// Classify maps a status code, status string and message to a failure kind
func Classify(statusCode int, status, message string) Kind {
	upper := strings.ToUpper(status)
	lower := strings.ToLower(message)

	if upper == "SERVICE_DISABLED" ||
		strings.Contains(lower, "service_disabled") ||
		strings.Contains(lower, "has not been used in project") ||
		strings.Contains(lower, "api is disabled") ||
		strings.Contains(lower, "not provisioned") {
		return KindDisabled
	}

	switch upper {
	case "UNAVAILABLE", "RESOURCE_EXHAUSTED", "OVERLOADED", "OVERLOADED_ERROR":
		return KindTransient
	}

	switch statusCode {
	case http.StatusServiceUnavailable, http.StatusTooManyRequests, 529:
		return KindTransient
	}

	if strings.Contains(lower, "overloaded") {
		return KindTransient
	}
	return KindOther
}

// httpError builds an Error from a non-200 HTTP response
func httpError(backend string, resp *http.Response, body []byte) *Error {
	msg := strings.TrimSpace(string(body))
	return &Error{
		Backend:    backend,
		Kind:       Classify(resp.StatusCode, "", msg),
		StatusCode: resp.StatusCode,
		Status:     http.StatusText(resp.StatusCode),
		Message:    msg,
	}
}
