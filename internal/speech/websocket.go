package speech

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"sync"

	"github.com/gorilla/websocket"
)

// relayMessage is the JSON frame pushed by the speech relay
type relayMessage struct {
	Type        string   `json:"type"` // "result" or "error"
	ResultIndex int      `json:"resultIndex"`
	Results     []Result `json:"results,omitempty"`
	Error       string   `json:"error,omitempty"`
	Message     string   `json:"message,omitempty"`
}

// WebSocketRecognizer streams recognition results from a speech relay over
// WebSocket. Audio is pushed with SendAudio as binary frames.
type WebSocketRecognizer struct {
	url    string
	header http.Header
	dialer *websocket.Dialer
	logger *slog.Logger

	mu   sync.Mutex
	conn *websocket.Conn
}

var _ Recognizer = (*WebSocketRecognizer)(nil)

// NewWebSocketRecognizer creates a recognizer for the relay at url
func NewWebSocketRecognizer(url string, header http.Header, logger *slog.Logger) (*WebSocketRecognizer, error) {
	if logger == nil {
		return nil, fmt.Errorf("logger cannot be nil")
	}
	if url == "" {
		return nil, ErrCaptureUnavailable
	}
	return &WebSocketRecognizer{
		url:    url,
		header: header,
		dialer: websocket.DefaultDialer,
		logger: logger,
	}, nil
}

// Start dials the relay and returns a channel of recognition events. The
// channel closes when the relay ends the stream or ctx is cancelled.
func (r *WebSocketRecognizer) Start(ctx context.Context) (<-chan Event, error) {
	conn, resp, err := r.dialer.DialContext(ctx, r.url, r.header)
	if err != nil {
		if resp != nil && (resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden) {
			return nil, &RecognitionError{Code: CodePermissionDenied, Message: resp.Status}
		}
		return nil, &RecognitionError{Code: CodeNetwork, Message: err.Error()}
	}

	r.mu.Lock()
	r.conn = conn
	r.mu.Unlock()
	r.logger.Info("speech relay connected", "url", r.url)

	events := make(chan Event, 16)
	go func() {
		<-ctx.Done()
		conn.Close()
	}()
	go r.read(ctx, conn, events)
	return events, nil
}

func (r *WebSocketRecognizer) read(ctx context.Context, conn *websocket.Conn, events chan<- Event) {
	defer close(events)
	defer r.release(conn)

	for {
		var msg relayMessage
		if err := conn.ReadJSON(&msg); err != nil {
			if ctx.Err() != nil || websocket.IsCloseError(err, websocket.CloseNormalClosure) {
				return
			}
			ev := Event{Err: &RecognitionError{Code: CodeNetwork, Message: err.Error()}}
			var closeErr *websocket.CloseError
			if errors.As(err, &closeErr) && closeErr.Code == websocket.ClosePolicyViolation {
				ev.Err = &RecognitionError{Code: CodePermissionDenied, Message: closeErr.Text}
			}
			send(ctx, events, ev)
			return
		}

		switch msg.Type {
		case "result":
			send(ctx, events, Event{ResultIndex: msg.ResultIndex, Results: msg.Results})
		case "error":
			send(ctx, events, Event{Err: &RecognitionError{Code: ErrorCode(msg.Error), Message: msg.Message}})
		default:
			r.logger.Debug("ignoring relay message", "type", msg.Type)
		}
	}
}

func send(ctx context.Context, events chan<- Event, ev Event) {
	select {
	case events <- ev:
	case <-ctx.Done():
	}
}

// SendAudio forwards a chunk of captured audio to the relay
func (r *WebSocketRecognizer) SendAudio(data []byte) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.conn == nil {
		return nil
	}
	return r.conn.WriteMessage(websocket.BinaryMessage, data)
}

// Stop closes the running stream, if any
func (r *WebSocketRecognizer) Stop() error {
	r.mu.Lock()
	conn := r.conn
	r.conn = nil
	r.mu.Unlock()

	if conn == nil {
		return nil
	}
	conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
	return conn.Close()
}

func (r *WebSocketRecognizer) release(conn *websocket.Conn) {
	r.mu.Lock()
	if r.conn == conn {
		r.conn = nil
	}
	r.mu.Unlock()
}
