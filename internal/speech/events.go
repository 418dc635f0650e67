// Package speech turns a flaky, auto-ending live transcription stream into
// one stable transcript per recording.
package speech

import (
	"context"
	"errors"
	"fmt"
)

// Alternative is one candidate reading of a result segment
type Alternative struct {
	Transcript string  `json:"transcript"`
	Confidence float64 `json:"confidence"`
}

// Result is one recognized segment. Only final segments are ever committed.
type Result struct {
	IsFinal      bool          `json:"isFinal"`
	Alternatives []Alternative `json:"alternatives"`
}

// Event is pushed by a Recognizer while a stream is running. Results holds
// every segment of the current stream; ResultIndex is the first one that
// changed since the previous event. Err is set for error events.
type Event struct {
	ResultIndex int
	Results     []Result
	Err         error
}

// ErrorCode classifies recognition failures
type ErrorCode string

const (
	CodeNoSpeech           ErrorCode = "no-speech"
	CodePermissionDenied   ErrorCode = "not-allowed"
	CodeDeviceInaccessible ErrorCode = "audio-capture"
	CodeNetwork            ErrorCode = "network"
	CodeAborted            ErrorCode = "aborted"
)

// RecognitionError is reported by a Recognizer through an error event
type RecognitionError struct {
	Code    ErrorCode
	Message string
}

func (e *RecognitionError) Error() string {
	if e.Message != "" {
		return fmt.Sprintf("recognition error %s: %s", e.Code, e.Message)
	}
	return fmt.Sprintf("recognition error %s", e.Code)
}

// Fatal reports whether capture can never succeed without user action
func (e *RecognitionError) Fatal() bool {
	return e.Code == CodePermissionDenied || e.Code == CodeDeviceInaccessible
}

var (
	// ErrCaptureUnavailable means no recognizer exists; recording continues without a transcript
	ErrCaptureUnavailable = errors.New("speech capture unavailable")
	// ErrCapturePermissionDenied means the microphone or recognizer refused access
	ErrCapturePermissionDenied = errors.New("speech capture permission denied")
)

// Recognizer is the live speech backend. A stream runs from Start until the
// returned channel is closed; cancelling ctx must end the stream. Stop halts
// the running stream immediately.
type Recognizer interface {
	Start(ctx context.Context) (<-chan Event, error)
	Stop() error
}
