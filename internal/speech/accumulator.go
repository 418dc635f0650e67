package speech

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"sync"
	"time"
)

const (
	// FinalConfidenceThreshold is the minimum confidence for committing a final segment
	FinalConfidenceThreshold = 0.4
	// InterimConfidenceThreshold is the minimum confidence for displaying interim text
	InterimConfidenceThreshold = 0.6

	defaultRestartDelay = 250 * time.Millisecond
	minRestartDelay     = 100 * time.Millisecond
	maxRestartDelay     = time.Second
)

// State is the capture lifecycle state
type State int

const (
	StateStopped State = iota
	StateStarting
	StateActive
	StateRestarting
)

func (s State) String() string {
	switch s {
	case StateStopped:
		return "stopped"
	case StateStarting:
		return "starting"
	case StateActive:
		return "active"
	case StateRestarting:
		return "restarting"
	}
	return "unknown"
}

// Options configures an Accumulator
type Options struct {
	// RestartDelay is the pause before reopening a stream that ended or
	// failed transiently. Clamped to 100ms-1s.
	RestartDelay time.Duration

	// MaxDuration force-stops capture after this long. Zero disables it.
	MaxDuration time.Duration

	// OnTranscript receives the displayed transcript after every result event
	OnTranscript func(string)

	// OnFatal is told when capture becomes permanently impossible
	OnFatal func(error)

	// OnFinalized receives the committed transcript when MaxDuration expires
	OnFinalized func(string)
}

// Accumulator collects confidence-filtered final segments across stream
// restarts. Every restart task is tagged with the generation it was started
// under, and every stream additionally carries its own sequence number.
// Anything from an older generation or an abandoned stream is ignored, so
// neither a stop followed by an immediate start nor a replaced stream that
// keeps talking can race the current one.
type Accumulator struct {
	recognizer Recognizer
	opts       Options
	logger     *slog.Logger

	mu           sync.Mutex
	state        State
	gen          uint64
	stream       uint64 // sequence of the stream currently consumed
	ctx          context.Context
	committed    strings.Builder
	interim      string
	cursor       int
	cancelStream context.CancelFunc
	restartTimer *time.Timer
	maxTimer     *time.Timer
	unavailable  error
}

// NewAccumulator creates an accumulator. A nil recognizer puts capture in
// unavailable mode; recording may still proceed without a transcript.
func NewAccumulator(recognizer Recognizer, opts Options, logger *slog.Logger) *Accumulator {
	switch {
	case opts.RestartDelay == 0:
		opts.RestartDelay = defaultRestartDelay
	case opts.RestartDelay < minRestartDelay:
		opts.RestartDelay = minRestartDelay
	case opts.RestartDelay > maxRestartDelay:
		opts.RestartDelay = maxRestartDelay
	}
	a := &Accumulator{recognizer: recognizer, opts: opts, logger: logger}
	if recognizer == nil {
		a.unavailable = ErrCaptureUnavailable
	}
	return a
}

// Start begins a fresh recording. Any capture already running is stopped
// and its transcript discarded. When capture is unavailable Start returns
// nil without doing anything; check Unavailable.
func (a *Accumulator) Start(ctx context.Context) error {
	a.mu.Lock()
	stopRecognizer := false
	if a.state != StateStopped {
		stopRecognizer = a.haltLocked()
	}
	a.committed.Reset()
	a.interim = ""
	a.cursor = 0

	if a.unavailable != nil {
		a.mu.Unlock()
		a.stopRecognizer(stopRecognizer)
		a.logger.Warn("speech capture unavailable, recording without transcript", "error", a.unavailable)
		return nil
	}

	a.gen++
	gen := a.gen
	a.ctx = ctx
	a.state = StateStarting
	if a.opts.MaxDuration > 0 {
		a.maxTimer = time.AfterFunc(a.opts.MaxDuration, func() { a.expire(gen) })
	}
	a.mu.Unlock()

	a.stopRecognizer(stopRecognizer)
	a.launch(ctx, gen)
	return nil
}

// Stop ends capture and returns the committed transcript. Live interim text
// is dropped. Calling Stop when capture is not running is a no-op.
func (a *Accumulator) Stop() string {
	a.mu.Lock()
	if a.state == StateStopped {
		final := strings.TrimSpace(a.committed.String())
		a.mu.Unlock()
		return final
	}
	stopRecognizer := a.haltLocked()
	final := strings.TrimSpace(a.committed.String())
	a.mu.Unlock()

	a.stopRecognizer(stopRecognizer)
	a.logger.Info("speech capture stopped", "transcript_length", len(final))
	return final
}

// Transcript returns the displayed transcript: committed text followed by
// the current interim text, if any
func (a *Accumulator) Transcript() string {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.displayLocked()
}

// Committed returns the raw committed buffer, trailing space included
func (a *Accumulator) Committed() string {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.committed.String()
}

// State returns the current lifecycle state
func (a *Accumulator) State() State {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.state
}

// Unavailable returns why capture cannot run, or nil
func (a *Accumulator) Unavailable() error {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.unavailable
}

// haltLocked invalidates the current generation and tears down timers and
// the stream. It reports whether the recognizer should be told to stop.
func (a *Accumulator) haltLocked() bool {
	running := a.state == StateActive || a.state == StateStarting
	a.gen++
	a.state = StateStopped
	a.interim = ""
	if a.restartTimer != nil {
		a.restartTimer.Stop()
		a.restartTimer = nil
	}
	if a.maxTimer != nil {
		a.maxTimer.Stop()
		a.maxTimer = nil
	}
	if a.cancelStream != nil {
		a.cancelStream()
		a.cancelStream = nil
	}
	return running
}

func (a *Accumulator) stopRecognizer(should bool) {
	if !should || a.recognizer == nil {
		return
	}
	if err := a.recognizer.Stop(); err != nil {
		a.logger.Warn("failed to stop recognizer", "error", err)
	}
}

func (a *Accumulator) displayLocked() string {
	text := strings.TrimSpace(a.committed.String())
	if a.interim == "" {
		return text
	}
	if text == "" {
		return a.interim
	}
	return text + " " + a.interim
}

// launch opens a stream for gen. It is called without the lock held since
// the recognizer may block while connecting.
func (a *Accumulator) launch(ctx context.Context, gen uint64) {
	streamCtx, cancel := context.WithCancel(ctx)
	events, err := a.recognizer.Start(streamCtx)

	a.mu.Lock()
	if gen != a.gen || a.state != StateStarting {
		a.mu.Unlock()
		cancel()
		return
	}
	if err != nil {
		cancel()
		a.failLocked(gen, err)
		return
	}
	a.stream++
	seq := a.stream
	a.cancelStream = cancel
	a.state = StateActive
	a.mu.Unlock()

	a.logger.Debug("speech stream started", "generation", gen, "stream", seq)
	go a.consume(gen, seq, events)
}

// current reports whether events from stream seq of gen still count.
// Callers hold the lock.
func (a *Accumulator) current(gen, seq uint64) bool {
	return gen == a.gen && seq == a.stream && a.state == StateActive
}

func (a *Accumulator) consume(gen, seq uint64, events <-chan Event) {
	for ev := range events {
		a.handle(gen, seq, ev)
	}

	a.mu.Lock()
	if !a.current(gen, seq) {
		a.mu.Unlock()
		return
	}
	a.logger.Debug("speech stream ended while active, restarting", "generation", gen)
	a.scheduleRestartLocked(gen)
	a.mu.Unlock()
}

func (a *Accumulator) handle(gen, seq uint64, ev Event) {
	a.mu.Lock()
	if !a.current(gen, seq) {
		a.mu.Unlock()
		return
	}
	if ev.Err != nil {
		a.failLocked(gen, ev.Err)
		return
	}

	interim := make([]string, 0, 1)
	start := ev.ResultIndex
	if start < 0 {
		start = 0
	}
	for i := start; i < len(ev.Results); i++ {
		r := ev.Results[i]
		if len(r.Alternatives) == 0 {
			continue
		}
		alt := r.Alternatives[0]
		text := strings.TrimSpace(alt.Transcript)
		if r.IsFinal {
			if i < a.cursor {
				continue
			}
			a.cursor = i + 1
			if text != "" && alt.Confidence >= FinalConfidenceThreshold {
				a.committed.WriteString(text)
				a.committed.WriteString(" ")
			}
			continue
		}
		if text != "" && alt.Confidence >= InterimConfidenceThreshold {
			interim = append(interim, text)
		}
	}
	a.interim = strings.Join(interim, " ")
	display := a.displayLocked()
	a.mu.Unlock()

	if a.opts.OnTranscript != nil {
		a.opts.OnTranscript(display)
	}
}

// failLocked handles a stream error and releases the lock
func (a *Accumulator) failLocked(gen uint64, err error) {
	if errors.Is(err, ErrCaptureUnavailable) {
		a.haltLocked()
		a.unavailable = err
		a.mu.Unlock()
		a.logger.Warn("speech capture unavailable, recording without transcript", "error", err)
		return
	}

	var recErr *RecognitionError
	if errors.As(err, &recErr) {
		switch {
		case recErr.Code == CodeNoSpeech:
			a.mu.Unlock()
			return
		case recErr.Fatal():
			stopRecognizer := a.haltLocked()
			a.unavailable = errors.Join(ErrCapturePermissionDenied, err)
			fatal := a.unavailable
			a.mu.Unlock()

			a.stopRecognizer(stopRecognizer)
			a.logger.Error("speech capture permanently unavailable", "error", err)
			if a.opts.OnFatal != nil {
				a.opts.OnFatal(fatal)
			}
			return
		}
	}

	a.logger.Warn("speech stream failed, scheduling restart", "error", err, "generation", gen)
	if a.cancelStream != nil {
		a.cancelStream()
		a.cancelStream = nil
	}
	if a.state == StateStarting {
		a.state = StateActive
	}
	a.scheduleRestartLocked(gen)
	a.mu.Unlock()
}

func (a *Accumulator) scheduleRestartLocked(gen uint64) {
	if gen != a.gen || a.state != StateActive {
		return
	}
	a.state = StateRestarting
	a.interim = ""
	a.cursor = 0
	a.restartTimer = time.AfterFunc(a.opts.RestartDelay, func() { a.restart(gen) })
}

func (a *Accumulator) restart(gen uint64) {
	a.mu.Lock()
	if gen != a.gen || a.state != StateRestarting {
		a.mu.Unlock()
		return
	}
	a.restartTimer = nil
	a.state = StateStarting
	ctx := a.ctx
	a.mu.Unlock()

	if ctx.Err() != nil {
		a.Stop()
		return
	}
	a.launch(ctx, gen)
}

func (a *Accumulator) expire(gen uint64) {
	a.mu.Lock()
	if gen != a.gen {
		a.mu.Unlock()
		return
	}
	a.mu.Unlock()

	final := a.Stop()
	a.logger.Info("recording reached maximum duration", "max_duration", a.opts.MaxDuration)
	if a.opts.OnFinalized != nil {
		a.opts.OnFinalized(final)
	}
}
