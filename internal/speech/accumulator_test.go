package speech

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"
)

// fakeRecognizer hands out one channel per stream so tests can drive, end
// or fail each stream separately
type fakeRecognizer struct {
	mu       sync.Mutex
	streams  []chan Event
	startErr []error
	stops    int
	started  chan int
}

func newFakeRecognizer() *fakeRecognizer {
	return &fakeRecognizer{started: make(chan int, 16)}
}

func (f *fakeRecognizer) Start(ctx context.Context) (<-chan Event, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.startErr) > 0 {
		err := f.startErr[0]
		f.startErr = f.startErr[1:]
		if err != nil {
			return nil, err
		}
	}
	ch := make(chan Event, 8)
	f.streams = append(f.streams, ch)
	f.started <- len(f.streams) - 1
	return ch, nil
}

func (f *fakeRecognizer) Stop() error {
	f.mu.Lock()
	f.stops++
	f.mu.Unlock()
	return nil
}

func (f *fakeRecognizer) stream(i int) chan Event {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.streams[i]
}

func (f *fakeRecognizer) waitStarted(t *testing.T) int {
	t.Helper()
	select {
	case i := <-f.started:
		return i
	case <-time.After(2 * time.Second):
		t.Fatal("stream not started")
	}
	return -1
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func result(final bool, text string, confidence float64) Result {
	return Result{IsFinal: final, Alternatives: []Alternative{{Transcript: text, Confidence: confidence}}}
}

// transcripts queues OnTranscript calls
type transcripts struct {
	ch chan string
}

func newTranscripts() *transcripts {
	return &transcripts{ch: make(chan string, 64)}
}

func (tr *transcripts) record(s string) {
	tr.ch <- s
}

func (tr *transcripts) next(t *testing.T) string {
	t.Helper()
	select {
	case s := <-tr.ch:
		return s
	case <-time.After(2 * time.Second):
		t.Fatal("no transcript update")
	}
	return ""
}

func TestAccumulator_Thresholds(t *testing.T) {
	rec := newFakeRecognizer()
	tr := newTranscripts()
	acc := NewAccumulator(rec, Options{OnTranscript: tr.record}, discardLogger())

	if err := acc.Start(context.Background()); err != nil {
		t.Fatalf("Start() error = %v", err)
	}
	s := rec.stream(rec.waitStarted(t))

	s <- Event{Results: []Result{result(false, "um", 0.5)}}
	if got := tr.next(t); got != "" {
		t.Errorf("low-confidence interim displayed: %q", got)
	}

	s <- Event{Results: []Result{result(true, "I built", 0.8)}}
	if got := tr.next(t); got != "I built" {
		t.Errorf("transcript = %q, want %q", got, "I built")
	}
	if got := acc.Committed(); got != "I built " {
		t.Errorf("Committed() = %q, want %q", got, "I built ")
	}

	s <- Event{ResultIndex: 1, Results: []Result{result(true, "I built", 0.8), result(true, "mumble", 0.3)}}
	tr.next(t)
	s <- Event{ResultIndex: 1, Results: []Result{result(true, "I built", 0.8), result(true, "mumble", 0.3), result(false, "a payments", 0.7)}}
	if got := tr.next(t); got != "I built a payments" {
		t.Errorf("transcript = %q, want committed plus interim", got)
	}

	if got := acc.Stop(); got != "I built" {
		t.Errorf("Stop() = %q, want %q", got, "I built")
	}
	if acc.State() != StateStopped {
		t.Errorf("State() = %s", acc.State())
	}
}

func TestAccumulator_FinalReportedTwiceCommitsOnce(t *testing.T) {
	rec := newFakeRecognizer()
	tr := newTranscripts()
	acc := NewAccumulator(rec, Options{OnTranscript: tr.record}, discardLogger())
	acc.Start(context.Background())
	s := rec.stream(rec.waitStarted(t))

	s <- Event{Results: []Result{result(true, "first", 0.9)}}
	tr.next(t)
	s <- Event{Results: []Result{result(true, "first", 0.9), result(true, "second", 0.9)}}
	tr.next(t)

	if got := acc.Stop(); got != "first second" {
		t.Errorf("Stop() = %q, want %q", got, "first second")
	}
}

func TestAccumulator_InterimOnlyStopsEmpty(t *testing.T) {
	rec := newFakeRecognizer()
	tr := newTranscripts()
	acc := NewAccumulator(rec, Options{OnTranscript: tr.record}, discardLogger())
	acc.Start(context.Background())
	s := rec.stream(rec.waitStarted(t))

	s <- Event{Results: []Result{result(false, "hello there", 0.9)}}
	if got := tr.next(t); got != "hello there" {
		t.Errorf("transcript = %q", got)
	}
	if got := acc.Stop(); got != "" {
		t.Errorf("Stop() = %q, want empty", got)
	}
	rec.mu.Lock()
	stops := rec.stops
	rec.mu.Unlock()
	if stops != 1 {
		t.Errorf("recognizer stopped %d times, want 1", stops)
	}
	if got := acc.Transcript(); got != "" {
		t.Errorf("Transcript() after stop = %q", got)
	}
}

func TestAccumulator_RestartsWhenStreamEnds(t *testing.T) {
	rec := newFakeRecognizer()
	tr := newTranscripts()
	acc := NewAccumulator(rec, Options{OnTranscript: tr.record, RestartDelay: 100 * time.Millisecond}, discardLogger())
	acc.Start(context.Background())
	first := rec.stream(rec.waitStarted(t))

	first <- Event{Results: []Result{result(true, "one", 0.9)}}
	tr.next(t)
	close(first)

	second := rec.stream(rec.waitStarted(t))
	// indices restart with the new stream
	second <- Event{Results: []Result{result(true, "two", 0.9)}}
	if got := tr.next(t); got != "one two" {
		t.Errorf("transcript = %q, want %q", got, "one two")
	}
	acc.Stop()
}

func TestAccumulator_TransientErrorRestarts(t *testing.T) {
	rec := newFakeRecognizer()
	acc := NewAccumulator(rec, Options{RestartDelay: 100 * time.Millisecond}, discardLogger())
	acc.Start(context.Background())
	s := rec.stream(rec.waitStarted(t))

	s <- Event{Err: &RecognitionError{Code: CodeNetwork}}
	rec.waitStarted(t)
	if err := acc.Unavailable(); err != nil {
		t.Errorf("Unavailable() = %v after a transient error", err)
	}
	acc.Stop()
}

func TestAccumulator_StopCancelsPendingRestart(t *testing.T) {
	rec := newFakeRecognizer()
	acc := NewAccumulator(rec, Options{RestartDelay: 200 * time.Millisecond}, discardLogger())
	acc.Start(context.Background())
	close(rec.stream(rec.waitStarted(t)))

	deadline := time.Now().Add(time.Second)
	for acc.State() != StateRestarting {
		if time.Now().After(deadline) {
			t.Fatal("never entered restarting")
		}
		time.Sleep(5 * time.Millisecond)
	}
	acc.Stop()

	select {
	case <-rec.started:
		t.Error("stream restarted after Stop")
	case <-time.After(400 * time.Millisecond):
	}
}

func TestAccumulator_StartWhileActiveResets(t *testing.T) {
	rec := newFakeRecognizer()
	tr := newTranscripts()
	acc := NewAccumulator(rec, Options{OnTranscript: tr.record}, discardLogger())
	acc.Start(context.Background())
	old := rec.stream(rec.waitStarted(t))
	old <- Event{Results: []Result{result(true, "stale", 0.9)}}
	tr.next(t)

	acc.Start(context.Background())
	fresh := rec.stream(rec.waitStarted(t))

	// a late event from the old stream is ignored
	old <- Event{Results: []Result{result(true, "stale", 0.9), result(true, "late", 0.9)}}
	fresh <- Event{Results: []Result{result(true, "new", 0.9)}}
	if got := tr.next(t); got != "new" {
		t.Errorf("transcript = %q, want %q", got, "new")
	}
	if got := acc.Stop(); got != "new" {
		t.Errorf("Stop() = %q, want %q", got, "new")
	}
}

func TestAccumulator_FatalError(t *testing.T) {
	rec := newFakeRecognizer()
	fatal := make(chan error, 1)
	acc := NewAccumulator(rec, Options{OnFatal: func(err error) { fatal <- err }}, discardLogger())
	acc.Start(context.Background())
	rec.stream(rec.waitStarted(t)) <- Event{Err: &RecognitionError{Code: CodePermissionDenied}}

	select {
	case err := <-fatal:
		if !errors.Is(err, ErrCapturePermissionDenied) {
			t.Errorf("OnFatal(%v), want ErrCapturePermissionDenied", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("OnFatal not called")
	}
	if acc.State() != StateStopped || acc.Unavailable() == nil {
		t.Errorf("State() = %s, Unavailable() = %v", acc.State(), acc.Unavailable())
	}
}

func TestAccumulator_NoSpeechKeepsRunning(t *testing.T) {
	rec := newFakeRecognizer()
	tr := newTranscripts()
	acc := NewAccumulator(rec, Options{OnTranscript: tr.record}, discardLogger())
	acc.Start(context.Background())
	s := rec.stream(rec.waitStarted(t))

	s <- Event{Err: &RecognitionError{Code: CodeNoSpeech}}
	s <- Event{Results: []Result{result(true, "still here", 0.9)}}
	if got := tr.next(t); got != "still here" {
		t.Errorf("transcript = %q", got)
	}
	acc.Stop()
}

func TestAccumulator_MaxDuration(t *testing.T) {
	rec := newFakeRecognizer()
	tr := newTranscripts()
	finalized := make(chan string, 1)
	acc := NewAccumulator(rec, Options{
		OnTranscript: tr.record,
		MaxDuration:  150 * time.Millisecond,
		OnFinalized:  func(s string) { finalized <- s },
	}, discardLogger())
	acc.Start(context.Background())
	rec.stream(rec.waitStarted(t)) <- Event{Results: []Result{result(true, "short answer", 0.9)}}
	tr.next(t)

	select {
	case got := <-finalized:
		if got != "short answer" {
			t.Errorf("OnFinalized(%q)", got)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("capture not finalized at max duration")
	}
	if acc.State() != StateStopped {
		t.Errorf("State() = %s", acc.State())
	}
}

func TestAccumulator_NoRecognizer(t *testing.T) {
	acc := NewAccumulator(nil, Options{}, discardLogger())
	if err := acc.Start(context.Background()); err != nil {
		t.Fatalf("Start() error = %v", err)
	}
	if !errors.Is(acc.Unavailable(), ErrCaptureUnavailable) {
		t.Errorf("Unavailable() = %v", acc.Unavailable())
	}
	if got := acc.Stop(); got != "" {
		t.Errorf("Stop() = %q", got)
	}
}

func TestAccumulator_StartFailureRetries(t *testing.T) {
	rec := newFakeRecognizer()
	rec.startErr = []error{&RecognitionError{Code: CodeNetwork, Message: "dial failed"}}
	acc := NewAccumulator(rec, Options{RestartDelay: 100 * time.Millisecond}, discardLogger())
	acc.Start(context.Background())

	rec.waitStarted(t)
	deadline := time.Now().Add(time.Second)
	for acc.State() != StateActive {
		if time.Now().After(deadline) {
			t.Fatalf("State() = %s after retry", acc.State())
		}
		time.Sleep(5 * time.Millisecond)
	}
	acc.Stop()
}

func TestNewAccumulator_ClampsRestartDelay(t *testing.T) {
	tests := []struct {
		in, want time.Duration
	}{
		{0, defaultRestartDelay},
		{10 * time.Millisecond, minRestartDelay},
		{500 * time.Millisecond, 500 * time.Millisecond},
		{5 * time.Second, maxRestartDelay},
	}
	for _, tt := range tests {
		acc := NewAccumulator(newFakeRecognizer(), Options{RestartDelay: tt.in}, discardLogger())
		if acc.opts.RestartDelay != tt.want {
			t.Errorf("RestartDelay(%v) = %v, want %v", tt.in, acc.opts.RestartDelay, tt.want)
		}
	}
}

func waitState(t *testing.T, acc *Accumulator, want State) {
	t.Helper()
	deadline := time.Now().Add(time.Second)
	for acc.State() != want {
		if time.Now().After(deadline) {
			t.Fatalf("State() = %s, want %s", acc.State(), want)
		}
		time.Sleep(5 * time.Millisecond)
	}
}

func TestAccumulator_ReplacedStreamIsIgnored(t *testing.T) {
	rec := newFakeRecognizer()
	tr := newTranscripts()
	acc := NewAccumulator(rec, Options{OnTranscript: tr.record, RestartDelay: 100 * time.Millisecond}, discardLogger())
	acc.Start(context.Background())
	old := rec.stream(rec.waitStarted(t))

	old <- Event{Err: &RecognitionError{Code: CodeNetwork}}
	fresh := rec.stream(rec.waitStarted(t))
	waitState(t, acc, StateActive)

	// the replaced stream has not noticed its cancellation yet
	old <- Event{Results: []Result{result(true, "stale", 0.9)}}
	fresh <- Event{Results: []Result{result(true, "fresh", 0.9)}}
	if got := tr.next(t); got != "fresh" {
		t.Errorf("transcript = %q, want %q", got, "fresh")
	}

	// a late end of the replaced stream must not restart the live one
	close(old)
	select {
	case <-rec.started:
		t.Error("live stream restarted by a replaced stream ending")
	case <-time.After(300 * time.Millisecond):
	}
	if acc.State() != StateActive {
		t.Errorf("State() = %s, want active", acc.State())
	}

	if got := acc.Stop(); got != "fresh" {
		t.Errorf("Stop() = %q, want %q", got, "fresh")
	}
}
