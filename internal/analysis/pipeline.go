// Package analysis produces the end-of-session evaluation from every
// recorded answer, with media when the budget allows it.
package analysis

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"

	"InterviewCoach/internal/backend"
	"InterviewCoach/internal/interview"
)

var (
	// ErrEmptyInput is returned when there is no transcript to analyze
	ErrEmptyInput = errors.New("no transcript to analyze")
	// ErrMediaTooLarge is returned when attached media exceeds the hard limit
	ErrMediaTooLarge = errors.New("media exceeds the upload limit")
	// ErrBackendDisabled is returned when the backend is disabled or not provisioned
	ErrBackendDisabled = errors.New("analysis backend is disabled")
	// ErrBackendUnavailable is returned when transient failures outlast every retry
	ErrBackendUnavailable = errors.New("analysis backend unavailable")
	// ErrNoBackendAvailable is returned when no candidate backend can be initialized
	ErrNoBackendAvailable = backend.ErrNoBackendAvailable
)

const (
	DefaultInlineBudget   = 20 << 20
	DefaultHardLimit      = 200 << 20
	DefaultMaxAttempts    = 4
	DefaultBaseDelay      = 750 * time.Millisecond
	defaultStartupTimeout = 10 * time.Second
)

// Request is everything recorded in one session
type Request struct {
	Answers   []interview.AnswerRecord
	Framework string // e.g. "STAR"; empty for free-form
	Media     []Media
}

// Options bounds payload size and retries
type Options struct {
	InlineBudget   int64
	HardLimit      int64
	MaxAttempts    int
	BaseDelay      time.Duration
	StartupTimeout time.Duration
}

// Pipeline runs one analysis per call. Attempts are sequential.
type Pipeline struct {
	candidates []backend.Candidate
	opts       Options
	logger     *slog.Logger
	sleep      func(ctx context.Context, d time.Duration) error

	tracer   trace.Tracer
	attempts metric.Int64Counter
	duration metric.Float64Histogram
}

// Option configures a Pipeline
type Option func(*Pipeline)

// WithSleep replaces the backoff wait, mainly for tests
func WithSleep(sleep func(ctx context.Context, d time.Duration) error) Option {
	return func(p *Pipeline) { p.sleep = sleep }
}

// WithTelemetry reports spans and metrics to the given providers
func WithTelemetry(tracer trace.Tracer, meter metric.Meter) Option {
	return func(p *Pipeline) {
		if tracer != nil {
			p.tracer = tracer
		}
		if meter != nil {
			p.instrument(meter)
		}
	}
}

// New creates a pipeline over candidates in priority order
func New(candidates []backend.Candidate, opts Options, logger *slog.Logger, options ...Option) *Pipeline {
	if opts.InlineBudget <= 0 {
		opts.InlineBudget = DefaultInlineBudget
	}
	if opts.HardLimit <= 0 {
		opts.HardLimit = DefaultHardLimit
	}
	if opts.MaxAttempts <= 0 {
		opts.MaxAttempts = DefaultMaxAttempts
	}
	if opts.BaseDelay <= 0 {
		opts.BaseDelay = DefaultBaseDelay
	}
	if opts.StartupTimeout <= 0 {
		opts.StartupTimeout = defaultStartupTimeout
	}

	p := &Pipeline{
		candidates: candidates,
		opts:       opts,
		logger:     logger,
		sleep:      sleepContext,
		tracer:     otel.Tracer("interviewcoach/analysis"),
	}
	p.instrument(otel.Meter("interviewcoach/analysis"))
	for _, o := range options {
		o(p)
	}
	return p
}

func (p *Pipeline) instrument(meter metric.Meter) {
	attempts, err := meter.Int64Counter("analysis.attempts",
		metric.WithDescription("Analysis backend calls, retries included"))
	if err == nil {
		p.attempts = attempts
	}
	duration, err := meter.Float64Histogram("analysis.duration",
		metric.WithDescription("Analysis duration in milliseconds"))
	if err == nil {
		p.duration = duration
	}
}

// Analyze evaluates the session. Malformed backend replies never fail the
// call; they degrade to the labeled-text parser or to defaults.
func (p *Pipeline) Analyze(ctx context.Context, req Request) (result Result, err error) {
	ctx, span := p.tracer.Start(ctx, "analysis.analyze",
		trace.WithAttributes(attribute.Int("answers", len(req.Answers)), attribute.Int("media", len(req.Media))))
	start := time.Now()
	defer func() {
		outcome := "ok"
		if err != nil {
			outcome = "error"
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
		}
		if p.duration != nil {
			p.duration.Record(ctx, float64(time.Since(start).Milliseconds()),
				metric.WithAttributes(attribute.String("outcome", outcome)))
		}
		span.End()
	}()

	if !hasTranscript(req.Answers) {
		return Result{}, ErrEmptyInput
	}
	if size := totalSize(req.Media); size > p.opts.HardLimit {
		return Result{}, fmt.Errorf("%w: %d bytes, limit %d", ErrMediaTooLarge, size, p.opts.HardLimit)
	}

	b, err := backend.FirstAvailable(ctx, p.candidates, p.opts.StartupTimeout, p.logger)
	if err != nil {
		return Result{}, err
	}
	span.SetAttributes(attribute.String("backend", b.Name()))

	shaped, err := p.shape(ctx, b, req.Media)
	defer p.cleanup(b, shaped.uploaded)
	if err != nil {
		return Result{}, err
	}

	resp, err := p.call(ctx, b, backend.Request{
		System:    systemPrompt(),
		Messages:  []backend.Message{{Role: "user", Content: userPrompt(req, shaped.note)}},
		Media:     shaped.media,
		JSON:      true,
		MaxTokens: 4096,
	})
	if err != nil {
		return Result{}, err
	}

	parsed := Parse(resp.Text)
	span.SetAttributes(attribute.String("parse", parsed.Kind.String()))
	if parsed.Kind != Structured {
		p.logger.Warn("analysis reply was not structured", "backend", b.Name(), "parser", parsed.Kind.String())
	}
	p.logger.Info("analysis completed",
		"backend", b.Name(),
		"score", parsed.Result.Score,
		"parser", parsed.Kind.String(),
		"multimodal", parsed.Result.Multimodal != nil,
	)
	return parsed.Result, nil
}

type payload struct {
	media    []backend.Media
	uploaded []backend.Media
	note     string // why visual analysis is missing, when it is
}

// shape decides how media travels: inline, uploaded, or not at all
func (p *Pipeline) shape(ctx context.Context, b backend.Completer, media []Media) (payload, error) {
	if len(media) == 0 {
		return payload{}, nil
	}
	if mc, ok := b.(backend.MediaCompleter); !ok || !mc.SupportsMedia() {
		return payload{note: fmt.Sprintf("the %s backend cannot read recordings", b.Name())}, nil
	}

	size := totalSize(media)
	if size <= p.opts.InlineBudget {
		out := payload{}
		for _, m := range media {
			data, err := m.read()
			if err != nil {
				return payload{}, err
			}
			out.media = append(out.media, backend.Media{MIMEType: m.MIMEType, Data: data, Name: m.Name})
		}
		return out, nil
	}

	up, ok := b.(backend.Uploader)
	if !ok {
		p.logger.Warn("media over inline budget, analyzing transcripts only", "size", size, "budget", p.opts.InlineBudget)
		return payload{note: "the recording is too large to send"}, nil
	}

	out := payload{}
	for _, m := range media {
		uploaded, err := p.upload(ctx, up, m)
		if err != nil {
			p.logger.Warn("media upload failed, analyzing transcripts only", "media", m.Name, "error", err)
			return payload{uploaded: out.uploaded, note: "the recording could not be uploaded"}, nil
		}
		out.uploaded = append(out.uploaded, uploaded)
		out.media = append(out.media, uploaded)
	}
	p.logger.Info("uploaded media for analysis", "count", len(out.uploaded), "size", size)
	return out, nil
}

func (p *Pipeline) upload(ctx context.Context, up backend.Uploader, m Media) (backend.Media, error) {
	rc, err := m.Open()
	if err != nil {
		return backend.Media{}, fmt.Errorf("failed to open media %s: %w", m.Name, err)
	}
	defer rc.Close()
	return up.Upload(ctx, rc, m.MIMEType)
}

// cleanup releases uploads on a fresh context; failures are only logged
func (p *Pipeline) cleanup(b backend.Completer, uploaded []backend.Media) {
	if len(uploaded) == 0 {
		return
	}
	up, ok := b.(backend.Uploader)
	if !ok {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	for _, m := range uploaded {
		if err := up.Release(ctx, m); err != nil {
			p.logger.Error("failed to release uploaded media", "media", m.Name, "error", err)
		}
	}
}

// call sends req with bounded retries on transient failures
func (p *Pipeline) call(ctx context.Context, b backend.Completer, req backend.Request) (backend.Response, error) {
	delay := p.opts.BaseDelay
	for attempt := 1; ; attempt++ {
		resp, err := b.Complete(ctx, req)
		p.countAttempt(ctx, b.Name(), err)
		if err == nil {
			if attempt > 1 {
				p.logger.Info("analysis succeeded after retry", "backend", b.Name(), "attempt", attempt)
			}
			return resp, nil
		}

		switch backend.KindOf(err) {
		case backend.KindDisabled:
			p.logger.Error("analysis backend disabled", "backend", b.Name(), "attempt", attempt, "error", err)
			return backend.Response{}, fmt.Errorf("%w: %v", ErrBackendDisabled, err)

		case backend.KindTransient:
			if attempt >= p.opts.MaxAttempts {
				p.logger.Error("analysis backend still unavailable", "backend", b.Name(), "attempts", attempt, "error", err)
				return backend.Response{}, fmt.Errorf("%w after %d attempts: %v", ErrBackendUnavailable, attempt, err)
			}
			p.logger.Warn("analysis backend overloaded, retrying",
				"backend", b.Name(), "attempt", attempt, "delay", delay, "error", err)
			if serr := p.sleep(ctx, delay); serr != nil {
				return backend.Response{}, serr
			}
			delay *= 2

		default:
			p.logger.Error("analysis call failed", "backend", b.Name(), "attempt", attempt, "error", err)
			return backend.Response{}, fmt.Errorf("failed to analyze with %s: %w", b.Name(), err)
		}
	}
}

func (p *Pipeline) countAttempt(ctx context.Context, name string, err error) {
	if p.attempts == nil {
		return
	}
	kind := "ok"
	if err != nil {
		kind = backend.KindOf(err).String()
	}
	p.attempts.Add(ctx, 1, metric.WithAttributes(
		attribute.String("backend", name),
		attribute.String("result", kind),
	))
}

func sleepContext(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func hasTranscript(answers []interview.AnswerRecord) bool {
	for _, a := range answers {
		if strings.TrimSpace(a.Transcript) != "" {
			return true
		}
	}
	return false
}
