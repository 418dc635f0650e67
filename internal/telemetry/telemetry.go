package telemetry

import (
	"context"
	"database/sql"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	_ "github.com/mattn/go-sqlite3"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/exporters/stdout/stdoutmetric"
	"go.opentelemetry.io/otel/exporters/stdout/stdouttrace"
	"go.opentelemetry.io/otel/metric"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.26.0"
	"go.opentelemetry.io/otel/trace"
	lumberjack "gopkg.in/natefinch/lumberjack.v2"
)

const serviceName = "interviewcoach"

// Version is stamped at build time with -ldflags
var Version = "dev"

// LogOptions controls where structured logs go
type LogOptions struct {
	Dir   string
	Level slog.Level
	// Debug tees the log stream to stderr
	Debug bool
}

// InitLogger builds the JSON logger, installs it as the slog default and
// returns the rotated file for closing
func InitLogger(opts LogOptions) (*slog.Logger, io.Closer, error) {
	file, err := rotated(opts.Dir, serviceName+".log")
	if err != nil {
		return nil, nil, err
	}

	var out io.Writer = file
	if opts.Debug {
		out = io.MultiWriter(file, os.Stderr)
	}

	logger := slog.New(slog.NewJSONHandler(out, &slog.HandlerOptions{Level: opts.Level})).
		With("service", serviceName, "version", Version)
	slog.SetDefault(logger)
	return logger, file, nil
}

// rotated opens a size-rotated file under dir, creating dir when needed
func rotated(dir, name string) (*lumberjack.Logger, error) {
	if dir == "" {
		dir = "logs"
	}
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create log directory %s: %w", dir, err)
	}
	return &lumberjack.Logger{
		Filename:   filepath.Join(dir, name),
		MaxSize:    10, // MB
		MaxBackups: 3,
		MaxAge:     28,
		Compress:   true,
	}, nil
}

// InitTelemetry initializes OpenTelemetry tracing and metrics.
// Traces go to <dir>/interviewcoach_traces.log and metrics to
// <dir>/interviewcoach_metrics.log every 10 seconds.
func InitTelemetry(ctx context.Context, logDir string) (trace.Tracer, metric.Meter, func(), error) {
	res, err := resource.New(ctx,
		resource.WithAttributes(
			semconv.ServiceName(serviceName),
			semconv.ServiceVersion(Version),
		),
	)
	if err != nil {
		return nil, nil, nil, fmt.Errorf("failed to create resource: %w", err)
	}

	traceFile, err := rotated(logDir, serviceName+"_traces.log")
	if err != nil {
		return nil, nil, nil, err
	}

	traceExporter, err := stdouttrace.New(
		stdouttrace.WithWriter(traceFile),
		stdouttrace.WithPrettyPrint(),
	)
	if err != nil {
		return nil, nil, nil, fmt.Errorf("failed to create trace exporter: %w", err)
	}

	tp := sdktrace.NewTracerProvider(
		sdktrace.WithBatcher(traceExporter),
		sdktrace.WithResource(res),
	)
	otel.SetTracerProvider(tp)

	metricsFile, err := rotated(logDir, serviceName+"_metrics.log")
	if err != nil {
		return nil, nil, nil, err
	}

	metricExporter, err := stdoutmetric.New(
		stdoutmetric.WithWriter(metricsFile),
		stdoutmetric.WithPrettyPrint(),
	)
	if err != nil {
		return nil, nil, nil, fmt.Errorf("failed to create metric exporter: %w", err)
	}

	mp := sdkmetric.NewMeterProvider(
		sdkmetric.WithReader(
			sdkmetric.NewPeriodicReader(
				metricExporter,
				sdkmetric.WithInterval(10*time.Second),
			),
		),
		sdkmetric.WithResource(res),
	)
	otel.SetMeterProvider(mp)

	tracer := tp.Tracer(serviceName)
	meter := mp.Meter(serviceName)

	cleanup := func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		steps := []struct {
			name string
			fn   func() error
		}{
			{"tracer provider", func() error { return tp.Shutdown(ctx) }},
			{"meter provider", func() error { return mp.Shutdown(ctx) }},
			{"trace file", traceFile.Close},
			{"metrics file", metricsFile.Close},
		}
		for _, step := range steps {
			if err := step.fn(); err != nil {
				slog.Error("telemetry shutdown failed", "step", step.name, "error", err)
			}
		}
	}

	return tracer, meter, cleanup, nil
}

// InitDB opens the SQLite database at path and creates the session table
func InitDB(path string) (*sql.DB, error) {
	db, err := sql.Open("sqlite3", path+"?_busy_timeout=5000&_journal_mode=WAL")
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	createDocumentsTable := `
	CREATE TABLE IF NOT EXISTS session_documents (
		id TEXT PRIMARY KEY,
		document TEXT NOT NULL,
		updated_at DATETIME
	);`

	if _, err := db.Exec(createDocumentsTable); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to create session_documents table: %w", err)
	}

	return db, nil
}
