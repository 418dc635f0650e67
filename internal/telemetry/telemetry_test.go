package telemetry

import (
	"context"
	"log/slog"
	"os"
	"path/filepath"
	"testing"
)

func TestInitDB(t *testing.T) {
	path := filepath.Join(t.TempDir(), "sessions.db")
	db, err := InitDB(path)
	if err != nil {
		t.Fatalf("InitDB() error = %v", err)
	}
	defer db.Close()

	if _, err := db.Exec("INSERT INTO session_documents (id, document) VALUES ('s1', '{}')"); err != nil {
		t.Fatalf("insert error = %v", err)
	}

	// Reopening must keep existing rows.
	db2, err := InitDB(path)
	if err != nil {
		t.Fatalf("InitDB() reopen error = %v", err)
	}
	defer db2.Close()

	var n int
	if err := db2.QueryRow("SELECT COUNT(*) FROM session_documents").Scan(&n); err != nil {
		t.Fatalf("count error = %v", err)
	}
	if n != 1 {
		t.Errorf("rows = %d, want 1", n)
	}
}

func TestInitLogger(t *testing.T) {
	dir := t.TempDir()
	prev := slog.Default()
	defer slog.SetDefault(prev)

	logger, closer, err := InitLogger(LogOptions{Dir: dir, Level: slog.LevelInfo})
	if err != nil {
		t.Fatalf("InitLogger() error = %v", err)
	}
	logger.Info("session created", "session_id", "s1")
	if err := closer.Close(); err != nil {
		t.Fatalf("Close() error = %v", err)
	}

	data, err := os.ReadFile(filepath.Join(dir, "interviewcoach.log"))
	if err != nil {
		t.Fatalf("ReadFile() error = %v", err)
	}
	if len(data) == 0 {
		t.Error("log file is empty")
	}
}

func TestInitTelemetry(t *testing.T) {
	tracer, meter, cleanup, err := InitTelemetry(context.Background(), t.TempDir())
	if err != nil {
		t.Fatalf("InitTelemetry() error = %v", err)
	}
	defer cleanup()

	if tracer == nil || meter == nil {
		t.Fatal("InitTelemetry() returned nil tracer or meter")
	}
	_, span := tracer.Start(context.Background(), "check")
	span.End()
}
