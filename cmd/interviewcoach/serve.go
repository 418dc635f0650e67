package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"InterviewCoach/internal/backend"
	"InterviewCoach/internal/coach"
	"InterviewCoach/internal/telemetry"
)

var (
	serveAddr  string
	serveStore string
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the HTTP and websocket API",
	RunE:  runServe,
}

func init() {
	serveCmd.Flags().StringVar(&serveAddr, "addr", "", "Listen address (overrides server.addr)")
	serveCmd.Flags().StringVar(&serveStore, "store", "", "Session store: memory, sqlite or redis (overrides storage.type)")
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	if serveAddr != "" {
		cfg.Server.Addr = serveAddr
	}
	if serveStore != "" {
		cfg.Storage.Type = serveStore
		if err := cfg.Validate(); err != nil {
			return err
		}
	}

	logger, closer, err := initLogger(cfg)
	if err != nil {
		return err
	}
	defer closer.Close()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	tracer, meter, cleanup, err := telemetry.InitTelemetry(ctx, cfg.Log.Dir)
	if err != nil {
		return fmt.Errorf("failed to initialize telemetry: %w", err)
	}
	defer cleanup()

	app, err := coach.New(ctx, cfg, logger, backend.Telemetry{Tracer: tracer, Meter: meter})
	if err != nil {
		return err
	}
	defer func() {
		if err := app.Close(); err != nil {
			logger.Error("failed to close app", "error", err)
		}
	}()

	return app.Run(ctx)
}
