// Command interviewcoach runs the spoken mock-interview service.
package main

import (
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"InterviewCoach/internal/config"
	"InterviewCoach/internal/telemetry"
)

var (
	configPath string
	debug      bool
)

var rootCmd = &cobra.Command{
	Use:   "interviewcoach",
	Short: "Spoken mock-interview coach",
	Long: `interviewcoach runs spoken mock interviews: it turns live speech into
answers, lets an avatar interviewer reply and follow up, and scores the whole
session at the end.`,
	Version:       telemetry.Version,
	SilenceErrors: true,
	SilenceUsage:  true,
}

// Execute runs the root command
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "config.yaml", "Path to the YAML config file")
	rootCmd.PersistentFlags().BoolVar(&debug, "debug", false, "Enable debug logging to stderr")

	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(analyzeCmd)
	rootCmd.AddCommand(versionCmd)
}

// loadConfig reads .env (if present), then the config file and environment
func loadConfig() (*config.Config, error) {
	if err := godotenv.Load(); err != nil && !os.IsNotExist(err) {
		return nil, fmt.Errorf("failed to load .env: %w", err)
	}
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, err
	}
	if debug {
		cfg.Log.Debug = true
		cfg.Log.Level = "debug"
	}
	return cfg, nil
}

func initLogger(cfg *config.Config) (*slog.Logger, io.Closer, error) {
	var level slog.Level
	if err := level.UnmarshalText([]byte(cfg.Log.Level)); err != nil {
		return nil, nil, fmt.Errorf("invalid log level %q: %w", cfg.Log.Level, err)
	}
	logger, closer, err := telemetry.InitLogger(telemetry.LogOptions{
		Dir:   cfg.Log.Dir,
		Level: level,
		Debug: cfg.Log.Debug,
	})
	if err != nil {
		return nil, nil, fmt.Errorf("failed to initialize logger: %w", err)
	}
	return logger, closer, nil
}
