package main

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"time"

	"github.com/spf13/cobra"

	"InterviewCoach/internal/analysis"
	"InterviewCoach/internal/backend"
	"InterviewCoach/internal/coach"
	"InterviewCoach/internal/interview"
)

var analyzeFramework string

var analyzeCmd = &cobra.Command{
	Use:   "analyze <answers.yaml>",
	Short: "Analyze a recorded session and print the result as JSON",
	Long: `Analyze reads a YAML file of answer records, runs the end-of-session
analysis against the configured backends, and prints the result as JSON.
Media references are resolved relative to the file.`,
	Args: cobra.ExactArgs(1),
	RunE: runAnalyze,
}

func init() {
	analyzeCmd.Flags().StringVar(&analyzeFramework, "framework", "", "Answer framework to evaluate against, e.g. STAR")
}

func runAnalyze(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	logger, closer, err := initLogger(cfg)
	if err != nil {
		return err
	}
	defer closer.Close()

	f, err := interview.LoadAnswerFile(args[0])
	if err != nil {
		return err
	}
	if analyzeFramework != "" {
		f.Framework = analyzeFramework
	}

	var media []analysis.Media
	for _, a := range f.Answers {
		if a.MediaRef == "" {
			continue
		}
		m, err := analysis.MediaFromFile(a.MediaRef)
		if err != nil {
			return err
		}
		media = append(media, m)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	pipeline := coach.NewPipeline(cfg, &http.Client{Timeout: 5 * time.Minute}, backend.Telemetry{}, logger)
	result, err := pipeline.Analyze(ctx, analysis.Request{
		Answers:   f.Answers,
		Framework: f.Framework,
		Media:     media,
	})
	if err != nil {
		return fmt.Errorf("analysis failed: %w", err)
	}

	enc := json.NewEncoder(cmd.OutOrStdout())
	enc.SetIndent("", "  ")
	return enc.Encode(result)
}
