package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"InterviewCoach/internal/telemetry"
)

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print the version",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Fprintln(cmd.OutOrStdout(), "interviewcoach", telemetry.Version)
	},
}
