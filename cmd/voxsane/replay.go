package main

import (
	"github.com/spf13/cobra"

	"voxsane-fleet/internal/sim"
)

var (
	replayInput     string
	replaySpeed     float64
	replayPrintOnly bool
)

var replayCmd = &cobra.Command{
	Use:   "replay",
	Short: "Replay a telemetry log file",
	Long:  "replay feeds drone rows from a JSONL log back into GreptimeDB, Redis or STDOUT, keeping the recorded spacing.",
	RunE: func(cmd *cobra.Command, args []string) error {
		out, err := newTelemetryWriter(cmd.Context(), replayPrintOnly)
		if err != nil {
			return err
		}
		defer out.Close()
		return sim.ReplayLogFile(cmd.Context(), replayInput, out.telemetry, replaySpeed)
	},
}

func init() {
	replayCmd.Flags().StringVar(&replayInput, "input", "", "Path to telemetry log file")
	replayCmd.Flags().Float64Var(&replaySpeed, "speed", 1.0, "Playback speed multiplier")
	replayCmd.Flags().BoolVar(&replayPrintOnly, "print-only", false, "Print telemetry to STDOUT instead of writing to DB")
	_ = replayCmd.MarkFlagRequired("input")
}
