package main

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"voxsane-fleet/internal/logging"
)

var (
	rootEnvFile   string
	rootLogLevel  string
	rootLogFormat string
)

var rootCmd = &cobra.Command{
	Use:           "voxsane",
	Short:         "Fleet state simulation toolkit",
	Long:          "voxsane simulates a drone fleet with alerts and an activity timeline, and exports it to STDOUT, files, GreptimeDB or Redis.",
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		if err := loadEnv(rootEnvFile); err != nil {
			return err
		}
		logger, err := logging.New(rootLogLevel, rootLogFormat)
		if err != nil {
			return err
		}
		slog.SetDefault(logger)
		cmd.SetContext(logging.NewContext(cmd.Context(), logger))
		return nil
	},
}

// loadEnv reads KEY=VALUE pairs into the environment. A missing file is not
// an error; variables already set win.
func loadEnv(path string) error {
	if path == "" {
		return nil
	}
	if err := godotenv.Load(path); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("load %s: %w", path, err)
	}
	return nil
}

// Execute runs the root command. SIGINT and SIGTERM cancel the command
// context.
func Execute() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	err := rootCmd.ExecuteContext(ctx)
	stop()
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVar(&rootEnvFile, "env-file", ".env", "Optional dotenv file loaded before running")
	rootCmd.PersistentFlags().StringVar(&rootLogLevel, "log-level", "info", "Log level (debug, info, warn, error)")
	rootCmd.PersistentFlags().StringVar(&rootLogFormat, "log-format", "text", "Log format (text, json)")

	rootCmd.AddCommand(simulateCmd)
	rootCmd.AddCommand(runCmd)
	rootCmd.AddCommand(replayCmd)
	rootCmd.AddCommand(dashboardCmd)
}
