package main

import (
	"errors"
	"fmt"
	"math/rand"
	"net/http"
	"os"
	"strconv"
	"time"

	"github.com/spf13/cobra"

	"voxsane-fleet/internal/admin"
	"voxsane-fleet/internal/config"
	"voxsane-fleet/internal/logging"
	"voxsane-fleet/internal/metrics"
	"voxsane-fleet/internal/sim"
)

var (
	simPrintOnly  bool
	simConfigPath string
	simSchemaPath string
	simSpeed      float64
	simLogFile    string
	simAdminAddr  string
	simTUI        bool
	simWatch      bool
	simSeed       int64
)

var simulateCmd = &cobra.Command{
	Use:   "simulate",
	Short: "Run the real-time fleet simulation",
	Long:  "simulate drains batteries, advances missions and injects alerts on real timers while serving the admin UI.",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		log := logging.FromContext(ctx)

		setup, err := loadFleet(simConfigPath, simSchemaPath)
		if err != nil {
			return err
		}

		speed := simSpeed
		if env := os.Getenv("TICK_SCALE"); env != "" {
			if speed, err = strconv.ParseFloat(env, 64); err != nil {
				return fmt.Errorf("TICK_SCALE: %w", err)
			}
		}
		driverCfg := sim.ConfigFrom(setup.cfg.Simulation).Scaled(speed)

		out, err := newWriters(ctx, writerOptions{
			clusterID: setup.clusterID,
			sim:       driverCfg,
			printOnly: simPrintOnly,
			tui:       simTUI,
			logFile:   simLogFile,
		})
		if err != nil {
			return err
		}
		defer out.Close()

		seed := simSeed
		if seed == 0 {
			seed = time.Now().UnixNano()
		}
		m := metrics.New()
		driver, err := sim.NewDriver(setup.store, sim.NewTickerScheduler(), rand.New(rand.NewSource(seed)), driverCfg,
			sim.WithTelemetryWriter(out.telemetry),
			sim.WithAlertWriter(out.alerts),
			sim.WithMetrics(m),
			sim.WithCatalog(setup.catalog),
			sim.WithClusterID(setup.clusterID),
		)
		if err != nil {
			return err
		}
		if out.tui != nil {
			out.tui.SetControl(setup.store)
			// The TUI owns the terminal.
			ctx = logging.NewContext(ctx, logging.Discard())
			log = logging.FromContext(ctx)
		}

		if simAdminAddr != "" {
			srv := admin.NewServer(setup.store, admin.WithSimulation(driver), admin.WithMetrics(m))
			srv.OnListen = out.SetAdminStatus
			go func() {
				if err := srv.Start(ctx, simAdminAddr); err != nil && !errors.Is(err, http.ErrServerClosed) {
					log.Error("admin server failed", "addr", simAdminAddr, "err", err)
				}
			}()
		}

		if simWatch {
			w, err := config.NewWatcher(simConfigPath, simSchemaPath)
			if err != nil {
				return err
			}
			go func() {
				err := w.Run(ctx, func(c *config.Config) {
					if err := driver.Reconfigure(sim.ConfigFrom(c.Simulation).Scaled(speed)); err != nil {
						log.Warn("config reload rejected", "err", err)
					}
				})
				if err != nil {
					log.Error("config watcher stopped", "err", err)
				}
			}()
		}

		log.Info("fleet loaded", "cluster_id", setup.clusterID, "drones", len(setup.store.ListDrones()), "seed", seed)
		driver.Start(ctx)
		<-ctx.Done()
		driver.Stop()
		log.Info("fleet simulation stopped")
		return nil
	},
}

func init() {
	simulateCmd.Flags().BoolVar(&simPrintOnly, "print-only", false, "Print telemetry to STDOUT instead of writing to DB")
	simulateCmd.Flags().StringVar(&simConfigPath, "config", "config/fleet.yaml", "Path to fleet configuration YAML")
	simulateCmd.Flags().StringVar(&simSchemaPath, "schema", "schemas/fleet.cue", "Path to CUE schema file")
	simulateCmd.Flags().Float64Var(&simSpeed, "speed", 1.0, "Time scale; 2 runs every timer twice as often")
	simulateCmd.Flags().StringVar(&simLogFile, "log-file", "", "Path to export telemetry/alert logs (JSONL)")
	simulateCmd.Flags().StringVar(&simAdminAddr, "admin-addr", ":8080", "Admin UI listen address; empty disables it")
	simulateCmd.Flags().BoolVar(&simTUI, "tui", false, "Render the fleet in an interactive terminal UI")
	simulateCmd.Flags().BoolVar(&simWatch, "watch", false, "Reload simulation settings when the config file changes")
	simulateCmd.Flags().Int64Var(&simSeed, "seed", 0, "Random seed; 0 picks one from the clock")
}
