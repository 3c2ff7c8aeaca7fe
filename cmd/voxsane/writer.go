package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"strconv"

	"golang.org/x/term"

	"voxsane-fleet/internal/logging"
	"voxsane-fleet/internal/sim"
)

// isTerminal reports whether f is attached to a terminal.
var isTerminal = func(f *os.File) bool {
	return term.IsTerminal(int(f.Fd()))
}

// exportWriter handles both export streams.
type exportWriter interface {
	sim.TelemetryWriter
	sim.AlertWriter
}

type writerOptions struct {
	clusterID string
	sim       sim.Config
	printOnly bool
	tui       bool
	logFile   string
}

// writers is the set of sinks a command exports to.
type writers struct {
	telemetry sim.TelemetryWriter
	alerts    sim.AlertWriter
	// tui is set when the terminal UI is the base writer.
	tui     *sim.TUIWriter
	closers []io.Closer
}

// Close releases every sink in reverse order of creation.
func (w *writers) Close() {
	for i := len(w.closers) - 1; i >= 0; i-- {
		_ = w.closers[i].Close()
	}
}

// SetAdminStatus forwards the admin listener state to sinks that show it.
func (w *writers) SetAdminStatus(listening bool) {
	if aw, ok := w.telemetry.(sim.AdminStatusWriter); ok {
		aw.SetAdminStatus(listening)
	}
}

// newWriters sets up telemetry and alert writers based on flags and env vars.
// Several sinks are fanned out through a MultiWriter.
func newWriters(ctx context.Context, opts writerOptions) (*writers, error) {
	out := &writers{}
	base, err := baseWriter(ctx, opts)
	if err != nil {
		return nil, err
	}
	sinks := []exportWriter{base}
	if tw, ok := base.(*sim.TUIWriter); ok {
		out.tui = tw
	}
	if c, ok := base.(io.Closer); ok {
		out.closers = append(out.closers, c)
	}

	if addr := os.Getenv("REDIS_ADDR"); addr != "" && !opts.printOnly {
		db := 0
		if v := os.Getenv("REDIS_DB"); v != "" {
			if db, err = strconv.Atoi(v); err != nil {
				out.Close()
				return nil, fmt.Errorf("REDIS_DB: %w", err)
			}
		}
		rw, err := sim.NewRedisWriter(ctx, addr, os.Getenv("REDIS_PASSWORD"), db)
		if err != nil {
			out.Close()
			return nil, err
		}
		sinks = append(sinks, rw)
		out.closers = append(out.closers, rw)
	}

	if opts.logFile != "" {
		fw, err := sim.NewFileWriter(opts.logFile, opts.logFile+".alerts")
		if err != nil {
			out.Close()
			return nil, err
		}
		sinks = append(sinks, fw)
		out.closers = append(out.closers, fw)
	}

	if len(sinks) == 1 {
		out.telemetry, out.alerts = base, base
		return out, nil
	}
	tws := make([]sim.TelemetryWriter, 0, len(sinks))
	aws := make([]sim.AlertWriter, 0, len(sinks))
	for _, s := range sinks {
		tws = append(tws, s)
		aws = append(aws, s)
	}
	mw := sim.NewMultiWriter(tws, aws)
	out.telemetry, out.alerts = mw, mw
	return out, nil
}

// baseWriter chooses the primary sink: the TUI, GreptimeDB when configured,
// or STDOUT.
func baseWriter(ctx context.Context, opts writerOptions) (exportWriter, error) {
	log := logging.FromContext(ctx)
	if opts.tui {
		if isTerminal(os.Stdout) {
			return sim.NewTUIWriter(opts.clusterID, opts.sim), nil
		}
		log.Warn("stdout is not a terminal, falling back to JSON output")
		return sim.NewJSONStdoutWriter(), nil
	}

	endpoint := os.Getenv("GREPTIMEDB_ENDPOINT")
	if opts.printOnly || endpoint == "" {
		if isTerminal(os.Stdout) {
			cfg := opts.sim
			return sim.NewColorStdoutWriter(opts.clusterID, &cfg), nil
		}
		return sim.NewJSONStdoutWriter(), nil
	}

	database := os.Getenv("GREPTIMEDB_DATABASE")
	if database == "" {
		database = "public"
	}
	log.Info("exporting to GreptimeDB", "endpoint", endpoint, "database", database)
	w, err := sim.NewGreptimeDBWriter(endpoint, database)
	if err != nil {
		return nil, err
	}
	return w, nil
}

// newTelemetryWriter creates a writer for replays: no TUI and no log file.
func newTelemetryWriter(ctx context.Context, printOnly bool) (*writers, error) {
	return newWriters(ctx, writerOptions{sim: sim.DefaultConfig(), printOnly: printOnly})
}
