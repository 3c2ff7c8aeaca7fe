package main

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"voxsane-fleet/internal/sim"
	"voxsane-fleet/internal/telemetry"
)

func fakeTerminal(t *testing.T, on bool) {
	t.Helper()
	prev := isTerminal
	isTerminal = func(*os.File) bool { return on }
	t.Cleanup(func() { isTerminal = prev })
}

func TestNewWritersPrintOnly(t *testing.T) {
	fakeTerminal(t, false)
	out, err := newWriters(context.Background(), writerOptions{sim: sim.DefaultConfig(), printOnly: true})
	if err != nil {
		t.Fatalf("newWriters returned error: %v", err)
	}
	out.Close()
	if _, ok := out.telemetry.(*sim.JSONStdoutWriter); !ok {
		t.Fatalf("expected *sim.JSONStdoutWriter, got %T", out.telemetry)
	}
	if _, ok := out.alerts.(*sim.JSONStdoutWriter); !ok {
		t.Fatalf("expected *sim.JSONStdoutWriter, got %T", out.alerts)
	}
}

func TestNewWritersGreptimeFallback(t *testing.T) {
	fakeTerminal(t, false)
	t.Setenv("GREPTIMEDB_ENDPOINT", "")
	out, err := newWriters(context.Background(), writerOptions{sim: sim.DefaultConfig()})
	if err != nil {
		t.Fatalf("newWriters returned error: %v", err)
	}
	out.Close()
	if _, ok := out.telemetry.(*sim.JSONStdoutWriter); !ok {
		t.Fatalf("expected *sim.JSONStdoutWriter, got %T", out.telemetry)
	}
}

func TestNewWritersColorOnTerminal(t *testing.T) {
	fakeTerminal(t, true)
	out, err := newWriters(context.Background(), writerOptions{clusterID: "c1", sim: sim.DefaultConfig(), printOnly: true})
	if err != nil {
		t.Fatalf("newWriters returned error: %v", err)
	}
	out.Close()
	if _, ok := out.telemetry.(*sim.ColorStdoutWriter); !ok {
		t.Fatalf("expected *sim.ColorStdoutWriter, got %T", out.telemetry)
	}
}

func TestNewWritersTUIFallsBackWithoutTerminal(t *testing.T) {
	fakeTerminal(t, false)
	out, err := newWriters(context.Background(), writerOptions{sim: sim.DefaultConfig(), tui: true})
	if err != nil {
		t.Fatalf("newWriters returned error: %v", err)
	}
	out.Close()
	if out.tui != nil {
		t.Fatalf("expected no TUI without a terminal")
	}
	if _, ok := out.telemetry.(*sim.JSONStdoutWriter); !ok {
		t.Fatalf("expected *sim.JSONStdoutWriter, got %T", out.telemetry)
	}
}

func TestNewWritersLogFile(t *testing.T) {
	fakeTerminal(t, false)
	dir := t.TempDir()
	path := filepath.Join(dir, "telemetry.log")
	out, err := newWriters(context.Background(), writerOptions{sim: sim.DefaultConfig(), printOnly: true, logFile: path})
	if err != nil {
		t.Fatalf("newWriters returned error: %v", err)
	}
	if _, ok := out.telemetry.(*sim.MultiWriter); !ok {
		t.Fatalf("expected *sim.MultiWriter, got %T", out.telemetry)
	}
	if _, ok := out.alerts.(*sim.MultiWriter); !ok {
		t.Fatalf("expected alert writer *sim.MultiWriter, got %T", out.alerts)
	}
	now := time.Now()
	if err := out.telemetry.Write(telemetry.DroneRow{ClusterID: "c1", DroneID: "d1", Status: "online", Timestamp: now}); err != nil {
		t.Fatalf("write failed: %v", err)
	}
	if err := out.alerts.WriteAlert(telemetry.AlertRow{ClusterID: "c1", AlertID: 1, Title: "Low battery", Kind: "urgent", CreatedAt: now, Timestamp: now}); err != nil {
		t.Fatalf("write alert failed: %v", err)
	}
	out.Close()

	for _, p := range []string{path, path + ".alerts"} {
		info, err := os.Stat(p)
		if err != nil {
			t.Fatalf("stat %s failed: %v", p, err)
		}
		if info.Size() == 0 {
			t.Fatalf("expected %s to be non-empty", p)
		}
	}
}

func TestNewWritersRejectsBadRedisDB(t *testing.T) {
	fakeTerminal(t, false)
	t.Setenv("GREPTIMEDB_ENDPOINT", "")
	t.Setenv("REDIS_ADDR", "127.0.0.1:6379")
	t.Setenv("REDIS_DB", "zero")
	if _, err := newWriters(context.Background(), writerOptions{sim: sim.DefaultConfig()}); err == nil {
		t.Fatalf("expected error for non-numeric REDIS_DB")
	}
}

func TestNewWritersPrintOnlySkipsRedis(t *testing.T) {
	fakeTerminal(t, false)
	t.Setenv("REDIS_ADDR", "127.0.0.1:1")
	out, err := newWriters(context.Background(), writerOptions{sim: sim.DefaultConfig(), printOnly: true})
	if err != nil {
		t.Fatalf("newWriters returned error: %v", err)
	}
	out.Close()
	if _, ok := out.telemetry.(*sim.JSONStdoutWriter); !ok {
		t.Fatalf("expected *sim.JSONStdoutWriter, got %T", out.telemetry)
	}
}
