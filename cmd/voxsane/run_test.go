package main

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "fleet.yaml")
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return path
}

const runConfig = `cluster_id: test-01
simulation:
  drain_interval: 5s
  alert_interval: 15s
  alert_probability: 1
  activity_interval: 10s
`

func TestRunFleetIsReproducible(t *testing.T) {
	path := writeConfig(t, runConfig)
	render := func() []byte {
		snap, err := runFleet(context.Background(), path, "", 42, 2*time.Minute, "")
		if err != nil {
			t.Fatalf("runFleet: %v", err)
		}
		var buf bytes.Buffer
		if err := writeSnapshot(&buf, snap); err != nil {
			t.Fatalf("writeSnapshot: %v", err)
		}
		return buf.Bytes()
	}
	first, second := render(), render()
	if !bytes.Equal(first, second) {
		t.Fatalf("same seed produced different output:\n%s\n---\n%s", first, second)
	}
}

func TestRunFleetAdvancesState(t *testing.T) {
	t.Setenv("CLUSTER_ID", "")
	path := writeConfig(t, runConfig)
	snap, err := runFleet(context.Background(), path, "", 7, time.Minute, "")
	if err != nil {
		t.Fatalf("runFleet: %v", err)
	}
	if snap.ClusterID != "test-01" {
		t.Fatalf("cluster id = %q", snap.ClusterID)
	}
	// One alert every 15s with probability 1.
	if got := len(snap.Alerts); got != 4 {
		t.Fatalf("expected 4 alerts, got %d", got)
	}
	if got := len(snap.Activity); got != 6 {
		t.Fatalf("expected 6 activity entries, got %d", got)
	}
	for _, a := range snap.Alerts {
		if a.CreatedAt.Before(runEpoch) || a.CreatedAt.After(runEpoch.Add(time.Minute)) {
			t.Fatalf("alert %d created at %v, outside the virtual window", a.ID, a.CreatedAt)
		}
	}
	var flying bool
	for _, d := range snap.Drones {
		if d.ID == "drone-alpha" {
			flying = true
			if d.Battery >= 78 {
				t.Fatalf("expected drone-alpha to drain, battery %v", d.Battery)
			}
		}
	}
	if !flying {
		t.Fatalf("drone-alpha missing from snapshot")
	}
}

func TestRunFleetWritesLogFile(t *testing.T) {
	path := writeConfig(t, runConfig)
	logPath := filepath.Join(t.TempDir(), "run.jsonl")
	if _, err := runFleet(context.Background(), path, "", 1, 30*time.Second, logPath); err != nil {
		t.Fatalf("runFleet: %v", err)
	}
	data, err := os.ReadFile(logPath)
	if err != nil {
		t.Fatalf("read log: %v", err)
	}
	if len(data) == 0 {
		t.Fatalf("expected telemetry rows in %s", logPath)
	}
}

func TestLoadEnv(t *testing.T) {
	const key = "VOXSANE_TEST_LOAD_ENV"
	os.Unsetenv(key)
	t.Cleanup(func() { os.Unsetenv(key) })

	path := filepath.Join(t.TempDir(), ".env")
	if err := os.WriteFile(path, []byte(key+"=from-file\n"), 0o644); err != nil {
		t.Fatalf("write env: %v", err)
	}
	if err := loadEnv(path); err != nil {
		t.Fatalf("loadEnv: %v", err)
	}
	if got := os.Getenv(key); got != "from-file" {
		t.Fatalf("%s = %q", key, got)
	}
	if err := loadEnv(filepath.Join(t.TempDir(), "missing.env")); err != nil {
		t.Fatalf("missing file should be ignored: %v", err)
	}
}
