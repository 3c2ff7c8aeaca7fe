package config

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"voxsane-fleet/internal/fleet"
)

const testSchema = "testdata/fleet.cue"

func TestLoadConfig_Valid(t *testing.T) {
	cfg, err := Load("testdata/valid.yaml", testSchema)
	if err != nil {
		t.Fatalf("Load() returned error: %v", err)
	}
	if cfg.ClusterID != "test-cluster" || cfg.AlertCapacity != 3 {
		t.Errorf("unexpected config: %+v", cfg)
	}
	if cfg.ActivityCapacity != fleet.DefaultActivityCapacity {
		t.Errorf("activity capacity default not applied: %d", cfg.ActivityCapacity)
	}
	if cfg.Simulation.DrainInterval.Std() != 2*time.Second {
		t.Errorf("drain interval = %v", cfg.Simulation.DrainInterval.Std())
	}
	if cfg.Simulation.AlertInterval.Std() != DefaultAlertInterval {
		t.Errorf("alert interval default not applied")
	}
	if cfg.Simulation.AlertProbability == nil || *cfg.Simulation.AlertProbability != 0 {
		t.Errorf("explicit zero probability overwritten")
	}
	if cfg.Catalog != filepath.Join("testdata", "catalog.yaml") {
		t.Errorf("catalog path not resolved: %s", cfg.Catalog)
	}

	drones, err := cfg.FleetDrones()
	if err != nil {
		t.Fatalf("FleetDrones: %v", err)
	}
	if len(drones) != 2 || drones[1].ID != "b" || drones[0].Status != fleet.StatusFlying {
		t.Fatalf("unexpected drones: %+v", drones)
	}
	if !strings.HasPrefix(drones[0].ID, "drone-alpha-") {
		t.Errorf("generated id %q not derived from name", drones[0].ID)
	}
}

func TestLoadConfig_SchemaRejects(t *testing.T) {
	for _, name := range []string{"bad_status.yaml", "bad_battery.yaml"} {
		if _, err := Load(filepath.Join("testdata", name), testSchema); err == nil {
			t.Errorf("%s: expected schema validation error", name)
		}
	}
}

func TestLoadConfig_UnknownField(t *testing.T) {
	path := filepath.Join(t.TempDir(), "fleet.yaml")
	if err := os.WriteFile(path, []byte("cluster: x\n"), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}
	if _, err := Load(path, ""); err == nil {
		t.Fatalf("expected unknown field error")
	}
}

func TestParseEmptyUsesDemoFleet(t *testing.T) {
	cfg, err := Parse(nil)
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if len(cfg.Drones) != len(fleet.DefaultDrones()) {
		t.Fatalf("expected demo fleet, got %d drones", len(cfg.Drones))
	}
	if _, err := fleet.NewStore(mustDrones(t, cfg)); err != nil {
		t.Fatalf("demo fleet rejected by store: %v", err)
	}
}

func TestRepoConfigValidates(t *testing.T) {
	if err := ValidateWithCue("../../config/fleet.yaml", "../../schemas/fleet.cue"); err != nil {
		t.Fatalf("shipped config invalid: %v", err)
	}
}

func TestWatcherReloads(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "fleet.yaml")
	if err := os.WriteFile(path, []byte("cluster_id: one\n"), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}
	w, err := NewWatcher(path, "")
	if err != nil {
		t.Fatalf("NewWatcher: %v", err)
	}
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	got := make(chan *Config, 4)
	go w.Run(ctx, func(c *Config) { got <- c })

	if err := os.WriteFile(path, []byte("cluster_id: two\n"), 0o644); err != nil {
		t.Fatalf("rewrite: %v", err)
	}
	select {
	case c := <-got:
		if c.ClusterID != "two" {
			t.Fatalf("reloaded cluster id = %s", c.ClusterID)
		}
	case <-time.After(5 * time.Second):
		t.Fatalf("no reload observed")
	}
}

func mustDrones(t *testing.T, cfg *Config) []fleet.Drone {
	t.Helper()
	d, err := cfg.FleetDrones()
	if err != nil {
		t.Fatalf("FleetDrones: %v", err)
	}
	return d
}

func TestSchemaValidateReportsField(t *testing.T) {
	schema, err := LoadSchema(testSchema)
	if err != nil {
		t.Fatalf("LoadSchema: %v", err)
	}
	data, err := os.ReadFile(filepath.Join("testdata", "bad_status.yaml"))
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	err = schema.Validate("bad_status.yaml", data)
	if err == nil {
		t.Fatalf("expected validation error")
	}
	if !strings.Contains(err.Error(), "bad_status.yaml") {
		t.Errorf("error does not name the config: %v", err)
	}
}

func TestCompileSchemaRequiresConfigDefinition(t *testing.T) {
	if _, err := CompileSchema("empty.cue", []byte("#Other: {}\n")); err == nil {
		t.Fatalf("expected missing #Config error")
	}
}
