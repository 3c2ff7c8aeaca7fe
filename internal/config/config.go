// YAML config loader with CUE validation integration
package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"time"

	"github.com/google/uuid"
	"gopkg.in/yaml.v3"

	"voxsane-fleet/internal/fleet"
)

// Duration is a time.Duration written as a Go duration string ("5s") in YAML.
type Duration time.Duration

// UnmarshalYAML parses a duration string.
func (d *Duration) UnmarshalYAML(n *yaml.Node) error {
	var s string
	if err := n.Decode(&s); err != nil {
		return err
	}
	v, err := time.ParseDuration(s)
	if err != nil {
		return fmt.Errorf("line %d: %w", n.Line, err)
	}
	*d = Duration(v)
	return nil
}

// MarshalYAML renders the duration as a string.
func (d Duration) MarshalYAML() (any, error) {
	return time.Duration(d).String(), nil
}

// Std returns the value as a time.Duration.
func (d Duration) Std() time.Duration { return time.Duration(d) }

// Drone is a seed entry for the fleet store.
type Drone struct {
	ID              string   `yaml:"id,omitempty"`
	Name            string   `yaml:"name"`
	Status          string   `yaml:"status"`
	Battery         float64  `yaml:"battery"`
	Signal          float64  `yaml:"signal"`
	MissionProgress *float64 `yaml:"mission_progress,omitempty"`
	Health          *float64 `yaml:"health,omitempty"`
}

// Simulation tunes the simulation driver.
type Simulation struct {
	DrainInterval    Duration `yaml:"drain_interval"`
	DrainMin         float64  `yaml:"drain_min"`
	DrainMax         float64  `yaml:"drain_max"`
	ProgressMin      float64  `yaml:"progress_min"`
	ProgressMax      float64  `yaml:"progress_max"`
	BatteryFloor     float64  `yaml:"battery_floor"`
	AlertInterval    Duration `yaml:"alert_interval"`
	AlertProbability *float64 `yaml:"alert_probability,omitempty"`
	ActivityInterval Duration `yaml:"activity_interval"`
	DisableActivity  bool     `yaml:"disable_activity"`
}

// Config is the root configuration for the fleet simulation.
type Config struct {
	ClusterID        string     `yaml:"cluster_id"`
	AlertCapacity    int        `yaml:"alert_capacity"`
	ActivityCapacity int        `yaml:"activity_capacity"`
	Catalog          string     `yaml:"catalog,omitempty"`
	Drones           []Drone    `yaml:"drones"`
	Simulation       Simulation `yaml:"simulation"`
}

// Default values applied to zero fields.
const (
	DefaultClusterID        = "fleet-01"
	DefaultDrainInterval    = 5 * time.Second
	DefaultDrainMax         = 2.0
	DefaultProgressMax      = 3.0
	DefaultBatteryFloor     = 5.0
	DefaultAlertInterval    = 15 * time.Second
	DefaultAlertProbability = 0.3
	DefaultActivityInterval = 10 * time.Second
)

// Defaults returns a configuration seeded with the demo fleet.
func Defaults() *Config {
	cfg := &Config{}
	for _, d := range fleet.DefaultDrones() {
		cfg.Drones = append(cfg.Drones, Drone{
			ID:              d.ID,
			Name:            d.Name,
			Status:          string(d.Status),
			Battery:         d.Battery,
			Signal:          d.Signal,
			MissionProgress: d.MissionProgress,
			Health:          d.Health,
		})
	}
	cfg.ApplyDefaults()
	return cfg
}

// ApplyDefaults fills unset fields.
func (c *Config) ApplyDefaults() {
	if c.ClusterID == "" {
		c.ClusterID = DefaultClusterID
	}
	if c.AlertCapacity == 0 {
		c.AlertCapacity = fleet.DefaultAlertCapacity
	}
	if c.ActivityCapacity == 0 {
		c.ActivityCapacity = fleet.DefaultActivityCapacity
	}
	s := &c.Simulation
	if s.DrainInterval == 0 {
		s.DrainInterval = Duration(DefaultDrainInterval)
	}
	if s.DrainMax == 0 {
		s.DrainMax = DefaultDrainMax
	}
	if s.ProgressMax == 0 {
		s.ProgressMax = DefaultProgressMax
	}
	if s.BatteryFloor == 0 {
		s.BatteryFloor = DefaultBatteryFloor
	}
	if s.AlertInterval == 0 {
		s.AlertInterval = Duration(DefaultAlertInterval)
	}
	if s.AlertProbability == nil {
		p := DefaultAlertProbability
		s.AlertProbability = &p
	}
	if s.ActivityInterval == 0 {
		s.ActivityInterval = Duration(DefaultActivityInterval)
	}
}

// FleetDrones converts the seed entries for fleet.NewStore. Entries without
// an id get one derived from their name plus a random suffix.
func (c *Config) FleetDrones() ([]fleet.Drone, error) {
	out := make([]fleet.Drone, 0, len(c.Drones))
	for i, d := range c.Drones {
		st, err := fleet.ParseStatus(d.Status)
		if err != nil {
			return nil, fmt.Errorf("drones[%d]: %w", i, err)
		}
		id := d.ID
		if id == "" {
			id = generateDroneID(d.Name)
		}
		out = append(out, fleet.Drone{
			ID:              id,
			Name:            d.Name,
			Status:          st,
			Battery:         d.Battery,
			Signal:          d.Signal,
			MissionProgress: d.MissionProgress,
			Health:          d.Health,
		})
	}
	return out, nil
}

var nonSlug = regexp.MustCompile(`[^a-z0-9]+`)

func generateDroneID(name string) string {
	slug := strings.Trim(nonSlug.ReplaceAllString(strings.ToLower(name), "-"), "-")
	if slug == "" {
		slug = "drone"
	}
	return fmt.Sprintf("%s-%s", slug, uuid.New().String()[:8])
}

// Load loads YAML config and validates it against a CUE schema. An empty
// schema path skips validation. A relative catalog path is resolved against
// the config file's directory.
func Load(configPath, cueSchemaPath string) (*Config, error) {
	data, err := os.ReadFile(configPath)
	if err != nil {
		return nil, err
	}
	if cueSchemaPath != "" {
		schema, err := LoadSchema(cueSchemaPath)
		if err != nil {
			return nil, err
		}
		if err := schema.Validate(configPath, data); err != nil {
			return nil, err
		}
	}
	cfg, err := Parse(data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", configPath, err)
	}
	if cfg.Catalog != "" && !filepath.IsAbs(cfg.Catalog) {
		cfg.Catalog = filepath.Join(filepath.Dir(configPath), cfg.Catalog)
	}

	slog.Debug("loaded configuration", "path", configPath, "cluster_id", cfg.ClusterID, "drones", len(cfg.Drones))
	return cfg, nil
}

// Parse decodes YAML strictly and applies defaults. A config without drones
// gets the demo fleet.
func Parse(data []byte) (*Config, error) {
	var cfg Config
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&cfg); err != nil && !errors.Is(err, io.EOF) {
		return nil, err
	}
	if len(cfg.Drones) == 0 {
		cfg.Drones = Defaults().Drones
	}
	cfg.ApplyDefaults()
	return &cfg, nil
}
