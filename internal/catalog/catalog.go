package catalog

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

// Catalog holds the synthetic content the simulation draws from.
type Catalog struct {
	Name       string          `yaml:"name,omitempty"`
	Alerts     []AlertTemplate `yaml:"alerts"`
	Activities []string        `yaml:"activities"`
}

// AlertTemplate describes an injected alert. The description may contain
// the placeholder {drone}, replaced with the attributed drone's name.
type AlertTemplate struct {
	Title       string `yaml:"title"`
	Description string `yaml:"description,omitempty"`
}

// Load reads a YAML catalog definition from disk.
func Load(path string) (*Catalog, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read catalog: %w", err)
	}
	var c Catalog
	if err := yaml.Unmarshal(b, &c); err != nil {
		return nil, fmt.Errorf("parse catalog: %w", err)
	}
	if err := c.Validate(); err != nil {
		return nil, fmt.Errorf("catalog %s: %w", path, err)
	}
	return &c, nil
}

// Validate requires at least one alert template and one activity message.
func (c *Catalog) Validate() error {
	if len(c.Alerts) == 0 {
		return errors.New("no alert templates")
	}
	for i, a := range c.Alerts {
		if strings.TrimSpace(a.Title) == "" {
			return fmt.Errorf("alert template %d has no title", i)
		}
	}
	if len(c.Activities) == 0 {
		return errors.New("no activity messages")
	}
	return nil
}

// Describe renders the template description for a drone.
func (t AlertTemplate) Describe(drone string) string {
	return strings.ReplaceAll(t.Description, "{drone}", drone)
}
