package catalog

import (
	"os"
	"path/filepath"
	"testing"
)

func TestLoadCatalog(t *testing.T) {
	c, err := Load("testdata/simple.yaml")
	if err != nil {
		t.Fatalf("load catalog: %v", err)
	}
	if c.Name != "example" {
		t.Fatalf("unexpected name %s", c.Name)
	}
	if len(c.Alerts) != 2 {
		t.Fatalf("expected 2 alert templates, got %d", len(c.Alerts))
	}
	if got := c.Alerts[0].Describe("Drone Alpha"); got != "Drone Alpha lost GPS lock." {
		t.Fatalf("unexpected description %q", got)
	}
	if len(c.Activities) != 1 {
		t.Fatalf("expected 1 activity, got %d", len(c.Activities))
	}
}

func TestLoadCatalogRejectsEmpty(t *testing.T) {
	path := filepath.Join(t.TempDir(), "empty.yaml")
	if err := os.WriteFile(path, []byte("name: empty\nactivities: [a]\n"), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}
	if _, err := Load(path); err == nil {
		t.Fatalf("expected error for catalog without alerts")
	}
}

func TestBuiltIn(t *testing.T) {
	c := BuiltIn()
	if err := c.Validate(); err != nil {
		t.Fatalf("built-in catalog invalid: %v", err)
	}
	for _, a := range c.Alerts {
		if a.Describe("X") == a.Description {
			t.Errorf("template %q does not mention the drone", a.Title)
		}
	}
}
