package dashboard

import (
	"embed"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"text/template"

	"voxsane-fleet/internal/telemetry"
)

//go:embed templates/*.json.tmpl
var templates embed.FS

// Data is passed to every dashboard template.
type Data struct {
	ClusterID      string
	TelemetryTable string
	AlertTable     string
}

// Render parses dashboard templates and writes rendered dashboards to outDir.
// Templates read the datasource uid through the env function, which fails
// when the variable is unset.
func Render(outDir, clusterID string) error {
	funcMap := template.FuncMap{
		"env": func(key string) (string, error) {
			v := os.Getenv(key)
			if v == "" {
				return "", fmt.Errorf("environment variable %s not set", key)
			}
			return v, nil
		},
	}
	data := Data{
		ClusterID:      clusterID,
		TelemetryTable: telemetry.TelemetryTableName,
		AlertTable:     telemetry.AlertTableName,
	}

	names, err := fs.Glob(templates, "templates/*.json.tmpl")
	if err != nil {
		return err
	}
	if err := os.MkdirAll(outDir, 0o755); err != nil {
		return err
	}
	for _, name := range names {
		t, err := template.New(filepath.Base(name)).Funcs(funcMap).ParseFS(templates, name)
		if err != nil {
			return err
		}
		outPath := filepath.Join(outDir, strings.TrimSuffix(filepath.Base(name), ".tmpl"))
		f, err := os.Create(outPath)
		if err != nil {
			return err
		}
		if err := t.Execute(f, data); err != nil {
			f.Close()
			return fmt.Errorf("render %s: %w", filepath.Base(name), err)
		}
		if err := f.Close(); err != nil {
			return err
		}
	}
	return nil
}
