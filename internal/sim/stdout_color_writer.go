// ColorStdoutWriter prints human-friendly, colorized fleet rows to STDOUT.
package sim

import (
	"fmt"
	"io"
	"os"
	"sync"
	"text/tabwriter"
	"time"

	"voxsane-fleet/internal/fleet"
	"voxsane-fleet/internal/telemetry"
)

const (
	colorReset   = "\x1b[0m"
	colorRed     = "\x1b[31m"
	colorGreen   = "\x1b[32m"
	colorYellow  = "\x1b[33m"
	colorBlue    = "\x1b[34m"
	colorMagenta = "\x1b[35m"
	colorCyan    = "\x1b[36m"
	colorGray    = "\x1b[90m"
)

// lowBattery marks battery readings printed in red.
const lowBattery = 20.0

// ColorStdoutWriter prints drone and alert rows using ANSI colors.
type ColorStdoutWriter struct {
	cfg         *Config
	clusterID   string
	out         io.Writer
	once        sync.Once
	droneColors map[string]string
	colorIdx    int
}

var dronePalette = []string{colorGreen, colorYellow, colorBlue, colorMagenta, colorCyan}

// NewColorStdoutWriter creates a ColorStdoutWriter writing to os.Stdout. cfg
// may be nil to skip the settings overview.
func NewColorStdoutWriter(clusterID string, cfg *Config) *ColorStdoutWriter {
	return &ColorStdoutWriter{
		cfg:         cfg,
		clusterID:   clusterID,
		out:         os.Stdout,
		droneColors: make(map[string]string),
	}
}

func (w *ColorStdoutWriter) getDroneColor(id string) string {
	if c, ok := w.droneColors[id]; ok {
		return c
	}
	c := dronePalette[w.colorIdx%len(dronePalette)]
	w.droneColors[id] = c
	w.colorIdx++
	return c
}

func (w *ColorStdoutWriter) printOverview() {
	if w.cfg == nil {
		return
	}

	fmt.Fprintln(w.out, "Simulation Configuration:")
	tw := tabwriter.NewWriter(w.out, 0, 0, 2, ' ', 0)
	fmt.Fprintf(tw, "Cluster:\t%s\n", w.clusterID)
	fmt.Fprintf(tw, "Drain Interval:\t%s\n", w.cfg.DrainInterval)
	fmt.Fprintf(tw, "Drain Range:\t[%.1f, %.1f)\n", w.cfg.DrainMin, w.cfg.DrainMax)
	fmt.Fprintf(tw, "Progress Range:\t[%.1f, %.1f)\n", w.cfg.ProgressMin, w.cfg.ProgressMax)
	fmt.Fprintf(tw, "Battery Floor:\t%.0f\n", w.cfg.BatteryFloor)
	fmt.Fprintf(tw, "Alert Interval:\t%s\n", w.cfg.AlertInterval)
	fmt.Fprintf(tw, "Alert Probability:\t%.2f\n", w.cfg.AlertProbability)
	fmt.Fprintf(tw, "Activity Interval:\t%s\n", w.cfg.ActivityInterval)
	tw.Flush()
	fmt.Fprintln(w.out)
}

func statusColor(s string) string {
	switch fleet.Status(s) {
	case fleet.StatusFlying:
		return colorGreen
	case fleet.StatusOnline:
		return colorBlue
	case fleet.StatusMaintenance:
		return colorYellow
	default:
		return colorGray
	}
}

// Write outputs a single drone row in colorized format.
func (w *ColorStdoutWriter) Write(row telemetry.DroneRow) error {
	w.once.Do(w.printOverview)

	battColor := colorCyan
	if row.Battery <= lowBattery {
		battColor = colorRed
	}

	fmt.Fprintf(w.out, "%s[%s]%s ", colorGray, row.Timestamp.Format(time.RFC3339), colorReset)
	fmt.Fprintf(w.out, "%scluster=%s%s ", colorBlue, row.ClusterID, colorReset)
	fmt.Fprintf(w.out, "%sdrone=%s%s ", w.getDroneColor(row.DroneID), row.Name, colorReset)
	fmt.Fprintf(w.out, "%sstatus=%s%s ", statusColor(row.Status), row.Status, colorReset)
	fmt.Fprintf(w.out, "%sbatt=%.1f%s ", battColor, row.Battery, colorReset)
	fmt.Fprintf(w.out, "%ssignal=%.0f%s", colorMagenta, row.Signal, colorReset)
	if row.MissionProgress != nil {
		fmt.Fprintf(w.out, " %sprogress=%.1f%s", colorGreen, *row.MissionProgress, colorReset)
	}
	if row.Health != nil {
		fmt.Fprintf(w.out, " %shealth=%.0f%s", colorYellow, *row.Health, colorReset)
	}
	fmt.Fprintln(w.out)
	return nil
}

// WriteBatch outputs multiple drone rows.
func (w *ColorStdoutWriter) WriteBatch(rows []telemetry.DroneRow) error {
	for _, r := range rows {
		_ = w.Write(r)
	}
	return nil
}

// WriteAlert prints an alert feed entry to STDOUT.
func (w *ColorStdoutWriter) WriteAlert(a telemetry.AlertRow) error {
	w.once.Do(w.printOverview)
	col := colorRed
	switch fleet.AlertKind(a.Kind) {
	case fleet.AlertPending:
		col = colorYellow
	case fleet.AlertResolved:
		col = colorGreen
	}
	fmt.Fprintf(w.out, "%s[%s]%s %sALERT%s #%d %s by=%s",
		colorGray, a.Timestamp.Format(time.RFC3339), colorReset,
		col, colorReset, a.AlertID, a.Title, a.Author)
	if a.Description != "" {
		fmt.Fprintf(w.out, " %s%s%s", colorGray, a.Description, colorReset)
	}
	fmt.Fprintln(w.out)
	return nil
}
