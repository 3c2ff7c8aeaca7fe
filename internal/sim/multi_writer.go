package sim

import "voxsane-fleet/internal/telemetry"

// MultiWriter fan-outs drone and alert rows to multiple writers.
type MultiWriter struct {
	telewriters  []TelemetryWriter
	alertwriters []AlertWriter
}

// NewMultiWriter creates a new MultiWriter.
func NewMultiWriter(tws []TelemetryWriter, aws []AlertWriter) *MultiWriter {
	return &MultiWriter{telewriters: tws, alertwriters: aws}
}

// Write sends a drone row to all writers.
func (mw *MultiWriter) Write(row telemetry.DroneRow) error {
	for _, w := range mw.telewriters {
		if err := w.Write(row); err != nil {
			return err
		}
	}
	return nil
}

// WriteBatch sends multiple drone rows to all writers, using batch if supported.
func (mw *MultiWriter) WriteBatch(rows []telemetry.DroneRow) error {
	for _, w := range mw.telewriters {
		if err := writeRows(w, rows); err != nil {
			return err
		}
	}
	return nil
}

// WriteAlert sends an alert row to all alert writers.
func (mw *MultiWriter) WriteAlert(row telemetry.AlertRow) error {
	for _, w := range mw.alertwriters {
		if err := w.WriteAlert(row); err != nil {
			return err
		}
	}
	return nil
}

// WriteAlerts sends multiple alerts to all alert writers, using batch if supported.
func (mw *MultiWriter) WriteAlerts(rows []telemetry.AlertRow) error {
	for _, w := range mw.alertwriters {
		if err := writeAlertRows(w, rows); err != nil {
			return err
		}
	}
	return nil
}

// Close closes every writer that supports it and returns the first error.
func (mw *MultiWriter) Close() error {
	seen := map[any]bool{}
	var first error
	closeOne := func(w any) {
		c, ok := w.(interface{ Close() error })
		if !ok || seen[w] {
			return
		}
		seen[w] = true
		if err := c.Close(); err != nil && first == nil {
			first = err
		}
	}
	for _, w := range mw.telewriters {
		closeOne(w)
	}
	for _, w := range mw.alertwriters {
		closeOne(w)
	}
	return first
}

// SetAdminStatus forwards the admin UI status to writers that display it.
func (mw *MultiWriter) SetAdminStatus(listening bool) {
	for _, w := range mw.telewriters {
		if aw, ok := w.(AdminStatusWriter); ok {
			aw.SetAdminStatus(listening)
		}
	}
}
