package sim

import "voxsane-fleet/internal/telemetry"

// TelemetryWriter is an interface to support different output writers.
type TelemetryWriter interface {
	Write(telemetry.DroneRow) error
}

// AlertWriter handles alert feed entries.
type AlertWriter interface {
	WriteAlert(telemetry.AlertRow) error
}

// Optional: Writers can also support batch mode
type batchWriter interface {
	WriteBatch([]telemetry.DroneRow) error
}

// Optional: Alert writers may support batch mode
type batchAlertWriter interface {
	WriteAlerts([]telemetry.AlertRow) error
}

// writeRows sends rows to w, in one batch when supported.
func writeRows(w TelemetryWriter, rows []telemetry.DroneRow) error {
	if bw, ok := w.(batchWriter); ok {
		return bw.WriteBatch(rows)
	}
	for _, r := range rows {
		if err := w.Write(r); err != nil {
			return err
		}
	}
	return nil
}

func writeAlertRows(w AlertWriter, rows []telemetry.AlertRow) error {
	if bw, ok := w.(batchAlertWriter); ok {
		return bw.WriteAlerts(rows)
	}
	for _, r := range rows {
		if err := w.WriteAlert(r); err != nil {
			return err
		}
	}
	return nil
}

// AdminStatusWriter allows writers to receive admin UI status updates.
type AdminStatusWriter interface {
	SetAdminStatus(listening bool)
}
