// Export rows with greptime tags
package telemetry

import (
	"os"
	"time"

	"voxsane-fleet/internal/fleet"
)

// DroneRow represents one drone state record for export.
type DroneRow struct {
	ClusterID       string    `json:"cluster_id"`                 // TAG
	DroneID         string    `json:"drone_id"`                   // TAG
	Name            string    `json:"name"`                       // FIELD
	Status          string    `json:"status"`                     // FIELD
	Battery         float64   `json:"battery"`                    // FIELD
	Signal          float64   `json:"signal"`                     // FIELD
	MissionProgress *float64  `json:"mission_progress,omitempty"` // FIELD, null when not flying
	Health          *float64  `json:"health,omitempty"`           // FIELD
	Timestamp       time.Time `json:"ts"`                         // TIME INDEX
}

// AlertRow represents one alert feed entry for export.
type AlertRow struct {
	ClusterID   string    `json:"cluster_id"` // TAG
	AlertID     uint64    `json:"alert_id"`   // TAG
	Title       string    `json:"title"`
	Description string    `json:"description"`
	Author      string    `json:"author"`
	Kind        string    `json:"kind"`
	CreatedAt   time.Time `json:"created_at"`
	Timestamp   time.Time `json:"ts"` // TIME INDEX
}

// TelemetryTableName holds the drone state table used when writing to
// GreptimeDB. It defaults to "fleet_telemetry" and can be overridden via the
// GREPTIMEDB_TABLE environment variable.
var TelemetryTableName = envOr("GREPTIMEDB_TABLE", "fleet_telemetry")

// AlertTableName holds the alert table, overridable via GREPTIMEDB_ALERT_TABLE.
var AlertTableName = envOr("GREPTIMEDB_ALERT_TABLE", "fleet_alerts")

func envOr(key, def string) string {
	if env := os.Getenv(key); env != "" {
		return env
	}
	return def
}

func (DroneRow) TableName() string {
	return TelemetryTableName
}

func (AlertRow) TableName() string {
	return AlertTableName
}

// FromDrone builds an export row from a drone snapshot.
func FromDrone(clusterID string, d fleet.Drone, ts time.Time) DroneRow {
	d = d.Clone()
	return DroneRow{
		ClusterID:       clusterID,
		DroneID:         d.ID,
		Name:            d.Name,
		Status:          string(d.Status),
		Battery:         d.Battery,
		Signal:          d.Signal,
		MissionProgress: d.MissionProgress,
		Health:          d.Health,
		Timestamp:       ts.UTC(),
	}
}

// FromDrones converts a whole fleet snapshot sharing one timestamp.
func FromDrones(clusterID string, drones []fleet.Drone, ts time.Time) []DroneRow {
	rows := make([]DroneRow, 0, len(drones))
	for _, d := range drones {
		rows = append(rows, FromDrone(clusterID, d, ts))
	}
	return rows
}

// FromAlert builds an export row from an alert.
func FromAlert(clusterID string, a fleet.Alert, ts time.Time) AlertRow {
	return AlertRow{
		ClusterID:   clusterID,
		AlertID:     a.ID,
		Title:       a.Title,
		Description: a.Description,
		Author:      a.Author,
		Kind:        string(a.Kind),
		CreatedAt:   a.CreatedAt.UTC(),
		Timestamp:   ts.UTC(),
	}
}
