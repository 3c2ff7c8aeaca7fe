// Drone and alert model for the fleet state store
package fleet

import (
	"fmt"
	"strings"
	"time"
)

// Status is the operational state of a drone.
type Status string

const (
	StatusOnline      Status = "online"
	StatusOffline     Status = "offline"
	StatusFlying      Status = "flying"
	StatusMaintenance Status = "maintenance"
)

// Statuses lists every recognized drone status in display order.
var Statuses = []Status{StatusOnline, StatusFlying, StatusMaintenance, StatusOffline}

// ParseStatus converts s to a Status. Matching ignores case and surrounding spaces.
func ParseStatus(s string) (Status, error) {
	st := Status(strings.ToLower(strings.TrimSpace(s)))
	if !st.Valid() {
		return "", fmt.Errorf("%w: %q", ErrInvalidStatus, s)
	}
	return st, nil
}

// Valid reports whether st is a recognized status.
func (st Status) Valid() bool {
	switch st {
	case StatusOnline, StatusOffline, StatusFlying, StatusMaintenance:
		return true
	}
	return false
}

// AlertKind classifies an alert in the feed.
type AlertKind string

const (
	AlertUrgent   AlertKind = "urgent"
	AlertPending  AlertKind = "pending"
	AlertResolved AlertKind = "resolved"
)

// ParseAlertKind converts s to an AlertKind.
func ParseAlertKind(s string) (AlertKind, error) {
	k := AlertKind(strings.ToLower(strings.TrimSpace(s)))
	if !k.Valid() {
		return "", fmt.Errorf("%w: unknown kind %q", ErrInvalidAlert, s)
	}
	return k, nil
}

// Valid reports whether k is a recognized alert kind.
func (k AlertKind) Valid() bool {
	switch k {
	case AlertUrgent, AlertPending, AlertResolved:
		return true
	}
	return false
}

// Drone holds the simulated state of one aerial unit.
type Drone struct {
	ID              string   `json:"id"`
	Name            string   `json:"name"`
	Status          Status   `json:"status"`
	Battery         float64  `json:"battery"`
	Signal          float64  `json:"signal"`
	MissionProgress *float64 `json:"mission_progress,omitempty"`
	Health          *float64 `json:"health,omitempty"`
}

// Clone returns a deep copy of d.
func (d Drone) Clone() Drone {
	c := d
	if d.MissionProgress != nil {
		v := *d.MissionProgress
		c.MissionProgress = &v
	}
	if d.Health != nil {
		v := *d.Health
		c.Health = &v
	}
	return c
}

func (d Drone) validate() error {
	if strings.TrimSpace(d.ID) == "" {
		return fmt.Errorf("%w: drone id is empty", ErrInvalidArgument)
	}
	if strings.TrimSpace(d.Name) == "" {
		return fmt.Errorf("%w: drone %s has no name", ErrInvalidArgument, d.ID)
	}
	if !d.Status.Valid() {
		return fmt.Errorf("%w: drone %s: %q", ErrInvalidStatus, d.ID, d.Status)
	}
	if !inPercent(d.Battery) {
		return fmt.Errorf("%w: drone %s battery %.2f out of range", ErrInvalidArgument, d.ID, d.Battery)
	}
	if !inPercent(d.Signal) {
		return fmt.Errorf("%w: drone %s signal %.2f out of range", ErrInvalidArgument, d.ID, d.Signal)
	}
	if d.MissionProgress != nil {
		if d.Status != StatusFlying {
			return fmt.Errorf("%w: drone %s has mission progress while %s", ErrInvalidArgument, d.ID, d.Status)
		}
		if !inPercent(*d.MissionProgress) {
			return fmt.Errorf("%w: drone %s mission progress out of range", ErrInvalidArgument, d.ID)
		}
	}
	if d.Health != nil && !inPercent(*d.Health) {
		return fmt.Errorf("%w: drone %s health out of range", ErrInvalidArgument, d.ID)
	}
	return nil
}

// Alert is a timestamped incident record shown in the bounded feed.
type Alert struct {
	ID          uint64    `json:"id"`
	Title       string    `json:"title"`
	Description string    `json:"description"`
	Author      string    `json:"author"`
	CreatedAt   time.Time `json:"created_at"`
	Kind        AlertKind `json:"kind"`
}

func (a Alert) validate() error {
	if strings.TrimSpace(a.Title) == "" {
		return fmt.Errorf("%w: title is required", ErrInvalidAlert)
	}
	if strings.TrimSpace(a.Author) == "" {
		return fmt.Errorf("%w: author is required", ErrInvalidAlert)
	}
	if !a.Kind.Valid() {
		return fmt.Errorf("%w: unknown kind %q", ErrInvalidAlert, a.Kind)
	}
	return nil
}

// Activity is one entry of the dashboard activity timeline.
type Activity struct {
	Message string    `json:"message"`
	At      time.Time `json:"at"`
}

// Stats aggregates dashboard counters derived from current state.
type Stats struct {
	Drones         int            `json:"drones"`
	ByStatus       map[Status]int `json:"by_status"`
	AverageBattery float64        `json:"average_battery"`
	UrgentAlerts   int            `json:"urgent_alerts"`
	PendingAlerts  int            `json:"pending_alerts"`
	ResolvedAlerts int            `json:"resolved_alerts"`
}

// ChangeKind names the collection touched by a mutation.
type ChangeKind string

const (
	ChangeDrones   ChangeKind = "drones"
	ChangeAlerts   ChangeKind = "alerts"
	ChangeActivity ChangeKind = "activity"
)

// Change is delivered to subscribers after every successful mutation.
type Change struct {
	Kind ChangeKind `json:"kind"`
}

func inPercent(v float64) bool {
	return v >= 0 && v <= 100
}

func ptr(v float64) *float64 { return &v }

// DefaultDrones returns the demo fleet shown on a fresh dashboard.
func DefaultDrones() []Drone {
	return []Drone{
		{ID: "drone-alpha", Name: "Drone Alpha", Status: StatusFlying, Battery: 78, Signal: 92, MissionProgress: ptr(45), Health: ptr(96)},
		{ID: "drone-beta", Name: "Drone Beta", Status: StatusOnline, Battery: 100, Signal: 88, Health: ptr(99)},
		{ID: "drone-gamma", Name: "Drone Gamma", Status: StatusMaintenance, Battery: 32, Signal: 0, Health: ptr(61)},
		{ID: "drone-delta", Name: "Drone Delta", Status: StatusOffline, Battery: 12, Signal: 0},
	}
}
