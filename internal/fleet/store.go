// Fleet state store: canonical drone, alert and activity state
package fleet

import (
	"fmt"
	"math"
	"strings"
	"sync"
	"time"
)

const (
	// DefaultAlertCapacity is the size of the alert feed.
	DefaultAlertCapacity = 4
	// DefaultActivityCapacity is the size of the activity timeline.
	DefaultActivityCapacity = 10
	// DefaultProgressStep is the mission progress added per drain tick.
	DefaultProgressStep = 1.5
	// ProgressCap is the highest mission progress reached by ticking. Drones
	// plateau here; completion is never applied automatically.
	ProgressCap = 95.0
)

// Option configures a Store.
type Option func(*Store)

// WithAlertCapacity sets the maximum number of alerts kept in the feed.
func WithAlertCapacity(n int) Option {
	return func(s *Store) { s.alertCap = n }
}

// WithActivityCapacity sets the maximum number of activity entries kept.
func WithActivityCapacity(n int) Option {
	return func(s *Store) { s.activityCap = n }
}

// WithProgressStep sets the mission progress increment used by TickBatteryDrain.
func WithProgressStep(step float64) Option {
	return func(s *Store) { s.progressStep = step }
}

// WithClock replaces time.Now for alert and activity timestamps.
func WithClock(now func() time.Time) Option {
	return func(s *Store) { s.now = now }
}

type subscriber struct {
	id int
	fn func(Change)
}

// Store is the single source of truth for drone, alert and activity state.
// Callers only ever receive copies.
type Store struct {
	mu           sync.Mutex
	drones       []*Drone
	byID         map[string]*Drone
	alerts       *ring[Alert]
	activity     *ring[Activity]
	nextAlertID  uint64
	alertCap     int
	activityCap  int
	progressStep float64
	now          func() time.Time
	subs         []subscriber
	nextSubID    int
}

// NewStore seeds a store with drones. Drone IDs and names must be unique.
func NewStore(seed []Drone, opts ...Option) (*Store, error) {
	s := &Store{
		byID:         make(map[string]*Drone, len(seed)),
		alertCap:     DefaultAlertCapacity,
		activityCap:  DefaultActivityCapacity,
		progressStep: DefaultProgressStep,
		now:          time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.alertCap < 1 {
		return nil, fmt.Errorf("%w: alert capacity must be positive", ErrInvalidArgument)
	}
	if s.activityCap < 1 {
		return nil, fmt.Errorf("%w: activity capacity must be positive", ErrInvalidArgument)
	}
	if s.progressStep < 0 || math.IsNaN(s.progressStep) {
		return nil, fmt.Errorf("%w: progress step must not be negative", ErrInvalidArgument)
	}
	s.alerts = newRing[Alert](s.alertCap)
	s.activity = newRing[Activity](s.activityCap)

	names := make(map[string]string, len(seed))
	for _, d := range seed {
		if err := d.validate(); err != nil {
			return nil, err
		}
		if _, dup := s.byID[d.ID]; dup {
			return nil, fmt.Errorf("%w: duplicate drone id %s", ErrInvalidArgument, d.ID)
		}
		key := strings.ToLower(d.Name)
		if other, dup := names[key]; dup {
			return nil, fmt.Errorf("%w: drone name %q used by %s and %s", ErrInvalidArgument, d.Name, other, d.ID)
		}
		names[key] = d.ID
		c := d.Clone()
		if c.Status == StatusFlying && c.MissionProgress == nil {
			c.MissionProgress = ptr(0)
		}
		s.drones = append(s.drones, &c)
		s.byID[c.ID] = &c
	}
	return s, nil
}

// ListDrones returns copies of all drones in insertion order.
func (s *Store) ListDrones() []Drone {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]Drone, len(s.drones))
	for i, d := range s.drones {
		out[i] = d.Clone()
	}
	return out
}

// Drone returns a copy of the drone with the given id.
func (s *Store) Drone(id string) (Drone, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	d, ok := s.byID[id]
	if !ok {
		return Drone{}, fmt.Errorf("%w: drone %q", ErrNotFound, id)
	}
	return d.Clone(), nil
}

// FindDrone returns the first drone, in insertion order, whose name contains
// fragment ignoring case. Several matches are not an error.
func (s *Store) FindDrone(fragment string) (Drone, error) {
	needle := strings.ToLower(strings.TrimSpace(fragment))
	if needle == "" {
		return Drone{}, fmt.Errorf("%w: empty drone name", ErrNotFound)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, d := range s.drones {
		if strings.Contains(strings.ToLower(d.Name), needle) {
			return d.Clone(), nil
		}
	}
	return Drone{}, fmt.Errorf("%w: no drone matching %q", ErrNotFound, fragment)
}

// SetDroneStatus moves a drone to status. Entering flying starts mission
// progress at 0 when absent; leaving flying clears it.
func (s *Store) SetDroneStatus(id string, status Status) error {
	if !status.Valid() {
		return fmt.Errorf("%w: %q", ErrInvalidStatus, status)
	}
	s.mu.Lock()
	d, ok := s.byID[id]
	if !ok {
		s.mu.Unlock()
		return fmt.Errorf("%w: drone %q", ErrNotFound, id)
	}
	if d.Status == status {
		s.mu.Unlock()
		return nil
	}
	applyStatus(d, status)
	subs := s.subscribers()
	s.mu.Unlock()

	notify(subs, Change{Kind: ChangeDrones})
	return nil
}

func applyStatus(d *Drone, status Status) {
	switch {
	case status == StatusFlying && d.MissionProgress == nil:
		d.MissionProgress = ptr(0)
	case status != StatusFlying:
		d.MissionProgress = nil
	}
	d.Status = status
}

// LaunchMission sends an online drone on a new mission and logs it to the
// activity timeline. No alert is created.
func (s *Store) LaunchMission(id string) error {
	s.mu.Lock()
	d, ok := s.byID[id]
	if !ok {
		s.mu.Unlock()
		return fmt.Errorf("%w: drone %q", ErrNotFound, id)
	}
	if d.Status != StatusOnline {
		s.mu.Unlock()
		return fmt.Errorf("%w: %s is %s and cannot launch", ErrInvalidStatus, d.Name, d.Status)
	}
	applyStatus(d, StatusFlying)
	s.activity.pushFront(Activity{Message: d.Name + " launched on a new mission", At: s.now().UTC()})
	subs := s.subscribers()
	s.mu.Unlock()

	notify(subs, Change{Kind: ChangeDrones})
	notify(subs, Change{Kind: ChangeActivity})
	return nil
}

// TickBatteryDrain drains every flying drone by drain, never below floor, and
// advances its mission progress by the configured step.
func (s *Store) TickBatteryDrain(drain, floor float64) error {
	return s.TickFlight(drain, floor, s.progressStep)
}

// TickFlight is TickBatteryDrain with an explicit progress increment.
// A battery at or below floor is left as is so that it never increases.
// Progress stops at ProgressCap.
func (s *Store) TickFlight(drain, floor, progress float64) error {
	if drain < 0 || math.IsNaN(drain) || math.IsInf(drain, 0) {
		return fmt.Errorf("%w: drain %v", ErrInvalidArgument, drain)
	}
	if !inPercent(floor) {
		return fmt.Errorf("%w: floor %v", ErrInvalidArgument, floor)
	}
	if progress < 0 || math.IsNaN(progress) || math.IsInf(progress, 0) {
		return fmt.Errorf("%w: progress %v", ErrInvalidArgument, progress)
	}

	s.mu.Lock()
	changed := false
	for _, d := range s.drones {
		if d.Status != StatusFlying {
			continue
		}
		if d.Battery > floor {
			b := math.Min(100, math.Max(floor, d.Battery-drain))
			if b != d.Battery {
				d.Battery = b
				changed = true
			}
		}
		if d.MissionProgress == nil {
			d.MissionProgress = ptr(0)
			changed = true
		}
		if p := *d.MissionProgress; p < ProgressCap && progress > 0 {
			*d.MissionProgress = math.Min(ProgressCap, p+progress)
			changed = true
		}
	}
	var subs []func(Change)
	if changed {
		subs = s.subscribers()
	}
	s.mu.Unlock()

	notify(subs, Change{Kind: ChangeDrones})
	return nil
}

// ListAlerts returns the alert feed newest first.
func (s *Store) ListAlerts() []Alert {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.alerts.slice()
}

// PushAlert validates a, assigns its ID (and CreatedAt when zero) and puts it
// at the front of the feed, evicting the oldest alert when full. The stored
// alert is returned.
func (s *Store) PushAlert(a Alert) (Alert, error) {
	if err := a.validate(); err != nil {
		return Alert{}, err
	}
	s.mu.Lock()
	s.nextAlertID++
	a.ID = s.nextAlertID
	if a.CreatedAt.IsZero() {
		a.CreatedAt = s.now().UTC()
	}
	s.alerts.pushFront(a)
	subs := s.subscribers()
	s.mu.Unlock()

	notify(subs, Change{Kind: ChangeAlerts})
	return a, nil
}

// SetAlertKind changes the kind of an alert still present in the feed.
func (s *Store) SetAlertKind(id uint64, kind AlertKind) error {
	if !kind.Valid() {
		return fmt.Errorf("%w: unknown kind %q", ErrInvalidAlert, kind)
	}
	s.mu.Lock()
	for i := 0; i < s.alerts.len(); i++ {
		a := s.alerts.at(i)
		if a.ID != id {
			continue
		}
		if a.Kind == kind {
			s.mu.Unlock()
			return nil
		}
		a.Kind = kind
		subs := s.subscribers()
		s.mu.Unlock()
		notify(subs, Change{Kind: ChangeAlerts})
		return nil
	}
	s.mu.Unlock()
	return fmt.Errorf("%w: alert %d", ErrNotFound, id)
}

// AlertCapacity returns the feed size.
func (s *Store) AlertCapacity() int {
	return s.alerts.capacity()
}

// RecordActivity adds a message to the activity timeline.
func (s *Store) RecordActivity(msg string) error {
	if strings.TrimSpace(msg) == "" {
		return fmt.Errorf("%w: empty activity message", ErrInvalidArgument)
	}
	s.mu.Lock()
	s.activity.pushFront(Activity{Message: msg, At: s.now().UTC()})
	subs := s.subscribers()
	s.mu.Unlock()

	notify(subs, Change{Kind: ChangeActivity})
	return nil
}

// ListActivity returns the activity timeline newest first.
func (s *Store) ListActivity() []Activity {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.activity.slice()
}

// Stats derives dashboard counters from the current state.
func (s *Store) Stats() Stats {
	s.mu.Lock()
	defer s.mu.Unlock()
	st := Stats{Drones: len(s.drones), ByStatus: make(map[Status]int, len(Statuses))}
	for _, status := range Statuses {
		st.ByStatus[status] = 0
	}
	var total float64
	for _, d := range s.drones {
		st.ByStatus[d.Status]++
		total += d.Battery
	}
	if len(s.drones) > 0 {
		st.AverageBattery = total / float64(len(s.drones))
	}
	for i := 0; i < s.alerts.len(); i++ {
		switch s.alerts.at(i).Kind {
		case AlertUrgent:
			st.UrgentAlerts++
		case AlertPending:
			st.PendingAlerts++
		case AlertResolved:
			st.ResolvedAlerts++
		}
	}
	return st
}

// Subscribe registers fn to be called after every mutation. Callbacks run
// synchronously on the mutating goroutine, after the store lock is released.
func (s *Store) Subscribe(fn func(Change)) (unsubscribe func()) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.nextSubID++
	id := s.nextSubID
	s.subs = append(s.subs, subscriber{id: id, fn: fn})
	return func() {
		s.mu.Lock()
		defer s.mu.Unlock()
		for i, sub := range s.subs {
			if sub.id == id {
				s.subs = append(s.subs[:i:i], s.subs[i+1:]...)
				return
			}
		}
	}
}

// subscribers snapshots the callbacks; s.mu must be held.
func (s *Store) subscribers() []func(Change) {
	if len(s.subs) == 0 {
		return nil
	}
	fns := make([]func(Change), len(s.subs))
	for i, sub := range s.subs {
		fns[i] = sub.fn
	}
	return fns
}

func notify(fns []func(Change), c Change) {
	for _, fn := range fns {
		fn(c)
	}
}
