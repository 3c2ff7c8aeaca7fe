// Simulation driver orchestrating periodic fleet mutations
package sim

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"voxsane-fleet/internal/catalog"
	"voxsane-fleet/internal/config"
	"voxsane-fleet/internal/fleet"
	"voxsane-fleet/internal/logging"
	"voxsane-fleet/internal/metrics"
)

// Rand is the randomness the driver draws from. *math/rand.Rand satisfies it.
type Rand interface {
	Float64() float64
	Intn(n int) int
}

// Config tunes the periodic callbacks.
type Config struct {
	DrainInterval    time.Duration
	DrainMin         float64
	DrainMax         float64
	ProgressMin      float64
	ProgressMax      float64
	BatteryFloor     float64
	AlertInterval    time.Duration
	AlertProbability float64
	// ActivityInterval of zero disables the activity task.
	ActivityInterval time.Duration
}

// DefaultConfig returns the stock driver settings.
func DefaultConfig() Config {
	return Config{
		DrainInterval:    config.DefaultDrainInterval,
		DrainMax:         config.DefaultDrainMax,
		ProgressMax:      config.DefaultProgressMax,
		BatteryFloor:     config.DefaultBatteryFloor,
		AlertInterval:    config.DefaultAlertInterval,
		AlertProbability: config.DefaultAlertProbability,
		ActivityInterval: config.DefaultActivityInterval,
	}
}

// ConfigFrom converts the YAML simulation block. Zero fields fall back to
// DefaultConfig.
func ConfigFrom(s config.Simulation) Config {
	c := DefaultConfig()
	if s.DrainInterval > 0 {
		c.DrainInterval = s.DrainInterval.Std()
	}
	c.DrainMin = s.DrainMin
	if s.DrainMax > 0 {
		c.DrainMax = s.DrainMax
	}
	c.ProgressMin = s.ProgressMin
	if s.ProgressMax > 0 {
		c.ProgressMax = s.ProgressMax
	}
	if s.BatteryFloor > 0 {
		c.BatteryFloor = s.BatteryFloor
	}
	if s.AlertInterval > 0 {
		c.AlertInterval = s.AlertInterval.Std()
	}
	if s.AlertProbability != nil {
		c.AlertProbability = *s.AlertProbability
	}
	if s.ActivityInterval > 0 {
		c.ActivityInterval = s.ActivityInterval.Std()
	}
	if s.DisableActivity {
		c.ActivityInterval = 0
	}
	return c
}

// Scaled divides every interval by factor. Factors <= 0 leave c unchanged.
func (c Config) Scaled(factor float64) Config {
	if factor <= 0 {
		return c
	}
	scale := func(d time.Duration) time.Duration {
		if d <= 0 {
			return d
		}
		s := time.Duration(float64(d) / factor)
		if s < time.Millisecond {
			s = time.Millisecond
		}
		return s
	}
	c.DrainInterval = scale(c.DrainInterval)
	c.AlertInterval = scale(c.AlertInterval)
	c.ActivityInterval = scale(c.ActivityInterval)
	return c
}

// Validate checks intervals and ranges.
func (c Config) Validate() error {
	switch {
	case c.DrainInterval <= 0:
		return fmt.Errorf("%w: drain interval must be positive", fleet.ErrInvalidArgument)
	case c.AlertInterval <= 0:
		return fmt.Errorf("%w: alert interval must be positive", fleet.ErrInvalidArgument)
	case c.ActivityInterval < 0:
		return fmt.Errorf("%w: activity interval is negative", fleet.ErrInvalidArgument)
	case c.DrainMin < 0 || c.DrainMax < c.DrainMin:
		return fmt.Errorf("%w: drain range [%v, %v)", fleet.ErrInvalidArgument, c.DrainMin, c.DrainMax)
	case c.ProgressMin < 0 || c.ProgressMax < c.ProgressMin:
		return fmt.Errorf("%w: progress range [%v, %v)", fleet.ErrInvalidArgument, c.ProgressMin, c.ProgressMax)
	case c.BatteryFloor < 0 || c.BatteryFloor > 100:
		return fmt.Errorf("%w: battery floor %v", fleet.ErrInvalidArgument, c.BatteryFloor)
	case c.AlertProbability < 0 || c.AlertProbability > 1:
		return fmt.Errorf("%w: alert probability %v", fleet.ErrInvalidArgument, c.AlertProbability)
	}
	return nil
}

// Option configures a Driver.
type Option func(*Driver)

// WithTelemetryWriter sends drone rows to w after every drain tick.
func WithTelemetryWriter(w TelemetryWriter) Option {
	return func(d *Driver) { d.writer = w }
}

// WithAlertWriter sends every injected alert to w.
func WithAlertWriter(w AlertWriter) Option {
	return func(d *Driver) { d.alertWriter = w }
}

// WithMetrics records tick counters and refreshes store gauges.
func WithMetrics(m *metrics.Metrics) Option {
	return func(d *Driver) { d.metrics = m }
}

// WithCatalog replaces the built-in alert and activity content.
func WithCatalog(c *catalog.Catalog) Option {
	return func(d *Driver) { d.catalog = c }
}

// WithClusterID tags exported rows.
func WithClusterID(id string) Option {
	return func(d *Driver) { d.clusterID = id }
}

// WithClock replaces time.Now for export timestamps.
func WithClock(now func() time.Time) Option {
	return func(d *Driver) { d.now = now }
}

// Driver mutates the store on a schedule. It is either stopped (initial) or
// running.
type Driver struct {
	store *fleet.Store
	sched Scheduler
	rnd   Rand

	writer      TelemetryWriter
	alertWriter AlertWriter
	metrics     *metrics.Metrics
	catalog     *catalog.Catalog
	clusterID   string
	now         func() time.Time

	mu      sync.Mutex
	cfg     Config
	ctx     context.Context
	cancels []func()
	stopCh  chan struct{}
	running bool
}

// NewDriver wires a driver to a store. It starts stopped.
func NewDriver(store *fleet.Store, sched Scheduler, rnd Rand, cfg Config, opts ...Option) (*Driver, error) {
	if store == nil || sched == nil || rnd == nil {
		return nil, errors.New("sim: store, scheduler and rand are required")
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	d := &Driver{
		store:     store,
		sched:     sched,
		rnd:       rnd,
		cfg:       cfg,
		catalog:   catalog.BuiltIn(),
		clusterID: config.DefaultClusterID,
		now:       time.Now,
		ctx:       context.Background(),
	}
	for _, opt := range opts {
		opt(d)
	}
	if err := d.catalog.Validate(); err != nil {
		return nil, fmt.Errorf("sim: %w", err)
	}
	return d, nil
}

// Start registers the periodic callbacks. It is a no-op while running. The
// driver stops itself when ctx is cancelled; ctx also carries the logger.
func (d *Driver) Start(ctx context.Context) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.running {
		return
	}
	d.ctx = ctx
	d.running = true
	d.register()
	d.stopCh = make(chan struct{})
	if done := ctx.Done(); done != nil {
		go func(stop chan struct{}) {
			select {
			case <-done:
				d.Stop()
			case <-stop:
			}
		}(d.stopCh)
	}
	logging.FromContext(ctx).Info("simulation started",
		"drain_interval", d.cfg.DrainInterval,
		"alert_interval", d.cfg.AlertInterval,
		"activity_interval", d.cfg.ActivityInterval)
}

// Stop cancels future callbacks. Invocations already running complete.
// It is a no-op while stopped.
func (d *Driver) Stop() {
	d.mu.Lock()
	defer d.mu.Unlock()
	if !d.running {
		return
	}
	d.unregister()
	close(d.stopCh)
	d.running = false
	logging.FromContext(d.ctx).Info("simulation stopped")
}

// Running reports whether callbacks are registered.
func (d *Driver) Running() bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.running
}

// Config returns the active settings.
func (d *Driver) Config() Config {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.cfg
}

// Reconfigure swaps the settings. A running driver re-registers its
// callbacks so new intervals take effect immediately.
func (d *Driver) Reconfigure(cfg Config) error {
	if err := cfg.Validate(); err != nil {
		return err
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	d.cfg = cfg
	if d.running {
		d.unregister()
		d.register()
	}
	logging.FromContext(d.ctx).Info("simulation reconfigured", "running", d.running)
	return nil
}

// register must be called with d.mu held.
func (d *Driver) register() {
	d.cancels = append(d.cancels,
		d.sched.Every(d.cfg.DrainInterval, func() { d.invoke(taskDrain, d.drainTick) }),
		d.sched.Every(d.cfg.AlertInterval, func() { d.invoke(taskAlert, d.alertTick) }),
	)
	if d.cfg.ActivityInterval > 0 {
		d.cancels = append(d.cancels, d.sched.Every(d.cfg.ActivityInterval, func() { d.invoke(taskActivity, d.activityTick) }))
	}
}

// unregister must be called with d.mu held.
func (d *Driver) unregister() {
	for _, cancel := range d.cancels {
		cancel()
	}
	d.cancels = nil
}

func (d *Driver) snapshot() (Config, context.Context) {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.cfg, d.ctx
}
