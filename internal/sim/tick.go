package sim

import (
	"fmt"

	"voxsane-fleet/internal/fleet"
	"voxsane-fleet/internal/logging"
	"voxsane-fleet/internal/telemetry"
)

const (
	taskDrain    = "drain"
	taskAlert    = "alert"
	taskActivity = "activity"
)

// invoke runs one scheduled callback. Errors and panics are confined to
// this invocation.
func (d *Driver) invoke(task string, fn func() error) {
	_, ctx := d.snapshot()
	log := logging.FromContext(ctx)
	if d.metrics != nil {
		d.metrics.Ticks.WithLabelValues(task).Inc()
	}

	err := func() (err error) {
		defer func() {
			if r := recover(); r != nil {
				err = fmt.Errorf("panic: %v", r)
			}
		}()
		return fn()
	}()
	if err != nil {
		log.Error("tick failed", "task", task, "err", err)
		if d.metrics != nil {
			d.metrics.TickFailures.WithLabelValues(task).Inc()
		}
		return
	}
	if d.metrics != nil {
		d.metrics.ObserveStore(d.store)
	}
}

// between draws from [lo, hi).
func (d *Driver) between(lo, hi float64) float64 {
	return lo + d.rnd.Float64()*(hi-lo)
}

// drainTick drains flying drones, advances their missions and exports the
// resulting snapshot.
func (d *Driver) drainTick() error {
	cfg, ctx := d.snapshot()
	drain := d.between(cfg.DrainMin, cfg.DrainMax)
	progress := d.between(cfg.ProgressMin, cfg.ProgressMax)
	if err := d.store.TickFlight(drain, cfg.BatteryFloor, progress); err != nil {
		return err
	}
	logging.FromContext(ctx).Debug("drain tick", "drain", drain, "progress", progress)

	if d.writer == nil {
		return nil
	}
	rows := telemetry.FromDrones(d.clusterID, d.store.ListDrones(), d.now())
	if err := writeRows(d.writer, rows); err != nil {
		d.writerFailed("telemetry", err)
	}
	return nil
}

// alertTick may inject an urgent alert attributed to a random drone.
func (d *Driver) alertTick() error {
	cfg, ctx := d.snapshot()
	if d.rnd.Float64() >= cfg.AlertProbability {
		return nil
	}
	drones := d.store.ListDrones()
	if len(drones) == 0 {
		return nil
	}
	drone := drones[d.rnd.Intn(len(drones))]
	tpl := d.catalog.Alerts[d.rnd.Intn(len(d.catalog.Alerts))]

	a, err := d.store.PushAlert(fleet.Alert{
		Title:       tpl.Title,
		Description: tpl.Describe(drone.Name),
		Author:      drone.Name,
		Kind:        fleet.AlertUrgent,
	})
	if err != nil {
		return err
	}
	logging.FromContext(ctx).Info("alert injected", "id", a.ID, "drone", drone.ID, "title", a.Title)
	if d.metrics != nil {
		d.metrics.AlertsPushed.Inc()
	}

	if d.alertWriter == nil {
		return nil
	}
	if err := writeAlertRows(d.alertWriter, []telemetry.AlertRow{telemetry.FromAlert(d.clusterID, a, d.now())}); err != nil {
		d.writerFailed("alerts", err)
	}
	return nil
}

// activityTick records a synthetic timeline entry.
func (d *Driver) activityTick() error {
	msg := d.catalog.Activities[d.rnd.Intn(len(d.catalog.Activities))]
	return d.store.RecordActivity(msg)
}

func (d *Driver) writerFailed(stream string, err error) {
	_, ctx := d.snapshot()
	logging.FromContext(ctx).Warn("export failed", "stream", stream, "err", err)
	if d.metrics != nil {
		d.metrics.WriterFailures.WithLabelValues(stream).Inc()
	}
}
