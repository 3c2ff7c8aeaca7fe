package sim

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"time"

	"voxsane-fleet/internal/telemetry"
)

// maxLogLine bounds a single JSONL record.
const maxLogLine = 1 << 20

// ReplayLog feeds drone rows from a JSONL log to writer. Rows sharing a
// timestamp were exported by one drain tick and are written as one batch.
// Between ticks it sleeps the recorded gap divided by speed; speed <= 0
// replays without delay.
func ReplayLog(ctx context.Context, r io.Reader, writer TelemetryWriter, speed float64) error {
	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 64*1024), maxLogLine)

	var (
		tick []telemetry.DroneRow
		prev time.Time
		line int
	)
	for sc.Scan() {
		line++
		raw := bytes.TrimSpace(sc.Bytes())
		if len(raw) == 0 {
			continue
		}
		var row telemetry.DroneRow
		if err := json.Unmarshal(raw, &row); err != nil {
			return fmt.Errorf("line %d: %w", line, err)
		}
		if len(tick) > 0 && !row.Timestamp.Equal(prev) {
			if err := writeRows(writer, tick); err != nil {
				return err
			}
			tick = nil
			if err := replayWait(ctx, row.Timestamp.Sub(prev), speed); err != nil {
				return err
			}
		}
		tick = append(tick, row)
		prev = row.Timestamp
	}
	if err := sc.Err(); err != nil {
		return err
	}
	if len(tick) == 0 {
		return nil
	}
	return writeRows(writer, tick)
}

func replayWait(ctx context.Context, gap time.Duration, speed float64) error {
	if speed <= 0 || gap <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(time.Duration(float64(gap) / speed))
	defer t.Stop()
	select {
	case <-t.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// ReplayLogFile opens a file and replays its drone rows.
func ReplayLogFile(ctx context.Context, path string, writer TelemetryWriter, speed float64) error {
	f, err := os.Open(path)
	if err != nil {
		return err
	}
	defer f.Close()
	return ReplayLog(ctx, f, writer, speed)
}
