package sim

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"voxsane-fleet/internal/telemetry"
)

// redisClient is the subset of *redis.Client used by the writer.
type redisClient interface {
	Pipeline() redis.Pipeliner
	Publish(ctx context.Context, channel string, message interface{}) *redis.IntCmd
	Close() error
}

// RedisWriter mirrors drone state into per-drone hashes and publishes every
// row on the cluster's pub/sub channels:
//
//	fleet:<cluster>:drone:<id>   hash, expires after StateTTL
//	fleet:<cluster>:telemetry    channel of drone rows
//	fleet:<cluster>:alerts       channel of alert rows
type RedisWriter struct {
	client   redisClient
	StateTTL time.Duration
	timeout  time.Duration
}

// NewRedisWriter connects to addr and verifies the connection.
func NewRedisWriter(ctx context.Context, addr, password string, db int) (*RedisWriter, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("failed to connect to redis: %w", err)
	}
	return &RedisWriter{client: client, StateTTL: time.Minute, timeout: 5 * time.Second}, nil
}

func droneStateKey(cluster, id string) string {
	return fmt.Sprintf("fleet:%s:drone:%s", cluster, id)
}

func telemetryChannel(cluster string) string {
	return fmt.Sprintf("fleet:%s:telemetry", cluster)
}

func alertChannel(cluster string) string {
	return fmt.Sprintf("fleet:%s:alerts", cluster)
}

func (w *RedisWriter) opContext() (context.Context, context.CancelFunc) {
	timeout := w.timeout
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	return context.WithTimeout(context.Background(), timeout)
}

// Write stores and publishes a single drone row.
func (w *RedisWriter) Write(row telemetry.DroneRow) error {
	return w.WriteBatch([]telemetry.DroneRow{row})
}

// WriteBatch stores and publishes drone rows in one pipeline.
func (w *RedisWriter) WriteBatch(rows []telemetry.DroneRow) error {
	if len(rows) == 0 {
		return nil
	}
	ctx, cancel := w.opContext()
	defer cancel()

	pipe := w.client.Pipeline()
	for _, r := range rows {
		payload, err := json.Marshal(r)
		if err != nil {
			return fmt.Errorf("failed to marshal drone row: %w", err)
		}
		state := map[string]interface{}{
			"name":    r.Name,
			"status":  r.Status,
			"battery": r.Battery,
			"signal":  r.Signal,
			"ts":      r.Timestamp.UnixMilli(),
		}
		if r.MissionProgress != nil {
			state["mission_progress"] = *r.MissionProgress
		}
		if r.Health != nil {
			state["health"] = *r.Health
		}
		key := droneStateKey(r.ClusterID, r.DroneID)
		pipe.HSet(ctx, key, state)
		if w.StateTTL > 0 {
			pipe.Expire(ctx, key, w.StateTTL)
		}
		pipe.Publish(ctx, telemetryChannel(r.ClusterID), payload)
	}
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("redis pipeline failed: %w", err)
	}
	return nil
}

// WriteAlert publishes an alert row.
func (w *RedisWriter) WriteAlert(a telemetry.AlertRow) error {
	payload, err := json.Marshal(a)
	if err != nil {
		return fmt.Errorf("failed to marshal alert: %w", err)
	}
	ctx, cancel := w.opContext()
	defer cancel()
	return w.client.Publish(ctx, alertChannel(a.ClusterID), payload).Err()
}

// Close releases the connection pool.
func (w *RedisWriter) Close() error {
	return w.client.Close()
}
