package sim

import (
	"context"
	"fmt"
	"net"
	"strconv"
	"time"

	gpb "github.com/GreptimeTeam/greptime-proto/go/greptime/v1"
	greptime "github.com/GreptimeTeam/greptimedb-ingester-go"
	"github.com/GreptimeTeam/greptimedb-ingester-go/table"
	"github.com/GreptimeTeam/greptimedb-ingester-go/table/types"

	"voxsane-fleet/internal/telemetry"
)

// greptimeClient is the subset of the ingester client used by the writer.
type greptimeClient interface {
	Write(ctx context.Context, tables ...*table.Table) (*gpb.GreptimeResponse, error)
}

// GreptimeDBWriter writes drone and alert rows to GreptimeDB via the ingester
// client. Tables are created on first write.
type GreptimeDBWriter struct {
	client     greptimeClient
	table      string
	alertTable string
	timeout    time.Duration
}

// NewGreptimeDBWriter connects to endpoint ("host" or "host:port") and
// selects database.
func NewGreptimeDBWriter(endpoint, database string) (*GreptimeDBWriter, error) {
	host, port := endpoint, 4001
	if h, p, err := net.SplitHostPort(endpoint); err == nil {
		n, err := strconv.Atoi(p)
		if err != nil {
			return nil, fmt.Errorf("greptimedb endpoint %q: %w", endpoint, err)
		}
		host, port = h, n
	}
	cfg := greptime.NewConfig(host).WithPort(port).WithDatabase(database)
	client, err := greptime.NewClient(cfg)
	if err != nil {
		return nil, err
	}
	return &GreptimeDBWriter{
		client:     client,
		table:      telemetry.TelemetryTableName,
		alertTable: telemetry.AlertTableName,
		timeout:    5 * time.Second,
	}, nil
}

// Write inserts a single drone row.
func (w *GreptimeDBWriter) Write(row telemetry.DroneRow) error {
	return w.WriteBatch([]telemetry.DroneRow{row})
}

// WriteBatch inserts multiple drone rows in one request.
func (w *GreptimeDBWriter) WriteBatch(rows []telemetry.DroneRow) error {
	if len(rows) == 0 {
		return nil
	}
	tbl, err := table.New(w.table)
	if err != nil {
		return err
	}
	tbl.AddTagColumn("cluster_id", types.STRING)
	tbl.AddTagColumn("drone_id", types.STRING)
	tbl.AddFieldColumn("name", types.STRING)
	tbl.AddFieldColumn("status", types.STRING)
	tbl.AddFieldColumn("battery", types.FLOAT64)
	tbl.AddFieldColumn("signal", types.FLOAT64)
	tbl.AddFieldColumn("mission_progress", types.FLOAT64)
	tbl.AddFieldColumn("health", types.FLOAT64)
	tbl.AddTimestampColumn("ts", types.TIMESTAMP_MILLISECOND)

	for _, r := range rows {
		if err := tbl.AddRow(r.ClusterID, r.DroneID, r.Name, r.Status, r.Battery, r.Signal,
			nullable(r.MissionProgress), nullable(r.Health), r.Timestamp); err != nil {
			return err
		}
	}
	return w.write(tbl)
}

// WriteAlert inserts an alert row.
func (w *GreptimeDBWriter) WriteAlert(a telemetry.AlertRow) error {
	return w.WriteAlerts([]telemetry.AlertRow{a})
}

// WriteAlerts inserts multiple alert rows in one request.
func (w *GreptimeDBWriter) WriteAlerts(rows []telemetry.AlertRow) error {
	if len(rows) == 0 {
		return nil
	}
	tbl, err := table.New(w.alertTable)
	if err != nil {
		return err
	}
	tbl.AddTagColumn("cluster_id", types.STRING)
	tbl.AddTagColumn("alert_id", types.UINT64)
	tbl.AddFieldColumn("title", types.STRING)
	tbl.AddFieldColumn("description", types.STRING)
	tbl.AddFieldColumn("author", types.STRING)
	tbl.AddFieldColumn("kind", types.STRING)
	tbl.AddFieldColumn("created_at", types.TIMESTAMP_MILLISECOND)
	tbl.AddTimestampColumn("ts", types.TIMESTAMP_MILLISECOND)

	for _, r := range rows {
		if err := tbl.AddRow(r.ClusterID, r.AlertID, r.Title, r.Description, r.Author, r.Kind,
			r.CreatedAt, r.Timestamp); err != nil {
			return err
		}
	}
	return w.write(tbl)
}

func (w *GreptimeDBWriter) write(tbl *table.Table) error {
	timeout := w.timeout
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()
	if _, err := w.client.Write(ctx, tbl); err != nil {
		return fmt.Errorf("greptimedb write: %w", err)
	}
	return nil
}

// nullable unwraps optional fields; nil becomes a null column value.
func nullable(v *float64) any {
	if v == nil {
		return nil
	}
	return *v
}
