package sim

import (
	"encoding/json"
	"fmt"
	"io"
	"os"

	"voxsane-fleet/internal/telemetry"
)

// JSONStdoutWriter prints drone and alert rows as JSON to STDOUT.
type JSONStdoutWriter struct {
	out io.Writer
}

// NewJSONStdoutWriter creates a JSONStdoutWriter writing to os.Stdout.
func NewJSONStdoutWriter() *JSONStdoutWriter {
	return &JSONStdoutWriter{out: os.Stdout}
}

func (w *JSONStdoutWriter) emit(v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return err
	}
	_, err = fmt.Fprintln(w.out, string(data))
	return err
}

// Write outputs a drone row in JSON format.
func (w *JSONStdoutWriter) Write(row telemetry.DroneRow) error {
	return w.emit(row)
}

// WriteBatch outputs multiple drone rows in JSON format.
func (w *JSONStdoutWriter) WriteBatch(rows []telemetry.DroneRow) error {
	for _, r := range rows {
		if err := w.Write(r); err != nil {
			return err
		}
	}
	return nil
}

// WriteAlert outputs an alert in JSON format.
func (w *JSONStdoutWriter) WriteAlert(a telemetry.AlertRow) error {
	return w.emit(a)
}
