package sim

import (
	"encoding/json"
	"os"

	"voxsane-fleet/internal/telemetry"
)

// FileWriter writes drone and alert rows to JSONL files.
type FileWriter struct {
	teleFile  *os.File
	alertFile *os.File
	teleEnc   *json.Encoder
	alertEnc  *json.Encoder
}

// NewFileWriter creates a FileWriter. alertPath may be empty to skip the alert log.
func NewFileWriter(telemetryPath, alertPath string) (*FileWriter, error) {
	tf, err := os.Create(telemetryPath)
	if err != nil {
		return nil, err
	}
	fw := &FileWriter{teleFile: tf, teleEnc: json.NewEncoder(tf)}
	if alertPath != "" {
		af, err := os.Create(alertPath)
		if err != nil {
			tf.Close()
			return nil, err
		}
		fw.alertFile = af
		fw.alertEnc = json.NewEncoder(af)
	}
	return fw, nil
}

// Write logs a single drone row.
func (f *FileWriter) Write(row telemetry.DroneRow) error {
	return f.teleEnc.Encode(row)
}

// WriteBatch logs multiple drone rows.
func (f *FileWriter) WriteBatch(rows []telemetry.DroneRow) error {
	for _, r := range rows {
		if err := f.Write(r); err != nil {
			return err
		}
	}
	return nil
}

// WriteAlert logs a single alert row, if enabled.
func (f *FileWriter) WriteAlert(a telemetry.AlertRow) error {
	if f.alertEnc == nil {
		return nil
	}
	return f.alertEnc.Encode(a)
}

// Close closes any underlying files.
func (f *FileWriter) Close() error {
	var err error
	if f.teleFile != nil {
		if e := f.teleFile.Close(); e != nil && err == nil {
			err = e
		}
	}
	if f.alertFile != nil {
		if e := f.alertFile.Close(); e != nil && err == nil {
			err = e
		}
	}
	return err
}
