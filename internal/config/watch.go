package config

import (
	"context"
	"fmt"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"

	"voxsane-fleet/internal/logging"
)

// reloadDelay coalesces the burst of events editors emit on save.
const reloadDelay = 100 * time.Millisecond

// Watcher reloads a config file whenever it changes on disk.
type Watcher struct {
	path   string
	schema string
	fs     *fsnotify.Watcher
}

// NewWatcher starts watching the directory holding path. Watching the
// directory keeps working across editors that replace the file on save.
func NewWatcher(path, schemaPath string) (*Watcher, error) {
	fs, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}
	if err := fs.Add(filepath.Dir(path)); err != nil {
		fs.Close()
		return nil, fmt.Errorf("watch %s: %w", path, err)
	}
	return &Watcher{path: filepath.Clean(path), schema: schemaPath, fs: fs}, nil
}

// Run blocks until ctx is done, calling onChange with every config that
// loads and validates. Invalid edits are logged and skipped.
func (w *Watcher) Run(ctx context.Context, onChange func(*Config)) error {
	log := logging.FromContext(ctx)
	defer w.fs.Close()

	var pending <-chan time.Time
	for {
		select {
		case <-ctx.Done():
			return nil
		case ev, ok := <-w.fs.Events:
			if !ok {
				return nil
			}
			if filepath.Clean(ev.Name) != w.path {
				continue
			}
			if !ev.Has(fsnotify.Write) && !ev.Has(fsnotify.Create) {
				continue
			}
			pending = time.After(reloadDelay)
		case <-pending:
			pending = nil
			cfg, err := Load(w.path, w.schema)
			if err != nil {
				log.Warn("config reload rejected", "path", w.path, "err", err)
				continue
			}
			log.Info("config reloaded", "path", w.path)
			onChange(cfg)
		case err, ok := <-w.fs.Errors:
			if !ok {
				return nil
			}
			log.Error("config watcher error", "err", err)
		}
	}
}
