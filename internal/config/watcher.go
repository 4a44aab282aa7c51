package config

import (
	"context"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"
	log "github.com/sirupsen/logrus"
)

// watchDebounce coalesces the burst of filesystem events editors emit for a
// single save.
const watchDebounce = 300 * time.Millisecond

// Watch monitors the configuration file at path and invokes onChange with
// each successfully reloaded configuration. Reload failures are logged and
// the previous configuration stays in effect. Watch blocks until ctx is
// cancelled.
func Watch(ctx context.Context, path string, onChange func(*Config)) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	defer func() { _ = watcher.Close() }()

	// Watch the directory rather than the file so atomic rename-based saves
	// keep being observed.
	if err := watcher.Add(filepath.Dir(path)); err != nil {
		return err
	}
	target := filepath.Clean(path)

	var timer *time.Timer
	var timerCh <-chan time.Time
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if filepath.Clean(event.Name) != target {
				continue
			}
			if event.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Rename) == 0 {
				continue
			}
			if timer == nil {
				timer = time.NewTimer(watchDebounce)
				timerCh = timer.C
			} else {
				timer.Reset(watchDebounce)
			}
		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			log.Warnf("config watcher: %v", err)
		case <-timerCh:
			timer = nil
			timerCh = nil
			cfg, err := LoadConfig(path)
			if err != nil {
				log.Errorf("config reload failed, keeping previous configuration: %v", err)
				continue
			}
			log.Infof("configuration reloaded from %s", path)
			onChange(cfg)
		}
	}
}
