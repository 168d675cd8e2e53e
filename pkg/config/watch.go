package config

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"
)

// DefaultDebounce is how long Watch waits after the last change event before
// reloading.
const DefaultDebounce = 200 * time.Millisecond

// Watch reloads filename whenever it changes and passes the freshly loaded
// value to onChange. newTarget must return a value pre-filled with defaults.
// Files that fail to load or validate are logged and skipped; the previous
// configuration stays in effect. Watch blocks until ctx is cancelled.
//
// The parent directory is watched rather than the file itself so that
// editors which replace the file on save keep triggering reloads.
func Watch[T any](ctx context.Context, filename string, debounce time.Duration, newTarget func() *T, onChange func(*T), logger *slog.Logger) error {
	if debounce <= 0 {
		debounce = DefaultDebounce
	}
	abs, err := filepath.Abs(filename)
	if err != nil {
		return fmt.Errorf("config watch: %w", err)
	}

	w, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("config watch: %w", err)
	}
	defer w.Close()

	if err := w.Add(filepath.Dir(abs)); err != nil {
		return fmt.Errorf("config watch: add %s: %w", filepath.Dir(abs), err)
	}
	logger.Info("config watcher: started", slog.String("file", abs))

	var reloadTimer *time.Timer
	var reloadCh <-chan time.Time

	scheduleReload := func() {
		if reloadTimer == nil {
			reloadTimer = time.NewTimer(debounce)
			reloadCh = reloadTimer.C
		} else {
			reloadTimer.Reset(debounce)
		}
	}

	for {
		select {
		case <-ctx.Done():
			if reloadTimer != nil {
				reloadTimer.Stop()
			}
			logger.Info("config watcher: stopped")
			return nil

		case <-reloadCh:
			target := newTarget()
			if err := Load(abs, target); err != nil {
				logger.Warn("config watcher: reload rejected", slog.String("error", err.Error()))
				continue
			}
			logger.Info("config watcher: reloaded", slog.String("file", abs))
			onChange(target)

		case ev, ok := <-w.Events:
			if !ok {
				return nil
			}
			if filepath.Clean(ev.Name) != abs {
				continue
			}
			if ev.Op&(fsnotify.Create|fsnotify.Write|fsnotify.Rename) != 0 {
				scheduleReload()
			}

		case watchErr, ok := <-w.Errors:
			if !ok {
				return nil
			}
			logger.Error("config watcher: error", slog.String("error", watchErr.Error()))
		}
	}
}
