package refresh

import (
	"context"
	"log/slog"
	"strings"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/opencode-desk/core/logger"
)

// Watcher triggers a refresh when watched config directories change on
// disk. Editors produce bursts of write/rename events for a single save,
// so events are debounced into one refresh.
type Watcher struct {
	fs          *fsnotify.Watcher
	coordinator *Coordinator
	debounce    time.Duration
	log         *slog.Logger
	done        chan struct{}
}

// NewWatcher creates a filesystem watcher that drives the coordinator.
func NewWatcher(coordinator *Coordinator, debounce time.Duration) (*Watcher, error) {
	fs, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}
	return &Watcher{
		fs:          fs,
		coordinator: coordinator,
		debounce:    debounce,
		log:         logger.WithComponent("refresh-watcher"),
		done:        make(chan struct{}),
	}, nil
}

// Add watches a directory. Missing directories are skipped with a log line
// rather than failing, since not every project has a config directory.
func (w *Watcher) Add(dir string) error {
	if err := w.fs.Add(dir); err != nil {
		w.log.Debug("not watching directory", "dir", dir, "error", err)
		return err
	}
	return nil
}

// Start runs the event loop until ctx is cancelled or Close is called.
func (w *Watcher) Start(ctx context.Context) {
	go w.loop(ctx)
}

func (w *Watcher) loop(ctx context.Context) {
	var timer *time.Timer
	var fire <-chan time.Time

	for {
		select {
		case <-ctx.Done():
			return
		case <-w.done:
			return
		case event, ok := <-w.fs.Events:
			if !ok {
				return
			}
			if !relevantEvent(event) {
				continue
			}
			if timer == nil {
				timer = time.NewTimer(w.debounce)
			} else {
				if !timer.Stop() {
					select {
					case <-timer.C:
					default:
					}
				}
				timer.Reset(w.debounce)
			}
			fire = timer.C
		case err, ok := <-w.fs.Errors:
			if !ok {
				return
			}
			w.log.Warn("watch error", "error", err)
		case <-fire:
			fire = nil
			if err := w.coordinator.Refresh(ctx, Options{
				Message: "config directory changed",
				Mode:    ModeActiveDirectory,
			}); err != nil {
				w.log.Warn("refresh after file change failed", "error", err)
			}
		}
	}
}

// relevantEvent filters out noise: chmods and editor swap/backup files.
func relevantEvent(event fsnotify.Event) bool {
	if event.Op&(fsnotify.Create|fsnotify.Write|fsnotify.Remove|fsnotify.Rename) == 0 {
		return false
	}
	name := event.Name
	if strings.HasSuffix(name, "~") || strings.HasSuffix(name, ".swp") || strings.HasSuffix(name, ".tmp") {
		return false
	}
	return true
}

// Close stops the watcher and releases its filesystem handles.
func (w *Watcher) Close() error {
	close(w.done)
	return w.fs.Close()
}
