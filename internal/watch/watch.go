// Package watch reacts to image arrivals under an input tree. It debounces
// bursts of filesystem events into single triggers so a drop of fifty files
// schedules one batch, not fifty.
package watch

import (
	"context"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"

	"matte/internal/discover"
	"matte/internal/logging"
)

// Watcher monitors an input root for new or modified images and emits a
// trigger after a quiet period. In recursive mode newly created
// subdirectories are watched as they appear.
type Watcher struct {
	root      string
	recursive bool
	debounce  time.Duration
	notify    *fsnotify.Watcher
	logger    *slog.Logger

	mu    sync.Mutex
	timer *time.Timer

	triggers chan struct{}
}

// New constructs a watcher over root. With recursive true all existing
// subdirectories are watched as well.
func New(root string, recursive bool, debounce time.Duration, logger *slog.Logger) (*Watcher, error) {
	if logger == nil {
		logger = logging.NewNop()
	}
	if debounce <= 0 {
		debounce = 500 * time.Millisecond
	}

	notify, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("create watcher: %w", err)
	}

	w := &Watcher{
		root:      root,
		recursive: recursive,
		debounce:  debounce,
		notify:    notify,
		logger:    logging.NewComponentLogger(logger, "watch"),
		triggers:  make(chan struct{}, 1),
	}

	if err := w.addTree(root); err != nil {
		notify.Close()
		return nil, err
	}
	return w, nil
}

// Triggers returns the channel that fires after a debounced burst of
// arrivals. The channel carries at most one pending trigger; consumers that
// lag see a single combined signal.
func (w *Watcher) Triggers() <-chan struct{} {
	return w.triggers
}

// Run processes filesystem events until ctx is cancelled.
func (w *Watcher) Run(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case event, ok := <-w.notify.Events:
			if !ok {
				return nil
			}
			w.handle(event)
		case err, ok := <-w.notify.Errors:
			if !ok {
				return nil
			}
			w.logger.Warn("watch error", logging.Error(err))
		}
	}
}

// Close stops the underlying filesystem watcher and any pending trigger.
func (w *Watcher) Close() error {
	w.mu.Lock()
	if w.timer != nil {
		w.timer.Stop()
	}
	w.mu.Unlock()
	return w.notify.Close()
}

func (w *Watcher) handle(event fsnotify.Event) {
	if event.Op&(fsnotify.Create|fsnotify.Write) == 0 {
		return
	}

	if event.Op&fsnotify.Create != 0 {
		info, err := os.Stat(event.Name)
		if err == nil && info.IsDir() {
			if !w.recursive {
				return
			}
			// Files may land in the directory before the watch attaches,
			// so a trigger covers anything the events missed.
			if err := w.addTree(event.Name); err != nil {
				w.logger.Warn("watch new directory", logging.String("path", event.Name), logging.Error(err))
			}
			w.schedule()
			return
		}
	}

	if !discover.IsSupported(event.Name) {
		return
	}
	w.logger.Debug("arrival", logging.String("path", event.Name), logging.String("op", event.Op.String()))
	w.schedule()
}

func (w *Watcher) schedule() {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.timer != nil {
		w.timer.Stop()
	}
	w.timer = time.AfterFunc(w.debounce, func() {
		select {
		case w.triggers <- struct{}{}:
		default:
		}
	})
}

func (w *Watcher) addTree(root string) error {
	if !w.recursive {
		if err := w.notify.Add(root); err != nil {
			return fmt.Errorf("watch %s: %w", root, err)
		}
		return nil
	}
	return filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if !d.IsDir() {
			return nil
		}
		if err := w.notify.Add(path); err != nil {
			return fmt.Errorf("watch %s: %w", path, err)
		}
		return nil
	})
}
