package config

import (
	"context"
	"log/slog"
	"time"

	"github.com/fsnotify/fsnotify"
)

// Watcher reloads the config file on change and hands the new AppConfig to
// OnReload, debouncing bursts of fs events (editors typically emit several
// writes per save) the same way the teacher's own file-watch consumers do.
type Watcher struct {
	path     string
	debounce time.Duration
	log      *slog.Logger

	// OnReload is called with the freshly loaded, validated config after a
	// debounced change. A non-nil error from the reload itself is logged and
	// OnReload is not called, so a config file mid-edit never replaces a
	// known-good running configuration.
	OnReload func(AppConfig)
}

// NewWatcher builds a Watcher for path. debounce defaults to 300ms.
func NewWatcher(path string, debounce time.Duration, log *slog.Logger) *Watcher {
	if debounce <= 0 {
		debounce = 300 * time.Millisecond
	}
	if log == nil {
		log = slog.Default()
	}
	return &Watcher{path: path, debounce: debounce, log: log}
}

// Run watches w.path for changes until ctx is cancelled. It blocks; callers
// should run it in its own goroutine.
func (w *Watcher) Run(ctx context.Context) error {
	if w.path == "" {
		return nil
	}

	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	defer fw.Close()

	if err := fw.Add(w.path); err != nil {
		return err
	}

	var timer *time.Timer
	var timerC <-chan time.Time

	for {
		select {
		case <-ctx.Done():
			return nil
		case event, ok := <-fw.Events:
			if !ok {
				return nil
			}
			if event.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Rename) == 0 {
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
			timerC = timer.C
		case err, ok := <-fw.Errors:
			if !ok {
				return nil
			}
			w.log.Warn("config watcher error", "err", err)
		case <-timerC:
			timerC = nil
			w.reload()
		}
	}
}

func (w *Watcher) reload() {
	cfg, err := Load(w.path)
	if err != nil {
		w.log.Warn("config reload failed, keeping previous configuration", "path", w.path, "err", err)
		return
	}
	w.log.Info("config reloaded", "path", w.path)
	if w.OnReload != nil {
		w.OnReload(cfg)
	}
}
