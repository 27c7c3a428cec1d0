// Package watcher reports changes to the global settings file.
package watcher

import (
	"log/slog"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/dockwatch-io/dockwatch/internal/config"
)

// debounceDelay coalesces the burst of events an editor or atomic write
// produces for a single logical change.
const debounceDelay = 100 * time.Millisecond

// Event signals that the settings file changed on disk.
type Event struct {
	Path string
}

// Watcher watches the global config directory for settings changes.
type Watcher struct {
	fsWatcher  *fsnotify.Watcher
	eventsChan chan Event
	done       chan struct{}
	log        *slog.Logger

	debounceMu sync.Mutex
	debounce   map[string]*time.Timer
}

// New creates a watcher. Call Start to begin delivering events.
func New(log *slog.Logger) (*Watcher, error) {
	fsWatcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}
	if log == nil {
		log = slog.Default()
	}

	return &Watcher{
		fsWatcher:  fsWatcher,
		eventsChan: make(chan Event, 16),
		done:       make(chan struct{}),
		log:        log.With("component", "watcher"),
		debounce:   make(map[string]*time.Timer),
	}, nil
}

// Events returns the channel on which settings changes are delivered.
func (w *Watcher) Events() <-chan Event {
	return w.eventsChan
}

// Start watches the global config directory and begins processing events.
// The directory is watched rather than the file itself so the watch
// survives the file being replaced.
func (w *Watcher) Start() error {
	dir, err := config.GlobalDir()
	if err != nil {
		return err
	}
	if err := w.fsWatcher.Add(dir); err != nil {
		return err
	}

	go w.processEvents()
	return nil
}

// Stop stops the watcher.
func (w *Watcher) Stop() {
	close(w.done)
	_ = w.fsWatcher.Close()
}

func (w *Watcher) processEvents() {
	for {
		select {
		case <-w.done:
			return
		case event, ok := <-w.fsWatcher.Events:
			if !ok {
				return
			}
			w.handleEvent(event)
		case err, ok := <-w.fsWatcher.Errors:
			if !ok {
				return
			}
			w.log.Warn("fsnotify error", "error", err)
		}
	}
}

func (w *Watcher) handleEvent(event fsnotify.Event) {
	// Accept write, create, and rename events. Atomic replaces (write
	// tmp, rename over target) surface as Create or Rename depending on
	// the platform.
	if event.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Rename) == 0 {
		return
	}
	if filepath.Base(event.Name) != config.SettingsFileName {
		return
	}

	w.debounceEvent(event.Name, func() {
		w.log.Debug("settings changed", "path", event.Name)
		select {
		case w.eventsChan <- Event{Path: event.Name}:
		case <-w.done:
		}
	})
}

// debounceEvent resets the timer for path so only the last event in a
// burst fires.
func (w *Watcher) debounceEvent(path string, fn func()) {
	w.debounceMu.Lock()
	defer w.debounceMu.Unlock()

	if timer, ok := w.debounce[path]; ok {
		timer.Stop()
	}

	w.debounce[path] = time.AfterFunc(debounceDelay, func() {
		w.debounceMu.Lock()
		delete(w.debounce, path)
		w.debounceMu.Unlock()
		fn()
	})
}
