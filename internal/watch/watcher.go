// Package watch observes directories for newly created files.
package watch

import (
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/BhargaviGangoor/Wassup-Guard/internal/guard"
)

// dedupWindow collapses near-simultaneous create events for one path
// into a single delivery.
const dedupWindow = 200 * time.Millisecond

// FSWatcher implements guard.Watcher on fsnotify. Creation events are
// forwarded into a bounded channel; detection never blocks on a slow
// consumer; excess events are dropped with a log line and picked up by
// the next sweep.
type FSWatcher struct {
	notifier *fsnotify.Watcher
	events   chan string
	logger   guard.Logger
	clock    guard.Clock

	mu      sync.Mutex
	watched map[string]struct{}
	recent  map[string]time.Time
	closed  bool

	loopDone chan struct{}
}

var _ guard.Watcher = (*FSWatcher)(nil)

// NewFSWatcher creates a watcher whose event channel holds up to
// queueSize pending paths.
func NewFSWatcher(queueSize int, logger guard.Logger, clock guard.Clock) (*FSWatcher, error) {
	if queueSize <= 0 {
		queueSize = 256
	}

	notifier, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("creating filesystem notifier: %w", err)
	}

	w := &FSWatcher{
		notifier: notifier,
		events:   make(chan string, queueSize),
		logger:   logger,
		clock:    clock,
		watched:  make(map[string]struct{}),
		recent:   make(map[string]time.Time),
		loopDone: make(chan struct{}),
	}
	go w.loop()
	return w, nil
}

// Reconcile diffs the desired directory set against the watched one.
// Directories are created when absent. A path that cannot be created or
// watched is logged and skipped without affecting the others; callers
// retry it on their next Reconcile.
func (w *FSWatcher) Reconcile(paths []string) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.closed {
		return fmt.Errorf("watcher is closed")
	}

	desired := make(map[string]struct{}, len(paths))
	for _, p := range paths {
		abs, err := filepath.Abs(p)
		if err != nil {
			w.logger.Warn("skipping unresolvable watch path", "path", p, "error", err)
			continue
		}
		desired[abs] = struct{}{}
	}

	for path := range w.watched {
		if _, ok := desired[path]; ok {
			continue
		}
		if err := w.notifier.Remove(path); err != nil {
			w.logger.Warn("stopping observation failed", "path", path, "error", err)
		}
		delete(w.watched, path)
		w.logger.Debug("stopped watching", "path", path)
	}

	for path := range desired {
		if _, ok := w.watched[path]; ok {
			continue
		}
		if err := os.MkdirAll(path, 0755); err != nil {
			w.logger.Warn("creating watch directory failed", "path", path, "error", err)
			continue
		}
		if err := w.notifier.Add(path); err != nil {
			w.logger.Warn("starting observation failed", "path", path, "error", err)
			continue
		}
		w.watched[path] = struct{}{}
		w.logger.Debug("watching", "path", path)
	}

	return nil
}

// Events delivers absolute paths of created files.
func (w *FSWatcher) Events() <-chan string {
	return w.events
}

// Close stops all observation and closes the event channel.
func (w *FSWatcher) Close() error {
	w.mu.Lock()
	if w.closed {
		w.mu.Unlock()
		return nil
	}
	w.closed = true
	w.watched = make(map[string]struct{})
	w.mu.Unlock()

	err := w.notifier.Close()
	<-w.loopDone
	close(w.events)
	return err
}

// loop drains the notifier until it is closed.
func (w *FSWatcher) loop() {
	defer close(w.loopDone)

	for {
		select {
		case ev, ok := <-w.notifier.Events:
			if !ok {
				return
			}
			w.handleEvent(ev)
		case err, ok := <-w.notifier.Errors:
			if !ok {
				return
			}
			w.logger.Warn("filesystem notifier error", "error", err)
		}
	}
}

// handleEvent forwards file creations, ignoring directories and
// collapsing duplicate events within the dedup window.
func (w *FSWatcher) handleEvent(ev fsnotify.Event) {
	if !ev.Has(fsnotify.Create) {
		return
	}

	info, err := os.Stat(ev.Name)
	if err != nil {
		// Already gone; nothing to scan.
		return
	}
	if info.IsDir() {
		return
	}

	if !w.firstInWindow(ev.Name) {
		return
	}

	select {
	case w.events <- ev.Name:
	default:
		w.logger.Warn("event queue full, dropping creation event", "path", ev.Name)
	}
}

// firstInWindow reports whether this is the first event for path within
// the dedup window, recording it if so.
func (w *FSWatcher) firstInWindow(path string) bool {
	now := w.clock.Now()

	w.mu.Lock()
	defer w.mu.Unlock()

	if last, ok := w.recent[path]; ok && now.Sub(last) < dedupWindow {
		return false
	}
	w.recent[path] = now

	// Drop stale entries so the map does not grow with every file ever seen.
	for p, t := range w.recent {
		if now.Sub(t) >= dedupWindow {
			delete(w.recent, p)
		}
	}
	return true
}
