package testutil

import "sync"

// StubWatcher feeds scripted file paths through the Events channel.
type StubWatcher struct {
	mu         sync.Mutex
	events     chan string
	reconciled [][]string
	closed     bool
}

func NewStubWatcher() *StubWatcher {
	return &StubWatcher{events: make(chan string, 16)}
}

// Emit delivers a creation event for path.
func (w *StubWatcher) Emit(path string) {
	w.events <- path
}

// Reconciled returns every path set passed to Reconcile, in order.
func (w *StubWatcher) Reconciled() [][]string {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.reconciled
}

func (w *StubWatcher) Reconcile(paths []string) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.reconciled = append(w.reconciled, paths)
	return nil
}

func (w *StubWatcher) Events() <-chan string {
	return w.events
}

func (w *StubWatcher) Close() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if !w.closed {
		w.closed = true
		close(w.events)
	}
	return nil
}
