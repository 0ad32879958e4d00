// Package connectivity models the platform reachability signal. The mobile
// shell owns the real network callbacks and feeds them into a Watcher; the
// sync reconciler only consumes level changes and derives edges itself.
package connectivity

import "sync"

// Watcher exposes the current reachability level and a change stream.
type Watcher interface {
	Online() bool
	Changes() <-chan bool
}

// ManualWatcher is a channel-backed Watcher driven by explicit Set calls.
// The agent wiring and tests use it directly; a platform build would wrap
// the OS reachability callback around it.
type ManualWatcher struct {
	mu     sync.Mutex
	online bool
	ch     chan bool
}

// NewManualWatcher starts in the given reachability state.
func NewManualWatcher(online bool) *ManualWatcher {
	return &ManualWatcher{
		online: online,
		ch:     make(chan bool, 8),
	}
}

// Online reports the current level.
func (w *ManualWatcher) Online() bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.online
}

// Changes returns the level-change stream.
func (w *ManualWatcher) Changes() <-chan bool {
	return w.ch
}

// Set records a new reachability level. Repeated levels are still published;
// edge detection is the consumer's job.
func (w *ManualWatcher) Set(online bool) {
	w.mu.Lock()
	w.online = online
	w.mu.Unlock()

	select {
	case w.ch <- online:
	default:
		// A slow consumer drops intermediate flaps; the latest level is
		// still readable via Online.
	}
}
