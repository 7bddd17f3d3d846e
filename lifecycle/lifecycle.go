// Package lifecycle tracks whether the host application is in the
// foreground. The engine consults a HostState before every attempt and
// refuses tasks whose config does not allow foreground execution.
//
// Detecting visibility is the host's job; it reports transitions by calling
// Tracker.Resume and Tracker.Pause.
package lifecycle

import (
	"sync"
	"sync/atomic"
)

// HostState reports the visibility of the host application.
type HostState interface {
	InForeground() bool
}

// Background is a HostState that never reports foreground. It is the
// engine default, matching a process with no visible UI.
type Background struct{}

// InForeground always returns false.
func (Background) InForeground() bool { return false }

// Listener is called after every visibility change.
type Listener func(foreground bool)

// Tracker is a HostState driven by the host. It is safe for concurrent use.
// The zero value is in the background.
type Tracker struct {
	foreground atomic.Bool

	mu        sync.Mutex
	listeners []Listener
}

// NewTracker creates a Tracker in the given initial state.
func NewTracker(foreground bool) *Tracker {
	t := &Tracker{}
	t.foreground.Store(foreground)
	return t
}

// InForeground implements HostState.
func (t *Tracker) InForeground() bool { return t.foreground.Load() }

// Resume marks the host as visible.
func (t *Tracker) Resume() { t.set(true) }

// Pause marks the host as hidden.
func (t *Tracker) Pause() { t.set(false) }

// OnChange registers l to be called on every state change.
func (t *Tracker) OnChange(l Listener) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.listeners = append(t.listeners, l)
}

func (t *Tracker) set(foreground bool) {
	if t.foreground.Swap(foreground) == foreground {
		return
	}
	t.mu.Lock()
	ls := append([]Listener(nil), t.listeners...)
	t.mu.Unlock()
	for _, l := range ls {
		l(foreground)
	}
}
