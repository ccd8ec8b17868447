// Package health tracks whether the persistence backend is reachable and keeps
// reconnecting in the background. The flag is advisory: nothing gates requests on it.
package health

import (
	"sync"
	"sync/atomic"
)

// State is the single shared "backend reachable" flag.
type State struct {
	up atomic.Bool

	mu    sync.Mutex
	watch []func(up bool)
}

// NewState returns a state that starts disconnected.
func NewState() *State { return &State{} }

// Connected reports the last observed reachability.
func (s *State) Connected() bool { return s.up.Load() }

// Set records reachability and notifies watchers when it flips.
func (s *State) Set(up bool) {
	if s.up.Swap(up) == up {
		return
	}
	s.mu.Lock()
	watch := append([]func(bool){}, s.watch...)
	s.mu.Unlock()
	for _, fn := range watch {
		fn(up)
	}
}

// Watch registers fn to run on every flip. fn is called once immediately with the current value.
func (s *State) Watch(fn func(up bool)) {
	s.mu.Lock()
	s.watch = append(s.watch, fn)
	s.mu.Unlock()
	fn(s.Connected())
}

// Label renders the state the way the health endpoint reports it.
func (s *State) Label() string {
	if s.Connected() {
		return "connected"
	}
	return "disconnected"
}
