package setup

import (
	"reflect"
	"sync"
)

// Tracker holds the current setup State and applies incoming updates.
type Tracker struct {
	mu    sync.RWMutex
	state State
}

// NewTracker creates a tracker with the empty state.
func NewTracker() *Tracker {
	return &Tracker{state: NewState()}
}

// State returns the current snapshot.
func (t *Tracker) State() State {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.state
}

// Apply folds u into the tracked state. The returned flag reports whether
// the displayed phase or its record changed.
func (t *Tracker) Apply(u Update) (State, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()

	before := t.state.Displayed()
	t.state = t.state.Apply(u)
	after := t.state.Displayed()
	return t.state, !reflect.DeepEqual(before, after)
}

// Reset discards every record. Only a full application reset calls this.
func (t *Tracker) Reset() {
	t.mu.Lock()
	t.state = NewState()
	t.mu.Unlock()
}
