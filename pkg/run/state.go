package run

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/memtensor/memos-bootstrap/pkg/api"
)

var order = map[api.RunState]int{
	"":              0,
	api.RunStarting: 1,
	api.RunServing:  2,
	api.RunStopped:  3,
}

// Tracker records the state of a launched unit. States only move forward:
// STARTING, SERVING, STOPPED. SERVING may be skipped.
type Tracker struct {
	mu      sync.RWMutex
	state   api.RunState
	since   time.Time
	changed chan struct{}
}

// NewTracker returns a Tracker with no state.
func NewTracker() *Tracker {
	return &Tracker{changed: make(chan struct{})}
}

// Set moves the tracker to state. Transitions backwards or to the current
// state are ignored and reported as false.
func (t *Tracker) Set(state api.RunState) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	if order[state] <= order[t.state] {
		return false
	}
	log.V(1).Infof("State %s -> %s", displayState(t.state), state)
	t.state = state
	t.since = time.Now()
	close(t.changed)
	t.changed = make(chan struct{})
	return true
}

// State returns the current state and the time it was entered.
func (t *Tracker) State() (api.RunState, time.Time) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.state, t.since
}

// WaitFor blocks until state is reached. It fails when a later state is
// entered first or ctx is done.
func (t *Tracker) WaitFor(ctx context.Context, state api.RunState) error {
	for {
		t.mu.RLock()
		current, changed := t.state, t.changed
		t.mu.RUnlock()

		if current == state {
			return nil
		}
		if order[current] > order[state] {
			return fmt.Errorf("unit reached %s before %s", current, state)
		}
		select {
		case <-changed:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}

func displayState(s api.RunState) string {
	if len(s) == 0 {
		return "<none>"
	}
	return string(s)
}
