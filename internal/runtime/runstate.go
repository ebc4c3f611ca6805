package runtime

import (
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/aretw0/rewind/pkg/domain"
)

// RunState is the single mutable cell holding the debugger's machine state.
// Reads are lock-free; writes are serialized.
type RunState struct {
	mu sync.Mutex
	v  atomic.Value
}

// NewRunState returns a cell in the initial StateStopped state.
func NewRunState() *RunState {
	rs := &RunState{}
	rs.v.Store(domain.StateStopped)
	return rs
}

// Get returns the current state.
func (rs *RunState) Get() domain.RunState {
	return rs.v.Load().(domain.RunState)
}

// Set unconditionally moves to s.
func (rs *RunState) Set(s domain.RunState) {
	rs.mu.Lock()
	rs.v.Store(s)
	rs.mu.Unlock()
}

// Is reports whether the current state is one of states.
func (rs *RunState) Is(states ...domain.RunState) bool {
	cur := rs.Get()
	for _, s := range states {
		if cur == s {
			return true
		}
	}
	return false
}

// Transition moves to `to` only if the current state is one of `from`.
// It fails with domain.ErrInvalidState otherwise and leaves the state untouched.
func (rs *RunState) Transition(to domain.RunState, from ...domain.RunState) error {
	rs.mu.Lock()
	defer rs.mu.Unlock()

	cur := rs.v.Load().(domain.RunState)
	for _, s := range from {
		if cur == s {
			rs.v.Store(to)
			return nil
		}
	}
	return fmt.Errorf("%w: cannot move from %s to %s", domain.ErrInvalidState, cur, to)
}
