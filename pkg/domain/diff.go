package domain

import (
	"reflect"
)

// StateDiff represents the changes between two debugger states.
// It is designed to be serialized to JSON for partial updates on the client.
type StateDiff struct {
	// DebuggerID is always present to identify the target.
	DebuggerID string `json:"debugger_id"`

	RunState      *RunState `json:"run_state,omitempty"`
	CurrentThread *string   `json:"current_thread,omitempty"`
	CurrentLine   *int      `json:"current_line,omitempty"`
	ChosenEvent   *Event    `json:"chosen_event,omitempty"`

	// Threads and Events are sent whole when anything inside them changed.
	Threads *[]ThreadInfo `json:"threads,omitempty"`
	Events  *EventsStatus `json:"events,omitempty"`

	Breakpoints []bool `json:"breakpoints,omitempty"`

	// GlobalEnv contains only changed, added or deleted keys.
	// For deletions, the key is present with a nil value.
	GlobalEnv map[string]*string `json:"global_env,omitempty"`
}

// Diff calculates the difference between oldState and newState.
// If oldState is nil, it returns a diff representing the entire newState (initial load).
// Returns nil when nothing changed.
func Diff(debuggerID string, oldState, newState *DebuggerState) *StateDiff {
	if newState == nil {
		return nil
	}

	diff := &StateDiff{DebuggerID: debuggerID}

	if oldState == nil || oldState.RunState != newState.RunState {
		diff.RunState = &newState.RunState
	}
	if oldState == nil || oldState.CurrentThread != newState.CurrentThread {
		diff.CurrentThread = &newState.CurrentThread
	}
	if !equalIntPtr(lineOf(oldState), newState.CurrentLine) {
		diff.CurrentLine = newState.CurrentLine
	}
	if newState.ChosenEvent != nil && (oldState == nil || !reflect.DeepEqual(oldState.ChosenEvent, newState.ChosenEvent)) {
		diff.ChosenEvent = newState.ChosenEvent
	}
	if oldState == nil || !reflect.DeepEqual(oldState.Threads, newState.Threads) {
		diff.Threads = &newState.Threads
	}
	if oldState == nil || !reflect.DeepEqual(oldState.Events, newState.Events) {
		diff.Events = &newState.Events
	}
	if oldState == nil || !reflect.DeepEqual(oldState.Breakpoints, newState.Breakpoints) {
		diff.Breakpoints = newState.Breakpoints
	}
	diff.GlobalEnv = diffEnv(oldState, newState)

	if diff.IsEmpty() {
		return nil
	}
	return diff
}

func lineOf(s *DebuggerState) *int {
	if s == nil {
		return nil
	}
	return s.CurrentLine
}

func equalIntPtr(a, b *int) bool {
	if a == nil || b == nil {
		return a == b
	}
	return *a == *b
}

func diffEnv(old *DebuggerState, new *DebuggerState) map[string]*string {
	delta := make(map[string]*string)

	if old == nil {
		for k, v := range new.GlobalEnv {
			v := v
			delta[k] = &v
		}
	} else {
		for k, newVal := range new.GlobalEnv {
			if oldVal, exists := old.GlobalEnv[k]; !exists || oldVal != newVal {
				newVal := newVal
				delta[k] = &newVal
			}
		}
		for k := range old.GlobalEnv {
			if _, exists := new.GlobalEnv[k]; !exists {
				delta[k] = nil
			}
		}
	}

	// Return nil if delta is empty so omitempty can remove the key
	if len(delta) == 0 {
		return nil
	}
	return delta
}

// IsEmpty checks if the diff contains any actionable changes.
func (d *StateDiff) IsEmpty() bool {
	return d.RunState == nil &&
		d.CurrentThread == nil &&
		d.CurrentLine == nil &&
		d.ChosenEvent == nil &&
		d.Threads == nil &&
		d.Events == nil &&
		d.Breakpoints == nil &&
		len(d.GlobalEnv) == 0
}
