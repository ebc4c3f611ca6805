package runtime

import (
	"maps"
	"sync"

	"github.com/aretw0/rewind/pkg/domain"
	"github.com/aretw0/rewind/pkg/ports"
)

// StateHelper tracks the incremental fields of the running superstep (chosen event,
// current thread and line) and projects snapshots into DebuggerState values.
type StateHelper struct {
	mu      sync.Mutex
	current *domain.Event
	thread  string
	line    *int
}

// NewStateHelper creates an empty helper.
func NewStateHelper() *StateHelper {
	return &StateHelper{}
}

// UpdateCurrentEvent records the event being triggered.
func (h *StateHelper) UpdateCurrentEvent(ev domain.Event) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.current = &ev
}

// SetLocation records the thread and line being executed.
func (h *StateHelper) SetLocation(loc domain.Location) {
	h.mu.Lock()
	defer h.mu.Unlock()
	line := loc.Line
	h.thread = loc.Thread
	h.line = &line
}

// CleanFields resets every incremental field.
func (h *StateHelper) CleanFields() {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.current = nil
	h.thread = ""
	h.line = nil
}

// Generate projects snapshot together with the incremental fields.
func (h *StateHelper) Generate(snapshot ports.Snapshot, rs domain.RunState, breakpoints []bool, cfg domain.DebuggerConfig) *domain.DebuggerState {
	h.mu.Lock()
	current, thread, line := h.current, h.thread, h.line
	h.mu.Unlock()

	state := Project(snapshot, rs, current, breakpoints, cfg)
	state.CurrentThread = thread
	if line != nil {
		l := *line
		state.CurrentLine = &l
	}
	return state
}

// Project builds a DebuggerState from snapshot alone.
// Every slice and map is copied so the result can be handed to other goroutines.
func Project(snapshot ports.Snapshot, rs domain.RunState, chosen *domain.Event, breakpoints []bool, cfg domain.DebuggerConfig) *domain.DebuggerState {
	state := &domain.DebuggerState{
		Threads:   []domain.ThreadInfo{},
		Events:    domain.NewEventsStatus(nil, nil),
		GlobalEnv: map[string]string{},
		Config:    cfg,
		RunState:  rs,
	}
	if breakpoints != nil {
		state.Breakpoints = append([]bool{}, breakpoints...)
	}
	if chosen != nil {
		ev := *chosen
		state.ChosenEvent = &ev
	}
	if snapshot == nil {
		return state
	}

	for _, t := range snapshot.Threads() {
		state.Threads = append(state.Threads, copyThread(t))
	}
	state.Events = domain.NewEventsStatus(state.Threads, snapshot.ExternalEvents())
	maps.Copy(state.GlobalEnv, snapshot.Globals())
	return state
}

func copyThread(t domain.ThreadInfo) domain.ThreadInfo {
	out := domain.ThreadInfo{
		Name:      t.Name,
		Requested: append([]domain.Event{}, t.Requested...),
		Blocked:   append([]domain.Event{}, t.Blocked...),
		WaitFor:   append([]domain.Event{}, t.WaitFor...),
	}
	if t.Line != nil {
		l := *t.Line
		out.Line = &l
	}
	return out
}
