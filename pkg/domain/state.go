package domain

// RunState is the debugger's own execution state.
type RunState string

const (
	StateStopped          RunState = "stopped"                    // Initial and terminal
	StateSync             RunState = "sync_state"                 // Paused at a sync point
	StateRunning          RunState = "running"                    // Resolving the next event
	StateWaitingForEvent  RunState = "waiting_for_external_event" // Blocked on external input
	StateStepDebug        RunState = "step_debug"                 // Paused mid-line inside a thread
)

// Status is the coarse program status reported to clients.
type Status string

const (
	StatusDebug      Status = "debug"
	StatusRun        Status = "run"
	StatusSyncState  Status = "sync_state"
	StatusBreakpoint Status = "breakpoint"
	StatusWaiting    Status = "waiting"
	StatusStop       Status = "stop"
)

// Level selects how much the debugger reports.
type Level int

const (
	// LevelNormal publishes a full DebuggerState after every change and honors breakpoints.
	LevelNormal Level = iota
	// LevelLight runs the program without breakpoints or state projections.
	LevelLight
)

// RunStatus returns the status reported when a run starts at this level.
func (l Level) RunStatus() Status {
	if l == LevelLight {
		return StatusRun
	}
	return StatusDebug
}

// DebuggerConfig is the user-controlled configuration of a session.
type DebuggerConfig struct {
	SkipBreakpoints       bool `json:"skip_breakpoints"`
	SkipSyncPoints        bool `json:"skip_sync_points"`
	WaitForExternalEvents bool `json:"wait_for_external_events"`
}

// DebuggerState is the read-only projection of "what changed".
// One instance is produced per notification.
type DebuggerState struct {
	Threads     []ThreadInfo `json:"threads"`
	Events      EventsStatus `json:"events"`
	ChosenEvent *Event       `json:"chosen_event,omitempty"`

	CurrentThread string `json:"current_thread,omitempty"`
	CurrentLine   *int   `json:"current_line,omitempty"`

	// Breakpoints holds one slot per source line; nil before setup completes.
	Breakpoints []bool            `json:"breakpoints"`
	GlobalEnv   map[string]string `json:"global_env"`
	Config      DebuggerConfig    `json:"config"`
	RunState    RunState          `json:"run_state"`
}

// TimedState is one entry of the sync snapshots history.
type TimedState struct {
	Time  int64         `json:"time"`
	State DebuggerState `json:"state"`
}

// TimedEvent is one entry of the events history.
type TimedEvent struct {
	Time  int64 `json:"time"`
	Event Event `json:"event"`
}
