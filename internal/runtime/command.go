package runtime

import "fmt"

// Command is one user operation applied against the Engine.
type Command interface {
	Apply(e *Engine) error
	Name() string
}

// stepMode is the kind of stepping requested while paused on a line.
type stepMode int

const (
	stepNone stepMode = iota
	stepInto
	stepOver
	stepOut
)

// StepInto resumes and pauses again on the very next line.
type StepInto struct{}

func (StepInto) Apply(e *Engine) error { e.setStep(stepInto); return nil }
func (StepInto) Name() string          { return "step_into" }

// StepOver resumes and pauses on the next line at the same or a shallower depth.
type StepOver struct{}

func (StepOver) Apply(e *Engine) error { e.setStep(stepOver); return nil }
func (StepOver) Name() string          { return "step_over" }

// StepOut resumes and pauses on the next line at a shallower depth.
type StepOut struct{}

func (StepOut) Apply(e *Engine) error { e.setStep(stepOut); return nil }
func (StepOut) Name() string          { return "step_out" }

// Continue resumes until the next breakpoint.
type Continue struct{}

func (Continue) Apply(e *Engine) error { e.setStep(stepNone); return nil }
func (Continue) Name() string          { return "continue" }

// SetBreakpoint arms or disarms the breakpoint on Line.
type SetBreakpoint struct {
	Line int
	Stop bool
}

func (c SetBreakpoint) Apply(e *Engine) error {
	if err := e.SetBreakpoint(c.Line, c.Stop); err != nil {
		return err
	}
	e.OnStateChanged()
	return nil
}

func (c SetBreakpoint) Name() string { return fmt.Sprintf("set_breakpoint(%d,%t)", c.Line, c.Stop) }

// GetState republishes the current state.
type GetState struct{}

func (GetState) Apply(e *Engine) error { e.OnStateChanged(); return nil }
func (GetState) Name() string          { return "get_state" }

// ToggleMuteBreakpoints sets the mute-breakpoints flag.
type ToggleMuteBreakpoints struct {
	Mute bool
}

func (c ToggleMuteBreakpoints) Apply(e *Engine) error {
	e.ToggleMuteBreakpoints(c.Mute)
	return nil
}

func (c ToggleMuteBreakpoints) Name() string {
	return fmt.Sprintf("toggle_mute_breakpoints(%t)", c.Mute)
}

// resumes reports whether cmd ends a pause on a line.
func resumes(cmd Command) bool {
	switch cmd.(type) {
	case StepInto, StepOver, StepOut, Continue:
		return true
	}
	return false
}
