package runtime

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/aretw0/rewind/internal/logging"
	"github.com/aretw0/rewind/pkg/domain"
	"github.com/aretw0/rewind/pkg/ports"
)

// commandBuffer bounds the queued step/continue commands.
const commandBuffer = 16

// Engine owns breakpoints, the mute-breakpoints flag and the adopted snapshot.
// It applies commands one at a time and publishes a state notification after every
// state-affecting change.
type Engine struct {
	id      string
	program ports.Instrumentation
	state   *RunState
	helper  *StateHelper
	logger  *slog.Logger
	level   domain.Level
	publish func(domain.Notification)
	config  func() domain.DebuggerConfig

	applyMu sync.Mutex

	mu              sync.Mutex
	breakpoints     []bool
	muteBreakpoints bool
	snapshot        ports.Snapshot
	step            stepMode
	pausedAt        domain.Location

	commands chan Command
	stopped  chan struct{}
	stopOnce sync.Once
}

// EngineOption configures an Engine.
type EngineOption func(*Engine)

// WithEngineLogger sets the engine logger.
func WithEngineLogger(logger *slog.Logger) EngineOption {
	return func(e *Engine) {
		e.logger = logger
	}
}

// WithPublisher sets the sink of engine notifications.
func WithPublisher(publish func(domain.Notification)) EngineOption {
	return func(e *Engine) {
		e.publish = publish
	}
}

// WithConfig sets the provider of the session configuration reported in states.
// The engine fills SkipBreakpoints itself.
func WithConfig(config func() domain.DebuggerConfig) EngineOption {
	return func(e *Engine) {
		e.config = config
	}
}

// WithLevel sets the debugger level.
func WithLevel(level domain.Level) EngineOption {
	return func(e *Engine) {
		e.level = level
	}
}

// NewEngine creates an engine for the instrumented program.
func NewEngine(id string, program ports.Instrumentation, state *RunState, helper *StateHelper, opts ...EngineOption) *Engine {
	e := &Engine{
		id:       id,
		program:  program,
		state:    state,
		helper:   helper,
		logger:   logging.NewNop(),
		publish:  func(domain.Notification) {},
		config:   func() domain.DebuggerConfig { return domain.DebuggerConfig{} },
		commands: make(chan Command, commandBuffer),
		stopped:  make(chan struct{}),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// SetupBreakpoints replaces the breakpoint vector.
// The vector holds one slot per line, index 0 unused; non-instrumentable lines are dropped.
func (e *Engine) SetupBreakpoints(breakpoints map[int]bool) {
	vec := make([]bool, e.program.NumLines()+1)
	for line, on := range breakpoints {
		if !on {
			continue
		}
		if !e.IsBreakpointAllowed(line) {
			e.logger.Debug("Dropping breakpoint on non-instrumentable line", "line", line)
			continue
		}
		vec[line] = true
	}

	e.mu.Lock()
	e.breakpoints = vec
	e.mu.Unlock()
}

// Breakpoints returns a copy of the vector, nil before setup.
func (e *Engine) Breakpoints() []bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.breakpoints == nil {
		return nil
	}
	return append([]bool{}, e.breakpoints...)
}

// IsBreakpointAllowed reports whether line is instrumentable.
func (e *Engine) IsBreakpointAllowed(line int) bool {
	return line > 0 && line <= e.program.NumLines() && e.program.Instrumentable(line)
}

// SetBreakpoint arms or disarms one line.
func (e *Engine) SetBreakpoint(line int, stop bool) error {
	if !e.IsBreakpointAllowed(line) {
		return fmt.Errorf("%w: %d", domain.ErrBreakpointNotAllowed, line)
	}

	e.mu.Lock()
	defer e.mu.Unlock()
	if e.breakpoints == nil {
		return domain.ErrSetupRequired
	}
	e.breakpoints[line] = stop
	return nil
}

// ToggleMuteBreakpoints sets the mute flag. Setting the current value is a no-op.
func (e *Engine) ToggleMuteBreakpoints(mute bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.muteBreakpoints = mute
}

// IsMuteBreakpoints reports the mute flag.
func (e *Engine) IsMuteBreakpoints() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.muteBreakpoints
}

// SetSnapshot adopts snapshot as current.
func (e *Engine) SetSnapshot(snapshot ports.Snapshot) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.snapshot = snapshot
}

// Snapshot returns the adopted snapshot.
func (e *Engine) Snapshot() ports.Snapshot {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.snapshot
}

// GenerateState projects the adopted snapshot with the engine's current fields.
func (e *Engine) GenerateState() *domain.DebuggerState {
	e.mu.Lock()
	snapshot := e.snapshot
	breakpoints := e.breakpoints
	mute := e.muteBreakpoints
	e.mu.Unlock()

	cfg := e.config()
	cfg.SkipBreakpoints = mute
	return e.helper.Generate(snapshot, e.state.Get(), breakpoints, cfg)
}

// OnStateChanged publishes one state notification for the adopted snapshot.
// It is skipped at LevelLight.
func (e *Engine) OnStateChanged() {
	if e.level == domain.LevelLight {
		return
	}
	e.publish(domain.NewStateNotification(e.id, e.GenerateState()))
}

// Apply runs cmd, serialized with every other applied command.
func (e *Engine) Apply(cmd Command) error {
	e.applyMu.Lock()
	defer e.applyMu.Unlock()
	e.logger.Debug("Applying command", "command", cmd.Name())
	return cmd.Apply(e)
}

// AddCommand queues a step or continue command for the paused line.
// Other commands are applied immediately.
func (e *Engine) AddCommand(cmd Command) error {
	if !resumes(cmd) {
		return e.Apply(cmd)
	}
	select {
	case <-e.stopped:
		return fmt.Errorf("%w: engine stopped", domain.ErrCommandRejected)
	default:
	}
	select {
	case e.commands <- cmd:
		return nil
	default:
		return fmt.Errorf("%w: command queue full", domain.ErrCommandRejected)
	}
}

// Stop releases any paused line and rejects further commands.
func (e *Engine) Stop() {
	e.stopOnce.Do(func() { close(e.stopped) })
}

// IsRunning reports whether Stop has not been called.
func (e *Engine) IsRunning() bool {
	select {
	case <-e.stopped:
		return false
	default:
		return true
	}
}

func (e *Engine) setStep(mode stepMode) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.step = mode
}

// OnLine is the per-line instrumentation hook. It runs on the program lane and blocks
// while the line is paused.
func (e *Engine) OnLine(ctx context.Context, loc domain.Location) error {
	if !e.IsRunning() {
		return domain.ErrSessionStopped
	}
	e.helper.SetLocation(loc)
	if !e.shouldPause(loc) {
		return nil
	}
	return e.pause(ctx, loc)
}

func (e *Engine) shouldPause(loc domain.Location) bool {
	if e.level == domain.LevelLight {
		return false
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	switch e.step {
	case stepInto:
		return true
	case stepOver:
		if loc.Depth <= e.pausedAt.Depth {
			return true
		}
	case stepOut:
		if loc.Depth < e.pausedAt.Depth {
			return true
		}
	}
	if e.muteBreakpoints || loc.Line < 0 || loc.Line >= len(e.breakpoints) {
		return false
	}
	return e.breakpoints[loc.Line]
}

func (e *Engine) pause(ctx context.Context, loc domain.Location) error {
	e.mu.Lock()
	e.pausedAt = loc
	e.step = stepNone
	e.mu.Unlock()

	e.state.Set(domain.StateStepDebug)
	e.logger.Debug("Paused on line", "thread", loc.Thread, "line", loc.Line, "depth", loc.Depth)
	e.publish(domain.NewStatusNotification(e.id, domain.StatusBreakpoint))
	e.OnStateChanged()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-e.stopped:
			return domain.ErrSessionStopped
		case cmd := <-e.commands:
			if err := e.Apply(cmd); err != nil {
				e.logger.Warn("Command failed while paused", "command", cmd.Name(), "err", err)
				continue
			}
			if resumes(cmd) {
				e.state.Set(domain.StateRunning)
				e.publish(domain.NewStatusNotification(e.id, e.level.RunStatus()))
				return nil
			}
		}
	}
}
