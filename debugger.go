package rewind

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/aretw0/rewind/internal/logging"
	"github.com/aretw0/rewind/internal/runtime"
	"github.com/aretw0/rewind/pkg/bus"
	"github.com/aretw0/rewind/pkg/domain"
	"github.com/aretw0/rewind/pkg/ports"
	"github.com/aretw0/rewind/pkg/registry"
)

// Debugger attaches to one program instance and drives it sync point by sync point.
//
// Every call into the program runs on the debugger's program lane; the run loop runs on
// its command lane. Client methods may be called from any goroutine.
type Debugger struct {
	id         string
	executorID string
	program    ports.Program
	logger     *slog.Logger
	level      domain.Level
	hooks      []domain.LifecycleHooks
	bus        *bus.Bus
	registry   *registry.Registry
	grace      time.Duration

	state   *runtime.RunState
	history *runtime.History
	helper  *runtime.StateHelper
	engine  *runtime.Engine

	programLane *runtime.Lane
	commandLane *runtime.Lane

	skipSyncPoints atomic.Bool
	setupMu        sync.Mutex

	// mu guards the current snapshot, the pending external events and the flags below.
	// Run-state changes that decide where external events go are made under it too.
	mu           sync.Mutex
	snapshot     ports.Snapshot
	pending      []domain.Event
	programSetup bool
	setup        bool
	started      bool

	exitOnce sync.Once
	exited   chan struct{}
}

// New creates a debugger for program and starts its lanes.
// The program is not touched until Setup.
func New(program ports.Program, opts ...Option) *Debugger {
	d := &Debugger{
		program: program,
		logger:  logging.NewNop(),
		grace:   DefaultStopGracePeriod,
		state:   runtime.NewRunState(),
		history: runtime.NewHistory(),
		helper:  runtime.NewStateHelper(),
		exited:  make(chan struct{}),
	}
	for _, opt := range opts {
		opt(d)
	}
	if d.registry == nil {
		d.registry = registry.NewRegistry()
	}
	if d.bus == nil {
		d.bus = bus.New()
	}
	if d.id == "" {
		d.id = d.registry.NewSessionID()
	}
	d.executorID = d.registry.NextExecutorID()
	d.logger = d.logger.With("debugger_id", d.id)

	d.programLane = runtime.NewLane(d.executorID+"-program", d.logger)
	d.commandLane = runtime.NewLane(d.executorID+"-command", d.logger)
	d.engine = runtime.NewEngine(d.id, program, d.state, d.helper,
		runtime.WithEngineLogger(d.logger),
		runtime.WithPublisher(d.bus.Publish),
		runtime.WithConfig(d.config),
		runtime.WithLevel(d.level),
	)

	program.SetLineHook(d.engine.OnLine)
	program.SetOutput(newConsoleWriter(d.id, d.bus.Publish))
	return d
}

// ID returns the debugger ID.
func (d *Debugger) ID() string { return d.id }

// ExecutorID returns the name shared by the debugger's lanes.
func (d *Debugger) ExecutorID() string { return d.executorID }

// Program returns the debugged program.
func (d *Debugger) Program() ports.Program { return d.program }

// Level returns the debugger level.
func (d *Debugger) Level() domain.Level { return d.level }

// State returns the current run state.
func (d *Debugger) State() domain.RunState { return d.state.Get() }

// CurrentState projects the adopted snapshot without publishing it.
func (d *Debugger) CurrentState() *domain.DebuggerState { return d.engine.GenerateState() }

// Done is closed once the session has been torn down.
func (d *Debugger) Done() <-chan struct{} { return d.exited }

// IsSetup reports whether Setup succeeded.
func (d *Debugger) IsSetup() bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.setup
}

// IsStarted reports whether StartSync was accepted and the session has not ended.
func (d *Debugger) IsStarted() bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.started
}

// IsSkipSyncPoints reports the mute-sync-points flag.
func (d *Debugger) IsSkipSyncPoints() bool { return d.skipSyncPoints.Load() }

// Subscribe registers s for every notification of this debugger.
// The returned func unsubscribes it.
func (d *Debugger) Subscribe(s bus.Subscriber) func() {
	return d.bus.Subscribe(s)
}

func (d *Debugger) config() domain.DebuggerConfig {
	return domain.DebuggerConfig{
		SkipSyncPoints:        d.skipSyncPoints.Load(),
		WaitForExternalEvents: d.program.WaitForExternalEvents(),
	}
}

func (d *Debugger) isExited() bool {
	select {
	case <-d.exited:
		return true
	default:
		return false
	}
}

func (d *Debugger) currentSnapshot() ports.Snapshot {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.snapshot
}

// adoptLocked makes snapshot current, folding in external events added while running.
// The caller holds d.mu.
func (d *Debugger) adoptLocked(snapshot ports.Snapshot) {
	if len(d.pending) > 0 {
		snapshot = snapshot.CopyWith(append(snapshot.ExternalEvents(), d.pending...))
		d.pending = nil
	}
	d.snapshot = snapshot
	d.engine.SetSnapshot(snapshot)
}

func (d *Debugger) publishStatus(status domain.Status) {
	d.bus.Publish(domain.NewStatusNotification(d.id, status))
}

func (d *Debugger) console(msg string, level domain.LogLevel) {
	d.bus.Publish(domain.NewConsoleNotification(d.id, msg, level))
}

// Setup initializes the program once and applies cfg.
// Calling it again before StartSync only reapplies cfg.
func (d *Debugger) Setup(ctx context.Context, cfg RunConfig) domain.DebugResult {
	if d.IsStarted() {
		return failDebug(fmt.Errorf("%w: setup after start", domain.ErrInvalidState))
	}
	return d.doSetup(ctx, cfg)
}

func (d *Debugger) doSetup(ctx context.Context, cfg RunConfig) domain.DebugResult {
	d.setupMu.Lock()
	defer d.setupMu.Unlock()

	d.logger.Info("Setup",
		"skip_breakpoints", cfg.SkipBreakpoints,
		"skip_sync_points", cfg.SkipSyncPoints,
		"wait_for_external_events", cfg.WaitForExternalEvents,
	)
	if d.isExited() {
		return failDebug(fmt.Errorf("%w: session ended", domain.ErrCommandRejected))
	}

	d.mu.Lock()
	programSetup := d.programSetup
	d.mu.Unlock()
	if !programSetup {
		if err := d.setupProgram(ctx); err != nil {
			d.exit()
			return failDebug(err)
		}
	}

	d.ToggleMuteSyncPoints(cfg.SkipSyncPoints)
	d.engine.SetupBreakpoints(cfg.Breakpoints)
	d.engine.ToggleMuteBreakpoints(cfg.SkipBreakpoints || d.level == domain.LevelLight)

	d.mu.Lock()
	d.engine.SetSnapshot(d.snapshot)
	d.setup = true
	d.mu.Unlock()

	d.state.Set(domain.StateStopped)
	d.program.SetWaitForExternalEvents(cfg.WaitForExternalEvents)
	return domain.DebugResult{Result: domain.Ok(), Breakpoints: d.engine.Breakpoints()}
}

func (d *Debugger) setupProgram(ctx context.Context) error {
	d.fire(ctx, hookStarting, d.programEvent())

	snap, err := runtime.Do(ctx, d.programLane, d.program.Setup)
	if err != nil {
		d.logger.Error("Program setup failed", "err", err)
		d.console(err.Error(), domain.LogError)
		return fmt.Errorf("%w: %v", domain.ErrSetupFailed, err)
	}
	if snap == nil {
		return fmt.Errorf("%w: no initial snapshot", domain.ErrSetupFailed)
	}
	for _, t := range snap.Threads() {
		ev := d.programEvent()
		ev.Thread = t.Name
		d.fire(ctx, hookThreadAdded, ev)
	}

	d.mu.Lock()
	d.programSetup = true
	d.snapshot = snap
	d.mu.Unlock()

	if fa := snap.FailedAssertion(); fa != nil {
		return fmt.Errorf("%w: %s", domain.ErrSetupFailed, fa)
	}
	return nil
}

// StartSync publishes the run status, sets the program up and runs it to its first
// sync point in the background.
func (d *Debugger) StartSync(ctx context.Context, cfg RunConfig) domain.DebugResult {
	d.mu.Lock()
	if d.started {
		d.mu.Unlock()
		return failDebug(fmt.Errorf("%w: already started", domain.ErrInvalidState))
	}
	d.started = true
	d.mu.Unlock()

	d.publishStatus(d.level.RunStatus())
	res := d.doSetup(ctx, cfg)
	if res.Success {
		if err := d.commandLane.Submit(d.runStartSync); err != nil {
			res.Result = domain.Fail(err)
		}
	}
	if !res.Success {
		d.mu.Lock()
		d.started = false
		d.mu.Unlock()
	}
	return res
}

// NextSync asks the loop to select and apply the next event.
func (d *Debugger) NextSync(ctx context.Context) domain.Result {
	if !d.IsSetup() {
		return domain.Fail(domain.ErrSetupRequired)
	}

	d.mu.Lock()
	snap := d.snapshot
	err := d.state.Transition(domain.StateRunning, domain.StateSync)
	d.mu.Unlock()
	if err != nil {
		return domain.Fail(err)
	}

	if !snap.IsStateValid() {
		d.failAssertion(ctx, snap)
		return domain.Fail(domain.ErrAssertionFailed)
	}
	if err := d.commandLane.Submit(d.runNextSync); err != nil {
		return domain.Fail(err)
	}
	return domain.Ok()
}

// StepInto resumes a paused line and pauses on the next one.
func (d *Debugger) StepInto() domain.Result { return d.queue(runtime.StepInto{}) }

// StepOver resumes a paused line and pauses on the next line at the same depth or above.
func (d *Debugger) StepOver() domain.Result { return d.queue(runtime.StepOver{}) }

// StepOut resumes a paused line and pauses once the current depth is left.
func (d *Debugger) StepOut() domain.Result { return d.queue(runtime.StepOut{}) }

// ContinueRun resumes a paused line until the next breakpoint.
func (d *Debugger) ContinueRun() domain.Result { return d.queue(runtime.Continue{}) }

func (d *Debugger) queue(cmd runtime.Command) domain.Result {
	if !d.IsSetup() {
		return domain.Fail(domain.ErrSetupRequired)
	}
	if rs := d.state.Get(); rs != domain.StateStepDebug {
		return domain.Fail(fmt.Errorf("%w: %s needs %s, debugger is %s", domain.ErrInvalidState, cmd.Name(), domain.StateStepDebug, rs))
	}
	if err := d.engine.AddCommand(cmd); err != nil {
		d.logger.Error("Failed adding command", "command", cmd.Name(), "err", err)
		return domain.Fail(err)
	}
	return domain.Ok()
}

func (d *Debugger) apply(cmd runtime.Command) domain.Result {
	if !d.IsSetup() {
		return domain.Fail(domain.ErrSetupRequired)
	}
	return domain.Fail(d.engine.Apply(cmd))
}

// SetBreakpoint arms or disarms the breakpoint on line.
func (d *Debugger) SetBreakpoint(line int, stop bool) domain.Result {
	return d.apply(runtime.SetBreakpoint{Line: line, Stop: stop})
}

// GetState republishes the current state.
func (d *Debugger) GetState() domain.Result {
	return d.apply(runtime.GetState{})
}

// ToggleMuteBreakpoints sets whether breakpoints are ignored.
func (d *Debugger) ToggleMuteBreakpoints(mute bool) domain.Result {
	return d.apply(runtime.ToggleMuteBreakpoints{Mute: mute})
}

// ToggleMuteSyncPoints sets whether the loop runs through sync points without pausing.
func (d *Debugger) ToggleMuteSyncPoints(mute bool) domain.Result {
	d.logger.Info("Toggle mute sync points", "mute", mute)
	d.skipSyncPoints.Store(mute)
	return domain.Ok()
}

// ToggleWaitForExternalEvents sets whether the program waits for external input when no
// internal event is selectable.
func (d *Debugger) ToggleWaitForExternalEvents(wait bool) domain.Result {
	d.program.SetWaitForExternalEvents(wait)
	return domain.Ok()
}

// AddExternalEvent injects an external event.
//
// While the loop waits for external input the event goes to the program's blocking queue.
// While the loop runs it is held and appended to the next adopted snapshot.
// Otherwise it is appended to the current snapshot's queue and the new state is published.
func (d *Debugger) AddExternalEvent(name string) domain.Result {
	name, err := domain.SanitizeEventName(name)
	if err != nil {
		return domain.Fail(err)
	}
	if d.isExited() {
		return domain.Fail(fmt.Errorf("%w: session ended", domain.ErrCommandRejected))
	}
	ev := domain.NewEvent(name)

	d.mu.Lock()
	rs := d.state.Get()
	d.logger.Info("Adding external event", "event", name, "state", rs)
	switch {
	case d.snapshot == nil:
		d.mu.Unlock()
		return domain.Fail(domain.ErrSetupRequired)
	case rs == domain.StateWaitingForEvent:
		d.program.EnqueueExternalEvent(ev)
		d.mu.Unlock()
		return domain.Ok()
	case rs == domain.StateRunning || rs == domain.StateStepDebug:
		d.pending = append(d.pending, ev)
		d.mu.Unlock()
		d.console(fmt.Sprintf("external event %s queued for the next sync point", ev), domain.LogInfo)
		return domain.Ok()
	}
	d.snapshot = d.snapshot.CopyWith(append(d.snapshot.ExternalEvents(), ev))
	d.engine.SetSnapshot(d.snapshot)
	d.mu.Unlock()

	d.engine.OnStateChanged()
	return domain.Ok()
}

// RemoveExternalEvent removes every queued external event with the given name.
func (d *Debugger) RemoveExternalEvent(name string) domain.Result {
	name, err := domain.SanitizeEventName(name)
	if err != nil {
		return domain.Fail(err)
	}
	ev := domain.NewEvent(name)

	d.mu.Lock()
	if d.snapshot == nil {
		d.mu.Unlock()
		return domain.Fail(domain.ErrSetupRequired)
	}
	d.pending = runtime.RemoveByName(d.pending, ev)
	if !d.state.Is(domain.StateRunning, domain.StateStepDebug) {
		d.snapshot = d.snapshot.CopyWith(runtime.RemoveByName(d.snapshot.ExternalEvents(), ev))
		d.engine.SetSnapshot(d.snapshot)
	}
	d.mu.Unlock()

	d.engine.OnStateChanged()
	return domain.Ok()
}

// GetSyncSnapshotsHistory returns one state per recorded sync point, ordered by time.
func (d *Debugger) GetSyncSnapshotsHistory() []domain.TimedState {
	cfg := d.config()
	cfg.SkipBreakpoints = d.engine.IsMuteBreakpoints()
	bps := d.engine.Breakpoints()
	rs := d.state.Get()

	entries := d.history.Entries()
	out := make([]domain.TimedState, 0, len(entries))
	for _, e := range entries {
		out = append(out, domain.TimedState{Time: e.Time, State: *runtime.Project(e.Snapshot, rs, nil, bps, cfg)})
	}
	return out
}

// SetSyncSnapshot rolls back to the sync point recorded at t.
// The entry at t and every later one are discarded.
func (d *Debugger) SetSyncSnapshot(t int64) domain.Result {
	d.mu.Lock()
	rs := d.state.Get()
	d.logger.Info("Set sync snapshot", "time", t, "state", rs)
	if rs != domain.StateSync {
		d.mu.Unlock()
		return domain.Fail(fmt.Errorf("%w: rollback needs %s, debugger is %s", domain.ErrInvalidState, domain.StateSync, rs))
	}
	snap, err := d.history.Rollback(t)
	if err != nil {
		d.mu.Unlock()
		return domain.Fail(err)
	}
	d.helper.CleanFields()
	d.pending = nil
	d.snapshot = snap
	d.engine.SetSnapshot(snap)
	d.mu.Unlock()

	d.fire(context.Background(), hookRollback, d.programEvent())
	d.engine.OnStateChanged()
	return domain.Ok()
}

// GetEventsHistory returns the events that left the sync points at positions from..to.
func (d *Debugger) GetEventsHistory(from, to int) ([]domain.TimedEvent, error) {
	if from < 0 || to < 0 || to < from {
		return nil, fmt.Errorf("%w: [%d, %d]", domain.ErrInvalidRange, from, to)
	}
	return d.history.Events(from, to), nil
}

// Stop tears the session down. Stopping an ended session is a no-op.
func (d *Debugger) Stop(ctx context.Context) domain.Result {
	d.logger.Info("Stop requested")
	d.exit()
	return domain.Ok()
}

func failDebug(err error) domain.DebugResult {
	return domain.DebugResult{Result: domain.Fail(err), Breakpoints: []bool{}}
}
