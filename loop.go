package rewind

import (
	"context"
	"errors"
	"fmt"

	"github.com/aretw0/rewind/internal/runtime"
	"github.com/aretw0/rewind/pkg/domain"
	"github.com/aretw0/rewind/pkg/ports"
)

// isShutdown reports whether err only means the session is going away.
func isShutdown(err error) bool {
	return errors.Is(err, context.Canceled) ||
		errors.Is(err, context.DeadlineExceeded) ||
		errors.Is(err, runtime.ErrLaneClosed) ||
		errors.Is(err, domain.ErrSessionStopped)
}

func (d *Debugger) programEvent() *domain.ProgramEvent {
	return &domain.ProgramEvent{DebuggerID: d.id, Program: d.program.Name()}
}

// runStartSync runs every thread to its first sync point. It runs on the command lane.
func (d *Debugger) runStartSync(ctx context.Context) {
	defer func() {
		if r := recover(); r != nil {
			d.startFailed(fmt.Errorf("%w: %v", runtime.ErrTaskPanicked, r))
		}
	}()
	d.history.Clear()
	d.helper.CleanFields()

	d.mu.Lock()
	d.state.Set(domain.StateRunning)
	setup := d.snapshot
	d.mu.Unlock()

	d.fire(ctx, hookStarted, d.programEvent())
	snap, err := runtime.Do(ctx, d.programLane, func(ctx context.Context) (ports.Snapshot, error) {
		return d.program.Start(ctx, setup)
	})
	if err != nil {
		if isShutdown(err) || ctx.Err() != nil {
			d.exit()
			return
		}
		d.startFailed(err)
		return
	}
	if !snap.IsStateValid() {
		d.failAssertion(ctx, snap)
		return
	}

	d.mu.Lock()
	d.state.Set(domain.StateSync)
	d.adoptLocked(snap)
	d.mu.Unlock()
	d.logger.Info("Reached first sync point")

	d.fire(ctx, hookSyncPoint, d.programEvent())
	if d.skipSyncPoints.Load() {
		d.continueMuted(ctx)
		return
	}
	d.engine.OnStateChanged()
	d.publishStatus(domain.StatusSyncState)
}

// startFailed reports a failed start and leaves the session stopped so StartSync can
// be retried.
func (d *Debugger) startFailed(err error) {
	d.logger.Error("Start failed", "err", err)
	d.mu.Lock()
	d.state.Set(domain.StateStopped)
	d.started = false
	d.mu.Unlock()
	d.console(err.Error(), domain.LogError)
	d.publishStatus(domain.StatusStop)
}

// continueMuted runs the loop on behalf of a muted sync point.
func (d *Debugger) continueMuted(ctx context.Context) {
	d.mu.Lock()
	err := d.state.Transition(domain.StateRunning, domain.StateSync)
	d.mu.Unlock()
	if err != nil {
		d.logger.Warn("Muted sync point left by another command", "err", err)
		return
	}
	d.runNextSync(ctx)
}

// runNextSync advances sync point by sync point while sync points are muted.
// It runs on the command lane.
func (d *Debugger) runNextSync(ctx context.Context) {
	for d.nextSyncOnce(ctx) {
	}
}

// nextSyncOnce selects and applies one event. It reports whether the loop should go on.
func (d *Debugger) nextSyncOnce(ctx context.Context) (more bool) {
	defer func() {
		if r := recover(); r != nil {
			more = d.onLoopError(ctx, fmt.Errorf("%w: %v", runtime.ErrTaskPanicked, r))
		}
	}()
	if d.isExited() {
		return false
	}
	strategy := d.program.Strategy()

	var (
		snap       ports.Snapshot
		candidates []domain.Event
	)
	for {
		d.mu.Lock()
		if len(d.pending) > 0 {
			d.adoptLocked(d.snapshot)
		}
		snap = d.snapshot
		d.mu.Unlock()

		candidates = strategy.SelectableEvents(snap)
		if len(candidates) > 0 {
			break
		}
		if !d.program.WaitForExternalEvents() {
			d.logger.Info("No selectable events, program ended")
			d.engine.OnStateChanged()
			d.fire(ctx, hookEnded, d.programEvent())
			d.exit()
			return false
		}
		if !d.awaitExternalEvent(ctx) {
			return false
		}
	}

	d.state.Set(domain.StateRunning)
	d.publishStatus(d.level.RunStatus())
	d.logger.Debug("Selecting event", "candidates", len(candidates), "external", len(snap.ExternalEvents()))

	res, err := strategy.Select(ctx, snap, candidates)
	if err != nil {
		return d.onLoopError(ctx, err)
	}
	if res == nil {
		d.logger.Info("Nothing selected, back to sync point")
		d.settle()
		return false
	}
	return d.applyChosen(ctx, snap, res)
}

// awaitExternalEvent blocks until an external event arrives and appends it to the
// current snapshot. It returns false when the session ended meanwhile.
func (d *Debugger) awaitExternalEvent(ctx context.Context) bool {
	d.mu.Lock()
	if len(d.pending) > 0 {
		d.mu.Unlock()
		return true
	}
	d.state.Set(domain.StateWaitingForEvent)
	d.mu.Unlock()

	d.engine.OnStateChanged()
	d.publishStatus(domain.StatusWaiting)
	d.fire(ctx, hookSuperstepDone, d.programEvent())
	d.logger.Info("Waiting for external event")

	ev, err := runtime.Do(ctx, d.programLane, d.program.TakeExternalEvent)
	if err != nil {
		if !isShutdown(err) {
			d.logger.Error("Waiting for external event failed", "err", err)
		}
		d.exit()
		return false
	}
	if ev == nil {
		d.logger.Info("External queue closed, program ended")
		d.fire(ctx, hookEnded, d.programEvent())
		d.exit()
		return false
	}

	d.mu.Lock()
	d.state.Set(domain.StateRunning)
	d.snapshot = d.snapshot.CopyWith(append(d.snapshot.ExternalEvents(), *ev))
	d.engine.SetSnapshot(d.snapshot)
	d.mu.Unlock()
	return true
}

func (d *Debugger) applyChosen(ctx context.Context, snap ports.Snapshot, res *ports.SelectionResult) bool {
	chosen := res.Event
	last := snap
	if len(res.IndicesToRemove) > 0 {
		last = snap.CopyWith(runtime.RemoveIndices(snap.ExternalEvents(), res.IndicesToRemove))
	}

	d.logger.Info("Triggering event", "event", chosen.String())
	d.helper.UpdateCurrentEvent(chosen)
	selected := d.programEvent()
	selected.Event = &chosen
	d.fire(ctx, hookEventSelected, selected)

	next, err := runtime.Do(ctx, d.programLane, func(ctx context.Context) (ports.Snapshot, error) {
		return d.program.TriggerEvent(ctx, last, chosen)
	})
	if err != nil {
		return d.onLoopError(ctx, err)
	}
	if !next.IsStateValid() {
		d.failAssertion(ctx, next)
		return false
	}

	d.mu.Lock()
	d.state.Set(domain.StateSync)
	t := d.history.Record(last, &chosen)
	d.adoptLocked(next)
	d.mu.Unlock()
	d.logger.Debug("New sync point", "time", t)

	d.fire(ctx, hookSyncPoint, d.programEvent())
	d.fire(ctx, hookSuperstepDone, d.programEvent())

	if d.skipSyncPoints.Load() {
		d.mu.Lock()
		err := d.state.Transition(domain.StateRunning, domain.StateSync)
		d.mu.Unlock()
		return err == nil
	}
	d.publishStatus(domain.StatusSyncState)
	d.engine.OnStateChanged()
	return false
}

// settle returns the loop to the current sync point without a transition.
func (d *Debugger) settle() {
	d.mu.Lock()
	d.state.Set(domain.StateSync)
	d.adoptLocked(d.snapshot)
	d.mu.Unlock()
	d.publishStatus(domain.StatusSyncState)
	d.engine.OnStateChanged()
}

func (d *Debugger) onLoopError(ctx context.Context, err error) bool {
	if isShutdown(err) || ctx.Err() != nil {
		d.logger.Info("Loop interrupted", "err", err)
		d.exit()
		return false
	}
	d.logger.Error("Next sync failed", "err", err)
	d.console(err.Error(), domain.LogError)
	d.settle()
	return false
}

// failAssertion adopts the failing snapshot and ends the session.
func (d *Debugger) failAssertion(ctx context.Context, snap ports.Snapshot) {
	fa := snap.FailedAssertion()
	msg := "invalid state"
	if fa != nil {
		msg = fa.String()
	}
	d.logger.Error("Assertion failed", "assertion", msg)

	d.mu.Lock()
	d.snapshot = snap
	d.engine.SetSnapshot(snap)
	d.state.Set(domain.StateStopped)
	d.mu.Unlock()

	ev := d.programEvent()
	ev.Assertion = fa
	d.fire(ctx, hookAssertionFailed, ev)
	d.console(msg, domain.LogError)
	d.engine.OnStateChanged()
	d.exit()
}

// exit tears the session down once: it releases paused lines, closes the program queue
// and stops both lanes.
func (d *Debugger) exit() {
	d.exitOnce.Do(func() {
		d.logger.Info("Exiting")
		d.engine.Stop()
		d.program.Close()
		d.programLane.Shutdown()
		d.commandLane.Shutdown()

		if !d.programLane.AwaitTermination(d.grace) {
			d.forceStop()
		}

		d.mu.Lock()
		d.state.Set(domain.StateStopped)
		d.started = false
		d.mu.Unlock()

		d.publishStatus(domain.StatusStop)
		close(d.exited)
	})
}

// forceStop arms every line so that a program still running on its lane reaches a hook
// and observes the stopped engine.
func (d *Debugger) forceStop() {
	d.logger.Warn("Program lane still running, forcing stop")
	d.skipSyncPoints.Store(false)
	d.engine.ToggleMuteBreakpoints(false)
	for line := 1; line <= d.program.NumLines(); line++ {
		if d.engine.IsBreakpointAllowed(line) {
			_ = d.engine.SetBreakpoint(line, true)
		}
	}
}
