package cli

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/aretw0/rewind"
	"github.com/aretw0/rewind/internal/presentation/tui"
	"github.com/aretw0/rewind/pkg/domain"
)

// ErrUnknownCommand is returned for input the REPL does not understand.
var ErrUnknownCommand = errors.New("unknown command")

const helpText = `commands:
  start [line...]        run to the first sync point, breaking on the given lines
  next | n               select an event and advance to the next sync point
  into | over | out      step a paused thread
  cont | c               continue to the next breakpoint or sync point
  break | b <line> [off] arm or disarm a breakpoint
  mute bp|sync on|off    mute breakpoints or sync points
  wait on|off            wait for external events instead of ending
  event | e <name>       queue an external event
  unevent <name>         remove queued external events
  state | s              print the current state
  history | h            list recorded sync points
  rollback | r <time>    return to a recorded sync point
  stop                   end the session
  quit | q               leave`

// REPL drives one debugger from line commands.
type REPL struct {
	debugger *rewind.Debugger
	config   rewind.RunConfig
	renderer *tui.Renderer
	out      *syncWriter
}

// NewREPL attaches a REPL to d. cfg is used by the start command.
// Notifications of d are rendered to out until the returned REPL is closed.
func NewREPL(d *rewind.Debugger, cfg rewind.RunConfig, renderer *tui.Renderer, out io.Writer) (*REPL, func()) {
	r := &REPL{
		debugger: d,
		config:   cfg,
		renderer: renderer,
		out:      &syncWriter{w: out},
	}
	unsubscribe := d.Subscribe(r)
	return r, unsubscribe
}

// Update renders a debugger notification.
func (r *REPL) Update(n domain.Notification) {
	if n.Type == domain.NotificationState && n.State != nil {
		switch n.State.RunState {
		case domain.StateRunning, domain.StateStopped:
			return
		}
	}
	if s := r.renderer.Notification(n); s != "" {
		fmt.Fprintln(r.out, s)
	}
}

// Run reads commands from in until quit, end of input or ctx is done.
func (r *REPL) Run(ctx context.Context, in io.Reader) error {
	lines := make(chan string)
	go func() {
		defer close(lines)
		scanner := bufio.NewScanner(in)
		for scanner.Scan() {
			select {
			case lines <- scanner.Text():
			case <-ctx.Done():
				return
			}
		}
	}()

	ended := r.debugger.Done()
	for {
		fmt.Fprint(r.out, "> ")
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ended:
			printSystemMessage(r.out, "Session ended.")
			ended = nil
			continue
		case line, ok := <-lines:
			if !ok {
				return nil
			}
			quit, err := r.Exec(ctx, line)
			if err != nil {
				fmt.Fprintln(r.out, err)
			}
			if quit {
				return nil
			}
		}
	}
}

// Exec runs one command line. It reports whether the REPL should quit.
func (r *REPL) Exec(ctx context.Context, line string) (bool, error) {
	fields := strings.Fields(line)
	if len(fields) == 0 {
		return false, nil
	}
	d := r.debugger
	cmd, args := fields[0], fields[1:]

	var res domain.Result
	switch cmd {
	case "help", "?":
		fmt.Fprintln(r.out, helpText)
		return false, nil
	case "quit", "q", "exit":
		return true, nil
	case "start":
		cfg := r.config
		if len(args) > 0 {
			cfg.Breakpoints = make(map[int]bool, len(args))
			for _, a := range args {
				n, err := strconv.Atoi(a)
				if err != nil {
					return false, fmt.Errorf("invalid line %q", a)
				}
				cfg.Breakpoints[n] = true
			}
		}
		res = d.StartSync(ctx, cfg).Result
	case "next", "n":
		res = d.NextSync(ctx)
	case "into":
		res = d.StepInto()
	case "over":
		res = d.StepOver()
	case "out":
		res = d.StepOut()
	case "cont", "c":
		res = d.ContinueRun()
	case "break", "b":
		if len(args) == 0 {
			return false, errors.New("usage: break <line> [off]")
		}
		n, err := strconv.Atoi(args[0])
		if err != nil {
			return false, fmt.Errorf("invalid line %q", args[0])
		}
		res = d.SetBreakpoint(n, len(args) < 2 || args[1] != "off")
	case "mute":
		if len(args) != 2 {
			return false, errors.New("usage: mute bp|sync on|off")
		}
		on, err := parseSwitch(args[1])
		if err != nil {
			return false, err
		}
		switch args[0] {
		case "bp", "breakpoints":
			res = d.ToggleMuteBreakpoints(on)
		case "sync":
			res = d.ToggleMuteSyncPoints(on)
		default:
			return false, fmt.Errorf("usage: mute bp|sync on|off")
		}
	case "wait":
		if len(args) != 1 {
			return false, errors.New("usage: wait on|off")
		}
		on, err := parseSwitch(args[0])
		if err != nil {
			return false, err
		}
		res = d.ToggleWaitForExternalEvents(on)
	case "event", "e":
		if len(args) != 1 {
			return false, errors.New("usage: event <name>")
		}
		res = d.AddExternalEvent(args[0])
	case "unevent":
		if len(args) != 1 {
			return false, errors.New("usage: unevent <name>")
		}
		res = d.RemoveExternalEvent(args[0])
	case "state", "s":
		fmt.Fprintln(r.out, r.renderer.State(d.CurrentState()))
		return false, nil
	case "history", "h":
		r.printHistory()
		return false, nil
	case "rollback", "r":
		if len(args) != 1 {
			return false, errors.New("usage: rollback <time>")
		}
		t, err := strconv.ParseInt(args[0], 10, 64)
		if err != nil {
			return false, fmt.Errorf("invalid time %q", args[0])
		}
		res = d.SetSyncSnapshot(t)
	case "stop":
		res = d.Stop(ctx)
	default:
		return false, fmt.Errorf("%w: %s (try help)", ErrUnknownCommand, cmd)
	}
	return false, res.Err()
}

func (r *REPL) printHistory() {
	snapshots := r.debugger.GetSyncSnapshotsHistory()
	if len(snapshots) == 0 {
		fmt.Fprintln(r.out, "no sync points recorded")
		return
	}
	events, _ := r.debugger.GetEventsHistory(0, len(snapshots))
	chosen := make(map[int64]domain.Event, len(events))
	for _, e := range events {
		chosen[e.Time] = e.Event
	}
	for _, s := range snapshots {
		name := "-"
		if e, ok := chosen[s.Time]; ok {
			name = e.String()
		}
		fmt.Fprintf(r.out, "  t=%-4d %s\n", s.Time, name)
	}
}

func parseSwitch(s string) (bool, error) {
	switch s {
	case "on", "true", "1":
		return true, nil
	case "off", "false", "0":
		return false, nil
	}
	return false, fmt.Errorf("expected on or off, got %q", s)
}
