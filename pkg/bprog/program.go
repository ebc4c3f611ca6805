package bprog

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"maps"
	"sync"
	"sync/atomic"

	"github.com/aretw0/rewind/internal/logging"
	"github.com/aretw0/rewind/pkg/domain"
	"github.com/aretw0/rewind/pkg/ports"
	"github.com/aretw0/rewind/pkg/registry"
	"github.com/aretw0/rewind/pkg/selection"
)

// Program is an in-memory behavioral program built from a Definition.
type Program struct {
	def      Definition
	strategy ports.EventSelectionStrategy
	registry *registry.Registry
	logger   *slog.Logger

	numLines int
	lines    map[int]bool

	hookMu sync.RWMutex
	hook   ports.LineHook

	outMu sync.Mutex
	out   io.Writer

	wait atomic.Bool

	qmu       sync.Mutex
	queue     []domain.Event
	notify    chan struct{}
	done      chan struct{}
	closeOnce sync.Once
}

// Option configures a Program.
type Option func(*Program)

// WithStrategy overrides the event-selection strategy.
func WithStrategy(s ports.EventSelectionStrategy) Option {
	return func(p *Program) {
		p.strategy = s
	}
}

// WithRegistry resolves the definition's named strategy through r.
func WithRegistry(r *registry.Registry) Option {
	return func(p *Program) {
		p.registry = r
	}
}

// WithLogger sets the program logger.
func WithLogger(logger *slog.Logger) Option {
	return func(p *Program) {
		p.logger = logger
	}
}

// New builds a program from a validated definition.
func New(def Definition, opts ...Option) (*Program, error) {
	if err := def.Validate(); err != nil {
		return nil, err
	}

	p := &Program{
		def:    def,
		logger: logging.NewNop(),
		out:    io.Discard,
		lines:  make(map[int]bool),
		notify: make(chan struct{}, 1),
		done:   make(chan struct{}),
	}
	for _, opt := range opts {
		opt(p)
	}

	if p.strategy == nil {
		s, err := p.resolveStrategy()
		if err != nil {
			return nil, err
		}
		p.strategy = s
	}
	p.wait.Store(def.WaitForExternalEvents)

	for _, t := range def.Threads {
		for _, s := range t.Steps {
			p.addLine(s.Line)
			for _, x := range s.Exec {
				p.addLine(x.Line)
			}
		}
	}
	return p, nil
}

func (p *Program) resolveStrategy() (ports.EventSelectionStrategy, error) {
	if p.def.Strategy == "" {
		return selection.NewSimple(), nil
	}
	if p.registry == nil {
		return nil, fmt.Errorf("%w: strategy %q needs a registry", ErrInvalidProgram, p.def.Strategy)
	}
	s, err := p.registry.Strategy(p.def.Strategy)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidProgram, err)
	}
	return s, nil
}

func (p *Program) addLine(line int) {
	p.lines[line] = true
	if line > p.numLines {
		p.numLines = line
	}
}

// Parse decodes YAML and builds the program.
func Parse(data []byte, opts ...Option) (*Program, error) {
	def, err := ParseDefinition(data)
	if err != nil {
		return nil, err
	}
	return New(def, opts...)
}

// LoadFile reads a YAML file and builds the program.
func LoadFile(path string, opts ...Option) (*Program, error) {
	def, err := LoadDefinition(path)
	if err != nil {
		return nil, err
	}
	return New(def, opts...)
}

// Definition returns the source definition.
func (p *Program) Definition() Definition {
	return p.def
}

func (p *Program) Name() string { return p.def.Name }

func (p *Program) NumLines() int { return p.numLines }

func (p *Program) Instrumentable(line int) bool { return p.lines[line] }

func (p *Program) SetLineHook(hook ports.LineHook) {
	p.hookMu.Lock()
	defer p.hookMu.Unlock()
	p.hook = hook
}

func (p *Program) SetOutput(w io.Writer) {
	p.outMu.Lock()
	defer p.outMu.Unlock()
	if w == nil {
		w = io.Discard
	}
	p.out = w
}

func (p *Program) SetWaitForExternalEvents(wait bool) { p.wait.Store(wait) }

func (p *Program) WaitForExternalEvents() bool { return p.wait.Load() }

func (p *Program) Strategy() ports.EventSelectionStrategy { return p.strategy }

// Setup returns the snapshot of the program before any thread ran.
func (p *Program) Setup(ctx context.Context) (ports.Snapshot, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	snap := &Snapshot{globals: maps.Clone(p.def.Globals)}
	if snap.globals == nil {
		snap.globals = map[string]string{}
	}
	for i := range p.def.Threads {
		snap.threads = append(snap.threads, threadState{def: &p.def.Threads[i]})
	}
	return snap, nil
}

// Start runs every thread to its first sync statement.
func (p *Program) Start(ctx context.Context, snapshot ports.Snapshot) (ports.Snapshot, error) {
	s, err := own(snapshot)
	if err != nil {
		return nil, err
	}

	next := s.derive()
	for i, ts := range s.threads {
		if ts.started {
			next.threads = append(next.threads, ts)
			continue
		}
		entered, alive, failed, err := p.enter(ctx, threadState{def: ts.def}, next.globals)
		if err != nil {
			return nil, err
		}
		if alive {
			next.threads = append(next.threads, entered)
		}
		if failed != nil {
			next.failed = failed
			next.threads = append(next.threads, s.threads[i+1:]...)
			break
		}
	}
	return next, nil
}

// TriggerEvent advances every thread that requested or waited for event.
func (p *Program) TriggerEvent(ctx context.Context, snapshot ports.Snapshot, event domain.Event) (ports.Snapshot, error) {
	s, err := own(snapshot)
	if err != nil {
		return nil, err
	}
	p.logger.Debug("Triggering event", "program", p.def.Name, "event", event.Name)

	next := s.derive()
	for i, ts := range s.threads {
		step := ts.step()
		if !ts.started || !(containsName(step.Request, event) || containsName(step.WaitFor, event)) {
			next.threads = append(next.threads, ts)
			continue
		}

		ts.pc++
		if ts.pc == len(ts.def.Steps) {
			if !ts.def.Loop {
				continue
			}
			ts.pc = 0
		}
		entered, alive, failed, err := p.enter(ctx, ts, next.globals)
		if err != nil {
			return nil, err
		}
		if alive {
			next.threads = append(next.threads, entered)
		}
		if failed != nil {
			next.failed = failed
			next.threads = append(next.threads, s.threads[i+1:]...)
			break
		}
	}
	return next, nil
}

// enter runs ts from its current step up to the next sync statement.
// It reports alive=false when the thread ran off its last step.
func (p *Program) enter(ctx context.Context, ts threadState, globals map[string]string) (threadState, bool, *domain.FailedAssertion, error) {
	ts.started = true
	for i, n := 0, len(ts.def.Steps)+1; i < n; i++ {
		step := ts.step()
		for _, x := range step.Exec {
			if err := p.line(ctx, ts.def.Name, x.Line, x.Depth); err != nil {
				return ts, false, nil, err
			}
		}
		if err := p.line(ctx, ts.def.Name, step.Line, 0); err != nil {
			return ts, false, nil, err
		}

		if step.Log != "" {
			p.print(ts.def.Name, step.Log)
		}
		maps.Copy(globals, step.Set)
		if step.Assert != "" {
			return ts, true, &domain.FailedAssertion{Message: step.Assert, Thread: ts.def.Name}, nil
		}
		if step.syncs() {
			return ts, true, nil, nil
		}

		ts.pc++
		if ts.pc == len(ts.def.Steps) {
			if !ts.def.Loop {
				return ts, false, nil, nil
			}
			ts.pc = 0
		}
	}
	return ts, false, nil, nil
}

func (p *Program) line(ctx context.Context, thread string, line, depth int) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	p.hookMu.RLock()
	hook := p.hook
	p.hookMu.RUnlock()
	if hook == nil {
		return nil
	}
	return hook(ctx, domain.Location{Thread: thread, Line: line, Depth: depth})
}

func (p *Program) print(thread, msg string) {
	p.outMu.Lock()
	defer p.outMu.Unlock()
	fmt.Fprintf(p.out, "[%s] %s\n", thread, msg)
}

// EnqueueExternalEvent appends to the blocking external queue.
// Events enqueued after Close are dropped.
func (p *Program) EnqueueExternalEvent(event domain.Event) {
	p.qmu.Lock()
	defer p.qmu.Unlock()
	select {
	case <-p.done:
		return
	default:
	}
	p.queue = append(p.queue, event)
	select {
	case p.notify <- struct{}{}:
	default:
	}
}

// TakeExternalEvent blocks until an event is enqueued, the queue is closed, or ctx is done.
func (p *Program) TakeExternalEvent(ctx context.Context) (*domain.Event, error) {
	for {
		p.qmu.Lock()
		if len(p.queue) > 0 {
			ev := p.queue[0]
			p.queue = p.queue[1:]
			p.qmu.Unlock()
			return &ev, nil
		}
		p.qmu.Unlock()

		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-p.done:
			return nil, nil
		case <-p.notify:
		}
	}
}

// Close closes the external queue and releases any waiting TakeExternalEvent.
func (p *Program) Close() {
	p.closeOnce.Do(func() {
		p.qmu.Lock()
		defer p.qmu.Unlock()
		close(p.done)
		p.queue = nil
	})
}

func containsName(names []string, ev domain.Event) bool {
	for _, n := range names {
		if n == ev.Name {
			return true
		}
	}
	return false
}
