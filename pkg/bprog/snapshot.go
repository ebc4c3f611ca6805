package bprog

import (
	"fmt"
	"maps"

	"github.com/aretw0/rewind/pkg/domain"
	"github.com/aretw0/rewind/pkg/ports"
)

type threadState struct {
	def     *ThreadDef
	pc      int
	started bool
}

func (ts threadState) step() StepDef {
	return ts.def.Steps[ts.pc]
}

func (ts threadState) info() domain.ThreadInfo {
	info := domain.ThreadInfo{
		Name:      ts.def.Name,
		Requested: []domain.Event{},
		Blocked:   []domain.Event{},
		WaitFor:   []domain.Event{},
	}
	if !ts.started {
		return info
	}
	step := ts.step()
	line := step.Line
	info.Line = &line
	info.Requested = toEvents(step.Request)
	info.Blocked = toEvents(step.Block)
	info.WaitFor = toEvents(step.WaitFor)
	return info
}

func toEvents(names []string) []domain.Event {
	out := make([]domain.Event, 0, len(names))
	for _, n := range names {
		out = append(out, domain.NewEvent(n))
	}
	return out
}

// Snapshot is an immutable program state.
// Derived snapshots share thread definitions and, until replaced, the external queue.
type Snapshot struct {
	threads  []threadState
	external []domain.Event
	globals  map[string]string
	failed   *domain.FailedAssertion
}

var _ ports.Snapshot = (*Snapshot)(nil)

// own asserts that snapshot was produced by this package.
func own(snapshot ports.Snapshot) (*Snapshot, error) {
	s, ok := snapshot.(*Snapshot)
	if !ok || s == nil {
		return nil, fmt.Errorf("%w: foreign snapshot %T", ErrInvalidProgram, snapshot)
	}
	if s.failed != nil {
		return nil, fmt.Errorf("cannot run a failed snapshot: %s", s.failed)
	}
	return s, nil
}

// derive starts the successor of s: same queue, cloned globals, no threads yet.
func (s *Snapshot) derive() *Snapshot {
	next := &Snapshot{
		external: s.external,
		globals:  maps.Clone(s.globals),
	}
	if next.globals == nil {
		next.globals = map[string]string{}
	}
	return next
}

func (s *Snapshot) Threads() []domain.ThreadInfo {
	out := make([]domain.ThreadInfo, 0, len(s.threads))
	for _, ts := range s.threads {
		out = append(out, ts.info())
	}
	return out
}

func (s *Snapshot) ExternalEvents() []domain.Event {
	return append([]domain.Event{}, s.external...)
}

func (s *Snapshot) IsStateValid() bool {
	return s.failed == nil
}

func (s *Snapshot) FailedAssertion() *domain.FailedAssertion {
	if s.failed == nil {
		return nil
	}
	f := *s.failed
	return &f
}

func (s *Snapshot) CopyWith(external []domain.Event) ports.Snapshot {
	return &Snapshot{
		threads:  s.threads,
		external: append([]domain.Event{}, external...),
		globals:  s.globals,
		failed:   s.failed,
	}
}

func (s *Snapshot) Globals() map[string]string {
	return maps.Clone(s.globals)
}
