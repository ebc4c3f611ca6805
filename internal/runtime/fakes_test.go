package runtime_test

import (
	"context"

	"github.com/aretw0/rewind/pkg/domain"
	"github.com/aretw0/rewind/pkg/ports"
)

type fakeSnapshot struct {
	name     string
	threads  []domain.ThreadInfo
	external []domain.Event
	globals  map[string]string
	failed   *domain.FailedAssertion
}

func (s *fakeSnapshot) Threads() []domain.ThreadInfo             { return s.threads }
func (s *fakeSnapshot) ExternalEvents() []domain.Event           { return append([]domain.Event{}, s.external...) }
func (s *fakeSnapshot) IsStateValid() bool                       { return s.failed == nil }
func (s *fakeSnapshot) FailedAssertion() *domain.FailedAssertion { return s.failed }
func (s *fakeSnapshot) Globals() map[string]string               { return s.globals }

func (s *fakeSnapshot) CopyWith(external []domain.Event) ports.Snapshot {
	cp := *s
	cp.external = append([]domain.Event{}, external...)
	return &cp
}

// fakeInstrumentation declares lines 1..n instrumentable except the ones in skip.
type fakeInstrumentation struct {
	n    int
	skip map[int]bool
	hook ports.LineHook
}

func (f *fakeInstrumentation) NumLines() int                   { return f.n }
func (f *fakeInstrumentation) Instrumentable(line int) bool    { return line > 0 && line <= f.n && !f.skip[line] }
func (f *fakeInstrumentation) SetLineHook(hook ports.LineHook) { f.hook = hook }

func (f *fakeInstrumentation) run(ctx context.Context, locs ...domain.Location) error {
	for _, loc := range locs {
		if err := f.hook(ctx, loc); err != nil {
			return err
		}
	}
	return nil
}
