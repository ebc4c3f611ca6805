package dsl

import "github.com/aretw0/rewind/pkg/bprog"

// ThreadBuilder provides a fluent API for configuring a b-thread.
type ThreadBuilder struct {
	thread  bprog.ThreadDef
	steps   []*StepBuilder
	builder *Builder
}

// Loop restarts the thread at its first step after the last one.
func (t *ThreadBuilder) Loop() *ThreadBuilder {
	t.thread.Loop = true
	return t
}

// Step appends a step whose sync statement sits on the given line.
func (t *ThreadBuilder) Step(line int) *StepBuilder {
	sb := &StepBuilder{step: bprog.StepDef{Line: line}, thread: t}
	t.steps = append(t.steps, sb)
	return sb
}

// StepBuilder provides a fluent API for configuring a step.
type StepBuilder struct {
	step   bprog.StepDef
	thread *ThreadBuilder
}

// Exec adds plain lines executed at depth 0 before the sync statement.
func (s *StepBuilder) Exec(lines ...int) *StepBuilder {
	return s.ExecAt(0, lines...)
}

// ExecAt adds plain lines executed at the given call depth.
func (s *StepBuilder) ExecAt(depth int, lines ...int) *StepBuilder {
	for _, l := range lines {
		s.step.Exec = append(s.step.Exec, bprog.ExecLine{Line: l, Depth: depth})
	}
	return s
}

// Log prints a message when the step runs.
func (s *StepBuilder) Log(msg string) *StepBuilder {
	s.step.Log = msg
	return s
}

// Set assigns a global variable when the step runs.
func (s *StepBuilder) Set(key, value string) *StepBuilder {
	if s.step.Set == nil {
		s.step.Set = make(map[string]string)
	}
	s.step.Set[key] = value
	return s
}

// Assert fails the program when the expression does not hold.
func (s *StepBuilder) Assert(expr string) *StepBuilder {
	s.step.Assert = expr
	return s
}

// Request adds requested events.
func (s *StepBuilder) Request(events ...string) *StepBuilder {
	s.step.Request = append(s.step.Request, events...)
	return s
}

// WaitFor adds waited-for events.
func (s *StepBuilder) WaitFor(events ...string) *StepBuilder {
	s.step.WaitFor = append(s.step.WaitFor, events...)
	return s
}

// Block adds blocked events.
func (s *StepBuilder) Block(events ...string) *StepBuilder {
	s.step.Block = append(s.step.Block, events...)
	return s
}

// Step appends the next step to the same thread.
func (s *StepBuilder) Step(line int) *StepBuilder {
	return s.thread.Step(line)
}

// Thread switches to another thread of the program.
func (s *StepBuilder) Thread(name string) *ThreadBuilder {
	return s.thread.builder.Thread(name)
}
