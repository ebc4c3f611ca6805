package dsl

import (
	"fmt"

	"github.com/aretw0/rewind/pkg/bprog"
)

// Builder manages the program construction.
type Builder struct {
	def     bprog.Definition
	threads []*ThreadBuilder
	index   map[string]*ThreadBuilder
}

// New creates a new program builder.
func New(name string) *Builder {
	return &Builder{
		def:   bprog.Definition{Name: name},
		index: make(map[string]*ThreadBuilder),
	}
}

// Strategy names the event selection strategy of the program.
func (b *Builder) Strategy(name string) *Builder {
	b.def.Strategy = name
	return b
}

// WaitForExternalEvents makes the program wait when no internal event is selectable.
func (b *Builder) WaitForExternalEvents() *Builder {
	b.def.WaitForExternalEvents = true
	return b
}

// Global sets the initial value of a global variable.
func (b *Builder) Global(key, value string) *Builder {
	if b.def.Globals == nil {
		b.def.Globals = make(map[string]string)
	}
	b.def.Globals[key] = value
	return b
}

// Thread adds a new b-thread to the program.
// If the thread already exists, it returns the existing builder.
func (b *Builder) Thread(name string) *ThreadBuilder {
	if tb, ok := b.index[name]; ok {
		return tb
	}
	tb := &ThreadBuilder{thread: bprog.ThreadDef{Name: name}, builder: b}
	b.threads = append(b.threads, tb)
	b.index[name] = tb
	return tb
}

// Definition compiles and validates the program definition.
// Threads keep the order in which they were first added.
func (b *Builder) Definition() (bprog.Definition, error) {
	def := b.def
	def.Threads = make([]bprog.ThreadDef, 0, len(b.threads))
	for _, tb := range b.threads {
		t := tb.thread
		t.Steps = make([]bprog.StepDef, 0, len(tb.steps))
		for _, sb := range tb.steps {
			t.Steps = append(t.Steps, sb.step)
		}
		def.Threads = append(def.Threads, t)
	}
	if err := def.Validate(); err != nil {
		return bprog.Definition{}, err
	}
	return def, nil
}

// Build compiles the program into a runnable bprog.Program.
func (b *Builder) Build(opts ...bprog.Option) (*bprog.Program, error) {
	def, err := b.Definition()
	if err != nil {
		return nil, err
	}
	prog, err := bprog.New(def, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to build program %q: %w", def.Name, err)
	}
	return prog, nil
}
