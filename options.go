package rewind

import (
	"log/slog"
	"time"

	"github.com/aretw0/rewind/pkg/bus"
	"github.com/aretw0/rewind/pkg/domain"
	"github.com/aretw0/rewind/pkg/registry"
)

// DefaultStopGracePeriod bounds how long Stop waits for the program lane before forcing it.
const DefaultStopGracePeriod = time.Second

// Option defines a functional option for configuring the Debugger.
type Option func(*Debugger)

// WithLogger sets a custom structured logger for the debugger.
func WithLogger(logger *slog.Logger) Option {
	return func(d *Debugger) {
		d.logger = logger
	}
}

// WithRegistry shares identifier generators with other debuggers.
func WithRegistry(r *registry.Registry) Option {
	return func(d *Debugger) {
		d.registry = r
	}
}

// WithLevel sets the debugger level (default domain.LevelNormal).
func WithLevel(level domain.Level) Option {
	return func(d *Debugger) {
		d.level = level
	}
}

// WithLifecycleHooks registers program listener callbacks.
// It may be given more than once; hooks run in registration order.
func WithLifecycleHooks(hooks domain.LifecycleHooks) Option {
	return func(d *Debugger) {
		d.hooks = append(d.hooks, hooks)
	}
}

// WithStopGracePeriod sets how long teardown waits for the program lane.
func WithStopGracePeriod(grace time.Duration) Option {
	return func(d *Debugger) {
		d.grace = grace
	}
}

// WithBus publishes notifications on an existing bus.
func WithBus(b *bus.Bus) Option {
	return func(d *Debugger) {
		d.bus = b
	}
}

// WithID sets the debugger ID instead of generating one.
func WithID(id string) Option {
	return func(d *Debugger) {
		d.id = id
	}
}

// RunConfig is the configuration passed to Setup and StartSync.
type RunConfig struct {
	// Breakpoints maps source lines to armed flags.
	Breakpoints           map[int]bool
	SkipBreakpoints       bool
	SkipSyncPoints        bool
	WaitForExternalEvents bool
}
