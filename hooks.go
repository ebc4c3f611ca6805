package rewind

import (
	"context"

	"github.com/aretw0/rewind/pkg/domain"
)

type hookPicker func(domain.LifecycleHooks) func(context.Context, *domain.ProgramEvent)

var (
	hookStarting        hookPicker = func(h domain.LifecycleHooks) func(context.Context, *domain.ProgramEvent) { return h.OnStarting }
	hookStarted         hookPicker = func(h domain.LifecycleHooks) func(context.Context, *domain.ProgramEvent) { return h.OnStarted }
	hookEnded           hookPicker = func(h domain.LifecycleHooks) func(context.Context, *domain.ProgramEvent) { return h.OnEnded }
	hookAssertionFailed hookPicker = func(h domain.LifecycleHooks) func(context.Context, *domain.ProgramEvent) { return h.OnAssertionFailed }
	hookThreadAdded     hookPicker = func(h domain.LifecycleHooks) func(context.Context, *domain.ProgramEvent) { return h.OnThreadAdded }
	hookSuperstepDone   hookPicker = func(h domain.LifecycleHooks) func(context.Context, *domain.ProgramEvent) { return h.OnSuperstepDone }
	hookEventSelected   hookPicker = func(h domain.LifecycleHooks) func(context.Context, *domain.ProgramEvent) { return h.OnEventSelected }
	hookSyncPoint       hookPicker = func(h domain.LifecycleHooks) func(context.Context, *domain.ProgramEvent) { return h.OnSyncPoint }
	hookRollback        hookPicker = func(h domain.LifecycleHooks) func(context.Context, *domain.ProgramEvent) { return h.OnRollback }
)

// fire calls the picked callback of every registered hook set.
func (d *Debugger) fire(ctx context.Context, pick hookPicker, ev *domain.ProgramEvent) {
	for _, h := range d.hooks {
		if fn := pick(h); fn != nil {
			fn(ctx, ev)
		}
	}
}
