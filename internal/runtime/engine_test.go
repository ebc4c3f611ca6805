package runtime_test

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/aretw0/rewind/internal/runtime"
	"github.com/aretw0/rewind/pkg/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recorder struct {
	mu    sync.Mutex
	notes []domain.Notification
}

func (r *recorder) publish(n domain.Notification) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.notes = append(r.notes, n)
}

func (r *recorder) states() []*domain.DebuggerState {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*domain.DebuggerState
	for _, n := range r.notes {
		if n.Type == domain.NotificationState {
			out = append(out, n.State)
		}
	}
	return out
}

func newTestEngine(t *testing.T, opts ...runtime.EngineOption) (*runtime.Engine, *fakeInstrumentation, *runtime.RunState, *recorder) {
	t.Helper()
	prog := &fakeInstrumentation{n: 10, skip: map[int]bool{4: true}}
	rs := runtime.NewRunState()
	rec := &recorder{}
	opts = append([]runtime.EngineOption{runtime.WithPublisher(rec.publish)}, opts...)
	e := runtime.NewEngine("dbg-1", prog, rs, runtime.NewStateHelper(), opts...)
	prog.SetLineHook(e.OnLine)
	return e, prog, rs, rec
}

func TestEngine_SetupBreakpoints(t *testing.T) {
	e, _, _, _ := newTestEngine(t)
	assert.Nil(t, e.Breakpoints(), "no vector before setup")

	e.SetupBreakpoints(map[int]bool{2: true, 4: true, 5: false, 99: true})
	bps := e.Breakpoints()
	require.Len(t, bps, 11)
	assert.True(t, bps[2])
	assert.False(t, bps[4], "non-instrumentable line is dropped")
	assert.False(t, bps[5])
}

func TestEngine_SetBreakpoint(t *testing.T) {
	e, _, _, rec := newTestEngine(t)

	err := e.Apply(runtime.SetBreakpoint{Line: 3, Stop: true})
	assert.ErrorIs(t, err, domain.ErrSetupRequired)

	e.SetupBreakpoints(nil)
	require.NoError(t, e.Apply(runtime.SetBreakpoint{Line: 3, Stop: true}))
	assert.True(t, e.Breakpoints()[3])
	assert.Len(t, rec.states(), 1, "a breakpoint change publishes the new state")

	err = e.Apply(runtime.SetBreakpoint{Line: 4, Stop: true})
	assert.ErrorIs(t, err, domain.ErrBreakpointNotAllowed)
	assert.False(t, e.IsBreakpointAllowed(0))
	assert.False(t, e.IsBreakpointAllowed(11))
}

func TestEngine_ToggleMuteBreakpointsIsIdempotent(t *testing.T) {
	e, _, rs, _ := newTestEngine(t)
	e.SetupBreakpoints(map[int]bool{1: true, 3: true})
	rs.Set(domain.StateSync)

	require.NoError(t, e.Apply(runtime.ToggleMuteBreakpoints{Mute: true}))
	bps, state := e.Breakpoints(), rs.Get()

	require.NoError(t, e.Apply(runtime.ToggleMuteBreakpoints{Mute: true}))
	assert.Equal(t, bps, e.Breakpoints())
	assert.Equal(t, state, rs.Get())
	assert.True(t, e.IsMuteBreakpoints())
}

func TestEngine_OnStateChanged(t *testing.T) {
	e, _, rs, rec := newTestEngine(t, runtime.WithConfig(func() domain.DebuggerConfig {
		return domain.DebuggerConfig{SkipSyncPoints: true}
	}))
	line := 3
	e.SetupBreakpoints(map[int]bool{3: true})
	e.ToggleMuteBreakpoints(true)
	e.SetSnapshot(&fakeSnapshot{
		threads:  []domain.ThreadInfo{{Name: "hot", Line: &line, Requested: []domain.Event{domain.NewEvent("hot")}}},
		external: []domain.Event{domain.NewEvent("coin")},
		globals:  map[string]string{"count": "1"},
	})
	rs.Set(domain.StateSync)

	require.NoError(t, e.Apply(runtime.GetState{}))
	states := rec.states()
	require.Len(t, states, 1)

	s := states[0]
	assert.Equal(t, domain.StateSync, s.RunState)
	assert.Equal(t, "hot", s.Threads[0].Name)
	assert.Equal(t, []domain.Event{domain.NewEvent("hot")}, s.Events.Requested)
	assert.Equal(t, []domain.Event{domain.NewEvent("coin")}, s.Events.External)
	assert.Equal(t, "1", s.GlobalEnv["count"])
	assert.True(t, s.Breakpoints[3])
	assert.Equal(t, domain.DebuggerConfig{SkipBreakpoints: true, SkipSyncPoints: true}, s.Config)
	assert.Nil(t, s.ChosenEvent)
}

func TestEngine_LightLevelSkipsStates(t *testing.T) {
	e, prog, _, rec := newTestEngine(t, runtime.WithLevel(domain.LevelLight))
	e.SetupBreakpoints(map[int]bool{1: true})

	e.OnStateChanged()
	require.NoError(t, prog.run(context.Background(), domain.Location{Thread: "t", Line: 1}))
	assert.Empty(t, rec.states())
}

func TestEngine_OnLineWithoutBreakpoint(t *testing.T) {
	e, prog, rs, _ := newTestEngine(t)
	e.SetupBreakpoints(map[int]bool{})
	rs.Set(domain.StateRunning)

	require.NoError(t, prog.run(context.Background(), domain.Location{Thread: "t", Line: 1}))
	assert.Equal(t, domain.StateRunning, rs.Get())
}

// runPaused runs locs on a goroutine and waits until the engine pauses.
func runPaused(t *testing.T, prog *fakeInstrumentation, rs *runtime.RunState, locs ...domain.Location) <-chan error {
	t.Helper()
	errc := make(chan error, 1)
	go func() { errc <- prog.run(context.Background(), locs...) }()
	require.Eventually(t, func() bool { return rs.Is(domain.StateStepDebug) }, time.Second, time.Millisecond)
	return errc
}

func TestEngine_PauseAndContinue(t *testing.T) {
	e, prog, rs, rec := newTestEngine(t)
	e.SetupBreakpoints(map[int]bool{2: true})
	rs.Set(domain.StateRunning)

	errc := runPaused(t, prog, rs,
		domain.Location{Thread: "t", Line: 1},
		domain.Location{Thread: "t", Line: 2},
		domain.Location{Thread: "t", Line: 3},
	)

	require.Eventually(t, func() bool { return len(rec.states()) > 0 }, time.Second, time.Millisecond)
	states := rec.states()
	last := states[len(states)-1]
	assert.Equal(t, domain.StateStepDebug, last.RunState)
	require.NotNil(t, last.CurrentLine)
	assert.Equal(t, 2, *last.CurrentLine)
	assert.Equal(t, "t", last.CurrentThread)

	require.NoError(t, e.AddCommand(runtime.Continue{}))
	require.NoError(t, <-errc)
	assert.Equal(t, domain.StateRunning, rs.Get())
}

func TestEngine_StepSemantics(t *testing.T) {
	locs := []domain.Location{
		{Thread: "t", Line: 1, Depth: 0},
		{Thread: "t", Line: 2, Depth: 1},
		{Thread: "t", Line: 3, Depth: 2},
		{Thread: "t", Line: 5, Depth: 1},
		{Thread: "t", Line: 6, Depth: 0},
	}

	tests := []struct {
		name string
		cmd  runtime.Command
		want int
	}{
		{"into", runtime.StepInto{}, 3},
		{"over", runtime.StepOver{}, 5},
		{"out", runtime.StepOut{}, 6},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			e, prog, rs, _ := newTestEngine(t)
			e.SetupBreakpoints(map[int]bool{2: true})

			var mu sync.Mutex
			var seen []int
			prog.SetLineHook(func(ctx context.Context, loc domain.Location) error {
				mu.Lock()
				seen = append(seen, loc.Line)
				mu.Unlock()
				return e.OnLine(ctx, loc)
			})

			errc := runPaused(t, prog, rs, locs...)
			require.NoError(t, e.AddCommand(tt.cmd))

			require.Eventually(t, func() bool {
				mu.Lock()
				defer mu.Unlock()
				return rs.Is(domain.StateStepDebug) && seen[len(seen)-1] == tt.want
			}, time.Second, time.Millisecond)

			require.NoError(t, e.AddCommand(runtime.Continue{}))
			require.NoError(t, <-errc)
		})
	}
}

func TestEngine_StopReleasesPausedLine(t *testing.T) {
	e, prog, rs, _ := newTestEngine(t)
	e.SetupBreakpoints(map[int]bool{1: true})

	errc := runPaused(t, prog, rs, domain.Location{Thread: "t", Line: 1})
	e.Stop()
	assert.ErrorIs(t, <-errc, domain.ErrSessionStopped)
	assert.False(t, e.IsRunning())

	err := e.AddCommand(runtime.StepInto{})
	assert.ErrorIs(t, err, domain.ErrCommandRejected)
	assert.ErrorIs(t, prog.run(context.Background(), domain.Location{Line: 2}), domain.ErrSessionStopped)
}

func TestEngine_MutedBreakpointsDoNotPause(t *testing.T) {
	e, prog, rs, _ := newTestEngine(t)
	e.SetupBreakpoints(map[int]bool{1: true})
	e.ToggleMuteBreakpoints(true)
	rs.Set(domain.StateRunning)

	require.NoError(t, prog.run(context.Background(), domain.Location{Thread: "t", Line: 1}))
	assert.Equal(t, domain.StateRunning, rs.Get())
}
