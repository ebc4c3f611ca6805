package tests

import (
	"context"
	"testing"
	"time"

	"github.com/aretw0/rewind/pkg/domain"
	"github.com/aretw0/rewind/pkg/ports"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// ProgramContractTest is a reusable test suite that verifies if an adapter complies with ports.Program.
// newProgram must return a fresh, valid program on every call.
func ProgramContractTest(t *testing.T, newProgram func(t *testing.T) ports.Program) {
	t.Helper()

	t.Run("Setup_Start", func(t *testing.T) {
		prog := newProgram(t)
		ctx := context.Background()

		snap, err := prog.Setup(ctx)
		require.NoError(t, err)
		require.NotNil(t, snap, "setup of a valid program must yield a snapshot")
		assert.True(t, snap.IsStateValid())
		assert.Nil(t, snap.FailedAssertion())

		started, err := prog.Start(ctx, snap)
		require.NoError(t, err)
		require.NotNil(t, started)
		assert.NotEmpty(t, started.Threads())
	})

	t.Run("CopyWith_Immutable", func(t *testing.T) {
		prog := newProgram(t)
		snap, err := prog.Setup(context.Background())
		require.NoError(t, err)

		before := snap.ExternalEvents()
		copied := snap.CopyWith([]domain.Event{domain.NewEvent("ext")})

		assert.Equal(t, before, snap.ExternalEvents(), "CopyWith must not mutate the receiver")
		assert.Equal(t, []domain.Event{domain.NewEvent("ext")}, copied.ExternalEvents())
		assert.Equal(t, snap.Threads(), copied.Threads())
	})

	t.Run("ExternalQueue_Take", func(t *testing.T) {
		prog := newProgram(t)
		prog.EnqueueExternalEvent(domain.NewEvent("coin"))

		ev, err := prog.TakeExternalEvent(context.Background())
		require.NoError(t, err)
		require.NotNil(t, ev)
		assert.Equal(t, "coin", ev.Name)
	})

	t.Run("ExternalQueue_Close", func(t *testing.T) {
		prog := newProgram(t)
		done := make(chan *domain.Event, 1)
		go func() {
			ev, _ := prog.TakeExternalEvent(context.Background())
			done <- ev
		}()

		time.Sleep(20 * time.Millisecond)
		prog.Close()

		select {
		case ev := <-done:
			assert.Nil(t, ev, "a closed queue yields no event")
		case <-time.After(time.Second):
			t.Fatal("TakeExternalEvent did not return after Close")
		}
	})

	t.Run("ExternalQueue_Cancel", func(t *testing.T) {
		prog := newProgram(t)
		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Millisecond)
		defer cancel()

		ev, err := prog.TakeExternalEvent(ctx)
		assert.Nil(t, ev)
		assert.ErrorIs(t, err, context.DeadlineExceeded)
	})

	t.Run("Instrumentation", func(t *testing.T) {
		prog := newProgram(t)
		assert.Greater(t, prog.NumLines(), 0)
		assert.False(t, prog.Instrumentable(0), "line 0 is never instrumentable")
		assert.False(t, prog.Instrumentable(prog.NumLines()+1))
	})
}
