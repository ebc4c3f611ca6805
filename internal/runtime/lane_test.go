package runtime_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/aretw0/rewind/internal/runtime"
	"github.com/aretw0/rewind/pkg/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLane_RunsInOrder(t *testing.T) {
	lane := runtime.NewLane("test", nil)
	defer lane.Shutdown()

	var mu sync.Mutex
	var order []int
	for i := 0; i < 10; i++ {
		i := i
		require.NoError(t, lane.Submit(func(context.Context) {
			mu.Lock()
			order = append(order, i)
			mu.Unlock()
		}))
	}

	v, err := runtime.Do(context.Background(), lane, func(context.Context) (int, error) { return 99, nil })
	require.NoError(t, err)
	assert.Equal(t, 99, v)

	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, []int{0, 1, 2, 3, 4, 5, 6, 7, 8, 9}, order)
}

func TestLane_DoPropagatesError(t *testing.T) {
	lane := runtime.NewLane("test", nil)
	defer lane.Shutdown()

	boom := errors.New("boom")
	_, err := runtime.Do(context.Background(), lane, func(context.Context) (struct{}, error) { return struct{}{}, boom })
	assert.ErrorIs(t, err, boom)
}

func TestLane_RejectsAfterShutdown(t *testing.T) {
	lane := runtime.NewLane("test", nil)
	lane.Shutdown()
	assert.True(t, lane.AwaitTermination(time.Second))
	assert.True(t, lane.Closed())

	err := lane.Submit(func(context.Context) {})
	assert.ErrorIs(t, err, runtime.ErrLaneClosed)
	assert.ErrorIs(t, err, domain.ErrCommandRejected)

	_, err = runtime.Do(context.Background(), lane, func(context.Context) (int, error) { return 1, nil })
	assert.ErrorIs(t, err, runtime.ErrLaneClosed)
}

func TestLane_ShutdownCancelsBlockingTask(t *testing.T) {
	lane := runtime.NewLane("test", nil)

	started := make(chan struct{})
	errc := make(chan error, 1)
	go func() {
		_, err := runtime.Do(context.Background(), lane, func(ctx context.Context) (int, error) {
			close(started)
			<-ctx.Done()
			return 0, ctx.Err()
		})
		errc <- err
	}()

	<-started
	lane.Shutdown()
	assert.True(t, lane.AwaitTermination(time.Second))
	assert.ErrorIs(t, <-errc, context.Canceled)
}

func TestLane_AwaitTerminationTimesOut(t *testing.T) {
	lane := runtime.NewLane("test", nil)

	release := make(chan struct{})
	require.NoError(t, lane.Submit(func(context.Context) { <-release }))
	time.Sleep(10 * time.Millisecond)

	lane.Shutdown()
	assert.False(t, lane.AwaitTermination(30*time.Millisecond), "task ignores cancellation")

	close(release)
	assert.True(t, lane.AwaitTermination(time.Second))
}

func TestLane_CallerContext(t *testing.T) {
	lane := runtime.NewLane("test", nil)
	defer lane.Shutdown()

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	_, err := runtime.Do(ctx, lane, func(ctx context.Context) (int, error) {
		<-ctx.Done()
		return 0, ctx.Err()
	})
	assert.ErrorIs(t, err, context.DeadlineExceeded)

	// The lane survives a cancelled caller.
	v, err := runtime.Do(context.Background(), lane, func(context.Context) (int, error) { return 7, nil })
	require.NoError(t, err)
	assert.Equal(t, 7, v)
}

func TestLane_RecoversPanics(t *testing.T) {
	lane := runtime.NewLane("test", nil)
	defer lane.Shutdown()

	require.NoError(t, lane.Submit(func(context.Context) { panic("bad task") }))
	v, err := runtime.Do(context.Background(), lane, func(context.Context) (string, error) { return "alive", nil })
	require.NoError(t, err)
	assert.Equal(t, "alive", v)

	_, err = runtime.Do(context.Background(), lane, func(context.Context) (int, error) { panic("bad call") })
	assert.ErrorIs(t, err, runtime.ErrTaskPanicked)
	assert.ErrorContains(t, err, "bad call")

	v, err = runtime.Do(context.Background(), lane, func(context.Context) (string, error) { return "still alive", nil })
	require.NoError(t, err)
	assert.Equal(t, "still alive", v)
}

func TestRunState_Transition(t *testing.T) {
	rs := runtime.NewRunState()
	assert.Equal(t, domain.StateStopped, rs.Get())

	err := rs.Transition(domain.StateRunning, domain.StateSync)
	assert.ErrorIs(t, err, domain.ErrInvalidState)
	assert.Equal(t, domain.StateStopped, rs.Get())

	rs.Set(domain.StateSync)
	require.NoError(t, rs.Transition(domain.StateRunning, domain.StateSync, domain.StateStepDebug))
	assert.True(t, rs.Is(domain.StateRunning))
}
