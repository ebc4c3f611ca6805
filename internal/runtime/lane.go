package runtime

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/aretw0/rewind/internal/logging"
	"github.com/aretw0/rewind/pkg/domain"
)

// ErrLaneClosed is returned when work is submitted to a lane that was shut down.
var ErrLaneClosed = fmt.Errorf("lane closed: %w", domain.ErrCommandRejected)

// ErrTaskPanicked is returned by Do when the task panicked.
var ErrTaskPanicked = errors.New("lane task panicked")

// laneBuffer bounds the tasks a lane accepts ahead of the one it is running.
const laneBuffer = 64

// Lane is a single-worker execution lane.
// Tasks run one at a time, in submission order, on one goroutine.
type Lane struct {
	name   string
	logger *slog.Logger

	tasks  chan func(context.Context)
	ctx    context.Context
	cancel context.CancelFunc
	done   chan struct{}
	once   sync.Once
}

// NewLane starts a lane named name.
func NewLane(name string, logger *slog.Logger) *Lane {
	if logger == nil {
		logger = logging.NewNop()
	}
	ctx, cancel := context.WithCancel(context.Background())
	l := &Lane{
		name:   name,
		logger: logger.With("lane", name),
		tasks:  make(chan func(context.Context), laneBuffer),
		ctx:    ctx,
		cancel: cancel,
		done:   make(chan struct{}),
	}
	go l.run()
	return l
}

// Name returns the lane name.
func (l *Lane) Name() string {
	return l.name
}

func (l *Lane) run() {
	defer close(l.done)
	for {
		select {
		case <-l.ctx.Done():
			return
		case task := <-l.tasks:
			if l.ctx.Err() != nil {
				return
			}
			l.exec(task)
		}
	}
}

func (l *Lane) exec(task func(context.Context)) {
	defer func() {
		if r := recover(); r != nil {
			l.logger.Error("Lane task panicked", "panic", r)
		}
	}()
	task(l.ctx)
}

// Submit queues fn without waiting for it.
// fn receives the lane context, which is cancelled on Shutdown.
func (l *Lane) Submit(fn func(context.Context)) error {
	if l.ctx.Err() != nil {
		return ErrLaneClosed
	}
	select {
	case l.tasks <- fn:
		return nil
	case <-l.ctx.Done():
		return ErrLaneClosed
	}
}

// Shutdown cancels the running task's context and drops queued tasks.
// It does not wait; use AwaitTermination.
func (l *Lane) Shutdown() {
	l.once.Do(l.cancel)
}

// Closed reports whether Shutdown was called.
func (l *Lane) Closed() bool {
	return l.ctx.Err() != nil
}

// AwaitTermination waits up to timeout for the worker to exit.
// It reports false when the running task ignored cancellation.
func (l *Lane) AwaitTermination(timeout time.Duration) bool {
	timer := time.NewTimer(timeout)
	defer timer.Stop()
	select {
	case <-l.done:
		return true
	case <-timer.C:
		return false
	}
}

type laneResult[T any] struct {
	v   T
	err error
}

// Do runs fn on the lane and waits for its result.
// The context handed to fn is cancelled when either ctx or the lane is done.
func Do[T any](ctx context.Context, l *Lane, fn func(context.Context) (T, error)) (T, error) {
	var zero T
	res := make(chan laneResult[T], 1)

	err := l.Submit(func(laneCtx context.Context) {
		taskCtx, cancel := context.WithCancel(laneCtx)
		defer cancel()
		stop := context.AfterFunc(ctx, cancel)
		defer stop()
		defer func() {
			if r := recover(); r != nil {
				res <- laneResult[T]{v: zero, err: fmt.Errorf("%w: %v", ErrTaskPanicked, r)}
			}
		}()

		v, err := fn(taskCtx)
		res <- laneResult[T]{v: v, err: err}
	})
	if err != nil {
		return zero, err
	}

	select {
	case r := <-res:
		return r.v, r.err
	case <-ctx.Done():
		return zero, ctx.Err()
	case <-l.done:
		select {
		case r := <-res:
			return r.v, r.err
		default:
			return zero, ErrLaneClosed
		}
	}
}
