package ports

import (
	"context"
	"io"

	"github.com/aretw0/rewind/pkg/domain"
)

// Snapshot is the immutable state of a program at one sync point.
// Implementations must never mutate a Snapshot in place: derived states are new values
// that may share immutable sub-structure with their predecessor.
// A Snapshot is either state-valid or carries a FailedAssertion, never both.
type Snapshot interface {
	// Threads returns the logical threads in a stable order.
	Threads() []domain.ThreadInfo

	// ExternalEvents returns the ordered external-event queue at this sync point.
	ExternalEvents() []domain.Event

	// IsStateValid reports whether the snapshot is internally consistent.
	IsStateValid() bool

	// FailedAssertion returns the failure marker, or nil for valid snapshots.
	FailedAssertion() *domain.FailedAssertion

	// CopyWith returns a structural copy with a replaced external-event queue.
	CopyWith(external []domain.Event) Snapshot

	// Globals returns the program's global environment as strings.
	Globals() map[string]string
}

// LineHook is invoked by the instrumentation before a thread executes a source line.
// A non-nil error aborts the running thread and surfaces from Start or TriggerEvent.
type LineHook func(ctx context.Context, loc domain.Location) error

// Instrumentation describes the per-line hooks of a program.
type Instrumentation interface {
	// NumLines returns the highest source line of the program.
	NumLines() int

	// Instrumentable reports whether a breakpoint may be placed on line.
	Instrumentable(line int) bool

	// SetLineHook installs the hook called before every instrumented line.
	SetLineHook(hook LineHook)
}

// Program is the concurrent-program execution engine consumed by the debugger.
// All calls are made from a single lane, so implementations need not be reentrant.
type Program interface {
	Instrumentation

	// Name identifies the program (typically its source file).
	Name() string

	// Setup performs one-time initialization. A nil snapshot means setup failed.
	Setup(ctx context.Context) (Snapshot, error)

	// Start runs every thread to its first sync point.
	Start(ctx context.Context, snapshot Snapshot) (Snapshot, error)

	// TriggerEvent delivers event to the threads of snapshot and runs them to their
	// next sync point.
	TriggerEvent(ctx context.Context, snapshot Snapshot, event domain.Event) (Snapshot, error)

	// TakeExternalEvent blocks until an external event is enqueued.
	// It returns nil when the queue is closed, and ctx.Err() when ctx is done.
	TakeExternalEvent(ctx context.Context) (*domain.Event, error)

	// EnqueueExternalEvent appends to the blocking external queue.
	EnqueueExternalEvent(event domain.Event)

	// Close closes the external queue, releasing any TakeExternalEvent call.
	Close()

	SetWaitForExternalEvents(wait bool)
	WaitForExternalEvents() bool

	// Strategy returns the event-selection strategy of the program.
	Strategy() EventSelectionStrategy

	// SetOutput redirects the program's own console output.
	SetOutput(w io.Writer)
}

// SelectionResult is the outcome of an event selection.
type SelectionResult struct {
	Event domain.Event
	// IndicesToRemove are positions in the snapshot's external queue consumed by the selection.
	IndicesToRemove []int
}

// EventSelectionStrategy chooses the next event at a sync point.
type EventSelectionStrategy interface {
	// SelectableEvents returns the events that may be selected, in tie-break order.
	SelectableEvents(snapshot Snapshot) []domain.Event

	// Select chooses one of candidates. It returns nil when nothing can be chosen now.
	Select(ctx context.Context, snapshot Snapshot, candidates []domain.Event) (*SelectionResult, error)
}
