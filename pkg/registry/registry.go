package registry

import (
	"fmt"
	"sort"
	"sync"
	"sync/atomic"

	"github.com/google/uuid"

	"github.com/aretw0/rewind/pkg/ports"
)

// StrategyFactory builds an event-selection strategy.
type StrategyFactory func() ports.EventSelectionStrategy

// Registry holds the process-wide state shared by debuggers: identifier generators and
// the named event-selection strategies.
// Pass one explicitly to every debugger that should share it.
type Registry struct {
	executors atomic.Int64

	mu         sync.RWMutex
	strategies map[string]StrategyFactory
}

// NewRegistry creates a new empty registry.
func NewRegistry() *Registry {
	return &Registry{
		strategies: make(map[string]StrategyFactory),
	}
}

// NextExecutorID returns a fresh executor name for a debugger's lanes.
func (r *Registry) NextExecutorID() string {
	return fmt.Sprintf("rewind-runner-%d", r.executors.Add(1))
}

// NewSessionID returns a random session ID.
func (r *Registry) NewSessionID() string {
	return uuid.NewString()
}

// RegisterStrategy adds a named strategy.
// If a strategy with the same name exists, it is overwritten.
func (r *Registry) RegisterStrategy(name string, fn StrategyFactory) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.strategies[name] = fn
}

// Strategy builds the strategy registered under name.
// Returns an error if the strategy is not found.
func (r *Registry) Strategy(name string) (ports.EventSelectionStrategy, error) {
	r.mu.RLock()
	fn, ok := r.strategies[name]
	r.mu.RUnlock()

	if !ok {
		return nil, fmt.Errorf("strategy not found: %s", name)
	}
	return fn(), nil
}

// Strategies lists the registered strategy names, sorted.
func (r *Registry) Strategies() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	names := make([]string, 0, len(r.strategies))
	for name := range r.strategies {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
