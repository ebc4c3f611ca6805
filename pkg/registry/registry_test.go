package registry_test

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aretw0/rewind/pkg/domain"
	"github.com/aretw0/rewind/pkg/ports"
	"github.com/aretw0/rewind/pkg/registry"
)

type firstStrategy struct{}

func (firstStrategy) SelectableEvents(ports.Snapshot) []domain.Event { return nil }
func (firstStrategy) Select(context.Context, ports.Snapshot, []domain.Event) (*ports.SelectionResult, error) {
	return nil, nil
}

func TestRegistry_ExecutorIDsAreScoped(t *testing.T) {
	a, b := registry.NewRegistry(), registry.NewRegistry()

	assert.Equal(t, "rewind-runner-1", a.NextExecutorID())
	assert.Equal(t, "rewind-runner-2", a.NextExecutorID())
	assert.Equal(t, "rewind-runner-1", b.NextExecutorID(), "registries do not share counters")
}

func TestRegistry_SessionIDs(t *testing.T) {
	r := registry.NewRegistry()
	id := r.NewSessionID()
	_, err := uuid.Parse(id)
	require.NoError(t, err)
	assert.NotEqual(t, id, r.NewSessionID())
}

func TestRegistry_Strategies(t *testing.T) {
	r := registry.NewRegistry()
	r.RegisterStrategy("first", func() ports.EventSelectionStrategy { return firstStrategy{} })

	s, err := r.Strategy("first")
	require.NoError(t, err)
	assert.IsType(t, firstStrategy{}, s)

	_, err = r.Strategy("missing")
	assert.Error(t, err)
	assert.Equal(t, []string{"first"}, r.Strategies())
}
