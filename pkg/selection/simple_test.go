package selection_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aretw0/rewind/pkg/domain"
	"github.com/aretw0/rewind/pkg/ports"
	"github.com/aretw0/rewind/pkg/selection"
)

type snap struct {
	threads  []domain.ThreadInfo
	external []domain.Event
}

func (s snap) Threads() []domain.ThreadInfo                    { return s.threads }
func (s snap) ExternalEvents() []domain.Event                  { return s.external }
func (s snap) IsStateValid() bool                              { return true }
func (s snap) FailedAssertion() *domain.FailedAssertion        { return nil }
func (s snap) Globals() map[string]string                      { return nil }
func (s snap) CopyWith(external []domain.Event) ports.Snapshot { s.external = external; return s }

func events(names ...string) []domain.Event {
	out := make([]domain.Event, 0, len(names))
	for _, n := range names {
		out = append(out, domain.NewEvent(n))
	}
	return out
}

func TestSimple_SelectableEvents(t *testing.T) {
	s := selection.NewSimple()

	sn := snap{threads: []domain.ThreadInfo{
		{Name: "a", Requested: events("hot", "cold")},
		{Name: "b", Requested: events("hot", "warm")},
		{Name: "c", Blocked: events("cold")},
	}}
	assert.Equal(t, events("hot", "warm"), s.SelectableEvents(sn))

	sn = snap{
		threads:  []domain.ThreadInfo{{Name: "w", WaitFor: events("coin"), Blocked: events("tea")}},
		external: events("tea", "coin", "coffee"),
	}
	assert.Equal(t, events("coin"), s.SelectableEvents(sn), "first non-blocked external event")

	assert.Empty(t, s.SelectableEvents(snap{}))
}

func TestSimple_Select(t *testing.T) {
	s := selection.NewSimple()
	ctx := context.Background()

	res, err := s.Select(ctx, snap{}, nil)
	require.NoError(t, err)
	assert.Nil(t, res)

	internal := snap{threads: []domain.ThreadInfo{{Requested: events("hot")}}, external: events("hot")}
	res, err = s.Select(ctx, internal, events("hot"))
	require.NoError(t, err)
	assert.Equal(t, domain.NewEvent("hot"), res.Event)
	assert.Empty(t, res.IndicesToRemove, "requested events do not consume the external queue")

	external := snap{external: events("tea", "coin")}
	res, err = s.Select(ctx, external, events("coin"))
	require.NoError(t, err)
	assert.Equal(t, []int{1}, res.IndicesToRemove)
}

func TestRandom_IsReproducible(t *testing.T) {
	candidates := events("a", "b", "c", "d", "e")
	sn := snap{threads: []domain.ThreadInfo{{Requested: candidates}}}

	pick := func(seed int64) []string {
		s := selection.NewRandom(seed)
		var out []string
		for i := 0; i < 8; i++ {
			res, err := s.Select(context.Background(), sn, candidates)
			require.NoError(t, err)
			out = append(out, res.Event.Name)
		}
		return out
	}
	assert.Equal(t, pick(7), pick(7))
}

func TestSimple_SelectHonorsContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := selection.NewSimple().Select(ctx, snap{}, events("a"))
	assert.ErrorIs(t, err, context.Canceled)
}
