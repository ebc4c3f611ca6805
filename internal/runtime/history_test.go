package runtime_test

import (
	"testing"

	"github.com/aretw0/rewind/internal/runtime"
	"github.com/aretw0/rewind/pkg/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func times(entries []runtime.HistoryEntry) []int64 {
	out := make([]int64, 0, len(entries))
	for _, e := range entries {
		out = append(out, e.Time)
	}
	return out
}

func TestHistory_RecordIsStrictlyIncreasing(t *testing.T) {
	h := runtime.NewHistory()
	for i := 0; i < 5; i++ {
		ev := domain.NewEvent("e")
		h.Record(&fakeSnapshot{}, &ev)
	}
	assert.Equal(t, []int64{1, 2, 3, 4, 5}, times(h.Entries()))
}

func TestHistory_RollbackTruncates(t *testing.T) {
	h := runtime.NewHistory()
	snaps := make([]*fakeSnapshot, 5)
	for i := range snaps {
		snaps[i] = &fakeSnapshot{name: string(rune('a' + i))}
		ev := domain.NewEvent("e")
		h.Record(snaps[i], &ev)
	}

	got, err := h.Rollback(3)
	require.NoError(t, err)
	assert.Same(t, snaps[2], got)
	assert.Equal(t, []int64{1, 2}, times(h.Entries()))

	// The clock is never rewound.
	ev := domain.NewEvent("alt")
	assert.Equal(t, int64(6), h.Record(got, &ev))
	assert.Equal(t, []int64{1, 2, 6}, times(h.Entries()))
}

func TestHistory_RollbackUnknown(t *testing.T) {
	h := runtime.NewHistory()
	h.Record(&fakeSnapshot{}, nil)

	_, err := h.Rollback(42)
	assert.ErrorIs(t, err, domain.ErrUnknownSnapshot)
	assert.Equal(t, 1, h.Len(), "a failed rollback leaves history untouched")

	_, err = h.Rollback(1)
	require.NoError(t, err)
	_, err = h.Rollback(1)
	assert.ErrorIs(t, err, domain.ErrUnknownSnapshot)
}

func TestHistory_Events(t *testing.T) {
	h := runtime.NewHistory()
	for _, name := range []string{"a", "b", "c"} {
		ev := domain.NewEvent(name)
		h.Record(&fakeSnapshot{}, &ev)
	}
	h.Record(&fakeSnapshot{}, nil)

	assert.Equal(t, []domain.TimedEvent{
		{Time: 2, Event: domain.NewEvent("b")},
		{Time: 3, Event: domain.NewEvent("c")},
	}, h.Events(1, 10))
	assert.Len(t, h.Events(0, 0), 1)
	assert.Empty(t, h.Events(5, 9))
	assert.Empty(t, h.Events(2, 1))
}

func TestHistory_Clear(t *testing.T) {
	h := runtime.NewHistory()
	h.Record(&fakeSnapshot{}, nil)
	h.Record(&fakeSnapshot{}, nil)
	h.Clear()

	assert.Zero(t, h.Len())
	assert.Equal(t, int64(1), h.Record(&fakeSnapshot{}, nil))
}

func TestRemoveIndices(t *testing.T) {
	e0, e1, e2 := domain.NewEvent("e0"), domain.NewEvent("e1"), domain.NewEvent("e2")
	queue := []domain.Event{e0, e1, e2}

	for name, indices := range map[string][]int{
		"ascending":  {0, 2},
		"descending": {2, 0},
		"duplicates": {2, 0, 2},
	} {
		t.Run(name, func(t *testing.T) {
			assert.Equal(t, []domain.Event{e1}, runtime.RemoveIndices(queue, indices))
		})
	}

	assert.Equal(t, queue, runtime.RemoveIndices(queue, []int{-1, 7}))
	assert.Equal(t, []domain.Event{e0, e1, e2}, queue, "input is never mutated")
}

func TestRemoveByName(t *testing.T) {
	queue := []domain.Event{domain.NewEvent("coin"), domain.NewEvent("tea"), domain.NewEvent("coin")}
	assert.Equal(t, []domain.Event{domain.NewEvent("tea")}, runtime.RemoveByName(queue, domain.NewEvent("coin")))
}
