// Package selection provides reference event-selection strategies.
package selection

import (
	"context"
	"math/rand"
	"sync"

	"github.com/aretw0/rewind/pkg/domain"
	"github.com/aretw0/rewind/pkg/ports"
)

// Simple selects among the requested, non-blocked events.
// When none exists it falls back to the first non-blocked external event.
type Simple struct {
	mu  sync.Mutex
	rnd *rand.Rand
}

// NewSimple returns a strategy that always picks the first candidate.
func NewSimple() *Simple {
	return &Simple{}
}

// NewRandom returns a strategy that picks a seeded random candidate.
func NewRandom(seed int64) *Simple {
	return &Simple{rnd: rand.New(rand.NewSource(seed))}
}

// SelectableEvents returns the candidates in tie-break order.
func (s *Simple) SelectableEvents(snapshot ports.Snapshot) []domain.Event {
	var requested, blocked []domain.Event
	for _, t := range snapshot.Threads() {
		requested = append(requested, t.Requested...)
		blocked = append(blocked, t.Blocked...)
	}

	out := []domain.Event{}
	for _, ev := range requested {
		if domain.ContainsEvent(blocked, ev) || domain.ContainsEvent(out, ev) {
			continue
		}
		out = append(out, ev)
	}
	if len(out) > 0 {
		return out
	}

	for _, ev := range snapshot.ExternalEvents() {
		if !domain.ContainsEvent(blocked, ev) {
			return []domain.Event{ev}
		}
	}
	return out
}

// Select chooses one candidate. It returns nil when candidates is empty.
// An event taken from the external queue is reported for removal by position.
func (s *Simple) Select(ctx context.Context, snapshot ports.Snapshot, candidates []domain.Event) (*ports.SelectionResult, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if len(candidates) == 0 {
		return nil, nil
	}

	chosen := candidates[s.pick(len(candidates))]
	res := &ports.SelectionResult{Event: chosen}

	if !requested(snapshot, chosen) {
		for i, ev := range snapshot.ExternalEvents() {
			if ev.SameName(chosen) {
				res.IndicesToRemove = []int{i}
				break
			}
		}
	}
	return res, nil
}

func (s *Simple) pick(n int) int {
	if s.rnd == nil {
		return 0
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.rnd.Intn(n)
}

func requested(snapshot ports.Snapshot, ev domain.Event) bool {
	for _, t := range snapshot.Threads() {
		if domain.ContainsEvent(t.Requested, ev) {
			return true
		}
	}
	return false
}
