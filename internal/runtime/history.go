package runtime

import (
	"fmt"
	"sync"

	"github.com/aretw0/rewind/pkg/domain"
	"github.com/aretw0/rewind/pkg/ports"
)

// HistoryEntry pairs a past snapshot with the event that left it.
type HistoryEntry struct {
	Time     int64
	Snapshot ports.Snapshot
	Event    *domain.Event
}

// History is the time-indexed store of past sync snapshots.
// Timestamps come from a logical clock and are never reused, even after a rollback.
type History struct {
	mu      sync.Mutex
	entries []HistoryEntry
	clock   int64
}

// NewHistory creates an empty history.
func NewHistory() *History {
	return &History{}
}

// Record appends snapshot and the event that left it, returning the new timestamp.
func (h *History) Record(snapshot ports.Snapshot, event *domain.Event) int64 {
	h.mu.Lock()
	defer h.mu.Unlock()

	h.clock++
	var ev *domain.Event
	if event != nil {
		e := *event
		ev = &e
	}
	h.entries = append(h.entries, HistoryEntry{Time: h.clock, Snapshot: snapshot, Event: ev})
	return h.clock
}

// Rollback removes the entry at t and every later entry, returning the snapshot at t.
func (h *History) Rollback(t int64) (ports.Snapshot, error) {
	h.mu.Lock()
	defer h.mu.Unlock()

	for i, e := range h.entries {
		if e.Time == t {
			h.entries = h.entries[:i:i]
			return e.Snapshot, nil
		}
	}
	return nil, fmt.Errorf("%w: %d", domain.ErrUnknownSnapshot, t)
}

// Entries returns a copy of the history ordered by time.
func (h *History) Entries() []HistoryEntry {
	h.mu.Lock()
	defer h.mu.Unlock()
	return append([]HistoryEntry(nil), h.entries...)
}

// Events returns the triggering events of the entries at positions from..to, inclusive.
// Positions past the end are clamped; entries without an event are skipped.
func (h *History) Events(from, to int) []domain.TimedEvent {
	h.mu.Lock()
	defer h.mu.Unlock()

	out := []domain.TimedEvent{}
	if from < 0 || to < from || from >= len(h.entries) {
		return out
	}
	if to >= len(h.entries) {
		to = len(h.entries) - 1
	}
	for _, e := range h.entries[from : to+1] {
		if e.Event == nil {
			continue
		}
		out = append(out, domain.TimedEvent{Time: e.Time, Event: *e.Event})
	}
	return out
}

// Len returns the number of entries.
func (h *History) Len() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.entries)
}

// Clear drops every entry and resets the clock.
func (h *History) Clear() {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.entries = nil
	h.clock = 0
}
