package runtime

import (
	"slices"

	"github.com/aretw0/rewind/pkg/domain"
)

// RemoveIndices returns a copy of events without the given positions.
// Positions are applied highest first so earlier removals never shift later ones.
// Duplicates and out-of-range positions are ignored.
func RemoveIndices(events []domain.Event, indices []int) []domain.Event {
	out := append([]domain.Event{}, events...)
	if len(indices) == 0 {
		return out
	}

	sorted := append([]int(nil), indices...)
	slices.Sort(sorted)
	sorted = slices.Compact(sorted)
	slices.Reverse(sorted)

	for _, i := range sorted {
		if i < 0 || i >= len(out) {
			continue
		}
		out = slices.Delete(out, i, i+1)
	}
	return out
}

// RemoveByName returns a copy of events without any event named like ev.
func RemoveByName(events []domain.Event, ev domain.Event) []domain.Event {
	out := make([]domain.Event, 0, len(events))
	for _, e := range events {
		if !e.SameName(ev) {
			out = append(out, e)
		}
	}
	return out
}
