package domain

import (
	"iter"
	"time"
)

// FilterAvailable drops every candidate that overlaps the buffer-expanded slot of a
// booking still holding its time at now. Candidate order is preserved.
func FilterAvailable(candidates iter.Seq[TimeSlot], existing []Booking, buffer time.Duration, now time.Time) iter.Seq[TimeSlot] {
	blocked := make([]TimeSlot, 0, len(existing))
	for _, b := range existing {
		if b.Blocks(now) {
			blocked = append(blocked, b.Slot().Expand(buffer))
		}
	}

	return func(yield func(TimeSlot) bool) {
		for c := range candidates {
			if overlapsAny(c, blocked) {
				continue
			}
			if !yield(c) {
				return
			}
		}
	}
}

func overlapsAny(slot TimeSlot, blocked []TimeSlot) bool {
	for _, b := range blocked {
		if Overlaps(slot, b) {
			return true
		}
	}
	return false
}
