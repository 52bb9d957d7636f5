package domain

import (
	"slices"
	"testing"
	"time"

	"github.com/google/uuid"
)

func bookingAt(state BookingState, start time.Time, minutes int, expiresAt time.Time) Booking {
	return Booking{
		ID:         uuid.New(),
		ProviderID: "p1",
		CustomerID: "c1",
		StartTime:  start,
		EndTime:    start.Add(time.Duration(minutes) * time.Minute),
		State:      state,
		ExpiresAt:  expiresAt,
	}
}

func TestFilterAvailable_BufferRemovesNeighbours(t *testing.T) {
	seq, err := GenerateSlots(mondayTemplate(), QueryWindow{RangeStart: MustDate("2026-01-05"), RangeEnd: MustDate("2026-01-06")})
	if err != nil {
		t.Fatalf("GenerateSlots error: %v", err)
	}
	now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	existing := []Booking{
		bookingAt(BookingConfirmed, time.Date(2026, 1, 5, 9, 0, 0, 0, time.UTC), 30, time.Time{}),
	}

	got := slices.Collect(FilterAvailable(seq, existing, 10*time.Minute, now))
	if len(got) != 0 {
		t.Fatalf("len(available) = %d, want 0 (%v)", len(got), got)
	}

	got = slices.Collect(FilterAvailable(seq, existing, 0, now))
	if len(got) != 1 || got[0].Start.Hour() != 9 || got[0].Start.Minute() != 30 {
		t.Fatalf("available = %v, want only 09:30", got)
	}
}

func TestFilterAvailable_IgnoresReleasedBookings(t *testing.T) {
	now := time.Date(2026, 1, 5, 8, 0, 0, 0, time.UTC)
	start := time.Date(2026, 1, 5, 9, 0, 0, 0, time.UTC)
	candidates := slices.Values([]TimeSlot{
		{Start: start, End: start.Add(30 * time.Minute)},
		{Start: start.Add(30 * time.Minute), End: start.Add(time.Hour)},
		{Start: start.Add(time.Hour), End: start.Add(90 * time.Minute)},
	})

	existing := []Booking{
		bookingAt(BookingCanceled, start, 30, time.Time{}),
		bookingAt(BookingPending, start.Add(30*time.Minute), 30, now.Add(-time.Minute)),
		bookingAt(BookingPending, start.Add(time.Hour), 30, now.Add(10*time.Minute)),
	}

	got := slices.Collect(FilterAvailable(candidates, existing, 0, now))
	if len(got) != 2 {
		t.Fatalf("len(available) = %d, want 2 (%v)", len(got), got)
	}
	if !got[0].Start.Equal(start) || !got[1].Start.Equal(start.Add(30*time.Minute)) {
		t.Fatalf("available order = %v", got)
	}
}
