package domain

import (
	"errors"
	"fmt"
	"iter"
	"time"
)

var ErrInvalidSlot = errors.New("invalid slot")

type QueryWindow struct {
	ProviderID string
	RangeStart Date
	RangeEnd   Date
}

// GenerateSlots projects the template onto the dates in [RangeStart, RangeEnd) of the
// provider's zone. The returned sequence is lazy and may be ranged over any number of times.
func GenerateSlots(t AvailabilityTemplate, w QueryWindow) (iter.Seq[TimeSlot], error) {
	if err := t.Validate(); err != nil {
		return nil, err
	}
	if w.RangeEnd.Before(w.RangeStart) {
		return nil, fmt.Errorf("%w: range_end %s is before range_start %s", ErrInvalidTimeRange, w.RangeEnd, w.RangeStart)
	}
	loc, err := t.Location()
	if err != nil {
		return nil, err
	}
	duration := t.Duration()

	return func(yield func(TimeSlot) bool) {
		for d := w.RangeStart; d.Before(w.RangeEnd); d = d.AddDays(1) {
			for _, win := range t.WindowsOn(d) {
				if !tileWindow(d, win, loc, duration, yield) {
					return
				}
			}
		}
	}, nil
}

// tileWindow steps through the window on the local wall-clock grid. Starts that do not exist
// locally (spring-forward gap) are skipped, and every slot lasts exactly duration in real time.
func tileWindow(d Date, win Window, loc *time.Location, duration time.Duration, yield func(TimeSlot) bool) bool {
	windowEnd := ToUTC(d, win.End, loc)
	step := ClockTime(duration / time.Minute)

	var prevEnd time.Time
	for at := win.Start; at < win.End; at += step {
		start := ToUTC(d, at, loc)
		if !existsLocally(start, d, at, loc) {
			continue
		}
		end := start.Add(duration)
		if end.After(windowEnd) {
			break
		}
		if start.Before(prevEnd) {
			continue
		}
		prevEnd = end
		if !yield(TimeSlot{Start: start, End: end}) {
			return false
		}
	}
	return true
}

func existsLocally(instant time.Time, d Date, at ClockTime, loc *time.Location) bool {
	local := instant.In(loc)
	return DateOf(local) == d && local.Hour()*60+local.Minute() == at.Minutes()
}

// CheckBookable reports whether slot is one the template would offer at now.
// Every failure wraps ErrInvalidSlot.
func CheckBookable(t AvailabilityTemplate, slot TimeSlot, now time.Time) error {
	if t.Archived() {
		return fmt.Errorf("%w: provider is not accepting bookings", ErrInvalidSlot)
	}
	if slot.Duration() != t.Duration() {
		return fmt.Errorf("%w: slot must last %d minutes", ErrInvalidSlot, t.DurationMinutes)
	}
	loc, err := t.Location()
	if err != nil {
		return err
	}

	day := DateOf(slot.Start.In(loc))
	seq, err := GenerateSlots(t, QueryWindow{
		ProviderID: t.ProviderID,
		RangeStart: day.AddDays(-1),
		RangeEnd:   day.AddDays(2),
	})
	if err != nil {
		return err
	}
	found := false
	for s := range seq {
		if s.Equal(slot) {
			found = true
			break
		}
		if s.Start.After(slot.Start) {
			break
		}
	}
	if !found {
		return fmt.Errorf("%w: slot is not on the provider's schedule", ErrInvalidSlot)
	}

	if !t.Offerable(slot, now) {
		return fmt.Errorf("%w: slot is outside the booking window", ErrInvalidSlot)
	}
	return nil
}

// Offerable applies minimum notice and the booking horizon relative to now.
func (t AvailabilityTemplate) Offerable(slot TimeSlot, now time.Time) bool {
	if slot.Start.Before(now.Add(t.MinNotice())) {
		return false
	}
	if t.HorizonDays > 0 {
		loc, err := t.Location()
		if err != nil {
			return false
		}
		limit := ToUTC(DateOf(now.In(loc)).AddDays(t.HorizonDays+1), 0, loc)
		if !slot.Start.Before(limit) {
			return false
		}
	}
	return true
}
