package domain

import (
	"errors"
	"slices"
	"testing"
	"time"
)

func collect(t *testing.T, tp AvailabilityTemplate, w QueryWindow) []TimeSlot {
	t.Helper()
	seq, err := GenerateSlots(tp, w)
	if err != nil {
		t.Fatalf("GenerateSlots error: %v", err)
	}
	return slices.Collect(seq)
}

func TestGenerateSlots_MondayMorning(t *testing.T) {
	slots := collect(t, mondayTemplate(), QueryWindow{
		ProviderID: "p1",
		RangeStart: MustDate("2026-01-05"),
		RangeEnd:   MustDate("2026-01-06"),
	})

	want := []TimeSlot{
		{Start: time.Date(2026, 1, 5, 9, 0, 0, 0, time.UTC), End: time.Date(2026, 1, 5, 9, 30, 0, 0, time.UTC)},
		{Start: time.Date(2026, 1, 5, 9, 30, 0, 0, time.UTC), End: time.Date(2026, 1, 5, 10, 0, 0, 0, time.UTC)},
	}
	if len(slots) != len(want) {
		t.Fatalf("len(slots) = %d, want %d (%v)", len(slots), len(want), slots)
	}
	for i := range want {
		if !slots[i].Equal(want[i]) {
			t.Fatalf("slots[%d] = %s, want %s", i, slots[i], want[i])
		}
	}
}

func TestGenerateSlots_SlotsStayInsideWindowsWithExactDuration(t *testing.T) {
	loc, err := time.LoadLocation("Asia/Kolkata")
	if err != nil {
		t.Fatalf("LoadLocation error: %v", err)
	}
	tp := mondayTemplate()
	tp.Timezone = "Asia/Kolkata"
	tp.DurationMinutes = 25
	tp.WeeklyHours = map[time.Weekday][]Window{
		time.Monday:    {{Start: MustClockTime("09:00"), End: MustClockTime("10:10")}},
		time.Wednesday: {{Start: MustClockTime("13:15"), End: MustClockTime("15:00")}, {Start: MustClockTime("18:00"), End: MustClockTime("18:20")}},
	}

	slots := collect(t, tp, QueryWindow{RangeStart: MustDate("2026-01-01"), RangeEnd: MustDate("2026-02-01")})
	if len(slots) == 0 {
		t.Fatalf("expected slots")
	}
	for i, s := range slots {
		if s.Duration() != 25*time.Minute {
			t.Fatalf("slot %s duration = %s, want 25m", s, s.Duration())
		}
		local := s.Start.In(loc)
		windows := tp.WeeklyHours[local.Weekday()]
		inside := false
		for _, w := range windows {
			day := DateOf(local)
			if !s.Start.Before(ToUTC(day, w.Start, loc)) && !s.End.After(ToUTC(day, w.End, loc)) {
				inside = true
			}
		}
		if !inside {
			t.Fatalf("slot %s is outside every window", s)
		}
		if i > 0 && slots[i-1].End.After(s.Start) {
			t.Fatalf("slots overlap or are unordered: %s then %s", slots[i-1], s)
		}
	}
}

func TestGenerateSlots_IsDeterministicAndRestartable(t *testing.T) {
	tp := mondayTemplate()
	tp.Timezone = "America/New_York"
	w := QueryWindow{RangeStart: MustDate("2026-03-01"), RangeEnd: MustDate("2026-04-01")}

	seq, err := GenerateSlots(tp, w)
	if err != nil {
		t.Fatalf("GenerateSlots error: %v", err)
	}
	first := slices.Collect(seq)
	second := slices.Collect(seq)
	third := collect(t, tp, w)

	if len(first) == 0 || len(first) != len(second) || len(first) != len(third) {
		t.Fatalf("lengths differ: %d %d %d", len(first), len(second), len(third))
	}
	for i := range first {
		if !first[i].Equal(second[i]) || !first[i].Equal(third[i]) {
			t.Fatalf("slot %d differs between runs", i)
		}
	}
}

func TestGenerateSlots_DSTMaintainsLocalHour(t *testing.T) {
	loc, err := time.LoadLocation("America/New_York")
	if err != nil {
		t.Fatalf("LoadLocation error: %v", err)
	}
	tp := mondayTemplate()
	tp.Timezone = "America/New_York"
	tp.DurationMinutes = 60

	slots := collect(t, tp, QueryWindow{RangeStart: MustDate("2026-03-02"), RangeEnd: MustDate("2026-03-17")})
	if len(slots) != 3 {
		t.Fatalf("len(slots) = %d, want 3", len(slots))
	}
	for _, s := range slots {
		if s.Start.In(loc).Hour() != 9 {
			t.Fatalf("local hour = %d, want 9 (start=%v)", s.Start.In(loc).Hour(), s.Start)
		}
	}
	if slots[0].Start.Hour() == slots[1].Start.Hour() {
		t.Fatalf("UTC hour should shift across the transition: %v %v", slots[0].Start, slots[1].Start)
	}
}

func TestGenerateSlots_SkipsNonexistentLocalTimes(t *testing.T) {
	tp := AvailabilityTemplate{
		ProviderID: "p1",
		Timezone:   "America/New_York",
		WeeklyHours: map[time.Weekday][]Window{
			time.Sunday: {{Start: MustClockTime("01:00"), End: MustClockTime("04:00")}},
		},
		DurationMinutes: 60,
	}

	slots := collect(t, tp, QueryWindow{RangeStart: MustDate("2026-03-08"), RangeEnd: MustDate("2026-03-09")})
	want := []TimeSlot{
		{Start: time.Date(2026, 3, 8, 6, 0, 0, 0, time.UTC), End: time.Date(2026, 3, 8, 7, 0, 0, 0, time.UTC)},
		{Start: time.Date(2026, 3, 8, 7, 0, 0, 0, time.UTC), End: time.Date(2026, 3, 8, 8, 0, 0, 0, time.UTC)},
	}
	if len(slots) != len(want) {
		t.Fatalf("len(slots) = %d, want %d (%v)", len(slots), len(want), slots)
	}
	for i := range want {
		if !slots[i].Equal(want[i]) {
			t.Fatalf("slots[%d] = %s, want %s", i, slots[i], want[i])
		}
	}
}

func TestGenerateSlots_EdgeCases(t *testing.T) {
	w := QueryWindow{RangeStart: MustDate("2026-01-05"), RangeEnd: MustDate("2026-01-12")}

	t.Run("window shorter than duration", func(t *testing.T) {
		tp := mondayTemplate()
		tp.DurationMinutes = 90
		if got := collect(t, tp, w); len(got) != 0 {
			t.Fatalf("len(slots) = %d, want 0", len(got))
		}
	})

	t.Run("no windows", func(t *testing.T) {
		tp := mondayTemplate()
		tp.WeeklyHours = nil
		if got := collect(t, tp, w); len(got) != 0 {
			t.Fatalf("len(slots) = %d, want 0", len(got))
		}
	})

	t.Run("blocked date", func(t *testing.T) {
		tp := mondayTemplate()
		tp.BlockedDates = []Date{MustDate("2026-01-05")}
		if got := collect(t, tp, w); len(got) != 0 {
			t.Fatalf("len(slots) = %d, want 0", len(got))
		}
	})

	t.Run("override opens a closed day", func(t *testing.T) {
		tp := mondayTemplate()
		tp.DateOverrides = map[Date][]Window{
			MustDate("2026-01-07"): {{Start: MustClockTime("12:00"), End: MustClockTime("13:00")}},
		}
		if got := collect(t, tp, w); len(got) != 4 {
			t.Fatalf("len(slots) = %d, want 4", len(got))
		}
	})

	t.Run("empty range", func(t *testing.T) {
		got := collect(t, mondayTemplate(), QueryWindow{RangeStart: MustDate("2026-01-05"), RangeEnd: MustDate("2026-01-05")})
		if len(got) != 0 {
			t.Fatalf("len(slots) = %d, want 0", len(got))
		}
	})

	t.Run("inverted range", func(t *testing.T) {
		_, err := GenerateSlots(mondayTemplate(), QueryWindow{RangeStart: MustDate("2026-01-06"), RangeEnd: MustDate("2026-01-05")})
		if !errors.Is(err, ErrInvalidTimeRange) {
			t.Fatalf("err = %v, want %v", err, ErrInvalidTimeRange)
		}
	})

	t.Run("invalid template", func(t *testing.T) {
		tp := mondayTemplate()
		tp.DurationMinutes = 0
		_, err := GenerateSlots(tp, w)
		if !errors.Is(err, ErrInvalidTemplate) {
			t.Fatalf("err = %v, want %v", err, ErrInvalidTemplate)
		}
	})
}

func TestCheckBookable(t *testing.T) {
	now := time.Date(2026, 1, 1, 8, 0, 0, 0, time.UTC)
	aligned := TimeSlot{Start: time.Date(2026, 1, 5, 9, 30, 0, 0, time.UTC), End: time.Date(2026, 1, 5, 10, 0, 0, 0, time.UTC)}

	if err := CheckBookable(mondayTemplate(), aligned, now); err != nil {
		t.Fatalf("CheckBookable error: %v", err)
	}

	tests := []struct {
		name string
		tp   func() AvailabilityTemplate
		slot TimeSlot
		now  time.Time
	}{
		{
			name: "misaligned start",
			tp:   mondayTemplate,
			slot: TimeSlot{Start: time.Date(2026, 1, 5, 9, 5, 0, 0, time.UTC), End: time.Date(2026, 1, 5, 9, 35, 0, 0, time.UTC)},
			now:  now,
		},
		{
			name: "wrong length",
			tp:   mondayTemplate,
			slot: TimeSlot{Start: time.Date(2026, 1, 5, 9, 0, 0, 0, time.UTC), End: time.Date(2026, 1, 5, 10, 0, 0, 0, time.UTC)},
			now:  now,
		},
		{
			name: "wrong weekday",
			tp:   mondayTemplate,
			slot: TimeSlot{Start: time.Date(2026, 1, 6, 9, 0, 0, 0, time.UTC), End: time.Date(2026, 1, 6, 9, 30, 0, 0, time.UTC)},
			now:  now,
		},
		{
			name: "in the past",
			tp:   mondayTemplate,
			slot: aligned,
			now:  time.Date(2026, 1, 5, 12, 0, 0, 0, time.UTC),
		},
		{
			name: "inside minimum notice",
			tp: func() AvailabilityTemplate {
				tp := mondayTemplate()
				tp.MinNoticeMinutes = 120
				return tp
			},
			slot: aligned,
			now:  time.Date(2026, 1, 5, 8, 0, 0, 0, time.UTC),
		},
		{
			name: "beyond horizon",
			tp: func() AvailabilityTemplate {
				tp := mondayTemplate()
				tp.HorizonDays = 2
				return tp
			},
			slot: aligned,
			now:  now,
		},
		{
			name: "archived",
			tp: func() AvailabilityTemplate {
				tp := mondayTemplate()
				at := now
				tp.ArchivedAt = &at
				return tp
			},
			slot: aligned,
			now:  now,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := CheckBookable(tt.tp(), tt.slot, tt.now)
			if !errors.Is(err, ErrInvalidSlot) {
				t.Fatalf("err = %v, want %v", err, ErrInvalidSlot)
			}
		})
	}
}
