package domain

import (
	"encoding/json"
	"errors"
	"testing"
	"time"
)

func mondayTemplate() AvailabilityTemplate {
	return AvailabilityTemplate{
		ProviderID: "p1",
		Timezone:   "UTC",
		WeeklyHours: map[time.Weekday][]Window{
			time.Monday: {{Start: MustClockTime("09:00"), End: MustClockTime("10:00")}},
		},
		DurationMinutes: 30,
	}
}

func TestAvailabilityTemplateValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*AvailabilityTemplate)
	}{
		{"missing provider", func(tp *AvailabilityTemplate) { tp.ProviderID = " " }},
		{"zero duration", func(tp *AvailabilityTemplate) { tp.DurationMinutes = 0 }},
		{"negative buffer", func(tp *AvailabilityTemplate) { tp.BufferMinutes = -1 }},
		{"negative notice", func(tp *AvailabilityTemplate) { tp.MinNoticeMinutes = -5 }},
		{"unknown zone", func(tp *AvailabilityTemplate) { tp.Timezone = "Not/AZone" }},
		{"empty zone", func(tp *AvailabilityTemplate) { tp.Timezone = "" }},
		{"weekday out of range", func(tp *AvailabilityTemplate) {
			tp.WeeklyHours[time.Weekday(7)] = []Window{{Start: 60, End: 120}}
		}},
		{"inverted window", func(tp *AvailabilityTemplate) {
			tp.WeeklyHours[time.Tuesday] = []Window{{Start: MustClockTime("11:00"), End: MustClockTime("10:00")}}
		}},
		{"overlapping windows", func(tp *AvailabilityTemplate) {
			tp.WeeklyHours[time.Tuesday] = []Window{
				{Start: MustClockTime("09:00"), End: MustClockTime("11:00")},
				{Start: MustClockTime("10:30"), End: MustClockTime("12:00")},
			}
		}},
		{"unsorted windows", func(tp *AvailabilityTemplate) {
			tp.WeeklyHours[time.Tuesday] = []Window{
				{Start: MustClockTime("13:00"), End: MustClockTime("14:00")},
				{Start: MustClockTime("09:00"), End: MustClockTime("10:00")},
			}
		}},
		{"negative price", func(tp *AvailabilityTemplate) { tp.PriceAmount = -100 }},
		{"long currency", func(tp *AvailabilityTemplate) { tp.Currency = "dollars" }},
		{"bad override", func(tp *AvailabilityTemplate) {
			tp.DateOverrides = map[Date][]Window{MustDate("2026-01-06"): {{Start: 600, End: 600}}}
		}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tp := mondayTemplate()
			tt.mutate(&tp)
			err := tp.Validate()
			if !errors.Is(err, ErrInvalidTemplate) {
				t.Fatalf("err = %v, want %v", err, ErrInvalidTemplate)
			}
		})
	}
}

func TestAvailabilityTemplateValidate_AcceptsAdjacentWindowsAndEndOfDay(t *testing.T) {
	tp := mondayTemplate()
	tp.WeeklyHours[time.Friday] = []Window{
		{Start: MustClockTime("09:00"), End: MustClockTime("12:00")},
		{Start: MustClockTime("12:00"), End: MustClockTime("24:00")},
	}
	tp.BufferMinutes = 15
	if err := tp.Validate(); err != nil {
		t.Fatalf("Validate error: %v", err)
	}
}

func TestAvailabilityTemplate_WindowsOnPrecedence(t *testing.T) {
	tp := mondayTemplate()
	override := []Window{{Start: MustClockTime("14:00"), End: MustClockTime("15:00")}}
	tp.DateOverrides = map[Date][]Window{
		MustDate("2026-01-12"): override,
		MustDate("2026-01-19"): override,
	}
	tp.BlockedDates = []Date{MustDate("2026-01-19")}

	if got := tp.WindowsOn(MustDate("2026-01-05")); len(got) != 1 || got[0].Start != MustClockTime("09:00") {
		t.Fatalf("weekly windows = %v", got)
	}
	if got := tp.WindowsOn(MustDate("2026-01-12")); len(got) != 1 || got[0].Start != MustClockTime("14:00") {
		t.Fatalf("override windows = %v", got)
	}
	if got := tp.WindowsOn(MustDate("2026-01-19")); got != nil {
		t.Fatalf("blocked date windows = %v, want none", got)
	}
}

func TestAvailabilityTemplate_Rate(t *testing.T) {
	tp := mondayTemplate()
	if amount, cur := tp.Rate(); amount != 0 || cur != DefaultCurrency {
		t.Fatalf("Rate() = %d %q, want 0 %q", amount, cur, DefaultCurrency)
	}

	tp.PriceAmount = 4500
	tp.Currency = " GBP "
	if err := tp.Validate(); err != nil {
		t.Fatalf("Validate error: %v", err)
	}
	if amount, cur := tp.Rate(); amount != 4500 || cur != "gbp" {
		t.Fatalf("Rate() = %d %q, want 4500 \"gbp\"", amount, cur)
	}
}

func TestAvailabilityTemplate_JSONShape(t *testing.T) {
	raw := `{
		"provider_id": "p1",
		"timezone": "Europe/London",
		"weekly_hours": {"1": [{"start": "09:00", "end": "10:00"}]},
		"date_overrides": {"2026-01-13": [{"start": "08:00", "end": "09:00"}]},
		"blocked_dates": ["2026-01-19"],
		"duration_minutes": 30,
		"buffer_minutes": 10
	}`

	var tp AvailabilityTemplate
	if err := json.Unmarshal([]byte(raw), &tp); err != nil {
		t.Fatalf("Unmarshal error: %v", err)
	}
	if err := tp.Validate(); err != nil {
		t.Fatalf("Validate error: %v", err)
	}
	if got := tp.WeeklyHours[time.Monday][0].End; got != MustClockTime("10:00") {
		t.Fatalf("monday end = %s, want 10:00", got)
	}
	if len(tp.DateOverrides[MustDate("2026-01-13")]) != 1 {
		t.Fatalf("override not decoded: %v", tp.DateOverrides)
	}
	if !tp.IsBlocked(MustDate("2026-01-19")) {
		t.Fatalf("blocked date not decoded: %v", tp.BlockedDates)
	}
}
