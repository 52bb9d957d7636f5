package grpc

import (
	"fmt"
	"strings"
	"time"

	"google.golang.org/protobuf/types/known/timestamppb"

	bookingsv1 "memberbook/backend/internal/api/bookingsv1"
	"memberbook/backend/internal/domain"
	"memberbook/backend/internal/service"
)

var weekdayNames = map[string]time.Weekday{
	"sunday":    time.Sunday,
	"monday":    time.Monday,
	"tuesday":   time.Tuesday,
	"wednesday": time.Wednesday,
	"thursday":  time.Thursday,
	"friday":    time.Friday,
	"saturday":  time.Saturday,
}

func fromProtoTemplate(providerID string, in *bookingsv1.Template) (domain.AvailabilityTemplate, error) {
	tpl := domain.AvailabilityTemplate{
		ProviderID:       providerID,
		Timezone:         in.Timezone,
		WeeklyHours:      make(map[time.Weekday][]domain.Window, len(in.WeeklyHours)),
		DurationMinutes:  int(in.DurationMinutes),
		BufferMinutes:    int(in.BufferMinutes),
		MinNoticeMinutes: int(in.MinNoticeMinutes),
		HorizonDays:      int(in.HorizonDays),
		PriceAmount:      in.PriceAmount,
		Currency:         strings.ToLower(strings.TrimSpace(in.Currency)),
	}

	for name, windows := range in.WeeklyHours {
		wd, ok := weekdayNames[strings.ToLower(strings.TrimSpace(name))]
		if !ok {
			return domain.AvailabilityTemplate{}, service.Invalid("weekly_hours: unknown weekday %q", name)
		}
		parsed, err := fromProtoWindows(windows)
		if err != nil {
			return domain.AvailabilityTemplate{}, service.Invalid("weekly_hours[%s]: %v", name, err)
		}
		tpl.WeeklyHours[wd] = parsed
	}

	if len(in.DateOverrides) > 0 {
		tpl.DateOverrides = make(map[domain.Date][]domain.Window, len(in.DateOverrides))
		for raw, windows := range in.DateOverrides {
			d, err := domain.ParseDate(raw)
			if err != nil {
				return domain.AvailabilityTemplate{}, service.Invalid("date_overrides: %v", err)
			}
			parsed, err := fromProtoWindows(windows)
			if err != nil {
				return domain.AvailabilityTemplate{}, service.Invalid("date_overrides[%s]: %v", raw, err)
			}
			tpl.DateOverrides[d] = parsed
		}
	}

	for _, raw := range in.BlockedDates {
		d, err := domain.ParseDate(raw)
		if err != nil {
			return domain.AvailabilityTemplate{}, service.Invalid("blocked_dates: %v", err)
		}
		tpl.BlockedDates = append(tpl.BlockedDates, d)
	}
	return tpl, nil
}

func fromProtoWindows(in []*bookingsv1.Window) ([]domain.Window, error) {
	out := make([]domain.Window, 0, len(in))
	for _, w := range in {
		if w == nil {
			return nil, fmt.Errorf("window is required")
		}
		start, err := domain.ParseClockTime(w.Start)
		if err != nil {
			return nil, err
		}
		end, err := domain.ParseClockTime(w.End)
		if err != nil {
			return nil, err
		}
		out = append(out, domain.Window{Start: start, End: end})
	}
	return out, nil
}

func toProtoTemplate(t domain.AvailabilityTemplate) *bookingsv1.Template {
	out := &bookingsv1.Template{
		ProviderId:       t.ProviderID,
		Timezone:         t.Timezone,
		WeeklyHours:      make(map[string][]*bookingsv1.Window, len(t.WeeklyHours)),
		DurationMinutes:  int32(t.DurationMinutes),
		BufferMinutes:    int32(t.BufferMinutes),
		MinNoticeMinutes: int32(t.MinNoticeMinutes),
		HorizonDays:      int32(t.HorizonDays),
		PriceAmount:      t.PriceAmount,
		Currency:         t.Currency,
		CreatedAt:        optionalTimestamp(t.CreatedAt),
		UpdatedAt:        optionalTimestamp(t.UpdatedAt),
	}
	for wd, windows := range t.WeeklyHours {
		out.WeeklyHours[strings.ToLower(wd.String())] = toProtoWindows(windows)
	}
	if len(t.DateOverrides) > 0 {
		out.DateOverrides = make(map[string][]*bookingsv1.Window, len(t.DateOverrides))
		for d, windows := range t.DateOverrides {
			out.DateOverrides[d.String()] = toProtoWindows(windows)
		}
	}
	for _, d := range t.BlockedDates {
		out.BlockedDates = append(out.BlockedDates, d.String())
	}
	if t.ArchivedAt != nil {
		out.ArchivedAt = timestamppb.New(*t.ArchivedAt)
	}
	return out
}

func toProtoWindows(in []domain.Window) []*bookingsv1.Window {
	out := make([]*bookingsv1.Window, 0, len(in))
	for _, w := range in {
		out = append(out, &bookingsv1.Window{Start: w.Start.String(), End: w.End.String()})
	}
	return out
}

func toProtoBooking(b domain.Booking) *bookingsv1.Booking {
	return &bookingsv1.Booking{
		Id:          b.ID.String(),
		ProviderId:  b.ProviderID,
		CustomerId:  b.CustomerID,
		StartTime:   timestamppb.New(b.StartTime),
		EndTime:     timestamppb.New(b.EndTime),
		PriceAmount: b.PriceAmount,
		Currency:    b.Currency,
		State:       string(b.State),
		PaymentRef:  b.PaymentReference(),
		ExpiresAt:   optionalTimestamp(b.ExpiresAt),
		CreatedAt:   optionalTimestamp(b.CreatedAt),
		UpdatedAt:   optionalTimestamp(b.UpdatedAt),
	}
}

func toProtoTransition(t domain.BookingTransition) *bookingsv1.Transition {
	return &bookingsv1.Transition{
		FromState:  string(t.FromState),
		ToState:    string(t.ToState),
		Reason:     t.Reason,
		OccurredAt: timestamppb.New(t.OccurredAt),
	}
}

func optionalTimestamp(t time.Time) *timestamppb.Timestamp {
	if t.IsZero() {
		return nil
	}
	return timestamppb.New(t)
}
