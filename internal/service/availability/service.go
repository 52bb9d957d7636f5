package availability

import (
	"context"
	"log/slog"
	"strings"
	"time"

	"github.com/cockroachdb/errors"

	"memberbook/backend/internal/clock"
	"memberbook/backend/internal/domain"
	"memberbook/backend/internal/service"
	"memberbook/backend/internal/store"
)

// MaxQueryDays bounds a single availability query.
const MaxQueryDays = 62

type BookingLister interface {
	ListActiveBookings(ctx context.Context, providerID string, windowStart, windowEnd time.Time) ([]domain.Booking, error)
}

type Service struct {
	templates store.TemplateRepository
	bookings  BookingLister
	clock     clock.Clock
	log       *slog.Logger
}

func NewService(templates store.TemplateRepository, bookings BookingLister, clk clock.Clock, log *slog.Logger) *Service {
	if clk == nil {
		clk = clock.NewRealClock()
	}
	if log == nil {
		log = slog.Default()
	}
	return &Service{
		templates: templates,
		bookings:  bookings,
		clock:     clk,
		log:       log.With(slog.String("component", "availability")),
	}
}

// PutTemplate validates tpl and replaces the provider's template with it.
// A put on an archived template restores it.
func (s *Service) PutTemplate(ctx context.Context, tpl domain.AvailabilityTemplate) (domain.AvailabilityTemplate, error) {
	tpl.ProviderID = strings.TrimSpace(tpl.ProviderID)
	tpl.Timezone = strings.TrimSpace(tpl.Timezone)
	tpl.Currency = strings.ToLower(strings.TrimSpace(tpl.Currency))
	tpl.ArchivedAt = nil
	if err := tpl.Validate(); err != nil {
		return domain.AvailabilityTemplate{}, err
	}

	saved, err := s.templates.PutTemplate(ctx, tpl)
	if err != nil {
		return domain.AvailabilityTemplate{}, service.StoreFailure(err, "put template")
	}
	s.log.InfoContext(ctx, "template replaced",
		slog.String("provider_id", saved.ProviderID),
		slog.String("timezone", saved.Timezone),
		slog.Int("duration_minutes", saved.DurationMinutes),
	)
	return saved, nil
}

func (s *Service) GetTemplate(ctx context.Context, providerID string) (domain.AvailabilityTemplate, error) {
	if strings.TrimSpace(providerID) == "" {
		return domain.AvailabilityTemplate{}, service.Invalid("provider_id is required")
	}
	tpl, err := s.templates.GetTemplate(ctx, providerID)
	if errors.Is(err, store.ErrNotFound) {
		return domain.AvailabilityTemplate{}, err
	}
	if err != nil {
		return domain.AvailabilityTemplate{}, service.StoreFailure(err, "get template")
	}
	return tpl, nil
}

// ArchiveTemplate stops the provider from offering new slots. Existing bookings keep
// referring to the template, so it is never removed.
func (s *Service) ArchiveTemplate(ctx context.Context, providerID string) (domain.AvailabilityTemplate, error) {
	if strings.TrimSpace(providerID) == "" {
		return domain.AvailabilityTemplate{}, service.Invalid("provider_id is required")
	}
	tpl, err := s.templates.ArchiveTemplate(ctx, providerID, s.clock.Now())
	if errors.Is(err, store.ErrNotFound) {
		return domain.AvailabilityTemplate{}, err
	}
	if err != nil {
		return domain.AvailabilityTemplate{}, service.StoreFailure(err, "archive template")
	}
	s.log.InfoContext(ctx, "template archived", slog.String("provider_id", providerID))
	return tpl, nil
}

// ListAvailability returns the bookable slots of the provider in the query window,
// ordered by start.
func (s *Service) ListAvailability(ctx context.Context, w domain.QueryWindow) ([]domain.TimeSlot, error) {
	if strings.TrimSpace(w.ProviderID) == "" {
		return nil, service.Invalid("provider_id is required")
	}
	if w.RangeStart.IsZero() || w.RangeEnd.IsZero() {
		return nil, service.Invalid("from and to are required")
	}
	if w.RangeEnd.Before(w.RangeStart) {
		return nil, service.Invalid("to must not be before from")
	}
	if w.RangeStart.DaysUntil(w.RangeEnd) > MaxQueryDays {
		return nil, service.Invalid("query window must not exceed %d days", MaxQueryDays)
	}

	tpl, err := s.GetTemplate(ctx, w.ProviderID)
	if err != nil {
		return nil, err
	}
	if tpl.Archived() {
		return []domain.TimeSlot{}, nil
	}

	candidates, err := domain.GenerateSlots(tpl, w)
	if err != nil {
		return nil, err
	}
	loc, err := tpl.Location()
	if err != nil {
		return nil, err
	}

	buffer := tpl.Buffer()
	spanStart := domain.ToUTC(w.RangeStart, 0, loc).Add(-buffer)
	spanEnd := domain.ToUTC(w.RangeEnd, 0, loc).Add(buffer)
	existing, err := s.bookings.ListActiveBookings(ctx, w.ProviderID, spanStart, spanEnd)
	if err != nil {
		return nil, service.StoreFailure(err, "list active bookings")
	}

	now := s.clock.Now()
	out := []domain.TimeSlot{}
	for slot := range domain.FilterAvailable(candidates, existing, buffer, now) {
		if tpl.Offerable(slot, now) {
			out = append(out, slot)
		}
	}
	return out, nil
}
