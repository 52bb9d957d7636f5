package store

import (
	"context"
	"time"

	"github.com/google/uuid"

	"memberbook/backend/internal/domain"
)

// HoldResult is the outcome of a successful PlaceHold. Released lists expired holds
// that were swept out of the way while the new hold was placed.
type HoldResult struct {
	Booking  domain.Booking
	Released []domain.Booking
}

type TemplateRepository interface {
	GetTemplate(ctx context.Context, providerID string) (domain.AvailabilityTemplate, error)
	PutTemplate(ctx context.Context, tpl domain.AvailabilityTemplate) (domain.AvailabilityTemplate, error)
	ArchiveTemplate(ctx context.Context, providerID string, at time.Time) (domain.AvailabilityTemplate, error)
}

type BookingRepository interface {
	// PlaceHold inserts a pending booking unless another live booking of the same
	// provider overlaps its blocked range, in which case it returns ErrConflict.
	PlaceHold(ctx context.Context, b domain.Booking, now time.Time) (HoldResult, error)
	Transition(ctx context.Context, id uuid.UUID, from, to domain.BookingState, reason string, at time.Time) (domain.Booking, error)
	AttachPaymentRef(ctx context.Context, id uuid.UUID, ref string) (domain.Booking, error)

	GetBooking(ctx context.Context, id uuid.UUID) (domain.Booking, error)
	GetBookingByPaymentRef(ctx context.Context, ref string) (domain.Booking, error)
	ListBookings(ctx context.Context, providerID string, windowStart, windowEnd time.Time) ([]domain.Booking, error)
	ListActiveBookings(ctx context.Context, providerID string, windowStart, windowEnd time.Time) ([]domain.Booking, error)
	ListExpiredHolds(ctx context.Context, now time.Time, limit int) ([]domain.Booking, error)
	ListElapsed(ctx context.Context, now time.Time, limit int) ([]domain.Booking, error)
	ListTransitions(ctx context.Context, id uuid.UUID) ([]domain.BookingTransition, error)
}
