package store

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"

	"memberbook/backend/internal/domain"
)

// ReasonHoldPlaced is recorded on the initial entry of every booking's history.
const ReasonHoldPlaced = "hold_placed"

// BookingTx is the set of row operations a backend runs inside one transaction
// (or critical section) when placing holds and moving bookings between states.
type BookingTx interface {
	FindBooking(ctx context.Context, id uuid.UUID) (domain.Booking, error)
	ReleaseExpiredHolds(ctx context.Context, providerID string, span domain.TimeSlot, now time.Time) ([]domain.Booking, error)
	ListBlocking(ctx context.Context, providerID string, span domain.TimeSlot) ([]domain.Booking, error)
	InsertBooking(ctx context.Context, b domain.Booking) (domain.Booking, error)
	// UpdateState moves the booking from one state to another. Confirming a pending
	// hold also requires its expiry to be after at.
	UpdateState(ctx context.Context, id uuid.UUID, from, to domain.BookingState, at time.Time) (domain.Booking, error)
	RecordTransition(ctx context.Context, t domain.BookingTransition) error
}

// PlaceHold runs the hold protocol on tx: replay detection for reused ids (a replay
// of a hold that has since expired or been canceled fails with ErrReleased), lazy
// release of expired holds in the way, the overlap check and the insert.
// The backend's insert must itself reject overlaps so concurrent callers cannot both win.
func PlaceHold(ctx context.Context, tx BookingTx, b domain.Booking, now time.Time) (HoldResult, error) {
	existing, err := tx.FindBooking(ctx, b.ID)
	switch {
	case err == nil:
		return Replay(existing, b, now)
	case !errors.Is(err, ErrNotFound):
		return HoldResult{}, err
	}

	span := b.BlockedRange()
	released, err := tx.ReleaseExpiredHolds(ctx, b.ProviderID, span, now)
	if err != nil {
		return HoldResult{}, err
	}
	for _, r := range released {
		if err := tx.RecordTransition(ctx, domain.BookingTransition{
			BookingID:  r.ID,
			FromState:  domain.BookingPending,
			ToState:    domain.BookingCanceled,
			Reason:     domain.ReasonHoldExpired,
			OccurredAt: now,
		}); err != nil {
			return HoldResult{}, err
		}
	}

	blocking, err := tx.ListBlocking(ctx, b.ProviderID, span)
	if err != nil {
		return HoldResult{}, err
	}
	if len(blocking) > 0 {
		return HoldResult{}, ErrConflict
	}

	inserted, err := tx.InsertBooking(ctx, b)
	if err != nil {
		return HoldResult{}, err
	}
	if err := tx.RecordTransition(ctx, domain.BookingTransition{
		BookingID:  inserted.ID,
		ToState:    domain.BookingPending,
		Reason:     ReasonHoldPlaced,
		OccurredAt: now,
	}); err != nil {
		return HoldResult{}, err
	}

	return HoldResult{Booking: inserted, Released: released}, nil
}

// Replay resolves a hold request whose id is already stored as existing.
func Replay(existing, requested domain.Booking, now time.Time) (HoldResult, error) {
	if !existing.SameRequest(requested) {
		return HoldResult{}, ErrIdempotencyConflict
	}
	if !existing.Blocks(now) && existing.State != domain.BookingCompleted {
		return HoldResult{}, ErrReleased
	}
	return HoldResult{Booking: existing}, nil
}

// ApplyTransition moves a booking from one state to another if it is still in from.
// It returns ErrNotFound for unknown ids and ErrStaleState when another writer got there first
// or when a hold being confirmed expired at or before at.
func ApplyTransition(ctx context.Context, tx BookingTx, id uuid.UUID, from, to domain.BookingState, reason string, at time.Time) (domain.Booking, error) {
	if !domain.CanTransition(from, to) {
		return domain.Booking{}, domain.ErrIllegalTransition
	}

	b, err := tx.UpdateState(ctx, id, from, to, at)
	if errors.Is(err, ErrStaleState) {
		if _, findErr := tx.FindBooking(ctx, id); findErr != nil {
			return domain.Booking{}, findErr
		}
		return domain.Booking{}, ErrStaleState
	}
	if err != nil {
		return domain.Booking{}, err
	}

	if err := tx.RecordTransition(ctx, domain.BookingTransition{
		BookingID:  id,
		FromState:  from,
		ToState:    to,
		Reason:     reason,
		OccurredAt: at,
	}); err != nil {
		return domain.Booking{}, err
	}
	return b, nil
}
