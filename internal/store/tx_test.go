package store

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"

	"memberbook/backend/internal/domain"
)

type fakeBookingTx struct {
	findFn      func(ctx context.Context, id uuid.UUID) (domain.Booking, error)
	releaseFn   func(ctx context.Context, providerID string, span domain.TimeSlot, now time.Time) ([]domain.Booking, error)
	blockingFn  func(ctx context.Context, providerID string, span domain.TimeSlot) ([]domain.Booking, error)
	insertFn    func(ctx context.Context, b domain.Booking) (domain.Booking, error)
	updateFn    func(ctx context.Context, id uuid.UUID, from, to domain.BookingState, at time.Time) (domain.Booking, error)
	transitions []domain.BookingTransition
}

func (f *fakeBookingTx) FindBooking(ctx context.Context, id uuid.UUID) (domain.Booking, error) {
	if f.findFn == nil {
		return domain.Booking{}, ErrNotFound
	}
	return f.findFn(ctx, id)
}

func (f *fakeBookingTx) ReleaseExpiredHolds(ctx context.Context, providerID string, span domain.TimeSlot, now time.Time) ([]domain.Booking, error) {
	if f.releaseFn == nil {
		return nil, nil
	}
	return f.releaseFn(ctx, providerID, span, now)
}

func (f *fakeBookingTx) ListBlocking(ctx context.Context, providerID string, span domain.TimeSlot) ([]domain.Booking, error) {
	if f.blockingFn == nil {
		return nil, nil
	}
	return f.blockingFn(ctx, providerID, span)
}

func (f *fakeBookingTx) InsertBooking(ctx context.Context, b domain.Booking) (domain.Booking, error) {
	if f.insertFn == nil {
		panic("InsertBooking not configured")
	}
	return f.insertFn(ctx, b)
}

func (f *fakeBookingTx) UpdateState(ctx context.Context, id uuid.UUID, from, to domain.BookingState, at time.Time) (domain.Booking, error) {
	if f.updateFn == nil {
		panic("UpdateState not configured")
	}
	return f.updateFn(ctx, id, from, to, at)
}

func (f *fakeBookingTx) RecordTransition(ctx context.Context, t domain.BookingTransition) error {
	f.transitions = append(f.transitions, t)
	return nil
}

func testHold() domain.Booking {
	start := time.Date(2026, 1, 5, 9, 0, 0, 0, time.UTC)
	return domain.Booking{
		ID:           uuid.MustParse("00000000-0000-0000-0000-000000000501"),
		ProviderID:   "p1",
		CustomerID:   "c1",
		StartTime:    start,
		EndTime:      start.Add(30 * time.Minute),
		BlockedUntil: start.Add(40 * time.Minute),
		State:        domain.BookingPending,
	}
}

func TestPlaceHold(t *testing.T) {
	now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)

	t.Run("blocked range is checked with the stored buffer", func(t *testing.T) {
		var gotSpan domain.TimeSlot
		tx := &fakeBookingTx{
			blockingFn: func(ctx context.Context, providerID string, span domain.TimeSlot) ([]domain.Booking, error) {
				gotSpan = span
				return []domain.Booking{{ID: uuid.New()}}, nil
			},
		}
		_, err := PlaceHold(context.Background(), tx, testHold(), now)
		if err != ErrConflict {
			t.Fatalf("err = %v, want %v", err, ErrConflict)
		}
		if gotSpan.End.Sub(gotSpan.Start) != 40*time.Minute {
			t.Fatalf("span = %s, want 40m", gotSpan)
		}
	})

	t.Run("released holds are recorded before the insert", func(t *testing.T) {
		released := domain.Booking{ID: uuid.MustParse("00000000-0000-0000-0000-000000000502"), State: domain.BookingCanceled}
		tx := &fakeBookingTx{
			releaseFn: func(ctx context.Context, providerID string, span domain.TimeSlot, now time.Time) ([]domain.Booking, error) {
				return []domain.Booking{released}, nil
			},
			insertFn: func(ctx context.Context, b domain.Booking) (domain.Booking, error) {
				return b, nil
			},
		}
		res, err := PlaceHold(context.Background(), tx, testHold(), now)
		if err != nil {
			t.Fatalf("PlaceHold error: %v", err)
		}
		if len(res.Released) != 1 || res.Released[0].ID != released.ID {
			t.Fatalf("released = %v", res.Released)
		}
		if len(tx.transitions) != 2 {
			t.Fatalf("len(transitions) = %d, want 2", len(tx.transitions))
		}
		if tx.transitions[0].Reason != domain.ReasonHoldExpired || tx.transitions[1].Reason != ReasonHoldPlaced {
			t.Fatalf("transition reasons = %q, %q", tx.transitions[0].Reason, tx.transitions[1].Reason)
		}
	})

	t.Run("replay returns the stored booking", func(t *testing.T) {
		stored := testHold()
		stored.State = domain.BookingConfirmed
		tx := &fakeBookingTx{
			findFn: func(ctx context.Context, id uuid.UUID) (domain.Booking, error) {
				return stored, nil
			},
		}
		res, err := PlaceHold(context.Background(), tx, testHold(), now)
		if err != nil {
			t.Fatalf("PlaceHold error: %v", err)
		}
		if res.Booking.State != domain.BookingConfirmed {
			t.Fatalf("state = %s, want %s", res.Booking.State, domain.BookingConfirmed)
		}
	})

	t.Run("replay of a released hold fails", func(t *testing.T) {
		canceled := testHold()
		canceled.State = domain.BookingCanceled
		canceled.ExpiresAt = now.Add(time.Hour)
		expired := testHold()
		expired.ExpiresAt = now

		for _, stored := range []domain.Booking{canceled, expired} {
			tx := &fakeBookingTx{
				findFn: func(ctx context.Context, id uuid.UUID) (domain.Booking, error) {
					return stored, nil
				},
			}
			if _, err := PlaceHold(context.Background(), tx, testHold(), now); err != ErrReleased {
				t.Fatalf("state %s: err = %v, want %v", stored.State, err, ErrReleased)
			}
		}
	})

	t.Run("replay of a live hold returns it", func(t *testing.T) {
		stored := testHold()
		stored.ExpiresAt = now.Add(time.Minute)
		tx := &fakeBookingTx{
			findFn: func(ctx context.Context, id uuid.UUID) (domain.Booking, error) {
				return stored, nil
			},
		}
		res, err := PlaceHold(context.Background(), tx, testHold(), now)
		if err != nil {
			t.Fatalf("PlaceHold error: %v", err)
		}
		if res.Booking.ID != stored.ID || res.Booking.State != domain.BookingPending {
			t.Fatalf("booking = %+v", res.Booking)
		}
	})

	t.Run("lookup failure aborts", func(t *testing.T) {
		boom := errors.New("boom")
		tx := &fakeBookingTx{
			findFn: func(ctx context.Context, id uuid.UUID) (domain.Booking, error) {
				return domain.Booking{}, boom
			},
		}
		if _, err := PlaceHold(context.Background(), tx, testHold(), now); err != boom {
			t.Fatalf("err = %v, want %v", err, boom)
		}
	})
}

func TestApplyTransition_DistinguishesMissingFromStale(t *testing.T) {
	id := uuid.MustParse("00000000-0000-0000-0000-000000000503")
	at := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)

	stale := &fakeBookingTx{
		updateFn: func(ctx context.Context, id uuid.UUID, from, to domain.BookingState, at time.Time) (domain.Booking, error) {
			return domain.Booking{}, ErrStaleState
		},
		findFn: func(ctx context.Context, id uuid.UUID) (domain.Booking, error) {
			return domain.Booking{ID: id, State: domain.BookingCanceled}, nil
		},
	}
	if _, err := ApplyTransition(context.Background(), stale, id, domain.BookingPending, domain.BookingConfirmed, "x", at); err != ErrStaleState {
		t.Fatalf("err = %v, want %v", err, ErrStaleState)
	}

	missing := &fakeBookingTx{
		updateFn: func(ctx context.Context, id uuid.UUID, from, to domain.BookingState, at time.Time) (domain.Booking, error) {
			return domain.Booking{}, ErrStaleState
		},
	}
	if _, err := ApplyTransition(context.Background(), missing, id, domain.BookingPending, domain.BookingConfirmed, "x", at); err != ErrNotFound {
		t.Fatalf("err = %v, want %v", err, ErrNotFound)
	}

	var gotAt time.Time
	ok := &fakeBookingTx{
		updateFn: func(ctx context.Context, id uuid.UUID, from, to domain.BookingState, at time.Time) (domain.Booking, error) {
			gotAt = at
			return domain.Booking{ID: id, State: to}, nil
		},
	}
	b, err := ApplyTransition(context.Background(), ok, id, domain.BookingPending, domain.BookingConfirmed, domain.ReasonPaymentCaptured, at)
	if err != nil {
		t.Fatalf("ApplyTransition error: %v", err)
	}
	if b.State != domain.BookingConfirmed || len(ok.transitions) != 1 {
		t.Fatalf("state = %s transitions = %d", b.State, len(ok.transitions))
	}
	if !gotAt.Equal(at) {
		t.Fatalf("UpdateState at = %s, want %s", gotAt, at)
	}
}
