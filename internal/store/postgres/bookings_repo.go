package postgres

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/uptrace/bun"

	"memberbook/backend/internal/domain"
	"memberbook/backend/internal/store"
)

var liveStates = []string{string(domain.BookingPending), string(domain.BookingConfirmed)}

type BookingRepo struct {
	db *bun.DB
}

func NewBookingRepo(db *bun.DB) *BookingRepo {
	return &BookingRepo{db: db}
}

// PlaceHold runs the hold protocol in one transaction. The bookings_no_overlap
// exclusion constraint is what decides a race between concurrent holds; no
// provider-wide lock is taken, so holds on disjoint slots proceed in parallel.
func (r *BookingRepo) PlaceHold(ctx context.Context, b domain.Booking, now time.Time) (store.HoldResult, error) {
	var out store.HoldResult
	err := r.db.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		res, err := store.PlaceHold(ctx, bookingTx{tx: tx}, b, now)
		if err != nil {
			return err
		}
		out = res
		return nil
	})
	if errors.Is(err, errDuplicateID) {
		existing, findErr := r.GetBooking(ctx, b.ID)
		if findErr != nil {
			return store.HoldResult{}, findErr
		}
		return store.Replay(existing, b, now)
	}
	if err != nil {
		return store.HoldResult{}, mapError(err)
	}
	return out, nil
}

func (r *BookingRepo) Transition(ctx context.Context, id uuid.UUID, from, to domain.BookingState, reason string, at time.Time) (domain.Booking, error) {
	var out domain.Booking
	err := r.db.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		b, err := store.ApplyTransition(ctx, bookingTx{tx: tx}, id, from, to, reason, at)
		if err != nil {
			return err
		}
		out = b
		return nil
	})
	if err != nil {
		return domain.Booking{}, mapError(err)
	}
	return out, nil
}

func (r *BookingRepo) AttachPaymentRef(ctx context.Context, id uuid.UUID, ref string) (domain.Booking, error) {
	var b domain.Booking
	err := r.db.NewRaw(
		`UPDATE bookings SET payment_ref = ?, updated_at = now()
		WHERE id = ? AND state = ? AND (payment_ref IS NULL OR payment_ref = ?)
		RETURNING *`,
		ref, id, string(domain.BookingPending), ref,
	).Scan(ctx, &b)
	if errors.Is(err, sql.ErrNoRows) {
		if _, getErr := r.GetBooking(ctx, id); getErr != nil {
			return domain.Booking{}, getErr
		}
		return domain.Booking{}, store.ErrStaleState
	}
	if err != nil {
		return domain.Booking{}, mapError(err)
	}
	return b, nil
}

func (r *BookingRepo) GetBooking(ctx context.Context, id uuid.UUID) (domain.Booking, error) {
	return findBooking(ctx, r.db, "id = ?", id)
}

func (r *BookingRepo) GetBookingByPaymentRef(ctx context.Context, ref string) (domain.Booking, error) {
	return findBooking(ctx, r.db, "payment_ref = ?", ref)
}

func findBooking(ctx context.Context, db bun.IDB, where string, arg any) (domain.Booking, error) {
	var b domain.Booking
	err := db.NewSelect().
		Model(&b).
		Where(where, arg).
		Limit(1).
		Scan(ctx)
	if errors.Is(err, sql.ErrNoRows) {
		return domain.Booking{}, store.ErrNotFound
	}
	if err != nil {
		return domain.Booking{}, mapError(err)
	}
	return b, nil
}

func (r *BookingRepo) ListBookings(ctx context.Context, providerID string, windowStart, windowEnd time.Time) ([]domain.Booking, error) {
	var rows []domain.Booking
	err := r.db.NewSelect().
		Model(&rows).
		Where("provider_id = ?", providerID).
		Where("start_time < ?", windowEnd).
		Where("end_time > ?", windowStart).
		OrderExpr("start_time ASC").
		Scan(ctx)
	if err != nil {
		return nil, mapError(err)
	}
	return rows, nil
}

func (r *BookingRepo) ListActiveBookings(ctx context.Context, providerID string, windowStart, windowEnd time.Time) ([]domain.Booking, error) {
	var rows []domain.Booking
	err := r.db.NewSelect().
		Model(&rows).
		Where("provider_id = ?", providerID).
		Where("state IN (?)", bun.In(liveStates)).
		Where("start_time < ?", windowEnd).
		Where("end_time > ?", windowStart).
		OrderExpr("start_time ASC").
		Scan(ctx)
	if err != nil {
		return nil, mapError(err)
	}
	return rows, nil
}

func (r *BookingRepo) ListExpiredHolds(ctx context.Context, now time.Time, limit int) ([]domain.Booking, error) {
	var rows []domain.Booking
	err := r.db.NewSelect().
		Model(&rows).
		Where("state = ?", string(domain.BookingPending)).
		Where("expires_at <= ?", now).
		OrderExpr("expires_at ASC").
		Limit(limit).
		Scan(ctx)
	if err != nil {
		return nil, mapError(err)
	}
	return rows, nil
}

func (r *BookingRepo) ListElapsed(ctx context.Context, now time.Time, limit int) ([]domain.Booking, error) {
	var rows []domain.Booking
	err := r.db.NewSelect().
		Model(&rows).
		Where("state = ?", string(domain.BookingConfirmed)).
		Where("end_time <= ?", now).
		OrderExpr("end_time ASC").
		Limit(limit).
		Scan(ctx)
	if err != nil {
		return nil, mapError(err)
	}
	return rows, nil
}

func (r *BookingRepo) ListTransitions(ctx context.Context, id uuid.UUID) ([]domain.BookingTransition, error) {
	if _, err := r.GetBooking(ctx, id); err != nil {
		return nil, err
	}
	var rows []domain.BookingTransition
	err := r.db.NewSelect().
		Model(&rows).
		Where("booking_id = ?", id).
		OrderExpr("id ASC").
		Scan(ctx)
	if err != nil {
		return nil, mapError(err)
	}
	return rows, nil
}

type bookingTx struct {
	tx bun.Tx
}

func (t bookingTx) FindBooking(ctx context.Context, id uuid.UUID) (domain.Booking, error) {
	return findBooking(ctx, t.tx, "id = ?", id)
}

func (t bookingTx) ReleaseExpiredHolds(ctx context.Context, providerID string, span domain.TimeSlot, now time.Time) ([]domain.Booking, error) {
	var rows []domain.Booking
	err := t.tx.NewRaw(
		`UPDATE bookings SET state = ?, updated_at = ?
		WHERE provider_id = ? AND state = ? AND expires_at <= ?
		AND tstzrange(start_time, blocked_until, '[)') && tstzrange(?::timestamptz, ?::timestamptz, '[)')
		RETURNING *`,
		string(domain.BookingCanceled), now,
		providerID, string(domain.BookingPending), now,
		span.Start, span.End,
	).Scan(ctx, &rows)
	if err != nil {
		return nil, mapError(err)
	}
	return rows, nil
}

func (t bookingTx) ListBlocking(ctx context.Context, providerID string, span domain.TimeSlot) ([]domain.Booking, error) {
	var rows []domain.Booking
	err := t.tx.NewSelect().
		Model(&rows).
		Where("provider_id = ?", providerID).
		Where("state IN (?)", bun.In(liveStates)).
		Where("tstzrange(start_time, blocked_until, '[)') && tstzrange(?::timestamptz, ?::timestamptz, '[)')", span.Start, span.End).
		Scan(ctx)
	if err != nil {
		return nil, mapError(err)
	}
	return rows, nil
}

func (t bookingTx) InsertBooking(ctx context.Context, b domain.Booking) (domain.Booking, error) {
	m := b
	if _, err := t.tx.NewInsert().Model(&m).Exec(ctx); err != nil {
		return domain.Booking{}, mapError(err)
	}
	return m, nil
}

func (t bookingTx) UpdateState(ctx context.Context, id uuid.UUID, from, to domain.BookingState, at time.Time) (domain.Booking, error) {
	query := "UPDATE bookings SET state = ?, updated_at = now() WHERE id = ? AND state = ?"
	args := []any{string(to), id, string(from)}
	if domain.ConfirmsHold(from, to) {
		query += " AND expires_at > ?"
		args = append(args, at)
	}

	var b domain.Booking
	err := t.tx.NewRaw(query+" RETURNING *", args...).Scan(ctx, &b)
	if errors.Is(err, sql.ErrNoRows) {
		return domain.Booking{}, store.ErrStaleState
	}
	if err != nil {
		return domain.Booking{}, mapError(err)
	}
	return b, nil
}

func (t bookingTx) RecordTransition(ctx context.Context, tr domain.BookingTransition) error {
	_, err := t.tx.NewInsert().Model(&tr).Exec(ctx)
	return mapError(err)
}
