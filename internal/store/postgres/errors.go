package postgres

import (
	"context"
	"database/sql/driver"
	"errors"
	"net"

	"github.com/jackc/pgx/v5/pgconn"

	"memberbook/backend/internal/store"
)

const (
	constraintNoOverlap  = "bookings_no_overlap"
	constraintBookingKey = "bookings_pkey"
	constraintPaymentRef = "bookings_payment_ref_key"
)

var errDuplicateID = errors.New("booking id already exists")

// mapError translates driver errors into store errors. Serialization failures,
// deadlocks and connection loss are marked with store.ErrTransient.
func mapError(err error) error {
	if err == nil {
		return nil
	}

	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		switch {
		case pgErr.Code == "23P01" && pgErr.ConstraintName == constraintNoOverlap:
			return store.ErrConflict
		case pgErr.Code == "23505" && pgErr.ConstraintName == constraintBookingKey:
			return errDuplicateID
		case pgErr.Code == "23505" && pgErr.ConstraintName == constraintPaymentRef:
			return store.ErrConflict
		case pgErr.Code == "40001", pgErr.Code == "40P01", len(pgErr.Code) == 5 && pgErr.Code[:2] == "08":
			return store.Transient(err)
		}
		return err
	}

	if errors.Is(err, driver.ErrBadConn) {
		return store.Transient(err)
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return err
	}
	var netErr net.Error
	if errors.As(err, &netErr) {
		return store.Transient(err)
	}
	var connErr *pgconn.ConnectError
	if errors.As(err, &connErr) {
		return store.Transient(err)
	}
	return err
}
