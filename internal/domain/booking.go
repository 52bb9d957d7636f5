package domain

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/uptrace/bun"
)

var ErrIllegalTransition = errors.New("illegal booking state transition")

type BookingState string

const (
	BookingPending   BookingState = "pending"
	BookingConfirmed BookingState = "confirmed"
	BookingCompleted BookingState = "completed"
	BookingCanceled  BookingState = "canceled"
)

func (s BookingState) Valid() bool {
	switch s {
	case BookingPending, BookingConfirmed, BookingCompleted, BookingCanceled:
		return true
	}
	return false
}

func (s BookingState) Terminal() bool {
	return s == BookingCompleted || s == BookingCanceled
}

// CanTransition reports whether a booking may move from one state to another.
// Terminal states accept nothing and no state may be skipped.
func CanTransition(from, to BookingState) bool {
	switch from {
	case BookingPending:
		return to == BookingConfirmed || to == BookingCanceled
	case BookingConfirmed:
		return to == BookingCompleted || to == BookingCanceled
	}
	return false
}

// ConfirmsHold reports whether the move confirms a pending hold. Stores apply it
// only while the hold is unexpired.
func ConfirmsHold(from, to BookingState) bool {
	return from == BookingPending && to == BookingConfirmed
}

// Reasons recorded on transitions.
const (
	ReasonPaymentCaptured  = "payment_captured"
	ReasonFreeBooking      = "free_booking"
	ReasonPaymentFailed    = "payment_failed"
	ReasonHoldExpired      = "hold_expired"
	ReasonCanceledCustomer = "canceled_by_customer"
	ReasonCanceledProvider = "canceled_by_provider"
	ReasonElapsed          = "elapsed"
)

type Booking struct {
	bun.BaseModel `bun:"table:bookings"`

	ID            uuid.UUID    `bun:"id,pk,type:uuid"`
	ProviderID    string       `bun:"provider_id,notnull"`
	CustomerID    string       `bun:"customer_id,notnull"`
	StartTime     time.Time    `bun:"start_time,notnull"`
	EndTime       time.Time    `bun:"end_time,notnull"`
	BlockedUntil  time.Time    `bun:"blocked_until,notnull"`
	BufferMinutes int          `bun:"buffer_minutes,notnull"`
	PriceAmount   int64        `bun:"price_amount,notnull"`
	Currency      string       `bun:"currency,notnull"`
	State         BookingState `bun:"state,notnull"`
	PaymentRef    *string      `bun:"payment_ref"`
	ExpiresAt     time.Time    `bun:"expires_at,notnull"`
	CreatedAt     time.Time    `bun:"created_at,notnull"`
	UpdatedAt     time.Time    `bun:"updated_at,notnull"`
}

func (b *Booking) BeforeAppendModel(ctx context.Context, query bun.Query) error {
	now := time.Now().UTC()
	switch query.(type) {
	case *bun.InsertQuery:
		if b.ID == uuid.Nil {
			id, err := uuid.NewV7()
			if err != nil {
				return err
			}
			b.ID = id
		}
		if b.CreatedAt.IsZero() {
			b.CreatedAt = now
		}
		if b.UpdatedAt.IsZero() {
			b.UpdatedAt = now
		}
	case *bun.UpdateQuery:
		b.UpdatedAt = now
	}
	return nil
}

func (b Booking) Slot() TimeSlot {
	return TimeSlot{Start: b.StartTime.UTC(), End: b.EndTime.UTC()}
}

// BlockedRange is the stretch of the provider's timeline the booking occupies,
// its slot followed by the buffer that applied when it was held.
func (b Booking) BlockedRange() TimeSlot {
	return TimeSlot{Start: b.StartTime.UTC(), End: b.BlockedUntil.UTC()}
}

// Blocks reports whether the booking still occupies its slot at now.
func (b Booking) Blocks(now time.Time) bool {
	switch b.State {
	case BookingConfirmed:
		return true
	case BookingPending:
		return now.Before(b.ExpiresAt)
	}
	return false
}

func (b Booking) HoldExpired(now time.Time) bool {
	return b.State == BookingPending && !now.Before(b.ExpiresAt)
}

func (b Booking) Free() bool {
	return b.PriceAmount == 0
}

func (b Booking) PaymentReference() string {
	if b.PaymentRef == nil {
		return ""
	}
	return *b.PaymentRef
}

// SameRequest reports whether other describes the same hold request, used to
// recognize a retried request carrying a reused booking id.
func (b Booking) SameRequest(other Booking) bool {
	return b.ProviderID == other.ProviderID &&
		b.CustomerID == other.CustomerID &&
		b.StartTime.Equal(other.StartTime) &&
		b.EndTime.Equal(other.EndTime) &&
		b.PriceAmount == other.PriceAmount &&
		b.Currency == other.Currency
}

type BookingTransition struct {
	bun.BaseModel `bun:"table:booking_transitions"`

	ID         int64        `bun:"id,pk,autoincrement"`
	BookingID  uuid.UUID    `bun:"booking_id,notnull,type:uuid"`
	FromState  BookingState `bun:"from_state,notnull"`
	ToState    BookingState `bun:"to_state,notnull"`
	Reason     string       `bun:"reason,notnull"`
	OccurredAt time.Time    `bun:"occurred_at,notnull"`
}
