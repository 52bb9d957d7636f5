package notify

import (
	"context"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"memberbook/backend/internal/domain"
)

type Kind string

const (
	KindConfirmed Kind = "booking.confirmed"
	KindCanceled  Kind = "booking.canceled"
)

// Notification tells the parties of a booking that it changed state.
type Notification struct {
	Kind       Kind      `json:"kind"`
	BookingID  uuid.UUID `json:"booking_id"`
	ProviderID string    `json:"provider_id"`
	CustomerID string    `json:"customer_id"`
	Start      time.Time `json:"start"`
	End        time.Time `json:"end"`
	Reason     string    `json:"reason"`
	OccurredAt time.Time `json:"occurred_at"`
}

func ForBooking(kind Kind, b domain.Booking, reason string, at time.Time) Notification {
	return Notification{
		Kind:       kind,
		BookingID:  b.ID,
		ProviderID: b.ProviderID,
		CustomerID: b.CustomerID,
		Start:      b.StartTime.UTC(),
		End:        b.EndTime.UTC(),
		Reason:     reason,
		OccurredAt: at.UTC(),
	}
}

// Key identifies the event; a booking reaches each kind at most once.
func (n Notification) Key() string {
	return string(n.Kind) + ":" + n.BookingID.String()
}

type Notifier interface {
	Notify(ctx context.Context, n Notification) error
}

// LogNotifier writes notifications to the log. It is the delivery sink when no
// downstream channel is configured.
type LogNotifier struct {
	log *slog.Logger
}

func NewLogNotifier(log *slog.Logger) *LogNotifier {
	if log == nil {
		log = slog.Default()
	}
	return &LogNotifier{log: log.With(slog.String("component", "notify"))}
}

func (l *LogNotifier) Notify(ctx context.Context, n Notification) error {
	l.log.InfoContext(ctx, "booking notification",
		slog.String("kind", string(n.Kind)),
		slog.String("booking_id", n.BookingID.String()),
		slog.String("provider_id", n.ProviderID),
		slog.String("customer_id", n.CustomerID),
		slog.String("reason", n.Reason),
		slog.Time("start", n.Start),
	)
	return nil
}
