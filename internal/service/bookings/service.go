package bookings

import (
	"context"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/cockroachdb/errors"
	"github.com/google/uuid"

	"memberbook/backend/internal/clock"
	"memberbook/backend/internal/domain"
	"memberbook/backend/internal/notify"
	"memberbook/backend/internal/payments"
	"memberbook/backend/internal/service"
	"memberbook/backend/internal/store"
)

var (
	ErrSlotUnavailable = errors.New("slot is no longer available")
	ErrPaymentFailed   = errors.New("payment failed")
	ErrHoldExpired     = errors.New("hold expired")
	ErrForbidden       = errors.New("caller is not a party to this booking")
)

const maxListWindow = 62 * 24 * time.Hour

type Config struct {
	HoldTTL       time.Duration
	StoreRetries  int
	RetryBackoff  time.Duration
	NotifyTimeout time.Duration
}

func DefaultConfig() Config {
	return Config{
		HoldTTL:       10 * time.Minute,
		StoreRetries:  3,
		RetryBackoff:  50 * time.Millisecond,
		NotifyTimeout: 5 * time.Second,
	}
}

type TemplateReader interface {
	GetTemplate(ctx context.Context, providerID string) (domain.AvailabilityTemplate, error)
}

type Service struct {
	templates TemplateReader
	bookings  store.BookingRepository
	payments  payments.Processor
	notifier  notify.Notifier
	clock     clock.Clock
	log       *slog.Logger
	cfg       Config

	inflight sync.WaitGroup
}

func NewService(
	templates TemplateReader,
	bookings store.BookingRepository,
	processor payments.Processor,
	notifier notify.Notifier,
	clk clock.Clock,
	log *slog.Logger,
	cfg Config,
) *Service {
	if clk == nil {
		clk = clock.NewRealClock()
	}
	if log == nil {
		log = slog.Default()
	}
	if cfg.HoldTTL <= 0 {
		cfg.HoldTTL = DefaultConfig().HoldTTL
	}
	if cfg.StoreRetries < 0 {
		cfg.StoreRetries = 0
	}
	if cfg.RetryBackoff <= 0 {
		cfg.RetryBackoff = DefaultConfig().RetryBackoff
	}
	if cfg.NotifyTimeout <= 0 {
		cfg.NotifyTimeout = DefaultConfig().NotifyTimeout
	}
	return &Service{
		templates: templates,
		bookings:  bookings,
		payments:  processor,
		notifier:  notifier,
		clock:     clk,
		log:       log.With(slog.String("component", "bookings")),
		cfg:       cfg,
	}
}

// Wait blocks until notifications already handed off have been delivered or timed out.
func (s *Service) Wait() {
	s.inflight.Wait()
}

// HoldRequest asks for one slot. PriceAmount and Currency are the price the
// customer was shown; when set they must equal the provider's current rate.
// The booking is always priced from the provider's template.
type HoldRequest struct {
	ProviderID     string
	CustomerID     string
	Start          time.Time
	End            time.Time
	PriceAmount    int64
	Currency       string
	IdempotencyKey string
}

// RequestHold reserves a slot for the customer until the hold expires. Of several
// concurrent requests for overlapping slots exactly one succeeds; the others get
// ErrSlotUnavailable.
func (s *Service) RequestHold(ctx context.Context, in HoldRequest) (domain.Booking, error) {
	providerID := strings.TrimSpace(in.ProviderID)
	customerID := strings.TrimSpace(in.CustomerID)
	if providerID == "" {
		return domain.Booking{}, service.Invalid("provider_id is required")
	}
	if customerID == "" {
		return domain.Booking{}, service.Invalid("customer_id is required")
	}
	if providerID == customerID {
		return domain.Booking{}, service.Invalid("providers cannot book themselves")
	}
	if in.PriceAmount < 0 {
		return domain.Booking{}, service.Invalid("price must not be negative")
	}
	quoted := strings.ToLower(strings.TrimSpace(in.Currency))
	if quoted != "" && len(quoted) != 3 {
		return domain.Booking{}, service.Invalid("currency must be a three letter code")
	}
	slot, err := domain.NewTimeSlot(in.Start, in.End)
	if err != nil {
		return domain.Booking{}, err
	}

	id, err := holdID(customerID, in.IdempotencyKey)
	if err != nil {
		return domain.Booking{}, err
	}

	tpl, err := s.templates.GetTemplate(ctx, providerID)
	if errors.Is(err, store.ErrNotFound) {
		return domain.Booking{}, errors.Wrap(domain.ErrInvalidSlot, "provider has no availability")
	}
	if err != nil {
		return domain.Booking{}, service.StoreFailure(err, "get template")
	}

	now := s.clock.Now()
	if err := domain.CheckBookable(tpl, slot, now); err != nil {
		return domain.Booking{}, err
	}
	price, currency := tpl.Rate()
	if (quoted != "" || in.PriceAmount != 0) && (in.PriceAmount != price || quoted != currency) {
		return domain.Booking{}, service.Invalid("quoted price %d %s does not match the provider's rate of %d %s", in.PriceAmount, quoted, price, currency)
	}

	hold := domain.Booking{
		ID:            id,
		ProviderID:    providerID,
		CustomerID:    customerID,
		StartTime:     slot.Start,
		EndTime:       slot.End,
		BlockedUntil:  slot.End.Add(tpl.Buffer()),
		BufferMinutes: tpl.BufferMinutes,
		PriceAmount:   price,
		Currency:      currency,
		State:         domain.BookingPending,
		ExpiresAt:     now.Add(s.cfg.HoldTTL),
	}

	res, err := retry(ctx, s, func() (store.HoldResult, error) {
		return s.bookings.PlaceHold(ctx, hold, now)
	})
	switch {
	case errors.Is(err, store.ErrConflict):
		s.log.InfoContext(ctx, "slot unavailable",
			slog.String("provider_id", providerID),
			slog.Time("start", slot.Start),
		)
		return domain.Booking{}, ErrSlotUnavailable
	case errors.Is(err, store.ErrReleased):
		s.log.InfoContext(ctx, "replayed hold was already released", slog.String("booking_id", id.String()))
		return domain.Booking{}, ErrHoldExpired
	case err != nil:
		return domain.Booking{}, s.storeError(err, "place hold")
	}

	for _, released := range res.Released {
		s.notifyAsync(ctx, notify.KindCanceled, released, domain.ReasonHoldExpired)
	}
	s.log.InfoContext(ctx, "hold placed",
		slog.String("booking_id", res.Booking.ID.String()),
		slog.String("provider_id", providerID),
		slog.Time("start", slot.Start),
		slog.Time("expires_at", res.Booking.ExpiresAt),
		slog.Int("released", len(res.Released)),
	)
	return res.Booking, nil
}

func holdID(customerID, key string) (uuid.UUID, error) {
	key = strings.TrimSpace(key)
	if key == "" {
		return uuid.NewV7()
	}
	if len(key) > 256 {
		return uuid.Nil, service.Invalid("idempotency_key too long")
	}
	return uuid.NewSHA1(uuid.NameSpaceOID, []byte("memberbook:request_hold:"+customerID+":"+key)), nil
}

type PaymentSession struct {
	Booking      domain.Booking
	ClientSecret string
}

// InitiatePayment prepares payment for a held booking. Free bookings are confirmed
// right away and come back without a client secret.
func (s *Service) InitiatePayment(ctx context.Context, id uuid.UUID, actorID string) (PaymentSession, error) {
	b, err := s.GetBooking(ctx, id, actorID)
	if err != nil {
		return PaymentSession{}, err
	}
	if b.CustomerID != actorID {
		return PaymentSession{}, ErrForbidden
	}

	switch b.State {
	case domain.BookingPending:
	case domain.BookingConfirmed:
		return PaymentSession{Booking: b}, nil
	default:
		return PaymentSession{}, errors.Wrapf(domain.ErrIllegalTransition, "booking is %s", b.State)
	}

	if b.HoldExpired(s.clock.Now()) {
		return PaymentSession{}, s.expire(ctx, b)
	}

	if b.Free() {
		confirmed, err := s.transition(ctx, b, domain.BookingConfirmed, domain.ReasonFreeBooking)
		if err != nil {
			return PaymentSession{}, s.storeError(err, "confirm free booking")
		}
		return PaymentSession{Booking: confirmed}, nil
	}

	intent, err := s.payments.CreateIntent(ctx, b)
	if err != nil {
		s.log.WarnContext(ctx, "create payment intent failed", slog.String("booking_id", b.ID.String()), slog.Any("err", err))
		return PaymentSession{}, errors.Mark(errors.Wrap(err, "create payment intent"), ErrPaymentFailed)
	}

	updated, err := s.bookings.AttachPaymentRef(ctx, b.ID, intent.Ref)
	if err != nil {
		if errors.Is(err, store.ErrStaleState) {
			s.voidQuietly(ctx, intent.Ref)
		}
		return PaymentSession{}, s.storeError(err, "attach payment reference")
	}
	return PaymentSession{Booking: updated, ClientSecret: intent.ClientSecret}, nil
}

// ConfirmPayment captures the booking's payment and confirms it. A declined or failed
// capture cancels the booking and releases the slot.
func (s *Service) ConfirmPayment(ctx context.Context, id uuid.UUID, actorID, paymentRef string) (domain.Booking, error) {
	b, err := s.GetBooking(ctx, id, actorID)
	if err != nil {
		return domain.Booking{}, err
	}
	if b.CustomerID != actorID {
		return domain.Booking{}, ErrForbidden
	}
	if paymentRef == "" || b.PaymentReference() != paymentRef {
		return domain.Booking{}, service.Invalid("payment_ref does not match the booking")
	}

	switch b.State {
	case domain.BookingPending:
		return s.capture(ctx, b)
	case domain.BookingConfirmed:
		return b, nil
	}
	return domain.Booking{}, errors.Wrapf(domain.ErrIllegalTransition, "booking is %s", b.State)
}

func (s *Service) capture(ctx context.Context, b domain.Booking) (domain.Booking, error) {
	ref := b.PaymentReference()
	if b.HoldExpired(s.clock.Now()) {
		return domain.Booking{}, s.expire(ctx, b)
	}

	if err := s.payments.Capture(ctx, ref); err != nil {
		s.log.WarnContext(ctx, "payment capture failed",
			slog.String("booking_id", b.ID.String()),
			slog.String("payment_ref", ref),
			slog.Any("err", err),
		)
		s.voidQuietly(ctx, ref)
		if _, terr := s.transition(ctx, b, domain.BookingCanceled, domain.ReasonPaymentFailed); terr != nil && !errors.Is(terr, store.ErrStaleState) {
			return domain.Booking{}, s.storeError(terr, "cancel unpaid booking")
		}
		return domain.Booking{}, errors.Mark(errors.Wrap(err, "capture payment"), ErrPaymentFailed)
	}

	confirmed, err := s.transition(ctx, b, domain.BookingConfirmed, domain.ReasonPaymentCaptured)
	if errors.Is(err, store.ErrStaleState) {
		return s.settleCaptured(ctx, b.ID, ref)
	}
	if err != nil {
		return domain.Booking{}, s.storeError(err, "confirm booking")
	}
	return confirmed, nil
}

// settleCaptured handles funds captured for a booking that could not be confirmed.
// A booking confirmed by a concurrent writer is returned as is. Otherwise the hold
// has expired or been canceled: the payment is refunded, a still pending booking is
// canceled and ErrHoldExpired is returned.
func (s *Service) settleCaptured(ctx context.Context, id uuid.UUID, ref string) (domain.Booking, error) {
	current, err := s.bookings.GetBooking(ctx, id)
	if err != nil {
		return domain.Booking{}, s.storeError(err, "reload booking")
	}
	switch current.State {
	case domain.BookingConfirmed, domain.BookingCompleted:
		return current, nil
	}

	s.log.ErrorContext(ctx, "payment captured for a released booking",
		slog.String("booking_id", id.String()),
		slog.String("payment_ref", ref),
		slog.String("state", string(current.State)),
	)
	s.refundQuietly(ctx, ref)
	if current.State == domain.BookingPending {
		_, err := s.transition(ctx, current, domain.BookingCanceled, domain.ReasonHoldExpired)
		if err != nil && !errors.Is(err, store.ErrStaleState) {
			return domain.Booking{}, s.storeError(err, "release expired hold")
		}
	}
	return domain.Booking{}, ErrHoldExpired
}

// expire cancels a pending booking whose hold ran out and returns ErrHoldExpired.
func (s *Service) expire(ctx context.Context, b domain.Booking) error {
	if ref := b.PaymentReference(); ref != "" {
		s.voidQuietly(ctx, ref)
	}
	_, err := s.transition(ctx, b, domain.BookingCanceled, domain.ReasonHoldExpired)
	if err != nil && !errors.Is(err, store.ErrStaleState) {
		return s.storeError(err, "expire hold")
	}
	return ErrHoldExpired
}

// HandlePaymentEvent applies an asynchronous payment outcome. Events for unknown
// payments and repeated deliveries are ignored.
func (s *Service) HandlePaymentEvent(ctx context.Context, ev payments.Event) error {
	log := s.log.With(slog.String("event_id", ev.ID), slog.String("payment_ref", ev.Ref), slog.String("kind", string(ev.Kind)))

	b, err := s.bookings.GetBookingByPaymentRef(ctx, ev.Ref)
	if errors.Is(err, store.ErrNotFound) {
		log.InfoContext(ctx, "payment event for unknown booking ignored")
		return nil
	}
	if err != nil {
		return s.storeError(err, "find booking by payment reference")
	}
	if b.State == domain.BookingCanceled && (ev.Kind == payments.EventAuthorized || ev.Kind == payments.EventSucceeded) {
		return s.settleCanceled(ctx, log, b, ev.Kind)
	}
	if b.State != domain.BookingPending {
		log.DebugContext(ctx, "payment event for settled booking ignored", slog.String("state", string(b.State)))
		return nil
	}

	switch ev.Kind {
	case payments.EventAuthorized:
		_, err = s.capture(ctx, b)
		if errors.Is(err, ErrPaymentFailed) || errors.Is(err, ErrHoldExpired) {
			return nil
		}
	case payments.EventSucceeded:
		_, err = s.transition(ctx, b, domain.BookingConfirmed, domain.ReasonPaymentCaptured)
		if errors.Is(err, store.ErrStaleState) {
			_, err = s.settleCaptured(ctx, b.ID, ev.Ref)
			if errors.Is(err, ErrHoldExpired) {
				return nil
			}
		}
	case payments.EventFailed, payments.EventCanceled:
		_, err = s.transition(ctx, b, domain.BookingCanceled, domain.ReasonPaymentFailed)
	default:
		log.WarnContext(ctx, "unknown payment event kind")
		return nil
	}
	if errors.Is(err, store.ErrStaleState) {
		return nil
	}
	if err != nil {
		return s.storeError(err, "apply payment event")
	}
	return nil
}

// settleCanceled handles money moving for a booking that is already canceled.
// Authorizations are voided. Captured funds are refunded unless the booking had
// been confirmed, as canceling a paid booking keeps the payment.
func (s *Service) settleCanceled(ctx context.Context, log *slog.Logger, b domain.Booking, kind payments.EventKind) error {
	ref := b.PaymentReference()
	if kind == payments.EventAuthorized {
		log.ErrorContext(ctx, "payment authorized for a canceled booking", slog.String("booking_id", b.ID.String()))
		s.voidQuietly(ctx, ref)
		return nil
	}

	history, err := s.bookings.ListTransitions(ctx, b.ID)
	if err != nil {
		return s.storeError(err, "list transitions")
	}
	for _, tr := range history {
		if tr.ToState == domain.BookingConfirmed {
			log.DebugContext(ctx, "payment event for settled booking ignored", slog.String("state", string(b.State)))
			return nil
		}
	}
	log.ErrorContext(ctx, "payment captured for a canceled booking", slog.String("booking_id", b.ID.String()))
	s.refundQuietly(ctx, ref)
	return nil
}

// Cancel cancels a pending or confirmed booking on behalf of its customer or provider.
// Canceling twice is not an error.
func (s *Service) Cancel(ctx context.Context, id uuid.UUID, actorID string) (domain.Booking, error) {
	for attempt := 0; attempt < 2; attempt++ {
		b, err := s.GetBooking(ctx, id, actorID)
		if err != nil {
			return domain.Booking{}, err
		}
		switch b.State {
		case domain.BookingCanceled:
			return b, nil
		case domain.BookingCompleted:
			return domain.Booking{}, errors.Wrap(domain.ErrIllegalTransition, "booking is completed")
		}

		reason := domain.ReasonCanceledCustomer
		if actorID == b.ProviderID {
			reason = domain.ReasonCanceledProvider
		}
		canceled, err := s.transition(ctx, b, domain.BookingCanceled, reason)
		if errors.Is(err, store.ErrStaleState) {
			continue
		}
		if err != nil {
			return domain.Booking{}, s.storeError(err, "cancel booking")
		}

		if ref := b.PaymentReference(); ref != "" {
			if b.State == domain.BookingPending {
				s.voidQuietly(ctx, ref)
			} else {
				s.log.WarnContext(ctx, "canceled a paid booking",
					slog.String("booking_id", b.ID.String()),
					slog.String("payment_ref", ref),
				)
			}
		}
		return canceled, nil
	}
	return domain.Booking{}, store.ErrStaleState
}

// ExpireHolds cancels up to limit pending holds whose expiry has passed.
func (s *Service) ExpireHolds(ctx context.Context, limit int) (int, error) {
	expired, err := s.bookings.ListExpiredHolds(ctx, s.clock.Now(), limit)
	if err != nil {
		return 0, service.StoreFailure(err, "list expired holds")
	}
	n := 0
	for _, b := range expired {
		if _, err := s.transition(ctx, b, domain.BookingCanceled, domain.ReasonHoldExpired); err != nil {
			if errors.Is(err, store.ErrStaleState) {
				continue
			}
			return n, s.storeError(err, "expire hold")
		}
		if ref := b.PaymentReference(); ref != "" {
			s.voidQuietly(ctx, ref)
		}
		n++
	}
	return n, nil
}

// CompleteElapsed marks up to limit confirmed bookings whose end has passed as completed.
func (s *Service) CompleteElapsed(ctx context.Context, limit int) (int, error) {
	elapsed, err := s.bookings.ListElapsed(ctx, s.clock.Now(), limit)
	if err != nil {
		return 0, service.StoreFailure(err, "list elapsed bookings")
	}
	n := 0
	for _, b := range elapsed {
		if _, err := s.transition(ctx, b, domain.BookingCompleted, domain.ReasonElapsed); err != nil {
			if errors.Is(err, store.ErrStaleState) {
				continue
			}
			return n, s.storeError(err, "complete booking")
		}
		n++
	}
	return n, nil
}

// GetBooking returns the booking if actorID is its customer or provider.
func (s *Service) GetBooking(ctx context.Context, id uuid.UUID, actorID string) (domain.Booking, error) {
	if id == uuid.Nil {
		return domain.Booking{}, service.Invalid("booking_id is required")
	}
	b, err := s.bookings.GetBooking(ctx, id)
	if err != nil {
		return domain.Booking{}, s.storeError(err, "get booking")
	}
	if actorID == "" || (actorID != b.CustomerID && actorID != b.ProviderID) {
		return domain.Booking{}, ErrForbidden
	}
	return b, nil
}

// ListBookings returns the provider's bookings of every state that overlap [from, to).
func (s *Service) ListBookings(ctx context.Context, providerID, actorID string, from, to time.Time) ([]domain.Booking, error) {
	if strings.TrimSpace(providerID) == "" {
		return nil, service.Invalid("provider_id is required")
	}
	if actorID != providerID {
		return nil, ErrForbidden
	}
	start, end := from.UTC(), to.UTC()
	if !end.After(start) {
		return nil, service.Invalid("to must be after from")
	}
	if end.Sub(start) > maxListWindow {
		return nil, service.Invalid("window must not exceed 62 days")
	}
	rows, err := s.bookings.ListBookings(ctx, providerID, start, end)
	if err != nil {
		return nil, service.StoreFailure(err, "list bookings")
	}
	return rows, nil
}

func (s *Service) History(ctx context.Context, id uuid.UUID, actorID string) ([]domain.BookingTransition, error) {
	if _, err := s.GetBooking(ctx, id, actorID); err != nil {
		return nil, err
	}
	rows, err := s.bookings.ListTransitions(ctx, id)
	if err != nil {
		return nil, s.storeError(err, "list transitions")
	}
	return rows, nil
}

func (s *Service) transition(ctx context.Context, b domain.Booking, to domain.BookingState, reason string) (domain.Booking, error) {
	now := s.clock.Now()
	updated, err := retry(ctx, s, func() (domain.Booking, error) {
		return s.bookings.Transition(ctx, b.ID, b.State, to, reason, now)
	})
	if err != nil {
		return domain.Booking{}, err
	}

	s.log.InfoContext(ctx, "booking transitioned",
		slog.String("booking_id", b.ID.String()),
		slog.String("from", string(b.State)),
		slog.String("to", string(to)),
		slog.String("reason", reason),
	)
	switch to {
	case domain.BookingConfirmed:
		s.notifyAsync(ctx, notify.KindConfirmed, updated, reason)
	case domain.BookingCanceled:
		s.notifyAsync(ctx, notify.KindCanceled, updated, reason)
	}
	return updated, nil
}

// notifyAsync hands the notification off without waiting; failures are only logged.
func (s *Service) notifyAsync(ctx context.Context, kind notify.Kind, b domain.Booking, reason string) {
	if s.notifier == nil {
		return
	}
	n := notify.ForBooking(kind, b, reason, s.clock.Now())
	nctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), s.cfg.NotifyTimeout)

	s.inflight.Add(1)
	go func() {
		defer s.inflight.Done()
		defer cancel()
		if err := s.notifier.Notify(nctx, n); err != nil {
			s.log.Warn("notification failed", slog.String("key", n.Key()), slog.Any("err", err))
		}
	}()
}

func (s *Service) voidQuietly(ctx context.Context, ref string) {
	if err := s.payments.Void(ctx, ref); err != nil {
		s.log.WarnContext(ctx, "void payment failed", slog.String("payment_ref", ref), slog.Any("err", err))
	}
}

func (s *Service) refundQuietly(ctx context.Context, ref string) {
	if err := s.payments.Refund(ctx, ref); err != nil {
		s.log.ErrorContext(ctx, "refund payment failed", slog.String("payment_ref", ref), slog.Any("err", err))
	}
}

// storeError keeps the categories callers act on and marks everything else as an outage.
func (s *Service) storeError(err error, op string) error {
	switch {
	case errors.Is(err, store.ErrNotFound),
		errors.Is(err, store.ErrStaleState),
		errors.Is(err, store.ErrIdempotencyConflict),
		errors.Is(err, domain.ErrIllegalTransition),
		errors.Is(err, ErrForbidden),
		errors.Is(err, ErrHoldExpired):
		return err
	}
	s.log.Error("store operation failed", slog.String("op", op), slog.Any("err", err))
	return service.StoreFailure(err, op)
}

// retry runs op again while it fails with store.ErrTransient, up to StoreRetries extra
// attempts with exponential backoff.
func retry[T any](ctx context.Context, s *Service, op func() (T, error)) (T, error) {
	policy := backoff.NewExponentialBackOff()
	policy.InitialInterval = s.cfg.RetryBackoff
	policy.MaxInterval = 20 * s.cfg.RetryBackoff
	policy.MaxElapsedTime = 0

	var out T
	err := backoff.RetryNotify(func() error {
		v, err := op()
		if err == nil {
			out = v
			return nil
		}
		if errors.Is(err, store.ErrTransient) {
			return err
		}
		return backoff.Permanent(err)
	}, backoff.WithContext(backoff.WithMaxRetries(policy, uint64(s.cfg.StoreRetries)), ctx), func(err error, wait time.Duration) {
		s.log.WarnContext(ctx, "transient store failure, retrying", slog.Duration("wait", wait), slog.Any("err", err))
	})
	return out, err
}
