package stripepay

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/stripe/stripe-go/v76"
	"github.com/stripe/stripe-go/v76/client"
	"github.com/stripe/stripe-go/v76/webhook"

	"memberbook/backend/internal/domain"
	"memberbook/backend/internal/payments"
)

const (
	errorTypeCard              = "card_error"
	errorCodeUnexpectedState   = "payment_intent_unexpected_state"
	metadataBookingID          = "booking_id"
	idempotencyKeyCreateIntent = "memberbook-intent-"
)

// Processor authorizes booking payments as manual-capture PaymentIntents.
type Processor struct {
	api           *client.API
	webhookSecret string
}

func New(secretKey, webhookSecret string, backends *stripe.Backends) *Processor {
	return &Processor{api: client.New(secretKey, backends), webhookSecret: webhookSecret}
}

func (p *Processor) CreateIntent(ctx context.Context, b domain.Booking) (payments.Intent, error) {
	params := &stripe.PaymentIntentParams{
		Amount:        stripe.Int64(b.PriceAmount),
		Currency:      stripe.String(b.Currency),
		CaptureMethod: stripe.String(string(stripe.PaymentIntentCaptureMethodManual)),
	}
	params.Context = ctx
	params.SetIdempotencyKey(idempotencyKeyCreateIntent + b.ID.String())
	params.AddMetadata(metadataBookingID, b.ID.String())
	params.AddMetadata("provider_id", b.ProviderID)

	pi, err := p.api.PaymentIntents.New(params)
	if err != nil {
		return payments.Intent{}, mapError("create payment intent", err)
	}
	return payments.Intent{Ref: pi.ID, ClientSecret: pi.ClientSecret}, nil
}

func (p *Processor) Capture(ctx context.Context, ref string) error {
	params := &stripe.PaymentIntentCaptureParams{}
	params.Context = ctx
	params.SetIdempotencyKey("memberbook-capture-" + ref)
	_, err := p.api.PaymentIntents.Capture(ref, params)
	return mapError("capture payment intent", err)
}

// Void cancels the intent and releases the authorization. Intents that already
// left a cancelable state are left alone.
func (p *Processor) Void(ctx context.Context, ref string) error {
	params := &stripe.PaymentIntentCancelParams{}
	params.Context = ctx
	_, err := p.api.PaymentIntents.Cancel(ref, params)
	var stripeErr *stripe.Error
	if errors.As(err, &stripeErr) && string(stripeErr.Code) == errorCodeUnexpectedState {
		return nil
	}
	return mapError("cancel payment intent", err)
}

// Refund returns the full captured amount of the intent.
func (p *Processor) Refund(ctx context.Context, ref string) error {
	params := &stripe.RefundParams{PaymentIntent: stripe.String(ref)}
	params.Context = ctx
	params.SetIdempotencyKey("memberbook-refund-" + ref)
	_, err := p.api.Refunds.New(params)
	return mapError("refund payment intent", err)
}

// ParseWebhook verifies the Stripe-Signature header and maps PaymentIntent
// events to payment outcomes. Other event types return payments.ErrIgnoredEvent.
func (p *Processor) ParseWebhook(payload []byte, signature string) (payments.Event, error) {
	ev, err := webhook.ConstructEventWithOptions(payload, signature, p.webhookSecret, webhook.ConstructEventOptions{
		Tolerance:                webhook.DefaultTolerance,
		IgnoreAPIVersionMismatch: true,
	})
	if err != nil {
		return payments.Event{}, fmt.Errorf("verify webhook: %w", err)
	}
	return eventFromStripe(ev)
}

func eventFromStripe(ev stripe.Event) (payments.Event, error) {
	var kind payments.EventKind
	switch string(ev.Type) {
	case "payment_intent.amount_capturable_updated":
		kind = payments.EventAuthorized
	case "payment_intent.succeeded":
		kind = payments.EventSucceeded
	case "payment_intent.payment_failed":
		kind = payments.EventFailed
	case "payment_intent.canceled":
		kind = payments.EventCanceled
	default:
		return payments.Event{}, payments.ErrIgnoredEvent
	}
	if ev.Data == nil {
		return payments.Event{}, fmt.Errorf("event %s has no data", ev.ID)
	}

	var pi stripe.PaymentIntent
	if err := json.Unmarshal(ev.Data.Raw, &pi); err != nil {
		return payments.Event{}, fmt.Errorf("decode payment intent: %w", err)
	}
	if pi.ID == "" {
		return payments.Event{}, fmt.Errorf("event %s has no payment intent id", ev.ID)
	}
	return payments.Event{ID: ev.ID, Kind: kind, Ref: pi.ID}, nil
}

func mapError(op string, err error) error {
	if err == nil {
		return nil
	}
	var stripeErr *stripe.Error
	if errors.As(err, &stripeErr) {
		if string(stripeErr.Type) == errorTypeCard || string(stripeErr.Code) == errorCodeUnexpectedState {
			return fmt.Errorf("%s: %w: %s", op, payments.ErrDeclined, stripeErr.Msg)
		}
	}
	return fmt.Errorf("%s: %w", op, err)
}
