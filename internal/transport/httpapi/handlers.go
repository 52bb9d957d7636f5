package httpapi

import (
	"context"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/gin-gonic/gin"

	"memberbook/backend/internal/domain"
	"memberbook/backend/internal/payments"
	"memberbook/backend/internal/service"
	"memberbook/backend/internal/store"
)

const maxWebhookBytes = 64 << 10

type handlers struct {
	availability AvailabilityLister
	payments     PaymentEventHandler
	webhook      WebhookParser
	health       func(ctx context.Context) error
	log          *slog.Logger
}

type errorResponse struct {
	Error struct {
		Message string `json:"message"`
	} `json:"error"`
}

func errorBody(msg string) errorResponse {
	var resp errorResponse
	resp.Error.Message = msg
	return resp
}

func abort(c *gin.Context, status int, err error, msg string) {
	_ = c.Error(err)
	c.AbortWithStatusJSON(status, errorBody(msg))
}

func (h *handlers) healthz(c *gin.Context) {
	if h.health != nil {
		ctx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Second)
		defer cancel()
		if err := h.health(ctx); err != nil {
			abort(c, http.StatusServiceUnavailable, err, "store unavailable")
			return
		}
	}
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

type slotResponse struct {
	Start time.Time `json:"start"`
	End   time.Time `json:"end"`
}

func (h *handlers) listAvailability(c *gin.Context) {
	from, err := domain.ParseDate(strings.TrimSpace(c.Query("from")))
	if err != nil {
		abort(c, http.StatusBadRequest, err, "from must be a YYYY-MM-DD date")
		return
	}
	to, err := domain.ParseDate(strings.TrimSpace(c.Query("to")))
	if err != nil {
		abort(c, http.StatusBadRequest, err, "to must be a YYYY-MM-DD date")
		return
	}

	slots, err := h.availability.ListAvailability(c.Request.Context(), domain.QueryWindow{
		ProviderID: strings.TrimSpace(c.Param("id")),
		RangeStart: from,
		RangeEnd:   to,
	})
	if err != nil {
		h.fail(c, err)
		return
	}

	out := make([]slotResponse, 0, len(slots))
	for _, s := range slots {
		out = append(out, slotResponse{Start: s.Start, End: s.End})
	}
	c.JSON(http.StatusOK, gin.H{"slots": out})
}

// stripeWebhook verifies and applies a payment processor event. Non-2xx responses
// make the processor redeliver, so only failures worth retrying return 5xx.
func (h *handlers) stripeWebhook(c *gin.Context) {
	payload, err := io.ReadAll(io.LimitReader(c.Request.Body, maxWebhookBytes+1))
	if err != nil {
		abort(c, http.StatusBadRequest, err, "unreadable body")
		return
	}
	if len(payload) > maxWebhookBytes {
		abort(c, http.StatusRequestEntityTooLarge, errors.New("webhook payload too large"), "payload too large")
		return
	}

	ev, err := h.webhook.ParseWebhook(payload, c.GetHeader("Stripe-Signature"))
	if errors.Is(err, payments.ErrIgnoredEvent) {
		c.Status(http.StatusOK)
		return
	}
	if err != nil {
		h.log.Warn("webhook rejected", slog.Any("err", err))
		abort(c, http.StatusBadRequest, err, "invalid webhook")
		return
	}

	if err := h.payments.HandlePaymentEvent(c.Request.Context(), ev); err != nil {
		h.log.Error("webhook handling failed",
			slog.String("event_id", ev.ID),
			slog.String("payment_ref", ev.Ref),
			slog.Any("err", err),
		)
		abort(c, http.StatusInternalServerError, err, "event not applied")
		return
	}
	h.log.Info("webhook applied", slog.String("event_id", ev.ID), slog.String("kind", string(ev.Kind)), slog.String("payment_ref", ev.Ref))
	c.Status(http.StatusOK)
}

func (h *handlers) fail(c *gin.Context, err error) {
	var vErr *service.ValidationError
	switch {
	case errors.As(err, &vErr):
		abort(c, http.StatusBadRequest, err, vErr.Error())
	case errors.Is(err, domain.ErrInvalidTemplate), errors.Is(err, domain.ErrInvalidTimeRange):
		abort(c, http.StatusBadRequest, err, err.Error())
	case errors.Is(err, store.ErrNotFound):
		abort(c, http.StatusNotFound, err, "not found")
	case errors.Is(err, service.ErrStoreUnavailable):
		abort(c, http.StatusServiceUnavailable, err, "The booking service is busy. Try again.")
	default:
		h.log.Error("request failed", slog.Any("err", err))
		abort(c, http.StatusInternalServerError, err, "internal error")
	}
}
