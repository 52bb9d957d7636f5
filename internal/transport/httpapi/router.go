// Package httpapi serves the public HTTP surface: health, read-only availability
// and the payment processor webhook.
package httpapi

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"

	"memberbook/backend/internal/domain"
	"memberbook/backend/internal/payments"
)

type AvailabilityLister interface {
	ListAvailability(ctx context.Context, w domain.QueryWindow) ([]domain.TimeSlot, error)
}

type PaymentEventHandler interface {
	HandlePaymentEvent(ctx context.Context, ev payments.Event) error
}

type WebhookParser interface {
	ParseWebhook(payload []byte, signature string) (payments.Event, error)
}

type Config struct {
	CORSOrigins    []string
	RateLimitRPS   float64
	RateLimitBurst int
}

type Deps struct {
	Availability AvailabilityLister
	Payments     PaymentEventHandler
	// Webhook is nil when no payment processor webhook is configured.
	Webhook WebhookParser
	// Health reports whether the store is reachable. Nil means always healthy.
	Health func(ctx context.Context) error
	Log    *slog.Logger
}

type route struct {
	Method  string
	Path    string
	Handler gin.HandlerFunc
	Mw      []gin.HandlerFunc
}

func NewRouter(cfg Config, deps Deps) *gin.Engine {
	log := deps.Log
	if log == nil {
		log = slog.Default()
	}
	log = log.With(slog.String("component", "http"))

	engine := gin.New()
	engine.Use(gin.Recovery())
	if len(cfg.CORSOrigins) > 0 {
		engine.Use(cors.New(cors.Config{
			AllowOrigins: cfg.CORSOrigins,
			AllowMethods: []string{http.MethodGet, http.MethodOptions},
			AllowHeaders: []string{"Origin", "Content-Type", "Authorization"},
			MaxAge:       12 * time.Hour,
		}))
	}
	engine.Use(requestLogger(log))

	h := &handlers{availability: deps.Availability, payments: deps.Payments, webhook: deps.Webhook, health: deps.Health, log: log}
	limiter := newIPRateLimiter(cfg.RateLimitRPS, cfg.RateLimitBurst)

	routes := []route{
		{Method: http.MethodGet, Path: "/healthz", Handler: h.healthz},
		{Method: http.MethodGet, Path: "/v1/providers/:id/availability", Handler: h.listAvailability, Mw: []gin.HandlerFunc{limiter.middleware(log)}},
	}
	if deps.Webhook != nil && deps.Payments != nil {
		routes = append(routes, route{Method: http.MethodPost, Path: "/v1/webhooks/stripe", Handler: h.stripeWebhook})
	}
	for _, r := range routes {
		engine.Handle(r.Method, r.Path, append(r.Mw, r.Handler)...)
	}
	return engine
}

func requestLogger(log *slog.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		status := c.Writer.Status()
		level := slog.LevelInfo
		if status >= 500 {
			level = slog.LevelError
		} else if status >= 400 {
			level = slog.LevelWarn
		}
		attrs := []slog.Attr{
			slog.String("method", c.Request.Method),
			slog.String("path", c.FullPath()),
			slog.String("client_ip", c.ClientIP()),
			slog.Int("status_code", status),
			slog.Duration("duration", time.Since(start)),
		}
		if len(c.Errors) > 0 {
			attrs = append(attrs, slog.String("errors", c.Errors.String()))
		}
		log.LogAttrs(c.Request.Context(), level, "request completed", attrs...)
	}
}
