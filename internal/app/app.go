// Package app assembles the services from configuration for the server and the admin CLI.
package app

import (
	"context"
	"log/slog"
	"net/url"
	"os"
	"strings"
	"sync"

	"github.com/cockroachdb/errors"
	"github.com/go-redis/redis/v8"
	"github.com/hibiken/asynq"
	"github.com/uptrace/bun"

	"memberbook/backend/internal/clock"
	"memberbook/backend/internal/config"
	"memberbook/backend/internal/notify"
	"memberbook/backend/internal/payments"
	"memberbook/backend/internal/payments/stripepay"
	"memberbook/backend/internal/reaper"
	"memberbook/backend/internal/service/availability"
	"memberbook/backend/internal/service/bookings"
	"memberbook/backend/internal/store"
	"memberbook/backend/internal/store/memory"
	"memberbook/backend/internal/store/postgres"
)

const notifyMaxRetry = 8

type Stores struct {
	Templates store.TemplateRepository
	Bookings  store.BookingRepository
	// DB is nil for the memory driver.
	DB *bun.DB
}

func (s Stores) Ping(ctx context.Context) error {
	if s.DB == nil {
		return nil
	}
	return s.DB.PingContext(ctx)
}

// App holds the wired services. Close releases every connection it opened.
type App struct {
	Stores       Stores
	Availability *availability.Service
	Bookings     *bookings.Service
	// Webhook is nil unless Stripe is configured.
	Webhook *stripepay.Processor
	Redis   *redis.Client
	Reaper  *reaper.Reaper

	asynqClient *asynq.Client
	log         *slog.Logger
	closers     []func() error
	closeOnce   sync.Once
}

func NewLogger(service, level string) *slog.Logger {
	return slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: ParseLogLevel(level)})).With(
		slog.String("service", service),
	)
}

func ParseLogLevel(level string) slog.Level {
	switch strings.ToLower(strings.TrimSpace(level)) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

func OpenStores(ctx context.Context, cfg config.Config, log *slog.Logger) (Stores, error) {
	if cfg.StoreDriver == config.DriverMemory {
		log.Warn("using in-memory store; bookings are lost on restart")
		mem := memory.New()
		return Stores{Templates: mem, Bookings: mem}, nil
	}

	log.Info("connecting to database", DatabaseLogArgs(cfg.DatabaseURL)...)
	db, err := postgres.Open(ctx, cfg.DatabaseURL, postgres.PoolConfig{
		MaxOpenConns:    cfg.DBMaxOpenConns,
		MaxIdleConns:    cfg.DBMaxIdleConns,
		ConnMaxLifetime: cfg.DBConnMaxLifetime,
		ConnMaxIdleTime: cfg.DBConnMaxIdleTime,
	})
	if err != nil {
		return Stores{}, err
	}
	return Stores{Templates: postgres.NewTemplateRepo(db), Bookings: postgres.NewBookingRepo(db), DB: db}, nil
}

func New(ctx context.Context, cfg config.Config, log *slog.Logger) (*App, error) {
	a := &App{log: log}

	stores, err := OpenStores(ctx, cfg, log)
	if err != nil {
		return nil, errors.Wrap(err, "open store")
	}
	a.Stores = stores
	if stores.DB != nil {
		a.closers = append(a.closers, func() error { return postgres.Close(stores.DB) })
	}

	var processor payments.Processor
	if cfg.StripeSecretKey != "" {
		a.Webhook = stripepay.New(cfg.StripeSecretKey, cfg.StripeWebhookSecret, nil)
		processor = a.Webhook
		if cfg.StripeWebhookSecret == "" {
			log.Warn("stripe webhook secret not set; webhook endpoint disabled")
			a.Webhook = nil
		}
	} else {
		log.Warn("stripe not configured; using sandbox payments")
		processor = payments.NewSandbox()
	}

	var notifier notify.Notifier = notify.NewLogNotifier(log)
	var lock reaper.Locker
	if cfg.RedisAddr != "" {
		a.Redis = redis.NewClient(&redis.Options{Addr: cfg.RedisAddr, Password: cfg.RedisPassword, DB: cfg.RedisDB})
		a.closers = append(a.closers, a.Redis.Close)
		lock = reaper.NewRedisLock(a.Redis, "memberbook:reaper:leader", cfg.ReaperLockTTL)

		a.asynqClient = asynq.NewClient(RedisOpt(cfg))
		a.closers = append(a.closers, a.asynqClient.Close)
		notifier = notify.NewQueue(a.asynqClient, cfg.NotifyQueue, notifyMaxRetry)
	} else {
		log.Warn("redis not configured; notifications are logged and every replica reaps")
	}

	clk := clock.NewRealClock()
	a.Availability = availability.NewService(stores.Templates, stores.Bookings, clk, log)
	a.Bookings = bookings.NewService(stores.Templates, stores.Bookings, processor, notifier, clk, log, bookings.Config{
		HoldTTL:      cfg.HoldTTL,
		StoreRetries: cfg.StoreRetries,
		RetryBackoff: cfg.RetryBackoff,
	})
	a.Reaper = reaper.New(a.Bookings, lock, cfg.ReaperInterval, cfg.ReaperBatch, log)
	return a, nil
}

func RedisOpt(cfg config.Config) asynq.RedisClientOpt {
	return asynq.RedisClientOpt{Addr: cfg.RedisAddr, Password: cfg.RedisPassword, DB: cfg.RedisDB}
}

// NotificationWorker returns the asynq server delivering queued notifications, or nil
// when Redis is not configured.
func NotificationWorker(cfg config.Config, log *slog.Logger) (*asynq.Server, *asynq.ServeMux) {
	if cfg.RedisAddr == "" {
		return nil, nil
	}
	srv := asynq.NewServer(RedisOpt(cfg), asynq.Config{
		Concurrency: 4,
		Queues:      map[string]int{cfg.NotifyQueue: 1},
	})
	return srv, notify.NewServeMux(notify.NewHandler(notify.NewLogNotifier(log), log))
}

// Close waits for pending notifications and closes connections in reverse order.
// Close drains pending notifications and releases resources in reverse order of
// acquisition. Calls after the first do nothing.
func (a *App) Close() {
	a.closeOnce.Do(func() {
		a.Bookings.Wait()
		for i := len(a.closers) - 1; i >= 0; i-- {
			if err := a.closers[i](); err != nil {
				a.log.Warn("close failed", slog.Any("err", err))
			}
		}
	})
}

func DatabaseLogArgs(databaseURL string) []any {
	u, err := url.Parse(databaseURL)
	if err != nil {
		return []any{slog.String("db_url", "invalid")}
	}
	name := strings.TrimPrefix(u.Path, "/")
	host := u.Hostname()
	port := u.Port()
	if port == "" {
		port = "default"
	}
	if host == "" {
		host = "unknown"
	}
	if name == "" {
		name = "unknown"
	}
	return []any{
		slog.String("db_host", host),
		slog.String("db_port", port),
		slog.String("db_name", name),
	}
}
