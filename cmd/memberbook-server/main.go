package main

import (
	"context"
	"errors"
	"log/slog"
	"net"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"google.golang.org/grpc"

	bookingsv1 "memberbook/backend/internal/api/bookingsv1"
	"memberbook/backend/internal/app"
	"memberbook/backend/internal/auth"
	"memberbook/backend/internal/config"
	grpcTransport "memberbook/backend/internal/transport/grpc"
	"memberbook/backend/internal/transport/httpapi"
)

func main() {
	log := app.NewLogger("memberbook-server", "info")
	slog.SetDefault(log)

	cfg, err := config.Load()
	if err != nil {
		log.Error("config load failed", slog.Any("err", err))
		os.Exit(1)
	}

	log = app.NewLogger("memberbook-server", cfg.LogLevel)
	slog.SetDefault(log)

	log.Info("starting",
		slog.String("grpc_addr", cfg.GRPCAddr()),
		slog.String("http_addr", cfg.HTTPAddr),
		slog.String("store_driver", cfg.StoreDriver),
		slog.String("log_level", cfg.LogLevel),
	)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	a, err := app.New(ctx, cfg, log)
	if err != nil {
		args := append([]any{slog.Any("err", err)}, app.DatabaseLogArgs(cfg.DatabaseURL)...)
		log.Error("startup failed", args...)
		os.Exit(1)
	}
	// Exits past this point must close a themselves.
	fail := func(msg string, args ...any) {
		log.Error(msg, args...)
		a.Close()
		os.Exit(1)
	}

	verifier := auth.NewVerifier(cfg.JWTSecret)
	if !verifier.Enabled() {
		log.Warn("auth jwt secret not set; trusting the x-user-id header")
	}

	grpcServer := grpc.NewServer(grpc.ChainUnaryInterceptor(
		grpcTransport.RequestTimeoutInterceptor(cfg.GRPCRequestTimeout),
		grpcTransport.AuthInterceptor(verifier),
	))
	bookingsv1.RegisterBookingsServiceServer(grpcServer, grpcTransport.NewBookingsServer(a.Availability, a.Bookings, log))

	lis, err := net.Listen("tcp", cfg.GRPCAddr())
	if err != nil {
		fail("grpc listen failed", slog.Any("err", err), slog.String("grpc_addr", cfg.GRPCAddr()))
	}

	worker, mux := app.NotificationWorker(cfg, log)
	if worker != nil {
		if err := worker.Start(mux); err != nil {
			_ = lis.Close()
			fail("notification worker failed to start", slog.Any("err", err))
		}
	}

	gin.SetMode(gin.ReleaseMode)
	deps := httpapi.Deps{Availability: a.Availability, Payments: a.Bookings, Health: a.Stores.Ping, Log: log}
	if a.Webhook != nil {
		deps.Webhook = a.Webhook
	}
	httpServer := &http.Server{
		Addr: cfg.HTTPAddr,
		Handler: httpapi.NewRouter(httpapi.Config{
			CORSOrigins:    cfg.CORSOrigins,
			RateLimitRPS:   cfg.RateLimitRPS,
			RateLimitBurst: cfg.RateLimitBurst,
		}, deps),
		ReadHeaderTimeout: 5 * time.Second,
	}

	errCh := make(chan error, 2)
	go func() {
		errCh <- grpcServer.Serve(lis)
	}()
	go func() {
		if err := httpServer.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	reaperCtx, stopReaper := context.WithCancel(context.Background())
	var background sync.WaitGroup
	background.Add(1)
	go func() {
		defer background.Done()
		_ = a.Reaper.Run(reaperCtx)
	}()

	log.Info("servers started", slog.String("grpc_addr", cfg.GRPCAddr()), slog.String("http_addr", cfg.HTTPAddr))

	exitCode := 0
	select {
	case <-ctx.Done():
		log.Info("shutdown signal received")
	case err := <-errCh:
		if err != nil && !errors.Is(err, grpc.ErrServerStopped) {
			log.Error("server stopped with error", slog.Any("err", err))
			exitCode = 1
		}
	}

	stopReaper()
	shutdownHTTP(log, httpServer, cfg.ShutdownTimeout)
	shutdownGRPC(log, grpcServer, cfg.ShutdownTimeout)
	background.Wait()
	if worker != nil {
		worker.Shutdown()
	}
	a.Close()
	if exitCode != 0 {
		os.Exit(exitCode)
	}
}

func shutdownHTTP(log *slog.Logger, s *http.Server, timeout time.Duration) {
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()
	if err := s.Shutdown(ctx); err != nil {
		log.Warn("http graceful shutdown failed", slog.Any("err", err))
	}
}

func shutdownGRPC(log *slog.Logger, s *grpc.Server, timeout time.Duration) {
	log.Info("shutting down grpc server", slog.Duration("timeout", timeout))

	done := make(chan struct{})
	go func() {
		s.GracefulStop()
		close(done)
	}()

	timer := time.NewTimer(timeout)
	defer timer.Stop()

	select {
	case <-done:
		log.Info("grpc server stopped")
	case <-timer.C:
		log.Warn("grpc graceful shutdown timed out; forcing stop")
		s.Stop()
	}
}
