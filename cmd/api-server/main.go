package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/pharmhub/pharmacy-reservations/internal/api"
	"github.com/pharmhub/pharmacy-reservations/internal/config"
	"github.com/pharmhub/pharmacy-reservations/internal/db"
	redisclient "github.com/pharmhub/pharmacy-reservations/internal/redis"
	"github.com/pharmhub/pharmacy-reservations/internal/reservation"
	"github.com/pharmhub/pharmacy-reservations/internal/schedule"
	"github.com/pharmhub/pharmacy-reservations/internal/tracing"
)

const version = "0.3.0"

func main() {
	logger := slog.New(slog.NewJSONHandler(os.Stdout, nil)).With("service", "pharmacy-api")
	logger.Info("api-server starting up", "version", version)

	cfg, err := config.Load()
	if err != nil {
		logger.Error("config load error", "err", err)
		os.Exit(1)
	}
	logger.Info("configured", "env", cfg.Env, "http_port", cfg.HTTPPort, "window_days", cfg.WindowDays)

	rootCtx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Connect Postgres and make sure the schema exists
	pgCtx, cancelPg := context.WithTimeout(rootCtx, 10*time.Second)
	pgPool, err := db.ConnectPostgres(pgCtx, cfg.PostgresDSN)
	cancelPg()
	if err != nil {
		logger.Error("postgres connection error", "err", err)
		os.Exit(1)
	}
	defer pgPool.Close()

	schemaCtx, cancelSchema := context.WithTimeout(rootCtx, 30*time.Second)
	err = db.EnsureSchema(schemaCtx, pgPool)
	cancelSchema()
	if err != nil {
		logger.Error("schema error", "err", err)
		os.Exit(1)
	}
	logger.Info("connected to Postgres")

	// Connect Redis
	rdb, err := redisclient.NewRedisClient(cfg.RedisAddr, cfg.RedisUsername, cfg.RedisPassword)
	if err != nil {
		logger.Error("redis connection error", "err", err)
		os.Exit(1)
	}
	defer func() {
		if err := rdb.Close(); err != nil {
			logger.Error("error closing redis", "err", err)
		}
	}()
	logger.Info("connected to Redis")

	// Tracing
	shutdownTracing, err := tracing.Setup(rootCtx, tracing.ConfigFromEnv("pharmacy-api"))
	if err != nil {
		logger.Error("tracing setup error", "err", err)
		os.Exit(1)
	}
	defer func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := shutdownTracing(ctx); err != nil {
			logger.Error("tracing shutdown error", "err", err)
		}
	}()

	// Wire the core
	repo := reservation.NewPgRepository(pgPool)
	cache := redisclient.NewAvailabilityCache(rdb, cfg.AvailabilityCacheTTL)
	svc := reservation.NewService(repo, cache, logger, cfg.WindowDays)

	// The scheduler owns the daily sweep+generate cycle for the process
	// lifetime; Stop cancels any pending timer on shutdown.
	sched := schedule.New(svc, logger, schedule.Config{
		DaysAhead:  cfg.WindowDays,
		RunTimeout: cfg.SchedulerRunTimeout,
	})
	sched.Start()
	defer sched.Stop()

	router := api.NewRouter(api.RouterConfig{
		Service: svc,
		PgPool:  pgPool,
		Redis:   rdb,
		Logger:  logger,
		Env:     cfg.Env,
		Version: version,
	})

	srv := &http.Server{
		Addr:              ":" + cfg.HTTPPort,
		Handler:           router,
		ReadHeaderTimeout: 5 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("listening", "addr", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		logger.Error("http server error", "err", err)
		os.Exit(1)
	case <-rootCtx.Done():
	}

	logger.Info("shutting down api-server")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("http shutdown error", "err", err)
	}
}
