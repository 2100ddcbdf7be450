package api

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
)

type RouterConfig struct {
	Service ReservationService
	PgPool  *pgxpool.Pool
	Redis   *redis.Client
	Logger  *slog.Logger
	Env     string
	Version string
}

func NewRouter(cfg RouterConfig) http.Handler {
	r := chi.NewRouter()

	r.Use(RequestIDMiddleware)
	r.Use(NewLoggingMiddleware(cfg.Logger))

	// Health endpoints
	health := NewHealthHandler(cfg.PgPool, cfg.Redis, cfg.Env, cfg.Version)
	r.Get("/health/live", health.Liveness)
	r.Get("/health/ready", health.Readiness)

	// Availability read paths
	r.Get("/pharmacies/{id}/availability", availabilityHandler(cfg.Service))
	r.Get("/pharmacies/{id}/slots", slotsHandler(cfg.Service))

	// Booking and lifecycle
	r.Post("/reservations", bookHandler(cfg.Service))
	r.Post("/reservations/{id}/cancel", cancelHandler(cfg.Service))
	r.Get("/users/{id}/reservations", listReservationsHandler(cfg.Service))
	r.Delete("/users/{id}/reservations/canceled", purgeCanceledHandler(cfg.Service))

	return otelhttp.NewHandler(r, "pharmacy-api")
}
