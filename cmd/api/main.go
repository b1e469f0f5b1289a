// Package main is the entry point for the ride-sharing booking API server.
// Its sole responsibility is wiring dependencies together and starting the server.
// No business logic belongs here.
package main

import (
	"context"
	"database/sql"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/jackc/pgx/v5/pgxpool"
	_ "github.com/jackc/pgx/v5/stdlib" // registers "pgx" driver for database/sql

	"github.com/pkordes/rideshare-booking/internal/config"
	"github.com/pkordes/rideshare-booking/internal/handler"
	"github.com/pkordes/rideshare-booking/internal/middleware"
	"github.com/pkordes/rideshare-booking/internal/notify"
	"github.com/pkordes/rideshare-booking/internal/pricing"
	"github.com/pkordes/rideshare-booking/internal/repo"
	"github.com/pkordes/rideshare-booking/internal/service"
	"github.com/pkordes/rideshare-booking/migrations"
	"github.com/pkordes/rideshare-booking/spec"
)

// amqpDialAttempts bounds how long start-up waits for the broker.
const amqpDialAttempts = 5

func main() {
	// --- Config -----------------------------------------------------------
	cfg, err := config.Load()
	if err != nil {
		// Use plain stderr before the logger is configured.
		slog.Error("configuration error", "error", err)
		os.Exit(1)
	}

	// --- Logger -----------------------------------------------------------
	var logLevel slog.Level
	if err := logLevel.UnmarshalText([]byte(cfg.LogLevel)); err != nil {
		logLevel = slog.LevelInfo
	}
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: logLevel,
	}))
	slog.SetDefault(logger)

	ctx := context.Background()

	// --- Database ---------------------------------------------------------
	if cfg.MigrateOnStart {
		if err := migrate(ctx, cfg.DatabaseURL, logger); err != nil {
			slog.Error("failed to apply migrations", "error", err)
			os.Exit(1)
		}
	}

	pool, err := pgxpool.New(ctx, cfg.DatabaseURL)
	if err != nil {
		slog.Error("failed to create database pool", "error", err)
		os.Exit(1)
	}
	defer pool.Close()

	// Verify the DB is reachable before accepting traffic.
	if err := pool.Ping(ctx); err != nil {
		slog.Error("failed to connect to database", "error", err)
		os.Exit(1)
	}
	slog.Info("database connection established")

	// --- Notifications ----------------------------------------------------
	var notifier service.Notifier = notify.NewLogNotifier(logger)
	if cfg.AMQPURL != "" {
		mq, err := notify.DialAMQP(ctx, cfg.AMQPURL, cfg.NotifyExchange, amqpDialAttempts, logger)
		if err != nil {
			slog.Error("failed to connect to message broker", "error", err)
			os.Exit(1)
		}
		defer mq.Close()
		notifier = mq
		slog.Info("publishing notifications", "exchange", cfg.NotifyExchange)
	}

	// --- Services ---------------------------------------------------------
	calc, err := pricing.NewCalculator(cfg.ServiceFeeBPS)
	if err != nil {
		slog.Error("invalid pricing configuration", "error", err)
		os.Exit(1)
	}

	trips := repo.NewTripRepo(pool)
	vouchers := repo.NewVoucherRepo(pool)
	bookings := repo.NewBookingRepo(pool)
	tx := repo.NewTxRunner(pool)

	bookingSvc := service.NewBookingService(trips, vouchers, bookings, tx, calc, notifier, logger)
	cancelSvc := service.NewCancellationService(trips, bookings, tx, notifier, logger)
	exportSvc := service.NewExportService(trips, bookings)

	api := handler.NewServer(bookingSvc, cancelSvc, exportSvc, spec.OpenAPI)

	// --- Router -----------------------------------------------------------
	// Middleware is applied in order: RequestID → RealIP → Logger → Recoverer → CORS → body limit.
	r := chi.NewRouter()
	r.Use(chimiddleware.RequestID)
	r.Use(chimiddleware.RealIP)
	r.Use(middleware.NewSlogLogger(logger))
	r.Use(chimiddleware.Recoverer)
	r.Use(middleware.NewCORSHandler(cfg.CORSOrigins))
	r.Use(middleware.NewMaxBodySizeHandler(cfg.MaxBodyBytes))

	r.Mount("/", api.Routes(middleware.NewAuth([]byte(cfg.JWTSecret))))

	// --- HTTP Server ------------------------------------------------------
	srv := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      r,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 10 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// Graceful shutdown: wait for OS signal, then give in-flight requests
	// up to 15 seconds to complete before forcefully closing.
	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		slog.Info("server starting", "addr", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			slog.Error("server error", "error", err)
			os.Exit(1)
		}
	}()

	<-stop
	slog.Info("shutting down server")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		slog.Error("shutdown error", "error", err)
		os.Exit(1)
	}
	slog.Info("server stopped")
}

// migrate applies pending migrations over a short-lived database/sql handle;
// goose does not speak pgxpool.
func migrate(ctx context.Context, dsn string, log *slog.Logger) error {
	db, err := sql.Open("pgx", dsn)
	if err != nil {
		return err
	}
	defer db.Close()
	return migrations.Up(ctx, db, log)
}
