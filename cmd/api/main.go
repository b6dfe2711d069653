// Package main is the entry point for the trip ledger API server.
// Its sole responsibility is wiring dependencies together and starting the server.
// No business logic belongs here.
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

	"github.com/ThreeDotsLabs/watermill/pubsub/gochannel"
	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/jackc/pgx/v5/stdlib"

	"github.com/pkordes/rideshare-ledger/internal/auth"
	"github.com/pkordes/rideshare-ledger/internal/config"
	"github.com/pkordes/rideshare-ledger/internal/events"
	"github.com/pkordes/rideshare-ledger/internal/handler"
	"github.com/pkordes/rideshare-ledger/internal/live"
	"github.com/pkordes/rideshare-ledger/internal/middleware"
	"github.com/pkordes/rideshare-ledger/internal/repo"
	"github.com/pkordes/rideshare-ledger/internal/service"
	"github.com/pkordes/rideshare-ledger/migrations"
)

func main() {
	// --- Config -----------------------------------------------------------
	cfg, err := config.Load()
	if err != nil {
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

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// --- Storage ----------------------------------------------------------
	trips, closeStore, err := openTripRepo(ctx, cfg.DatabaseURL)
	if err != nil {
		slog.Error("failed to open trip store", "error", err)
		os.Exit(1)
	}
	defer closeStore()

	// --- Events -----------------------------------------------------------
	// In-process pub/sub: the ledger publishes committed changes, the audit
	// subscriber logs them.
	pubSub := gochannel.NewGoChannel(gochannel.Config{}, events.NewLoggerAdapter(logger))
	waitAudit, err := events.Subscribe(ctx, pubSub, events.AuditLog(logger))
	if err != nil {
		slog.Error("failed to subscribe audit log", "error", err)
		os.Exit(1)
	}

	// --- Ledger & auth ----------------------------------------------------
	ledger := service.NewTripLedger(trips,
		service.WithLocation(cfg.Location),
		service.WithEvents(events.NewPublisher(pubSub)),
		service.WithLogger(logger),
	)

	if cfg.SeedDemoTrips {
		seeded, err := service.SeedDemoTrips(ctx, ledger)
		if err != nil {
			slog.Error("failed to seed demo trips", "error", err)
			os.Exit(1)
		}
		slog.Info("demo trips seeded", "count", len(seeded))
	}

	verifier, err := auth.NewVerifier(cfg.JWTSecret, cfg.TokenTTL)
	if err != nil {
		slog.Error("failed to build token verifier", "error", err)
		os.Exit(1)
	}

	// Live seat updates for websocket clients ride on the same event stream.
	hub := live.NewHub(verifier, logger, cfg.CORSOrigins)
	waitLive, err := events.Subscribe(ctx, pubSub, hub.Broadcast)
	if err != nil {
		slog.Error("failed to subscribe live feed", "error", err)
		os.Exit(1)
	}

	// --- Router -----------------------------------------------------------
	// Middleware is applied in order: RequestID → RealIP → Logger → Recoverer
	// → CORS → body limit. Authentication is applied per route group inside
	// the handler so /healthz stays public.
	r := chi.NewRouter()
	r.Use(chimiddleware.RequestID)
	r.Use(chimiddleware.RealIP)
	r.Use(middleware.NewSlogLogger(logger))
	r.Use(chimiddleware.Recoverer)
	r.Use(middleware.NewCORSHandler(cfg.CORSOrigins))
	r.Use(middleware.NewMaxBodySizeHandler(cfg.MaxBodyBytes))

	server := handler.NewServer(ledger)
	r.Handle("/ws/trips", hub)
	r.Mount("/", server.Routes(middleware.NewAuthenticator(verifier)))

	// --- HTTP Server ------------------------------------------------------
	srv := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      r,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 10 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		slog.Info("server starting", "addr", srv.Addr, "timezone", cfg.Location.String())
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			slog.Error("server error", "error", err)
			os.Exit(1)
		}
	}()

	<-ctx.Done()
	slog.Info("shutting down server")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		slog.Error("shutdown error", "error", err)
	}
	if err := pubSub.Close(); err != nil {
		slog.Error("event bus close error", "error", err)
	}
	waitAudit()
	waitLive()
	slog.Info("server stopped")
}

// openTripRepo returns a Postgres-backed repo with migrations applied when
// databaseURL is set, otherwise an in-memory repo.
func openTripRepo(ctx context.Context, databaseURL string) (repo.TripRepo, func(), error) {
	if databaseURL == "" {
		slog.Warn("DATABASE_URL not set; trips are kept in memory only")
		return repo.NewMemoryTripRepo(), func() {}, nil
	}

	// New() does not open connections immediately; the first query does.
	pool, err := pgxpool.New(ctx, databaseURL)
	if err != nil {
		return nil, nil, err
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, nil, err
	}
	slog.Info("database connection established")

	// goose needs database/sql; share the pool rather than opening a second one.
	sqlDB := stdlib.OpenDBFromPool(pool)
	applied, err := migrations.Apply(ctx, sqlDB)
	_ = sqlDB.Close()
	if err != nil {
		pool.Close()
		return nil, nil, err
	}
	slog.Info("migrations applied", "count", applied)

	return repo.NewTripRepo(pool), pool.Close, nil
}
