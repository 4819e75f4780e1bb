package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"

	"github.com/parleyapp/parley/internal/api"
	"github.com/parleyapp/parley/internal/config"
	"github.com/parleyapp/parley/internal/files"
	"github.com/parleyapp/parley/internal/gateway"
	"github.com/parleyapp/parley/internal/handlers"
	"github.com/parleyapp/parley/internal/relay"
	"github.com/parleyapp/parley/internal/rtc"
	"github.com/parleyapp/parley/internal/session"
	"github.com/parleyapp/parley/internal/store"
)

func main() {
	// Load configuration
	cfg := config.Load()

	// Initialize logger
	var logger zerolog.Logger
	if cfg.IsDevelopment() {
		logger = zerolog.New(zerolog.ConsoleWriter{Out: os.Stdout, TimeFormat: time.RFC3339}).
			With().
			Timestamp().
			Logger()
	} else {
		logger = zerolog.New(os.Stdout).
			With().
			Timestamp().
			Logger()
	}

	ctx := context.Background()

	// Session store: the sessions table is owned by the scheduling
	// subsystem; we only read it. Without DATABASE_URL (development) an
	// empty in-memory store stands in.
	var sessions store.SessionStore
	if cfg.DatabaseURL != "" {
		pgStore, err := store.NewPostgresStore(ctx, cfg.DatabaseURL)
		if err != nil {
			logger.Fatal().Err(err).Msg("postgres connection failed")
		}
		sessions = pgStore
		logger.Info().Msg("connected to PostgreSQL")
	} else {
		logger.Warn().Msg("DATABASE_URL not set, using empty in-memory session store")
		sessions = store.NewMemoryStore()
	}
	defer sessions.Close()

	// Redis: room pub/sub transport and rate-limiter backend. Optional;
	// without it fan-out stays local to this node.
	var redisStore *store.RedisStore
	if cfg.RedisURL != "" {
		var err error
		redisStore, err = store.NewRedisStore(ctx, cfg.RedisURL)
		if err != nil {
			logger.Fatal().Err(err).Msg("redis connection failed")
		}
		defer redisStore.Close()
		logger.Info().Msg("connected to Redis")
	}

	// Uploads root
	disk, err := files.NewDiskStore(cfg.UploadDir)
	if err != nil {
		logger.Fatal().Err(err).Msg("uploads root unavailable")
	}

	// Core components
	issuer := rtc.NewIssuer(cfg.AppID, cfg.AppCertificate)
	if !issuer.Configured() {
		logger.Warn().Msg("APP_ID/APP_CERTIFICATE not set, audio credentials disabled")
	}
	authority := session.NewAuthority(sessions)
	hub := gateway.NewHub(redisStore, logger)

	// The relay publishes to redis when available so messages reach every
	// node's subscribers; otherwise directly to the local hub.
	var pub relay.Publisher = hub
	if redisStore != nil {
		pub = redisStore
	}
	rel := relay.NewRelay(pub)

	gate := files.NewGate(disk)

	h := handlers.NewHandler(authority, issuer, rel, gate, disk, hub, sessions, redisStore, logger)

	// Create router
	router := api.NewRouter(cfg, logger, h, redisStore)

	// Create server
	srv := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 60 * time.Second, // file streams and websocket upgrades
		IdleTimeout:  60 * time.Second,
	}

	// Start server in goroutine
	go func() {
		logger.Info().
			Str("port", cfg.Port).
			Str("env", cfg.Env).
			Msg("starting parley server")

		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal().Err(err).Msg("server failed to start")
		}
	}()

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info().Msg("shutting down server...")

	// Graceful shutdown with 30 second timeout
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Fatal().Err(err).Msg("server forced to shutdown")
	}

	logger.Info().Msg("server stopped")
}
