package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"

	"github.com/SanyakornPFP/pfp-timestamp-attendance/internal/attendance/clock"
	"github.com/SanyakornPFP/pfp-timestamp-attendance/internal/attendance/engine"
	"github.com/SanyakornPFP/pfp-timestamp-attendance/internal/attendance/events"
	"github.com/SanyakornPFP/pfp-timestamp-attendance/internal/attendance/repository"
	"github.com/SanyakornPFP/pfp-timestamp-attendance/internal/attendance/shift"
	"github.com/SanyakornPFP/pfp-timestamp-attendance/internal/attendance/supervisor"
	"github.com/SanyakornPFP/pfp-timestamp-attendance/internal/device"
	"github.com/SanyakornPFP/pfp-timestamp-attendance/pkg/config"
	"github.com/SanyakornPFP/pfp-timestamp-attendance/pkg/database"
	"github.com/SanyakornPFP/pfp-timestamp-attendance/pkg/httputil"
	"github.com/SanyakornPFP/pfp-timestamp-attendance/pkg/logger"
	"github.com/SanyakornPFP/pfp-timestamp-attendance/pkg/messaging"
)

func main() {
	// Load configuration
	cfg, err := config.Load("attendance-listener")
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}

	// Initialize logger
	log := logger.New("attendance-listener", cfg.Log.Level, cfg.Log.Pretty)
	log.Info().Int("devices", len(cfg.Devices.IPs)).Msg("starting attendance listener")
	for _, warning := range cfg.Warnings {
		log.Warn().Msg(warning)
	}

	if err := cfg.Validate(); err != nil {
		log.Fatal().Err(err).Msg("invalid configuration")
	}

	// Connect to database
	db, err := database.New(&cfg.Database, log)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to connect to database")
	}
	defer db.Close()

	// Connect to RabbitMQ when configured; the listener runs fine without
	// a broker.
	var rmq *messaging.RabbitMQ
	var publisher *events.PunchPublisher
	if cfg.RabbitMQ.URL != "" {
		rmq, err = messaging.New(&cfg.RabbitMQ, log)
		if err != nil {
			log.Fatal().Err(err).Msg("failed to connect to RabbitMQ")
		}
		defer rmq.Close()

		publisher, err = events.NewPunchPublisher(rmq, "attendance-listener", log)
		if err != nil {
			log.Fatal().Err(err).Msg("failed to create event publisher")
		}
	}

	// Initialize the reconciliation pipeline
	repo := repository.NewLedgerRepository(db)
	clk := clock.NewSystem(cfg.Devices.TZOffsetHours)
	eng := engine.New(repo, shift.NewResolver(repo), log)

	sup := supervisor.New(supervisor.Options{
		Terminals:      device.Inventory(&cfg.Devices),
		Processor:      eng,
		Clock:          clk,
		Publisher:      publisher,
		PollInterval:   cfg.Devices.PollInterval,
		ConnectTimeout: cfg.Devices.ConnectTimeout,
	}, log)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	supDone := make(chan struct{})
	go func() {
		sup.Run(ctx)
		close(supDone)
	}()

	// Ops router
	r := chi.NewRouter()
	r.Use(middleware.RealIP)
	r.Use(httputil.RequestID)
	r.Use(httputil.Logger(log))
	r.Use(httputil.Recoverer(log))
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: []string{"*"},
		AllowedMethods: []string{"GET"},
	}))

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		health := map[string]interface{}{
			"status":   "healthy",
			"service":  "attendance-listener",
			"database": db.Health(r.Context()),
		}
		if rmq != nil {
			health["rabbitmq"] = rmq.Health()
		}
		httputil.JSON(w, http.StatusOK, health)
	})

	r.Get("/status", func(w http.ResponseWriter, r *http.Request) {
		httputil.JSON(w, http.StatusOK, map[string]interface{}{
			"service": "attendance-listener",
			"devices": sup.Status(),
		})
	})

	srv := &http.Server{
		Addr:         cfg.Ops.Addr,
		Handler:      r,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 10 * time.Second,
	}

	go func() {
		log.Info().Str("addr", cfg.Ops.Addr).Msg("ops server listening")
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal().Err(err).Msg("ops server error")
		}
	}()

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info().Msg("shutting down")

	cancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("ops server forced to shutdown")
	}

	select {
	case <-supDone:
	case <-shutdownCtx.Done():
		log.Warn().Msg("device workers did not stop in time")
	}

	log.Info().Msg("listener stopped")
}
