package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/platepilot/ordering/internal/cart"
	"github.com/platepilot/ordering/internal/catalog"
	"github.com/platepilot/ordering/internal/config"
	"github.com/platepilot/ordering/internal/db"
	"github.com/platepilot/ordering/internal/events"
	"github.com/platepilot/ordering/internal/handler"
	"github.com/platepilot/ordering/internal/metrics"
	"github.com/platepilot/ordering/internal/order"

	addressbook "github.com/platepilot/ordering/internal/address"
)

func main() {
	zerolog.SetGlobalLevel(zerolog.DebugLevel)

	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339})
	log.Logger = log.With().Str("service", "ordering").Logger()

	log.Info().Msg("Ordering service starting...")

	cfg, err := config.Load(".env")
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to load config")
	}

	pg, err := db.New(context.Background(), cfg.Postgres)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to connect to database")
	}
	defer pg.Close()

	publisher := events.NewPublisher(cfg.Kafka.Brokers, cfg.Kafka.Topic)
	defer func() {
		if err := publisher.Close(); err != nil {
			log.Error().Err(err).Msg("Failed to close event publisher")
		}
	}()
	if publisher.Enabled() {
		log.Info().Str("topic", cfg.Kafka.Topic).Msg("Order event publishing enabled")
	} else {
		log.Info().Msg("Order event publishing disabled (no brokers configured)")
	}

	repo := order.NewRepository(pg.Pool)
	catalogReader := catalog.NewRepository(pg.Pool)
	addressReader := addressbook.NewRepository(pg.Pool)
	svc := order.NewService(repo, catalogReader, addressReader, publisher)

	carts := cart.NewStore(cfg.App.CartTTL)
	defer carts.Stop()

	m := metrics.New()
	router := handler.NewRouter(svc, carts, m)

	srv := &http.Server{
		Addr:         ":" + cfg.App.Port,
		Handler:      router,
		ReadTimeout:  5 * time.Second,
		WriteTimeout: 10 * time.Second,
		IdleTimeout:  120 * time.Second,
	}

	go func() {
		log.Info().Str("port", cfg.App.Port).Msg("Starting HTTP server")
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal().Err(err).Msg("Server failed")
		}
	}()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	<-sigChan
	log.Info().Msg("Shutting down...")

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		log.Fatal().Err(err).Msg("Shutdown failed")
	}
	log.Info().Msg("Server stopped")
}
