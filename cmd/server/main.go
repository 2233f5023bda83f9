package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/rs/zerolog/log"

	"emittr/fourline/internal/analytics"
	"emittr/fourline/internal/config"
	"emittr/fourline/internal/server"
	"emittr/fourline/internal/storage"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("invalid configuration")
	}
	cfg.ConfigureLogging()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	var store storage.Store
	if cfg.PostgresURL != "" {
		pg, err := storage.NewPostgresStore(ctx, cfg.PostgresURL)
		if err != nil {
			log.Warn().Err(err).Msg("postgres disabled")
		} else {
			defer pg.Close(context.Background())
			if err := pg.EnsureTables(ctx); err != nil {
				log.Warn().Err(err).Msg("postgres ensure tables failed")
			}
			store = pg
		}
	}

	producer := analytics.NewProducer(cfg.KafkaBrokers, cfg.KafkaTopic)
	defer producer.Close()

	srv, err := server.New(server.Config{
		Rows:             cfg.Rows,
		Cols:             cfg.Cols,
		SearchDepth:      cfg.SearchDepth,
		SearchOptions:    cfg.SearchOptions(),
		BotFallbackAfter: cfg.BotDelay,
		ReconnectWindow:  cfg.ReconnectWindow,
		Store:            store,
		Analytics:        producer,
	})
	if err != nil {
		log.Fatal().Err(err).Msg("server setup failed")
	}

	log.Info().
		Str("addr", cfg.Addr).
		Int("rows", cfg.Rows).
		Int("cols", cfg.Cols).
		Int("depth", cfg.SearchDepth).
		Msg("server listening")
	if err := srv.Run(ctx, cfg.Addr); err != nil {
		log.Fatal().Err(err).Msg("server stopped")
	}
}
