package main

import (
	"context"
	"encoding/json"
	"errors"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/segmentio/kafka-go"

	"emittr/fourline/internal/analytics"
	"emittr/fourline/internal/config"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("invalid configuration")
	}
	cfg.ConfigureLogging()

	brokers := cfg.KafkaBrokers
	if len(brokers) == 0 {
		brokers = []string{"localhost:9092"}
	}

	reader := kafka.NewReader(kafka.ReaderConfig{
		Brokers: brokers,
		Topic:   cfg.KafkaTopic,
		GroupID: cfg.KafkaGroup,
	})
	defer reader.Close()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	log.Info().Strs("brokers", brokers).Str("topic", cfg.KafkaTopic).Msg("analytics consumer listening")

	agg := analytics.NewAggregator()
	go func() {
		ticker := time.NewTicker(30 * time.Second)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				agg.Log(log.Logger)
			}
		}
	}()

	for {
		msg, err := reader.ReadMessage(ctx)
		if errors.Is(err, context.Canceled) {
			agg.Log(log.Logger)
			return
		}
		if err != nil {
			log.Fatal().Err(err).Msg("read error")
		}
		var e analytics.Event
		if err := json.Unmarshal(msg.Value, &e); err != nil {
			log.Warn().Err(err).Msg("failed to unmarshal event")
			continue
		}
		agg.Record(e)

		log.Debug().
			Str("event", e.Event).
			Interface("gameId", e.Payload["gameId"]).
			Interface("winner", e.Payload["winner"]).
			Msg("event")
	}
}
