package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"emittr/fourline/internal/search"
)

type Config struct {
	Addr            string
	BotDelay        time.Duration
	ReconnectWindow time.Duration
	PostgresURL     string
	KafkaBrokers    []string
	KafkaTopic      string
	KafkaGroup      string
	Rows            int
	Cols            int
	SearchDepth     int
	SearchWorkers   int
	Exhaustion      search.ExhaustionPolicy
	LogLevel        zerolog.Level
	LogPretty       bool
}

// Load reads the configuration from the environment. PORT wins over
// ADDR so hosted platforms can inject the listen port.
func Load() (Config, error) {
	cfg := Config{
		Addr:        getEnv("ADDR", ":8080"),
		PostgresURL: os.Getenv("POSTGRES_URL"),
		KafkaTopic:  getEnv("KAFKA_TOPIC", "game-events"),
		KafkaGroup:  getEnv("KAFKA_GROUP", "analytics-consumer"),
		LogPretty:   os.Getenv("LOG_PRETTY") != "",
	}
	if port := os.Getenv("PORT"); port != "" {
		cfg.Addr = ":" + port
	}
	if brokers := os.Getenv("KAFKA_BROKERS"); brokers != "" {
		for _, b := range strings.Split(brokers, ",") {
			if b = strings.TrimSpace(b); b != "" {
				cfg.KafkaBrokers = append(cfg.KafkaBrokers, b)
			}
		}
	}

	var err error
	if cfg.BotDelay, err = durationEnv("BOT_DELAY", 10*time.Second); err != nil {
		return cfg, err
	}
	if cfg.ReconnectWindow, err = durationEnv("RECONNECT_WINDOW", 30*time.Second); err != nil {
		return cfg, err
	}
	if cfg.Rows, err = intEnv("BOARD_ROWS", 7); err != nil {
		return cfg, err
	}
	if cfg.Cols, err = intEnv("BOARD_COLS", 7); err != nil {
		return cfg, err
	}
	if cfg.SearchDepth, err = intEnv("SEARCH_DEPTH", 1); err != nil {
		return cfg, err
	}
	if cfg.SearchWorkers, err = intEnv("SEARCH_WORKERS", 1); err != nil {
		return cfg, err
	}
	if cfg.Exhaustion, err = search.ParseExhaustionPolicy(getEnv("SEARCH_EXHAUSTION", "sentinel")); err != nil {
		return cfg, err
	}
	if cfg.LogLevel, err = zerolog.ParseLevel(getEnv("LOG_LEVEL", "info")); err != nil {
		return cfg, fmt.Errorf("LOG_LEVEL: %w", err)
	}

	if cfg.Rows <= 0 || cfg.Cols <= 0 {
		return cfg, fmt.Errorf("board must be at least 1x1, got %dx%d", cfg.Rows, cfg.Cols)
	}
	if cfg.SearchDepth <= 0 {
		return cfg, fmt.Errorf("SEARCH_DEPTH must be positive, got %d", cfg.SearchDepth)
	}
	if cfg.SearchWorkers <= 0 {
		return cfg, fmt.Errorf("SEARCH_WORKERS must be positive, got %d", cfg.SearchWorkers)
	}
	return cfg, nil
}

// SearchOptions turns the search settings into agent options.
func (c Config) SearchOptions() []search.Option {
	return []search.Option{
		search.WithParallel(c.SearchWorkers),
		search.WithExhaustion(c.Exhaustion),
	}
}

// ConfigureLogging applies the level and output format to the global
// logger.
func (c Config) ConfigureLogging() {
	zerolog.SetGlobalLevel(c.LogLevel)
	if c.LogPretty {
		log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.Kitchen})
	}
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

// durationEnv accepts either whole seconds or a Go duration string.
func durationEnv(key string, fallback time.Duration) (time.Duration, error) {
	v := os.Getenv(key)
	if v == "" {
		return fallback, nil
	}
	if secs, err := strconv.Atoi(v); err == nil {
		return time.Duration(secs) * time.Second, nil
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return 0, fmt.Errorf("%s: %w", key, err)
	}
	return d, nil
}

func intEnv(key string, fallback int) (int, error) {
	v := os.Getenv(key)
	if v == "" {
		return fallback, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, fmt.Errorf("%s: %w", key, err)
	}
	return n, nil
}
