package main

import (
	"flag"
	"os"

	"MarketBrief/internal/di"
	"MarketBrief/pkg/config"

	"github.com/rs/zerolog"
)

func main() {
	configPath := flag.String("config", "config/config.yaml", "path to the YAML config")
	flag.Parse()

	// The application logger is built from config; boot covers the time before.
	boot := zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr}).With().Timestamp().Str("phase", "boot").Logger()

	cfg, err := config.LoadWithEnv(*configPath)
	if err != nil {
		boot.Fatal().Err(err).Str("path", *configPath).Msg("load config")
	}

	ev := boot.Info().
		Str("env", cfg.Environment).
		Str("store", cfg.Store.Backend).
		Int("port", cfg.Server.Port).
		Bool("redis", cfg.Redis.Enabled).
		Bool("queue", cfg.Queue.Enabled)
	if cfg.Kafka.Enabled {
		ev = ev.Strs("kafka_brokers", cfg.Kafka.Brokers)
	}
	if cfg.Scheduler.Enabled {
		ev = ev.Str("schedule", cfg.Scheduler.Spec).Int("targets", len(cfg.Scheduler.Targets))
	}
	ev.Msg("starting marketbrief")

	app, err := di.InitializeApp(cfg)
	if err != nil {
		boot.Fatal().Err(err).Msg("wire application")
	}

	// Blocks until SIGINT/SIGTERM.
	if err := app.Run(); err != nil {
		boot.Error().Err(err).Msg("shutdown")
		os.Exit(1)
	}
}
