package main

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"syscall"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/domino14/morris/bot"
	"github.com/domino14/morris/config"
)

func main() {
	cfg := &config.Config{}
	if err := cfg.Load(os.Args[1:]); err != nil {
		log.Fatal().Err(err).Msg("bad-arguments")
	}
	log.Info().Interface("settings", cfg.AllSettings()).Msg("loaded-config")

	if cfg.GetBool(config.ConfigDebug) {
		zerolog.SetGlobalLevel(zerolog.DebugLevel)
	} else {
		zerolog.SetGlobalLevel(zerolog.InfoLevel)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	b := bot.NewBot(cfg)
	err := bot.Main(ctx, cfg.GetString(config.ConfigNatsURL), cfg.GetString(config.ConfigBotChannel), b)
	if err != nil && !errors.Is(err, context.Canceled) {
		log.Fatal().Err(err).Msg("bot-exited")
	}
	log.Info().Msg("server gracefully shutting down")
}
