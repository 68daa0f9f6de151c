package main

import (
	"context"
	"flag"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"

	"github.com/rivalscope/intel-pipeline/internal/app"
	"github.com/rivalscope/intel-pipeline/internal/platform/config"
)

func main() {
	mode := flag.String("mode", app.ModeWorker, "run mode: worker or collector")
	flag.Parse()

	cfg, err := config.Load()
	if err != nil {
		fallback := newLogger("local")
		fallback.Fatal().Err(err).Msg("failed to load configuration")
	}

	logger := newLogger(cfg.AppEnv)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := app.New(cfg, &logger).Run(ctx, *mode); err != nil {
		logger.Fatal().Err(err).Str("mode", *mode).Msg("service exited with error")
	}

	logger.Info().Str("mode", *mode).Msg("service stopped")
}

func newLogger(appEnv string) zerolog.Logger {
	if appEnv == "local" {
		return zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.Kitchen}).
			With().Timestamp().Logger()
	}

	return zerolog.New(os.Stderr).With().Timestamp().Logger()
}
