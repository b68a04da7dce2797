package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/spf13/pflag"

	"github.com/sawpanic/legscan/internal/domain/discretize"
)

func main() {
	zerolog.TimeFieldFormat = time.RFC3339
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.Kitchen})

	seedLogPath := pflag.String("seed-log", "", "optional discretization log JSON file to preload into /logs/latest")
	pflag.Parse()

	cfg := DefaultConfig()
	reg := prometheus.NewRegistry()

	srv, err := NewServer(cfg, reg)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to construct legscand server")
	}

	if *seedLogPath != "" {
		data, err := os.ReadFile(*seedLogPath)
		if err != nil {
			log.Fatal().Err(err).Str("path", *seedLogPath).Msg("failed to read seed log")
		}
		logDoc, warn, err := discretize.Read(data, discretize.DefaultConfig())
		if err != nil {
			log.Fatal().Err(err).Msg("failed to parse seed log")
		}
		if warn != nil {
			log.Warn().Str("warning", warn.Message).Msg("seed log config mismatch")
		}
		srv.SetLatest(logDoc)
	}

	errCh := make(chan error, 1)
	go func() { errCh <- srv.Start() }()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	select {
	case err := <-errCh:
		log.Fatal().Err(err).Msg("legscand server stopped")
	case <-sigCh:
		log.Info().Msg("shutting down legscand")
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := srv.Shutdown(ctx); err != nil {
			log.Error().Err(err).Msg("graceful shutdown failed")
		}
	}
}
