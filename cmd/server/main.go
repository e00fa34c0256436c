package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/smefin/finhealth/internal/api"
	"github.com/smefin/finhealth/internal/config"
	"github.com/smefin/finhealth/internal/logger"
	"github.com/smefin/finhealth/internal/store"
)

const version = "1.0.0"

func main() {
	cfg, err := config.Load()
	if err != nil {
		fallback := logger.New("info", false)
		fallback.Fatal().Err(err).Msg("configuration error")
	}

	log := logger.New(cfg.LogLevel, cfg.LogPretty)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	st, err := store.Connect(ctx, cfg.DatabaseURL)
	cancel()
	if err != nil {
		log.Fatal().Err(err).Msg("database connection failed")
	}
	defer st.Close()

	ctx, cancel = context.WithTimeout(context.Background(), 10*time.Second)
	err = st.EnsureSchema(ctx)
	cancel()
	if err != nil {
		log.Fatal().Err(err).Msg("schema setup failed")
	}

	h := &api.Handler{Store: st, Log: log, Version: version}
	srv := &http.Server{
		Addr:              cfg.Addr,
		Handler:           h.Routes(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		log.Info().Str("addr", cfg.Addr).Str("version", version).Msg("server starting")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal().Err(err).Msg("server failed")
		}
	}()

	stopCh := make(chan os.Signal, 1)
	signal.Notify(stopCh, os.Interrupt, syscall.SIGTERM)
	<-stopCh

	log.Info().Msg("shutting down")
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer shutdownCancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("shutdown error")
	}
}
