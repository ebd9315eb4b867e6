package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/sirupsen/logrus"

	"github.com/aman-zulfiqar/genius-solver/internal/app"
	"github.com/aman-zulfiqar/genius-solver/internal/config"
	"github.com/aman-zulfiqar/genius-solver/internal/server"
)

// main is the entry point for the solver API
// It wires every component from the environment and serves HTTP until SIGINT/SIGTERM
func main() {
	logger := config.NewLogger(os.Getenv("LOG_LEVEL"))

	// load .env BEFORE anything reads os.Getenv
	config.LoadDotEnv(logger)

	cfg := config.Load()
	if err := cfg.Validate(); err != nil {
		logger.WithError(err).Fatal("invalid configuration")
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)

	a, err := app.New(ctx, cfg, logger)
	if err != nil {
		logger.WithError(err).Fatal("failed to build solver")
	}
	defer func() {
		if err := a.Close(); err != nil {
			logger.WithError(err).Warn("failed to close connections")
		}
	}()

	srv, err := server.NewServer(server.ServerDeps{
		Handlers: a.Handlers(),
		Config: server.ServerConfig{
			Addr:    cfg.APIAddr,
			DevMode: cfg.DevMode,
			APIKey:  cfg.APIKey,
		},
	})
	if err != nil {
		logger.WithError(err).Fatal("failed to create http server")
	}

	go func() {
		<-sigCh
		logger.Info("shutting down")
		cancel()
		_ = srv.Shutdown(context.Background())
	}()

	logger.WithFields(logrus.Fields{
		"addr": cfg.APIAddr,
		"env":  cfg.Env,
	}).Info("api server starting")
	if err := srv.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		logger.WithError(err).Error("api server failed")
		return
	}

	if err := srv.WaitClosed(context.Background()); err != nil {
		logger.WithError(err).Warn("shutdown did not complete")
	}
}
