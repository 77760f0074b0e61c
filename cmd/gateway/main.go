package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os/signal"
	"syscall"

	"github.com/bencyrus/safeupload/internal/config"
	"github.com/bencyrus/safeupload/shared/logger"
)

func main() {
	cfg := config.Load()

	logger.Init("gateway", cfg.LogLevel)
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	logger.Info(ctx, "starting gateway", logger.Fields{
		"port":            cfg.Port,
		"storage_backend": cfg.StorageBackend,
		"image_policy":    cfg.ImagePolicy,
		"log_level":       cfg.LogLevel,
	})

	app, err := build(ctx, cfg)
	if err != nil {
		logger.Error(ctx, "failed to init gateway", err)
		log.Fatalf("failed to init gateway: %v", err)
	}
	app.janitor.Start()

	srv := &http.Server{
		Addr:    ":" + cfg.Port,
		Handler: app.server.Handler(),
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info(ctx, "gateway server starting", logger.Fields{"address": srv.Addr})
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error(ctx, "server error", err)
			log.Fatalf("server error: %v", err)
		}
	case <-ctx.Done():
		logger.Info(ctx, "received shutdown signal")
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error(shutdownCtx, "graceful shutdown failed", err)
	}
	app.janitor.Stop(shutdownCtx)
	app.close()

	logger.Info(shutdownCtx, "gateway shutdown complete")
}
