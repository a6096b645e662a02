package main

import (
	"context"
	"errors"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"

	"gueststay/internal/app"
	"gueststay/internal/config"
	"gueststay/internal/database"
	"gueststay/internal/database/schema"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("config: %v", err)
	}

	logger := setupLogger(cfg)
	slog.SetDefault(logger)
	gin.SetMode(cfg.GinMode)

	var db *gorm.DB
	if cfg.EventStore == config.EventStoreSQL {
		db, err = database.Connect(cfg.DatabaseURL)
		if err != nil {
			logger.Error("db connect failed", slog.String("error", err.Error()))
			os.Exit(1)
		}
		if err := schema.Migrate(db); err != nil {
			logger.Error("migrations failed", slog.String("error", err.Error()))
			os.Exit(1)
		}
	}

	a := app.New(cfg, db, logger)

	server := &http.Server{
		Addr:         cfg.HTTPAddr,
		Handler:      a.Router,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		logger.Info("starting HTTP server",
			slog.String("addr", server.Addr),
			slog.String("event_store", cfg.EventStore),
			slog.String("env", cfg.AppEnv))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("HTTP server failed", slog.String("error", err.Error()))
			os.Exit(1)
		}
	}()

	waitForShutdown(logger, server, a, cfg.ShutdownTimeout)
	logger.Info("shutdown complete")
}

func setupLogger(cfg *config.Config) *slog.Logger {
	handler := slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: cfg.SlogLevel()})
	return slog.New(handler).With(slog.String("app", "gueststay"))
}

func waitForShutdown(logger *slog.Logger, server *http.Server, a *app.App, timeout time.Duration) {
	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)

	<-stop
	logger.Info("shutdown signal received")

	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	// Hijacked websocket connections are not closed by Shutdown.
	a.Hub.Close()
	if err := server.Shutdown(ctx); err != nil {
		logger.Error("HTTP server shutdown failed", slog.String("error", err.Error()))
	}
}
