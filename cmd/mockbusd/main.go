// Command mockbusd runs the local SNS/SQS-shaped publish-capture mock: a
// single HTTP listener accepting the AWS wire protocol at POST / and
// serving captured-message verification queries under a configurable
// prefix.
package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/mockbus/pubsub-capture/internal/server"
	"github.com/mockbus/pubsub-capture/pkg/config"
	"github.com/mockbus/pubsub-capture/pkg/logger"
	"github.com/mockbus/pubsub-capture/pkg/telemetry"
)

// appConfig is the process-wide configuration, nesting the independently
// loadable configs each package already defines under their own field.
type appConfig struct {
	Server    server.Config
	Logger    logger.Config
	Telemetry telemetry.Config

	ListenAddress string `env:"LISTEN_ADDRESS" env-default:"localhost:5001"`
}

func main() {
	var cfg appConfig
	if err := config.Load(&cfg); err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	log := logger.Init(cfg.Logger)

	shutdownTelemetry, err := telemetry.Init(cfg.Telemetry)
	if err != nil {
		log.Warn("telemetry init failed, continuing without tracing export", "error", err)
		shutdownTelemetry = func(context.Context) error { return nil }
	}
	defer func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := shutdownTelemetry(ctx); err != nil {
			log.Warn("telemetry shutdown failed", "error", err)
		}
	}()

	e, err := server.New(cfg.Server)
	if err != nil {
		log.Error("failed to build server", "error", err)
		os.Exit(1)
	}

	srv := &http.Server{
		Addr:         cfg.ListenAddress,
		Handler:      e,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
	}

	go func() {
		log.Info("mockbusd listening", "address", cfg.ListenAddress, "verification_prefix", cfg.Server.VerificationPrefix, "capacity", cfg.Server.Capacity)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Error("server error", "error", err)
			os.Exit(1)
		}
	}()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	<-ctx.Done()

	log.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error("graceful shutdown failed", "error", err)
	}
}
