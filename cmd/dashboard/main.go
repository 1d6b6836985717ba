package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/example/pool-dashboard/internal/config"
	"github.com/example/pool-dashboard/internal/dashboard"
	"github.com/example/pool-dashboard/internal/facade"
	httpapi "github.com/example/pool-dashboard/internal/http"
	"github.com/example/pool-dashboard/internal/hub"
	"github.com/example/pool-dashboard/internal/logging"
	"github.com/example/pool-dashboard/internal/stream"
)

func main() {
	cfg, err := config.Load()
	logger := logging.NewLogger(cfg.LogLevel)
	if err != nil {
		logger.Error("invalid configuration", "error", err)
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	upstream := facade.NewClient(cfg.UpstreamBaseURL, cfg.UpstreamTimeout)
	push := hub.New(logger)
	streamCfg := stream.Config{RetryMin: cfg.StreamRetryMin, RetryMax: cfg.StreamRetryMax}

	passenger := dashboard.New(dashboard.Options{
		Role:   dashboard.RolePassenger,
		Facade: upstream,
		OpenStream: func(ctx context.Context, subjectID string, onEvent func(stream.Event)) dashboard.Subscription {
			url := cfg.UpstreamBaseURL + "/api/v1/sse/passenger/" + subjectID
			return stream.Open(ctx, url, "passenger", stream.PassengerKinds(), onEvent, logger, streamCfg)
		},
		Publish:           push.Broadcast,
		Logger:            logger,
		NearbyRadiusKm:    cfg.NearbyRadiusKm,
		PoolWindowSeconds: cfg.PoolWindowSeconds,
	})
	driver := dashboard.New(dashboard.Options{
		Role:   dashboard.RoleDriver,
		Facade: upstream,
		OpenStream: func(ctx context.Context, subjectID string, onEvent func(stream.Event)) dashboard.Subscription {
			url := cfg.UpstreamBaseURL + "/api/v1/sse/driver/" + subjectID
			return stream.Open(ctx, url, "driver", stream.DriverKinds(), onEvent, logger, streamCfg)
		},
		Publish:           push.Broadcast,
		Logger:            logger,
		NearbyRadiusKm:    cfg.NearbyRadiusKm,
		PoolWindowSeconds: cfg.PoolWindowSeconds,
	})
	go passenger.Run(ctx)
	go driver.Run(ctx)

	srv := &http.Server{
		Addr:         cfg.HTTPAddr,
		Handler:      httpapi.NewServer(logger, upstream, passenger, driver, push),
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,
		IdleTimeout:  cfg.IdleTimeout,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("dashboard gateway listening", "addr", cfg.HTTPAddr, "upstream", cfg.UpstreamBaseURL)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case <-ctx.Done():
		logger.Info("shutdown signal received")
	case err := <-errCh:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("http server failed", "error", err)
			os.Exit(1)
		}
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("shutdown incomplete", "error", err)
	}
	logger.Info("dashboard gateway stopped")
}
