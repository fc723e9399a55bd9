package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/sirupsen/logrus"

	"github.com/birbparty/birb-ads/internal/clock"
	"github.com/birbparty/birb-ads/internal/sandbox"
	"github.com/birbparty/birb-ads/internal/telemetry"
)

func main() {
	if err := telemetry.Init(telemetry.NewConfigFromEnv("birb-ads-sandbox")); err != nil {
		logrus.Fatalf("Failed to initialize telemetry: %v", err)
	}
	log := telemetry.L()

	cfg, err := sandbox.LoadConfig()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	log.WithFields(logrus.Fields{
		"store":     cfg.Store,
		"app_keys":  len(cfg.AppKeyList()),
		"buffer":    cfg.BufferMin,
		"rate":      cfg.RateLimit,
		"fault_nth": cfg.FaultEvery,
	}).Info("🐦 Birb Ads sandbox starting...")

	ctx := context.Background()
	clk := clock.New()

	var store sandbox.Store
	switch cfg.Store {
	case sandbox.StoreRedis:
		redisStore, err := sandbox.NewRedisStore(ctx, cfg.Redis)
		if err != nil {
			log.Fatalf("Failed to connect to Redis: %v", err)
		}
		store = redisStore
		log.WithField("addr", cfg.Redis.Addr).Info("✅ Connected to Redis")
	default:
		store = sandbox.NewMemoryStore(clk)
		log.Info("✅ Using in-memory session store")
	}
	defer store.Close()

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	metrics := telemetry.NewServerMetrics(reg)

	handlers := sandbox.NewHandlers(cfg, store, metrics, log, clk)
	app := sandbox.NewApp(cfg, handlers, metrics, reg)

	// Handle graceful shutdown
	go func() {
		sigChan := make(chan os.Signal, 1)
		signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
		<-sigChan

		log.Info("🛑 Shutting down gracefully...")

		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
		defer shutdownCancel()

		if err := app.ShutdownWithContext(shutdownCtx); err != nil {
			log.WithError(err).Warn("Server forced to shutdown")
		}
		if err := telemetry.Shutdown(shutdownCtx); err != nil {
			log.WithError(err).Warn("Telemetry shutdown failed")
		}
	}()

	log.WithField("addr", cfg.Address()).Info("🚀 Birb Ads sandbox listening")
	if err := app.Listen(cfg.Address()); err != nil {
		log.Fatalf("Failed to start server: %v", err)
	}
}
