package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/lebanonrates/backend/config"
	httpDelivery "github.com/lebanonrates/backend/internal/delivery/http"
	"github.com/lebanonrates/backend/internal/domain"
	"github.com/lebanonrates/backend/internal/infrastructure/cache"
	"github.com/lebanonrates/backend/internal/infrastructure/history"
	"github.com/lebanonrates/backend/internal/infrastructure/logging"
	"github.com/lebanonrates/backend/internal/infrastructure/upstream"
	"github.com/lebanonrates/backend/internal/usecase"
	"github.com/spf13/afero"
)

const shutdownTimeout = 15 * time.Second

func main() {
	if err := run(); err != nil {
		slog.Error("server exited with error", slog.Any("error", err))
		os.Exit(1)
	}
}

func run() error {
	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}

	logger := logging.New(cfg.Log, os.Stdout)
	slog.SetDefault(logger)

	logger.Info("starting lebanonrates backend",
		slog.String("version", "1.0.0"),
		slog.String("environment", cfg.Server.Environment),
		slog.String("port", cfg.Server.Port),
	)

	// Cache levels
	memoryCache := cache.NewMemoryCache(cfg.Cache.MemoryRetention)
	defer memoryCache.Close()

	var durable domain.EntryStore
	if cfg.Cache.Dir != "" {
		durable = cache.NewFileCache(afero.NewOsFs(), cfg.Cache.Dir)
		logger.Info("durable cache enabled", slog.String("dir", cfg.Cache.Dir))
	}

	// Gold price history
	var goldHistory domain.GoldHistoryRepository
	if cfg.History.Enabled {
		store, err := history.Open(cfg.History.Path)
		if err != nil {
			return fmt.Errorf("failed to open gold history: %w", err)
		}
		defer store.Close()
		goldHistory = store
		logger.Info("gold history enabled", slog.String("path", cfg.History.Path))
	}

	// Sources
	rateSrc := cfg.Sources.Rate
	rates := usecase.NewRateService(newFetcher("rate", rateSrc, logger), rateSrc.URL,
		memoryCache, durable, sourceConfig("rate", rateSrc), logger)

	eurSrc := cfg.Sources.EUR
	eur := usecase.NewEURService(newFetcher("eur", eurSrc, logger), eurSrc.URL, rates,
		memoryCache, durable, sourceConfig("eur", eurSrc), logger)

	fuelSrc := cfg.Sources.Fuel
	fuel := usecase.NewFuelService(newFetcher("fuel", fuelSrc, logger), fuelSrc.URL,
		memoryCache, durable, sourceConfig("fuel", fuelSrc), logger)

	lottoSrc := cfg.Sources.Lotto
	lotto := usecase.NewLottoService(newFetcher("lotto", lottoSrc, logger), lottoSrc.URLs(),
		memoryCache, durable, sourceConfig("lotto", lottoSrc), logger)

	goldSrc := cfg.Sources.Gold
	gold := usecase.NewGoldService(newFetcher("gold", goldSrc, logger), goldSrc.URL,
		memoryCache, durable, rates, goldHistory, sourceConfig("gold", goldSrc), logger)

	scheduler := usecase.NewScheduler(
		[]usecase.Refresher{rates, eur, fuel, lotto, gold},
		cfg.Scheduler.Interval,
		goldHistory,
		cfg.History.Retention,
		logger,
	)
	scheduler.Start()

	// HTTP server
	handler := httpDelivery.NewHandler(rates, eur, fuel, lotto, gold, memoryCache, logger)
	router := httpDelivery.SetupRouter(cfg, handler, logger)

	server := &http.Server{
		Addr:              fmt.Sprintf(":%s", cfg.Server.Port),
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	serverErr := make(chan error, 1)
	go func() {
		logger.Info("server listening", slog.String("addr", server.Addr))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErr <- err
		}
		close(serverErr)
	}()

	select {
	case err := <-serverErr:
		scheduler.Stop()
		return fmt.Errorf("failed to start server: %w", err)
	case <-ctx.Done():
	}

	logger.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("graceful shutdown failed", slog.Any("error", err))
	}
	scheduler.Stop()
	for _, w := range []interface{ Wait() }{rates, eur, fuel, lotto, gold} {
		w.Wait()
	}

	logger.Info("server stopped")
	return nil
}

func newFetcher(name string, src config.SourceConfig, logger *slog.Logger) *upstream.Client {
	return upstream.NewClient(upstream.Config{
		Name:              name,
		Timeout:           src.Timeout,
		RequestsPerMinute: src.RequestsPerMinute,
		Headers:           src.Headers,
	}, logger)
}

func sourceConfig(name string, src config.SourceConfig) usecase.SourceConfig {
	return usecase.SourceConfig{
		Name:     name,
		FreshTTL: src.FreshTTL,
		StaleTTL: src.StaleTTL,
		Retry: usecase.RetryPolicy{
			Attempts: src.MaxAttempts,
			Delay:    src.RetryDelay,
			Backoff:  usecase.Backoff(src.Backoff),
		},
	}
}
