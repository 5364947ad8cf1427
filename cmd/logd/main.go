package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"merklelog/internal/config"
	"merklelog/internal/domain"
	httpinfra "merklelog/internal/infra/http"
	"merklelog/internal/infra/logstore"
	"merklelog/internal/infra/persist"
	"merklelog/internal/infra/ratelimit"
)

func main() {
	logger, _ := zap.NewProduction()
	defer logger.Sync() //nolint:errcheck

	if err := run(logger); err != nil {
		logger.Fatal("logd exited with error", zap.Error(err))
	}
}

func run(logger *zap.Logger) error {
	cfg, err := config.FromEnv()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	repo, ledger, err := buildBackend(cfg)
	if err != nil {
		return err
	}
	logger.Info("storage ready",
		zap.String("backend", cfg.StoreBackend),
		zap.Bool("sync_writes", cfg.SyncWrites),
	)

	store, err := logstore.New(context.Background(), repo, logger)
	if err != nil {
		return fmt.Errorf("open log store: %w", err)
	}
	logger.Info("log store rehydrated", zap.Uint64("size", store.Size()))

	var limiter domain.RateLimiter
	if cfg.RateLimitRequests > 0 {
		if cfg.RedisAddr != "" {
			limiter, err = ratelimit.NewRedisLimiter(cfg.RedisAddr, cfg.RedisPassword, cfg.RedisDB, nil)
			if err != nil {
				return fmt.Errorf("redis rate limiter: %w", err)
			}
			logger.Info("rate limiting via redis", zap.String("addr", cfg.RedisAddr))
		} else {
			limiter = ratelimit.NewMemoryLimiter(nil, 0)
			logger.Info("rate limiting in memory")
		}
	}

	server := httpinfra.NewServer(cfg, store, ledger, limiter, logger)
	httpSrv := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Port),
		Handler:           server.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		logger.Info("logd listening", zap.Int("port", cfg.Port))
		if err := httpSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal("listen error", zap.Error(err))
		}
	}()

	<-quit
	logger.Info("shutting down logd...")

	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := httpSrv.Shutdown(ctx); err != nil {
		logger.Error("shutdown error", zap.Error(err))
	}
	logger.Info("logd stopped")
	return nil
}

func buildBackend(cfg config.Config) (domain.SnapshotRepository, domain.AnchorLedger, error) {
	switch cfg.StoreBackend {
	case config.StoreBackendPostgres:
		store, err := persist.NewPostgresStore(cfg.PostgresDSN)
		if err != nil {
			return nil, nil, fmt.Errorf("open postgres store: %w", err)
		}
		return store, store, nil
	default:
		store, err := persist.NewFileStore(cfg.DataDir, cfg.SyncWrites)
		if err != nil {
			return nil, nil, fmt.Errorf("open file store: %w", err)
		}
		return store, store, nil
	}
}
