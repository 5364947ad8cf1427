package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"merklelog/internal/config"
	"merklelog/internal/domain"
	"merklelog/internal/infra/persist"
	"merklelog/internal/infra/watcher"
)

func main() {
	logger, _ := zap.NewProduction()
	defer logger.Sync() //nolint:errcheck

	if err := run(logger); err != nil {
		logger.Fatal("anchorwatch exited with error", zap.Error(err))
	}
}

func run(logger *zap.Logger) error {
	cfg, err := config.FromEnv()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	ledger, err := buildLedger(cfg)
	if err != nil {
		return err
	}

	source, err := watcher.NewRootClient(cfg.APIBaseURL, 10*time.Second)
	if err != nil {
		return fmt.Errorf("root client: %w", err)
	}

	w, err := watcher.New(context.Background(), source, ledger, cfg.PollInterval, logger)
	if err != nil {
		return fmt.Errorf("watcher: %w", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-quit
		logger.Info("shutting down anchorwatch...")
		cancel()
	}()

	logger.Info("anchorwatch polling",
		zap.String("api", cfg.APIBaseURL),
		zap.Duration("interval", cfg.PollInterval),
	)
	w.Run(ctx)
	logger.Info("anchorwatch stopped")
	return nil
}

func buildLedger(cfg config.Config) (domain.AnchorLedger, error) {
	switch cfg.StoreBackend {
	case config.StoreBackendPostgres:
		store, err := persist.NewPostgresStore(cfg.PostgresDSN)
		if err != nil {
			return nil, fmt.Errorf("open postgres store: %w", err)
		}
		return store, nil
	default:
		store, err := persist.NewFileStore(cfg.DataDir, cfg.SyncWrites)
		if err != nil {
			return nil, fmt.Errorf("open file store: %w", err)
		}
		return store, nil
	}
}
