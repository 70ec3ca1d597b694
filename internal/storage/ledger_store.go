// Package storage selects and opens the configured LedgerStore backend.
package storage

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/sheikh-saqib/bread-credit-ledger/internal/config"
	interfaces "github.com/sheikh-saqib/bread-credit-ledger/internal/interfaces"
	"github.com/sheikh-saqib/bread-credit-ledger/internal/seed"
	"github.com/sheikh-saqib/bread-credit-ledger/internal/storage/file"
	"github.com/sheikh-saqib/bread-credit-ledger/internal/storage/memory"
	"github.com/sheikh-saqib/bread-credit-ledger/internal/storage/redisstore"
	"github.com/sheikh-saqib/bread-credit-ledger/internal/storage/sqlstore"
)

// Open returns the backend named by cfg.Storage.Backend.
func Open(ctx context.Context, cfg config.Config, logger *zap.Logger) (interfaces.LedgerStore, error) {
	logger.Info("opening ledger store", zap.String("backend", cfg.Storage.Backend))

	switch cfg.Storage.Backend {
	case "memory":
		return memory.NewMemoryLedgerStore(seed.Default(), nil), nil
	case "file":
		return file.Open(cfg.Storage.Path, logger), nil
	case "sqlite", "postgres", "mysql":
		dialect, err := sqlstore.ParseDialect(cfg.Storage.Backend)
		if err != nil {
			return nil, err
		}
		return sqlstore.Open(ctx, dialect, cfg.Storage.DSN, logger)
	case "redis":
		client := redisstore.NewClient(redisstore.Options{
			Addrs:      cfg.Redis.Addrs,
			Password:   cfg.Redis.Password,
			DB:         cfg.Redis.DB,
			UseCluster: cfg.Redis.UseCluster,
		})
		store, err := redisstore.Open(ctx, client, cfg.Redis.Prefix, logger)
		if err != nil {
			client.Close()
			return nil, err
		}
		return store, nil
	}
	return nil, fmt.Errorf("unknown storage backend %q", cfg.Storage.Backend)
}
