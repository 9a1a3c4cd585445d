// Package bootstrap wires configuration into the pieces every binary
// needs: a logger and the configured store.
package bootstrap

import (
	"context"
	"fmt"
	"log/slog"
	"os"

	"github.com/ariefcatur/go-pos-terminal/internal/config"
	"github.com/ariefcatur/go-pos-terminal/internal/postgres"
	"github.com/ariefcatur/go-pos-terminal/internal/redisx"
	"github.com/ariefcatur/go-pos-terminal/internal/sqlite"
	"github.com/ariefcatur/go-pos-terminal/internal/storage"
)

func NewLogger(cfg config.Config) *slog.Logger {
	logger := slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{Level: cfg.LogLevel})).
		With(slog.String("service", cfg.ServiceName))
	slog.SetDefault(logger)
	return logger
}

// OpenStore opens the backend named by cfg.StoreDriver.
func OpenStore(ctx context.Context, cfg config.Config) (storage.Store, error) {
	switch cfg.StoreDriver {
	case config.DriverSQLite:
		return sqlite.Open(ctx, cfg.SQLitePath)
	case config.DriverPostgres:
		return postgres.Open(ctx, cfg.PostgresDSN)
	case config.DriverRedis:
		rdb := redisx.New(cfg.RedisAddr)
		if err := rdb.Ping(ctx).Err(); err != nil {
			_ = rdb.Close()
			return nil, fmt.Errorf("redis ping: %w", err)
		}
		return redisx.NewStore(rdb, cfg.TerminalID), nil
	case config.DriverMemory:
		return storage.NewMemory(), nil
	}
	return nil, fmt.Errorf("%w: %q", config.ErrUnknownDriver, cfg.StoreDriver)
}
