package cache

import (
	"context"
	"fmt"

	"github.com/jktrn/MemoLanes/pkg/config"
	"github.com/jktrn/MemoLanes/pkg/logger"
)

// NewTileCache creates the persistence backend selected by cfg.Cache.Backend.
func NewTileCache(cfg *config.Config, l logger.Logger) (TileCache, error) {
	switch cfg.Cache.Backend {
	case "memory":
		l.Info("using memory tile cache")
		return NewMapCache(), nil
	case "sqlite":
		l.Info("using sqlite tile cache", "path", cfg.Cache.SQLitePath)
		return NewSQLiteCache(cfg.Cache.SQLitePath, l)
	case "redis":
		l.Info("using redis tile cache", "addr", cfg.Redis.Addr, "db", cfg.Redis.DB)
		return NewRedisCache(RedisConfig{
			Addr:      cfg.Redis.Addr,
			Password:  cfg.Redis.Password,
			DB:        cfg.Redis.DB,
			KeyPrefix: cfg.Redis.KeyPrefix,
		})
	case "filesystem":
		l.Info("using filesystem tile cache", "dir", cfg.Cache.FilesystemDir)
		return NewFilesystemCache(cfg.Cache.FilesystemDir)
	default:
		return nil, fmt.Errorf("unknown cache backend: %s (supported: memory, sqlite, redis, filesystem)", cfg.Cache.Backend)
	}
}

// NewStore builds the configured backend and bounds it by the byte budget.
func NewStore(ctx context.Context, cfg *config.Config, l logger.Logger) (*BudgetStore, error) {
	backend, err := NewTileCache(cfg, l)
	if err != nil {
		return nil, err
	}

	store, err := NewBudgetStore(ctx, backend, cfg.Cache.BudgetBytes, l)
	if err != nil {
		backend.Close()
		return nil, err
	}

	return store, nil
}
