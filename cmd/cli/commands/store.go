package commands

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/jakechorley/skillconnect/internal/config"
	"github.com/jakechorley/skillconnect/pkg/db"
	"github.com/jakechorley/skillconnect/pkg/postgres"
	"github.com/jakechorley/skillconnect/pkg/redisstore"
)

// OpenStore opens the state backend selected by cfg.StateBackend
func OpenStore(ctx context.Context, cfg *config.Config, env string, logger *zap.Logger) (db.StateStore, error) {
	logger.Debug("Opening state store", zap.String("backend", cfg.StateBackend))

	switch cfg.StateBackend {
	case config.BackendMemory:
		return db.NewMemoryStore(), nil

	case config.BackendFile, "":
		store, err := db.NewFileStore(cfg.StateDir, env)
		if err != nil {
			return nil, fmt.Errorf("failed to open file store: %w", err)
		}
		return store, nil

	case config.BackendRedis:
		store, err := redisstore.New(ctx, redisstore.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		}, env)
		if err != nil {
			return nil, err
		}
		return store, nil

	case config.BackendPostgres:
		pg, err := postgres.NewDB(ctx, cfg.PostgresDSN, env)
		if err != nil {
			return nil, fmt.Errorf("failed to connect to postgres: %w", err)
		}
		if err := pg.RunMigrations(ctx); err != nil {
			pg.Close()
			return nil, fmt.Errorf("failed to run migrations: %w", err)
		}
		return pg, nil
	}

	return nil, fmt.Errorf("unknown state backend %q", cfg.StateBackend)
}
