package bootstrap

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/cipherstudio/ide-backend/config"
	"github.com/cipherstudio/ide-backend/internal/logging"
	"github.com/cipherstudio/ide-backend/internal/projects/repository"
	"github.com/cipherstudio/ide-backend/internal/storage/postgres"
	redisstore "github.com/cipherstudio/ide-backend/internal/storage/redis"
)

// OpenStore picks the project store once at startup. An external backend
// that cannot be reached leaves the process on the in-memory store for good.
// The returned close func releases whatever connection was opened.
func OpenStore(ctx context.Context, cfg *config.Config, logger *zap.Logger) (repository.Store, func() error) {
	noop := func() error { return nil }

	backend := cfg.Store.Backend
	if backend == config.BackendAuto {
		switch {
		case cfg.Database.Configured():
			backend = config.BackendPostgres
		case cfg.Redis.Configured():
			backend = config.BackendRedis
		default:
			backend = config.BackendMemory
		}
	}

	var (
		store repository.Store
		closer func() error
		err    error
	)
	switch backend {
	case config.BackendPostgres:
		store, closer, err = openPostgres(ctx, cfg)
		if err != nil {
			logger.Warn("postgres unavailable, using in-memory store",
				zap.String("dsn", logging.SanitizeConnectionString(postgres.DSN(&cfg.Database))),
				zap.Error(err))
		}
	case config.BackendRedis:
		store, closer, err = openRedis(ctx, cfg)
		if err != nil {
			logger.Warn("redis unavailable, using in-memory store",
				zap.String("url", logging.SanitizeConnectionString(cfg.Redis.URL)),
				zap.String("addr", cfg.Redis.Addr),
				zap.Error(err))
		}
	}

	if store == nil {
		store, closer = repository.NewMemoryStore(), noop
	}
	logger.Info("project store ready", zap.String("backend", store.Backend()))
	return store, closer
}

func openPostgres(ctx context.Context, cfg *config.Config) (repository.Store, func() error, error) {
	if !cfg.Database.Configured() {
		return nil, nil, errors.New("DB_DSN or DB_HOST is required")
	}

	cctx, cancel := context.WithTimeout(ctx, cfg.Store.ConnectTimeout)
	defer cancel()

	db, err := postgres.NewConnection(cctx, &cfg.Database)
	if err != nil {
		return nil, nil, err
	}

	store := repository.NewPostgresStore(db)
	if err := store.EnsureSchema(cctx); err != nil {
		db.Close()
		return nil, nil, fmt.Errorf("ensure schema: %w", err)
	}
	return store, db.Close, nil
}

func openRedis(ctx context.Context, cfg *config.Config) (repository.Store, func() error, error) {
	cctx, cancel := context.WithTimeout(ctx, cfg.Store.ConnectTimeout)
	defer cancel()

	client, err := redisstore.NewClient(cctx, &cfg.Redis)
	if err != nil {
		return nil, nil, err
	}
	return repository.NewRedisStore(client), client.Close, nil
}
