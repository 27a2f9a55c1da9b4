package main

import (
	"context"
	"fmt"
	"time"

	"github.com/cenkalti/backoff/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	log "github.com/sirupsen/logrus"

	"artifact-sync-service/internal/adapters/secondary/postgres"
	"artifact-sync-service/internal/adapters/secondary/sqlite"
	"artifact-sync-service/internal/config"
	ports "artifact-sync-service/internal/core/ports/output"
)

// openStore connects the configured artifact store. The returned func
// releases it.
func openStore(ctx context.Context, cfg *config.StoreConfig, migrate bool) (ports.ArtifactRepository, func(), error) {
	switch cfg.Driver {
	case config.StoreDriverSQLite:
		db, err := sqlite.Open(cfg.SQLite.Path)
		if err != nil {
			return nil, nil, err
		}
		log.WithField("path", cfg.SQLite.Path).Info("sqlite store opened")
		return sqlite.NewArtifactRepository(db), func() { db.Close() }, nil

	default:
		pool, err := connectPostgres(ctx, &cfg.Database)
		if err != nil {
			return nil, nil, err
		}
		if migrate {
			if err := postgres.Migrate(ctx, pool); err != nil {
				pool.Close()
				return nil, nil, err
			}
			log.Info("database schema applied")
		}
		return postgres.NewArtifactRepository(pool), pool.Close, nil
	}
}

// connectPostgres creates the pool and waits for the database to answer,
// retrying with exponential backoff up to ConnectTimeout.
func connectPostgres(ctx context.Context, cfg *config.DatabaseConfig) (*pgxpool.Pool, error) {
	poolCfg, err := pgxpool.ParseConfig(cfg.DSN())
	if err != nil {
		return nil, fmt.Errorf("parse db config: %w", err)
	}
	poolCfg.MaxConns = int32(cfg.MaxOpenConns)
	poolCfg.MinConns = int32(cfg.MaxIdleConns)
	poolCfg.MaxConnLifetime = cfg.ConnMaxLifetime

	pool, err := pgxpool.NewWithConfig(ctx, poolCfg)
	if err != nil {
		return nil, fmt.Errorf("create db pool: %w", err)
	}

	_, err = backoff.Retry(ctx, func() (struct{}, error) {
		return struct{}{}, pool.Ping(ctx)
	},
		backoff.WithBackOff(backoff.NewExponentialBackOff()),
		backoff.WithMaxElapsedTime(cfg.ConnectTimeout),
		backoff.WithNotify(func(err error, next time.Duration) {
			log.WithError(err).WithField("retry_in", next.String()).Warn("database not reachable yet")
		}),
	)
	if err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping db: %w", err)
	}

	log.WithFields(log.Fields{
		"host": cfg.Host,
		"name": cfg.Name,
	}).Info("database connection established")
	return pool, nil
}
