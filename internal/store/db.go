// Package store provides the PostgreSQL-backed collaborators consumed
// by the ingestion pipeline.
package store

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/roboricindustries/raycon-multichat/internal/config"
)

// NewPool opens and pings a pgx connection pool.
func NewPool(ctx context.Context, log *slog.Logger, cfg config.PostgresConfig) (*pgxpool.Pool, error) {
	pool, err := pgxpool.New(ctx, cfg.DSN())
	if err != nil {
		return nil, fmt.Errorf("create pgx pool: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping postgres: %w", err)
	}
	log.Info("postgres connected",
		slog.String("host", cfg.Host),
		slog.String("database", cfg.Database),
	)
	return pool, nil
}
