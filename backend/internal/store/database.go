package store

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/jackc/pgx/v5/stdlib"
	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect/pgdialect"
	"go.uber.org/zap"
	apperrors "sonar/backend/pkg/errors"
	"sonar/backend/pkg/logger"
)

const slowQueryThreshold = 3 * time.Second

// Options configures the relational connection
type Options struct {
	DSN        string
	MaxConns   int
	QueryDebug bool
}

// NewPgxPool creates a pgx connection pool and verifies it with a ping
func NewPgxPool(ctx context.Context, opts Options) (*pgxpool.Pool, error) {
	log := logger.Named("database")

	poolConfig, err := pgxpool.ParseConfig(opts.DSN)
	if err != nil {
		return nil, apperrors.NewStoreOperationFailed("parse pool config", err)
	}
	if opts.MaxConns > 0 {
		poolConfig.MaxConns = int32(opts.MaxConns)
	}

	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	pool, err := pgxpool.NewWithConfig(ctx, poolConfig)
	if err != nil {
		return nil, apperrors.NewStoreOperationFailed("create pool", err)
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, apperrors.NewStoreOperationFailed("ping database", err)
	}

	log.Info("Database pool created",
		zap.String("host", poolConfig.ConnConfig.Host),
		zap.String("database", poolConfig.ConnConfig.Database),
		zap.Int32("max_conns", poolConfig.MaxConns),
	)
	return pool, nil
}

// NewBunDB wraps the pool in a bun database with the Postgres dialect
func NewBunDB(pool *pgxpool.Pool, queryDebug bool) *bun.DB {
	sqldb := stdlib.OpenDBFromPool(pool)
	db := bun.NewDB(sqldb, pgdialect.New())
	RegisterModels(db)

	if queryDebug {
		db.AddQueryHook(&queryLoggingHook{log: logger.Named("bun")})
	}
	return db
}

// Open connects to Postgres and returns the bun database along with a close
// function that releases both the bun handle and the pool.
func Open(ctx context.Context, opts Options) (*bun.DB, func(), error) {
	pool, err := NewPgxPool(ctx, opts)
	if err != nil {
		return nil, nil, err
	}
	db := NewBunDB(pool, opts.QueryDebug)

	closeFn := func() {
		if err := db.Close(); err != nil {
			logger.Named("database").Warn("Closing bun database failed", zap.Error(err))
		}
		pool.Close()
	}
	return db, closeFn, nil
}

// queryLoggingHook implements bun.QueryHook
type queryLoggingHook struct {
	log *zap.Logger
}

func (h *queryLoggingHook) BeforeQuery(ctx context.Context, _ *bun.QueryEvent) context.Context {
	return ctx
}

func (h *queryLoggingHook) AfterQuery(_ context.Context, event *bun.QueryEvent) {
	duration := time.Since(event.StartTime)

	if event.Err != nil && !errors.Is(event.Err, sql.ErrNoRows) {
		h.log.Error("Query error",
			zap.String("query", event.Query),
			zap.Duration("duration", duration),
			zap.Error(event.Err),
		)
		return
	}

	if duration > slowQueryThreshold {
		h.log.Warn("Slow query",
			zap.String("query", event.Query),
			zap.Duration("duration", duration),
		)
		return
	}

	h.log.Debug("Query",
		zap.String("query", event.Query),
		zap.Duration("duration", duration),
	)
}
