package store

import (
	"context"
	"database/sql"
	"io/fs"
	"strings"

	"github.com/pressly/goose/v3"
	"go.uber.org/zap"
	"sonar/backend/migrations"
	apperrors "sonar/backend/pkg/errors"
	"sonar/backend/pkg/logger"
)

// Migrator applies the embedded goose migrations
type Migrator struct {
	db     *sql.DB
	fsys   fs.FS
	logger *zap.Logger
}

// NewMigrator creates a migrator over the embedded migration files
func NewMigrator(db *sql.DB) *Migrator {
	return &Migrator{
		db:     db,
		fsys:   migrations.FS,
		logger: logger.Named("migrator"),
	}
}

func (m *Migrator) prepare() error {
	goose.SetBaseFS(m.fsys)
	goose.SetLogger(gooseLogger{m.logger.Sugar()})
	if err := goose.SetDialect("postgres"); err != nil {
		return apperrors.NewStoreOperationFailed("set migration dialect", err)
	}
	return nil
}

// Up runs all pending migrations
func (m *Migrator) Up(ctx context.Context) error {
	if err := m.prepare(); err != nil {
		return err
	}
	m.logger.Info("Running database migrations")

	if err := goose.UpContext(ctx, m.db, "."); err != nil {
		return apperrors.NewStoreOperationFailed("migrate up", err)
	}

	m.logger.Info("Migrations completed")
	return nil
}

// UpTo runs migrations up to and including version
func (m *Migrator) UpTo(ctx context.Context, version int64) error {
	if err := m.prepare(); err != nil {
		return err
	}
	m.logger.Info("Running database migrations", zap.Int64("target_version", version))

	if err := goose.UpToContext(ctx, m.db, ".", version); err != nil {
		return apperrors.NewStoreOperationFailed("migrate up to", err)
	}
	return nil
}

// Down rolls back the last migration
func (m *Migrator) Down(ctx context.Context) error {
	if err := m.prepare(); err != nil {
		return err
	}
	m.logger.Info("Rolling back last migration")

	if err := goose.DownContext(ctx, m.db, "."); err != nil {
		return apperrors.NewStoreOperationFailed("migrate down", err)
	}
	return nil
}

// Status logs the state of every migration
func (m *Migrator) Status(ctx context.Context) error {
	if err := m.prepare(); err != nil {
		return err
	}
	if err := goose.StatusContext(ctx, m.db, "."); err != nil {
		return apperrors.NewStoreOperationFailed("migration status", err)
	}
	return nil
}

// Version returns the current schema version
func (m *Migrator) Version(ctx context.Context) (int64, error) {
	if err := m.prepare(); err != nil {
		return 0, err
	}
	version, err := goose.GetDBVersionContext(ctx, m.db)
	if err != nil {
		return 0, apperrors.NewStoreOperationFailed("migration version", err)
	}
	return version, nil
}

// gooseLogger routes goose output through zap
type gooseLogger struct {
	*zap.SugaredLogger
}

func (l gooseLogger) Printf(format string, v ...interface{}) {
	l.Infof(strings.TrimSuffix(format, "\n"), v...)
}
