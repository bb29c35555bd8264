package database

import (
	"errors"
	"fmt"

	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database/postgres"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	"github.com/jackc/pgx/v5/stdlib"
	"go.uber.org/zap"

	"github.com/ekaya-inc/ekaya-sqlchat/migrations"
)

// Migrate applies the pending migrations embedded in the binary and returns
// the resulting schema version. Running it on an up-to-date database is a
// no-op.
func (db *DB) Migrate() (uint, error) {
	// golang-migrate needs database/sql. The handle borrows the pool; closing
	// it leaves the pool open.
	sqlDB := stdlib.OpenDBFromPool(db.Pool)
	driver, err := postgres.WithInstance(sqlDB, &postgres.Config{})
	if err != nil {
		_ = sqlDB.Close()
		return 0, fmt.Errorf("failed to create migration driver: %w", err)
	}

	source, err := iofs.New(migrations.FS, ".")
	if err != nil {
		_ = driver.Close()
		return 0, fmt.Errorf("failed to open embedded migrations: %w", err)
	}

	m, err := migrate.NewWithInstance("iofs", source, "postgres", driver)
	if err != nil {
		_ = source.Close()
		_ = driver.Close()
		return 0, fmt.Errorf("failed to create migration instance: %w", err)
	}
	defer func() {
		if err := errors.Join(m.Close()); err != nil {
			db.logger.Warn("Failed to close migrator", zap.Error(err))
		}
	}()

	before, _, err := m.Version()
	if err != nil && !errors.Is(err, migrate.ErrNilVersion) {
		return 0, fmt.Errorf("failed to read schema version: %w", err)
	}

	if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return 0, fmt.Errorf("failed to run migrations: %w", err)
	}

	after, dirty, err := m.Version()
	if err != nil {
		return 0, fmt.Errorf("failed to read schema version: %w", err)
	}
	if dirty {
		return after, fmt.Errorf("schema version %d is dirty", after)
	}

	if after == before {
		db.logger.Debug("Metadata schema up to date", zap.Uint("version", after))
	} else {
		db.logger.Info("Applied metadata migrations", zap.Uint("from", before), zap.Uint("to", after))
	}
	return after, nil
}
