package database

import (
	"errors"
	"fmt"

	"github.com/golang-migrate/migrate/v4"
	mdatabase "github.com/golang-migrate/migrate/v4/database"
	pgxmigrate "github.com/golang-migrate/migrate/v4/database/pgx/v5"
	sqlitemigrate "github.com/golang-migrate/migrate/v4/database/sqlite"
	"github.com/golang-migrate/migrate/v4/source/iofs"

	"clinictrack/migrations"
)

// Migrate applies every pending up migration for the gateway's dialect.
// The migrate instance is not closed because that would close the pool.
func Migrate(d *DB) error {
	var (
		drv mdatabase.Driver
		err error
	)
	switch d.dialect {
	case DialectSQLite:
		drv, err = sqlitemigrate.WithInstance(d.db.DB, &sqlitemigrate.Config{})
	case DialectPostgres:
		drv, err = pgxmigrate.WithInstance(d.db.DB, &pgxmigrate.Config{})
	default:
		return fmt.Errorf("unsupported database driver %q", d.dialect)
	}
	if err != nil {
		return fmt.Errorf("migration driver: %w", err)
	}

	src, err := iofs.New(migrations.FS, string(d.dialect))
	if err != nil {
		return fmt.Errorf("migration source: %w", err)
	}
	defer src.Close() //nolint:errcheck // embedded source

	m, err := migrate.NewWithInstance("iofs", src, string(d.dialect), drv)
	if err != nil {
		return fmt.Errorf("migration setup: %w", err)
	}
	if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return fmt.Errorf("apply migrations: %w", err)
	}
	return nil
}
