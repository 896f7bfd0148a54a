// migrate.go handles database migration using golang-migrate.
//
// Migrations are embedded SQL files (see the migrations package). Each
// migration has an "up" and "down" file. The migrate library tracks which
// migrations have been applied in a schema_migrations table.
package database

import (
	"errors"
	"fmt"

	"github.com/golang-migrate/migrate/v4"
	migratedb "github.com/golang-migrate/migrate/v4/database"
	"github.com/golang-migrate/migrate/v4/database/postgres"
	"github.com/golang-migrate/migrate/v4/database/sqlite3"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	"go.uber.org/zap"

	"github.com/Shimizu-Technology/docvault-api/migrations"
)

// RunMigrations applies all pending migrations for the pool's driver.
// This is called at application startup to ensure the schema is up to date.
func (db *DB) RunMigrations(logger *zap.Logger) error {
	if logger == nil {
		logger = zap.NewNop()
	}

	source, err := iofs.New(migrations.FS, migrations.Dir(db.driver))
	if err != nil {
		return fmt.Errorf("failed to open embedded migrations: %w", err)
	}

	var driver migratedb.Driver
	switch db.driver {
	case DriverSQLite:
		driver, err = sqlite3.WithInstance(db.DB.DB, &sqlite3.Config{})
	default:
		driver, err = postgres.WithInstance(db.DB.DB, &postgres.Config{})
	}
	if err != nil {
		return fmt.Errorf("failed to create migration driver: %w", err)
	}

	m, err := migrate.NewWithInstance("iofs", source, db.driver, driver)
	if err != nil {
		return fmt.Errorf("failed to create migrator: %w", err)
	}
	// m.Close() is deliberately not called: it would close the shared *sql.DB.

	err = m.Up()
	if err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return fmt.Errorf("migration failed: %w", err)
	}

	if errors.Is(err, migrate.ErrNoChange) {
		logger.Info("database: no new migrations to apply")
	} else {
		version, dirty, _ := m.Version()
		logger.Info("database: migrated", zap.Uint("version", version), zap.Bool("dirty", dirty))
	}
	return nil
}
