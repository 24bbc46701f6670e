package database

import (
	"database/sql"
	"errors"
	"fmt"

	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database/postgres"
	_ "github.com/golang-migrate/migrate/v4/source/file"
	_ "github.com/jackc/pgx/v5/stdlib"
	"go.uber.org/zap"
)

// DefaultMigrationsSource is where the SQL migrations live relative to the
// working directory of kbchatd.
const DefaultMigrationsSource = "file://migrations"

// Migrate applies all pending up migrations from source and returns the
// resulting schema version.
func Migrate(databaseURL, source string, log *zap.Logger) (uint, error) {
	if log == nil {
		log = zap.NewNop()
	}
	if source == "" {
		source = DefaultMigrationsSource
	}

	db, err := sql.Open("pgx", databaseURL)
	if err != nil {
		return 0, fmt.Errorf("failed to open database for migrations: %w", err)
	}
	defer db.Close()

	driver, err := postgres.WithInstance(db, &postgres.Config{})
	if err != nil {
		return 0, fmt.Errorf("failed to create migration driver: %w", err)
	}

	m, err := migrate.NewWithDatabaseInstance(source, "postgres", driver)
	if err != nil {
		return 0, fmt.Errorf("failed to create migrate instance: %w", err)
	}

	upErr := m.Up()
	if upErr != nil && !errors.Is(upErr, migrate.ErrNoChange) {
		return 0, fmt.Errorf("failed to apply migrations: %w", upErr)
	}

	version, dirty, err := m.Version()
	switch {
	case errors.Is(err, migrate.ErrNilVersion):
		log.Info("migrations: no migrations found", zap.String("source", source))
		return 0, nil
	case err != nil:
		return 0, fmt.Errorf("failed to get migration version: %w", err)
	case dirty:
		return version, fmt.Errorf("migration version %d is dirty - manual intervention required", version)
	}

	if errors.Is(upErr, migrate.ErrNoChange) {
		log.Info("migrations: database is up to date", zap.Uint("version", version))
	} else {
		log.Info("migrations: applied successfully", zap.Uint("version", version))
	}
	return version, nil
}
