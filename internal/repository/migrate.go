package repository

import (
	"database/sql"
	"embed"
	stderrors "errors"

	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database/postgres"
	"github.com/golang-migrate/migrate/v4/source/iofs"

	"github.com/tm-acme-shop/acme-shop-cart-service/internal/logging"
)

//go:embed migrations/*.sql
var migrationFiles embed.FS

// Migrate applies every pending schema migration to db.
func Migrate(db *sql.DB, logger *logging.LoggerV2) error {
	src, err := iofs.New(migrationFiles, "migrations")
	if err != nil {
		return err
	}

	driver, err := postgres.WithInstance(db, &postgres.Config{})
	if err != nil {
		return err
	}

	m, err := migrate.NewWithInstance("iofs", src, "postgres", driver)
	if err != nil {
		return err
	}

	if err := m.Up(); err != nil {
		if stderrors.Is(err, migrate.ErrNoChange) {
			logger.Info("Schema up to date")
			return nil
		}
		return err
	}

	version, dirty, _ := m.Version()
	logger.Info("Schema migrated", logging.Fields{
		"version": version,
		"dirty":   dirty,
	})
	return nil
}
