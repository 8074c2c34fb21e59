package persistence

import (
	"database/sql"
	"fmt"

	"github.com/golang-migrate/migrate/v4"
	mysqlmigrate "github.com/golang-migrate/migrate/v4/database/mysql"
	"github.com/golang-migrate/migrate/v4/source/iofs"

	"github.com/arkhold/ftpvault/pkg/persistence/migrations"
)

// RunMigrations applies every pending schema migration, grounded on
// dittofs's postgres store's golang-migrate+iofs wiring (same library,
// mysql driver instead of postgres).
func RunMigrations(dsn string) error {
	db, err := sql.Open("mysql", dsn)
	if err != nil {
		return &Error{Op: "migrate", Err: err}
	}
	defer db.Close()

	driver, err := mysqlmigrate.WithInstance(db, &mysqlmigrate.Config{})
	if err != nil {
		return &Error{Op: "migrate", Err: fmt.Errorf("create mysql driver: %w", err)}
	}

	source, err := iofs.New(migrations.FS, ".")
	if err != nil {
		return &Error{Op: "migrate", Err: fmt.Errorf("create source driver: %w", err)}
	}

	m, err := migrate.NewWithInstance("iofs", source, "mysql", driver)
	if err != nil {
		return &Error{Op: "migrate", Err: fmt.Errorf("create migrate instance: %w", err)}
	}

	if err := m.Up(); err != nil && err != migrate.ErrNoChange {
		return &Error{Op: "migrate", Err: err}
	}
	return nil
}
