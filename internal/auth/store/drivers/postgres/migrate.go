package postgres

import (
	"database/sql"
	"errors"

	"github.com/aussiebroadwan/marquee/internal/auth/store/drivers/postgres/migrations"

	"github.com/golang-migrate/migrate/v4"
	pgxmigrate "github.com/golang-migrate/migrate/v4/database/pgx/v5"
	"github.com/golang-migrate/migrate/v4/source/iofs"
)

// ApplyMigrations applies any pending migrations from the embedded files.
// The pgx migrate driver pins a connection for its advisory lock and closes
// the pool it was given, so it runs on a short lived pool of its own.
func (s *Store) ApplyMigrations() error {
	// 1. Open a dedicated pool for the migration run
	db, err := sql.Open("pgx", s.dsn)
	if err != nil {
		return err
	}

	// 2. Create the postgres migration driver
	driver, err := pgxmigrate.WithInstance(db, &pgxmigrate.Config{})
	if err != nil {
		_ = db.Close()
		return err
	}

	// 3. Create the iofs (embedded filesystem) source driver
	src, err := iofs.New(migrations.Migrations, ".")
	if err != nil {
		_ = driver.Close()
		return err
	}

	// 4. Create the migrate instance, closing it releases the pool
	instance, err := migrate.NewWithInstance("iofs", src, "pgx5", driver)
	if err != nil {
		_ = driver.Close()
		return err
	}
	defer func() { _, _ = instance.Close() }()

	// 5. Apply all up migrations
	if err := instance.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return err
	}

	return nil
}
