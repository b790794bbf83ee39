package migration

import (
	"database/sql"
	"errors"
	"fmt"

	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database/postgres"
	_ "github.com/golang-migrate/migrate/v4/source/file"
	"go.uber.org/zap"
)

// Migrator drives schema migrations over an existing database connection.
type Migrator struct {
	m   *migrate.Migrate
	log *zap.Logger
}

// New wraps db with a file-source migrator reading from migrationsPath.
func New(db *sql.DB, migrationsPath string, log *zap.Logger) (*Migrator, error) {
	driver, err := postgres.WithInstance(db, &postgres.Config{})
	if err != nil {
		return nil, fmt.Errorf("postgres migration driver: %w", err)
	}
	m, err := migrate.NewWithDatabaseInstance("file://"+migrationsPath, "postgres", driver)
	if err != nil {
		return nil, fmt.Errorf("migrator setup: %w", err)
	}
	return &Migrator{m: m, log: log}, nil
}

// Up applies every pending migration.
func (mg *Migrator) Up() error {
	applied, err := mg.run("up", mg.m.Up)
	if err != nil || !applied {
		return err
	}
	return mg.logVersion("migrations applied")
}

// Down rolls back every applied migration.
func (mg *Migrator) Down() error {
	applied, err := mg.run("down", mg.m.Down)
	if err != nil || !applied {
		return err
	}
	mg.log.Info("all migrations rolled back")
	return nil
}

// Steps applies n migrations; negative n rolls back.
func (mg *Migrator) Steps(n int) error {
	mg.log.Info("stepping migrations", zap.Int("steps", n))
	applied, err := mg.run("steps", func() error { return mg.m.Steps(n) })
	if err != nil || !applied {
		return err
	}
	return mg.logVersion("migration steps applied")
}

// GoTo migrates up or down until the schema is at version.
func (mg *Migrator) GoTo(version uint) error {
	applied, err := mg.run("goto", func() error { return mg.m.Migrate(version) })
	if err != nil {
		return err
	}
	if !applied {
		mg.log.Info("already at requested version", zap.Uint("version", version))
		return nil
	}
	return mg.logVersion("migrated to version")
}

// Version reports the current schema version. A fresh database reports
// version 0, not an error.
func (mg *Migrator) Version() (uint, bool, error) {
	version, dirty, err := mg.m.Version()
	if errors.Is(err, migrate.ErrNilVersion) {
		return 0, false, nil
	}
	if err != nil {
		return 0, false, fmt.Errorf("read schema version: %w", err)
	}
	return version, dirty, nil
}

// Force overwrites the recorded schema version without running migrations.
// Only for recovering a dirty state.
func (mg *Migrator) Force(version int) error {
	mg.log.Warn("forcing schema version", zap.Int("version", version))
	if err := mg.m.Force(version); err != nil {
		return fmt.Errorf("force version %d: %w", version, err)
	}
	return nil
}

// Drop removes every object in the database.
func (mg *Migrator) Drop() error {
	mg.log.Warn("dropping all database objects")
	if err := mg.m.Drop(); err != nil {
		return fmt.Errorf("drop database: %w", err)
	}
	return nil
}

// Close releases the migration source and database handles.
func (mg *Migrator) Close() error {
	sourceErr, dbErr := mg.m.Close()
	if sourceErr != nil {
		return fmt.Errorf("close migration source: %w", sourceErr)
	}
	if dbErr != nil {
		return fmt.Errorf("close migration database: %w", dbErr)
	}
	return nil
}

// run executes op and reports whether it changed anything. ErrNoChange is a
// clean no-op, not a failure.
func (mg *Migrator) run(label string, op func() error) (bool, error) {
	err := op()
	if errors.Is(err, migrate.ErrNoChange) {
		mg.log.Info("schema already up to date", zap.String("op", label))
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("migration %s: %w", label, err)
	}
	return true, nil
}

func (mg *Migrator) logVersion(msg string) error {
	version, dirty, err := mg.Version()
	if err != nil {
		return err
	}
	mg.log.Info(msg, zap.Uint("version", version), zap.Bool("dirty", dirty))
	return nil
}
