// Package migrate applies versioned SQL schema migrations. Migrations are
// loaded by a MigrationProvider (from a directory or an embedded
// filesystem) and executed one per transaction.
package migrate

import (
	"context"
	"database/sql"
	"fmt"
	"sort"

	"go.uber.org/zap"
)

// Migration represents a single schema version step
type Migration struct {
	Version int
	Name    string
	Up      string
	Down    string
}

// DB is satisfied by both *sql.DB and *sql.Tx
type DB interface {
	ExecContext(ctx context.Context, query string, args ...interface{}) (sql.Result, error)
	QueryRowContext(ctx context.Context, query string, args ...interface{}) *sql.Row
}

// MigrationProvider defines how migrations are loaded and tracked
type MigrationProvider interface {
	GetMigrations() ([]Migration, error)
	GetCurrentVersion(ctx context.Context, db DB) (int, error)
	SetVersion(ctx context.Context, db DB, version int) error
	CreateMigrationTable(ctx context.Context, db DB) error
}

// Migrator executes migrations from a provider against a database
type Migrator struct {
	db       *sql.DB
	provider MigrationProvider
	logger   *zap.SugaredLogger
}

// NewMigrator creates a new migrator. A nil logger silences progress output.
func NewMigrator(db *sql.DB, provider MigrationProvider, logger *zap.SugaredLogger) *Migrator {
	if logger == nil {
		logger = zap.NewNop().Sugar()
	}
	return &Migrator{
		db:       db,
		provider: provider,
		logger:   logger,
	}
}

// MigrateUp applies every pending migration
func (m *Migrator) MigrateUp(ctx context.Context) error {
	return m.MigrateTo(ctx, -1)
}

// MigrateDown reverts migrations until targetVersion is current
func (m *Migrator) MigrateDown(ctx context.Context, targetVersion int) error {
	current, err := m.provider.GetCurrentVersion(ctx, m.db)
	if err != nil {
		return fmt.Errorf("failed to get current version: %w", err)
	}
	if targetVersion >= current {
		return fmt.Errorf("target version %d must be less than current version %d", targetVersion, current)
	}

	migrations, err := m.sorted(false)
	if err != nil {
		return err
	}

	for _, mig := range migrations {
		if mig.Version > targetVersion && mig.Version <= current {
			if err := m.execute(ctx, mig, false); err != nil {
				return fmt.Errorf("failed to roll back migration %d: %w", mig.Version, err)
			}
		}
	}
	return nil
}

// MigrateTo moves the schema up or down to targetVersion; -1 means latest
func (m *Migrator) MigrateTo(ctx context.Context, targetVersion int) error {
	if err := m.provider.CreateMigrationTable(ctx, m.db); err != nil {
		return fmt.Errorf("failed to create migration table: %w", err)
	}

	current, err := m.provider.GetCurrentVersion(ctx, m.db)
	if err != nil {
		return fmt.Errorf("failed to get current version: %w", err)
	}

	migrations, err := m.sorted(true)
	if err != nil {
		return err
	}

	if targetVersion == -1 && len(migrations) > 0 {
		targetVersion = migrations[len(migrations)-1].Version
	}
	if targetVersion < current {
		return m.MigrateDown(ctx, targetVersion)
	}

	for _, mig := range migrations {
		if mig.Version > current && mig.Version <= targetVersion {
			if err := m.execute(ctx, mig, true); err != nil {
				return fmt.Errorf("failed to apply migration %d: %w", mig.Version, err)
			}
		}
	}
	return nil
}

// GetCurrentVersion returns the applied schema version
func (m *Migrator) GetCurrentVersion(ctx context.Context) (int, error) {
	if err := m.provider.CreateMigrationTable(ctx, m.db); err != nil {
		return 0, fmt.Errorf("failed to create migration table: %w", err)
	}
	return m.provider.GetCurrentVersion(ctx, m.db)
}

// GetPendingMigrations lists migrations newer than the applied version
func (m *Migrator) GetPendingMigrations(ctx context.Context) ([]Migration, error) {
	current, err := m.GetCurrentVersion(ctx)
	if err != nil {
		return nil, err
	}

	migrations, err := m.sorted(true)
	if err != nil {
		return nil, err
	}

	var pending []Migration
	for _, mig := range migrations {
		if mig.Version > current {
			pending = append(pending, mig)
		}
	}
	return pending, nil
}

// SetVersion forces the recorded version without running any SQL
func (m *Migrator) SetVersion(ctx context.Context, version int) error {
	return m.provider.SetVersion(ctx, m.db, version)
}

func (m *Migrator) sorted(ascending bool) ([]Migration, error) {
	migrations, err := m.provider.GetMigrations()
	if err != nil {
		return nil, fmt.Errorf("failed to get migrations: %w", err)
	}
	sort.Slice(migrations, func(i, j int) bool {
		if ascending {
			return migrations[i].Version < migrations[j].Version
		}
		return migrations[i].Version > migrations[j].Version
	})
	return migrations, nil
}

func (m *Migrator) execute(ctx context.Context, mig Migration, up bool) error {
	stmt, direction, newVersion := mig.Up, "up", mig.Version
	if !up {
		stmt, direction, newVersion = mig.Down, "down", mig.Version-1
	}
	if stmt == "" {
		return fmt.Errorf("migration %d has no %s SQL", mig.Version, direction)
	}

	tx, err := m.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, stmt); err != nil {
		return fmt.Errorf("failed to execute migration SQL: %w", err)
	}
	if err := m.provider.SetVersion(ctx, tx, newVersion); err != nil {
		return fmt.Errorf("failed to update migration version: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit migration transaction: %w", err)
	}

	m.logger.Infow("applied migration", "version", mig.Version, "name", mig.Name, "direction", direction)
	return nil
}
