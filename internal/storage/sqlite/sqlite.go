// Package sqlite stores device history in a SQLite file. Each row carries
// the msgpack-encoded EventRecord; device and trigger time are indexed.
package sqlite

import (
	"context"
	"database/sql"
	"embed"
	"fmt"
	"time"

	"github.com/chrissnell/autocal/internal/storage"
	"github.com/chrissnell/autocal/internal/types"
	"github.com/chrissnell/autocal/pkg/migrate"
	"go.uber.org/zap"
	_ "modernc.org/sqlite"
)

//go:embed migrations/*.sql
var migrationFS embed.FS

const migrationTable = "history_schema_migrations"

// Migrations returns the embedded history schema migrations
func Migrations() *migrate.FSProvider {
	return migrate.NewFSProvider(migrationFS, "migrations", migrationTable)
}

// Store is a SQLite-backed storage.HistoryStore
type Store struct {
	db     *sql.DB
	logger *zap.SugaredLogger
}

// New opens path and brings the history schema up to date
func New(ctx context.Context, path string, logger *zap.SugaredLogger) (*Store, error) {
	if logger == nil {
		logger = zap.NewNop().Sugar()
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open SQLite history: %w", err)
	}
	// :memory: databases exist per connection
	db.SetMaxOpenConns(1)

	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping SQLite history: %w", err)
	}

	migrator := migrate.NewMigrator(db, Migrations(), logger)
	if err := migrator.MigrateUp(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to migrate history schema: %w", err)
	}

	logger.Infow("SQLite history store ready", "path", path)
	return &Store{db: db, logger: logger}, nil
}

// Append implements storage.HistoryStore
func (s *Store) Append(ctx context.Context, rec types.EventRecord) error {
	payload, err := storage.EncodeRecord(rec)
	if err != nil {
		return err
	}
	_, err = s.db.ExecContext(ctx,
		`INSERT INTO events (id, device_id, triggered_at, payload) VALUES (?, ?, ?, ?)`,
		rec.ID, rec.DeviceID, rec.TriggeredAt.UnixNano(), payload)
	if err != nil {
		return fmt.Errorf("insert event %s: %w", rec.ID, err)
	}
	return nil
}

// History implements storage.HistoryStore
func (s *Store) History(ctx context.Context, deviceID string, before time.Time, limit int) (types.History, error) {
	newestFirst, err := s.query(ctx,
		`SELECT payload FROM events WHERE device_id = ? AND triggered_at < ?
		 ORDER BY triggered_at DESC LIMIT ?`,
		deviceID, before.UnixNano(), limit)
	if err != nil {
		return types.History{}, err
	}
	return storage.BuildHistory(newestFirst), nil
}

// Events implements storage.HistoryStore
func (s *Store) Events(ctx context.Context, deviceID string, limit int) ([]types.EventRecord, error) {
	newestFirst, err := s.query(ctx,
		`SELECT payload FROM events WHERE device_id = ? ORDER BY triggered_at DESC LIMIT ?`,
		deviceID, limit)
	if err != nil {
		return nil, err
	}
	if len(newestFirst) == 0 {
		return nil, storage.ErrNotFound
	}
	for i, j := 0, len(newestFirst)-1; i < j; i, j = i+1, j-1 {
		newestFirst[i], newestFirst[j] = newestFirst[j], newestFirst[i]
	}
	return newestFirst, nil
}

func (s *Store) query(ctx context.Context, q string, args ...any) ([]types.EventRecord, error) {
	rows, err := s.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, fmt.Errorf("query events: %w", err)
	}
	defer rows.Close()

	var out []types.EventRecord
	for rows.Next() {
		var payload []byte
		if err := rows.Scan(&payload); err != nil {
			return nil, fmt.Errorf("scan event: %w", err)
		}
		rec, err := storage.DecodeRecord(payload)
		if err != nil {
			return nil, err
		}
		out = append(out, rec)
	}
	return out, rows.Err()
}

// CheckHealth pings the database
func (s *Store) CheckHealth(ctx context.Context) storage.Health {
	return storage.PingHealth(s.db.PingContext(ctx))
}

// Close implements storage.HistoryStore
func (s *Store) Close() error {
	return s.db.Close()
}
