// Package postgres stores device history in PostgreSQL through GORM
package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/chrissnell/autocal/internal/database"
	"github.com/chrissnell/autocal/internal/storage"
	"github.com/chrissnell/autocal/internal/types"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// Store is a PostgreSQL-backed storage.HistoryStore
type Store struct {
	db     *gorm.DB
	logger *zap.SugaredLogger
}

// New connects to PostgreSQL and creates the events table if needed
func New(ctx context.Context, connectionString string, logger *zap.SugaredLogger) (*Store, error) {
	if logger == nil {
		logger = zap.NewNop().Sugar()
	}

	logger.Info("connecting to PostgreSQL...")
	db, err := database.CreateConnection(connectionString, logger.Desugar())
	if err != nil {
		return nil, err
	}
	return NewWithDB(ctx, db, logger)
}

// NewWithDB wraps an open GORM handle
func NewWithDB(ctx context.Context, db *gorm.DB, logger *zap.SugaredLogger) (*Store, error) {
	if logger == nil {
		logger = zap.NewNop().Sugar()
	}
	if err := db.WithContext(ctx).AutoMigrate(&database.EventRow{}); err != nil {
		return nil, fmt.Errorf("could not create events table: %w", err)
	}
	return &Store{db: db, logger: logger}, nil
}

// Append implements storage.HistoryStore
func (s *Store) Append(ctx context.Context, rec types.EventRecord) error {
	row, err := toRow(rec)
	if err != nil {
		return err
	}
	if err := s.db.WithContext(ctx).Create(&row).Error; err != nil {
		return fmt.Errorf("could not store event %s: %w", rec.ID, err)
	}
	return nil
}

// History implements storage.HistoryStore
func (s *Store) History(ctx context.Context, deviceID string, before time.Time, limit int) (types.History, error) {
	var rows []database.EventRow
	err := s.db.WithContext(ctx).
		Where("device_id = ? AND triggered_at < ?", deviceID, before).
		Order("triggered_at DESC").
		Limit(limit).
		Find(&rows).Error
	if err != nil {
		return types.History{}, fmt.Errorf("error querying history: %w", err)
	}

	newestFirst, err := fromRows(rows)
	if err != nil {
		return types.History{}, err
	}
	return storage.BuildHistory(newestFirst), nil
}

// Events implements storage.HistoryStore
func (s *Store) Events(ctx context.Context, deviceID string, limit int) ([]types.EventRecord, error) {
	var rows []database.EventRow
	err := s.db.WithContext(ctx).
		Where("device_id = ?", deviceID).
		Order("triggered_at DESC").
		Limit(limit).
		Find(&rows).Error
	if errors.Is(err, gorm.ErrRecordNotFound) || (err == nil && len(rows) == 0) {
		return nil, storage.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("error querying events: %w", err)
	}

	recs, err := fromRows(rows)
	if err != nil {
		return nil, err
	}
	for i, j := 0, len(recs)-1; i < j; i, j = i+1, j-1 {
		recs[i], recs[j] = recs[j], recs[i]
	}
	return recs, nil
}

// CheckHealth pings the underlying connection
func (s *Store) CheckHealth(ctx context.Context) storage.Health {
	sqlDB, err := s.db.DB()
	if err != nil {
		return storage.PingHealth(err)
	}
	return storage.PingHealth(sqlDB.PingContext(ctx))
}

// Close implements storage.HistoryStore
func (s *Store) Close() error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

func toRow(rec types.EventRecord) (database.EventRow, error) {
	payload, err := storage.EncodeRecord(rec)
	if err != nil {
		return database.EventRow{}, err
	}
	return database.EventRow{
		ID:          rec.ID,
		DeviceID:    rec.DeviceID,
		TriggeredAt: rec.TriggeredAt,
		Payload:     payload,
	}, nil
}

func fromRows(rows []database.EventRow) ([]types.EventRecord, error) {
	out := make([]types.EventRecord, 0, len(rows))
	for _, row := range rows {
		rec, err := storage.DecodeRecord(row.Payload)
		if err != nil {
			return nil, fmt.Errorf("row %s: %w", row.ID, err)
		}
		out = append(out, rec)
	}
	return out, nil
}
