package managers

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/chrissnell/autocal/internal/storage"
	"github.com/chrissnell/autocal/internal/storage/memory"
	"github.com/chrissnell/autocal/internal/storage/postgres"
	"github.com/chrissnell/autocal/internal/storage/sqlite"
	"github.com/chrissnell/autocal/pkg/config"
	"go.uber.org/zap"
)

// HealthCheckInterval is how often the active backend is checked
const HealthCheckInterval = time.Minute

// StorageManager holds the active history backend and its health
type StorageManager struct {
	Store   storage.HistoryStore
	Backend string
	Health  *storage.HealthManager
}

// NewStorageManager opens the configured backend and starts its health
// monitor
func NewStorageManager(ctx context.Context, wg *sync.WaitGroup, sc config.StorageData, logger *zap.SugaredLogger) (*StorageManager, error) {
	store, backend, err := OpenStore(ctx, sc, logger)
	if err != nil {
		return nil, err
	}

	s := &StorageManager{
		Store:   store,
		Backend: backend,
		Health:  storage.NewHealthManager(),
	}
	if checker, ok := store.(storage.HealthChecker); ok {
		storage.StartHealthMonitor(ctx, wg, logger, s.Health, backend, checker, HealthCheckInterval)
	}
	return s, nil
}

// OpenStore builds the history store named by sc.Backend
func OpenStore(ctx context.Context, sc config.StorageData, logger *zap.SugaredLogger) (storage.HistoryStore, string, error) {
	switch sc.Backend {
	case "", config.StorageMemory:
		logger.Info("using in-memory history store")
		return memory.New(), config.StorageMemory, nil
	case config.StorageSQLite:
		if sc.SQLite == nil || sc.SQLite.Path == "" {
			return nil, "", fmt.Errorf("sqlite storage requires a path")
		}
		s, err := sqlite.New(ctx, sc.SQLite.Path, logger.Named("sqlite"))
		if err != nil {
			return nil, "", fmt.Errorf("could not add SQLite storage backend: %w", err)
		}
		return s, config.StorageSQLite, nil
	case config.StoragePostgres:
		if sc.Postgres == nil || sc.Postgres.ConnectionString == "" {
			return nil, "", fmt.Errorf("postgres storage requires a connection string")
		}
		s, err := postgres.New(ctx, sc.Postgres.ConnectionString, logger.Named("postgres"))
		if err != nil {
			return nil, "", fmt.Errorf("could not add PostgreSQL storage backend: %w", err)
		}
		return s, config.StoragePostgres, nil
	default:
		return nil, "", fmt.Errorf("unknown storage backend: %s", sc.Backend)
	}
}
