// Package memory is a process-local HistoryStore for tests, replay and
// single-node deployments that do not need durable history
package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/chrissnell/autocal/internal/storage"
	"github.com/chrissnell/autocal/internal/types"
)

// Store keeps every device's records in trigger order
type Store struct {
	mu      sync.RWMutex
	devices map[string][]types.EventRecord
}

// New creates an empty store
func New() *Store {
	return &Store{devices: make(map[string][]types.EventRecord)}
}

// Append inserts rec keeping the device's records ordered by trigger time
func (s *Store) Append(_ context.Context, rec types.EventRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	recs := s.devices[rec.DeviceID]
	i := sort.Search(len(recs), func(i int) bool { return recs[i].TriggeredAt.After(rec.TriggeredAt) })
	recs = append(recs, types.EventRecord{})
	copy(recs[i+1:], recs[i:])
	recs[i] = rec
	s.devices[rec.DeviceID] = recs
	return nil
}

// History implements storage.HistoryStore
func (s *Store) History(_ context.Context, deviceID string, before time.Time, limit int) (types.History, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	recs := s.devices[deviceID]
	end := sort.Search(len(recs), func(i int) bool { return !recs[i].TriggeredAt.Before(before) })
	start := max(end-limit, 0)

	newestFirst := make([]types.EventRecord, 0, end-start)
	for i := end - 1; i >= start; i-- {
		newestFirst = append(newestFirst, recs[i])
	}
	return storage.BuildHistory(newestFirst), nil
}

// Events implements storage.HistoryStore
func (s *Store) Events(_ context.Context, deviceID string, limit int) ([]types.EventRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	recs := s.devices[deviceID]
	if len(recs) == 0 {
		return nil, storage.ErrNotFound
	}
	start := max(len(recs)-limit, 0)
	return append([]types.EventRecord(nil), recs[start:]...), nil
}

// CheckHealth always reports healthy
func (s *Store) CheckHealth(context.Context) storage.Health {
	return storage.PingHealth(nil)
}

// Close implements storage.HistoryStore
func (s *Store) Close() error {
	return nil
}
