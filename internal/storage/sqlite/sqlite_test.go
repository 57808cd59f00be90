package sqlite

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/chrissnell/autocal/internal/storage"
	"github.com/chrissnell/autocal/internal/storage/storagetest"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

func TestStore(t *testing.T) {
	storagetest.Run(t, func(t *testing.T) storage.HistoryStore {
		s, err := New(context.Background(), filepath.Join(t.TempDir(), "history.db"), zaptest.NewLogger(t).Sugar())
		require.NoError(t, err)
		t.Cleanup(func() { s.Close() })
		return s
	})
}

func TestReopenKeepsSchema(t *testing.T) {
	path := filepath.Join(t.TempDir(), "history.db")
	ctx := context.Background()

	s, err := New(ctx, path, nil)
	require.NoError(t, err)
	require.NoError(t, s.Close())

	s, err = New(ctx, path, nil)
	require.NoError(t, err)
	defer s.Close()

	h := s.CheckHealth(ctx)
	require.Equal(t, storage.StatusHealthy, h.Status)
}
