// Package storagetest holds behaviour checks every HistoryStore must pass
package storagetest

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/chrissnell/autocal/internal/storage"
	"github.com/chrissnell/autocal/internal/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var epoch = time.Date(2026, 3, 1, 8, 0, 0, 0, time.UTC)

func event(device string, n int) types.EventRecord {
	pitch := float64(20 + n)
	return types.EventRecord{
		ID:          fmt.Sprintf("%s-%03d", device, n),
		DeviceID:    device,
		TriggeredAt: epoch.Add(time.Duration(n) * time.Minute),
		OnWindshield: &types.OnWindshieldRecord{
			Decision: types.DecisionOnWindshield,
			Reason:   types.ReasonStable,
			Angles:   &types.EulerAngles{Pitch: pitch, Yaw: 180},
		},
		Calibration: &types.CalibrationRecord{
			Status:            types.StatusPending,
			OperationalAngles: types.EulerAngles{Pitch: pitch, Yaw: 180},
		},
		Offset: &types.OffsetRecord{Offsets: [3]int{n, -n, 0}, DisabledAxes: [3]bool{false, false, true}},
	}
}

func ids(recs []types.EventRecord) []string {
	out := make([]string, len(recs))
	for i, r := range recs {
		out[i] = r.ID
	}
	return out
}

func pitches(cals []types.CalibrationRecord) []float64 {
	out := make([]float64, len(cals))
	for i, c := range cals {
		out[i] = c.OperationalAngles.Pitch
	}
	return out
}

// Run exercises a fresh store returned by newStore
func Run(t *testing.T, newStore func(t *testing.T) storage.HistoryStore) {
	ctx := context.Background()

	t.Run("unknown device", func(t *testing.T) {
		s := newStore(t)
		_, err := s.Events(ctx, "nobody", 10)
		assert.True(t, errors.Is(err, storage.ErrNotFound))

		h, err := s.History(ctx, "nobody", epoch, 10)
		require.NoError(t, err)
		assert.Empty(t, h.Calibration)
		assert.Empty(t, h.OnWindshield)
	})

	t.Run("events are oldest first and limited", func(t *testing.T) {
		s := newStore(t)
		for _, n := range []int{3, 1, 2, 4} {
			require.NoError(t, s.Append(ctx, event("dev-a", n)))
		}
		require.NoError(t, s.Append(ctx, event("dev-b", 9)))

		got, err := s.Events(ctx, "dev-a", 3)
		require.NoError(t, err)
		assert.Equal(t, []string{"dev-a-002", "dev-a-003", "dev-a-004"}, ids(got))

		require.NotNil(t, got[0].Offset)
		assert.Equal(t, [3]int{2, -2, 0}, got[0].Offset.Offsets)
		assert.True(t, got[0].TriggeredAt.Equal(epoch.Add(2*time.Minute)))
	})

	t.Run("history before event time", func(t *testing.T) {
		s := newStore(t)
		for n := 1; n <= 5; n++ {
			require.NoError(t, s.Append(ctx, event("dev", n)))
		}

		h, err := s.History(ctx, "dev", epoch.Add(4*time.Minute), 2)
		require.NoError(t, err)
		assert.Equal(t, []float64{22, 23}, pitches(h.Calibration))
		assert.Len(t, h.OnWindshield, 2)
	})

	t.Run("reset marker truncates history", func(t *testing.T) {
		s := newStore(t)
		for n := 1; n <= 3; n++ {
			require.NoError(t, s.Append(ctx, event("dev", n)))
		}
		require.NoError(t, s.Append(ctx, storage.ResetMarker("reset-1", "dev", epoch.Add(3*time.Minute+time.Second), types.ResetIgnoreCurrent)))
		require.NoError(t, s.Append(ctx, event("dev", 4)))

		h, err := s.History(ctx, "dev", epoch.Add(time.Hour), 100)
		require.NoError(t, err)
		assert.Equal(t, []float64{24}, pitches(h.Calibration))
		assert.Len(t, h.OnWindshield, 1)
	})
}
