// Package storage defines the per-device history store and its backends.
package storage

import (
	"context"
	"errors"
	"time"

	"github.com/chrissnell/autocal/internal/types"
)

// ErrNotFound is returned when a device has no stored events
var ErrNotFound = errors.New("storage: no events for device")

// HistoryStore persists one EventRecord per processed event and serves the
// reset-aware history snapshot the engine computes against
type HistoryStore interface {
	// History returns at most limit of the most recent records triggered
	// before the given time, truncated at reset flags, oldest first
	History(ctx context.Context, deviceID string, before time.Time, limit int) (types.History, error)

	// Append stores a record
	Append(ctx context.Context, rec types.EventRecord) error

	// Events returns up to limit of the most recent raw records, oldest first
	Events(ctx context.Context, deviceID string, limit int) ([]types.EventRecord, error)

	Close() error
}

// BuildHistory walks rows (newest first) and applies the reset flags. The
// result is oldest first.
func BuildHistory(newestFirst []types.EventRecord) types.History {
	var h types.History

	for _, row := range newestFirst {
		include := true
		stop := false

		switch {
		case row.OnWindshield != nil && row.OnWindshield.ResetCalibration.Valid():
			include = row.OnWindshield.ResetCalibration.Behavior != types.ResetIgnoreCurrent
			stop = true
		case row.ResetHistory.Valid():
			include = row.ResetHistory.Behavior != types.ResetIgnoreCurrent
			stop = true
		}
		if include && row.Calibration != nil {
			h.Calibration = append(h.Calibration, *row.Calibration)
		}
		if stop {
			break
		}
	}

	for _, row := range newestFirst {
		if row.ResetHistory.Valid() {
			if row.ResetHistory.Behavior != types.ResetIgnoreCurrent && row.OnWindshield != nil {
				h.OnWindshield = append(h.OnWindshield, *row.OnWindshield)
			}
			break
		}
		if row.OnWindshield == nil {
			continue
		}
		if rc := row.OnWindshield.ResetCalibration; rc != nil && rc.Source == types.ResetSourceSupportTool {
			continue
		}
		h.OnWindshield = append(h.OnWindshield, *row.OnWindshield)
	}

	reverse(h.Calibration)
	reverse(h.OnWindshield)
	return h
}

func reverse[T any](s []T) {
	for i, j := 0, len(s)-1; i < j; i, j = i+1, j-1 {
		s[i], s[j] = s[j], s[i]
	}
}

// ResetMarker builds the record a support tool appends to restart a
// device's calibration
func ResetMarker(id, deviceID string, at time.Time, behavior types.ResetBehavior) types.EventRecord {
	return types.EventRecord{
		ID:          id,
		DeviceID:    deviceID,
		EventType:   "reset",
		TriggeredAt: at,
		ResetHistory: &types.ResetFlag{
			Source:   types.ResetSourceSupportTool,
			Behavior: behavior,
		},
	}
}
