package storage

import (
	"testing"

	"github.com/chrissnell/autocal/internal/types"
	"github.com/stretchr/testify/assert"
)

func row(pitch float64) types.EventRecord {
	return types.EventRecord{
		OnWindshield: &types.OnWindshieldRecord{Decision: types.DecisionOnWindshield, Angles: &types.EulerAngles{Pitch: pitch}},
		Calibration:  &types.CalibrationRecord{OperationalAngles: types.EulerAngles{Pitch: pitch}},
	}
}

func withCalibrationReset(r types.EventRecord, source string, b types.ResetBehavior) types.EventRecord {
	r.OnWindshield.ResetCalibration = &types.ResetFlag{Source: source, Behavior: b}
	return r
}

func withHistoryReset(r types.EventRecord, b types.ResetBehavior) types.EventRecord {
	r.ResetHistory = &types.ResetFlag{Source: types.ResetSourceSupportTool, Behavior: b}
	return r
}

func calPitches(h types.History) []float64 {
	var out []float64
	for _, c := range h.Calibration {
		out = append(out, c.OperationalAngles.Pitch)
	}
	return out
}

func wsPitches(h types.History) []float64 {
	var out []float64
	for _, r := range h.OnWindshield {
		out = append(out, r.Angles.Pitch)
	}
	return out
}

func TestBuildHistory(t *testing.T) {
	tests := []struct {
		name    string
		rows    []types.EventRecord // newest first
		wantCal []float64
		wantWS  []float64
	}{
		{
			name:    "no flags",
			rows:    []types.EventRecord{row(3), row(2), row(1)},
			wantCal: []float64{1, 2, 3},
			wantWS:  []float64{1, 2, 3},
		},
		{
			name:    "calibration reset keeps flagged row",
			rows:    []types.EventRecord{row(3), withCalibrationReset(row(2), types.ResetSourceAlgo, types.ResetIgnoreHistory), row(1)},
			wantCal: []float64{2, 3},
			wantWS:  []float64{1, 2, 3},
		},
		{
			name:    "calibration reset ignoring current",
			rows:    []types.EventRecord{row(3), withCalibrationReset(row(2), types.ResetSourceAlgo, types.ResetIgnoreCurrent), row(1)},
			wantCal: []float64{3},
			wantWS:  []float64{1, 2, 3},
		},
		{
			name:    "support tool calibration reset hides the on-windshield row",
			rows:    []types.EventRecord{row(3), withCalibrationReset(row(2), types.ResetSourceSupportTool, types.ResetIgnoreHistory), row(1)},
			wantCal: []float64{2, 3},
			wantWS:  []float64{1, 3},
		},
		{
			name:    "history reset truncates both",
			rows:    []types.EventRecord{row(3), withHistoryReset(row(2), types.ResetIgnoreHistory), row(1)},
			wantCal: []float64{2, 3},
			wantWS:  []float64{2, 3},
		},
		{
			name:    "unknown behavior is ignored",
			rows:    []types.EventRecord{row(2), withHistoryReset(row(1), "Sometimes")},
			wantCal: []float64{1, 2},
			wantWS:  []float64{1, 2},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := BuildHistory(tt.rows)
			assert.Equal(t, tt.wantCal, calPitches(h))
			assert.Equal(t, tt.wantWS, wsPitches(h))
		})
	}
}
