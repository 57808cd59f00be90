package mounting

import "github.com/chrissnell/autocal/internal/types"

// recordBuilder accumulates the fields of one OnWindshieldRecord
type recordBuilder struct {
	rec types.OnWindshieldRecord
}

func newRecordBuilder() *recordBuilder {
	return &recordBuilder{rec: types.OnWindshieldRecord{Decision: types.DecisionUnknown}}
}

// fullReset asks for the offset to be cleared and the calibration history
// to restart at this record
func (b *recordBuilder) fullReset() {
	b.rec.ResetOffset = true
	b.rec.ResetCalibration = &types.ResetFlag{
		Source:   types.ResetSourceAlgo,
		Behavior: types.ResetIgnoreHistory,
	}
}

func (b *recordBuilder) decide(d types.Decision, reason types.Reason, desc string) types.OnWindshieldRecord {
	b.rec.Decision = d
	b.rec.Reason = reason
	b.rec.ReasonDescription = desc
	return b.rec
}

// InterpretButton reduces the per-sample press signal to a single verdict.
// A one-sample signal is reported as such. An empty signal is not a press.
func InterpretButton(signal []bool) types.ButtonPress {
	if len(signal) == 1 {
		if signal[0] {
			return types.ButtonPress{Pressed: true, Reason: "Sample is on"}
		}
		return types.ButtonPress{Reason: "Sample is off"}
	}

	on := 0
	for _, s := range signal {
		if s {
			on++
		}
	}

	switch {
	case on > 0 && on == len(signal):
		return types.ButtonPress{Pressed: true, Reason: "All samples are on"}
	case on > 0:
		return types.ButtonPress{Reason: "Some samples are on"}
	}
	return types.ButtonPress{Reason: "All samples are off"}
}
