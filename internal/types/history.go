package types

// History is a read-only snapshot of a device's prior records, oldest first.
// It has already been truncated at the most recent reset flag by the store.
type History struct {
	OnWindshield []OnWindshieldRecord `json:"on_windshield"`
	Calibration  []CalibrationRecord  `json:"calibration"`
}

// LatestCalibration returns the most recent calibration record
func (h History) LatestCalibration() (CalibrationRecord, bool) {
	if len(h.Calibration) == 0 {
		return CalibrationRecord{}, false
	}
	return h.Calibration[len(h.Calibration)-1], true
}

// LatestOnWindshield returns the most recent on-windshield record
func (h History) LatestOnWindshield() (OnWindshieldRecord, bool) {
	if len(h.OnWindshield) == 0 {
		return OnWindshieldRecord{}, false
	}
	return h.OnWindshield[len(h.OnWindshield)-1], true
}

// AnyCalibrated reports whether any calibration record reached Calibrated
func (h History) AnyCalibrated() bool {
	for _, c := range h.Calibration {
		if c.Status == StatusCalibrated {
			return true
		}
	}
	return false
}

// SinceAngleChange returns the on-windshield records from the most recent
// "Angle changed" record (inclusive) to the end. With no such record the
// whole slice is returned.
func SinceAngleChange(records []OnWindshieldRecord) []OnWindshieldRecord {
	for i := len(records) - 1; i >= 0; i-- {
		if records[i].Reason == ReasonAngleChanged {
			return records[i:]
		}
	}
	return records
}

// DecidedAngles collects the angles of positive decisions
func DecidedAngles(records []OnWindshieldRecord) []EulerAngles {
	var out []EulerAngles
	for _, r := range records {
		if r.IsOnWindshield() && r.Angles != nil {
			out = append(out, *r.Angles)
		}
	}
	return out
}
