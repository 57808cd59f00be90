// Package calibration accumulates per-event evidence into the operational
// mounting pose of a device and decides when it is calibrated.
package calibration

import (
	"math"

	"github.com/chrissnell/autocal/internal/geometry"
	"github.com/chrissnell/autocal/internal/robust"
	"github.com/chrissnell/autocal/internal/types"
	"github.com/chrissnell/autocal/internal/window"
	"go.uber.org/zap"
)

// AxesOrientation names the vehicle frame convention: forward, left, up
const AxesOrientation = "FLU"

// psiMeanTolerance is the absolute tolerance for "PsiZMean did not move"
const psiMeanTolerance = 1e-8

// Params holds the cleaning thresholds and convergence rules
type Params struct {
	Straight window.StraightParams

	A0Threshold   types.Vector3 // per-axis, g; half is used as the tolerance around the median
	PsiZThreshold float64       // degrees

	MinAxEvents int
	MinA0Events int

	PlaneBetterThreshold float64 // degrees
	CalibratedThreshold  float64 // degrees

	// ReferencePitch sets the default pose when a device has no calibration yet
	ReferencePitch float64
}

// DefaultParams returns production aggregation settings
func DefaultParams() Params {
	return Params{
		Straight:             window.DefaultStraightParams(),
		A0Threshold:          types.Vector3{0.05, 0.05, 0.05},
		PsiZThreshold:        10,
		MinAxEvents:          5,
		MinA0Events:          5,
		PlaneBetterThreshold: 5,
		CalibratedThreshold:  1,
		ReferencePitch:       27,
	}
}

// DefaultRecord is the pose assumed before any evidence exists
func DefaultRecord(referencePitch float64) types.CalibrationRecord {
	angles := types.EulerAngles{Roll: 0, Pitch: referencePitch, Yaw: 180}
	return types.CalibrationRecord{
		Status:            types.StatusPending,
		AxesOrientation:   AxesOrientation,
		OperationalAngles: angles,
		OperationalMat:    geometry.RotationFromAngles(angles),
	}
}

// Input is one event as seen by the aggregator
type Input struct {
	// Samples is the event window with the programmed offset already removed
	Samples types.SampleWindow
	// Trigger is the on-windshield record produced for this event
	Trigger types.OnWindshieldRecord
	History types.History
}

// Aggregator produces one CalibrationRecord per event
type Aggregator struct {
	params Params
	logger *zap.SugaredLogger
}

// NewAggregator creates an aggregator
func NewAggregator(p Params, logger *zap.SugaredLogger) *Aggregator {
	if logger == nil {
		logger = zap.NewNop().Sugar()
	}
	return &Aggregator{params: p, logger: logger}
}

// Aggregate runs the calibration flow for one event
func (a *Aggregator) Aggregate(in Input) types.CalibrationRecord {
	rec := DefaultRecord(a.params.ReferencePitch)
	if latest, ok := in.History.LatestCalibration(); ok {
		rec.Status = latest.Status
		rec.OperationalAngles = latest.OperationalAngles
		rec.OperationalMat = latest.OperationalMat
	}
	if in.Trigger.A0 != nil {
		rec.A0 = in.Trigger.A0.Ptr()
	}

	if in.Trigger.Reason == types.ReasonAngleChanged && in.Trigger.Angles != nil {
		rec.Status = types.StatusPending
		a.setPose(&rec, *in.Trigger.Angles)
		a.logger.Infow("angle changed, operational pose follows the on-windshield angles",
			"angles", rec.OperationalAngles)
		return rec
	}

	if in.History.AnyCalibrated() {
		rec.Status = types.StatusCalibrated
		a.logger.Debug("device is calibrated, no change")
		return rec
	}

	est := estimatedAngles(in.History, in.Trigger)
	if est == nil {
		a.logger.Infow("no windshield angle estimate, keeping default pose", "angles", rec.OperationalAngles)
		return rec
	}
	rec.Calculations.EstWSAngles = est.Ptr()
	a.setPose(&rec, *est)

	straight, found := window.FindStraight(in.Samples, rec.OperationalMat, a.params.Straight)
	if found {
		rec.Calculations.Ax = straight.Mean.Ptr()
	} else {
		a.logger.Debug("no straight-driving window")
	}

	a0History := priorA0s(in.History)
	if rec.A0 != nil {
		a0History = append(a0History, *rec.A0)
	}
	if len(a0History) == 0 {
		return rec
	}
	a0Clean := CleanA0(a0History, a.params.A0Threshold)
	a0Mean := robust.MeanVector(fallback(a0Clean, a0History))
	rec.Calculations.A0Mean = a0Mean.Ptr()

	psiHistory := priorPsiZ(in.History)
	if len(psiHistory) == 0 && !found {
		return rec
	}
	if found {
		acc := window.IsAccelerating(in.Samples, straight)
		rec.Calculations.IsAcc = &acc
		psi := PsiZ(a0Mean, straight.Mean, acc)
		rec.PsiZ = &psi
		psiHistory = append(psiHistory, psi)
	}
	psiClean := CleanPsiZ(psiHistory, a.params.PsiZThreshold)
	psiMean := robust.Mean(fallback(psiClean, psiHistory))
	rec.Calculations.PsiZMean = &psiMean

	prevMean, havePrev := latestPsiZMean(in.History)
	if havePrev && geometry.IsClose(psiMean, prevMean, psiMeanTolerance) {
		a.logger.Debug("psi_z mean unchanged, nothing to recalculate")
		return rec
	}

	plane := geometry.PlaneRotation(a0Mean, psiMean)
	planeAngles := geometry.AnglesFromRotation(plane)
	rec.Calculations.RotationMatrix = plane.Ptr()
	rec.Calculations.RotationAngles = planeAngles.Ptr()
	a.logger.Infow("plane rotation calculated", "angles", planeAngles)

	better := a.isPlaneBetter(&rec, len(psiClean), len(a0Clean), prevMean, havePrev)
	rec.Calculations.IsPlaneBetter = &better
	if !better {
		return rec
	}

	rec.OperationalAngles = planeAngles
	rec.OperationalMat = plane
	if *rec.Calculations.ConvergedDelta < a.params.CalibratedThreshold {
		rec.Status = types.StatusCalibrated
		a.logger.Infow("device reached calibrated status", "converged_delta", *rec.Calculations.ConvergedDelta)
	}
	return rec
}

func (a *Aggregator) setPose(rec *types.CalibrationRecord, angles types.EulerAngles) {
	rec.OperationalAngles = angles
	rec.OperationalMat = geometry.RotationFromAngles(angles)
}

func (a *Aggregator) isPlaneBetter(rec *types.CalibrationRecord, psiCount, a0Count int, prevMean float64, havePrev bool) bool {
	p := a.params
	switch {
	case psiCount < p.MinAxEvents:
		a.logger.Infow("not enough straight-driving events", "have", psiCount, "want", p.MinAxEvents)
		return false
	case a0Count < p.MinA0Events:
		a.logger.Infow("not enough rest events", "have", a0Count, "want", p.MinA0Events)
		return false
	case !havePrev:
		return false
	}

	delta := math.Abs(prevMean - *rec.Calculations.PsiZMean)
	rec.Calculations.ConvergedDelta = &delta

	if geometry.IsClose(delta, 0, psiMeanTolerance) {
		a.logger.Debug("converged delta is zero")
		return false
	}
	if delta > p.PlaneBetterThreshold {
		a.logger.Infow("converged delta above threshold", "delta", delta, "threshold", p.PlaneBetterThreshold)
		return false
	}
	a.logger.Infow("plane is better", "delta", delta)
	return true
}

// estimatedAngles prefers the most recent accepted plane pose, then the
// mean of positive decisions since the last angle change
func estimatedAngles(h types.History, trigger types.OnWindshieldRecord) *types.EulerAngles {
	for i := len(h.Calibration) - 1; i >= 0; i-- {
		c := h.Calibration[i]
		if c.Calculations.IsPlaneBetter != nil && *c.Calculations.IsPlaneBetter {
			return c.OperationalAngles.Ptr()
		}
	}

	records := append(h.OnWindshield[:len(h.OnWindshield):len(h.OnWindshield)], trigger)
	decided := types.DecidedAngles(types.SinceAngleChange(records))
	if len(decided) == 0 {
		return nil
	}
	return robust.MeanAngles(decided).Ptr()
}

// PsiZ is the heading of the straight-driving force Ax after leveling by
// a0. Braking pushes opposite to the direction of travel.
func PsiZ(a0, ax types.Vector3, accelerating bool) float64 {
	aligned := geometry.Rotate(geometry.GravityFrame(a0), ax)
	var deg float64
	if accelerating {
		deg = math.Atan2(-aligned[1], aligned[0]) * 180 / math.Pi
	} else {
		deg = math.Atan2(aligned[1], -aligned[0]) * 180 / math.Pi
	}
	return geometry.WrapPsi(deg)
}

// CleanA0 keeps vectors within half the per-axis threshold of the median
func CleanA0(vs []types.Vector3, threshold types.Vector3) []types.Vector3 {
	med := robust.MedianVector(vs)
	var out []types.Vector3
	for _, v := range vs {
		keep := true
		for axis := 0; axis < 3; axis++ {
			if !geometry.IsClose(v[axis], med[axis], threshold[axis]/2) {
				keep = false
				break
			}
		}
		if keep {
			out = append(out, v)
		}
	}
	return out
}

// CleanPsiZ keeps headings within threshold of the median
func CleanPsiZ(psi []float64, threshold float64) []float64 {
	med := robust.Median(psi)
	var out []float64
	for _, v := range psi {
		if geometry.IsClose(v, med, threshold) {
			out = append(out, v)
		}
	}
	return out
}

func fallback[T any](cleaned, raw []T) []T {
	if len(cleaned) > 0 {
		return cleaned
	}
	return raw
}

func priorA0s(h types.History) []types.Vector3 {
	var out []types.Vector3
	for _, c := range h.Calibration {
		if c.A0 != nil {
			out = append(out, *c.A0)
		}
	}
	return out
}

func priorPsiZ(h types.History) []float64 {
	var out []float64
	for _, c := range h.Calibration {
		if c.PsiZ != nil {
			out = append(out, *c.PsiZ)
		}
	}
	return out
}

func latestPsiZMean(h types.History) (float64, bool) {
	for i := len(h.Calibration) - 1; i >= 0; i-- {
		if m := h.Calibration[i].Calculations.PsiZMean; m != nil {
			return *m, true
		}
	}
	return 0, false
}
