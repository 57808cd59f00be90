// Package mounting decides, for each event, whether the device is mounted
// on the windshield and at which angles.
package mounting

import (
	"math"

	"github.com/chrissnell/autocal/internal/geometry"
	"github.com/chrissnell/autocal/internal/robust"
	"github.com/chrissnell/autocal/internal/solver"
	"github.com/chrissnell/autocal/internal/types"
	"go.uber.org/zap"
)

// Range is an open interval
type Range struct {
	Min float64
	Max float64
}

// Contains reports Min < v < Max
func (r Range) Contains(v float64) bool {
	return v > r.Min && v < r.Max
}

// Params holds the acceptance bands of the classifier, in degrees except
// for ZAxisLimit which is in g
type Params struct {
	Orientation solver.OrientationParams

	ZAxisLimit float64

	XAngle Range
	YAngle Range
	ZAngle Range

	WindshieldX Range
	WindshieldY Range

	StabilityX     float64
	StabilityY     float64
	StabilityZ     float64
	StabilityCount int

	// ReferencePitch seeds the solver when no calibration exists yet
	ReferencePitch float64
}

// DefaultParams returns production classifier settings
func DefaultParams() Params {
	return Params{
		Orientation:    solver.DefaultOrientationParams(),
		ZAxisLimit:     0.7,
		XAngle:         Range{-30, 30},
		YAngle:         Range{0, 60},
		ZAngle:         Range{0, 360},
		WindshieldX:    Range{-10, 10},
		WindshieldY:    Range{15, 45},
		StabilityX:     3,
		StabilityY:     3,
		StabilityZ:     10,
		StabilityCount: 3,
		ReferencePitch: 27,
	}
}

// Input is everything the classifier needs for one event
type Input struct {
	A0                *types.Vector3
	Button            []bool
	ManualOrientation types.Orientation
	History           types.History
}

// Classifier produces one OnWindshieldRecord per event
type Classifier struct {
	params Params
	solver solver.Solver
	logger *zap.SugaredLogger
}

// NewClassifier creates a classifier using s for the angle search
func NewClassifier(p Params, s solver.Solver, logger *zap.SugaredLogger) *Classifier {
	if logger == nil {
		logger = zap.NewNop().Sugar()
	}
	return &Classifier{params: p, solver: s, logger: logger}
}

// Classify runs the decision flow for one event. History is read, never
// modified.
func (c *Classifier) Classify(in Input) types.OnWindshieldRecord {
	p := c.params
	latestCal, haveCal := in.History.LatestCalibration()
	latestWS, haveWS := in.History.LatestOnWindshield()

	b := newRecordBuilder()
	b.rec.ButtonPressed = InterpretButton(in.Button)
	b.rec.ReferencePitch = p.ReferencePitch
	if haveCal {
		b.rec.ReferencePitch = latestCal.OperationalAngles.Pitch
	}
	b.rec.ManualOrientation = in.ManualOrientation
	if !b.rec.ManualOrientation.Valid() && haveWS {
		b.rec.ManualOrientation = latestWS.ManualOrientation
	}

	if in.A0 == nil {
		return c.emit(b.decide(types.DecisionUnknown, types.ReasonNoA0, "A0 was not found"))
	}
	a0 := *in.A0
	b.rec.A0 = a0.Ptr()

	if a0[2] <= p.ZAxisLimit {
		b.fullReset()
		return c.emit(b.decide(types.DecisionNotOnWindshield, types.ReasonInvalidAngles, "Z axis is not in normal range"))
	}

	orientation := b.rec.ManualOrientation
	if !orientation.Valid() {
		orientation = solver.ClassifyOrientation(a0, p.Orientation)
	}
	b.rec.Orientation = orientation

	init := solver.InitialCondition(orientation, b.rec.ReferencePitch)
	if haveCal && latestCal.Status == types.StatusCalibrated && haveWS && latestWS.Orientation == orientation {
		init = latestCal.OperationalAngles
	}
	b.rec.InitialCondition = init.Ptr()

	res := c.solver.Solve(a0, init)
	if !res.Improved {
		c.logger.Warnw("angle search did not improve on the initial condition",
			"initial_condition", init, "loss", res.Loss)
	}
	angles := res.Angles
	angles.Yaw = geometry.FoldYaw(angles.Yaw)
	b.rec.Angles = angles.Ptr()

	xOK, yOK := p.XAngle.Contains(angles.Roll), p.YAngle.Contains(angles.Pitch)
	if !xOK || !yOK {
		desc := "X and Y angles are not in valid range"
		switch {
		case xOK:
			desc = "Y angle is not in valid range"
		case yOK:
			desc = "X angle is not in valid range"
		}
		b.fullReset()
		return c.emit(b.decide(types.DecisionNotOnWindshield, types.ReasonInvalidAngles, desc))
	}

	baseline := estimatedAngles(in.History, latestCal, haveCal)
	b.rec.EstimatedAngles = baseline

	if c.isNormal(angles) && b.rec.ButtonPressed.Pressed {
		pitchChanged, yawChanged := c.pitchChanged(angles, baseline), c.yawChanged(angles, baseline)
		if pitchChanged || yawChanged {
			desc := "Windshield angle and orientation changed"
			switch {
			case !yawChanged:
				desc = "Windshield angle changed"
			case !pitchChanged:
				desc = "Orientation changed"
			}
			b.fullReset()
			return c.emit(b.decide(types.DecisionOnWindshield, types.ReasonAngleChanged, desc))
		}
		return c.emit(b.decide(types.DecisionOnWindshield, types.ReasonNormalAngles, "Angles are in normal range and button is pressed"))
	}

	if c.isStable(angles, baseline, b.rec.ButtonPressed.Pressed, in.History) {
		if c.yawChanged(angles, baseline) {
			b.fullReset()
			return c.emit(b.decide(types.DecisionOnWindshield, types.ReasonAngleChanged, "Orientation changed"))
		}
		return c.emit(b.decide(types.DecisionOnWindshield, types.ReasonStable, "Angles are stable"))
	}

	b.fullReset()
	return c.emit(b.decide(types.DecisionNotOnWindshield, types.ReasonUnstable, "Device is not stable"))
}

func (c *Classifier) emit(rec types.OnWindshieldRecord) types.OnWindshieldRecord {
	c.logger.Infow("on-windshield decision",
		"decision", string(rec.Decision),
		"reason_code", string(rec.Reason),
		"reason", rec.ReasonDescription,
		"orientation", string(rec.Orientation),
		"reset", rec.ResetOffset,
	)
	return rec
}

// isNormal checks yaw, roll and pitch against the windshield bands
func (c *Classifier) isNormal(a types.EulerAngles) bool {
	p := c.params
	return p.ZAngle.Contains(a.Yaw) && p.WindshieldX.Contains(a.Roll) && p.WindshieldY.Contains(a.Pitch)
}

func (c *Classifier) pitchChanged(a types.EulerAngles, baseline *types.EulerAngles) bool {
	if baseline == nil {
		return false
	}
	return !geometry.IsClose(a.Pitch, baseline.Pitch, c.params.StabilityY)
}

func (c *Classifier) yawChanged(a types.EulerAngles, baseline *types.EulerAngles) bool {
	if baseline == nil {
		return false
	}
	return yawDistance(a.Yaw, baseline.Yaw, 360) > c.params.StabilityZ
}

func (c *Classifier) isStable(a types.EulerAngles, baseline *types.EulerAngles, pressed bool, h types.History) bool {
	p := c.params
	if baseline != nil {
		return geometry.IsClose(a.Roll, baseline.Roll, p.StabilityX) &&
			geometry.IsClose(a.Pitch, baseline.Pitch, p.StabilityY) &&
			yawDistance(quarterTurn(a.Yaw), quarterTurn(baseline.Yaw), 90) <= p.StabilityZ
	}

	if !p.WindshieldX.Contains(a.Roll) || !p.WindshieldY.Contains(a.Pitch) || !pressed {
		return false
	}
	return c.recentAnglesStable(a, h)
}

// recentAnglesStable requires the last StabilityCount angled records plus
// the current angles to fit within the per-axis stability bands
func (c *Classifier) recentAnglesStable(a types.EulerAngles, h types.History) bool {
	p := c.params
	if p.StabilityCount <= 0 {
		return false
	}

	var angled []types.EulerAngles
	for _, r := range h.OnWindshield {
		if r.Angles != nil {
			angled = append(angled, *r.Angles)
		}
	}
	if len(angled) < p.StabilityCount {
		return false
	}

	window := append(angled[len(angled)-p.StabilityCount:len(angled):len(angled)], a)
	spread := robust.AngleSpread(window)
	return spread.Roll <= p.StabilityX && spread.Pitch <= p.StabilityY && spread.Yaw <= p.StabilityZ
}

// estimatedAngles is the baseline the current angles are compared against
func estimatedAngles(h types.History, latestCal types.CalibrationRecord, haveCal bool) *types.EulerAngles {
	if haveCal && latestCal.Status == types.StatusCalibrated {
		return latestCal.OperationalAngles.Ptr()
	}
	decided := types.DecidedAngles(types.SinceAngleChange(h.OnWindshield))
	if len(decided) == 0 {
		return nil
	}
	return robust.MedianAngles(decided).Ptr()
}

// yawDistance is the shorter way around a circle of the given period
// between two yaws
func yawDistance(a, b, period float64) float64 {
	d := math.Mod(math.Abs(a-b), period)
	return math.Min(d, period-d)
}

// quarterTurn maps yaw onto [0, 90) after a −45° shift so that poses a
// multiple of 90° apart compare equal
func quarterTurn(yaw float64) float64 {
	m := math.Mod(yaw-45, 90)
	if m < 0 {
		m += 90
	}
	return m
}
