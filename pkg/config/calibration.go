package config

import (
	"fmt"
)

// Solver strategies
const (
	SolverSGD        = "sgd"
	SolverNelderMead = "nelder-mead"
)

// CalibrationData is the threshold bundle consumed by the calibration engine
type CalibrationData struct {
	RestWindow     RestWindowData     `json:"rest_window" yaml:"rest_window"`
	StraightWindow StraightWindowData `json:"straight_window" yaml:"straight_window"`
	Orientation    OrientationData    `json:"orientation" yaml:"orientation"`
	Mounting       MountingData       `json:"mounting" yaml:"mounting"`
	Solver         SolverData         `json:"solver" yaml:"solver"`
	Aggregation    AggregationData    `json:"aggregation" yaml:"aggregation"`
	Offset         OffsetData         `json:"offset" yaml:"offset"`
	HistoryLimit   int                `json:"history_limit" yaml:"history_limit"`
}

// RestWindowData drives the search for the gravity-only (A0) window
type RestWindowData struct {
	WindowSize     int     `json:"window_size" yaml:"window_size"`
	NormTolerance  float64 `json:"norm_tolerance" yaml:"norm_tolerance"`
	NoiseTolerance float64 `json:"noise_tolerance" yaml:"noise_tolerance"`
	CrashEnergy    float64 `json:"crash_energy" yaml:"crash_energy"`
}

// StraightWindowData drives the search for the straight-line (Ax) window
type StraightWindowData struct {
	MinWindowSize      int     `json:"min_window_size" yaml:"min_window_size"`
	WarmupSamples      int     `json:"warmup_samples" yaml:"warmup_samples"`
	MinThreshold       float64 `json:"min_threshold" yaml:"min_threshold"`
	MaxThreshold       float64 `json:"max_threshold" yaml:"max_threshold"`
	GyroNoiseTolerance float64 `json:"gyro_noise_tolerance" yaml:"gyro_noise_tolerance"`
}

type OrientationData struct {
	Bias      float64 `json:"bias" yaml:"bias"`
	Tolerance float64 `json:"tolerance" yaml:"tolerance"`
}

// MountingData holds the on-windshield decision limits. Angles are degrees.
type MountingData struct {
	ZAxisLimit     float64 `json:"z_axis_limit" yaml:"z_axis_limit"`
	XAngleMin      float64 `json:"x_angle_min" yaml:"x_angle_min"`
	XAngleMax      float64 `json:"x_angle_max" yaml:"x_angle_max"`
	YAngleMin      float64 `json:"y_angle_min" yaml:"y_angle_min"`
	YAngleMax      float64 `json:"y_angle_max" yaml:"y_angle_max"`
	ZAngleMin      float64 `json:"z_angle_min" yaml:"z_angle_min"`
	ZAngleMax      float64 `json:"z_angle_max" yaml:"z_angle_max"`
	WindshieldXMin float64 `json:"windshield_x_min" yaml:"windshield_x_min"`
	WindshieldXMax float64 `json:"windshield_x_max" yaml:"windshield_x_max"`
	WindshieldYMin float64 `json:"windshield_y_min" yaml:"windshield_y_min"`
	WindshieldYMax float64 `json:"windshield_y_max" yaml:"windshield_y_max"`
	StabilityX     float64 `json:"stability_x" yaml:"stability_x"`
	StabilityY     float64 `json:"stability_y" yaml:"stability_y"`
	StabilityZ     float64 `json:"stability_z" yaml:"stability_z"`
	StabilityCount int     `json:"stability_count" yaml:"stability_count"`
	ReferencePitch float64 `json:"reference_pitch" yaml:"reference_pitch"`
}

type SolverData struct {
	Type       string  `json:"type" yaml:"type"`
	BaseLR     float64 `json:"base_lr" yaml:"base_lr"`
	MaxLR      float64 `json:"max_lr" yaml:"max_lr"`
	Momentum   float64 `json:"momentum" yaml:"momentum"`
	StepSizeUp int     `json:"step_size_up" yaml:"step_size_up"`
	Iterations int     `json:"iterations" yaml:"iterations"`
}

// AggregationData holds the outlier and convergence thresholds
type AggregationData struct {
	A0XThreshold         float64 `json:"a0x_threshold" yaml:"a0x_threshold"`
	A0YThreshold         float64 `json:"a0y_threshold" yaml:"a0y_threshold"`
	A0ZThreshold         float64 `json:"a0z_threshold" yaml:"a0z_threshold"`
	PsiZThreshold        float64 `json:"psi_z_threshold" yaml:"psi_z_threshold"`
	MinAxEvents          int     `json:"min_ax_events" yaml:"min_ax_events"`
	MinA0Events          int     `json:"min_a0_events" yaml:"min_a0_events"`
	PlaneBetterThreshold float64 `json:"plane_better_threshold" yaml:"plane_better_threshold"`
	CalibratedThreshold  float64 `json:"calibrated_threshold" yaml:"calibrated_threshold"`
}

type OffsetData struct {
	MaxValue float64 `json:"max_value" yaml:"max_value"`
	Step     float64 `json:"step" yaml:"step"`
}

// DefaultCalibration returns the production thresholds
func DefaultCalibration() CalibrationData {
	return CalibrationData{
		RestWindow: RestWindowData{
			WindowSize:     50,
			NormTolerance:  0.05,
			NoiseTolerance: 0.03,
			CrashEnergy:    2.5,
		},
		StraightWindow: StraightWindowData{
			MinWindowSize:      25,
			WarmupSamples:      100,
			MinThreshold:       0.1,
			MaxThreshold:       0.5,
			GyroNoiseTolerance: 5,
		},
		Orientation: OrientationData{
			Bias:      0.45,
			Tolerance: 0.2,
		},
		Mounting: MountingData{
			ZAxisLimit:     0.7,
			XAngleMin:      -30,
			XAngleMax:      30,
			YAngleMin:      0,
			YAngleMax:      60,
			ZAngleMin:      0,
			ZAngleMax:      360,
			WindshieldXMin: -10,
			WindshieldXMax: 10,
			WindshieldYMin: 15,
			WindshieldYMax: 45,
			StabilityX:     3,
			StabilityY:     3,
			StabilityZ:     10,
			StabilityCount: 3,
			ReferencePitch: 27,
		},
		Solver: SolverData{
			Type:       SolverNelderMead,
			BaseLR:     0.001,
			MaxLR:      0.05,
			Momentum:   0.9,
			StepSizeUp: 250,
			Iterations: 1500,
		},
		Aggregation: AggregationData{
			A0XThreshold:         0.05,
			A0YThreshold:         0.05,
			A0ZThreshold:         0.05,
			PsiZThreshold:        10,
			MinAxEvents:          5,
			MinA0Events:          5,
			PlaneBetterThreshold: 5,
			CalibratedThreshold:  1,
		},
		Offset: OffsetData{
			MaxValue: 0.1,
			Step:     1.0 / 256,
		},
		HistoryLimit: 200,
	}
}

// ConfigurationError reports a missing or invalid threshold. It is fatal:
// the engine refuses to run with a bundle that fails validation.
type ConfigurationError struct {
	Key    string
	Reason string
}

func (e *ConfigurationError) Error() string {
	return fmt.Sprintf("invalid configuration %s: %s", e.Key, e.Reason)
}

func invalid(k Key, format string, args ...interface{}) error {
	return &ConfigurationError{Key: k.String(), Reason: fmt.Sprintf(format, args...)}
}

// Validate checks every threshold and returns the first violation as a
// *ConfigurationError
func (c *CalibrationData) Validate() error {
	for _, k := range positiveKeys {
		if v, _ := k.Float(c); v <= 0 {
			return invalid(k, "must be positive, got %v", v)
		}
	}

	ranges := []struct{ lo, hi Key }{
		{KeyXAngleMin, KeyXAngleMax},
		{KeyYAngleMin, KeyYAngleMax},
		{KeyZAngleMin, KeyZAngleMax},
		{KeyWindshieldXMin, KeyWindshieldXMax},
		{KeyWindshieldYMin, KeyWindshieldYMax},
		{KeyStraightMinThreshold, KeyStraightMaxThreshold},
		{KeySolverBaseLR, KeySolverMaxLR},
	}
	for _, r := range ranges {
		lo, _ := r.lo.Float(c)
		hi, _ := r.hi.Float(c)
		if lo >= hi {
			return invalid(r.hi, "must be greater than %s (%v >= %v)", r.lo, lo, hi)
		}
	}

	if c.Solver.Momentum < 0 || c.Solver.Momentum >= 1 {
		return invalid(KeySolverMomentum, "must be in [0, 1), got %v", c.Solver.Momentum)
	}

	switch c.Solver.Type {
	case SolverSGD, SolverNelderMead:
	default:
		return invalid(KeySolverType, "unknown solver %q", c.Solver.Type)
	}

	return nil
}

// positiveKeys must hold strictly positive values
var positiveKeys = []Key{
	KeyRestWindowSize,
	KeyRestNormTolerance,
	KeyRestNoiseTolerance,
	KeyRestCrashEnergy,
	KeyStraightMinWindowSize,
	KeyStraightGyroNoiseTolerance,
	KeyOrientationTolerance,
	KeyStabilityX,
	KeyStabilityY,
	KeyStabilityZ,
	KeyStabilityCount,
	KeySolverStepSizeUp,
	KeySolverIterations,
	KeyA0XThreshold,
	KeyA0YThreshold,
	KeyA0ZThreshold,
	KeyPsiZThreshold,
	KeyMinAxEvents,
	KeyMinA0Events,
	KeyPlaneBetterThreshold,
	KeyCalibratedThreshold,
	KeyOffsetMaxValue,
	KeyOffsetStep,
	KeyHistoryLimit,
}
