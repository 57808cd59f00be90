package config

import (
	"fmt"
	"strconv"
)

// Key identifies one calibration threshold. The table below maps each key to
// its persisted name and to the field it reads and writes, so providers never
// dispatch on free-form strings.
type Key int

const (
	KeyRestWindowSize Key = iota
	KeyRestNormTolerance
	KeyRestNoiseTolerance
	KeyRestCrashEnergy
	KeyStraightMinWindowSize
	KeyStraightWarmupSamples
	KeyStraightMinThreshold
	KeyStraightMaxThreshold
	KeyStraightGyroNoiseTolerance
	KeyOrientationBias
	KeyOrientationTolerance
	KeyZAxisLimit
	KeyXAngleMin
	KeyXAngleMax
	KeyYAngleMin
	KeyYAngleMax
	KeyZAngleMin
	KeyZAngleMax
	KeyWindshieldXMin
	KeyWindshieldXMax
	KeyWindshieldYMin
	KeyWindshieldYMax
	KeyStabilityX
	KeyStabilityY
	KeyStabilityZ
	KeyStabilityCount
	KeyReferencePitch
	KeySolverType
	KeySolverBaseLR
	KeySolverMaxLR
	KeySolverMomentum
	KeySolverStepSizeUp
	KeySolverIterations
	KeyA0XThreshold
	KeyA0YThreshold
	KeyA0ZThreshold
	KeyPsiZThreshold
	KeyMinAxEvents
	KeyMinA0Events
	KeyPlaneBetterThreshold
	KeyCalibratedThreshold
	KeyOffsetMaxValue
	KeyOffsetStep
	KeyHistoryLimit

	keyCount
)

type keyInfo struct {
	name    string
	float   func(*CalibrationData) *float64
	integer func(*CalibrationData) *int
	text    func(*CalibrationData) *string
}

func floatKey(name string, fn func(*CalibrationData) *float64) keyInfo {
	return keyInfo{name: name, float: fn}
}

func intKey(name string, fn func(*CalibrationData) *int) keyInfo {
	return keyInfo{name: name, integer: fn}
}

var keyTable = [keyCount]keyInfo{
	KeyRestWindowSize:             intKey("rest_window.window_size", func(c *CalibrationData) *int { return &c.RestWindow.WindowSize }),
	KeyRestNormTolerance:          floatKey("rest_window.norm_tolerance", func(c *CalibrationData) *float64 { return &c.RestWindow.NormTolerance }),
	KeyRestNoiseTolerance:         floatKey("rest_window.noise_tolerance", func(c *CalibrationData) *float64 { return &c.RestWindow.NoiseTolerance }),
	KeyRestCrashEnergy:            floatKey("rest_window.crash_energy", func(c *CalibrationData) *float64 { return &c.RestWindow.CrashEnergy }),
	KeyStraightMinWindowSize:      intKey("straight_window.min_window_size", func(c *CalibrationData) *int { return &c.StraightWindow.MinWindowSize }),
	KeyStraightWarmupSamples:      intKey("straight_window.warmup_samples", func(c *CalibrationData) *int { return &c.StraightWindow.WarmupSamples }),
	KeyStraightMinThreshold:       floatKey("straight_window.min_threshold", func(c *CalibrationData) *float64 { return &c.StraightWindow.MinThreshold }),
	KeyStraightMaxThreshold:       floatKey("straight_window.max_threshold", func(c *CalibrationData) *float64 { return &c.StraightWindow.MaxThreshold }),
	KeyStraightGyroNoiseTolerance: floatKey("straight_window.gyro_noise_tolerance", func(c *CalibrationData) *float64 { return &c.StraightWindow.GyroNoiseTolerance }),
	KeyOrientationBias:            floatKey("orientation.bias", func(c *CalibrationData) *float64 { return &c.Orientation.Bias }),
	KeyOrientationTolerance:       floatKey("orientation.tolerance", func(c *CalibrationData) *float64 { return &c.Orientation.Tolerance }),
	KeyZAxisLimit:                 floatKey("mounting.z_axis_limit", func(c *CalibrationData) *float64 { return &c.Mounting.ZAxisLimit }),
	KeyXAngleMin:                  floatKey("mounting.x_angle_min", func(c *CalibrationData) *float64 { return &c.Mounting.XAngleMin }),
	KeyXAngleMax:                  floatKey("mounting.x_angle_max", func(c *CalibrationData) *float64 { return &c.Mounting.XAngleMax }),
	KeyYAngleMin:                  floatKey("mounting.y_angle_min", func(c *CalibrationData) *float64 { return &c.Mounting.YAngleMin }),
	KeyYAngleMax:                  floatKey("mounting.y_angle_max", func(c *CalibrationData) *float64 { return &c.Mounting.YAngleMax }),
	KeyZAngleMin:                  floatKey("mounting.z_angle_min", func(c *CalibrationData) *float64 { return &c.Mounting.ZAngleMin }),
	KeyZAngleMax:                  floatKey("mounting.z_angle_max", func(c *CalibrationData) *float64 { return &c.Mounting.ZAngleMax }),
	KeyWindshieldXMin:             floatKey("mounting.windshield_x_min", func(c *CalibrationData) *float64 { return &c.Mounting.WindshieldXMin }),
	KeyWindshieldXMax:             floatKey("mounting.windshield_x_max", func(c *CalibrationData) *float64 { return &c.Mounting.WindshieldXMax }),
	KeyWindshieldYMin:             floatKey("mounting.windshield_y_min", func(c *CalibrationData) *float64 { return &c.Mounting.WindshieldYMin }),
	KeyWindshieldYMax:             floatKey("mounting.windshield_y_max", func(c *CalibrationData) *float64 { return &c.Mounting.WindshieldYMax }),
	KeyStabilityX:                 floatKey("mounting.stability_x", func(c *CalibrationData) *float64 { return &c.Mounting.StabilityX }),
	KeyStabilityY:                 floatKey("mounting.stability_y", func(c *CalibrationData) *float64 { return &c.Mounting.StabilityY }),
	KeyStabilityZ:                 floatKey("mounting.stability_z", func(c *CalibrationData) *float64 { return &c.Mounting.StabilityZ }),
	KeyStabilityCount:             intKey("mounting.stability_count", func(c *CalibrationData) *int { return &c.Mounting.StabilityCount }),
	KeyReferencePitch:             floatKey("mounting.reference_pitch", func(c *CalibrationData) *float64 { return &c.Mounting.ReferencePitch }),
	KeySolverType:                 {name: "solver.type", text: func(c *CalibrationData) *string { return &c.Solver.Type }},
	KeySolverBaseLR:               floatKey("solver.base_lr", func(c *CalibrationData) *float64 { return &c.Solver.BaseLR }),
	KeySolverMaxLR:                floatKey("solver.max_lr", func(c *CalibrationData) *float64 { return &c.Solver.MaxLR }),
	KeySolverMomentum:             floatKey("solver.momentum", func(c *CalibrationData) *float64 { return &c.Solver.Momentum }),
	KeySolverStepSizeUp:           intKey("solver.step_size_up", func(c *CalibrationData) *int { return &c.Solver.StepSizeUp }),
	KeySolverIterations:           intKey("solver.iterations", func(c *CalibrationData) *int { return &c.Solver.Iterations }),
	KeyA0XThreshold:               floatKey("aggregation.a0x_threshold", func(c *CalibrationData) *float64 { return &c.Aggregation.A0XThreshold }),
	KeyA0YThreshold:               floatKey("aggregation.a0y_threshold", func(c *CalibrationData) *float64 { return &c.Aggregation.A0YThreshold }),
	KeyA0ZThreshold:               floatKey("aggregation.a0z_threshold", func(c *CalibrationData) *float64 { return &c.Aggregation.A0ZThreshold }),
	KeyPsiZThreshold:              floatKey("aggregation.psi_z_threshold", func(c *CalibrationData) *float64 { return &c.Aggregation.PsiZThreshold }),
	KeyMinAxEvents:                intKey("aggregation.min_ax_events", func(c *CalibrationData) *int { return &c.Aggregation.MinAxEvents }),
	KeyMinA0Events:                intKey("aggregation.min_a0_events", func(c *CalibrationData) *int { return &c.Aggregation.MinA0Events }),
	KeyPlaneBetterThreshold:       floatKey("aggregation.plane_better_threshold", func(c *CalibrationData) *float64 { return &c.Aggregation.PlaneBetterThreshold }),
	KeyCalibratedThreshold:        floatKey("aggregation.calibrated_threshold", func(c *CalibrationData) *float64 { return &c.Aggregation.CalibratedThreshold }),
	KeyOffsetMaxValue:             floatKey("offset.max_value", func(c *CalibrationData) *float64 { return &c.Offset.MaxValue }),
	KeyOffsetStep:                 floatKey("offset.step", func(c *CalibrationData) *float64 { return &c.Offset.Step }),
	KeyHistoryLimit:               intKey("history_limit", func(c *CalibrationData) *int { return &c.HistoryLimit }),
}

var keysByName = func() map[string]Key {
	m := make(map[string]Key, keyCount)
	for k := Key(0); k < keyCount; k++ {
		m[keyTable[k].name] = k
	}
	return m
}()

// Keys returns every calibration key in table order
func Keys() []Key {
	keys := make([]Key, 0, keyCount)
	for k := Key(0); k < keyCount; k++ {
		keys = append(keys, k)
	}
	return keys
}

// KeyByName looks up a key by its persisted name
func KeyByName(name string) (Key, bool) {
	k, ok := keysByName[name]
	return k, ok
}

func (k Key) valid() bool {
	return k >= 0 && k < keyCount
}

func (k Key) String() string {
	if !k.valid() {
		return fmt.Sprintf("Key(%d)", int(k))
	}
	return keyTable[k].name
}

// Float returns the numeric value of k in c. Text keys report false.
func (k Key) Float(c *CalibrationData) (float64, bool) {
	if !k.valid() {
		return 0, false
	}
	info := keyTable[k]
	switch {
	case info.float != nil:
		return *info.float(c), true
	case info.integer != nil:
		return float64(*info.integer(c)), true
	}
	return 0, false
}

// Get formats the value of k in c for storage
func (k Key) Get(c *CalibrationData) string {
	if !k.valid() {
		return ""
	}
	info := keyTable[k]
	switch {
	case info.float != nil:
		return strconv.FormatFloat(*info.float(c), 'g', -1, 64)
	case info.integer != nil:
		return strconv.Itoa(*info.integer(c))
	default:
		return *info.text(c)
	}
}

// Set parses value and writes it to the field of k in c
func (k Key) Set(c *CalibrationData, value string) error {
	if !k.valid() {
		return &ConfigurationError{Key: k.String(), Reason: "unknown key"}
	}
	info := keyTable[k]
	switch {
	case info.float != nil:
		v, err := strconv.ParseFloat(value, 64)
		if err != nil {
			return &ConfigurationError{Key: info.name, Reason: fmt.Sprintf("not a number: %q", value)}
		}
		*info.float(c) = v
	case info.integer != nil:
		v, err := strconv.Atoi(value)
		if err != nil {
			return &ConfigurationError{Key: info.name, Reason: fmt.Sprintf("not an integer: %q", value)}
		}
		*info.integer(c) = v
	default:
		*info.text(c) = value
	}
	return nil
}
