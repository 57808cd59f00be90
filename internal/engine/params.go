package engine

import (
	"github.com/chrissnell/autocal/internal/calibration"
	"github.com/chrissnell/autocal/internal/mounting"
	"github.com/chrissnell/autocal/internal/offset"
	"github.com/chrissnell/autocal/internal/solver"
	"github.com/chrissnell/autocal/internal/types"
	"github.com/chrissnell/autocal/internal/window"
	"github.com/chrissnell/autocal/pkg/config"
)

func restParams(c config.CalibrationData) window.RestParams {
	return window.RestParams{
		WindowSize:     c.RestWindow.WindowSize,
		NormTolerance:  c.RestWindow.NormTolerance,
		NoiseTolerance: c.RestWindow.NoiseTolerance,
		CrashEnergy:    c.RestWindow.CrashEnergy,
	}
}

func straightParams(c config.CalibrationData) window.StraightParams {
	return window.StraightParams{
		MinWindowSize:      c.StraightWindow.MinWindowSize,
		WarmupSamples:      c.StraightWindow.WarmupSamples,
		MinThreshold:       c.StraightWindow.MinThreshold,
		MaxThreshold:       c.StraightWindow.MaxThreshold,
		GyroNoiseTolerance: c.StraightWindow.GyroNoiseTolerance,
	}
}

func solverParams(c config.CalibrationData) solver.Params {
	return solver.Params{
		Type:       solver.SolverType(c.Solver.Type),
		BaseLR:     c.Solver.BaseLR,
		MaxLR:      c.Solver.MaxLR,
		Momentum:   c.Solver.Momentum,
		StepSizeUp: c.Solver.StepSizeUp,
		Iterations: c.Solver.Iterations,
	}
}

func mountingParams(c config.CalibrationData) mounting.Params {
	m := c.Mounting
	return mounting.Params{
		Orientation: solver.OrientationParams{
			Bias:      c.Orientation.Bias,
			Tolerance: c.Orientation.Tolerance,
		},
		ZAxisLimit:     m.ZAxisLimit,
		XAngle:         mounting.Range{Min: m.XAngleMin, Max: m.XAngleMax},
		YAngle:         mounting.Range{Min: m.YAngleMin, Max: m.YAngleMax},
		ZAngle:         mounting.Range{Min: m.ZAngleMin, Max: m.ZAngleMax},
		WindshieldX:    mounting.Range{Min: m.WindshieldXMin, Max: m.WindshieldXMax},
		WindshieldY:    mounting.Range{Min: m.WindshieldYMin, Max: m.WindshieldYMax},
		StabilityX:     m.StabilityX,
		StabilityY:     m.StabilityY,
		StabilityZ:     m.StabilityZ,
		StabilityCount: m.StabilityCount,
		ReferencePitch: m.ReferencePitch,
	}
}

func aggregatorParams(c config.CalibrationData) calibration.Params {
	a := c.Aggregation
	return calibration.Params{
		Straight:             straightParams(c),
		A0Threshold:          types.Vector3{a.A0XThreshold, a.A0YThreshold, a.A0ZThreshold},
		PsiZThreshold:        a.PsiZThreshold,
		MinAxEvents:          a.MinAxEvents,
		MinA0Events:          a.MinA0Events,
		PlaneBetterThreshold: a.PlaneBetterThreshold,
		CalibratedThreshold:  a.CalibratedThreshold,
		ReferencePitch:       c.Mounting.ReferencePitch,
	}
}

func offsetParams(c config.CalibrationData) offset.Params {
	return offset.Params{MaxValue: c.Offset.MaxValue, Step: c.Offset.Step}
}
