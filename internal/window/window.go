// Package window locates the sub-windows of an event's sample series that
// carry calibration information: a rest window, where only gravity acts on
// the sensor, and a straight-driving window, where the horizontal
// acceleration points along the vehicle's longitudinal axis.
package window

import (
	"math"

	"github.com/chrissnell/autocal/internal/geometry"
	"github.com/chrissnell/autocal/internal/types"
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"
)

// RestParams controls the rest window search
type RestParams struct {
	WindowSize     int     // samples per candidate window
	NormTolerance  float64 // allowed | |a| - 1 g |
	NoiseTolerance float64 // initial per-axis max-min bound, g
	CrashEnergy    float64 // |a| above which the series is considered a crash, g
}

// StraightParams controls the straight-driving window search
type StraightParams struct {
	MinWindowSize      int
	WarmupSamples      int
	MinThreshold       float64 // exclusive lower bound on horizontal |a|, g
	MaxThreshold       float64 // exclusive upper bound on horizontal |a|, g
	GyroNoiseTolerance float64 // deg/s, every axis
}

// DefaultRestParams returns production rest window parameters
func DefaultRestParams() RestParams {
	return RestParams{
		WindowSize:     50,
		NormTolerance:  0.05,
		NoiseTolerance: 0.03,
		CrashEnergy:    2.5,
	}
}

// DefaultStraightParams returns production straight window parameters
func DefaultStraightParams() StraightParams {
	return StraightParams{
		MinWindowSize:      25,
		WarmupSamples:      100,
		MinThreshold:       0.1,
		MaxThreshold:       0.5,
		GyroNoiseTolerance: 5,
	}
}

// Rest is a window where the sensor was at rest. Mean is the rest vector A0.
type Rest struct {
	Mean   types.Vector3
	Start  int
	End    int // exclusive
	Spread float64
}

// Straight is a straight-driving window. Mean is Ax in the sensor frame.
type Straight struct {
	Mean  types.Vector3
	Start int
	End   int // exclusive
}

// Len returns the number of samples in the window
func (s Straight) Len() int {
	return s.End - s.Start
}

// CrashIndex returns the index of the first sample whose acceleration norm
// exceeds crashEnergy, or len(w) if there is none
func CrashIndex(w types.SampleWindow, crashEnergy float64) int {
	for i, s := range w {
		if s.Acc.Norm() > crashEnergy {
			return i
		}
	}
	return len(w)
}

// FindRest scans the samples before the crash for fixed-size windows where
// the sensor only measured gravity. Each accepted window tightens the noise
// bound to its own spread, so the quietest window wins. An equally quiet
// later window replaces an earlier one.
func FindRest(w types.SampleWindow, p RestParams) (Rest, bool) {
	if p.WindowSize <= 0 {
		return Rest{}, false
	}

	end := CrashIndex(w, p.CrashEnergy)
	norms := make([]float64, end)
	for i := 0; i < end; i++ {
		norms[i] = w[i].Acc.Norm()
	}

	var (
		best  Rest
		found bool
		bound = p.NoiseTolerance
	)

	for start := 0; start+p.WindowSize <= end; start++ {
		stop := start + p.WindowSize
		if !normsNearOne(norms[start:stop], p.NormTolerance) {
			continue
		}

		spread := axisSpread(w[start:stop])
		if floats.Max(spread[:]) > bound {
			continue
		}

		bound = floats.Max(spread[:])
		best = Rest{
			Mean:   meanAcc(w[start:stop]),
			Start:  start,
			End:    stop,
			Spread: bound,
		}
		found = true
	}

	return best, found
}

// FindStraight looks for the longest straight-driving stretch once the
// warm-up samples have passed. Accelerations are rotated into the vehicle
// frame by rot before the horizontal norm is taken. A qualifying start is
// extended forward until the first violating sample; the longest extension
// wins and ties keep the earliest start.
func FindStraight(w types.SampleWindow, rot types.RotationMatrix, p StraightParams) (Straight, bool) {
	if p.MinWindowSize <= 0 || p.WarmupSamples >= len(w) {
		return Straight{}, false
	}

	offset := max(p.WarmupSamples, 0)
	tail := w[offset:]
	aligned := geometry.RotateWindow(rot, tail)

	horizontal := make([]float64, len(tail))
	for i, a := range aligned {
		horizontal[i] = math.Hypot(a[0], a[1])
	}

	ok := func(i int) bool {
		h := horizontal[i]
		return h > p.MinThreshold && h < p.MaxThreshold && gyroQuiet(tail[i].Gyro, p.GyroNoiseTolerance)
	}

	var (
		best  Straight
		found bool
	)

	for start := 0; start+p.MinWindowSize <= len(tail); start++ {
		qualifies := true
		for i := start; i < start+p.MinWindowSize; i++ {
			if !ok(i) {
				qualifies = false
				break
			}
		}
		if !qualifies {
			continue
		}

		stop := start + p.MinWindowSize
		for stop < len(tail) && ok(stop) {
			stop++
		}

		if found && stop-start <= best.Len() {
			continue
		}
		best = Straight{
			Mean:  meanAcc(tail[start:stop]),
			Start: start + offset,
			End:   stop + offset,
		}
		found = true
	}

	return best, found
}

// IsAccelerating compares the mean z reading inside the straight window with
// the mean outside of it. A lower mean inside means the vehicle was braking.
func IsAccelerating(w types.SampleWindow, s Straight) bool {
	var inside, outside []float64
	for i, sample := range w {
		if i >= s.Start && i < s.End {
			inside = append(inside, sample.Acc[2])
		} else {
			outside = append(outside, sample.Acc[2])
		}
	}
	if len(inside) == 0 || len(outside) == 0 {
		return true
	}
	return stat.Mean(inside, nil) >= stat.Mean(outside, nil)
}

func normsNearOne(norms []float64, tol float64) bool {
	for _, n := range norms {
		if math.Abs(n-1) > tol {
			return false
		}
	}
	return true
}

func gyroQuiet(g types.Vector3, tol float64) bool {
	return math.Abs(g[0]) <= tol && math.Abs(g[1]) <= tol && math.Abs(g[2]) <= tol
}

// axisSpread returns max-min per acceleration axis
func axisSpread(w types.SampleWindow) types.Vector3 {
	var spread types.Vector3
	for axis := 0; axis < 3; axis++ {
		col := column(w, axis)
		spread[axis] = floats.Max(col) - floats.Min(col)
	}
	return spread
}

func meanAcc(w types.SampleWindow) types.Vector3 {
	var mean types.Vector3
	for axis := 0; axis < 3; axis++ {
		mean[axis] = stat.Mean(column(w, axis), nil)
	}
	return mean
}

func column(w types.SampleWindow, axis int) []float64 {
	col := make([]float64, len(w))
	for i, s := range w {
		col[i] = s.Acc[axis]
	}
	return col
}
