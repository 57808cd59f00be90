// Package robust holds the small order statistics shared by the mounting
// classifier and the calibration aggregator.
package robust

import (
	"math"
	"sort"

	"github.com/chrissnell/autocal/internal/geometry"
	"github.com/chrissnell/autocal/internal/types"
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"
)

// Median returns the middle value of xs, averaging the two middle values
// when len(xs) is even. It returns NaN for an empty slice.
func Median(xs []float64) float64 {
	if len(xs) == 0 {
		return math.NaN()
	}
	sorted := append([]float64(nil), xs...)
	sort.Float64s(sorted)

	mid := len(sorted) / 2
	if len(sorted)%2 == 1 {
		return sorted[mid]
	}
	return (sorted[mid-1] + sorted[mid]) / 2
}

// Mean is the arithmetic mean of xs
func Mean(xs []float64) float64 {
	return stat.Mean(xs, nil)
}

// MedianVector is the per-axis median
func MedianVector(vs []types.Vector3) types.Vector3 {
	var out types.Vector3
	for axis := 0; axis < 3; axis++ {
		out[axis] = Median(vectorAxis(vs, axis))
	}
	return out
}

// MeanVector is the per-axis mean
func MeanVector(vs []types.Vector3) types.Vector3 {
	var out types.Vector3
	for axis := 0; axis < 3; axis++ {
		out[axis] = Mean(vectorAxis(vs, axis))
	}
	return out
}

// MedianAngles is the per-axis median of a set of angle triples. Yaw is
// taken on the circle around the first element and folded into [0, 360).
func MedianAngles(as []types.EulerAngles) types.EulerAngles {
	out := vectorToAngles(MedianVector(anglesToVectors(as)))
	out.Yaw = geometry.FoldYaw(out.Yaw)
	return out
}

// MeanAngles is the per-axis mean of a set of angle triples, with yaw
// handled as in MedianAngles
func MeanAngles(as []types.EulerAngles) types.EulerAngles {
	out := vectorToAngles(MeanVector(anglesToVectors(as)))
	out.Yaw = geometry.FoldYaw(out.Yaw)
	return out
}

// AngleSpread returns max-min per axis. Yaw spread is measured the short
// way around the circle.
func AngleSpread(as []types.EulerAngles) types.EulerAngles {
	vs := anglesToVectors(as)
	var out types.Vector3
	for axis := 0; axis < 3; axis++ {
		col := vectorAxis(vs, axis)
		out[axis] = floats.Max(col) - floats.Min(col)
	}
	return vectorToAngles(out)
}

func vectorAxis(vs []types.Vector3, axis int) []float64 {
	col := make([]float64, len(vs))
	for i, v := range vs {
		col[i] = v[axis]
	}
	return col
}

// anglesToVectors unwraps every yaw to within half a turn of the first one
func anglesToVectors(as []types.EulerAngles) []types.Vector3 {
	vs := make([]types.Vector3, len(as))
	for i, a := range as {
		yaw := a.Yaw
		if i > 0 {
			yaw = as[0].Yaw + math.Remainder(a.Yaw-as[0].Yaw, 360)
		}
		vs[i] = types.Vector3{a.Roll, a.Pitch, yaw}
	}
	return vs
}

func vectorToAngles(v types.Vector3) types.EulerAngles {
	return types.EulerAngles{Roll: v[0], Pitch: v[1], Yaw: v[2]}
}
