// Package offset derives the accelerometer bias correction programmed into
// the device, in the quantized units the device register accepts.
package offset

import (
	"math"

	"github.com/chrissnell/autocal/internal/types"
	"gonum.org/v1/gonum/floats"
)

// DefaultStep is the value of one offset bit, in g
const DefaultStep = 1.0 / 256

// Params bounds and quantizes the correction
type Params struct {
	MaxValue float64 // largest correction per axis, g
	Step     float64 // g per bit
}

// DefaultParams returns production offset settings
func DefaultParams() Params {
	return Params{MaxValue: 0.1, Step: DefaultStep}
}

// Estimate computes the offset that cancels a0 on the two non-gravity axes.
// The gravity axis (the largest component of a0) is left alone and flagged
// as disabled. A nil a0 yields no record.
func Estimate(a0 *types.Vector3, p Params) *types.OffsetRecord {
	if a0 == nil {
		return nil
	}

	gravityAxis := floats.MaxIdx(a0[:])

	var correction types.Vector3
	for axis, v := range a0 {
		if axis == gravityAxis {
			continue
		}
		correction[axis] = clamp(-v, p.MaxValue)
	}

	rec := &types.OffsetRecord{Offsets: ToBits(correction, p.Step)}
	rec.DisabledAxes[gravityAxis] = true
	return rec
}

// ToBits quantizes a correction, truncating toward zero
func ToBits(v types.Vector3, step float64) [3]int {
	var bits [3]int
	for i, x := range v {
		bits[i] = int(x / step)
	}
	return bits
}

// ToFloat converts register bits back to g
func ToFloat(bits [3]int, step float64) types.Vector3 {
	var v types.Vector3
	for i, b := range bits {
		v[i] = float64(b) * step
	}
	return v
}

// Remove undoes a programmed offset, returning a copy of w whose
// accelerations no longer include it. Gyro readings are untouched.
func Remove(w types.SampleWindow, bits [3]int, step float64) types.SampleWindow {
	shift := ToFloat(bits, step)
	out := make(types.SampleWindow, len(w))
	for i, s := range w {
		out[i] = s
		for axis := 0; axis < 3; axis++ {
			out[i].Acc[axis] -= shift[axis]
		}
	}
	return out
}

func clamp(v, limit float64) float64 {
	if math.Abs(v) < limit {
		return v
	}
	return math.Copysign(limit, v)
}
