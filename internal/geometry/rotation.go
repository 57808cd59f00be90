// Package geometry converts between Euler angles and rotation matrices and
// builds the gravity-aligned frames used by the calibration pipeline.
//
// Angles are (roll ϕx, pitch θy, yaw ψz) in degrees. The matrix is the
// product Y·X·Z, i.e. the frame moves about Z first, then X, then Y.
package geometry

import (
	"math"

	"github.com/chrissnell/autocal/internal/types"
	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/spatial/r3"
)

// OrthonormalTolerance bounds ‖R·Rᵀ − I‖ for a valid rotation
const OrthonormalTolerance = 1e-6

// psiWrapThreshold is the yaw below which PsiZ values are moved up one turn
const psiWrapThreshold = -40.0

func deg2rad(d float64) float64 { return d * math.Pi / 180 }
func rad2deg(r float64) float64 { return r * 180 / math.Pi }

// round2 rounds to 0.01°
func round2(v float64) float64 {
	return math.Round(v*100) / 100
}

// RotationFromAngles returns the rotation matrix for e
func RotationFromAngles(e types.EulerAngles) types.RotationMatrix {
	sx, cx := math.Sincos(deg2rad(e.Roll))
	sy, cy := math.Sincos(deg2rad(e.Pitch))
	sz, cz := math.Sincos(deg2rad(e.Yaw))

	return types.RotationMatrix{
		{cy*cz + sx*sy*sz, -cy*sz + cz*sx*sy, cx * sy},
		{cx * sz, cx * cz, -sx},
		{cy*sx*sz - cz*sy, cy*cz*sx + sy*sz, cx * cy},
	}
}

// AnglesFromRotation extracts the Euler angles of r, assuming -90° < roll < 90°.
// Yaw is folded into [0, 360). Each angle is rounded to 0.01°.
func AnglesFromRotation(r types.RotationMatrix) types.EulerAngles {
	roll := rad2deg(math.Asin(clamp(-r[1][2], -1, 1)))
	pitch := rad2deg(math.Atan2(r[0][2], r[2][2]))
	yaw := rad2deg(math.Atan2(r[1][0], r[1][1]))

	return types.EulerAngles{
		Roll:  round2(roll),
		Pitch: round2(pitch),
		Yaw:   FoldYaw(round2(yaw)),
	}
}

// FoldYaw maps any angle into [0, 360)
func FoldYaw(deg float64) float64 {
	y := math.Mod(deg, 360)
	if y < 0 {
		y += 360
	}
	if y >= 360 {
		y -= 360
	}
	return y
}

// WrapPsi moves strongly negative yaw corrections up one turn so that PsiZ
// samples around the aligned pose stay contiguous for averaging
func WrapPsi(deg float64) float64 {
	if deg < psiWrapThreshold {
		return deg + 360
	}
	return deg
}

// GravityFrame builds the rotation R0 whose third row is the unit rest vector.
// No rotation about the vertical axis is assumed: the second row is the unit
// vector orthogonal to a0 inside the sensor's y-z plane.
func GravityFrame(a0 types.Vector3) types.RotationMatrix {
	z := r3.Unit(toR3(a0))
	y := r3.Unit(r3.Vec{X: 0, Y: -z.Z, Z: z.Y})
	x := r3.Unit(r3.Cross(y, z))

	return types.RotationMatrix{
		{x.X, x.Y, x.Z},
		{y.X, y.Y, y.Z},
		{z.X, z.Y, z.Z},
	}
}

// YawRotation is the rotation about the vertical axis by psi degrees
func YawRotation(psi float64) types.RotationMatrix {
	s, c := math.Sincos(deg2rad(psi))
	return types.RotationMatrix{
		{c, -s, 0},
		{s, c, 0},
		{0, 0, 1},
	}
}

// PlaneRotation is the full sensor→vehicle rotation Rz(psi)·R0(a0)
func PlaneRotation(a0 types.Vector3, psi float64) types.RotationMatrix {
	return Multiply(YawRotation(psi), GravityFrame(a0))
}

// Multiply returns a·b
func Multiply(a, b types.RotationMatrix) types.RotationMatrix {
	var out mat.Dense
	out.Mul(dense(a), dense(b))
	return fromDense(&out)
}

// Rotate applies r to v
func Rotate(r types.RotationMatrix, v types.Vector3) types.Vector3 {
	var out types.Vector3
	for i := 0; i < 3; i++ {
		out[i] = r[i][0]*v[0] + r[i][1]*v[1] + r[i][2]*v[2]
	}
	return out
}

// RotateWindow rotates every acceleration sample of w by r
func RotateWindow(r types.RotationMatrix, w types.SampleWindow) []types.Vector3 {
	out := make([]types.Vector3, len(w))
	for i, s := range w {
		out[i] = Rotate(r, s.Acc)
	}
	return out
}

// IsOrthonormal reports whether r·rᵀ equals the identity within tol
// (Frobenius norm of the difference)
func IsOrthonormal(r types.RotationMatrix, tol float64) bool {
	var rrt mat.Dense
	d := dense(r)
	rrt.Mul(d, d.T())

	var diff mat.Dense
	diff.Sub(&rrt, eye())
	return mat.Norm(&diff, 2) <= tol
}

// GravityImage is the sensor-frame image of the vehicle's vertical axis under
// angles e: the third row of RotationFromAngles(e). A device at rest with
// angles e reads this (normalized) acceleration.
func GravityImage(e types.EulerAngles) types.Vector3 {
	r := RotationFromAngles(e)
	return types.Vector3{r[2][0], r[2][1], r[2][2]}
}

func toR3(v types.Vector3) r3.Vec {
	return r3.Vec{X: v[0], Y: v[1], Z: v[2]}
}

func dense(r types.RotationMatrix) *mat.Dense {
	return mat.NewDense(3, 3, []float64{
		r[0][0], r[0][1], r[0][2],
		r[1][0], r[1][1], r[1][2],
		r[2][0], r[2][1], r[2][2],
	})
}

func fromDense(m mat.Matrix) types.RotationMatrix {
	var r types.RotationMatrix
	for i := 0; i < 3; i++ {
		for j := 0; j < 3; j++ {
			r[i][j] = m.At(i, j)
		}
	}
	return r
}

func eye() *mat.Dense {
	return mat.NewDense(3, 3, []float64{1, 0, 0, 0, 1, 0, 0, 0, 1})
}

func clamp(v, lo, hi float64) float64 {
	return math.Max(lo, math.Min(hi, v))
}

// IsClose reports |a-b| <= atol + 1e-5*|b|
func IsClose(a, b, atol float64) bool {
	return math.Abs(a-b) <= atol+1e-5*math.Abs(b)
}
