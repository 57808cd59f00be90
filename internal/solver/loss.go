package solver

import (
	"math"

	"github.com/chrissnell/autocal/internal/types"
)

// lossEpsilon is added to every residual so the sub-gradient at an exact
// match is well defined
const lossEpsilon = 1e-15

// minImprovement is the loss reduction below which an iterate is considered
// no better than the initial guess
const minImprovement = 1e-12

// gravity returns the third row of the rotation matrix for e (radians)
func gravity(e []float64) [3]float64 {
	sx, cx := math.Sincos(e[0])
	sy, cy := math.Sincos(e[1])
	sz, cz := math.Sincos(e[2])

	return [3]float64{
		cy*sx*sz - cz*sy,
		cy*cz*sx + sy*sz,
		cx * cy,
	}
}

// l1Loss is ‖g(e) − target‖₁
func l1Loss(e []float64, target [3]float64) float64 {
	g := gravity(e)
	var loss float64
	for k := 0; k < 3; k++ {
		loss += math.Abs(g[k] - target[k] + lossEpsilon)
	}
	return loss
}

// l1Gradient writes the sub-gradient of l1Loss at e into grad
func l1Gradient(grad, e []float64, target [3]float64) {
	sx, cx := math.Sincos(e[0])
	sy, cy := math.Sincos(e[1])
	sz, cz := math.Sincos(e[2])

	g := gravity(e)

	// jac[k][j] = ∂g_k/∂e_j
	jac := [3][3]float64{
		{cy * cx * sz, -sy*sx*sz - cz*cy, cy*sx*cz + sz*sy},
		{cy * cz * cx, -sy*cz*sx + cy*sz, -cy*sz*sx + sy*cz},
		{-sx * cy, -cx * sy, 0},
	}

	grad[0], grad[1], grad[2] = 0, 0, 0
	for k := 0; k < 3; k++ {
		s := sign(g[k] - target[k] + lossEpsilon)
		for j := 0; j < 3; j++ {
			grad[j] += s * jac[k][j]
		}
	}
}

func sign(v float64) float64 {
	switch {
	case v > 0:
		return 1
	case v < 0:
		return -1
	}
	return 0
}

// unitTarget normalizes a0. A zero vector is returned unchanged.
func unitTarget(a0 types.Vector3) [3]float64 {
	n := a0.Norm()
	if n == 0 {
		return a0
	}
	return [3]float64{a0[0] / n, a0[1] / n, a0[2] / n}
}

func toRadians(e types.EulerAngles) []float64 {
	return []float64{e.Roll * math.Pi / 180, e.Pitch * math.Pi / 180, e.Yaw * math.Pi / 180}
}

func toDegrees(x []float64) types.EulerAngles {
	return types.EulerAngles{
		Roll:  x[0] * 180 / math.Pi,
		Pitch: x[1] * 180 / math.Pi,
		Yaw:   x[2] * 180 / math.Pi,
	}
}
