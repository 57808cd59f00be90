package solver

import (
	"math"

	"github.com/chrissnell/autocal/internal/types"
)

// SGDSolver minimizes the L1 gravity residual with momentum SGD under a
// triangular cyclical learning rate and keeps the best iterate it has seen
type SGDSolver struct {
	params Params
}

// NewSGDSolver creates an SGD solver
func NewSGDSolver(p Params) *SGDSolver {
	return &SGDSolver{params: p}
}

// learningRate is the triangular schedule oscillating between BaseLR and
// MaxLR with a half period of StepSizeUp iterations
func (s *SGDSolver) learningRate(iter int) float64 {
	p := s.params
	if p.StepSizeUp <= 0 {
		return p.BaseLR
	}
	step := float64(p.StepSizeUp)
	cycle := math.Floor(1 + float64(iter)/(2*step))
	x := math.Abs(float64(iter)/step - 2*cycle + 1)
	return p.BaseLR + (p.MaxLR-p.BaseLR)*math.Max(0, 1-x)
}

// Solve runs the fixed iteration budget and returns the lowest-loss iterate
func (s *SGDSolver) Solve(a0 types.Vector3, init types.EulerAngles) Result {
	target := unitTarget(a0)

	x := toRadians(init)
	velocity := make([]float64, 3)
	grad := make([]float64, 3)

	initialLoss := l1Loss(x, target)
	best := append([]float64(nil), x...)
	bestLoss := initialLoss
	bestIter := 0

	for iter := 0; iter < s.params.Iterations; iter++ {
		loss := l1Loss(x, target)
		if loss < bestLoss {
			bestLoss = loss
			bestIter = iter
			copy(best, x)
		}

		l1Gradient(grad, x, target)
		lr := s.learningRate(iter)
		for j := range x {
			if iter == 0 {
				velocity[j] = grad[j]
			} else {
				velocity[j] = s.params.Momentum*velocity[j] + grad[j]
			}
			x[j] -= lr * velocity[j]
		}
	}

	if initialLoss-bestLoss < minImprovement {
		return Result{
			Angles:      init,
			Loss:        initialLoss,
			InitialLoss: initialLoss,
			Iterations:  s.params.Iterations,
		}
	}

	return Result{
		Angles:      toDegrees(best),
		Loss:        bestLoss,
		InitialLoss: initialLoss,
		Iterations:  bestIter,
		Improved:    true,
	}
}
