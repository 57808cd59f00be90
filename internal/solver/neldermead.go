package solver

import (
	"github.com/chrissnell/autocal/internal/types"
	"gonum.org/v1/gonum/optimize"
)

// NelderMeadSolver runs gonum's derivative-free simplex search on the same
// L1 gravity residual used by SGDSolver
type NelderMeadSolver struct {
	params Params
}

// NewNelderMeadSolver creates a Nelder-Mead solver
func NewNelderMeadSolver(p Params) *NelderMeadSolver {
	return &NelderMeadSolver{params: p}
}

// Solve minimizes from init, bounded by p.Iterations major iterations
func (s *NelderMeadSolver) Solve(a0 types.Vector3, init types.EulerAngles) Result {
	target := unitTarget(a0)
	x0 := toRadians(init)
	initialLoss := l1Loss(x0, target)

	problem := optimize.Problem{
		Func: func(x []float64) float64 {
			return l1Loss(x, target)
		},
	}
	settings := &optimize.Settings{
		MajorIterations: s.params.Iterations,
		Converger: &optimize.FunctionConverge{
			Absolute:   1e-12,
			Iterations: 100,
		},
	}

	// Hitting the iteration limit is reported as an error alongside a valid
	// best location, so only the location is inspected.
	res, _ := optimize.Minimize(problem, x0, settings, &optimize.NelderMead{})
	if res == nil || initialLoss-res.F < minImprovement {
		return Result{
			Angles:      init,
			Loss:        initialLoss,
			InitialLoss: initialLoss,
			Iterations:  s.params.Iterations,
		}
	}

	return Result{
		Angles:      toDegrees(res.X),
		Loss:        res.F,
		InitialLoss: initialLoss,
		Iterations:  res.Stats.MajorIterations,
		Improved:    true,
	}
}
