// Package solver estimates the Euler angles that rotate the vehicle's
// vertical axis onto a measured rest vector. The numeric search is pluggable:
// a gonum Nelder-Mead simplex (the production strategy) or a momentum SGD
// with a cyclical learning rate.
package solver

import (
	"github.com/chrissnell/autocal/internal/types"
)

// Solver finds angles e such that the gravity image g(e) matches the
// normalized rest vector, starting from an initial guess
type Solver interface {
	Solve(a0 types.Vector3, init types.EulerAngles) Result
}

// SolverType identifies the search strategy
type SolverType string

const (
	// SolverTypeSGD uses momentum SGD with a triangular cyclical learning rate
	SolverTypeSGD SolverType = "sgd"

	// SolverTypeNelderMead uses gonum's Nelder-Mead simplex search
	SolverTypeNelderMead SolverType = "nelder-mead"
)

// Params holds the search budget and learning rate schedule
type Params struct {
	Type       SolverType
	BaseLR     float64
	MaxLR      float64
	Momentum   float64
	StepSizeUp int // iterations per half cycle
	Iterations int
}

// DefaultParams returns production solver settings
func DefaultParams() Params {
	return Params{
		Type:       SolverTypeNelderMead,
		BaseLR:     0.001,
		MaxLR:      0.05,
		Momentum:   0.9,
		StepSizeUp: 250,
		Iterations: 1500,
	}
}

// Result is the best iterate seen during a search. Improved is false when no
// iterate beat the initial guess, in which case Angles is the initial guess.
type Result struct {
	Angles      types.EulerAngles
	Loss        float64
	InitialLoss float64
	Iterations  int
	Improved    bool
}

// New returns the solver selected by p.Type, defaulting to Nelder-Mead
func New(p Params) Solver {
	switch p.Type {
	case SolverTypeSGD:
		return NewSGDSolver(p)
	default:
		return NewNelderMeadSolver(p)
	}
}
