package solver

import (
	"math"
	"testing"

	"github.com/chrissnell/autocal/internal/geometry"
	"github.com/chrissnell/autocal/internal/types"
	"gonum.org/v1/gonum/diff/fd"
	"gonum.org/v1/gonum/floats"
)

func TestClassifyOrientation(t *testing.T) {
	p := DefaultOrientationParams()

	tests := []struct {
		name   string
		a0     types.Vector3
		params OrientationParams
		want   types.Orientation
	}{
		{"aligned", types.Vector3{0.45, 0.02, 0.89}, p, types.OrientationAligned},
		{"upside down", types.Vector3{-0.44, 0.01, 0.9}, p, types.OrientationUpsideDown},
		{"left", types.Vector3{0.03, 0.46, 0.88}, p, types.OrientationLeft},
		{"right", types.Vector3{-0.02, -0.47, 0.88}, p, types.OrientationRight},
		{"no match defaults to aligned", types.Vector3{0.7, 0.7, 0.1}, p, types.OrientationAligned},
		{"flat with zero bias", types.Vector3{0, 0, 1}, OrientationParams{Bias: 0, Tolerance: 0.2}, types.OrientationAligned},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := ClassifyOrientation(tt.a0, tt.params); got != tt.want {
				t.Errorf("ClassifyOrientation(%v) = %s, want %s", tt.a0, got, tt.want)
			}
		})
	}
}

func TestInitialCondition(t *testing.T) {
	tests := []struct {
		orientation types.Orientation
		wantYaw     float64
	}{
		{types.OrientationLeft, 90},
		{types.OrientationRight, 270},
		{types.OrientationUpsideDown, 0},
		{types.OrientationAligned, 180},
	}

	for _, tt := range tests {
		got := InitialCondition(tt.orientation, 27)
		want := types.EulerAngles{Roll: 0, Pitch: 27, Yaw: tt.wantYaw}
		if got != want {
			t.Errorf("InitialCondition(%s) = %+v, want %+v", tt.orientation, got, want)
		}
	}
}

func TestGravityMatchesRotation(t *testing.T) {
	e := types.EulerAngles{Roll: 3, Pitch: 28, Yaw: 176}
	g := gravity(toRadians(e))
	want := geometry.GravityImage(e)
	for k := 0; k < 3; k++ {
		if math.Abs(g[k]-want[k]) > 1e-12 {
			t.Fatalf("gravity = %v, want %v", g, want)
		}
	}
}

func TestL1GradientMatchesFiniteDifference(t *testing.T) {
	target := unitTarget(types.Vector3{0.41, -0.05, 0.9})
	points := [][]float64{
		{0.1, 0.5, 3.0},
		{-0.2, 0.3, 1.4},
		{0.05, 0.6, 4.5},
	}

	for _, x := range points {
		want := fd.Gradient(nil, func(e []float64) float64 { return l1Loss(e, target) }, x, &fd.Settings{
			Formula: fd.Central,
			Step:    1e-7,
		})

		got := make([]float64, 3)
		l1Gradient(got, x, target)

		for j := range got {
			if math.Abs(got[j]-want[j]) > 1e-5 {
				t.Errorf("gradient at %v = %v, finite difference %v", x, got, want)
				break
			}
		}
	}
}

func TestLearningRateSchedule(t *testing.T) {
	s := NewSGDSolver(Params{BaseLR: 0.001, MaxLR: 0.05, StepSizeUp: 250})

	tests := []struct {
		iter int
		want float64
	}{
		{0, 0.001},
		{125, 0.0255},
		{250, 0.05},
		{375, 0.0255},
		{500, 0.001},
		{750, 0.05},
	}
	for _, tt := range tests {
		if got := s.learningRate(tt.iter); math.Abs(got-tt.want) > 1e-12 {
			t.Errorf("learningRate(%d) = %v, want %v", tt.iter, got, tt.want)
		}
	}
}

func TestSolversReduceLoss(t *testing.T) {
	truth := types.EulerAngles{Roll: 5, Pitch: 35, Yaw: 185}
	a0 := geometry.GravityImage(truth)
	init := InitialCondition(types.OrientationAligned, 27)

	tests := []struct {
		name    string
		solver  Solver
		maxLoss float64
	}{
		{"sgd", New(sgdParams()), 0.05},
		{"nelder-mead", New(DefaultParams()), 1e-3},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res := tt.solver.Solve(a0, init)
			if !res.Improved {
				t.Fatalf("solver did not improve on initial loss %v", res.InitialLoss)
			}
			if res.Loss > tt.maxLoss {
				t.Errorf("loss = %v, want <= %v (initial %v)", res.Loss, tt.maxLoss, res.InitialLoss)
			}

			// The answer must reproduce the rest vector, whatever the yaw.
			g := geometry.GravityImage(res.Angles)
			var residual float64
			for k := 0; k < 3; k++ {
				residual += math.Abs(g[k] - a0[k])
			}
			if math.Abs(residual-res.Loss) > 1e-9 {
				t.Errorf("reported loss %v does not match residual %v", res.Loss, residual)
			}
		})
	}
}

func TestSolveAtExactMatchDoesNotImprove(t *testing.T) {
	init := types.EulerAngles{Roll: 0, Pitch: 0, Yaw: 180}
	for _, s := range []Solver{New(sgdParams()), New(Params{Type: SolverTypeNelderMead, Iterations: 200})} {
		res := s.Solve(types.Vector3{0, 0, 1}, init)
		if res.Improved {
			t.Errorf("%T improved on an exact match: %+v", s, res)
		}
		if res.Angles != init {
			t.Errorf("%T angles = %+v, want initial %+v", s, res.Angles, init)
		}
	}
}

func sgdParams() Params {
	p := DefaultParams()
	p.Type = SolverTypeSGD
	return p
}

func TestNewSelectsStrategy(t *testing.T) {
	if _, ok := New(DefaultParams()).(*NelderMeadSolver); !ok {
		t.Errorf("default strategy is %T, want *NelderMeadSolver", New(DefaultParams()))
	}
	if _, ok := New(sgdParams()).(*SGDSolver); !ok {
		t.Errorf("sgd strategy is %T, want *SGDSolver", New(sgdParams()))
	}
}

func TestDefaultSolverYawIsRepeatable(t *testing.T) {
	truth := types.EulerAngles{Roll: 1, Pitch: 30, Yaw: 185}
	g := geometry.GravityImage(truth)
	init := InitialCondition(types.OrientationAligned, 27)
	s := New(DefaultParams())

	// Rest vectors from consecutive parked events differ by a few 1e-4 g.
	perturbations := []types.Vector3{
		{0, 0, 0},
		{2e-4, -1e-4, 0},
		{-2e-4, 1e-4, 1e-4},
		{1e-4, 2e-4, -2e-4},
		{-1e-4, -2e-4, 2e-4},
	}

	var yaws []float64
	for _, d := range perturbations {
		a0 := types.Vector3{g[0] + d[0], g[1] + d[1], g[2] + d[2]}
		res := s.Solve(a0, init)
		if !res.Improved {
			t.Fatalf("solver did not improve for %v", a0)
		}
		if res.Loss > 1e-3 {
			t.Errorf("loss = %v for %v", res.Loss, a0)
		}
		yaws = append(yaws, res.Angles.Yaw)
	}

	spread := floats.Max(yaws) - floats.Min(yaws)
	if spread > 10 {
		t.Errorf("yaw spread = %v over %v, want <= 10", spread, yaws)
	}
}
