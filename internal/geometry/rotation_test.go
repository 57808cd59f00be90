package geometry

import (
	"math"
	"testing"

	"github.com/chrissnell/autocal/internal/types"
)

func TestAnglesRoundTrip(t *testing.T) {
	tests := []struct {
		name   string
		angles types.EulerAngles
	}{
		{"aligned windshield", types.EulerAngles{Roll: 0, Pitch: 27, Yaw: 180}},
		{"left mount", types.EulerAngles{Roll: 2.5, Pitch: 31.2, Yaw: 90}},
		{"right mount", types.EulerAngles{Roll: -4.75, Pitch: 18, Yaw: 270}},
		{"upside down", types.EulerAngles{Roll: 1, Pitch: 40, Yaw: 0}},
		{"negative pitch", types.EulerAngles{Roll: 12.34, Pitch: -20.5, Yaw: 359.5}},
		{"near gimbal", types.EulerAngles{Roll: 85, Pitch: 10, Yaw: 45}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := RotationFromAngles(tt.angles)
			if !IsOrthonormal(r, OrthonormalTolerance) {
				t.Fatalf("rotation for %+v is not orthonormal", tt.angles)
			}

			got := AnglesFromRotation(r)
			if math.Abs(got.Roll-tt.angles.Roll) > 0.01 ||
				math.Abs(got.Pitch-tt.angles.Pitch) > 0.01 ||
				math.Abs(got.Yaw-tt.angles.Yaw) > 0.01 {
				t.Errorf("round trip = %+v, want %+v", got, tt.angles)
			}
		})
	}
}

func TestFoldYaw(t *testing.T) {
	tests := []struct {
		in, want float64
	}{
		{0, 0},
		{-90, 270},
		{360, 0},
		{725, 5},
		{-0.5, 359.5},
	}
	for _, tt := range tests {
		if got := FoldYaw(tt.in); math.Abs(got-tt.want) > 1e-9 {
			t.Errorf("FoldYaw(%v) = %v, want %v", tt.in, got, tt.want)
		}
	}
}

func TestWrapPsi(t *testing.T) {
	if got := WrapPsi(-39); got != -39 {
		t.Errorf("WrapPsi(-39) = %v", got)
	}
	if got := WrapPsi(-41); got != 319 {
		t.Errorf("WrapPsi(-41) = %v", got)
	}
}

func TestGravityFrame(t *testing.T) {
	vectors := []types.Vector3{
		{0, 0, 1},
		{0.45, 0, 0.89},
		{0.1, -0.4, 0.9},
		{-0.2, 0.5, 0.84},
	}

	for _, a0 := range vectors {
		r0 := GravityFrame(a0)
		if !IsOrthonormal(r0, OrthonormalTolerance) {
			t.Fatalf("R0(%v) not orthonormal", a0)
		}

		// The rest vector must land on the vertical axis.
		up := Rotate(r0, a0)
		n := a0.Norm()
		if math.Abs(up[0]) > 1e-9 || math.Abs(up[1]) > 1e-9 || math.Abs(up[2]-n) > 1e-9 {
			t.Errorf("R0·a0 = %v, want (0, 0, %v)", up, n)
		}

		// No rotation about the vertical axis: y row has no x component.
		if math.Abs(r0[1][0]) > 1e-12 {
			t.Errorf("R0(%v) y row = %v", a0, r0[1])
		}
	}
}

func TestPlaneRotationKeepsVertical(t *testing.T) {
	a0 := types.Vector3{0.3, 0.1, 0.95}
	for _, psi := range []float64{0, 45, 180, 300} {
		r := PlaneRotation(a0, psi)
		if !IsOrthonormal(r, OrthonormalTolerance) {
			t.Fatalf("plane rotation at psi %v not orthonormal", psi)
		}
		up := Rotate(r, a0)
		if math.Abs(up[0]) > 1e-9 || math.Abs(up[1]) > 1e-9 {
			t.Errorf("psi %v: rotated a0 = %v", psi, up)
		}
	}
}

func TestGravityImageMatchesRotation(t *testing.T) {
	e := types.EulerAngles{Roll: 3, Pitch: 27, Yaw: 180}
	g := GravityImage(e)
	up := Rotate(RotationFromAngles(e), g)

	// Rows are orthonormal, so R·(third row) is the vertical unit vector.
	if math.Abs(up[2]-1) > 1e-9 || math.Abs(up[0]) > 1e-9 || math.Abs(up[1]) > 1e-9 {
		t.Errorf("R·g = %v, want (0, 0, 1)", up)
	}
}

func TestIsOrthonormalRejectsScaled(t *testing.T) {
	r := RotationFromAngles(types.EulerAngles{Pitch: 10})
	r[0][0] *= 1.01
	if IsOrthonormal(r, OrthonormalTolerance) {
		t.Error("scaled matrix accepted as orthonormal")
	}
}

func TestIsClose(t *testing.T) {
	if !IsClose(0.45, 0.5, 0.05) {
		t.Error("0.45 should be close to 0.5 at atol 0.05")
	}
	if IsClose(0.4, 0.5, 0.05) {
		t.Error("0.4 should not be close to 0.5 at atol 0.05")
	}
	if !IsClose(1000, 1000.005, 0) {
		t.Error("relative tolerance not applied")
	}
}
