package offset

import (
	"math"
	"testing"

	"github.com/chrissnell/autocal/internal/types"
)

func TestEstimate(t *testing.T) {
	p := DefaultParams()

	tests := []struct {
		name         string
		a0           *types.Vector3
		wantNil      bool
		wantOffsets  [3]int
		wantDisabled [3]bool
	}{
		{
			name:    "no rest vector",
			a0:      nil,
			wantNil: true,
		},
		{
			name:         "z gravity small bias",
			a0:           &types.Vector3{0.02, -0.03, 0.99},
			wantOffsets:  [3]int{-5, 7, 0},
			wantDisabled: [3]bool{false, false, true},
		},
		{
			name:         "large bias clamped",
			a0:           &types.Vector3{0.45, 0.3, 0.89},
			wantOffsets:  [3]int{-25, -25, 0},
			wantDisabled: [3]bool{false, false, true},
		},
		{
			name:         "x is the gravity axis",
			a0:           &types.Vector3{0.98, 0.05, -0.2},
			wantOffsets:  [3]int{0, -12, 25},
			wantDisabled: [3]bool{true, false, false},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Estimate(tt.a0, p)
			if tt.wantNil {
				if got != nil {
					t.Fatalf("Estimate(nil) = %+v, want nil", got)
				}
				return
			}
			if got == nil {
				t.Fatal("Estimate returned nil")
			}
			if got.Offsets != tt.wantOffsets {
				t.Errorf("offsets = %v, want %v", got.Offsets, tt.wantOffsets)
			}
			if got.DisabledAxes != tt.wantDisabled {
				t.Errorf("disabled = %v, want %v", got.DisabledAxes, tt.wantDisabled)
			}
		})
	}
}

func TestBitsRoundTrip(t *testing.T) {
	bits := [3]int{-25, 7, 0}
	if got := ToBits(ToFloat(bits, DefaultStep), DefaultStep); got != bits {
		t.Errorf("round trip = %v, want %v", got, bits)
	}
}

func TestRemove(t *testing.T) {
	w := types.SampleWindow{
		{Acc: types.Vector3{0.1, 0.2, 1.0}, Gyro: types.Vector3{1, 2, 3}},
		{Acc: types.Vector3{0.0, 0.0, 0.9}},
	}
	bits := [3]int{256 / 8, -256 / 16, 0} // +0.125 g, -0.0625 g

	got := Remove(w, bits, DefaultStep)

	want := types.SampleWindow{
		{Acc: types.Vector3{-0.025, 0.2625, 1.0}, Gyro: types.Vector3{1, 2, 3}},
		{Acc: types.Vector3{-0.125, 0.0625, 0.9}},
	}
	for i := range want {
		for axis := 0; axis < 3; axis++ {
			if math.Abs(got[i].Acc[axis]-want[i].Acc[axis]) > 1e-12 {
				t.Errorf("sample %d = %v, want %v", i, got[i].Acc, want[i].Acc)
				break
			}
		}
		if got[i].Gyro != want[i].Gyro {
			t.Errorf("gyro modified: %v", got[i].Gyro)
		}
	}

	if w[0].Acc != (types.Vector3{0.1, 0.2, 1.0}) {
		t.Error("input window was modified")
	}
}
