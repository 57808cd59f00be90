package window

import (
	"math"
	"testing"

	"github.com/chrissnell/autocal/internal/types"
)

var identity = types.RotationMatrix{{1, 0, 0}, {0, 1, 0}, {0, 0, 1}}

func repeat(n int, acc types.Vector3) types.SampleWindow {
	w := make(types.SampleWindow, n)
	for i := range w {
		w[i] = types.Sample{Acc: acc}
	}
	return w
}

func concat(parts ...types.SampleWindow) types.SampleWindow {
	var out types.SampleWindow
	for _, p := range parts {
		out = append(out, p...)
	}
	return out
}

// jitter alternates between acc and acc shifted by d on every axis
func jitter(n int, acc types.Vector3, d float64) types.SampleWindow {
	w := repeat(n, acc)
	for i := 1; i < n; i += 2 {
		for axis := 0; axis < 3; axis++ {
			w[i].Acc[axis] += d
		}
	}
	return w
}

func vecClose(a, b types.Vector3, eps float64) bool {
	for i := range a {
		if math.Abs(a[i]-b[i]) > eps {
			return false
		}
	}
	return true
}

func TestCrashIndex(t *testing.T) {
	w := concat(repeat(10, types.Vector3{0, 0, 1}), repeat(1, types.Vector3{3, 0, 1}), repeat(5, types.Vector3{0, 0, 1}))
	if got := CrashIndex(w, 2.5); got != 10 {
		t.Errorf("CrashIndex = %d, want 10", got)
	}
	if got := CrashIndex(repeat(7, types.Vector3{0, 0, 1}), 2.5); got != 7 {
		t.Errorf("CrashIndex without crash = %d, want 7", got)
	}
}

func TestFindRest(t *testing.T) {
	rest := types.Vector3{0.45, 0, 0.89}
	later := types.Vector3{0.44, 0.02, 0.895}
	moving := types.Vector3{0.5, 0.5, 1.1} // norm ~1.31

	p := DefaultRestParams()

	tests := []struct {
		name      string
		series    types.SampleWindow
		wantFound bool
		wantMean  types.Vector3
		wantStart int
	}{
		{
			name:      "exactly one rest window",
			series:    concat(repeat(60, moving), repeat(50, rest), repeat(20, moving)),
			wantFound: true,
			wantMean:  rest,
			wantStart: 60,
		},
		{
			name:      "no rest window",
			series:    repeat(200, moving),
			wantFound: false,
		},
		{
			name:      "window shorter than required",
			series:    concat(repeat(30, moving), repeat(49, rest), repeat(30, moving)),
			wantFound: false,
		},
		{
			name:      "equally quiet later window wins",
			series:    concat(repeat(50, rest), repeat(10, moving), repeat(50, later)),
			wantFound: true,
			wantMean:  later,
			wantStart: 60,
		},
		{
			name:      "quieter earlier window beats noisier later one",
			series:    concat(jitter(50, rest, 0.01), repeat(10, moving), jitter(50, later, 0.02)),
			wantFound: true,
			wantMean:  types.Vector3{0.455, 0.005, 0.895},
			wantStart: 0,
		},
		{
			name:      "window ending at the last sample",
			series:    concat(repeat(30, moving), repeat(50, rest)),
			wantFound: true,
			wantMean:  rest,
			wantStart: 30,
		},
		{
			name:      "window ending right before the crash",
			series:    concat(repeat(50, rest), repeat(1, types.Vector3{3, 0, 0}), repeat(60, later)),
			wantFound: true,
			wantMean:  rest,
			wantStart: 0,
		},
		{
			name:      "rest after crash is ignored",
			series:    concat(repeat(20, moving), repeat(1, types.Vector3{3, 0, 0}), repeat(60, rest)),
			wantFound: false,
		},
		{
			name:      "noise above tolerance rejected",
			series:    jitter(80, rest, 0.04),
			wantFound: false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, found := FindRest(tt.series, p)
			if found != tt.wantFound {
				t.Fatalf("found = %v, want %v", found, tt.wantFound)
			}
			if !found {
				return
			}
			if !vecClose(got.Mean, tt.wantMean, 1e-9) {
				t.Errorf("mean = %v, want %v", got.Mean, tt.wantMean)
			}
			if got.Start != tt.wantStart || got.End != tt.wantStart+p.WindowSize {
				t.Errorf("window = [%d, %d), want start %d", got.Start, got.End, tt.wantStart)
			}
		})
	}
}

func straightSample(h float64) types.Sample {
	return types.Sample{Acc: types.Vector3{h, 0, 1}}
}

func stretch(n int, h float64) types.SampleWindow {
	w := make(types.SampleWindow, n)
	for i := range w {
		w[i] = straightSample(h)
	}
	return w
}

func TestFindStraight(t *testing.T) {
	p := StraightParams{
		MinWindowSize:      25,
		WarmupSamples:      0,
		MinThreshold:       0.1,
		MaxThreshold:       0.5,
		GyroNoiseTolerance: 5,
	}

	turning := stretch(30, 0.3)
	for i := range turning {
		turning[i].Gyro = types.Vector3{0, 0, 12}
	}

	tests := []struct {
		name      string
		series    types.SampleWindow
		params    StraightParams
		wantFound bool
		wantStart int
		wantEnd   int
	}{
		{
			name:      "longest stretch wins",
			series:    concat(stretch(10, 0), stretch(40, 0.3), stretch(10, 0), stretch(30, 0.25), stretch(10, 0)),
			params:    p,
			wantFound: true,
			wantStart: 10,
			wantEnd:   50,
		},
		{
			name:      "tie keeps earliest",
			series:    concat(stretch(5, 0), stretch(30, 0.3), stretch(5, 0), stretch(30, 0.2), stretch(5, 0)),
			params:    p,
			wantFound: true,
			wantStart: 5,
			wantEnd:   35,
		},
		{
			name:      "extends to end of series",
			series:    concat(stretch(20, 0.9), stretch(35, 0.3)),
			params:    p,
			wantFound: true,
			wantStart: 20,
			wantEnd:   55,
		},
		{
			name:      "rotation during stretch rejected",
			series:    concat(stretch(10, 0), turning, stretch(10, 0)),
			params:    p,
			wantFound: false,
		},
		{
			name:      "warm-up samples skipped",
			series:    concat(stretch(40, 0.3), stretch(10, 0)),
			params:    StraightParams{MinWindowSize: 25, WarmupSamples: 20, MinThreshold: 0.1, MaxThreshold: 0.5, GyroNoiseTolerance: 5},
			wantFound: false,
		},
		{
			name:      "too short",
			series:    concat(stretch(10, 0), stretch(24, 0.3), stretch(10, 0)),
			params:    p,
			wantFound: false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, found := FindStraight(tt.series, identity, tt.params)
			if found != tt.wantFound {
				t.Fatalf("found = %v (%+v), want %v", found, got, tt.wantFound)
			}
			if !found {
				return
			}
			if got.Start != tt.wantStart || got.End != tt.wantEnd {
				t.Errorf("window = [%d, %d), want [%d, %d)", got.Start, got.End, tt.wantStart, tt.wantEnd)
			}
			want := tt.series[got.Start].Acc
			if !vecClose(got.Mean, want, 1e-9) {
				t.Errorf("mean = %v, want %v", got.Mean, want)
			}
		})
	}
}

func TestFindStraightUsesRotation(t *testing.T) {
	// Sensor x points up; the horizontal plane of the vehicle is the sensor's y-z plane.
	series := make(types.SampleWindow, 40)
	for i := range series {
		series[i] = types.Sample{Acc: types.Vector3{1, 0, 0.3}}
	}
	rot := types.RotationMatrix{{0, 0, 1}, {0, 1, 0}, {1, 0, 0}}

	p := StraightParams{MinWindowSize: 25, MinThreshold: 0.1, MaxThreshold: 0.5, GyroNoiseTolerance: 5}
	if _, found := FindStraight(series, identity, p); found {
		t.Error("found window in unrotated frame")
	}
	got, found := FindStraight(series, rot, p)
	if !found || got.Len() != 40 {
		t.Errorf("rotated search = %+v, %v", got, found)
	}
}

func TestIsAccelerating(t *testing.T) {
	base := repeat(30, types.Vector3{0, 0, 1})
	s := Straight{Start: 10, End: 20}

	accel := concat(base[:10], repeat(10, types.Vector3{0.3, 0, 1.05}), base[:10])
	if !IsAccelerating(accel, s) {
		t.Error("higher z inside window should read as accelerating")
	}

	braking := concat(base[:10], repeat(10, types.Vector3{-0.3, 0, 0.95}), base[:10])
	if IsAccelerating(braking, s) {
		t.Error("lower z inside window should read as braking")
	}
}
