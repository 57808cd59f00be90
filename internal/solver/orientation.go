package solver

import (
	"github.com/chrissnell/autocal/internal/geometry"
	"github.com/chrissnell/autocal/internal/types"
)

// OrientationParams describes where gravity is expected to fall on the
// sensor's x/y axes for each mounting pose
type OrientationParams struct {
	Bias      float64 // expected |a0| on the tilted axis, g
	Tolerance float64
}

// DefaultOrientationParams returns production pose classification settings
func DefaultOrientationParams() OrientationParams {
	return OrientationParams{Bias: 0.45, Tolerance: 0.2}
}

// ClassifyOrientation maps a rest vector to one of the four mounting poses.
// Vectors that match no pose are treated as aligned.
func ClassifyOrientation(a0 types.Vector3, p OrientationParams) types.Orientation {
	x, y := a0[0], a0[1]
	near := func(v, want float64) bool {
		return geometry.IsClose(v, want, p.Tolerance)
	}

	switch {
	case near(x, p.Bias) && near(y, 0) && x > y:
		return types.OrientationAligned
	case near(x, -p.Bias) && near(y, 0) && x < y:
		return types.OrientationUpsideDown
	case near(x, 0) && near(y, p.Bias) && x < y:
		return types.OrientationLeft
	case near(x, 0) && near(y, -p.Bias) && x > y:
		return types.OrientationRight
	}
	return types.OrientationAligned
}

var orientationYaw = map[types.Orientation]float64{
	types.OrientationLeft:       90,
	types.OrientationRight:      270,
	types.OrientationUpsideDown: 0,
	types.OrientationAligned:    180,
}

// InitialCondition is the search starting point for a pose: no roll, the
// reference windshield pitch and the pose's nominal yaw
func InitialCondition(o types.Orientation, referencePitch float64) types.EulerAngles {
	yaw, ok := orientationYaw[o]
	if !ok {
		yaw = orientationYaw[types.OrientationAligned]
	}
	return types.EulerAngles{Roll: 0, Pitch: referencePitch, Yaw: yaw}
}
