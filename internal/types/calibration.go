// Package types holds the records and value types shared by the calibration
// pipeline, the history stores and the REST surface.
package types

import (
	"math"
	"time"
)

// Vector3 is an (x, y, z) triple. Accelerations are in g, angular rates in deg/s.
type Vector3 [3]float64

// Norm returns the Euclidean length of v
func (v Vector3) Norm() float64 {
	return math.Sqrt(v[0]*v[0] + v[1]*v[1] + v[2]*v[2])
}

// Ptr returns a pointer to a copy of v
func (v Vector3) Ptr() *Vector3 {
	return &v
}

// Sample is a single inertial reading
type Sample struct {
	Acc  Vector3 `json:"acc" msgpack:"acc"`
	Gyro Vector3 `json:"gyro" msgpack:"gyro"`
}

// SampleWindow is the raw series captured for one event, at a fixed rate.
// It is produced externally and never modified by the pipeline.
type SampleWindow []Sample

// EulerAngles are (roll ϕx, pitch θy, yaw ψz) in degrees
type EulerAngles struct {
	Roll  float64 `json:"roll" msgpack:"roll"`
	Pitch float64 `json:"pitch" msgpack:"pitch"`
	Yaw   float64 `json:"yaw" msgpack:"yaw"`
}

// Ptr returns a pointer to a copy of e
func (e EulerAngles) Ptr() *EulerAngles {
	return &e
}

// Slice returns the angles as [roll, pitch, yaw]
func (e EulerAngles) Slice() []float64 {
	return []float64{e.Roll, e.Pitch, e.Yaw}
}

// AnglesFromSlice builds EulerAngles from a [roll, pitch, yaw] slice
func AnglesFromSlice(s []float64) EulerAngles {
	return EulerAngles{Roll: s[0], Pitch: s[1], Yaw: s[2]}
}

// RotationMatrix maps sensor-frame vectors into the vehicle frame
type RotationMatrix [3][3]float64

// Ptr returns a pointer to a copy of r
func (r RotationMatrix) Ptr() *RotationMatrix {
	return &r
}

// Decision is the tri-state on-windshield verdict
type Decision string

const (
	DecisionUnknown         Decision = "unknown"
	DecisionNotOnWindshield Decision = "not_on_windshield"
	DecisionOnWindshield    Decision = "on_windshield"
)

// Reason is the short reason code attached to a Decision
type Reason string

const (
	ReasonNoA0          Reason = "No A0"
	ReasonInvalidAngles Reason = "Invalid angles"
	ReasonAngleChanged  Reason = "Angle changed"
	ReasonNormalAngles  Reason = "Normal angles"
	ReasonStable        Reason = "Stable"
	ReasonUnstable      Reason = "Unstable"
)

// Orientation is the coarse mounting pose of the sensor
type Orientation string

const (
	OrientationAligned    Orientation = "aligned"
	OrientationUpsideDown Orientation = "upside-down"
	OrientationLeft       Orientation = "left"
	OrientationRight      Orientation = "right"
)

// Valid reports whether o is one of the four known poses
func (o Orientation) Valid() bool {
	switch o {
	case OrientationAligned, OrientationUpsideDown, OrientationLeft, OrientationRight:
		return true
	}
	return false
}

// Status is the calibration lifecycle state
type Status string

const (
	StatusPending    Status = "Pending"
	StatusCalibrated Status = "Calibrated"
)

// ResetBehavior tells the history reader where to truncate
type ResetBehavior string

const (
	// ResetIgnoreHistory keeps the flagged record and drops everything older
	ResetIgnoreHistory ResetBehavior = "IgnoreHistory"
	// ResetIgnoreCurrent drops the flagged record and everything older
	ResetIgnoreCurrent ResetBehavior = "IgnoreCurrent"
)

// Reset sources
const (
	ResetSourceAlgo        = "Algo"
	ResetSourceSupportTool = "SupportTool"
)

// ResetFlag requests truncation of future aggregation windows
type ResetFlag struct {
	Source   string        `json:"source" msgpack:"source"`
	Behavior ResetBehavior `json:"behavior" msgpack:"behavior"`
}

// Valid reports whether the flag carries a known behavior.
// Flags with any other behavior are ignored by the history reader.
func (f *ResetFlag) Valid() bool {
	if f == nil {
		return false
	}
	return f.Behavior == ResetIgnoreHistory || f.Behavior == ResetIgnoreCurrent
}

// ButtonPress is the interpreted press signal of one event
type ButtonPress struct {
	Pressed bool   `json:"pressed" msgpack:"pressed"`
	Reason  string `json:"reason" msgpack:"reason"`
}

// OnWindshieldRecord is the mounting classifier's output for one event
type OnWindshieldRecord struct {
	Decision          Decision     `json:"decision" msgpack:"decision"`
	Reason            Reason       `json:"reason" msgpack:"reason"`
	ReasonDescription string       `json:"reason_description" msgpack:"reason_description"`
	ButtonPressed     ButtonPress  `json:"button_pressed" msgpack:"button_pressed"`
	A0                *Vector3     `json:"a0,omitempty" msgpack:"a0,omitempty"`
	InitialCondition  *EulerAngles `json:"initial_condition,omitempty" msgpack:"initial_condition,omitempty"`
	Angles            *EulerAngles `json:"angles,omitempty" msgpack:"angles,omitempty"`
	ReferencePitch    float64      `json:"reference_pitch" msgpack:"reference_pitch"`
	Orientation       Orientation  `json:"orientation,omitempty" msgpack:"orientation,omitempty"`
	ManualOrientation Orientation  `json:"manual_orientation,omitempty" msgpack:"manual_orientation,omitempty"`
	EstimatedAngles   *EulerAngles `json:"estimated_angles,omitempty" msgpack:"estimated_angles,omitempty"`
	ResetCalibration  *ResetFlag   `json:"reset_calibration,omitempty" msgpack:"reset_calibration,omitempty"`
	ResetOffset       bool         `json:"reset_offset" msgpack:"reset_offset"`
}

// IsOnWindshield reports a positive decision
func (r OnWindshieldRecord) IsOnWindshield() bool {
	return r.Decision == DecisionOnWindshield
}

// Calculations holds the intermediate values of one aggregator run
type Calculations struct {
	EstWSAngles    *EulerAngles    `json:"est_ws_angles,omitempty" msgpack:"est_ws_angles,omitempty"`
	Ax             *Vector3        `json:"ax,omitempty" msgpack:"ax,omitempty"`
	A0Mean         *Vector3        `json:"a0_mean,omitempty" msgpack:"a0_mean,omitempty"`
	PsiZMean       *float64        `json:"psi_z_mean,omitempty" msgpack:"psi_z_mean,omitempty"`
	ConvergedDelta *float64        `json:"converged_delta,omitempty" msgpack:"converged_delta,omitempty"`
	IsPlaneBetter  *bool           `json:"is_plane_better,omitempty" msgpack:"is_plane_better,omitempty"`
	RotationMatrix *RotationMatrix `json:"rotation_matrix,omitempty" msgpack:"rotation_matrix,omitempty"`
	RotationAngles *EulerAngles    `json:"rotation_angles,omitempty" msgpack:"rotation_angles,omitempty"`
	IsAcc          *bool           `json:"is_acc,omitempty" msgpack:"is_acc,omitempty"`
}

// CalibrationRecord is the aggregator's output for one event
type CalibrationRecord struct {
	Status            Status         `json:"status" msgpack:"status"`
	AxesOrientation   string         `json:"axes_orientation" msgpack:"axes_orientation"`
	OperationalAngles EulerAngles    `json:"operational_angles" msgpack:"operational_angles"`
	OperationalMat    RotationMatrix `json:"operational_mat" msgpack:"operational_mat"`
	A0                *Vector3       `json:"a0,omitempty" msgpack:"a0,omitempty"`
	PsiZ              *float64       `json:"psi_z,omitempty" msgpack:"psi_z,omitempty"`
	Calculations      Calculations   `json:"calculations" msgpack:"calculations"`
}

// OffsetRecord is the quantized bias correction for the accelerometer
type OffsetRecord struct {
	Offsets      [3]int  `json:"offsets" msgpack:"offsets"`
	DisabledAxes [3]bool `json:"disabled_axes" msgpack:"disabled_axes"`
}

// EventRecord is the unit appended to a device's history, one per event
type EventRecord struct {
	ID           string              `json:"id" msgpack:"id"`
	DeviceID     string              `json:"device_id" msgpack:"device_id"`
	EventType    string              `json:"event_type,omitempty" msgpack:"event_type,omitempty"`
	TriggeredAt  time.Time           `json:"triggered_at" msgpack:"triggered_at"`
	OnWindshield *OnWindshieldRecord `json:"on_windshield,omitempty" msgpack:"on_windshield,omitempty"`
	Calibration  *CalibrationRecord  `json:"calibration,omitempty" msgpack:"calibration,omitempty"`
	Offset       *OffsetRecord       `json:"offset,omitempty" msgpack:"offset,omitempty"`
	ResetHistory *ResetFlag          `json:"reset_history,omitempty" msgpack:"reset_history,omitempty"`
}
