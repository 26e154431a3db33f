package mavros

import (
	"github.com/roman-kulish/navdata-relay/internal/telemetry"
)

// ROS message types subscribed to
const (
	TypeFloat64       = "std_msgs/Float64"
	TypeBool          = "std_msgs/Bool"
	TypeBatteryStatus = "mavros_msgs/BatteryStatus"
	TypeTwistStamped  = "geometry_msgs/TwistStamped"
	TypePoseStamped   = "geometry_msgs/PoseStamped"
	TypeExtendedState = "mavros_msgs/ExtendedState"
)

// StreamID identifies a MAVLink data stream whose rate can be negotiated
type StreamID uint8

const (
	StreamAll            StreamID = 0
	StreamRawSensors     StreamID = 1
	StreamExtendedStatus StreamID = 2
	StreamRCChannels     StreamID = 3
	StreamRawController  StreamID = 4
	StreamPosition       StreamID = 6
	StreamExtra1         StreamID = 10
	StreamExtra2         StreamID = 11
	StreamExtra3         StreamID = 12
)

// Float64 is std_msgs/Float64
type Float64 struct {
	Data float64 `json:"data"`
}

// Bool is std_msgs/Bool
type Bool struct {
	Data bool `json:"data"`
}

// BatteryStatus is mavros_msgs/BatteryStatus, reduced to the fields in use
type BatteryStatus struct {
	Voltage   float64 `json:"voltage"`
	Current   float64 `json:"current"`
	Remaining float64 `json:"remaining"` // fraction of full charge, -1 when unknown
}

type vector3 struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
	Z float64 `json:"z"`
}

type quaternion struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
	Z float64 `json:"z"`
	W float64 `json:"w"`
}

// TwistStamped is geometry_msgs/TwistStamped, reduced to the linear velocity
type TwistStamped struct {
	Twist struct {
		Linear vector3 `json:"linear"`
	} `json:"twist"`
}

// Velocity returns the linear velocity of the twist
func (m *TwistStamped) Velocity() telemetry.Vector3 {
	return telemetry.Vector3{X: m.Twist.Linear.X, Y: m.Twist.Linear.Y, Z: m.Twist.Linear.Z}
}

// PoseStamped is geometry_msgs/PoseStamped, reduced to the orientation
type PoseStamped struct {
	Pose struct {
		Orientation quaternion `json:"orientation"`
	} `json:"pose"`
}

// Orientation returns the orientation of the pose
func (m *PoseStamped) Orientation() telemetry.Quaternion {
	o := m.Pose.Orientation
	return telemetry.Quaternion{X: o.X, Y: o.Y, Z: o.Z, W: o.W}
}

// ExtendedState is mavros_msgs/ExtendedState
type ExtendedState struct {
	VTOLState   uint8 `json:"vtol_state"`
	LandedState uint8 `json:"landed_state"`
}

// State returns the sub-states as telemetry values
func (m *ExtendedState) State() telemetry.ExtendedState {
	return telemetry.ExtendedState{
		VTOL:   telemetry.VTOLState(m.VTOLState),
		Landed: telemetry.LandedState(m.LandedState),
	}
}

// StreamRateRequest is the request of mavros_msgs/StreamRate
type StreamRateRequest struct {
	StreamID    StreamID `json:"stream_id"`
	MessageRate uint16   `json:"message_rate"`
	OnOff       bool     `json:"on_off"`
}
