package telemetry

const (
	// Header is the magic value opening every navdata packet
	Header uint32 = 88776655

	// TagDemo identifies the enclosed payload as the demo layout
	TagDemo uint16 = 0

	// PacketSize is the total size of an encoded packet in bytes
	PacketSize uint16 = 256

	// DefaultBattery is the battery percentage reported until the first battery update
	DefaultBattery uint32 = 100

	// CriticalBattery is the highest percentage still considered a low battery
	CriticalBattery uint32 = 10
)

// ControlState is the drone control mode reported in the navdata packet
type ControlState uint32

const (
	ControlDefault ControlState = iota
	ControlInit
	ControlLanded
	ControlFlying
	ControlHovering
	ControlTest
	ControlTransTakeoff
	ControlTakeoff
	ControlMoving
	ControlLanding
	ControlLooping
)

var controlStateNames = [...]string{
	"default", "init", "landed", "flying", "hovering", "test",
	"trans_takeoff", "takeoff", "moving", "landing", "looping",
}

func (c ControlState) String() string {
	if int(c) < len(controlStateNames) {
		return controlStateNames[c]
	}
	return "unknown"
}

// Snapshot is a consistent copy of every field carried by the navdata packet
type Snapshot struct {
	Header        uint32       `json:"header"`        // Magic header, constant
	Status        Flag         `json:"status"`        // Drone status word
	Sequence      uint32       `json:"sequence"`      // Packet sequence number, wraps on overflow
	VisionDefined bool         `json:"visionDefined"` // Vision flag, always false in the demo variant
	Tag           uint16       `json:"tag"`           // Payload tag
	Size          uint16       `json:"size"`          // Packet size in bytes
	ControlState  ControlState `json:"controlState"`  // Control mode
	Battery       uint32       `json:"battery"`       // Battery level in percent
	Theta         float32      `json:"theta"`         // Pitch
	Phi           float32      `json:"phi"`           // Roll
	Psi           float32      `json:"psi"`           // Yaw
	Altitude      int32        `json:"altitude"`      // Relative altitude
	Vx            float32      `json:"vx"`            // Linear velocity, x-axis
	Vy            float32      `json:"vy"`            // Linear velocity, y-axis
	Vz            float32      `json:"vz"`            // Linear velocity, z-axis
}

// Vector3 is a linear velocity sample
type Vector3 struct {
	X, Y, Z float64
}

// Quaternion is an orientation sample
type Quaternion struct {
	X, Y, Z, W float64
}

// VTOLState is the airborne transition sub-state of the flight controller
type VTOLState uint8

const (
	VTOLUndefined VTOLState = iota
	VTOLTransitionToFW
	VTOLTransitionToMC
	VTOLMulticopter
	VTOLFixedWing
)

// LandedState is the landed sub-state of the flight controller
type LandedState uint8

const (
	LandedUndefined LandedState = iota
	LandedOnGround
	LandedInAir
	LandedTakeoff
	LandedLanding
)

// ExtendedState pairs the two flight sub-states reported by the flight controller
type ExtendedState struct {
	VTOL   VTOLState
	Landed LandedState
}
