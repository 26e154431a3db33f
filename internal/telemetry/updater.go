package telemetry

import (
	"errors"
	"fmt"
	"log/slog"
	"math"
)

// ErrBatteryOutOfRange is returned when a battery update falls outside 0-100%
var ErrBatteryOutOfRange = errors.New("battery level out of range")

// SetAltitude stores the relative altitude, truncated towards zero
func (s *State) SetAltitude(altitude float64) {
	s.logger.Debug("altitude update", slog.Float64("value", altitude))

	s.Mutate(func(data *Snapshot) {
		data.Altitude = int32(altitude)
	})
}

// SetBattery stores the remaining battery given as a fraction of full charge.
// Levels at or below CriticalBattery raise FlagLowBattery, higher levels clear
// it. Values outside [0, 1] are rejected and the previous level is retained.
func (s *State) SetBattery(remaining float64) error {
	percent := math.Round(remaining * 100)
	if math.IsNaN(percent) || percent < 0 || percent > 100 {
		s.logger.Warn("rejected battery update", slog.Float64("remaining", remaining))
		return fmt.Errorf("%w: %v", ErrBatteryOutOfRange, remaining)
	}

	level := uint32(percent)
	s.logger.Debug("battery update", slog.Uint64("percent", uint64(level)))

	s.Mutate(func(data *Snapshot) {
		data.Battery = level
		if level > CriticalBattery {
			data.Status = data.Status.Without(FlagLowBattery)
		} else {
			data.Status = data.Status.With(FlagLowBattery)
		}
	})

	return nil
}

// SetVelocity stores the linear velocity
func (s *State) SetVelocity(v Vector3) {
	s.logger.Debug("velocity update", slog.Float64("x", v.X), slog.Float64("y", v.Y), slog.Float64("z", v.Z))

	s.Mutate(func(data *Snapshot) {
		data.Vx = float32(v.X)
		data.Vy = float32(v.Y)
		data.Vz = float32(v.Z)
	})
}

// SetOrientation converts q to pitch, roll and yaw and stores them in radians.
// Near gimbal lock the roll and yaw split is arbitrary.
func (s *State) SetOrientation(q Quaternion) {
	pitch, roll, yaw := EulerZYX(q)

	s.logger.Debug("orientation update",
		slog.Float64("pitch", pitch),
		slog.Float64("roll", roll),
		slog.Float64("yaw", yaw),
	)

	s.Mutate(func(data *Snapshot) {
		data.Theta = float32(pitch)
		data.Phi = float32(roll)
		data.Psi = float32(yaw)
	})
}

// SetExtendedState maps the flight controller sub-states onto the flying flag
// and the control state. Branches are evaluated in order and the first match
// wins: an airborne VTOL state, then a landed state, then a takeoff, then a
// landing. Contradictory combinations are logged and still applied.
func (s *State) SetExtendedState(e ExtendedState) {
	switch {
	case e.VTOL > 0 && e.Landed > 0:
		s.logger.Warn("drone reported as flying and landed at the same time",
			slog.Int("vtolState", int(e.VTOL)),
			slog.Int("landedState", int(e.Landed)),
		)
	case e.VTOL == 0 && e.Landed == 0:
		s.logger.Warn("drone reported as neither flying nor landed",
			slog.Int("vtolState", int(e.VTOL)),
			slog.Int("landedState", int(e.Landed)),
		)
	}

	s.Mutate(func(data *Snapshot) {
		switch {
		case e.VTOL != VTOLUndefined:
			data.Status = data.Status.With(FlagFlying)
			data.ControlState = ControlFlying
		case e.Landed == LandedOnGround || e.Landed == LandedInAir:
			data.Status = data.Status.Without(FlagFlying)
			data.ControlState = ControlLanded
		case e.Landed == LandedTakeoff:
			data.ControlState = ControlTakeoff
		case e.Landed == LandedLanding:
			data.ControlState = ControlLanding
		}
	})
}

// AckCommand raises the command acknowledgment flag until the next packet is encoded
func (s *State) AckCommand() {
	s.logger.Debug("command acknowledgment received")
	s.SetFlag(FlagCommandAck)
}

// EulerZYX converts a quaternion to Tait-Bryan angles using the yaw-pitch-roll
// (Z-Y-X) convention. The quaternion is normalised first; a zero quaternion
// yields zero angles.
func EulerZYX(q Quaternion) (pitch, roll, yaw float64) {
	n := math.Sqrt(q.X*q.X + q.Y*q.Y + q.Z*q.Z + q.W*q.W)
	if n == 0 {
		return 0, 0, 0
	}
	x, y, z, w := q.X/n, q.Y/n, q.Z/n, q.W/n

	sinPitch := 2 * (w*y - x*z)
	pitch = math.Asin(max(-1, min(1, sinPitch)))
	roll = math.Atan2(2*(w*x+y*z), 1-2*(x*x+y*y))
	yaw = math.Atan2(2*(w*z+x*y), 1-2*(y*y+z*z))

	return pitch, roll, yaw
}
