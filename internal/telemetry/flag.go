package telemetry

import (
	"strings"
)

// Flag is a set of bits of the drone status word. Bit positions are fixed by
// the navdata wire format.
type Flag uint32

const (
	FlagFlying     Flag = 1 << 0  // drone is airborne
	FlagCommandAck Flag = 1 << 5  // a command was received, visible in one packet only
	FlagBootstrap  Flag = 1 << 10 // navdata is not yet streaming
	FlagLowBattery Flag = 1 << 14 // battery level is critical
)

var flagNames = []struct {
	flag Flag
	name string
}{
	{FlagFlying, "flying"},
	{FlagCommandAck, "command_ack"},
	{FlagBootstrap, "bootstrap"},
	{FlagLowBattery, "low_battery"},
}

// Has reports whether all bits of f are set
func (s Flag) Has(f Flag) bool {
	return s&f == f
}

// With returns s with the bits of f set
func (s Flag) With(f Flag) Flag {
	return s | f
}

// Without returns s with the bits of f cleared
func (s Flag) Without(f Flag) Flag {
	return s &^ f
}

func (s Flag) String() string {
	var names []string
	for _, n := range flagNames {
		if s.Has(n.flag) {
			names = append(names, n.name)
		}
	}
	if len(names) == 0 {
		return "none"
	}
	return strings.Join(names, "|")
}
