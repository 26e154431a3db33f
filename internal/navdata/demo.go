package navdata

import (
	"encoding/binary"
	"fmt"
	"math"

	"github.com/roman-kulish/navdata-relay/internal/telemetry"
)

// Byte offsets of the demo packet fields. Everything from offsetPadding to
// the end of the packet is zero.
const (
	offsetHeader   = 0
	offsetStatus   = 4
	offsetSequence = 8
	offsetVision   = 12 // one byte, followed by one byte of alignment
	offsetTag      = 14
	offsetSize     = 16 // followed by two bytes of alignment
	offsetControl  = 20
	offsetBattery  = 24
	offsetTheta    = 28
	offsetPhi      = 32
	offsetPsi      = 36
	offsetAltitude = 40
	offsetVx       = 44
	offsetVy       = 48
	offsetVz       = 52
	offsetPadding  = 56
)

// packet size as an int, for slicing
const size = int(telemetry.PacketSize)

// byteOrder is the host byte order. Navdata consumers read the packet as a
// raw struct on the same architecture family, so no conversion takes place.
var byteOrder = binary.NativeEndian

// EncodeDemo serialises snap into a 256-byte demo navdata packet
func EncodeDemo(snap telemetry.Snapshot) []byte {
	return AppendDemo(make([]byte, 0, size), snap)
}

// AppendDemo appends the demo navdata packet for snap to buf
func AppendDemo(buf []byte, snap telemetry.Snapshot) []byte {
	start := len(buf)
	buf = append(buf, make([]byte, size)...)
	p := buf[start:]

	byteOrder.PutUint32(p[offsetHeader:], snap.Header)
	byteOrder.PutUint32(p[offsetStatus:], uint32(snap.Status))
	byteOrder.PutUint32(p[offsetSequence:], snap.Sequence)
	if snap.VisionDefined {
		p[offsetVision] = 1
	}
	byteOrder.PutUint16(p[offsetTag:], snap.Tag)
	byteOrder.PutUint16(p[offsetSize:], snap.Size)
	byteOrder.PutUint32(p[offsetControl:], uint32(snap.ControlState))
	byteOrder.PutUint32(p[offsetBattery:], snap.Battery)
	putFloat32(p[offsetTheta:], snap.Theta)
	putFloat32(p[offsetPhi:], snap.Phi)
	putFloat32(p[offsetPsi:], snap.Psi)
	byteOrder.PutUint32(p[offsetAltitude:], uint32(snap.Altitude))
	putFloat32(p[offsetVx:], snap.Vx)
	putFloat32(p[offsetVy:], snap.Vy)
	putFloat32(p[offsetVz:], snap.Vz)

	return buf
}

// Decode parses a demo navdata packet
func Decode(p []byte) (telemetry.Snapshot, error) {
	var snap telemetry.Snapshot

	if len(p) < size {
		return snap, fmt.Errorf("%w: %d bytes", ErrShortPacket, len(p))
	}
	if h := byteOrder.Uint32(p[offsetHeader:]); h != telemetry.Header {
		return snap, fmt.Errorf("%w: %d", ErrBadHeader, h)
	}

	snap.Header = byteOrder.Uint32(p[offsetHeader:])
	snap.Status = telemetry.Flag(byteOrder.Uint32(p[offsetStatus:]))
	snap.Sequence = byteOrder.Uint32(p[offsetSequence:])
	snap.VisionDefined = p[offsetVision] != 0
	snap.Tag = byteOrder.Uint16(p[offsetTag:])
	snap.Size = byteOrder.Uint16(p[offsetSize:])
	snap.ControlState = telemetry.ControlState(byteOrder.Uint32(p[offsetControl:]))
	snap.Battery = byteOrder.Uint32(p[offsetBattery:])
	snap.Theta = float32frombits(p[offsetTheta:])
	snap.Phi = float32frombits(p[offsetPhi:])
	snap.Psi = float32frombits(p[offsetPsi:])
	snap.Altitude = int32(byteOrder.Uint32(p[offsetAltitude:]))
	snap.Vx = float32frombits(p[offsetVx:])
	snap.Vy = float32frombits(p[offsetVy:])
	snap.Vz = float32frombits(p[offsetVz:])

	return snap, nil
}

func putFloat32(b []byte, v float32) {
	byteOrder.PutUint32(b, math.Float32bits(v))
}

func float32frombits(b []byte) float32 {
	return math.Float32frombits(byteOrder.Uint32(b))
}
