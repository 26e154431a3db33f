package navdata

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/roman-kulish/navdata-relay/internal/telemetry"
)

const (
	// DefaultPort is the UDP port navdata consumers listen on
	DefaultPort = 5554

	// DemoRate is the packet rate of the demo variant in Hz
	DemoRate = 15

	// FullRate is the packet rate of the full variant in Hz
	FullRate = 200
)

var (
	// ErrUnsupportedVariant is returned for a variant without an encoder
	ErrUnsupportedVariant = errors.New("unsupported navdata variant")

	// ErrShortPacket is returned when decoding fewer than PacketSize bytes
	ErrShortPacket = errors.New("short navdata packet")

	// ErrBadHeader is returned when decoding a packet without the navdata header
	ErrBadHeader = errors.New("bad navdata header")
)

// Variant selects the navdata packet layout
type Variant string

const (
	VariantDemo Variant = "demo"
	VariantFull Variant = "full"
)

// ParseVariant parses a variant name, case-insensitively
func ParseVariant(s string) (Variant, error) {
	switch v := Variant(strings.ToLower(strings.TrimSpace(s))); v {
	case VariantDemo, VariantFull:
		return v, nil
	default:
		return "", fmt.Errorf("%w: '%s'", ErrUnsupportedVariant, s)
	}
}

// Rate returns the default packet rate of the variant in Hz
func (v Variant) Rate() int {
	if v == VariantFull {
		return FullRate
	}
	return DemoRate
}

// Period returns the tick period for the given rate, falling back to the
// variant default when rate is not positive.
func (v Variant) Period(rate int) time.Duration {
	if rate <= 0 {
		rate = v.Rate()
	}
	return time.Second / time.Duration(rate)
}

// InitialStatus returns the status word a relay of this variant starts with
func (v Variant) InitialStatus() telemetry.Flag {
	if v == VariantDemo {
		return telemetry.FlagBootstrap
	}
	return 0
}

// Encoder serialises a telemetry snapshot into a navdata packet
type Encoder interface {
	Encode(snap telemetry.Snapshot) []byte
}

// EncoderFunc adapts a function to the Encoder interface
type EncoderFunc func(snap telemetry.Snapshot) []byte

func (f EncoderFunc) Encode(snap telemetry.Snapshot) []byte {
	return f(snap)
}

// NewEncoder returns the encoder for variant
func NewEncoder(variant Variant) (Encoder, error) {
	switch variant {
	case VariantDemo:
		return EncoderFunc(EncodeDemo), nil
	default:
		return nil, fmt.Errorf("%w: '%s'", ErrUnsupportedVariant, variant)
	}
}
