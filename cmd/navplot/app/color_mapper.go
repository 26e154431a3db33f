package app

import (
	"image/color"
	"math"

	"github.com/roman-kulish/navdata-relay/internal/telemetry"
)

// ColorTheme represents a predefined color scheme for battery visualization.
// Themes are evaluated on the battery level normalized to [0-1].
type ColorTheme string

const (
	BatteryTheme   ColorTheme = "battery"   // Red to green transition
	ClassicTheme   ColorTheme = "classic"   // Red to blue transition
	GrayscaleTheme ColorTheme = "grayscale" // Black to white transition
	JungleTheme    ColorTheme = "jungle"    // Yellow to dark green transition
	ThermalTheme   ColorTheme = "thermal"   // Black to red to yellow to white
	MarineTheme    ColorTheme = "marine"    // Deep blue to cyan to white

	DefaultColorMapSize = 101 // One color per battery percent
)

var validThemes = map[ColorTheme]struct{}{
	BatteryTheme:   {},
	ClassicTheme:   {},
	GrayscaleTheme: {},
	JungleTheme:    {},
	ThermalTheme:   {},
	MarineTheme:    {},
}

// NoDataColor is used for columns without records
var NoDataColor = color.RGBA{R: 0xe0, G: 0xe0, B: 0xe0, A: 0xff}

// ColorMapper maps battery percentages to colors of a theme
type ColorMapper struct {
	colorMap  []color.Color // Pre-computed colors
	themeName ColorTheme
	size      int
}

// NewColorMapper creates a new color mapper with specified theme.
// Uses default size (101) for the color map.
func NewColorMapper(theme ColorTheme) *ColorMapper {
	return NewColorMapperWithSize(theme, DefaultColorMapSize)
}

// NewColorMapperWithSize creates a new color mapper with specified size.
// Size determines the number of pre-computed colors in the map.
func NewColorMapperWithSize(theme ColorTheme, size int) *ColorMapper {
	if size <= 1 {
		size = DefaultColorMapSize
	}

	fn := getColorTheme(theme)
	cm := &ColorMapper{
		colorMap:  make([]color.Color, size),
		themeName: theme,
		size:      size,
	}
	for i := 0; i < size; i++ {
		cm.colorMap[i] = fn(float64(i) / float64(size-1))
	}
	return cm
}

// GetColor returns a color for the given battery percentage
func (cm *ColorMapper) GetColor(battery uint32) color.Color {
	full := float64(telemetry.DefaultBattery)
	level := min(float64(battery), full) / full
	return cm.colorMap[int(math.Round(level*float64(cm.size-1)))]
}

// ThemeName returns the current color theme name
func (cm *ColorMapper) ThemeName() ColorTheme {
	return cm.themeName
}

// HSV represents a color in HSV (Hue, Saturation, Value) color space
type HSV struct {
	H float64 // Hue angle in degrees [0-360]
	S float64 // Saturation [0-1]
	V float64 // Value/Brightness [0-1]
}

// RGB converts HSV to RGB color space
func (hsv HSV) RGB() color.Color {
	if hsv.S <= 0.0 {
		v := uint8(hsv.V * 255)
		return color.RGBA{R: v, G: v, B: v, A: 255}
	}

	h := math.Mod(hsv.H, 360)
	if h < 0 {
		h += 360
	}
	h /= 60

	i := int(h)
	f := h - float64(i)

	v := uint8(hsv.V * 255)
	p := uint8((hsv.V * (1 - hsv.S)) * 255)
	q := uint8((hsv.V * (1 - (hsv.S * f))) * 255)
	t := uint8((hsv.V * (1 - (hsv.S * (1 - f)))) * 255)

	switch i {
	case 0:
		return color.RGBA{R: v, G: t, B: p, A: 255}
	case 1:
		return color.RGBA{R: q, G: v, B: p, A: 255}
	case 2:
		return color.RGBA{R: p, G: v, B: t, A: 255}
	case 3:
		return color.RGBA{R: p, G: q, B: v, A: 255}
	case 4:
		return color.RGBA{R: t, G: p, B: v, A: 255}
	default: // case 5:
		return color.RGBA{R: v, G: p, B: q, A: 255}
	}
}

func getColorTheme(theme ColorTheme) func(float64) color.Color {
	switch theme {
	case ClassicTheme:
		return func(level float64) color.Color {
			return HSV{
				H: level * 240,
				S: 1.0 - (level * 0.1),
				V: 0.5 + (math.Pow(level, 0.7) * 0.5),
			}.RGB()
		}

	case GrayscaleTheme:
		return func(level float64) color.Color {
			v := uint8(math.Pow(level, 0.7) * 255)
			return color.RGBA{R: v, G: v, B: v, A: 255}
		}

	case JungleTheme:
		return func(level float64) color.Color {
			return HSV{
				H: 60 + (level * 60),
				S: 1.0,
				V: 1.0 - (math.Pow(level, 0.6) * 0.6),
			}.RGB()
		}

	case ThermalTheme:
		return func(level float64) color.Color {
			if level < 0.33 {
				return color.RGBA{
					R: uint8((level * 3) * 255),
					A: 255,
				}
			}
			if level < 0.66 {
				return color.RGBA{
					R: 255,
					G: uint8(((level - 0.33) * 3) * 255),
					A: 255,
				}
			}
			return color.RGBA{
				R: 255,
				G: 255,
				B: uint8(min(1, (level-0.66)*3) * 255),
				A: 255,
			}
		}

	case MarineTheme:
		return func(level float64) color.Color {
			return HSV{
				H: 240 - (level * 60),
				S: 1.0 - (level * 0.8),
				V: 0.3 + (math.Pow(level, 0.6) * 0.7),
			}.RGB()
		}

	default: // BatteryTheme
		return func(level float64) color.Color {
			// critical levels stay red, the hue then runs through amber to green
			critical := float64(telemetry.CriticalBattery) / float64(telemetry.DefaultBattery)
			if level <= critical {
				return HSV{H: 0, S: 1.0, V: 0.9}.RGB()
			}
			return HSV{
				H: 120 * (level - critical) / (1 - critical),
				S: 0.85,
				V: 0.9,
			}.RGB()
		}
	}
}
