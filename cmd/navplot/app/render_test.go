package app

import (
	"image"
	"image/color"
	"testing"
	"time"

	"github.com/roman-kulish/navdata-relay/internal/flight"
	"github.com/roman-kulish/navdata-relay/internal/telemetry"
)

func sameColor(a, b color.Color) bool {
	r1, g1, b1, a1 := a.RGBA()
	r2, g2, b2, a2 := b.RGBA()
	return r1 == r2 && g1 == g2 && b1 == b2 && a1 == a2
}

// levelTrace holds 100 columns at 5 m and 50% battery; the first half is
// flying and the first column failed to send
func levelTrace() *FlightTrace {
	t0 := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	session := &flight.Session{ID: 1, StartTime: t0, Variant: "demo", Destination: "192.168.1.2:5554"}
	trace := NewFlightTrace(session, t0, t0.Add(99*time.Second), 100, 100)

	for i := 0; i < 100; i++ {
		var status telemetry.Flag
		if i < 50 {
			status = telemetry.FlagFlying
		}
		trace.Update(record(t0.Add(time.Duration(i)*time.Second), 5, 50, status, i != 0))
	}
	return trace
}

func TestTraceRenderer_Plot(t *testing.T) {
	r, err := NewTraceRenderer(RenderConfig{NoAnnotations: true})
	if err != nil {
		t.Fatalf("NewTraceRenderer failed: %v", err)
	}

	img, err := r.Render(levelTrace())
	if err != nil {
		t.Fatalf("Render failed: %v", err)
	}

	if got, want := img.Bounds(), image.Rect(0, 0, 100, 100+flightStripMargin+flightStripHeight); got != want {
		t.Fatalf("Expected bounds %v, got %v", want, got)
	}

	// bounds are 0 to 11 m, so 5 m lands on row 99 - round(5/11*99) = 54
	fill := NewColorMapper(BatteryTheme).GetColor(50)
	tests := []struct {
		name string
		x, y int
		want color.Color
	}{
		{"above trace", 30, 20, color.White},
		{"trace", 30, 54, traceColor},
		{"battery fill", 30, 80, fill},
		{"ground", 30, 99, fill},
		{"flying strip", 10, 100 + flightStripMargin, flyingColor},
		{"landed strip", 70, 100 + flightStripMargin, color.White},
		{"unsent marker", 0, 0, unsentColor},
		{"sent column", 1, 0, color.White},
	}

	for _, tt := range tests {
		if got := img.At(tt.x, tt.y); !sameColor(got, tt.want) {
			t.Errorf("%s: pixel (%d,%d) expected %v, got %v", tt.name, tt.x, tt.y, tt.want, got)
		}
	}
}

func TestTraceRenderer_Annotated(t *testing.T) {
	r, err := NewTraceRenderer(RenderConfig{Location: time.UTC})
	if err != nil {
		t.Fatalf("NewTraceRenderer failed: %v", err)
	}

	img, err := r.Render(levelTrace())
	if err != nil {
		t.Fatalf("Render failed: %v", err)
	}

	size := img.Bounds().Size()
	if size.X != 100+defaultLeftBorder+defaultRightBorder || size.Y != 100+defaultTopBorder+defaultBottomBorder {
		t.Fatalf("Unexpected image size %v", size)
	}

	// text in the info bar
	var drawn bool
	for y := size.Y - 30; y < size.Y && !drawn; y++ {
		for x := 0; x < size.X; x++ {
			if !sameColor(img.At(x, y), color.White) {
				drawn = true
				break
			}
		}
	}
	if !drawn {
		t.Errorf("Expected the info bar to be drawn")
	}
}

func TestNewTraceRenderer_InvalidTheme(t *testing.T) {
	if _, err := NewTraceRenderer(RenderConfig{ColorTheme: "neon"}); err == nil {
		t.Errorf("Expected an error for an unknown theme")
	}
}

func TestColorMapper(t *testing.T) {
	battery := NewColorMapper(BatteryTheme)

	if got := battery.GetColor(telemetry.CriticalBattery); !sameColor(got, HSV{H: 0, S: 1, V: 0.9}.RGB()) {
		t.Errorf("Expected critical battery to be red, got %v", got)
	}
	if !sameColor(battery.GetColor(250), battery.GetColor(100)) {
		t.Errorf("Expected levels above 100 to be clamped")
	}
	if r, g, _, _ := battery.GetColor(100).RGBA(); g <= r {
		t.Errorf("Expected a full battery to be green")
	}

	gray := NewColorMapper(GrayscaleTheme)
	if !sameColor(gray.GetColor(0), color.Black) || !sameColor(gray.GetColor(100), color.White) {
		t.Errorf("Expected grayscale to run from black to white")
	}
}

func TestCalculateNiceSteps(t *testing.T) {
	if got := calculateNiceTimeStep(90*time.Second, 1200); got != 15*time.Second {
		t.Errorf("Expected 15s time step, got %s", got)
	}
	if got := calculateNiceTimeStep(48*time.Hour, 1200); got != 6*time.Hour {
		t.Errorf("Expected 6h time step, got %s", got)
	}
	if got := calculateNiceAltitudeStep(110, 400); got != 20 {
		t.Errorf("Expected 20 m altitude step, got %v", got)
	}
}
