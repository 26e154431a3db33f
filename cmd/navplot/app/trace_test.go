package app

import (
	"math"
	"testing"
	"time"

	"github.com/roman-kulish/navdata-relay/internal/flight"
	"github.com/roman-kulish/navdata-relay/internal/telemetry"
)

func record(ts time.Time, altitude int32, battery uint32, status telemetry.Flag, sent bool) *flight.Record {
	return &flight.Record{
		SessionID: 1,
		Timestamp: ts,
		Sent:      sent,
		Navdata: telemetry.Snapshot{
			Header:   telemetry.Header,
			Status:   status,
			Altitude: altitude,
			Battery:  battery,
		},
	}
}

func TestFlightTrace_Update(t *testing.T) {
	t0 := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	trace := NewFlightTrace(nil, t0, t0.Add(10*time.Second), 10, 100)

	trace.Update(record(t0, 2, 90, telemetry.FlagFlying, true))
	trace.Update(record(t0.Add(500*time.Millisecond), 4, 80, 0, false))
	trace.Update(record(t0.Add(9990*time.Millisecond), 7, 20, telemetry.FlagLowBattery, true))
	trace.Update(record(t0.Add(10*time.Second), 1, 30, 0, true))
	trace.Update(record(t0.Add(11*time.Second), 100, 0, 0, true)) // after the range
	trace.Update(record(t0.Add(-time.Second), 100, 0, 0, true))    // before the range

	if trace.Records != 4 || trace.Sent != 3 {
		t.Fatalf("Expected 4 records and 3 sent, got %d and %d", trace.Records, trace.Sent)
	}

	tests := []struct {
		x    int
		want Column
	}{
		{0, Column{Samples: 2, Altitude: 4, Battery: 80, Flying: true, Unsent: 1}},
		{5, Column{}},
		{9, Column{Samples: 2, Altitude: 7, Battery: 20, LowBattery: true}},
	}

	for _, tt := range tests {
		if got := trace.Columns[tt.x]; got != tt.want {
			t.Errorf("Column %d: expected %+v, got %+v", tt.x, tt.want, got)
		}
	}
}

func TestFlightTrace_SingleInstant(t *testing.T) {
	t0 := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	trace := NewFlightTrace(nil, t0, t0, 10, 100)

	trace.Update(record(t0, 3, 50, 0, true))

	if trace.Columns[0].Samples != 1 {
		t.Errorf("Expected the record in the first column, got %+v", trace.Columns)
	}
}

func TestAltitudeHistogram_Bounds(t *testing.T) {
	tests := []struct {
		name      string
		altitudes []int32
		want      AltitudeBounds
	}{
		{"empty", nil, AltitudeBounds{Min: 0, Max: 10, Mean: 5}},
		{"minimum span", []int32{3, 3, 3}, AltitudeBounds{Min: 0, Max: 11, Mean: 3}},
		{"climb", sequence(0, 20, 1), AltitudeBounds{Min: 0, Max: 23.1, Mean: 10}},
		{"below ground", sequence(-5, 5, 1), AltitudeBounds{Min: -6.1, Max: 7.1, Mean: 0}},
		{"spike clipped", append(sequence(10, 10, 200), 1000), AltitudeBounds{Min: 0, Max: 12.1, Mean: 3000.0 / 201}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := NewAltitudeHistogram()
			for _, a := range tt.altitudes {
				h.Update(a)
			}

			got := h.Bounds()
			if !near(got.Min, tt.want.Min) || !near(got.Max, tt.want.Max) || !near(got.Mean, tt.want.Mean) {
				t.Errorf("Expected %+v, got %+v", tt.want, got)
			}
		})
	}
}

func TestAltitudeHistogram_Clear(t *testing.T) {
	h := NewAltitudeHistogram()
	h.Update(50)
	h.Clear()

	if h.Count() != 0 || h.Bounds() != defaultAltitudeBounds() {
		t.Errorf("Expected an empty histogram after Clear")
	}
}

// sequence returns from..to inclusive, or n copies of from when to equals from
func sequence(from, to int32, n int) []int32 {
	var out []int32
	if from == to {
		for i := 0; i < n; i++ {
			out = append(out, from)
		}
		return out
	}
	for a := from; a <= to; a++ {
		out = append(out, a)
	}
	return out
}

func near(a, b float64) bool {
	return math.Abs(a-b) < 1e-9
}
