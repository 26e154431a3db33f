package app

import (
	"time"

	"github.com/roman-kulish/navdata-relay/internal/flight"
	"github.com/roman-kulish/navdata-relay/internal/telemetry"
)

// Column aggregates the records falling into one pixel column of the plot
type Column struct {
	Samples    int
	Altitude   int32  // Highest altitude in metres
	Battery    uint32 // Lowest battery percentage
	Flying     bool   // At least one record had the flying flag
	LowBattery bool   // At least one record had the low battery flag
	Unsent     int    // Records that failed to send
}

type FlightTrace struct {
	Session                      *flight.Session
	Width, Height                int
	TimestampStart, TimestampEnd time.Time
	Records, Sent                int64
	Altitude                     *AltitudeHistogram
	Columns                      []Column
}

// NewFlightTrace creates a trace covering start to end with one column per
// pixel of width
func NewFlightTrace(session *flight.Session, start, end time.Time, width, height int) *FlightTrace {
	return &FlightTrace{
		Session:        session,
		Width:          width,
		Height:         height,
		TimestampStart: start,
		TimestampEnd:   end,
		Altitude:       NewAltitudeHistogram(),
		Columns:        make([]Column, width),
	}
}

// Update adds a record to its column. Records outside the time range are ignored.
func (t *FlightTrace) Update(record *flight.Record) {
	x := t.columnOf(record.Timestamp)
	if x < 0 {
		return
	}

	nav := record.Navdata
	col := &t.Columns[x]
	if col.Samples == 0 {
		col.Altitude = nav.Altitude
		col.Battery = nav.Battery
	} else {
		col.Altitude = max(col.Altitude, nav.Altitude)
		col.Battery = min(col.Battery, nav.Battery)
	}
	col.Samples++
	col.Flying = col.Flying || nav.Status.Has(telemetry.FlagFlying)
	col.LowBattery = col.LowBattery || nav.Status.Has(telemetry.FlagLowBattery)

	t.Records++
	if record.Sent {
		t.Sent++
	} else {
		col.Unsent++
	}

	t.Altitude.Update(nav.Altitude)
}

// Bounds returns the altitude range of the plot
func (t *FlightTrace) Bounds() AltitudeBounds {
	return t.Altitude.Bounds()
}

func (t *FlightTrace) columnOf(ts time.Time) int {
	span := t.TimestampEnd.Sub(t.TimestampStart)
	offset := ts.Sub(t.TimestampStart)
	if offset < 0 || offset > span {
		return -1
	}
	if span == 0 {
		return 0
	}
	return min(int(int64(offset)*int64(t.Width)/int64(span)), t.Width-1)
}
