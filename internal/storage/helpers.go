package storage

import (
	"database/sql/driver"
	"fmt"
	"time"

	"github.com/mattn/go-sqlite3"

	"github.com/roman-kulish/navdata-relay/internal/flight"
	"github.com/roman-kulish/navdata-relay/internal/telemetry"
)

func closeWithError(cl interface{ Close() error }, err *error) {
	if cErr := cl.Close(); cErr != nil && *err == nil {
		*err = cErr
	}
}

func rollbackWithError(rb interface{ Rollback() error }, err *error) {
	if cErr := rb.Rollback(); cErr != nil && *err == nil {
		*err = cErr
	}
}

func toNavdataData(r *flight.Record) *navdataData {
	n := r.Navdata

	return &navdataData{
		SessionID: r.SessionID,
		Timestamp: r.Timestamp.UTC(),
		Sequence:  int64(n.Sequence),
		State:     int64(n.Status),
		CtrlState: int64(n.ControlState),
		Battery:   int64(n.Battery),
		Theta:     float64(n.Theta),
		Phi:       float64(n.Phi),
		Psi:       float64(n.Psi),
		Altitude:  int64(n.Altitude),
		Vx:        float64(n.Vx),
		Vy:        float64(n.Vy),
		Vz:        float64(n.Vz),
		Sent:      r.Sent,
	}
}

func (d *navdataData) toRecord() flight.Record {
	return flight.Record{
		SessionID: d.SessionID,
		Timestamp: d.Timestamp,
		Sent:      d.Sent,
		Navdata: telemetry.Snapshot{
			Header:       telemetry.Header,
			Status:       telemetry.Flag(d.State),
			Sequence:     uint32(d.Sequence),
			Tag:          telemetry.TagDemo,
			Size:         telemetry.PacketSize,
			ControlState: telemetry.ControlState(d.CtrlState),
			Battery:      uint32(d.Battery),
			Theta:        float32(d.Theta),
			Phi:          float32(d.Phi),
			Psi:          float32(d.Psi),
			Altitude:     int32(d.Altitude),
			Vx:           float32(d.Vx),
			Vy:           float32(d.Vy),
			Vz:           float32(d.Vz),
		},
	}
}

// sqliteDatetime scans timestamps returned by aggregate functions. SQLite
// drops the declared column type for MIN() and MAX(), so the driver hands the
// value back as text rather than time.Time.
type sqliteDatetime struct {
	Datetime time.Time
	Valid    bool
}

func (t *sqliteDatetime) Scan(value any) error {
	switch v := value.(type) {
	case nil:
		t.Datetime, t.Valid = time.Time{}, false
		return nil

	case time.Time:
		t.Datetime, t.Valid = v, true
		return nil

	case string:
		return t.parse(v)

	case []byte:
		return t.parse(string(v))

	default:
		return fmt.Errorf("unsupported datetime type %T", value)
	}
}

func (t *sqliteDatetime) parse(s string) error {
	for _, layout := range sqlite3.SQLiteTimestampFormats {
		if ts, err := time.ParseInLocation(layout, s, time.UTC); err == nil {
			t.Datetime, t.Valid = ts, true
			return nil
		}
	}
	return fmt.Errorf("invalid datetime '%s'", s)
}

func (t sqliteDatetime) Value() (driver.Value, error) {
	if !t.Valid {
		return nil, nil
	}
	return t.Datetime, nil
}
