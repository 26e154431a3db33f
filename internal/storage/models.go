package storage

import (
	"time"
)

type sessionData struct {
	ID          int64
	StartTime   time.Time
	Variant     string
	Destination string
}

type navdataData struct {
	SessionID int64
	Timestamp time.Time
	Sequence  int64
	State     int64
	CtrlState int64
	Battery   int64
	Theta     float64
	Phi       float64
	Psi       float64
	Altitude  int64
	Vx        float64
	Vy        float64
	Vz        float64
	Sent      bool
}
