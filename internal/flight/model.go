package flight

import (
	"time"

	"github.com/roman-kulish/navdata-relay/internal/telemetry"
)

// Session represents a single relay run. Each session captures metadata about
// when the relay started and where it streamed navdata to.
type Session struct {
	ID          int64     `json:"ID"`                      // Unique identifier for the session
	StartTime   time.Time `json:"startTime"`               // When the relay started streaming
	Variant     string    `json:"variant"`                 // Navdata variant (e.g., "demo")
	Destination string    `json:"destination"`             // Navdata consumer address
	Config      *string   `json:"config,string,omitempty"` // Optional relay configuration in JSON format
}

// Record is one navdata packet as it was built by the relay
type Record struct {
	SessionID int64              `json:"sessionID"` // Session the packet belongs to
	Timestamp time.Time          `json:"timestamp"` // When the packet was built
	Sent      bool               `json:"sent"`      // Whether the datagram left the host
	Navdata   telemetry.Snapshot `json:"navdata"`   // Packet contents
}

// Summary aggregates the records of a session
type Summary struct {
	Records     int64     `json:"records"`     // Number of recorded packets
	Sent        int64     `json:"sent"`        // Number of packets sent successfully
	First       time.Time `json:"first"`       // Timestamp of the first packet
	Last        time.Time `json:"last"`        // Timestamp of the last packet
	MinAltitude int32     `json:"minAltitude"` // Lowest reported altitude
	MaxAltitude int32     `json:"maxAltitude"` // Highest reported altitude
}

// Duration returns the time covered by the records
func (s *Summary) Duration() time.Duration {
	return s.Last.Sub(s.First)
}

// Dropped returns the number of packets that failed to send
func (s *Summary) Dropped() int64 {
	return s.Records - s.Sent
}
