package storage

import (
	"context"

	"github.com/roman-kulish/navdata-relay/internal/flight"
)

// Store provides an interface for managing the navdata flight recorder.
// It handles relay sessions and the navdata packets built during them.
// All operations that write to the database should be considered atomic.
type Store interface {
	// CreateSession initializes a new relay session and returns its unique identifier.
	//
	// Parameters:
	//   - ctx: Context for cancellation and timeouts
	//   - variant: Navdata variant streamed during the session (e.g., "demo")
	//   - destination: Address of the navdata consumer
	//   - config: Optional relay configuration. Can be string, []byte, or JSON-serializable object
	//
	// Returns:
	//   - sessionID: Unique identifier for the created session
	//   - error: If session creation fails or context is cancelled
	CreateSession(ctx context.Context, variant, destination string, config any) (sessionID int64, err error)

	// Session retrieves a specific relay session by its ID.
	Session(ctx context.Context, id int64) (session *flight.Session, err error)

	// Sessions returns all relay sessions ordered by start time.
	Sessions(ctx context.Context) (sessions []*flight.Session, err error)

	// StoreNavdata saves a batch of navdata records in a single transaction.
	//
	// Parameters:
	//   - ctx: Context for cancellation and timeouts
	//   - records: Records to store, each carrying its session ID
	//
	// Returns:
	//   - error: If storage fails or context is cancelled
	StoreNavdata(ctx context.Context, records []flight.Record) error

	// Summary aggregates the records of a session.
	Summary(ctx context.Context, sessionID int64) (*flight.Summary, error)

	// Close releases all database connections and resources.
	// It is safe to call Close multiple times.
	Close() error
}

// NavdataReader iterates over the navdata records of a session
type NavdataReader interface {
	// Session returns metadata about the session this reader is accessing.
	Session() *flight.Session

	// Next advances the iterator and returns true if there is another record
	// to read, false when the iteration is complete or if an error occurred.
	Next(context.Context) bool

	// Current returns the current record in the iteration.
	Current() *flight.Record

	// Error returns any error that occurred during iteration.
	Error() error

	// Close releases any resources associated with the reader.
	Close() error
}
