package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"math"
	"time"

	"github.com/roman-kulish/navdata-relay/internal/flight"
)

const defaultBatchSize = 1000

// ErrNoData indicates either that no navdata exists for the given parameters,
// or that all available data has been read from the reader.
var ErrNoData = errors.New("no data available")

// ReaderOption configures a SqliteNavdataReader with specific filtering criteria.
type ReaderOption func(*SqliteNavdataReader)

// WithTimeRange limits the reader to records built between start and end, inclusive.
func WithTimeRange(start, end time.Time) ReaderOption {
	return func(r *SqliteNavdataReader) {
		r.startTime = &start
		r.endTime = &end
	}
}

// WithSequenceRange limits the reader to records with sequence numbers
// between first and last, inclusive.
func WithSequenceRange(first, last uint32) ReaderOption {
	return func(r *SqliteNavdataReader) {
		r.firstSeq = &first
		r.lastSeq = &last
	}
}

// WithBatchSize sets the number of records fetched per query.
func WithBatchSize(n int) ReaderOption {
	return func(r *SqliteNavdataReader) {
		r.batchSize = n
	}
}

// SqliteNavdataReader implements NavdataReader for SQLite database backend.
type SqliteNavdataReader struct {
	db *sql.DB

	sessionID int64
	session   *flight.Session
	batchSize int

	startTime *time.Time // Optional start of time range filter
	endTime   *time.Time // Optional end of time range filter
	firstSeq  *uint32    // Optional first sequence number
	lastSeq   *uint32    // Optional last sequence number

	page    []flight.Record
	pos     int
	offset  int
	current *flight.Record
	done    bool
	err     error
}

var _ NavdataReader = (*SqliteNavdataReader)(nil)

func newSqliteNavdataReader(ctx context.Context, db *sql.DB, sessionID int64, opts ...ReaderOption) (*SqliteNavdataReader, error) {
	r := &SqliteNavdataReader{
		db:        db,
		sessionID: sessionID,
		batchSize: defaultBatchSize,
	}
	for _, opt := range opts {
		opt(r)
	}
	if err := r.init(ctx); err != nil {
		return nil, fmt.Errorf("initializing reader: %w", err)
	}
	return r, nil
}

func (r *SqliteNavdataReader) init(ctx context.Context) error {
	if r.db == nil {
		return errors.New("database connection required")
	}
	if r.sessionID <= 0 {
		return errors.New("session ID required")
	}

	steps := []struct {
		msg string
		fn  func(context.Context) error
	}{
		{msg: "loading session", fn: r.loadSession},
		{msg: "initializing filters", fn: r.initFilters},
	}
	for _, s := range steps {
		if err := s.fn(ctx); err != nil {
			return fmt.Errorf("%s: %w", s.msg, err)
		}
	}
	return nil
}

func (r *SqliteNavdataReader) loadSession(ctx context.Context) (err error) {
	r.session, err = loadSession(ctx, r.db, r.sessionID)
	return
}

func (r *SqliteNavdataReader) initFilters(context.Context) error {
	if r.batchSize <= 0 {
		return fmt.Errorf("invalid batch size %d", r.batchSize)
	}

	if r.startTime != nil && r.endTime != nil && r.startTime.After(*r.endTime) {
		return fmt.Errorf("start time %s is after end time %s", r.startTime, r.endTime)
	}
	if r.firstSeq != nil && r.lastSeq != nil && *r.firstSeq > *r.lastSeq {
		return fmt.Errorf("first sequence %d is greater than last sequence %d", *r.firstSeq, *r.lastSeq)
	}

	if r.startTime == nil {
		t := time.Time{}
		r.startTime = &t
	}
	if r.endTime == nil {
		t := time.Date(9999, 12, 31, 0, 0, 0, 0, time.UTC)
		r.endTime = &t
	}
	if r.firstSeq == nil {
		var first uint32
		r.firstSeq = &first
	}
	if r.lastSeq == nil {
		last := uint32(math.MaxUint32)
		r.lastSeq = &last
	}

	return nil
}

func (r *SqliteNavdataReader) fetch(ctx context.Context) (err error) {
	rows, err := r.db.QueryContext(ctx, selectNavdataSQL,
		r.sessionID,
		r.startTime.UTC(),
		r.endTime.UTC(),
		int64(*r.firstSeq),
		int64(*r.lastSeq),
		r.batchSize,
		r.offset,
	)
	if err != nil {
		return fmt.Errorf("querying navdata: %w", err)
	}
	defer closeWithError(rows, &err)

	r.page = r.page[:0]
	r.pos = 0

	for rows.Next() {
		d := navdataData{SessionID: r.sessionID}
		if err = rows.Scan(
			&d.Timestamp,
			&d.Sequence,
			&d.State,
			&d.CtrlState,
			&d.Battery,
			&d.Theta,
			&d.Phi,
			&d.Psi,
			&d.Altitude,
			&d.Vx,
			&d.Vy,
			&d.Vz,
			&d.Sent,
		); err != nil {
			return fmt.Errorf("scanning navdata: %w", err)
		}
		r.page = append(r.page, d.toRecord())
	}
	if err = rows.Err(); err != nil {
		return fmt.Errorf("reading navdata: %w", err)
	}

	r.offset += len(r.page)
	if len(r.page) < r.batchSize {
		r.done = true
	}

	return nil
}

func (r *SqliteNavdataReader) Session() *flight.Session {
	return r.session
}

func (r *SqliteNavdataReader) Next(ctx context.Context) bool {
	if r.err != nil {
		return false
	}

	select {
	case <-ctx.Done():
		r.err = ctx.Err()
		return false
	default:
	}

	if r.pos >= len(r.page) {
		if r.done {
			r.err = ErrNoData
			return false
		}
		if r.err = r.fetch(ctx); r.err != nil {
			return false
		}
		if len(r.page) == 0 {
			r.err = ErrNoData
			return false
		}
	}

	r.current = &r.page[r.pos]
	r.pos++

	return true
}

func (r *SqliteNavdataReader) Current() *flight.Record {
	return r.current
}

func (r *SqliteNavdataReader) Error() error {
	if r.err != nil && !errors.Is(r.err, ErrNoData) {
		return r.err
	}
	return nil
}

func (r *SqliteNavdataReader) Close() error {
	r.page = nil
	r.current = nil
	r.done = true
	r.pos = 0
	return nil
}
