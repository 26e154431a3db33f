package app

import (
	"context"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/roman-kulish/navdata-relay/internal/flight"
	"github.com/roman-kulish/navdata-relay/internal/scheduler"
	"github.com/roman-kulish/navdata-relay/internal/storage"
)

// NavdataStore is the part of the flight recorder store the Recorder writes to
type NavdataStore interface {
	StoreNavdata(ctx context.Context, records []flight.Record) error
}

// WithMaxBatchSize sets the maximum number of records stored within a single
// database transaction.
func WithMaxBatchSize(size int) func(*Recorder) {
	return func(r *Recorder) {
		r.maxBatchSize = size
	}
}

// WithFlushInterval sets the longest time a record waits before being stored
func WithFlushInterval(d time.Duration) func(*Recorder) {
	return func(r *Recorder) {
		r.flushInterval = d
	}
}

// WithQueueSize sets the number of records buffered between the scheduler and the store
func WithQueueSize(size int) func(*Recorder) {
	return func(r *Recorder) {
		r.queueSize = size
	}
}

// Recorder stores every navdata packet the scheduler builds. Records are
// queued without blocking the tick and written in batches by one goroutine;
// when the queue is full the record is dropped.
type Recorder struct {
	store     NavdataStore
	sessionID int64

	queueSize     int
	maxBatchSize  int
	flushInterval time.Duration

	records chan flight.Record
	closed  atomic.Bool
	wg      sync.WaitGroup

	stored  atomic.Uint64
	dropped atomic.Uint64
	failed  atomic.Uint64

	logger *slog.Logger
}

var _ scheduler.Observer = (*Recorder)(nil)

// NewRecorder creates a Recorder writing to the given session
func NewRecorder(store NavdataStore, sessionID int64, logger *slog.Logger, options ...func(*Recorder)) *Recorder {
	r := Recorder{
		store:         store,
		sessionID:     sessionID,
		queueSize:     defaultRecorderQueue,
		maxBatchSize:  defaultRecorderBatch,
		flushInterval: defaultRecorderFlush,
		logger:        logger.With(slog.String("component", "recorder"), slog.Int64("sessionID", sessionID)),
	}

	for _, option := range options {
		option(&r)
	}

	r.records = make(chan flight.Record, r.queueSize)

	return &r
}

// Start starts the writer goroutine
func (r *Recorder) Start() {
	r.wg.Add(1)
	go r.handleRecords()
}

// Observe queues the packet of a completed tick
func (r *Recorder) Observe(tick scheduler.Tick) {
	if r.closed.Load() {
		return
	}

	record := flight.Record{
		SessionID: r.sessionID,
		Timestamp: tick.Timestamp,
		Sent:      tick.Sent,
		Navdata:   tick.Snapshot,
	}

	select {
	case r.records <- record:
	default:
		r.dropped.Add(1)
	}
}

// Close stops accepting records, stores the pending ones and waits for the
// writer to finish. Observe must not be called concurrently with Close.
func (r *Recorder) Close() {
	if r.closed.Swap(true) {
		return
	}

	close(r.records)
	r.wg.Wait()
}

// Stored returns the number of records written
func (r *Recorder) Stored() uint64 {
	return r.stored.Load()
}

// Dropped returns the number of records discarded because the queue was full
// or the store failed
func (r *Recorder) Dropped() uint64 {
	return r.dropped.Load() + r.failed.Load()
}

func (r *Recorder) handleRecords() {
	defer r.wg.Done()

	ticker := time.NewTicker(r.flushInterval)
	defer ticker.Stop()

	batch := make([]flight.Record, 0, r.maxBatchSize)

	for {
		select {
		case record, ok := <-r.records:
			if !ok {
				r.flush(batch)
				return
			}

			batch = append(batch, record)
			if len(batch) >= r.maxBatchSize {
				r.flush(batch)
				batch = batch[:0]
			}

		case <-ticker.C:
			r.flush(batch)
			batch = batch[:0]
		}
	}
}

func (r *Recorder) flush(batch []flight.Record) {
	if len(batch) == 0 {
		return
	}

	// Records must not be lost on shutdown, so the store call is not tied
	// to the relay context.
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := r.store.StoreNavdata(ctx, batch); err != nil {
		r.failed.Add(uint64(len(batch)))
		r.logger.Error("failed to store navdata", slog.Int("records", len(batch)), slog.Any("error", err))
		return
	}

	r.stored.Add(uint64(len(batch)))
}

var _ NavdataStore = (*storage.SqliteStore)(nil)
