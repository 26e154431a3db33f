package scheduler

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/roman-kulish/navdata-relay/internal/navdata"
	"github.com/roman-kulish/navdata-relay/internal/telemetry"
)

const (
	// DefaultDebugEvery is the sequence interval between navdata debug dumps
	DefaultDebugEvery = 1000

	// DefaultHandshakeTimeout bounds the wait for the upstream rate negotiation
	DefaultHandshakeTimeout = 10 * time.Second
)

var (
	// ErrHandshakeTimeout is returned when the upstream negotiation does not
	// complete within the handshake timeout
	ErrHandshakeTimeout = errors.New("startup handshake timed out")

	// ErrNotStarted is returned by Run before a successful Start
	ErrNotStarted = errors.New("scheduler is not started")

	// ErrInvalidPhase is returned when Start is called outside the Starting phase
	ErrInvalidPhase = errors.New("invalid scheduler phase")
)

// Phase is the lifecycle phase of a Scheduler
type Phase int32

const (
	PhaseStarting Phase = iota
	PhaseRunning
	PhaseStopped
)

func (p Phase) String() string {
	switch p {
	case PhaseStarting:
		return "starting"
	case PhaseRunning:
		return "running"
	case PhaseStopped:
		return "stopped"
	default:
		return "unknown"
	}
}

// Negotiator performs the one-time startup handshake with the upstream
// flight controller. Negotiate must return when ctx is done.
type Negotiator interface {
	Negotiate(ctx context.Context) error
}

// NegotiatorFunc adapts a function to the Negotiator interface
type NegotiatorFunc func(ctx context.Context) error

func (f NegotiatorFunc) Negotiate(ctx context.Context) error {
	return f(ctx)
}

// Sender delivers encoded packets
type Sender interface {
	Send(p []byte) error
	Close() error
}

// Tick describes one completed tick
type Tick struct {
	Timestamp time.Time
	Snapshot  telemetry.Snapshot
	Sent      bool
}

// Observer is notified after every tick. Observe runs on the tick goroutine
// and must not block.
type Observer interface {
	Observe(tick Tick)
}

// TickerFunc creates a ticker firing every d, returning its channel and a stop function
type TickerFunc func(d time.Duration) (<-chan time.Time, func())

func realTicker(d time.Duration) (<-chan time.Time, func()) {
	t := time.NewTicker(d)
	return t.C, t.Stop
}

// Stats are the cumulative tick counters of a Scheduler
type Stats struct {
	Ticks       uint64
	SendFailure uint64
}

// WithLogger sets the logger for the scheduler
func WithLogger(logger *slog.Logger) func(s *Scheduler) {
	return func(s *Scheduler) {
		s.logger = logger.With(slog.String("component", "scheduler"))
	}
}

// WithPeriod sets the tick period
func WithPeriod(period time.Duration) func(s *Scheduler) {
	return func(s *Scheduler) {
		s.period = period
	}
}

// WithHandshakeTimeout sets the bound on the startup handshake
func WithHandshakeTimeout(timeout time.Duration) func(s *Scheduler) {
	return func(s *Scheduler) {
		s.handshakeTimeout = timeout
	}
}

// WithDebugEvery sets the sequence interval between navdata debug dumps, 0 disables them
func WithDebugEvery(n uint32) func(s *Scheduler) {
	return func(s *Scheduler) {
		s.debugEvery = n
	}
}

// WithObserver registers an observer notified after every tick
func WithObserver(o Observer) func(s *Scheduler) {
	return func(s *Scheduler) {
		s.observers = append(s.observers, o)
	}
}

// WithTicker replaces the wall-clock ticker
func WithTicker(fn TickerFunc) func(s *Scheduler) {
	return func(s *Scheduler) {
		s.newTicker = fn
	}
}

// Scheduler drives the periodic navdata cycle: snapshot, encode, send and
// advance the sequence number. It moves from Starting to Running after a
// successful handshake and to Stopped when its context is cancelled or the
// handshake fails.
type Scheduler struct {
	state      *telemetry.State
	encoder    navdata.Encoder
	sender     Sender
	negotiator Negotiator

	phase     atomic.Int32
	closeOnce sync.Once

	period           time.Duration
	handshakeTimeout time.Duration
	debugEvery       uint32
	observers        []Observer
	newTicker        TickerFunc

	ticks       atomic.Uint64
	sendFailure atomic.Uint64

	logger *slog.Logger
}

// New creates a Scheduler in the Starting phase
func New(state *telemetry.State, encoder navdata.Encoder, sender Sender, negotiator Negotiator, options ...func(s *Scheduler)) *Scheduler {
	s := Scheduler{
		state:            state,
		encoder:          encoder,
		sender:           sender,
		negotiator:       negotiator,
		period:           navdata.VariantDemo.Period(0),
		handshakeTimeout: DefaultHandshakeTimeout,
		debugEvery:       DefaultDebugEvery,
		newTicker:        realTicker,
		logger:           slog.New(slog.NewTextHandler(io.Discard, nil)), // nil logger
	}

	for _, option := range options {
		option(&s)
	}

	return &s
}

// Phase returns the current lifecycle phase
func (s *Scheduler) Phase() Phase {
	return Phase(s.phase.Load())
}

// Stats returns the cumulative tick counters
func (s *Scheduler) Stats() Stats {
	return Stats{
		Ticks:       s.ticks.Load(),
		SendFailure: s.sendFailure.Load(),
	}
}

// Start runs the startup handshake, bounded by the handshake timeout. On
// success the bootstrap flag is cleared and the scheduler enters Running. Any
// failure is fatal: the scheduler stops and releases the sender without
// sending a single packet.
func (s *Scheduler) Start(ctx context.Context) error {
	if p := s.Phase(); p != PhaseStarting {
		return fmt.Errorf("%w: start in phase %s", ErrInvalidPhase, p)
	}

	s.logger.Info("waiting for upstream handshake", slog.Duration("timeout", s.handshakeTimeout))

	hctx, cancel := context.WithTimeout(ctx, s.handshakeTimeout)
	defer cancel()

	if err := s.negotiate(hctx); err != nil {
		if errors.Is(hctx.Err(), context.DeadlineExceeded) {
			err = fmt.Errorf("%w after %s: %w", ErrHandshakeTimeout, s.handshakeTimeout, err)
		}

		s.stop()
		return err
	}

	s.state.ClearFlag(telemetry.FlagBootstrap)
	s.phase.Store(int32(PhaseRunning))

	s.logger.Info("navdata streaming started", slog.Duration("period", s.period))

	return nil
}

// negotiate runs the negotiator, returning as soon as ctx is done even when
// the negotiator ignores cancellation.
func (s *Scheduler) negotiate(ctx context.Context) error {
	if s.negotiator == nil {
		return nil
	}

	done := make(chan error, 1)
	go func() {
		done <- s.negotiator.Negotiate(ctx)
	}()

	select {
	case err := <-done:
		if err != nil {
			return fmt.Errorf("negotiating stream rates: %w", err)
		}
		return nil

	case <-ctx.Done():
		return ctx.Err()
	}
}

// Run ticks until ctx is done, then stops the scheduler and releases the sender
func (s *Scheduler) Run(ctx context.Context) error {
	if p := s.Phase(); p != PhaseRunning {
		return fmt.Errorf("%w: phase %s", ErrNotStarted, p)
	}
	defer s.stop()

	ticks, stopTicker := s.newTicker(s.period)
	defer stopTicker()

	for {
		select {
		case <-ctx.Done():
			return nil

		case <-ticks:
			s.Tick()
		}
	}
}

// Tick performs one navdata cycle. The sequence number advances whether or
// not the packet was sent.
func (s *Scheduler) Tick() {
	snap := s.state.Consume()

	if s.debugEvery > 0 && snap.Sequence%s.debugEvery == 0 {
		s.dump(snap)
	}

	sent := true
	if err := s.sender.Send(s.encoder.Encode(snap)); err != nil {
		sent = false
		s.sendFailure.Add(1)
		s.logger.Error("failed to send navdata packet", slog.Uint64("sequence", uint64(snap.Sequence)), slog.Any("error", err))
	}

	s.state.IncrementSequence()
	s.ticks.Add(1)

	if len(s.observers) == 0 {
		return
	}

	tick := Tick{
		Timestamp: time.Now().UTC(),
		Snapshot:  snap,
		Sent:      sent,
	}
	for _, o := range s.observers {
		o.Observe(tick)
	}
}

func (s *Scheduler) dump(snap telemetry.Snapshot) {
	s.logger.Debug("navdata",
		slog.Group("navdata",
			slog.Uint64("header", uint64(snap.Header)),
			slog.String("state", fmt.Sprintf("%#08x", uint32(snap.Status))),
			slog.String("flags", snap.Status.String()),
			slog.Uint64("sequence", uint64(snap.Sequence)),
			slog.Bool("visionDefined", snap.VisionDefined),
			slog.Uint64("tag", uint64(snap.Tag)),
			slog.Uint64("size", uint64(snap.Size)),
			slog.String("controlState", snap.ControlState.String()),
			slog.Uint64("battery", uint64(snap.Battery)),
			slog.Float64("theta", float64(snap.Theta)),
			slog.Float64("phi", float64(snap.Phi)),
			slog.Float64("psi", float64(snap.Psi)),
			slog.Int64("altitude", int64(snap.Altitude)),
			slog.Float64("vx", float64(snap.Vx)),
			slog.Float64("vy", float64(snap.Vy)),
			slog.Float64("vz", float64(snap.Vz)),
		),
	)
}

func (s *Scheduler) stop() {
	s.closeOnce.Do(func() {
		s.phase.Store(int32(PhaseStopped))

		if err := s.sender.Close(); err != nil {
			s.logger.Error("failed to release navdata socket", slog.Any("error", err))
		}

		s.logger.Info("navdata streaming stopped", slog.Uint64("ticks", s.ticks.Load()))
	})
}
