package telemetry

import (
	"io"
	"log/slog"
	"sync"
)

// WithLogger sets the logger used by the state and its updaters
func WithLogger(logger *slog.Logger) func(s *State) {
	return func(s *State) {
		s.logger = logger.With(slog.String("component", "telemetry"))
	}
}

// WithInitialStatus sets the status word the state starts with
func WithInitialStatus(status Flag) func(s *State) {
	return func(s *State) {
		s.data.Status = status
	}
}

// State holds the telemetry relayed in navdata packets. Every read and write
// goes through a single mutex, so a snapshot never mixes values from before
// and after a concurrent update.
type State struct {
	mu     sync.Mutex
	data   Snapshot
	logger *slog.Logger
}

// New creates a State with default values and the bootstrap flag raised
func New(options ...func(s *State)) *State {
	s := State{
		data: Snapshot{
			Header:       Header,
			Status:       FlagBootstrap,
			Tag:          TagDemo,
			Size:         PacketSize,
			ControlState: ControlDefault,
			Battery:      DefaultBattery,
		},
		logger: slog.New(slog.NewTextHandler(io.Discard, nil)), // nil logger
	}

	for _, option := range options {
		option(&s)
	}

	return &s
}

// Snapshot returns a copy of the current telemetry
func (s *State) Snapshot() Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.data
}

// Consume returns a copy of the current telemetry and clears the command
// acknowledgment flag in the same critical section.
func (s *State) Consume() Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()

	snap := s.data
	s.data.Status = s.data.Status.Without(FlagCommandAck)

	return snap
}

// Mutate applies fn to the telemetry under the lock. fn must not block.
func (s *State) Mutate(fn func(data *Snapshot)) {
	s.mu.Lock()
	defer s.mu.Unlock()

	fn(&s.data)
}

// IncrementSequence advances the sequence number and returns the new value
func (s *State) IncrementSequence() uint32 {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.data.Sequence++ // wraps at 2^32
	return s.data.Sequence
}

// Sequence returns the current sequence number
func (s *State) Sequence() uint32 {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.data.Sequence
}

// SetFlag sets the bits of f, leaving every other bit untouched
func (s *State) SetFlag(f Flag) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.data.Status = s.data.Status.With(f)
}

// ClearFlag clears the bits of f, leaving every other bit untouched
func (s *State) ClearFlag(f Flag) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.data.Status = s.data.Status.Without(f)
}

// IsSet reports whether all bits of f are set
func (s *State) IsSet(f Flag) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.data.Status.Has(f)
}
