package mavros

import (
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"sync/atomic"

	"github.com/roman-kulish/navdata-relay/internal/rosbridge"
	"github.com/roman-kulish/navdata-relay/internal/telemetry"
)

// Subscriber subscribes handlers to topics
type Subscriber interface {
	Subscribe(topic, msgType string, queueLength int, handler rosbridge.Handler) error
}

// Inbound is the set of update channels fed by the mavros topics. Each
// channel keeps at most its capacity of pending updates; when a channel is
// full the oldest update is dropped in favour of the newest.
type Inbound struct {
	Altitude      chan float64
	Battery       chan float64
	Velocity      chan telemetry.Vector3
	Orientation   chan telemetry.Quaternion
	ExtendedState chan telemetry.ExtendedState
	CommandAck    chan struct{}

	dropped   atomic.Uint64
	malformed atomic.Uint64
}

// NewInbound creates an Inbound with buffered channels
func NewInbound(queueSize, ackQueueSize int) *Inbound {
	queueSize, ackQueueSize = max(1, queueSize), max(1, ackQueueSize)

	return &Inbound{
		Altitude:      make(chan float64, queueSize),
		Battery:       make(chan float64, queueSize),
		Velocity:      make(chan telemetry.Vector3, queueSize),
		Orientation:   make(chan telemetry.Quaternion, queueSize),
		ExtendedState: make(chan telemetry.ExtendedState, queueSize),
		CommandAck:    make(chan struct{}, ackQueueSize),
	}
}

// Dropped returns the number of updates dropped because a channel was full
func (in *Inbound) Dropped() uint64 {
	return in.dropped.Load()
}

// Malformed returns the number of messages that could not be decoded
func (in *Inbound) Malformed() uint64 {
	return in.malformed.Load()
}

// Bind subscribes to every mavros topic the relay consumes and returns the
// channels the decoded updates are delivered on.
func Bind(sub Subscriber, config *Config, logger *slog.Logger) (*Inbound, error) {
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil)) // nil logger
	}
	logger = logger.With(slog.String("component", "mavros"))

	in := NewInbound(config.QueueSize, config.CommandAckQueueSize)

	bindings := []struct {
		topic   string
		msgType string
		queue   int
		handler rosbridge.Handler
	}{
		{config.Topic("global_position/rel_alt"), TypeFloat64, config.QueueSize, func(raw json.RawMessage) {
			var m Float64
			if in.decode(raw, &m, logger) {
				offer(in, in.Altitude, m.Data)
			}
		}},
		{config.Topic("battery"), TypeBatteryStatus, config.QueueSize, func(raw json.RawMessage) {
			var m BatteryStatus
			if in.decode(raw, &m, logger) {
				offer(in, in.Battery, m.Remaining)
			}
		}},
		{config.Topic("local_position/velocity"), TypeTwistStamped, config.QueueSize, func(raw json.RawMessage) {
			var m TwistStamped
			if in.decode(raw, &m, logger) {
				offer(in, in.Velocity, m.Velocity())
			}
		}},
		{config.Topic("local_position/pose"), TypePoseStamped, config.QueueSize, func(raw json.RawMessage) {
			var m PoseStamped
			if in.decode(raw, &m, logger) {
				offer(in, in.Orientation, m.Orientation())
			}
		}},
		{config.Topic("extended_state"), TypeExtendedState, config.QueueSize, func(raw json.RawMessage) {
			var m ExtendedState
			if in.decode(raw, &m, logger) {
				offer(in, in.ExtendedState, m.State())
			}
		}},
		{config.CommandAckTopic, TypeBool, config.CommandAckQueueSize, func(json.RawMessage) {
			offer(in, in.CommandAck, struct{}{})
		}},
	}

	for _, b := range bindings {
		if err := sub.Subscribe(b.topic, b.msgType, b.queue, b.handler); err != nil {
			return nil, fmt.Errorf("binding %s: %w", b.topic, err)
		}
		logger.Debug("bound topic", slog.String("topic", b.topic), slog.String("type", b.msgType))
	}

	return in, nil
}

func (in *Inbound) decode(raw json.RawMessage, v any, logger *slog.Logger) bool {
	if err := json.Unmarshal(raw, v); err != nil {
		in.malformed.Add(1)
		logger.Warn("malformed message", slog.Any("error", err))
		return false
	}
	return true
}

// offer delivers v on ch, dropping the oldest pending value when ch is full.
// It never blocks, so a slow consumer cannot stall the connection reader.
func offer[T any](in *Inbound, ch chan T, v T) {
	for {
		select {
		case ch <- v:
			return
		default:
		}

		select {
		case <-ch:
			in.dropped.Add(1)
		default:
		}
	}
}
