package app

import (
	"context"
	"log/slog"
	"sync"
	"sync/atomic"

	"github.com/roman-kulish/navdata-relay/internal/mavros"
	"github.com/roman-kulish/navdata-relay/internal/telemetry"
)

// Relay applies inbound updates to the telemetry state. Every update kind is
// consumed by its own goroutine, so a burst on one channel never delays
// another.
type Relay struct {
	state   *telemetry.State
	inbound *mavros.Inbound
	logger  *slog.Logger

	updates  atomic.Uint64
	rejected atomic.Uint64

	wg sync.WaitGroup
}

// NewRelay creates a Relay
func NewRelay(state *telemetry.State, inbound *mavros.Inbound, logger *slog.Logger) *Relay {
	return &Relay{
		state:   state,
		inbound: inbound,
		logger:  logger.With(slog.String("component", "relay")),
	}
}

// Start starts the consumers. They exit when ctx is done.
func (r *Relay) Start(ctx context.Context) {
	in := r.inbound

	startConsumer(ctx, r, in.Altitude, r.state.SetAltitude)
	startConsumer(ctx, r, in.Battery, func(remaining float64) {
		if err := r.state.SetBattery(remaining); err != nil {
			r.rejected.Add(1)
		}
	})
	startConsumer(ctx, r, in.Velocity, r.state.SetVelocity)
	startConsumer(ctx, r, in.Orientation, r.state.SetOrientation)
	startConsumer(ctx, r, in.ExtendedState, r.state.SetExtendedState)
	startConsumer(ctx, r, in.CommandAck, func(struct{}) {
		r.state.AckCommand()
	})
}

// Wait blocks until every consumer has exited
func (r *Relay) Wait() {
	r.wg.Wait()
}

// Updates returns the number of updates applied or rejected
func (r *Relay) Updates() uint64 {
	return r.updates.Load()
}

// Rejected returns the number of updates rejected by the telemetry state
func (r *Relay) Rejected() uint64 {
	return r.rejected.Load()
}

func startConsumer[T any](ctx context.Context, r *Relay, updates <-chan T, apply func(T)) {
	r.wg.Add(1)
	go func() {
		defer r.wg.Done()

		for {
			select {
			case <-ctx.Done():
				return

			case v := <-updates:
				apply(v)
				r.updates.Add(1)
			}
		}
	}()
}
