package mavros

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"time"
)

// ServiceCaller calls ROS services
type ServiceCaller interface {
	WaitForService(ctx context.Context, name string, interval time.Duration) error
	CallService(ctx context.Context, service string, args any, result any) error
}

// WithLogger sets the logger for the negotiator
func WithLogger(logger *slog.Logger) func(n *Negotiator) {
	return func(n *Negotiator) {
		n.logger = logger.With(slog.String("component", "mavros"))
	}
}

// Negotiator asks mavros to stream the data the relay consumes at the
// configured rates.
type Negotiator struct {
	caller ServiceCaller
	config Config
	logger *slog.Logger
}

// NewNegotiator creates a Negotiator
func NewNegotiator(caller ServiceCaller, config Config, options ...func(n *Negotiator)) *Negotiator {
	n := Negotiator{
		caller: caller,
		config: config,
		logger: slog.New(slog.NewTextHandler(io.Discard, nil)), // nil logger
	}

	for _, option := range options {
		option(&n)
	}

	return &n
}

// Negotiate waits for the stream rate service to be advertised, then requests
// the extended status and position streams. Only the wait is fatal: a failed
// rate request is logged and the relay carries on with whatever mavros sends.
func (n *Negotiator) Negotiate(ctx context.Context) error {
	service := n.config.StreamRateService()

	if err := n.caller.WaitForService(ctx, service, n.config.ServicePollInterval); err != nil {
		return fmt.Errorf("waiting for %s: %w", service, err)
	}

	requests := []StreamRateRequest{
		{StreamID: StreamExtendedStatus, MessageRate: n.config.ExtendedStatusRate, OnOff: true},
		{StreamID: StreamPosition, MessageRate: n.config.PositionRate, OnOff: true},
	}

	for _, req := range requests {
		if err := n.caller.CallService(ctx, service, req, nil); err != nil {
			n.logger.Error("failed to set stream rate",
				slog.Int("streamID", int(req.StreamID)),
				slog.Int("rate", int(req.MessageRate)),
				slog.Any("error", err),
			)
			continue
		}

		n.logger.Info("stream rate set", slog.Int("streamID", int(req.StreamID)), slog.Int("rate", int(req.MessageRate)))
	}

	return nil
}
