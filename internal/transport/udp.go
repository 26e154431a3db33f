package transport

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"strconv"
	"sync"
	"sync/atomic"
)

// ErrClosed is returned when sending on a closed sender
var ErrClosed = errors.New("sender is closed")

// WithLogger sets the logger for the sender
func WithLogger(logger *slog.Logger) func(s *UDPSender) {
	return func(s *UDPSender) {
		s.logger = logger.With(slog.String("component", "transport"))
	}
}

// Stats are the cumulative counters of a sender
type Stats struct {
	Packets uint64 // datagrams written
	Bytes   uint64 // bytes written
	Errors  uint64 // failed writes
}

// UDPSender writes datagrams to a single destination resolved once, when the
// sender is created. Sends are fire and forget: nothing is retried.
type UDPSender struct {
	conn *net.UDPConn
	addr *net.UDPAddr

	packets atomic.Uint64
	bytes   atomic.Uint64
	errors  atomic.Uint64

	closed    atomic.Bool
	closeOnce sync.Once
	closeErr  error

	logger *slog.Logger
}

// NewUDPSender resolves host:port and opens an unconnected UDP socket
func NewUDPSender(ctx context.Context, host string, port int, options ...func(s *UDPSender)) (*UDPSender, error) {
	if host == "" {
		return nil, fmt.Errorf("transport: empty destination host")
	}
	if port <= 0 || port > 65535 {
		return nil, fmt.Errorf("transport: invalid destination port %d", port)
	}

	ips, err := net.DefaultResolver.LookupIP(ctx, "ip4", host)
	if err != nil || len(ips) == 0 {
		// IPv6-only destinations
		if ips, err = net.DefaultResolver.LookupIP(ctx, "ip", host); err != nil {
			return nil, fmt.Errorf("transport: resolving '%s': %w", host, err)
		}
	}
	if len(ips) == 0 {
		return nil, fmt.Errorf("transport: no address for '%s'", host)
	}

	addr := &net.UDPAddr{IP: ips[0], Port: port}

	network := "udp4"
	if addr.IP.To4() == nil {
		network = "udp6"
	}

	conn, err := net.ListenUDP(network, nil)
	if err != nil {
		return nil, fmt.Errorf("transport: opening socket: %w", err)
	}

	s := UDPSender{
		conn:   conn,
		addr:   addr,
		logger: slog.New(slog.NewTextHandler(io.Discard, nil)), // nil logger
	}

	for _, option := range options {
		option(&s)
	}

	s.logger.Info("navdata destination resolved", slog.String("address", net.JoinHostPort(addr.IP.String(), strconv.Itoa(port))))

	return &s, nil
}

// Send writes p as a single datagram
func (s *UDPSender) Send(p []byte) error {
	if s.closed.Load() {
		return ErrClosed
	}

	n, err := s.conn.WriteToUDP(p, s.addr)
	if err != nil {
		s.errors.Add(1)
		return fmt.Errorf("transport: sending to %s: %w", s.addr, err)
	}
	if n != len(p) {
		s.errors.Add(1)
		return fmt.Errorf("transport: short write to %s: %d of %d bytes", s.addr, n, len(p))
	}

	s.packets.Add(1)
	s.bytes.Add(uint64(n))

	return nil
}

// Addr returns the resolved destination
func (s *UDPSender) Addr() net.Addr {
	return s.addr
}

// Stats returns the cumulative send counters
func (s *UDPSender) Stats() Stats {
	return Stats{
		Packets: s.packets.Load(),
		Bytes:   s.bytes.Load(),
		Errors:  s.errors.Load(),
	}
}

// Close releases the socket. It is safe to call more than once.
func (s *UDPSender) Close() error {
	s.closeOnce.Do(func() {
		s.closed.Store(true)
		s.closeErr = s.conn.Close()
	})

	return s.closeErr
}
