package transport

import (
	"bytes"
	"context"
	"errors"
	"net"
	"testing"
	"time"
)

func listen(t *testing.T) *net.UDPConn {
	t.Helper()

	conn, err := net.ListenUDP("udp4", &net.UDPAddr{IP: net.IPv4(127, 0, 0, 1)})
	if err != nil {
		t.Fatalf("Failed to listen: %v", err)
	}
	t.Cleanup(func() { _ = conn.Close() })

	return conn
}

func TestUDPSender_Send(t *testing.T) {
	conn := listen(t)
	port := conn.LocalAddr().(*net.UDPAddr).Port

	s, err := NewUDPSender(context.Background(), "localhost", port)
	if err != nil {
		t.Fatalf("Failed to create sender: %v", err)
	}
	defer s.Close()

	payload := bytes.Repeat([]byte{0x5A}, 256)
	for i := 0; i < 3; i++ {
		if err = s.Send(payload); err != nil {
			t.Fatalf("Send %d failed: %v", i, err)
		}
	}

	buf := make([]byte, 1024)
	for i := 0; i < 3; i++ {
		_ = conn.SetReadDeadline(time.Now().Add(2 * time.Second))
		n, _, err := conn.ReadFromUDP(buf)
		if err != nil {
			t.Fatalf("Read %d failed: %v", i, err)
		}
		if !bytes.Equal(buf[:n], payload) {
			t.Errorf("Datagram %d: expected %d bytes of payload, got %d bytes", i, len(payload), n)
		}
	}

	stats := s.Stats()
	if stats.Packets != 3 || stats.Bytes != 768 || stats.Errors != 0 {
		t.Errorf("Unexpected stats: %+v", stats)
	}
}

func TestUDPSender_Close(t *testing.T) {
	conn := listen(t)

	s, err := NewUDPSender(context.Background(), "127.0.0.1", conn.LocalAddr().(*net.UDPAddr).Port)
	if err != nil {
		t.Fatalf("Failed to create sender: %v", err)
	}

	if err = s.Close(); err != nil {
		t.Fatalf("Close failed: %v", err)
	}
	if err = s.Close(); err != nil {
		t.Errorf("Second close should be a no-op, got %v", err)
	}
	if err = s.Send([]byte{1}); !errors.Is(err, ErrClosed) {
		t.Errorf("Expected ErrClosed, got %v", err)
	}
}

func TestNewUDPSender_InvalidDestination(t *testing.T) {
	tests := []struct {
		name string
		host string
		port int
	}{
		{"empty host", "", 5554},
		{"zero port", "127.0.0.1", 0},
		{"port too large", "127.0.0.1", 70000},
		{"unresolvable", "no-such-host.invalid", 5554},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if s, err := NewUDPSender(context.Background(), tt.host, tt.port); err == nil {
				_ = s.Close()
				t.Errorf("Expected error for %s:%d", tt.host, tt.port)
			}
		})
	}
}
