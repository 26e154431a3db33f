package mavros

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/roman-kulish/navdata-relay/internal/rosbridge"
	"github.com/roman-kulish/navdata-relay/internal/rosbridge/rosbridgetest"
	"github.com/roman-kulish/navdata-relay/internal/telemetry"
)

func connect(t *testing.T) (*rosbridgetest.Server, *rosbridge.Client) {
	t.Helper()

	srv := rosbridgetest.NewServer()
	t.Cleanup(srv.Close)

	c, err := rosbridge.Dial(context.Background(), srv.URL())
	if err != nil {
		t.Fatalf("Failed to dial: %v", err)
	}
	t.Cleanup(func() { _ = c.Close() })

	return srv, c
}

func receive[T any](t *testing.T, ch <-chan T) T {
	t.Helper()

	select {
	case v := <-ch:
		return v
	case <-time.After(2 * time.Second):
		var zero T
		t.Fatalf("Timed out waiting for update")
		return zero
	}
}

func TestBind(t *testing.T) {
	srv, c := connect(t)
	config := DefaultConfig()

	in, err := Bind(c, &config, nil)
	if err != nil {
		t.Fatalf("Bind failed: %v", err)
	}

	want := map[string]bool{
		"mavros/global_position/rel_alt": true,
		"mavros/battery":                 true,
		"mavros/local_position/velocity": true,
		"mavros/local_position/pose":     true,
		"mavros/extended_state":          true,
		"pikopter_cmd/cmd_received":      true,
	}
	for range want {
		topic := receive(t, srv.Subscribed())
		if !want[topic] {
			t.Errorf("Unexpected subscription to %s", topic)
		}
	}

	publish := func(topic string, msg any) {
		t.Helper()
		if err := srv.Publish(topic, msg); err != nil {
			t.Fatalf("Publish to %s failed: %v", topic, err)
		}
	}

	publish("mavros/global_position/rel_alt", map[string]any{"data": 12.5})
	if got := receive(t, in.Altitude); got != 12.5 {
		t.Errorf("Expected altitude 12.5, got %v", got)
	}

	publish("mavros/battery", map[string]any{"voltage": 11.1, "remaining": 0.42})
	if got := receive(t, in.Battery); got != 0.42 {
		t.Errorf("Expected battery 0.42, got %v", got)
	}

	publish("mavros/local_position/velocity", map[string]any{
		"header": map[string]any{"seq": 1},
		"twist":  map[string]any{"linear": map[string]any{"x": 1, "y": 2, "z": 3}},
	})
	if got := receive(t, in.Velocity); got != (telemetry.Vector3{X: 1, Y: 2, Z: 3}) {
		t.Errorf("Unexpected velocity %+v", got)
	}

	publish("mavros/local_position/pose", map[string]any{
		"pose": map[string]any{"orientation": map[string]any{"x": 0, "y": 0, "z": 0, "w": 1}},
	})
	if got := receive(t, in.Orientation); got != (telemetry.Quaternion{W: 1}) {
		t.Errorf("Unexpected orientation %+v", got)
	}

	publish("mavros/extended_state", map[string]any{"vtol_state": 0, "landed_state": 1})
	if got := receive(t, in.ExtendedState); got != (telemetry.ExtendedState{Landed: telemetry.LandedOnGround}) {
		t.Errorf("Unexpected extended state %+v", got)
	}

	publish("pikopter_cmd/cmd_received", map[string]any{"data": false})
	receive(t, in.CommandAck)

	publish("mavros/global_position/rel_alt", map[string]any{"data": "high"})
	deadline := time.Now().Add(2 * time.Second)
	for in.Malformed() == 0 && time.Now().Before(deadline) {
		time.Sleep(5 * time.Millisecond)
	}
	if in.Malformed() != 1 {
		t.Errorf("Expected one malformed message, got %d", in.Malformed())
	}
}

func TestOffer_DropsOldest(t *testing.T) {
	in := NewInbound(2, 1)

	for i := 1; i <= 5; i++ {
		offer(in, in.Altitude, float64(i))
	}

	if got := []float64{<-in.Altitude, <-in.Altitude}; got[0] != 4 || got[1] != 5 {
		t.Errorf("Expected the two newest values [4 5], got %v", got)
	}
	if in.Dropped() != 3 {
		t.Errorf("Expected 3 dropped updates, got %d", in.Dropped())
	}
}

func TestNegotiator(t *testing.T) {
	srv, c := connect(t)

	var (
		mu    sync.Mutex
		calls []StreamRateRequest
	)
	srv.Handle("/mavros/set_stream_rate", func(args json.RawMessage) (any, error) {
		var req StreamRateRequest
		if err := json.Unmarshal(args, &req); err != nil {
			return nil, err
		}
		mu.Lock()
		calls = append(calls, req)
		mu.Unlock()
		if req.StreamID == StreamPosition {
			return nil, errors.New("rate rejected")
		}
		return struct{}{}, nil
	})

	config := DefaultConfig()
	config.ServicePollInterval = 10 * time.Millisecond

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	if err := NewNegotiator(c, config).Negotiate(ctx); err != nil {
		t.Fatalf("A rejected rate request must not fail negotiation: %v", err)
	}

	mu.Lock()
	defer mu.Unlock()

	want := []StreamRateRequest{
		{StreamID: StreamExtendedStatus, MessageRate: 1, OnOff: true},
		{StreamID: StreamPosition, MessageRate: 200, OnOff: true},
	}
	if len(calls) != len(want) {
		t.Fatalf("Expected %d stream rate calls, got %d", len(want), len(calls))
	}
	for i := range want {
		if calls[i] != want[i] {
			t.Errorf("Call %d: expected %+v, got %+v", i, want[i], calls[i])
		}
	}
}

func TestNegotiator_ServiceUnavailable(t *testing.T) {
	_, c := connect(t)

	config := DefaultConfig()
	config.ServicePollInterval = 10 * time.Millisecond

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	if err := NewNegotiator(c, config).Negotiate(ctx); !errors.Is(err, context.DeadlineExceeded) {
		t.Errorf("Expected deadline exceeded, got %v", err)
	}
}

func TestConfig(t *testing.T) {
	config := DefaultConfig()
	if err := config.Validate(); err != nil {
		t.Fatalf("Default config is invalid: %v", err)
	}
	if got := config.StreamRateService(); got != "/mavros/set_stream_rate" {
		t.Errorf("Unexpected service name %s", got)
	}

	config.Namespace = "uav1/mavros"
	if got := config.Topic("battery"); got != "uav1/mavros/battery" {
		t.Errorf("Unexpected topic %s", got)
	}

	config.PositionRate = 0
	if err := config.Validate(); err == nil {
		t.Errorf("Expected a zero rate to be rejected")
	}
}
