package rosbridge

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/roman-kulish/navdata-relay/internal/rosbridge/rosbridgetest"
)

func dial(t *testing.T, srv *rosbridgetest.Server) *Client {
	t.Helper()

	c, err := Dial(context.Background(), srv.URL())
	if err != nil {
		t.Fatalf("Failed to dial: %v", err)
	}
	t.Cleanup(func() { _ = c.Close() })

	return c
}

func TestClient_CallService(t *testing.T) {
	srv := rosbridgetest.NewServer()
	defer srv.Close()

	srv.Handle("/add", func(args json.RawMessage) (any, error) {
		var in struct{ A, B int }
		if err := json.Unmarshal(args, &in); err != nil {
			return nil, err
		}
		return map[string]int{"sum": in.A + in.B}, nil
	})
	srv.Handle("/broken", func(json.RawMessage) (any, error) {
		return nil, errors.New("boom")
	})

	c := dial(t, srv)
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	var out struct {
		Sum int `json:"sum"`
	}
	if err := c.CallService(ctx, "/add", map[string]int{"A": 2, "B": 3}, &out); err != nil {
		t.Fatalf("CallService failed: %v", err)
	}
	if out.Sum != 5 {
		t.Errorf("Expected sum 5, got %d", out.Sum)
	}

	if err := c.CallService(ctx, "/broken", nil, nil); !errors.Is(err, ErrServiceFailed) {
		t.Errorf("Expected ErrServiceFailed, got %v", err)
	}
	if err := c.CallService(ctx, "/missing", nil, nil); !errors.Is(err, ErrServiceFailed) {
		t.Errorf("Expected ErrServiceFailed for unknown service, got %v", err)
	}
}

func TestClient_Subscribe(t *testing.T) {
	srv := rosbridgetest.NewServer()
	defer srv.Close()

	c := dial(t, srv)

	received := make(chan float64, 1)
	err := c.Subscribe("/alt", "std_msgs/Float64", 10, func(msg json.RawMessage) {
		var m struct {
			Data float64 `json:"data"`
		}
		if err := json.Unmarshal(msg, &m); err == nil {
			received <- m.Data
		}
	})
	if err != nil {
		t.Fatalf("Subscribe failed: %v", err)
	}
	if err = c.Subscribe("/alt", "std_msgs/Float64", 10, func(json.RawMessage) {}); !errors.Is(err, ErrAlreadySubscribed) {
		t.Errorf("Expected ErrAlreadySubscribed, got %v", err)
	}

	select {
	case topic := <-srv.Subscribed():
		if topic != "/alt" {
			t.Fatalf("Unexpected subscription to %s", topic)
		}
	case <-time.After(2 * time.Second):
		t.Fatalf("Server did not see the subscription")
	}

	if err = srv.Publish("/alt", map[string]float64{"data": 12.5}); err != nil {
		t.Fatalf("Publish failed: %v", err)
	}

	select {
	case v := <-received:
		if v != 12.5 {
			t.Errorf("Expected 12.5, got %v", v)
		}
	case <-time.After(2 * time.Second):
		t.Fatalf("Handler was not called")
	}

	frames := srv.Frames()
	if len(frames) == 0 || frames[0].Type != "std_msgs/Float64" || frames[0].QueueLength != 10 {
		t.Errorf("Unexpected subscribe frame: %+v", frames)
	}
}

func TestClient_WaitForService(t *testing.T) {
	srv := rosbridgetest.NewServer()
	defer srv.Close()

	c := dial(t, srv)

	go func() {
		time.Sleep(50 * time.Millisecond)
		srv.Handle("/mavros/set_stream_rate", func(json.RawMessage) (any, error) { return struct{}{}, nil })
	}()

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	if err := c.WaitForService(ctx, "/mavros/set_stream_rate", 10*time.Millisecond); err != nil {
		t.Fatalf("WaitForService failed: %v", err)
	}
	if calls := srv.Calls("/rosapi/services"); len(calls) < 2 {
		t.Errorf("Expected the service list to be polled, got %d calls", len(calls))
	}
}

func TestClient_WaitForServiceTimeout(t *testing.T) {
	srv := rosbridgetest.NewServer()
	defer srv.Close()

	c := dial(t, srv)

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	err := c.WaitForService(ctx, "/never", 10*time.Millisecond)
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Errorf("Expected deadline exceeded, got %v", err)
	}
}

func TestClient_ConnectionLost(t *testing.T) {
	srv := rosbridgetest.NewServer()
	defer srv.Close()

	c := dial(t, srv)
	srv.CloseClients()

	select {
	case <-c.Done():
	case <-time.After(2 * time.Second):
		t.Fatalf("Client did not notice the lost connection")
	}

	if !errors.Is(c.Err(), ErrClosed) {
		t.Errorf("Expected ErrClosed, got %v", c.Err())
	}
	if err := c.CallService(context.Background(), "/any", nil, nil); !errors.Is(err, ErrClosed) {
		t.Errorf("Expected ErrClosed from call on lost connection, got %v", err)
	}
}

func TestDial_Unreachable(t *testing.T) {
	srv := rosbridgetest.NewServer()
	url := srv.URL()
	srv.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	if _, err := Dial(ctx, url); err == nil {
		t.Errorf("Expected dial error")
	}
}
