// Package rosbridgetest provides an in-process rosbridge server for tests.
package rosbridgetest

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"

	"github.com/gorilla/websocket"
)

// Frame is a rosbridge frame as seen by the server
type Frame struct {
	Op          string          `json:"op"`
	ID          string          `json:"id,omitempty"`
	Topic       string          `json:"topic,omitempty"`
	Type        string          `json:"type,omitempty"`
	QueueLength int             `json:"queue_length,omitempty"`
	Msg         json.RawMessage `json:"msg,omitempty"`
	Service     string          `json:"service,omitempty"`
	Args        json.RawMessage `json:"args,omitempty"`
	Values      any             `json:"values,omitempty"`
	Result      *bool           `json:"result,omitempty"`
}

// ServiceFunc answers a service call with its response values, or an error
// reported as a failed call.
type ServiceFunc func(args json.RawMessage) (any, error)

// Server is a minimal rosbridge server. It answers service calls with the
// registered ServiceFuncs, lists them through /rosapi/services, and records
// every frame it receives.
type Server struct {
	*httptest.Server

	upgrader websocket.Upgrader

	mu       sync.Mutex
	services map[string]ServiceFunc
	frames   []Frame
	conns    []*websocket.Conn
	subs     chan string
}

// NewServer starts a Server
func NewServer() *Server {
	s := &Server{
		services: make(map[string]ServiceFunc),
		subs:     make(chan string, 64),
	}
	s.Server = httptest.NewServer(http.HandlerFunc(s.serve))

	return s
}

// URL returns the websocket URL of the server
func (s *Server) URL() string {
	return "ws" + strings.TrimPrefix(s.Server.URL, "http")
}

// Handle registers fn as the handler of service
func (s *Server) Handle(service string, fn ServiceFunc) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.services[service] = fn
}

// Subscribed delivers topic names as subscriptions arrive
func (s *Server) Subscribed() <-chan string {
	return s.subs
}

// Publish sends msg on topic to every connected client
func (s *Server) Publish(topic string, msg any) error {
	data, err := json.Marshal(msg)
	if err != nil {
		return err
	}

	return s.broadcast(Frame{Op: "publish", Topic: topic, Msg: data})
}

// Frames returns a copy of the frames received so far
func (s *Server) Frames() []Frame {
	s.mu.Lock()
	defer s.mu.Unlock()

	return append([]Frame(nil), s.frames...)
}

// Calls returns the call_service frames received for service
func (s *Server) Calls(service string) []Frame {
	var calls []Frame
	for _, f := range s.Frames() {
		if f.Op == "call_service" && f.Service == service {
			calls = append(calls, f)
		}
	}
	return calls
}

// CloseClients drops every client connection
func (s *Server) CloseClients() {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, c := range s.conns {
		_ = c.Close()
	}
	s.conns = nil
}

func (s *Server) broadcast(f Frame) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, c := range s.conns {
		if err := c.WriteJSON(f); err != nil {
			return err
		}
	}
	return nil
}

func (s *Server) reply(conn *websocket.Conn, f Frame) {
	s.mu.Lock()
	defer s.mu.Unlock()

	_ = conn.WriteJSON(f)
}

func (s *Server) serve(w http.ResponseWriter, r *http.Request) {
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		return
	}

	s.mu.Lock()
	s.conns = append(s.conns, conn)
	s.mu.Unlock()

	for {
		var f Frame
		if err = conn.ReadJSON(&f); err != nil {
			return
		}

		s.mu.Lock()
		s.frames = append(s.frames, f)
		s.mu.Unlock()

		switch f.Op {
		case "subscribe":
			select {
			case s.subs <- f.Topic:
			default:
			}

		case "call_service":
			s.reply(conn, s.call(f))
		}
	}
}

func (s *Server) call(f Frame) Frame {
	resp := Frame{Op: "service_response", ID: f.ID, Service: f.Service}
	ok := true
	resp.Result = &ok

	s.mu.Lock()
	fn, found := s.services[f.Service]
	names := make([]string, 0, len(s.services)+1)
	for name := range s.services {
		names = append(names, name)
	}
	s.mu.Unlock()

	switch {
	case f.Service == "/rosapi/services":
		resp.Values = map[string][]string{"services": append(names, "/rosapi/services")}

	case !found:
		failed := false
		resp.Result = &failed
		resp.Values = "service does not exist"

	default:
		values, err := fn(f.Args)
		if err != nil {
			failed := false
			resp.Result = &failed
			resp.Values = err.Error()
		} else {
			resp.Values = values
		}
	}

	return resp
}
