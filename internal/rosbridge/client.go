package rosbridge

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"slices"
	"strconv"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"
)

const (
	servicesService = "/rosapi/services"
	writeTimeout    = 5 * time.Second
)

var (
	// ErrClosed is returned by operations on a closed client
	ErrClosed = errors.New("rosbridge connection closed")

	// ErrServiceFailed is returned when a service call reports failure
	ErrServiceFailed = errors.New("service call failed")

	// ErrAlreadySubscribed is returned when subscribing twice to the same topic
	ErrAlreadySubscribed = errors.New("topic already subscribed")
)

// Handler receives the raw JSON payload of a published message. Handlers run
// on the connection read goroutine and must not block.
type Handler func(msg json.RawMessage)

// WithLogger sets the logger for the client
func WithLogger(logger *slog.Logger) func(c *Client) {
	return func(c *Client) {
		c.logger = logger.With(slog.String("component", "rosbridge"))
	}
}

// WithDialer replaces the websocket dialer
func WithDialer(dialer *websocket.Dialer) func(c *Client) {
	return func(c *Client) {
		c.dialer = dialer
	}
}

// Client talks to a rosbridge server over a single websocket connection.
// One goroutine reads and dispatches frames; writes are serialised.
type Client struct {
	url    string
	dialer *websocket.Dialer
	conn   *websocket.Conn

	writeMu sync.Mutex

	mu       sync.Mutex
	handlers map[string]Handler
	pending  map[string]chan serviceResponse

	nextID atomic.Uint64

	done      chan struct{}
	err       error
	closeOnce sync.Once

	logger *slog.Logger
}

// Dial connects to the rosbridge server at url
func Dial(ctx context.Context, url string, options ...func(c *Client)) (*Client, error) {
	c := Client{
		url:      url,
		dialer:   websocket.DefaultDialer,
		handlers: make(map[string]Handler),
		pending:  make(map[string]chan serviceResponse),
		done:     make(chan struct{}),
		logger:   slog.New(slog.NewTextHandler(io.Discard, nil)), // nil logger
	}

	for _, option := range options {
		option(&c)
	}

	conn, _, err := c.dialer.DialContext(ctx, url, nil)
	if err != nil {
		return nil, fmt.Errorf("rosbridge: connecting to %s: %w", url, err)
	}
	c.conn = conn

	go c.readLoop()

	c.logger.Info("connected", slog.String("url", url))

	return &c, nil
}

// Done is closed when the connection is lost or closed
func (c *Client) Done() <-chan struct{} {
	return c.done
}

// Err returns the reason the connection ended, nil while it is open
func (c *Client) Err() error {
	select {
	case <-c.done:
		return c.err
	default:
		return nil
	}
}

// Subscribe registers handler for messages published on topic
func (c *Client) Subscribe(topic, msgType string, queueLength int, handler Handler) error {
	c.mu.Lock()
	if _, ok := c.handlers[topic]; ok {
		c.mu.Unlock()
		return fmt.Errorf("%w: %s", ErrAlreadySubscribed, topic)
	}
	c.handlers[topic] = handler
	c.mu.Unlock()

	err := c.write(message{
		Op:          opSubscribe,
		ID:          c.id(opSubscribe, topic),
		Topic:       topic,
		Type:        msgType,
		QueueLength: queueLength,
	})
	if err != nil {
		c.mu.Lock()
		delete(c.handlers, topic)
		c.mu.Unlock()

		return fmt.Errorf("rosbridge: subscribing to %s: %w", topic, err)
	}

	c.logger.Debug("subscribed", slog.String("topic", topic), slog.String("type", msgType))

	return nil
}

// Unsubscribe removes the handler of topic
func (c *Client) Unsubscribe(topic string) error {
	c.mu.Lock()
	_, ok := c.handlers[topic]
	delete(c.handlers, topic)
	c.mu.Unlock()

	if !ok {
		return nil
	}

	if err := c.write(message{Op: opUnsubscribe, ID: c.id(opUnsubscribe, topic), Topic: topic}); err != nil {
		return fmt.Errorf("rosbridge: unsubscribing from %s: %w", topic, err)
	}

	return nil
}

// CallService calls service with args and decodes the response values into
// result, which may be nil.
func (c *Client) CallService(ctx context.Context, service string, args any, result any) error {
	id := c.id(opCallService, service)
	resp := make(chan serviceResponse, 1)

	c.mu.Lock()
	c.pending[id] = resp
	c.mu.Unlock()

	defer func() {
		c.mu.Lock()
		delete(c.pending, id)
		c.mu.Unlock()
	}()

	if args == nil {
		args = struct{}{}
	}
	if err := c.write(message{Op: opCallService, ID: id, Service: service, Args: args}); err != nil {
		return fmt.Errorf("rosbridge: calling %s: %w", service, err)
	}

	select {
	case r := <-resp:
		if !r.result {
			return fmt.Errorf("%w: %s: %s", ErrServiceFailed, service, string(r.values))
		}
		if result == nil || len(r.values) == 0 {
			return nil
		}
		if err := json.Unmarshal(r.values, result); err != nil {
			return fmt.Errorf("rosbridge: decoding %s response: %w", service, err)
		}
		return nil

	case <-ctx.Done():
		return ctx.Err()

	case <-c.done:
		return c.err
	}
}

// Services lists the services currently advertised
func (c *Client) Services(ctx context.Context) ([]string, error) {
	var resp struct {
		Services []string `json:"services"`
	}
	if err := c.CallService(ctx, servicesService, nil, &resp); err != nil {
		return nil, err
	}

	return resp.Services, nil
}

// WaitForService polls the advertised services every interval until name is
// listed or ctx is done.
func (c *Client) WaitForService(ctx context.Context, name string, interval time.Duration) error {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		services, err := c.Services(ctx)
		switch {
		case err == nil && slices.Contains(services, name):
			c.logger.Info("service available", slog.String("service", name))
			return nil

		case errors.Is(err, ErrClosed):
			return err

		case err != nil && ctx.Err() == nil:
			c.logger.Debug("listing services failed", slog.Any("error", err))
		}

		select {
		case <-ctx.Done():
			return fmt.Errorf("waiting for service %s: %w", name, ctx.Err())
		case <-ticker.C:
		}
	}
}

// Close closes the connection. It is safe to call more than once.
func (c *Client) Close() error {
	var err error
	c.closeOnce.Do(func() {
		c.writeMu.Lock()
		_ = c.conn.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
			time.Now().Add(writeTimeout))
		c.writeMu.Unlock()

		err = c.conn.Close()
	})

	<-c.done

	return err
}

func (c *Client) id(op, name string) string {
	return op + ":" + name + ":" + strconv.FormatUint(c.nextID.Add(1), 10)
}

func (c *Client) write(m message) error {
	select {
	case <-c.done:
		return ErrClosed
	default:
	}

	data, err := json.Marshal(m)
	if err != nil {
		return fmt.Errorf("encoding %s: %w", m.Op, err)
	}

	c.writeMu.Lock()
	defer c.writeMu.Unlock()

	_ = c.conn.SetWriteDeadline(time.Now().Add(writeTimeout))
	return c.conn.WriteMessage(websocket.TextMessage, data)
}

func (c *Client) readLoop() {
	defer close(c.done)

	for {
		_, data, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsCloseError(err, websocket.CloseNormalClosure) || errors.Is(err, websocket.ErrCloseSent) {
				c.err = ErrClosed
			} else {
				c.err = fmt.Errorf("%w: %w", ErrClosed, err)
			}
			c.logger.Info("disconnected", slog.Any("reason", err))
			return
		}

		var m message
		if err = json.Unmarshal(data, &m); err != nil {
			c.logger.Warn("malformed frame", slog.Any("error", err))
			continue
		}

		c.dispatch(&m)
	}
}

func (c *Client) dispatch(m *message) {
	switch m.Op {
	case opPublish:
		c.mu.Lock()
		handler := c.handlers[m.Topic]
		c.mu.Unlock()

		if handler != nil {
			handler(m.Msg)
		}

	case opServiceResponse:
		c.mu.Lock()
		resp, ok := c.pending[m.ID]
		c.mu.Unlock()

		if !ok {
			c.logger.Debug("unsolicited service response", slog.String("id", m.ID))
			return
		}

		select {
		case resp <- serviceResponse{values: m.Values, result: m.Result == nil || *m.Result}:
		default: // duplicate response
		}

	case opStatus:
		c.logger.Warn("server status", slog.String("level", m.Level), slog.String("id", m.ID))

	default:
		c.logger.Debug("ignoring frame", slog.String("op", m.Op))
	}
}
