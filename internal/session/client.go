package session

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/url"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/laudoscribe/laudoscribe/internal/metrics"
)

// Config contains session client configuration.
type Config struct {
	Endpoint         string
	APIKey           string
	Model            string
	HandshakeTimeout time.Duration
}

// Handler consumes one inbound server event.
type Handler func(ev ServerEvent)

// Interceptor observes outbound media chunks. Interceptors never alter
// the send; they run before the frame is written.
type Interceptor func(chunks []Chunk)

type handlerEntry struct {
	id uint64
	fn Handler
}

type interceptorEntry struct {
	id uint64
	fn Interceptor
}

// Client is a realtime session over a websocket connection. Inbound
// frames are decoded into tagged events and dispatched to subscribers
// from a single read goroutine, preserving arrival order.
type Client struct {
	cfg     Config
	logger  *slog.Logger
	metrics *metrics.Metrics

	conn    *websocket.Conn
	writeMu sync.Mutex

	// writeFrame is swapped out in tests to capture outbound frames
	writeFrame func(data []byte) error

	handlers     map[EventType][]handlerEntry
	interceptors []interceptorEntry
	nextID       uint64
	mu           sync.Mutex

	done     chan struct{}
	doneOnce sync.Once

	// Statistics
	framesReceived   uint64
	eventsDispatched uint64
	parseErrors      uint64
	chunksSent       uint64
	statsMu          sync.RWMutex
}

// Stats reports session client counters for monitoring.
type Stats struct {
	FramesReceived   uint64 `json:"frames_received"`
	EventsDispatched uint64 `json:"events_dispatched"`
	ParseErrors      uint64 `json:"parse_errors"`
	ChunksSent       uint64 `json:"chunks_sent"`
}

// NewClient creates a session client. Connect must be called before any
// send operation.
func NewClient(cfg Config, m *metrics.Metrics, logger *slog.Logger) (*Client, error) {
	if cfg.Endpoint == "" {
		return nil, fmt.Errorf("endpoint cannot be empty")
	}

	if cfg.Model == "" {
		return nil, fmt.Errorf("model cannot be empty")
	}

	if cfg.HandshakeTimeout <= 0 {
		cfg.HandshakeTimeout = 10 * time.Second
	}

	c := &Client{
		cfg:      cfg,
		logger:   logger,
		metrics:  m,
		handlers: make(map[EventType][]handlerEntry),
		done:     make(chan struct{}),
	}
	c.writeFrame = c.writeToConn

	return c, nil
}

// Connect dials the endpoint, performs the setup handshake, and starts
// the read loop.
func (c *Client) Connect(ctx context.Context) error {
	endpoint, err := url.Parse(c.cfg.Endpoint)
	if err != nil {
		return fmt.Errorf("invalid endpoint: %w", err)
	}

	if c.cfg.APIKey != "" {
		query := endpoint.Query()
		query.Set("key", c.cfg.APIKey)
		endpoint.RawQuery = query.Encode()
	}

	dialer := websocket.Dialer{HandshakeTimeout: c.cfg.HandshakeTimeout}
	conn, _, err := dialer.DialContext(ctx, endpoint.String(), nil)
	if err != nil {
		return fmt.Errorf("failed to dial session endpoint: %w", err)
	}
	c.conn = conn

	setup, err := json.Marshal(setupFrame{Setup: setupPayload{Model: c.cfg.Model}})
	if err != nil {
		conn.Close()
		return fmt.Errorf("failed to encode setup frame: %w", err)
	}

	if err := c.writeFrame(setup); err != nil {
		conn.Close()
		return fmt.Errorf("setup handshake failed: %w", err)
	}

	c.logger.Info("Session connected",
		slog.String("endpoint", c.cfg.Endpoint),
		slog.String("model", c.cfg.Model),
	)

	go c.readLoop()

	return nil
}

// On subscribes a handler to an event type and returns the subscription
// id for Off.
func (c *Client) On(eventType EventType, handler Handler) uint64 {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.nextID++
	id := c.nextID
	c.handlers[eventType] = append(c.handlers[eventType], handlerEntry{id: id, fn: handler})
	return id
}

// Off removes a subscription previously created with On.
func (c *Client) Off(eventType EventType, id uint64) {
	c.mu.Lock()
	defer c.mu.Unlock()

	entries := c.handlers[eventType]
	for i, entry := range entries {
		if entry.id == id {
			c.handlers[eventType] = append(entries[:i], entries[i+1:]...)
			return
		}
	}
}

// RegisterSendInterceptor adds an observer for outbound media chunks and
// returns its unregister function. Teardown is an explicit call, not a
// saved-and-restored method reference.
func (c *Client) RegisterSendInterceptor(fn Interceptor) func() {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.nextID++
	id := c.nextID
	c.interceptors = append(c.interceptors, interceptorEntry{id: id, fn: fn})

	return func() {
		c.mu.Lock()
		defer c.mu.Unlock()

		for i, entry := range c.interceptors {
			if entry.id == id {
				c.interceptors = append(c.interceptors[:i], c.interceptors[i+1:]...)
				return
			}
		}
	}
}

// SendRealtimeInput forwards media chunks to the session. Registered
// interceptors observe the chunks before the frame is written.
func (c *Client) SendRealtimeInput(chunks []Chunk) error {
	c.mu.Lock()
	interceptors := make([]interceptorEntry, len(c.interceptors))
	copy(interceptors, c.interceptors)
	c.mu.Unlock()

	for _, entry := range interceptors {
		entry.fn(chunks)
	}

	frame, err := json.Marshal(realtimeInputFrame{
		RealtimeInput: realtimeInputPayload{MediaChunks: chunks},
	})
	if err != nil {
		return fmt.Errorf("failed to encode realtime input: %w", err)
	}

	if err := c.writeFrame(frame); err != nil {
		return fmt.Errorf("failed to send realtime input: %w", err)
	}

	c.statsMu.Lock()
	c.chunksSent += uint64(len(chunks))
	c.statsMu.Unlock()

	return nil
}

// SendToolResponse answers one or more tool calls.
func (c *Client) SendToolResponse(responses []ToolResponse) error {
	frame, err := json.Marshal(toolResponseFrame{
		ToolResponse: toolResponsePayload{FunctionResponses: responses},
	})
	if err != nil {
		return fmt.Errorf("failed to encode tool response: %w", err)
	}

	if err := c.writeFrame(frame); err != nil {
		return fmt.Errorf("failed to send tool response: %w", err)
	}

	return nil
}

// Done is closed when the read loop has exited.
func (c *Client) Done() <-chan struct{} {
	return c.done
}

// Close sends a close frame and tears down the connection.
func (c *Client) Close() error {
	if c.conn == nil {
		c.doneOnce.Do(func() { close(c.done) })
		return nil
	}

	c.writeMu.Lock()
	err := c.conn.WriteMessage(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, "session closed"))
	c.writeMu.Unlock()

	if closeErr := c.conn.Close(); err == nil {
		err = closeErr
	}

	return err
}

func (c *Client) readLoop() {
	defer c.doneOnce.Do(func() { close(c.done) })

	for {
		messageType, data, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				c.logger.Info("Session closed by server")
			} else {
				c.logger.Error("Session read failed", slog.String("error", err.Error()))
			}
			return
		}

		if messageType != websocket.TextMessage && messageType != websocket.BinaryMessage {
			continue
		}

		c.handleFrame(data)
	}
}

// handleFrame decodes one inbound frame and dispatches its events in
// order. Dispatch happens on the caller's goroutine; the read loop is
// the only caller in production, which serializes all handlers.
func (c *Client) handleFrame(data []byte) {
	c.statsMu.Lock()
	c.framesReceived++
	c.statsMu.Unlock()
	c.metrics.RecordFrameReceived()

	events, err := parseServerFrame(data)
	if err != nil {
		c.statsMu.Lock()
		c.parseErrors++
		c.statsMu.Unlock()
		c.metrics.RecordParseError()

		c.logger.Warn("Dropping undecodable server frame",
			slog.String("error", err.Error()),
			slog.Int("bytes", len(data)),
		)
		return
	}

	for _, ev := range events {
		c.dispatch(ev)
	}
}

func (c *Client) dispatch(ev ServerEvent) {
	c.mu.Lock()
	entries := make([]handlerEntry, len(c.handlers[ev.Type]))
	copy(entries, c.handlers[ev.Type])
	c.mu.Unlock()

	for _, entry := range entries {
		entry.fn(ev)
	}

	c.statsMu.Lock()
	c.eventsDispatched++
	c.statsMu.Unlock()
}

func (c *Client) writeToConn(data []byte) error {
	if c.conn == nil {
		return fmt.Errorf("session is not connected")
	}

	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	return c.conn.WriteMessage(websocket.TextMessage, data)
}

// GetStats returns current session statistics.
func (c *Client) GetStats() Stats {
	c.statsMu.RLock()
	defer c.statsMu.RUnlock()

	return Stats{
		FramesReceived:   c.framesReceived,
		EventsDispatched: c.eventsDispatched,
		ParseErrors:      c.parseErrors,
		ChunksSent:       c.chunksSent,
	}
}
