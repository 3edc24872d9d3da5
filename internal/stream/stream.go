package stream

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"slices"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/five82/perch/internal/logapi"
)

const (
	// DefaultReconnectDelay is the fixed wait between a closed connection and
	// the next dial.
	DefaultReconnectDelay = 2 * time.Second

	// DefaultMaxMessageSize bounds one decoded frame. The server accepts 1 MiB
	// input lines and repeats the line in raw and parsed form, so frames can
	// exceed the line size several times over.
	DefaultMaxMessageSize = 8 << 20

	defaultEventBuffer = 256
	handshakeTimeout   = 10 * time.Second
	writeTimeout       = 10 * time.Second
)

// ErrClosed is returned by Run after Close has been called.
var ErrClosed = errors.New("stream: client closed")

var errFrameTooLarge = errors.New("frame too large")

// State is the connection state of the live subscription.
type State int

const (
	StateClosed State = iota
	StateConnecting
	StateOpen
)

func (s State) String() string {
	switch s {
	case StateConnecting:
		return "connecting"
	case StateOpen:
		return "open"
	default:
		return "closed"
	}
}

// Event is delivered on Client.Events in arrival order.
type Event interface {
	isEvent()
}

// LogEvent carries one decoded record.
type LogEvent struct {
	Entry logapi.LogEntry
}

// StatusEvent reports whether the upstream producer is still open.
type StatusEvent struct {
	UpstreamOpen bool
}

// ConnectionEvent reports a connection state transition.
type ConnectionEvent struct {
	State State
}

func (LogEvent) isEvent()        {}
func (StatusEvent) isEvent()     {}
func (ConnectionEvent) isEvent() {}

// Options configure a Client.
type Options struct {
	Dialer         *websocket.Dialer
	Header         http.Header
	ReconnectDelay time.Duration // zero uses DefaultReconnectDelay
	Filter         logapi.Filter // subscribed on the first open
	Logger         *slog.Logger
	EventBuffer    int
	MaxMessageSize int64 // zero uses DefaultMaxMessageSize; larger frames are skipped
}

// Client maintains a single live subscription to /ws/logs.
type Client struct {
	url    string
	dialer *websocket.Dialer
	header http.Header
	delay  time.Duration
	limit  int64
	logger *slog.Logger
	events chan Event

	mu        sync.Mutex // guards the fields below and serializes socket writes
	state     State
	filter    logapi.Filter
	conn      *websocket.Conn
	reconnect *time.Timer
	started   bool
	closed    bool

	done    chan struct{}
	stopped chan struct{}
}

// New builds a Client for the stream endpoint at url. Nothing is dialed until Run.
func New(url string, opts Options) (*Client, error) {
	if url == "" {
		return nil, fmt.Errorf("stream url is empty")
	}
	dialer := opts.Dialer
	if dialer == nil {
		dialer = &websocket.Dialer{
			Proxy:            http.ProxyFromEnvironment,
			HandshakeTimeout: handshakeTimeout,
		}
	}
	delay := opts.ReconnectDelay
	if delay <= 0 {
		delay = DefaultReconnectDelay
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	buffer := opts.EventBuffer
	if buffer <= 0 {
		buffer = defaultEventBuffer
	}
	limit := opts.MaxMessageSize
	if limit <= 0 {
		limit = DefaultMaxMessageSize
	}
	return &Client{
		url:     url,
		dialer:  dialer,
		header:  opts.Header,
		delay:   delay,
		limit:   limit,
		logger:  logger.With("component", "stream"),
		events:  make(chan Event, buffer),
		filter:  cloneFilter(opts.Filter),
		done:    make(chan struct{}),
		stopped: make(chan struct{}),
	}, nil
}

// Events returns the ordered event feed. It is closed once the client is closed
// or Run returns.
func (c *Client) Events() <-chan Event {
	return c.events
}

// State returns the current connection state.
func (c *Client) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// Filter returns the remembered subscription filter.
func (c *Client) Filter() logapi.Filter {
	c.mu.Lock()
	defer c.mu.Unlock()
	return cloneFilter(c.filter)
}

// UpdateFilter remembers filter and, when the connection is open, resubscribes
// immediately. When it is not open the filter is sent on the next open.
func (c *Client) UpdateFilter(filter logapi.Filter) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.filter = cloneFilter(filter)
	if c.state != StateOpen || c.conn == nil {
		return nil
	}
	return c.subscribeLocked(c.conn)
}

// Run dials, subscribes and reads until ctx is cancelled or Close is called,
// reconnecting after every closure. It returns nil on shutdown.
func (c *Client) Run(ctx context.Context) error {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return ErrClosed
	}
	if c.started {
		c.mu.Unlock()
		return fmt.Errorf("stream: already running")
	}
	c.started = true
	c.mu.Unlock()

	defer close(c.stopped)
	defer close(c.events)

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	go func() {
		select {
		case <-c.done:
			cancel()
		case <-ctx.Done():
		}
	}()

	for {
		c.setState(ctx, StateConnecting)
		conn, resp, err := c.dialer.DialContext(ctx, c.url, c.header)
		if resp != nil && resp.Body != nil {
			_ = resp.Body.Close()
		}
		switch {
		case err != nil && ctx.Err() != nil:
			c.setState(ctx, StateClosed)
			return nil
		case err != nil:
			c.logger.Warn("dial failed", "url", c.url, "err", err)
		default:
			c.serve(ctx, conn)
		}
		c.setState(ctx, StateClosed)

		if !c.waitReconnect(ctx) {
			return nil
		}
	}
}

// Close tears the client down: the pending reconnect is cancelled, the socket
// is closed and Run is waited for. Close is safe to call more than once.
func (c *Client) Close() error {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return nil
	}
	c.closed = true
	started := c.started
	if c.reconnect != nil {
		c.reconnect.Stop()
		c.reconnect = nil
	}
	conn := c.conn
	c.mu.Unlock()

	close(c.done)
	if conn != nil {
		_ = conn.Close()
	}
	if !started {
		close(c.events)
		return nil
	}
	<-c.stopped
	return nil
}

// serve owns one open connection until it fails or ctx ends.
func (c *Client) serve(ctx context.Context, conn *websocket.Conn) {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		_ = conn.Close()
		return
	}
	c.conn = conn
	c.state = StateOpen
	err := c.subscribeLocked(conn)
	c.mu.Unlock()

	defer func() {
		c.mu.Lock()
		c.conn = nil
		c.mu.Unlock()
		_ = conn.Close()
	}()

	c.emit(ctx, ConnectionEvent{State: StateOpen})
	if err != nil {
		c.logger.Warn("subscribe failed", "err", err)
		return
	}

	stop := context.AfterFunc(ctx, func() { _ = conn.Close() })
	defer stop()

	for {
		_, r, err := conn.NextReader()
		if err != nil {
			if ctx.Err() == nil && websocket.IsUnexpectedCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				c.logger.Warn("connection lost", "err", err)
			}
			return
		}
		data, err := readFrame(r, c.limit)
		if errors.Is(err, errFrameTooLarge) {
			c.logger.Warn("dropping oversized message", "limit", c.limit)
			continue
		}
		if err != nil {
			if ctx.Err() == nil {
				c.logger.Warn("read message", "err", err)
			}
			return
		}
		c.dispatch(ctx, data)
	}
}

// readFrame reads one message of at most limit bytes. A longer message is
// drained and reported as errFrameTooLarge so the connection stays usable.
func readFrame(r io.Reader, limit int64) ([]byte, error) {
	data, err := io.ReadAll(io.LimitReader(r, limit+1))
	if err != nil {
		return nil, err
	}
	if int64(len(data)) <= limit {
		return data, nil
	}
	if _, err := io.Copy(io.Discard, r); err != nil {
		return nil, err
	}
	return nil, errFrameTooLarge
}

// dispatch decodes one inbound message. Bad messages are logged and dropped;
// they never close the connection.
func (c *Client) dispatch(ctx context.Context, data []byte) {
	var msg logapi.StreamMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		c.logger.Warn("decode message", "err", err)
		return
	}
	switch msg.Type {
	case logapi.MessageLog:
		var entry logapi.LogEntry
		if err := json.Unmarshal(msg.Data, &entry); err != nil {
			c.logger.Warn("decode log message", "err", err)
			return
		}
		c.emit(ctx, LogEvent{Entry: entry})
	case logapi.MessageStatus:
		var status logapi.UpstreamStatus
		if err := json.Unmarshal(msg.Data, &status); err != nil {
			c.logger.Warn("decode status message", "err", err)
			return
		}
		c.emit(ctx, StatusEvent{UpstreamOpen: status.StdinOpen})
	default:
		c.logger.Debug("ignoring message", "type", msg.Type)
	}
}

// subscribeLocked sends the remembered filter. c.mu must be held.
func (c *Client) subscribeLocked(conn *websocket.Conn) error {
	_ = conn.SetWriteDeadline(time.Now().Add(writeTimeout))
	if err := conn.WriteJSON(logapi.NewSubscribe(c.filter)); err != nil {
		return fmt.Errorf("send subscribe: %w", err)
	}
	return nil
}

// waitReconnect arms the single reconnect timer and reports whether to dial again.
func (c *Client) waitReconnect(ctx context.Context) bool {
	c.mu.Lock()
	if c.closed || ctx.Err() != nil {
		c.mu.Unlock()
		return false
	}
	timer := time.NewTimer(c.delay)
	c.reconnect = timer
	c.mu.Unlock()

	defer func() {
		c.mu.Lock()
		if c.reconnect == timer {
			c.reconnect = nil
		}
		c.mu.Unlock()
	}()

	select {
	case <-timer.C:
		return true
	case <-ctx.Done():
		timer.Stop()
		return false
	}
}

func (c *Client) setState(ctx context.Context, state State) {
	c.mu.Lock()
	changed := c.state != state
	c.state = state
	c.mu.Unlock()
	if changed {
		c.emit(ctx, ConnectionEvent{State: state})
	}
}

// emit delivers ev in order, giving up only when the client shuts down.
func (c *Client) emit(ctx context.Context, ev Event) {
	select {
	case c.events <- ev:
	case <-ctx.Done():
	}
}

func cloneFilter(f logapi.Filter) logapi.Filter {
	f.Levels = slices.Clone(f.Levels)
	return f
}
