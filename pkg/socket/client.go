// Package socket is the realtime channel shared by every view. Listeners may be
// registered before a connection exists; they are queued and activated in
// registration order once the client is connected.
package socket

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/url"
	"sync"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

// State is the connection state of the client
type State int

const (
	Disconnected State = iota
	Connecting
	Connected
)

func (s State) String() string {
	switch s {
	case Disconnected:
		return "disconnected"
	case Connecting:
		return "connecting"
	case Connected:
		return "connected"
	}
	return fmt.Sprintf("State(%d)", int(s))
}

// Handler receives the arguments of an event
type Handler func(args []json.RawMessage)

// ListenerID identifies a registration returned by On
type ListenerID uint64

type listener struct {
	id      ListenerID
	event   string
	handler Handler
}

// Client is the process-wide realtime connection. Only the session owner
// calls UpdateToken and Disconnect; views only register and remove listeners.
type Client struct {
	url    string
	dialer Dialer
	logger *zap.Logger

	mu            sync.Mutex
	state         State
	conn          Conn
	token         string
	gen           uint64
	nextID        ListenerID
	pending       []*listener
	live          []*listener
	onAuthFailure func(reason string)

	writeMu sync.Mutex
}

// NewClient creates a disconnected client for the realtime server at serverURL
func NewClient(serverURL string, dialer Dialer, logger *zap.Logger) *Client {
	if dialer == nil {
		dialer = WSDialer{}
	}
	return &Client{
		url:    serverURL,
		dialer: dialer,
		logger: logger,
	}
}

// OnAuthFailure sets the callback invoked after the server rejects the token.
// The client has already torn itself down when it runs.
func (c *Client) OnAuthFailure(fn func(reason string)) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.onAuthFailure = fn
}

// State returns the current connection state
func (c *Client) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// Token returns the token of the current or in-progress connection
func (c *Client) Token() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.token
}

// PendingCount returns the number of registrations waiting for a connection
func (c *Client) PendingCount() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.pending)
}

// On registers handler for event. Without a live connection the registration is queued.
func (c *Client) On(event string, handler Handler) ListenerID {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.nextID++
	l := &listener{id: c.nextID, event: event, handler: handler}
	if c.state == Connected {
		c.live = append(c.live, l)
	} else {
		c.pending = append(c.pending, l)
	}
	return l.id
}

// Off removes the given listeners of event, or all of its listeners when no id is given.
// Queued and live registrations are treated alike. Removing an unknown id is a no-op.
func (c *Client) Off(event string, ids ...ListenerID) {
	c.mu.Lock()
	defer c.mu.Unlock()

	match := func(l *listener) bool {
		if l.event != event {
			return false
		}
		if len(ids) == 0 {
			return true
		}
		for _, id := range ids {
			if l.id == id {
				return true
			}
		}
		return false
	}

	c.pending = removeMatching(c.pending, match)
	c.live = removeMatching(c.live, match)
}

func removeMatching(ls []*listener, match func(*listener) bool) []*listener {
	kept := ls[:0]
	for _, l := range ls {
		if !match(l) {
			kept = append(kept, l)
		}
	}
	for i := len(kept); i < len(ls); i++ {
		ls[i] = nil
	}
	return kept
}

// Emit sends an event. It reports false when there is no live connection and the event was dropped.
func (c *Client) Emit(event string, args ...any) bool {
	c.mu.Lock()
	conn := c.conn
	connected := c.state == Connected
	c.mu.Unlock()

	if !connected || conn == nil {
		c.logger.Debug("Dropping emit without connection", zap.String("event", event))
		return false
	}

	frame, err := encodeFrame(event, args)
	if err != nil {
		c.logger.Warn("Failed to encode emit", zap.String("event", event), zap.Error(err))
		return false
	}

	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	if err := conn.WriteMessage(websocket.TextMessage, frame); err != nil {
		c.logger.Warn("Failed to emit event", zap.String("event", event), zap.Error(err))
		return false
	}
	return true
}

// UpdateToken tears down any existing connection and, for a non-empty token, connects
// with it and replays the queued listeners. An empty token leaves the client disconnected.
func (c *Client) UpdateToken(ctx context.Context, token string) error {
	c.mu.Lock()
	c.teardownLocked()
	c.gen++
	gen := c.gen
	c.token = token
	if token == "" {
		c.mu.Unlock()
		c.logger.Debug("Realtime client disconnected: no token")
		return nil
	}
	c.state = Connecting
	c.mu.Unlock()

	dialURL, err := c.dialURL(token)
	if err != nil {
		c.mu.Lock()
		if c.gen == gen {
			c.state = Disconnected
		}
		c.mu.Unlock()
		return err
	}

	conn, err := c.dialer.Dial(ctx, dialURL)

	c.mu.Lock()
	if c.gen != gen {
		// A newer UpdateToken or Disconnect won the race
		c.mu.Unlock()
		if conn != nil {
			conn.Close()
		}
		return nil
	}

	if err != nil {
		c.state = Disconnected
		var authErr *AuthError
		if !errors.As(err, &authErr) {
			c.mu.Unlock()
			c.logger.Warn("Realtime connection failed", zap.Error(err))
			return err
		}
		c.token = ""
		c.gen++
		cb := c.onAuthFailure
		c.mu.Unlock()

		c.logger.Warn("Realtime authentication rejected", zap.String("reason", authErr.Message))
		if cb != nil {
			cb(authErr.Message)
		}
		return err
	}

	c.conn = conn
	c.state = Connected
	replayed := len(c.pending)
	c.live = append(c.live, c.pending...)
	c.pending = nil
	c.mu.Unlock()

	c.logger.Info("Realtime client connected", zap.Int("replayed_listeners", replayed))
	go c.readLoop(gen, conn)
	return nil
}

// Disconnect closes the connection and forgets the token. Listeners stay queued.
func (c *Client) Disconnect() {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.teardownLocked()
	c.gen++
	c.token = ""
}

// teardownLocked closes the connection and re-queues its live listeners so the next
// connection replays them
func (c *Client) teardownLocked() {
	if c.conn != nil {
		c.conn.Close()
		c.conn = nil
	}
	if len(c.live) > 0 {
		c.pending = append(c.live, c.pending...)
		c.live = nil
	}
	c.state = Disconnected
}

func (c *Client) dialURL(token string) (string, error) {
	u, err := url.Parse(c.url)
	if err != nil {
		return "", fmt.Errorf("invalid realtime server url: %w", err)
	}
	q := u.Query()
	q.Set("token", token)
	u.RawQuery = q.Encode()
	return u.String(), nil
}

func (c *Client) readLoop(gen uint64, conn Conn) {
	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			c.connectionLost(gen, err)
			return
		}

		var frame Frame
		if err := json.Unmarshal(data, &frame); err != nil {
			c.logger.Debug("Ignoring malformed realtime frame", zap.Error(err))
			continue
		}

		if frame.Event == EventConnectError || frame.Event == EventError {
			if msg := errorMessage(frame.Data); IsAuthFailureMessage(msg) {
				c.authFailure(gen, msg)
				return
			}
		}

		c.dispatch(frame)
	}
}

func (c *Client) dispatch(frame Frame) {
	c.mu.Lock()
	var handlers []Handler
	for _, l := range c.live {
		if l.event == frame.Event {
			handlers = append(handlers, l.handler)
		}
	}
	c.mu.Unlock()

	for _, h := range handlers {
		h(frame.Data)
	}
}

func (c *Client) connectionLost(gen uint64, err error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.gen != gen {
		return
	}
	c.logger.Info("Realtime connection closed", zap.Error(err))
	c.teardownLocked()
}

func (c *Client) authFailure(gen uint64, reason string) {
	c.mu.Lock()
	if c.gen != gen {
		c.mu.Unlock()
		return
	}
	c.teardownLocked()
	c.gen++
	c.token = ""
	cb := c.onAuthFailure
	c.mu.Unlock()

	c.logger.Warn("Realtime authentication failed", zap.String("reason", reason))
	if cb != nil {
		cb(reason)
	}
}
