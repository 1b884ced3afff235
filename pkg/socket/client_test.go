package socket

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

// fakeConn is an in-memory Conn driven by the test
type fakeConn struct {
	incoming chan []byte
	closed   chan struct{}
	once     sync.Once

	mu      sync.Mutex
	written []Frame
}

func newFakeConn() *fakeConn {
	return &fakeConn{incoming: make(chan []byte, 16), closed: make(chan struct{})}
}

func (f *fakeConn) ReadMessage() (int, []byte, error) {
	select {
	case data := <-f.incoming:
		return websocket.TextMessage, data, nil
	case <-f.closed:
		return 0, nil, errors.New("closed")
	}
}

func (f *fakeConn) WriteMessage(_ int, data []byte) error {
	var frame Frame
	if err := json.Unmarshal(data, &frame); err != nil {
		return err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.written = append(f.written, frame)
	return nil
}

func (f *fakeConn) Close() error {
	f.once.Do(func() { close(f.closed) })
	return nil
}

func (f *fakeConn) isClosed() bool {
	select {
	case <-f.closed:
		return true
	default:
		return false
	}
}

func (f *fakeConn) push(t *testing.T, event string, args ...any) {
	t.Helper()
	data, err := encodeFrame(event, args)
	require.NoError(t, err)
	f.incoming <- data
}

func (f *fakeConn) frames() []Frame {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]Frame(nil), f.written...)
}

// fakeDialer hands out fakeConns and records dialed URLs
type fakeDialer struct {
	mu    sync.Mutex
	urls  []string
	conns []*fakeConn
	err   error
}

func (d *fakeDialer) Dial(ctx context.Context, url string) (Conn, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.urls = append(d.urls, url)
	if d.err != nil {
		return nil, d.err
	}
	conn := newFakeConn()
	d.conns = append(d.conns, conn)
	return conn, nil
}

func (d *fakeDialer) last() *fakeConn {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.conns[len(d.conns)-1]
}

func newTestClient(d Dialer) *Client {
	return NewClient("ws://realtime.test/socket", d, zap.NewNop())
}

func TestOn_QueuedUntilConnectedThenReplayedInOrder(t *testing.T) {
	dialer := &fakeDialer{}
	client := newTestClient(dialer)

	var mu sync.Mutex
	var order []string
	done := make(chan struct{}, 2)
	record := func(name string) Handler {
		return func(args []json.RawMessage) {
			mu.Lock()
			order = append(order, name)
			mu.Unlock()
			done <- struct{}{}
		}
	}

	client.On(EventServiceRequestUpdated, record("first"))
	client.On(EventServiceRequestUpdated, record("second"))
	assert.Equal(t, 2, client.PendingCount())
	assert.Equal(t, Disconnected, client.State())

	require.NoError(t, client.UpdateToken(context.Background(), "tok"))
	assert.Equal(t, Connected, client.State())
	assert.Equal(t, 0, client.PendingCount())

	dialer.last().push(t, EventServiceRequestUpdated, map[string]string{"id": "r1"})
	receive(t, done, 2)

	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, []string{"first", "second"}, order)
}

func TestUpdateToken_CarriesTokenInQuery(t *testing.T) {
	dialer := &fakeDialer{}
	client := newTestClient(dialer)

	require.NoError(t, client.UpdateToken(context.Background(), "abc 123"))
	require.Len(t, dialer.urls, 1)
	assert.Equal(t, "ws://realtime.test/socket?token=abc+123", dialer.urls[0])
	assert.Equal(t, "abc 123", client.Token())
}

func TestUpdateToken_EmptyTokenDisconnects(t *testing.T) {
	dialer := &fakeDialer{}
	client := newTestClient(dialer)

	require.NoError(t, client.UpdateToken(context.Background(), "tok"))
	conn := dialer.last()

	require.NoError(t, client.UpdateToken(context.Background(), ""))
	assert.Equal(t, Disconnected, client.State())
	assert.True(t, conn.isClosed())
	assert.Len(t, dialer.urls, 1, "empty token must not dial")
}

func TestUpdateToken_ReconnectReplaysLiveListeners(t *testing.T) {
	dialer := &fakeDialer{}
	client := newTestClient(dialer)
	got := make(chan struct{}, 1)

	require.NoError(t, client.UpdateToken(context.Background(), "tok-1"))
	client.On(EventNewMessage, func(args []json.RawMessage) { got <- struct{}{} })
	first := dialer.last()

	require.NoError(t, client.UpdateToken(context.Background(), "tok-2"))
	assert.True(t, first.isClosed())

	dialer.last().push(t, EventNewMessage, "hello")
	receive(t, got, 1)
}

func TestOff_RemovesQueuedAndLive(t *testing.T) {
	dialer := &fakeDialer{}
	client := newTestClient(dialer)

	calls := make(chan string, 4)
	a := client.On(EventUserTyping, func([]json.RawMessage) { calls <- "a" })
	client.On(EventUserTyping, func([]json.RawMessage) { calls <- "b" })
	client.Off(EventUserTyping, a)
	client.Off(EventUserTyping, a) // idempotent
	assert.Equal(t, 1, client.PendingCount())

	require.NoError(t, client.UpdateToken(context.Background(), "tok"))
	client.On(EventUserTyping, func([]json.RawMessage) { calls <- "c" })

	dialer.last().push(t, EventUserTyping, "u1")
	assert.Equal(t, []string{"b", "c"}, receive(t, calls, 2))

	client.Off(EventUserTyping)
	dialer.last().push(t, EventUserTyping, "u1")
	select {
	case c := <-calls:
		t.Fatalf("unexpected call to %s after Off", c)
	case <-time.After(50 * time.Millisecond):
	}
}

func TestEmit_DroppedWithoutConnection(t *testing.T) {
	dialer := &fakeDialer{}
	client := newTestClient(dialer)

	assert.False(t, client.Emit(EventTyping, "appt-1"))

	require.NoError(t, client.UpdateToken(context.Background(), "tok"))
	assert.True(t, client.Emit(EventTyping, map[string]string{"appointmentId": "appt-1"}))

	frames := dialer.last().frames()
	require.Len(t, frames, 1)
	assert.Equal(t, EventTyping, frames[0].Event)
	assert.JSONEq(t, `{"appointmentId":"appt-1"}`, string(frames[0].Data[0]))
}

func TestAuthFailureFrame_TearsDownWithoutRetry(t *testing.T) {
	dialer := &fakeDialer{}
	client := newTestClient(dialer)

	reasons := make(chan string, 1)
	client.OnAuthFailure(func(reason string) { reasons <- reason })

	require.NoError(t, client.UpdateToken(context.Background(), "tok"))
	conn := dialer.last()
	conn.push(t, EventConnectError, map[string]string{"message": "Authentication error: Token expired"})

	select {
	case reason := <-reasons:
		assert.Contains(t, reason, "Token expired")
	case <-time.After(time.Second):
		t.Fatal("auth failure callback not invoked")
	}

	assert.Equal(t, Disconnected, client.State())
	assert.Empty(t, client.Token())
	assert.True(t, conn.isClosed())
	assert.Len(t, dialer.urls, 1)
}

func TestNonAuthErrorFrame_IsDispatched(t *testing.T) {
	dialer := &fakeDialer{}
	client := newTestClient(dialer)
	got := make(chan string, 1)
	client.On(EventError, func(args []json.RawMessage) {
		var msg string
		Decode(args, 0, &msg)
		got <- msg
	})

	require.NoError(t, client.UpdateToken(context.Background(), "tok"))
	dialer.last().push(t, EventError, "Message too long")

	select {
	case msg := <-got:
		assert.Equal(t, "Message too long", msg)
	case <-time.After(time.Second):
		t.Fatal("error event not dispatched")
	}
	assert.Equal(t, Connected, client.State())
}

func TestDialAuthError_EvictsToken(t *testing.T) {
	dialer := &fakeDialer{err: &AuthError{Message: "Authentication error: Account banned"}}
	client := newTestClient(dialer)

	var reason string
	client.OnAuthFailure(func(r string) { reason = r })

	err := client.UpdateToken(context.Background(), "tok")
	var authErr *AuthError
	require.ErrorAs(t, err, &authErr)
	assert.Equal(t, "Authentication error: Account banned", reason)
	assert.Empty(t, client.Token())
	assert.Equal(t, Disconnected, client.State())
}

func TestIsAuthFailureMessage(t *testing.T) {
	for _, msg := range []string{
		"Authentication error: Invalid token",
		"Authentication error: Token expired",
		"Authentication error: No token provided",
		"Authentication error: Account banned",
		"Authentication error: Invalid token type",
	} {
		assert.True(t, IsAuthFailureMessage(msg), msg)
	}
	assert.False(t, IsAuthFailureMessage("Conversation not found"))
}

func TestWSDialer_EndToEnd(t *testing.T) {
	upgrader := websocket.Upgrader{}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Query().Get("token") != "good" {
			w.WriteHeader(http.StatusUnauthorized)
			w.Write([]byte(`{"message":"Authentication error: Invalid token"}`))
			return
		}
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		defer conn.Close()

		// Echo every frame back as a service-request-updated broadcast
		for {
			_, data, err := conn.ReadMessage()
			if err != nil {
				return
			}
			var in Frame
			json.Unmarshal(data, &in)
			out, _ := json.Marshal(Frame{Event: EventServiceRequestUpdated, Data: in.Data})
			conn.WriteMessage(websocket.TextMessage, out)
		}
	}))
	defer srv.Close()

	wsURL := "ws" + strings.TrimPrefix(srv.URL, "http")

	t.Run("rejected handshake", func(t *testing.T) {
		client := NewClient(wsURL, WSDialer{}, zap.NewNop())
		err := client.UpdateToken(context.Background(), "bad")
		var authErr *AuthError
		require.ErrorAs(t, err, &authErr)
		assert.Equal(t, "Authentication error: Invalid token", authErr.Message)
	})

	t.Run("round trip", func(t *testing.T) {
		client := NewClient(wsURL, WSDialer{}, zap.NewNop())
		got := make(chan string, 1)
		client.On(EventServiceRequestUpdated, func(args []json.RawMessage) {
			var id string
			Decode(args, 0, &id)
			got <- id
		})

		require.NoError(t, client.UpdateToken(context.Background(), "good"))
		defer client.Disconnect()
		require.True(t, client.Emit(EventJoinServiceRequest, "r42"))

		select {
		case id := <-got:
			assert.Equal(t, "r42", id)
		case <-time.After(2 * time.Second):
			t.Fatal("no broadcast received")
		}
	})
}

func receive[T any](t *testing.T, ch chan T, n int) []T {
	t.Helper()
	out := make([]T, 0, n)
	for len(out) < n {
		select {
		case v := <-ch:
			out = append(out, v)
		case <-time.After(time.Second):
			t.Fatalf("timed out after %d of %d events", len(out), n)
		}
	}
	return out
}
