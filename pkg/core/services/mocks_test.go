package services

import (
	"context"
	"encoding/json"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/jakechorley/skillconnect/pkg/core/model"
	"github.com/jakechorley/skillconnect/pkg/socket"
)

// mockRequestsAPI serves successive list responses; the last one repeats
type mockRequestsAPI struct {
	mu         sync.Mutex
	responses  [][]model.ServiceRequest
	fetchErr   error
	fetchCalls int
	// gate, if set, runs before each fetch returns
	gate func(ctx context.Context, call int) error

	accepted    *model.ServiceRequest
	acceptErr   error
	declineErr  error
	cancelled   *model.ServiceRequest
	cancelErr   error
	updated     *model.ServiceRequest
	updateErr   error
	updateCalls int
	deleteErr   error
}

func (m *mockRequestsAPI) list(ctx context.Context) ([]model.ServiceRequest, error) {
	m.mu.Lock()
	m.fetchCalls++
	call := m.fetchCalls
	gate, err := m.gate, m.fetchErr
	var resp []model.ServiceRequest
	if idx := min(call, len(m.responses)) - 1; idx >= 0 {
		resp = m.responses[idx]
	}
	m.mu.Unlock()

	if gate != nil {
		if gerr := gate(ctx, call); gerr != nil {
			return nil, gerr
		}
	}
	if err != nil {
		return nil, err
	}
	return append([]model.ServiceRequest(nil), resp...), nil
}

func (m *mockRequestsAPI) calls() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.fetchCalls
}

func (m *mockRequestsAPI) MatchingRequests(ctx context.Context) ([]model.ServiceRequest, error) {
	return m.list(ctx)
}

func (m *mockRequestsAPI) UserServiceRequests(ctx context.Context) ([]model.ServiceRequest, error) {
	return m.list(ctx)
}

func (m *mockRequestsAPI) ServiceRequests(ctx context.Context) ([]model.ServiceRequest, error) {
	return m.list(ctx)
}

func (m *mockRequestsAPI) AcceptRequest(ctx context.Context, id string) (*model.ServiceRequest, error) {
	return m.accepted, m.acceptErr
}

func (m *mockRequestsAPI) DeclineRequest(ctx context.Context, id string) error {
	return m.declineErr
}

func (m *mockRequestsAPI) CancelRequest(ctx context.Context, id string) (*model.ServiceRequest, error) {
	return m.cancelled, m.cancelErr
}

func (m *mockRequestsAPI) UpdateRequest(ctx context.Context, id string, update model.ServiceRequestUpdate) (*model.ServiceRequest, error) {
	m.updateCalls++
	return m.updated, m.updateErr
}

func (m *mockRequestsAPI) DeleteRequest(ctx context.Context, id string) error {
	return m.deleteErr
}

type registration struct {
	event   string
	handler socket.Handler
}

type emitted struct {
	event string
	args  []any
}

// mockRealtime records registrations and emits; fire invokes handlers synchronously
type mockRealtime struct {
	mu       sync.Mutex
	next     socket.ListenerID
	handlers map[socket.ListenerID]registration
	emits    []emitted
}

func newMockRealtime() *mockRealtime {
	return &mockRealtime{handlers: make(map[socket.ListenerID]registration)}
}

func (m *mockRealtime) On(event string, handler socket.Handler) socket.ListenerID {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.next++
	m.handlers[m.next] = registration{event: event, handler: handler}
	return m.next
}

func (m *mockRealtime) Off(event string, ids ...socket.ListenerID) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for id, reg := range m.handlers {
		if reg.event != event {
			continue
		}
		if len(ids) == 0 {
			delete(m.handlers, id)
			continue
		}
		for _, target := range ids {
			if id == target {
				delete(m.handlers, id)
			}
		}
	}
}

func (m *mockRealtime) Emit(event string, args ...any) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.emits = append(m.emits, emitted{event: event, args: args})
	return true
}

func (m *mockRealtime) fire(t *testing.T, event string, payload any) {
	t.Helper()
	raw, err := json.Marshal(payload)
	require.NoError(t, err)

	m.mu.Lock()
	var handlers []socket.Handler
	for _, reg := range m.handlers {
		if reg.event == event {
			handlers = append(handlers, reg.handler)
		}
	}
	m.mu.Unlock()

	for _, h := range handlers {
		h([]json.RawMessage{raw})
	}
}

func (m *mockRealtime) listenerCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.handlers)
}

func (m *mockRealtime) emitted(event string) []any {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []any
	for _, e := range m.emits {
		if e.event == event && len(e.args) > 0 {
			out = append(out, e.args[0])
		}
	}
	return out
}

func next[T any](t *testing.T, ch <-chan T) T {
	t.Helper()
	select {
	case v := <-ch:
		return v
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for value")
	}
	var zero T
	return zero
}

func ptr(f float64) *float64 { return &f }
