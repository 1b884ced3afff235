package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"

	"go.uber.org/zap"

	"github.com/jakechorley/skillconnect/pkg/core/model"
	"github.com/jakechorley/skillconnect/pkg/core/status"
	"github.com/jakechorley/skillconnect/pkg/socket"
)

// ErrListClosed is returned by operations on a closed RequestList
var ErrListClosed = errors.New("request list is closed")

// View names a request list and decides which endpoint feeds it
type View string

const (
	ViewMyRequests        View = "my-requests"
	ViewAvailableRequests View = "available-requests"
	ViewWorkRecords       View = "work-records"
)

// ParseView validates a view name
func ParseView(s string) (View, error) {
	switch v := View(s); v {
	case ViewMyRequests, ViewAvailableRequests, ViewWorkRecords:
		return v, nil
	}
	return "", fmt.Errorf("unknown view %q", s)
}

// RequestsAPI defines the request operations a list needs
type RequestsAPI interface {
	MatchingRequests(ctx context.Context) ([]model.ServiceRequest, error)
	UserServiceRequests(ctx context.Context) ([]model.ServiceRequest, error)
	ServiceRequests(ctx context.Context) ([]model.ServiceRequest, error)
	AcceptRequest(ctx context.Context, id string) (*model.ServiceRequest, error)
	DeclineRequest(ctx context.Context, id string) error
	CancelRequest(ctx context.Context, id string) (*model.ServiceRequest, error)
	UpdateRequest(ctx context.Context, id string, update model.ServiceRequestUpdate) (*model.ServiceRequest, error)
	DeleteRequest(ctx context.Context, id string) error
}

// Realtime is the listener side of the shared socket. Lists never own its lifecycle.
type Realtime interface {
	On(event string, handler socket.Handler) socket.ListenerID
	Off(event string, ids ...socket.ListenerID)
	Emit(event string, args ...any) bool
}

// refetchEvents all invalidate every list
var refetchEvents = []string{
	socket.EventServiceRequestUpdated,
	socket.EventRequestAccepted,
	socket.EventRequestCancelled,
}

// RequestList is the live model behind one request view. It re-fetches the whole
// candidate set on every broadcast; the newest fetch always wins.
type RequestList struct {
	view          View
	api           RequestsAPI
	rt            Realtime
	currentUserID string
	logger        *zap.Logger

	ctx       context.Context
	cancelAll context.CancelFunc

	mu        sync.Mutex
	items     []model.ServiceRequest
	filter    Filter
	gen       uint64
	cancel    context.CancelFunc
	listeners map[string]socket.ListenerID
	joined    map[string]bool
	onChange  func([]model.ServiceRequest)
	onError   func(error)
	closed    bool
}

// NewRequestList creates an empty list for view. currentUserID drives own-request exclusion.
func NewRequestList(view View, api RequestsAPI, rt Realtime, currentUserID string, logger *zap.Logger) *RequestList {
	ctx, cancel := context.WithCancel(context.Background())
	return &RequestList{
		view:          view,
		api:           api,
		rt:            rt,
		currentUserID: currentUserID,
		logger:        logger.With(zap.String("view", string(view))),
		ctx:           ctx,
		cancelAll:     cancel,
		listeners:     make(map[string]socket.ListenerID),
		joined:        make(map[string]bool),
	}
}

// Start subscribes to request broadcasts and performs the initial fetch
func (l *RequestList) Start(ctx context.Context) error {
	l.mu.Lock()
	if l.closed {
		l.mu.Unlock()
		return ErrListClosed
	}
	for _, event := range refetchEvents {
		event := event
		if _, ok := l.listeners[event]; ok {
			continue
		}
		l.listeners[event] = l.rt.On(event, func([]json.RawMessage) {
			l.logger.Debug("Broadcast received, refetching", zap.String("event", event))
			go func() {
				if err := l.Refresh(l.ctx); err != nil {
					l.logger.Warn("Refetch after broadcast failed", zap.Error(err))
					l.failed(err)
				}
			}()
		})
	}
	l.mu.Unlock()

	return l.Refresh(ctx)
}

// OnChange registers fn to receive the filtered items after every change
func (l *RequestList) OnChange(fn func([]model.ServiceRequest)) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.onChange = fn
}

// OnError registers fn to receive failed fetches and actions, including those
// triggered by broadcasts that have no caller to return to
func (l *RequestList) OnError(fn func(error)) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.onError = fn
}

func (l *RequestList) failed(err error) {
	l.mu.Lock()
	fn := l.onError
	l.mu.Unlock()
	if fn != nil {
		fn(err)
	}
}

// Refresh re-fetches the candidate set. A fetch superseded by a newer one, or
// finishing after Close, is discarded and returns nil. A failed fetch leaves the
// current items untouched.
func (l *RequestList) Refresh(ctx context.Context) error {
	l.mu.Lock()
	if l.closed {
		l.mu.Unlock()
		return ErrListClosed
	}
	if l.cancel != nil {
		l.cancel()
	}
	l.gen++
	gen := l.gen
	fetchCtx, cancel := mergeCancel(ctx, l.ctx)
	l.cancel = cancel
	l.mu.Unlock()

	defer cancel()

	reqs, err := l.fetch(fetchCtx)

	l.mu.Lock()
	if l.closed || gen != l.gen {
		l.mu.Unlock()
		l.logger.Debug("Discarding superseded fetch", zap.Uint64("generation", gen))
		return nil
	}
	l.cancel = nil
	if err != nil {
		l.mu.Unlock()
		return fmt.Errorf("failed to fetch %s: %w", l.view, err)
	}

	if l.view == ViewAvailableRequests {
		reqs = ExcludeOwn(reqs, l.currentUserID)
	}
	l.items = reqs
	toJoin := l.roomsToJoinLocked()
	l.mu.Unlock()

	for _, id := range toJoin {
		l.rt.Emit(socket.EventJoinServiceRequest, id)
	}

	l.logger.Debug("Request list refreshed", zap.Int("count", len(reqs)))
	l.changed()
	return nil
}

func (l *RequestList) fetch(ctx context.Context) ([]model.ServiceRequest, error) {
	switch l.view {
	case ViewMyRequests:
		return l.api.UserServiceRequests(ctx)
	case ViewAvailableRequests:
		return l.api.MatchingRequests(ctx)
	case ViewWorkRecords:
		return l.api.ServiceRequests(ctx)
	}
	return nil, fmt.Errorf("unknown view %q", l.view)
}

// roomsToJoinLocked returns the own, non-terminal requests whose room has not been joined yet
func (l *RequestList) roomsToJoinLocked() []string {
	if l.view != ViewMyRequests {
		return nil
	}
	var ids []string
	for _, r := range l.items {
		if l.joined[r.ID] || status.IsTerminal(r.Status) {
			continue
		}
		l.joined[r.ID] = true
		ids = append(ids, r.ID)
	}
	return ids
}

// SetFilter replaces the filter and notifies the change observer
func (l *RequestList) SetFilter(f Filter) {
	l.mu.Lock()
	l.filter = f
	l.mu.Unlock()
	l.changed()
}

// Items returns the visible (filtered) requests
func (l *RequestList) Items() []model.ServiceRequest {
	l.mu.Lock()
	defer l.mu.Unlock()
	return ApplyFilter(l.items, l.filter)
}

// All returns every fetched request, ignoring the filter
func (l *RequestList) All() []model.ServiceRequest {
	l.mu.Lock()
	defer l.mu.Unlock()
	return append([]model.ServiceRequest(nil), l.items...)
}

// Find returns the fetched request with id
func (l *RequestList) Find(id string) (model.ServiceRequest, bool) {
	l.mu.Lock()
	defer l.mu.Unlock()
	for _, r := range l.items {
		if r.ID == id {
			return r, true
		}
	}
	return model.ServiceRequest{}, false
}

// Close unsubscribes, leaves joined rooms and cancels any in-flight fetch
func (l *RequestList) Close() {
	l.mu.Lock()
	if l.closed {
		l.mu.Unlock()
		return
	}
	l.closed = true
	listeners := l.listeners
	l.listeners = map[string]socket.ListenerID{}
	var rooms []string
	for id := range l.joined {
		rooms = append(rooms, id)
	}
	l.joined = map[string]bool{}
	l.mu.Unlock()

	l.cancelAll()
	for event, id := range listeners {
		l.rt.Off(event, id)
	}
	for _, id := range rooms {
		l.rt.Emit(socket.EventLeaveServiceRequest, id)
	}
}

func (l *RequestList) changed() {
	l.mu.Lock()
	fn := l.onChange
	visible := ApplyFilter(l.items, l.filter)
	l.mu.Unlock()

	if fn != nil {
		fn(visible)
	}
}

// mutate applies fn to the fetched items under the lock and notifies observers
func (l *RequestList) mutate(fn func(items []model.ServiceRequest) []model.ServiceRequest) {
	l.mu.Lock()
	l.items = fn(l.items)
	l.mu.Unlock()
	l.changed()
}

// mergeCancel returns a context cancelled when either parent is done
func mergeCancel(ctx, other context.Context) (context.Context, context.CancelFunc) {
	merged, cancel := context.WithCancel(ctx)
	stop := context.AfterFunc(other, cancel)
	return merged, func() {
		stop()
		cancel()
	}
}
