package services

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"

	"go.uber.org/zap"

	"github.com/jakechorley/skillconnect/pkg/core/model"
	"github.com/jakechorley/skillconnect/pkg/socket"
)

// NotificationsAPI defines the notification operations needed
type NotificationsAPI interface {
	Notifications(ctx context.Context) ([]model.Notification, error)
	MarkNotificationRead(ctx context.Context, id string) error
	MarkAllNotificationsRead(ctx context.Context) error
}

var notificationEvents = []string{
	socket.EventNewNotification,
	socket.EventAppointmentNotification,
}

// NotificationCenter holds the user's notifications, newest first, and prepends
// pushed notifications as they arrive
type NotificationCenter struct {
	api    NotificationsAPI
	rt     Realtime
	logger *zap.Logger

	mu        sync.Mutex
	items     []model.Notification
	listeners map[string]socket.ListenerID
	onNew     func(model.Notification)
}

func NewNotificationCenter(api NotificationsAPI, rt Realtime, logger *zap.Logger) *NotificationCenter {
	return &NotificationCenter{
		api:       api,
		rt:        rt,
		logger:    logger,
		listeners: make(map[string]socket.ListenerID),
	}
}

// Load replaces the notifications with the server's list
func (n *NotificationCenter) Load(ctx context.Context) error {
	items, err := n.api.Notifications(ctx)
	if err != nil {
		return fmt.Errorf("failed to fetch notifications: %w", err)
	}

	n.mu.Lock()
	n.items = items
	n.mu.Unlock()
	return nil
}

// Listen subscribes to pushed notifications. fn, if set, runs for every new one.
func (n *NotificationCenter) Listen(fn func(model.Notification)) {
	n.mu.Lock()
	defer n.mu.Unlock()

	n.onNew = fn
	for _, event := range notificationEvents {
		if _, ok := n.listeners[event]; ok {
			continue
		}
		n.listeners[event] = n.rt.On(event, n.handlePush)
	}
}

// Close removes the realtime subscriptions
func (n *NotificationCenter) Close() {
	n.mu.Lock()
	listeners := n.listeners
	n.listeners = make(map[string]socket.ListenerID)
	n.mu.Unlock()

	for event, id := range listeners {
		n.rt.Off(event, id)
	}
}

func (n *NotificationCenter) handlePush(args []json.RawMessage) {
	var notif model.Notification
	if err := socket.Decode(args, 0, &notif); err != nil {
		n.logger.Debug("Ignoring malformed notification", zap.Error(err))
		return
	}

	n.mu.Lock()
	for _, existing := range n.items {
		if notif.ID != "" && existing.ID == notif.ID {
			n.mu.Unlock()
			return
		}
	}
	n.items = append([]model.Notification{notif}, n.items...)
	fn := n.onNew
	n.mu.Unlock()

	if fn != nil {
		fn(notif)
	}
}

// Items returns the notifications, newest first
func (n *NotificationCenter) Items() []model.Notification {
	n.mu.Lock()
	defer n.mu.Unlock()
	return append([]model.Notification(nil), n.items...)
}

// UnreadCount returns the number of unread notifications
func (n *NotificationCenter) UnreadCount() int {
	n.mu.Lock()
	defer n.mu.Unlock()

	count := 0
	for _, item := range n.items {
		if !item.Read {
			count++
		}
	}
	return count
}

// MarkRead marks one notification read on the server, then locally
func (n *NotificationCenter) MarkRead(ctx context.Context, id string) error {
	if err := n.api.MarkNotificationRead(ctx, id); err != nil {
		return fmt.Errorf("failed to mark notification %s read: %w", id, err)
	}

	n.mu.Lock()
	for i := range n.items {
		if n.items[i].ID == id {
			n.items[i].Read = true
		}
	}
	n.mu.Unlock()
	return nil
}

// MarkAllRead marks every notification read on the server, then locally
func (n *NotificationCenter) MarkAllRead(ctx context.Context) error {
	if err := n.api.MarkAllNotificationsRead(ctx); err != nil {
		return fmt.Errorf("failed to mark all notifications read: %w", err)
	}

	n.mu.Lock()
	for i := range n.items {
		n.items[i].Read = true
	}
	n.mu.Unlock()
	return nil
}

// RouteNotification maps a notification to the client route that shows its subject
func RouteNotification(notif model.Notification) string {
	switch notif.Meta.Type {
	case "apply-provider":
		return "/admin/provider-applications"
	case "service-request":
		return "/my-requests"
	case "service-request-posted":
		return "/available-requests"
	case "verification_appointment":
		return "/verification"
	}
	if notif.Meta.BookingID != "" {
		return "/bookings/" + notif.Meta.BookingID
	}
	if notif.Meta.ApptID != "" {
		return "/chat/" + notif.Meta.ApptID
	}
	return "/notifications"
}
