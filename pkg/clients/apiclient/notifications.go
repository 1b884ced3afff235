package apiclient

import (
	"context"
	"net/url"

	"github.com/jakechorley/skillconnect/pkg/core/model"
)

// Notifications lists the current user's notifications, newest first
func (c *Client) Notifications(ctx context.Context) ([]model.Notification, error) {
	var notifications []model.Notification
	if err := c.getList(ctx, "/user/notifications", "notifications", &notifications); err != nil {
		return nil, err
	}
	return notifications, nil
}

// MarkNotificationRead marks a single notification as read
func (c *Client) MarkNotificationRead(ctx context.Context, id string) error {
	return c.put(ctx, "/user/notifications/"+url.PathEscape(id)+"/read", struct{}{}, nil)
}

// MarkAllNotificationsRead marks every notification as read
func (c *Client) MarkAllNotificationsRead(ctx context.Context) error {
	return c.put(ctx, "/user/notifications/mark-all-read", struct{}{}, nil)
}
