package apiclient

import (
	"context"
	"net/url"

	"github.com/jakechorley/skillconnect/pkg/core/model"
)

// ChatList returns one entry per appointment the current user has a chat for
func (c *Client) ChatList(ctx context.Context) ([]model.ChatEntry, error) {
	var entries []model.ChatEntry
	if err := c.getList(ctx, "/user/chat-list", "chats", &entries); err != nil {
		return nil, err
	}
	return entries, nil
}

// ChatHistory returns the messages of one appointment in insertion order
func (c *Client) ChatHistory(ctx context.Context, appointmentID string) ([]model.Message, error) {
	q := url.Values{}
	q.Set("appointmentId", appointmentID)

	var messages []model.Message
	if err := c.getList(ctx, "/user/chat-history?"+q.Encode(), "messages", &messages); err != nil {
		return nil, err
	}
	return messages, nil
}

// SendMessage posts a message to an appointment's chat
func (c *Client) SendMessage(ctx context.Context, appointmentID, text string) (*model.Message, error) {
	body := struct {
		AppointmentID string `json:"appointmentId"`
		Message       string `json:"message"`
	}{AppointmentID: appointmentID, Message: text}

	var msg model.Message
	if err := c.post(ctx, "/user/send-message", body, &msg); err != nil {
		return nil, err
	}
	return &msg, nil
}

// MarkSeen marks every message of an appointment as seen by the current user
func (c *Client) MarkSeen(ctx context.Context, appointmentID string) error {
	return c.put(ctx, "/user/chat/"+url.PathEscape(appointmentID)+"/mark-seen", struct{}{}, nil)
}
