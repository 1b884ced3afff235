package apiclient

import (
	"context"
	"net/url"

	"github.com/jakechorley/skillconnect/pkg/core/model"
)

// Bookings lists bookings where the current user is requester or provider
func (c *Client) Bookings(ctx context.Context) ([]model.Booking, error) {
	var bookings []model.Booking
	if err := c.getList(ctx, "/user/bookings", "bookings", &bookings); err != nil {
		return nil, err
	}
	return bookings, nil
}

// UpdateBookingStatus moves a booking to a new status
func (c *Client) UpdateBookingStatus(ctx context.Context, id, status string) (*model.Booking, error) {
	body := struct {
		Status string `json:"status"`
	}{Status: status}

	var booking model.Booking
	if err := c.put(ctx, "/user/booking/"+url.PathEscape(id)+"/status", body, &booking); err != nil {
		return nil, err
	}
	return &booking, nil
}
