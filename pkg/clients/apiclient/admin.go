package apiclient

import (
	"context"
	"net/url"

	"github.com/jakechorley/skillconnect/pkg/core/model"
)

// Users lists registered users, optionally filtered by a search term
func (c *Client) Users(ctx context.Context, search string) ([]model.User, error) {
	path := "/admin/users"
	if search != "" {
		q := url.Values{}
		q.Set("search", search)
		path += "?" + q.Encode()
	}

	var users []model.User
	if err := c.getList(ctx, path, "users", &users); err != nil {
		return nil, err
	}
	return users, nil
}

// SetUserStatus changes a user's account status (active, banned)
func (c *Client) SetUserStatus(ctx context.Context, id, status string) error {
	body := struct {
		Status string `json:"status"`
	}{Status: status}
	return c.put(ctx, "/admin/users/"+url.PathEscape(id)+"/status", body, nil)
}

// DeleteUser removes a user account
func (c *Client) DeleteUser(ctx context.Context, id string) error {
	return c.delete(ctx, "/admin/users/"+url.PathEscape(id), nil)
}

// Residents lists the community residents
func (c *Client) Residents(ctx context.Context) ([]model.Resident, error) {
	var residents []model.Resident
	if err := c.getList(ctx, "/admin/residents", "residents", &residents); err != nil {
		return nil, err
	}
	return residents, nil
}

// AddResident registers a new resident
func (c *Client) AddResident(ctx context.Context, resident model.Resident) (*model.Resident, error) {
	var created model.Resident
	if err := c.post(ctx, "/admin/residents", resident, &created); err != nil {
		return nil, err
	}
	return &created, nil
}
