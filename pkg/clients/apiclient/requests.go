package apiclient

import (
	"context"
	"net/url"

	"github.com/jakechorley/skillconnect/pkg/core/model"
)

func requestPath(id string, action string) string {
	p := "/user/service-request/" + url.PathEscape(id)
	if action != "" {
		p += "/" + action
	}
	return p
}

// MatchingRequests lists open requests matching the current provider's skills
func (c *Client) MatchingRequests(ctx context.Context) ([]model.ServiceRequest, error) {
	var reqs []model.ServiceRequest
	if err := c.getList(ctx, "/user/matching-requests", "requests", &reqs); err != nil {
		return nil, err
	}
	return reqs, nil
}

// UserServiceRequests lists the requests posted by the current user
func (c *Client) UserServiceRequests(ctx context.Context) ([]model.ServiceRequest, error) {
	var reqs []model.ServiceRequest
	if err := c.getList(ctx, "/user/user-service-requests", "requests", &reqs); err != nil {
		return nil, err
	}
	return reqs, nil
}

// ServiceRequests lists the requests the current user has worked on as a provider
func (c *Client) ServiceRequests(ctx context.Context) ([]model.ServiceRequest, error) {
	var reqs []model.ServiceRequest
	if err := c.getList(ctx, "/user/service-requests", "requests", &reqs); err != nil {
		return nil, err
	}
	return reqs, nil
}

// AcceptRequest accepts a request as the current provider
func (c *Client) AcceptRequest(ctx context.Context, id string) (*model.ServiceRequest, error) {
	var req model.ServiceRequest
	if err := c.post(ctx, requestPath(id, "accept"), struct{}{}, &req); err != nil {
		return nil, err
	}
	return &req, nil
}

// DeclineRequest hides a request from the current provider
func (c *Client) DeclineRequest(ctx context.Context, id string) error {
	return c.post(ctx, requestPath(id, "decline"), struct{}{}, nil)
}

// CancelRequest cancels a request posted by the current user
func (c *Client) CancelRequest(ctx context.Context, id string) (*model.ServiceRequest, error) {
	var req model.ServiceRequest
	if err := c.put(ctx, requestPath(id, "cancel"), struct{}{}, &req); err != nil {
		return nil, err
	}
	return &req, nil
}

// UpdateRequest edits a request posted by the current user
func (c *Client) UpdateRequest(ctx context.Context, id string, update model.ServiceRequestUpdate) (*model.ServiceRequest, error) {
	var req model.ServiceRequest
	if err := c.put(ctx, requestPath(id, ""), update, &req); err != nil {
		return nil, err
	}
	return &req, nil
}

// DeleteRequest removes a request posted by the current user
func (c *Client) DeleteRequest(ctx context.Context, id string) error {
	return c.delete(ctx, requestPath(id, ""), nil)
}
