package apiclient

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/jakechorley/skillconnect/pkg/core/model"
)

// Credentials is the body of both login endpoints
type Credentials struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required,min=6"`
}

// UserLoginResult is returned by POST /user/login
type UserLoginResult struct {
	Token string      `json:"token"`
	User  *model.User `json:"user"`
}

// AdminLoginResult is returned by POST /admin/auth/login
type AdminLoginResult struct {
	Token string       `json:"token"`
	Admin *model.Admin `json:"admin"`
}

// UserProfile fetches the current user's profile
func (c *Client) UserProfile(ctx context.Context) (*model.User, error) {
	var raw json.RawMessage
	if err := c.get(ctx, "/user/me", &raw); err != nil {
		return nil, err
	}

	var user model.User
	if err := decodeKeyed(raw, "user", &user); err != nil {
		return nil, err
	}
	return &user, nil
}

// AdminProfile fetches the current admin's profile
func (c *Client) AdminProfile(ctx context.Context) (*model.Admin, error) {
	var raw json.RawMessage
	if err := c.get(ctx, "/admin/auth/me", &raw); err != nil {
		return nil, err
	}

	var admin model.Admin
	if err := decodeKeyed(raw, "admin", &admin); err != nil {
		return nil, err
	}
	return &admin, nil
}

// LoginUser exchanges user credentials for a token
func (c *Client) LoginUser(ctx context.Context, creds Credentials) (*UserLoginResult, error) {
	var result UserLoginResult
	if err := c.do(ctx, c.anon, http.MethodPost, "/user/login", creds, &result); err != nil {
		return nil, err
	}
	return &result, nil
}

// LoginAdmin exchanges admin credentials for a token
func (c *Client) LoginAdmin(ctx context.Context, creds Credentials) (*AdminLoginResult, error) {
	var result AdminLoginResult
	if err := c.do(ctx, c.anon, http.MethodPost, "/admin/auth/login", creds, &result); err != nil {
		return nil, err
	}
	return &result, nil
}

// LogoutUser invalidates the user session server side
func (c *Client) LogoutUser(ctx context.Context) error {
	return c.get(ctx, "/user/logout", nil)
}

// LogoutAdmin invalidates the admin session server side
func (c *Client) LogoutAdmin(ctx context.Context) error {
	return c.get(ctx, "/admin/auth/logout", nil)
}
