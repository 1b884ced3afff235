package apiclient

import (
	"context"
	"errors"
	"fmt"

	"golang.org/x/oauth2"

	"github.com/jakechorley/skillconnect/pkg/db"
)

// StoreTokenSource reads the bearer token from the persisted client state on every request,
// so a login or logout is picked up without rebuilding the client
type StoreTokenSource struct {
	Store db.StateStore
}

// Token implements oauth2.TokenSource
func (s StoreTokenSource) Token() (*oauth2.Token, error) {
	v, err := s.Store.Get(context.Background(), db.KeyToken)
	if errors.Is(err, db.ErrNotFound) || (err == nil && v == "") {
		return nil, ErrNoToken
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read session token: %w", err)
	}

	return &oauth2.Token{AccessToken: v, TokenType: "Bearer"}, nil
}

// StaticTokenSource returns a fixed bearer token
func StaticTokenSource(token string) oauth2.TokenSource {
	return oauth2.StaticTokenSource(&oauth2.Token{AccessToken: token, TokenType: "Bearer"})
}
