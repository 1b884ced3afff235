package db

import (
	"context"
	"errors"
)

// Persisted client state keys
const (
	KeyToken           = "token"
	KeyUser            = "user"
	KeyAdmin           = "admin"
	KeyIsAuthorized    = "isAuthorized"
	KeyTokenType       = "tokenType"
	KeyRememberedEmail = "rememberedEmail"
	KeyAdminLastPath   = "adminLastPath"
	KeyUserLastPath    = "userLastPath"
)

// SessionKeys are cleared on logout. rememberedEmail and the last paths survive.
var SessionKeys = []string{KeyToken, KeyUser, KeyAdmin, KeyIsAuthorized, KeyTokenType}

// ErrNotFound is returned by Get when a key has no value
var ErrNotFound = errors.New("key not found")

// StateStore defines the persisted client state operations.
// The file, memory, redis and postgres backends all implement this interface.
type StateStore interface {
	Get(ctx context.Context, key string) (string, error)
	Set(ctx context.Context, key, value string) error
	Delete(ctx context.Context, keys ...string) error
	Close() error
}
