package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/jakechorley/skillconnect/pkg/db"
)

// Get returns the value stored under key for this environment
func (d *DB) Get(ctx context.Context, key string) (string, error) {
	var value string
	err := d.pool.QueryRow(ctx, `
		SELECT value FROM client_state WHERE env = $1 AND key = $2
	`, d.env, key).Scan(&value)
	if errors.Is(err, pgx.ErrNoRows) {
		return "", db.ErrNotFound
	}
	if err != nil {
		return "", fmt.Errorf("failed to get client state %q: %w", key, err)
	}
	return value, nil
}

// Set upserts the value stored under key
func (d *DB) Set(ctx context.Context, key, value string) error {
	_, err := d.pool.Exec(ctx, `
		INSERT INTO client_state (env, key, value, updated_at)
		VALUES ($1, $2, $3, NOW())
		ON CONFLICT (env, key) DO UPDATE SET value = EXCLUDED.value, updated_at = NOW()
	`, d.env, key, value)
	if err != nil {
		return fmt.Errorf("failed to set client state %q: %w", key, err)
	}
	return nil
}

// Delete removes the given keys in a single statement
func (d *DB) Delete(ctx context.Context, keys ...string) error {
	if len(keys) == 0 {
		return nil
	}

	_, err := d.pool.Exec(ctx, `
		DELETE FROM client_state WHERE env = $1 AND key = ANY($2)
	`, d.env, keys)
	if err != nil {
		return fmt.Errorf("failed to delete client state: %w", err)
	}
	return nil
}

var _ db.StateStore = (*DB)(nil)
