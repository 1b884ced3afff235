package services

import (
	"context"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/jakechorley/skillconnect/pkg/core/model"
)

// Account statuses an admin can set
const (
	AccountActive = "active"
	AccountBanned = "banned"
)

// AdminAPI is the subset of the API client used by admin operations
type AdminAPI interface {
	Users(ctx context.Context, search string) ([]model.User, error)
	SetUserStatus(ctx context.Context, id, status string) error
	DeleteUser(ctx context.Context, id string) error
	Residents(ctx context.Context) ([]model.Resident, error)
	AddResident(ctx context.Context, resident model.Resident) (*model.Resident, error)
}

// ListUsers returns registered users matching search
func ListUsers(ctx context.Context, api AdminAPI, logger *zap.Logger, search string) ([]model.User, error) {
	users, err := api.Users(ctx, strings.TrimSpace(search))
	if err != nil {
		return nil, fmt.Errorf("failed to list users: %w", err)
	}
	logger.Debug("Users fetched", zap.Int("count", len(users)), zap.String("search", search))
	return users, nil
}

// SetBanned bans or reinstates a user
func SetBanned(ctx context.Context, api AdminAPI, logger *zap.Logger, userID string, banned bool) error {
	status := AccountActive
	if banned {
		status = AccountBanned
	}
	if err := api.SetUserStatus(ctx, userID, status); err != nil {
		return fmt.Errorf("failed to set user %s %s: %w", userID, status, err)
	}
	logger.Info("User status changed", zap.String("user_id", userID), zap.String("status", status))
	return nil
}

// RemoveUser deletes a user account
func RemoveUser(ctx context.Context, api AdminAPI, logger *zap.Logger, userID string) error {
	if err := api.DeleteUser(ctx, userID); err != nil {
		return fmt.Errorf("failed to delete user %s: %w", userID, err)
	}
	logger.Info("User deleted", zap.String("user_id", userID))
	return nil
}

// ListResidents returns the community residents
func ListResidents(ctx context.Context, api AdminAPI, logger *zap.Logger) ([]model.Resident, error) {
	residents, err := api.Residents(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list residents: %w", err)
	}
	logger.Debug("Residents fetched", zap.Int("count", len(residents)))
	return residents, nil
}

// AddResident validates and registers a resident. Invalid input never reaches the server.
func AddResident(ctx context.Context, api AdminAPI, logger *zap.Logger, resident model.Resident) (*model.Resident, error) {
	if err := ValidateResidentForm(resident); err != nil {
		return nil, err
	}

	created, err := api.AddResident(ctx, resident)
	if err != nil {
		return nil, fmt.Errorf("failed to add resident: %w", err)
	}
	logger.Info("Resident added", zap.String("resident_id", created.ID))
	return created, nil
}
