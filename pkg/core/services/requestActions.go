package services

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/jakechorley/skillconnect/pkg/clients/apiclient"
	"github.com/jakechorley/skillconnect/pkg/core/model"
	"github.com/jakechorley/skillconnect/pkg/core/status"
)

// Accept takes on an available request as the current provider. On success the
// request leaves the list; on a conflict the list is re-fetched.
func (l *RequestList) Accept(ctx context.Context, id string) (*model.ServiceRequest, error) {
	accepted, err := l.api.AcceptRequest(ctx, id)
	if err != nil {
		return nil, l.actionFailed(ctx, "accept", id, err)
	}

	l.mutate(func(items []model.ServiceRequest) []model.ServiceRequest {
		return without(items, id)
	})
	l.logger.Info("Request accepted", zap.String("request_id", id))
	return accepted, nil
}

// Decline hides an available request from the current provider
func (l *RequestList) Decline(ctx context.Context, id string) error {
	if err := l.api.DeclineRequest(ctx, id); err != nil {
		return l.actionFailed(ctx, "decline", id, err)
	}

	l.mutate(func(items []model.ServiceRequest) []model.ServiceRequest {
		return without(items, id)
	})
	l.logger.Info("Request declined", zap.String("request_id", id))
	return nil
}

// Cancel cancels one of the current user's requests
func (l *RequestList) Cancel(ctx context.Context, id string) error {
	if r, ok := l.Find(id); ok && status.IsTerminal(r.Status) {
		return fmt.Errorf("request is already %s", status.Normalize(r.Status))
	}

	updated, err := l.api.CancelRequest(ctx, id)
	if err != nil {
		return l.actionFailed(ctx, "cancel", id, err)
	}

	l.mutate(func(items []model.ServiceRequest) []model.ServiceRequest {
		return replace(items, id, func(r *model.ServiceRequest) {
			if updated != nil && updated.ID == id {
				*r = *updated
			}
			r.Status = status.Cancelled
		})
	})
	l.logger.Info("Request cancelled", zap.String("request_id", id))
	return nil
}

// Edit validates and saves new field values for one of the current user's requests.
// Invalid input is rejected locally with FieldErrors and never sent.
func (l *RequestList) Edit(ctx context.Context, id string, update model.ServiceRequestUpdate) (*model.ServiceRequest, error) {
	if err := ValidateRequestForm(update); err != nil {
		return nil, err
	}

	updated, err := l.api.UpdateRequest(ctx, id, update)
	if err != nil {
		return nil, l.actionFailed(ctx, "edit", id, err)
	}

	if updated == nil || updated.ID != id {
		// The server did not echo the request; resync instead of guessing
		if err := l.Refresh(ctx); err != nil {
			l.logger.Warn("Refetch after edit failed", zap.Error(err))
		}
		return updated, nil
	}

	l.mutate(func(items []model.ServiceRequest) []model.ServiceRequest {
		return replace(items, id, func(r *model.ServiceRequest) { *r = *updated })
	})
	l.logger.Info("Request edited", zap.String("request_id", id))
	return updated, nil
}

// Delete removes one of the current user's requests
func (l *RequestList) Delete(ctx context.Context, id string) error {
	if err := l.api.DeleteRequest(ctx, id); err != nil {
		return l.actionFailed(ctx, "delete", id, err)
	}

	l.mutate(func(items []model.ServiceRequest) []model.ServiceRequest {
		return without(items, id)
	})
	l.logger.Info("Request deleted", zap.String("request_id", id))
	return nil
}

// actionFailed wraps a failed action. Conflicts resync the list with the server;
// every other failure leaves the list untouched.
func (l *RequestList) actionFailed(ctx context.Context, op, id string, err error) error {
	l.logger.Warn("Request action failed",
		zap.String("action", op),
		zap.String("request_id", id),
		zap.Error(err))
	l.failed(err)

	if apiclient.IsConflict(err) {
		if rerr := l.Refresh(ctx); rerr != nil {
			l.logger.Warn("Refetch after conflict failed", zap.Error(rerr))
		}
	}
	return fmt.Errorf("failed to %s request: %w", op, err)
}

func without(items []model.ServiceRequest, id string) []model.ServiceRequest {
	out := make([]model.ServiceRequest, 0, len(items))
	for _, r := range items {
		if r.ID != id {
			out = append(out, r)
		}
	}
	return out
}

func replace(items []model.ServiceRequest, id string, fn func(*model.ServiceRequest)) []model.ServiceRequest {
	out := append([]model.ServiceRequest(nil), items...)
	for i := range out {
		if out[i].ID == id {
			fn(&out[i])
		}
	}
	return out
}
