package services

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/jakechorley/skillconnect/pkg/core/model"
	"github.com/jakechorley/skillconnect/pkg/core/status"
)

// ErrInvalidTransition is returned when a booking cannot move to the requested status
var ErrInvalidTransition = errors.New("invalid booking status transition")

// ErrBookingNotFound is returned when a booking id is not among the user's bookings
var ErrBookingNotFound = errors.New("booking not found")

// BookingsAPI defines the booking operations needed
type BookingsAPI interface {
	Bookings(ctx context.Context) ([]model.Booking, error)
	UpdateBookingStatus(ctx context.Context, id, status string) (*model.Booking, error)
}

// ListBookings fetches the user's bookings, keeping those whose status matches statusKey
func ListBookings(ctx context.Context, api BookingsAPI, logger *zap.Logger, statusKey string) ([]model.Booking, error) {
	bookings, err := api.Bookings(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch bookings: %w", err)
	}

	out := make([]model.Booking, 0, len(bookings))
	for _, b := range bookings {
		if status.Matches(b.Status, statusKey) {
			out = append(out, b)
		}
	}

	logger.Debug("Fetched bookings", zap.Int("total", len(bookings)), zap.Int("matching", len(out)))
	return out, nil
}

// UpdateBookingStatus moves booking to the status to after checking the transition locally
func UpdateBookingStatus(ctx context.Context, api BookingsAPI, logger *zap.Logger, booking model.Booking, to string) (*model.Booking, error) {
	if !status.CanTransition(booking.Status, to) {
		return nil, fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, status.Normalize(booking.Status), status.Normalize(to))
	}

	updated, err := api.UpdateBookingStatus(ctx, booking.ID, to)
	if err != nil {
		return nil, fmt.Errorf("failed to update booking %s: %w", booking.ID, err)
	}

	logger.Info("Booking status updated",
		zap.String("booking_id", booking.ID),
		zap.String("from", booking.Status),
		zap.String("to", to))
	return updated, nil
}

// CompleteBooking marks one of the current provider's working bookings complete
func CompleteBooking(ctx context.Context, api BookingsAPI, logger *zap.Logger, bookingID, currentUserID string) (*model.Booking, error) {
	bookings, err := api.Bookings(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch bookings: %w", err)
	}

	for _, b := range bookings {
		if b.ID != bookingID {
			continue
		}
		if !CanComplete(b, currentUserID) {
			return nil, fmt.Errorf("%w: only the provider of a working booking can complete it", ErrInvalidTransition)
		}
		return UpdateBookingStatus(ctx, api, logger, b, status.Complete)
	}
	return nil, fmt.Errorf("%w: %s", ErrBookingNotFound, bookingID)
}

// CanComplete reports whether currentUserID is the provider of a working booking
func CanComplete(b model.Booking, currentUserID string) bool {
	if currentUserID == "" || status.Normalize(b.Status) != status.Working {
		return false
	}
	return bookingProviderID(b) == currentUserID
}

func bookingProviderID(b model.Booking) string {
	if b.Provider != nil && b.Provider.ID != "" {
		return b.Provider.ID
	}
	if b.ServiceRequest == nil {
		return ""
	}
	if b.ServiceRequest.ServiceProvider != nil && b.ServiceRequest.ServiceProvider.ID != "" {
		return b.ServiceRequest.ServiceProvider.ID
	}
	if b.ServiceRequest.AcceptedBy != nil {
		return b.ServiceRequest.AcceptedBy.ID
	}
	return ""
}
