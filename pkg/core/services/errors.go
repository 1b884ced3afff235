package services

import (
	"context"
	"errors"

	"github.com/jakechorley/skillconnect/pkg/clients/apiclient"
)

// UserMessage turns an operation error into the message shown to the user
func UserMessage(err error) string {
	if err == nil {
		return ""
	}

	var fieldErrs FieldErrors
	switch {
	case errors.As(err, &fieldErrs):
		return fieldErrs.Error()
	case errors.Is(err, context.Canceled):
		return "Cancelled."
	case apiclient.IsBanned(err):
		return "Your account has been banned. Please contact support."
	case apiclient.IsNotVerified(err):
		return "Your account is awaiting verification."
	case apiclient.IsForbidden(err):
		return "Access denied."
	case apiclient.IsAuthFailure(err):
		return "Your session has expired. Please log in again."
	case apiclient.IsConflict(err):
		var apiErr *apiclient.APIError
		if errors.As(err, &apiErr) && apiErr.Message != "" {
			return apiErr.Message + " The list has been refreshed."
		}
		return "This request has changed. The list has been refreshed."
	case apiclient.IsNetwork(err):
		return "Network error. Please check your connection and try again."
	}
	return err.Error()
}
