package services

import (
	"errors"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jakechorley/skillconnect/pkg/clients/apiclient"
	"github.com/jakechorley/skillconnect/pkg/core/model"
)

func TestValidateLoginForm(t *testing.T) {
	assert.NoError(t, ValidateLoginForm(apiclient.Credentials{Email: "ada@example.com", Password: "secret1"}))

	err := ValidateLoginForm(apiclient.Credentials{Email: "not-an-email", Password: "123"})
	var fieldErrs FieldErrors
	require.ErrorAs(t, err, &fieldErrs)
	assert.Equal(t, FieldErrors{
		"email":    "must be a valid email address",
		"password": "must be at least 6 characters",
	}, fieldErrs)
	assert.Equal(t, "invalid input: email must be a valid email address; password must be at least 6 characters", err.Error())
}

func TestValidateRequestForm(t *testing.T) {
	valid := model.ServiceRequestUpdate{
		TypeOfWork: "Plumbing",
		Budget:     10,
		Address:    "12 Elm Street",
		Phone:      "0712345678",
	}
	assert.NoError(t, ValidateRequestForm(valid))

	long := valid
	long.Notes = string(make([]byte, 501))
	var fieldErrs FieldErrors
	require.ErrorAs(t, ValidateRequestForm(long), &fieldErrs)
	assert.Equal(t, "must be at most 500 characters", fieldErrs["notes"])
}

func TestValidateResidentForm(t *testing.T) {
	err := ValidateResidentForm(model.Resident{FirstName: "Ada"})
	var fieldErrs FieldErrors
	require.ErrorAs(t, err, &fieldErrs)
	assert.Contains(t, fieldErrs, "lastName")
	assert.Contains(t, fieldErrs, "address")
	assert.NotContains(t, fieldErrs, "phone")
}

func TestUserMessage(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want string
	}{
		{"nil", nil, ""},
		{"banned", &apiclient.APIError{StatusCode: http.StatusForbidden, Code: apiclient.CodeAccountBanned}, "Your account has been banned. Please contact support."},
		{"expired", &apiclient.APIError{StatusCode: http.StatusUnauthorized, Message: "Token expired"}, "Your session has expired. Please log in again."},
		{"wrong role", &apiclient.APIError{StatusCode: http.StatusForbidden, Code: apiclient.CodeInvalidTokenType}, "Access denied."},
		{"wrong token type message", &apiclient.APIError{StatusCode: http.StatusForbidden, Code: apiclient.CodeInvalidTokenType, Message: "Authentication error: Invalid token type"}, "Access denied."},
		{"conflict", &apiclient.APIError{StatusCode: http.StatusConflict, Message: "Request already accepted."}, "Request already accepted. The list has been refreshed."},
		{"validation", FieldErrors{"email": "is required"}, "invalid input: email is required"},
		{"other", errors.New("boom"), "boom"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, UserMessage(tt.err))
		})
	}
}
