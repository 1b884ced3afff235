package apiclient

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"net/url"
	"strings"
)

// ErrNoToken is returned for authenticated calls made without a stored token
var ErrNoToken = errors.New("no session token")

// Server error codes the client reacts to
const (
	CodeAccountBanned      = "ACCOUNT_BANNED"
	CodeAccountNotVerified = "ACCOUNT_NOT_VERIFIED"
	CodeInvalidTokenType   = "INVALID_TOKEN_TYPE"
)

// APIError is a non-2xx response from the SkillConnect API
type APIError struct {
	StatusCode int
	Code       string
	Message    string
	// AccountStatus is set when the server reports the account state (e.g. "banned")
	AccountStatus string
}

func (e *APIError) Error() string {
	if e.Code != "" {
		return fmt.Sprintf("api error %d (%s): %s", e.StatusCode, e.Code, e.Message)
	}
	return fmt.Sprintf("api error %d: %s", e.StatusCode, e.Message)
}

func asAPIError(err error) (*APIError, bool) {
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return apiErr, true
	}
	return nil, false
}

func messageContains(e *APIError, needles ...string) bool {
	msg := strings.ToLower(e.Message)
	for _, n := range needles {
		if strings.Contains(msg, n) {
			return true
		}
	}
	return false
}

// IsBanned reports whether the server rejected the call because the account is banned
func IsBanned(err error) bool {
	e, ok := asAPIError(err)
	if !ok {
		return false
	}
	return e.Code == CodeAccountBanned ||
		strings.EqualFold(e.AccountStatus, "banned") ||
		messageContains(e, "banned")
}

// IsNotVerified reports whether the account exists but has not been verified yet
func IsNotVerified(err error) bool {
	e, ok := asAPIError(err)
	if !ok {
		return false
	}
	return e.Code == CodeAccountNotVerified || messageContains(e, "not verified")
}

// IsAuthFailure reports an invalid, expired or missing token. A token of the
// wrong type is an authorization failure (see IsForbidden), not this.
func IsAuthFailure(err error) bool {
	if errors.Is(err, ErrNoToken) {
		return true
	}
	e, ok := asAPIError(err)
	if !ok {
		return false
	}
	if isWrongTokenType(e) {
		return false
	}
	return e.StatusCode == http.StatusUnauthorized ||
		messageContains(e, "invalid token", "token expired", "no token provided")
}

// IsForbidden reports an authorization failure such as a wrong role or token type
func IsForbidden(err error) bool {
	e, ok := asAPIError(err)
	if !ok {
		return false
	}
	if IsBanned(err) || IsNotVerified(err) || IsAuthFailure(err) {
		return false
	}
	return e.StatusCode == http.StatusForbidden || isWrongTokenType(e)
}

func isWrongTokenType(e *APIError) bool {
	return e.Code == CodeInvalidTokenType || messageContains(e, "token type")
}

// IsConflict reports a domain conflict such as accepting an already-accepted request
func IsConflict(err error) bool {
	e, ok := asAPIError(err)
	if !ok {
		return false
	}
	return e.StatusCode == http.StatusConflict ||
		messageContains(e, "already accepted", "being edited", "no longer available")
}

// IsNetwork reports a transport-level failure where the server was never reached
func IsNetwork(err error) bool {
	if err == nil || errors.Is(err, ErrNoToken) || errors.Is(err, context.Canceled) {
		return false
	}
	if _, ok := asAPIError(err); ok {
		return false
	}
	var netErr net.Error
	if errors.As(err, &netErr) {
		return true
	}
	var urlErr *url.Error
	return errors.As(err, &urlErr)
}
