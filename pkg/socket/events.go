package socket

import (
	"encoding/json"
	"fmt"
	"strings"
)

// Events emitted by the client
const (
	EventJoinServiceRequest  = "join-service-request"
	EventLeaveServiceRequest = "leave-service-request"
	EventTyping              = "typing"
	EventStopTyping          = "stop-typing"
	EventRegister            = "register"
	EventJoinChat            = "join-chat"
)

// Events pushed by the server
const (
	EventServiceRequestUpdated   = "service-request-updated"
	EventNewMessage              = "new-message"
	EventChatHistory             = "chat-history"
	EventUserTyping              = "user-typing"
	EventUserStoppedTyping       = "user-stopped-typing"
	EventMessageNotification     = "message-notification"
	EventNewNotification         = "new-notification"
	EventAppointmentNotification = "appointment-notification"
	EventVerificationStatus      = "verification-status"
	EventRequestCancelled        = "request-cancelled"
	EventRequestAccepted         = "request-accepted"
	EventError                   = "error"
	EventConnectError            = "connect_error"
)

// Frame is the JSON envelope carried by every websocket text message
type Frame struct {
	Event string            `json:"event"`
	Data  []json.RawMessage `json:"data"`
}

func encodeFrame(event string, args []any) ([]byte, error) {
	data := make([]json.RawMessage, 0, len(args))
	for i, a := range args {
		raw, err := json.Marshal(a)
		if err != nil {
			return nil, fmt.Errorf("failed to encode argument %d of %s: %w", i, event, err)
		}
		data = append(data, raw)
	}
	return json.Marshal(Frame{Event: event, Data: data})
}

// Decode unmarshals the i-th argument of an event into out
func Decode(args []json.RawMessage, i int, out any) error {
	if i >= len(args) {
		return fmt.Errorf("event has %d arguments, wanted index %d", len(args), i)
	}
	if err := json.Unmarshal(args[i], out); err != nil {
		return fmt.Errorf("failed to decode event argument %d: %w", i, err)
	}
	return nil
}

// AuthError is a connection rejected for authentication reasons. It is terminal until a new token is supplied.
type AuthError struct {
	Message string
}

func (e *AuthError) Error() string {
	return "realtime authentication failed: " + e.Message
}

// authFailureMessages are the server's connection-level authentication errors
var authFailureMessages = []string{
	"invalid token",
	"token expired",
	"no token provided",
	"account banned",
	"account has been banned",
	"invalid token type",
}

// IsAuthFailureMessage reports whether an error message from the server is an authentication failure
func IsAuthFailureMessage(msg string) bool {
	msg = strings.ToLower(msg)
	for _, m := range authFailureMessages {
		if strings.Contains(msg, m) {
			return true
		}
	}
	return false
}

// errorMessage extracts the message of an error/connect_error frame.
// The payload is either a bare string or an object with a message field.
func errorMessage(args []json.RawMessage) string {
	if len(args) == 0 {
		return ""
	}

	var s string
	if err := json.Unmarshal(args[0], &s); err == nil {
		return s
	}

	var obj struct {
		Message string `json:"message"`
	}
	if err := json.Unmarshal(args[0], &obj); err == nil {
		return obj.Message
	}
	return ""
}
