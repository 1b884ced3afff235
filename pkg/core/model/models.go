package model

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"
	"time"
)

// TokenType discriminates which identity a bearer token belongs to
type TokenType string

const (
	TokenTypeUser  TokenType = "user"
	TokenTypeAdmin TokenType = "admin"
)

// UserRef is a reference to a user that the API returns either as a bare id
// or as a populated object
type UserRef struct {
	ID        string `json:"_id"`
	FirstName string `json:"firstName,omitempty"`
	LastName  string `json:"lastName,omitempty"`
	Email     string `json:"email,omitempty"`
	Phone     string `json:"phone,omitempty"`
	Avatar    string `json:"profilePicture,omitempty"`
}

func (r *UserRef) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if bytes.Equal(data, []byte("null")) {
		return nil
	}
	if len(data) > 0 && data[0] == '"' {
		return json.Unmarshal(data, &r.ID)
	}

	type plain UserRef
	var aux struct {
		plain
		AltID string `json:"id"`
	}
	if err := json.Unmarshal(data, &aux); err != nil {
		return fmt.Errorf("failed to decode user reference: %w", err)
	}
	*r = UserRef(aux.plain)
	if r.ID == "" {
		r.ID = aux.AltID
	}
	return nil
}

// Resolved reports whether the reference carries display fields and not just an id
func (r *UserRef) Resolved() bool {
	return r != nil && r.ID != "" && (r.FirstName != "" || r.LastName != "")
}

// DisplayName returns "First Last", falling back to the id
func (r *UserRef) DisplayName() string {
	if r == nil {
		return ""
	}
	name := strings.TrimSpace(r.FirstName + " " + r.LastName)
	if name == "" {
		return r.ID
	}
	return name
}

// User is the authenticated community member (requester and/or provider)
type User struct {
	ID         string `json:"_id"`
	FirstName  string `json:"firstName"`
	LastName   string `json:"lastName"`
	Email      string `json:"email"`
	Phone      string `json:"phone,omitempty"`
	Role       string `json:"role,omitempty"`
	Status     string `json:"status,omitempty"`
	IsVerified bool   `json:"isVerified"`
}

// IsBanned reports whether the server marked the account banned
func (u *User) IsBanned() bool {
	return u != nil && strings.EqualFold(u.Status, "banned")
}

// Admin is an authenticated administrator
type Admin struct {
	ID    string `json:"_id"`
	Name  string `json:"name"`
	Email string `json:"email"`
	Role  string `json:"role,omitempty"`
}

// ServiceRequest is a requester's posted need for a service
type ServiceRequest struct {
	ID              string    `json:"_id"`
	Requester       *UserRef  `json:"requester,omitempty"`
	TypeOfWork      string    `json:"typeOfWork"`
	Budget          float64   `json:"budget"`
	Address         string    `json:"address"`
	Phone           string    `json:"phone,omitempty"`
	Notes           string    `json:"notes,omitempty"`
	Time            string    `json:"time,omitempty"`
	Status          string    `json:"status"`
	ServiceProvider *UserRef  `json:"serviceProvider,omitempty"`
	AcceptedBy      *UserRef  `json:"acceptedBy,omitempty"`
	TargetProvider  *UserRef  `json:"targetProvider,omitempty"`
	ETA             string    `json:"eta,omitempty"`
	CreatedAt       time.Time `json:"createdAt"`
}

// RequesterID returns the requester's id or "" when absent
func (r *ServiceRequest) RequesterID() string {
	if r.Requester == nil {
		return ""
	}
	return r.Requester.ID
}

// AssignedProvider returns the provider assigned to the request.
// ok is false when neither serviceProvider nor acceptedBy is a resolved reference.
func (r *ServiceRequest) AssignedProvider() (provider *UserRef, ok bool) {
	if r.ServiceProvider.Resolved() {
		return r.ServiceProvider, true
	}
	if r.AcceptedBy.Resolved() {
		return r.AcceptedBy, true
	}
	return nil, false
}

// ServiceRequestUpdate holds the editable fields of a service request
type ServiceRequestUpdate struct {
	TypeOfWork string  `json:"typeOfWork" validate:"required,min=2,max=80"`
	Budget     float64 `json:"budget" validate:"gt=0"`
	Address    string  `json:"address" validate:"required,min=5"`
	Phone      string  `json:"phone" validate:"required,numeric,min=7,max=15"`
	Notes      string  `json:"notes,omitempty" validate:"max=500"`
	Time       string  `json:"time,omitempty"`
}

// Booking is the accepted pairing of a service request with a provider
type Booking struct {
	ID             string          `json:"_id"`
	ServiceRequest *ServiceRequest `json:"serviceRequest,omitempty"`
	Requester      *UserRef        `json:"requester,omitempty"`
	Provider       *UserRef        `json:"provider,omitempty"`
	Status         string          `json:"status"`
	CreatedAt      time.Time       `json:"createdAt"`
}

// MessageStatus is the delivery state of a chat message
type MessageStatus string

const (
	MessageSent      MessageStatus = "sent"
	MessageDelivered MessageStatus = "delivered"
	MessageSeen      MessageStatus = "seen"
)

// Message is a single chat message scoped to an appointment
type Message struct {
	ID            string        `json:"_id"`
	AppointmentID string        `json:"appointmentId"`
	Sender        UserRef       `json:"sender"`
	Text          string        `json:"message"`
	Timestamp     time.Time     `json:"timestamp"`
	Status        MessageStatus `json:"status"`
}

// ChatEntry is one row of the server's chat list: a single appointment
// shared with another user
type ChatEntry struct {
	AppointmentID  string          `json:"appointmentId"`
	OtherUser      UserRef         `json:"otherUser"`
	LastMessage    *Message        `json:"lastMessage,omitempty"`
	UnreadCount    int             `json:"unreadCount"`
	CanComplete    bool            `json:"canComplete"`
	ServiceRequest *ServiceRequest `json:"serviceRequest,omitempty"`
	Status         string          `json:"status,omitempty"`
}

// Conversation is a chat thread aggregated across every appointment shared
// with the same counterpart
type Conversation struct {
	OtherUser        UserRef
	AppointmentIDs   []string
	LastMessage      *Message
	ServiceRequest   *ServiceRequest
	Status           string
	TotalUnreadCount int
	CanComplete      bool
}

// LastActivity is the timestamp used to order conversations; zero when there is no message
func (c *Conversation) LastActivity() time.Time {
	if c.LastMessage == nil {
		return time.Time{}
	}
	return c.LastMessage.Timestamp
}

// HasAppointment reports whether appointmentID belongs to this conversation
func (c *Conversation) HasAppointment(appointmentID string) bool {
	for _, id := range c.AppointmentIDs {
		if id == appointmentID {
			return true
		}
	}
	return false
}

// NotificationMeta carries the routing hints of a notification
type NotificationMeta struct {
	Type      string `json:"type,omitempty"`
	BookingID string `json:"bookingId,omitempty"`
	ApptID    string `json:"apptId,omitempty"`
	RequestID string `json:"requestId,omitempty"`
}

// Notification is a user-facing notification
type Notification struct {
	ID        string           `json:"_id"`
	Title     string           `json:"title"`
	Message   string           `json:"message"`
	Read      bool             `json:"read"`
	Meta      NotificationMeta `json:"meta"`
	CreatedAt time.Time        `json:"createdAt"`
}

// Resident is a community resident record managed by admins
type Resident struct {
	ID        string    `json:"_id,omitempty"`
	FirstName string    `json:"firstName" validate:"required"`
	LastName  string    `json:"lastName" validate:"required"`
	Address   string    `json:"address" validate:"required"`
	Phone     string    `json:"phone,omitempty" validate:"omitempty,numeric"`
	CreatedAt time.Time `json:"createdAt,omitempty"`
}
