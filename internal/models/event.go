package models

import "time"

type EventType string

const (
	EventUserLoggedIn    EventType = "user_logged_in"
	EventTokenRefreshed  EventType = "token_refreshed"
	EventRefreshRejected EventType = "refresh_rejected"
	EventUserLoggedOut   EventType = "user_logged_out"
	EventUserCreated     EventType = "user_created"
	EventUserUpdated     EventType = "user_updated"
	EventUserDeleted     EventType = "user_deleted"
)

// AuthEvent is published to kafka for every session and account change.
type AuthEvent struct {
	EventType EventType `json:"event_type"`
	UserID    int64     `json:"user_id,omitempty"`
	ActorID   int64     `json:"actor_id,omitempty"`
	Username  string    `json:"username,omitempty"`
	UserType  Role      `json:"user_type,omitempty"`
	Reason    string    `json:"reason,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}
