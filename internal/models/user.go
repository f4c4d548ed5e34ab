package models

import "time"

// User is the durable record written the first time a session sends a message.
type User struct {
	ID        string    `json:"id"`
	Username  string    `json:"username"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Identity is the display identity of a live session.
type Identity struct {
	ID       string `json:"id"`
	Username string `json:"username"`
}

// UnregisteredUsername is used when a message arrives for a connection missing from presence.
const UnregisteredUsername = "guest-0000"

// UnregisteredSender returns the fallback identity for a connection that has no presence entry.
func UnregisteredSender(connectionID string) Identity {
	return Identity{ID: connectionID, Username: UnregisteredUsername}
}
