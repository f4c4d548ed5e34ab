package models

import (
	"encoding/json"
	"time"
)

// Message is one persisted chat utterance in the global channel.
// Username is resolved from the sender's user row and is not stored on the message.
type Message struct {
	ID        string    `json:"id"`
	Body      string    `json:"body"`
	SenderID  string    `json:"senderId"`
	ChannelID string    `json:"-"`
	Username  string    `json:"username"`
	CreatedAt time.Time `json:"createdAt"`
}

// MaxBodyLength is the upper bound, in characters, of a trimmed message body.
const MaxBodyLength = 500

// WireTimeLayout renders timestamps with millisecond precision in UTC.
const WireTimeLayout = "2006-01-02T15:04:05.000Z07:00"

func (m Message) MarshalJSON() ([]byte, error) {
	type wire Message
	return json.Marshal(struct {
		wire
		CreatedAt string `json:"createdAt"`
	}{
		wire:      wire(m),
		CreatedAt: m.CreatedAt.UTC().Format(WireTimeLayout),
	})
}
