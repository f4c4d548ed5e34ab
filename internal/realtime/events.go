package realtime

import (
	"encoding/json"
	"fmt"

	"muhabet/internal/models"
)

// Wire event names.
const (
	TypeHello           = "hello"
	TypeUserJoined      = "user_joined"
	TypeUserLeft        = "user_left"
	TypeMessageCreated  = "message_created"
	TypeMessageRejected = "message_rejected"
	TypeMessageSend     = "message:send"
)

// Rejection reasons carried by MessageRejected.
const (
	ReasonEmptyBody    = "empty_body"
	ReasonBodyTooLong  = "body_too_long"
	ReasonStoreFailure = "store_failure"
	ReasonBusy         = "busy"
)

// Envelope is the frame exchanged in both directions.
type Envelope struct {
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload,omitempty"`
}

// Event is a server to client message. The set is closed: only the types below implement it.
type Event interface {
	eventType() string
}

type Hello struct {
	Msg string          `json:"msg"`
	Me  models.Identity `json:"me"`
}

type UserJoined models.Identity

type UserLeft models.Identity

type MessageCreated struct {
	models.Message
}

// MessageRejected is only sent when rejection notices are enabled.
type MessageRejected struct {
	Reason string `json:"reason"`
}

func (Hello) eventType() string           { return TypeHello }
func (UserJoined) eventType() string      { return TypeUserJoined }
func (UserLeft) eventType() string        { return TypeUserLeft }
func (MessageCreated) eventType() string  { return TypeMessageCreated }
func (MessageRejected) eventType() string { return TypeMessageRejected }

func newHello(me models.Identity) Hello {
	return Hello{
		Msg: fmt.Sprintf("Welcome to Muhabet, %s!", me.Username),
		Me:  me,
	}
}

// Encode renders an event as an envelope frame.
func Encode(ev Event) ([]byte, error) {
	payload, err := json.Marshal(ev)
	if err != nil {
		return nil, fmt.Errorf("encode %s payload: %w", ev.eventType(), err)
	}
	return json.Marshal(Envelope{Type: ev.eventType(), Payload: payload})
}
