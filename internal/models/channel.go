package models

import "time"

type ChannelKind string

const ChannelKindGlobal ChannelKind = "GLOBAL"

// Channel groups messages. Exactly one GLOBAL channel is expected to exist.
type Channel struct {
	ID        string      `json:"id"`
	Kind      ChannelKind `json:"kind"`
	CreatedAt time.Time   `json:"created_at"`
}
