package realtime

import (
	"encoding/json"
)

type inboundHandler func(connectionID string, payload json.RawMessage)

type sendPayload struct {
	Body json.RawMessage `json:"body"`
}

func (e *Engine) registerHandlers() {
	e.handlers = map[string]inboundHandler{
		TypeMessageSend: e.handleMessageSend,
	}
}

// HandleFrame decodes one client frame and routes it to its handler.
// Malformed frames and unknown types are dropped.
func (e *Engine) HandleFrame(connectionID string, frame []byte) {
	var env Envelope
	if err := json.Unmarshal(frame, &env); err != nil {
		debugLog("[realtime] drop malformed frame from %s: %v", connectionID, err)
		return
	}
	handler, ok := e.handlers[env.Type]
	if !ok {
		debugLog("[realtime] drop unknown frame type %q from %s", env.Type, connectionID)
		return
	}
	handler(connectionID, env.Payload)
}

func (e *Engine) handleMessageSend(connectionID string, payload json.RawMessage) {
	var p sendPayload
	if len(payload) > 0 {
		if err := json.Unmarshal(payload, &p); err != nil {
			debugLog("[realtime] message:send payload from %s is not an object: %v", connectionID, err)
		}
	}
	e.Submit(connectionID, p.Body)
}
