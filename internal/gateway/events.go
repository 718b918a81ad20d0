package gateway

import (
	"time"

	"github.com/google/uuid"
)

// Inbound event types.
const (
	EventSessionPing     = "session.ping"
	EventTextInput       = "text.input"
	EventAudioEnd        = "audio.end"
	EventUserInterrupt   = "user.interrupt"
	EventConfirmResponse = "confirm.response"
)

// Outbound event types.
const (
	EventStateChange         = "state.change"
	EventTurnStart           = "turn.start"
	EventToolCallProgress    = "tool_call.progress"
	EventConfirmationRequest = "confirmation.request"
	EventAssistantTextDelta  = "assistant_text.delta"
	EventAssistantTextFinal  = "assistant_text.final"
	EventTurnEnd             = "turn.end"
	EventTurnCancelled       = "turn.cancelled"
)

const (
	RoleSystem    = "system"
	RoleAssistant = "assistant"
	RoleUser      = "user"
)

// Envelope is the ordered wire frame for every session event. Seq increases
// strictly per session, TurnSeq per turn; clients treat out-of-order delivery
// as a protocol violation.
type Envelope struct {
	EventID   string         `json:"event_id"`
	EventType string         `json:"event_type"`
	TS        time.Time      `json:"ts"`
	SessionID uuid.UUID      `json:"session_id"`
	TurnID    *uuid.UUID     `json:"turn_id"`
	Seq       int64          `json:"seq"`
	TurnSeq   int64          `json:"turn_seq"`
	Role      string         `json:"role,omitempty"`
	Payload   map[string]any `json:"payload"`
}

// Inbound payload fields, decoded loosely from Payload:
//
//	text.input / audio.end: {"text": string, "source": string, "google_access_token": string}
//	confirm.response:       {"decision": "accept"|"reject", "confirmation_request_id": string,
//	                         "google_access_token": string}

func payloadString(p map[string]any, key string) string {
	if p == nil {
		return ""
	}
	s, _ := p[key].(string)
	return s
}
