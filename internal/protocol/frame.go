// Package protocol defines the JSON frames exchanged over the chat WebSocket:
// one envelope per message, a typed request per inbound event validated at
// the boundary, and the ack/error frames returned to the sender.
package protocol

import (
	"bytes"
	"encoding/json"
	"fmt"
)

// Inbound frame types.
const (
	TypeJoin          = "join"
	TypeChat          = "chat"
	TypePrivate       = "private"
	TypeUpdateProfile = "updateProfile"
	TypeLeave         = "leave"
)

// Outbound-only frame types. Roster, chat and private reuse the event names
// emitted by the room manager.
const (
	TypeRoster = "roster"
	TypeAck    = "ack"
	TypeError  = "error"
)

// Frame is the envelope of every WebSocket text message.
type Frame struct {
	Type      string          `json:"type" validate:"required,oneof=join chat private updateProfile leave"`
	RequestID string          `json:"request_id,omitempty"`
	Payload   json.RawMessage `json:"payload,omitempty"`
}

// AckPayload confirms a handled request.
type AckPayload struct {
	Event     string `json:"event"`
	Delivered int    `json:"delivered"`
}

// ErrorPayload reports a rejected request.
type ErrorPayload struct {
	Event   string `json:"event,omitempty"`
	Code    Code   `json:"code"`
	Message string `json:"message"`
}

type outFrame struct {
	Type      string `json:"type"`
	RequestID string `json:"request_id,omitempty"`
	Payload   any    `json:"payload"`
}

// Encode marshals an outbound frame.
func Encode(typ, requestID string, payload any) ([]byte, error) {
	data, err := json.Marshal(outFrame{Type: typ, RequestID: requestID, Payload: payload})
	if err != nil {
		return nil, fmt.Errorf("encode %s frame: %w", typ, err)
	}
	return data, nil
}

// Ack builds an ack frame for a handled request.
func Ack(requestID, event string, delivered int) ([]byte, error) {
	return Encode(TypeAck, requestID, AckPayload{Event: event, Delivered: delivered})
}

// Reject builds an error frame for a rejected request.
func Reject(requestID, event string, code Code, message string) ([]byte, error) {
	return Encode(TypeError, requestID, ErrorPayload{Event: event, Code: code, Message: message})
}

func emptyPayload(raw json.RawMessage) bool {
	trimmed := bytes.TrimSpace(raw)
	return len(trimmed) == 0 || bytes.Equal(trimmed, []byte("null"))
}
