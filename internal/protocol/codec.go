package protocol

import (
	"bytes"
	"encoding/json"
	"fmt"

	"github.com/go-playground/validator/v10"
)

var validate = validator.New()

// chatPayload mirrors ChatMessage with pointer fields so that a missing
// field can be told apart from an empty one.
type chatPayload struct {
	Username *string `json:"username" validate:"required"`
	Text     *string `json:"text" validate:"required"`
}

// Encode builds the wire frame for event carrying payload.
func Encode(event EventName, payload any) ([]byte, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("encode %s payload: %w", event, err)
	}
	frame, err := json.Marshal(Envelope{Event: event, Data: data})
	if err != nil {
		return nil, fmt.Errorf("encode %s envelope: %w", event, err)
	}
	return frame, nil
}

// Decode parses one wire frame into its envelope. The payload is left raw
// and is interpreted by the handler registered for the event.
func Decode(frame []byte) (Envelope, error) {
	var env Envelope
	if err := json.Unmarshal(frame, &env); err != nil {
		return Envelope{}, fmt.Errorf("%w: %v", ErrInvalidEvent, err)
	}
	if err := validate.Struct(env); err != nil {
		return Envelope{}, fmt.Errorf("%w: %v", ErrInvalidEvent, err)
	}
	return env, nil
}

// DecodeString interprets the payload as a JSON string. Any other JSON
// value, including null, is rejected.
func DecodeString(env Envelope) (string, error) {
	data := bytes.TrimSpace(env.Data)
	if len(data) == 0 || data[0] != '"' {
		return "", fmt.Errorf("%w: %s payload is not a string", ErrInvalidEvent, env.Event)
	}
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return "", fmt.Errorf("%w: %v", ErrInvalidEvent, err)
	}
	return s, nil
}

// DecodeChat interprets the payload as a ChatMessage. Both fields must be
// present; empty values are accepted.
func DecodeChat(env Envelope) (ChatMessage, error) {
	var p chatPayload
	if err := json.Unmarshal(env.Data, &p); err != nil {
		return ChatMessage{}, fmt.Errorf("%w: %v", ErrInvalidEvent, err)
	}
	if err := validate.Struct(p); err != nil {
		return ChatMessage{}, fmt.Errorf("%w: %v", ErrInvalidEvent, err)
	}
	return ChatMessage{Username: *p.Username, Text: *p.Text}, nil
}

// Announcement returns the displayable text of an update payload. String
// payloads are unquoted; anything else is shown as its JSON literal, so an
// absent or null payload yields "null".
func Announcement(env Envelope) string {
	data := bytes.TrimSpace(env.Data)
	if len(data) == 0 {
		return "null"
	}
	if s, err := DecodeString(env); err == nil {
		return s
	}
	return string(data)
}
