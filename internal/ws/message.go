package ws

import (
	"encoding/json"
	"time"

	"github.com/go-demo/matchroom/internal/pkg/notify"
)

// MessageType represents the type of WebSocket message
type MessageType string

const (
	// Client -> Server messages
	MessageTypeSubscribe   MessageType = "subscribe"
	MessageTypeUnsubscribe MessageType = "unsubscribe"
	MessageTypePing        MessageType = "ping"

	// Server -> Client messages
	MessageTypeSubscribed   MessageType = "subscribed"
	MessageTypeUnsubscribed MessageType = "unsubscribed"
	MessageTypeEvent        MessageType = "event"
	MessageTypePong         MessageType = "pong"
	MessageTypeError        MessageType = "error"
)

// Message represents a WebSocket message
type Message struct {
	Type      MessageType     `json:"type"`
	Payload   json.RawMessage `json:"payload,omitempty"`
	Timestamp time.Time       `json:"timestamp"`
	RequestID string          `json:"request_id,omitempty"`
}

// ChannelPayload names the channel of a subscribe or unsubscribe request
// and of its confirmation
type ChannelPayload struct {
	Channel string `json:"channel"`
}

// ErrorPayload represents error message
type ErrorPayload struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
	Channel string `json:"channel,omitempty"`
}

// NewMessage creates a new message
func NewMessage(msgType MessageType, payload interface{}) (*Message, error) {
	payloadBytes, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}

	return &Message{
		Type:      msgType,
		Payload:   payloadBytes,
		Timestamp: time.Now(),
	}, nil
}

// NewErrorMessage creates a new error message
func NewErrorMessage(code int, message string) (*Message, error) {
	return NewMessage(MessageTypeError, &ErrorPayload{
		Code:    code,
		Message: message,
	})
}

// NewEventMessage wraps a published envelope for delivery to a client
func NewEventMessage(env *notify.Envelope) (*Message, error) {
	msg, err := NewMessage(MessageTypeEvent, env)
	if err != nil {
		return nil, err
	}
	msg.Timestamp = env.Timestamp
	return msg, nil
}

// ParsePayload parses message payload into the given type
func (m *Message) ParsePayload(v interface{}) error {
	return json.Unmarshal(m.Payload, v)
}
