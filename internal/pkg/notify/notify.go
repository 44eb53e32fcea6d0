package notify

import (
	"context"
	"encoding/json"
	"strings"
	"time"
)

// Search channel events
const (
	EventMatchProgress = "match-progress"
	EventMatchFound    = "match-found"
	EventMatchError    = "match-error"
)

// Room channel events
const (
	EventJoinedRoom      = "joined-room"
	EventLeftRoom        = "left-room"
	EventAdminChanged    = "admin-changed"
	EventSettingsUpdated = "settings-updated"
	EventPlayerReady     = "player-ready"
	EventRoomClosed      = "room-closed"
)

const (
	searchChannelPrefix = "search-"
	roomChannelPrefix   = "room-"
)

// Publisher delivers an event to every subscriber of a channel.
// Delivery is fire-and-forget; failures are logged by the implementation.
type Publisher interface {
	Publish(ctx context.Context, channel, event string, payload interface{})
}

// Envelope is the wire format of every published event
type Envelope struct {
	Channel   string          `json:"channel"`
	Event     string          `json:"event"`
	Payload   json.RawMessage `json:"payload,omitempty"`
	Timestamp time.Time       `json:"timestamp"`
}

// NewEnvelope marshals payload into an envelope for channel
func NewEnvelope(channel, event string, payload interface{}) (*Envelope, error) {
	env := &Envelope{
		Channel:   channel,
		Event:     event,
		Timestamp: time.Now(),
	}

	if payload != nil {
		data, err := json.Marshal(payload)
		if err != nil {
			return nil, err
		}
		env.Payload = data
	}

	return env, nil
}

// ParsePayload decodes the envelope payload into v
func (e *Envelope) ParsePayload(v interface{}) error {
	return json.Unmarshal(e.Payload, v)
}

func SearchChannel(searchID string) string {
	return searchChannelPrefix + searchID
}

func RoomChannel(code string) string {
	return roomChannelPrefix + code
}

// ChannelKind tells search channels from room channels
type ChannelKind int

const (
	ChannelUnknown ChannelKind = iota
	ChannelSearch
	ChannelRoom
)

// ParseChannel splits a channel name into its kind and the search ID or
// room code it carries
func ParseChannel(channel string) (ChannelKind, string) {
	switch {
	case strings.HasPrefix(channel, searchChannelPrefix) && len(channel) > len(searchChannelPrefix):
		return ChannelSearch, strings.TrimPrefix(channel, searchChannelPrefix)
	case strings.HasPrefix(channel, roomChannelPrefix) && len(channel) > len(roomChannelPrefix):
		return ChannelRoom, strings.TrimPrefix(channel, roomChannelPrefix)
	}
	return ChannelUnknown, ""
}

// ChannelPatterns are the glob patterns covering every channel this service publishes on
func ChannelPatterns() []string {
	return []string{searchChannelPrefix + "*", roomChannelPrefix + "*"}
}
