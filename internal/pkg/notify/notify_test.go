package notify

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestChannelNames(t *testing.T) {
	assert.Equal(t, "search-abc", SearchChannel("abc"))
	assert.Equal(t, "room-x1y2z3", RoomChannel("x1y2z3"))
	assert.Equal(t, []string{"search-*", "room-*"}, ChannelPatterns())
}

func TestParseChannel(t *testing.T) {
	tests := []struct {
		channel string
		kind    ChannelKind
		id      string
	}{
		{"search-abc", ChannelSearch, "abc"},
		{"room-X1Y2Z3", ChannelRoom, "X1Y2Z3"},
		{"search-", ChannelUnknown, ""},
		{"room-", ChannelUnknown, ""},
		{"lobby", ChannelUnknown, ""},
		{"", ChannelUnknown, ""},
	}

	for _, tt := range tests {
		t.Run(tt.channel, func(t *testing.T) {
			kind, id := ParseChannel(tt.channel)
			assert.Equal(t, tt.kind, kind)
			assert.Equal(t, tt.id, id)
		})
	}
}

func TestNewEnvelope(t *testing.T) {
	env, err := NewEnvelope("search-1", EventMatchProgress, &MatchProgressPayload{
		Message:      "Searching for players",
		MatchedCount: 1,
	})
	require.NoError(t, err)

	assert.Equal(t, "search-1", env.Channel)
	assert.Equal(t, EventMatchProgress, env.Event)
	assert.False(t, env.Timestamp.IsZero())

	var payload MatchProgressPayload
	require.NoError(t, env.ParsePayload(&payload))
	assert.Equal(t, 1, payload.MatchedCount)
	assert.JSONEq(t, `{"message":"Searching for players","matched_count":1}`, string(env.Payload))
}

func TestNewEnvelope_NilPayload(t *testing.T) {
	env, err := NewEnvelope("room-abc", EventRoomClosed, nil)
	require.NoError(t, err)
	assert.Nil(t, env.Payload)
}

func TestNewEnvelope_UnmarshalablePayload(t *testing.T) {
	_, err := NewEnvelope("room-abc", EventJoinedRoom, map[string]interface{}{"bad": make(chan int)})
	assert.Error(t, err)
}
