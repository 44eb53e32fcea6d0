package ws

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/go-demo/matchroom/internal/model"
	apperrors "github.com/go-demo/matchroom/internal/pkg/errors"
	"github.com/go-demo/matchroom/internal/pkg/notify"
	"github.com/go-demo/matchroom/internal/pkg/utils"
	"github.com/go-demo/matchroom/internal/service"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

const (
	lookupTimeout   = 5 * time.Second
	broadcastBuffer = 256
)

// SearchLookup resolves a search for its owner
type SearchLookup interface {
	GetSearch(ctx context.Context, userID, searchID string) (*service.SearchStatus, error)
}

// RoomLookup resolves a room by share code
type RoomLookup interface {
	GetRoom(ctx context.Context, code string) (*model.RoomDetail, error)
}

// Hub maintains the set of active clients and fans published events out
// to the clients subscribed to each channel
type Hub struct {
	// Registered clients
	clients map[*Client]bool

	// Clients by channel: channel -> clients
	channels map[string]map[*Client]bool

	// Clients by user: userID -> clients (supports multiple connections)
	users map[string]map[*Client]bool

	register   chan *Client
	unregister chan *Client
	broadcast  chan *notify.Envelope

	// closed once Run returns
	done chan struct{}

	mu sync.RWMutex

	searches SearchLookup
	rooms    RoomLookup

	// Redis pub/sub feeds events published by every instance
	redis *redis.Client

	logger *zap.Logger
}

// NewHub creates a new Hub. redisClient may be nil, in which case only
// events handed to Publish are delivered.
func NewHub(searches SearchLookup, rooms RoomLookup, redisClient *redis.Client, logger *zap.Logger) *Hub {
	return &Hub{
		clients:    make(map[*Client]bool),
		channels:   make(map[string]map[*Client]bool),
		users:      make(map[string]map[*Client]bool),
		register:   make(chan *Client),
		unregister: make(chan *Client),
		broadcast:  make(chan *notify.Envelope, broadcastBuffer),
		done:       make(chan struct{}),
		searches:   searches,
		rooms:      rooms,
		redis:      redisClient,
		logger:     logger,
	}
}

// Run starts the hub and blocks until ctx is done, then disconnects
// every client
func (h *Hub) Run(ctx context.Context) {
	defer close(h.done)

	if h.redis != nil {
		go h.subscribeRedis(ctx)
	}

	for {
		select {
		case client := <-h.register:
			h.registerClient(client)

		case client := <-h.unregister:
			h.unregisterClient(client)

		case env := <-h.broadcast:
			h.broadcastToChannel(env)

		case <-ctx.Done():
			h.closeAll()
			return
		}
	}
}

// Publish delivers an event to local subscribers without a round trip
// through Redis. It satisfies notify.Publisher for single-node setups.
func (h *Hub) Publish(ctx context.Context, channel, event string, payload interface{}) {
	env, err := notify.NewEnvelope(channel, event, payload)
	if err != nil {
		h.logger.Error("Failed to encode event",
			zap.String("channel", channel),
			zap.String("event", event),
			zap.Error(err),
		)
		return
	}
	h.dispatch(ctx, env)
}

func (h *Hub) dispatch(ctx context.Context, env *notify.Envelope) {
	select {
	case h.broadcast <- env:
	case <-h.done:
	case <-ctx.Done():
		h.logger.Warn("Dropped event, hub not draining",
			zap.String("channel", env.Channel),
			zap.String("event", env.Event),
		)
	}
}

// Register hands a connected client to the hub. It reports false once the
// hub has stopped.
func (h *Hub) Register(client *Client) bool {
	select {
	case h.register <- client:
		return true
	case <-h.done:
		return false
	}
}

// Unregister detaches client from every channel and closes its send queue
func (h *Hub) Unregister(client *Client) {
	select {
	case h.unregister <- client:
	case <-h.done:
	}
}

func (h *Hub) registerClient(client *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()

	h.clients[client] = true

	if h.users[client.userID] == nil {
		h.users[client.userID] = make(map[*Client]bool)
	}
	h.users[client.userID][client] = true

	h.logger.Info("Client connected",
		zap.String("user_id", client.userID),
		zap.String("username", client.username),
		zap.Int("total_clients", len(h.clients)),
	)
}

func (h *Hub) unregisterClient(client *Client) {
	h.mu.Lock()

	if _, ok := h.clients[client]; !ok {
		h.mu.Unlock()
		return
	}

	delete(h.clients, client)

	if userClients, ok := h.users[client.userID]; ok {
		delete(userClients, client)
		if len(userClients) == 0 {
			delete(h.users, client.userID)
		}
	}

	for _, channel := range client.Channels() {
		h.removeFromChannel(client, channel)
	}

	h.mu.Unlock()

	client.Close()

	h.logger.Info("Client disconnected",
		zap.String("user_id", client.userID),
		zap.String("username", client.username),
	)
}

func (h *Hub) closeAll() {
	h.mu.Lock()
	defer h.mu.Unlock()

	for client := range h.clients {
		client.Close()
	}
	h.clients = make(map[*Client]bool)
	h.channels = make(map[string]map[*Client]bool)
	h.users = make(map[string]map[*Client]bool)
}

// removeFromChannel must be called with h.mu held
func (h *Hub) removeFromChannel(client *Client, channel string) {
	if subs, ok := h.channels[channel]; ok {
		delete(subs, client)
		if len(subs) == 0 {
			delete(h.channels, channel)
		}
	}
}

// Subscribe adds client to channel once the caller is authorized for it:
// a search channel only by the search owner, a room channel by room
// members and platform admins
func (h *Hub) Subscribe(client *Client, channel, requestID string) {
	ctx, cancel := context.WithTimeout(context.Background(), lookupTimeout)
	defer cancel()

	channel, err := h.authorize(ctx, client, channel)
	if err != nil {
		client.sendChannelError(err, channel, requestID)
		return
	}

	h.mu.Lock()
	if h.channels[channel] == nil {
		h.channels[channel] = make(map[*Client]bool)
	}
	h.channels[channel][client] = true
	h.mu.Unlock()

	client.subscribe(channel)
	client.sendAck(MessageTypeSubscribed, channel, requestID)

	h.logger.Debug("Client subscribed",
		zap.String("user_id", client.userID),
		zap.String("channel", channel),
	)
}

// Unsubscribe removes client from channel
func (h *Hub) Unsubscribe(client *Client, channel, requestID string) {
	h.mu.Lock()
	h.removeFromChannel(client, channel)
	h.mu.Unlock()

	client.unsubscribe(channel)
	client.sendAck(MessageTypeUnsubscribed, channel, requestID)

	h.logger.Debug("Client unsubscribed",
		zap.String("user_id", client.userID),
		zap.String("channel", channel),
	)
}

// authorize returns the canonical channel name on success
func (h *Hub) authorize(ctx context.Context, client *Client, channel string) (string, error) {
	kind, id := notify.ParseChannel(channel)

	switch kind {
	case notify.ChannelSearch:
		if !utils.ValidateUUID(id) {
			return channel, apperrors.ErrSearchNotFound
		}
		if _, err := h.searches.GetSearch(ctx, client.userID, id); err != nil {
			return channel, err
		}
		return notify.SearchChannel(id), nil

	case notify.ChannelRoom:
		code := utils.NormalizeRoomCode(id)
		channel = notify.RoomChannel(code)
		if !utils.ValidateRoomCode(code) {
			return channel, apperrors.ErrInvalidRoomCode
		}
		room, err := h.rooms.GetRoom(ctx, code)
		if err != nil {
			return channel, err
		}
		if !room.HasMember(client.userID) && !client.isAdmin {
			return channel, apperrors.ErrPermissionDenied
		}
		return channel, nil
	}

	return channel, apperrors.ErrInvalidInput.WithDetails("unknown channel")
}

func (h *Hub) broadcastToChannel(env *notify.Envelope) {
	msg, err := NewEventMessage(env)
	if err != nil {
		h.logger.Error("Failed to wrap event", zap.String("channel", env.Channel), zap.Error(err))
		return
	}
	data, err := json.Marshal(msg)
	if err != nil {
		h.logger.Error("Failed to marshal event", zap.String("channel", env.Channel), zap.Error(err))
		return
	}

	h.mu.RLock()
	for client := range h.channels[env.Channel] {
		client.enqueue(data)
	}
	delivered := len(h.channels[env.Channel])
	h.mu.RUnlock()

	h.logger.Debug("Event delivered",
		zap.String("channel", env.Channel),
		zap.String("event", env.Event),
		zap.Int("clients", delivered),
	)

	if env.Event == notify.EventLeftRoom {
		h.revokeDeparted(env)
	}
}

// revokeDeparted drops the room subscriptions of a user who has left,
// after they have seen their own left-room event
func (h *Hub) revokeDeparted(env *notify.Envelope) {
	var payload notify.LeftRoomPayload
	if err := env.ParsePayload(&payload); err != nil {
		h.logger.Warn("Malformed left-room payload", zap.String("channel", env.Channel), zap.Error(err))
		return
	}

	h.mu.Lock()
	var revoked []*Client
	for client := range h.channels[env.Channel] {
		if client.userID == payload.UserID && !client.isAdmin {
			revoked = append(revoked, client)
		}
	}
	for _, client := range revoked {
		h.removeFromChannel(client, env.Channel)
	}
	h.mu.Unlock()

	for _, client := range revoked {
		client.unsubscribe(env.Channel)
		client.sendAck(MessageTypeUnsubscribed, env.Channel, "")
	}
}

// subscribeRedis relays events published by any instance to local clients
func (h *Hub) subscribeRedis(ctx context.Context) {
	pubsub := h.redis.PSubscribe(ctx, notify.ChannelPatterns()...)
	defer pubsub.Close()

	ch := pubsub.Channel()
	for {
		select {
		case <-ctx.Done():
			return
		case msg, ok := <-ch:
			if !ok {
				return
			}

			var env notify.Envelope
			if err := json.Unmarshal([]byte(msg.Payload), &env); err != nil {
				h.logger.Warn("Failed to decode pub/sub event",
					zap.String("channel", msg.Channel),
					zap.Error(err),
				)
				continue
			}
			if env.Channel == "" {
				env.Channel = msg.Channel
			}

			h.dispatch(ctx, &env)
		}
	}
}

// IsUserOnline checks if a user has at least one open connection
func (h *Hub) IsUserOnline(userID string) bool {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.users[userID]) > 0
}

// GetChannelClients returns the number of clients subscribed to a channel
func (h *Hub) GetChannelClients(channel string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.channels[channel])
}

// GetStats returns hub statistics
func (h *Hub) GetStats() map[string]int {
	h.mu.RLock()
	defer h.mu.RUnlock()

	return map[string]int{
		"total_clients":   len(h.clients),
		"online_users":    len(h.users),
		"active_channels": len(h.channels),
	}
}
