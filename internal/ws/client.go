package ws

import (
	"encoding/json"
	"errors"
	"net/http"
	"sync"
	"time"

	apperrors "github.com/go-demo/matchroom/internal/pkg/errors"
	"github.com/go-demo/matchroom/internal/pkg/utils"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

const (
	// Time allowed to write a message to the peer
	writeWait = 10 * time.Second

	// Time allowed to read the next pong message from the peer
	pongWait = 60 * time.Second

	// Send pings to peer with this period. Must be less than pongWait
	pingPeriod = (pongWait * 9) / 10

	// Maximum message size allowed from peer
	maxMessageSize = 4096

	// Send buffer size
	sendBufferSize = 256

	// Inbound message rate per connection
	inboundRate  = 5
	inboundBurst = 10
)

// Client represents a WebSocket client connection
type Client struct {
	hub      *Hub
	conn     *websocket.Conn
	send     chan []byte
	userID   string
	username string
	isAdmin  bool
	channels map[string]bool // Subscribed channels
	limiter  *rate.Limiter
	mu       sync.RWMutex
	logger   *zap.Logger

	// guards send against use after Close
	sendMu sync.RWMutex
	closed bool
}

// NewClient creates a new client for an authenticated connection
func NewClient(hub *Hub, conn *websocket.Conn, claims *utils.Claims, logger *zap.Logger) *Client {
	return &Client{
		hub:      hub,
		conn:     conn,
		send:     make(chan []byte, sendBufferSize),
		userID:   claims.UserID,
		username: claims.Username,
		isAdmin:  claims.IsAdmin,
		channels: make(map[string]bool),
		limiter:  rate.NewLimiter(inboundRate, inboundBurst),
		logger:   logger,
	}
}

// GetUserID returns client's user ID
func (c *Client) GetUserID() string {
	return c.userID
}

// GetUsername returns client's username
func (c *Client) GetUsername() string {
	return c.username
}

// Channels returns the channels the client is subscribed to
func (c *Client) Channels() []string {
	c.mu.RLock()
	defer c.mu.RUnlock()

	channels := make([]string, 0, len(c.channels))
	for channel := range c.channels {
		channels = append(channels, channel)
	}
	return channels
}

// IsSubscribed checks if client receives events of channel
func (c *Client) IsSubscribed(channel string) bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.channels[channel]
}

func (c *Client) subscribe(channel string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.channels[channel] = true
}

func (c *Client) unsubscribe(channel string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.channels, channel)
}

// ReadPump pumps messages from the WebSocket connection to the hub
func (c *Client) ReadPump() {
	defer func() {
		c.hub.Unregister(c)
		c.conn.Close()
	}()

	c.conn.SetReadLimit(maxMessageSize)
	c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		c.conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		_, data, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				c.logger.Warn("WebSocket read error",
					zap.String("user_id", c.userID),
					zap.Error(err),
				)
			}
			break
		}

		if !c.limiter.Allow() {
			c.sendError(http.StatusTooManyRequests, "too many messages, slow down")
			continue
		}

		var msg Message
		if err := json.Unmarshal(data, &msg); err != nil {
			c.logger.Warn("Failed to parse message",
				zap.String("user_id", c.userID),
				zap.Error(err),
			)
			c.sendError(http.StatusBadRequest, "invalid message format")
			continue
		}

		c.handleMessage(&msg)
	}
}

// WritePump pumps messages from the hub to the WebSocket connection
func (c *Client) WritePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case message, ok := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				// Hub closed the channel
				c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}

			// One JSON document per frame so clients can parse frames directly
			if err := c.conn.WriteMessage(websocket.TextMessage, message); err != nil {
				return
			}

		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

// handleMessage handles incoming messages based on type
func (c *Client) handleMessage(msg *Message) {
	switch msg.Type {
	case MessageTypeSubscribe:
		var payload ChannelPayload
		if err := msg.ParsePayload(&payload); err != nil || payload.Channel == "" {
			c.sendError(http.StatusBadRequest, "invalid request parameters")
			return
		}
		c.hub.Subscribe(c, payload.Channel, msg.RequestID)

	case MessageTypeUnsubscribe:
		var payload ChannelPayload
		if err := msg.ParsePayload(&payload); err != nil || payload.Channel == "" {
			c.sendError(http.StatusBadRequest, "invalid request parameters")
			return
		}
		c.hub.Unsubscribe(c, payload.Channel, msg.RequestID)

	case MessageTypePing:
		pongMsg, _ := NewMessage(MessageTypePong, nil)
		pongMsg.RequestID = msg.RequestID
		c.SendMessage(pongMsg)

	default:
		c.sendError(http.StatusBadRequest, "unknown message type")
	}
}

// SendMessage sends a message to the client
func (c *Client) SendMessage(msg *Message) {
	data, err := json.Marshal(msg)
	if err != nil {
		c.logger.Error("Failed to marshal message",
			zap.String("user_id", c.userID),
			zap.Error(err),
		)
		return
	}

	c.enqueue(data)
}

func (c *Client) enqueue(data []byte) {
	c.sendMu.RLock()
	defer c.sendMu.RUnlock()

	if c.closed {
		return
	}

	select {
	case c.send <- data:
	default:
		// Channel is full, client is slow
		c.logger.Warn("Client send buffer full",
			zap.String("user_id", c.userID),
		)
	}
}

func (c *Client) sendAck(msgType MessageType, channel, requestID string) {
	msg, _ := NewMessage(msgType, &ChannelPayload{Channel: channel})
	msg.RequestID = requestID
	c.SendMessage(msg)
}

// sendError sends an error message to the client
func (c *Client) sendError(code int, message string) {
	errMsg, _ := NewErrorMessage(code, message)
	c.SendMessage(errMsg)
}

// sendChannelError reports a refused subscription with the status the
// REST API would have used for the same failure
func (c *Client) sendChannelError(err error, channel, requestID string) {
	payload := &ErrorPayload{
		Code:    http.StatusInternalServerError,
		Message: apperrors.ErrInternal.Message,
		Channel: channel,
	}

	var appErr *apperrors.AppError
	if errors.As(err, &appErr) {
		payload.Code = appErr.Code
		payload.Message = appErr.Message
	} else {
		c.logger.Error("Subscription lookup failed",
			zap.String("user_id", c.userID),
			zap.String("channel", channel),
			zap.Error(err),
		)
	}

	msg, _ := NewMessage(MessageTypeError, payload)
	msg.RequestID = requestID
	c.SendMessage(msg)
}

// Close closes the client's send queue. Safe to call more than once.
func (c *Client) Close() {
	c.sendMu.Lock()
	defer c.sendMu.Unlock()

	if !c.closed {
		c.closed = true
		close(c.send)
	}
}
