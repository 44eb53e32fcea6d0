package ws

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/go-demo/matchroom/internal/dto/response"
	"github.com/go-demo/matchroom/internal/middleware"
	"github.com/go-demo/matchroom/internal/pkg/utils"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	// Connections authenticate with a bearer token, not cookies
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
}

// Handler handles WebSocket connections
type Handler struct {
	hub        *Hub
	jwtManager *utils.JWTManager
	logger     *zap.Logger
}

// NewHandler creates a new WebSocket handler
func NewHandler(hub *Hub, jwtManager *utils.JWTManager, logger *zap.Logger) *Handler {
	return &Handler{
		hub:        hub,
		jwtManager: jwtManager,
		logger:     logger,
	}
}

// ServeWS handles WebSocket connection requests
// @Summary WebSocket connection
// @Description Open a WebSocket to receive search-{id} and room-{code} events. Send {"type":"subscribe","payload":{"channel":"room-abc123"}} to start receiving a channel.
// @Tags WebSocket
// @Param token query string true "JWT Token"
// @Success 101 {string} string "Switching Protocols"
// @Failure 401 {object} response.Response
// @Router /ws [get]
func (h *Handler) ServeWS(c *gin.Context) {
	token, err := middleware.RequestToken(c)
	if err != nil {
		response.Error(c, err)
		return
	}

	claims, err := middleware.Authenticate(h.jwtManager, token)
	if err != nil {
		h.logger.Warn("Rejected WebSocket token",
			zap.String("client_ip", c.ClientIP()),
			zap.Error(err),
		)
		response.Error(c, err)
		return
	}

	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		h.logger.Error("Failed to upgrade WebSocket",
			zap.Error(err),
		)
		return
	}

	client := NewClient(h.hub, conn, claims, h.logger)

	if !h.hub.Register(client) {
		conn.WriteMessage(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseGoingAway, "server shutting down"))
		conn.Close()
		return
	}

	go client.WritePump()
	go client.ReadPump()
}

// GetStats returns WebSocket hub statistics
// @Summary WebSocket statistics
// @Description Connected clients, online users and channels with at least one subscriber
// @Tags WebSocket
// @Produce json
// @Security BearerAuth
// @Success 200 {object} response.Response
// @Router /api/v1/ws/stats [get]
func (h *Handler) GetStats(c *gin.Context) {
	response.Success(c, h.hub.GetStats())
}
