package handler

import (
	"github.com/gin-gonic/gin"
	"github.com/go-demo/matchroom/internal/dto/request"
	"github.com/go-demo/matchroom/internal/dto/response"
	"github.com/go-demo/matchroom/internal/middleware"
	"github.com/go-demo/matchroom/internal/model"
	"github.com/go-demo/matchroom/internal/service"
)

type RoomHandler struct {
	roomService *service.RoomService
}

func NewRoomHandler(roomService *service.RoomService) *RoomHandler {
	return &RoomHandler{
		roomService: roomService,
	}
}

// Create godoc
// @Summary Create room
// @Description Create a room with the caller as its only member and admin
// @Tags rooms
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param request body request.CreateRoomRequest true "Room settings"
// @Success 201 {object} response.Response{data=response.RoomResponse}
// @Failure 400 {object} response.Response
// @Failure 404 {object} response.Response
// @Router /api/v1/rooms [post]
func (h *RoomHandler) Create(c *gin.Context) {
	var req request.CreateRoomRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "invalid request format")
		return
	}

	settings := req.Settings.ToModel()
	if errs := service.ValidateGameSettings(settings); errs.HasErrors() {
		response.ValidationError(c, errs)
		return
	}

	room, err := h.roomService.CreateRoom(c.Request.Context(), []string{middleware.GetUserID(c)}, model.RoomSettings{GameSettings: settings})
	if err != nil {
		response.Error(c, err)
		return
	}

	response.Created(c, response.NewRoomResponse(room))
}

// GetMyRoom godoc
// @Summary Get my room
// @Description Get the room the caller is currently in
// @Tags rooms
// @Produce json
// @Security BearerAuth
// @Success 200 {object} response.Response{data=response.RoomResponse}
// @Failure 404 {object} response.Response
// @Router /api/v1/rooms/me [get]
func (h *RoomHandler) GetMyRoom(c *gin.Context) {
	room, err := h.roomService.GetMyRoom(c.Request.Context(), middleware.GetUserID(c))
	if err != nil {
		response.Error(c, err)
		return
	}

	response.Success(c, response.NewRoomResponse(room))
}

// SetReady godoc
// @Summary Mark ready
// @Description Mark the caller ready in their current room and report whether everyone is
// @Tags rooms
// @Produce json
// @Security BearerAuth
// @Success 200 {object} response.Response{data=service.ReadyResult}
// @Failure 404 {object} response.Response
// @Router /api/v1/rooms/me/ready [post]
func (h *RoomHandler) SetReady(c *gin.Context) {
	result, err := h.roomService.SetReady(c.Request.Context(), middleware.GetUserID(c))
	if err != nil {
		response.Error(c, err)
		return
	}

	response.Success(c, result)
}

// Get godoc
// @Summary Get room
// @Description Get a room by its share code
// @Tags rooms
// @Produce json
// @Security BearerAuth
// @Param code path string true "Room code"
// @Success 200 {object} response.Response{data=response.RoomResponse}
// @Failure 400 {object} response.Response
// @Failure 404 {object} response.Response
// @Router /api/v1/rooms/{code} [get]
func (h *RoomHandler) Get(c *gin.Context) {
	room, err := h.roomService.GetRoom(c.Request.Context(), c.Param("code"))
	if err != nil {
		response.Error(c, err)
		return
	}

	response.Success(c, response.NewRoomResponse(room))
}

// Join godoc
// @Summary Join room
// @Description Join a room by code, leaving any other room first
// @Tags rooms
// @Produce json
// @Security BearerAuth
// @Param code path string true "Room code"
// @Success 200 {object} response.Response{data=response.RoomResponse}
// @Failure 404 {object} response.Response
// @Failure 422 {object} response.Response
// @Router /api/v1/rooms/{code}/join [post]
func (h *RoomHandler) Join(c *gin.Context) {
	room, err := h.roomService.JoinRoom(c.Request.Context(), middleware.GetUserID(c), c.Param("code"))
	if err != nil {
		response.Error(c, err)
		return
	}

	response.Success(c, response.NewRoomResponse(room))
}

// Leave godoc
// @Summary Leave room
// @Description Leave a room. The next member becomes admin; the last member leaving deletes the room.
// @Tags rooms
// @Produce json
// @Security BearerAuth
// @Param code path string true "Room code"
// @Success 200 {object} response.Response{data=model.LeaveResult}
// @Failure 404 {object} response.Response
// @Router /api/v1/rooms/{code}/leave [post]
func (h *RoomHandler) Leave(c *gin.Context) {
	result, err := h.roomService.LeaveRoom(c.Request.Context(), c.Param("code"), middleware.GetUserID(c))
	if err != nil {
		response.Error(c, err)
		return
	}

	response.Success(c, result)
}

// UpdateSettings godoc
// @Summary Update room settings
// @Description Merge the given fields into the room settings (room admin only)
// @Tags rooms
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param code path string true "Room code"
// @Param request body request.UpdateRoomSettingsRequest true "Fields to change"
// @Success 200 {object} response.Response{data=response.RoomSettingsResponse}
// @Failure 400 {object} response.Response
// @Failure 403 {object} response.Response
// @Router /api/v1/rooms/{code}/settings [patch]
func (h *RoomHandler) UpdateSettings(c *gin.Context) {
	var req request.UpdateRoomSettingsRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "invalid request format")
		return
	}

	if !h.authorizeAdmin(c) {
		return
	}

	room, err := h.roomService.UpdateSettings(c.Request.Context(), c.Param("code"), req.ToPatch())
	if err != nil {
		response.Error(c, err)
		return
	}

	response.Success(c, response.NewRoomSettingsResponse(room))
}

// RemoveMember godoc
// @Summary Remove member
// @Description Remove a member by username (room admin only)
// @Tags rooms
// @Produce json
// @Security BearerAuth
// @Param code path string true "Room code"
// @Param username path string true "Username"
// @Success 200 {object} response.Response{data=model.LeaveResult}
// @Failure 403 {object} response.Response
// @Failure 404 {object} response.Response
// @Router /api/v1/rooms/{code}/members/{username} [delete]
func (h *RoomHandler) RemoveMember(c *gin.Context) {
	if !h.authorizeAdmin(c) {
		return
	}

	result, err := h.roomService.RemoveUser(c.Request.Context(), c.Param("code"), c.Param("username"))
	if err != nil {
		response.Error(c, err)
		return
	}

	response.Success(c, result)
}

// Close godoc
// @Summary Close room
// @Description Delete a room and release its members (room admin only)
// @Tags rooms
// @Produce json
// @Security BearerAuth
// @Param code path string true "Room code"
// @Success 200 {object} response.Response
// @Failure 403 {object} response.Response
// @Failure 404 {object} response.Response
// @Router /api/v1/rooms/{code} [delete]
func (h *RoomHandler) Close(c *gin.Context) {
	if !h.authorizeAdmin(c) {
		return
	}

	if err := h.roomService.CloseRoom(c.Request.Context(), c.Param("code")); err != nil {
		response.Error(c, err)
		return
	}

	response.SuccessWithMessage(c, "room closed", nil)
}

func (h *RoomHandler) authorizeAdmin(c *gin.Context) bool {
	err := h.roomService.AuthorizeAdmin(c.Request.Context(), c.Param("code"), middleware.GetUserID(c), middleware.IsPlatformAdmin(c))
	if err != nil {
		response.Error(c, err)
		return false
	}
	return true
}
