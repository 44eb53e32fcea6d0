package response

import (
	"time"

	"github.com/go-demo/matchroom/internal/model"
	"github.com/go-demo/matchroom/internal/pkg/notify"
)

// ProfileResponse represents a member's public profile
type ProfileResponse struct {
	ID              string `json:"id"`
	Username        string `json:"username"`
	ExperienceLevel string `json:"experience_level"`
	Ready           bool   `json:"ready"`
}

// NewProfileResponse creates a profile response from model
func NewProfileResponse(profile *model.UserProfile) *ProfileResponse {
	return &ProfileResponse{
		ID:              profile.ID,
		Username:        profile.Username,
		ExperienceLevel: string(profile.ExperienceLevel),
		Ready:           profile.PlayStatus,
	}
}

// RoomResponse represents a room with its members
type RoomResponse struct {
	Code      string             `json:"code"`
	AdminID   string             `json:"admin_id"`
	Users     []string           `json:"users"`
	Members   []*ProfileResponse `json:"members"`
	Settings  model.RoomSettings `json:"settings"`
	Channel   string             `json:"channel"`
	CreatedAt string             `json:"created_at"`
	UpdatedAt string             `json:"updated_at"`
}

// NewRoomResponse creates a room response from model
func NewRoomResponse(room *model.RoomDetail) *RoomResponse {
	resp := &RoomResponse{
		Code:      room.Code,
		AdminID:   room.AdminID,
		Users:     room.Users,
		Members:   make([]*ProfileResponse, 0, len(room.Members)),
		Settings:  room.Settings,
		Channel:   notify.RoomChannel(room.Code),
		CreatedAt: room.CreatedAt.Format(time.RFC3339),
		UpdatedAt: room.UpdatedAt.Format(time.RFC3339),
	}
	if resp.Users == nil {
		resp.Users = []string{}
	}
	for _, m := range room.Members {
		resp.Members = append(resp.Members, NewProfileResponse(m))
	}
	return resp
}

// RoomSettingsResponse is returned after a settings update
type RoomSettingsResponse struct {
	Code     string             `json:"code"`
	Settings model.RoomSettings `json:"settings"`
}

func NewRoomSettingsResponse(room *model.Room) *RoomSettingsResponse {
	return &RoomSettingsResponse{Code: room.Code, Settings: room.Settings}
}
