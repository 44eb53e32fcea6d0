package notify

import "github.com/go-demo/matchroom/internal/model"

type MatchProgressPayload struct {
	Message      string `json:"message"`
	MatchedCount int    `json:"matched_count"`
}

type MatchFoundPayload struct {
	RoomCode     string               `json:"room_code"`
	Room         *model.Room          `json:"room"`
	Participants []*model.UserProfile `json:"participants"`
}

type MatchErrorPayload struct {
	Message string `json:"message"`
}

type JoinedRoomPayload struct {
	RoomCode string             `json:"room_code"`
	User     *model.UserProfile `json:"user"`
	Users    []string           `json:"users"`
}

type LeftRoomPayload struct {
	RoomCode string   `json:"room_code"`
	UserID   string   `json:"user_id"`
	Users    []string `json:"users"`
}

type AdminChangedPayload struct {
	RoomCode string `json:"room_code"`
	AdminID  string `json:"admin_id"`
}

type SettingsUpdatedPayload struct {
	RoomCode string             `json:"room_code"`
	Settings model.RoomSettings `json:"settings"`
}

type PlayerReadyPayload struct {
	RoomCode string `json:"room_code"`
	UserID   string `json:"user_id"`
	AllReady bool   `json:"all_ready"`
}

type RoomClosedPayload struct {
	RoomCode string `json:"room_code"`
}
