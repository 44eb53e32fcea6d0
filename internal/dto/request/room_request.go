package request

import "github.com/go-demo/matchroom/internal/model"

// CreateRoomRequest represents a direct room creation. The caller is the
// only member and the admin; others join by code.
type CreateRoomRequest struct {
	Settings GameSettingsRequest `json:"settings"`
}

// UpdateRoomSettingsRequest represents a partial settings update
type UpdateRoomSettingsRequest struct {
	GameMode        *string  `json:"game_mode,omitempty"`
	Language        *string  `json:"language,omitempty"`
	DifficultyLevel *string  `json:"difficulty_level,omitempty"`
	MaxPlayers      *int     `json:"max_players,omitempty"`
	TeamSize        *int     `json:"team_size,omitempty"`
	TimeLimit       *int     `json:"time_limit,omitempty"`
	Topics          []string `json:"topics,omitempty"`
	RoundTime       *int     `json:"round_time,omitempty"`
	RoundsPerMatch  *int     `json:"rounds_per_match,omitempty"`
	Mode            *string  `json:"mode,omitempty"`
}

// ToPatch converts the request to a settings patch
func (r *UpdateRoomSettingsRequest) ToPatch() *model.SettingsPatch {
	p := &model.SettingsPatch{
		Language:       r.Language,
		MaxPlayers:     r.MaxPlayers,
		TeamSize:       r.TeamSize,
		TimeLimit:      r.TimeLimit,
		Topics:         r.Topics,
		RoundTime:      r.RoundTime,
		RoundsPerMatch: r.RoundsPerMatch,
	}
	if r.GameMode != nil {
		m := model.GameMode(*r.GameMode)
		p.GameMode = &m
	}
	if r.DifficultyLevel != nil {
		d := model.Difficulty(*r.DifficultyLevel)
		p.DifficultyLevel = &d
	}
	if r.Mode != nil {
		m := model.RoundMode(*r.Mode)
		p.Mode = &m
	}
	return p
}
