package request

import "github.com/go-demo/matchroom/internal/model"

// GameSettingsRequest represents the matching criteria of a search
type GameSettingsRequest struct {
	GameMode        string   `json:"game_mode" binding:"required"`
	Language        string   `json:"language" binding:"required"`
	DifficultyLevel string   `json:"difficulty_level" binding:"required"`
	MaxPlayers      int      `json:"max_players,omitempty"`
	TeamSize        int      `json:"team_size,omitempty"`
	TimeLimit       int      `json:"time_limit,omitempty"`
	Topics          []string `json:"topics,omitempty"`
}

// ToModel converts the request to game settings
func (r *GameSettingsRequest) ToModel() model.GameSettings {
	return model.GameSettings{
		GameMode:        model.GameMode(r.GameMode),
		Language:        r.Language,
		DifficultyLevel: model.Difficulty(r.DifficultyLevel),
		MaxPlayers:      r.MaxPlayers,
		TeamSize:        r.TeamSize,
		TimeLimit:       r.TimeLimit,
		Topics:          r.Topics,
	}
}

// StartSearchRequest represents a matchmaking submission
type StartSearchRequest struct {
	GameSettingsRequest
}
