package model

import (
	"database/sql/driver"
	"encoding/json"
	"errors"
)

type GameMode string

const (
	GameModeRandom GameMode = "random"
	GameModeTopic  GameMode = "topic"
	GameModeCustom GameMode = "custom"
)

// IsValid checks if the game mode is known
func (m GameMode) IsValid() bool {
	switch m {
	case GameModeRandom, GameModeTopic, GameModeCustom:
		return true
	}
	return false
}

type Difficulty string

const (
	DifficultyEasy   Difficulty = "easy"
	DifficultyMedium Difficulty = "medium"
	DifficultyHard   Difficulty = "hard"
)

// IsValid checks if the difficulty is known
func (d Difficulty) IsValid() bool {
	switch d {
	case DifficultyEasy, DifficultyMedium, DifficultyHard:
		return true
	}
	return false
}

// RoundMode is the per-room scoring mode
type RoundMode string

const (
	RoundModeClassic     RoundMode = "classic"
	RoundModeSpeed       RoundMode = "speed"
	RoundModeElimination RoundMode = "elimination"
)

// IsValid checks if the round mode is known
func (m RoundMode) IsValid() bool {
	switch m {
	case RoundModeClassic, RoundModeSpeed, RoundModeElimination:
		return true
	}
	return false
}

const (
	DefaultTeamSize       = 2
	DefaultMaxPlayers     = 4
	DefaultRoomMaxPlayers = 10

	MinRoundTime      = 10
	MaxRoundTime      = 120
	MinRoundsPerMatch = 1
	MaxRoundsPerMatch = 10
)

// GameSettings are the matching criteria of a search and the initial settings of a room.
type GameSettings struct {
	GameMode        GameMode   `json:"game_mode"`
	Language        string     `json:"language"`
	DifficultyLevel Difficulty `json:"difficulty_level"`
	MaxPlayers      int        `json:"max_players,omitempty"`
	TeamSize        int        `json:"team_size,omitempty"`
	TimeLimit       int        `json:"time_limit,omitempty"`
	Topics          []string   `json:"topics,omitempty"`
}

// WithDefaults returns a copy with team size and max players filled in
func (s GameSettings) WithDefaults() GameSettings {
	if s.TeamSize <= 0 {
		s.TeamSize = DefaultTeamSize
	}
	if s.MaxPlayers <= 0 {
		s.MaxPlayers = DefaultMaxPlayers
	}
	return s
}

// Value implements driver.Valuer for JSONB columns
func (s GameSettings) Value() (driver.Value, error) {
	return json.Marshal(s)
}

// Scan implements sql.Scanner for JSONB columns
func (s *GameSettings) Scan(src interface{}) error {
	return scanJSON(src, s)
}

// RoomSettings starts as a copy of the matched GameSettings and is edited by the room admin afterward.
type RoomSettings struct {
	GameSettings
	RoundTime      int       `json:"round_time,omitempty"`
	RoundsPerMatch int       `json:"rounds_per_match,omitempty"`
	Mode           RoundMode `json:"mode,omitempty"`
}

// Capacity returns the member limit used when joining
func (s RoomSettings) Capacity() int {
	if s.MaxPlayers <= 0 {
		return DefaultRoomMaxPlayers
	}
	return s.MaxPlayers
}

func (s RoomSettings) Value() (driver.Value, error) {
	return json.Marshal(s)
}

func (s *RoomSettings) Scan(src interface{}) error {
	return scanJSON(src, s)
}

// SettingsPatch is a partial room settings update. Nil fields are left untouched.
type SettingsPatch struct {
	GameMode        *GameMode   `json:"game_mode,omitempty"`
	Language        *string     `json:"language,omitempty"`
	DifficultyLevel *Difficulty `json:"difficulty_level,omitempty"`
	MaxPlayers      *int        `json:"max_players,omitempty"`
	TeamSize        *int        `json:"team_size,omitempty"`
	TimeLimit       *int        `json:"time_limit,omitempty"`
	Topics          []string    `json:"topics,omitempty"`
	RoundTime       *int        `json:"round_time,omitempty"`
	RoundsPerMatch  *int        `json:"rounds_per_match,omitempty"`
	Mode            *RoundMode  `json:"mode,omitempty"`
}

// IsEmpty reports whether the patch carries no fields
func (p *SettingsPatch) IsEmpty() bool {
	return p.GameMode == nil && p.Language == nil && p.DifficultyLevel == nil &&
		p.MaxPlayers == nil && p.TeamSize == nil && p.TimeLimit == nil &&
		p.Topics == nil && p.RoundTime == nil && p.RoundsPerMatch == nil && p.Mode == nil
}

// Apply returns s with every field present in p overwritten
func (p *SettingsPatch) Apply(s RoomSettings) RoomSettings {
	if p.GameMode != nil {
		s.GameMode = *p.GameMode
	}
	if p.Language != nil {
		s.Language = *p.Language
	}
	if p.DifficultyLevel != nil {
		s.DifficultyLevel = *p.DifficultyLevel
	}
	if p.MaxPlayers != nil {
		s.MaxPlayers = *p.MaxPlayers
	}
	if p.TeamSize != nil {
		s.TeamSize = *p.TeamSize
	}
	if p.TimeLimit != nil {
		s.TimeLimit = *p.TimeLimit
	}
	if p.Topics != nil {
		s.Topics = append([]string(nil), p.Topics...)
	}
	if p.RoundTime != nil {
		s.RoundTime = *p.RoundTime
	}
	if p.RoundsPerMatch != nil {
		s.RoundsPerMatch = *p.RoundsPerMatch
	}
	if p.Mode != nil {
		s.Mode = *p.Mode
	}
	return s
}

func scanJSON(src interface{}, dst interface{}) error {
	switch v := src.(type) {
	case nil:
		return nil
	case []byte:
		return json.Unmarshal(v, dst)
	case string:
		return json.Unmarshal([]byte(v), dst)
	default:
		return errors.New("unsupported settings column type")
	}
}
