package service

import (
	"github.com/go-demo/matchroom/internal/model"
	apperrors "github.com/go-demo/matchroom/internal/pkg/errors"
	"github.com/go-demo/matchroom/internal/pkg/utils"
)

const (
	maxLanguageLength = 32
	maxTopics         = 10
	minPlayers        = 2
)

var (
	gameModes    = []string{string(model.GameModeRandom), string(model.GameModeTopic), string(model.GameModeCustom)}
	difficulties = []string{string(model.DifficultyEasy), string(model.DifficultyMedium), string(model.DifficultyHard)}
	roundModes   = []string{string(model.RoundModeClassic), string(model.RoundModeSpeed), string(model.RoundModeElimination)}
)

// ValidateGameSettings checks the matching criteria of a new search.
// Team size and max players are checked after defaults are applied.
func ValidateGameSettings(s model.GameSettings) utils.ValidationErrors {
	v := utils.NewValidator()

	v.OneOf("game_mode", string(s.GameMode), gameModes...)
	if v.Required("language", s.Language) {
		v.MaxLength("language", s.Language, maxLanguageLength)
	}
	v.OneOf("difficulty_level", string(s.DifficultyLevel), difficulties...)

	d := s.WithDefaults()
	v.IntRange("max_players", d.MaxPlayers, minPlayers, model.DefaultRoomMaxPlayers)
	if v.IntRange("team_size", d.TeamSize, minPlayers, model.DefaultRoomMaxPlayers) {
		v.Check(d.TeamSize <= d.MaxPlayers, "team_size", "must not exceed max_players")
	}
	v.Check(s.TimeLimit >= 0, "time_limit", "must not be negative")
	v.Check(len(s.Topics) <= maxTopics, "topics", "too many topics")

	return v.Errors()
}

// ValidateSettingsPatch checks only the fields present in p
func ValidateSettingsPatch(p *model.SettingsPatch) utils.ValidationErrors {
	v := utils.NewValidator()

	if p.IsEmpty() {
		v.AddError("settings", "no fields to update")
		return v.Errors()
	}

	if p.RoundTime != nil {
		v.IntRange("round_time", *p.RoundTime, model.MinRoundTime, model.MaxRoundTime)
	}
	if p.RoundsPerMatch != nil {
		v.IntRange("rounds_per_match", *p.RoundsPerMatch, model.MinRoundsPerMatch, model.MaxRoundsPerMatch)
	}
	if p.Mode != nil {
		v.OneOf("mode", string(*p.Mode), roundModes...)
	}
	if p.GameMode != nil {
		v.OneOf("game_mode", string(*p.GameMode), gameModes...)
	}
	if p.DifficultyLevel != nil {
		v.OneOf("difficulty_level", string(*p.DifficultyLevel), difficulties...)
	}
	if p.Language != nil && v.Required("language", *p.Language) {
		v.MaxLength("language", *p.Language, maxLanguageLength)
	}
	if p.MaxPlayers != nil {
		v.IntRange("max_players", *p.MaxPlayers, minPlayers, model.DefaultRoomMaxPlayers)
	}
	if p.TeamSize != nil {
		v.IntRange("team_size", *p.TeamSize, minPlayers, model.DefaultRoomMaxPlayers)
	}
	if p.TimeLimit != nil {
		v.Check(*p.TimeLimit >= 0, "time_limit", "must not be negative")
	}
	if p.Topics != nil {
		v.Check(len(p.Topics) <= maxTopics, "topics", "too many topics")
	}

	return v.Errors()
}

// ValidateMergedSettings checks a room's settings after a patch is applied
// against each other and against the current member count
func ValidateMergedSettings(s model.RoomSettings, members int) utils.ValidationErrors {
	v := utils.NewValidator()

	capacity := s.Capacity()
	v.Check(capacity >= members, "max_players", "must not be below the current member count")
	v.Check(s.WithDefaults().TeamSize <= capacity, "team_size", "must not exceed max_players")

	return v.Errors()
}

func invalidSettings(errs utils.ValidationErrors) error {
	return apperrors.ErrInvalidSettings.WithDetails(errs)
}
