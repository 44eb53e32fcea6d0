package model

import "time"

type ExperienceLevel string

const (
	ExperienceBeginner     ExperienceLevel = "beginner"
	ExperienceIntermediate ExperienceLevel = "intermediate"
	ExperienceAdvanced     ExperienceLevel = "advanced"
)

// User is owned by the identity service; this core only reads it
// and flips play_status when a member reports ready.
type User struct {
	ID              string          `db:"id" json:"id"`
	Username        string          `db:"username" json:"username"`
	ExperienceLevel ExperienceLevel `db:"experience_level" json:"experience_level"`
	PlayStatus      bool            `db:"play_status" json:"play_status"`
	IsAdmin         bool            `db:"is_admin" json:"is_admin"`
	CreatedAt       time.Time       `db:"created_at" json:"created_at"`
	UpdatedAt       time.Time       `db:"updated_at" json:"updated_at"`
}

// UserProfile is a public-facing user profile
type UserProfile struct {
	ID              string          `json:"id"`
	Username        string          `json:"username"`
	ExperienceLevel ExperienceLevel `json:"experience_level"`
	PlayStatus      bool            `json:"play_status"`
}

// ToProfile converts User to UserProfile
func (u *User) ToProfile() *UserProfile {
	return &UserProfile{
		ID:              u.ID,
		Username:        u.Username,
		ExperienceLevel: u.ExperienceLevel,
		PlayStatus:      u.PlayStatus,
	}
}
