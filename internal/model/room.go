package model

import (
	"time"

	"github.com/lib/pq"
)

// Room is a shared play session. Users keeps join order; the first entry
// is promoted when the admin leaves.
type Room struct {
	ID        string         `db:"id" json:"id"`
	Code      string         `db:"code" json:"code"`
	Users     pq.StringArray `db:"users" json:"users"`
	Settings  RoomSettings   `db:"settings" json:"settings"`
	AdminID   string         `db:"admin_id" json:"admin_id"`
	CreatedAt time.Time      `db:"created_at" json:"created_at"`
	UpdatedAt time.Time      `db:"updated_at" json:"updated_at"`
}

// HasMember checks if userID is in the member list
func (r *Room) HasMember(userID string) bool {
	return r.indexOf(userID) >= 0
}

// AddMember appends userID unless already present
func (r *Room) AddMember(userID string) bool {
	if r.HasMember(userID) {
		return false
	}
	r.Users = append(r.Users, userID)
	return true
}

// RemoveMember drops userID, keeping the order of the rest
func (r *Room) RemoveMember(userID string) bool {
	i := r.indexOf(userID)
	if i < 0 {
		return false
	}
	users := make(pq.StringArray, 0, len(r.Users)-1)
	users = append(users, r.Users[:i]...)
	r.Users = append(users, r.Users[i+1:]...)
	return true
}

// IsFull checks the member count against the room capacity
func (r *Room) IsFull() bool {
	return len(r.Users) >= r.Settings.Capacity()
}

// IsEmpty checks if nobody is left
func (r *Room) IsEmpty() bool {
	return len(r.Users) == 0
}

func (r *Room) indexOf(userID string) int {
	for i, id := range r.Users {
		if id == userID {
			return i
		}
	}
	return -1
}

// RoomDetail is a room with its members resolved to profiles, in member order
type RoomDetail struct {
	Room
	Members []*UserProfile `json:"members"`
}

// LeaveResult describes the room after a member left
type LeaveResult struct {
	RoomClosed     bool     `json:"room_closed"`
	RemainingUsers []string `json:"remaining_users"`
	NewAdminID     string   `json:"new_admin_id,omitempty"`
}
