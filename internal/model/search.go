package model

import "time"

// SearchRequest is a pending "find me a match" request owned by one user
type SearchRequest struct {
	ID        string       `db:"id" json:"id"`
	UserID    string       `db:"user_id" json:"user_id"`
	Settings  GameSettings `db:"settings" json:"settings"`
	Matched   bool         `db:"matched" json:"matched"`
	CreatedAt time.Time    `db:"created_at" json:"created_at"`
	ExpiresAt time.Time    `db:"expires_at" json:"expires_at"`
}

// IsExpired reports whether the request is past its TTL at t
func (s *SearchRequest) IsExpired(t time.Time) bool {
	return !t.Before(s.ExpiresAt)
}

// SearchCandidate is a compatible search resolved with its owner's public profile.
// Owner is nil when the user row no longer exists.
type SearchCandidate struct {
	SearchRequest
	Owner *UserProfile `json:"owner,omitempty"`
}

// SearchState is the terminal (or current) state of one search attempt
type SearchState string

const (
	SearchStateCreated   SearchState = "created"
	SearchStatePolling   SearchState = "polling"
	SearchStateMatched   SearchState = "matched"
	SearchStateExpired   SearchState = "expired"
	SearchStateCancelled SearchState = "cancelled"
	SearchStateFailed    SearchState = "failed"
)

// IsTerminal reports whether no further transitions are possible
func (s SearchState) IsTerminal() bool {
	switch s {
	case SearchStateMatched, SearchStateExpired, SearchStateCancelled, SearchStateFailed:
		return true
	}
	return false
}
