package response

import (
	"time"

	"github.com/go-demo/matchroom/internal/model"
	"github.com/go-demo/matchroom/internal/pkg/notify"
	"github.com/go-demo/matchroom/internal/service"
)

// SearchResponse represents a search as seen by its owner
type SearchResponse struct {
	ID        string             `json:"id"`
	State     string             `json:"state"`
	Settings  model.GameSettings `json:"settings"`
	RoomCode  string             `json:"room_code,omitempty"`
	Channel   string             `json:"channel"`
	CreatedAt string             `json:"created_at"`
	ExpiresAt string             `json:"expires_at"`
}

// NewSearchResponse creates a search response from a status lookup
func NewSearchResponse(status *service.SearchStatus) *SearchResponse {
	return &SearchResponse{
		ID:        status.Search.ID,
		State:     string(status.State),
		Settings:  status.Search.Settings,
		RoomCode:  status.RoomCode,
		Channel:   notify.SearchChannel(status.Search.ID),
		CreatedAt: status.Search.CreatedAt.Format(time.RFC3339),
		ExpiresAt: status.Search.ExpiresAt.Format(time.RFC3339),
	}
}

// SearchStartedResponse is returned when a search is accepted. Results
// arrive on Channel.
type SearchStartedResponse struct {
	SearchID string `json:"search_id"`
	Channel  string `json:"channel"`
	Message  string `json:"message"`
}

// NewSearchStartedResponse creates the acceptance response of a search task
func NewSearchStartedResponse(task *service.SearchTask) *SearchStartedResponse {
	return &SearchStartedResponse{
		SearchID: task.ID,
		Channel:  notify.SearchChannel(task.ID),
		Message:  "Search started",
	}
}
