package handler

import (
	"net/http"
	"testing"

	"github.com/go-demo/matchroom/internal/dto/response"
	"github.com/go-demo/matchroom/internal/pkg/notify"
)

func TestMatchHandler_StartSearch(t *testing.T) {
	s := setupTestServer(t)
	alice := s.users.AddUser("alice")

	w := s.do(t, "POST", "/api/v1/searches", s.token(t, alice, false), pythonEasyBody)
	expectStatus(t, w, http.StatusAccepted)

	var started response.SearchStartedResponse
	decode(t, w, &started)

	if started.SearchID == "" {
		t.Fatal("Expected search id")
	}
	if started.Channel != notify.SearchChannel(started.SearchID) {
		t.Errorf("Expected channel search-%s, got %s", started.SearchID, started.Channel)
	}
}

func TestMatchHandler_StartSearch_Invalid(t *testing.T) {
	s := setupTestServer(t)
	alice := s.users.AddUser("alice")
	token := s.token(t, alice, false)

	tests := []struct {
		name string
		body interface{}
	}{
		{"missing fields", map[string]interface{}{"language": "python"}},
		{"unknown mode", map[string]interface{}{"game_mode": "solo", "language": "python", "difficulty_level": "easy"}},
		{"team too large", map[string]interface{}{"game_mode": "random", "language": "python", "difficulty_level": "easy", "team_size": 11}},
		{"not json", "nope"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := s.do(t, "POST", "/api/v1/searches", token, tt.body)
			expectStatus(t, w, http.StatusBadRequest)
		})
	}
}

func TestMatchHandler_Unauthenticated(t *testing.T) {
	s := setupTestServer(t)

	w := s.do(t, "POST", "/api/v1/searches", "", pythonEasyBody)
	expectStatus(t, w, http.StatusUnauthorized)
}

func TestMatchHandler_GetSearch(t *testing.T) {
	s := setupTestServer(t)
	alice := s.users.AddUser("alice")
	bob := s.users.AddUser("bob")

	w := s.do(t, "POST", "/api/v1/searches", s.token(t, alice, false), pythonEasyBody)
	expectStatus(t, w, http.StatusAccepted)
	var started response.SearchStartedResponse
	decode(t, w, &started)

	w = s.do(t, "GET", "/api/v1/searches/"+started.SearchID, s.token(t, alice, false), nil)
	expectStatus(t, w, http.StatusOK)

	var search response.SearchResponse
	decode(t, w, &search)
	if search.ID != started.SearchID {
		t.Errorf("Expected search %s, got %s", started.SearchID, search.ID)
	}
	if search.Settings.Language != "python" {
		t.Errorf("Expected language python, got %s", search.Settings.Language)
	}

	w = s.do(t, "GET", "/api/v1/searches/"+started.SearchID, s.token(t, bob, false), nil)
	expectStatus(t, w, http.StatusNotFound)

	w = s.do(t, "GET", "/api/v1/searches/not-a-uuid", s.token(t, alice, false), nil)
	expectStatus(t, w, http.StatusBadRequest)
}

func TestMatchHandler_CancelSearch(t *testing.T) {
	s := setupTestServer(t)
	alice := s.users.AddUser("alice")
	token := s.token(t, alice, false)

	w := s.do(t, "POST", "/api/v1/searches", token, pythonEasyBody)
	expectStatus(t, w, http.StatusAccepted)
	var started response.SearchStartedResponse
	decode(t, w, &started)

	w = s.do(t, "DELETE", "/api/v1/searches/"+started.SearchID, token, nil)
	expectStatus(t, w, http.StatusOK)

	w = s.do(t, "DELETE", "/api/v1/searches/"+started.SearchID, token, nil)
	expectStatus(t, w, http.StatusNotFound)
}
