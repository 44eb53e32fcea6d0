package handler

import (
	"context"
	"net/http"
	"testing"

	"github.com/go-demo/matchroom/internal/dto/response"
	"github.com/go-demo/matchroom/internal/model"
	"github.com/go-demo/matchroom/internal/service"
)

func createRoomVia(t *testing.T, s *testServer, owner *model.User, others ...*model.User) *response.RoomResponse {
	t.Helper()

	w := s.do(t, "POST", "/api/v1/rooms", s.token(t, owner, false), map[string]interface{}{
		"settings": pythonEasyBody,
	})
	expectStatus(t, w, http.StatusCreated)

	var room response.RoomResponse
	decode(t, w, &room)

	for _, o := range others {
		w = s.do(t, "POST", "/api/v1/rooms/"+room.Code+"/join", s.token(t, o, false), nil)
		expectStatus(t, w, http.StatusOK)
		decode(t, w, &room)
	}
	return &room
}

func TestRoomHandler_Create(t *testing.T) {
	s := setupTestServer(t)
	alice := s.users.AddUser("alice")
	bob := s.users.AddUser("bob")

	room := createRoomVia(t, s, alice, bob)

	if room.AdminID != alice.ID {
		t.Errorf("Expected admin %s, got %s", alice.ID, room.AdminID)
	}
	if len(room.Members) != 2 || room.Members[1].Username != "bob" {
		t.Errorf("Expected members alice and bob, got %+v", room.Members)
	}
	if room.Channel != "room-"+room.Code {
		t.Errorf("Expected channel room-%s, got %s", room.Code, room.Channel)
	}
}

func TestRoomHandler_Create_Invalid(t *testing.T) {
	s := setupTestServer(t)
	alice := s.users.AddUser("alice")
	token := s.token(t, alice, false)

	w := s.do(t, "POST", "/api/v1/rooms", token, map[string]interface{}{
		"settings": map[string]interface{}{"game_mode": "solo", "language": "python", "difficulty_level": "easy"},
	})
	expectStatus(t, w, http.StatusBadRequest)

	w = s.do(t, "POST", "/api/v1/rooms", token, map[string]interface{}{
		"settings": "python",
	})
	expectStatus(t, w, http.StatusBadRequest)
}

func TestRoomHandler_Create_OnlyCaller(t *testing.T) {
	s := setupTestServer(t)
	mallory := s.users.AddUser("mallory")
	bob := s.users.AddUser("bob")
	carol := s.users.AddUser("carol")
	bobsRoom := createRoomVia(t, s, bob, carol)

	w := s.do(t, "POST", "/api/v1/rooms", s.token(t, mallory, false), map[string]interface{}{
		"user_ids": []string{bob.ID},
		"settings": pythonEasyBody,
	})
	expectStatus(t, w, http.StatusCreated)

	var room response.RoomResponse
	decode(t, w, &room)
	if len(room.Members) != 1 || room.Members[0].ID != mallory.ID {
		t.Errorf("Expected mallory alone in her room, got %+v", room.Members)
	}

	w = s.do(t, "GET", "/api/v1/rooms/me", s.token(t, bob, false), nil)
	expectStatus(t, w, http.StatusOK)
	var mine response.RoomResponse
	decode(t, w, &mine)
	if mine.Code != bobsRoom.Code || len(mine.Members) != 2 || mine.AdminID != bob.ID {
		t.Errorf("Expected bob's room %s untouched, got %+v", bobsRoom.Code, mine)
	}
}

func TestRoomHandler_GetAndMyRoom(t *testing.T) {
	s := setupTestServer(t)
	alice := s.users.AddUser("alice")
	token := s.token(t, alice, false)

	w := s.do(t, "GET", "/api/v1/rooms/me", token, nil)
	expectStatus(t, w, http.StatusNotFound)

	room := createRoomVia(t, s, alice)

	w = s.do(t, "GET", "/api/v1/rooms/me", token, nil)
	expectStatus(t, w, http.StatusOK)
	var mine response.RoomResponse
	decode(t, w, &mine)
	if mine.Code != room.Code {
		t.Errorf("Expected room %s, got %s", room.Code, mine.Code)
	}

	w = s.do(t, "GET", "/api/v1/rooms/"+room.Code, token, nil)
	expectStatus(t, w, http.StatusOK)

	w = s.do(t, "GET", "/api/v1/rooms/bad!code", token, nil)
	expectStatus(t, w, http.StatusBadRequest)
}

func TestRoomHandler_JoinAndLeave(t *testing.T) {
	s := setupTestServer(t)
	alice := s.users.AddUser("alice")
	bob := s.users.AddUser("bob")
	room := createRoomVia(t, s, alice)

	w := s.do(t, "POST", "/api/v1/rooms/"+room.Code+"/join", s.token(t, bob, false), nil)
	expectStatus(t, w, http.StatusOK)

	w = s.do(t, "POST", "/api/v1/rooms/"+room.Code+"/leave", s.token(t, alice, false), nil)
	expectStatus(t, w, http.StatusOK)

	var result model.LeaveResult
	decode(t, w, &result)
	if result.NewAdminID != bob.ID {
		t.Errorf("Expected bob to become admin, got %s", result.NewAdminID)
	}

	w = s.do(t, "POST", "/api/v1/rooms/"+room.Code+"/leave", s.token(t, alice, false), nil)
	expectStatus(t, w, http.StatusNotFound)
}

func TestRoomHandler_Join_Full(t *testing.T) {
	s := setupTestServer(t)
	alice := s.users.AddUser("alice")
	bob := s.users.AddUser("bob")
	carol := s.users.AddUser("carol")

	room, err := s.roomService.CreateRoom(context.Background(), []string{alice.ID, bob.ID},
		model.RoomSettings{GameSettings: model.GameSettings{MaxPlayers: 2}})
	if err != nil {
		t.Fatalf("Failed to create room: %v", err)
	}

	w := s.do(t, "POST", "/api/v1/rooms/"+room.Code+"/join", s.token(t, carol, false), nil)
	expectStatus(t, w, http.StatusUnprocessableEntity)
}

func TestRoomHandler_UpdateSettings(t *testing.T) {
	s := setupTestServer(t)
	alice := s.users.AddUser("alice")
	bob := s.users.AddUser("bob")
	ops := s.users.AddUser("ops")
	room := createRoomVia(t, s, alice, bob)
	path := "/api/v1/rooms/" + room.Code + "/settings"

	w := s.do(t, "PATCH", path, s.token(t, bob, false), map[string]interface{}{"round_time": 60})
	expectStatus(t, w, http.StatusForbidden)

	w = s.do(t, "PATCH", path, s.token(t, alice, false), map[string]interface{}{"round_time": 60})
	expectStatus(t, w, http.StatusOK)

	w = s.do(t, "PATCH", path, s.token(t, ops, true), map[string]interface{}{"rounds_per_match": 3})
	expectStatus(t, w, http.StatusOK)

	var updated response.RoomSettingsResponse
	decode(t, w, &updated)
	if updated.Settings.RoundTime != 60 || updated.Settings.RoundsPerMatch != 3 {
		t.Errorf("Expected merged settings, got %+v", updated.Settings)
	}

	w = s.do(t, "PATCH", path, s.token(t, alice, false), map[string]interface{}{"round_time": 500})
	expectStatus(t, w, http.StatusBadRequest)
}

func TestRoomHandler_RemoveMember(t *testing.T) {
	s := setupTestServer(t)
	alice := s.users.AddUser("alice")
	bob := s.users.AddUser("bob")
	room := createRoomVia(t, s, alice, bob)

	w := s.do(t, "DELETE", "/api/v1/rooms/"+room.Code+"/members/alice", s.token(t, bob, false), nil)
	expectStatus(t, w, http.StatusForbidden)

	w = s.do(t, "DELETE", "/api/v1/rooms/"+room.Code+"/members/bob", s.token(t, alice, false), nil)
	expectStatus(t, w, http.StatusOK)

	var result model.LeaveResult
	decode(t, w, &result)
	if len(result.RemainingUsers) != 1 || result.RemainingUsers[0] != alice.ID {
		t.Errorf("Expected only alice to remain, got %v", result.RemainingUsers)
	}
}

func TestRoomHandler_Close(t *testing.T) {
	s := setupTestServer(t)
	alice := s.users.AddUser("alice")
	room := createRoomVia(t, s, alice)
	token := s.token(t, alice, false)

	w := s.do(t, "DELETE", "/api/v1/rooms/"+room.Code, token, nil)
	expectStatus(t, w, http.StatusOK)

	w = s.do(t, "GET", "/api/v1/rooms/"+room.Code, token, nil)
	expectStatus(t, w, http.StatusNotFound)
}

func TestRoomHandler_SetReady(t *testing.T) {
	s := setupTestServer(t)
	alice := s.users.AddUser("alice")
	createRoomVia(t, s, alice)

	w := s.do(t, "POST", "/api/v1/rooms/me/ready", s.token(t, alice, false), nil)
	expectStatus(t, w, http.StatusOK)

	var result service.ReadyResult
	decode(t, w, &result)
	if !result.AllReady {
		t.Error("Expected a single ready member to make the room ready")
	}
}
