package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/go-demo/matchroom/internal/config"
	"github.com/go-demo/matchroom/internal/middleware"
	"github.com/go-demo/matchroom/internal/model"
	"github.com/go-demo/matchroom/internal/pkg/utils"
	"github.com/go-demo/matchroom/internal/service"
	"github.com/go-demo/matchroom/internal/testsetup"
	"go.uber.org/zap"
)

type testServer struct {
	router      *gin.Engine
	jwtManager  *utils.JWTManager
	users       *testsetup.UserDirectory
	rooms       *testsetup.RoomStore
	publisher   *testsetup.Publisher
	roomService *service.RoomService
	matchmaker  *service.Matchmaker
}

func setupTestServer(t *testing.T) *testServer {
	t.Helper()

	gin.SetMode(gin.TestMode)
	logger := zap.NewNop()

	s := &testServer{
		jwtManager: utils.NewJWTManager("test-secret", 15*time.Minute, "test"),
		users:      testsetup.NewUserDirectory(),
		rooms:      testsetup.NewRoomStore(),
		publisher:  testsetup.NewPublisher(),
	}

	s.roomService = service.NewRoomService(s.rooms, s.users, s.publisher, testsetup.NewMetrics(), service.RoomOptions{}, logger)
	s.matchmaker = service.NewMatchmaker(
		testsetup.NewSearchStore(s.users),
		s.roomService,
		s.publisher,
		testsetup.NewMetrics(),
		config.MatchmakingConfig{
			SearchTimeout:         10 * time.Second,
			PollInterval:          time.Second,
			MaxConcurrentSearches: 16,
			CleanupInterval:       time.Minute,
		},
		logger,
	)
	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = s.matchmaker.Shutdown(ctx)
	})

	matchHandler := NewMatchHandler(s.matchmaker)
	roomHandler := NewRoomHandler(s.roomService)

	s.router = gin.New()
	v1 := s.router.Group("/api/v1")
	v1.Use(middleware.Auth(s.jwtManager))
	{
		v1.POST("/searches", matchHandler.StartSearch)
		v1.GET("/searches/:id", matchHandler.GetSearch)
		v1.DELETE("/searches/:id", matchHandler.CancelSearch)

		v1.POST("/rooms", roomHandler.Create)
		v1.GET("/rooms/me", roomHandler.GetMyRoom)
		v1.POST("/rooms/me/ready", roomHandler.SetReady)
		v1.GET("/rooms/:code", roomHandler.Get)
		v1.DELETE("/rooms/:code", roomHandler.Close)
		v1.POST("/rooms/:code/join", roomHandler.Join)
		v1.POST("/rooms/:code/leave", roomHandler.Leave)
		v1.PATCH("/rooms/:code/settings", roomHandler.UpdateSettings)
		v1.DELETE("/rooms/:code/members/:username", roomHandler.RemoveMember)
	}

	return s
}

func (s *testServer) token(t *testing.T, user *model.User, admin bool) string {
	t.Helper()
	token, _, err := s.jwtManager.GenerateAccessToken(user.ID, user.Username, admin)
	if err != nil {
		t.Fatalf("Failed to generate token: %v", err)
	}
	return token
}

func (s *testServer) do(t *testing.T, method, path, token string, body interface{}) *httptest.ResponseRecorder {
	t.Helper()

	var reader *bytes.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		if err != nil {
			t.Fatalf("Failed to encode body: %v", err)
		}
		reader = bytes.NewReader(raw)
	} else {
		reader = bytes.NewReader(nil)
	}

	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	w := httptest.NewRecorder()
	s.router.ServeHTTP(w, req)
	return w
}

type envelope struct {
	Success bool            `json:"success"`
	Data    json.RawMessage `json:"data"`
	Error   *struct {
		Code    int    `json:"code"`
		Message string `json:"message"`
	} `json:"error"`
}

func decode(t *testing.T, w *httptest.ResponseRecorder, data interface{}) envelope {
	t.Helper()

	var env envelope
	if err := json.Unmarshal(w.Body.Bytes(), &env); err != nil {
		t.Fatalf("Failed to decode response %q: %v", w.Body.String(), err)
	}
	if data != nil && len(env.Data) > 0 {
		if err := json.Unmarshal(env.Data, data); err != nil {
			t.Fatalf("Failed to decode data: %v", err)
		}
	}
	return env
}

func expectStatus(t *testing.T, w *httptest.ResponseRecorder, status int) {
	t.Helper()
	if w.Code != status {
		t.Fatalf("Expected status %d, got %d: %s", status, w.Code, w.Body.String())
	}
}

var pythonEasyBody = map[string]interface{}{
	"game_mode":        "random",
	"language":         "python",
	"difficulty_level": "easy",
}
