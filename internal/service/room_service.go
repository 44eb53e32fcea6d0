package service

import (
	"context"
	"errors"
	"strings"

	"github.com/go-demo/matchroom/internal/model"
	apperrors "github.com/go-demo/matchroom/internal/pkg/errors"
	"github.com/go-demo/matchroom/internal/pkg/metrics"
	"github.com/go-demo/matchroom/internal/pkg/notify"
	"github.com/go-demo/matchroom/internal/pkg/utils"
	"github.com/go-demo/matchroom/internal/repository"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// Room creation sources, used as a metrics label
const (
	RoomSourceMatch  = "match"
	RoomSourceDirect = "direct"
)

// RoomOptions controls share code generation
type RoomOptions struct {
	CodeLength   int
	CodeAttempts int
}

type RoomService struct {
	rooms     RoomStore
	users     UserDirectory
	publisher notify.Publisher
	metrics   metrics.MatchmakingMetrics
	opts      RoomOptions
	newCode   func(length int) string
	logger    *zap.Logger
}

func NewRoomService(
	rooms RoomStore,
	users UserDirectory,
	publisher notify.Publisher,
	m metrics.MatchmakingMetrics,
	opts RoomOptions,
	logger *zap.Logger,
) *RoomService {
	if opts.CodeLength <= 0 {
		opts.CodeLength = 6
	}
	if opts.CodeAttempts <= 0 {
		opts.CodeAttempts = 5
	}
	return &RoomService{
		rooms:     rooms,
		users:     users,
		publisher: publisher,
		metrics:   m,
		opts:      opts,
		newCode:   generateRoomCode,
		logger:    logger,
	}
}

// generateRoomCode returns a lower-case hex code cut from a random UUID
func generateRoomCode(length int) string {
	code := strings.ReplaceAll(uuid.NewString(), "-", "")
	if length > len(code) {
		length = len(code)
	}
	return code[:length]
}

// ReadyResult is reported after a member marks themselves ready
type ReadyResult struct {
	RoomCode string `json:"room_code"`
	UserID   string `json:"user_id"`
	AllReady bool   `json:"all_ready"`
}

// CreateRoom creates a room holding userIDs with userIDs[0] as admin.
// Members of other rooms are moved out of them first.
func (s *RoomService) CreateRoom(ctx context.Context, userIDs []string, settings model.RoomSettings) (*model.RoomDetail, error) {
	return s.createRoom(ctx, userIDs, settings, RoomSourceDirect)
}

// CreateMatchRoom is CreateRoom for rooms formed by the matchmaker
func (s *RoomService) CreateMatchRoom(ctx context.Context, userIDs []string, settings model.GameSettings) (*model.RoomDetail, error) {
	return s.createRoom(ctx, userIDs, model.RoomSettings{GameSettings: settings}, RoomSourceMatch)
}

func (s *RoomService) createRoom(ctx context.Context, userIDs []string, settings model.RoomSettings, source string) (*model.RoomDetail, error) {
	ids := dedupe(userIDs)
	if len(ids) == 0 {
		return nil, apperrors.ErrInvalidInput
	}

	users, err := s.users.GetByIDs(ctx, ids)
	if err != nil {
		s.logger.Error("Failed to resolve room members", zap.Error(err))
		return nil, apperrors.ErrInternal
	}
	if len(users) != len(ids) {
		return nil, apperrors.ErrUserNotFound
	}

	for _, id := range ids {
		if err := s.leaveCurrentRoom(ctx, id, ""); err != nil {
			return nil, err
		}
	}

	room := &model.Room{
		Users:    append([]string(nil), ids...),
		Settings: settings,
		AdminID:  ids[0],
	}

	if err := s.insertWithFreshCode(ctx, room); err != nil {
		return nil, err
	}

	s.metrics.RoomCreated(source)
	s.logger.Info("Room created",
		zap.String("room_code", room.Code),
		zap.String("admin_id", room.AdminID),
		zap.Int("members", len(room.Users)),
		zap.String("source", source),
	)

	return s.detail(room, users), nil
}

// insertWithFreshCode retries with a new code while the store reports a collision
func (s *RoomService) insertWithFreshCode(ctx context.Context, room *model.Room) error {
	for attempt := 1; attempt <= s.opts.CodeAttempts; attempt++ {
		room.Code = s.newCode(s.opts.CodeLength)

		err := s.rooms.Create(ctx, room)
		if err == nil {
			return nil
		}
		if !errors.Is(err, repository.ErrRoomCodeTaken) {
			s.logger.Error("Failed to create room", zap.Error(err))
			return apperrors.ErrInternal
		}

		s.logger.Debug("Room code collision, retrying",
			zap.String("room_code", room.Code),
			zap.Int("attempt", attempt),
		)
	}

	s.logger.Warn("Exhausted room code attempts", zap.Int("attempts", s.opts.CodeAttempts))
	return apperrors.ErrRoomCodeTaken
}

// JoinRoom adds userID to the room with code. Joining a room the user is
// already in returns its current state.
func (s *RoomService) JoinRoom(ctx context.Context, userID, code string) (*model.RoomDetail, error) {
	user, err := s.getUser(ctx, userID)
	if err != nil {
		return nil, err
	}

	room, err := s.getRoom(ctx, code)
	if err != nil {
		return nil, err
	}

	if room.HasMember(userID) {
		return s.resolve(ctx, room)
	}

	if room.IsFull() {
		return nil, apperrors.ErrRoomFull
	}

	if err := s.leaveCurrentRoom(ctx, userID, room.Code); err != nil {
		return nil, err
	}

	room.AddMember(userID)
	if room.AdminID == "" {
		room.AdminID = userID
	}

	if err := s.rooms.Update(ctx, room); err != nil {
		return nil, s.storeError("Failed to join room", room.Code, err)
	}

	s.publisher.Publish(ctx, notify.RoomChannel(room.Code), notify.EventJoinedRoom, &notify.JoinedRoomPayload{
		RoomCode: room.Code,
		User:     user.ToProfile(),
		Users:    room.Users,
	})

	s.logger.Info("User joined room",
		zap.String("room_code", room.Code),
		zap.String("user_id", userID),
	)

	return s.resolve(ctx, room)
}

// LeaveRoom removes userID from the room, handing admin to the next member
// or deleting the room when nobody is left
func (s *RoomService) LeaveRoom(ctx context.Context, code, userID string) (*model.LeaveResult, error) {
	room, err := s.getRoom(ctx, code)
	if err != nil {
		return nil, err
	}

	if !room.HasMember(userID) {
		return nil, apperrors.ErrNotRoomMember
	}

	return s.removeMember(ctx, room, userID)
}

// RemoveUser removes the member with username from the room
func (s *RoomService) RemoveUser(ctx context.Context, code, username string) (*model.LeaveResult, error) {
	user, err := s.users.GetByUsername(ctx, username)
	if err != nil {
		if errors.Is(err, repository.ErrUserNotFound) {
			return nil, apperrors.ErrUserNotFound
		}
		s.logger.Error("Failed to get user", zap.Error(err))
		return nil, apperrors.ErrInternal
	}

	room, err := s.getRoom(ctx, code)
	if err != nil {
		return nil, err
	}

	if !room.HasMember(user.ID) {
		return nil, apperrors.ErrNotRoomMember
	}

	return s.removeMember(ctx, room, user.ID)
}

// CloseRoom deletes a room regardless of its members
func (s *RoomService) CloseRoom(ctx context.Context, code string) error {
	room, err := s.getRoom(ctx, code)
	if err != nil {
		return err
	}

	if err := s.rooms.Delete(ctx, room.Code); err != nil {
		return s.storeError("Failed to close room", room.Code, err)
	}

	for _, id := range room.Users {
		s.resetReady(ctx, id)
	}

	s.publisher.Publish(ctx, notify.RoomChannel(room.Code), notify.EventRoomClosed, &notify.RoomClosedPayload{
		RoomCode: room.Code,
	})

	s.logger.Info("Room closed", zap.String("room_code", room.Code))
	return nil
}

// UpdateSettings merges patch into the room settings. Only fields present
// in patch change.
func (s *RoomService) UpdateSettings(ctx context.Context, code string, patch *model.SettingsPatch) (*model.Room, error) {
	if errs := ValidateSettingsPatch(patch); errs.HasErrors() {
		return nil, invalidSettings(errs)
	}

	room, err := s.getRoom(ctx, code)
	if err != nil {
		return nil, err
	}

	merged := patch.Apply(room.Settings)
	if errs := ValidateMergedSettings(merged, len(room.Users)); errs.HasErrors() {
		return nil, invalidSettings(errs)
	}
	room.Settings = merged

	s.publisher.Publish(ctx, notify.RoomChannel(room.Code), notify.EventSettingsUpdated, &notify.SettingsUpdatedPayload{
		RoomCode: room.Code,
		Settings: room.Settings,
	})

	if err := s.rooms.Update(ctx, room); err != nil {
		return nil, s.storeError("Failed to update room settings", room.Code, err)
	}

	return room, nil
}

// SetReady marks userID ready and reports whether the whole room is
func (s *RoomService) SetReady(ctx context.Context, userID string) (*ReadyResult, error) {
	room, err := s.rooms.FindByMember(ctx, userID)
	if err != nil {
		if errors.Is(err, repository.ErrRoomNotFound) {
			return nil, apperrors.ErrRoomNotFound
		}
		s.logger.Error("Failed to find room by member", zap.Error(err))
		return nil, apperrors.ErrInternal
	}

	if err := s.users.UpdatePlayStatus(ctx, userID, true); err != nil {
		if errors.Is(err, repository.ErrUserNotFound) {
			return nil, apperrors.ErrUserNotFound
		}
		s.logger.Error("Failed to update play status", zap.Error(err))
		return nil, apperrors.ErrInternal
	}

	members, err := s.users.GetByIDs(ctx, room.Users)
	if err != nil {
		s.logger.Error("Failed to resolve room members", zap.Error(err))
		return nil, apperrors.ErrInternal
	}

	ready := make(map[string]bool, len(members))
	for _, m := range members {
		ready[m.ID] = m.PlayStatus
	}
	ready[userID] = true

	allReady := true
	for _, id := range room.Users {
		if !ready[id] {
			allReady = false
			break
		}
	}

	result := &ReadyResult{RoomCode: room.Code, UserID: userID, AllReady: allReady}
	s.publisher.Publish(ctx, notify.RoomChannel(room.Code), notify.EventPlayerReady, &notify.PlayerReadyPayload{
		RoomCode: room.Code,
		UserID:   userID,
		AllReady: allReady,
	})

	return result, nil
}

// GetRoom returns a room with its members resolved
func (s *RoomService) GetRoom(ctx context.Context, code string) (*model.RoomDetail, error) {
	room, err := s.getRoom(ctx, code)
	if err != nil {
		return nil, err
	}
	return s.resolve(ctx, room)
}

// GetMyRoom returns the room userID currently belongs to
func (s *RoomService) GetMyRoom(ctx context.Context, userID string) (*model.RoomDetail, error) {
	room, err := s.rooms.FindByMember(ctx, userID)
	if err != nil {
		if errors.Is(err, repository.ErrRoomNotFound) {
			return nil, apperrors.ErrRoomNotFound
		}
		s.logger.Error("Failed to find room by member", zap.Error(err))
		return nil, apperrors.ErrInternal
	}
	return s.resolve(ctx, room)
}

// AuthorizeAdmin allows the room admin and platform admins
func (s *RoomService) AuthorizeAdmin(ctx context.Context, code, userID string, platformAdmin bool) error {
	room, err := s.getRoom(ctx, code)
	if err != nil {
		return err
	}
	if platformAdmin || room.AdminID == userID {
		return nil
	}
	return apperrors.ErrPermissionDenied
}

// leaveCurrentRoom takes userID out of whatever room it is in, unless that
// room is keepCode
func (s *RoomService) leaveCurrentRoom(ctx context.Context, userID, keepCode string) error {
	current, err := s.rooms.FindByMember(ctx, userID)
	if err != nil {
		if errors.Is(err, repository.ErrRoomNotFound) {
			return nil
		}
		s.logger.Error("Failed to find current room", zap.String("user_id", userID), zap.Error(err))
		return apperrors.ErrInternal
	}

	if current.Code == keepCode {
		return nil
	}

	_, err = s.removeMember(ctx, current, userID)
	return err
}

// removeMember is the shared leave path. An emptied room is deleted, never saved.
func (s *RoomService) removeMember(ctx context.Context, room *model.Room, userID string) (*model.LeaveResult, error) {
	room.RemoveMember(userID)
	channel := notify.RoomChannel(room.Code)

	if room.IsEmpty() {
		if err := s.rooms.Delete(ctx, room.Code); err != nil && !errors.Is(err, repository.ErrRoomNotFound) {
			return nil, s.storeError("Failed to delete empty room", room.Code, err)
		}
		s.resetReady(ctx, userID)

		s.publisher.Publish(ctx, channel, notify.EventRoomClosed, &notify.RoomClosedPayload{RoomCode: room.Code})
		s.logger.Info("Last member left, room deleted",
			zap.String("room_code", room.Code),
			zap.String("user_id", userID),
		)

		return &model.LeaveResult{RoomClosed: true, RemainingUsers: []string{}}, nil
	}

	result := &model.LeaveResult{RemainingUsers: room.Users}
	if room.AdminID == userID || !room.HasMember(room.AdminID) {
		room.AdminID = room.Users[0]
		result.NewAdminID = room.AdminID
	}

	if err := s.rooms.Update(ctx, room); err != nil {
		return nil, s.storeError("Failed to leave room", room.Code, err)
	}
	s.resetReady(ctx, userID)

	if result.NewAdminID != "" {
		s.publisher.Publish(ctx, channel, notify.EventAdminChanged, &notify.AdminChangedPayload{
			RoomCode: room.Code,
			AdminID:  result.NewAdminID,
		})
	}

	s.publisher.Publish(ctx, channel, notify.EventLeftRoom, &notify.LeftRoomPayload{
		RoomCode: room.Code,
		UserID:   userID,
		Users:    room.Users,
	})

	s.logger.Info("User left room",
		zap.String("room_code", room.Code),
		zap.String("user_id", userID),
		zap.String("new_admin_id", result.NewAdminID),
	)

	return result, nil
}

// resetReady clears the ready flag of a user leaving a room. Failures are logged.
func (s *RoomService) resetReady(ctx context.Context, userID string) {
	if err := s.users.UpdatePlayStatus(ctx, userID, false); err != nil && !errors.Is(err, repository.ErrUserNotFound) {
		s.logger.Warn("Failed to reset play status", zap.String("user_id", userID), zap.Error(err))
	}
}

func (s *RoomService) getUser(ctx context.Context, userID string) (*model.User, error) {
	user, err := s.users.GetByID(ctx, userID)
	if err != nil {
		if errors.Is(err, repository.ErrUserNotFound) {
			return nil, apperrors.ErrUserNotFound
		}
		s.logger.Error("Failed to get user", zap.Error(err))
		return nil, apperrors.ErrInternal
	}
	return user, nil
}

func (s *RoomService) getRoom(ctx context.Context, code string) (*model.Room, error) {
	code = utils.NormalizeRoomCode(code)
	if !utils.ValidateRoomCode(code) {
		return nil, apperrors.ErrInvalidRoomCode
	}

	room, err := s.rooms.GetByCode(ctx, code)
	if err != nil {
		if errors.Is(err, repository.ErrRoomNotFound) {
			return nil, apperrors.ErrRoomNotFound
		}
		s.logger.Error("Failed to get room", zap.Error(err))
		return nil, apperrors.ErrInternal
	}
	return room, nil
}

// resolve loads member profiles for room
func (s *RoomService) resolve(ctx context.Context, room *model.Room) (*model.RoomDetail, error) {
	users, err := s.users.GetByIDs(ctx, room.Users)
	if err != nil {
		s.logger.Error("Failed to resolve room members", zap.Error(err))
		return nil, apperrors.ErrInternal
	}
	return s.detail(room, users), nil
}

// detail orders users by room membership; unknown members are skipped
func (s *RoomService) detail(room *model.Room, users []*model.User) *model.RoomDetail {
	byID := make(map[string]*model.User, len(users))
	for _, u := range users {
		byID[u.ID] = u
	}

	members := make([]*model.UserProfile, 0, len(room.Users))
	for _, id := range room.Users {
		if u, ok := byID[id]; ok {
			members = append(members, u.ToProfile())
		}
	}

	return &model.RoomDetail{Room: *room, Members: members}
}

func (s *RoomService) storeError(msg, code string, err error) error {
	if errors.Is(err, repository.ErrRoomNotFound) {
		return apperrors.ErrRoomNotFound
	}
	s.logger.Error(msg, zap.String("room_code", code), zap.Error(err))
	return apperrors.ErrInternal
}

func dedupe(ids []string) []string {
	seen := make(map[string]bool, len(ids))
	out := make([]string, 0, len(ids))
	for _, id := range ids {
		if id == "" || seen[id] {
			continue
		}
		seen[id] = true
		out = append(out, id)
	}
	return out
}
