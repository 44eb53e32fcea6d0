package service

import (
	"context"
	"fmt"
	"strings"
	"testing"

	"github.com/go-demo/matchroom/internal/model"
	apperrors "github.com/go-demo/matchroom/internal/pkg/errors"
	"github.com/go-demo/matchroom/internal/pkg/notify"
	"github.com/go-demo/matchroom/internal/testsetup"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type roomFixture struct {
	service   *RoomService
	rooms     *testsetup.RoomStore
	users     *testsetup.UserDirectory
	publisher *testsetup.Publisher
}

func setupTestRoomService(t *testing.T) *roomFixture {
	t.Helper()

	f := &roomFixture{
		rooms:     testsetup.NewRoomStore(),
		users:     testsetup.NewUserDirectory(),
		publisher: testsetup.NewPublisher(),
	}
	f.service = NewRoomService(f.rooms, f.users, f.publisher, testsetup.NewMetrics(), RoomOptions{}, zap.NewNop())
	return f
}

func (f *roomFixture) newRoom(t *testing.T, members ...*model.User) *model.RoomDetail {
	t.Helper()

	ids := make([]string, 0, len(members))
	for _, m := range members {
		ids = append(ids, m.ID)
	}
	room, err := f.service.CreateRoom(context.Background(), ids, model.RoomSettings{GameSettings: pythonEasy})
	require.NoError(t, err)
	return room
}

var pythonEasy = model.GameSettings{
	GameMode:        model.GameModeRandom,
	Language:        "python",
	DifficultyLevel: model.DifficultyEasy,
}

func intPtr(v int) *int { return &v }

func TestRoomService_CreateRoom(t *testing.T) {
	f := setupTestRoomService(t)
	alice := f.users.AddUser("alice")
	bob := f.users.AddUser("bob")

	room := f.newRoom(t, alice, bob)

	assert.Len(t, room.Code, 6)
	assert.Equal(t, alice.ID, room.AdminID)
	assert.Equal(t, []string{alice.ID, bob.ID}, []string(room.Users))
	require.Len(t, room.Members, 2)
	assert.Equal(t, "alice", room.Members[0].Username)
}

func TestRoomService_CreateRoom_UnknownUser(t *testing.T) {
	f := setupTestRoomService(t)
	alice := f.users.AddUser("alice")

	_, err := f.service.CreateRoom(context.Background(), []string{alice.ID, "missing"}, model.RoomSettings{})
	assert.ErrorIs(t, err, apperrors.ErrUserNotFound)
	assert.Empty(t, f.rooms.All())
}

func TestRoomService_CreateRoom_MovesMembersOutOfOldRoom(t *testing.T) {
	f := setupTestRoomService(t)
	alice := f.users.AddUser("alice")
	bob := f.users.AddUser("bob")
	carol := f.users.AddUser("carol")

	old := f.newRoom(t, alice, bob)
	fresh := f.newRoom(t, bob, carol)

	// a user is a member of at most one room
	for _, r := range f.rooms.All() {
		if r.Code == old.Code {
			assert.Equal(t, []string{alice.ID}, []string(r.Users))
		}
	}
	mine, err := f.service.GetMyRoom(context.Background(), bob.ID)
	require.NoError(t, err)
	assert.Equal(t, fresh.Code, mine.Code)
}

func TestRoomService_CreateRoom_RetriesTakenCode(t *testing.T) {
	f := setupTestRoomService(t)
	alice := f.users.AddUser("alice")
	bob := f.users.AddUser("bob")

	f.rooms.Put(&model.Room{Code: "taken1", Users: []string{bob.ID}, AdminID: bob.ID})

	codes := []string{"taken1", "fresh1"}
	f.service.newCode = func(int) string {
		c := codes[0]
		codes = codes[1:]
		return c
	}

	room := f.newRoom(t, alice)
	assert.Equal(t, "fresh1", room.Code)
}

func TestRoomService_CreateRoom_CodeAttemptsExhausted(t *testing.T) {
	f := setupTestRoomService(t)
	alice := f.users.AddUser("alice")
	bob := f.users.AddUser("bob")

	f.rooms.Put(&model.Room{Code: "taken1", Users: []string{bob.ID}, AdminID: bob.ID})
	f.service.newCode = func(int) string { return "taken1" }

	_, err := f.service.CreateRoom(context.Background(), []string{alice.ID}, model.RoomSettings{})
	assert.ErrorIs(t, err, apperrors.ErrRoomCodeTaken)
}

func TestRoomService_JoinRoom(t *testing.T) {
	f := setupTestRoomService(t)
	ctx := context.Background()
	alice := f.users.AddUser("alice")
	bob := f.users.AddUser("bob")
	room := f.newRoom(t, alice)

	joined, err := f.service.JoinRoom(ctx, bob.ID, room.Code)
	require.NoError(t, err)
	assert.Equal(t, []string{alice.ID, bob.ID}, []string(joined.Users))

	events := f.publisher.Find(notify.RoomChannel(room.Code), notify.EventJoinedRoom)
	require.Len(t, events, 1)
	payload := events[0].Payload.(*notify.JoinedRoomPayload)
	assert.Equal(t, "bob", payload.User.Username)
	assert.Equal(t, []string{alice.ID, bob.ID}, payload.Users)
}

func TestRoomService_JoinRoom_Idempotent(t *testing.T) {
	f := setupTestRoomService(t)
	ctx := context.Background()
	alice := f.users.AddUser("alice")
	room := f.newRoom(t, alice)

	again, err := f.service.JoinRoom(ctx, alice.ID, room.Code)
	require.NoError(t, err)
	assert.Equal(t, []string{alice.ID}, []string(again.Users))
	assert.Zero(t, f.publisher.Count(notify.EventJoinedRoom))
}

func TestRoomService_JoinRoom_Full(t *testing.T) {
	f := setupTestRoomService(t)
	ctx := context.Background()
	alice := f.users.AddUser("alice")
	bob := f.users.AddUser("bob")
	carol := f.users.AddUser("carol")

	room, err := f.service.CreateRoom(ctx, []string{alice.ID, bob.ID},
		model.RoomSettings{GameSettings: model.GameSettings{MaxPlayers: 2}})
	require.NoError(t, err)

	// carol's own room must survive the rejected join
	own := f.newRoom(t, carol)

	_, err = f.service.JoinRoom(ctx, carol.ID, room.Code)
	assert.ErrorIs(t, err, apperrors.ErrRoomFull)

	mine, err := f.service.GetMyRoom(ctx, carol.ID)
	require.NoError(t, err)
	assert.Equal(t, own.Code, mine.Code)
}

func TestRoomService_JoinRoom_LeavesPreviousRoom(t *testing.T) {
	f := setupTestRoomService(t)
	ctx := context.Background()
	alice := f.users.AddUser("alice")
	bob := f.users.AddUser("bob")
	carol := f.users.AddUser("carol")
	old := f.newRoom(t, alice, bob)
	target := f.newRoom(t, carol)
	require.Equal(t, alice.ID, old.AdminID)
	f.publisher.Reset()

	joined, err := f.service.JoinRoom(ctx, alice.ID, target.Code)
	require.NoError(t, err)
	assert.Equal(t, []string{carol.ID, alice.ID}, []string(joined.Users))
	assert.Equal(t, carol.ID, joined.AdminID)

	shrunk, err := f.service.GetRoom(ctx, old.Code)
	require.NoError(t, err)
	assert.Equal(t, []string{bob.ID}, []string(shrunk.Users))
	assert.Equal(t, bob.ID, shrunk.AdminID)

	left := f.publisher.Find(notify.RoomChannel(old.Code), notify.EventLeftRoom)
	require.Len(t, left, 1)
	leftPayload := left[0].Payload.(*notify.LeftRoomPayload)
	assert.Equal(t, alice.ID, leftPayload.UserID)
	assert.Equal(t, []string{bob.ID}, leftPayload.Users)

	handoff := f.publisher.Find(notify.RoomChannel(old.Code), notify.EventAdminChanged)
	require.Len(t, handoff, 1)
	assert.Equal(t, bob.ID, handoff[0].Payload.(*notify.AdminChangedPayload).AdminID)

	assert.Empty(t, f.publisher.Find(notify.RoomChannel(old.Code), notify.EventRoomClosed))
	assert.Len(t, f.publisher.Find(notify.RoomChannel(target.Code), notify.EventJoinedRoom), 1)

	mine, err := f.service.GetMyRoom(ctx, alice.ID)
	require.NoError(t, err)
	assert.Equal(t, target.Code, mine.Code)
}

func TestRoomService_JoinRoom_InvalidCode(t *testing.T) {
	f := setupTestRoomService(t)
	alice := f.users.AddUser("alice")

	_, err := f.service.JoinRoom(context.Background(), alice.ID, "no!")
	assert.ErrorIs(t, err, apperrors.ErrInvalidRoomCode)

	_, err = f.service.JoinRoom(context.Background(), alice.ID, "abcdef")
	assert.ErrorIs(t, err, apperrors.ErrRoomNotFound)
}

func TestRoomService_JoinRoom_NormalizesCode(t *testing.T) {
	f := setupTestRoomService(t)
	alice := f.users.AddUser("alice")
	bob := f.users.AddUser("bob")
	room := f.newRoom(t, alice)

	joined, err := f.service.JoinRoom(context.Background(), bob.ID, " "+strings.ToUpper(room.Code)+" ")
	require.NoError(t, err)
	assert.Equal(t, room.Code, joined.Code)
}

func TestRoomService_LeaveRoom_AdminHandoff(t *testing.T) {
	f := setupTestRoomService(t)
	ctx := context.Background()
	alice := f.users.AddUser("alice")
	bob := f.users.AddUser("bob")
	carol := f.users.AddUser("carol")
	room := f.newRoom(t, alice, bob, carol)

	result, err := f.service.LeaveRoom(ctx, room.Code, alice.ID)
	require.NoError(t, err)

	assert.False(t, result.RoomClosed)
	assert.Equal(t, bob.ID, result.NewAdminID)
	assert.Equal(t, []string{bob.ID, carol.ID}, result.RemainingUsers)

	stored, err := f.service.GetRoom(ctx, room.Code)
	require.NoError(t, err)
	assert.Equal(t, bob.ID, stored.AdminID)
	assert.True(t, stored.HasMember(stored.AdminID))

	channel := notify.RoomChannel(room.Code)
	assert.Len(t, f.publisher.Find(channel, notify.EventAdminChanged), 1)
	assert.Len(t, f.publisher.Find(channel, notify.EventLeftRoom), 1)
}

func TestRoomService_LeaveRoom_NonAdmin(t *testing.T) {
	f := setupTestRoomService(t)
	alice := f.users.AddUser("alice")
	bob := f.users.AddUser("bob")
	room := f.newRoom(t, alice, bob)

	result, err := f.service.LeaveRoom(context.Background(), room.Code, bob.ID)
	require.NoError(t, err)
	assert.Empty(t, result.NewAdminID)
	assert.Zero(t, f.publisher.Count(notify.EventAdminChanged))
}

func TestRoomService_LeaveRoom_LastMemberDeletesRoom(t *testing.T) {
	f := setupTestRoomService(t)
	ctx := context.Background()
	alice := f.users.AddUser("alice")
	room := f.newRoom(t, alice)

	result, err := f.service.LeaveRoom(ctx, room.Code, alice.ID)
	require.NoError(t, err)
	assert.True(t, result.RoomClosed)
	assert.Empty(t, result.RemainingUsers)

	_, err = f.service.GetRoom(ctx, room.Code)
	assert.ErrorIs(t, err, apperrors.ErrRoomNotFound)
	assert.Len(t, f.publisher.Find(notify.RoomChannel(room.Code), notify.EventRoomClosed), 1)
}

func TestRoomService_LeaveRoom_NotMember(t *testing.T) {
	f := setupTestRoomService(t)
	alice := f.users.AddUser("alice")
	bob := f.users.AddUser("bob")
	room := f.newRoom(t, alice)

	_, err := f.service.LeaveRoom(context.Background(), room.Code, bob.ID)
	assert.ErrorIs(t, err, apperrors.ErrNotRoomMember)
}

func TestRoomService_RemoveUser(t *testing.T) {
	f := setupTestRoomService(t)
	ctx := context.Background()
	alice := f.users.AddUser("alice")
	bob := f.users.AddUser("bob")
	room := f.newRoom(t, alice, bob)

	result, err := f.service.RemoveUser(ctx, room.Code, "bob")
	require.NoError(t, err)
	assert.Equal(t, []string{alice.ID}, result.RemainingUsers)

	_, err = f.service.RemoveUser(ctx, room.Code, "bob")
	assert.ErrorIs(t, err, apperrors.ErrNotRoomMember)

	_, err = f.service.RemoveUser(ctx, room.Code, "nobody")
	assert.ErrorIs(t, err, apperrors.ErrUserNotFound)
}

func TestRoomService_CloseRoom(t *testing.T) {
	f := setupTestRoomService(t)
	ctx := context.Background()
	alice := f.users.AddUser("alice")
	bob := f.users.AddUser("bob")
	room := f.newRoom(t, alice, bob)

	_, err := f.service.SetReady(ctx, bob.ID)
	require.NoError(t, err)

	require.NoError(t, f.service.CloseRoom(ctx, room.Code))

	_, err = f.service.GetRoom(ctx, room.Code)
	assert.ErrorIs(t, err, apperrors.ErrRoomNotFound)

	u, _ := f.users.GetByID(ctx, bob.ID)
	assert.False(t, u.PlayStatus)

	assert.ErrorIs(t, f.service.CloseRoom(ctx, room.Code), apperrors.ErrRoomNotFound)
}

func TestRoomService_UpdateSettings_PreservesOtherFields(t *testing.T) {
	f := setupTestRoomService(t)
	ctx := context.Background()
	alice := f.users.AddUser("alice")
	room := f.newRoom(t, alice)

	_, err := f.service.UpdateSettings(ctx, room.Code, &model.SettingsPatch{RoundsPerMatch: intPtr(5)})
	require.NoError(t, err)

	updated, err := f.service.UpdateSettings(ctx, room.Code, &model.SettingsPatch{RoundTime: intPtr(60)})
	require.NoError(t, err)

	assert.Equal(t, 60, updated.Settings.RoundTime)
	assert.Equal(t, 5, updated.Settings.RoundsPerMatch)
	assert.Equal(t, "python", updated.Settings.Language)

	events := f.publisher.Find(notify.RoomChannel(room.Code), notify.EventSettingsUpdated)
	require.Len(t, events, 2)
	payload := events[1].Payload.(*notify.SettingsUpdatedPayload)
	assert.Equal(t, 5, payload.Settings.RoundsPerMatch)
}

func TestRoomService_UpdateSettings_Invalid(t *testing.T) {
	f := setupTestRoomService(t)
	ctx := context.Background()
	alice := f.users.AddUser("alice")
	room := f.newRoom(t, alice)

	cases := []*model.SettingsPatch{
		{},
		{RoundTime: intPtr(5)},
		{RoundsPerMatch: intPtr(11)},
	}
	for i, patch := range cases {
		t.Run(fmt.Sprintf("case_%d", i), func(t *testing.T) {
			_, err := f.service.UpdateSettings(ctx, room.Code, patch)
			assert.ErrorIs(t, err, apperrors.ErrInvalidSettings)
		})
	}
	assert.Zero(t, f.publisher.Count(notify.EventSettingsUpdated))
}

func TestRoomService_UpdateSettings_MergedBounds(t *testing.T) {
	f := setupTestRoomService(t)
	ctx := context.Background()
	alice := f.users.AddUser("alice")
	bob := f.users.AddUser("bob")
	carol := f.users.AddUser("carol")

	room, err := f.service.CreateRoom(ctx, []string{alice.ID, bob.ID, carol.ID},
		model.RoomSettings{GameSettings: model.GameSettings{MaxPlayers: 4, TeamSize: 2}})
	require.NoError(t, err)

	_, err = f.service.UpdateSettings(ctx, room.Code, &model.SettingsPatch{MaxPlayers: intPtr(2)})
	assert.ErrorIs(t, err, apperrors.ErrInvalidSettings, "max_players below member count")

	_, err = f.service.UpdateSettings(ctx, room.Code, &model.SettingsPatch{TeamSize: intPtr(6)})
	assert.ErrorIs(t, err, apperrors.ErrInvalidSettings, "team_size above stored max_players")

	_, err = f.service.UpdateSettings(ctx, room.Code, &model.SettingsPatch{MaxPlayers: intPtr(3), TeamSize: intPtr(4)})
	assert.ErrorIs(t, err, apperrors.ErrInvalidSettings, "team_size above patched max_players")

	assert.Zero(t, f.publisher.Count(notify.EventSettingsUpdated))
	stored, err := f.service.GetRoom(ctx, room.Code)
	require.NoError(t, err)
	assert.Equal(t, 4, stored.Settings.MaxPlayers)
	assert.Equal(t, 2, stored.Settings.TeamSize)

	updated, err := f.service.UpdateSettings(ctx, room.Code, &model.SettingsPatch{MaxPlayers: intPtr(3), TeamSize: intPtr(3)})
	require.NoError(t, err)
	assert.Equal(t, 3, updated.Settings.MaxPlayers)
	assert.Equal(t, 3, updated.Settings.TeamSize)
}

func TestRoomService_SetReady(t *testing.T) {
	f := setupTestRoomService(t)
	ctx := context.Background()
	alice := f.users.AddUser("alice")
	bob := f.users.AddUser("bob")
	room := f.newRoom(t, alice, bob)

	first, err := f.service.SetReady(ctx, alice.ID)
	require.NoError(t, err)
	assert.False(t, first.AllReady)

	second, err := f.service.SetReady(ctx, bob.ID)
	require.NoError(t, err)
	assert.True(t, second.AllReady)
	assert.Equal(t, room.Code, second.RoomCode)

	events := f.publisher.Find(notify.RoomChannel(room.Code), notify.EventPlayerReady)
	require.Len(t, events, 2)
	assert.True(t, events[1].Payload.(*notify.PlayerReadyPayload).AllReady)
}

func TestRoomService_SetReady_NoRoom(t *testing.T) {
	f := setupTestRoomService(t)
	alice := f.users.AddUser("alice")

	_, err := f.service.SetReady(context.Background(), alice.ID)
	assert.ErrorIs(t, err, apperrors.ErrRoomNotFound)
}

func TestRoomService_AuthorizeAdmin(t *testing.T) {
	f := setupTestRoomService(t)
	ctx := context.Background()
	alice := f.users.AddUser("alice")
	bob := f.users.AddUser("bob")
	room := f.newRoom(t, alice, bob)

	assert.NoError(t, f.service.AuthorizeAdmin(ctx, room.Code, alice.ID, false))
	assert.ErrorIs(t, f.service.AuthorizeAdmin(ctx, room.Code, bob.ID, false), apperrors.ErrPermissionDenied)
	assert.NoError(t, f.service.AuthorizeAdmin(ctx, room.Code, bob.ID, true))
}
