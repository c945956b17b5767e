package service_test

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"chat-backend/internal/auth"
	"chat-backend/internal/errs"
	"chat-backend/internal/mocks"
	"chat-backend/internal/models"
	"chat-backend/internal/repositories"
	"chat-backend/internal/service"
)

func testRedis(t *testing.T) (*redis.Client, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { client.Close() })
	return client, mr
}

type roomEnv struct {
	svc     *service.RoomSvc
	rooms   *mocks.RoomRepositoryMock
	members *mocks.MemberRepositoryMock
	users   *mocks.UserRepositoryMock
	tracker *mocks.TrackerMock
	bus     *mocks.BusMock
	hasher  auth.PasswordHasher
}

func newRoomEnv(t *testing.T) *roomEnv {
	return newRoomEnvWithAttempts(t, 5)
}

func newRoomEnvWithAttempts(t *testing.T, limit int) *roomEnv {
	t.Helper()
	client, _ := testRedis(t)
	env := &roomEnv{
		rooms:   &mocks.RoomRepositoryMock{},
		members: &mocks.MemberRepositoryMock{},
		users:   &mocks.UserRepositoryMock{},
		tracker: &mocks.TrackerMock{},
		bus:     &mocks.BusMock{},
		hasher:  auth.NewPasswordHasher(bcrypt.MinCost),
	}
	attempts := service.NewAttemptLimiter(client, limit, time.Minute)
	env.svc = service.NewRoomSvc(env.rooms, env.members, env.users, env.tracker, env.bus, env.hasher, attempts, nil, zerolog.Nop())
	return env
}

func publicRoom() models.ChatRoom {
	return models.ChatRoom{ID: uuid.New(), Name: "general", OwnerID: uuid.New(), CreatedAt: time.Now().UTC()}
}

func (env *roomEnv) privateRoom(t *testing.T, password string) models.ChatRoom {
	t.Helper()
	hash, err := env.hasher.Hash(password)
	require.NoError(t, err)
	room := publicRoom()
	room.IsPrivate = true
	room.PasswordHash = &hash
	return room
}

func memberOf(roomID, userID uuid.UUID, role string) models.RoomMember {
	return models.RoomMember{RoomID: roomID, UserID: userID, Role: role, JoinedAt: time.Now().UTC()}
}

func TestCreateRoomHashesPrivatePassword(t *testing.T) {
	env := newRoomEnv(t)
	ownerID := uuid.New()
	stored := publicRoom()

	env.rooms.On("CreateRoom", mock.Anything, mock.MatchedBy(func(r models.ChatRoom) bool {
		return r.Name == "lair" && r.OwnerID == ownerID && r.IsPrivate &&
			r.PasswordHash != nil && *r.PasswordHash != "secret" &&
			env.hasher.Verify(*r.PasswordHash, "secret")
	})).Return(stored, nil)

	_, err := env.svc.CreateRoom(context.Background(), ownerID, "lair", true, "secret")
	require.NoError(t, err)
	env.rooms.AssertExpectations(t)
}

func TestCreateRoomValidation(t *testing.T) {
	tests := []struct {
		name      string
		roomName  string
		isPrivate bool
		password  string
	}{
		{"empty name", "", false, ""},
		{"private without password", "lair", true, ""},
		{"public with password", "plaza", false, "secret"},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			env := newRoomEnv(t)

			_, err := env.svc.CreateRoom(context.Background(), uuid.New(), tc.roomName, tc.isPrivate, tc.password)
			require.Equal(t, errs.KindValidation, errs.KindOf(err))
			env.rooms.AssertNotCalled(t, "CreateRoom", mock.Anything, mock.Anything)
		})
	}
}

func TestGetRoomHidesPrivateFromNonMembers(t *testing.T) {
	env := newRoomEnv(t)
	room := env.privateRoom(t, "secret")
	userID := uuid.New()

	env.rooms.On("GetRoomByID", mock.Anything, room.ID).Return(room, nil)
	env.members.On("GetMember", mock.Anything, room.ID, userID).Return(models.RoomMember{}, repositories.ErrMemberNotFound)

	_, err := env.svc.GetRoom(context.Background(), userID, room.ID)
	require.Equal(t, errs.KindNotFound, errs.KindOf(err))
	require.Equal(t, errs.CodeRoomNotFound, errs.CodeOf(err), "a private room must not reveal it exists")
}

func TestGetRoomPublicNeedsNoMembership(t *testing.T) {
	env := newRoomEnv(t)
	room := publicRoom()

	env.rooms.On("GetRoomByID", mock.Anything, room.ID).Return(room, nil)

	got, err := env.svc.GetRoom(context.Background(), uuid.New(), room.ID)
	require.NoError(t, err)
	require.Equal(t, room.ID, got.ID)
	env.members.AssertNotCalled(t, "GetMember", mock.Anything, mock.Anything, mock.Anything)
}

func TestJoinVerifiesPasswordBeforeMembership(t *testing.T) {
	env := newRoomEnv(t)
	user := storedUser("alice", "alice@example.com")
	room := env.privateRoom(t, "roompass")

	env.rooms.On("GetRoomByID", mock.Anything, room.ID).Return(room, nil)
	env.users.On("GetUserByID", mock.Anything, user.ID).Return(user, nil)

	created, err := env.svc.Join(context.Background(), user.ID, room.ID, "wrong")
	require.False(t, created)
	require.Equal(t, errs.KindAuthentication, errs.KindOf(err))
	require.Equal(t, errs.CodeInvalidRoomPassword, errs.CodeOf(err))
	// The membership lookup never ran, so a wrong guess cannot probe who is in
	// the room.
	env.members.AssertNotCalled(t, "GetMember", mock.Anything, mock.Anything, mock.Anything)
}

func TestJoinPrivateRoomWithoutPasswordAsksForOne(t *testing.T) {
	env := newRoomEnvWithAttempts(t, 1)
	user := storedUser("alice", "alice@example.com")
	room := env.privateRoom(t, "roompass")

	env.rooms.On("GetRoomByID", mock.Anything, room.ID).Return(room, nil)
	env.users.On("GetUserByID", mock.Anything, user.ID).Return(user, nil)

	created, err := env.svc.Join(context.Background(), user.ID, room.ID, "")
	require.False(t, created)
	require.Equal(t, errs.KindAuthentication, errs.KindOf(err))
	require.Equal(t, errs.CodeRoomPrivate, errs.CodeOf(err))

	// Asking did not consume attempt budget: the single allowed guess is
	// still available and succeeds.
	env.members.On("GetMember", mock.Anything, room.ID, user.ID).Return(models.RoomMember{}, repositories.ErrMemberNotFound)
	env.members.On("AddMember", mock.Anything, room.ID, user.ID, models.RoleMember).Return(memberOf(room.ID, user.ID, models.RoleMember), nil)
	env.bus.On("Publish", mock.Anything, mock.Anything).Return(nil)

	created, err = env.svc.Join(context.Background(), user.ID, room.ID, "roompass")
	require.NoError(t, err)
	require.True(t, created)
}

func TestJoinPrivateRoomWithPassword(t *testing.T) {
	env := newRoomEnv(t)
	user := storedUser("alice", "alice@example.com")
	room := env.privateRoom(t, "roompass")

	env.rooms.On("GetRoomByID", mock.Anything, room.ID).Return(room, nil)
	env.users.On("GetUserByID", mock.Anything, user.ID).Return(user, nil)
	env.members.On("GetMember", mock.Anything, room.ID, user.ID).Return(models.RoomMember{}, repositories.ErrMemberNotFound)
	env.members.On("AddMember", mock.Anything, room.ID, user.ID, models.RoleMember).Return(memberOf(room.ID, user.ID, models.RoleMember), nil)
	env.bus.On("Publish", mock.Anything, mock.MatchedBy(func(ev models.RoomEvent) bool {
		return ev.Type == models.EventMemberJoined && ev.RoomID == room.ID && ev.UserID != nil && *ev.UserID == user.ID
	})).Return(nil)

	created, err := env.svc.Join(context.Background(), user.ID, room.ID, "roompass")
	require.NoError(t, err)
	require.True(t, created)
	env.bus.AssertExpectations(t)
}

func TestJoinAgainIsNoop(t *testing.T) {
	env := newRoomEnv(t)
	user := storedUser("alice", "alice@example.com")
	room := publicRoom()

	env.rooms.On("GetRoomByID", mock.Anything, room.ID).Return(room, nil)
	env.users.On("GetUserByID", mock.Anything, user.ID).Return(user, nil)
	env.members.On("GetMember", mock.Anything, room.ID, user.ID).Return(memberOf(room.ID, user.ID, models.RoleMember), nil)

	created, err := env.svc.Join(context.Background(), user.ID, room.ID, "")
	require.NoError(t, err)
	require.False(t, created)
	env.members.AssertNotCalled(t, "AddMember", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
	env.bus.AssertNotCalled(t, "Publish", mock.Anything, mock.Anything)
}

func TestJoinAgainOnClosedRoomStaysNoop(t *testing.T) {
	env := newRoomEnv(t)
	user := storedUser("alice", "alice@example.com")
	room := publicRoom()
	room.IsClosed = true

	env.rooms.On("GetRoomByID", mock.Anything, room.ID).Return(room, nil)
	env.users.On("GetUserByID", mock.Anything, user.ID).Return(user, nil)
	env.members.On("GetMember", mock.Anything, room.ID, user.ID).Return(memberOf(room.ID, user.ID, models.RoleMember), nil)

	created, err := env.svc.Join(context.Background(), user.ID, room.ID, "")
	require.NoError(t, err, "existing members keep access to a closed room")
	require.False(t, created)
}

func TestJoinClosedRoomRejected(t *testing.T) {
	env := newRoomEnv(t)
	user := storedUser("alice", "alice@example.com")
	room := publicRoom()
	room.IsClosed = true

	env.rooms.On("GetRoomByID", mock.Anything, room.ID).Return(room, nil)
	env.users.On("GetUserByID", mock.Anything, user.ID).Return(user, nil)
	env.members.On("GetMember", mock.Anything, room.ID, user.ID).Return(models.RoomMember{}, repositories.ErrMemberNotFound)

	_, err := env.svc.Join(context.Background(), user.ID, room.ID, "")
	require.Equal(t, errs.KindAuthorization, errs.KindOf(err))
	require.Equal(t, errs.CodeRoomClosed, errs.CodeOf(err))
}

func TestJoinSuspendedAccountRejected(t *testing.T) {
	env := newRoomEnv(t)
	user := storedUser("mallory", "mallory@example.com")
	user.Status = models.UserStatusSuspended
	room := publicRoom()

	env.rooms.On("GetRoomByID", mock.Anything, room.ID).Return(room, nil)
	env.users.On("GetUserByID", mock.Anything, user.ID).Return(user, nil)

	_, err := env.svc.Join(context.Background(), user.ID, room.ID, "")
	require.Equal(t, errs.KindAuthorization, errs.KindOf(err))
}

func TestJoinPasswordAttemptsAreLimited(t *testing.T) {
	env := newRoomEnvWithAttempts(t, 1)
	user := storedUser("alice", "alice@example.com")
	room := env.privateRoom(t, "roompass")

	env.rooms.On("GetRoomByID", mock.Anything, room.ID).Return(room, nil)
	env.users.On("GetUserByID", mock.Anything, user.ID).Return(user, nil)

	_, err := env.svc.Join(context.Background(), user.ID, room.ID, "wrong")
	require.Equal(t, errs.CodeInvalidRoomPassword, errs.CodeOf(err))

	// The limiter counts attempts, not failures: the correct password is
	// rejected too once the budget is spent.
	_, err = env.svc.Join(context.Background(), user.ID, room.ID, "roompass")
	require.Equal(t, errs.KindRateLimited, errs.KindOf(err))
	require.Equal(t, errs.CodeTooManyAttempts, errs.CodeOf(err))
}

func TestLeaveOwnerMustTransferFirst(t *testing.T) {
	env := newRoomEnv(t)
	room := publicRoom()

	env.rooms.On("GetRoomByID", mock.Anything, room.ID).Return(room, nil)
	env.members.On("GetMember", mock.Anything, room.ID, room.OwnerID).Return(memberOf(room.ID, room.OwnerID, models.RoleOwner), nil)

	err := env.svc.Leave(context.Background(), room.OwnerID, room.ID)
	require.Equal(t, errs.KindAuthorization, errs.KindOf(err))
	require.Equal(t, errs.CodeOwnerCannotLeave, errs.CodeOf(err))
	env.members.AssertNotCalled(t, "RemoveMember", mock.Anything, mock.Anything, mock.Anything)
}

func TestLeaveBroadcastsMemberLeft(t *testing.T) {
	env := newRoomEnv(t)
	room := publicRoom()
	userID := uuid.New()

	env.rooms.On("GetRoomByID", mock.Anything, room.ID).Return(room, nil)
	env.members.On("GetMember", mock.Anything, room.ID, userID).Return(memberOf(room.ID, userID, models.RoleMember), nil)
	env.members.On("RemoveMember", mock.Anything, room.ID, userID).Return(nil)
	env.bus.On("Publish", mock.Anything, mock.MatchedBy(func(ev models.RoomEvent) bool {
		return ev.Type == models.EventMemberLeft && ev.UserID != nil && *ev.UserID == userID
	})).Return(nil)

	require.NoError(t, env.svc.Leave(context.Background(), userID, room.ID))
	env.bus.AssertExpectations(t)
}

func TestUpdateRoomOwnerOnly(t *testing.T) {
	env := newRoomEnv(t)
	room := publicRoom()
	actorID := uuid.New()
	name := "renamed"

	env.rooms.On("GetRoomByID", mock.Anything, room.ID).Return(room, nil)
	env.members.On("GetMember", mock.Anything, room.ID, actorID).Return(memberOf(room.ID, actorID, models.RoleAdmin), nil)

	_, err := env.svc.UpdateRoom(context.Background(), actorID, room.ID, service.RoomPatch{Name: &name})
	require.Equal(t, errs.KindAuthorization, errs.KindOf(err))
	env.rooms.AssertNotCalled(t, "UpdateRoom", mock.Anything, mock.Anything)
}

func TestUpdateRoomClosedRoomIsImmutable(t *testing.T) {
	env := newRoomEnv(t)
	room := publicRoom()
	room.IsClosed = true
	name := "renamed"

	env.rooms.On("GetRoomByID", mock.Anything, room.ID).Return(room, nil)
	env.members.On("GetMember", mock.Anything, room.ID, room.OwnerID).Return(memberOf(room.ID, room.OwnerID, models.RoleOwner), nil)

	_, err := env.svc.UpdateRoom(context.Background(), room.OwnerID, room.ID, service.RoomPatch{Name: &name})
	require.Equal(t, errs.CodeRoomClosed, errs.CodeOf(err))
}

func TestUpdateRoomEmitsOnlyChangedFields(t *testing.T) {
	env := newRoomEnv(t)
	room := publicRoom()
	name := "renamed"
	isPrivate := false // already public

	env.rooms.On("GetRoomByID", mock.Anything, room.ID).Return(room, nil)
	env.members.On("GetMember", mock.Anything, room.ID, room.OwnerID).Return(memberOf(room.ID, room.OwnerID, models.RoleOwner), nil)
	env.rooms.On("UpdateRoom", mock.Anything, mock.MatchedBy(func(r models.ChatRoom) bool {
		return r.ID == room.ID && r.Name == "renamed" && !r.IsPrivate
	})).Return(room, nil)
	env.bus.On("Publish", mock.Anything, mock.MatchedBy(func(ev models.RoomEvent) bool {
		return ev.Type == models.EventRoomUpdated && ev.Changes != nil &&
			ev.Changes.Name != nil && *ev.Changes.Name == "renamed" &&
			ev.Changes.IsPrivate == nil
	})).Return(nil)

	_, err := env.svc.UpdateRoom(context.Background(), room.OwnerID, room.ID, service.RoomPatch{Name: &name, IsPrivate: &isPrivate})
	require.NoError(t, err)
	env.bus.AssertExpectations(t)
}

func TestUpdateRoomSameValuesEmitNoEvent(t *testing.T) {
	env := newRoomEnv(t)
	room := publicRoom()
	name := room.Name

	env.rooms.On("GetRoomByID", mock.Anything, room.ID).Return(room, nil)
	env.members.On("GetMember", mock.Anything, room.ID, room.OwnerID).Return(memberOf(room.ID, room.OwnerID, models.RoleOwner), nil)
	env.rooms.On("UpdateRoom", mock.Anything, mock.Anything).Return(room, nil)

	_, err := env.svc.UpdateRoom(context.Background(), room.OwnerID, room.ID, service.RoomPatch{Name: &name})
	require.NoError(t, err)
	env.bus.AssertNotCalled(t, "Publish", mock.Anything, mock.Anything)
}

func TestUpdateRoomGoingPrivateRequiresPassword(t *testing.T) {
	env := newRoomEnv(t)
	room := publicRoom()
	isPrivate := true

	env.rooms.On("GetRoomByID", mock.Anything, room.ID).Return(room, nil)
	env.members.On("GetMember", mock.Anything, room.ID, room.OwnerID).Return(memberOf(room.ID, room.OwnerID, models.RoleOwner), nil)

	_, err := env.svc.UpdateRoom(context.Background(), room.OwnerID, room.ID, service.RoomPatch{IsPrivate: &isPrivate})
	require.Equal(t, errs.KindValidation, errs.KindOf(err))
}

func TestUpdateRoomGoingPublicDropsPassword(t *testing.T) {
	env := newRoomEnv(t)
	room := env.privateRoom(t, "secret")
	isPrivate := false

	env.rooms.On("GetRoomByID", mock.Anything, room.ID).Return(room, nil)
	env.members.On("GetMember", mock.Anything, room.ID, room.OwnerID).Return(memberOf(room.ID, room.OwnerID, models.RoleOwner), nil)
	env.rooms.On("UpdateRoom", mock.Anything, mock.MatchedBy(func(r models.ChatRoom) bool {
		return !r.IsPrivate && r.PasswordHash == nil
	})).Return(room, nil)
	env.bus.On("Publish", mock.Anything, mock.MatchedBy(func(ev models.RoomEvent) bool {
		return ev.Type == models.EventRoomUpdated && ev.Changes != nil && ev.Changes.IsPrivate != nil && !*ev.Changes.IsPrivate
	})).Return(nil)

	_, err := env.svc.UpdateRoom(context.Background(), room.OwnerID, room.ID, service.RoomPatch{IsPrivate: &isPrivate})
	require.NoError(t, err)
	env.rooms.AssertExpectations(t)
}

func TestCloseRoomBroadcasts(t *testing.T) {
	env := newRoomEnv(t)
	room := publicRoom()

	env.rooms.On("GetRoomByID", mock.Anything, room.ID).Return(room, nil)
	env.members.On("GetMember", mock.Anything, room.ID, room.OwnerID).Return(memberOf(room.ID, room.OwnerID, models.RoleOwner), nil)
	env.rooms.On("CloseRoom", mock.Anything, room.ID).Return(nil)
	env.bus.On("Publish", mock.Anything, mock.MatchedBy(func(ev models.RoomEvent) bool {
		return ev.Type == models.EventRoomClosed && ev.RoomID == room.ID
	})).Return(nil)

	require.NoError(t, env.svc.CloseRoom(context.Background(), room.OwnerID, room.ID))
	env.bus.AssertExpectations(t)
}

func TestCloseRoomTwiceIsNoop(t *testing.T) {
	env := newRoomEnv(t)
	room := publicRoom()
	room.IsClosed = true

	env.rooms.On("GetRoomByID", mock.Anything, room.ID).Return(room, nil)
	env.members.On("GetMember", mock.Anything, room.ID, room.OwnerID).Return(memberOf(room.ID, room.OwnerID, models.RoleOwner), nil)

	require.NoError(t, env.svc.CloseRoom(context.Background(), room.OwnerID, room.ID))
	env.rooms.AssertNotCalled(t, "CloseRoom", mock.Anything, mock.Anything)
	env.bus.AssertNotCalled(t, "Publish", mock.Anything, mock.Anything)
}

func TestInviteValidatesRole(t *testing.T) {
	env := newRoomEnv(t)

	_, err := env.svc.Invite(context.Background(), uuid.New(), uuid.New(), uuid.New(), "owner")
	require.Equal(t, errs.KindValidation, errs.KindOf(err))
	env.rooms.AssertNotCalled(t, "GetRoomByID", mock.Anything, mock.Anything)
}

func TestInviteRequiresAdmin(t *testing.T) {
	env := newRoomEnv(t)
	room := publicRoom()
	actorID := uuid.New()

	env.rooms.On("GetRoomByID", mock.Anything, room.ID).Return(room, nil)
	env.members.On("GetMember", mock.Anything, room.ID, actorID).Return(memberOf(room.ID, actorID, models.RoleMember), nil)

	_, err := env.svc.Invite(context.Background(), actorID, room.ID, uuid.New(), "")
	require.Equal(t, errs.KindAuthorization, errs.KindOf(err))
}

func TestInviteBypassesRoomPassword(t *testing.T) {
	env := newRoomEnv(t)
	room := env.privateRoom(t, "secret")
	actorID := uuid.New()
	target := storedUser("bob", "bob@example.com")

	env.rooms.On("GetRoomByID", mock.Anything, room.ID).Return(room, nil)
	env.members.On("GetMember", mock.Anything, room.ID, actorID).Return(memberOf(room.ID, actorID, models.RoleAdmin), nil)
	env.users.On("GetUserByID", mock.Anything, target.ID).Return(target, nil)
	env.members.On("AddMember", mock.Anything, room.ID, target.ID, models.RoleMember).Return(memberOf(room.ID, target.ID, models.RoleMember), nil)
	env.bus.On("Publish", mock.Anything, mock.MatchedBy(func(ev models.RoomEvent) bool {
		return ev.Type == models.EventMemberJoined && ev.UserID != nil && *ev.UserID == target.ID
	})).Return(nil)

	got, err := env.svc.Invite(context.Background(), actorID, room.ID, target.ID, "")
	require.NoError(t, err)
	require.Equal(t, models.RoleMember, got.Role)
	env.bus.AssertExpectations(t)
}

func TestInviteExistingMemberConflicts(t *testing.T) {
	env := newRoomEnv(t)
	room := publicRoom()
	actorID, targetID := uuid.New(), uuid.New()

	env.rooms.On("GetRoomByID", mock.Anything, room.ID).Return(room, nil)
	env.members.On("GetMember", mock.Anything, room.ID, actorID).Return(memberOf(room.ID, actorID, models.RoleOwner), nil)
	env.users.On("GetUserByID", mock.Anything, targetID).Return(storedUser("bob", "bob@example.com"), nil)
	env.members.On("AddMember", mock.Anything, room.ID, targetID, models.RoleMember).Return(models.RoomMember{}, repositories.ErrAlreadyMember)

	_, err := env.svc.Invite(context.Background(), actorID, room.ID, targetID, "")
	require.Equal(t, errs.KindConflict, errs.KindOf(err))
	require.Equal(t, errs.CodeMembershipExists, errs.CodeOf(err))
}

func TestKickSelfActsAsLeave(t *testing.T) {
	env := newRoomEnv(t)
	room := publicRoom()
	userID := uuid.New()

	env.rooms.On("GetRoomByID", mock.Anything, room.ID).Return(room, nil)
	env.members.On("GetMember", mock.Anything, room.ID, userID).Return(memberOf(room.ID, userID, models.RoleMember), nil)
	env.members.On("RemoveMember", mock.Anything, room.ID, userID).Return(nil)
	env.bus.On("Publish", mock.Anything, mock.MatchedBy(func(ev models.RoomEvent) bool {
		return ev.Type == models.EventMemberLeft
	})).Return(nil)

	require.NoError(t, env.svc.Kick(context.Background(), userID, room.ID, userID))
	env.members.AssertExpectations(t)
}

func TestKickRequiresStrictlyHigherRole(t *testing.T) {
	env := newRoomEnv(t)
	room := publicRoom()
	actorID, targetID := uuid.New(), uuid.New()

	env.rooms.On("GetRoomByID", mock.Anything, room.ID).Return(room, nil)
	env.members.On("GetMember", mock.Anything, room.ID, actorID).Return(memberOf(room.ID, actorID, models.RoleAdmin), nil)
	env.members.On("GetMember", mock.Anything, room.ID, targetID).Return(memberOf(room.ID, targetID, models.RoleAdmin), nil)

	err := env.svc.Kick(context.Background(), actorID, room.ID, targetID)
	require.Equal(t, errs.KindAuthorization, errs.KindOf(err))
	env.members.AssertNotCalled(t, "RemoveMember", mock.Anything, mock.Anything, mock.Anything)
}

func TestKickByOwnerBroadcasts(t *testing.T) {
	env := newRoomEnv(t)
	room := publicRoom()
	targetID := uuid.New()

	env.rooms.On("GetRoomByID", mock.Anything, room.ID).Return(room, nil)
	env.members.On("GetMember", mock.Anything, room.ID, room.OwnerID).Return(memberOf(room.ID, room.OwnerID, models.RoleOwner), nil)
	env.members.On("GetMember", mock.Anything, room.ID, targetID).Return(memberOf(room.ID, targetID, models.RoleAdmin), nil)
	env.members.On("RemoveMember", mock.Anything, room.ID, targetID).Return(nil)
	env.bus.On("Publish", mock.Anything, mock.MatchedBy(func(ev models.RoomEvent) bool {
		return ev.Type == models.EventMemberLeft && ev.UserID != nil && *ev.UserID == targetID
	})).Return(nil)

	require.NoError(t, env.svc.Kick(context.Background(), room.OwnerID, room.ID, targetID))
	env.bus.AssertExpectations(t)
}

func TestChangeRoleRejectsUnknownRole(t *testing.T) {
	env := newRoomEnv(t)

	err := env.svc.ChangeRole(context.Background(), uuid.New(), uuid.New(), uuid.New(), "king")
	require.Equal(t, errs.KindValidation, errs.KindOf(err))
}

func TestChangeRoleToOwnerTransfersOwnership(t *testing.T) {
	env := newRoomEnv(t)
	room := publicRoom()
	targetID := uuid.New()

	env.rooms.On("GetRoomByID", mock.Anything, room.ID).Return(room, nil)
	env.members.On("GetMember", mock.Anything, room.ID, room.OwnerID).Return(memberOf(room.ID, room.OwnerID, models.RoleOwner), nil)
	env.members.On("TransferOwnership", mock.Anything, room.ID, room.OwnerID, targetID).Return(nil)

	require.NoError(t, env.svc.ChangeRole(context.Background(), room.OwnerID, room.ID, targetID, models.RoleOwner))
	env.members.AssertExpectations(t)
}

func TestOwnershipTransferIsOwnerOnly(t *testing.T) {
	env := newRoomEnv(t)
	room := publicRoom()
	actorID := uuid.New()

	env.rooms.On("GetRoomByID", mock.Anything, room.ID).Return(room, nil)
	env.members.On("GetMember", mock.Anything, room.ID, actorID).Return(memberOf(room.ID, actorID, models.RoleAdmin), nil)

	err := env.svc.ChangeRole(context.Background(), actorID, room.ID, uuid.New(), models.RoleOwner)
	require.Equal(t, errs.KindAuthorization, errs.KindOf(err))
	env.members.AssertNotCalled(t, "TransferOwnership", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
}

func TestOwnershipTransferToSelfIsNoop(t *testing.T) {
	env := newRoomEnv(t)
	room := publicRoom()

	env.rooms.On("GetRoomByID", mock.Anything, room.ID).Return(room, nil)
	env.members.On("GetMember", mock.Anything, room.ID, room.OwnerID).Return(memberOf(room.ID, room.OwnerID, models.RoleOwner), nil)

	require.NoError(t, env.svc.ChangeRole(context.Background(), room.OwnerID, room.ID, room.OwnerID, models.RoleOwner))
	env.members.AssertNotCalled(t, "TransferOwnership", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
}

func TestChangeRoleSameRoleIsNoop(t *testing.T) {
	env := newRoomEnv(t)
	room := publicRoom()
	targetID := uuid.New()

	env.rooms.On("GetRoomByID", mock.Anything, room.ID).Return(room, nil)
	env.members.On("GetMember", mock.Anything, room.ID, room.OwnerID).Return(memberOf(room.ID, room.OwnerID, models.RoleOwner), nil)
	env.members.On("GetMember", mock.Anything, room.ID, targetID).Return(memberOf(room.ID, targetID, models.RoleAdmin), nil)

	require.NoError(t, env.svc.ChangeRole(context.Background(), room.OwnerID, room.ID, targetID, models.RoleAdmin))
	env.members.AssertNotCalled(t, "ChangeRole", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
}

func TestChangeRoleRequiresOutrankingTarget(t *testing.T) {
	env := newRoomEnv(t)
	room := publicRoom()
	actorID, targetID := uuid.New(), uuid.New()

	env.rooms.On("GetRoomByID", mock.Anything, room.ID).Return(room, nil)
	env.members.On("GetMember", mock.Anything, room.ID, actorID).Return(memberOf(room.ID, actorID, models.RoleAdmin), nil)
	env.members.On("GetMember", mock.Anything, room.ID, targetID).Return(memberOf(room.ID, targetID, models.RoleAdmin), nil)

	err := env.svc.ChangeRole(context.Background(), actorID, room.ID, targetID, models.RoleMember)
	require.Equal(t, errs.KindAuthorization, errs.KindOf(err))
}

func TestOnlineMembersResolvesPresence(t *testing.T) {
	env := newRoomEnv(t)
	room := publicRoom()
	callerID := uuid.New()
	online := storedUser("frank", "frank@example.com")

	env.rooms.On("GetRoomByID", mock.Anything, room.ID).Return(room, nil)
	env.members.On("GetMember", mock.Anything, room.ID, callerID).Return(memberOf(room.ID, callerID, models.RoleMember), nil)
	env.tracker.On("Members", mock.Anything, room.ID).Return([]uuid.UUID{online.ID}, nil)
	env.users.On("GetUsersByIDs", mock.Anything, []uuid.UUID{online.ID}).Return([]models.User{online}, nil)

	users, err := env.svc.OnlineMembers(context.Background(), callerID, room.ID)
	require.NoError(t, err)
	require.Len(t, users, 1)
	require.Equal(t, "frank", users[0].Username)
}

func TestOnlineMembersEmptyPresence(t *testing.T) {
	env := newRoomEnv(t)
	room := publicRoom()
	callerID := uuid.New()

	env.rooms.On("GetRoomByID", mock.Anything, room.ID).Return(room, nil)
	env.members.On("GetMember", mock.Anything, room.ID, callerID).Return(memberOf(room.ID, callerID, models.RoleMember), nil)
	env.tracker.On("Members", mock.Anything, room.ID).Return([]uuid.UUID{}, nil)

	users, err := env.svc.OnlineMembers(context.Background(), callerID, room.ID)
	require.NoError(t, err)
	require.NotNil(t, users)
	require.Empty(t, users)
	env.users.AssertNotCalled(t, "GetUsersByIDs", mock.Anything, mock.Anything)
}

func TestOnlineMembersPresenceDownIsUnavailable(t *testing.T) {
	env := newRoomEnv(t)
	room := publicRoom()
	callerID := uuid.New()

	env.rooms.On("GetRoomByID", mock.Anything, room.ID).Return(room, nil)
	env.members.On("GetMember", mock.Anything, room.ID, callerID).Return(memberOf(room.ID, callerID, models.RoleMember), nil)
	env.tracker.On("Members", mock.Anything, room.ID).Return(nil, context.DeadlineExceeded)

	_, err := env.svc.OnlineMembers(context.Background(), callerID, room.ID)
	require.Equal(t, errs.KindUnavailable, errs.KindOf(err))
}
