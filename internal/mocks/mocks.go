// Package mocks holds testify mocks shared by the handler, service and ws
// tests.
package mocks

import (
	"context"

	"github.com/google/uuid"
	"github.com/stretchr/testify/mock"

	"chat-backend/internal/auth"
	"chat-backend/internal/models"
	"chat-backend/internal/service"
)

type UserRepositoryMock struct {
	mock.Mock
}

func (m *UserRepositoryMock) CreateUser(ctx context.Context, user models.User) (models.User, error) {
	args := m.Called(ctx, user)
	var out models.User
	if val := args.Get(0); val != nil {
		out = val.(models.User)
	}
	return out, args.Error(1)
}

func (m *UserRepositoryMock) GetUserByID(ctx context.Context, id uuid.UUID) (models.User, error) {
	args := m.Called(ctx, id)
	var out models.User
	if val := args.Get(0); val != nil {
		out = val.(models.User)
	}
	return out, args.Error(1)
}

func (m *UserRepositoryMock) GetUserByUsername(ctx context.Context, username string) (models.User, error) {
	args := m.Called(ctx, username)
	var out models.User
	if val := args.Get(0); val != nil {
		out = val.(models.User)
	}
	return out, args.Error(1)
}

func (m *UserRepositoryMock) GetUserByEmail(ctx context.Context, email string) (models.User, error) {
	args := m.Called(ctx, email)
	var out models.User
	if val := args.Get(0); val != nil {
		out = val.(models.User)
	}
	return out, args.Error(1)
}

func (m *UserRepositoryMock) GetUsersByIDs(ctx context.Context, ids []uuid.UUID) ([]models.User, error) {
	args := m.Called(ctx, ids)
	var out []models.User
	if val := args.Get(0); val != nil {
		out = val.([]models.User)
	}
	return out, args.Error(1)
}

func (m *UserRepositoryMock) UpdateProfile(ctx context.Context, id uuid.UUID, username, email *string) (models.User, error) {
	args := m.Called(ctx, id, username, email)
	var out models.User
	if val := args.Get(0); val != nil {
		out = val.(models.User)
	}
	return out, args.Error(1)
}

func (m *UserRepositoryMock) SetStatus(ctx context.Context, id uuid.UUID, status string) error {
	args := m.Called(ctx, id, status)
	return args.Error(0)
}

func (m *UserRepositoryMock) SearchUsers(ctx context.Context, query string, limit, offset int) ([]models.User, error) {
	args := m.Called(ctx, query, limit, offset)
	var out []models.User
	if val := args.Get(0); val != nil {
		out = val.([]models.User)
	}
	return out, args.Error(1)
}

type RoomRepositoryMock struct {
	mock.Mock
}

func (m *RoomRepositoryMock) CreateRoom(ctx context.Context, room models.ChatRoom) (models.ChatRoom, error) {
	args := m.Called(ctx, room)
	var out models.ChatRoom
	if val := args.Get(0); val != nil {
		out = val.(models.ChatRoom)
	}
	return out, args.Error(1)
}

func (m *RoomRepositoryMock) GetRoomByID(ctx context.Context, id uuid.UUID) (models.ChatRoom, error) {
	args := m.Called(ctx, id)
	var out models.ChatRoom
	if val := args.Get(0); val != nil {
		out = val.(models.ChatRoom)
	}
	return out, args.Error(1)
}

func (m *RoomRepositoryMock) GetRoomByName(ctx context.Context, name string) (models.ChatRoom, error) {
	args := m.Called(ctx, name)
	var out models.ChatRoom
	if val := args.Get(0); val != nil {
		out = val.(models.ChatRoom)
	}
	return out, args.Error(1)
}

func (m *RoomRepositoryMock) UpdateRoom(ctx context.Context, room models.ChatRoom) (models.ChatRoom, error) {
	args := m.Called(ctx, room)
	var out models.ChatRoom
	if val := args.Get(0); val != nil {
		out = val.(models.ChatRoom)
	}
	return out, args.Error(1)
}

func (m *RoomRepositoryMock) CloseRoom(ctx context.Context, id uuid.UUID) error {
	args := m.Called(ctx, id)
	return args.Error(0)
}

func (m *RoomRepositoryMock) ListRoomsForUser(ctx context.Context, userID uuid.UUID, limit, offset int) ([]models.RoomSummary, error) {
	args := m.Called(ctx, userID, limit, offset)
	var out []models.RoomSummary
	if val := args.Get(0); val != nil {
		out = val.([]models.RoomSummary)
	}
	return out, args.Error(1)
}

type MemberRepositoryMock struct {
	mock.Mock
}

func (m *MemberRepositoryMock) AddMember(ctx context.Context, roomID, userID uuid.UUID, role string) (models.RoomMember, error) {
	args := m.Called(ctx, roomID, userID, role)
	var out models.RoomMember
	if val := args.Get(0); val != nil {
		out = val.(models.RoomMember)
	}
	return out, args.Error(1)
}

func (m *MemberRepositoryMock) RemoveMember(ctx context.Context, roomID, userID uuid.UUID) error {
	args := m.Called(ctx, roomID, userID)
	return args.Error(0)
}

func (m *MemberRepositoryMock) GetMember(ctx context.Context, roomID, userID uuid.UUID) (models.RoomMember, error) {
	args := m.Called(ctx, roomID, userID)
	var out models.RoomMember
	if val := args.Get(0); val != nil {
		out = val.(models.RoomMember)
	}
	return out, args.Error(1)
}

func (m *MemberRepositoryMock) ListMembers(ctx context.Context, roomID uuid.UUID) ([]models.MemberInfo, error) {
	args := m.Called(ctx, roomID)
	var out []models.MemberInfo
	if val := args.Get(0); val != nil {
		out = val.([]models.MemberInfo)
	}
	return out, args.Error(1)
}

func (m *MemberRepositoryMock) CountMembers(ctx context.Context, roomID uuid.UUID) (int, error) {
	args := m.Called(ctx, roomID)
	return args.Int(0), args.Error(1)
}

func (m *MemberRepositoryMock) ChangeRole(ctx context.Context, roomID, userID uuid.UUID, role string) error {
	args := m.Called(ctx, roomID, userID, role)
	return args.Error(0)
}

func (m *MemberRepositoryMock) TransferOwnership(ctx context.Context, roomID, fromUserID, toUserID uuid.UUID) error {
	args := m.Called(ctx, roomID, fromUserID, toUserID)
	return args.Error(0)
}

func (m *MemberRepositoryMock) SetLastRead(ctx context.Context, roomID, userID, messageID uuid.UUID) error {
	args := m.Called(ctx, roomID, userID, messageID)
	return args.Error(0)
}

type MessageRepositoryMock struct {
	mock.Mock
}

func (m *MessageRepositoryMock) AppendMessage(ctx context.Context, msg models.Message) (models.Message, error) {
	args := m.Called(ctx, msg)
	var out models.Message
	if val := args.Get(0); val != nil {
		out = val.(models.Message)
	}
	return out, args.Error(1)
}

func (m *MessageRepositoryMock) GetMessageByID(ctx context.Context, id uuid.UUID) (models.Message, error) {
	args := m.Called(ctx, id)
	var out models.Message
	if val := args.Get(0); val != nil {
		out = val.(models.Message)
	}
	return out, args.Error(1)
}

func (m *MessageRepositoryMock) History(ctx context.Context, roomID uuid.UUID, before *models.HistoryCursor, limit int) ([]models.Message, error) {
	args := m.Called(ctx, roomID, before, limit)
	var out []models.Message
	if val := args.Get(0); val != nil {
		out = val.([]models.Message)
	}
	return out, args.Error(1)
}

func (m *MessageRepositoryMock) MarkDeleted(ctx context.Context, messageID uuid.UUID) error {
	args := m.Called(ctx, messageID)
	return args.Error(0)
}

func (m *MessageRepositoryMock) EditMessage(ctx context.Context, messageID uuid.UUID, content string) (models.Message, error) {
	args := m.Called(ctx, messageID, content)
	var out models.Message
	if val := args.Get(0); val != nil {
		out = val.(models.Message)
	}
	return out, args.Error(1)
}

type BusMock struct {
	mock.Mock
}

func (m *BusMock) Publish(ctx context.Context, event models.RoomEvent) error {
	args := m.Called(ctx, event)
	return args.Error(0)
}

func (m *BusMock) Subscribe(ctx context.Context, roomID uuid.UUID) error {
	args := m.Called(ctx, roomID)
	return args.Error(0)
}

func (m *BusMock) Unsubscribe(ctx context.Context, roomID uuid.UUID) error {
	args := m.Called(ctx, roomID)
	return args.Error(0)
}

type TrackerMock struct {
	mock.Mock
}

func (m *TrackerMock) Add(ctx context.Context, roomID, userID uuid.UUID) error {
	args := m.Called(ctx, roomID, userID)
	return args.Error(0)
}

func (m *TrackerMock) Refresh(ctx context.Context, roomID, userID uuid.UUID) error {
	args := m.Called(ctx, roomID, userID)
	return args.Error(0)
}

func (m *TrackerMock) Remove(ctx context.Context, roomID, userID uuid.UUID) error {
	args := m.Called(ctx, roomID, userID)
	return args.Error(0)
}

func (m *TrackerMock) Members(ctx context.Context, roomID uuid.UUID) ([]uuid.UUID, error) {
	args := m.Called(ctx, roomID)
	var out []uuid.UUID
	if val := args.Get(0); val != nil {
		out = val.([]uuid.UUID)
	}
	return out, args.Error(1)
}

type UserServiceMock struct {
	mock.Mock
}

func (m *UserServiceMock) Register(ctx context.Context, username, email, password string) (models.User, auth.TokenPair, error) {
	args := m.Called(ctx, username, email, password)
	var user models.User
	if val := args.Get(0); val != nil {
		user = val.(models.User)
	}
	var pair auth.TokenPair
	if val := args.Get(1); val != nil {
		pair = val.(auth.TokenPair)
	}
	return user, pair, args.Error(2)
}

func (m *UserServiceMock) Login(ctx context.Context, email, password string) (models.User, auth.TokenPair, error) {
	args := m.Called(ctx, email, password)
	var user models.User
	if val := args.Get(0); val != nil {
		user = val.(models.User)
	}
	var pair auth.TokenPair
	if val := args.Get(1); val != nil {
		pair = val.(auth.TokenPair)
	}
	return user, pair, args.Error(2)
}

func (m *UserServiceMock) Refresh(ctx context.Context, refreshToken string) (auth.TokenPair, error) {
	args := m.Called(ctx, refreshToken)
	var pair auth.TokenPair
	if val := args.Get(0); val != nil {
		pair = val.(auth.TokenPair)
	}
	return pair, args.Error(1)
}

func (m *UserServiceMock) GetUser(ctx context.Context, id uuid.UUID) (models.User, error) {
	args := m.Called(ctx, id)
	var out models.User
	if val := args.Get(0); val != nil {
		out = val.(models.User)
	}
	return out, args.Error(1)
}

func (m *UserServiceMock) UpdateProfile(ctx context.Context, id uuid.UUID, username, email *string) (models.User, error) {
	args := m.Called(ctx, id, username, email)
	var out models.User
	if val := args.Get(0); val != nil {
		out = val.(models.User)
	}
	return out, args.Error(1)
}

func (m *UserServiceMock) SearchUsers(ctx context.Context, query string, limit, offset int) ([]models.User, error) {
	args := m.Called(ctx, query, limit, offset)
	var out []models.User
	if val := args.Get(0); val != nil {
		out = val.([]models.User)
	}
	return out, args.Error(1)
}

func (m *UserServiceMock) SetStatus(ctx context.Context, id uuid.UUID, status string) error {
	args := m.Called(ctx, id, status)
	return args.Error(0)
}

type RoomServiceMock struct {
	mock.Mock
}

func (m *RoomServiceMock) CreateRoom(ctx context.Context, ownerID uuid.UUID, name string, isPrivate bool, password string) (models.ChatRoom, error) {
	args := m.Called(ctx, ownerID, name, isPrivate, password)
	var out models.ChatRoom
	if val := args.Get(0); val != nil {
		out = val.(models.ChatRoom)
	}
	return out, args.Error(1)
}

func (m *RoomServiceMock) GetRoom(ctx context.Context, userID, roomID uuid.UUID) (models.ChatRoom, error) {
	args := m.Called(ctx, userID, roomID)
	var out models.ChatRoom
	if val := args.Get(0); val != nil {
		out = val.(models.ChatRoom)
	}
	return out, args.Error(1)
}

func (m *RoomServiceMock) ListRooms(ctx context.Context, userID uuid.UUID, limit, offset int) ([]models.RoomSummary, error) {
	args := m.Called(ctx, userID, limit, offset)
	var out []models.RoomSummary
	if val := args.Get(0); val != nil {
		out = val.([]models.RoomSummary)
	}
	return out, args.Error(1)
}

func (m *RoomServiceMock) UpdateRoom(ctx context.Context, actorID, roomID uuid.UUID, patch service.RoomPatch) (models.ChatRoom, error) {
	args := m.Called(ctx, actorID, roomID, patch)
	var out models.ChatRoom
	if val := args.Get(0); val != nil {
		out = val.(models.ChatRoom)
	}
	return out, args.Error(1)
}

func (m *RoomServiceMock) CloseRoom(ctx context.Context, actorID, roomID uuid.UUID) error {
	args := m.Called(ctx, actorID, roomID)
	return args.Error(0)
}

func (m *RoomServiceMock) Join(ctx context.Context, userID, roomID uuid.UUID, password string) (bool, error) {
	args := m.Called(ctx, userID, roomID, password)
	return args.Bool(0), args.Error(1)
}

func (m *RoomServiceMock) Leave(ctx context.Context, userID, roomID uuid.UUID) error {
	args := m.Called(ctx, userID, roomID)
	return args.Error(0)
}

func (m *RoomServiceMock) Members(ctx context.Context, userID, roomID uuid.UUID) ([]models.MemberInfo, error) {
	args := m.Called(ctx, userID, roomID)
	var out []models.MemberInfo
	if val := args.Get(0); val != nil {
		out = val.([]models.MemberInfo)
	}
	return out, args.Error(1)
}

func (m *RoomServiceMock) OnlineMembers(ctx context.Context, userID, roomID uuid.UUID) ([]models.User, error) {
	args := m.Called(ctx, userID, roomID)
	var out []models.User
	if val := args.Get(0); val != nil {
		out = val.([]models.User)
	}
	return out, args.Error(1)
}

func (m *RoomServiceMock) MemberCount(ctx context.Context, roomID uuid.UUID) (int, error) {
	args := m.Called(ctx, roomID)
	return args.Int(0), args.Error(1)
}

func (m *RoomServiceMock) Invite(ctx context.Context, actorID, roomID, targetID uuid.UUID, role string) (models.RoomMember, error) {
	args := m.Called(ctx, actorID, roomID, targetID, role)
	var out models.RoomMember
	if val := args.Get(0); val != nil {
		out = val.(models.RoomMember)
	}
	return out, args.Error(1)
}

func (m *RoomServiceMock) Kick(ctx context.Context, actorID, roomID, targetID uuid.UUID) error {
	args := m.Called(ctx, actorID, roomID, targetID)
	return args.Error(0)
}

func (m *RoomServiceMock) ChangeRole(ctx context.Context, actorID, roomID, targetID uuid.UUID, role string) error {
	args := m.Called(ctx, actorID, roomID, targetID, role)
	return args.Error(0)
}

type MessageServiceMock struct {
	mock.Mock
}

func (m *MessageServiceMock) Send(ctx context.Context, authorID, roomID uuid.UUID, content, kind string, replyTo *uuid.UUID, idempotencyKey string) (models.Message, error) {
	args := m.Called(ctx, authorID, roomID, content, kind, replyTo, idempotencyKey)
	var out models.Message
	if val := args.Get(0); val != nil {
		out = val.(models.Message)
	}
	return out, args.Error(1)
}

func (m *MessageServiceMock) History(ctx context.Context, userID, roomID uuid.UUID, before *models.HistoryCursor, limit int) ([]models.Message, error) {
	args := m.Called(ctx, userID, roomID, before, limit)
	var out []models.Message
	if val := args.Get(0); val != nil {
		out = val.([]models.Message)
	}
	return out, args.Error(1)
}

func (m *MessageServiceMock) GetMessage(ctx context.Context, userID, messageID uuid.UUID) (models.Message, error) {
	args := m.Called(ctx, userID, messageID)
	var out models.Message
	if val := args.Get(0); val != nil {
		out = val.(models.Message)
	}
	return out, args.Error(1)
}

func (m *MessageServiceMock) EditMessage(ctx context.Context, actorID, messageID uuid.UUID, content string) (models.Message, error) {
	args := m.Called(ctx, actorID, messageID, content)
	var out models.Message
	if val := args.Get(0); val != nil {
		out = val.(models.Message)
	}
	return out, args.Error(1)
}

func (m *MessageServiceMock) DeleteMessage(ctx context.Context, actorID, messageID uuid.UUID) error {
	args := m.Called(ctx, actorID, messageID)
	return args.Error(0)
}

func (m *MessageServiceMock) MarkRead(ctx context.Context, userID, roomID, messageID uuid.UUID) error {
	args := m.Called(ctx, userID, roomID, messageID)
	return args.Error(0)
}
