package repositories

import (
	"context"
	"regexp"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/google/uuid"
	"github.com/lib/pq"
	"github.com/stretchr/testify/require"

	"chat-backend/internal/models"
)

func roomRows(room models.ChatRoom) *sqlmock.Rows {
	return sqlmock.NewRows([]string{"id", "name", "owner_id", "is_private", "password_hash", "is_closed", "created_at", "updated_at"}).
		AddRow(room.ID, room.Name, room.OwnerID, room.IsPrivate, room.PasswordHash, room.IsClosed, room.CreatedAt, room.UpdatedAt)
}

func sampleRoom() models.ChatRoom {
	now := time.Date(2026, 2, 1, 10, 0, 0, 0, time.UTC)
	return models.ChatRoom{
		ID:        uuid.New(),
		Name:      "general",
		OwnerID:   uuid.New(),
		CreatedAt: now,
		UpdatedAt: now,
	}
}

func TestCreateRoomInsertsOwnerMembership(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewRoomRepo(db)
	want := sampleRoom()

	mock.ExpectBegin()
	mock.ExpectQuery(regexp.QuoteMeta("INSERT INTO chat_rooms")).
		WithArgs(want.ID, want.Name, want.OwnerID, want.IsPrivate, nil).
		WillReturnRows(roomRows(want))
	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO room_members")).
		WithArgs(want.ID, want.OwnerID, models.RoleOwner).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	got, err := repo.CreateRoom(context.Background(), want)
	require.NoError(t, err)
	require.Equal(t, want.ID, got.ID)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestCreateRoomDuplicateName(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewRoomRepo(db)
	room := sampleRoom()

	mock.ExpectBegin()
	mock.ExpectQuery(regexp.QuoteMeta("INSERT INTO chat_rooms")).
		WillReturnError(&pq.Error{Code: "23505", Constraint: "chat_rooms_name_key"})
	mock.ExpectRollback()

	_, err := repo.CreateRoom(context.Background(), room)
	require.ErrorIs(t, err, ErrRoomNameTaken)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestGetRoomByIDNotFound(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewRoomRepo(db)
	id := uuid.New()

	mock.ExpectQuery(regexp.QuoteMeta("FROM chat_rooms WHERE id=$1")).
		WithArgs(id).
		WillReturnRows(sqlmock.NewRows([]string{"id"}))

	_, err := repo.GetRoomByID(context.Background(), id)
	require.ErrorIs(t, err, ErrRoomNotFound)
}

func TestCloseRoomMissing(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewRoomRepo(db)
	id := uuid.New()

	mock.ExpectExec(regexp.QuoteMeta("UPDATE chat_rooms SET is_closed=TRUE")).
		WithArgs(id).
		WillReturnResult(sqlmock.NewResult(0, 0))

	err := repo.CloseRoom(context.Background(), id)
	require.ErrorIs(t, err, ErrRoomNotFound)
}

func TestListRoomsForUserCarriesRole(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewRoomRepo(db)
	userID := uuid.New()
	room := sampleRoom()

	rows := sqlmock.NewRows([]string{"id", "name", "owner_id", "is_private", "password_hash", "is_closed", "created_at", "updated_at", "role"}).
		AddRow(room.ID, room.Name, room.OwnerID, room.IsPrivate, nil, false, room.CreatedAt, room.UpdatedAt, models.RoleAdmin)
	mock.ExpectQuery(regexp.QuoteMeta("JOIN room_members m ON m.room_id = r.id")).
		WithArgs(userID, 50, 0).
		WillReturnRows(rows)

	summaries, err := repo.ListRoomsForUser(context.Background(), userID, 50, 0)
	require.NoError(t, err)
	require.Len(t, summaries, 1)
	require.Equal(t, models.RoleAdmin, summaries[0].Role)
	require.Equal(t, room.Name, summaries[0].Name)
	require.NoError(t, mock.ExpectationsWereMet())
}
