package repositories

import (
	"context"
	"regexp"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
	"github.com/stretchr/testify/require"

	"chat-backend/internal/models"
)

func newMockDB(t *testing.T) (*sqlx.DB, sqlmock.Sqlmock) {
	t.Helper()
	raw, mock, err := sqlmock.New()
	require.NoError(t, err)
	db := sqlx.NewDb(raw, "postgres")
	t.Cleanup(func() { db.Close() })
	return db, mock
}

func userRows(u models.User) *sqlmock.Rows {
	return sqlmock.NewRows([]string{"id", "username", "email", "password_hash", "status", "created_at", "updated_at"}).
		AddRow(u.ID, u.Username, u.Email, u.PasswordHash, u.Status, u.CreatedAt, u.UpdatedAt)
}

func sampleUser() models.User {
	now := time.Date(2026, 2, 1, 10, 0, 0, 0, time.UTC)
	return models.User{
		ID:           uuid.New(),
		Username:     "alice",
		Email:        "alice@example.com",
		PasswordHash: "$2a$12$hash",
		Status:       models.UserStatusActive,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
}

func TestCreateUserReturnsStoredRow(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewUserRepo(db)
	want := sampleUser()

	mock.ExpectQuery(regexp.QuoteMeta("INSERT INTO users")).
		WithArgs(want.ID, want.Username, want.Email, want.PasswordHash).
		WillReturnRows(userRows(want))

	got, err := repo.CreateUser(context.Background(), want)
	require.NoError(t, err)
	require.Equal(t, want.ID, got.ID)
	require.Equal(t, models.UserStatusActive, got.Status)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestCreateUserMapsUniqueViolations(t *testing.T) {
	cases := []struct {
		constraint string
		want       error
	}{
		{"users_username_key", ErrUsernameTaken},
		{"users_email_key", ErrEmailTaken},
	}
	for _, tc := range cases {
		db, mock := newMockDB(t)
		repo := NewUserRepo(db)
		user := sampleUser()

		mock.ExpectQuery(regexp.QuoteMeta("INSERT INTO users")).
			WillReturnError(&pq.Error{Code: "23505", Constraint: tc.constraint})

		_, err := repo.CreateUser(context.Background(), user)
		require.ErrorIs(t, err, tc.want)
		require.NoError(t, mock.ExpectationsWereMet())
	}
}

func TestGetUserByIDNotFound(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewUserRepo(db)
	id := uuid.New()

	mock.ExpectQuery(regexp.QuoteMeta("FROM users WHERE id=$1")).
		WithArgs(id).
		WillReturnRows(sqlmock.NewRows([]string{"id"}))

	_, err := repo.GetUserByID(context.Background(), id)
	require.ErrorIs(t, err, ErrUserNotFound)
}

func TestUpdateProfilePassesNilForUntouchedFields(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewUserRepo(db)
	want := sampleUser()
	want.Username = "alice2"
	name := "alice2"

	mock.ExpectQuery(regexp.QuoteMeta("UPDATE users SET")).
		WithArgs(want.ID, name, nil).
		WillReturnRows(userRows(want))

	got, err := repo.UpdateProfile(context.Background(), want.ID, &name, nil)
	require.NoError(t, err)
	require.Equal(t, "alice2", got.Username)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestSetStatusMissingUser(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewUserRepo(db)
	id := uuid.New()

	mock.ExpectExec(regexp.QuoteMeta("UPDATE users SET status=$2")).
		WithArgs(id, models.UserStatusSuspended).
		WillReturnResult(sqlmock.NewResult(0, 0))

	err := repo.SetStatus(context.Background(), id, models.UserStatusSuspended)
	require.ErrorIs(t, err, ErrUserNotFound)
}

func TestSearchUsersEscapesLikeMetacharacters(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewUserRepo(db)

	mock.ExpectQuery(regexp.QuoteMeta("WHERE username ILIKE $1 OR email ILIKE $1")).
		WithArgs(`%50\%\_off%`, 20, 0).
		WillReturnRows(userRows(sampleUser()))

	users, err := repo.SearchUsers(context.Background(), "50%_off", 20, 0)
	require.NoError(t, err)
	require.Len(t, users, 1)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestGetUsersByIDsEmptyInput(t *testing.T) {
	db, _ := newMockDB(t)
	repo := NewUserRepo(db)

	users, err := repo.GetUsersByIDs(context.Background(), nil)
	require.NoError(t, err)
	require.Nil(t, users)
}
