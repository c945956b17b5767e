package repositories

import (
	"context"
	"database/sql"
	"errors"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"chat-backend/internal/models"
)

var (
	ErrRoomNotFound  = errors.New("room not found")
	ErrRoomNameTaken = errors.New("room name already taken")
)

const roomColumns = `id, name, owner_id, is_private, password_hash, is_closed, created_at, updated_at`

// RoomRepository abstracts chat room persistence.
type RoomRepository interface {
	CreateRoom(ctx context.Context, room models.ChatRoom) (models.ChatRoom, error)
	GetRoomByID(ctx context.Context, id uuid.UUID) (models.ChatRoom, error)
	GetRoomByName(ctx context.Context, name string) (models.ChatRoom, error)
	UpdateRoom(ctx context.Context, room models.ChatRoom) (models.ChatRoom, error)
	CloseRoom(ctx context.Context, id uuid.UUID) error
	ListRoomsForUser(ctx context.Context, userID uuid.UUID, limit, offset int) ([]models.RoomSummary, error)
}

// RoomRepo is a sqlx implementation of RoomRepository.
type RoomRepo struct {
	db *sqlx.DB
}

// NewRoomRepo constructs a RoomRepo.
func NewRoomRepo(db *sqlx.DB) *RoomRepo {
	return &RoomRepo{db: db}
}

// CreateRoom atomically inserts the room and the owner membership.
func (r *RoomRepo) CreateRoom(ctx context.Context, room models.ChatRoom) (models.ChatRoom, error) {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return models.ChatRoom{}, err
	}
	defer tx.Rollback()

	var created models.ChatRoom
	query := `INSERT INTO chat_rooms (id, name, owner_id, is_private, password_hash)
        VALUES ($1, $2, $3, $4, $5)
        RETURNING ` + roomColumns
	if err := tx.QueryRowxContext(ctx, query, room.ID, room.Name, room.OwnerID, room.IsPrivate, room.PasswordHash).StructScan(&created); err != nil {
		if constraint, ok := uniqueViolation(err); ok && constraint == "chat_rooms_name_key" {
			return models.ChatRoom{}, ErrRoomNameTaken
		}
		return models.ChatRoom{}, err
	}

	if _, err := tx.ExecContext(ctx,
		`INSERT INTO room_members (room_id, user_id, role) VALUES ($1, $2, $3)`,
		created.ID, room.OwnerID, models.RoleOwner); err != nil {
		return models.ChatRoom{}, err
	}

	if err := tx.Commit(); err != nil {
		return models.ChatRoom{}, err
	}
	return created, nil
}

// GetRoomByID fetches a room by id, closed rooms included.
func (r *RoomRepo) GetRoomByID(ctx context.Context, id uuid.UUID) (models.ChatRoom, error) {
	var room models.ChatRoom
	err := r.db.GetContext(ctx, &room, `SELECT `+roomColumns+` FROM chat_rooms WHERE id=$1`, id)
	if errors.Is(err, sql.ErrNoRows) {
		return models.ChatRoom{}, ErrRoomNotFound
	}
	return room, err
}

// GetRoomByName fetches a room by its unique name.
func (r *RoomRepo) GetRoomByName(ctx context.Context, name string) (models.ChatRoom, error) {
	var room models.ChatRoom
	err := r.db.GetContext(ctx, &room, `SELECT `+roomColumns+` FROM chat_rooms WHERE name=$1`, name)
	if errors.Is(err, sql.ErrNoRows) {
		return models.ChatRoom{}, ErrRoomNotFound
	}
	return room, err
}

// UpdateRoom writes the mutable room fields and returns the stored row.
func (r *RoomRepo) UpdateRoom(ctx context.Context, room models.ChatRoom) (models.ChatRoom, error) {
	query := `UPDATE chat_rooms SET
            name = $2,
            is_private = $3,
            password_hash = $4,
            updated_at = NOW()
        WHERE id = $1
        RETURNING ` + roomColumns
	var updated models.ChatRoom
	err := r.db.QueryRowxContext(ctx, query, room.ID, room.Name, room.IsPrivate, room.PasswordHash).StructScan(&updated)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return models.ChatRoom{}, ErrRoomNotFound
		}
		if constraint, ok := uniqueViolation(err); ok && constraint == "chat_rooms_name_key" {
			return models.ChatRoom{}, ErrRoomNameTaken
		}
		return models.ChatRoom{}, err
	}
	return updated, nil
}

// CloseRoom marks a room terminal. Closing an already closed room is a no-op.
func (r *RoomRepo) CloseRoom(ctx context.Context, id uuid.UUID) error {
	res, err := r.db.ExecContext(ctx, `UPDATE chat_rooms SET is_closed=TRUE, updated_at=NOW() WHERE id=$1`, id)
	if err != nil {
		return err
	}
	count, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if count == 0 {
		return ErrRoomNotFound
	}
	return nil
}

// ListRoomsForUser returns the open rooms the user belongs to, newest first,
// with the user's role on each row.
func (r *RoomRepo) ListRoomsForUser(ctx context.Context, userID uuid.UUID, limit, offset int) ([]models.RoomSummary, error) {
	query := `SELECT r.id, r.name, r.owner_id, r.is_private, r.password_hash, r.is_closed, r.created_at, r.updated_at, m.role
        FROM chat_rooms r
        JOIN room_members m ON m.room_id = r.id
        WHERE m.user_id = $1 AND r.is_closed = FALSE
        ORDER BY r.created_at DESC
        LIMIT $2 OFFSET $3`
	var rooms []models.RoomSummary
	err := r.db.SelectContext(ctx, &rooms, query, userID, limit, offset)
	return rooms, err
}
