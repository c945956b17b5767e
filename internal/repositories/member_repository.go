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
	ErrMemberNotFound = errors.New("member not found")
	ErrAlreadyMember  = errors.New("already a member")
)

// MemberRepository abstracts room membership persistence.
type MemberRepository interface {
	AddMember(ctx context.Context, roomID, userID uuid.UUID, role string) (models.RoomMember, error)
	RemoveMember(ctx context.Context, roomID, userID uuid.UUID) error
	GetMember(ctx context.Context, roomID, userID uuid.UUID) (models.RoomMember, error)
	ListMembers(ctx context.Context, roomID uuid.UUID) ([]models.MemberInfo, error)
	CountMembers(ctx context.Context, roomID uuid.UUID) (int, error)
	ChangeRole(ctx context.Context, roomID, userID uuid.UUID, role string) error
	TransferOwnership(ctx context.Context, roomID, fromUserID, toUserID uuid.UUID) error
	SetLastRead(ctx context.Context, roomID, userID, messageID uuid.UUID) error
}

// MemberRepo is a sqlx implementation of MemberRepository.
type MemberRepo struct {
	db *sqlx.DB
}

// NewMemberRepo constructs a MemberRepo.
func NewMemberRepo(db *sqlx.DB) *MemberRepo {
	return &MemberRepo{db: db}
}

const memberColumns = `room_id, user_id, role, joined_at, last_read_message_id`

// AddMember inserts a membership row and returns it.
func (r *MemberRepo) AddMember(ctx context.Context, roomID, userID uuid.UUID, role string) (models.RoomMember, error) {
	query := `INSERT INTO room_members (room_id, user_id, role)
        VALUES ($1, $2, $3)
        RETURNING ` + memberColumns
	var member models.RoomMember
	err := r.db.QueryRowxContext(ctx, query, roomID, userID, role).StructScan(&member)
	if err != nil {
		if _, ok := uniqueViolation(err); ok {
			return models.RoomMember{}, ErrAlreadyMember
		}
		if foreignKeyViolation(err) {
			return models.RoomMember{}, ErrRoomNotFound
		}
		return models.RoomMember{}, err
	}
	return member, nil
}

// RemoveMember deletes a membership row.
func (r *MemberRepo) RemoveMember(ctx context.Context, roomID, userID uuid.UUID) error {
	res, err := r.db.ExecContext(ctx,
		`DELETE FROM room_members WHERE room_id=$1 AND user_id=$2`, roomID, userID)
	if err != nil {
		return err
	}
	count, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if count == 0 {
		return ErrMemberNotFound
	}
	return nil
}

// GetMember fetches one membership row.
func (r *MemberRepo) GetMember(ctx context.Context, roomID, userID uuid.UUID) (models.RoomMember, error) {
	var member models.RoomMember
	err := r.db.GetContext(ctx, &member,
		`SELECT `+memberColumns+` FROM room_members WHERE room_id=$1 AND user_id=$2`, roomID, userID)
	if errors.Is(err, sql.ErrNoRows) {
		return models.RoomMember{}, ErrMemberNotFound
	}
	return member, err
}

// ListMembers returns the room's members hydrated with usernames, owner first,
// then admins, then members, each group oldest join first.
func (r *MemberRepo) ListMembers(ctx context.Context, roomID uuid.UUID) ([]models.MemberInfo, error) {
	query := `SELECT m.user_id, u.username, m.role, m.joined_at
        FROM room_members m
        JOIN users u ON u.id = m.user_id
        WHERE m.room_id = $1
        ORDER BY CASE m.role WHEN 'owner' THEN 0 WHEN 'admin' THEN 1 ELSE 2 END, m.joined_at`
	var members []models.MemberInfo
	err := r.db.SelectContext(ctx, &members, query, roomID)
	return members, err
}

// CountMembers returns the size of the room's member list.
func (r *MemberRepo) CountMembers(ctx context.Context, roomID uuid.UUID) (int, error) {
	var count int
	err := r.db.GetContext(ctx, &count,
		`SELECT COUNT(*) FROM room_members WHERE room_id=$1`, roomID)
	return count, err
}

// ChangeRole rewrites a member's role.
func (r *MemberRepo) ChangeRole(ctx context.Context, roomID, userID uuid.UUID, role string) error {
	res, err := r.db.ExecContext(ctx,
		`UPDATE room_members SET role=$3 WHERE room_id=$1 AND user_id=$2`, roomID, userID, role)
	if err != nil {
		return err
	}
	count, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if count == 0 {
		return ErrMemberNotFound
	}
	return nil
}

// TransferOwnership atomically demotes the current owner to admin, promotes
// the target to owner and repoints chat_rooms.owner_id.
func (r *MemberRepo) TransferOwnership(ctx context.Context, roomID, fromUserID, toUserID uuid.UUID) error {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	res, err := tx.ExecContext(ctx,
		`UPDATE room_members SET role=$3 WHERE room_id=$1 AND user_id=$2`,
		roomID, toUserID, models.RoleOwner)
	if err != nil {
		return err
	}
	promoted, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if promoted == 0 {
		return ErrMemberNotFound
	}

	if _, err := tx.ExecContext(ctx,
		`UPDATE room_members SET role=$3 WHERE room_id=$1 AND user_id=$2`,
		roomID, fromUserID, models.RoleAdmin); err != nil {
		return err
	}

	if _, err := tx.ExecContext(ctx,
		`UPDATE chat_rooms SET owner_id=$2, updated_at=NOW() WHERE id=$1`, roomID, toUserID); err != nil {
		return err
	}

	return tx.Commit()
}

// SetLastRead records the newest message the user has read in the room.
func (r *MemberRepo) SetLastRead(ctx context.Context, roomID, userID, messageID uuid.UUID) error {
	res, err := r.db.ExecContext(ctx,
		`UPDATE room_members SET last_read_message_id=$3 WHERE room_id=$1 AND user_id=$2`,
		roomID, userID, messageID)
	if err != nil {
		return err
	}
	count, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if count == 0 {
		return ErrMemberNotFound
	}
	return nil
}
