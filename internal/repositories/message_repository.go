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
	ErrMessageNotFound  = errors.New("message not found")
	ErrMessageDeleted   = errors.New("message deleted")
	ErrRoomClosed       = errors.New("room closed")
	ErrNotRoomMember    = errors.New("not a room member")
	ErrReplyToOtherRoom = errors.New("reply_to references another room")
)

const messageColumns = `id, room_id, author_id, content, kind, reply_to, is_deleted, created_at, updated_at`

// MessageRepository abstracts the append-only message log.
type MessageRepository interface {
	AppendMessage(ctx context.Context, msg models.Message) (models.Message, error)
	GetMessageByID(ctx context.Context, id uuid.UUID) (models.Message, error)
	History(ctx context.Context, roomID uuid.UUID, before *models.HistoryCursor, limit int) ([]models.Message, error)
	MarkDeleted(ctx context.Context, messageID uuid.UUID) error
	EditMessage(ctx context.Context, messageID uuid.UUID, content string) (models.Message, error)
}

// MessageRepo is a sqlx implementation of MessageRepository.
type MessageRepo struct {
	db *sqlx.DB
}

// NewMessageRepo constructs a MessageRepo.
func NewMessageRepo(db *sqlx.DB) *MessageRepo {
	return &MessageRepo{db: db}
}

// AppendMessage inserts one message with a database-assigned created_at. The
// whole check-and-insert runs in a transaction that share-locks the room row,
// so a concurrent close cannot race a send and per-room order is serialized
// against history reads.
func (r *MessageRepo) AppendMessage(ctx context.Context, msg models.Message) (models.Message, error) {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return models.Message{}, err
	}
	defer tx.Rollback()

	var closed bool
	err = tx.GetContext(ctx, &closed, `SELECT is_closed FROM chat_rooms WHERE id=$1 FOR SHARE`, msg.RoomID)
	if errors.Is(err, sql.ErrNoRows) {
		return models.Message{}, ErrRoomNotFound
	}
	if err != nil {
		return models.Message{}, err
	}
	if closed {
		return models.Message{}, ErrRoomClosed
	}

	var isMember bool
	err = tx.GetContext(ctx, &isMember,
		`SELECT EXISTS(SELECT 1 FROM room_members WHERE room_id=$1 AND user_id=$2)`,
		msg.RoomID, msg.AuthorID)
	if err != nil {
		return models.Message{}, err
	}
	if !isMember {
		return models.Message{}, ErrNotRoomMember
	}

	if msg.ReplyTo != nil {
		var replyRoomID uuid.UUID
		err = tx.GetContext(ctx, &replyRoomID, `SELECT room_id FROM messages WHERE id=$1`, *msg.ReplyTo)
		if errors.Is(err, sql.ErrNoRows) {
			return models.Message{}, ErrMessageNotFound
		}
		if err != nil {
			return models.Message{}, err
		}
		if replyRoomID != msg.RoomID {
			return models.Message{}, ErrReplyToOtherRoom
		}
	}

	var created models.Message
	query := `INSERT INTO messages (id, room_id, author_id, content, kind, reply_to)
        VALUES ($1, $2, $3, $4, $5, $6)
        RETURNING ` + messageColumns
	if err := tx.QueryRowxContext(ctx, query,
		msg.ID, msg.RoomID, msg.AuthorID, msg.Content, msg.Kind, msg.ReplyTo).StructScan(&created); err != nil {
		return models.Message{}, err
	}

	if err := tx.Commit(); err != nil {
		return models.Message{}, err
	}
	return created, nil
}

// GetMessageByID fetches a single message, tombstones included.
func (r *MessageRepo) GetMessageByID(ctx context.Context, id uuid.UUID) (models.Message, error) {
	var msg models.Message
	err := r.db.GetContext(ctx, &msg, `SELECT `+messageColumns+` FROM messages WHERE id=$1`, id)
	if errors.Is(err, sql.ErrNoRows) {
		return models.Message{}, ErrMessageNotFound
	}
	return msg, err
}

// History returns up to limit messages strictly older than the cursor in
// descending (created_at, id) order. A nil cursor starts from the newest
// message. Tombstones keep their slot with the sentinel content.
func (r *MessageRepo) History(ctx context.Context, roomID uuid.UUID, before *models.HistoryCursor, limit int) ([]models.Message, error) {
	var msgs []models.Message
	var err error
	if before != nil {
		query := `SELECT ` + messageColumns + ` FROM messages
            WHERE room_id = $1 AND (created_at, id) < ($2, $3)
            ORDER BY created_at DESC, id DESC
            LIMIT $4`
		err = r.db.SelectContext(ctx, &msgs, query, roomID, before.CreatedAt, before.ID, limit)
	} else {
		query := `SELECT ` + messageColumns + ` FROM messages
            WHERE room_id = $1
            ORDER BY created_at DESC, id DESC
            LIMIT $2`
		err = r.db.SelectContext(ctx, &msgs, query, roomID, limit)
	}
	return msgs, err
}

// MarkDeleted tombstones a message: content becomes the sentinel, the kind is
// preserved. Deleting an already deleted message is a no-op.
func (r *MessageRepo) MarkDeleted(ctx context.Context, messageID uuid.UUID) error {
	res, err := r.db.ExecContext(ctx,
		`UPDATE messages SET is_deleted=TRUE, content=$2, updated_at=NOW()
        WHERE id=$1 AND is_deleted=FALSE`, messageID, models.DeletedContent)
	if err != nil {
		return err
	}
	count, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if count == 0 {
		var exists bool
		if err := r.db.GetContext(ctx, &exists,
			`SELECT EXISTS(SELECT 1 FROM messages WHERE id=$1)`, messageID); err != nil {
			return err
		}
		if !exists {
			return ErrMessageNotFound
		}
	}
	return nil
}

// EditMessage rewrites a live message's content and stamps updated_at.
// Tombstones are immutable.
func (r *MessageRepo) EditMessage(ctx context.Context, messageID uuid.UUID, content string) (models.Message, error) {
	query := `UPDATE messages SET content=$2, updated_at=NOW()
        WHERE id=$1 AND is_deleted=FALSE
        RETURNING ` + messageColumns
	var msg models.Message
	err := r.db.QueryRowxContext(ctx, query, messageID, content).StructScan(&msg)
	if errors.Is(err, sql.ErrNoRows) {
		var deleted bool
		if err := r.db.GetContext(ctx, &deleted,
			`SELECT is_deleted FROM messages WHERE id=$1`, messageID); err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				return models.Message{}, ErrMessageNotFound
			}
			return models.Message{}, err
		}
		if deleted {
			return models.Message{}, ErrMessageDeleted
		}
		return models.Message{}, ErrMessageNotFound
	}
	if err != nil {
		return models.Message{}, err
	}
	return msg, nil
}
