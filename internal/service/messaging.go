package service

import (
	"context"
	"errors"
	"unicode/utf8"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"chat-backend/internal/bus"
	"chat-backend/internal/errs"
	"chat-backend/internal/models"
	"chat-backend/internal/repositories"
)

// MaxHistoryLimit caps one history page.
const MaxHistoryLimit = 200

// MessageService is the send → persist → broadcast orchestrator plus the
// history and moderation reads around it.
type MessageService interface {
	Send(ctx context.Context, authorID, roomID uuid.UUID, content, kind string, replyTo *uuid.UUID, idempotencyKey string) (models.Message, error)
	History(ctx context.Context, userID, roomID uuid.UUID, before *models.HistoryCursor, limit int) ([]models.Message, error)
	GetMessage(ctx context.Context, userID, messageID uuid.UUID) (models.Message, error)
	EditMessage(ctx context.Context, actorID, messageID uuid.UUID, content string) (models.Message, error)
	DeleteMessage(ctx context.Context, actorID, messageID uuid.UUID) error
	MarkRead(ctx context.Context, userID, roomID, messageID uuid.UUID) error
}

// MessageSvc is the production MessageService.
type MessageSvc struct {
	messages repositories.MessageRepository
	rooms    repositories.RoomRepository
	members  repositories.MemberRepository
	bus      bus.Bus
	idem     *IdempotencyCache
	log      zerolog.Logger
}

// NewMessageSvc constructs a MessageSvc.
func NewMessageSvc(
	messages repositories.MessageRepository,
	rooms repositories.RoomRepository,
	members repositories.MemberRepository,
	eventBus bus.Bus,
	idem *IdempotencyCache,
	logger zerolog.Logger,
) *MessageSvc {
	return &MessageSvc{
		messages: messages,
		rooms:    rooms,
		members:  members,
		bus:      eventBus,
		idem:     idem,
		log:      logger.With().Str("component", "message_service").Logger(),
	}
}

// Send appends one message and broadcasts it. With an idempotency key, a
// retry inside the dedup window acknowledges the original row instead of
// appending again. A failed broadcast returns 503; the row stays persisted
// and surfaces on the next history fetch.
func (s *MessageSvc) Send(ctx context.Context, authorID, roomID uuid.UUID, content, kind string, replyTo *uuid.UUID, idempotencyKey string) (models.Message, error) {
	if kind == "" {
		kind = models.MessageKindText
	}
	if !models.ValidMessageKind(kind) {
		return models.Message{}, errs.Validationf("unknown kind %q", kind)
	}
	if err := validateContent(content); err != nil {
		return models.Message{}, err
	}

	if idempotencyKey != "" {
		cached, hit, err := s.idem.Get(ctx, authorID, roomID, idempotencyKey)
		if err != nil {
			// A keyed send without a working dedup check risks a duplicate
			// row on retry, so it fails rather than degrades.
			return models.Message{}, errs.Unavailable("idempotency check failed", err)
		}
		if hit {
			return cached, nil
		}
	}

	msg, err := s.messages.AppendMessage(ctx, models.Message{
		ID:       uuid.New(),
		RoomID:   roomID,
		AuthorID: authorID,
		Content:  content,
		Kind:     kind,
		ReplyTo:  replyTo,
	})
	if err != nil {
		switch {
		case errors.Is(err, repositories.ErrRoomNotFound):
			return models.Message{}, errs.NotFound(errs.CodeRoomNotFound, "room not found")
		case errors.Is(err, repositories.ErrRoomClosed):
			return models.Message{}, errs.Forbidden(errs.CodeRoomClosed, "room is closed")
		case errors.Is(err, repositories.ErrNotRoomMember):
			return models.Message{}, s.notMember(ctx, roomID)
		case errors.Is(err, repositories.ErrMessageNotFound):
			return models.Message{}, errs.Validation("reply_to does not exist")
		case errors.Is(err, repositories.ErrReplyToOtherRoom):
			return models.Message{}, errs.Validation("reply_to references another room")
		}
		return models.Message{}, err
	}

	if idempotencyKey != "" {
		if err := s.idem.Put(ctx, authorID, roomID, idempotencyKey, msg); err != nil {
			s.log.Warn().Err(err).Str("message_id", msg.ID.String()).Msg("idempotency cache write failed")
		}
	}

	if err := s.bus.Publish(ctx, models.NewMessageCreated(msg)); err != nil {
		return models.Message{}, errs.Unavailable("message persisted but not broadcast", err)
	}
	return msg, nil
}

// History pages the room's log backwards from the cursor.
func (s *MessageSvc) History(ctx context.Context, userID, roomID uuid.UUID, before *models.HistoryCursor, limit int) ([]models.Message, error) {
	if limit <= 0 {
		return nil, errs.Validation("limit must be positive")
	}
	if limit > MaxHistoryLimit {
		limit = MaxHistoryLimit
	}

	if _, _, err := loadRoomMember(ctx, s.rooms, s.members, roomID, userID); err != nil {
		return nil, err
	}

	msgs, err := s.messages.History(ctx, roomID, before, limit)
	if err != nil {
		return nil, err
	}
	if msgs == nil {
		msgs = []models.Message{}
	}
	return msgs, nil
}

// GetMessage loads one message for a member of its room.
func (s *MessageSvc) GetMessage(ctx context.Context, userID, messageID uuid.UUID) (models.Message, error) {
	msg, err := s.messages.GetMessageByID(ctx, messageID)
	if err != nil {
		if errors.Is(err, repositories.ErrMessageNotFound) {
			return models.Message{}, errs.NotFound(errs.CodeMessageNotFound, "message not found")
		}
		return models.Message{}, err
	}

	if _, _, err := loadRoomMember(ctx, s.rooms, s.members, msg.RoomID, userID); err != nil {
		return models.Message{}, err
	}
	return msg, nil
}

// EditMessage rewrites a live message's content. Author only; tombstones and
// closed rooms are immutable. Edits are not broadcast; history is canonical.
func (s *MessageSvc) EditMessage(ctx context.Context, actorID, messageID uuid.UUID, content string) (models.Message, error) {
	if err := validateContent(content); err != nil {
		return models.Message{}, err
	}

	msg, err := s.messages.GetMessageByID(ctx, messageID)
	if err != nil {
		if errors.Is(err, repositories.ErrMessageNotFound) {
			return models.Message{}, errs.NotFound(errs.CodeMessageNotFound, "message not found")
		}
		return models.Message{}, err
	}
	if msg.AuthorID != actorID {
		return models.Message{}, errs.Forbidden(errs.CodeForbidden, "only the author can edit a message")
	}
	if msg.IsDeleted {
		return models.Message{}, errs.Conflict(errs.CodeMessageDeleted, "message is deleted")
	}

	room, err := s.rooms.GetRoomByID(ctx, msg.RoomID)
	if err != nil {
		return models.Message{}, err
	}
	if room.IsClosed {
		return models.Message{}, errs.Forbidden(errs.CodeRoomClosed, "room is closed")
	}

	updated, err := s.messages.EditMessage(ctx, messageID, content)
	if err != nil {
		switch {
		case errors.Is(err, repositories.ErrMessageDeleted):
			return models.Message{}, errs.Conflict(errs.CodeMessageDeleted, "message is deleted")
		case errors.Is(err, repositories.ErrMessageNotFound):
			return models.Message{}, errs.NotFound(errs.CodeMessageNotFound, "message not found")
		}
		return models.Message{}, err
	}
	return updated, nil
}

// DeleteMessage tombstones a message and broadcasts the deletion. The author
// or a room admin may delete; deleting twice is a no-op with no second
// broadcast.
func (s *MessageSvc) DeleteMessage(ctx context.Context, actorID, messageID uuid.UUID) error {
	msg, err := s.messages.GetMessageByID(ctx, messageID)
	if err != nil {
		if errors.Is(err, repositories.ErrMessageNotFound) {
			return errs.NotFound(errs.CodeMessageNotFound, "message not found")
		}
		return err
	}
	if msg.IsDeleted {
		return nil
	}

	if msg.AuthorID != actorID {
		member, err := s.members.GetMember(ctx, msg.RoomID, actorID)
		if err != nil {
			if errors.Is(err, repositories.ErrMemberNotFound) {
				return s.notMember(ctx, msg.RoomID)
			}
			return err
		}
		if !models.RoleAtLeast(member.Role, models.RoleAdmin) {
			return errs.Forbidden(errs.CodeForbidden, "only the author or a room admin can delete a message")
		}
	}

	if err := s.messages.MarkDeleted(ctx, messageID); err != nil {
		if errors.Is(err, repositories.ErrMessageNotFound) {
			return errs.NotFound(errs.CodeMessageNotFound, "message not found")
		}
		return err
	}

	if err := s.bus.Publish(ctx, models.NewMessageDeleted(msg.RoomID, messageID, actorID)); err != nil {
		return errs.Unavailable("deletion persisted but not broadcast", err)
	}
	return nil
}

// MarkRead records the newest message the caller has read in the room.
func (s *MessageSvc) MarkRead(ctx context.Context, userID, roomID, messageID uuid.UUID) error {
	if _, _, err := loadRoomMember(ctx, s.rooms, s.members, roomID, userID); err != nil {
		return err
	}

	msg, err := s.messages.GetMessageByID(ctx, messageID)
	if err != nil {
		if errors.Is(err, repositories.ErrMessageNotFound) {
			return errs.NotFound(errs.CodeMessageNotFound, "message not found")
		}
		return err
	}
	if msg.RoomID != roomID {
		return errs.Validation("message is not in this room")
	}

	if err := s.members.SetLastRead(ctx, roomID, userID, messageID); err != nil {
		if errors.Is(err, repositories.ErrMemberNotFound) {
			return errs.NotFound(errs.CodeNotRoomMember, "not a room member")
		}
		return err
	}
	return nil
}

// notMember resolves the privacy-aware membership error for a room the
// repository already reported the caller missing from.
func (s *MessageSvc) notMember(ctx context.Context, roomID uuid.UUID) error {
	room, err := s.rooms.GetRoomByID(ctx, roomID)
	if err != nil {
		return errs.NotFound(errs.CodeNotRoomMember, "not a room member")
	}
	return notMemberError(room)
}

func validateContent(content string) error {
	length := utf8.RuneCountInString(content)
	if length < models.MinContentLength || length > models.MaxContentLength {
		return errs.Validationf("content must be %d-%d characters", models.MinContentLength, models.MaxContentLength)
	}
	return nil
}
