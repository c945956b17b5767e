package service

import (
	"context"
	"errors"
	"unicode/utf8"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"chat-backend/internal/auth"
	"chat-backend/internal/bus"
	"chat-backend/internal/errs"
	"chat-backend/internal/models"
	"chat-backend/internal/observability"
	"chat-backend/internal/presence"
	"chat-backend/internal/repositories"
	"chat-backend/internal/telemetry"
)

// Room name bounds in characters.
const (
	minRoomNameLen = 1
	maxRoomNameLen = 100

	defaultRoomListLimit = 50
	maxRoomListLimit     = 200
)

// RoomPatch names the fields a room update may change. Password applies only
// to private rooms and never appears in the room_updated event.
type RoomPatch struct {
	Name      *string
	IsPrivate *bool
	Password  *string
}

func (p RoomPatch) empty() bool {
	return p.Name == nil && p.IsPrivate == nil && p.Password == nil
}

// RoomService covers room lifecycle, membership and presence reads.
type RoomService interface {
	CreateRoom(ctx context.Context, ownerID uuid.UUID, name string, isPrivate bool, password string) (models.ChatRoom, error)
	GetRoom(ctx context.Context, userID, roomID uuid.UUID) (models.ChatRoom, error)
	ListRooms(ctx context.Context, userID uuid.UUID, limit, offset int) ([]models.RoomSummary, error)
	UpdateRoom(ctx context.Context, actorID, roomID uuid.UUID, patch RoomPatch) (models.ChatRoom, error)
	CloseRoom(ctx context.Context, actorID, roomID uuid.UUID) error
	Join(ctx context.Context, userID, roomID uuid.UUID, password string) (bool, error)
	Leave(ctx context.Context, userID, roomID uuid.UUID) error
	Members(ctx context.Context, userID, roomID uuid.UUID) ([]models.MemberInfo, error)
	OnlineMembers(ctx context.Context, userID, roomID uuid.UUID) ([]models.User, error)
	MemberCount(ctx context.Context, roomID uuid.UUID) (int, error)
	Invite(ctx context.Context, actorID, roomID, targetID uuid.UUID, role string) (models.RoomMember, error)
	Kick(ctx context.Context, actorID, roomID, targetID uuid.UUID) error
	ChangeRole(ctx context.Context, actorID, roomID, targetID uuid.UUID, role string) error
}

// RoomSvc is the production RoomService.
type RoomSvc struct {
	rooms    repositories.RoomRepository
	members  repositories.MemberRepository
	users    repositories.UserRepository
	tracker  presence.Tracker
	bus      bus.Bus
	hasher   auth.PasswordHasher
	attempts *AttemptLimiter
	audit    *telemetry.AuditEmitter
	log      zerolog.Logger
}

// NewRoomSvc constructs a RoomSvc.
func NewRoomSvc(
	rooms repositories.RoomRepository,
	members repositories.MemberRepository,
	users repositories.UserRepository,
	tracker presence.Tracker,
	eventBus bus.Bus,
	hasher auth.PasswordHasher,
	attempts *AttemptLimiter,
	audit *telemetry.AuditEmitter,
	logger zerolog.Logger,
) *RoomSvc {
	return &RoomSvc{
		rooms:    rooms,
		members:  members,
		users:    users,
		tracker:  tracker,
		bus:      eventBus,
		hasher:   hasher,
		attempts: attempts,
		audit:    audit,
		log:      logger.With().Str("component", "room_service").Logger(),
	}
}

// CreateRoom inserts the room with the caller as owner and first member.
func (s *RoomSvc) CreateRoom(ctx context.Context, ownerID uuid.UUID, name string, isPrivate bool, password string) (models.ChatRoom, error) {
	if err := validateRoomName(name); err != nil {
		return models.ChatRoom{}, err
	}

	var hash *string
	if isPrivate {
		if password == "" {
			return models.ChatRoom{}, errs.Validation("private room requires a password")
		}
		hashed, err := s.hasher.Hash(password)
		if err != nil {
			return models.ChatRoom{}, err
		}
		hash = &hashed
	} else if password != "" {
		return models.ChatRoom{}, errs.Validation("password only applies to private rooms")
	}

	room, err := s.rooms.CreateRoom(ctx, models.ChatRoom{
		ID:           uuid.New(),
		Name:         name,
		OwnerID:      ownerID,
		IsPrivate:    isPrivate,
		PasswordHash: hash,
	})
	if err != nil {
		if errors.Is(err, repositories.ErrRoomNameTaken) {
			return models.ChatRoom{}, errs.Conflict(errs.CodeRoomExists, "room name already taken")
		}
		return models.ChatRoom{}, err
	}
	return room, nil
}

// GetRoom loads one room. Private rooms stay hidden from non-members.
func (s *RoomSvc) GetRoom(ctx context.Context, userID, roomID uuid.UUID) (models.ChatRoom, error) {
	room, err := s.rooms.GetRoomByID(ctx, roomID)
	if err != nil {
		if errors.Is(err, repositories.ErrRoomNotFound) {
			return models.ChatRoom{}, errs.NotFound(errs.CodeRoomNotFound, "room not found")
		}
		return models.ChatRoom{}, err
	}

	if room.IsPrivate {
		if _, err := s.members.GetMember(ctx, roomID, userID); err != nil {
			if errors.Is(err, repositories.ErrMemberNotFound) {
				return models.ChatRoom{}, errs.NotFound(errs.CodeRoomNotFound, "room not found")
			}
			return models.ChatRoom{}, err
		}
	}
	return room, nil
}

// ListRooms returns the caller's open rooms, newest first.
func (s *RoomSvc) ListRooms(ctx context.Context, userID uuid.UUID, limit, offset int) ([]models.RoomSummary, error) {
	if limit <= 0 {
		limit = defaultRoomListLimit
	}
	if limit > maxRoomListLimit {
		limit = maxRoomListLimit
	}
	if offset < 0 {
		offset = 0
	}
	return s.rooms.ListRoomsForUser(ctx, userID, limit, offset)
}

// UpdateRoom renames the room, toggles privacy or rotates the password.
// Owner only; closed rooms are immutable.
func (s *RoomSvc) UpdateRoom(ctx context.Context, actorID, roomID uuid.UUID, patch RoomPatch) (models.ChatRoom, error) {
	room, member, err := s.loadRoomMember(ctx, roomID, actorID)
	if err != nil {
		return models.ChatRoom{}, err
	}
	if member.Role != models.RoleOwner {
		return models.ChatRoom{}, errs.Forbidden(errs.CodeForbidden, "only the owner can update the room")
	}
	if room.IsClosed {
		return models.ChatRoom{}, errs.Forbidden(errs.CodeRoomClosed, "room is closed")
	}
	if patch.empty() {
		return models.ChatRoom{}, errs.Validation("no fields to update")
	}

	updated := room
	var changes models.RoomChanges

	if patch.Name != nil {
		if err := validateRoomName(*patch.Name); err != nil {
			return models.ChatRoom{}, err
		}
		if *patch.Name != room.Name {
			changes.Name = patch.Name
		}
		updated.Name = *patch.Name
	}

	wantPrivate := room.IsPrivate
	if patch.IsPrivate != nil {
		wantPrivate = *patch.IsPrivate
		if wantPrivate != room.IsPrivate {
			changes.IsPrivate = patch.IsPrivate
		}
	}

	if wantPrivate {
		switch {
		case patch.Password != nil:
			if *patch.Password == "" {
				return models.ChatRoom{}, errs.Validation("private room requires a password")
			}
			hashed, err := s.hasher.Hash(*patch.Password)
			if err != nil {
				return models.ChatRoom{}, err
			}
			updated.PasswordHash = &hashed
		case !room.IsPrivate:
			return models.ChatRoom{}, errs.Validation("private room requires a password")
		}
	} else {
		if patch.Password != nil && *patch.Password != "" {
			return models.ChatRoom{}, errs.Validation("password only applies to private rooms")
		}
		updated.PasswordHash = nil
	}
	updated.IsPrivate = wantPrivate

	stored, err := s.rooms.UpdateRoom(ctx, updated)
	if err != nil {
		switch {
		case errors.Is(err, repositories.ErrRoomNotFound):
			return models.ChatRoom{}, errs.NotFound(errs.CodeRoomNotFound, "room not found")
		case errors.Is(err, repositories.ErrRoomNameTaken):
			return models.ChatRoom{}, errs.Conflict(errs.CodeRoomExists, "room name already taken")
		}
		return models.ChatRoom{}, err
	}

	if !changes.Empty() {
		s.publish(ctx, models.NewRoomUpdated(roomID, changes))
	}
	return stored, nil
}

// CloseRoom marks the room terminal. Members keep history access; new joins
// and sends are rejected from here on. Closing twice is a no-op.
func (s *RoomSvc) CloseRoom(ctx context.Context, actorID, roomID uuid.UUID) error {
	room, member, err := s.loadRoomMember(ctx, roomID, actorID)
	if err != nil {
		return err
	}
	if member.Role != models.RoleOwner {
		return errs.Forbidden(errs.CodeForbidden, "only the owner can close the room")
	}
	if room.IsClosed {
		return nil
	}

	if err := s.rooms.CloseRoom(ctx, roomID); err != nil {
		if errors.Is(err, repositories.ErrRoomNotFound) {
			return errs.NotFound(errs.CodeRoomNotFound, "room not found")
		}
		return err
	}

	s.publish(ctx, models.NewRoomClosed(roomID))
	actor := actorID.String()
	s.audit.Emit(ctx, "info", "room closed: "+room.Name, observability.RequestID(ctx), &actor)
	return nil
}

// Join makes the caller a member. The private-room password is checked before
// anything else so membership is not probeable; a re-join by an existing
// member is a no-op. Returns whether a membership was created.
func (s *RoomSvc) Join(ctx context.Context, userID, roomID uuid.UUID, password string) (bool, error) {
	room, err := s.rooms.GetRoomByID(ctx, roomID)
	if err != nil {
		if errors.Is(err, repositories.ErrRoomNotFound) {
			return false, errs.NotFound(errs.CodeRoomNotFound, "room not found")
		}
		return false, err
	}

	user, err := s.users.GetUserByID(ctx, userID)
	if err != nil {
		if errors.Is(err, repositories.ErrUserNotFound) {
			return false, errs.NotFound(errs.CodeUserNotFound, "user not found")
		}
		return false, err
	}
	if !user.IsActive() {
		return false, errs.Forbidden(errs.CodeForbidden, "account is not active")
	}

	if room.IsPrivate {
		// No password at all means the client never prompted; that is not a
		// guess, so it does not consume attempt budget.
		if password == "" {
			return false, errs.Unauthenticated(errs.CodeRoomPrivate, "room requires a password")
		}
		allowed, err := s.attempts.Allow(ctx, userID, roomID)
		if err != nil {
			return false, err
		}
		if !allowed {
			return false, errs.RateLimited(errs.CodeTooManyAttempts, "too many password attempts")
		}
		if room.PasswordHash == nil || !s.hasher.Verify(*room.PasswordHash, password) {
			return false, errs.Unauthenticated(errs.CodeInvalidRoomPassword, "invalid room password")
		}
	}

	if _, err := s.members.GetMember(ctx, roomID, userID); err == nil {
		return false, nil
	} else if !errors.Is(err, repositories.ErrMemberNotFound) {
		return false, err
	}

	if room.IsClosed {
		return false, errs.Forbidden(errs.CodeRoomClosed, "room is closed")
	}

	if _, err := s.members.AddMember(ctx, roomID, userID, models.RoleMember); err != nil {
		switch {
		case errors.Is(err, repositories.ErrAlreadyMember):
			return false, nil
		case errors.Is(err, repositories.ErrRoomNotFound):
			return false, errs.NotFound(errs.CodeRoomNotFound, "room not found")
		}
		return false, err
	}

	s.publish(ctx, models.NewMemberJoined(roomID, userID))
	return true, nil
}

// Leave removes the caller's membership. The owner must transfer ownership
// first.
func (s *RoomSvc) Leave(ctx context.Context, userID, roomID uuid.UUID) error {
	room, member, err := s.loadRoomMember(ctx, roomID, userID)
	if err != nil {
		return err
	}
	if member.Role == models.RoleOwner {
		return errs.Forbidden(errs.CodeOwnerCannotLeave, "transfer ownership before leaving")
	}

	if err := s.members.RemoveMember(ctx, roomID, userID); err != nil {
		if errors.Is(err, repositories.ErrMemberNotFound) {
			return notMemberError(room)
		}
		return err
	}

	s.publish(ctx, models.NewMemberLeft(roomID, userID))
	return nil
}

// Members lists the room's members, owner first.
func (s *RoomSvc) Members(ctx context.Context, userID, roomID uuid.UUID) ([]models.MemberInfo, error) {
	if _, _, err := s.loadRoomMember(ctx, roomID, userID); err != nil {
		return nil, err
	}
	return s.members.ListMembers(ctx, roomID)
}

// OnlineMembers resolves the room's live presence set to accounts.
func (s *RoomSvc) OnlineMembers(ctx context.Context, userID, roomID uuid.UUID) ([]models.User, error) {
	if _, _, err := s.loadRoomMember(ctx, roomID, userID); err != nil {
		return nil, err
	}

	ids, err := s.tracker.Members(ctx, roomID)
	if err != nil {
		return nil, errs.Unavailable("presence read failed", err)
	}
	if len(ids) == 0 {
		return []models.User{}, nil
	}

	users, err := s.users.GetUsersByIDs(ctx, ids)
	if err != nil {
		return nil, err
	}
	return users, nil
}

// MemberCount returns the size of the room's member list.
func (s *RoomSvc) MemberCount(ctx context.Context, roomID uuid.UUID) (int, error) {
	return s.members.CountMembers(ctx, roomID)
}

// Invite adds another user directly, bypassing the private-room password.
// Admin and owner only; the grantable roles are member and admin.
func (s *RoomSvc) Invite(ctx context.Context, actorID, roomID, targetID uuid.UUID, role string) (models.RoomMember, error) {
	if role == "" {
		role = models.RoleMember
	}
	if role != models.RoleMember && role != models.RoleAdmin {
		return models.RoomMember{}, errs.Validation("invite role must be member or admin")
	}

	room, actor, err := s.loadRoomMember(ctx, roomID, actorID)
	if err != nil {
		return models.RoomMember{}, err
	}
	if !models.RoleAtLeast(actor.Role, models.RoleAdmin) {
		return models.RoomMember{}, errs.Forbidden(errs.CodeForbidden, "only admins can invite")
	}
	if room.IsClosed {
		return models.RoomMember{}, errs.Forbidden(errs.CodeRoomClosed, "room is closed")
	}

	if _, err := s.users.GetUserByID(ctx, targetID); err != nil {
		if errors.Is(err, repositories.ErrUserNotFound) {
			return models.RoomMember{}, errs.NotFound(errs.CodeUserNotFound, "user not found")
		}
		return models.RoomMember{}, err
	}

	member, err := s.members.AddMember(ctx, roomID, targetID, role)
	if err != nil {
		switch {
		case errors.Is(err, repositories.ErrAlreadyMember):
			return models.RoomMember{}, errs.Conflict(errs.CodeMembershipExists, "already a member")
		case errors.Is(err, repositories.ErrRoomNotFound):
			return models.RoomMember{}, errs.NotFound(errs.CodeRoomNotFound, "room not found")
		}
		return models.RoomMember{}, err
	}

	s.publish(ctx, models.NewMemberJoined(roomID, targetID))
	return member, nil
}

// Kick removes another member. The actor must strictly outrank the target;
// kicking yourself is a leave.
func (s *RoomSvc) Kick(ctx context.Context, actorID, roomID, targetID uuid.UUID) error {
	if actorID == targetID {
		return s.Leave(ctx, actorID, roomID)
	}

	_, actor, err := s.loadRoomMember(ctx, roomID, actorID)
	if err != nil {
		return err
	}
	if !models.RoleAtLeast(actor.Role, models.RoleAdmin) {
		return errs.Forbidden(errs.CodeForbidden, "only admins can remove members")
	}

	target, err := s.members.GetMember(ctx, roomID, targetID)
	if err != nil {
		if errors.Is(err, repositories.ErrMemberNotFound) {
			return errs.NotFound(errs.CodeNotRoomMember, "not a room member")
		}
		return err
	}
	if models.RoleRank(actor.Role) <= models.RoleRank(target.Role) {
		return errs.Forbidden(errs.CodeForbidden, "cannot remove a member of equal or higher role")
	}

	if err := s.members.RemoveMember(ctx, roomID, targetID); err != nil {
		if errors.Is(err, repositories.ErrMemberNotFound) {
			return errs.NotFound(errs.CodeNotRoomMember, "not a room member")
		}
		return err
	}

	s.publish(ctx, models.NewMemberLeft(roomID, targetID))
	actorStr := actorID.String()
	s.audit.Emit(ctx, "warn", "user "+targetID.String()+" kicked from room", observability.RequestID(ctx), &actorStr)
	return nil
}

// ChangeRole rewrites a member's role. Setting owner is an ownership
// transfer: owner only, atomic, the old owner becomes an admin. Other
// changes require admin+ and a strictly outranked target.
func (s *RoomSvc) ChangeRole(ctx context.Context, actorID, roomID, targetID uuid.UUID, role string) error {
	if models.RoleRank(role) == 0 {
		return errs.Validationf("unknown role %q", role)
	}

	_, actor, err := s.loadRoomMember(ctx, roomID, actorID)
	if err != nil {
		return err
	}

	if role == models.RoleOwner {
		if actor.Role != models.RoleOwner {
			return errs.Forbidden(errs.CodeForbidden, "only the owner can transfer ownership")
		}
		if targetID == actorID {
			return nil
		}
		if err := s.members.TransferOwnership(ctx, roomID, actorID, targetID); err != nil {
			if errors.Is(err, repositories.ErrMemberNotFound) {
				return errs.NotFound(errs.CodeNotRoomMember, "not a room member")
			}
			return err
		}
		return nil
	}

	if !models.RoleAtLeast(actor.Role, models.RoleAdmin) {
		return errs.Forbidden(errs.CodeForbidden, "only admins can change roles")
	}

	target, err := s.members.GetMember(ctx, roomID, targetID)
	if err != nil {
		if errors.Is(err, repositories.ErrMemberNotFound) {
			return errs.NotFound(errs.CodeNotRoomMember, "not a room member")
		}
		return err
	}
	if models.RoleRank(actor.Role) <= models.RoleRank(target.Role) {
		return errs.Forbidden(errs.CodeForbidden, "cannot change the role of a member of equal or higher role")
	}
	if target.Role == role {
		return nil
	}

	if err := s.members.ChangeRole(ctx, roomID, targetID, role); err != nil {
		if errors.Is(err, repositories.ErrMemberNotFound) {
			return errs.NotFound(errs.CodeNotRoomMember, "not a room member")
		}
		return err
	}
	return nil
}

func (s *RoomSvc) loadRoomMember(ctx context.Context, roomID, userID uuid.UUID) (models.ChatRoom, models.RoomMember, error) {
	return loadRoomMember(ctx, s.rooms, s.members, roomID, userID)
}

func (s *RoomSvc) publish(ctx context.Context, event models.RoomEvent) {
	if err := s.bus.Publish(ctx, event); err != nil {
		s.log.Warn().Err(err).
			Str("type", event.Type).
			Str("room_id", event.RoomID.String()).
			Msg("event publish failed")
	}
}

// loadRoomMember loads the room and the caller's membership in it. Missing
// membership reads as not-found so private rooms stay hidden.
func loadRoomMember(ctx context.Context, rooms repositories.RoomRepository, members repositories.MemberRepository, roomID, userID uuid.UUID) (models.ChatRoom, models.RoomMember, error) {
	room, err := rooms.GetRoomByID(ctx, roomID)
	if err != nil {
		if errors.Is(err, repositories.ErrRoomNotFound) {
			return models.ChatRoom{}, models.RoomMember{}, errs.NotFound(errs.CodeRoomNotFound, "room not found")
		}
		return models.ChatRoom{}, models.RoomMember{}, err
	}

	member, err := members.GetMember(ctx, roomID, userID)
	if err != nil {
		if errors.Is(err, repositories.ErrMemberNotFound) {
			return models.ChatRoom{}, models.RoomMember{}, notMemberError(room)
		}
		return models.ChatRoom{}, models.RoomMember{}, err
	}
	return room, member, nil
}

// notMemberError hides private rooms from non-members; public rooms report
// the missing membership directly.
func notMemberError(room models.ChatRoom) error {
	if room.IsPrivate {
		return errs.NotFound(errs.CodeRoomNotFound, "room not found")
	}
	return errs.NotFound(errs.CodeNotRoomMember, "not a room member")
}

func validateRoomName(name string) error {
	length := utf8.RuneCountInString(name)
	if length < minRoomNameLen || length > maxRoomNameLen {
		return errs.Validationf("room name must be %d-%d characters", minRoomNameLen, maxRoomNameLen)
	}
	return nil
}
