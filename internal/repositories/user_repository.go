package repositories

import (
	"context"
	"database/sql"
	"errors"
	"strings"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"chat-backend/internal/models"
)

var (
	ErrUserNotFound  = errors.New("user not found")
	ErrUsernameTaken = errors.New("username already taken")
	ErrEmailTaken    = errors.New("email already registered")
)

const userColumns = `id, username, email, password_hash, status, created_at, updated_at`

// UserRepository abstracts user persistence.
type UserRepository interface {
	CreateUser(ctx context.Context, user models.User) (models.User, error)
	GetUserByID(ctx context.Context, id uuid.UUID) (models.User, error)
	GetUserByUsername(ctx context.Context, username string) (models.User, error)
	GetUserByEmail(ctx context.Context, email string) (models.User, error)
	GetUsersByIDs(ctx context.Context, ids []uuid.UUID) ([]models.User, error)
	UpdateProfile(ctx context.Context, id uuid.UUID, username, email *string) (models.User, error)
	SetStatus(ctx context.Context, id uuid.UUID, status string) error
	SearchUsers(ctx context.Context, query string, limit, offset int) ([]models.User, error)
}

// UserRepo is a sqlx implementation of UserRepository.
type UserRepo struct {
	db *sqlx.DB
}

// NewUserRepo constructs a UserRepo.
func NewUserRepo(db *sqlx.DB) *UserRepo {
	return &UserRepo{db: db}
}

// CreateUser inserts a new account and returns the stored row.
func (r *UserRepo) CreateUser(ctx context.Context, user models.User) (models.User, error) {
	query := `INSERT INTO users (id, username, email, password_hash)
        VALUES ($1, $2, $3, $4)
        RETURNING ` + userColumns
	var created models.User
	err := r.db.QueryRowxContext(ctx, query, user.ID, user.Username, user.Email, user.PasswordHash).StructScan(&created)
	if err != nil {
		if constraint, ok := uniqueViolation(err); ok {
			switch constraint {
			case "users_username_key":
				return models.User{}, ErrUsernameTaken
			case "users_email_key":
				return models.User{}, ErrEmailTaken
			}
		}
		return models.User{}, err
	}
	return created, nil
}

// GetUserByID fetches an account by id.
func (r *UserRepo) GetUserByID(ctx context.Context, id uuid.UUID) (models.User, error) {
	var user models.User
	err := r.db.GetContext(ctx, &user, `SELECT `+userColumns+` FROM users WHERE id=$1`, id)
	if errors.Is(err, sql.ErrNoRows) {
		return models.User{}, ErrUserNotFound
	}
	return user, err
}

// GetUserByUsername fetches an account by display name (case-sensitive).
func (r *UserRepo) GetUserByUsername(ctx context.Context, username string) (models.User, error) {
	var user models.User
	err := r.db.GetContext(ctx, &user, `SELECT `+userColumns+` FROM users WHERE username=$1`, username)
	if errors.Is(err, sql.ErrNoRows) {
		return models.User{}, ErrUserNotFound
	}
	return user, err
}

// GetUserByEmail fetches an account by contact address.
func (r *UserRepo) GetUserByEmail(ctx context.Context, email string) (models.User, error) {
	var user models.User
	err := r.db.GetContext(ctx, &user, `SELECT `+userColumns+` FROM users WHERE email=$1`, email)
	if errors.Is(err, sql.ErrNoRows) {
		return models.User{}, ErrUserNotFound
	}
	return user, err
}

// GetUsersByIDs loads a batch of accounts for hydrating member views.
func (r *UserRepo) GetUsersByIDs(ctx context.Context, ids []uuid.UUID) ([]models.User, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	query, args, err := sqlx.In(`SELECT `+userColumns+` FROM users WHERE id IN (?)`, ids)
	if err != nil {
		return nil, err
	}
	var users []models.User
	err = r.db.SelectContext(ctx, &users, r.db.Rebind(query), args...)
	return users, err
}

// UpdateProfile patches the display name and contact address; nil fields are
// left untouched.
func (r *UserRepo) UpdateProfile(ctx context.Context, id uuid.UUID, username, email *string) (models.User, error) {
	query := `UPDATE users SET
            username = COALESCE($2, username),
            email = COALESCE($3, email),
            updated_at = NOW()
        WHERE id = $1
        RETURNING ` + userColumns
	var user models.User
	err := r.db.QueryRowxContext(ctx, query, id, username, email).StructScan(&user)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return models.User{}, ErrUserNotFound
		}
		if constraint, ok := uniqueViolation(err); ok {
			switch constraint {
			case "users_username_key":
				return models.User{}, ErrUsernameTaken
			case "users_email_key":
				return models.User{}, ErrEmailTaken
			}
		}
		return models.User{}, err
	}
	return user, nil
}

// SetStatus moves an account between active, inactive and suspended.
func (r *UserRepo) SetStatus(ctx context.Context, id uuid.UUID, status string) error {
	res, err := r.db.ExecContext(ctx, `UPDATE users SET status=$2, updated_at=NOW() WHERE id=$1`, id, status)
	if err != nil {
		return err
	}
	count, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if count == 0 {
		return ErrUserNotFound
	}
	return nil
}

// SearchUsers matches the query against usernames and emails, paginated.
func (r *UserRepo) SearchUsers(ctx context.Context, query string, limit, offset int) ([]models.User, error) {
	escaped := strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`).Replace(query)
	pattern := "%" + escaped + "%"
	var users []models.User
	err := r.db.SelectContext(ctx, &users,
		`SELECT `+userColumns+` FROM users
        WHERE username ILIKE $1 OR email ILIKE $1
        ORDER BY username
        LIMIT $2 OFFSET $3`, pattern, limit, offset)
	return users, err
}
