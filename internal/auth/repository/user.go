package repository

import (
	"context"
	"database/sql"
	"time"

	"github.com/google/uuid"

	"github.com/botiquin/botiquin-backend/pkg/database"
	"github.com/botiquin/botiquin-backend/pkg/errors"
)

// User is an account that can sign in to the dashboard.
type User struct {
	ID           string     `db:"id" json:"id"`
	Username     string     `db:"username" json:"username"`
	Email        *string    `db:"email" json:"email,omitempty"`
	PasswordHash string     `db:"password_hash" json:"-"`
	UserType     string     `db:"user_type" json:"user_type"`
	CompanyID    *string    `db:"company_id" json:"company_id,omitempty"`
	Active       bool       `db:"active" json:"active"`
	LastLoginAt  *time.Time `db:"last_login_at" json:"last_login_at,omitempty"`
	CreatedAt    time.Time  `db:"created_at" json:"created_at"`
}

const userColumns = `id, username, email, password_hash, user_type, company_id, active, last_login_at, created_at`

// UserRepository handles user persistence
type UserRepository struct {
	db *database.DB
}

// NewUserRepository creates a new user repository
func NewUserRepository(db *database.DB) *UserRepository {
	return &UserRepository{db: db}
}

// Create inserts u, assigning an id when empty.
func (r *UserRepository) Create(ctx context.Context, u *User) error {
	if u.ID == "" {
		u.ID = uuid.New().String()
	}

	query := `
		INSERT INTO users (id, username, email, password_hash, user_type, company_id, active)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING created_at
	`
	err := r.db.Conn(ctx).QueryRowxContext(ctx, query,
		u.ID, u.Username, u.Email, u.PasswordHash, u.UserType, u.CompanyID, u.Active,
	).Scan(&u.CreatedAt)
	return database.MapError(err)
}

// GetByUsername gets an active or inactive user by username.
func (r *UserRepository) GetByUsername(ctx context.Context, username string) (*User, error) {
	return r.getOne(ctx, `SELECT `+userColumns+` FROM users WHERE username = $1`, username)
}

// GetByID gets a user by ID
func (r *UserRepository) GetByID(ctx context.Context, id string) (*User, error) {
	parsed, err := uuid.Parse(id)
	if err != nil {
		return nil, errors.NotFound("user")
	}
	return r.getOne(ctx, `SELECT `+userColumns+` FROM users WHERE id = $1`, parsed.String())
}

func (r *UserRepository) getOne(ctx context.Context, query string, arg any) (*User, error) {
	var u User
	err := r.db.Conn(ctx).GetContext(ctx, &u, query, arg)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, errors.NotFound("user")
	}
	if err != nil {
		return nil, err
	}
	return &u, nil
}

// TouchLastLogin records a successful sign in.
func (r *UserRepository) TouchLastLogin(ctx context.Context, id string, at time.Time) error {
	_, err := r.db.Conn(ctx).ExecContext(ctx, `UPDATE users SET last_login_at = $2 WHERE id = $1`, id, at)
	return err
}
