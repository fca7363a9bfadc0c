package auth

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgconn"
)

// User is an account row.
type User struct {
	ID           uuid.UUID `json:"user_id"`
	Email        string    `json:"email"`
	PasswordHash string    `json:"-"`
	Role         Role      `json:"role"`
	Name         string    `json:"name"`
	Phone        string    `json:"phone_number,omitempty"`
	CreatedAt    time.Time `json:"created_at"`
}

// Repository persists users and refresh tokens in Postgres.
type Repository struct {
	db *sql.DB
}

// NewRepository creates a repo.
func NewRepository(db *sql.DB) *Repository {
	return &Repository{db: db}
}

// CreateUser inserts a new account. A duplicate email maps to ErrEmailTaken.
func (r *Repository) CreateUser(ctx context.Context, u User) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO users (user_id, email, password_hash, role, name, phone_number)
		VALUES ($1, $2, $3, $4, $5, $6)
	`, u.ID, u.Email, u.PasswordHash, u.Role, u.Name, u.Phone)
	if isUniqueViolation(err) {
		return ErrEmailTaken
	}
	return err
}

// UserByEmail fetches an account by email.
func (r *Repository) UserByEmail(ctx context.Context, email string) (User, error) {
	row := r.db.QueryRowContext(ctx, `
		SELECT user_id, email, password_hash, role, name, COALESCE(phone_number, ''), created_at
		FROM users WHERE email = $1
	`, email)
	return scanUser(row)
}

// UserByID fetches an account by id.
func (r *Repository) UserByID(ctx context.Context, id uuid.UUID) (User, error) {
	row := r.db.QueryRowContext(ctx, `
		SELECT user_id, email, password_hash, role, name, COALESCE(phone_number, ''), created_at
		FROM users WHERE user_id = $1
	`, id)
	return scanUser(row)
}

// DeleteUser removes an account; dependent rows cascade.
func (r *Repository) DeleteUser(ctx context.Context, id uuid.UUID) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM users WHERE user_id = $1`, id)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrUserNotFound
	}
	return nil
}

// SaveRefreshToken stores a refresh token for rotation checks. Token
// timestamps have second precision, so a re-login within the same second
// mints the same token string; the upsert revives that row instead of
// tripping on the primary key.
func (r *Repository) SaveRefreshToken(ctx context.Context, token string, userID uuid.UUID, expiresAt time.Time) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO refresh_tokens (token, user_id, expires_at)
		VALUES ($1, $2, $3)
		ON CONFLICT (token) DO UPDATE SET expires_at = EXCLUDED.expires_at, revoked = FALSE
	`, token, userID, expiresAt)
	return err
}

// ConsumeRefreshToken marks a live refresh token revoked and returns its owner.
// Revoked, expired or unknown tokens all map to ErrTokenRevoked so callers
// cannot distinguish replayed rotations from stale ones.
func (r *Repository) ConsumeRefreshToken(ctx context.Context, token string) (uuid.UUID, error) {
	row := r.db.QueryRowContext(ctx, `
		UPDATE refresh_tokens
		SET revoked = TRUE
		WHERE token = $1 AND NOT revoked AND expires_at > NOW()
		RETURNING user_id
	`, token)
	var userID uuid.UUID
	if err := row.Scan(&userID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return uuid.Nil, ErrTokenRevoked
		}
		return uuid.Nil, err
	}
	return userID, nil
}

// RevokeUserTokens revokes every live refresh token of a user.
func (r *Repository) RevokeUserTokens(ctx context.Context, userID uuid.UUID) error {
	_, err := r.db.ExecContext(ctx, `
		UPDATE refresh_tokens SET revoked = TRUE WHERE user_id = $1 AND NOT revoked
	`, userID)
	return err
}

func scanUser(row *sql.Row) (User, error) {
	var u User
	if err := row.Scan(&u.ID, &u.Email, &u.PasswordHash, &u.Role, &u.Name, &u.Phone, &u.CreatedAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return User{}, ErrUserNotFound
		}
		return User{}, err
	}
	return u, nil
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "23505"
}
