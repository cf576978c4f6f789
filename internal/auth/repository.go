package auth

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
)

var ErrAccountNotFound = errors.New("account not found")

const (
	findActiveByEmailQuery = `
		SELECT u.id, u.email, u.nickname, u.password_hash, f.file_path, u.created_at, u.updated_at, u.deleted_at
		FROM users u
		LEFT JOIN files f ON f.id = u.file_id AND f.deleted_at IS NULL
		WHERE u.email = $1 AND u.deleted_at IS NULL
	`
	findActiveByIDQuery = `
		SELECT u.id, u.email, u.nickname, u.password_hash, f.file_path, u.created_at, u.updated_at, u.deleted_at
		FROM users u
		LEFT JOIN files f ON f.id = u.file_id AND f.deleted_at IS NULL
		WHERE u.id = $1 AND u.deleted_at IS NULL
	`
	getSessionTokenQuery = `
		SELECT session_token
		FROM users
		WHERE id = $1 AND deleted_at IS NULL
	`
	setSessionTokenQuery = `
		UPDATE users
		SET session_token = $2
		WHERE id = $1 AND deleted_at IS NULL
	`
	clearSessionTokenQuery = `
		UPDATE users
		SET session_token = NULL
		WHERE id = $1
	`
	clearAllSessionTokensQuery = `
		UPDATE users
		SET session_token = NULL
		WHERE session_token IS NOT NULL
	`
)

// ActiveReadQueries lists every read in this package so the soft-delete
// filter can be asserted in tests.
var ActiveReadQueries = []string{findActiveByEmailQuery, findActiveByIDQuery, getSessionTokenQuery}

type Repository struct {
	db *sql.DB
}

func NewRepository(db *sql.DB) *Repository {
	return &Repository{db: db}
}

func (r *Repository) FindActiveByEmail(ctx context.Context, email string) (Account, error) {
	return r.findOne(ctx, findActiveByEmailQuery, email)
}

func (r *Repository) FindActiveByID(ctx context.Context, userID int64) (Account, error) {
	return r.findOne(ctx, findActiveByIDQuery, userID)
}

func (r *Repository) findOne(ctx context.Context, query string, arg any) (Account, error) {
	var (
		account     Account
		profilePath sql.NullString
		deletedAt   sql.NullTime
	)
	err := r.db.QueryRowContext(ctx, query, arg).Scan(
		&account.ID,
		&account.Email,
		&account.Nickname,
		&account.PasswordHash,
		&profilePath,
		&account.CreatedAt,
		&account.UpdatedAt,
		&deletedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return Account{}, ErrAccountNotFound
		}
		return Account{}, fmt.Errorf("query account: %w", err)
	}

	if profilePath.Valid {
		account.ProfileImagePath = &profilePath.String
	}
	if deletedAt.Valid {
		value := deletedAt.Time.UTC()
		account.DeletedAt = &value
	}
	return account, nil
}

// GetSessionToken returns the stored token for an active user. ok is false
// when the user does not exist or has no session.
func (r *Repository) GetSessionToken(ctx context.Context, userID int64) (string, bool, error) {
	var token sql.NullString
	err := r.db.QueryRowContext(ctx, getSessionTokenQuery, userID).Scan(&token)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return "", false, nil
		}
		return "", false, fmt.Errorf("query session token: %w", err)
	}
	if !token.Valid || token.String == "" {
		return "", false, nil
	}
	return token.String, true, nil
}

// SetSessionToken overwrites the user's token in one statement, which
// invalidates any earlier token.
func (r *Repository) SetSessionToken(ctx context.Context, userID int64, token string) error {
	res, err := r.db.ExecContext(ctx, setSessionTokenQuery, userID, token)
	if err != nil {
		return fmt.Errorf("set session token: %w", err)
	}

	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("set session token rows affected: %w", err)
	}
	if affected == 0 {
		return ErrAccountNotFound
	}
	return nil
}

func (r *Repository) ClearSessionToken(ctx context.Context, userID int64) error {
	if _, err := r.db.ExecContext(ctx, clearSessionTokenQuery, userID); err != nil {
		return fmt.Errorf("clear session token: %w", err)
	}
	return nil
}

func (r *Repository) ClearAllSessionTokens(ctx context.Context) (int64, error) {
	res, err := r.db.ExecContext(ctx, clearAllSessionTokensQuery)
	if err != nil {
		return 0, fmt.Errorf("clear all session tokens: %w", err)
	}

	affected, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("clear all session tokens rows affected: %w", err)
	}
	return affected, nil
}
