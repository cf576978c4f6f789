package user

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"community-api/internal/db"
)

var (
	ErrNotFound      = errors.New("user not found")
	ErrEmailTaken    = errors.New("email already registered")
	ErrNicknameTaken = errors.New("nickname already taken")
)

const (
	emailConstraint    = "users_email_active_uidx"
	nicknameConstraint = "users_nickname_active_uidx"
)

const (
	insertUserQuery = `
		INSERT INTO users (email, password_hash, nickname)
		VALUES ($1, $2, $3)
		RETURNING id
	`
	insertProfileFileQuery = `
		INSERT INTO files (user_id, file_path, file_category)
		VALUES ($1, $2, $3)
		RETURNING id
	`
	linkProfileFileQuery = `
		UPDATE users
		SET file_id = $2, updated_at = NOW()
		WHERE id = $1 AND deleted_at IS NULL
	`
	emailExistsQuery = `
		SELECT EXISTS (SELECT 1 FROM users WHERE email = $1 AND deleted_at IS NULL)
	`
	nicknameExistsQuery = `
		SELECT EXISTS (SELECT 1 FROM users WHERE nickname = $1 AND deleted_at IS NULL)
	`
	getProfileQuery = `
		SELECT u.id, u.email, u.nickname, f.file_path, u.created_at, u.updated_at
		FROM users u
		LEFT JOIN files f ON f.id = u.file_id AND f.deleted_at IS NULL
		WHERE u.id = $1 AND u.deleted_at IS NULL
	`
	updateNicknameQuery = `
		UPDATE users
		SET nickname = $2, updated_at = NOW()
		WHERE id = $1 AND deleted_at IS NULL
	`
	updatePasswordQuery = `
		UPDATE users
		SET password_hash = $2, updated_at = NOW()
		WHERE id = $1 AND deleted_at IS NULL
	`
	softDeleteQuery = `
		UPDATE users
		SET deleted_at = NOW(), session_token = NULL
		WHERE id = $1 AND deleted_at IS NULL
	`
)

var ActiveReadQueries = []string{emailExistsQuery, nicknameExistsQuery, getProfileQuery}

type Repository struct {
	db *sql.DB
}

func NewRepository(db *sql.DB) *Repository {
	return &Repository{db: db}
}

// Create inserts the user and, when a profile image path is given, its file
// row and link. Everything commits together or not at all.
func (r *Repository) Create(ctx context.Context, email, passwordHash, nickname string, profilePath *string) (SignupResult, error) {
	var result SignupResult

	err := db.WithTx(ctx, r.db, func(ctx context.Context, tx db.DBTX) error {
		if err := tx.QueryRowContext(ctx, insertUserQuery, email, passwordHash, nickname).Scan(&result.UserID); err != nil {
			return fmt.Errorf("insert user: %w", conflictError(err))
		}

		if profilePath == nil || *profilePath == "" {
			return nil
		}

		fileID, err := attachProfileFile(ctx, tx, result.UserID, *profilePath)
		if err != nil {
			return err
		}
		result.ProfileImageID = &fileID
		return nil
	})
	if err != nil {
		return SignupResult{}, err
	}
	return result, nil
}

func (r *Repository) EmailExists(ctx context.Context, email string) (bool, error) {
	return r.exists(ctx, emailExistsQuery, email)
}

func (r *Repository) NicknameExists(ctx context.Context, nickname string) (bool, error) {
	return r.exists(ctx, nicknameExistsQuery, nickname)
}

func (r *Repository) exists(ctx context.Context, query, arg string) (bool, error) {
	var found bool
	if err := r.db.QueryRowContext(ctx, query, arg).Scan(&found); err != nil {
		return false, fmt.Errorf("check user exists: %w", err)
	}
	return found, nil
}

func (r *Repository) Get(ctx context.Context, userID int64) (Profile, error) {
	var (
		p    Profile
		path sql.NullString
	)
	err := r.db.QueryRowContext(ctx, getProfileQuery, userID).
		Scan(&p.UserID, &p.Email, &p.Nickname, &path, &p.CreatedAt, &p.UpdatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return Profile{}, ErrNotFound
		}
		return Profile{}, fmt.Errorf("query user profile: %w", err)
	}

	if path.Valid {
		p.ProfileImagePath = &path.String
	}
	return p, nil
}

// Update changes the nickname and, when given, replaces the profile image in
// one transaction.
func (r *Repository) Update(ctx context.Context, userID int64, input UpdateInput) error {
	return db.WithTx(ctx, r.db, func(ctx context.Context, tx db.DBTX) error {
		res, err := tx.ExecContext(ctx, updateNicknameQuery, userID, input.Nickname)
		if err != nil {
			return fmt.Errorf("update nickname: %w", conflictError(err))
		}
		if err := requireRow(res); err != nil {
			return err
		}

		if input.ProfileImagePath == nil || *input.ProfileImagePath == "" {
			return nil
		}
		_, err = attachProfileFile(ctx, tx, userID, *input.ProfileImagePath)
		return err
	})
}

func (r *Repository) UpdatePassword(ctx context.Context, userID int64, passwordHash string) error {
	res, err := r.db.ExecContext(ctx, updatePasswordQuery, userID, passwordHash)
	if err != nil {
		return fmt.Errorf("update password: %w", err)
	}
	return requireRow(res)
}

// SoftDelete marks the user deleted and drops their session in one statement.
func (r *Repository) SoftDelete(ctx context.Context, userID int64) error {
	res, err := r.db.ExecContext(ctx, softDeleteQuery, userID)
	if err != nil {
		return fmt.Errorf("soft delete user: %w", err)
	}
	return requireRow(res)
}

func attachProfileFile(ctx context.Context, tx db.DBTX, userID int64, path string) (int64, error) {
	var fileID int64
	if err := tx.QueryRowContext(ctx, insertProfileFileQuery, userID, path, fileCategoryProfile).Scan(&fileID); err != nil {
		return 0, fmt.Errorf("insert profile file: %w", err)
	}

	res, err := tx.ExecContext(ctx, linkProfileFileQuery, userID, fileID)
	if err != nil {
		return 0, fmt.Errorf("link profile file: %w", err)
	}
	if err := requireRow(res); err != nil {
		return 0, err
	}
	return fileID, nil
}

func requireRow(res sql.Result) error {
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}
	if affected == 0 {
		return ErrNotFound
	}
	return nil
}

// conflictError maps unique violations on the active email and nickname
// indexes to their sentinel errors.
func conflictError(err error) error {
	constraint, ok := db.UniqueViolation(err)
	if !ok {
		return err
	}
	switch constraint {
	case emailConstraint:
		return ErrEmailTaken
	case nicknameConstraint:
		return ErrNicknameTaken
	default:
		return err
	}
}
