package comment

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"community-api/internal/db"
)

var (
	ErrNotFound     = errors.New("comment not found")
	ErrPostNotFound = errors.New("post not found")
	ErrUserNotFound = errors.New("author not found")
)

type Comment struct {
	ID               int64     `json:"commentId"`
	PostID           int64     `json:"postId"`
	UserID           int64     `json:"userId"`
	Nickname         string    `json:"nickname"`
	Content          string    `json:"commentContent"`
	ProfileImagePath *string   `json:"profileImagePath"`
	CreatedAt        time.Time `json:"createdAt"`
	UpdatedAt        time.Time `json:"updatedAt"`
}

const (
	listCommentsQuery = `
		SELECT c.id, c.post_id, c.user_id, c.nickname, c.comment_content, pf.file_path, c.created_at, c.updated_at
		FROM comments c
		LEFT JOIN users u ON u.id = c.user_id
		LEFT JOIN files pf ON pf.id = u.file_id AND pf.deleted_at IS NULL
		WHERE c.post_id = $1 AND c.deleted_at IS NULL
		ORDER BY c.created_at ASC, c.id ASC
	`
	activePostQuery = `
		SELECT EXISTS (
			SELECT 1 FROM posts
			WHERE id = $1 AND deleted_at IS NULL
		)
	`
	lockActivePostQuery = `
		SELECT id FROM posts
		WHERE id = $1 AND deleted_at IS NULL
		FOR UPDATE
	`
	authorNicknameQuery = `
		SELECT nickname FROM users
		WHERE id = $1 AND deleted_at IS NULL
	`
	incrementCountQuery = `
		UPDATE posts
		SET comment_count = comment_count + 1
		WHERE id = $1 AND deleted_at IS NULL
	`
	insertCommentQuery = `
		INSERT INTO comments (post_id, user_id, nickname, comment_content)
		VALUES ($1, $2, $3, $4)
		RETURNING id
	`
	updateCommentQuery = `
		UPDATE comments
		SET comment_content = $4, updated_at = NOW()
		WHERE id = $1 AND post_id = $2 AND user_id = $3 AND deleted_at IS NULL
	`
	softDeleteCommentQuery = `
		UPDATE comments
		SET deleted_at = NOW()
		WHERE id = $1 AND post_id = $2 AND user_id = $3 AND deleted_at IS NULL
	`
	decrementCountQuery = `
		UPDATE posts
		SET comment_count = GREATEST(comment_count - 1, 0)
		WHERE id = $1 AND deleted_at IS NULL
	`
)

var ActiveReadQueries = []string{listCommentsQuery, activePostQuery, lockActivePostQuery, authorNicknameQuery}

type Repository struct {
	db *sql.DB
}

func NewRepository(db *sql.DB) *Repository {
	return &Repository{db: db}
}

// List returns the post's live comments. A missing or deleted post is
// ErrPostNotFound, never an empty list.
func (r *Repository) List(ctx context.Context, postID int64) ([]Comment, error) {
	var active bool
	if err := r.db.QueryRowContext(ctx, activePostQuery, postID).Scan(&active); err != nil {
		return nil, fmt.Errorf("query post: %w", err)
	}
	if !active {
		return nil, ErrPostNotFound
	}

	rows, err := r.db.QueryContext(ctx, listCommentsQuery, postID)
	if err != nil {
		return nil, fmt.Errorf("query comments: %w", err)
	}
	defer rows.Close()

	comments := make([]Comment, 0)
	for rows.Next() {
		var (
			c    Comment
			path sql.NullString
		)
		if err := rows.Scan(&c.ID, &c.PostID, &c.UserID, &c.Nickname, &c.Content, &path, &c.CreatedAt, &c.UpdatedAt); err != nil {
			return nil, fmt.Errorf("scan comment: %w", err)
		}
		if path.Valid {
			c.ProfileImagePath = &path.String
		}
		comments = append(comments, c)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate comments: %w", err)
	}
	return comments, nil
}

// Create inserts the comment and bumps the post's comment_count together.
func (r *Repository) Create(ctx context.Context, postID, userID int64, content string) (int64, error) {
	var commentID int64

	err := db.WithTx(ctx, r.db, func(ctx context.Context, tx db.DBTX) error {
		var nickname string
		if err := tx.QueryRowContext(ctx, authorNicknameQuery, userID).Scan(&nickname); err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				return ErrUserNotFound
			}
			return fmt.Errorf("query author: %w", err)
		}

		res, err := tx.ExecContext(ctx, incrementCountQuery, postID)
		if err != nil {
			return fmt.Errorf("increment comment count: %w", err)
		}
		if err := requireRow(res, ErrPostNotFound); err != nil {
			return err
		}

		if err := tx.QueryRowContext(ctx, insertCommentQuery, postID, userID, nickname, content).Scan(&commentID); err != nil {
			return fmt.Errorf("insert comment: %w", err)
		}
		return nil
	})
	if err != nil {
		return 0, err
	}
	return commentID, nil
}

// Update edits an author's comment while its post is still live.
func (r *Repository) Update(ctx context.Context, postID, commentID, userID int64, content string) error {
	return db.WithTx(ctx, r.db, func(ctx context.Context, tx db.DBTX) error {
		if err := lockActivePost(ctx, tx, postID); err != nil {
			return err
		}

		res, err := tx.ExecContext(ctx, updateCommentQuery, commentID, postID, userID, content)
		if err != nil {
			return fmt.Errorf("update comment: %w", err)
		}
		return requireRow(res, ErrNotFound)
	})
}

// SoftDelete removes an author's comment and decrements the post's
// comment_count in one transaction. Comments of a deleted post stay as they
// are.
func (r *Repository) SoftDelete(ctx context.Context, postID, commentID, userID int64) error {
	return db.WithTx(ctx, r.db, func(ctx context.Context, tx db.DBTX) error {
		if err := lockActivePost(ctx, tx, postID); err != nil {
			return err
		}

		res, err := tx.ExecContext(ctx, softDeleteCommentQuery, commentID, postID, userID)
		if err != nil {
			return fmt.Errorf("soft delete comment: %w", err)
		}
		if err := requireRow(res, ErrNotFound); err != nil {
			return err
		}

		if _, err := tx.ExecContext(ctx, decrementCountQuery, postID); err != nil {
			return fmt.Errorf("decrement comment count: %w", err)
		}
		return nil
	})
}

// lockActivePost holds the post row until commit so it cannot be deleted
// underneath the comment write.
func lockActivePost(ctx context.Context, tx db.DBTX, postID int64) error {
	var id int64
	if err := tx.QueryRowContext(ctx, lockActivePostQuery, postID).Scan(&id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return ErrPostNotFound
		}
		return fmt.Errorf("lock post: %w", err)
	}
	return nil
}

func requireRow(res sql.Result, notFound error) error {
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}
	if affected == 0 {
		return notFound
	}
	return nil
}
