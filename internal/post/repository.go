package post

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"community-api/internal/db"
)

var (
	ErrNotFound     = errors.New("post not found")
	ErrUserNotFound = errors.New("author not found")
)

const postColumns = `
	p.id, p.title, p.content, p.user_id, p.nickname, p.file_id, f.file_path, pf.file_path,
	p.likes, p.comment_count, p.hits, p.created_at, p.updated_at, p.deleted_at
`

const postJoins = `
	LEFT JOIN files f ON f.id = p.file_id AND f.deleted_at IS NULL
	LEFT JOIN users u ON u.id = p.user_id
	LEFT JOIN files pf ON pf.id = u.file_id AND pf.deleted_at IS NULL
`

const (
	authorNicknameQuery = `
		SELECT nickname FROM users
		WHERE id = $1 AND deleted_at IS NULL
	`
	insertPostQuery = `
		INSERT INTO posts (user_id, nickname, title, content)
		VALUES ($1, $2, $3, $4)
		RETURNING id
	`
	insertAttachmentQuery = `
		INSERT INTO files (user_id, post_id, file_path, file_category)
		VALUES ($1, $2, $3, $4)
		RETURNING id
	`
	linkAttachmentQuery = `
		UPDATE posts
		SET file_id = $2
		WHERE id = $1 AND deleted_at IS NULL
	`
	listPostsQuery = `
		SELECT ` + postColumns + `
		FROM posts p` + postJoins + `
		WHERE p.deleted_at IS NULL
		ORDER BY p.created_at DESC, p.id DESC
		LIMIT $1 OFFSET $2
	`
	getPostQuery = `
		WITH p AS (
			UPDATE posts
			SET hits = hits + 1
			WHERE id = $1 AND deleted_at IS NULL
			RETURNING id, title, content, user_id, nickname, file_id, likes, comment_count, hits, created_at, updated_at, deleted_at
		)
		SELECT ` + postColumns + `
		FROM p` + postJoins
	updatePostQuery = `
		UPDATE posts
		SET title = COALESCE($3, title), content = COALESCE($4, content), updated_at = NOW()
		WHERE id = $1 AND user_id = $2 AND deleted_at IS NULL
	`
	detachFileQuery = `
		UPDATE posts
		SET file_id = NULL
		WHERE id = $1 AND deleted_at IS NULL
	`
	softDeletePostQuery = `
		UPDATE posts
		SET deleted_at = NOW()
		WHERE id = $1 AND user_id = $2 AND deleted_at IS NULL
	`
)

var ActiveReadQueries = []string{authorNicknameQuery, listPostsQuery, getPostQuery}

type Repository struct {
	db *sql.DB
}

func NewRepository(db *sql.DB) *Repository {
	return &Repository{db: db}
}

// Create resolves the author's nickname, inserts the post and links an
// optional attachment in one transaction.
func (r *Repository) Create(ctx context.Context, userID int64, input CreateInput) (int64, error) {
	var postID int64

	err := db.WithTx(ctx, r.db, func(ctx context.Context, tx db.DBTX) error {
		var nickname string
		if err := tx.QueryRowContext(ctx, authorNicknameQuery, userID).Scan(&nickname); err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				return ErrUserNotFound
			}
			return fmt.Errorf("query author: %w", err)
		}

		if err := tx.QueryRowContext(ctx, insertPostQuery, userID, nickname, input.Title, input.Content).Scan(&postID); err != nil {
			return fmt.Errorf("insert post: %w", err)
		}

		if input.AttachFilePath == nil || *input.AttachFilePath == "" {
			return nil
		}
		return attach(ctx, tx, userID, postID, *input.AttachFilePath)
	})
	if err != nil {
		return 0, err
	}
	return postID, nil
}

func (r *Repository) List(ctx context.Context, offset, limit int) ([]Post, error) {
	rows, err := r.db.QueryContext(ctx, listPostsQuery, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("query posts: %w", err)
	}
	defer rows.Close()

	posts := make([]Post, 0, limit)
	for rows.Next() {
		p, err := scanPost(rows)
		if err != nil {
			return nil, err
		}
		posts = append(posts, p)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate posts: %w", err)
	}
	return posts, nil
}

// Get returns an active post and counts the view in the same statement.
func (r *Repository) Get(ctx context.Context, postID int64) (Post, error) {
	p, err := scanPost(r.db.QueryRowContext(ctx, getPostQuery, postID))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return Post{}, ErrNotFound
		}
		return Post{}, err
	}
	return p, nil
}

// Update applies the non-nil fields of input to a post owned by userID.
// Posts that do not exist or belong to someone else report ErrNotFound.
func (r *Repository) Update(ctx context.Context, postID, userID int64, input UpdateInput) error {
	return db.WithTx(ctx, r.db, func(ctx context.Context, tx db.DBTX) error {
		res, err := tx.ExecContext(ctx, updatePostQuery, postID, userID, nullable(input.Title), nullable(input.Content))
		if err != nil {
			return fmt.Errorf("update post: %w", err)
		}
		if err := requireRow(res); err != nil {
			return err
		}

		switch {
		case input.AttachFilePath == nil:
			return nil
		case *input.AttachFilePath == "":
			if _, err := tx.ExecContext(ctx, detachFileQuery, postID); err != nil {
				return fmt.Errorf("detach file: %w", err)
			}
			return nil
		default:
			return attach(ctx, tx, userID, postID, *input.AttachFilePath)
		}
	})
}

func (r *Repository) SoftDelete(ctx context.Context, postID, userID int64) error {
	res, err := r.db.ExecContext(ctx, softDeletePostQuery, postID, userID)
	if err != nil {
		return fmt.Errorf("soft delete post: %w", err)
	}
	return requireRow(res)
}

func attach(ctx context.Context, tx db.DBTX, userID, postID int64, path string) error {
	var fileID int64
	if err := tx.QueryRowContext(ctx, insertAttachmentQuery, userID, postID, path, fileCategoryAttachment).Scan(&fileID); err != nil {
		return fmt.Errorf("insert attachment: %w", err)
	}
	if _, err := tx.ExecContext(ctx, linkAttachmentQuery, postID, fileID); err != nil {
		return fmt.Errorf("link attachment: %w", err)
	}
	return nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanPost(row rowScanner) (Post, error) {
	var (
		p                     Post
		fileID                sql.NullInt64
		filePath, profilePath sql.NullString
		likes, comments, hits int64
		deletedAt             sql.NullTime
	)
	err := row.Scan(
		&p.ID, &p.Title, &p.Content, &p.UserID, &p.Nickname, &fileID, &filePath, &profilePath,
		&likes, &comments, &hits, &p.CreatedAt, &p.UpdatedAt, &deletedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return Post{}, err
		}
		return Post{}, fmt.Errorf("scan post: %w", err)
	}

	if fileID.Valid {
		p.FileID = &fileID.Int64
	}
	if filePath.Valid {
		p.FilePath = &filePath.String
	}
	if profilePath.Valid {
		p.ProfileImagePath = &profilePath.String
	}
	if deletedAt.Valid {
		p.DeletedAt = &deletedAt.Time
	}
	p.Likes = FormatCount(likes)
	p.CommentCount = FormatCount(comments)
	p.Hits = FormatCount(hits)
	return p, nil
}

func nullable(s *string) sql.NullString {
	if s == nil {
		return sql.NullString{}
	}
	return sql.NullString{String: *s, Valid: true}
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
