package post

import (
	"math"
	"strconv"
	"time"
)

const (
	fileCategoryAttachment = 2

	maxTitleLen   = 26
	maxContentLen = 1500
)

type Post struct {
	ID               int64      `json:"postId"`
	Title            string     `json:"postTitle"`
	Content          string     `json:"postContent"`
	UserID           int64      `json:"userId"`
	Nickname         string     `json:"nickname"`
	FileID           *int64     `json:"fileId"`
	FilePath         *string    `json:"filePath"`
	ProfileImagePath *string    `json:"profileImagePath"`
	Likes            string     `json:"like"`
	CommentCount     string     `json:"commentCount"`
	Hits             string     `json:"hits"`
	CreatedAt        time.Time  `json:"createdAt"`
	UpdatedAt        time.Time  `json:"updatedAt"`
	DeletedAt        *time.Time `json:"deletedAt"`
}

type CreateInput struct {
	Title          string  `json:"postTitle"`
	Content        string  `json:"postContent"`
	AttachFilePath *string `json:"attachFilePath"`
}

// UpdateInput fields are optional. An empty AttachFilePath detaches the
// current file; a nil one leaves it as is.
type UpdateInput struct {
	Title          *string `json:"postTitle"`
	Content        *string `json:"postContent"`
	AttachFilePath *string `json:"attachFilePath"`
}

type idResult struct {
	PostID int64 `json:"postId"`
}

// FormatCount renders counters for display: values from one thousand up
// become "1.2K", from one million "3.4M", rounded to one decimal.
func FormatCount(n int64) string {
	switch {
	case n >= 1_000_000:
		return oneDecimal(float64(n)/1_000_000) + "M"
	case n >= 1_000:
		return oneDecimal(float64(n)/1_000) + "K"
	default:
		return strconv.FormatInt(n, 10)
	}
}

func oneDecimal(v float64) string {
	return strconv.FormatFloat(math.Round(v*10)/10, 'f', 1, 64)
}
