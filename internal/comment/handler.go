package comment

import (
	"errors"
	"net/http"
	"strconv"
	"strings"

	"community-api/internal/auth"
	"community-api/internal/httpx"
	"community-api/internal/observability"
	"community-api/internal/validate"
)

const maxContentLen = 1000

const (
	codeInvalidCommentContent = "invalid_comment_content"
	codeInvalidPostID         = "invalid_post_id"
	codeInvalidCommentID      = "invalid_comment_id"
	codeNotFoundComment       = "not_found_comment"
	codeNotFoundPost          = "not_found_post"
	codeNotFoundUser          = "not_found_user"
	codeWriteCommentSuccess   = "write_comment_success"
	codeUpdateCommentSuccess  = "update_comment_success"
	codeDeleteCommentSuccess  = "delete_comment_success"
)

type Handler struct {
	repo   *Repository
	logger *observability.Logger
}

func NewHandler(repo *Repository, logger *observability.Logger) *Handler {
	return &Handler{repo: repo, logger: logger}
}

type contentInput struct {
	Content string `json:"commentContent"`
}

type idResult struct {
	CommentID int64 `json:"commentId"`
}

func (h *Handler) List(w http.ResponseWriter, r *http.Request) {
	postID, ok := h.pathID(w, r, "postId", codeInvalidPostID)
	if !ok {
		return
	}

	comments, err := h.repo.List(r.Context(), postID)
	if err != nil {
		httpx.WriteError(w, r, h.logger, mapError(err))
		return
	}

	httpx.WriteSuccess(w, http.StatusOK, "", comments)
}

func (h *Handler) Create(w http.ResponseWriter, r *http.Request) {
	userID, ok := auth.UserID(r.Context())
	if !ok {
		httpx.WriteError(w, r, h.logger, httpx.Unauthorized())
		return
	}
	postID, ok := h.pathID(w, r, "postId", codeInvalidPostID)
	if !ok {
		return
	}
	content, ok := h.readContent(w, r)
	if !ok {
		return
	}

	commentID, err := h.repo.Create(r.Context(), postID, userID, content)
	if err != nil {
		httpx.WriteError(w, r, h.logger, mapError(err))
		return
	}

	httpx.WriteSuccess(w, http.StatusCreated, codeWriteCommentSuccess, idResult{CommentID: commentID})
}

func (h *Handler) Update(w http.ResponseWriter, r *http.Request) {
	userID, ok := auth.UserID(r.Context())
	if !ok {
		httpx.WriteError(w, r, h.logger, httpx.Unauthorized())
		return
	}
	postID, ok := h.pathID(w, r, "postId", codeInvalidPostID)
	if !ok {
		return
	}
	commentID, ok := h.pathID(w, r, "commentId", codeInvalidCommentID)
	if !ok {
		return
	}
	content, ok := h.readContent(w, r)
	if !ok {
		return
	}

	if err := h.repo.Update(r.Context(), postID, commentID, userID, content); err != nil {
		httpx.WriteError(w, r, h.logger, mapError(err))
		return
	}

	httpx.WriteSuccess(w, http.StatusOK, codeUpdateCommentSuccess, nil)
}

func (h *Handler) Delete(w http.ResponseWriter, r *http.Request) {
	userID, ok := auth.UserID(r.Context())
	if !ok {
		httpx.WriteError(w, r, h.logger, httpx.Unauthorized())
		return
	}
	postID, ok := h.pathID(w, r, "postId", codeInvalidPostID)
	if !ok {
		return
	}
	commentID, ok := h.pathID(w, r, "commentId", codeInvalidCommentID)
	if !ok {
		return
	}

	if err := h.repo.SoftDelete(r.Context(), postID, commentID, userID); err != nil {
		httpx.WriteError(w, r, h.logger, mapError(err))
		return
	}

	httpx.WriteSuccess(w, http.StatusOK, codeDeleteCommentSuccess, nil)
}

func (h *Handler) pathID(w http.ResponseWriter, r *http.Request, name, code string) (int64, bool) {
	id, err := strconv.ParseInt(r.PathValue(name), 10, 64)
	if err != nil || id <= 0 {
		httpx.WriteError(w, r, h.logger, httpx.Validation(code))
		return 0, false
	}
	return id, true
}

// readContent decodes the body and returns the trimmed content, which must
// hold 1 to 1000 characters.
func (h *Handler) readContent(w http.ResponseWriter, r *http.Request) (string, bool) {
	var input contentInput
	if err := httpx.DecodeJSON(w, r, &input); err != nil {
		httpx.WriteError(w, r, h.logger, err)
		return "", false
	}

	content := strings.TrimSpace(input.Content)
	if !validate.Length(content, 1, maxContentLen) {
		httpx.WriteError(w, r, h.logger, httpx.Validation(codeInvalidCommentContent))
		return "", false
	}
	return content, true
}

func mapError(err error) error {
	switch {
	case errors.Is(err, ErrNotFound):
		return httpx.NotFound(codeNotFoundComment)
	case errors.Is(err, ErrPostNotFound):
		return httpx.NotFound(codeNotFoundPost)
	case errors.Is(err, ErrUserNotFound):
		return httpx.NotFound(codeNotFoundUser)
	default:
		return httpx.Internal(err)
	}
}
