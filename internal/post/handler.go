package post

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

const maxPageLimit = 100

const (
	codeInvalidPostTitle         = "invalid_post_title"
	codeInvalidPostTitleLength   = "invalid_post_title_length"
	codeInvalidPostContent       = "invalid_post_content"
	codeInvalidPostContentLength = "invalid_post_content_length"
	codeInvalidPostID            = "invalid_post_id"
	codeInvalidOffsetOrLimit     = "invalid_offset_or_limit"
	codeNotFoundPost             = "not_found_post"
	codeNotFoundUser             = "not_found_user"
	codeNotASinglePost           = "not_a_single_post"
	codeWritePostSuccess         = "write_post_success"
	codeGetPostListSuccess       = "get_post_list_success"
	codeUpdatePostSuccess        = "update_post_success"
	codeDeletePostSuccess        = "delete_post_success"
)

type Handler struct {
	repo   *Repository
	logger *observability.Logger
}

func NewHandler(repo *Repository, logger *observability.Logger) *Handler {
	return &Handler{repo: repo, logger: logger}
}

func (h *Handler) Create(w http.ResponseWriter, r *http.Request) {
	userID, ok := auth.UserID(r.Context())
	if !ok {
		httpx.WriteError(w, r, h.logger, httpx.Unauthorized())
		return
	}

	var input CreateInput
	if err := httpx.DecodeJSON(w, r, &input); err != nil {
		httpx.WriteError(w, r, h.logger, err)
		return
	}

	input.Title = strings.TrimSpace(input.Title)
	input.Content = strings.TrimSpace(input.Content)
	if err := validateTitle(input.Title); err != nil {
		httpx.WriteError(w, r, h.logger, err)
		return
	}
	if err := validateContent(input.Content); err != nil {
		httpx.WriteError(w, r, h.logger, err)
		return
	}
	if input.AttachFilePath != nil {
		trimmed := strings.TrimSpace(*input.AttachFilePath)
		input.AttachFilePath = &trimmed
	}

	postID, err := h.repo.Create(r.Context(), userID, input)
	if err != nil {
		httpx.WriteError(w, r, h.logger, mapError(err))
		return
	}

	httpx.WriteSuccess(w, http.StatusCreated, codeWritePostSuccess, idResult{PostID: postID})
}

func (h *Handler) List(w http.ResponseWriter, r *http.Request) {
	offset, limit, ok := parsePage(r)
	if !ok {
		httpx.WriteError(w, r, h.logger, httpx.Validation(codeInvalidOffsetOrLimit))
		return
	}

	posts, err := h.repo.List(r.Context(), offset, limit)
	if err != nil {
		httpx.WriteError(w, r, h.logger, httpx.Internal(err))
		return
	}
	if len(posts) == 0 {
		httpx.WriteError(w, r, h.logger, httpx.NotFound(codeNotASinglePost))
		return
	}

	httpx.WriteSuccess(w, http.StatusOK, codeGetPostListSuccess, posts)
}

func (h *Handler) Get(w http.ResponseWriter, r *http.Request) {
	postID, ok := h.postIDFromPath(w, r)
	if !ok {
		return
	}

	p, err := h.repo.Get(r.Context(), postID)
	if err != nil {
		httpx.WriteError(w, r, h.logger, mapError(err))
		return
	}

	httpx.WriteSuccess(w, http.StatusOK, "", p)
}

func (h *Handler) Update(w http.ResponseWriter, r *http.Request) {
	userID, ok := auth.UserID(r.Context())
	if !ok {
		httpx.WriteError(w, r, h.logger, httpx.Unauthorized())
		return
	}
	postID, ok := h.postIDFromPath(w, r)
	if !ok {
		return
	}

	var input UpdateInput
	if err := httpx.DecodeJSON(w, r, &input); err != nil {
		httpx.WriteError(w, r, h.logger, err)
		return
	}

	if input.Title != nil {
		trimmed := strings.TrimSpace(*input.Title)
		if err := validateTitle(trimmed); err != nil {
			httpx.WriteError(w, r, h.logger, err)
			return
		}
		input.Title = &trimmed
	}
	if input.Content != nil {
		trimmed := strings.TrimSpace(*input.Content)
		if err := validateContent(trimmed); err != nil {
			httpx.WriteError(w, r, h.logger, err)
			return
		}
		input.Content = &trimmed
	}
	if input.AttachFilePath != nil {
		trimmed := strings.TrimSpace(*input.AttachFilePath)
		input.AttachFilePath = &trimmed
	}

	if err := h.repo.Update(r.Context(), postID, userID, input); err != nil {
		httpx.WriteError(w, r, h.logger, mapError(err))
		return
	}

	httpx.WriteSuccess(w, http.StatusOK, codeUpdatePostSuccess, idResult{PostID: postID})
}

func (h *Handler) Delete(w http.ResponseWriter, r *http.Request) {
	userID, ok := auth.UserID(r.Context())
	if !ok {
		httpx.WriteError(w, r, h.logger, httpx.Unauthorized())
		return
	}
	postID, ok := h.postIDFromPath(w, r)
	if !ok {
		return
	}

	if err := h.repo.SoftDelete(r.Context(), postID, userID); err != nil {
		httpx.WriteError(w, r, h.logger, mapError(err))
		return
	}

	httpx.WriteSuccess(w, http.StatusOK, codeDeletePostSuccess, idResult{PostID: postID})
}

func (h *Handler) postIDFromPath(w http.ResponseWriter, r *http.Request) (int64, bool) {
	postID, err := strconv.ParseInt(r.PathValue("postId"), 10, 64)
	if err != nil || postID <= 0 {
		httpx.WriteError(w, r, h.logger, httpx.Validation(codeInvalidPostID))
		return 0, false
	}
	return postID, true
}

// parsePage requires both offset and limit as base-10 integers with
// offset >= 0 and 1 <= limit <= maxPageLimit.
func parsePage(r *http.Request) (int, int, bool) {
	query := r.URL.Query()
	offset, err := strconv.Atoi(query.Get("offset"))
	if err != nil || offset < 0 {
		return 0, 0, false
	}
	limit, err := strconv.Atoi(query.Get("limit"))
	if err != nil || limit < 1 || limit > maxPageLimit {
		return 0, 0, false
	}
	return offset, limit, true
}

func validateTitle(title string) error {
	if title == "" {
		return httpx.Validation(codeInvalidPostTitle)
	}
	if !validate.Length(title, 1, maxTitleLen) {
		return httpx.Validation(codeInvalidPostTitleLength)
	}
	return nil
}

func validateContent(content string) error {
	if content == "" {
		return httpx.Validation(codeInvalidPostContent)
	}
	if !validate.Length(content, 1, maxContentLen) {
		return httpx.Validation(codeInvalidPostContentLength)
	}
	return nil
}

func mapError(err error) error {
	switch {
	case errors.Is(err, ErrNotFound):
		return httpx.NotFound(codeNotFoundPost)
	case errors.Is(err, ErrUserNotFound):
		return httpx.NotFound(codeNotFoundUser)
	default:
		return httpx.Internal(err)
	}
}
