package user

import (
	"errors"
	"net/http"
	"strconv"
	"strings"

	"community-api/internal/auth"
	"community-api/internal/httpx"
	"community-api/internal/observability"
	"community-api/internal/validate"

	"golang.org/x/crypto/bcrypt"
)

const (
	codeInvalidEmailFormat    = "invalid_email_format"
	codeInvalidPasswordFormat = "invalid_password_format"
	codeInvalidNicknameFormat = "invalid_nickname_format"
	codeInvalidUserID         = "invalid_user_id"
	codeAlreadyExistEmail     = "already_exist_email"
	codeAlreadyExistNickname  = "already_exist_nickname"
	codeAvailableEmail        = "available_email"
	codeAvailableNickname     = "available_nickname"
	codeNotFoundUser          = "not_found_user"
	codeSignupSuccess         = "signup_success"
	codeUpdateUserDataSuccess = "update_user_data_success"
	codeChangePasswordSuccess = "change_user_password_success"
	codeDeleteUserDataSuccess = "delete_user_data_success"
)

type Handler struct {
	repo     *Repository
	logger   *observability.Logger
	hashCost int
}

func NewHandler(repo *Repository, logger *observability.Logger) *Handler {
	return &Handler{repo: repo, logger: logger, hashCost: bcrypt.DefaultCost}
}

func (h *Handler) Signup(w http.ResponseWriter, r *http.Request) {
	var input SignupInput
	if err := httpx.DecodeJSON(w, r, &input); err != nil {
		httpx.WriteError(w, r, h.logger, err)
		return
	}

	input.Email = strings.TrimSpace(input.Email)
	input.Nickname = strings.TrimSpace(input.Nickname)
	if input.ProfileImagePath != nil {
		trimmed := strings.TrimSpace(*input.ProfileImagePath)
		input.ProfileImagePath = &trimmed
	}

	switch {
	case !validate.Email(input.Email):
		httpx.WriteError(w, r, h.logger, httpx.Validation(codeInvalidEmailFormat))
		return
	case !validate.Password(input.Password):
		httpx.WriteError(w, r, h.logger, httpx.Validation(codeInvalidPasswordFormat))
		return
	case !validate.Nickname(input.Nickname):
		httpx.WriteError(w, r, h.logger, httpx.Validation(codeInvalidNicknameFormat))
		return
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(input.Password), h.hashCost)
	if err != nil {
		httpx.WriteError(w, r, h.logger, httpx.Internal(err))
		return
	}

	result, err := h.repo.Create(r.Context(), input.Email, string(hash), input.Nickname, input.ProfileImagePath)
	if err != nil {
		httpx.WriteError(w, r, h.logger, mapError(err))
		return
	}

	h.logger.Info("user_signup", map[string]any{"user_id": result.UserID})
	httpx.WriteSuccess(w, http.StatusCreated, codeSignupSuccess, result)
}

func (h *Handler) CheckEmail(w http.ResponseWriter, r *http.Request) {
	email := strings.TrimSpace(r.URL.Query().Get("email"))
	if !validate.Email(email) {
		httpx.WriteError(w, r, h.logger, httpx.Validation(codeInvalidEmailFormat))
		return
	}

	taken, err := h.repo.EmailExists(r.Context(), email)
	if err != nil {
		httpx.WriteError(w, r, h.logger, httpx.Internal(err))
		return
	}
	if taken {
		httpx.WriteError(w, r, h.logger, httpx.Conflict(codeAlreadyExistEmail))
		return
	}

	httpx.WriteSuccess(w, http.StatusOK, codeAvailableEmail, nil)
}

func (h *Handler) CheckNickname(w http.ResponseWriter, r *http.Request) {
	nickname := strings.TrimSpace(r.URL.Query().Get("nickname"))
	if !validate.Nickname(nickname) {
		httpx.WriteError(w, r, h.logger, httpx.Validation(codeInvalidNicknameFormat))
		return
	}

	taken, err := h.repo.NicknameExists(r.Context(), nickname)
	if err != nil {
		httpx.WriteError(w, r, h.logger, httpx.Internal(err))
		return
	}
	if taken {
		httpx.WriteError(w, r, h.logger, httpx.Conflict(codeAlreadyExistNickname))
		return
	}

	httpx.WriteSuccess(w, http.StatusOK, codeAvailableNickname, nil)
}

func (h *Handler) Get(w http.ResponseWriter, r *http.Request) {
	userID, ok := h.selfFromPath(w, r)
	if !ok {
		return
	}

	profile, err := h.repo.Get(r.Context(), userID)
	if err != nil {
		httpx.WriteError(w, r, h.logger, mapError(err))
		return
	}

	httpx.WriteSuccess(w, http.StatusOK, "", profile)
}

func (h *Handler) Update(w http.ResponseWriter, r *http.Request) {
	userID, ok := h.selfFromPath(w, r)
	if !ok {
		return
	}

	var input UpdateInput
	if err := httpx.DecodeJSON(w, r, &input); err != nil {
		httpx.WriteError(w, r, h.logger, err)
		return
	}

	input.Nickname = strings.TrimSpace(input.Nickname)
	if !validate.Nickname(input.Nickname) {
		httpx.WriteError(w, r, h.logger, httpx.Validation(codeInvalidNicknameFormat))
		return
	}

	if err := h.repo.Update(r.Context(), userID, input); err != nil {
		httpx.WriteError(w, r, h.logger, mapError(err))
		return
	}

	httpx.WriteSuccess(w, http.StatusCreated, codeUpdateUserDataSuccess, nil)
}

func (h *Handler) ChangePassword(w http.ResponseWriter, r *http.Request) {
	userID, ok := h.selfFromPath(w, r)
	if !ok {
		return
	}

	var input passwordInput
	if err := httpx.DecodeJSON(w, r, &input); err != nil {
		httpx.WriteError(w, r, h.logger, err)
		return
	}
	if !validate.Password(input.Password) {
		httpx.WriteError(w, r, h.logger, httpx.Validation(codeInvalidPasswordFormat))
		return
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(input.Password), h.hashCost)
	if err != nil {
		httpx.WriteError(w, r, h.logger, httpx.Internal(err))
		return
	}

	if err := h.repo.UpdatePassword(r.Context(), userID, string(hash)); err != nil {
		httpx.WriteError(w, r, h.logger, mapError(err))
		return
	}

	httpx.WriteSuccess(w, http.StatusCreated, codeChangePasswordSuccess, nil)
}

func (h *Handler) Delete(w http.ResponseWriter, r *http.Request) {
	userID, ok := h.selfFromPath(w, r)
	if !ok {
		return
	}

	if err := h.repo.SoftDelete(r.Context(), userID); err != nil {
		httpx.WriteError(w, r, h.logger, mapError(err))
		return
	}

	h.logger.Info("user_deleted", map[string]any{"user_id": userID})
	httpx.WriteSuccess(w, http.StatusOK, codeDeleteUserDataSuccess, nil)
}

// selfFromPath parses {userId} and requires it to match the authenticated
// user.
func (h *Handler) selfFromPath(w http.ResponseWriter, r *http.Request) (int64, bool) {
	userID, err := strconv.ParseInt(r.PathValue("userId"), 10, 64)
	if err != nil || userID <= 0 {
		httpx.WriteError(w, r, h.logger, httpx.Validation(codeInvalidUserID))
		return 0, false
	}

	authID, ok := auth.UserID(r.Context())
	if !ok || authID != userID {
		httpx.WriteError(w, r, h.logger, httpx.Unauthorized())
		return 0, false
	}
	return userID, true
}

func mapError(err error) error {
	switch {
	case errors.Is(err, ErrNotFound):
		return httpx.NotFound(codeNotFoundUser)
	case errors.Is(err, ErrEmailTaken):
		return httpx.Conflict(codeAlreadyExistEmail)
	case errors.Is(err, ErrNicknameTaken):
		return httpx.Conflict(codeAlreadyExistNickname)
	default:
		return httpx.Internal(err)
	}
}
