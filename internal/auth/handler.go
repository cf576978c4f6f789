package auth

import (
	"errors"
	"net/http"
	"strings"

	"community-api/internal/httpx"
	"community-api/internal/observability"
	"community-api/internal/validate"
)

const (
	codeInvalidCredentials = "invalid_credentials"
	codeInvalidEmailFormat = "invalid_email_format"
	codeLoginSuccess       = "login_success"
	codeNotFoundUser       = "not_found_user"
)

type Handler struct {
	service *Service
	logger  *observability.Logger
	metrics *observability.Metrics
}

func NewHandler(service *Service, logger *observability.Logger, metrics *observability.Metrics) *Handler {
	return &Handler{service: service, logger: logger, metrics: metrics}
}

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

func (h *Handler) Login(w http.ResponseWriter, r *http.Request) {
	var body loginRequest
	if err := httpx.DecodeJSON(w, r, &body); err != nil {
		httpx.WriteError(w, r, h.logger, err)
		return
	}

	body.Email = strings.TrimSpace(body.Email)
	if !validate.Email(body.Email) {
		httpx.WriteError(w, r, h.logger, httpx.Validation(codeInvalidEmailFormat))
		return
	}

	result, err := h.service.Login(r.Context(), body.Email, body.Password)
	if err != nil {
		if errors.Is(err, ErrInvalidCredentials) {
			h.metrics.AuthFailed("invalid_credentials")
			httpx.WriteError(w, r, h.logger, httpx.Validation(codeInvalidCredentials))
			return
		}
		httpx.WriteError(w, r, h.logger, httpx.Internal(err))
		return
	}

	h.logger.Info("user_login", map[string]any{"user_id": result.UserID})
	httpx.WriteSuccess(w, http.StatusOK, codeLoginSuccess, result)
}

func (h *Handler) Logout(w http.ResponseWriter, r *http.Request) {
	userID, ok := UserID(r.Context())
	if !ok {
		httpx.WriteError(w, r, h.logger, httpx.Unauthorized())
		return
	}

	if err := h.service.Logout(r.Context(), userID); err != nil {
		httpx.WriteError(w, r, h.logger, httpx.Internal(err))
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) Check(w http.ResponseWriter, r *http.Request) {
	userID, ok := UserID(r.Context())
	if !ok {
		httpx.WriteError(w, r, h.logger, httpx.Unauthorized())
		return
	}

	status, err := h.service.Status(r.Context(), userID)
	if err != nil {
		if errors.Is(err, ErrAccountNotFound) {
			httpx.WriteError(w, r, h.logger, httpx.NotFound(codeNotFoundUser))
			return
		}
		httpx.WriteError(w, r, h.logger, httpx.Internal(err))
		return
	}

	httpx.WriteSuccess(w, http.StatusOK, "", status)
}
