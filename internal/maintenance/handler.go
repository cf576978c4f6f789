package maintenance

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	"community-api/internal/httpx"
	"community-api/internal/observability"

	"github.com/golang-jwt/jwt/v5"
)

const (
	tokenType = "maintenance"

	codeNotFound      = "not_found"
	codeSessionsReset = "sessions_reset"
)

type SessionResetter interface {
	ResetSessions(ctx context.Context) (int64, error)
}

type KeyPruner interface {
	Prune() int
}

// ResetHandler clears every session token and prunes idle rate-limit keys.
// Callers authenticate with an HS256 bearer token whose typ is
// "maintenance". The route answers 404 when no secret is configured.
type ResetHandler struct {
	sessions SessionResetter
	limiter  KeyPruner
	logger   *observability.Logger
	secret   []byte
}

func NewResetHandler(sessions SessionResetter, limiter KeyPruner, logger *observability.Logger, secret string) *ResetHandler {
	return &ResetHandler{
		sessions: sessions,
		limiter:  limiter,
		logger:   logger,
		secret:   []byte(strings.TrimSpace(secret)),
	}
}

type resetResult struct {
	ClearedSessions     int64 `json:"clearedSessions"`
	PrunedRateLimitKeys int   `json:"prunedRateLimitKeys"`
}

func (h *ResetHandler) Handle(w http.ResponseWriter, r *http.Request) {
	if len(h.secret) == 0 {
		httpx.WriteError(w, r, h.logger, httpx.NotFound(codeNotFound))
		return
	}

	if !h.authorized(r) {
		h.logger.Warn("maintenance_unauthorized", map[string]any{"remote_addr": r.RemoteAddr})
		httpx.WriteError(w, r, h.logger, httpx.Unauthorized())
		return
	}

	cleared, err := h.sessions.ResetSessions(r.Context())
	if err != nil {
		httpx.WriteError(w, r, h.logger, httpx.Internal(fmt.Errorf("reset sessions: %w", err)))
		return
	}

	pruned := 0
	if h.limiter != nil {
		pruned = h.limiter.Prune()
	}

	h.logger.Info("maintenance_sessions_reset", map[string]any{
		"cleared_sessions":       cleared,
		"pruned_rate_limit_keys": pruned,
	})
	httpx.WriteSuccess(w, http.StatusOK, codeSessionsReset, resetResult{
		ClearedSessions:     cleared,
		PrunedRateLimitKeys: pruned,
	})
}

func (h *ResetHandler) authorized(r *http.Request) bool {
	parts := strings.SplitN(strings.TrimSpace(r.Header.Get("Authorization")), " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
		return false
	}
	tokenStr := strings.TrimSpace(parts[1])
	if tokenStr == "" {
		return false
	}

	claims := jwt.MapClaims{}
	token, err := jwt.ParseWithClaims(tokenStr, claims, func(*jwt.Token) (any, error) {
		return h.secret, nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}), jwt.WithExpirationRequired())
	if err != nil || !token.Valid {
		return false
	}

	typ, _ := claims["typ"].(string)
	return typ == tokenType
}

// IssueToken signs a maintenance token valid for ttl.
func IssueToken(secret string, ttl time.Duration, now time.Time) (string, error) {
	secret = strings.TrimSpace(secret)
	if secret == "" {
		return "", fmt.Errorf("maintenance secret is empty")
	}

	now = now.UTC()
	claims := jwt.MapClaims{
		"sub": "maintenance",
		"iat": now.Unix(),
		"exp": now.Add(ttl).Unix(),
		"typ": tokenType,
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(secret))
	if err != nil {
		return "", fmt.Errorf("sign jwt: %w", err)
	}
	return signed, nil
}
