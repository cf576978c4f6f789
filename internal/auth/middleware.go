package auth

import (
	"context"
	"net/http"
	"strconv"
	"strings"

	"community-api/internal/httpx"
	"community-api/internal/observability"
)

const (
	HeaderUserID  = "userId"
	HeaderSession = "session"
)

type userIDKey struct{}

// WithUserID returns a context carrying an authenticated user id.
func WithUserID(ctx context.Context, userID int64) context.Context {
	return context.WithValue(ctx, userIDKey{}, userID)
}

// UserID returns the id stored by the Gate. ok is false on unprotected routes.
func UserID(ctx context.Context) (int64, bool) {
	id, ok := ctx.Value(userIDKey{}).(int64)
	return id, ok && id > 0
}

type Authenticator interface {
	IsAuthenticated(ctx context.Context, userID int64, token string) (bool, error)
}

// Gate protects routes with the userId and session headers. Every check is a
// database round trip against the user's current token.
type Gate struct {
	auth    Authenticator
	logger  *observability.Logger
	metrics *observability.Metrics
}

func NewGate(auth Authenticator, logger *observability.Logger, metrics *observability.Metrics) *Gate {
	return &Gate{auth: auth, logger: logger, metrics: metrics}
}

func (g *Gate) Require(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		rawID := strings.TrimSpace(r.Header.Get(HeaderUserID))
		token := strings.TrimSpace(r.Header.Get(HeaderSession))
		if rawID == "" || token == "" {
			g.metrics.AuthFailed("missing_headers")
			httpx.WriteError(w, r, g.logger, httpx.Unauthorized())
			return
		}

		userID, err := strconv.ParseInt(rawID, 10, 64)
		if err != nil || userID <= 0 {
			g.metrics.AuthFailed("invalid_user_id")
			httpx.WriteError(w, r, g.logger, httpx.Unauthorized())
			return
		}

		ok, err := g.auth.IsAuthenticated(r.Context(), userID, token)
		if err != nil {
			httpx.WriteError(w, r, g.logger, httpx.Internal(err))
			return
		}
		if !ok {
			g.metrics.AuthFailed("invalid_session")
			httpx.WriteError(w, r, g.logger, httpx.Unauthorized())
			return
		}

		next.ServeHTTP(w, r.WithContext(WithUserID(r.Context(), userID)))
	})
}

func (g *Gate) RequireFunc(next http.HandlerFunc) http.Handler {
	return g.Require(next)
}
