package ratelimit

import (
	"net"
	"net/http"
	"strconv"
	"strings"

	"community-api/internal/httpx"
	"community-api/internal/observability"
)

const (
	HeaderLimit     = "RateLimit-Limit"
	HeaderRemaining = "RateLimit-Remaining"
	HeaderReset     = "RateLimit-Reset"

	unknownClient = "unknown"
)

// Middleware admits or rejects each request by client address. The three
// RateLimit headers are set on both outcomes.
func Middleware(limiter *Limiter, logger *observability.Logger, metrics *observability.Metrics, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		key := limiter.key(r)

		decision, err := limiter.Allow(r.Context(), key)
		if err != nil {
			logger.Warn("rate_limit_store_failed", map[string]any{
				"client": key,
				"error":  err.Error(),
			})
		}

		w.Header().Set(HeaderLimit, strconv.Itoa(decision.Limit))
		w.Header().Set(HeaderRemaining, strconv.Itoa(decision.Remaining))
		w.Header().Set(HeaderReset, strconv.Itoa(decision.ResetSeconds()))

		if !decision.Allowed {
			metrics.RateLimitRejected()
			retryAfter := decision.ResetSeconds()
			if retryAfter < 1 {
				retryAfter = 1
			}
			w.Header().Set("Retry-After", strconv.Itoa(retryAfter))
			httpx.WriteError(w, r, logger, &httpx.Error{
				Kind: httpx.KindTooManyRequests,
				Code: httpx.CodeTooManyRequests,
			})
			return
		}

		next.ServeHTTP(w, r)
	})
}

// KeyFunc maps a request to the client identifier its budget is kept under.
type KeyFunc func(r *http.Request) string

// RemoteAddrKey identifies the caller by the host part of the connection's
// RemoteAddr. Request headers are ignored. Callers without an address share
// the "unknown" budget.
func RemoteAddrKey(r *http.Request) string {
	addr := strings.TrimSpace(r.RemoteAddr)
	if addr == "" {
		return unknownClient
	}
	if host, _, err := net.SplitHostPort(addr); err == nil {
		if host == "" {
			return unknownClient
		}
		return host
	}
	return addr
}

// ForwardedForKey uses the first X-Forwarded-For hop and falls back to
// RemoteAddrKey. Clients control that header unless a proxy rewrites it.
func ForwardedForKey(r *http.Request) string {
	if forwarded := strings.TrimSpace(r.Header.Get("X-Forwarded-For")); forwarded != "" {
		first, _, _ := strings.Cut(forwarded, ",")
		if ip := strings.TrimSpace(first); ip != "" {
			return ip
		}
	}
	return RemoteAddrKey(r)
}
