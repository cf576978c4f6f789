package middleware

import (
	"net/http"
	"strconv"
	"strings"
)

type CORSConfig struct {
	AllowOrigins     []string
	AllowMethods     []string
	AllowHeaders     []string
	ExposeHeaders    []string
	AllowCredentials bool
	MaxAge           int
}

// DefaultCORSConfig allows the auth headers through and exposes the rate
// limit headers to browser clients.
func DefaultCORSConfig(origins []string) CORSConfig {
	return CORSConfig{
		AllowOrigins:     origins,
		AllowMethods:     []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
		AllowHeaders:     []string{"Origin", "Content-Type", "Accept", "Authorization", "userId", "session"},
		ExposeHeaders:    []string{"RateLimit-Limit", "RateLimit-Remaining", "RateLimit-Reset", "Retry-After"},
		AllowCredentials: true,
		MaxAge:           600,
	}
}

type corsHeaders struct {
	allowOrigins     map[string]bool
	allowAllOrigins  bool
	allowMethods     string
	allowHeaders     string
	exposeHeaders    string
	maxAge           string
	allowCredentials bool
}

func newCORSHeaders(cfg CORSConfig) *corsHeaders {
	h := &corsHeaders{
		allowOrigins:     make(map[string]bool, len(cfg.AllowOrigins)),
		allowMethods:     strings.Join(cfg.AllowMethods, ", "),
		allowHeaders:     strings.Join(cfg.AllowHeaders, ", "),
		exposeHeaders:    strings.Join(cfg.ExposeHeaders, ", "),
		allowCredentials: cfg.AllowCredentials,
	}
	if cfg.MaxAge > 0 {
		h.maxAge = strconv.Itoa(cfg.MaxAge)
	}

	for _, origin := range cfg.AllowOrigins {
		if origin == "*" {
			h.allowAllOrigins = true
			continue
		}
		h.allowOrigins[strings.TrimRight(origin, "/")] = true
	}
	return h
}

func (h *corsHeaders) isOriginAllowed(origin string) bool {
	if origin == "" {
		return false
	}
	return h.allowAllOrigins || h.allowOrigins[origin]
}

func (h *corsHeaders) set(w http.ResponseWriter, origin string) {
	w.Header().Add("Vary", "Origin")
	if !h.isOriginAllowed(origin) {
		return
	}

	w.Header().Set("Access-Control-Allow-Origin", origin)
	if h.allowCredentials {
		w.Header().Set("Access-Control-Allow-Credentials", "true")
	}
	if h.exposeHeaders != "" {
		w.Header().Set("Access-Control-Expose-Headers", h.exposeHeaders)
	}
}

func (h *corsHeaders) setPreflight(w http.ResponseWriter) {
	if h.allowMethods != "" {
		w.Header().Set("Access-Control-Allow-Methods", h.allowMethods)
	}
	if h.allowHeaders != "" {
		w.Header().Set("Access-Control-Allow-Headers", h.allowHeaders)
	}
	if h.maxAge != "" {
		w.Header().Set("Access-Control-Max-Age", h.maxAge)
	}
}

// CORS echoes allowed origins and answers preflight requests with 204 before
// they reach the rate limiter.
func CORS(cfg CORSConfig, next http.Handler) http.Handler {
	headers := newCORSHeaders(cfg)

	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		origin := r.Header.Get("Origin")
		headers.set(w, origin)

		if r.Method == http.MethodOptions && r.Header.Get("Access-Control-Request-Method") != "" {
			if headers.isOriginAllowed(origin) {
				headers.setPreflight(w)
			}
			w.WriteHeader(http.StatusNoContent)
			return
		}

		next.ServeHTTP(w, r)
	})
}
