package observability

import (
	"context"
	"encoding/json"
	"net/http"
	"runtime/debug"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/getsentry/sentry-go"
)

type statusRecorder struct {
	http.ResponseWriter
	statusCode  int
	wroteHeader bool
}

func (r *statusRecorder) WriteHeader(status int) {
	if !r.wroteHeader {
		r.statusCode = status
		r.wroteHeader = true
	}
	r.ResponseWriter.WriteHeader(status)
}

func (r *statusRecorder) Write(b []byte) (int, error) {
	r.wroteHeader = true
	return r.ResponseWriter.Write(b)
}

func (r *statusRecorder) Unwrap() http.ResponseWriter {
	return r.ResponseWriter
}

type routeKey struct{}

type routeLabel struct {
	mu      sync.Mutex
	pattern string
}

// Route records the matched ServeMux pattern so the request logging
// middleware, which runs before routing, can label metrics by route instead
// of raw path.
func Route(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if label, ok := r.Context().Value(routeKey{}).(*routeLabel); ok && r.Pattern != "" {
			label.mu.Lock()
			label.pattern = r.Pattern
			label.mu.Unlock()
		}
		next.ServeHTTP(w, r)
	})
}

func RequestLoggingMiddleware(logger *Logger, metrics *Metrics, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now().UTC()
		label := &routeLabel{}
		r = r.WithContext(context.WithValue(r.Context(), routeKey{}, label))

		recorder := &statusRecorder{ResponseWriter: w, statusCode: http.StatusOK}
		next.ServeHTTP(recorder, r)

		elapsed := time.Since(start)
		label.mu.Lock()
		route := label.pattern
		label.mu.Unlock()
		if route == "" {
			route = "unmatched"
		}

		metrics.ObserveRequest(r.Method, route, strconv.Itoa(recorder.statusCode), elapsed.Seconds())

		logger.Info("http_request", map[string]any{
			"method":      r.Method,
			"path":        r.URL.Path,
			"route":       route,
			"status":      recorder.statusCode,
			"duration_ms": elapsed.Milliseconds(),
			"ip":          clientIP(r),
		})
	})
}

func RecoverMiddleware(logger *Logger, metrics *Metrics, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defer func() {
			if rec := recover(); rec != nil {
				if rec == http.ErrAbortHandler {
					panic(rec)
				}

				sentry.WithScope(func(scope *sentry.Scope) {
					scope.SetExtra("panic", rec)
					scope.SetExtra("stack", string(debug.Stack()))
					sentry.CaptureMessage("panic in request")
				})

				metrics.PanicRecovered()
				logger.Error("panic_recovered", map[string]any{
					"path":   r.URL.Path,
					"method": r.Method,
					"panic":  rec,
				})

				w.Header().Set("Content-Type", "application/json")
				w.WriteHeader(http.StatusInternalServerError)
				_ = json.NewEncoder(w).Encode(map[string]any{
					"error": map[string]any{"message": "internal_server_error", "data": nil},
				})
			}
		}()

		next.ServeHTTP(w, r)
	})
}

func clientIP(r *http.Request) string {
	xForwardedFor := strings.TrimSpace(r.Header.Get("X-Forwarded-For"))
	if xForwardedFor != "" {
		parts := strings.Split(xForwardedFor, ",")
		if len(parts) > 0 {
			ip := strings.TrimSpace(parts[0])
			if ip != "" {
				return ip
			}
		}
	}

	if r.RemoteAddr != "" {
		return r.RemoteAddr
	}

	return "unknown"
}
