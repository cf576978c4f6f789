package middleware

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"community-api/internal/observability"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTimeout_SlowHandlerGets408(t *testing.T) {
	reg := prometheus.NewRegistry()
	metrics := observability.NewMetrics(reg)

	released := make(chan struct{})
	slow := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defer close(released)
		select {
		case <-r.Context().Done():
		case <-time.After(2 * time.Second):
		}
		w.WriteHeader(http.StatusCreated)
		_, _ = w.Write([]byte(`{"late":true}`))
	})

	handler := Timeout(50*time.Millisecond, observability.NewNopLogger(), metrics, slow)

	start := time.Now()
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/posts", nil))
	elapsed := time.Since(start)

	assert.Equal(t, http.StatusRequestTimeout, rec.Code)
	assert.JSONEq(t, `{"detail":"request_timeout"}`, rec.Body.String())
	assert.Less(t, elapsed, time.Second)

	<-released
	assert.NotContains(t, rec.Body.String(), "late")

	expected := `
# HELP community_middleware_request_timeouts_total Total number of requests answered by the timeout guard.
# TYPE community_middleware_request_timeouts_total counter
community_middleware_request_timeouts_total 1
`
	require.NoError(t, testutil.GatherAndCompare(reg, strings.NewReader(expected), "community_middleware_request_timeouts_total"))
}

func TestTimeout_HandlerIgnoringContextIsStillBounded(t *testing.T) {
	block := make(chan struct{})
	t.Cleanup(func() { close(block) })

	stubborn := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		<-block
	})

	handler := Timeout(30*time.Millisecond, nil, nil, stubborn)

	start := time.Now()
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))

	assert.Equal(t, http.StatusRequestTimeout, rec.Code)
	assert.Less(t, time.Since(start), 500*time.Millisecond)
}

func TestTimeout_FastHandlerPassesThrough(t *testing.T) {
	fast := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, hasDeadline := r.Context().Deadline()
		assert.True(t, hasDeadline)

		w.Header().Set("Content-Type", "application/json")
		w.Header().Set("X-Post-Id", "7")
		w.WriteHeader(http.StatusCreated)
		_, _ = w.Write([]byte(`{"ok":true}`))
	})

	rec := httptest.NewRecorder()
	Timeout(time.Second, nil, nil, fast).ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/posts", nil))

	assert.Equal(t, http.StatusCreated, rec.Code)
	assert.Equal(t, "7", rec.Header().Get("X-Post-Id"))
	assert.JSONEq(t, `{"ok":true}`, rec.Body.String())
}

func TestTimeout_ImplicitOK(t *testing.T) {
	h := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {})

	rec := httptest.NewRecorder()
	Timeout(time.Second, nil, nil, h).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Empty(t, rec.Body.String())
}

func TestTimeout_PanicReachesCaller(t *testing.T) {
	h := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		panic("handler exploded")
	})

	rec := httptest.NewRecorder()
	wrapped := observability.RecoverMiddleware(nil, nil, Timeout(time.Second, nil, nil, h))

	require.NotPanics(t, func() {
		wrapped.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
	})
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
}

func TestCORS(t *testing.T) {
	next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
	handler := CORS(DefaultCORSConfig([]string{"http://localhost:8080"}), next)

	tests := []struct {
		name          string
		method        string
		origin        string
		preflight     bool
		wantStatus    int
		wantAllowOrig string
	}{
		{name: "allowed origin", method: http.MethodGet, origin: "http://localhost:8080", wantStatus: http.StatusOK, wantAllowOrig: "http://localhost:8080"},
		{name: "foreign origin", method: http.MethodGet, origin: "https://evil.example", wantStatus: http.StatusOK},
		{name: "preflight allowed", method: http.MethodOptions, origin: "http://localhost:8080", preflight: true, wantStatus: http.StatusNoContent, wantAllowOrig: "http://localhost:8080"},
		{name: "preflight foreign", method: http.MethodOptions, origin: "https://evil.example", preflight: true, wantStatus: http.StatusNoContent},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(tt.method, "/posts", nil)
			req.Header.Set("Origin", tt.origin)
			if tt.preflight {
				req.Header.Set("Access-Control-Request-Method", http.MethodPost)
			}

			rec := httptest.NewRecorder()
			handler.ServeHTTP(rec, req)

			assert.Equal(t, tt.wantStatus, rec.Code)
			assert.Equal(t, tt.wantAllowOrig, rec.Header().Get("Access-Control-Allow-Origin"))
			assert.Equal(t, "Origin", rec.Header().Get("Vary"))
			if tt.preflight && tt.wantAllowOrig != "" {
				assert.Contains(t, rec.Header().Get("Access-Control-Allow-Headers"), "session")
				assert.Contains(t, rec.Header().Get("Access-Control-Allow-Methods"), "PATCH")
			}
			if tt.wantAllowOrig != "" && !tt.preflight {
				assert.Contains(t, rec.Header().Get("Access-Control-Expose-Headers"), "RateLimit-Remaining")
			}
		})
	}
}
