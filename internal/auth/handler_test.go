package auth

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"testing"

	"community-api/internal/observability"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubAuthenticator struct {
	ok  bool
	err error
}

func (s stubAuthenticator) IsAuthenticated(context.Context, int64, string) (bool, error) {
	return s.ok, s.err
}

func echoUserID(t *testing.T) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id, ok := UserID(r.Context())
		require.True(t, ok)
		w.Header().Set("X-User", strconv.FormatInt(id, 10))
		w.WriteHeader(http.StatusOK)
	})
}

func TestGate_Require(t *testing.T) {
	tests := []struct {
		name       string
		userID     string
		session    string
		auth       stubAuthenticator
		wantStatus int
		wantBody   string
	}{
		{
			name:       "missing headers",
			auth:       stubAuthenticator{ok: true},
			wantStatus: http.StatusUnauthorized,
			wantBody:   `{"error":{"message":"required_authorization","data":null}}`,
		},
		{
			name:       "missing session",
			userID:     "1",
			auth:       stubAuthenticator{ok: true},
			wantStatus: http.StatusUnauthorized,
			wantBody:   `{"error":{"message":"required_authorization","data":null}}`,
		},
		{
			name:       "non numeric user id",
			userID:     "abc",
			session:    "tok",
			auth:       stubAuthenticator{ok: true},
			wantStatus: http.StatusUnauthorized,
			wantBody:   `{"error":{"message":"required_authorization","data":null}}`,
		},
		{
			name:       "mismatched token",
			userID:     "1",
			session:    "stale",
			auth:       stubAuthenticator{ok: false},
			wantStatus: http.StatusUnauthorized,
			wantBody:   `{"error":{"message":"required_authorization","data":null}}`,
		},
		{
			name:       "lookup failure",
			userID:     "1",
			session:    "tok",
			auth:       stubAuthenticator{err: errors.New("db down")},
			wantStatus: http.StatusInternalServerError,
			wantBody:   `{"error":{"message":"internal_server_error","data":null}}`,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			gate := NewGate(tt.auth, observability.NewNopLogger(), nil)
			called := false
			next := http.HandlerFunc(func(http.ResponseWriter, *http.Request) { called = true })

			req := httptest.NewRequest(http.MethodGet, "/auth/check", nil)
			if tt.userID != "" {
				req.Header.Set(HeaderUserID, tt.userID)
			}
			if tt.session != "" {
				req.Header.Set(HeaderSession, tt.session)
			}
			rec := httptest.NewRecorder()

			gate.Require(next).ServeHTTP(rec, req)

			assert.False(t, called)
			assert.Equal(t, tt.wantStatus, rec.Code)
			assert.JSONEq(t, tt.wantBody, rec.Body.String())
		})
	}
}

func TestGate_RequirePassesUserID(t *testing.T) {
	gate := NewGate(stubAuthenticator{ok: true}, nil, nil)

	req := httptest.NewRequest(http.MethodGet, "/auth/check", nil)
	req.Header.Set(HeaderUserID, "3")
	req.Header.Set(HeaderSession, "tok")
	rec := httptest.NewRecorder()

	gate.Require(echoUserID(t)).ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "3", rec.Header().Get("X-User"))
}

func TestGate_CountsFailures(t *testing.T) {
	reg := prometheus.NewRegistry()
	metrics := observability.NewMetrics(reg)
	gate := NewGate(stubAuthenticator{ok: false}, nil, metrics)

	req := httptest.NewRequest(http.MethodGet, "/auth/check", nil)
	req.Header.Set(HeaderUserID, "1")
	req.Header.Set(HeaderSession, "tok")
	gate.RequireFunc(func(http.ResponseWriter, *http.Request) {}).ServeHTTP(httptest.NewRecorder(), req)

	expected := `
# HELP community_auth_failures_total Total number of rejected authentication attempts by reason.
# TYPE community_auth_failures_total counter
community_auth_failures_total{reason="invalid_session"} 1
`
	require.NoError(t, testutil.GatherAndCompare(reg, strings.NewReader(expected), "community_auth_failures_total"))
}

func newTestHandler(t *testing.T) (*Handler, *memoryStore) {
	t.Helper()
	store := newMemoryStore()
	store.add(t, 1, "user@example.com", "Passw0rd!")
	return NewHandler(NewService(store), observability.NewNopLogger(), nil), store
}

func TestHandler_Login(t *testing.T) {
	h, store := newTestHandler(t)

	req := httptest.NewRequest(http.MethodPost, "/auth/login", strings.NewReader(`{"email":"user@example.com","password":"Passw0rd!"}`))
	rec := httptest.NewRecorder()
	h.Login(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)

	var body struct {
		Message string      `json:"message"`
		Data    LoginResult `json:"data"`
	}
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&body))
	assert.Equal(t, "login_success", body.Message)
	assert.Equal(t, int64(1), body.Data.UserID)
	assert.Equal(t, store.tokens[1], body.Data.SessionToken)
}

func TestHandler_LoginFailures(t *testing.T) {
	tests := []struct {
		name     string
		body     string
		wantCode string
	}{
		{name: "bad email format", body: `{"email":"not-an-email","password":"Passw0rd!"}`, wantCode: "invalid_email_format"},
		{name: "unknown email", body: `{"email":"nobody@example.com","password":"Passw0rd!"}`, wantCode: "invalid_credentials"},
		{name: "wrong password", body: `{"email":"user@example.com","password":"Wr0ngPass!"}`, wantCode: "invalid_credentials"},
		{name: "malformed body", body: `{"email":`, wantCode: "invalid_request_body"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h, _ := newTestHandler(t)
			req := httptest.NewRequest(http.MethodPost, "/auth/login", strings.NewReader(tt.body))
			rec := httptest.NewRecorder()

			h.Login(rec, req)

			assert.Equal(t, http.StatusBadRequest, rec.Code)
			assert.JSONEq(t, `{"error":{"message":"`+tt.wantCode+`","data":null}}`, rec.Body.String())
		})
	}
}

func TestHandler_LogoutAndCheck(t *testing.T) {
	h, store := newTestHandler(t)
	store.tokens[1] = "tok"

	req := httptest.NewRequest(http.MethodGet, "/auth/check", nil)
	req = req.WithContext(WithUserID(req.Context(), 1))
	rec := httptest.NewRecorder()
	h.Check(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"message":null,"data":{"userId":1,"email":"user@example.com","nickname":"tester","profileImagePath":null,"authStatus":true}}`, rec.Body.String())

	req = httptest.NewRequest(http.MethodPost, "/auth/logout", nil)
	req = req.WithContext(WithUserID(req.Context(), 1))
	rec = httptest.NewRecorder()
	h.Logout(rec, req)

	assert.Equal(t, http.StatusNoContent, rec.Code)
	assert.Empty(t, rec.Body.String())
	_, stillThere := store.tokens[1]
	assert.False(t, stillThere)
}

func TestHandler_CheckWithoutContext(t *testing.T) {
	h, _ := newTestHandler(t)
	rec := httptest.NewRecorder()

	h.Check(rec, httptest.NewRequest(http.MethodGet, "/auth/check", nil))

	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}
