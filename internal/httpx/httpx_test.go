package httpx

import (
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"community-api/internal/observability"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestKindStatus(t *testing.T) {
	tests := []struct {
		kind Kind
		want int
	}{
		{KindValidation, http.StatusBadRequest},
		{KindConflict, http.StatusBadRequest},
		{KindUnauthorized, http.StatusUnauthorized},
		{KindNotFound, http.StatusNotFound},
		{KindTooManyRequests, http.StatusTooManyRequests},
		{KindTimeout, http.StatusRequestTimeout},
		{KindUpstream, http.StatusBadGateway},
		{KindUnavailable, http.StatusServiceUnavailable},
		{KindInternal, http.StatusInternalServerError},
	}

	for _, tt := range tests {
		t.Run(tt.kind.String(), func(t *testing.T) {
			assert.Equal(t, tt.want, tt.kind.Status())
		})
	}
}

func TestWriteError_TaggedError(t *testing.T) {
	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/users/signup", nil)

	WriteError(rec, req, observability.NewNopLogger(), fmt.Errorf("signup: %w", Conflict("already_exist_email")))

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))
	assert.JSONEq(t, `{"error":{"message":"already_exist_email","data":null}}`, rec.Body.String())
}

func TestWriteError_UntaggedErrorDoesNotLeak(t *testing.T) {
	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/posts", nil)

	WriteError(rec, req, nil, errors.New("pq: relation posts does not exist"))

	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.NotContains(t, rec.Body.String(), "relation")
	assert.JSONEq(t, `{"error":{"message":"internal_server_error","data":null}}`, rec.Body.String())
}

func TestWriteSuccess(t *testing.T) {
	rec := httptest.NewRecorder()
	WriteSuccess(rec, http.StatusCreated, "write_post_success", map[string]int64{"postId": 3})
	assert.Equal(t, http.StatusCreated, rec.Code)
	assert.JSONEq(t, `{"message":"write_post_success","data":{"postId":3}}`, rec.Body.String())

	rec = httptest.NewRecorder()
	WriteSuccess(rec, http.StatusOK, "", []string{})
	assert.JSONEq(t, `{"message":null,"data":[]}`, rec.Body.String())
}

func TestDecodeJSON(t *testing.T) {
	type payload struct {
		Email string `json:"email"`
	}

	tests := []struct {
		name    string
		body    string
		wantErr bool
	}{
		{name: "valid", body: `{"email":"a@b.co"}`},
		{name: "unknown field", body: `{"email":"a@b.co","admin":true}`, wantErr: true},
		{name: "malformed", body: `{"email":`, wantErr: true},
		{name: "trailing data", body: `{"email":"a@b.co"}{}`, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := httptest.NewRecorder()
			req := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(tt.body))

			var dst payload
			err := DecodeJSON(rec, req, &dst)
			if !tt.wantErr {
				require.NoError(t, err)
				assert.Equal(t, "a@b.co", dst.Email)
				return
			}

			require.Error(t, err)
			var httpErr *Error
			require.True(t, errors.As(err, &httpErr))
			assert.Equal(t, CodeInvalidRequestBody, httpErr.Code)
		})
	}
}

func TestAsError(t *testing.T) {
	cause := errors.New("boom")
	e := AsError(cause)
	assert.Equal(t, KindInternal, e.Kind)
	assert.ErrorIs(t, e, cause)

	nf := NotFound("not_found_post")
	assert.Same(t, nf, AsError(fmt.Errorf("wrap: %w", nf)))
}
