package httpx

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"

	"community-api/internal/observability"
)

const maxJSONBodyBytes = 1 << 20

type envelope struct {
	Message *string `json:"message"`
	Data    any     `json:"data"`
}

type errorEnvelope struct {
	Error envelope `json:"error"`
}

func WriteJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}

// WriteSuccess writes {"message": message, "data": data}. An empty message is
// rendered as null.
func WriteSuccess(w http.ResponseWriter, status int, message string, data any) {
	WriteJSON(w, status, envelope{Message: optional(message), Data: data})
}

// WriteError maps err to its status and writes {"error": {"message": code,
// "data": null}}. Internal and upstream errors are logged and reported to
// Sentry; the client only sees the code.
func WriteError(w http.ResponseWriter, r *http.Request, logger *observability.Logger, err error) {
	e := AsError(err)

	if e.Kind == KindInternal || e.Kind == KindUpstream {
		observability.CaptureError(err)
		if logger != nil {
			logger.Error("request_failed", map[string]any{
				"method": r.Method,
				"path":   r.URL.Path,
				"error":  err.Error(),
			})
		}
	}

	code := e.Code
	if code == "" {
		code = CodeInternalServerError
	}
	WriteJSON(w, e.Kind.Status(), errorEnvelope{Error: envelope{Message: optional(code)}})
}

// DecodeJSON reads a bounded JSON body into dst. Unknown fields and trailing
// data are rejected.
func DecodeJSON(w http.ResponseWriter, r *http.Request, dst any) error {
	r.Body = http.MaxBytesReader(w, r.Body, maxJSONBodyBytes)

	decoder := json.NewDecoder(r.Body)
	decoder.DisallowUnknownFields()
	if err := decoder.Decode(dst); err != nil {
		return Validation(CodeInvalidRequestBody)
	}
	if err := decoder.Decode(&struct{}{}); !errors.Is(err, io.EOF) {
		return Validation(CodeInvalidRequestBody)
	}
	return nil
}

func optional(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}
