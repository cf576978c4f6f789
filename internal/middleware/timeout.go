package middleware

import (
	"bytes"
	"context"
	"errors"
	"net/http"
	"sync"
	"time"

	"community-api/internal/httpx"
	"community-api/internal/observability"
)

const timeoutGracePeriod = 100 * time.Millisecond

// Timeout bounds how long the downstream handler may take. The handler runs in
// its own goroutine with a deadline on its request context and writes into a
// buffer. On overrun the client gets 408 {"detail":"request_timeout"} and
// anything the handler writes later is discarded.
//
// The deadline reaches database calls through the context, but a statement
// or commit already in flight may still complete after the 408 was sent.
func Timeout(timeout time.Duration, logger *observability.Logger, metrics *observability.Metrics, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), timeout)
		defer cancel()

		r = r.WithContext(ctx)
		tw := &timeoutWriter{header: make(http.Header)}
		done := make(chan struct{})
		panicked := make(chan any, 1)

		go func() {
			defer func() {
				if p := recover(); p != nil {
					panicked <- p
				}
			}()
			next.ServeHTTP(tw, r)
			close(done)
		}()

		select {
		case p := <-panicked:
			panic(p)
		case <-done:
			tw.mu.Lock()
			defer tw.mu.Unlock()
			tw.flushTo(w)
		case <-ctx.Done():
			tw.mu.Lock()
			tw.timedOut = true
			tw.mu.Unlock()

			if !errors.Is(ctx.Err(), context.DeadlineExceeded) {
				return
			}

			metrics.RequestTimedOut()
			logger.Warn("request_timeout", map[string]any{
				"method":     r.Method,
				"path":       r.URL.Path,
				"timeout_ms": timeout.Milliseconds(),
			})
			httpx.WriteJSON(w, http.StatusRequestTimeout, map[string]string{"detail": httpx.CodeRequestTimeout})

			select {
			case <-done:
			case <-time.After(timeoutGracePeriod):
			}
		}
	})
}

type timeoutWriter struct {
	mu          sync.Mutex
	header      http.Header
	buf         bytes.Buffer
	code        int
	wroteHeader bool
	timedOut    bool
}

func (tw *timeoutWriter) Header() http.Header {
	return tw.header
}

func (tw *timeoutWriter) WriteHeader(code int) {
	tw.mu.Lock()
	defer tw.mu.Unlock()

	if tw.timedOut || tw.wroteHeader {
		return
	}
	tw.code = code
	tw.wroteHeader = true
}

func (tw *timeoutWriter) Write(b []byte) (int, error) {
	tw.mu.Lock()
	defer tw.mu.Unlock()

	if tw.timedOut {
		return 0, http.ErrHandlerTimeout
	}
	if !tw.wroteHeader {
		tw.code = http.StatusOK
		tw.wroteHeader = true
	}
	return tw.buf.Write(b)
}

// flushTo copies the buffered response to w. Callers hold tw.mu.
func (tw *timeoutWriter) flushTo(w http.ResponseWriter) {
	dst := w.Header()
	for k, v := range tw.header {
		dst[k] = v
	}
	if !tw.wroteHeader {
		tw.code = http.StatusOK
	}
	w.WriteHeader(tw.code)
	_, _ = w.Write(tw.buf.Bytes())
}
