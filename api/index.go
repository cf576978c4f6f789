// Package api exposes the service as a single serverless function. The
// runtime is built once per instance on the first request.
package api

import (
	"context"
	"net/http"
	"sync"

	"community-api/internal/app"
	"community-api/internal/config"
	"community-api/internal/httpx"
	"community-api/internal/observability"
)

var (
	initOnce   sync.Once
	apiRuntime *app.Runtime
	initErr    error
	logger     *observability.Logger
)

func Handler(w http.ResponseWriter, r *http.Request) {
	initOnce.Do(func() {
		var cfg config.Config
		cfg, initErr = config.Load(false)
		if initErr != nil {
			logger = observability.NewLogger("info")
			return
		}
		// Every cold start is a process start; resetting there would log out
		// users served by sibling instances.
		cfg.ResetSessions = config.EnvBoolOrDefault("RESET_SESSIONS_ON_START", false)
		logger = observability.NewLogger(cfg.LogLevel)
		apiRuntime, initErr = app.Build(context.Background(), cfg, logger)
	})

	if initErr != nil {
		httpx.WriteError(w, r, logger, httpx.Internal(initErr))
		return
	}

	apiRuntime.Handler.ServeHTTP(w, r)
}
