package app

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/redis/go-redis/v9"

	"community-api/internal/auth"
	"community-api/internal/comment"
	"community-api/internal/config"
	"community-api/internal/db"
	"community-api/internal/maintenance"
	"community-api/internal/media"
	"community-api/internal/middleware"
	"community-api/internal/observability"
	"community-api/internal/post"
	"community-api/internal/ratelimit"
	"community-api/internal/user"
)

const (
	breakerThreshold = 5
	breakerCooldown  = 30 * time.Second
	cloudinaryFolder = "community"
)

type Runtime struct {
	Handler http.Handler
	Close   func() error
}

// Build opens every backing service named by cfg and returns the composed
// HTTP handler. Close releases them in reverse order.
func Build(ctx context.Context, cfg config.Config, logger *observability.Logger) (*Runtime, error) {
	if err := observability.InitSentry(cfg.SentryDSN, cfg.AppEnv); err != nil {
		logger.Error("init_sentry_failed", map[string]any{"error": err.Error()})
	}

	database, err := sql.Open("pgx", cfg.DatabaseURL)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	database.SetMaxOpenConns(cfg.DBMaxOpenConns)
	database.SetMaxIdleConns(cfg.DBMaxIdleConns)
	database.SetConnMaxLifetime(cfg.DBConnMaxLifetime)
	database.SetConnMaxIdleTime(cfg.DBConnMaxIdleTime)

	if err := database.PingContext(ctx); err != nil {
		_ = database.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	if cfg.RunMigrations {
		if err := db.RunMigrations(ctx, database); err != nil {
			_ = database.Close()
			return nil, fmt.Errorf("run migrations: %w", err)
		}
	}

	resetSessionsOnStart(ctx, cfg.ResetSessions, auth.NewService(auth.NewRepository(database)), logger)

	store, redisClient, err := buildRateLimitStore(ctx, cfg.RateLimit, logger)
	if err != nil {
		_ = database.Close()
		return nil, err
	}
	limiter := ratelimit.NewLimiter(store, cfg.RateLimit.Max, cfg.RateLimit.Window, limiterOptions(cfg.RateLimit)...)

	storage, err := buildStorage(ctx, cfg.Storage, logger)
	if err != nil {
		closeRedis(redisClient)
		_ = database.Close()
		return nil, err
	}

	pruneCtx, stopPrune := context.WithCancel(context.Background())
	go pruneLoop(pruneCtx, limiter, logger)

	handler := newHandler(components{
		cfg:      cfg,
		database: database,
		storage:  storage,
		limiter:  limiter,
		logger:   logger,
		metrics:  observability.NewMetrics(prometheus.NewRegistry()),
	})

	return &Runtime{
		Handler: handler,
		Close: func() error {
			stopPrune()
			closeRedis(redisClient)
			observability.FlushSentry()
			return database.Close()
		},
	}, nil
}

type components struct {
	cfg      config.Config
	database *sql.DB
	storage  media.Store
	limiter  *ratelimit.Limiter
	logger   *observability.Logger
	metrics  *observability.Metrics
}

func newHandler(c components) http.Handler {
	authService := auth.NewService(auth.NewRepository(c.database))
	gate := auth.NewGate(authService, c.logger, c.metrics)

	authHandler := auth.NewHandler(authService, c.logger, c.metrics)
	userHandler := user.NewHandler(user.NewRepository(c.database), c.logger)
	postHandler := post.NewHandler(post.NewRepository(c.database), c.logger)
	commentHandler := comment.NewHandler(comment.NewRepository(c.database), c.logger)
	uploadHandler := media.NewUploadHandler(c.storage, c.logger)
	resetHandler := maintenance.NewResetHandler(authService, c.limiter, c.logger, c.cfg.MaintenanceJWTSecret)

	mux := http.NewServeMux()
	public := func(pattern string, h http.HandlerFunc) {
		mux.Handle(pattern, observability.Route(h))
	}
	private := func(pattern string, h http.HandlerFunc) {
		mux.Handle(pattern, observability.Route(gate.RequireFunc(h)))
	}

	public("POST /users/login", authHandler.Login)
	private("POST /users/logout", authHandler.Logout)
	private("GET /users/auth/check", authHandler.Check)

	public("POST /users/signup", userHandler.Signup)
	public("GET /users/email/check", userHandler.CheckEmail)
	public("GET /users/nickname/check", userHandler.CheckNickname)
	public("POST /users/upload/profile-image", uploadHandler.ProfileImage)
	private("GET /users/{userId}", userHandler.Get)
	private("PUT /users/{userId}", userHandler.Update)
	private("PATCH /users/{userId}/password", userHandler.ChangePassword)
	private("DELETE /users/{userId}", userHandler.Delete)

	private("POST /posts", postHandler.Create)
	private("GET /posts", postHandler.List)
	public("GET /posts/{postId}", postHandler.Get)
	private("PATCH /posts/{postId}", postHandler.Update)
	private("DELETE /posts/{postId}", postHandler.Delete)
	private("POST /posts/upload/attach-file", uploadHandler.PostAttachment)

	private("GET /posts/{postId}/comments", commentHandler.List)
	private("POST /posts/{postId}/comments", commentHandler.Create)
	private("PATCH /posts/{postId}/comments/{commentId}", commentHandler.Update)
	private("DELETE /posts/{postId}/comments/{commentId}", commentHandler.Delete)

	public("POST /internal/maintenance/sessions/reset", resetHandler.Handle)
	public("GET /health", healthHandler(c.database))
	mux.Handle("GET /metrics", observability.Route(c.metrics.Handler()))

	if c.cfg.Storage.Backend == "local" {
		prefix := "/" + strings.Trim(c.cfg.Storage.PublicPrefix, "/") + "/"
		files := http.StripPrefix(prefix, http.FileServer(http.Dir(c.cfg.Storage.LocalDir)))
		mux.Handle("GET "+prefix, observability.Route(files))
	}

	var handler http.Handler = mux
	handler = middleware.Timeout(c.cfg.RequestTimeout, c.logger, c.metrics, handler)
	handler = ratelimit.Middleware(c.limiter, c.logger, c.metrics, handler)
	handler = middleware.CORS(middleware.DefaultCORSConfig(c.cfg.CORSAllowOrigins), handler)
	handler = observability.RequestLoggingMiddleware(c.logger, c.metrics, handler)
	return observability.RecoverMiddleware(c.logger, c.metrics, handler)
}

type sessionResetter interface {
	ResetSessions(ctx context.Context) (int64, error)
}

// resetSessionsOnStart clears every session so tokens issued before a
// restart are never honoured. Failure is logged and startup continues.
func resetSessionsOnStart(ctx context.Context, enabled bool, sessions sessionResetter, logger *observability.Logger) {
	if !enabled {
		logger.Info("startup_session_reset_skipped", nil)
		return
	}

	cleared, err := sessions.ResetSessions(ctx)
	if err != nil {
		logger.Error("startup_session_reset_failed", map[string]any{"error": err.Error()})
		return
	}
	logger.Info("startup_session_reset", map[string]any{"cleared_sessions": cleared})
}

func limiterOptions(cfg config.RateLimitConfig) []ratelimit.Option {
	if cfg.TrustProxy {
		return []ratelimit.Option{ratelimit.WithKeyFunc(ratelimit.ForwardedForKey)}
	}
	return nil
}

func buildRateLimitStore(ctx context.Context, cfg config.RateLimitConfig, logger *observability.Logger) (ratelimit.Store, *redis.Client, error) {
	if cfg.Backend != "redis" {
		return ratelimit.NewMemoryStore(cfg.MaxKeys), nil, nil
	}

	opts, err := redis.ParseURL(cfg.RedisURL)
	if err != nil {
		return nil, nil, fmt.Errorf("parse redis url: %w", err)
	}
	client := redis.NewClient(opts)

	pingCtx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		// The limiter fails open, so an unreachable Redis only degrades limiting.
		logger.Warn("redis_ping_failed", map[string]any{"error": err.Error()})
	}

	return ratelimit.NewRedisStore(client, ""), client, nil
}

func buildStorage(ctx context.Context, cfg config.StorageConfig, logger *observability.Logger) (media.Store, error) {
	switch cfg.Backend {
	case "s3":
		store, err := media.NewS3Store(ctx, media.S3Config{
			Bucket:    cfg.S3Bucket,
			Region:    cfg.S3Region,
			Endpoint:  cfg.S3Endpoint,
			AccessKey: cfg.S3AccessKey,
			SecretKey: cfg.S3SecretKey,
			PublicURL: cfg.S3PublicURL,
		})
		if err != nil {
			return nil, fmt.Errorf("init s3 storage: %w", err)
		}
		return media.NewBreakerStore("s3", store, breakerThreshold, breakerCooldown, logger), nil
	case "cloudinary":
		store, err := media.NewCloudinaryStore(cfg.CloudinaryURL, cloudinaryFolder)
		if err != nil {
			return nil, fmt.Errorf("init cloudinary storage: %w", err)
		}
		return media.NewBreakerStore("cloudinary", store, breakerThreshold, breakerCooldown, logger), nil
	default:
		return media.NewLocalStore(cfg.LocalDir, cfg.PublicPrefix), nil
	}
}

func pruneLoop(ctx context.Context, limiter *ratelimit.Limiter, logger *observability.Logger) {
	ticker := time.NewTicker(limiter.Window())
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if n := limiter.Prune(); n > 0 {
				logger.Info("rate_limit_pruned", map[string]any{"keys": n})
			}
		}
	}
}

func closeRedis(client *redis.Client) {
	if client != nil {
		_ = client.Close()
	}
}

func healthHandler(database *sql.DB) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()

		status := http.StatusOK
		body := map[string]any{"status": "ok", "time": time.Now().UTC().Format(time.RFC3339)}
		if err := database.PingContext(ctx); err != nil {
			status = http.StatusServiceUnavailable
			body = map[string]any{"status": "degraded", "time": time.Now().UTC().Format(time.RFC3339)}
		}

		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		_ = json.NewEncoder(w).Encode(body)
	}
}
