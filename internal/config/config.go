package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

var defaultCORSOrigins = []string{
	"http://localhost:8080",
	"http://127.0.0.1:8080",
	"http://localhost:8000",
	"http://127.0.0.1:8000",
}

type Config struct {
	Port     string
	AppEnv   string
	LogLevel string

	DatabaseURL       string
	RunMigrations     bool
	ResetSessions     bool
	DBMaxOpenConns    int
	DBMaxIdleConns    int
	DBConnMaxLifetime time.Duration
	DBConnMaxIdleTime time.Duration

	SentryDSN            string
	MaintenanceJWTSecret string
	CORSAllowOrigins     []string
	RequestTimeout       time.Duration
	ShutdownGracePeriod  time.Duration
	ReadHeaderTimeout    time.Duration

	RateLimit RateLimitConfig
	Storage   StorageConfig
}

type RateLimitConfig struct {
	Backend  string
	Max      int
	Window   time.Duration
	RedisURL string
	MaxKeys  int

	// TrustProxy keys clients on the first X-Forwarded-For hop. Enable it
	// only when a proxy in front of the service overwrites that header.
	TrustProxy bool
}

type StorageConfig struct {
	Backend       string
	LocalDir      string
	PublicPrefix  string
	S3Bucket      string
	S3Region      string
	S3Endpoint    string
	S3AccessKey   string
	S3SecretKey   string
	S3PublicURL   string
	CloudinaryURL string
}

// Load reads the process environment. When loadDotEnv is set a .env file in
// the working directory is applied first; a missing file is not an error.
func Load(loadDotEnv bool) (Config, error) {
	if loadDotEnv {
		_ = godotenv.Load()
	}

	databaseURL, err := mustEnv("DATABASE_URL")
	if err != nil {
		return Config{}, err
	}

	cfg := Config{
		Port:                 envOrDefault("PORT", "8080"),
		AppEnv:               envOrDefault("APP_ENV", "development"),
		LogLevel:             envOrDefault("LOG_LEVEL", "info"),
		DatabaseURL:          databaseURL,
		RunMigrations:        EnvBoolOrDefault("RUN_MIGRATIONS", true),
		ResetSessions:        EnvBoolOrDefault("RESET_SESSIONS_ON_START", true),
		DBMaxOpenConns:       envIntOrDefault("DB_MAX_OPEN_CONNS", 10),
		DBMaxIdleConns:       envIntOrDefault("DB_MAX_IDLE_CONNS", 5),
		DBConnMaxLifetime:    envMinutesOrDefault("DB_CONN_MAX_LIFETIME_MINUTES", 30),
		DBConnMaxIdleTime:    envMinutesOrDefault("DB_CONN_MAX_IDLE_TIME_MINUTES", 10),
		SentryDSN:            strings.TrimSpace(os.Getenv("SENTRY_DSN")),
		MaintenanceJWTSecret: strings.TrimSpace(os.Getenv("MAINTENANCE_JWT_SECRET")),
		CORSAllowOrigins:     envListOrDefault("CORS_ALLOW_ORIGINS", defaultCORSOrigins),
		RequestTimeout:       envSecondsOrDefault("REQUEST_TIMEOUT_SECONDS", 10),
		ShutdownGracePeriod:  envSecondsOrDefault("SHUTDOWN_GRACE_SECONDS", 15),
		ReadHeaderTimeout:    envSecondsOrDefault("READ_HEADER_TIMEOUT_SECONDS", 5),
		RateLimit: RateLimitConfig{
			Backend:    strings.ToLower(envOrDefault("RATE_LIMIT_BACKEND", "memory")),
			Max:        envIntOrDefault("RATE_LIMIT_MAX", 100),
			Window:     envSecondsOrDefault("RATE_LIMIT_WINDOW_SECONDS", 60),
			RedisURL:   strings.TrimSpace(os.Getenv("REDIS_URL")),
			MaxKeys:    envIntOrDefault("RATE_LIMIT_MAX_KEYS", 10000),
			TrustProxy: EnvBoolOrDefault("RATE_LIMIT_TRUST_PROXY", false),
		},
		Storage: StorageConfig{
			Backend:       strings.ToLower(envOrDefault("STORAGE_BACKEND", "local")),
			LocalDir:      envOrDefault("STORAGE_LOCAL_DIR", "./public"),
			PublicPrefix:  envOrDefault("STORAGE_PUBLIC_PREFIX", "/public"),
			S3Bucket:      strings.TrimSpace(os.Getenv("S3_BUCKET")),
			S3Region:      envOrDefault("S3_REGION", "us-east-1"),
			S3Endpoint:    strings.TrimSpace(os.Getenv("S3_ENDPOINT")),
			S3AccessKey:   strings.TrimSpace(os.Getenv("S3_ACCESS_KEY")),
			S3SecretKey:   strings.TrimSpace(os.Getenv("S3_SECRET_KEY")),
			S3PublicURL:   strings.TrimSpace(os.Getenv("S3_PUBLIC_URL")),
			CloudinaryURL: strings.TrimSpace(os.Getenv("CLOUDINARY_URL")),
		},
	}

	if err := cfg.validate(); err != nil {
		return Config{}, err
	}

	return cfg, nil
}

func (c Config) validate() error {
	switch c.RateLimit.Backend {
	case "memory":
	case "redis":
		if c.RateLimit.RedisURL == "" {
			return fmt.Errorf("missing required env: REDIS_URL (RATE_LIMIT_BACKEND=redis)")
		}
	default:
		return fmt.Errorf("unsupported RATE_LIMIT_BACKEND: %s", c.RateLimit.Backend)
	}

	switch c.Storage.Backend {
	case "local":
	case "s3":
		if c.Storage.S3Bucket == "" {
			return fmt.Errorf("missing required env: S3_BUCKET (STORAGE_BACKEND=s3)")
		}
	case "cloudinary":
		if c.Storage.CloudinaryURL == "" {
			return fmt.Errorf("missing required env: CLOUDINARY_URL (STORAGE_BACKEND=cloudinary)")
		}
	default:
		return fmt.Errorf("unsupported STORAGE_BACKEND: %s", c.Storage.Backend)
	}

	return nil
}

func mustEnv(name string) (string, error) {
	value := strings.TrimSpace(os.Getenv(name))
	if value == "" {
		return "", fmt.Errorf("missing required env: %s", name)
	}
	return value, nil
}

func envOrDefault(name, fallback string) string {
	value := strings.TrimSpace(os.Getenv(name))
	if value == "" {
		return fallback
	}
	return value
}

func envIntOrDefault(name string, fallback int) int {
	value := strings.TrimSpace(os.Getenv(name))
	if value == "" {
		return fallback
	}
	parsed, err := strconv.Atoi(value)
	if err != nil || parsed <= 0 {
		return fallback
	}
	return parsed
}

func envMinutesOrDefault(name string, fallback int) time.Duration {
	return time.Duration(envIntOrDefault(name, fallback)) * time.Minute
}

func envSecondsOrDefault(name string, fallback int) time.Duration {
	return time.Duration(envIntOrDefault(name, fallback)) * time.Second
}

func envListOrDefault(name string, fallback []string) []string {
	value := strings.TrimSpace(os.Getenv(name))
	if value == "" {
		return append([]string(nil), fallback...)
	}

	items := make([]string, 0)
	for _, part := range strings.Split(value, ",") {
		part = strings.TrimSpace(part)
		if part != "" {
			items = append(items, part)
		}
	}
	if len(items) == 0 {
		return append([]string(nil), fallback...)
	}
	return items
}

func EnvBoolOrDefault(name string, fallback bool) bool {
	value := strings.TrimSpace(strings.ToLower(os.Getenv(name)))
	if value == "" {
		return fallback
	}

	switch value {
	case "1", "true", "yes", "on":
		return true
	case "0", "false", "no", "off":
		return false
	default:
		return fallback
	}
}
