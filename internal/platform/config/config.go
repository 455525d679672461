package config

import (
	"os"
	"strconv"
	"time"
)

// Server captures process-level configuration. Populated from the environment
// so main stays lean.
type Server struct {
	Addr          string
	DatabaseURL   string
	Redis         RedisConfig
	JWTSigningKey string
	JWTIssuer     string
	AdminToken    string

	// Reconciliation tuning.
	SelfServiceThreshold int           // minimum confidence for self-service claims without an email match
	MatchCacheTTL        time.Duration // bounded staleness window for candidate search results
	SubmissionWindow     time.Duration // rolling window for pending submissions
	AllowAdminReassign   bool          // admin force-claim may overwrite an existing holder
	AuditPageLimit       int           // hard cap on audit log page size
}

// RedisConfig holds connection settings for the optional Redis match cache.
type RedisConfig struct {
	URL          string
	PoolSize     int
	MinIdleConns int
	DialTimeout  time.Duration
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
}

// FromEnv builds a Server config from environment variables.
func FromEnv() Server {
	cfg := Server{
		Addr:                 envOr("RECLINK_ADDR", ":8080"),
		DatabaseURL:          os.Getenv("RECLINK_DATABASE_URL"),
		JWTSigningKey:        envOr("RECLINK_JWT_SIGNING_KEY", "dev-secret-key-change-in-production"),
		JWTIssuer:            envOr("RECLINK_JWT_ISSUER", "reclink"),
		AdminToken:           os.Getenv("RECLINK_ADMIN_TOKEN"),
		SelfServiceThreshold: envIntOr("RECLINK_SELF_SERVICE_THRESHOLD", 80),
		MatchCacheTTL:        envDurationOr("RECLINK_MATCH_CACHE_TTL", 5*time.Minute),
		SubmissionWindow:     envDurationOr("RECLINK_SUBMISSION_WINDOW", 30*24*time.Hour),
		AllowAdminReassign:   envOr("RECLINK_ADMIN_ALLOW_REASSIGN", "true") == "true",
		AuditPageLimit:       envIntOr("RECLINK_AUDIT_PAGE_LIMIT", 50),
	}

	cfg.Redis = RedisConfig{
		URL:          os.Getenv("RECLINK_REDIS_URL"),
		PoolSize:     envIntOr("RECLINK_REDIS_POOL_SIZE", 10),
		MinIdleConns: envIntOr("RECLINK_REDIS_MIN_IDLE_CONNS", 2),
		DialTimeout:  envDurationOr("RECLINK_REDIS_DIAL_TIMEOUT", 5*time.Second),
		ReadTimeout:  envDurationOr("RECLINK_REDIS_READ_TIMEOUT", 3*time.Second),
		WriteTimeout: envDurationOr("RECLINK_REDIS_WRITE_TIMEOUT", 3*time.Second),
	}

	return cfg
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func envIntOr(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return fallback
}

func envDurationOr(key string, fallback time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return fallback
}
