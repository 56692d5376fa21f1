package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	// Server settings
	ServerAddr string
	BaseURL    string

	// Database
	DatabaseDriver string // "sqlite" or "postgres"
	DatabaseDSN    string // Database connection string (DSN or path)

	// OAuth endpoint paths
	AuthorizePath   string
	AccessTokenPath string

	// Protocol behavior
	Realm                  string
	SupportedResponseTypes []string
	// Allow bearer tokens in query/form parameters, not just the
	// Authorization header.
	ParamAuthentication bool
	GrantTTL            time.Duration
	// Lifetime of issued access tokens; zero means they never expire.
	AccessTokenTTL time.Duration

	// Paths requiring a bearer token even without explicit middleware
	RestrictedPaths []string

	// Where the authorization endpoint sends users for consent. Empty
	// means pending requests are described as JSON instead.
	ConsentURL string

	// Metrics
	MetricsEnabled bool

	// Rate limiting
	RateLimitEnabled bool
	RateLimitPeriod  time.Duration
	RateLimitCount   int64
	RedisAddr        string // optional shared limiter store
}

func Load() *Config {
	// Load .env file if exists (ignore error if not found)
	_ = godotenv.Load()

	driver := getEnv("DATABASE_DRIVER", "sqlite")
	var dsn string
	if driver == "sqlite" {
		dsn = getEnv("DATABASE_DSN", getEnv("DATABASE_PATH", "oauth.db"))
	} else {
		dsn = getEnv("DATABASE_DSN", "")
	}

	return &Config{
		ServerAddr:     getEnv("SERVER_ADDR", ":8080"),
		BaseURL:        getEnv("BASE_URL", "http://localhost:8080"),
		DatabaseDriver: driver,
		DatabaseDSN:    dsn,

		AuthorizePath:   getEnv("OAUTH_AUTHORIZE_PATH", "/oauth/authorize"),
		AccessTokenPath: getEnv("OAUTH_ACCESS_TOKEN_PATH", "/oauth/access_token"),

		Realm:                  getEnv("OAUTH_REALM", ""),
		SupportedResponseTypes: getEnvSlice("OAUTH_RESPONSE_TYPES", []string{"code", "token"}),
		ParamAuthentication:    getEnvBool("OAUTH_PARAM_AUTHENTICATION", false),
		GrantTTL:               getEnvDuration("OAUTH_GRANT_TTL", 5*time.Minute),
		AccessTokenTTL:         getEnvDuration("OAUTH_ACCESS_TOKEN_TTL", 0),

		RestrictedPaths: getEnvSlice("OAUTH_RESTRICTED_PATHS", nil),

		ConsentURL: getEnv("OAUTH_CONSENT_URL", ""),

		MetricsEnabled: getEnvBool("METRICS_ENABLED", false),

		RateLimitEnabled: getEnvBool("RATE_LIMIT_ENABLED", false),
		RateLimitPeriod:  getEnvDuration("RATE_LIMIT_PERIOD", time.Minute),
		RateLimitCount:   int64(getEnvInt("RATE_LIMIT_COUNT", 60)),
		RedisAddr:        getEnv("REDIS_ADDR", ""),
	}
}

// RealmOrDefault returns the configured realm, falling back to the
// base URL's host.
func (c *Config) RealmOrDefault() string {
	if c.Realm != "" {
		return c.Realm
	}
	base := strings.TrimPrefix(strings.TrimPrefix(c.BaseURL, "https://"), "http://")
	if i := strings.IndexByte(base, '/'); i >= 0 {
		base = base[:i]
	}
	return base
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		return value == "true" || value == "1"
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		var i int
		if _, err := fmt.Sscanf(value, "%d", &i); err == nil {
			return i
		}
	}
	return defaultValue
}

func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
	}
	return defaultValue
}

func getEnvSlice(key string, defaultValue []string) []string {
	if value := os.Getenv(key); value != "" {
		var parts []string
		for _, part := range strings.Split(value, ",") {
			if trimmed := strings.TrimSpace(part); trimmed != "" {
				parts = append(parts, trimmed)
			}
		}
		if len(parts) > 0 {
			return parts
		}
	}
	return defaultValue
}
