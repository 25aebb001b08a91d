package config

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

const (
	StoreDriverPostgres = "postgres"
	StoreDriverMemory   = "memory"
)

var ErrMissingJWTSecret = errors.New("JWT_SECRET must be set when APP_ENV=prod")

type Config struct {
	Env         string
	Port        int
	DBURL       string
	DBMaxConns  int32
	StoreDriver string

	JWTSecret string
	JWTTTL    time.Duration

	RedisAddr     string
	RedisPassword string
	RedisDB       int

	LoginRateLimit  int
	LoginRateWindow time.Duration

	CORSOrigins  []string
	MaxBodyBytes int64

	// TrustedProxies lists the proxy CIDRs whose forwarding headers are
	// believed. Empty means the peer address is the client address.
	TrustedProxies []string

	OTelEndpoint    string
	OTelServiceName string

	SeedDemo bool

	// set when JWTSecret was generated because none was configured
	generatedSecret bool
}

// Load reads configuration from the environment. A .env file in the working
// directory is honoured when present but never overrides real env vars.
func Load() Config {
	_ = godotenv.Load()

	return Config{
		Env:         getEnv("APP_ENV", "dev"),
		Port:        getEnvInt("PORT", 8080),
		DBURL:       buildDBURL(),
		DBMaxConns:  int32(getEnvInt("DB_MAX_CONNS", 5)),
		StoreDriver: strings.ToLower(getEnv("STORE_DRIVER", StoreDriverPostgres)),

		JWTSecret: os.Getenv("JWT_SECRET"),
		JWTTTL:    getEnvDuration("JWT_TTL", 7*24*time.Hour),

		RedisAddr:     os.Getenv("REDIS_ADDR"),
		RedisPassword: os.Getenv("REDIS_PASSWORD"),
		RedisDB:       getEnvInt("REDIS_DB", 0),

		LoginRateLimit:  getEnvInt("LOGIN_RATE_LIMIT", 10),
		LoginRateWindow: getEnvDuration("LOGIN_RATE_WINDOW", time.Minute),

		CORSOrigins:  splitList(getEnv("CORS_ORIGINS", "http://localhost:3000")),
		MaxBodyBytes: int64(getEnvInt("MAX_BODY_BYTES", 1<<20)),

		TrustedProxies: splitList(os.Getenv("TRUSTED_PROXIES")),

		OTelEndpoint:    os.Getenv("OTEL_EXPORTER_OTLP_ENDPOINT"),
		OTelServiceName: getEnv("OTEL_SERVICE_NAME", "notehub-api"),

		SeedDemo: getEnvBool("SEED_DEMO", false),
	}
}

// Validate enforces the settings the process cannot safely start without.
// Outside prod an empty JWT secret is replaced with a random one, so tokens
// do not survive a restart but no well-known key is ever used.
func (c *Config) Validate() error {
	if c.StoreDriver != StoreDriverPostgres && c.StoreDriver != StoreDriverMemory {
		return fmt.Errorf("unknown STORE_DRIVER %q", c.StoreDriver)
	}

	if c.JWTTTL <= 0 {
		return fmt.Errorf("JWT_TTL must be positive, got %s", c.JWTTTL)
	}

	if c.JWTSecret != "" {
		return nil
	}

	if c.IsProd() {
		return ErrMissingJWTSecret
	}

	secret, err := randomSecret()
	if err != nil {
		return fmt.Errorf("generate jwt secret: %w", err)
	}

	c.JWTSecret = secret
	c.generatedSecret = true

	return nil
}

func (c Config) IsProd() bool {
	return c.Env == "prod"
}

func (c Config) GeneratedSecret() bool {
	return c.generatedSecret
}

// LogSummary writes the non-secret settings at startup.
func (c Config) LogSummary(log *slog.Logger) {
	log.Info("config loaded",
		"env", c.Env,
		"port", c.Port,
		"store", c.StoreDriver,
		"jwt_ttl", c.JWTTTL.String(),
		"redis", c.RedisAddr != "",
		"otel", c.OTelEndpoint != "",
		"seed_demo", c.SeedDemo,
	)

	if c.generatedSecret {
		log.Warn("JWT_SECRET not set, using a random per-process secret")
	}
}

func buildDBURL() string {
	if v := os.Getenv("DATABASE_URL"); v != "" {
		return v
	}

	host := getEnv("DB_HOST", "127.0.0.1")
	port := getEnv("DB_PORT", "5432")
	user := getEnv("DB_USER", "notehub")
	pass := getEnv("DB_PASSWORD", "notehub")
	name := getEnv("DB_NAME", "notehub")
	ssl := getEnv("DB_SSLMODE", "disable")

	u := url.URL{
		Scheme:   "postgres",
		User:     url.UserPassword(user, pass),
		Host:     net.JoinHostPort(host, port),
		Path:     "/" + name,
		RawQuery: url.Values{"sslmode": {ssl}}.Encode(),
	}

	return u.String()
}

// WithTimeout bounds a store call made on behalf of a request.
func WithTimeout(parent context.Context, duration time.Duration) (context.Context, context.CancelFunc) {
	if parent == nil {
		parent = context.Background()
	}
	return context.WithTimeout(parent, duration)
}

func randomSecret() (string, error) {
	b := make([]byte, 32)

	if _, err := rand.Read(b); err != nil {
		return "", err
	}

	return hex.EncodeToString(b), nil
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}

	return fallback
}

func getEnvInt(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		num, err := strconv.Atoi(v)
		if err != nil {
			slog.Warn("invalid int env var, using default", "key", key, "value", v)
			return fallback
		}

		return num
	}
	return fallback
}

func getEnvBool(key string, fallback bool) bool {
	if v := os.Getenv(key); v != "" {
		b, err := strconv.ParseBool(v)
		if err != nil {
			slog.Warn("invalid bool env var, using default", "key", key, "value", v)
			return fallback
		}

		return b
	}
	return fallback
}

func getEnvDuration(key string, fallback time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil {
			slog.Warn("invalid duration env var, using default", "key", key, "value", v)
			return fallback
		}

		return d
	}
	return fallback
}

func splitList(raw string) []string {
	var out []string

	for _, part := range strings.Split(raw, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}

	return out
}
