package config

import (
	"errors"
	"fmt"
	"io/fs"
	"net"
	neturl "net/url"
	"os"
	"strconv"
	"strings"
	"time"

	domain "tokenauth/backend/internal/domain/auth"

	"github.com/joho/godotenv"
	"golang.org/x/crypto/bcrypt"
)

// Credential store kinds.
const (
	StoreMemory   = "memory"
	StorePostgres = "postgres"
)

// Config centralises runtime configuration.
type Config struct {
	HTTPPort         string
	CredentialStore  string
	DatabaseURL      string
	SeedCredentials  bool
	BcryptCost       int
	RedisAddr        string
	JWTSecret        string
	JWTIssuer        string
	JWTExpiry        time.Duration
	LoginMaxFailures int
	LoginLockout     time.Duration
	LoginRatePerMin  int
	LoginRateBurst   int
	LogLevel         string
	AllowedOrigins   []string
	ReadTimeoutSec   int
	WriteTimeoutSec  int
	IdleTimeoutSec   int
}

// Load reads configuration from environment variables providing sane defaults.
func Load() (Config, error) {
	if err := loadDotEnv(".env"); err != nil {
		return Config{}, fmt.Errorf("loading .env: %w", err)
	}

	httpPort := getEnv("HTTP_PORT", "")
	if httpPort == "" {
		httpPort = getEnv("PORT", "8080")
	}

	cfg := Config{
		HTTPPort:         httpPort,
		CredentialStore:  strings.ToLower(getEnv("CREDENTIAL_STORE", StoreMemory)),
		SeedCredentials:  getBoolEnv("SEED_CREDENTIALS", false),
		BcryptCost:       getIntEnv("BCRYPT_COST", domain.DefaultHashCost),
		RedisAddr:        getEnv("REDIS_ADDR", ""),
		JWTSecret:        getEnv("JWT_SECRET", ""),
		JWTIssuer:        getEnv("JWT_ISSUER", ""),
		JWTExpiry:        getDurationEnv("JWT_EXPIRY", 30*time.Minute),
		LoginMaxFailures: getIntEnv("LOGIN_MAX_FAILURES", 5),
		LoginLockout:     getDurationEnv("LOGIN_LOCKOUT", 15*time.Minute),
		LoginRatePerMin:  getIntEnv("LOGIN_RATE_PER_MIN", 30),
		LoginRateBurst:   getIntEnv("LOGIN_RATE_BURST", 10),
		LogLevel:         getEnv("LOG_LEVEL", "info"),
		AllowedOrigins:   splitCSV(getEnv("CORS_ALLOWED_ORIGINS", "*")),
		ReadTimeoutSec:   getIntEnv("HTTP_READ_TIMEOUT", 15),
		WriteTimeoutSec:  getIntEnv("HTTP_WRITE_TIMEOUT", 15),
		IdleTimeoutSec:   getIntEnv("HTTP_IDLE_TIMEOUT", 60),
	}

	switch cfg.CredentialStore {
	case StoreMemory:
	case StorePostgres:
		cfg.DatabaseURL = resolveDatabaseURL()
		if cfg.DatabaseURL == "" {
			return Config{}, fmt.Errorf("database configuration missing: provide DATABASE_URL or PG* env vars")
		}
	default:
		return Config{}, fmt.Errorf("unsupported CREDENTIAL_STORE %q", cfg.CredentialStore)
	}
	if cfg.JWTSecret == "" {
		return Config{}, fmt.Errorf("JWT_SECRET is required")
	}
	if cfg.JWTExpiry <= 0 {
		return Config{}, fmt.Errorf("JWT_EXPIRY must be positive")
	}
	if cfg.BcryptCost < bcrypt.MinCost || cfg.BcryptCost > bcrypt.MaxCost {
		return Config{}, fmt.Errorf("BCRYPT_COST must be between %d and %d", bcrypt.MinCost, bcrypt.MaxCost)
	}
	if cfg.LoginMaxFailures <= 0 {
		return Config{}, fmt.Errorf("LOGIN_MAX_FAILURES must be positive")
	}
	return cfg, nil
}

func getEnv(key, fallback string) string {
	if val, ok := os.LookupEnv(key); ok && val != "" {
		return val
	}
	return fallback
}

func getDurationEnv(key string, fallback time.Duration) time.Duration {
	if val, ok := os.LookupEnv(key); ok && val != "" {
		if d, err := time.ParseDuration(val); err == nil {
			return d
		}
	}
	return fallback
}

func getIntEnv(key string, fallback int) int {
	if val, ok := os.LookupEnv(key); ok && val != "" {
		if n, err := strconv.Atoi(val); err == nil {
			return n
		}
	}
	return fallback
}

func getBoolEnv(key string, fallback bool) bool {
	if val, ok := os.LookupEnv(key); ok && val != "" {
		if b, err := strconv.ParseBool(val); err == nil {
			return b
		}
	}
	return fallback
}

func splitCSV(value string) []string {
	parts := []string{}
	for _, part := range strings.Split(value, ",") {
		trimmed := strings.TrimSpace(part)
		if trimmed != "" {
			parts = append(parts, trimmed)
		}
	}
	if len(parts) == 0 {
		return []string{"*"}
	}
	return parts
}

// resolveDatabaseURL prefers an explicit URL, then a URL file, then libpq-style PG* variables.
func resolveDatabaseURL() string {
	for _, key := range []string{"DATABASE_URL", "POSTGRES_URL"} {
		if url := coerceDatabaseURL(os.Getenv(key)); url != "" {
			return url
		}
	}
	if url := coerceDatabaseURL(readEnvFile("DATABASE_URL_FILE")); url != "" {
		return url
	}

	host := firstNonEmpty(os.Getenv("PGHOST"), os.Getenv("POSTGRES_HOST"))
	user := firstNonEmpty(os.Getenv("PGUSER"), os.Getenv("POSTGRES_USER"))
	if host == "" || user == "" {
		return ""
	}
	password := firstNonEmpty(os.Getenv("PGPASSWORD"), os.Getenv("POSTGRES_PASSWORD"))
	database := firstNonEmpty(os.Getenv("PGDATABASE"), os.Getenv("POSTGRES_DB"), user)
	port := firstNonEmpty(os.Getenv("PGPORT"), os.Getenv("POSTGRES_PORT"), "5432")
	sslMode := firstNonEmpty(os.Getenv("PGSSLMODE"), "require")

	dsn := &neturl.URL{
		Scheme: "postgres",
		Host:   net.JoinHostPort(host, port),
		Path:   "/" + database,
		User:   neturl.User(user),
	}
	if password != "" {
		dsn.User = neturl.UserPassword(user, password)
	}
	query := dsn.Query()
	query.Set("sslmode", sslMode)
	dsn.RawQuery = query.Encode()
	return dsn.String()
}

func coerceDatabaseURL(raw string) string {
	raw = strings.TrimSpace(raw)
	switch {
	case strings.HasPrefix(raw, "postgres://"):
		return raw
	case strings.HasPrefix(raw, "postgresql://"):
		return "postgres://" + strings.TrimPrefix(raw, "postgresql://")
	}
	return ""
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}

func readEnvFile(key string) string {
	path := os.Getenv(key)
	if path == "" {
		return ""
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return ""
	}
	return strings.TrimSpace(string(data))
}

// loadDotEnv applies KEY=VALUE lines from path. Variables already present in the
// environment win over the file. A missing file is not an error.
func loadDotEnv(path string) error {
	if _, err := os.Stat(path); errors.Is(err, fs.ErrNotExist) {
		return nil
	}
	return godotenv.Load(path)
}
