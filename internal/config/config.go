package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Store backends
const (
	StoreBackendPostgres = "postgres"
	StoreBackendSQLite   = "sqlite"

	QuotaBackendStore = "store"
	QuotaBackendRedis = "redis"
)

type Config struct {
	Database   DatabaseConfig
	Server     ServerConfig
	Store      StoreConfig
	Quota      QuotaConfig
	Governance GovernanceConfig
	Auth       AuthConfig
	Archive    ArchiveConfig
}

type DatabaseConfig struct {
	Host              string
	Port              int
	User              string
	Password          string
	Name              string
	SSLMode           string
	MaxConns          int32
	MinConns          int32
	MaxConnLifetime   time.Duration
	MaxConnIdleTime   time.Duration
	HealthCheckPeriod time.Duration
}

type ServerConfig struct {
	Port           string
	Env            string
	LogLevel       string
	LogFormat      string
	AllowedOrigins []string
	TrustedProxies []string
	ReadTimeout    time.Duration
	WriteTimeout   time.Duration
	IdleTimeout    time.Duration
}

// StoreConfig selects the durable store for subscriptions and activity events
type StoreConfig struct {
	Backend    string
	SQLitePath string
	Timeout    time.Duration
}

// QuotaConfig selects where live message counters are kept
type QuotaConfig struct {
	Backend        string
	RedisAddr      string
	RedisPassword  string
	RedisDB        int
	RedisKeyPrefix string
	CounterTTL     time.Duration
}

type GovernanceConfig struct {
	LoginMaxAttempts     int
	LoginLockoutDuration time.Duration
	LedgerPruneInterval  time.Duration
	FreePlanID           string
}

type AuthConfig struct {
	JWTSecret      string
	JWTAudience    string
	InternalAPIKey string
}

// ArchiveConfig enables the S3 activity archive when Bucket is set
type ArchiveConfig struct {
	Bucket    string
	Prefix    string
	AWSRegion string
}

func Load() (*Config, error) {
	_ = godotenv.Load()

	jwtSecret := getEnv("SUPABASE_JWT_SECRET", "")
	if jwtSecret == "" {
		return nil, fmt.Errorf("SUPABASE_JWT_SECRET is required")
	}

	internalKey := getEnv("INTERNAL_API_KEY", "")
	if internalKey == "" {
		return nil, fmt.Errorf("INTERNAL_API_KEY is required")
	}

	env := getEnv("ENV", "development")

	cfg := &Config{
		Database: DatabaseConfig{
			Host:              getEnv("DB_HOST", "localhost"),
			Port:              getEnvAsInt("DB_PORT", 5432),
			User:              getEnv("DB_USER", "postgres"),
			Password:          getEnv("DB_PASSWORD", ""),
			Name:              getEnv("DB_NAME", "pmcoach"),
			SSLMode:           getEnv("DB_SSLMODE", "disable"),
			MaxConns:          int32(getEnvAsInt("DB_MAX_CONNS", 25)),
			MinConns:          int32(getEnvAsInt("DB_MIN_CONNS", 5)),
			MaxConnLifetime:   getEnvAsDuration("DB_MAX_CONN_LIFETIME", 5*time.Minute),
			MaxConnIdleTime:   getEnvAsDuration("DB_MAX_CONN_IDLE_TIME", 1*time.Minute),
			HealthCheckPeriod: getEnvAsDuration("DB_HEALTH_CHECK_PERIOD", 1*time.Minute),
		},
		Server: ServerConfig{
			Port:           getEnv("PORT", "8080"),
			Env:            env,
			LogLevel:       getEnv("LOG_LEVEL", "info"),
			LogFormat:      getEnv("LOG_FORMAT", "json"),
			AllowedOrigins: parseAllowedOrigins(env),
			TrustedProxies: splitList(getEnv("TRUSTED_PROXIES", "")),
			ReadTimeout:    getEnvAsDuration("SERVER_READ_TIMEOUT", 15*time.Second),
			WriteTimeout:   getEnvAsDuration("SERVER_WRITE_TIMEOUT", 15*time.Second),
			IdleTimeout:    getEnvAsDuration("SERVER_IDLE_TIMEOUT", 60*time.Second),
		},
		Store: StoreConfig{
			Backend:    strings.ToLower(getEnv("STORE_BACKEND", StoreBackendPostgres)),
			SQLitePath: getEnv("SQLITE_PATH", "pmcoach.db"),
			Timeout:    getEnvAsDuration("STORE_TIMEOUT", 3*time.Second),
		},
		Quota: QuotaConfig{
			Backend:        strings.ToLower(getEnv("QUOTA_BACKEND", QuotaBackendStore)),
			RedisAddr:      getEnv("REDIS_ADDR", "localhost:6379"),
			RedisPassword:  getEnv("REDIS_PASSWORD", ""),
			RedisDB:        getEnvAsInt("REDIS_DB", 0),
			RedisKeyPrefix: getEnv("REDIS_KEY_PREFIX", "pmcoach:usage:"),
			CounterTTL:     getEnvAsDuration("REDIS_COUNTER_TTL", 24*time.Hour),
		},
		Governance: GovernanceConfig{
			LoginMaxAttempts:     getEnvAsInt("LOGIN_MAX_ATTEMPTS", 5),
			LoginLockoutDuration: getEnvAsDuration("LOGIN_LOCKOUT_DURATION", 15*time.Minute),
			LedgerPruneInterval:  getEnvAsDuration("LEDGER_PRUNE_INTERVAL", 5*time.Minute),
			FreePlanID:           getEnv("FREE_PLAN_ID", "free"),
		},
		Auth: AuthConfig{
			JWTSecret:      jwtSecret,
			JWTAudience:    getEnv("SUPABASE_JWT_AUDIENCE", "authenticated"),
			InternalAPIKey: internalKey,
		},
		Archive: ArchiveConfig{
			Bucket:    getEnv("ACTIVITY_ARCHIVE_BUCKET", ""),
			Prefix:    getEnv("ACTIVITY_ARCHIVE_PREFIX", "activity/"),
			AWSRegion: getEnv("AWS_REGION", "us-east-1"),
		},
	}

	switch cfg.Store.Backend {
	case StoreBackendPostgres:
		if cfg.Database.Password == "" {
			return nil, fmt.Errorf("DB_PASSWORD is required")
		}
	case StoreBackendSQLite:
	default:
		return nil, fmt.Errorf("STORE_BACKEND must be %q or %q (got %q)", StoreBackendPostgres, StoreBackendSQLite, cfg.Store.Backend)
	}

	if cfg.Quota.Backend != QuotaBackendStore && cfg.Quota.Backend != QuotaBackendRedis {
		return nil, fmt.Errorf("QUOTA_BACKEND must be %q or %q (got %q)", QuotaBackendStore, QuotaBackendRedis, cfg.Quota.Backend)
	}

	if cfg.Governance.LoginMaxAttempts < 1 {
		return nil, fmt.Errorf("LOGIN_MAX_ATTEMPTS must be at least 1")
	}
	if cfg.Governance.LoginLockoutDuration < time.Minute {
		return nil, fmt.Errorf("LOGIN_LOCKOUT_DURATION must be at least 1m")
	}

	if err := validateSecret("SUPABASE_JWT_SECRET", jwtSecret, env); err != nil {
		return nil, err
	}
	if err := validateSecret("INTERNAL_API_KEY", internalKey, env); err != nil {
		return nil, err
	}

	return cfg, nil
}

// validateSecret enforces minimum security standards for shared secrets
func validateSecret(name, secret, env string) error {
	minLength := 16
	if env == "production" {
		minLength = 32
	}

	if len(secret) < minLength {
		return fmt.Errorf("%s must be at least %d characters in %s environment (got %d)",
			name, minLength, env, len(secret))
	}

	weakSecrets := []string{
		"secret", "test", "password", "12345", "changeme",
		"admin", "root", "default", "example",
	}

	secretLower := strings.ToLower(secret)
	for _, weak := range weakSecrets {
		if secretLower == weak {
			return fmt.Errorf("%s cannot be a common weak value", name)
		}
	}

	return nil
}

func (c *DatabaseConfig) DSN() string {
	return fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		c.Host, c.Port, c.User, c.Password, c.Name, c.SSLMode,
	)
}

func getEnv(key, defaultVal string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultVal
}

func getEnvAsInt(key string, defaultVal int) int {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.Atoi(value); err == nil {
			return intVal
		}
	}
	return defaultVal
}

func getEnvAsDuration(key string, defaultVal time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if duration, err := time.ParseDuration(value); err == nil {
			return duration
		}
	}
	return defaultVal
}

// splitList splits a comma-separated value, dropping empty entries
func splitList(value string) []string {
	items := []string{}
	for _, item := range strings.Split(value, ",") {
		if item = strings.TrimSpace(item); item != "" {
			items = append(items, item)
		}
	}
	return items
}

func parseAllowedOrigins(env string) []string {
	if origins := splitList(getEnv("ALLOWED_ORIGINS", "")); len(origins) > 0 {
		return origins
	}

	if env == "production" {
		return []string{}
	}

	// Development: allow the local front-end
	return []string{
		"http://localhost:3000",
		"http://localhost:5173",
		"http://127.0.0.1:3000",
		"http://127.0.0.1:5173",
	}
}
