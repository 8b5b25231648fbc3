package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	Database DatabaseConfig
	Redis    RedisConfig
	Server   ServerConfig
	Auth     AuthConfig
	Registry RegistryConfig
	Security SecurityConfig
	Email    EmailConfig
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

type RedisConfig struct {
	// URL is optional. When empty the service falls back to the in-memory
	// cache, which is fine for a single instance but loses verification
	// results on restart.
	URL string
}

type ServerConfig struct {
	Port           string
	Env            string
	LogLevel       string
	BaseURL        string
	AllowedOrigins []string
}

type AuthConfig struct {
	JWTSecret         string
	AccessTokenExpiry time.Duration
}

type RegistryConfig struct {
	BaseURL  string
	Timeout  time.Duration
	CacheTTL time.Duration
	Enabled  bool
}

type SecurityConfig struct {
	TimingFloor          time.Duration
	TimingJitter         time.Duration
	FailureWindow        time.Duration
	FailureThreshold     int
	AlertThreshold       int
	AccessRateLimit      int
	AccessRateWindow     time.Duration
	VerifyRateLimit      int
	VerifyRateWindow     time.Duration
	AccessTokenLifetime  time.Duration
	EventRetention       time.Duration
	TrustedProxies       []string
}

type EmailConfig struct {
	Enabled     bool
	Region      string
	FromAddress string
}

func Load() (*Config, error) {
	_ = godotenv.Load()

	jwtSecret := getEnv("JWT_SECRET", "")
	if jwtSecret == "" {
		return nil, fmt.Errorf("JWT_SECRET is required")
	}

	env := getEnv("ENV", "development")

	cfg := &Config{
		Database: DatabaseConfig{
			Host:              getEnv("DB_HOST", "localhost"),
			Port:              getEnvAsInt("DB_PORT", 5432),
			User:              getEnv("DB_USER", "postgres"),
			Password:          getEnv("DB_PASSWORD", ""),
			Name:              getEnv("DB_NAME", "vida"),
			SSLMode:           getEnv("DB_SSLMODE", "disable"),
			MaxConns:          int32(getEnvAsInt("DB_MAX_CONNS", 25)),
			MinConns:          int32(getEnvAsInt("DB_MIN_CONNS", 5)),
			MaxConnLifetime:   getEnvAsDuration("DB_MAX_CONN_LIFETIME", 5*time.Minute),
			MaxConnIdleTime:   getEnvAsDuration("DB_MAX_CONN_IDLE_TIME", 1*time.Minute),
			HealthCheckPeriod: getEnvAsDuration("DB_HEALTH_CHECK_PERIOD", 1*time.Minute),
		},
		Redis: RedisConfig{
			URL: getEnv("REDIS_URL", ""),
		},
		Server: ServerConfig{
			Port:           getEnv("PORT", "8080"),
			Env:            env,
			LogLevel:       getEnv("LOG_LEVEL", "info"),
			BaseURL:        getEnv("BASE_URL", "http://localhost:8080"),
			AllowedOrigins: parseAllowedOrigins(env),
		},
		Auth: AuthConfig{
			JWTSecret:         jwtSecret,
			AccessTokenExpiry: getEnvAsDuration("ACCESS_TOKEN_EXPIRY", 15*time.Minute),
		},
		Registry: RegistryConfig{
			BaseURL:  getEnv("REGISTRY_BASE_URL", ""),
			Timeout:  getEnvAsDuration("REGISTRY_TIMEOUT", 10*time.Second),
			CacheTTL: getEnvAsDuration("REGISTRY_CACHE_TTL", 7*24*time.Hour),
			Enabled:  getEnvAsBool("REGISTRY_ENABLED", true),
		},
		Security: SecurityConfig{
			TimingFloor:         getEnvAsDuration("TIMING_FLOOR", 200*time.Millisecond),
			TimingJitter:        getEnvAsDuration("TIMING_JITTER", 100*time.Millisecond),
			FailureWindow:       getEnvAsDuration("FAILURE_WINDOW", 5*time.Minute),
			FailureThreshold:    getEnvAsInt("FAILURE_THRESHOLD", 5),
			AlertThreshold:      getEnvAsInt("ALERT_THRESHOLD", 10),
			AccessRateLimit:     getEnvAsInt("ACCESS_RATE_LIMIT", 10),
			AccessRateWindow:    getEnvAsDuration("ACCESS_RATE_WINDOW", time.Minute),
			VerifyRateLimit:     getEnvAsInt("VERIFY_RATE_LIMIT", 30),
			VerifyRateWindow:    getEnvAsDuration("VERIFY_RATE_WINDOW", time.Minute),
			AccessTokenLifetime: getEnvAsDuration("ACCESS_TOKEN_LIFETIME", time.Hour),
			EventRetention:      getEnvAsDuration("EVENT_RETENTION", 30*24*time.Hour),
			TrustedProxies:      parseList(getEnv("TRUSTED_PROXIES", "")),
		},
		Email: EmailConfig{
			Enabled:     getEnvAsBool("EMAIL_ENABLED", false),
			Region:      getEnv("AWS_REGION", "us-east-1"),
			FromAddress: getEnv("EMAIL_FROM", "alerts@vida.health"),
		},
	}

	if cfg.Database.Password == "" {
		return nil, fmt.Errorf("DB_PASSWORD is required")
	}

	if cfg.Registry.Enabled && cfg.Registry.BaseURL == "" {
		return nil, fmt.Errorf("REGISTRY_BASE_URL is required when REGISTRY_ENABLED=true")
	}

	if cfg.Email.Enabled && cfg.Email.FromAddress == "" {
		return nil, fmt.Errorf("EMAIL_FROM is required when EMAIL_ENABLED=true")
	}

	if err := validateJWTSecret(jwtSecret, env); err != nil {
		return nil, err
	}

	return cfg, nil
}

// validateJWTSecret enforces minimum security standards for the JWT secret
func validateJWTSecret(secret, env string) error {
	minLength := 16
	if env == "production" {
		minLength = 32
	}

	if len(secret) < minLength {
		return fmt.Errorf("JWT_SECRET must be at least %d characters in %s environment (got %d)",
			minLength, env, len(secret))
	}

	weakSecrets := []string{
		"secret", "test", "password", "12345", "changeme",
		"admin", "root", "default", "example",
	}

	secretLower := strings.ToLower(secret)
	for _, weak := range weakSecrets {
		if secretLower == weak {
			return fmt.Errorf("JWT_SECRET cannot be a common weak value")
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

func getEnvAsBool(key string, defaultVal bool) bool {
	if value := os.Getenv(key); value != "" {
		if boolVal, err := strconv.ParseBool(value); err == nil {
			return boolVal
		}
	}
	return defaultVal
}

func parseList(s string) []string {
	if s == "" {
		return nil
	}
	parts := strings.Split(s, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if trimmed := strings.TrimSpace(p); trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return out
}

func parseAllowedOrigins(env string) []string {
	if env == "production" {
		originsStr := getEnv("ALLOWED_ORIGINS", "")
		if originsStr == "" {
			return []string{}
		}
		return parseList(originsStr)
	}

	// Development: allow localhost variants
	return []string{
		"http://localhost:3000",
		"http://localhost:8080",
		"http://localhost:5173",
		"http://127.0.0.1:3000",
		"http://127.0.0.1:8080",
		"http://127.0.0.1:5173",
	}
}
