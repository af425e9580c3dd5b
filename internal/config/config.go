package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// Config carries everything the process reads from the environment.
type Config struct {
	Port           string
	AllowedOrigins []string

	DatabaseURL string

	RedisAddr     string
	RedisPassword string
	RedisDB       int

	JWTSecret string
	PINPepper string
	TokenTTL  time.Duration

	BodyLimitBytes int64
	RequestTimeout time.Duration

	AllowNegativeStock bool
	StaleBillAfter     time.Duration

	StorageURL    string
	StorageKey    string
	StorageBucket string
}

// Load reads configuration from the environment, applying defaults that
// suit local development. JWT_SECRET and PIN_PEPPER have no defaults.
func Load() (Config, error) {
	cfg := Config{
		Port:           getEnv("PORT", "8080"),
		AllowedOrigins: splitCSV(getEnv("ALLOWED_ORIGINS", "http://localhost:5173")),
		DatabaseURL:    os.Getenv("DATABASE_URL"),
		RedisAddr:      os.Getenv("REDIS_ADDR"),
		RedisPassword:  os.Getenv("REDIS_PASSWORD"),
		JWTSecret:      os.Getenv("JWT_SECRET"),
		PINPepper:      os.Getenv("PIN_PEPPER"),
		StorageURL:     os.Getenv("STORAGE_URL"),
		StorageKey:     os.Getenv("STORAGE_KEY"),
		StorageBucket:  getEnv("STORAGE_BUCKET", "product-images"),
	}

	if cfg.JWTSecret == "" {
		return Config{}, fmt.Errorf("config: JWT_SECRET is required")
	}
	if cfg.PINPepper == "" {
		return Config{}, fmt.Errorf("config: PIN_PEPPER is required")
	}

	redisDB, err := getEnvInt("REDIS_DB", 0)
	if err != nil {
		return Config{}, err
	}
	cfg.RedisDB = redisDB

	ttlMinutes, err := getEnvInt("TOKEN_TTL_MINUTES", 240)
	if err != nil {
		return Config{}, err
	}
	cfg.TokenTTL = time.Duration(ttlMinutes) * time.Minute

	bodyLimit, err := getEnvInt("BODY_LIMIT_BYTES", 2<<20)
	if err != nil {
		return Config{}, err
	}
	cfg.BodyLimitBytes = int64(bodyLimit)

	timeoutSeconds, err := getEnvInt("REQUEST_TIMEOUT_SECONDS", 30)
	if err != nil {
		return Config{}, err
	}
	cfg.RequestTimeout = time.Duration(timeoutSeconds) * time.Second

	allowNegative, err := getEnvBool("ALLOW_NEGATIVE_STOCK", true)
	if err != nil {
		return Config{}, err
	}
	cfg.AllowNegativeStock = allowNegative

	staleHours, err := getEnvInt("STALE_BILL_HOURS", 6)
	if err != nil {
		return Config{}, err
	}
	cfg.StaleBillAfter = time.Duration(staleHours) * time.Hour

	return cfg, nil
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func getEnvInt(key string, fallback int) (int, error) {
	v := os.Getenv(key)
	if v == "" {
		return fallback, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, fmt.Errorf("config: %s: %w", key, err)
	}
	return n, nil
}

func getEnvBool(key string, fallback bool) (bool, error) {
	v := os.Getenv(key)
	if v == "" {
		return fallback, nil
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return false, fmt.Errorf("config: %s: %w", key, err)
	}
	return b, nil
}

func splitCSV(v string) []string {
	parts := strings.Split(v, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if trimmed := strings.TrimSpace(p); trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return out
}
