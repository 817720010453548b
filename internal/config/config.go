package config

import (
	"fmt"
	"log"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	Port            string
	DBUrl           string
	JWTSecret       string
	RedisURL        string
	AppEnv          string
	AutoMigrate     bool
	ProfileCacheTTL time.Duration
	CORSOrigins     string
	ServiceName     string
	EnableDocs      bool
}

func LoadConfig() (*Config, error) {
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found")
	}

	jwtSecret, exists := os.LookupEnv("JWT_SECRET")
	if !exists || jwtSecret == "" {
		return nil, fmt.Errorf("JWT_SECRET is required")
	}

	return &Config{
		Port:            getEnv("PORT", "8080"),
		DBUrl:           getEnv("DB_URL", ""),
		JWTSecret:       jwtSecret,
		RedisURL:        getEnv("REDIS_URL", ""),
		AppEnv:          normalizeEnv(getEnv("APP_ENV", "production")),
		AutoMigrate:     getEnvBool("AUTO_MIGRATE", false),
		ProfileCacheTTL: getEnvDuration("PROFILE_CACHE_TTL", 15*time.Minute),
		CORSOrigins:     getEnv("CORS_ORIGINS", "*"),
		ServiceName:     getEnv("SERVICE_NAME", "agariki"),
		EnableDocs:      getEnvBool("ENABLE_API_DOCS", false),
	}, nil
}

func getEnv(key, fallback string) string {
	if value, exists := os.LookupEnv(key); exists {
		return value
	}
	return fallback
}

func getEnvBool(key string, fallback bool) bool {
	value, exists := os.LookupEnv(key)
	if !exists || value == "" {
		return fallback
	}

	switch strings.ToLower(strings.TrimSpace(value)) {
	case "1", "true", "yes", "on":
		return true
	case "0", "false", "no", "off":
		return false
	default:
		return fallback
	}
}

func getEnvDuration(key string, fallback time.Duration) time.Duration {
	value, exists := os.LookupEnv(key)
	if !exists || strings.TrimSpace(value) == "" {
		return fallback
	}
	parsed, err := time.ParseDuration(strings.TrimSpace(value))
	if err != nil || parsed <= 0 {
		return fallback
	}
	return parsed
}

func normalizeEnv(value string) string {
	switch strings.ToLower(strings.TrimSpace(value)) {
	case "dev", "develop", "development", "local":
		return "development"
	case "prod", "production":
		return "production"
	case "stage", "staging":
		return "staging"
	case "test", "testing":
		return "test"
	default:
		return strings.ToLower(strings.TrimSpace(value))
	}
}

func (c *Config) IsDevelopment() bool {
	return c != nil && c.AppEnv == "development"
}

// DocsEnabled serves the API reference only in development.
func (c *Config) DocsEnabled() bool {
	return c != nil && c.EnableDocs && c.AppEnv == "development"
}

// RedisEnabled reports whether the profile cache and realtime relay should
// use Redis instead of in-process implementations.
func (c *Config) RedisEnabled() bool {
	return c != nil && strings.TrimSpace(c.RedisURL) != ""
}
