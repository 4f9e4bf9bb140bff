package config

import (
	"os"
	"strconv"
	"strings"
	"time"
)

// Config holds application configuration
type Config struct {
	Port     string
	Env      string
	LogLevel string

	// Backend API that owns categories, services, therapists, timeslots and bookings.
	BackendBaseURL  string
	CatalogTimeout  time.Duration
	CatalogCacheTTL time.Duration

	WizardSessionTTL    time.Duration
	WizardAdvancePolicy string

	// StateBackend selects where wizard state, auth sessions and the catalog cache live.
	StateBackend  string
	RedisAddr     string
	RedisPassword string
	RedisTLS      bool

	SessionJWTSecret string
	AuthSessionTTL   time.Duration

	DatabaseURL string

	AWSRegion             string
	AWSAccessKeyID        string
	AWSSecretAccessKey    string
	AWSEndpointOverride   string
	BookingEventsQueueURL string

	CORSAllowedOrigins []string
	RateLimitRPS       float64
	RateLimitBurst     int
}

// Load reads configuration from environment variables
func Load() *Config {
	return &Config{
		Port:     getEnv("PORT", "8080"),
		Env:      getEnv("ENV", "development"),
		LogLevel: getEnv("LOG_LEVEL", "info"),

		BackendBaseURL:  strings.TrimRight(getEnv("BACKEND_BASE_URL", "http://localhost:5000/api"), "/"),
		CatalogTimeout:  getEnvAsDuration("CATALOG_TIMEOUT", 10*time.Second),
		CatalogCacheTTL: getEnvAsDuration("CATALOG_CACHE_TTL", 15*time.Minute),

		WizardSessionTTL:    getEnvAsDuration("WIZARD_SESSION_TTL", 30*time.Minute),
		WizardAdvancePolicy: strings.ToLower(getEnv("WIZARD_ADVANCE_POLICY", "auto")),

		StateBackend:  strings.ToLower(getEnv("STATE_BACKEND", "memory")),
		RedisAddr:     getEnv("REDIS_ADDR", "localhost:6379"),
		RedisPassword: getEnv("REDIS_PASSWORD", ""),
		RedisTLS:      getEnvAsBool("REDIS_TLS", false),

		SessionJWTSecret: getEnv("SESSION_JWT_SECRET", ""),
		AuthSessionTTL:   getEnvAsDuration("AUTH_SESSION_TTL", 12*time.Hour),

		DatabaseURL: getEnv("DATABASE_URL", ""),

		AWSRegion:             getEnv("AWS_REGION", "us-east-1"),
		AWSAccessKeyID:        getEnv("AWS_ACCESS_KEY_ID", ""),
		AWSSecretAccessKey:    getEnv("AWS_SECRET_ACCESS_KEY", ""),
		AWSEndpointOverride:   getEnv("AWS_ENDPOINT_OVERRIDE", ""),
		BookingEventsQueueURL: getEnv("BOOKING_EVENTS_QUEUE_URL", ""),

		CORSAllowedOrigins: getEnvAsList("CORS_ALLOWED_ORIGINS", []string{"http://localhost:3000"}),
		RateLimitRPS:       getEnvAsFloat("RATE_LIMIT_RPS", 10),
		RateLimitBurst:     getEnvAsInt("RATE_LIMIT_BURST", 20),
	}
}

// UseRedis reports whether shared state should go to redis instead of process memory.
func (c *Config) UseRedis() bool {
	return c.StateBackend == "redis"
}

// getEnv retrieves an environment variable or returns a default value
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// getEnvAsInt retrieves an environment variable as an integer or returns a default value
func getEnvAsInt(key string, defaultValue int) int {
	valueStr := getEnv(key, "")
	if value, err := strconv.Atoi(valueStr); err == nil {
		return value
	}
	return defaultValue
}

func getEnvAsFloat(key string, defaultValue float64) float64 {
	valueStr := getEnv(key, "")
	if value, err := strconv.ParseFloat(valueStr, 64); err == nil {
		return value
	}
	return defaultValue
}

// getEnvAsBool retrieves an environment variable as a boolean or returns a default value
func getEnvAsBool(key string, defaultValue bool) bool {
	valueStr := getEnv(key, "")
	if value, err := strconv.ParseBool(valueStr); err == nil {
		return value
	}
	return defaultValue
}

func getEnvAsDuration(key string, defaultValue time.Duration) time.Duration {
	valueStr := getEnv(key, "")
	if valueStr == "" {
		return defaultValue
	}
	if value, err := time.ParseDuration(valueStr); err == nil {
		return value
	}
	return defaultValue
}

// getEnvAsList splits a comma separated variable, dropping blanks.
func getEnvAsList(key string, defaultValue []string) []string {
	valueStr := getEnv(key, "")
	if valueStr == "" {
		return defaultValue
	}
	var out []string
	for _, part := range strings.Split(valueStr, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	if len(out) == 0 {
		return defaultValue
	}
	return out
}
