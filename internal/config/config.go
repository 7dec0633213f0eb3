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

	CRMBaseURL          string
	MaxTranscriptLength int

	AIEnabled             bool
	AIProvider            string
	AIConfidenceThreshold float64
	AITimeout             time.Duration
	AIMaxRetries          int

	AWSRegion          string
	AWSAccessKeyID     string
	AWSSecretAccessKey string
	BedrockModelID     string
	GeminiAPIKey       string
	GeminiModelID      string

	DispatchMaxRetries  int
	DispatchBackoffBase time.Duration
	DispatchBackoffCap  time.Duration
	DispatchTimeout     time.Duration

	RequestDeadline time.Duration

	RedisAddr     string
	RedisPassword string
	RedisTLS      bool
	CacheTTL      time.Duration

	AnalyticsLogPath string
}

// Load reads configuration from environment variables
func Load() *Config {
	return &Config{
		Port:     getEnv("PORT", "8080"),
		Env:      getEnv("ENV", "development"),
		LogLevel: getEnv("LOG_LEVEL", "info"),

		CRMBaseURL:          getEnv("CRM_BASE_URL", "http://localhost:8001"),
		MaxTranscriptLength: getEnvAsInt("MAX_TRANSCRIPT_LENGTH", 1000),

		AIEnabled:             getEnvAsBool("AI_ENABLED", false),
		AIProvider:            strings.ToLower(strings.TrimSpace(getEnv("AI_PROVIDER", "auto"))),
		AIConfidenceThreshold: getEnvAsFloat("AI_CONFIDENCE_THRESHOLD", 0.6),
		AITimeout:             getEnvAsDuration("AI_TIMEOUT", 2*time.Second),
		AIMaxRetries:          getEnvAsInt("AI_MAX_RETRIES", 2),

		AWSRegion:          getEnv("AWS_REGION", "us-east-1"),
		AWSAccessKeyID:     getEnv("AWS_ACCESS_KEY_ID", ""),
		AWSSecretAccessKey: getEnv("AWS_SECRET_ACCESS_KEY", ""),
		BedrockModelID:     getEnv("BEDROCK_MODEL_ID", ""),
		GeminiAPIKey:       getEnv("GEMINI_API_KEY", ""),
		GeminiModelID:      getEnv("GEMINI_MODEL_ID", ""),

		DispatchMaxRetries:  getEnvAsInt("DISPATCH_MAX_RETRIES", 3),
		DispatchBackoffBase: getEnvAsDuration("DISPATCH_BACKOFF_BASE", 250*time.Millisecond),
		DispatchBackoffCap:  getEnvAsDuration("DISPATCH_BACKOFF_CAP", 2*time.Second),
		DispatchTimeout:     getEnvAsDuration("DISPATCH_TIMEOUT", 3*time.Second),

		RequestDeadline: getEnvAsDuration("REQUEST_DEADLINE", 10*time.Second),

		RedisAddr:     getEnv("REDIS_ADDR", ""),
		RedisPassword: getEnv("REDIS_PASSWORD", ""),
		RedisTLS:      getEnvAsBool("REDIS_TLS", false),
		CacheTTL:      getEnvAsDuration("CACHE_TTL", 5*time.Minute),

		AnalyticsLogPath: getEnv("ANALYTICS_LOG_PATH", "logs/analytics.jsonl"),
	}
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

// getEnvAsBool retrieves an environment variable as a boolean or returns a default value
func getEnvAsBool(key string, defaultValue bool) bool {
	valueStr := getEnv(key, "")
	if value, err := strconv.ParseBool(valueStr); err == nil {
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
