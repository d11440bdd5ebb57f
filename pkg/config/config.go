// Package config loads the inference layer's configuration from environment
// variables. Loaded once at startup and treated as read-only afterwards.
package config

import (
	"os"
	"strconv"
	"time"
)

// Config holds all configuration consumed by the inference layer.
type Config struct {
	// TimeoutInference is the hard wall-clock budget per inference call.
	TimeoutInference time.Duration
	// LogPrompts enables debug logging of responses.
	LogPrompts bool
	// TokenThreshold is the per-call total-token warning threshold.
	TokenThreshold int

	LedgerPath string
	CostDBPath string
	StatePath  string
	RatesPath  string

	ClaudeAPIKey  string
	OpenAIAPIKey  string
	GeminiAPIKey  string
	MistralAPIKey string
	GroqAPIKey    string

	OllamaEndpoint   string
	LMStudioEndpoint string

	// CacheSize is the response cache capacity; 0 disables the cache.
	CacheSize int
	// MaxRPM caps requests per minute per backend; 0 means unlimited.
	MaxRPM int

	LogLevel string
}

// Load reads configuration from environment variables with defaults.
func Load() *Config {
	return &Config{
		TimeoutInference: getEnvDuration("TIMEOUT_INFERENCE", "60s"),
		LogPrompts:       getEnvBool("LOG_PROMPTS", false),
		TokenThreshold:   getEnvInt("TOKEN_THRESHOLD", 8000),

		LedgerPath: getEnv("TOKEN_USAGE_LOG", "logs/token_usage_log.txt"),
		CostDBPath: getEnv("COST_DB", ""),
		StatePath:  getEnv("STATE_DB", "data/agent_state.db"),
		RatesPath:  getEnv("MODEL_RATES", ""),

		ClaudeAPIKey:  getEnv("CLAUDE_API_KEY", ""),
		OpenAIAPIKey:  getEnv("OPENAI_API_KEY", ""),
		GeminiAPIKey:  getEnv("GEMINI_API_KEY", ""),
		MistralAPIKey: getEnv("MISTRAL_API_KEY", ""),
		GroqAPIKey:    getEnv("GROQ_API_KEY", ""),

		OllamaEndpoint:   getEnv("OLLAMA_API_ENDPOINT", "http://127.0.0.1:11434"),
		LMStudioEndpoint: getEnv("LMSTUDIO_API_ENDPOINT", ""),

		CacheSize: getEnvInt("RESPONSE_CACHE_SIZE", 0),
		MaxRPM:    getEnvInt("MAX_RPM", 0),

		LogLevel: getEnv("LOG_LEVEL", "info"),
	}
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
	}
	return defaultValue
}

func getEnvBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if boolValue, err := strconv.ParseBool(value); err == nil {
			return boolValue
		}
	}
	return defaultValue
}

func getEnvDuration(key, defaultValue string) time.Duration {
	if value := os.Getenv(key); value != "" {
		if duration, err := time.ParseDuration(value); err == nil {
			return duration
		}
		// Bare integers are treated as seconds.
		if seconds, err := strconv.Atoi(value); err == nil {
			return time.Duration(seconds) * time.Second
		}
	}
	duration, _ := time.ParseDuration(defaultValue)
	return duration
}
