// Package config loads cadtalk's ambient configuration from environment
// variables, following the same getEnv/fallback pattern the rest of the
// stack uses.
package config

import (
	"os"
	"strconv"
	"time"
)

// Config is the process-wide ambient configuration. Per-session and
// per-turn knobs (model choice, selected geometry, ...) are never part
// of this struct; they travel through call arguments instead.
type Config struct {
	Port     string
	LogLevel string

	DatabaseDSN string

	LLMProvider string // "openai" or "ollama"
	LLMAPIKey   string
	LLMBaseURL  string
	LLMModel    string
	LLMTimeout  time.Duration

	MaxExecutionTime time.Duration
	MaxMemoryMB      int
	SandboxContainer bool

	ScriptsDir      string
	LLMResponsesDir string

	// EvaluatorBinary names the external CAD evaluator process
	// (spec.md §6's opaque "Consumed — CAD evaluator" boundary). Empty
	// means no real evaluator is configured, and the Engine falls back
	// to the in-process analytical fixture evaluator.
	EvaluatorBinary string
}

// Load reads Config from the environment, falling back to cadtalk's
// defaults for anything unset.
func Load() *Config {
	return &Config{
		Port:     getEnv("PORT", "8080"),
		LogLevel: getEnv("LOG_LEVEL", "info"),

		DatabaseDSN: getEnv("DATABASE_DSN", ""),

		LLMProvider: getEnv("LLM_PROVIDER", "openai"),
		LLMAPIKey:   getEnv("LLM_API_KEY", ""),
		LLMBaseURL:  getEnv("LLM_BASE_URL", "http://localhost:11434"),
		LLMModel:    getEnv("LLM_MODEL", ""),
		LLMTimeout:  getEnvDurationSeconds("LLM_TIMEOUT", 600),

		MaxExecutionTime: getEnvDurationSeconds("MAX_EXECUTION_TIME", 30),
		MaxMemoryMB:      getEnvInt("MAX_MEMORY_MB", 512),
		SandboxContainer: getEnvBool("SANDBOX_CONTAINER_ENABLED", false),

		ScriptsDir:      getEnv("SCRIPTS_DIR", "scripts"),
		LLMResponsesDir: getEnv("LLM_RESPONSES_DIR", "llm_responses"),

		EvaluatorBinary: getEnv("CAD_EVALUATOR_BINARY", ""),
	}
}

// GetPortInt returns the port as an integer.
func (c *Config) GetPortInt() int {
	p, _ := strconv.Atoi(c.Port)
	return p
}

func getEnv(key, fallback string) string {
	if value, ok := os.LookupEnv(key); ok {
		return value
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	if value, ok := os.LookupEnv(key); ok {
		if n, err := strconv.Atoi(value); err == nil {
			return n
		}
	}
	return fallback
}

func getEnvBool(key string, fallback bool) bool {
	if value, ok := os.LookupEnv(key); ok {
		if b, err := strconv.ParseBool(value); err == nil {
			return b
		}
	}
	return fallback
}

func getEnvDurationSeconds(key string, fallbackSeconds int) time.Duration {
	return time.Duration(getEnvInt(key, fallbackSeconds)) * time.Second
}
