// Package config provides configuration for the assistant.
package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/xiaot623/gogo/assistant/internal/domain"
)

// Filter engines.
const (
	EngineStatic = "static"
	EngineRego   = "rego"
)

// Memory extractors.
const (
	ExtractorPattern = "pattern"
	ExtractorLLM     = "llm"
)

// Config holds the assistant configuration.
type Config struct {
	// Server settings
	HTTPPort int

	// Database
	DatabaseURL string

	// NL backend
	Mode       string
	LLMURL     string
	LLMAPIKey  string
	LLMModel   string
	LLMTimeout time.Duration

	// Routing and fan-out
	RoutingMode         domain.RoutingMode
	ConfidenceThreshold float64
	HandlerTimeout      time.Duration
	QueryTimeout        time.Duration
	MaxHops             int
	MaxCandidates       int

	// Filter
	FilterEngine    string
	PermissionsFile string

	// Memory
	MemoryQueueSize int
	MemoryWorkers   int
	MemoryExtractor string

	// Data sources
	KnowledgeFile string
	HandlersFile  string
	UnionRulesURL string

	// Logging
	LogLevel string
}

// Load loads configuration from environment variables.
func Load() *Config {
	cfg := &Config{
		HTTPPort:            getEnvInt("HTTP_PORT", 8080),
		DatabaseURL:         getEnv("DATABASE_URL", "file:assistant.db?cache=shared&mode=rwc"),
		Mode:                getEnv("ASSISTANT_MODE", ""),
		LLMURL:              getEnv("LLM_URL", ""),
		LLMAPIKey:           getEnv("LLM_API_KEY", ""),
		LLMModel:            getEnv("LLM_MODEL", "gpt-4o-mini"),
		LLMTimeout:          getEnvDuration("LLM_TIMEOUT", 30*time.Second),
		RoutingMode:         domain.RoutingMode(getEnv("ROUTING_MODE", string(domain.RoutingAuto))),
		ConfidenceThreshold: getEnvFloat("CONFIDENCE_THRESHOLD", 0.5),
		HandlerTimeout:      getEnvDuration("HANDLER_TIMEOUT", 5*time.Second),
		QueryTimeout:        getEnvDuration("QUERY_TIMEOUT", 15*time.Second),
		MaxHops:             getEnvInt("MAX_HOPS", 3),
		MaxCandidates:       getEnvInt("MAX_CANDIDATES", 0),
		FilterEngine:        getEnv("FILTER_ENGINE", EngineStatic),
		PermissionsFile:     getEnv("PERMISSIONS_FILE", ""),
		MemoryQueueSize:     getEnvInt("MEMORY_QUEUE_SIZE", 256),
		MemoryWorkers:       getEnvInt("MEMORY_WORKERS", 2),
		MemoryExtractor:     getEnv("MEMORY_EXTRACTOR", ExtractorPattern),
		KnowledgeFile:       getEnv("KNOWLEDGE_FILE", ""),
		HandlersFile:        getEnv("HANDLERS_FILE", ""),
		UnionRulesURL:       getEnv("UNION_RULES_URL", ""),
		LogLevel:            getEnv("LOG_LEVEL", "info"),
	}
	return cfg
}

// Validate rejects settings the assistant cannot run with.
func (c *Config) Validate() error {
	if !c.RoutingMode.Valid() {
		return fmt.Errorf("unknown routing mode %q", c.RoutingMode)
	}
	if c.ConfidenceThreshold <= 0 || c.ConfidenceThreshold > 1 {
		return fmt.Errorf("confidence threshold must be in (0, 1], got %v", c.ConfidenceThreshold)
	}
	if c.HandlerTimeout <= 0 || c.QueryTimeout <= 0 || c.LLMTimeout <= 0 {
		return fmt.Errorf("timeouts must be positive")
	}
	if c.HandlerTimeout > c.QueryTimeout {
		return fmt.Errorf("handler timeout %s exceeds query timeout %s", c.HandlerTimeout, c.QueryTimeout)
	}
	if c.MaxHops < 1 {
		return fmt.Errorf("max hops must be at least 1")
	}
	if c.MaxCandidates < 0 {
		return fmt.Errorf("max candidates must not be negative")
	}
	if c.MemoryQueueSize < 1 || c.MemoryWorkers < 1 {
		return fmt.Errorf("memory queue size and workers must be positive")
	}
	switch c.FilterEngine {
	case EngineStatic, EngineRego:
	default:
		return fmt.Errorf("unknown filter engine %q", c.FilterEngine)
	}
	switch c.MemoryExtractor {
	case ExtractorPattern, ExtractorLLM:
	default:
		return fmt.Errorf("unknown memory extractor %q", c.MemoryExtractor)
	}
	return nil
}

func getEnv(key, defaultVal string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return defaultVal
}

func getEnvInt(key string, defaultVal int) int {
	if val := os.Getenv(key); val != "" {
		if intVal, err := strconv.Atoi(val); err == nil {
			return intVal
		}
	}
	return defaultVal
}

func getEnvFloat(key string, defaultVal float64) float64 {
	if val := os.Getenv(key); val != "" {
		if f, err := strconv.ParseFloat(val, 64); err == nil {
			return f
		}
	}
	return defaultVal
}

// getEnvDuration accepts a Go duration ("5s") or a bare number of milliseconds.
func getEnvDuration(key string, defaultVal time.Duration) time.Duration {
	val := os.Getenv(key)
	if val == "" {
		return defaultVal
	}
	if d, err := time.ParseDuration(val); err == nil {
		return d
	}
	if ms, err := strconv.Atoi(val); err == nil {
		return time.Duration(ms) * time.Millisecond
	}
	return defaultVal
}
