package llm

import (
	"time"

	"go.uber.org/zap"
)

const (
	// EnvAssistantMode is the environment variable name for mode selection.
	EnvAssistantMode = "ASSISTANT_MODE"
	// ModeMock indicates mock mode should be used.
	ModeMock = "MOCK"
)

// NewLLMClient creates an LLM client for the given mode.
// Mode MOCK, or an empty base URL, returns a MockClient; otherwise a real Client.
func NewLLMClient(mode, baseURL, apiKey string, timeout time.Duration, logger *zap.Logger) LLMClient {
	if mode == ModeMock || baseURL == "" {
		logger.Info("using mock LLM client", zap.String("mode", mode))
		return NewMockClient()
	}

	return NewClient(baseURL, apiKey, timeout)
}
