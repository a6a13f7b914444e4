package llm

import (
	"context"
	"strings"
	"unicode/utf8"
)

const mockAnswerLimit = 120

// MockClient answers offline. Prompts asking for JSON lines get an empty
// object, which callers treat as "nothing found"; everything else is echoed
// back with a [MOCK] marker.
type MockClient struct{}

// NewMockClient creates an offline client.
func NewMockClient() *MockClient {
	return &MockClient{}
}

var _ LLMClient = (*MockClient)(nil)

// CreateChatCompletion answers the last user message.
func (m *MockClient) CreateChatCompletion(ctx context.Context, req *ChatCompletionRequest) (*ChatCompletionResponse, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	prompt := lastUserMessage(req.Messages)

	content := "{}"
	if !strings.Contains(prompt, "JSON object per line") {
		content = "[MOCK] " + clip(lastLine(prompt), mockAnswerLimit)
	}
	return &ChatCompletionResponse{
		ID:     "mock",
		Object: "chat.completion",
		Model:  req.Model,
		Choices: []Choice{{
			Message:      &ChatMessage{Role: "assistant", Content: content},
			FinishReason: "stop",
		}},
	}, nil
}

func lastUserMessage(msgs []ChatMessage) string {
	for i := len(msgs) - 1; i >= 0; i-- {
		if msgs[i].Role == "user" {
			return msgs[i].Content
		}
	}
	return ""
}

func lastLine(s string) string {
	s = strings.TrimSpace(s)
	if i := strings.LastIndexByte(s, '\n'); i >= 0 {
		return s[i+1:]
	}
	return s
}

// clip cuts s to at most n runes.
func clip(s string, n int) string {
	if utf8.RuneCountInString(s) <= n {
		return s
	}
	r := []rune(s)
	return string(r[:n]) + "..."
}
