package llm

import (
	"context"
	"errors"
	"strings"
)

// ErrEmptyCompletion is returned when the backend answers with no text.
var ErrEmptyCompletion = errors.New("empty completion")

// Generator turns a prompt into text.
type Generator struct {
	client LLMClient
	model  string
	system string
}

// NewGenerator creates a prompt-in/text-out generator over client.
func NewGenerator(client LLMClient, model, system string) *Generator {
	return &Generator{client: client, model: model, system: system}
}

// Generate sends prompt and returns the first choice's text.
func (g *Generator) Generate(ctx context.Context, prompt string) (string, error) {
	messages := make([]ChatMessage, 0, 2)
	if g.system != "" {
		messages = append(messages, ChatMessage{Role: "system", Content: g.system})
	}
	messages = append(messages, ChatMessage{Role: "user", Content: prompt})

	resp, err := g.client.CreateChatCompletion(ctx, &ChatCompletionRequest{Model: g.model, Messages: messages})
	if err != nil {
		return "", err
	}
	if len(resp.Choices) == 0 || resp.Choices[0].Message == nil {
		return "", ErrEmptyCompletion
	}
	text := strings.TrimSpace(resp.Choices[0].Message.Content)
	if text == "" {
		return "", ErrEmptyCompletion
	}
	return text, nil
}
