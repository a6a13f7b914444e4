package handlers

import (
	"context"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/xiaot623/gogo/assistant/internal/domain"
)

const cannedAnswer = "I can help with sales, talent, bidding and leadership questions. Could you tell me a bit more about what you need?"

// Generator produces text from a prompt.
type Generator interface {
	Generate(ctx context.Context, prompt string) (string, error)
}

// GeneralHandler answers queries no domain handler claimed.
type GeneralHandler struct {
	gen    Generator
	logger *zap.Logger
}

// NewGeneralHandler creates the fallback handler. A nil gen answers with a
// fixed clarification prompt.
func NewGeneralHandler(gen Generator, logger *zap.Logger) *GeneralHandler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &GeneralHandler{gen: gen, logger: logger}
}

func (h *GeneralHandler) ID() string { return GeneralID }

func (h *GeneralHandler) Capability() Capability {
	return Capability{ID: GeneralID, Name: "General assistant", Fallback: true}
}

func (h *GeneralHandler) Handle(ctx context.Context, req Request) (Outcome, error) {
	if h.gen == nil {
		return Final(domain.AgentResponse{
			Fragments:  []domain.Fragment{{Text: cannedAnswer, Level: domain.LevelPublic, Kind: domain.FieldGeneral}},
			Provenance: []domain.Provenance{{HandlerID: GeneralID}},
		}), nil
	}

	text, err := h.gen.Generate(ctx, buildPrompt(req))
	if err != nil {
		return Outcome{}, fmt.Errorf("failed to generate answer: %w", err)
	}
	return Final(domain.AgentResponse{
		Fragments:  []domain.Fragment{{Text: text, Level: domain.LevelInternal, Kind: domain.FieldGeneral}},
		Provenance: []domain.Provenance{{HandlerID: GeneralID, Sources: []string{"llm"}}},
	}), nil
}

func buildPrompt(req Request) string {
	var b strings.Builder
	if len(req.Memory) > 0 {
		b.WriteString("Known facts about the user:\n")
		for _, m := range req.Memory {
			b.WriteString("- ")
			b.WriteString(m.Fact)
			b.WriteString("\n")
		}
	}
	if len(req.Context) > 0 {
		b.WriteString("Recent conversation:\n")
		for _, c := range req.Context {
			b.WriteString(c)
			b.WriteString("\n")
		}
	}
	b.WriteString("Question: ")
	b.WriteString(req.Query)
	return b.String()
}
