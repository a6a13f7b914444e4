package memory

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"regexp"
	"strings"

	"github.com/xiaot623/gogo/assistant/internal/domain"
)

// Confidence assigned by the pattern extractor.
const (
	ConfidenceExplicit = 0.9
	ConfidenceInferred = 0.6
)

// Extractor turns an interaction into candidate facts. Candidates need only
// kind, entity, predicate, fact and confidence; the manager fills the rest.
type Extractor interface {
	Extract(ctx context.Context, in domain.Interaction) ([]domain.MemoryRecord, error)
}

var (
	nameRe     = regexp.MustCompile(`(?i)\bmy name is ([\p{L}][\p{L}'\- ]{0,40}?)\s*(?:[.,!?]|\s+and\s|$)`)
	projectRe  = regexp.MustCompile(`(?i)\bi(?:'m| am)? (?:work|working) on (?:the )?([\p{L}\p{N}][\p{L}\p{N}'\- ]{0,60}?)\s*(?:[.,!?]|\s+and\s|$)`)
	preferRe   = regexp.MustCompile(`(?i)\bi prefer ([^.!?]{1,80})`)
	rememberRe = regexp.MustCompile(`(?i)\bremember that ([^.!?]{1,60}?) (is|are) ([^.!?]{1,80})`)
)

// PatternExtractor recognizes explicit statements in the user's own words
// and records the topic of each exchange.
type PatternExtractor struct{}

func (PatternExtractor) Extract(ctx context.Context, in domain.Interaction) ([]domain.MemoryRecord, error) {
	q := strings.TrimSpace(in.Query)
	var out []domain.MemoryRecord
	add := func(kind domain.MemoryKind, entity, predicate, fact string, confidence float64) {
		out = append(out, domain.MemoryRecord{
			Kind:       kind,
			Entity:     entity,
			Predicate:  predicate,
			Fact:       fact,
			Confidence: confidence,
		})
	}

	if m := nameRe.FindStringSubmatch(q); m != nil {
		add(domain.MemoryProfile, "user", "name", "User's name is "+strings.TrimSpace(m[1]), ConfidenceExplicit)
	}
	if m := projectRe.FindStringSubmatch(q); m != nil {
		add(domain.MemoryProjectContext, "user", "current project", "User works on "+strings.TrimSpace(m[1]), ConfidenceExplicit)
	}
	if m := preferRe.FindStringSubmatch(q); m != nil {
		add(domain.MemoryProfile, "user", "preference", "User prefers "+strings.TrimSpace(m[1]), ConfidenceExplicit)
	}
	if m := rememberRe.FindStringSubmatch(q); m != nil {
		subject := strings.TrimSpace(m[1])
		add(domain.MemorySemantic, subject, m[2], subject+" "+m[2]+" "+strings.TrimSpace(m[3]), ConfidenceExplicit)
	}
	if in.ThreadID != "" && q != "" {
		topic := q
		if r := []rune(topic); len(r) > 120 {
			topic = string(r[:120])
		}
		fact := "Asked about: " + topic
		if len(in.Handlers) > 0 {
			fact += " (answered by " + strings.Join(in.Handlers, ", ") + ")"
		}
		add(domain.MemoryEpisodic, "thread "+in.ThreadID, "last topic", fact, ConfidenceInferred)
	}
	return out, nil
}

// Generator produces text from a prompt.
type Generator interface {
	Generate(ctx context.Context, prompt string) (string, error)
}

const extractPrompt = `Extract durable facts about the user from this exchange.
Answer with one JSON object per line and nothing else, using the fields
kind (profile, episodic, semantic or project_context), entity, predicate, fact and confidence (0 to 1).
Answer with no lines when there is nothing worth remembering.

User: %s
Assistant: %s`

// LLMExtractor asks the NL backend for facts, one JSON object per line.
type LLMExtractor struct {
	gen Generator
}

// NewLLMExtractor creates an extractor over gen.
func NewLLMExtractor(gen Generator) *LLMExtractor {
	return &LLMExtractor{gen: gen}
}

type extractedFact struct {
	Kind       string  `json:"kind"`
	Entity     string  `json:"entity"`
	Predicate  string  `json:"predicate"`
	Fact       string  `json:"fact"`
	Confidence float64 `json:"confidence"`
}

// Extract skips lines that are not valid facts.
func (e *LLMExtractor) Extract(ctx context.Context, in domain.Interaction) ([]domain.MemoryRecord, error) {
	text, err := e.gen.Generate(ctx, fmt.Sprintf(extractPrompt, in.Query, in.Response))
	if err != nil {
		return nil, fmt.Errorf("failed to extract facts: %w", err)
	}
	var out []domain.MemoryRecord
	scanner := bufio.NewScanner(strings.NewReader(text))
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if !strings.HasPrefix(line, "{") {
			continue
		}
		var f extractedFact
		if err := json.Unmarshal([]byte(line), &f); err != nil {
			continue
		}
		kind := domain.MemoryKind(f.Kind)
		if !kind.Valid() || f.Entity == "" || f.Predicate == "" || f.Fact == "" {
			continue
		}
		out = append(out, domain.MemoryRecord{
			Kind:       kind,
			Entity:     f.Entity,
			Predicate:  f.Predicate,
			Fact:       f.Fact,
			Confidence: clamp(f.Confidence),
		})
	}
	return out, scanner.Err()
}

func clamp(c float64) float64 {
	switch {
	case c < 0:
		return 0
	case c > 1:
		return 1
	}
	return c
}
