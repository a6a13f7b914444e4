package handlers

import (
	"context"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/xiaot623/gogo/assistant/internal/adapter/unionrules"
	"github.com/xiaot623/gogo/assistant/internal/domain"
	"github.com/xiaot623/gogo/assistant/internal/knowledge"
	"github.com/xiaot623/gogo/assistant/internal/textutil"
)

// Built-in handler ids.
const (
	SalesID      = "sales"
	TalentID     = "talent"
	BiddingID    = "bidding"
	LeadershipID = "leadership"
	GeneralID    = "general"
)

// UnionLookup fetches union rules from an external source.
type UnionLookup interface {
	Lookup(ctx context.Context, union string) (*unionrules.Rule, error)
}

// Handoff continues to Next when any of Terms appears in the query.
type Handoff struct {
	Terms []string
	Next  string
}

// unionTokens maps query tokens to union names understood by the rule source.
var unionTokens = map[string]string{
	"sag":   "sag-aftra",
	"aftra": "sag-aftra",
	"iatse": "iatse",
	"dga":   "dga",
}

// CatalogHandler answers from the knowledge store for one domain.
type CatalogHandler struct {
	capability Capability
	store      knowledge.Store
	unions     UnionLookup
	handoffs   []Handoff
	limit      int
	logger     *zap.Logger
}

// CatalogOption configures a CatalogHandler.
type CatalogOption func(*CatalogHandler)

// WithUnionLookup enables live union rule lookups.
func WithUnionLookup(u UnionLookup) CatalogOption {
	return func(h *CatalogHandler) { h.unions = u }
}

// WithHandoffs sets the handoff rules.
func WithHandoffs(hs ...Handoff) CatalogOption {
	return func(h *CatalogHandler) { h.handoffs = append(h.handoffs, hs...) }
}

// WithLimit caps the records used per answer.
func WithLimit(n int) CatalogOption {
	return func(h *CatalogHandler) { h.limit = n }
}

// NewCatalogHandler creates a handler over store for capability.Domains[0].
func NewCatalogHandler(capability Capability, store knowledge.Store, logger *zap.Logger, opts ...CatalogOption) *CatalogHandler {
	if logger == nil {
		logger = zap.NewNop()
	}
	h := &CatalogHandler{capability: capability, store: store, limit: 4, logger: logger}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

func (h *CatalogHandler) ID() string { return h.capability.ID }

func (h *CatalogHandler) Capability() Capability { return h.capability }

// Handle looks up matching records and turns them into tagged fragments.
func (h *CatalogHandler) Handle(ctx context.Context, req Request) (Outcome, error) {
	terms := textutil.Terms(req.Query)
	pattern := knowledge.Pattern{
		Domain:      h.domain(),
		Terms:       terms,
		Projects:    req.Scope.Projects,
		AllProjects: req.Scope.All,
		Limit:       h.limit,
	}
	records, err := h.store.Query(ctx, pattern)
	if err != nil {
		return Outcome{}, fmt.Errorf("failed to query knowledge: %w", err)
	}

	resp := domain.AgentResponse{}
	var sources []string
	seen := make(map[string]bool)
	for _, rec := range records {
		resp.Fragments = append(resp.Fragments, rec.Fragment(h.ID()))
		if rec.Source != "" && !seen[rec.Source] {
			seen[rec.Source] = true
			sources = append(sources, rec.Source)
		}
	}

	if h.unions != nil {
		for _, name := range unionsIn(terms) {
			rule, err := h.unions.Lookup(ctx, name)
			if err != nil {
				h.logger.Warn("union rule lookup failed", zap.String("handler_id", h.ID()), zap.String("union", name), zap.Error(err))
				continue
			}
			resp.Fragments = append(resp.Fragments, domain.Fragment{
				Text:      fmt.Sprintf("%s rules: %s", strings.ToUpper(rule.Union), rule.Summary),
				Level:     domain.LevelPersonnel,
				Kind:      domain.FieldUnion,
				HandlerID: h.ID(),
			})
			sources = append(sources, "unionrules/"+rule.Union)
		}
	}
	resp.Provenance = []domain.Provenance{{HandlerID: h.ID(), Sources: sources}}

	for _, ho := range h.handoffs {
		if ho.Next != h.ID() && textutil.ContainsAny(terms, ho.Terms...) {
			return Continue(ho.Next, resp), nil
		}
	}
	return Final(resp), nil
}

func (h *CatalogHandler) domain() string {
	if len(h.capability.Domains) == 0 {
		return ""
	}
	return h.capability.Domains[0]
}

func unionsIn(terms []string) []string {
	var out []string
	seen := make(map[string]bool)
	for _, t := range terms {
		if name, ok := unionTokens[t]; ok && !seen[name] {
			seen[name] = true
			out = append(out, name)
		}
	}
	return out
}
