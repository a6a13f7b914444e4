package handlers

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/xiaot623/gogo/assistant/internal/adapter/llm"
	"github.com/xiaot623/gogo/assistant/internal/adapter/unionrules"
	"github.com/xiaot623/gogo/assistant/internal/domain"
	"github.com/xiaot623/gogo/assistant/internal/knowledge"
)

type stubUnions map[string]string

func (s stubUnions) Lookup(ctx context.Context, union string) (*unionrules.Rule, error) {
	summary, ok := s[union]
	if !ok {
		return nil, unionrules.ErrNotFound
	}
	return &unionrules.Rule{Union: union, Summary: summary}, nil
}

func newBuiltinPool(t *testing.T, deps Deps) *Pool {
	t.Helper()
	if deps.Knowledge == nil {
		deps.Knowledge = knowledge.DefaultCatalog()
	}
	p := NewPool(time.Second, nil, nil)
	require.NoError(t, RegisterBuiltins(p, deps))
	p.Seal()
	return p
}

func TestCatalogHandlerTagsFragments(t *testing.T) {
	p := newBuiltinPool(t, Deps{})
	res := p.Invoke(context.Background(), SalesID, Request{Query: "What is the Acme budget?", Scope: ProjectScope{All: true}})
	require.False(t, res.Unavailable())

	var budget *domain.Fragment
	for i, f := range res.Outcome.Response.Fragments {
		if f.Kind == domain.FieldBudget {
			budget = &res.Outcome.Response.Fragments[i]
			break
		}
	}
	require.NotNil(t, budget)
	assert.Equal(t, "P1", budget.Project)
	assert.Equal(t, domain.LevelConfidential, budget.Level)
	require.NotNil(t, budget.Amount)
	assert.Contains(t, res.Outcome.Response.Provenance[0].Sources, "crm/acme")
}

func TestCatalogHandlerScopesProjects(t *testing.T) {
	p := newBuiltinPool(t, Deps{})
	res := p.Invoke(context.Background(), SalesID, Request{Query: "globex budget", Scope: ProjectScope{Projects: []string{"P1"}}})
	require.False(t, res.Unavailable())
	for _, f := range res.Outcome.Response.Fragments {
		assert.NotEqual(t, "P2", f.Project)
	}
}

func TestCatalogHandlerHandoff(t *testing.T) {
	p := newBuiltinPool(t, Deps{})
	res := p.Invoke(context.Background(), BiddingID, Request{Query: "initech bid and casting", Scope: ProjectScope{All: true}})
	require.False(t, res.Unavailable())
	assert.False(t, res.Outcome.IsFinal())
	assert.Equal(t, TalentID, res.Outcome.Next)
	assert.NotEmpty(t, res.Outcome.Response.Fragments)
}

func TestCatalogHandlerUnionLookup(t *testing.T) {
	p := newBuiltinPool(t, Deps{Unions: stubUnions{"sag-aftra": "Session fees apply per spot."}})
	res := p.Invoke(context.Background(), TalentID, Request{Query: "sag rates for actors", Scope: ProjectScope{All: true}})
	require.False(t, res.Unavailable())

	var found bool
	for _, f := range res.Outcome.Response.Fragments {
		if f.Kind == domain.FieldUnion && f.Text == "SAG-AFTRA rules: Session fees apply per spot." {
			found = true
			assert.Equal(t, domain.LevelPersonnel, f.Level)
		}
	}
	assert.True(t, found)
}

type failingStore struct{}

func (failingStore) Query(ctx context.Context, p knowledge.Pattern) ([]knowledge.Record, error) {
	return nil, errors.New("catalog offline")
}

func TestCatalogHandlerStoreFailureIsUnavailable(t *testing.T) {
	p := newBuiltinPool(t, Deps{Knowledge: failingStore{}})
	res := p.Invoke(context.Background(), LeadershipID, Request{Query: "revenue"})
	assert.True(t, res.Unavailable())
}

func TestGeneralHandler(t *testing.T) {
	canned := newBuiltinPool(t, Deps{})
	res := canned.Invoke(context.Background(), GeneralID, Request{Query: "hello"})
	require.False(t, res.Unavailable())
	assert.Equal(t, cannedAnswer, res.Outcome.Response.Fragments[0].Text)

	gen := llm.NewGenerator(llm.NewMockClient(), "mock", "")
	withLLM := newBuiltinPool(t, Deps{Generator: gen})
	res = withLLM.Invoke(context.Background(), GeneralID, Request{
		Query:  "hello",
		Memory: []domain.MemoryRecord{{Fact: "User prefers short answers"}},
	})
	require.False(t, res.Unavailable())
	assert.Equal(t, domain.LevelInternal, res.Outcome.Response.Fragments[0].Level)
	assert.Contains(t, res.Outcome.Response.Fragments[0].Text, "[MOCK]")
}

func TestBuiltinCapabilities(t *testing.T) {
	p := newBuiltinPool(t, Deps{})
	caps := p.Capabilities()
	require.Len(t, caps, 5)
	assert.True(t, caps[len(caps)-1].Fallback)
}
