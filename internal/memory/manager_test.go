package memory

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/xiaot623/gogo/assistant/internal/domain"
	"github.com/xiaot623/gogo/assistant/internal/metrics"
	"github.com/xiaot623/gogo/assistant/tests/helpers"
)

var dana = domain.User{ID: "u_dana", Role: domain.RoleDirector, AssignedProjects: []string{"P1"}}

func newTestManager(t *testing.T) (*Manager, Store) {
	t.Helper()
	store := helpers.NewTestSQLiteStore(t)
	m := NewManager(store, nil, nil, metrics.New(), nil)
	m.now = func() time.Time { return t0.Add(24 * time.Hour) }
	return m, store
}

func candidate(m *Manager, fact string, conf float64) domain.MemoryRecord {
	return domain.MemoryRecord{
		ID:         "mem_" + fact,
		Namespace:  dana.Namespace(),
		Kind:       domain.MemorySemantic,
		Key:        DedupKey("Acme", "budget owner"),
		Entity:     "Acme",
		Predicate:  "budget owner",
		Fact:       fact,
		Confidence: conf,
		ObservedAt: t0,
		Embedding:  m.embedder.Embed(fact),
	}
}

func TestScenarioConcurrentConflictingFacts(t *testing.T) {
	ctx := context.Background()
	m, store := newTestManager(t)

	low := candidate(m, "Acme budget owner is Sam", 0.6)
	high := candidate(m, "Acme budget owner is Lee", 0.9)

	var wg sync.WaitGroup
	for _, c := range []domain.MemoryRecord{low, high} {
		wg.Add(1)
		go func(c domain.MemoryRecord) {
			defer wg.Done()
			if !assert.NoError(t, m.Stage(ctx, []domain.MemoryRecord{c})) {
				return
			}
			_, err := m.Consolidate(ctx, dana.Namespace())
			assert.NoError(t, err)
		}(c)
	}
	wg.Wait()

	got, err := m.Retrieve(ctx, dana.Namespace(), "who owns the Acme budget", 10)
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, high.ID, got[0].ID)

	superseded, err := store.ListMemory(ctx, dana.Namespace(), domain.MemorySuperseded)
	require.NoError(t, err)
	require.Len(t, superseded, 1)
	assert.Equal(t, low.ID, superseded[0].ID)
	assert.Equal(t, high.ID, superseded[0].SupersededBy)
}

func TestConsolidateTwiceIsFixedPoint(t *testing.T) {
	ctx := context.Background()
	m, store := newTestManager(t)

	for _, in := range []domain.Interaction{
		{User: dana, ThreadID: "th_1", Query: "My name is Dana. I prefer short answers.", ObservedAt: t0},
		{User: dana, ThreadID: "th_1", Query: "Actually I prefer bullet points.", ObservedAt: t0.Add(time.Minute)},
	} {
		records, err := m.Extract(ctx, in)
		require.NoError(t, err)
		require.NoError(t, m.Stage(ctx, records))
	}

	first, err := m.Consolidate(ctx, dana.Namespace())
	require.NoError(t, err)
	before, err := store.ListMemory(ctx, dana.Namespace())
	require.NoError(t, err)

	second, err := m.Consolidate(ctx, dana.Namespace())
	require.NoError(t, err)
	after, err := store.ListMemory(ctx, dana.Namespace())
	require.NoError(t, err)

	if diff := cmp.Diff(first, second); diff != "" {
		t.Fatalf("active set changed on second pass (-first +second):\n%s", diff)
	}
	if diff := cmp.Diff(before, after); diff != "" {
		t.Fatalf("record set changed on second pass (-before +after):\n%s", diff)
	}

	var prefs []string
	for _, r := range first {
		if r.Key == DedupKey("user", "preference") {
			prefs = append(prefs, r.Fact)
		}
	}
	assert.Equal(t, []string{"User prefers bullet points"}, prefs)
}

func TestRetrieveRanksBySimilarity(t *testing.T) {
	ctx := context.Background()
	m, _ := newTestManager(t)

	require.NoError(t, m.Observe(ctx, domain.Interaction{User: dana, Query: "Remember that the Initech deadline is March 14", ObservedAt: t0}))
	require.NoError(t, m.Observe(ctx, domain.Interaction{User: dana, Query: "I prefer email summaries", ObservedAt: t0}))

	got, err := m.Retrieve(ctx, dana.Namespace(), "initech deadline", 1)
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Contains(t, got[0].Fact, "Initech deadline")
	assert.Greater(t, got[0].Score, 0.0)

	again, err := m.Retrieve(ctx, dana.Namespace(), "initech deadline", 1)
	require.NoError(t, err)
	assert.Equal(t, got, again)
}

func TestRetrieveIsolatesNamespaces(t *testing.T) {
	ctx := context.Background()
	m, _ := newTestManager(t)
	require.NoError(t, m.Observe(ctx, domain.Interaction{User: dana, Query: "My name is Dana", ObservedAt: t0}))

	other := domain.User{ID: "u_sam", Role: domain.RoleSalesperson}
	got, err := m.Retrieve(ctx, other.Namespace(), "name", 5)
	require.NoError(t, err)
	assert.Empty(t, got)
}

func TestScoreRecencyDecays(t *testing.T) {
	now := t0.Add(10 * 24 * time.Hour)
	fresh := domain.MemoryRecord{Confidence: 0.5, ObservedAt: now}
	stale := domain.MemoryRecord{Confidence: 0.5, ObservedAt: t0}
	assert.Greater(t, score(fresh, nil, now), score(stale, nil, now))
	assert.InDelta(t, 0.25+0.075, score(fresh, nil, now), 1e-9)
}
