package router

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"pgregory.net/rapid"

	"github.com/xiaot623/gogo/assistant/internal/domain"
	"github.com/xiaot623/gogo/assistant/internal/handlers"
)

func builtinCaps() []handlers.Capability {
	caps := append([]handlers.Capability{}, handlers.BuiltinCapabilities...)
	return append(caps, handlers.Capability{ID: handlers.GeneralID, Fallback: true})
}

func newRouter(t *testing.T, mode domain.RoutingMode) *Router {
	t.Helper()
	r, err := New(builtinCaps(), Config{Mode: mode})
	require.NoError(t, err)
	return r
}

func TestRouteSingle(t *testing.T) {
	r := newRouter(t, domain.RoutingSingle)
	d, err := r.Route("What is the Acme budget?", Context{})
	require.NoError(t, err)
	assert.Equal(t, domain.RoutingSingle, d.Mode)
	assert.Equal(t, []string{handlers.SalesID}, d.HandlerIDs())
	assert.False(t, d.LowConfidence)
}

func TestRouteTieBreak(t *testing.T) {
	r := newRouter(t, domain.RoutingSingle)

	// "budget" is claimed equally by sales and bidding.
	d, err := r.Route("budget", Context{})
	require.NoError(t, err)
	assert.Equal(t, []string{handlers.SalesID}, d.HandlerIDs())

	d, err = r.Route("budget", Context{RecentHandlers: []string{handlers.BiddingID, handlers.SalesID}})
	require.NoError(t, err)
	assert.Equal(t, []string{handlers.BiddingID}, d.HandlerIDs())
}

func TestRouteLowConfidenceFallsBack(t *testing.T) {
	r := newRouter(t, domain.RoutingMulti)
	d, err := r.Route("hello there", Context{})
	require.NoError(t, err)
	assert.True(t, d.LowConfidence)
	assert.Equal(t, []string{handlers.GeneralID}, d.HandlerIDs())
}

func TestRouteFailures(t *testing.T) {
	r := newRouter(t, domain.RoutingSingle)
	for name, q := range map[string]string{
		"empty":   "   ",
		"control": "budget\x00",
		"utf8":    "budget \xff",
		"long":    strings.Repeat("a", DefaultMaxQueryRunes+1),
	} {
		t.Run(name, func(t *testing.T) {
			d, err := r.Route(q, Context{})
			assert.ErrorIs(t, err, domain.ErrRoutingFailed)
			assert.Empty(t, d.Candidates)
		})
	}
}

func TestRouteAuto(t *testing.T) {
	r := newRouter(t, domain.RoutingAuto)

	d, err := r.Route("acme budget", Context{})
	require.NoError(t, err)
	assert.Equal(t, domain.RoutingMulti, d.Mode)
	assert.Equal(t, []string{handlers.SalesID, handlers.BiddingID}, d.HandlerIDs())

	d, err = r.Route("revenue forecast", Context{})
	require.NoError(t, err)
	assert.Equal(t, domain.RoutingSingle, d.Mode)
	assert.Equal(t, []string{handlers.LeadershipID}, d.HandlerIDs())
}

func TestRouteMultiFansOutToEveryQualifiedHandler(t *testing.T) {
	r := newRouter(t, domain.RoutingMulti)
	d, err := r.Route("acme budget casting revenue", Context{})
	require.NoError(t, err)
	assert.ElementsMatch(t,
		[]string{handlers.SalesID, handlers.TalentID, handlers.BiddingID, handlers.LeadershipID},
		d.HandlerIDs())
	for _, c := range d.Candidates {
		assert.GreaterOrEqual(t, c.Confidence, DefaultThreshold)
	}
}

func TestRouteMultiCapsCandidates(t *testing.T) {
	r, err := New(builtinCaps(), Config{Mode: domain.RoutingMulti, MaxCandidates: 2})
	require.NoError(t, err)
	d, err := r.Route("acme budget casting revenue", Context{})
	require.NoError(t, err)
	assert.Len(t, d.Candidates, 2)
}

func TestRouteContextRaisesConfidence(t *testing.T) {
	r := newRouter(t, domain.RoutingSingle)
	plain, err := r.Route("deadline", Context{})
	require.NoError(t, err)
	boosted, err := r.Route("deadline", Context{Recent: []string{"Any open rfp we should bid on?"}})
	require.NoError(t, err)
	require.Equal(t, handlers.BiddingID, boosted.Candidates[0].HandlerID)
	assert.Greater(t, boosted.Candidates[0].Confidence, plain.Candidates[0].Confidence)
}

func TestNewRequiresFallback(t *testing.T) {
	_, err := New(handlers.BuiltinCapabilities, Config{})
	assert.Error(t, err)
	_, err = New(builtinCaps(), Config{Mode: "broadcast"})
	assert.Error(t, err)
}

func TestRouteAlwaysYieldsCandidates(t *testing.T) {
	vocab := []string{"acme", "budget", "casting", "revenue", "rfp", "hello", "the", "margin", "crew", "weather"}
	rapid.Check(t, func(t *rapid.T) {
		mode := rapid.SampledFrom([]domain.RoutingMode{domain.RoutingSingle, domain.RoutingMulti, domain.RoutingAuto}).Draw(t, "mode")
		words := rapid.SliceOfN(rapid.SampledFrom(vocab), 1, 6).Draw(t, "words")
		r, err := New(builtinCaps(), Config{Mode: mode})
		if err != nil {
			t.Fatal(err)
		}
		q := strings.Join(words, " ")
		d, err := r.Route(q, Context{})
		if err != nil {
			t.Fatalf("route %q: %v", q, err)
		}
		if len(d.Candidates) == 0 {
			t.Fatalf("no candidates for %q", q)
		}
		seen := map[string]bool{}
		for _, c := range d.Candidates {
			if seen[c.HandlerID] {
				t.Fatalf("duplicate candidate %s", c.HandlerID)
			}
			seen[c.HandlerID] = true
		}
		again, _ := r.Route(q, Context{})
		if strings.Join(again.HandlerIDs(), ",") != strings.Join(d.HandlerIDs(), ",") {
			t.Fatalf("routing is not deterministic for %q", q)
		}
	})
}
