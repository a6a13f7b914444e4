package knowledge

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func ids(recs []Record) []string {
	out := make([]string, len(recs))
	for i, r := range recs {
		out[i] = r.ID
	}
	return out
}

func TestDefaultCatalogQuery(t *testing.T) {
	c := DefaultCatalog()
	recs, err := c.Query(context.Background(), Pattern{Domain: "sales", Terms: []string{"acme", "budget"}, AllProjects: true})
	require.NoError(t, err)
	require.NotEmpty(t, recs)
	assert.Equal(t, "sales-budget-acme", recs[0].ID)
}

func TestQueryScopesProjects(t *testing.T) {
	c := DefaultCatalog()
	recs, err := c.Query(context.Background(), Pattern{Domain: "sales", Terms: []string{"budget"}, Projects: []string{"P2"}})
	require.NoError(t, err)
	assert.Equal(t, []string{"sales-globex-budget"}, ids(recs))
}

func TestQueryFallsBackToOverview(t *testing.T) {
	c := DefaultCatalog()
	recs, err := c.Query(context.Background(), Pattern{Domain: "talent", Terms: []string{"weather"}, AllProjects: true})
	require.NoError(t, err)
	assert.Equal(t, []string{"talent-roster"}, ids(recs))
}

func TestParseCatalogValidates(t *testing.T) {
	_, err := ParseCatalog([]byte("records:\n  - {id: a, domain: sales, level: 9, kind: general}\n"))
	assert.Error(t, err)
	_, err = ParseCatalog([]byte("records:\n  - {id: a, domain: sales, level: 2, kind: secret}\n"))
	assert.Error(t, err)
	_, err = ParseCatalog([]byte("records:\n  - {id: a, domain: sales, level: 2, kind: general}\n  - {id: a, domain: sales, level: 2, kind: general}\n"))
	assert.Error(t, err)
}

func TestRecordFragment(t *testing.T) {
	c := DefaultCatalog()
	recs, _ := c.Query(context.Background(), Pattern{Domain: "bidding", Terms: []string{"total"}, AllProjects: true})
	require.NotEmpty(t, recs)
	f := recs[0].Fragment("bidding")
	assert.Equal(t, "bidding", f.HandlerID)
	assert.EqualValues(t, 1, f.Level)
	require.NotNil(t, f.Amount)
	assert.InDelta(t, 712500, *f.Amount, 0.01)
}
