package handlers

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/xiaot623/gogo/assistant/internal/adapter/agentclient"
	"github.com/xiaot623/gogo/assistant/internal/domain"
)

func TestParseRemoteSpecs(t *testing.T) {
	specs, err := ParseRemoteSpecs([]byte(`
handlers:
  - id: research
    name: Market research
    domains: [research]
    keywords: [market, competitor]
    endpoint: http://localhost:9000
`))
	require.NoError(t, err)
	require.Len(t, specs, 1)
	assert.Equal(t, "research", specs[0].ID)
	assert.Equal(t, []string{"market", "competitor"}, specs[0].Keywords)

	_, err = ParseRemoteSpecs([]byte("handlers:\n  - id: x\n"))
	assert.Error(t, err)
}

func TestRemoteHandler(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/invoke", r.URL.Path)
		assert.Equal(t, "th_1", r.Header.Get("X-Thread-ID"))
		w.Header().Set("Content-Type", "text/event-stream")
		fmt.Fprint(w, "event: fragment\ndata: {\"text\":\"Competitor X raised prices.\",\"sensitivity_level\":3,\"field_kind\":\"general\"}\n\n")
		fmt.Fprint(w, "event: handoff\ndata: {\"next\":\"sales\"}\n\n")
		fmt.Fprint(w, "event: done\ndata: {\"sources\":[\"research/x\"]}\n\n")
	}))
	defer server.Close()

	spec := RemoteSpec{Capability: Capability{ID: "research", Domains: []string{"research"}}, Endpoint: server.URL}
	p := NewPool(time.Second, nil, nil)
	p.MustRegister(NewRemoteHandler(spec, agentclient.NewClient(time.Second)))

	res := p.Invoke(context.Background(), "research", Request{ThreadID: "th_1", Query: "competitor pricing"})
	require.False(t, res.Unavailable())
	assert.Equal(t, "sales", res.Outcome.Next)
	require.Len(t, res.Outcome.Response.Fragments, 1)
	assert.Equal(t, domain.LevelStrategic, res.Outcome.Response.Fragments[0].Level)
	assert.Equal(t, []string{"research/x"}, res.Outcome.Response.Provenance[0].Sources)
}

func TestRemoteHandlerErrorEvent(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, "event: error\ndata: {\"code\":\"overloaded\",\"message\":\"try later\"}\n\n")
	}))
	defer server.Close()

	spec := RemoteSpec{Capability: Capability{ID: "research"}, Endpoint: server.URL}
	p := NewPool(time.Second, nil, nil)
	p.MustRegister(NewRemoteHandler(spec, agentclient.NewClient(time.Second)))

	res := p.Invoke(context.Background(), "research", Request{})
	assert.True(t, res.Unavailable())
}
