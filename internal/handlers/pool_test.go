package handlers

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"github.com/xiaot623/gogo/assistant/internal/domain"
	"github.com/xiaot623/gogo/assistant/internal/metrics"
)

type funcHandler struct {
	id string
	fn func(ctx context.Context, req Request) (Outcome, error)
}

func (h funcHandler) ID() string             { return h.id }
func (h funcHandler) Capability() Capability { return Capability{ID: h.id, Domains: []string{h.id}} }
func (h funcHandler) Handle(ctx context.Context, req Request) (Outcome, error) {
	return h.fn(ctx, req)
}

func answer(text string) func(context.Context, Request) (Outcome, error) {
	return func(ctx context.Context, req Request) (Outcome, error) {
		return Final(domain.AgentResponse{Fragments: []domain.Fragment{{Text: text, Level: domain.LevelPublic, Kind: domain.FieldGeneral}}}), nil
	}
}

func blockUntilDone(ctx context.Context, req Request) (Outcome, error) {
	<-ctx.Done()
	return Outcome{}, ctx.Err()
}

func TestPoolRegisterAndSeal(t *testing.T) {
	p := NewPool(time.Second, nil, nil)
	require.NoError(t, p.Register(funcHandler{id: "a", fn: answer("a")}))
	require.Error(t, p.Register(funcHandler{id: "a", fn: answer("a")}))
	require.Error(t, p.Register(funcHandler{id: "", fn: answer("x")}))

	p.Seal()
	err := p.Register(funcHandler{id: "b", fn: answer("b")})
	assert.ErrorIs(t, err, ErrPoolSealed)

	caps := p.Capabilities()
	require.Len(t, caps, 1)
	assert.Equal(t, "a", caps[0].ID)
}

func TestPoolInvokeStampsHandler(t *testing.T) {
	p := NewPool(time.Second, nil, nil)
	p.MustRegister(funcHandler{id: "sales", fn: answer("hello")})

	res := p.Invoke(context.Background(), "sales", Request{Query: "q"})
	require.False(t, res.Unavailable())
	require.Len(t, res.Outcome.Response.Fragments, 1)
	assert.Equal(t, "sales", res.Outcome.Response.Fragments[0].HandlerID)
	assert.Equal(t, "sales", res.Outcome.Response.Provenance[0].HandlerID)
	assert.True(t, res.Outcome.IsFinal())
}

func TestPoolInvokeClearsBucketMarker(t *testing.T) {
	p := NewPool(time.Second, nil, nil)
	p.MustRegister(funcHandler{id: "sales", fn: func(context.Context, Request) (Outcome, error) {
		return Final(domain.AgentResponse{Fragments: []domain.Fragment{
			{Text: "Acme budget is exactly $2,450,000", Level: 2, Kind: domain.FieldBudget, Bucketed: true},
		}}), nil
	}})

	res := p.Invoke(context.Background(), "sales", Request{Query: "q"})
	require.False(t, res.Unavailable())
	assert.False(t, res.Outcome.Response.Fragments[0].Bucketed)
}

func TestPoolInvokeFailuresAreResults(t *testing.T) {
	defer goleak.VerifyNone(t)

	m := metrics.New()
	p := NewPool(30*time.Millisecond, m, nil)
	p.MustRegister(funcHandler{id: "slow", fn: blockUntilDone})
	p.MustRegister(funcHandler{id: "broken", fn: func(ctx context.Context, req Request) (Outcome, error) {
		return Outcome{}, errors.New("backend down")
	}})
	p.MustRegister(funcHandler{id: "panicky", fn: func(ctx context.Context, req Request) (Outcome, error) {
		panic("boom")
	}})

	tests := []struct {
		id     string
		reason string
	}{
		{"slow", metrics.ReasonTimeout},
		{"broken", metrics.ReasonError},
		{"panicky", metrics.ReasonPanic},
		{"ghost", metrics.ReasonMissing},
	}
	for _, tt := range tests {
		t.Run(tt.id, func(t *testing.T) {
			res := p.Invoke(context.Background(), tt.id, Request{})
			require.True(t, res.Unavailable())
			assert.ErrorIs(t, res.Err, domain.ErrHandlerUnavailable)
			assert.Equal(t, tt.reason, res.Reason)
			assert.Equal(t, float64(1), m.HandlerUnavailableCount(tt.id))
		})
	}
}

func TestPoolInvokeCancelled(t *testing.T) {
	defer goleak.VerifyNone(t)

	p := NewPool(time.Second, nil, nil)
	p.MustRegister(funcHandler{id: "slow", fn: blockUntilDone})

	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		time.Sleep(10 * time.Millisecond)
		cancel()
	}()
	res := p.Invoke(ctx, "slow", Request{})
	require.True(t, res.Unavailable())
	assert.Equal(t, metrics.ReasonCancelled, res.Reason)
}
