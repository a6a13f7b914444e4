package service

import (
	"context"
	"sync"

	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/xiaot623/gogo/assistant/internal/domain"
	"github.com/xiaot623/gogo/assistant/internal/handlers"
	"github.com/xiaot623/gogo/assistant/internal/router"
)

// chain is the output of one routed handler and the handoffs it triggered.
type chain struct {
	contributors []string
	unavailable  []string
	fragments    []domain.Fragment
	provenance   []domain.Provenance
}

type fanOutResult struct {
	chains       []chain
	contributors []string
	unavailable  []string
}

// visited makes every handler answer at most once per request.
type visited struct {
	mu   sync.Mutex
	seen map[string]bool
}

func (v *visited) claim(id string) bool {
	v.mu.Lock()
	defer v.mu.Unlock()
	if v.seen[id] {
		return false
	}
	v.seen[id] = true
	return true
}

// fanOut invokes the routed handlers in parallel and follows their handoffs.
// Unavailable handlers are recorded, never returned as errors.
func (s *Service) fanOut(ctx context.Context, decision router.Decision, req handlers.Request) fanOutResult {
	ctx, span := tracer.Start(ctx, "service.fan_out")
	defer span.End()

	v := &visited{seen: make(map[string]bool)}
	for _, c := range decision.Candidates {
		v.seen[c.HandlerID] = true
	}

	chains := make([]chain, len(decision.Candidates))
	g, gctx := errgroup.WithContext(ctx)
	for i, c := range decision.Candidates {
		g.Go(func() error {
			chains[i] = s.runChain(gctx, c.HandlerID, req, v)
			return nil
		})
	}
	_ = g.Wait()

	out := fanOutResult{chains: chains}
	for _, ch := range chains {
		out.contributors = append(out.contributors, ch.contributors...)
		out.unavailable = append(out.unavailable, ch.unavailable...)
	}
	span.SetAttributes(
		attribute.StringSlice("handlers.ok", out.contributors),
		attribute.StringSlice("handlers.unavailable", out.unavailable),
	)
	return out
}

// runChain follows Continue outcomes until a Final, an unavailable handler,
// an already visited handler or the hop limit.
func (s *Service) runChain(ctx context.Context, first string, req handlers.Request, v *visited) chain {
	var ch chain
	current := first
	for hop := 0; ; hop++ {
		res := s.pool.Invoke(ctx, current, req)
		if res.Unavailable() {
			ch.unavailable = append(ch.unavailable, current)
			return ch
		}
		resp := res.Outcome.Response
		ch.contributors = append(ch.contributors, current)
		ch.fragments = append(ch.fragments, resp.Fragments...)
		ch.provenance = append(ch.provenance, resp.Provenance...)

		if res.Outcome.IsFinal() {
			return ch
		}
		next := res.Outcome.Next
		if hop+1 > s.opts.MaxHops {
			s.logger.Warn("handoff limit reached", zap.String("handler_id", current), zap.String("next", next), zap.Int("max_hops", s.opts.MaxHops))
			return ch
		}
		if !v.claim(next) {
			s.logger.Debug("handoff target already answered", zap.String("handler_id", current), zap.String("next", next))
			return ch
		}
		req.Prior = append(append([]domain.Fragment(nil), req.Prior...), resp.Fragments...)
		current = next
	}
}

// merged joins the chains in routing order, dropping repeated fragments.
func (r fanOutResult) merged() domain.AgentResponse {
	type fragKey struct {
		text      string
		kind      domain.FieldKind
		level     domain.SensitivityLevel
		project   string
		subject   string
		hasAmount bool
		amount    float64
	}
	seen := make(map[fragKey]bool)
	var out domain.AgentResponse
	for _, ch := range r.chains {
		for _, f := range ch.fragments {
			k := fragKey{text: f.Text, kind: f.Kind, level: f.Level, project: f.Project, subject: f.Subject}
			if f.Amount != nil {
				k.hasAmount, k.amount = true, *f.Amount
			}
			if seen[k] {
				continue
			}
			seen[k] = true
			out.Fragments = append(out.Fragments, f)
		}
		out.Provenance = append(out.Provenance, ch.provenance...)
	}
	return out
}
