package handlers

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/xiaot623/gogo/assistant/internal/domain"
	"github.com/xiaot623/gogo/assistant/internal/metrics"
)

// ErrPoolSealed is returned when registering into a sealed pool.
var ErrPoolSealed = errors.New("handler pool is sealed")

// Pool stores handlers keyed by id. It is filled at startup and sealed
// before serving, after which it is read-only.
type Pool struct {
	mu       sync.RWMutex
	handlers map[string]Handler
	order    []string
	sealed   bool

	timeout time.Duration
	metrics *metrics.Metrics
	logger  *zap.Logger
}

// NewPool creates an empty pool whose invocations are bounded by timeout.
func NewPool(timeout time.Duration, m *metrics.Metrics, logger *zap.Logger) *Pool {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Pool{
		handlers: make(map[string]Handler),
		timeout:  timeout,
		metrics:  m,
		logger:   logger,
	}
}

// Register adds a handler.
func (p *Pool) Register(h Handler) error {
	if h == nil {
		return fmt.Errorf("handler is required")
	}
	id := h.ID()
	if id == "" {
		return fmt.Errorf("handler id is required")
	}
	if id != h.Capability().ID {
		return fmt.Errorf("handler %s advertises capability id %s", id, h.Capability().ID)
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.sealed {
		return fmt.Errorf("%w: cannot register %s", ErrPoolSealed, id)
	}
	if _, exists := p.handlers[id]; exists {
		return fmt.Errorf("handler already registered for %s", id)
	}
	p.handlers[id] = h
	p.order = append(p.order, id)
	return nil
}

// MustRegister adds a handler or panics.
func (p *Pool) MustRegister(h Handler) {
	if err := p.Register(h); err != nil {
		panic(err)
	}
}

// Seal freezes the pool.
func (p *Pool) Seal() {
	p.mu.Lock()
	p.sealed = true
	p.mu.Unlock()
}

// Get returns the handler registered for id.
func (p *Pool) Get(id string) (Handler, bool) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	h, ok := p.handlers[id]
	return h, ok
}

// Capabilities lists the registered capabilities in registration order.
func (p *Pool) Capabilities() []Capability {
	p.mu.RLock()
	defer p.mu.RUnlock()
	out := make([]Capability, 0, len(p.order))
	for _, id := range p.order {
		out = append(out, p.handlers[id].Capability())
	}
	return out
}

// Invoke runs one handler under the per-call timeout. Handler errors,
// timeouts, panics and cancellation are reported in the Result.
func (p *Pool) Invoke(ctx context.Context, id string, req Request) Result {
	start := time.Now()
	h, ok := p.Get(id)
	if !ok {
		return p.unavailable(id, metrics.ReasonMissing, fmt.Errorf("no handler registered for %s", id), start)
	}

	callCtx, cancel := context.WithTimeout(ctx, p.timeout)
	defer cancel()

	type reply struct {
		out      Outcome
		err      error
		panicked bool
	}
	ch := make(chan reply, 1)
	go func() {
		defer func() {
			if r := recover(); r != nil {
				ch <- reply{err: fmt.Errorf("handler panicked: %v", r), panicked: true}
			}
		}()
		out, err := h.Handle(callCtx, req)
		ch <- reply{out: out, err: err}
	}()

	select {
	case r := <-ch:
		switch {
		case r.panicked:
			return p.unavailable(id, metrics.ReasonPanic, r.err, start)
		case r.err != nil && callCtx.Err() != nil:
			return p.unavailable(id, p.expiredReason(ctx), r.err, start)
		case r.err != nil:
			return p.unavailable(id, metrics.ReasonError, r.err, start)
		}
		return p.success(id, r.out, start)
	case <-callCtx.Done():
		return p.unavailable(id, p.expiredReason(ctx), callCtx.Err(), start)
	}
}

func (p *Pool) expiredReason(parent context.Context) string {
	if errors.Is(parent.Err(), context.Canceled) {
		return metrics.ReasonCancelled
	}
	return metrics.ReasonTimeout
}

func (p *Pool) success(id string, out Outcome, start time.Time) Result {
	d := time.Since(start)
	frags := make([]domain.Fragment, len(out.Response.Fragments))
	for i, f := range out.Response.Fragments {
		f.HandlerID = id
		f.Bucketed = false // only the filter buckets
		frags[i] = f
	}
	out.Response.Fragments = frags
	if len(out.Response.Provenance) == 0 {
		out.Response.Provenance = []domain.Provenance{{HandlerID: id}}
	}
	p.metrics.RecordHandler(id, "ok", d)
	return Result{HandlerID: id, Outcome: out, Duration: d}
}

func (p *Pool) unavailable(id, reason string, cause error, start time.Time) Result {
	d := time.Since(start)
	p.metrics.RecordHandler(id, reason, d)
	p.metrics.RecordHandlerUnavailable(id, reason)
	p.logger.Warn("handler unavailable",
		zap.String("handler_id", id),
		zap.String("reason", reason),
		zap.Duration("duration", d),
		zap.Error(cause),
	)
	return Result{
		HandlerID: id,
		Err:       fmt.Errorf("%w: %s: %w", domain.ErrHandlerUnavailable, id, cause),
		Reason:    reason,
		Duration:  d,
	}
}
