package memory

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/xiaot623/gogo/assistant/internal/domain"
	"github.com/xiaot623/gogo/assistant/internal/metrics"
)

// Worker runs memory extraction off the request path.
type Worker struct {
	mgr     *Manager
	queue   chan domain.Interaction
	timeout time.Duration
	metrics *metrics.Metrics
	logger  *zap.Logger

	mu     sync.RWMutex
	closed bool
	wg     sync.WaitGroup
}

// NewWorker starts n goroutines draining a queue of the given size.
func NewWorker(mgr *Manager, size, n int, m *metrics.Metrics, logger *zap.Logger) *Worker {
	if size <= 0 {
		size = 1
	}
	if n <= 0 {
		n = 1
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	w := &Worker{
		mgr:     mgr,
		queue:   make(chan domain.Interaction, size),
		timeout: 30 * time.Second,
		metrics: m,
		logger:  logger,
	}
	for i := 0; i < n; i++ {
		w.wg.Add(1)
		go w.run()
	}
	return w
}

// Enqueue hands an interaction to the workers without blocking. It reports
// false when the queue is full or the worker is closed.
func (w *Worker) Enqueue(in domain.Interaction) bool {
	w.mu.RLock()
	defer w.mu.RUnlock()
	if w.closed {
		return false
	}
	select {
	case w.queue <- in:
		return true
	default:
		w.metrics.RecordMemoryDrop()
		w.logger.Warn("memory queue full, dropping interaction",
			zap.String("thread_id", in.ThreadID),
			zap.String("namespace", in.User.Namespace()),
		)
		return false
	}
}

// Close stops accepting work and waits for queued interactions to finish.
func (w *Worker) Close() {
	w.mu.Lock()
	if w.closed {
		w.mu.Unlock()
		return
	}
	w.closed = true
	close(w.queue)
	w.mu.Unlock()
	w.wg.Wait()
}

func (w *Worker) run() {
	defer w.wg.Done()
	for in := range w.queue {
		ctx, cancel := context.WithTimeout(context.Background(), w.timeout)
		if err := w.mgr.Observe(ctx, in); err != nil {
			w.logger.Warn("memory extraction failed",
				zap.String("thread_id", in.ThreadID),
				zap.String("namespace", in.User.Namespace()),
				zap.String("kind", string(domain.KindOf(err))),
				zap.Error(err),
			)
		}
		cancel()
	}
}
