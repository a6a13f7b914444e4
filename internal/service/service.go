// Package service is the request pipeline: route, fan out, filter, persist
// and hand the exchange to memory.
package service

import (
	"time"

	"go.uber.org/zap"

	"github.com/xiaot623/gogo/assistant/internal/conversation"
	"github.com/xiaot623/gogo/assistant/internal/domain"
	"github.com/xiaot623/gogo/assistant/internal/filter"
	"github.com/xiaot623/gogo/assistant/internal/handlers"
	"github.com/xiaot623/gogo/assistant/internal/memory"
	"github.com/xiaot623/gogo/assistant/internal/metrics"
	"github.com/xiaot623/gogo/assistant/internal/permission"
	"github.com/xiaot623/gogo/assistant/internal/router"
)

// MemoryQueue accepts finished exchanges for background extraction.
type MemoryQueue interface {
	Enqueue(in domain.Interaction) bool
}

// Options bound the pipeline.
type Options struct {
	QueryTimeout time.Duration
	// MaxHops is the number of handoffs followed per routed handler.
	MaxHops int
	// HistoryContext is how many recent messages feed routing and handlers.
	HistoryContext int
	// MemoryLimit is how many memory records are retrieved per query.
	MemoryLimit int
}

// Deps are the collaborators of a Service.
type Deps struct {
	Router        *router.Router
	Pool          *handlers.Pool
	Gate          *filter.Gate
	Matrix        *permission.Matrix
	Conversations *conversation.Store
	Memory        *memory.Manager
	Queue         MemoryQueue
	Metrics       *metrics.Metrics
	Logger        *zap.Logger
}

// Service holds no per-request state; one instance serves concurrent requests.
type Service struct {
	router        *router.Router
	pool          *handlers.Pool
	gate          *filter.Gate
	matrix        *permission.Matrix
	conversations *conversation.Store
	memory        *memory.Manager
	queue         MemoryQueue
	metrics       *metrics.Metrics
	logger        *zap.Logger
	opts          Options
}

// New creates a service.
func New(deps Deps, opts Options) *Service {
	if opts.QueryTimeout <= 0 {
		opts.QueryTimeout = 15 * time.Second
	}
	if opts.MaxHops <= 0 {
		opts.MaxHops = 3
	}
	if opts.HistoryContext <= 0 {
		opts.HistoryContext = 6
	}
	if opts.MemoryLimit <= 0 {
		opts.MemoryLimit = 3
	}
	logger := deps.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Service{
		router:        deps.Router,
		pool:          deps.Pool,
		gate:          deps.Gate,
		matrix:        deps.Matrix,
		conversations: deps.Conversations,
		memory:        deps.Memory,
		queue:         deps.Queue,
		metrics:       deps.Metrics,
		logger:        logger,
		opts:          opts,
	}
}
