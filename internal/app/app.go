// Package app builds the assistant from configuration.
package app

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/xiaot623/gogo/assistant/internal/adapter/agentclient"
	"github.com/xiaot623/gogo/assistant/internal/adapter/llm"
	"github.com/xiaot623/gogo/assistant/internal/adapter/unionrules"
	"github.com/xiaot623/gogo/assistant/internal/config"
	"github.com/xiaot623/gogo/assistant/internal/conversation"
	"github.com/xiaot623/gogo/assistant/internal/filter"
	"github.com/xiaot623/gogo/assistant/internal/handlers"
	"github.com/xiaot623/gogo/assistant/internal/knowledge"
	"github.com/xiaot623/gogo/assistant/internal/memory"
	"github.com/xiaot623/gogo/assistant/internal/metrics"
	"github.com/xiaot623/gogo/assistant/internal/permission"
	"github.com/xiaot623/gogo/assistant/internal/repository"
	"github.com/xiaot623/gogo/assistant/internal/router"
	"github.com/xiaot623/gogo/assistant/internal/service"
	"github.com/xiaot623/gogo/assistant/policy"
)

const generalSystemPrompt = "You are the general assistant of a creative production company. " +
	"Answer briefly. Do not invent figures, budgets or client names."

// App is a fully wired assistant.
type App struct {
	Service *service.Service
	Store   *repository.SQLiteStore
	Metrics *metrics.Metrics
	Worker  *memory.Worker
	Logger  *zap.Logger
}

// New wires every component from cfg. The caller must Close the result.
func New(ctx context.Context, cfg *config.Config, logger *zap.Logger) (*App, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	matrix, err := permission.Load(cfg.PermissionsFile)
	if err != nil {
		return nil, err
	}
	decider, err := newDecider(ctx, cfg)
	if err != nil {
		return nil, err
	}
	catalog, err := loadCatalog(cfg.KnowledgeFile)
	if err != nil {
		return nil, err
	}
	var remote []handlers.RemoteSpec
	if cfg.HandlersFile != "" {
		if remote, err = handlers.LoadRemoteSpecs(cfg.HandlersFile); err != nil {
			return nil, err
		}
	}

	db, err := repository.NewSQLiteStore(cfg.DatabaseURL)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize store: %w", err)
	}

	m := metrics.New()
	gen := newGenerator(cfg, logger)

	deps := handlers.Deps{
		Knowledge: catalog,
		Remote:    remote,
		Agents:    agentclient.NewClient(cfg.HandlerTimeout),
		Logger:    logger,
	}
	if gen != nil {
		deps.Generator = gen
	}
	if cfg.UnionRulesURL != "" {
		deps.Unions = unionrules.NewClient(cfg.UnionRulesURL, cfg.HandlerTimeout)
	}
	pool := handlers.NewPool(cfg.HandlerTimeout, m, logger)
	if err := handlers.RegisterBuiltins(pool, deps); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to register handlers: %w", err)
	}
	pool.Seal()

	r, err := router.New(pool.Capabilities(), router.Config{
		Mode:          cfg.RoutingMode,
		Threshold:     cfg.ConfidenceThreshold,
		MaxCandidates: cfg.MaxCandidates,
	})
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to build router: %w", err)
	}

	var extractor memory.Extractor
	if cfg.MemoryExtractor == config.ExtractorLLM && gen != nil {
		extractor = memory.NewLLMExtractor(gen)
	}
	mgr := memory.NewManager(db, extractor, nil, m, logger)
	worker := memory.NewWorker(mgr, cfg.MemoryQueueSize, cfg.MemoryWorkers, m, logger)

	svc := service.New(service.Deps{
		Router:        r,
		Pool:          pool,
		Gate:          filter.NewGate(filter.New(matrix, decider, logger), db, m, logger),
		Matrix:        matrix,
		Conversations: conversation.NewStore(db, logger),
		Memory:        mgr,
		Queue:         worker,
		Metrics:       m,
		Logger:        logger,
	}, service.Options{
		QueryTimeout: cfg.QueryTimeout,
		MaxHops:      cfg.MaxHops,
	})

	logger.Info("assistant ready",
		zap.String("routing_mode", string(cfg.RoutingMode)),
		zap.String("filter_engine", cfg.FilterEngine),
		zap.Int("remote_handlers", len(remote)),
		zap.Bool("llm", gen != nil),
		zap.Bool("union_rules", cfg.UnionRulesURL != ""),
	)
	return &App{Service: svc, Store: db, Metrics: m, Worker: worker, Logger: logger}, nil
}

// Close drains the memory queue and closes the database.
func (a *App) Close() error {
	a.Worker.Close()
	return a.Store.Close()
}

func newDecider(ctx context.Context, cfg *config.Config) (filter.Decider, error) {
	if cfg.FilterEngine != config.EngineRego {
		return filter.StaticDecider{}, nil
	}
	engine, err := policy.NewEngine(ctx, policy.DefaultPolicy)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize policy engine: %w", err)
	}
	return filter.NewRegoDecider(engine), nil
}

func loadCatalog(path string) (*knowledge.Catalog, error) {
	if path == "" {
		return knowledge.DefaultCatalog(), nil
	}
	return knowledge.LoadCatalog(path)
}

// newGenerator returns nil when no NL backend is configured, which leaves the
// general handler on its canned answer.
func newGenerator(cfg *config.Config, logger *zap.Logger) *llm.Generator {
	if cfg.LLMURL == "" && cfg.Mode != llm.ModeMock {
		return nil
	}
	client := llm.NewLLMClient(cfg.Mode, cfg.LLMURL, cfg.LLMAPIKey, cfg.LLMTimeout, logger)
	return llm.NewGenerator(client, cfg.LLMModel, generalSystemPrompt)
}
