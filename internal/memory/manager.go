// Package memory keeps long-term facts about users: it extracts candidate
// facts from finished exchanges, consolidates them per namespace and
// retrieves them as soft context.
package memory

import (
	"context"
	"errors"
	"fmt"
	"math"
	"sort"
	"time"

	"github.com/oklog/ulid/v2"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"

	"github.com/xiaot623/gogo/assistant/internal/domain"
	"github.com/xiaot623/gogo/assistant/internal/metrics"
	"github.com/xiaot623/gogo/assistant/internal/repository"
	"github.com/xiaot623/gogo/assistant/internal/syncx"
)

// Retrieval score weights.
const (
	weightSimilarity = 0.6
	weightRecency    = 0.25
	weightConfidence = 0.15
	recencyDecay     = 0.1 // per day

	DefaultRetrieveLimit = 5
)

// Store persists memory records.
type Store interface {
	StageMemory(ctx context.Context, records []domain.MemoryRecord) error
	ListMemory(ctx context.Context, namespace string, statuses ...domain.MemoryStatus) ([]domain.MemoryRecord, error)
	ConsolidateNamespace(ctx context.Context, namespace string, resolve repository.ResolveFunc) (int, error)
}

// Manager is the entry point of the memory subsystem.
type Manager struct {
	store     Store
	extractor Extractor
	embedder  Embedder
	locks     *syncx.KeyedMutex
	metrics   *metrics.Metrics
	logger    *zap.Logger
	now       func() time.Time
}

// NewManager creates a manager. Nil extractor and embedder select
// PatternExtractor and HashEmbedder.
func NewManager(store Store, extractor Extractor, embedder Embedder, m *metrics.Metrics, logger *zap.Logger) *Manager {
	if extractor == nil {
		extractor = PatternExtractor{}
	}
	if embedder == nil {
		embedder = HashEmbedder{}
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Manager{
		store:     store,
		extractor: extractor,
		embedder:  embedder,
		locks:     syncx.NewKeyedMutex(),
		metrics:   m,
		logger:    logger,
		now:       time.Now,
	}
}

// Extract returns candidate records for an interaction, ready to stage.
// Every candidate lands in the user's own namespace.
func (m *Manager) Extract(ctx context.Context, in domain.Interaction) ([]domain.MemoryRecord, error) {
	raw, err := m.extractor.Extract(ctx, in)
	if err != nil {
		return nil, err
	}
	observed := in.ObservedAt
	if observed.IsZero() {
		observed = m.now()
	}
	ns := in.User.Namespace()
	out := make([]domain.MemoryRecord, 0, len(raw))
	for _, r := range raw {
		if r.Entity == "" || r.Predicate == "" || r.Fact == "" || !r.Kind.Valid() {
			continue
		}
		r.ID = "mem_" + ulid.Make().String()
		r.Namespace = ns
		r.Key = DedupKey(r.Entity, r.Predicate)
		r.Confidence = clamp(r.Confidence)
		r.ObservedAt = observed.UTC()
		r.Embedding = m.embedder.Embed(r.Fact)
		r.Status = domain.MemoryPending
		r.SupersededBy = ""
		out = append(out, r)
	}
	return out, nil
}

// Stage persists candidates as pending.
func (m *Manager) Stage(ctx context.Context, records []domain.MemoryRecord) error {
	if err := m.store.StageMemory(ctx, records); err != nil {
		return fmt.Errorf("failed to stage memory: %w", err)
	}
	return nil
}

// Consolidate resolves the pending candidates of a namespace and returns the
// resulting active set. Passes on one namespace are serialized; each pass is
// a single transaction.
func (m *Manager) Consolidate(ctx context.Context, namespace string) ([]domain.MemoryRecord, error) {
	ctx, span := otel.Tracer("assistant/memory").Start(ctx, "memory.consolidate")
	defer span.End()
	span.SetAttributes(attribute.String("namespace", namespace))

	unlock, err := m.locks.Lock(ctx, namespace)
	if err != nil {
		return nil, err
	}
	defer unlock()

	changed, err := m.store.ConsolidateNamespace(ctx, namespace, func(active, pending []domain.MemoryRecord) ([]domain.MemoryRecord, error) {
		updates := Resolve(active, pending)
		for _, r := range updates {
			m.metrics.RecordCandidate(string(r.Status))
		}
		return updates, nil
	})
	if err != nil {
		status := "error"
		if errors.Is(err, repository.ErrConflict) {
			status = string(domain.KindConsolidationConflict)
		}
		m.metrics.RecordConsolidation(status)
		return nil, domain.NewError(domain.KindConsolidationConflict, fmt.Errorf("failed to consolidate %s: %w", namespace, err))
	}
	m.metrics.RecordConsolidation("ok")
	span.SetAttributes(attribute.Int("changed", changed))
	m.logger.Debug("memory consolidated", zap.String("namespace", namespace), zap.Int("changed", changed))

	return m.store.ListMemory(ctx, namespace, domain.MemoryActive)
}

// Observe extracts, stages and consolidates one interaction.
func (m *Manager) Observe(ctx context.Context, in domain.Interaction) error {
	records, err := m.Extract(ctx, in)
	if err != nil {
		return err
	}
	if len(records) == 0 {
		return nil
	}
	if err := m.Stage(ctx, records); err != nil {
		return err
	}
	_, err = m.Consolidate(ctx, in.User.Namespace())
	return err
}

// Retrieve ranks the active records of a namespace against query. It never
// writes. An empty query ranks by recency and confidence alone.
func (m *Manager) Retrieve(ctx context.Context, namespace, query string, limit int) ([]domain.MemoryRecord, error) {
	if limit <= 0 {
		limit = DefaultRetrieveLimit
	}
	records, err := m.store.ListMemory(ctx, namespace, domain.MemoryActive)
	if err != nil {
		return nil, fmt.Errorf("failed to list memory: %w", err)
	}
	q := m.embedder.Embed(query)
	now := m.now()
	for i := range records {
		records[i].Score = score(records[i], q, now)
	}
	sort.SliceStable(records, func(i, j int) bool {
		if records[i].Score != records[j].Score {
			return records[i].Score > records[j].Score
		}
		return records[i].ID < records[j].ID
	})
	if len(records) > limit {
		records = records[:limit]
	}
	return records, nil
}

func score(r domain.MemoryRecord, query []float32, now time.Time) float64 {
	ageDays := now.Sub(r.ObservedAt).Hours() / 24
	if ageDays < 0 {
		ageDays = 0
	}
	return weightSimilarity*Cosine(query, r.Embedding) +
		weightRecency*math.Exp(-recencyDecay*ageDays) +
		weightConfidence*r.Confidence
}
