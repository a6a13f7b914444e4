package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/oklog/ulid/v2"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/xiaot623/gogo/assistant/internal/conversation"
	"github.com/xiaot623/gogo/assistant/internal/domain"
	"github.com/xiaot623/gogo/assistant/internal/filter"
	"github.com/xiaot623/gogo/assistant/internal/handlers"
	"github.com/xiaot623/gogo/assistant/internal/permission"
	"github.com/xiaot623/gogo/assistant/internal/router"
)

var tracer = otel.Tracer("assistant/service")

// NewThreadID returns a fresh thread id.
func NewThreadID() string {
	return "th_" + strings.ToLower(ulid.Make().String())
}

// HandleQuery answers one query for user in thread threadID. An empty
// threadID opens a new thread. The returned response has passed the security
// filter and both messages of the exchange are durable.
func (s *Service) HandleQuery(ctx context.Context, query string, user domain.User, threadID string) (*domain.FilteredResponse, error) {
	start := time.Now()
	ctx, span := tracer.Start(ctx, "service.handle_query")
	defer span.End()

	resp, err := s.handleQuery(ctx, query, user, threadID)
	code := "ok"
	if err != nil {
		code = string(domain.KindOf(err))
		if code == "" {
			code = "internal_error"
		}
		span.SetStatus(codes.Error, code)
	}
	s.metrics.RecordQuery(code, time.Since(start))
	return resp, err
}

func (s *Service) handleQuery(ctx context.Context, query string, user domain.User, threadID string) (*domain.FilteredResponse, error) {
	entry, err := s.authorize(user)
	if err != nil {
		return nil, err
	}
	if threadID == "" {
		threadID = NewThreadID()
	}
	if !conversation.ValidThreadID(threadID) {
		return nil, domain.NewError(domain.KindInvalidRequest, errors.New("invalid thread id"))
	}
	if err := s.checkOwner(ctx, threadID, user); err != nil {
		return nil, err
	}

	recent, err := s.conversations.Recent(ctx, threadID, s.opts.HistoryContext)
	if err != nil {
		s.logger.Warn("failed to load recent messages", zap.String("thread_id", threadID), zap.Error(err))
		recent = nil
	}

	decision, err := s.router.Route(query, router.Context{
		Recent:         contents(recent),
		RecentHandlers: conversation.RecentHandlers(recent),
	})
	if err != nil {
		s.metrics.RecordRoutingFailure()
		s.logger.Info("query could not be routed", zap.String("thread_id", threadID), zap.Error(err))
		return nil, domain.NewError(domain.KindRoutingFailed, err)
	}
	s.metrics.RecordRouting(string(decision.Mode), decision.LowConfidence)

	var memories []domain.MemoryRecord
	if s.memory != nil {
		memories, err = s.memory.Retrieve(ctx, user.Namespace(), query, s.opts.MemoryLimit)
		if err != nil {
			s.logger.Warn("failed to retrieve memory", zap.String("namespace", user.Namespace()), zap.Error(err))
			memories = nil
		}
	}

	req := handlers.Request{
		RequestID: "req_" + ulid.Make().String(),
		Query:     query,
		User:      user,
		ThreadID:  threadID,
		Scope:     scopeFor(entry, user),
		Context:   contents(recent),
		Memory:    memories,
	}

	qctx, cancel := context.WithTimeout(ctx, s.opts.QueryTimeout)
	out := s.fanOut(qctx, decision, req)
	cancel()

	merged := out.merged()

	if ctx.Err() != nil {
		// Nothing is released or appended, but whatever was produced is still
		// filtered so drops are on the audit trail.
		if _, ferr := s.gate.Apply(context.WithoutCancel(ctx), merged, user); ferr != nil {
			s.logger.Error("failed to audit cancelled request", zap.String("thread_id", threadID), zap.Error(ferr))
		}
		return nil, domain.NewError(domain.KindCancelled, ctx.Err())
	}

	if len(out.contributors) == 0 {
		s.logger.Error("all handlers unavailable",
			zap.String("thread_id", threadID),
			zap.Strings("unavailable", out.unavailable),
		)
		return nil, domain.NewError(domain.KindServiceDegraded, fmt.Errorf("%w: %s", domain.ErrServiceDegraded, strings.Join(out.unavailable, ",")))
	}

	filtered, err := s.gate.Apply(ctx, merged, user)
	if err != nil {
		if errors.Is(err, filter.ErrUnknownRole) {
			return nil, domain.NewError(domain.KindInvalidRequest, err)
		}
		return nil, domain.NewError(domain.KindPersistenceFailure, fmt.Errorf("%w: %w", domain.ErrPersistenceFailure, err))
	}

	if err := ctx.Err(); err != nil {
		return nil, domain.NewError(domain.KindCancelled, err)
	}

	stored, err := s.conversations.Append(ctx, threadID,
		domain.Message{UserID: user.ID, Sender: domain.SenderUser, Content: query},
		domain.Message{UserID: user.ID, Sender: domain.SenderAssistant, Content: filtered.Text(), Handlers: out.contributors},
	)
	if err != nil {
		if errors.Is(err, conversation.ErrNotOwner) {
			return nil, domain.NewError(domain.KindInvalidRequest, errors.New("unknown thread"))
		}
		if ctx.Err() != nil {
			return nil, domain.NewError(domain.KindCancelled, ctx.Err())
		}
		return nil, domain.NewError(domain.KindPersistenceFailure, err)
	}
	reply := stored[len(stored)-1]

	if s.queue != nil {
		s.queue.Enqueue(domain.Interaction{
			User:       user,
			ThreadID:   threadID,
			Query:      query,
			Response:   filtered.Text(),
			Handlers:   out.contributors,
			ObservedAt: reply.Timestamp,
		})
	}

	filtered.Meta = &domain.ResponseMeta{
		ThreadID:      threadID,
		MessageID:     reply.ID,
		Mode:          decision.Mode,
		Handlers:      out.contributors,
		Unavailable:   out.unavailable,
		LowConfidence: decision.LowConfidence,
	}
	trace.SpanFromContext(ctx).SetAttributes(
		attribute.String("thread_id", threadID),
		attribute.String("routing.mode", string(decision.Mode)),
		attribute.Int("handlers.ok", len(out.contributors)),
		attribute.Int("handlers.unavailable", len(out.unavailable)),
	)
	s.logger.Info("query answered",
		zap.String("thread_id", threadID),
		zap.String("user_id", user.ID),
		zap.Strings("handlers", out.contributors),
		zap.Strings("unavailable", out.unavailable),
		zap.Bool("restricted", filtered.Restricted),
	)
	return filtered, nil
}

func (s *Service) authorize(user domain.User) (permission.Entry, error) {
	if user.ID == "" {
		return permission.Entry{}, domain.NewError(domain.KindInvalidRequest, errors.New("user id is required"))
	}
	entry, ok := s.matrix.Lookup(user.Role)
	if !ok {
		return permission.Entry{}, domain.NewError(domain.KindInvalidRequest, fmt.Errorf("%w: %s", filter.ErrUnknownRole, user.Role))
	}
	return entry, nil
}

// checkOwner hides threads of other users behind a generic invalid request.
func (s *Service) checkOwner(ctx context.Context, threadID string, user domain.User) error {
	owner, ok, err := s.conversations.Owner(ctx, threadID)
	if err != nil {
		return domain.NewError(domain.KindPersistenceFailure, err)
	}
	if ok && owner != "" && owner != user.ID {
		return domain.NewError(domain.KindInvalidRequest, errors.New("unknown thread"))
	}
	return nil
}

func scopeFor(entry permission.Entry, user domain.User) handlers.ProjectScope {
	if entry.ProjectAccess == domain.ProjectAll {
		return handlers.ProjectScope{All: true}
	}
	return handlers.ProjectScope{Projects: user.AssignedProjects}
}

func contents(msgs []domain.Message) []string {
	out := make([]string, 0, len(msgs))
	for _, m := range msgs {
		out = append(out, string(m.Sender)+": "+m.Content)
	}
	return out
}
