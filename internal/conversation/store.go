// Package conversation is the append-only, per-thread message log.
package conversation

import (
	"context"
	"errors"
	"fmt"
	"time"
	"unicode/utf8"

	"github.com/oklog/ulid/v2"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"

	"github.com/xiaot623/gogo/assistant/internal/domain"
	"github.com/xiaot623/gogo/assistant/internal/syncx"
)

const (
	DefaultPageSize = 50
	MaxPageSize     = 200
	maxThreadIDLen  = 128
)

var (
	// ErrInvalidMessage is returned for messages the log refuses to store.
	ErrInvalidMessage = errors.New("invalid message")
	// ErrNotOwner is returned when a user writes to a thread another user opened.
	ErrNotOwner = errors.New("thread belongs to another user")
)

// Log is the durable backing store.
type Log interface {
	AppendMessages(ctx context.Context, msgs []domain.Message) error
	LastMessage(ctx context.Context, threadID string) (int64, time.Time, bool, error)
	ThreadOwner(ctx context.Context, threadID string) (string, bool, error)
	ListMessages(ctx context.Context, threadID string, afterSeq int64, limit int) ([]domain.Message, error)
	RecentMessages(ctx context.Context, threadID string, n int) ([]domain.Message, error)
}

// Store serializes appends per thread and stamps sequence numbers and
// strictly increasing timestamps.
type Store struct {
	log    Log
	locks  *syncx.KeyedMutex
	logger *zap.Logger
	now    func() time.Time
}

// NewStore creates a conversation store on top of log.
func NewStore(log Log, logger *zap.Logger) *Store {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Store{log: log, locks: syncx.NewKeyedMutex(), logger: logger, now: time.Now}
}

// ValidThreadID reports whether id can name a thread.
func ValidThreadID(id string) bool {
	return id != "" && len(id) <= maxThreadIDLen && utf8.ValidString(id)
}

// Append commits msgs to the end of the thread as one unit and returns them
// stamped with ids, sequence numbers and timestamps. The thread is created on
// first append. Nothing is acknowledged before the commit succeeds.
func (s *Store) Append(ctx context.Context, threadID string, msgs ...domain.Message) ([]domain.Message, error) {
	if !ValidThreadID(threadID) {
		return nil, fmt.Errorf("%w: thread id", ErrInvalidMessage)
	}
	if len(msgs) == 0 {
		return nil, fmt.Errorf("%w: no messages", ErrInvalidMessage)
	}
	for _, m := range msgs {
		if m.Sender != domain.SenderUser && m.Sender != domain.SenderAssistant {
			return nil, fmt.Errorf("%w: sender %q", ErrInvalidMessage, m.Sender)
		}
	}

	ctx, span := otel.Tracer("assistant/conversation").Start(ctx, "conversation.append")
	defer span.End()
	span.SetAttributes(attribute.String("thread_id", threadID), attribute.Int("messages", len(msgs)))

	unlock, err := s.locks.Lock(ctx, threadID)
	if err != nil {
		return nil, err
	}
	defer unlock()

	lastSeq, lastTS, exists, err := s.log.LastMessage(ctx, threadID)
	if err != nil {
		return nil, fmt.Errorf("%w: read thread head: %w", domain.ErrPersistenceFailure, err)
	}
	if exists {
		owner, _, err := s.log.ThreadOwner(ctx, threadID)
		if err != nil {
			return nil, fmt.Errorf("%w: read thread owner: %w", domain.ErrPersistenceFailure, err)
		}
		for _, m := range msgs {
			if owner != "" && m.UserID != owner {
				return nil, ErrNotOwner
			}
		}
	}

	stamped := make([]domain.Message, len(msgs))
	for i, m := range msgs {
		ts := s.now().UTC()
		if !ts.After(lastTS) {
			ts = lastTS.Add(time.Nanosecond)
		}
		lastSeq++
		lastTS = ts

		m.ID = "msg_" + ulid.Make().String()
		m.ThreadID = threadID
		m.Seq = lastSeq
		m.Timestamp = ts
		stamped[i] = m
	}

	if err := s.log.AppendMessages(ctx, stamped); err != nil {
		s.logger.Error("failed to append messages", zap.String("thread_id", threadID), zap.Error(err))
		return nil, fmt.Errorf("%w: %w", domain.ErrPersistenceFailure, err)
	}
	return stamped, nil
}

// History returns one page of a thread, oldest first, starting after page.Cursor.
func (s *Store) History(ctx context.Context, threadID string, page domain.PageRequest) (*domain.Page, error) {
	if !ValidThreadID(threadID) {
		return nil, fmt.Errorf("%w: thread id", ErrInvalidMessage)
	}
	limit := page.Limit
	if limit <= 0 {
		limit = DefaultPageSize
	}
	if limit > MaxPageSize {
		limit = MaxPageSize
	}
	cursor := page.Cursor
	if cursor < 0 {
		cursor = 0
	}

	msgs, err := s.log.ListMessages(ctx, threadID, cursor, limit+1)
	if err != nil {
		return nil, fmt.Errorf("failed to list messages: %w", err)
	}

	out := &domain.Page{Messages: msgs, NextCursor: cursor}
	if len(msgs) > limit {
		out.Messages = msgs[:limit]
		out.HasMore = true
	}
	if n := len(out.Messages); n > 0 {
		out.NextCursor = out.Messages[n-1].Seq
	}
	return out, nil
}

// Owner returns the user who opened the thread, and false for a new thread.
func (s *Store) Owner(ctx context.Context, threadID string) (string, bool, error) {
	if !ValidThreadID(threadID) {
		return "", false, nil
	}
	return s.log.ThreadOwner(ctx, threadID)
}

// Recent returns the newest n messages of a thread, oldest first.
func (s *Store) Recent(ctx context.Context, threadID string, n int) ([]domain.Message, error) {
	if !ValidThreadID(threadID) || n <= 0 {
		return nil, nil
	}
	return s.log.RecentMessages(ctx, threadID, n)
}

// RecentHandlers returns the handlers of successful assistant replies in the
// thread, most recent first, without duplicates.
func RecentHandlers(msgs []domain.Message) []string {
	seen := make(map[string]bool)
	var out []string
	for i := len(msgs) - 1; i >= 0; i-- {
		if msgs[i].Sender != domain.SenderAssistant {
			continue
		}
		for _, h := range msgs[i].Handlers {
			if !seen[h] {
				seen[h] = true
				out = append(out, h)
			}
		}
	}
	return out
}
