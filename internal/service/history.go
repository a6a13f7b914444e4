package service

import (
	"context"
	"errors"
	"fmt"

	"github.com/xiaot623/gogo/assistant/internal/conversation"
	"github.com/xiaot623/gogo/assistant/internal/domain"
)

// GetHistory returns one page of a thread the user owns. Threads of other
// users look the same as unknown ones.
func (s *Service) GetHistory(ctx context.Context, user domain.User, threadID string, page domain.PageRequest) (*domain.Page, error) {
	if _, err := s.authorize(user); err != nil {
		return nil, err
	}
	if !conversation.ValidThreadID(threadID) {
		return nil, domain.NewError(domain.KindInvalidRequest, errors.New("invalid thread id"))
	}
	if err := s.checkOwner(ctx, threadID, user); err != nil {
		return nil, err
	}
	out, err := s.conversations.History(ctx, threadID, page)
	if err != nil {
		return nil, fmt.Errorf("failed to read history: %w", err)
	}
	return out, nil
}

// GetMemory retrieves the user's remembered facts ranked against query. An
// empty namespace means the user's own; other users' namespaces are refused.
func (s *Service) GetMemory(ctx context.Context, user domain.User, namespace, query string, limit int) ([]domain.MemoryRecord, error) {
	if _, err := s.authorize(user); err != nil {
		return nil, err
	}
	if namespace == "" {
		namespace = user.Namespace()
	}
	if namespace != user.Namespace() {
		return nil, domain.NewError(domain.KindInvalidRequest, errors.New("namespace not accessible"))
	}
	if s.memory == nil {
		return []domain.MemoryRecord{}, nil
	}
	records, err := s.memory.Retrieve(ctx, namespace, query, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to retrieve memory: %w", err)
	}
	return records, nil
}
