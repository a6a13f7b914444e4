// Package v1 provides the public HTTP API of the assistant.
package v1

import (
	"context"
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/xiaot623/gogo/assistant/internal/domain"
)

// Assistant is the pipeline behind the API.
type Assistant interface {
	HandleQuery(ctx context.Context, query string, user domain.User, threadID string) (*domain.FilteredResponse, error)
	GetHistory(ctx context.Context, user domain.User, threadID string, page domain.PageRequest) (*domain.Page, error)
	GetMemory(ctx context.Context, user domain.User, namespace, query string, limit int) ([]domain.MemoryRecord, error)
}

// Pinger reports whether storage is reachable.
type Pinger interface {
	Ping(ctx context.Context) error
}

// Handler handles HTTP requests.
type Handler struct {
	assistant Assistant
	pinger    Pinger
	version   string
}

// NewHandler creates a new handler. pinger may be nil.
func NewHandler(assistant Assistant, pinger Pinger, version string) *Handler {
	return &Handler{
		assistant: assistant,
		pinger:    pinger,
		version:   version,
	}
}

// RegisterRoutes registers the API routes with the echo server.
func (h *Handler) RegisterRoutes(e *echo.Echo) {
	e.POST("/v1/query", h.Query)
	e.GET("/v1/threads/:thread_id/messages", h.GetThreadMessages)
	e.GET("/v1/memory", h.GetMemory)
	e.GET("/v1/memory/:namespace", h.GetMemory)

	e.GET("/health", h.Health)
}

// Health returns health status.
func (h *Handler) Health(c echo.Context) error {
	if h.pinger != nil {
		if err := h.pinger.Ping(c.Request().Context()); err != nil {
			return c.JSON(http.StatusServiceUnavailable, map[string]string{
				"status":  "unhealthy",
				"version": h.version,
			})
		}
	}
	return c.JSON(http.StatusOK, map[string]string{
		"status":  "healthy",
		"version": h.version,
	})
}
