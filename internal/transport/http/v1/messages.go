package v1

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/labstack/echo/v4"

	"github.com/xiaot623/gogo/assistant/internal/domain"
)

// GetThreadMessages retrieves one page of a thread.
// GET /v1/threads/:thread_id/messages?cursor=&limit=
func (h *Handler) GetThreadMessages(c echo.Context) error {
	user, err := userFrom(c)
	if err != nil {
		return writeError(c, err)
	}
	var page domain.PageRequest
	if v := c.QueryParam("cursor"); v != "" {
		page.Cursor, err = strconv.ParseInt(v, 10, 64)
		if err != nil || page.Cursor < 0 {
			return writeError(c, domain.NewError(domain.KindInvalidRequest, errors.New("invalid cursor")))
		}
	}
	if v := c.QueryParam("limit"); v != "" {
		page.Limit, err = strconv.Atoi(v)
		if err != nil || page.Limit < 0 {
			return writeError(c, domain.NewError(domain.KindInvalidRequest, errors.New("invalid limit")))
		}
	}

	out, err := h.assistant.GetHistory(c.Request().Context(), user, c.Param("thread_id"), page)
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(http.StatusOK, out)
}

// GetMemory lists the caller's remembered facts ranked against q.
// GET /v1/memory[/:namespace]?q=&limit=
func (h *Handler) GetMemory(c echo.Context) error {
	user, err := userFrom(c)
	if err != nil {
		return writeError(c, err)
	}
	limit := 0
	if v := c.QueryParam("limit"); v != "" {
		if limit, err = strconv.Atoi(v); err != nil || limit < 0 {
			return writeError(c, domain.NewError(domain.KindInvalidRequest, errors.New("invalid limit")))
		}
	}

	records, err := h.assistant.GetMemory(c.Request().Context(), user, c.Param("namespace"), c.QueryParam("q"), limit)
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(http.StatusOK, map[string]any{
		"namespace": user.Namespace(),
		"records":   records,
	})
}
