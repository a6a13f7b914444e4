package v1

import (
	"errors"
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/xiaot623/gogo/assistant/internal/domain"
)

// Query answers a question.
// POST /v1/query
func (h *Handler) Query(c echo.Context) error {
	user, err := userFrom(c)
	if err != nil {
		return writeError(c, err)
	}
	var req domain.QueryRequest
	if err := c.Bind(&req); err != nil {
		return writeError(c, domain.NewError(domain.KindInvalidRequest, errors.New("invalid request body")))
	}

	resp, err := h.assistant.HandleQuery(c.Request().Context(), req.Query, user, req.ThreadID)
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(http.StatusOK, resp)
}
