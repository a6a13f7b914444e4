package v1

import (
	"net/http"

	"github.com/labstack/echo/v4"
	"go.opentelemetry.io/otel/trace"

	"github.com/xiaot623/gogo/assistant/internal/domain"
)

// StatusClientClosedRequest is returned when the caller went away.
const StatusClientClosedRequest = 499

func statusFor(kind domain.ErrorKind) int {
	switch kind {
	case domain.KindInvalidRequest:
		return http.StatusBadRequest
	case domain.KindRoutingFailed:
		return http.StatusUnprocessableEntity
	case domain.KindServiceDegraded:
		return http.StatusServiceUnavailable
	case domain.KindCancelled:
		return StatusClientClosedRequest
	default:
		return http.StatusInternalServerError
	}
}

// writeError renders err as the stable error model. Raw error text never
// reaches the caller.
func writeError(c echo.Context, err error) error {
	resp := domain.ToResponse(err)
	if sc := trace.SpanContextFromContext(c.Request().Context()); sc.HasTraceID() {
		resp.TraceID = sc.TraceID().String()
	}
	return c.JSON(statusFor(resp.Code), resp)
}
