// Package http provides the HTTP server of the assistant.
package http

import (
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"go.uber.org/zap"

	"github.com/xiaot623/gogo/assistant/internal/metrics"
	v1 "github.com/xiaot623/gogo/assistant/internal/transport/http/v1"
)

// Version is reported by /health.
const Version = "0.1.0"

// NewServer creates and configures the HTTP server. m may be nil, in which
// case /metrics is not served.
func NewServer(assistant v1.Assistant, pinger v1.Pinger, m *metrics.Metrics, logger *zap.Logger) *echo.Echo {
	if logger == nil {
		logger = zap.NewNop()
	}
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true

	// Middleware
	e.Use(middleware.RequestLoggerWithConfig(middleware.RequestLoggerConfig{
		LogMethod:  true,
		LogURIPath: true,
		LogStatus:  true,
		LogLatency: true,
		LogValuesFunc: func(c echo.Context, v middleware.RequestLoggerValues) error {
			logger.Info("request",
				zap.String("method", v.Method),
				zap.String("path", v.URIPath),
				zap.Int("status", v.Status),
				zap.Duration("latency", v.Latency),
			)
			return nil
		},
	}))
	e.Use(middleware.Recover())
	e.Use(middleware.BodyLimit("64K"))

	// Handlers
	v1.NewHandler(assistant, pinger, Version).RegisterRoutes(e)
	if m != nil {
		e.GET("/metrics", echo.WrapHandler(m.Handler()))
	}
	e.HTTPErrorHandler = func(err error, c echo.Context) {
		if c.Response().Committed {
			return
		}
		code := http.StatusInternalServerError
		msg := "An internal error occurred."
		if he, ok := err.(*echo.HTTPError); ok {
			code = he.Code
			msg = http.StatusText(code)
		}
		_ = c.JSON(code, map[string]string{"code": "http_error", "message": msg})
	}

	return e
}
