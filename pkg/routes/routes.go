// Package routes mounts the API surface onto an echo instance.
package routes

import (
	"github.com/Gobusters/ectologger"
	"github.com/labstack/echo/v4"

	"github.com/Ramsey-B/sage/pkg/middleware"
	"github.com/Ramsey-B/sage/pkg/routes/entry"
	"github.com/Ramsey-B/sage/pkg/routes/session"
	"github.com/Ramsey-B/sage/pkg/routes/telemetry"
)

// Register wires the middleware stack and all API route groups.
func Register(e *echo.Echo, logger ectologger.Logger) {
	e.Use(middleware.Context())
	e.Use(middleware.Logger(logger))
	e.HTTPErrorHandler = middleware.Error(logger)

	api := e.Group("/api/v1")
	session.Register(api.Group("/sessions"))
	session.RegisterBatch(api.Group("/batches"))
	entry.Register(api.Group("/entries"))
	telemetry.Register(api.Group("/telemetry"))
}
