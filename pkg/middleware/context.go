package middleware

import (
	"github.com/google/uuid"
	"github.com/labstack/echo/v4"

	"github.com/Ramsey-B/sage/pkg/context"
)

const (
	// HeaderOperatorID is the header key for the operator id (NIK)
	HeaderOperatorID = "X-Operator-Id"
	// HeaderOperatorInitials is the header key for the operator initials
	HeaderOperatorInitials = "X-Operator-Initials"
)

func Context() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) (err error) {
			req := c.Request()

			// get request id from header
			requestID := req.Header.Get(echo.HeaderXRequestID)
			if requestID == "" {
				requestID = uuid.New().String()
			}

			ctx := req.Context()
			ctx = context.SetRequestID(ctx, requestID)
			ctx = context.SetMethod(ctx, req.Method)
			ctx = context.SetRoute(ctx, req.URL.Path)
			ctx = context.SetRemoteIP(ctx, c.RealIP())
			ctx = context.SetOperatorID(ctx, req.Header.Get(HeaderOperatorID))
			ctx = context.SetOperatorInitials(ctx, req.Header.Get(HeaderOperatorInitials))

			c.SetRequest(req.WithContext(ctx))

			return next(c)
		}
	}
}
