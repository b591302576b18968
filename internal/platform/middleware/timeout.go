package middleware

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/ehr/ordercapture/internal/platform/fhir"
)

// RequestTimeout sets a deadline on the request context. Store calls and
// connection acquisition observe it, so an overrunning handler returns with a
// context error, which is answered with 504 and an OperationOutcome.
//
// The handler runs on the calling goroutine; the echo context is never used
// after the middleware returns.
func RequestTimeout(timeout time.Duration) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			if timeout <= 0 {
				return next(c)
			}
			ctx, cancel := context.WithTimeout(c.Request().Context(), timeout)
			defer cancel()
			c.SetRequest(c.Request().WithContext(ctx))

			err := next(c)
			if err != nil && errors.Is(ctx.Err(), context.DeadlineExceeded) {
				return gatewayTimeout(c)
			}
			return err
		}
	}
}

func gatewayTimeout(c echo.Context) error {
	if c.Response().Committed {
		return nil
	}
	return c.JSON(http.StatusGatewayTimeout, fhir.NewOperationOutcome(fhir.IssueSeverityError, fhir.IssueTypeTimeout,
		"request processing exceeded the allowed time limit"))
}
