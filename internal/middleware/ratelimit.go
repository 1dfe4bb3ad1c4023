package middleware

import (
	"context"
	"net"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/mfreitas/stockholder-portal/internal/logger"
)

// Limiter is the slice of the auth service the rate-limit middleware needs.
type Limiter interface {
	CheckRate(ctx context.Context, origin string, maxAttempts int, window time.Duration) (limited bool, count int, err error)
	RecordAttempt(ctx context.Context, origin string) error
}

// RateLimit returns per-route middleware enforcing a sliding-window attempt
// budget per network origin. The window lives in the database, so the limit
// holds across worker processes. The check runs before the handler; the
// attempt is then recorded whether or not the request was limited, which
// keeps the window hot while an origin hammers a limited route.
//
// The limit is advisory: concurrent requests may both pass a boundary check.
// A store failure is not advisory — it aborts the request rather than waving
// it through.
func RateLimit(l Limiter, maxAttempts int, window time.Duration) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			origin := RequestOrigin(c)
			ctx := c.Request().Context()

			limited, count, err := l.CheckRate(ctx, origin, maxAttempts, window)
			if err != nil {
				return echo.NewHTTPError(http.StatusInternalServerError, "rate check failed")
			}
			if err := l.RecordAttempt(ctx, origin); err != nil {
				return echo.NewHTTPError(http.StatusInternalServerError, "rate check failed")
			}
			if limited {
				minutes := int(window / time.Minute)
				logger.S().Warnw("rate limit exceeded",
					"origin", origin, "attempts", count, "route", c.Path())
				return c.JSON(http.StatusTooManyRequests, echo.Map{
					"error":               "too_many_requests",
					"message":             "Too many attempts. Please try again later.",
					"retry_after_minutes": minutes,
				})
			}
			return next(c)
		}
	}
}

// RequestOrigin returns the direct connection address. The limiter keys on
// this rather than X-Forwarded-For so a client cannot spoof its way out of
// the window.
func RequestOrigin(c echo.Context) string {
	host, _, err := net.SplitHostPort(c.Request().RemoteAddr)
	if err != nil || host == "" {
		return c.Request().RemoteAddr
	}
	return host
}
