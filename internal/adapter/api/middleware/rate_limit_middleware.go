package middleware

import (
	"fmt"
	"strconv"

	"github.com/labstack/echo/v4"

	"kowa/internal/usecase"
	"kowa/pkg/errors"
	"kowa/pkg/logger"
	"kowa/pkg/response"
)

// RateLimit throttles a route per authenticated user, falling back to the
// client IP before authentication has run.
func RateLimit(limiter usecase.RateLimiter, action string) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			if limiter == nil {
				return next(c)
			}

			key, _ := c.Get(ContextUserID).(string)
			if key == "" {
				key = "ip:" + c.RealIP()
			}

			if ok, wait := limiter.Allow(key, action); !ok {
				retry := int(wait.Seconds()) + 1
				logger.Warn("RATE LIMIT: %s blocked on %s (retry in %ds)", key, action, retry)
				c.Response().Header().Set("Retry-After", strconv.Itoa(retry))
				return response.Error(c, errors.TooManyRequests(fmt.Sprintf("Rate limit exceeded, retry in %d seconds", retry)))
			}
			return next(c)
		}
	}
}
