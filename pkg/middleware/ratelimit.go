package middleware

import (
	"fmt"
	"net/http"
	"time"

	"github.com/Gobusters/ectologger"
	"github.com/labstack/echo/v4"

	"github.com/trellishq/trellis/pkg/appcontext"
	"github.com/trellishq/trellis/pkg/redis"
)

// RateLimit limits requests per tenant over a sliding window. Limiter errors
// fail open: a Redis outage must not take the endpoint down with it.
func RateLimit(limiter *redis.RateLimiter, logger ectologger.Logger, limit int64, window time.Duration) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			ctx := c.Request().Context()
			tenantID := appcontext.GetTenantID(ctx)
			if tenantID == "" {
				return next(c)
			}

			result, err := limiter.Allow(ctx, tenantID, limit, window)
			if err != nil {
				logger.WithContext(ctx).WithError(err).Warn("rate limit check failed, allowing request")
				return next(c)
			}

			if !result.Allowed {
				retryAfter := int(result.RetryIn.Seconds()) + 1
				c.Response().Header().Set("Retry-After", fmt.Sprintf("%d", retryAfter))
				return echo.NewHTTPError(http.StatusTooManyRequests, "rate limit exceeded")
			}

			return next(c)
		}
	}
}
