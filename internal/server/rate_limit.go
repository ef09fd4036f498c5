package server

import (
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/smallbiznis/rollcall/internal/observability/logger"
	"github.com/smallbiznis/rollcall/internal/ratelimit"
	"go.uber.org/zap"
)

const (
	HeaderRateLimitLimit     = "X-RateLimit-Limit"
	HeaderRateLimitRemaining = "X-RateLimit-Remaining"
	HeaderRateLimitReset     = "X-RateLimit-Reset"
	HeaderRetryAfter         = "Retry-After"
)

// RateLimit admits at most limit requests per window for each client IP on
// route. Denied requests abort with a *ratelimit.LimitedError.
func (s *Server) RateLimit(route string, limit int) gin.HandlerFunc {
	return func(c *gin.Context) {
		key := route + ":" + c.ClientIP()
		res := s.limiter.Consume(c.Request.Context(), key, limit)

		c.Header(HeaderRateLimitLimit, strconv.Itoa(res.Limit))
		c.Header(HeaderRateLimitRemaining, strconv.Itoa(res.Remaining))
		c.Header(HeaderRateLimitReset, strconv.FormatInt(res.ResetAt.Unix(), 10))
		s.httpMetrics.RecordRateLimit(route, res.Allowed)

		if !res.Allowed {
			retryAfter := ratelimit.RetryAfterSeconds(res.ResetAt, s.clock.Now())
			c.Header(HeaderRetryAfter, strconv.Itoa(retryAfter))
			logger.FromContext(c.Request.Context()).Warn("rate limit exceeded",
				zap.String("route", route),
				zap.Int("limit", res.Limit),
			)
			AbortWithError(c, &ratelimit.LimitedError{
				Key:        key,
				Limit:      res.Limit,
				ResetAt:    res.ResetAt,
				RetryAfter: retryAfter,
			})
			return
		}
		c.Next()
	}
}
