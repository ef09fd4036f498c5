package server

import (
	"github.com/gin-gonic/gin"
	"github.com/smallbiznis/rollcall/internal/apierror"
	"github.com/smallbiznis/rollcall/internal/observability/logger"
	"go.uber.org/zap"
)

// ErrorHandlingMiddleware writes the translated body for the last handler
// error unless a response was already written.
func ErrorHandlingMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Next()

		if c.Writer.Written() {
			return
		}

		lastErr := c.Errors.Last()
		if lastErr == nil {
			return
		}

		status, body := apierror.Translate(lastErr.Err)
		c.AbortWithStatusJSON(status, body)
	}
}

// Recovery turns a handler panic into a generic 500 body.
func Recovery() gin.HandlerFunc {
	return func(c *gin.Context) {
		defer func() {
			v := recover()
			if v == nil {
				return
			}
			logger.FromContext(c.Request.Context()).Error("panic recovered",
				zap.Any("panic", v),
				zap.Stack("stack"),
			)
			status, body := apierror.TranslatePanic(v)
			if !c.Writer.Written() {
				c.AbortWithStatusJSON(status, body)
				return
			}
			c.Abort()
		}()
		c.Next()
	}
}

func AbortWithError(c *gin.Context, err error) {
	if err == nil {
		return
	}
	_ = c.Error(err)
	c.Abort()
}
