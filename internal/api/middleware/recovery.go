package middleware

import (
	"net/http"
	"runtime/debug"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"github.com/Wikid82/wafwatch/internal/metrics"
)

// Recovery turns a handler panic into a 500 and counts it per route. A run
// trigger that panics never reaches the scheduler, so the run is not recorded.
// verbose adds the stack trace and sanitized request metadata to the log.
func Recovery(verbose bool) gin.HandlerFunc {
	return func(c *gin.Context) {
		defer func() {
			r := recover()
			if r == nil {
				return
			}
			route := c.FullPath()
			metrics.AddPanic(route)

			entry := GetRequestLogger(c).WithFields(logrus.Fields{
				"method": c.Request.Method,
				"route":  route,
			})
			if verbose {
				entry.WithFields(logrus.Fields{
					"path":    SanitizePath(c.Request.URL.Path),
					"headers": SanitizeHeaders(c.Request.Header),
				}).Errorf("PANIC: %v\nStacktrace:\n%s", r, debug.Stack())
			} else {
				entry.Errorf("PANIC: %v", r)
			}
			c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "internal server error"})
		}()
		c.Next()
	}
}
