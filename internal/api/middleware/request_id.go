package middleware

import (
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/Wikid82/wafwatch/internal/logger"
	"github.com/Wikid82/wafwatch/internal/util"
)

const (
	RequestIDKey    = "requestID"
	RequestIDHeader = "X-Request-ID"
	loggerKey       = "logger"
)

// RequestID tags each request with an id, reusing a sane incoming header,
// and stores a request-scoped logger in the context.
func RequestID(log *logrus.Logger) gin.HandlerFunc {
	base := logger.For(log, "api")
	return func(c *gin.Context) {
		rid := util.SanitizeForLog(c.GetHeader(RequestIDHeader))
		if rid == "" || len(rid) > 64 {
			rid = uuid.New().String()
		}
		c.Set(RequestIDKey, rid)
		c.Writer.Header().Set(RequestIDHeader, rid)
		c.Set(loggerKey, base.WithField("request_id", rid))
		c.Next()
	}
}

// GetRequestLogger retrieves the request-scoped logger, or a discarding one
// when RequestID did not run.
func GetRequestLogger(c *gin.Context) *logrus.Entry {
	if v, ok := c.Get(loggerKey); ok {
		if entry, ok := v.(*logrus.Entry); ok {
			return entry
		}
	}
	return logger.For(nil, "api")
}
