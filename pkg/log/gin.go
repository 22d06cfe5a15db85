package log

import (
	"time"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
)

// GinMiddleware attaches a request-scoped logger (request id, method, path,
// client ip) to the request context, echoes X-Request-ID, and logs the
// finished request. Handlers may c.Set FieldObjectID or FieldUpstreamStatus
// to have them included in the completion line.
func GinMiddleware(logger zerolog.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		reqID := requestID(c.GetHeader(headerRequestID))

		child := logger.With().
			Str(FieldRequestID, reqID).
			Str(FieldMethod, c.Request.Method).
			Str(FieldPath, c.Request.URL.Path).
			Str(FieldClientIP, c.ClientIP()).
			Logger()

		c.Header(headerRequestID, reqID)
		c.Request = c.Request.WithContext(WithLogger(c.Request.Context(), child))

		c.Next()

		status := c.Writer.Status()
		evt := levelFor(&child, status).
			Int(FieldStatus, status).
			Int(FieldBytes, c.Writer.Size()).
			Float64(FieldLatency, float64(time.Since(start).Milliseconds()))

		if id, ok := c.Get(FieldObjectID); ok {
			if s, ok := id.(string); ok {
				evt = evt.Str(FieldObjectID, s)
			}
		}
		if us, ok := c.Get(FieldUpstreamStatus); ok {
			if n, ok := us.(int); ok {
				evt = evt.Int(FieldUpstreamStatus, n)
			}
		}

		evt.Msg("request completed")
	}
}
