package middleware

import (
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

// RequestIDHeader is the header used to propagate request IDs.
const RequestIDHeader = "X-Request-ID"

// requestIDKey is the gin context key the request ID is stored under.
const requestIDKey = "requestID"

// RequestIDMiddleware assigns each request an ID and echoes it in the
// response. A client-provided X-Request-ID is kept so callers can correlate
// gateway logs with their own.
func RequestIDMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		requestID := c.GetHeader(RequestIDHeader)
		if requestID == "" {
			requestID = uuid.NewString()
		}
		c.Set(requestIDKey, requestID)
		c.Header(RequestIDHeader, requestID)
		c.Next()
	}
}

// RequestID returns the request's ID, or an empty string when the middleware
// did not run.
func RequestID(c *gin.Context) string {
	return c.GetString(requestIDKey)
}
