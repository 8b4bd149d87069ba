// Package middleware provides the gateway's HTTP middleware: request ID
// assignment and optional request/response capture for debugging.
package middleware

import (
	"bytes"
	"io"

	"github.com/gin-gonic/gin"
	"github.com/mizuki-ao/geminigate/internal/logging"
	log "github.com/sirupsen/logrus"
)

// RequestLoggingMiddleware captures complete request/response cycles through
// the provided RequestLogger. When logging is disabled the middleware is a
// pass-through with no buffering.
func RequestLoggingMiddleware(logger logging.RequestLogger) gin.HandlerFunc {
	return func(c *gin.Context) {
		if !logger.IsEnabled() {
			c.Next()
			return
		}

		requestInfo, err := captureRequestInfo(c)
		if err != nil {
			log.Warnf("request logging: failed to capture request: %v", err)
			c.Next()
			return
		}

		wrapper := NewResponseWriterWrapper(c.Writer, logger, requestInfo)
		c.Writer = wrapper

		c.Next()

		if err = wrapper.Finalize(c); err != nil {
			log.Warnf("request logging: failed to write capture file: %v", err)
		}
	}
}

// captureRequestInfo snapshots the URL, method, headers, and body of the
// incoming request. The body is restored so downstream handlers can read it.
func captureRequestInfo(c *gin.Context) (*RequestInfo, error) {
	url := c.Request.URL.Path
	if c.Request.URL.RawQuery != "" {
		url += "?" + c.Request.URL.RawQuery
	}

	var body []byte
	if c.Request.Body != nil {
		bodyBytes, err := io.ReadAll(c.Request.Body)
		if err != nil {
			return nil, err
		}
		c.Request.Body = io.NopCloser(bytes.NewBuffer(bodyBytes))
		body = bodyBytes
	}

	return &RequestInfo{
		RequestID: RequestID(c),
		URL:       url,
		Method:    c.Request.Method,
		Headers:   c.Request.Header.Clone(),
		Body:      body,
	}, nil
}
