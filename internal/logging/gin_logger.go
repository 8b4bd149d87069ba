package logging

import (
	"fmt"
	"net/http"
	"runtime/debug"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/mizuki-ao/geminigate/internal/apierr"
	log "github.com/sirupsen/logrus"
)

// GinLogrusLogger writes one access log line per request through logrus. The
// line ends with the request ID assigned upstream in the middleware chain, so
// access logs can be matched to request capture files.
func GinLogrusLogger() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()

		c.Next()

		target := c.Request.URL.Path
		if query := c.Request.URL.RawQuery; query != "" {
			target += "?" + query
		}

		status := c.Writer.Status()
		line := fmt.Sprintf("[GIN] %s | %3d | %13v | %15s | %-7s %q",
			time.Now().Format("2006/01/02 - 15:04:05"),
			status,
			roundLatency(time.Since(start)),
			c.ClientIP(),
			c.Request.Method,
			target,
		)
		if requestID := c.Writer.Header().Get("X-Request-ID"); requestID != "" {
			line += " | " + requestID
		}
		if ginErrors := c.Errors.ByType(gin.ErrorTypePrivate).String(); ginErrors != "" {
			line += " | " + ginErrors
		}

		logAtStatusLevel(status, line)
	}
}

// roundLatency trims latency noise: sub-minute requests keep millisecond
// precision, anything slower reads in whole seconds.
func roundLatency(latency time.Duration) time.Duration {
	if latency > time.Minute {
		return latency.Truncate(time.Second)
	}
	return latency.Truncate(time.Millisecond)
}

// logAtStatusLevel picks the log level from the response status: server
// errors log as errors, client errors as warnings, the rest as info.
func logAtStatusLevel(status int, line string) {
	switch {
	case status >= http.StatusInternalServerError:
		log.Error(line)
	case status >= http.StatusBadRequest:
		log.Warn(line)
	default:
		log.Info(line)
	}
}

// GinLogrusRecovery returns a gin middleware that recovers from panics, logs
// them with a stack trace, and answers with the gateway's JSON error body.
func GinLogrusRecovery() gin.HandlerFunc {
	return gin.CustomRecovery(func(c *gin.Context, recovered interface{}) {
		log.WithFields(log.Fields{
			"panic": recovered,
			"stack": string(debug.Stack()),
			"path":  c.Request.URL.Path,
		}).Error("recovered from panic")

		apierr.Write(c, apierr.Wrap(apierr.KindInternal, "internal server error", fmt.Errorf("%v", recovered)))
		c.Abort()
	})
}
