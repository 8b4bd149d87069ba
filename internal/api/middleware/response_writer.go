package middleware

import (
	"bytes"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/mizuki-ao/geminigate/internal/logging"
)

// maxCapturedResponseBytes caps how much of a response body is buffered for
// capture files. Relayed backend bodies can be large; the client always
// receives the full response regardless of this cap.
const maxCapturedResponseBytes = 1 << 20

// truncationMarker is appended to a capture when the buffered body hit the cap.
const truncationMarker = "\n[RESPONSE TRUNCATED]"

// RequestInfo holds the request-side data for one capture file.
type RequestInfo struct {
	RequestID string
	URL       string
	Method    string
	Headers   http.Header
	Body      []byte
}

// ResponseWriterWrapper wraps gin.ResponseWriter to capture response data for
// request logging. The client write always happens first; capture buffering
// never delays or fails the response.
type ResponseWriterWrapper struct {
	gin.ResponseWriter
	body        *bytes.Buffer
	truncated   bool
	logger      logging.RequestLogger
	requestInfo *RequestInfo
	statusCode  int
}

// NewResponseWriterWrapper creates a response writer wrapper for one request.
func NewResponseWriterWrapper(w gin.ResponseWriter, logger logging.RequestLogger, requestInfo *RequestInfo) *ResponseWriterWrapper {
	return &ResponseWriterWrapper{
		ResponseWriter: w,
		body:           &bytes.Buffer{},
		logger:         logger,
		requestInfo:    requestInfo,
	}
}

// Write forwards data to the client, then buffers a copy up to the capture cap.
func (w *ResponseWriterWrapper) Write(data []byte) (int, error) {
	n, err := w.ResponseWriter.Write(data)

	if remaining := maxCapturedResponseBytes - w.body.Len(); remaining > 0 {
		if len(data) > remaining {
			w.body.Write(data[:remaining])
			w.truncated = true
		} else {
			w.body.Write(data)
		}
	} else if len(data) > 0 {
		w.truncated = true
	}

	return n, err
}

// WriteHeader captures the status code before passing it through.
func (w *ResponseWriterWrapper) WriteHeader(statusCode int) {
	w.statusCode = statusCode
	w.ResponseWriter.WriteHeader(statusCode)
}

// Finalize writes the capture file for the completed request. The translated
// backend payload deposited by handlers under logging.APIRequestKey is
// included when present.
func (w *ResponseWriterWrapper) Finalize(c *gin.Context) error {
	if !w.logger.IsEnabled() {
		return nil
	}

	var apiRequest []byte
	if value, exists := c.Get(logging.APIRequestKey); exists {
		apiRequest, _ = value.([]byte)
	}

	body := w.body.Bytes()
	if w.truncated {
		body = append(body, truncationMarker...)
	}

	return w.logger.LogRequest(
		w.requestInfo.RequestID,
		w.requestInfo.URL,
		w.requestInfo.Method,
		w.requestInfo.Headers,
		w.requestInfo.Body,
		w.Status(),
		w.ResponseWriter.Header(),
		body,
		apiRequest,
	)
}

// Status returns the HTTP status code of the response.
func (w *ResponseWriterWrapper) Status() int {
	if w.statusCode == 0 {
		return http.StatusOK
	}
	return w.statusCode
}

// Size returns how much of the response body was captured.
func (w *ResponseWriterWrapper) Size() int {
	return w.body.Len()
}

// Written reports whether a status code has been recorded.
func (w *ResponseWriterWrapper) Written() bool {
	return w.statusCode != 0
}
