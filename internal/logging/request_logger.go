package logging

import (
	"fmt"
	"net/http"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"sync/atomic"
	"time"
)

// APIRequestKey is the gin context key under which handlers deposit the
// translated backend payload so it appears in request capture files.
const APIRequestKey = "API_REQUEST"

var (
	unsafeFilenameChars = regexp.MustCompile(`[<>:"|?*\s]`)
	repeatedHyphens     = regexp.MustCompile(`-+`)
)

// RequestLogger captures complete request/response cycles for debugging.
type RequestLogger interface {
	// LogRequest writes one request/response cycle. apiRequest is the payload
	// forwarded to the backend, when it differs from the client body.
	LogRequest(requestID, url, method string, requestHeaders http.Header, body []byte, status int, responseHeaders http.Header, response, apiRequest []byte) error

	// IsEnabled returns whether request logging is currently enabled.
	IsEnabled() bool
}

// FileRequestLogger implements RequestLogger with one file per request. It can
// be toggled at runtime when the configuration is reloaded.
type FileRequestLogger struct {
	enabled atomic.Bool
	logsDir string
}

// NewFileRequestLogger creates a file-based request logger writing to logsDir.
func NewFileRequestLogger(enabled bool, logsDir string) *FileRequestLogger {
	l := &FileRequestLogger{logsDir: logsDir}
	l.enabled.Store(enabled)
	return l
}

// IsEnabled returns whether request logging is currently enabled.
func (l *FileRequestLogger) IsEnabled() bool {
	return l.enabled.Load()
}

// SetEnabled toggles request logging without recreating the logger.
func (l *FileRequestLogger) SetEnabled(enabled bool) {
	l.enabled.Store(enabled)
}

// LogRequest writes one request/response cycle to its own capture file.
func (l *FileRequestLogger) LogRequest(requestID, url, method string, requestHeaders http.Header, body []byte, status int, responseHeaders http.Header, response, apiRequest []byte) error {
	if !l.IsEnabled() {
		return nil
	}

	if err := os.MkdirAll(l.logsDir, 0o755); err != nil {
		return fmt.Errorf("failed to create logs directory: %w", err)
	}

	filePath := filepath.Join(l.logsDir, l.generateFilename(url, requestID))
	content := l.formatLogContent(requestID, url, method, requestHeaders, body, apiRequest, status, responseHeaders, response)

	if err := os.WriteFile(filePath, []byte(content), 0o644); err != nil {
		return fmt.Errorf("failed to write log file: %w", err)
	}
	return nil
}

// generateFilename builds a capture filename from the sanitized URL path and
// the request ID, so a capture file can be matched to access log entries.
func (l *FileRequestLogger) generateFilename(url, requestID string) string {
	path := url
	if idx := strings.Index(path, "?"); idx >= 0 {
		path = path[:idx]
	}
	path = strings.TrimPrefix(path, "/")

	if requestID == "" {
		requestID = fmt.Sprintf("%d", time.Now().UnixNano())
	}
	return fmt.Sprintf("%s-%s.log", sanitizeForFilename(path), requestID)
}

// sanitizeForFilename replaces characters that are not safe for filenames.
func sanitizeForFilename(path string) string {
	sanitized := strings.ReplaceAll(path, "/", "-")
	sanitized = strings.ReplaceAll(sanitized, ":", "-")
	sanitized = unsafeFilenameChars.ReplaceAllString(sanitized, "-")
	sanitized = repeatedHyphens.ReplaceAllString(sanitized, "-")
	sanitized = strings.Trim(sanitized, "-")
	if sanitized == "" {
		sanitized = "root"
	}
	return sanitized
}

// formatLogContent renders the capture file sections.
func (l *FileRequestLogger) formatLogContent(requestID, url, method string, headers http.Header, body, apiRequest []byte, status int, responseHeaders http.Header, response []byte) string {
	var content strings.Builder

	content.WriteString("=== REQUEST INFO ===\n")
	content.WriteString(fmt.Sprintf("URL: %s\n", url))
	content.WriteString(fmt.Sprintf("Method: %s\n", method))
	content.WriteString(fmt.Sprintf("Request ID: %s\n", requestID))
	content.WriteString(fmt.Sprintf("Timestamp: %s\n", time.Now().Format(time.RFC3339Nano)))
	content.WriteString("\n")

	content.WriteString("=== HEADERS ===\n")
	writeHeaders(&content, headers)
	content.WriteString("\n")

	content.WriteString("=== REQUEST BODY ===\n")
	content.Write(body)
	content.WriteString("\n\n")

	if len(apiRequest) > 0 {
		content.WriteString("=== API REQUEST ===\n")
		content.Write(apiRequest)
		content.WriteString("\n\n")
	}

	content.WriteString("=== RESPONSE ===\n")
	content.WriteString(fmt.Sprintf("Status: %d\n", status))
	writeHeaders(&content, responseHeaders)
	content.WriteString("\n")
	content.Write(response)
	content.WriteString("\n")

	return content.String()
}

func writeHeaders(content *strings.Builder, headers http.Header) {
	for key, values := range headers {
		for _, value := range values {
			content.WriteString(fmt.Sprintf("%s: %s\n", key, value))
		}
	}
}
