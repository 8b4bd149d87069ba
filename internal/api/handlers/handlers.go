// Package handlers provides core API handler functionality for the gateway.
// It holds the shared configuration state, builds the per-request backend
// clients, and relays backend responses to API clients without buffering.
package handlers

import (
	"io"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/mizuki-ao/geminigate/internal/client"
	"github.com/mizuki-ao/geminigate/internal/config"
	"github.com/mizuki-ao/geminigate/internal/util"
	log "github.com/sirupsen/logrus"
)

// relayBufferSize is the chunk size for streaming backend responses through.
const relayBufferSize = 32 * 1024

// BaseAPIHandler contains the state shared by all endpoint handlers.
type BaseAPIHandler struct {
	// Cfg holds the current application configuration.
	Cfg *config.Config
}

// NewBaseAPIHandler creates the shared handler state.
//
// Parameters:
//   - cfg: The application configuration
//
// Returns:
//   - *BaseAPIHandler: A new base handler instance
func NewBaseAPIHandler(cfg *config.Config) *BaseAPIHandler {
	return &BaseAPIHandler{Cfg: cfg}
}

// UpdateConfig swaps in a new configuration. This method is called when the
// configuration file changes on disk.
func (h *BaseAPIHandler) UpdateConfig(cfg *config.Config) {
	h.Cfg = cfg
}

// HTTPClient builds the outbound HTTP client for one request cycle, carrying
// the configured timeout and proxy.
func (h *BaseAPIHandler) HTTPClient() *http.Client {
	return util.NewHTTPClient(h.Cfg)
}

// GeminiClient builds a backend client for one request cycle.
func (h *BaseAPIHandler) GeminiClient() *client.GeminiClient {
	return client.NewGeminiClient(h.HTTPClient(), h.Cfg)
}

// RelayResponse copies the backend response to the API client: same status
// code, same Content-Type, body streamed through chunk by chunk with a flush
// after each chunk so streaming backends reach the client promptly. The
// backend body is closed on all exit paths.
func (h *BaseAPIHandler) RelayResponse(c *gin.Context, resp *http.Response) {
	defer func() {
		if errClose := resp.Body.Close(); errClose != nil {
			log.Warnf("failed to close backend response body: %v", errClose)
		}
	}()

	if contentType := resp.Header.Get("Content-Type"); contentType != "" {
		c.Header("Content-Type", contentType)
	}
	c.Status(resp.StatusCode)

	buf := make([]byte, relayBufferSize)
	for {
		n, err := resp.Body.Read(buf)
		if n > 0 {
			if _, errWrite := c.Writer.Write(buf[:n]); errWrite != nil {
				log.Debugf("client went away during relay: %v", errWrite)
				return
			}
			c.Writer.Flush()
		}
		if err != nil {
			if err != io.EOF {
				log.Warnf("backend stream ended with error: %v", err)
			}
			return
		}
	}
}
