// Package gemini provides the HTTP handler for the legacy passthrough
// endpoint. Requests on the root path carry a backend-native JSON body and
// the API key as a query parameter; the body is forwarded byte for byte to
// the configured default model.
package gemini

import (
	"encoding/json"
	"io"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/mizuki-ao/geminigate/internal/api/handlers"
	"github.com/mizuki-ao/geminigate/internal/apierr"
	log "github.com/sirupsen/logrus"
)

// GeminiAPIHandler contains the handlers for the legacy passthrough endpoints.
type GeminiAPIHandler struct {
	*handlers.BaseAPIHandler
}

// NewGeminiAPIHandler creates a new passthrough handler instance.
func NewGeminiAPIHandler(apiHandler *handlers.BaseAPIHandler) *GeminiAPIHandler {
	return &GeminiAPIHandler{
		BaseAPIHandler: apiHandler,
	}
}

// GenerateContent handles POST requests on the root path. The request body is
// not inspected: whatever the caller sends goes to the backend unchanged, and
// the backend's JSON answer is re-emitted after a parse round trip with the
// backend's status code.
func (h *GeminiAPIHandler) GenerateContent(c *gin.Context) {
	apiKey := c.Query("key")
	if apiKey == "" {
		apierr.Write(c, apierr.New(apierr.KindBadRequest, "add param key to url"))
		return
	}

	rawJSON, errRead := c.GetRawData()
	if errRead != nil {
		apierr.Write(c, apierr.Wrap(apierr.KindBadRequest, "Invalid request body", errRead))
		return
	}

	resp, errSend := h.GeminiClient().GenerateContent(c.Request.Context(), h.Cfg.LegacyModel, apiKey, rawJSON)
	if errSend != nil {
		apierr.Write(c, errSend)
		return
	}

	h.relayParsedJSON(c, resp)
}

// relayParsedJSON reads the full backend response, re-serializes its JSON,
// and answers with the backend's status code. A backend answer that is not
// JSON is a gateway error rather than relayed noise.
func (h *GeminiAPIHandler) relayParsedJSON(c *gin.Context, resp *http.Response) {
	defer func() {
		if errClose := resp.Body.Close(); errClose != nil {
			log.Warnf("failed to close backend response body: %v", errClose)
		}
	}()

	bodyBytes, err := io.ReadAll(resp.Body)
	if err != nil {
		apierr.Write(c, apierr.Wrap(apierr.KindInternal, "failed to read backend response", err))
		return
	}

	var parsed any
	if err = json.Unmarshal(bodyBytes, &parsed); err != nil {
		apierr.Write(c, apierr.Wrap(apierr.KindInternal, "backend returned malformed JSON", err))
		return
	}
	out, err := json.Marshal(parsed)
	if err != nil {
		apierr.Write(c, apierr.Wrap(apierr.KindInternal, "failed to serialize backend response", err))
		return
	}

	c.Data(resp.StatusCode, "application/json", out)
}
