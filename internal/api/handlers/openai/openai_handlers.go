// Package openai provides the HTTP handler for the OpenAI-compatible chat
// completions endpoint. It validates the request, resolves the API key from
// the Authorization header, translates the OpenAI payload into the backend's
// generateContent format, and relays the backend response verbatim.
package openai

import (
	"encoding/json"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/mizuki-ao/geminigate/internal/api/handlers"
	"github.com/mizuki-ao/geminigate/internal/apierr"
	"github.com/mizuki-ao/geminigate/internal/client"
	"github.com/mizuki-ao/geminigate/internal/logging"
	translator "github.com/mizuki-ao/geminigate/internal/translator/gemini/openai"
	"github.com/tidwall/gjson"
	"github.com/tidwall/sjson"
)

// bearerPrefix is the required Authorization scheme; the API key is
// everything after it.
const bearerPrefix = "Bearer "

// OpenAIAPIHandler contains the handlers for the OpenAI-compatible endpoints.
type OpenAIAPIHandler struct {
	*handlers.BaseAPIHandler
}

// NewOpenAIAPIHandler creates a new OpenAI-compatible handler instance.
func NewOpenAIAPIHandler(apiHandler *handlers.BaseAPIHandler) *OpenAIAPIHandler {
	return &OpenAIAPIHandler{
		BaseAPIHandler: apiHandler,
	}
}

// ChatCompletions handles POST requests on the chat completions path. The
// model name comes from the request body and the backend's response, success
// or error, is streamed back unchanged.
func (h *OpenAIAPIHandler) ChatCompletions(c *gin.Context) {
	apiKey, err := bearerToken(c)
	if err != nil {
		apierr.Write(c, err)
		return
	}

	rawJSON, errRead := c.GetRawData()
	if errRead != nil {
		apierr.Write(c, apierr.Wrap(apierr.KindBadRequest, "Invalid request body", errRead))
		return
	}
	if !gjson.ValidBytes(rawJSON) {
		apierr.Write(c, apierr.New(apierr.KindBadRequest, "Invalid JSON in request body"))
		return
	}

	modelName := gjson.GetBytes(rawJSON, "model").String()
	if modelName == "" {
		apierr.Write(c, apierr.New(apierr.KindBadRequest, "Missing model name in request body"))
		return
	}

	httpClient := h.HTTPClient()
	contents, hasImage, errTranslate := translator.ConvertOpenAIRequestToGemini(c.Request.Context(), rawJSON, httpClient)
	if errTranslate != nil {
		apierr.Write(c, errTranslate)
		return
	}

	payload, errBuild := buildGeminiPayload(contents, hasImage, rawJSON)
	if errBuild != nil {
		apierr.Write(c, apierr.Wrap(apierr.KindInternal, "failed to build backend request", errBuild))
		return
	}

	if h.Cfg.RequestLog {
		c.Set(logging.APIRequestKey, payload)
	}

	resp, errSend := client.NewGeminiClient(httpClient, h.Cfg).GenerateContent(c.Request.Context(), modelName, apiKey, payload)
	if errSend != nil {
		apierr.Write(c, errSend)
		return
	}

	h.RelayResponse(c, resp)
}

// bearerToken extracts the API key from the Authorization header.
func bearerToken(c *gin.Context) (string, error) {
	authHeader := c.GetHeader("Authorization")
	if !strings.HasPrefix(authHeader, bearerPrefix) {
		return "", apierr.New(apierr.KindBadRequest, "Missing or invalid Authorization header")
	}
	return strings.TrimPrefix(authHeader, bearerPrefix), nil
}

// buildGeminiPayload assembles the backend request body. A caller-supplied
// gemini_generation_config is spliced in verbatim and always wins; otherwise
// image-bearing requests get responseModalities enabling image output.
func buildGeminiPayload(contents []client.Content, hasImage bool, rawJSON []byte) ([]byte, error) {
	payload, err := json.Marshal(client.GenerateContentRequest{Contents: contents})
	if err != nil {
		return nil, err
	}

	if custom := gjson.GetBytes(rawJSON, "gemini_generation_config"); custom.Exists() {
		return sjson.SetRawBytes(payload, "generationConfig", []byte(custom.Raw))
	}
	if hasImage {
		return sjson.SetBytes(payload, "generationConfig.responseModalities", []string{"TEXT", "IMAGE"})
	}
	return payload, nil
}
