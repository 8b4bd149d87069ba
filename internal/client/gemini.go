// Package client implements the HTTP client for the Gemini generateContent
// API. It builds the backend URL from the configured base, attaches the
// caller's API key, and hands the raw response back so the caller can relay
// status and body unchanged.
package client

import (
	"bytes"
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strings"

	"github.com/mizuki-ao/geminigate/internal/config"
	"github.com/mizuki-ao/geminigate/internal/util"
	log "github.com/sirupsen/logrus"
)

// GeminiClient sends generateContent requests to the configured backend.
type GeminiClient struct {
	cfg        *config.Config
	httpClient *http.Client
}

// NewGeminiClient creates a client for the backend named in the configuration.
//
// Parameters:
//   - httpClient: The HTTP client to use for requests.
//   - cfg: The application configuration.
//
// Returns:
//   - *GeminiClient: A new Gemini client instance.
func NewGeminiClient(httpClient *http.Client, cfg *config.Config) *GeminiClient {
	return &GeminiClient{
		cfg:        cfg,
		httpClient: httpClient,
	}
}

// generateContentURL builds the full request URL for a model and API key.
func (c *GeminiClient) generateContentURL(modelName, apiKey string) string {
	base := strings.TrimSuffix(c.cfg.BaseURL, "/")
	return fmt.Sprintf("%s/%s:generateContent?key=%s", base, modelName, url.QueryEscape(apiKey))
}

// GenerateContent POSTs the given JSON body to the backend for the named
// model. The response is returned for any backend status code, including
// 4xx and 5xx, so the caller can relay it verbatim; only request construction
// and transport failures come back as errors. The caller owns the response
// body and must close it.
//
// Parameters:
//   - ctx: The context for the request.
//   - modelName: The name of the model to use.
//   - apiKey: The API key forwarded to the backend.
//   - body: The JSON request body.
//
// Returns:
//   - *http.Response: The backend response.
//   - error: An error if the request could not be sent.
func (c *GeminiClient) GenerateContent(ctx context.Context, modelName, apiKey string, body []byte) (*http.Response, error) {
	requestURL := c.generateContentURL(modelName, apiKey)

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, requestURL, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	log.Debugf("forwarding to model %s with key %s", modelName, util.HideAPIKey(apiKey))

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to execute request: %w", err)
	}
	return resp, nil
}
