package api

import (
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/mizuki-ao/geminigate/internal/apierr"
	"github.com/mizuki-ao/geminigate/internal/config"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tidwall/gjson"
)

func TestMain(m *testing.M) {
	gin.SetMode(gin.TestMode)
	os.Exit(m.Run())
}

// capturedRequest records what the fake backend received.
type capturedRequest struct {
	method string
	path   string
	query  string
	body   []byte
}

func newBackend(t *testing.T, status int, response string) (*httptest.Server, *capturedRequest) {
	t.Helper()
	captured := &capturedRequest{}
	backend := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		captured.method = r.Method
		captured.path = r.URL.Path
		captured.query = r.URL.RawQuery
		captured.body, _ = io.ReadAll(r.Body)
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		w.Write([]byte(response))
	}))
	t.Cleanup(backend.Close)
	return backend, captured
}

func newTestServer(backendURL string) *Server {
	cfg := config.Default()
	cfg.BaseURL = backendURL
	cfg.LegacyModel = "test-model"
	return NewServer(cfg)
}

func serve(s *Server, req *http.Request) *httptest.ResponseRecorder {
	rec := httptest.NewRecorder()
	s.engine.ServeHTTP(rec, req)
	return rec
}

func errorMessage(t *testing.T, body []byte) string {
	t.Helper()
	var resp apierr.Response
	require.NoError(t, json.Unmarshal(body, &resp))
	return resp.Error.Message
}

func TestOptionsAlwaysNoContent(t *testing.T) {
	s := newTestServer("http://unused.invalid")
	for _, path := range []string{"/", "/v1/chat/completions", "/some/other/path"} {
		t.Run(path, func(t *testing.T) {
			rec := serve(s, httptest.NewRequest(http.MethodOptions, path, nil))
			assert.Equal(t, http.StatusNoContent, rec.Code)
			assert.Empty(t, rec.Body.String())
			assert.Equal(t, "*", rec.Header().Get("Access-Control-Allow-Origin"))
			assert.Equal(t, "POST, GET, OPTIONS", rec.Header().Get("Access-Control-Allow-Methods"))
			assert.Equal(t, "Content-Type, Authorization", rec.Header().Get("Access-Control-Allow-Headers"))
		})
	}
}

func TestUnknownPathNotFound(t *testing.T) {
	s := newTestServer("http://unused.invalid")
	for _, req := range []*http.Request{
		httptest.NewRequest(http.MethodPost, "/nope", nil),
		httptest.NewRequest(http.MethodGet, "/favicon.ico", nil),
		httptest.NewRequest(http.MethodGet, "/v1/models", nil),
	} {
		rec := serve(s, req)
		assert.Equal(t, http.StatusNotFound, rec.Code)
		assert.JSONEq(t, `{"error":{"code":404,"message":"Unknown path!"}}`, rec.Body.String())
	}
}

func TestMethodNotAllowed(t *testing.T) {
	s := newTestServer("http://unused.invalid")
	for _, req := range []*http.Request{
		httptest.NewRequest(http.MethodGet, "/", nil),
		httptest.NewRequest(http.MethodDelete, "/", nil),
		httptest.NewRequest(http.MethodGet, "/v1/chat/completions", nil),
		httptest.NewRequest(http.MethodPut, "/v1/chat/completions/extra", nil),
	} {
		rec := serve(s, req)
		assert.Equal(t, http.StatusMethodNotAllowed, rec.Code, "%s %s", req.Method, req.URL.Path)
	}
}

func TestCORSHeadersOnEveryResponse(t *testing.T) {
	s := newTestServer("http://unused.invalid")
	rec := serve(s, httptest.NewRequest(http.MethodGet, "/nope", nil))
	assert.Equal(t, "*", rec.Header().Get("Access-Control-Allow-Origin"))
}

func TestLegacyMissingKey(t *testing.T) {
	s := newTestServer("http://unused.invalid")
	rec := serve(s, httptest.NewRequest(http.MethodPost, "/", strings.NewReader(`{}`)))

	require.Equal(t, http.StatusBadRequest, rec.Code)
	msg := errorMessage(t, rec.Body.Bytes())
	assert.Contains(t, msg, "add param key to url")
	assert.True(t, strings.HasPrefix(msg, "⚠️ "), "generated errors begin with the warning marker")
}

func TestLegacyForwardsBodyByteForByte(t *testing.T) {
	backendBody := `{"candidates":[{"content":{"parts":[{"text":"hello"}]}}]}`
	backend, captured := newBackend(t, http.StatusOK, backendBody)
	s := newTestServer(backend.URL)

	raw := `{"contents":[{"role":"user","parts":[{"text":"hi"}]}] }`
	rec := serve(s, httptest.NewRequest(http.MethodPost, "/?key=legacy-secret", strings.NewReader(raw)))

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, http.MethodPost, captured.method)
	assert.Equal(t, "/test-model:generateContent", captured.path)
	assert.Equal(t, "key=legacy-secret", captured.query)
	assert.Equal(t, raw, string(captured.body), "legacy body is forwarded unmodified")
	assert.JSONEq(t, backendBody, rec.Body.String())
	assert.Contains(t, rec.Header().Get("Content-Type"), "application/json")
}

func TestLegacyRelaysBackendStatus(t *testing.T) {
	backendBody := `{"error":{"code":400,"message":"bad contents"}}`
	backend, _ := newBackend(t, http.StatusBadRequest, backendBody)
	s := newTestServer(backend.URL)

	rec := serve(s, httptest.NewRequest(http.MethodPost, "/?key=k", strings.NewReader(`{}`)))

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.JSONEq(t, backendBody, rec.Body.String())
}

func TestOpenAIMissingAuthorization(t *testing.T) {
	s := newTestServer("http://unused.invalid")
	cases := []struct {
		name  string
		value string
	}{
		{"absent", ""},
		{"wrong scheme", "Basic dXNlcjpwYXNz"},
		{"lowercase bearer", "bearer sk-123"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodPost, "/v1/chat/completions", strings.NewReader(`{}`))
			if tc.value != "" {
				req.Header.Set("Authorization", tc.value)
			}
			rec := serve(s, req)
			require.Equal(t, http.StatusBadRequest, rec.Code)
			assert.Contains(t, errorMessage(t, rec.Body.Bytes()), "Missing or invalid Authorization header")
		})
	}
}

func openAIRequest(body string) *http.Request {
	req := httptest.NewRequest(http.MethodPost, "/v1/chat/completions", strings.NewReader(body))
	req.Header.Set("Authorization", "Bearer sk-test")
	req.Header.Set("Content-Type", "application/json")
	return req
}

func TestOpenAIInvalidJSON(t *testing.T) {
	s := newTestServer("http://unused.invalid")
	rec := serve(s, openAIRequest(`{"model":`))
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestOpenAIMissingModel(t *testing.T) {
	s := newTestServer("http://unused.invalid")
	rec := serve(s, openAIRequest(`{"messages":[{"role":"user","content":"hi"}]}`))
	require.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, errorMessage(t, rec.Body.Bytes()), "model")
}

func TestOpenAITranslatesAndForwards(t *testing.T) {
	backendBody := `{"candidates":[]}`
	backend, captured := newBackend(t, http.StatusOK, backendBody)
	s := newTestServer(backend.URL)

	body := `{"model":"gemini-2.5-pro","messages":[
		{"role":"user","content":"hi"},
		{"role":"assistant","content":"hello"}
	]}`
	rec := serve(s, openAIRequest(body))

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "/gemini-2.5-pro:generateContent", captured.path)
	assert.Equal(t, "key=sk-test", captured.query)
	assert.JSONEq(t, backendBody, rec.Body.String())

	forwarded := gjson.ParseBytes(captured.body)
	contents := forwarded.Get("contents").Array()
	require.Len(t, contents, 2)
	assert.Equal(t, "user", contents[0].Get("role").String())
	assert.Equal(t, "hi", contents[0].Get("parts.0.text").String())
	assert.Equal(t, "model", contents[1].Get("role").String())
	assert.Equal(t, "hello", contents[1].Get("parts.0.text").String())
	assert.False(t, forwarded.Get("generationConfig").Exists())
}

func TestOpenAIImageEnablesResponseModalities(t *testing.T) {
	backend, captured := newBackend(t, http.StatusOK, `{}`)
	s := newTestServer(backend.URL)

	body := `{"model":"m","messages":[{"role":"user","content":"#image#split#data:image/png;base64,AAAA#split#caption"}]}`
	rec := serve(s, openAIRequest(body))
	require.Equal(t, http.StatusOK, rec.Code)

	forwarded := gjson.ParseBytes(captured.body)
	assert.Equal(t, "caption", forwarded.Get("contents.0.parts.0.text").String())
	assert.Equal(t, "image/png", forwarded.Get("contents.0.parts.1.inlineData.mimeType").String())
	assert.Equal(t, "AAAA", forwarded.Get("contents.0.parts.1.inlineData.data").String())

	var modalities []string
	for _, m := range forwarded.Get("generationConfig.responseModalities").Array() {
		modalities = append(modalities, m.String())
	}
	assert.Equal(t, []string{"TEXT", "IMAGE"}, modalities)
}

func TestOpenAICallerGenerationConfigWins(t *testing.T) {
	backend, captured := newBackend(t, http.StatusOK, `{}`)
	s := newTestServer(backend.URL)

	body := `{"model":"m",
		"gemini_generation_config":{"temperature":0.5,"maxOutputTokens":100},
		"messages":[{"role":"user","content":"#image#split#data:image/png;base64,AAAA#split#x"}]}`
	rec := serve(s, openAIRequest(body))
	require.Equal(t, http.StatusOK, rec.Code)

	forwarded := gjson.ParseBytes(captured.body)
	assert.JSONEq(t, `{"temperature":0.5,"maxOutputTokens":100}`, forwarded.Get("generationConfig").Raw)
	assert.False(t, forwarded.Get("generationConfig.responseModalities").Exists(),
		"caller config replaces the auto-derived modalities")
}

func TestOpenAIGenerationConfigIncludedWithoutImages(t *testing.T) {
	backend, captured := newBackend(t, http.StatusOK, `{}`)
	s := newTestServer(backend.URL)

	body := `{"model":"m","gemini_generation_config":{"topK":3},"messages":[{"role":"user","content":"hi"}]}`
	rec := serve(s, openAIRequest(body))
	require.Equal(t, http.StatusOK, rec.Code)

	assert.JSONEq(t, `{"topK":3}`, gjson.GetBytes(captured.body, "generationConfig").Raw)
}

func TestOpenAIMalformedInlineImage(t *testing.T) {
	s := newTestServer("http://unused.invalid")
	body := `{"model":"m","messages":[{"role":"user","content":"#image#split#data:image/png;base64#split#x"}]}`
	rec := serve(s, openAIRequest(body))

	require.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, errorMessage(t, rec.Body.Bytes()), "Invalid base64 image format")
}

func TestOpenAIBackendErrorRelayedVerbatim(t *testing.T) {
	backendBody := `{"error":{"code":429,"message":"Resource has been exhausted","status":"RESOURCE_EXHAUSTED"}}`
	backend, _ := newBackend(t, http.StatusTooManyRequests, backendBody)
	s := newTestServer(backend.URL)

	rec := serve(s, openAIRequest(`{"model":"m","messages":[{"role":"user","content":"hi"}]}`))

	assert.Equal(t, http.StatusTooManyRequests, rec.Code)
	assert.Equal(t, backendBody, rec.Body.String(), "backend errors pass through without the warning marker")
}

func TestOpenAIPrefixPathsDispatch(t *testing.T) {
	backend, captured := newBackend(t, http.StatusOK, `{}`)
	s := newTestServer(backend.URL)

	req := httptest.NewRequest(http.MethodPost, "/v1/chat/completions/extra?x=1", strings.NewReader(`{"model":"m","messages":[]}`))
	req.Header.Set("Authorization", "Bearer sk-test")
	rec := serve(s, req)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "/m:generateContent", captured.path)
}

func TestUpdateConfig(t *testing.T) {
	s := newTestServer("http://unused.invalid")
	require.False(t, s.requestLogger.IsEnabled())

	cfg := config.Default()
	cfg.BaseURL = "http://elsewhere.invalid"
	cfg.RequestLog = true
	s.UpdateConfig(cfg)

	assert.True(t, s.requestLogger.IsEnabled())
	assert.Same(t, cfg, s.handlers.Cfg)
}
