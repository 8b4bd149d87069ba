package apierr

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMain(m *testing.M) {
	gin.SetMode(gin.TestMode)
	m.Run()
}

func TestKindHTTPStatus(t *testing.T) {
	cases := []struct {
		kind   Kind
		status int
	}{
		{KindInternal, http.StatusInternalServerError},
		{KindBadRequest, http.StatusBadRequest},
		{KindUnauthorized, http.StatusUnauthorized},
		{KindNotFound, http.StatusNotFound},
		{KindMethodNotAllowed, http.StatusMethodNotAllowed},
		{KindGatewayTimeout, http.StatusGatewayTimeout},
	}
	for _, tc := range cases {
		assert.Equal(t, tc.status, tc.kind.HTTPStatus())
	}
}

func TestErrorMessage(t *testing.T) {
	assert.Equal(t, "boom", New(KindInternal, "boom").Error())

	wrapped := Wrap(KindBadRequest, "bad payload", errors.New("eof"))
	assert.Equal(t, "bad payload: eof", wrapped.Error())
	assert.EqualError(t, errors.Unwrap(wrapped), "eof")
}

func TestClassifyTaggedPassthrough(t *testing.T) {
	tagged := New(KindBadRequest, "add param key to url")
	got := Classify(fmt.Errorf("handler: %w", tagged))
	assert.Same(t, tagged, got)
}

type timeoutErr struct{}

func (timeoutErr) Error() string   { return "dial tcp: i/o timeout" }
func (timeoutErr) Timeout() bool   { return true }
func (timeoutErr) Temporary() bool { return false }

func TestClassifyUntagged(t *testing.T) {
	cases := []struct {
		name string
		err  error
		kind Kind
	}{
		{"key rejected", errors.New("API key not valid. Please pass a valid API key."), KindUnauthorized},
		{"timeout text", errors.New("request timed out"), KindGatewayTimeout},
		{"net timeout", timeoutErr{}, KindGatewayTimeout},
		{"deadline", fmt.Errorf("backend: %w", context.DeadlineExceeded), KindGatewayTimeout},
		{"unknown", errors.New("connection refused"), KindInternal},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got := Classify(tc.err)
			assert.Equal(t, tc.kind, got.Kind)
		})
	}
}

func TestWrite(t *testing.T) {
	rec := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(rec)
	c.Request = httptest.NewRequest(http.MethodPost, "/", nil)

	Write(c, New(KindBadRequest, "add param key to url"))

	require.Equal(t, http.StatusBadRequest, rec.Code)
	assert.JSONEq(t, `{"error":{"code":400,"message":"⚠️ add param key to url"}}`, rec.Body.String())
}

func TestWriteClassifiesUntagged(t *testing.T) {
	rec := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(rec)
	c.Request = httptest.NewRequest(http.MethodPost, "/", nil)

	Write(c, errors.New("API key not valid"))

	require.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Contains(t, rec.Body.String(), "API key not valid")
}
