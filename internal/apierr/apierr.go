// Package apierr defines the gateway's error vocabulary and the JSON body it
// answers failures with. Every error the gateway generates itself carries a
// Kind that maps directly to an HTTP status; backend error text is classified
// by substring only as a compatibility fallback for errors that arrive untagged.
package apierr

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
)

// Kind identifies a class of gateway failure.
type Kind int

const (
	// KindInternal is the catch-all for unexpected failures.
	KindInternal Kind = iota

	// KindBadRequest covers malformed JSON, missing model names, missing
	// credentials, and malformed inline image data.
	KindBadRequest

	// KindUnauthorized marks backend rejections of the forwarded API key.
	KindUnauthorized

	// KindNotFound marks requests for paths the gateway does not serve.
	KindNotFound

	// KindMethodNotAllowed marks non-POST requests to a recognized path.
	KindMethodNotAllowed

	// KindGatewayTimeout marks upstream calls that ran out of time.
	KindGatewayTimeout
)

// HTTPStatus returns the response status code for the kind.
func (k Kind) HTTPStatus() int {
	switch k {
	case KindBadRequest:
		return http.StatusBadRequest
	case KindUnauthorized:
		return http.StatusUnauthorized
	case KindNotFound:
		return http.StatusNotFound
	case KindMethodNotAllowed:
		return http.StatusMethodNotAllowed
	case KindGatewayTimeout:
		return http.StatusGatewayTimeout
	default:
		return http.StatusInternalServerError
	}
}

// Error is a kind-tagged gateway error. Message is what the client sees;
// Err, when set, is the underlying cause and stays server-side.
type Error struct {
	Kind    Kind
	Message string
	Err     error
}

// Error implements the error interface.
func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

// Unwrap exposes the underlying cause for errors.Is and errors.As.
func (e *Error) Unwrap() error {
	return e.Err
}

// New creates a tagged error with the given client-facing message.
func New(kind Kind, message string) *Error {
	return &Error{Kind: kind, Message: message}
}

// Newf creates a tagged error with a formatted client-facing message.
func Newf(kind Kind, format string, args ...any) *Error {
	return &Error{Kind: kind, Message: fmt.Sprintf(format, args...)}
}

// Wrap tags an underlying error with a kind and a client-facing message.
func Wrap(kind Kind, message string, err error) *Error {
	return &Error{Kind: kind, Message: message, Err: err}
}

// Classify resolves an arbitrary error to a tagged one. Tagged errors pass
// through unchanged. Untagged errors fall back to transport inspection and
// to the substring rules the backend's error text has historically required:
// "API key not valid" marks a rejected key and "timed out" marks a timeout.
func Classify(err error) *Error {
	var apiErr *Error
	if errors.As(err, &apiErr) {
		return apiErr
	}

	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return Wrap(KindGatewayTimeout, "request to backend timed out", err)
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return Wrap(KindGatewayTimeout, "request to backend timed out", err)
	}

	msg := err.Error()
	switch {
	case strings.Contains(msg, "API key not valid"):
		return Wrap(KindUnauthorized, msg, err)
	case strings.Contains(msg, "timed out"):
		return Wrap(KindGatewayTimeout, msg, err)
	default:
		return Wrap(KindInternal, msg, err)
	}
}

// Response is the JSON error body shape.
type Response struct {
	Error Detail `json:"error"`
}

// Detail carries the error code and message inside a Response.
type Detail struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

// warningPrefix marks messages the gateway generated itself, as opposed to
// backend responses relayed verbatim.
const warningPrefix = "⚠️ "

// Write classifies err and answers the request with the matching status and
// JSON body. The message is prefixed with the warning marker so generated
// errors are distinguishable from relayed backend output.
func Write(c *gin.Context, err error) {
	apiErr := Classify(err)
	status := apiErr.Kind.HTTPStatus()
	c.JSON(status, Response{Error: Detail{
		Code:    status,
		Message: warningPrefix + apiErr.Message,
	}})
}
