// Package eswire holds the pure, release-independent pieces shared by the engine
// adapters: REST response shapes, error classification and request bodies.
// Nothing here performs I/O or keeps state.
package eswire

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/silbaram/elasticsearch-mcp-server/internal/domain"
)

type errorCause struct {
	Type      string       `json:"type"`
	Reason    string       `json:"reason"`
	RootCause []errorCause `json:"root_cause"`
}

type errorEnvelope struct {
	Error  json.RawMessage `json:"error"`
	Status int             `json:"status"`
}

// KindForStatus classifies an HTTP status returned by the engine.
func KindForStatus(status int) domain.Kind {
	switch {
	case status == http.StatusBadRequest:
		return domain.KindInvalidArgument
	case status == http.StatusNotFound:
		return domain.KindNotFound
	case status == http.StatusConflict:
		return domain.KindConflict
	case status == http.StatusRequestTimeout, status == http.StatusGatewayTimeout:
		return domain.KindTimeout
	case status == http.StatusUnauthorized, status == http.StatusForbidden,
		status == http.StatusTooManyRequests, status == http.StatusBadGateway,
		status == http.StatusServiceUnavailable:
		return domain.KindEngineUnavailable
	default:
		return domain.KindInternal
	}
}

// ResponseError builds the error for a non-2xx response. The message is
// "<type>: <reason>" taken from the engine's error body, or fallback when the
// body carries none.
func ResponseError(status int, body []byte, fallback string) *domain.Error {
	msg := Describe(body)
	if msg == "" {
		msg = fallback
	}
	if msg == "" {
		msg = strings.ToLower(http.StatusText(status))
	}
	return &domain.Error{
		Kind:    KindForStatus(status),
		Message: msg,
		Err:     fmt.Errorf("engine returned HTTP %d", status),
	}
}

// Describe extracts "<type>: <reason>" from an engine error body.
// It returns "" when body is not an error envelope.
func Describe(body []byte) string {
	var env errorEnvelope
	if len(body) == 0 || json.Unmarshal(body, &env) != nil || len(env.Error) == 0 {
		return ""
	}
	var cause errorCause
	if err := json.Unmarshal(env.Error, &cause); err != nil {
		// Some proxies answer with {"error": "text"}.
		var text string
		if json.Unmarshal(env.Error, &text) == nil {
			return text
		}
		return ""
	}
	return describeCause(cause)
}

func describeCause(c errorCause) string {
	if c.Type == "" && len(c.RootCause) > 0 {
		c = c.RootCause[0]
	}
	switch {
	case c.Type != "" && c.Reason != "":
		return c.Type + ": " + c.Reason
	case c.Type != "":
		return c.Type
	default:
		return c.Reason
	}
}

// TransportError classifies a failure to get any response at all.
func TransportError(err error) *domain.Error {
	var de *domain.Error
	if errors.As(err, &de) {
		return de
	}
	switch {
	case errors.Is(err, context.DeadlineExceeded):
		return domain.Wrap(domain.KindTimeout, err, "operation deadline exceeded")
	case errors.Is(err, context.Canceled):
		return domain.Wrap(domain.KindTimeout, err, "operation cancelled before completion")
	default:
		return domain.Wrap(domain.KindEngineUnavailable, err, "engine unreachable: "+firstLine(err.Error()))
	}
}

// RequestError classifies a failed request. The caller's context wins over
// whatever the client reported, because clients may hide the context error
// behind their own wrapping.
func RequestError(ctx context.Context, err error) *domain.Error {
	if ctxErr := ctx.Err(); ctxErr != nil && !errors.Is(err, ctxErr) {
		err = fmt.Errorf("%w: %v", ctxErr, err)
	}
	return TransportError(err)
}

// DecodeError reports a 2xx body that does not have the expected shape.
func DecodeError(err error, what string) *domain.Error {
	return domain.Wrap(domain.KindInternal, err, "unexpected "+what+" response from engine")
}

func firstLine(s string) string {
	if i := strings.IndexByte(s, '\n'); i >= 0 {
		return s[:i]
	}
	return s
}
