package services

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"unicode/utf8"
)

const maxErrorBody = 512

// StatusError reports a non-2xx response from a backend.
type StatusError struct {
	StatusCode int
	Body       string
}

func (e *StatusError) Error() string {
	body := strings.TrimSpace(e.Body)
	if body == "" {
		return fmt.Sprintf("http %d", e.StatusCode)
	}
	return fmt.Sprintf("http %d: %s", e.StatusCode, body)
}

// PostJSON sends payload to baseURL joined with path and decodes the JSON
// response into out (which may be nil). Transport failures and 5xx responses
// are tagged ErrUnavailable, deadline expiry ErrTimeout, 4xx responses and
// undecodable bodies ErrProtocol. The request is issued once; none of the
// backend operations are idempotent.
func PostJSON(ctx context.Context, client *http.Client, service, baseURL, path string, payload, out any) error {
	operation := "POST " + path
	endpoint, err := url.JoinPath(baseURL, path)
	if err != nil {
		return Wrap(ErrConfiguration, service, operation, "build url", err)
	}
	encoded, err := json.Marshal(payload)
	if err != nil {
		return Wrap(ErrValidation, service, operation, "encode body", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(encoded))
	if err != nil {
		return Wrap(ErrConfiguration, service, operation, "new request", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	if id, ok := RequestIDFromContext(ctx); ok {
		req.Header.Set("X-Request-ID", id)
	}

	if client == nil {
		client = http.DefaultClient
	}
	resp, err := client.Do(req)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			return Wrap(ErrTimeout, service, operation, "request timed out", err)
		}
		return Wrap(ErrUnavailable, service, operation, "request failed", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return Wrap(ErrUnavailable, service, operation, "read body", err)
	}
	if resp.StatusCode >= http.StatusMultipleChoices {
		statusErr := &StatusError{StatusCode: resp.StatusCode, Body: truncateBody(body, maxErrorBody)}
		if resp.StatusCode >= http.StatusInternalServerError {
			return Wrap(ErrUnavailable, service, operation, "backend error", statusErr)
		}
		return Wrap(ErrProtocol, service, operation, "request rejected", statusErr)
	}
	if out == nil {
		return nil
	}
	if len(bytes.TrimSpace(body)) == 0 {
		return Wrap(ErrProtocol, service, operation, "empty response body", nil)
	}
	if err := json.Unmarshal(body, out); err != nil {
		return Wrap(ErrProtocol, service, operation, "decode response", err)
	}
	return nil
}

// truncateBody cuts body to at most limit bytes without splitting a rune.
func truncateBody(body []byte, limit int) string {
	if len(body) > limit {
		cut := limit
		for cut > 0 && !utf8.RuneStart(body[cut]) {
			cut--
		}
		body = body[:cut]
	}
	return strings.ToValidUTF8(string(body), "\uFFFD")
}
