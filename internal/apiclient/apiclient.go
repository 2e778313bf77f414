// Package apiclient is the one call shape for JSON-over-HTTP round trips:
// method, path, optional body in; parsed JSON or a classified error out.
// It deliberately does no retrying, backoff or idempotency bookkeeping;
// every call is fire-once.
package apiclient

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime"
	"net/http"
	"net/http/cookiejar"
	"strings"
	"time"
)

// StatusError is any non-2xx response. Callers branch on Code (e.g. 401
// means unauthenticated).
type StatusError struct {
	Code    int
	Message string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("%d: %s", e.Code, e.Message)
}

// Options tunes one request.
type Options struct {
	// On401ReturnNil makes a 401 resolve to (nil, nil) instead of a
	// StatusError, for callers that render an unauthenticated state.
	On401ReturnNil bool
	Header         http.Header
}

type Client struct {
	BaseURL string
	HTTP    *http.Client
}

// New builds a client with a cookie jar so session cookies set by the server
// ride along on subsequent calls.
func New(baseURL string) *Client {
	jar, _ := cookiejar.New(nil)
	return &Client{
		BaseURL: strings.TrimRight(baseURL, "/"),
		HTTP:    &http.Client{Timeout: 20 * time.Second, Jar: jar},
	}
}

const maxBody = 1 << 20

// Request performs one JSON round trip. body (when non-nil) is serialized as
// JSON. The contract:
//
//   - 2xx with 204 or an empty body resolves to "{}".
//   - 2xx with a JSON content-type parses the body; a parse failure is
//     reported as a descriptive error, not a raw decoder error.
//   - 2xx with any other content-type is an error naming the content-type,
//     with a special-cased message when the body looks like an HTML document
//     (the usual symptom of hitting a non-API route).
//   - non-2xx tries to pull a message out of a JSON error body, falls back
//     to the raw status text, and always carries the status code.
//   - transport failures are wrapped so the caller can show a "network
//     unreachable" state distinct from a server-side error.
func (c *Client) Request(ctx context.Context, method, path string, body any, opts ...Options) (json.RawMessage, error) {
	var opt Options
	if len(opts) > 0 {
		opt = opts[0]
	}

	var reader io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("encode request body: %w", err)
		}
		reader = bytes.NewReader(b)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.BaseURL+path, reader)
	if err != nil {
		return nil, err
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	req.Header.Set("Accept", "application/json")
	for k, vs := range opt.Header {
		for _, v := range vs {
			req.Header.Add(k, v)
		}
	}

	httpClient := c.HTTP
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 20 * time.Second}
	}
	res, err := httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("network unreachable: %s %s: %w", method, path, err)
	}
	defer res.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(res.Body, maxBody))
	if err != nil {
		return nil, fmt.Errorf("network unreachable: reading %s %s: %w", method, path, err)
	}

	if res.StatusCode < 200 || res.StatusCode >= 300 {
		if res.StatusCode == http.StatusUnauthorized && opt.On401ReturnNil {
			return nil, nil
		}
		msg := strings.TrimSpace(string(raw))
		var parsed struct {
			Message string `json:"message"`
			Error   string `json:"error"`
		}
		if json.Unmarshal(raw, &parsed) == nil {
			if parsed.Message != "" {
				msg = parsed.Message
			} else if parsed.Error != "" {
				msg = parsed.Error
			}
		}
		if msg == "" {
			msg = res.Status
		}
		return nil, &StatusError{Code: res.StatusCode, Message: msg}
	}

	if res.StatusCode == http.StatusNoContent || len(bytes.TrimSpace(raw)) == 0 {
		return json.RawMessage(`{}`), nil
	}

	ct := res.Header.Get("Content-Type")
	mediaType, _, _ := mime.ParseMediaType(ct)
	if mediaType != "application/json" && !strings.HasSuffix(mediaType, "+json") {
		if looksLikeHTML(raw) {
			return nil, fmt.Errorf("expected JSON but got an HTML document (content-type %q); the request likely hit a non-API route", ct)
		}
		return nil, fmt.Errorf("expected JSON response but got content-type %q", ct)
	}

	var out json.RawMessage
	if err := json.Unmarshal(raw, &out); err != nil {
		return nil, fmt.Errorf("response declared JSON but failed to parse: %v (body starts %q)", err, truncate(string(raw), 120))
	}
	return out, nil
}

func looksLikeHTML(body []byte) bool {
	head := strings.ToLower(string(bytes.TrimSpace(body)))
	return strings.HasPrefix(head, "<!doctype html") || strings.HasPrefix(head, "<html")
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
