package apiclient

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestClient(handler http.HandlerFunc) (*Client, func()) {
	srv := httptest.NewServer(handler)
	return New(srv.URL), srv.Close
}

func TestRequest_NoContentYieldsEmptyObject(t *testing.T) {
	c, done := newTestClient(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	})
	defer done()

	out, err := c.Request(context.Background(), http.MethodDelete, "/api/posts/p1", nil)
	require.NoError(t, err)
	assert.JSONEq(t, `{}`, string(out))
}

func TestRequest_EmptyBodyYieldsEmptyObject(t *testing.T) {
	c, done := newTestClient(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
	})
	defer done()

	out, err := c.Request(context.Background(), http.MethodGet, "/api/pages", nil)
	require.NoError(t, err)
	assert.JSONEq(t, `{}`, string(out))
}

func TestRequest_ParsesJSON(t *testing.T) {
	c, done := newTestClient(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))
		w.Header().Set("Content-Type", "application/json; charset=utf-8")
		_, _ = w.Write([]byte(`{"id":"p1","status":"draft"}`))
	})
	defer done()

	out, err := c.Request(context.Background(), http.MethodPost, "/api/pages/pg1/posts", map[string]string{"content": "hi"})
	require.NoError(t, err)
	var got map[string]string
	require.NoError(t, json.Unmarshal(out, &got))
	assert.Equal(t, "p1", got["id"])
}

func TestRequest_On401ReturnNil(t *testing.T) {
	c, done := newTestClient(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "unauthorized", http.StatusUnauthorized)
	})
	defer done()

	out, err := c.Request(context.Background(), http.MethodGet, "/api/auth/facebook/status", nil, Options{On401ReturnNil: true})
	require.NoError(t, err)
	assert.Nil(t, out)
}

func TestRequest_StatusErrorCarriesCodeAndMessage(t *testing.T) {
	c, done := newTestClient(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusBadRequest)
		_, _ = w.Write([]byte(`{"message":"scheduledTime is required"}`))
	})
	defer done()

	_, err := c.Request(context.Background(), http.MethodPost, "/api/pages/pg1/posts", nil)
	var se *StatusError
	require.True(t, errors.As(err, &se))
	assert.Equal(t, http.StatusBadRequest, se.Code)
	assert.Equal(t, "scheduledTime is required", se.Message)
}

func TestRequest_NonJSONErrorBodyFallsBackToRawText(t *testing.T) {
	c, done := newTestClient(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "boom", http.StatusInternalServerError)
	})
	defer done()

	_, err := c.Request(context.Background(), http.MethodGet, "/api/pages", nil)
	var se *StatusError
	require.True(t, errors.As(err, &se))
	assert.Equal(t, http.StatusInternalServerError, se.Code)
	assert.Equal(t, "boom", se.Message)
}

func TestRequest_HTMLBodyIsContentTypeMismatch(t *testing.T) {
	c, done := newTestClient(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		_, _ = w.Write([]byte("<!DOCTYPE html><html><body>index</body></html>"))
	})
	defer done()

	_, err := c.Request(context.Background(), http.MethodGet, "/api/pages", nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "HTML document")
	assert.Contains(t, err.Error(), "non-API route")
	var se *StatusError
	assert.False(t, errors.As(err, &se), "content-type mismatch is not a status error")
}

func TestRequest_UnexpectedContentType(t *testing.T) {
	c, done := newTestClient(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/plain")
		_, _ = w.Write([]byte("ok"))
	})
	defer done()

	_, err := c.Request(context.Background(), http.MethodGet, "/api/pages", nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), `"text/plain"`)
}

func TestRequest_DeclaredJSONButUnparseable(t *testing.T) {
	c, done := newTestClient(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte("{not json"))
	})
	defer done()

	_, err := c.Request(context.Background(), http.MethodGet, "/api/pages", nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to parse")
}

func TestRequest_NetworkFailureIsDistinguishable(t *testing.T) {
	c := New("http://127.0.0.1:1") // nothing listens here
	_, err := c.Request(context.Background(), http.MethodGet, "/api/pages", nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "network unreachable")
	var se *StatusError
	assert.False(t, errors.As(err, &se))
}
