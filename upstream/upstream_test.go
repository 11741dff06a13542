package upstream

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDoRelaysSuccess(t *testing.T) {
	var gotAuth, gotOrg, gotCookie string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotAuth = r.Header.Get("Authorization")
		gotOrg = r.Header.Get("OpenAI-Organization")
		gotCookie = r.Header.Get("Cookie")
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"choices":[{"message":{"content":"hi"}}],"usage":{"total_tokens":15}}`))
	}))
	defer srv.Close()

	headers := http.Header{}
	headers.Set("Authorization", "Bearer sk-test")
	headers.Set("OpenAI-Organization", "org-1")
	headers.Set("Cookie", "session=abc")

	client := New(5 * time.Second)
	res, err := client.Do(context.Background(), srv.URL, json.RawMessage(`{"model":"gpt-3.5-turbo"}`), headers)
	require.NoError(t, err)

	assert.Equal(t, http.StatusOK, res.Status)
	assert.Contains(t, string(res.Body), `"total_tokens":15`)
	assert.Equal(t, "Bearer sk-test", gotAuth)
	assert.Equal(t, "org-1", gotOrg)
	// only Authorization and OpenAI-Organization pass through
	assert.Empty(t, gotCookie)
}

func TestDoRelaysUpstreamError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
		w.Write([]byte(`{"error":{"message":"rate limited"}}`))
	}))
	defer srv.Close()

	client := New(5 * time.Second)
	res, err := client.Do(context.Background(), srv.URL, json.RawMessage(`{}`), http.Header{})
	require.NoError(t, err)

	assert.Equal(t, http.StatusTooManyRequests, res.Status)
	assert.Contains(t, string(res.Body), "rate limited")
}

func TestDoTimeout(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		time.Sleep(200 * time.Millisecond)
	}))
	defer srv.Close()

	client := New(20 * time.Millisecond)
	_, err := client.Do(context.Background(), srv.URL, json.RawMessage(`{}`), http.Header{})
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrTimeout)
}

func TestDoUnreachable(t *testing.T) {
	client := New(time.Second)
	_, err := client.Do(context.Background(), "http://127.0.0.1:1", json.RawMessage(`{}`), http.Header{})
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrUnreachable)
}
