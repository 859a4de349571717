package llm_test

import (
	"context"
	"crypto/md5"
	"encoding/hex"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/leapstack-labs/bifrost/pkg/llm"
)

func TestEcho(t *testing.T) {
	out, err := llm.Echo{}.Complete(context.Background(), "SELECT t.a FROM t")
	require.NoError(t, err)
	assert.Equal(t, "SELECT t.a FROM t", out)
}

func TestLookup(t *testing.T) {
	prompt := "list my rentals"
	sum := md5.Sum([]byte(prompt))

	l := &llm.Lookup{Responses: map[string]string{
		hex.EncodeToString(sum[:]): "SELECT r.id FROM rental r",
	}}

	out, err := l.Complete(context.Background(), prompt)
	require.NoError(t, err)
	assert.Equal(t, "SELECT r.id FROM rental r", out)

	_, err = l.Complete(context.Background(), "unknown prompt")
	assert.Error(t, err)
}

func TestClientCompletes(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/chat/completions", r.URL.Path)
		assert.Equal(t, "Bearer test-key", r.Header.Get("Authorization"))
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"choices":[{"message":{"role":"assistant","content":"SELECT t.a FROM t"}}]}`))
	}))
	defer srv.Close()

	c := llm.NewClient(llm.ClientConfig{BaseURL: srv.URL, APIKey: "test-key", Model: "test"})
	out, err := c.Complete(context.Background(), "list things")
	require.NoError(t, err)
	assert.Equal(t, "SELECT t.a FROM t", out)
}

func TestClientRetriesTransientErrors(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) < 3 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		_, _ = w.Write([]byte(`{"choices":[{"message":{"content":"ok"}}]}`))
	}))
	defer srv.Close()

	c := llm.NewClient(llm.ClientConfig{BaseURL: srv.URL, MaxRetries: 5})
	out, err := c.Complete(context.Background(), "hi")
	require.NoError(t, err)
	assert.Equal(t, "ok", out)
	assert.Equal(t, int32(3), calls.Load())
}

func TestClientPermanentErrorNotRetried(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusUnauthorized)
		_, _ = w.Write([]byte(`{"error":{"message":"bad key","type":"auth"}}`))
	}))
	defer srv.Close()

	c := llm.NewClient(llm.ClientConfig{BaseURL: srv.URL, MaxRetries: 5})
	_, err := c.Complete(context.Background(), "hi")
	require.Error(t, err)
	assert.Equal(t, int32(1), calls.Load())
}
