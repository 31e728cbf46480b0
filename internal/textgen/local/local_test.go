package local

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Bdento-1/coach-dual-cloud-render/internal/config"
)

func TestComplete_OllamaGenerate(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var body map[string]any
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.Equal(t, "llama3", body["model"])
		assert.Equal(t, "sys", body["system"])
		assert.Equal(t, "prompt", body["prompt"])
		assert.Equal(t, false, body["stream"])
		_, _ = w.Write([]byte(`{"response":"ราคาเคลื่อนไหวในกรอบ"}`))
	}))
	defer srv.Close()

	b := New(config.LocalConfig{Endpoint: srv.URL + "/api/generate"}, WithHTTPClient(srv.Client()))
	text, err := b.Complete(context.Background(), "sys", "prompt")
	require.NoError(t, err)
	assert.Equal(t, "ราคาเคลื่อนไหวในกรอบ", text)
}

func TestComplete_OpenAICompatible(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var body map[string]any
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.Equal(t, "qwen", body["model"])
		assert.Len(t, body["messages"], 2)
		_, _ = w.Write([]byte(`{"choices":[{"message":{"content":"ok"}}]}`))
	}))
	defer srv.Close()

	b := New(config.LocalConfig{Endpoint: srv.URL + "/v1/chat/completions", Model: "qwen"}, WithHTTPClient(srv.Client()))
	text, err := b.Complete(context.Background(), "sys", "prompt")
	require.NoError(t, err)
	assert.Equal(t, "ok", text)
}

func TestExtractContent(t *testing.T) {
	got, err := extractContent([]byte(`{"response":""}`))
	require.NoError(t, err)
	assert.Empty(t, got)

	_, err = extractContent([]byte(`{"other":1}`))
	assert.Error(t, err)

	_, err = extractContent([]byte(`not json`))
	assert.Error(t, err)
}

func TestComplete_ServerError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		http.Error(w, "model not loaded", http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	b := New(config.LocalConfig{Endpoint: srv.URL}, WithHTTPClient(srv.Client()))
	_, err := b.Complete(context.Background(), "s", "p")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "status 503")
}
