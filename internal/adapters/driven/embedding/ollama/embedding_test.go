package ollama

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/custodia-labs/ragline/internal/core/domain"
)

func TestProvider_GenerateEmbedding(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/embeddings", r.URL.Path)
		var req map[string]string
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, "nomic-embed-text", req["model"])
		assert.Equal(t, "hello", req["prompt"])
		_, _ = w.Write([]byte(`{"embedding":[0.5,-0.25]}`))
	}))
	defer server.Close()

	p := New(Config{BaseURL: server.URL})
	vec, err := p.GenerateEmbedding(context.Background(), "hello", domain.ProviderBinding{
		Kind: domain.ProviderOllama, Model: "nomic-embed-text",
	})
	require.NoError(t, err)
	assert.Equal(t, []float32{0.5, -0.25}, vec)
	assert.Equal(t, domain.ProviderOllama, p.Kind())
}

func TestProvider_BindingBaseURLWins(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(`{"embedding":[1]}`))
	}))
	defer server.Close()

	p := New(Config{BaseURL: "http://127.0.0.1:1"})
	_, err := p.GenerateEmbedding(context.Background(), "x", domain.ProviderBinding{BaseURL: server.URL + "/"})
	require.NoError(t, err)
}

func TestProvider_ErrorStatusIsProviderError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		http.Error(w, "model not found", http.StatusNotFound)
	}))
	defer server.Close()

	_, err := New(Config{BaseURL: server.URL}).GenerateEmbedding(context.Background(), "x", domain.ProviderBinding{})
	assert.ErrorIs(t, err, domain.ErrProvider)
	assert.Contains(t, err.Error(), "model not found")
}
