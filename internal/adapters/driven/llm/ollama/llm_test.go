package ollama

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/custodia-labs/ragline/internal/adapters/driven/ollamaapi"
	"github.com/custodia-labs/ragline/internal/core/domain"
)

func TestProvider_Chat(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/chat", r.URL.Path)
		var req ollamaapi.ChatRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, "llama3.2", req.Model)
		require.Len(t, req.Messages, 2)
		assert.Equal(t, "system", req.Messages[0].Role)
		require.NotNil(t, req.Options)
		assert.Equal(t, 256, req.Options.NumPredict)

		_, _ = w.Write([]byte(`{"message":{"role":"assistant","content":"hi there"},"done":true}`))
	}))
	defer server.Close()

	p := New(Config{BaseURL: server.URL})
	assert.Equal(t, domain.ProviderOllama, p.Kind())

	reply, err := p.Chat(context.Background(), []domain.ChatMessage{
		{Role: domain.RoleSystem, Content: "be brief"},
		{Role: domain.RoleUser, Content: "hello"},
	}, domain.ProviderBinding{Model: "llama3.2"}, domain.ChatOptions{MaxTokens: 256})
	require.NoError(t, err)
	assert.Equal(t, "hi there", reply)
}

func TestProvider_ChatWithoutOptions(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req ollamaapi.ChatRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Nil(t, req.Options)
		_, _ = w.Write([]byte(`{"message":{"content":"ok"}}`))
	}))
	defer server.Close()

	_, err := New(Config{BaseURL: server.URL}).Chat(context.Background(),
		[]domain.ChatMessage{{Role: domain.RoleUser, Content: "hello"}},
		domain.ProviderBinding{Model: "x"}, domain.ChatOptions{})
	require.NoError(t, err)
}

func TestProvider_ChatErrorBody(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(`{"error":"model 'x' not found"}`))
	}))
	defer server.Close()

	_, err := New(Config{BaseURL: server.URL}).Chat(context.Background(),
		[]domain.ChatMessage{{Role: domain.RoleUser, Content: "hello"}},
		domain.ProviderBinding{Model: "x"}, domain.ChatOptions{})
	assert.ErrorIs(t, err, domain.ErrProvider)
}
