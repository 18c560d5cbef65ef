package credentials

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/custodia-labs/ragline/internal/adapters/driven/storage/memory"
	"github.com/custodia-labs/ragline/internal/core/domain"
)

func fakeEnv(vars map[string]string) func(string) string {
	return func(k string) string { return vars[k] }
}

func TestEnvStore_ListActive(t *testing.T) {
	store := NewEnvStoreWith(fakeEnv(map[string]string{
		"OPENAI_API_KEY":    "sk-test",
		"ANTHROPIC_API_KEY": "ant-test",
	}))
	ctx := context.Background()

	configs, err := store.ListActive(ctx, domain.ScopeUser, "alice")
	require.NoError(t, err)
	require.Len(t, configs, 2)
	assert.Equal(t, domain.ProviderOpenAI, configs[0].Kind)
	assert.Equal(t, "env-openai", configs[0].ID)
	assert.Equal(t, "alice", configs[0].ScopeID)
	assert.Equal(t, "sk-test", configs[0].Credential)
	assert.Equal(t, domain.ProviderAnthropic, configs[1].Kind)

	workspace, err := store.ListActive(ctx, domain.ScopeWorkspace, "team")
	require.NoError(t, err)
	assert.Empty(t, workspace)
}

func TestEnvStore_Lookup(t *testing.T) {
	store := NewEnvStoreWith(fakeEnv(map[string]string{"GOOGLE_API_KEY": "g"}))
	ctx := context.Background()

	cfg, err := store.Lookup(ctx, domain.ScopeUser, "bob", EnvID(domain.ProviderGoogle))
	require.NoError(t, err)
	assert.Equal(t, "g", cfg.Credential)

	_, err = store.Lookup(ctx, domain.ScopeUser, "bob", EnvID(domain.ProviderOpenAI))
	assert.ErrorIs(t, err, domain.ErrNotFound)
	_, err = store.Lookup(ctx, domain.ScopeWorkspace, "bob", EnvID(domain.ProviderGoogle))
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestChain_StoredConfigsComeFirst(t *testing.T) {
	stored := memory.NewProviderStore(domain.ProviderConfig{
		ID: "mine", Kind: domain.ProviderOpenAI, Scope: domain.ScopeUser, ScopeID: "alice",
		Credential: "sk-stored", IsActive: true,
	})
	env := NewEnvStoreWith(fakeEnv(map[string]string{"OPENAI_API_KEY": "sk-env"}))
	chain := NewChain(stored, env)
	ctx := context.Background()

	configs, err := chain.ListActive(ctx, domain.ScopeUser, "alice")
	require.NoError(t, err)
	require.Len(t, configs, 2)
	assert.Equal(t, "sk-stored", configs[0].Credential)
	assert.Equal(t, "sk-env", configs[1].Credential)

	cfg, err := chain.Lookup(ctx, domain.ScopeUser, "alice", "env-openai")
	require.NoError(t, err)
	assert.Equal(t, "sk-env", cfg.Credential)

	cfg, err = chain.Lookup(ctx, domain.ScopeUser, "alice", "mine")
	require.NoError(t, err)
	assert.Equal(t, "sk-stored", cfg.Credential)

	_, err = chain.Lookup(ctx, domain.ScopeUser, "alice", "nope")
	assert.ErrorIs(t, err, domain.ErrNotFound)
}
