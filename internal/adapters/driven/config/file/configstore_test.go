package file

import (
	"os"
	"path/filepath"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewConfigStore_DefaultDirFollowsHomeEnv(t *testing.T) {
	home := t.TempDir()
	t.Setenv(HomeEnv, home)

	store, err := NewConfigStore("")
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(home, "config.toml"), store.Path())
}

func TestNewConfigStore_CreatesNestedDirectory(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "a", "b")
	store, err := NewConfigStore(dir)
	require.NoError(t, err)
	assert.DirExists(t, dir)
	assert.NoFileExists(t, store.Path(), "nothing is written until Set or Save")
}

func TestConfigStore_TypedGetters(t *testing.T) {
	store, err := NewConfigStore(t.TempDir())
	require.NoError(t, err)

	require.NoError(t, store.Set("vector.backend", "qdrant"))
	require.NoError(t, store.Set("chunker.size", 800))
	require.NoError(t, store.Set("pipeline.rate_limit_rps", 2.5))
	require.NoError(t, store.Set("debug", true))

	assert.Equal(t, "qdrant", store.GetString("vector.backend"))
	assert.Equal(t, 800, store.GetInt("chunker.size"))
	assert.InDelta(t, 2.5, store.GetFloat("pipeline.rate_limit_rps"), 1e-9)
	assert.InDelta(t, 800, store.GetFloat("chunker.size"), 1e-9)
	assert.True(t, store.GetBool("debug"))

	assert.Empty(t, store.GetString("chunker.size"), "wrong type reads as zero value")
	assert.Zero(t, store.GetInt("vector.backend"))
	assert.False(t, store.GetBool("missing"))
	_, ok := store.Get("missing")
	assert.False(t, ok)
}

func TestConfigStore_WritesSectionsAndReloads(t *testing.T) {
	dir := t.TempDir()
	store, err := NewConfigStore(dir)
	require.NoError(t, err)

	require.NoError(t, store.Set("vector.backend", "badger"))
	require.NoError(t, store.Set("vector.dimensions", 768))
	require.NoError(t, store.Set("jobs.max_concurrent", 3))

	data, err := os.ReadFile(store.Path())
	require.NoError(t, err)
	assert.Contains(t, string(data), "[vector]")
	assert.Contains(t, string(data), "[jobs]")

	reopened, err := NewConfigStore(dir)
	require.NoError(t, err)
	assert.Equal(t, "badger", reopened.GetString("vector.backend"))
	assert.Equal(t, 768, reopened.GetInt("vector.dimensions"))
	assert.Equal(t, 3, reopened.GetInt("jobs.max_concurrent"))
}

func TestConfigStore_LoadsHandWrittenFile(t *testing.T) {
	dir := t.TempDir()
	content := `
[embedding]
provider = "ollama"
model = "nomic-embed-text"

[pipeline]
batch_delay_ms = 50
rate_limit_rps = 1.5
`
	require.NoError(t, os.WriteFile(filepath.Join(dir, "config.toml"), []byte(content), 0o600))

	store, err := NewConfigStore(dir)
	require.NoError(t, err)
	assert.Equal(t, "ollama", store.GetString("embedding.provider"))
	assert.Equal(t, 50, store.GetInt("pipeline.batch_delay_ms"))
	assert.InDelta(t, 1.5, store.GetFloat("pipeline.rate_limit_rps"), 1e-9)
}

func TestConfigStore_InvalidTOML(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "config.toml"), []byte("not = [valid"), 0o600))

	_, err := NewConfigStore(dir)
	assert.Error(t, err)
}

func TestConfigStore_FilePermissions(t *testing.T) {
	store, err := NewConfigStore(t.TempDir())
	require.NoError(t, err)
	require.NoError(t, store.Set("vector.qdrant_api_key", "secret"))

	info, err := os.Stat(store.Path())
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0o600), info.Mode().Perm())
}

func TestConfigStore_ConcurrentSet(t *testing.T) {
	store, err := NewConfigStore(t.TempDir())
	require.NoError(t, err)

	var wg sync.WaitGroup
	for i := range 10 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			assert.NoError(t, store.Set("jobs.retain", i))
			_ = store.GetInt("jobs.retain")
		}()
	}
	wg.Wait()

	assert.GreaterOrEqual(t, store.GetInt("jobs.retain"), 0)
}
