package cli

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/custodia-labs/ragline/internal/core/ports/driving"
)

func TestSyncCmd_HasSubcommands(t *testing.T) {
	var names []string
	for _, c := range syncCmd.Commands() {
		names = append(names, c.Name())
	}
	assert.ElementsMatch(t, []string{"verify", "missing", "rebuild"}, names)
}

func TestSyncVerify_Complete(t *testing.T) {
	cleanup := setupTestServices()
	defer cleanup()
	current.sync.report = driving.VectorReport{TotalChunks: 12}

	out, err := run(t, "sync", "verify", "kb-1")
	require.NoError(t, err)
	assert.Contains(t, out, "Chunks:            12")
	assert.Contains(t, out, "Index is complete.")
}

func TestSyncVerify_SuggestsRepair(t *testing.T) {
	cleanup := setupTestServices()
	defer cleanup()
	current.sync.report = driving.VectorReport{TotalChunks: 12, MissingVectors: 3, FailedEmbeddings: 1}

	out, err := run(t, "sync", "verify", "kb-1")
	require.NoError(t, err)
	assert.Contains(t, out, "ragline sync missing kb-1")
}

func TestSyncMissing(t *testing.T) {
	cleanup := setupTestServices()
	defer cleanup()
	current.sync.result = driving.SyncResult{Processed: 4}

	out, err := run(t, "sync", "missing", "kb-1")
	require.NoError(t, err)
	assert.Equal(t, "kb-1", current.sync.repaired)
	assert.Contains(t, out, "4 chunks embedded, 0 errors")
}

func TestSyncRebuild_ReportsErrors(t *testing.T) {
	cleanup := setupTestServices()
	defer cleanup()
	current.sync.result = driving.SyncResult{Processed: 8, Errors: 2}

	out, err := run(t, "sync", "rebuild", "kb-1")
	require.Error(t, err)
	assert.Equal(t, "kb-1", current.sync.rebuilt)
	assert.Contains(t, out, "8 chunks embedded, 2 errors")
	assert.Contains(t, err.Error(), "2 chunks failed")
}
