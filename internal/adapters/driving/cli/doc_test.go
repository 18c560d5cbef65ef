package cli

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDocCmd_HasSubcommands(t *testing.T) {
	var names []string
	for _, c := range docCmd.Commands() {
		names = append(names, c.Name())
	}
	assert.ElementsMatch(t, []string{"list", "delete"}, names)
}

func TestDocListCmd_RequiresExactlyOneArg(t *testing.T) {
	cleanup := setupTestServices()
	defer cleanup()

	_, err := run(t, "doc", "list")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "accepts 1 arg(s)")
}

func TestDocList(t *testing.T) {
	cleanup := setupTestServices()
	defer cleanup()

	out, err := run(t, "doc", "list", "kb-1")
	require.NoError(t, err)
	assert.Contains(t, out, "Documents (2):")
	assert.Contains(t, out, "guide.md")
	assert.Contains(t, out, "4 chunks")
	assert.Contains(t, out, "unsupported type")
}

func TestDocList_Empty(t *testing.T) {
	cleanup := setupTestServices()
	defer cleanup()
	current.ingestion.documents = nil

	out, err := run(t, "doc", "list", "kb-1")
	require.NoError(t, err)
	assert.Contains(t, out, "No documents found.")
}

func TestDocDelete(t *testing.T) {
	cleanup := setupTestServices()
	defer cleanup()

	out, err := run(t, "doc", "delete", "doc-1")
	require.NoError(t, err)
	assert.Contains(t, out, "Deleted document doc-1")
	assert.Equal(t, []string{"doc-1"}, current.ingestion.deleted)
}
