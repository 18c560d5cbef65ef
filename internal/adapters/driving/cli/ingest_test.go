package cli

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/spf13/cobra"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
}

func TestExpandPath(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, filepath.Join(dir, "a.md"), "# A")
	writeFile(t, filepath.Join(dir, "sub", "b.txt"), "b")
	writeFile(t, filepath.Join(dir, "sub", "c.html"), "<p>c</p>")
	writeFile(t, filepath.Join(dir, "image.png"), "png")
	writeFile(t, filepath.Join(dir, ".hidden.md"), "hidden")
	writeFile(t, filepath.Join(dir, ".git", "config.txt"), "git")

	paths, err := expandPath(dir)
	require.NoError(t, err)

	var rel []string
	for _, p := range paths {
		r, err := filepath.Rel(dir, p)
		require.NoError(t, err)
		rel = append(rel, filepath.ToSlash(r))
	}
	assert.ElementsMatch(t, []string{"a.md", "sub/b.txt", "sub/c.html"}, rel)

	single, err := expandPath(filepath.Join(dir, "image.png"))
	require.NoError(t, err)
	assert.Len(t, single, 1, "explicit files are passed through")

	_, err = expandPath(filepath.Join(dir, "missing"))
	assert.Error(t, err)
}

func TestIngestCmd_RequiresKB(t *testing.T) {
	assert.Equal(t, "true", ingestCmd.Flags().Lookup("kb").Annotations[cobra.BashCompOneRequiredFlag][0])
}

func TestIngest_FilesAndDirectories(t *testing.T) {
	cleanup := setupTestServices()
	defer cleanup()

	dir := t.TempDir()
	writeFile(t, filepath.Join(dir, "guide.md"), "# Guide")
	writeFile(t, filepath.Join(dir, "notes", "todo.txt"), "todo")

	out, err := run(t, "ingest", "--kb", "kb-1", dir)
	require.NoError(t, err)

	require.Len(t, current.ingestion.requests, 2)
	for _, req := range current.ingestion.requests {
		assert.Equal(t, "kb-1", req.KnowledgeBaseID)
		assert.NotEmpty(t, req.Path)
		assert.Equal(t, filepath.Base(req.Path), req.Name)
	}
	assert.Contains(t, out, "Queued guide.md")
	assert.Contains(t, out, "2 documents, 6 chunks embedded, 0 failed")
}

func TestIngest_Stdin(t *testing.T) {
	cleanup := setupTestServices()
	defer cleanup()

	rootCmd.SetIn(strings.NewReader("piped text"))
	_, err := run(t, "ingest", "--kb", "kb-1", "--name", "report", "-")
	require.NoError(t, err)

	require.Len(t, current.ingestion.requests, 1)
	req := current.ingestion.requests[0]
	assert.Equal(t, []byte("piped text"), req.Data)
	assert.Equal(t, "report", req.Name)
}

func TestIngest_URL(t *testing.T) {
	cleanup := setupTestServices()
	defer cleanup()

	_, err := run(t, "ingest", "--kb", "kb-1", "--url", "https://example.com/guide")
	require.NoError(t, err)
	require.Len(t, current.ingestion.requests, 1)
	assert.Equal(t, "https://example.com/guide", current.ingestion.requests[0].URL)
}

func TestIngest_ReportsFailures(t *testing.T) {
	cleanup := setupTestServices()
	defer cleanup()
	current.ingestion.failNames["bad.txt"] = true

	dir := t.TempDir()
	writeFile(t, filepath.Join(dir, "good.txt"), "good")
	writeFile(t, filepath.Join(dir, "bad.txt"), "bad")

	out, err := run(t, "ingest", "--kb", "kb-1", dir)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "1 of 2 documents failed")
	assert.Contains(t, out, "extraction failed")
	assert.Contains(t, out, "1 documents, 3 chunks embedded, 1 failed")
}

func TestIngest_NothingToIngest(t *testing.T) {
	cleanup := setupTestServices()
	defer cleanup()

	_, err := run(t, "ingest", "--kb", "kb-1")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "nothing to ingest")
}

func TestIngest_Crawl(t *testing.T) {
	cleanup := setupTestServices()
	defer cleanup()
	current.ingestion.crawled = []string{"https://docs.example/", "https://docs.example/guide"}
	current.ingestion.skipped = []string{"https://docs.example/old"}

	out, err := run(t, "ingest", "--kb", "kb-1", "--url", "https://docs.example/", "--crawl",
		"--max-pages", "20", "--exclude", "/blog/", "--exclude", "/tag/")
	require.NoError(t, err)

	req := current.ingestion.crawl
	assert.Equal(t, "kb-1", req.KnowledgeBaseID)
	assert.Equal(t, "https://docs.example/", req.URL)
	assert.Equal(t, 20, req.MaxPages)
	assert.Equal(t, 3, req.MaxDepth)
	assert.Equal(t, []string{"/blog/", "/tag/"}, req.Exclude)

	assert.Len(t, current.ingestion.requests, 2, "the start page is not ingested twice")
	assert.Contains(t, out, "Queued https://docs.example/guide")
	assert.Contains(t, out, "Skipped https://docs.example/old")
	assert.Contains(t, out, "2 documents, 6 chunks embedded, 0 failed")
}

func TestIngest_CrawlNeedsURL(t *testing.T) {
	cleanup := setupTestServices()
	defer cleanup()

	_, err := run(t, "ingest", "--kb", "kb-1", "--crawl")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "--url")
}
