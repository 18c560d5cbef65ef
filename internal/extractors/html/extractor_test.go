package html

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const page = `<html><head><title>Release Notes</title><style>p{}</style></head>
<body>
<nav><a href="/">Home</a> | <a href="/blog">Blog</a></nav>
<main>
<h1>Version 2</h1>
<p>Chunking now respects <strong>overlap</strong>.</p>
<ul><li>Faster ingestion</li><li>Bots</li></ul>
<script>track()</script>
</main>
<footer>Copyright</footer>
</body></html>`

func TestSupportedMIMETypes(t *testing.T) {
	assert.ElementsMatch(t, []string{"text/html", "application/xhtml+xml"}, New().SupportedMIMETypes())
}

func TestExtract_MainContentAsMarkdown(t *testing.T) {
	result, err := New().Extract(context.Background(), []byte(page), "https://example.com/notes.html")
	require.NoError(t, err)

	assert.Equal(t, "Release Notes", result.Title)
	assert.Equal(t, "text/html", result.MIMEType)
	assert.Contains(t, result.Text, "# Version 2")
	assert.Contains(t, result.Text, "**overlap**")
	assert.Contains(t, result.Text, "Faster ingestion")
	assert.NotContains(t, result.Text, "Home")
	assert.NotContains(t, result.Text, "track()")
	assert.NotContains(t, result.Text, "Copyright")
}

func TestExtract_TitleFallbacks(t *testing.T) {
	og := `<html><head><meta property="og:title" content="Open Graph Title"></head><body><p>x</p></body></html>`
	result, err := New().Extract(context.Background(), []byte(og), "")
	require.NoError(t, err)
	assert.Equal(t, "Open Graph Title", result.Title)

	h1 := `<html><body><h1>Heading Title</h1><p>x</p></body></html>`
	result, err = New().Extract(context.Background(), []byte(h1), "")
	require.NoError(t, err)
	assert.Equal(t, "Heading Title", result.Title)

	bare := `<html><body><p>x</p></body></html>`
	result, err = New().Extract(context.Background(), []byte(bare), "/site/about-us.html")
	require.NoError(t, err)
	assert.Equal(t, "about us", result.Title)
}

func TestExtract_BodyWithoutMain(t *testing.T) {
	result, err := New().Extract(context.Background(), []byte(`<p>Just a paragraph.</p>`), "")
	require.NoError(t, err)
	assert.Equal(t, "Just a paragraph.", result.Text)
}

func TestBaseDomain(t *testing.T) {
	assert.Equal(t, "example.com", baseDomain("https://example.com/a/b"))
	assert.Equal(t, "", baseDomain("/local/file.html"))
	assert.Equal(t, "", baseDomain(""))
}
