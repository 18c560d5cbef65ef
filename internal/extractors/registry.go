package extractors

import (
	"context"
	"fmt"
	"mime"
	"net/http"
	"path/filepath"
	"strings"
	"sync"

	"github.com/custodia-labs/ragline/internal/core/domain"
	"github.com/custodia-labs/ragline/internal/core/ports/driven"
	"github.com/custodia-labs/ragline/internal/extractors/docx"
	"github.com/custodia-labs/ragline/internal/extractors/eml"
	"github.com/custodia-labs/ragline/internal/extractors/html"
	"github.com/custodia-labs/ragline/internal/extractors/markdown"
	"github.com/custodia-labs/ragline/internal/extractors/plaintext"
	"github.com/custodia-labs/ragline/internal/logger"
)

// Ensure Registry implements the interface.
var _ driven.ExtractorRegistry = (*Registry)(nil)

// extensionTypes covers extensions the mime package does not know on every
// platform.
var extensionTypes = map[string]string{
	".md":       "text/markdown",
	".markdown": "text/markdown",
	".txt":      "text/plain",
	".text":     "text/plain",
	".log":      "text/plain",
	".rst":      "text/plain",
	".csv":      "text/csv",
	".json":     "application/json",
	".xml":      "application/xml",
	".yaml":     "text/yaml",
	".yml":      "text/yaml",
	".toml":     "text/toml",
	".go":       "text/x-go",
	".py":       "text/x-python",
	".rs":       "text/x-rust",
	".java":     "text/x-java",
	".c":        "text/x-c",
	".h":        "text/x-c",
	".cpp":      "text/x-c++",
	".rb":       "text/x-ruby",
	".sh":       "text/x-shellscript",
	".sql":      "text/x-sql",
	".js":       "text/javascript",
	".ts":       "text/typescript",
	".css":      "text/css",
	".html":     "text/html",
	".htm":      "text/html",
	".xhtml":    "application/xhtml+xml",
	".docx":     docx.MIMEType,
	".eml":      "message/rfc822",
}

// Registry dispatches to extractors by MIME type.
type Registry struct {
	mu         sync.RWMutex
	extractors map[string]driven.TextExtractor
	fallback   driven.TextExtractor
}

// NewRegistry creates an empty registry. Unknown text/* types fall back to
// the plain text extractor.
func NewRegistry() *Registry {
	return &Registry{
		extractors: make(map[string]driven.TextExtractor),
		fallback:   plaintext.New(),
	}
}

// DefaultRegistry returns a registry with every built-in extractor.
func DefaultRegistry() *Registry {
	r := NewRegistry()
	r.Register(plaintext.New())
	r.Register(markdown.New())
	r.Register(html.New())
	r.Register(docx.New())
	r.Register(eml.New())
	return r
}

// Register adds an extractor for each of its MIME types. Later
// registrations replace earlier ones.
func (r *Registry) Register(e driven.TextExtractor) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, t := range e.SupportedMIMETypes() {
		r.extractors[t] = e
	}
}

// SupportedMIMETypes returns every registered MIME type.
func (r *Registry) SupportedMIMETypes() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	types := make([]string, 0, len(r.extractors))
	for t := range r.extractors {
		types = append(types, t)
	}
	return types
}

// Extract runs the extractor matching mimeType, or the type implied by
// uri's extension when mimeType is empty or generic. Content with no usable
// hint is sniffed.
func (r *Registry) Extract(ctx context.Context, content []byte, mimeType, uri string) (*driven.ExtractResult, error) {
	resolved := r.resolve(content, mimeType, uri)
	e := r.lookup(resolved)
	if e == nil {
		return nil, fmt.Errorf("%w: %s", domain.ErrUnsupportedType, firstNonEmpty(resolved, mimeType, uri))
	}
	logger.Debug("extracting %s as %s", uri, resolved)
	return e.Extract(ctx, content, uri)
}

// resolve picks the MIME type used for dispatch.
func (r *Registry) resolve(content []byte, mimeType, uri string) string {
	mimeType = normalise(mimeType)
	if mimeType != "" && mimeType != "application/octet-stream" {
		return mimeType
	}
	if byExt := TypeByExtension(uri); byExt != "" {
		return byExt
	}
	if len(content) == 0 {
		return "text/plain"
	}
	return normalise(http.DetectContentType(content))
}

func (r *Registry) lookup(mimeType string) driven.TextExtractor {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if e, ok := r.extractors[mimeType]; ok {
		return e
	}
	if strings.HasPrefix(mimeType, "text/") {
		return r.fallback
	}
	return nil
}

// TypeByExtension maps a file name to a MIME type, or "" when unknown.
func TypeByExtension(uri string) string {
	ext := strings.ToLower(filepath.Ext(uri))
	if ext == "" {
		return ""
	}
	if t, ok := extensionTypes[ext]; ok {
		return t
	}
	return normalise(mime.TypeByExtension(ext))
}

// normalise strips parameters such as charset.
func normalise(mimeType string) string {
	if mimeType == "" {
		return ""
	}
	if mt, _, err := mime.ParseMediaType(mimeType); err == nil {
		return mt
	}
	return strings.ToLower(strings.TrimSpace(mimeType))
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
