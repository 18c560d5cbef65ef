// Package chunker splits document text into overlapping fixed-size windows.
package chunker

import (
	"time"

	"github.com/google/uuid"

	"github.com/custodia-labs/ragline/internal/core/domain"
	"github.com/custodia-labs/ragline/internal/logger"
)

// MaxChunks bounds the number of windows produced for one document.
const MaxChunks = 10000

// Window is one chunk of text with exact character offsets into the source.
type Window struct {
	Index      int
	StartChar  int
	EndChar    int
	TokenCount int
	Content    string
}

// Chunker produces domain chunks for documents.
type Chunker struct {
	chunkSize int
	overlap   int
}

// Option configures the chunker.
type Option func(*Chunker)

// WithChunkSize sets the chunk size in characters. Non-positive sizes keep the default.
func WithChunkSize(size int) Option {
	return func(c *Chunker) {
		if size > 0 {
			c.chunkSize = size
		}
	}
}

// WithOverlap sets the overlap between chunks in characters.
func WithOverlap(overlap int) Option {
	return func(c *Chunker) {
		if overlap >= 0 {
			c.overlap = overlap
		}
	}
}

// New creates a chunker with the given options.
func New(opts ...Option) *Chunker {
	c := &Chunker{
		chunkSize: domain.DefaultChunkSize,
		overlap:   domain.DefaultChunkOverlap,
	}
	for _, opt := range opts {
		opt(c)
	}
	c.chunkSize, c.overlap = normalise(c.chunkSize, c.overlap)
	return c
}

// Size returns the effective chunk size.
func (c *Chunker) Size() int { return c.chunkSize }

// Overlap returns the effective overlap.
func (c *Chunker) Overlap() int { return c.overlap }

// Chunk splits the document content into pending chunks with fresh IDs.
func (c *Chunker) Chunk(doc *domain.Document) []domain.Chunk {
	windows := Split(doc.Content, c.chunkSize, c.overlap)
	if len(windows) == 0 {
		return nil
	}

	now := time.Now()
	chunks := make([]domain.Chunk, len(windows))
	for i, w := range windows {
		chunks[i] = domain.Chunk{
			ID:              uuid.New().String(),
			DocumentID:      doc.ID,
			KnowledgeBaseID: doc.KnowledgeBaseID,
			Content:         w.Content,
			Index:           w.Index,
			StartChar:       w.StartChar,
			EndChar:         w.EndChar,
			TokenCount:      w.TokenCount,
			Status:          domain.EmbeddingPending,
			Metadata: map[string]any{
				"documentName": doc.Name,
				"fileType":     doc.MIMEType,
			},
			CreatedAt: now,
			UpdatedAt: now,
		}
	}
	return chunks
}

// Split walks text with a stride of size-overlap and returns the windows.
// Offsets count characters (runes), not bytes. The result is deterministic and
// never longer than MaxChunks.
func Split(text string, size, overlap int) []Window {
	if text == "" {
		return nil
	}
	size, overlap = normalise(size, overlap)

	runes := []rune(text)
	n := len(runes)
	step := size - overlap

	var windows []Window
	for cursor := 0; cursor < n; cursor += step {
		if len(windows) == MaxChunks {
			logger.Warn("document too large, truncated to %d chunks", MaxChunks)
			break
		}

		end := min(cursor+size, n)
		content := string(runes[cursor:end])
		windows = append(windows, Window{
			Index:      len(windows),
			StartChar:  cursor,
			EndChar:    end,
			TokenCount: EstimateTokens(content),
			Content:    content,
		})

		// The window reaching the end of the text covers everything that remains.
		if end == n || step <= 0 {
			break
		}
	}
	return windows
}

// EstimateTokens approximates the token count as ceil(characters/4).
func EstimateTokens(s string) int {
	n := len([]rune(s))
	return (n + 3) / 4
}

func normalise(size, overlap int) (int, int) {
	if size <= 0 {
		size = domain.DefaultChunkSize
	}
	if overlap < 0 {
		overlap = 0
	}
	if overlap >= size {
		overlap = size / 5
	}
	return size, overlap
}
