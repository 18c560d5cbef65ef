package file

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/custodia-labs/ragline/internal/core/ports/driven"
)

// Ensure PromptStore implements the interface.
var _ driven.PromptStore = (*PromptStore)(nil)

// PromptStore reads answer prompts from <dir>/<name>.txt. Missing or empty
// files fall back to the built-in text. The directory and default files are
// written on the first Load, never in the constructor.
type PromptStore struct {
	dir string

	initOnce sync.Once
	initErr  error

	mu    sync.RWMutex
	cache map[string]string
}

var defaultPrompts = map[string]string{
	driven.PromptRAGSystem:       "You are a helpful assistant.",
	driven.PromptContextPreamble: "Use the following context from the knowledge base to answer questions:",
}

const promptReadme = `# ragline prompts

rag_system.txt        system prompt for answers when no bot sets one
context_preamble.txt  line placed before the numbered context blocks

Edit a file to change how answers are phrased; changes apply on the next
command. Delete a file to restore its default.
`

// NewPromptStore creates a prompt store rooted at dir.
// If dir is empty, defaults to DefaultDir()/prompts.
func NewPromptStore(dir string) (*PromptStore, error) {
	if dir == "" {
		home, err := DefaultDir()
		if err != nil {
			return nil, fmt.Errorf("get home directory: %w", err)
		}
		dir = filepath.Join(home, "prompts")
	}
	return &PromptStore{dir: dir, cache: make(map[string]string)}, nil
}

// Dir returns the prompt directory path.
func (s *PromptStore) Dir() string {
	return s.dir
}

// Load returns the prompt called name.
func (s *PromptStore) Load(name string) (string, error) {
	s.initOnce.Do(s.initialise)

	s.mu.RLock()
	cached, ok := s.cache[name]
	s.mu.RUnlock()
	if ok {
		return cached, nil
	}

	def, known := defaultPrompts[name]
	prompt := def
	if s.initErr == nil {
		data, err := os.ReadFile(filepath.Join(s.dir, name+".txt"))
		switch {
		case err == nil && strings.TrimSpace(string(data)) != "":
			prompt = strings.TrimSpace(string(data))
		case err != nil && !errors.Is(err, fs.ErrNotExist):
			if !known {
				return "", fmt.Errorf("load prompt %q: %w", name, err)
			}
		case !known:
			return "", fmt.Errorf("load prompt %q: %w", name, fs.ErrNotExist)
		}
	} else if !known {
		return "", fmt.Errorf("prompt store init failed: %w", s.initErr)
	}

	s.mu.Lock()
	s.cache[name] = prompt
	s.mu.Unlock()
	return prompt, nil
}

// Reload drops cached prompts so edits on disk are picked up.
func (s *PromptStore) Reload() {
	s.mu.Lock()
	s.cache = make(map[string]string)
	s.mu.Unlock()
}

// initialise writes any missing default files and the README.
func (s *PromptStore) initialise() {
	if err := os.MkdirAll(s.dir, 0o700); err != nil {
		s.initErr = fmt.Errorf("create prompt directory: %w", err)
		return
	}

	files := map[string]string{"README.md": promptReadme}
	for name, content := range defaultPrompts {
		files[name+".txt"] = content + "\n"
	}
	for name, content := range files {
		path := filepath.Join(s.dir, name)
		if _, err := os.Stat(path); err == nil {
			continue
		}
		if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
			s.initErr = fmt.Errorf("create default prompt %q: %w", name, err)
			return
		}
	}
}
