package driven

// PromptStore provides access to LLM prompt templates.
// Implementations may load prompts from files or embed them in the binary.
type PromptStore interface {
	// Load returns the prompt template for the given name, falling back to
	// the built-in default when no override exists.
	Load(name string) (string, error)

	// Reload clears any cached prompts, forcing fresh loads on next access.
	Reload()
}

// Well-known prompt names.
const (
	// PromptRAGSystem is the system prompt used when no bot supplies one.
	PromptRAGSystem = "rag_system"

	// PromptContextPreamble introduces the numbered context blocks appended
	// to the system prompt.
	PromptContextPreamble = "context_preamble"
)

// PromptStoreAware is implemented by services whose prompts can be
// customised after construction.
type PromptStoreAware interface {
	// SetPromptStore sets the prompt store. Without one, built-in prompts apply.
	SetPromptStore(store PromptStore)
}
