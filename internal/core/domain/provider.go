package domain

import "time"

const unknownDescription = "Unknown"

// ProviderKind identifies the family of an AI provider. The kind is always
// stored explicitly on a ProviderConfig; it is never inferred from a model name.
type ProviderKind string

// Available provider kinds.
const (
	// ProviderOllama is a local Ollama instance.
	ProviderOllama ProviderKind = "ollama"

	// ProviderOpenAI is the OpenAI cloud API.
	ProviderOpenAI ProviderKind = "openai"

	// ProviderAnthropic is the Anthropic cloud API. Generation only.
	ProviderAnthropic ProviderKind = "anthropic"

	// ProviderGoogle is the Gemini API.
	ProviderGoogle ProviderKind = "google"

	// ProviderCustom is a self-hosted OpenAI-compatible endpoint.
	ProviderCustom ProviderKind = "custom"
)

// AllProviderKinds lists every known kind in display order.
var AllProviderKinds = []ProviderKind{
	ProviderOllama, ProviderOpenAI, ProviderAnthropic, ProviderGoogle, ProviderCustom,
}

// ParseProviderKind converts a string into a ProviderKind.
func ParseProviderKind(s string) (ProviderKind, error) {
	k := ProviderKind(s)
	if !k.IsValid() {
		return "", ErrUnsupportedType
	}
	return k, nil
}

// IsValid returns true if the kind is recognised.
func (k ProviderKind) IsValid() bool {
	switch k {
	case ProviderOllama, ProviderOpenAI, ProviderAnthropic, ProviderGoogle, ProviderCustom:
		return true
	default:
		return false
	}
}

// RequiresCredential returns true if calls need an API key.
// Local and self-hosted providers run without one.
func (k ProviderKind) RequiresCredential() bool {
	return k != ProviderOllama && k != ProviderCustom
}

// IsLocal returns true if this provider runs on the user's machine.
func (k ProviderKind) IsLocal() bool {
	return k == ProviderOllama
}

// SupportsEmbedding returns true if the kind can produce embeddings.
func (k ProviderKind) SupportsEmbedding() bool {
	return k.IsValid() && k != ProviderAnthropic
}

// SupportsGeneration returns true if the kind can generate text.
func (k ProviderKind) SupportsGeneration() bool {
	return k.IsValid()
}

// FallbackKind returns the kind tried once when this kind has no credential.
// Only google and openai pair up; everything else has no fallback.
func (k ProviderKind) FallbackKind() (ProviderKind, bool) {
	switch k {
	case ProviderGoogle:
		return ProviderOpenAI, true
	case ProviderOpenAI:
		return ProviderGoogle, true
	default:
		return "", false
	}
}

// String returns the string representation.
func (k ProviderKind) String() string {
	return string(k)
}

// Description returns a human-readable description of the provider.
func (k ProviderKind) Description() string {
	switch k {
	case ProviderOllama:
		return "Ollama (local)"
	case ProviderOpenAI:
		return "OpenAI (cloud)"
	case ProviderAnthropic:
		return "Anthropic (cloud)"
	case ProviderGoogle:
		return "Google Gemini (cloud)"
	case ProviderCustom:
		return "OpenAI-compatible (self-hosted)"
	default:
		return unknownDescription
	}
}

// Scope is the ownership context a credential is stored under.
type Scope string

// Credential scopes.
const (
	ScopeUser      Scope = "user"
	ScopeWorkspace Scope = "workspace"
)

// Purpose selects which capability a provider is resolved for.
type Purpose string

// Resolution purposes.
const (
	PurposeEmbedding  Purpose = "embedding"
	PurposeGeneration Purpose = "generation"
)

// Owner identifies the user and optional workspace a request runs on behalf of.
type Owner struct {
	UserID      string
	WorkspaceID string
}

// TenantID returns the vector index partition for this owner.
func (o Owner) TenantID() string {
	if o.WorkspaceID == "" {
		return DefaultTenant
	}
	return o.WorkspaceID
}

// DefaultTenant is the partition used for documents outside any workspace.
const DefaultTenant = "default"

// ProviderConfig is a stored provider credential under a user or workspace.
type ProviderConfig struct {
	ID          string
	Kind        ProviderKind
	Scope       Scope
	ScopeID     string
	DisplayName string

	// Credential is the API key. Empty for local providers.
	Credential string

	// BaseURL overrides the provider endpoint (required for custom).
	BaseURL string

	// Models restricts which models this config serves. Empty means any.
	Models []string

	IsActive  bool
	CreatedAt time.Time
}

// ServesModel returns true if the config is usable for model.
func (c *ProviderConfig) ServesModel(model string) bool {
	if len(c.Models) == 0 || model == "" {
		return true
	}
	for _, m := range c.Models {
		if m == model {
			return true
		}
	}
	return false
}

// ProviderBinding is the resolved provider for a single call. Not persisted.
type ProviderBinding struct {
	// ConfigID is the ProviderConfig that supplied the credential, if any.
	ConfigID string

	Kind    ProviderKind
	Model   string
	BaseURL string

	// Credential is empty when RequiresCredential is false or none was found.
	Credential         string
	RequiresCredential bool

	// Scope records where the credential was found.
	Scope   Scope
	ScopeID string
}

// HasCredential returns true if the binding can be called as-is.
func (b ProviderBinding) HasCredential() bool {
	return !b.RequiresCredential || b.Credential != ""
}
