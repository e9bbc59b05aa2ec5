package domain

import "time"

const unknownDescription = "Unknown"

// AIProvider identifies an AI service provider for embeddings or LLM.
type AIProvider string

// Available AI providers.
const (
	// AIProviderOllama is a local Ollama instance.
	AIProviderOllama AIProvider = "ollama"

	// AIProviderOpenAI is the OpenAI cloud API.
	AIProviderOpenAI AIProvider = "openai"

	// AIProviderAnthropic is the Anthropic cloud API.
	AIProviderAnthropic AIProvider = "anthropic"
)

// IsValid returns true if the AI provider is recognised.
func (p AIProvider) IsValid() bool {
	switch p {
	case AIProviderOllama, AIProviderOpenAI, AIProviderAnthropic:
		return true
	default:
		return false
	}
}

// RequiresAPIKey returns true if this provider needs an API key.
func (p AIProvider) RequiresAPIKey() bool {
	return p == AIProviderOpenAI || p == AIProviderAnthropic
}

// IsLocal returns true if this provider runs locally.
func (p AIProvider) IsLocal() bool {
	return p == AIProviderOllama
}

// String returns the string representation.
func (p AIProvider) String() string {
	return string(p)
}

// Description returns a human-readable description of the provider.
func (p AIProvider) Description() string {
	switch p {
	case AIProviderOllama:
		return "Ollama (local)"
	case AIProviderOpenAI:
		return "OpenAI (cloud)"
	case AIProviderAnthropic:
		return "Anthropic (cloud)"
	default:
		return unknownDescription
	}
}

// LLMSettings holds LLM provider configuration.
type LLMSettings struct {
	Provider AIProvider
	Model    string

	// BaseURL is the API endpoint. Empty uses the provider default.
	BaseURL string

	// APIKey is the API key (for OpenAI/Anthropic).
	APIKey string

	// Timeout bounds a single HTTP call.
	Timeout time.Duration

	// RequestsPerSecond throttles provider calls. Zero disables throttling.
	RequestsPerSecond float64
}

// IsConfigured returns true if the LLM provider is set up.
func (l LLMSettings) IsConfigured() bool {
	if !l.Provider.IsValid() {
		return false
	}
	if l.Provider.RequiresAPIKey() && l.APIKey == "" {
		return false
	}
	return true
}

// EmbeddingSettings holds embedding provider configuration.
type EmbeddingSettings struct {
	Provider AIProvider
	Model    string
	BaseURL  string
	APIKey   string
}

// IsConfigured returns true if the embedding provider is set up.
func (e EmbeddingSettings) IsConfigured() bool {
	if e.Provider != AIProviderOllama && e.Provider != AIProviderOpenAI {
		return false
	}
	if e.Provider.RequiresAPIKey() && e.APIKey == "" {
		return false
	}
	return true
}

// VectorBackend selects where exemplar vectors live.
type VectorBackend string

// Vector backends.
const (
	VectorBackendSQLite VectorBackend = "sqlite"
	VectorBackendQdrant VectorBackend = "qdrant"
	VectorBackendNone   VectorBackend = "none"
)

// IsValid returns true if the backend is recognised.
func (b VectorBackend) IsValid() bool {
	switch b {
	case VectorBackendSQLite, VectorBackendQdrant, VectorBackendNone:
		return true
	default:
		return false
	}
}

// VectorIndexSettings holds exemplar index configuration.
type VectorIndexSettings struct {
	Backend    VectorBackend
	URL        string
	Collection string
	APIKey     string
}

// StorageBackend selects where versions and history are kept.
type StorageBackend string

// Storage backends.
const (
	StorageSQLite   StorageBackend = "sqlite"
	StoragePostgres StorageBackend = "postgres"
	StorageMemory   StorageBackend = "memory"
)

// IsValid returns true if the backend is recognised.
func (b StorageBackend) IsValid() bool {
	switch b {
	case StorageSQLite, StoragePostgres, StorageMemory:
		return true
	default:
		return false
	}
}

// StorageSettings holds persistence configuration.
type StorageSettings struct {
	Backend StorageBackend

	// DataDir holds the SQLite database. Empty means ~/.epicrisis/data.
	DataDir string

	// DatabaseURL is the Postgres connection string.
	DatabaseURL string
}

// GenerationSettings controls the generation pipeline.
type GenerationSettings struct {
	RAGEnabled         bool
	FewShotCount       int
	SectionConcurrency int
	MaxRetries         int
	SectionTimeout     time.Duration
}

// RuleSettings points at an alternative rule table file.
type RuleSettings struct {
	TablesPath string
}

// PromptSettings controls prompt templates.
type PromptSettings struct {
	Dir   string
	Watch bool
}

// AppSettings holds all application settings.
type AppSettings struct {
	LLM         LLMSettings
	Embedding   EmbeddingSettings
	VectorIndex VectorIndexSettings
	Storage     StorageSettings
	Generation  GenerationSettings
	Rules       RuleSettings
	Prompts     PromptSettings
}

// DefaultGenerationSettings returns the pipeline defaults.
func DefaultGenerationSettings() GenerationSettings {
	return GenerationSettings{
		RAGEnabled:         true,
		FewShotCount:       3,
		SectionConcurrency: 4,
		MaxRetries:         2,
		SectionTimeout:     90 * time.Second,
	}
}

// DefaultAppSettings returns settings with sensible defaults.
// AI providers are left unconfigured until the user sets them.
func DefaultAppSettings() AppSettings {
	return AppSettings{
		LLM:       LLMSettings{Timeout: 60 * time.Second},
		Embedding: EmbeddingSettings{},
		VectorIndex: VectorIndexSettings{
			Backend:    VectorBackendSQLite,
			Collection: "epc_exemplars",
		},
		Storage:    StorageSettings{Backend: StorageSQLite},
		Generation: DefaultGenerationSettings(),
	}
}

// AllEmbeddingProviders returns providers that support embeddings.
func AllEmbeddingProviders() []AIProvider {
	return []AIProvider{
		AIProviderOllama,
		AIProviderOpenAI,
	}
}

// AllLLMProviders returns providers that support LLM operations.
func AllLLMProviders() []AIProvider {
	return []AIProvider{
		AIProviderOllama,
		AIProviderOpenAI,
		AIProviderAnthropic,
	}
}

// DefaultEmbeddingModels returns default models for each embedding provider.
func DefaultEmbeddingModels() map[AIProvider]string {
	return map[AIProvider]string{
		AIProviderOllama: "nomic-embed-text",
		AIProviderOpenAI: "text-embedding-3-small",
	}
}

// DefaultLLMModels returns default models for each LLM provider.
func DefaultLLMModels() map[AIProvider]string {
	return map[AIProvider]string{
		AIProviderOllama:    "llama3.2",
		AIProviderOpenAI:    "gpt-4o-mini",
		AIProviderAnthropic: "claude-3-5-sonnet-latest",
	}
}

// EmbeddingDimensions returns the vector dimensions for known models.
func EmbeddingDimensions() map[string]int {
	return map[string]int{
		// Ollama models
		"nomic-embed-text":  768,
		"mxbai-embed-large": 1024,
		"all-minilm":        384,
		// OpenAI models
		"text-embedding-3-small": 1536,
		"text-embedding-3-large": 3072,
		"text-embedding-ada-002": 1536,
	}
}
