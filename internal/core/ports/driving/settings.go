package driving

import "github.com/custodia-labs/epicrisis/internal/core/domain"

// SettingsService owns the epicrisis configuration, from the LLM that drafts
// narratives and the embedding model behind the exemplar index down to
// generation retries and rule data. Values come from config.toml with
// EPICRISIS_* environment overrides on top.
type SettingsService interface {
	Get() (*domain.AppSettings, error)
	Save(settings *domain.AppSettings) error

	// Set updates one dotted key, e.g. "generation.max_retries".
	Set(key, value string) error

	// SetEmbeddingProvider selects the exemplar embedding backend.
	// Anthropic is not accepted since it has no embedding endpoint.
	SetEmbeddingProvider(provider domain.AIProvider, model, apiKey string) error

	// SetLLMProvider selects the narrative backend: ollama, openai or anthropic.
	SetLLMProvider(provider domain.AIProvider, model, apiKey string) error

	Validate() error
	GetDefaults() domain.AppSettings

	// ValidateEmbeddingConfig and ValidateLLMConfig ping the stored backends.
	ValidateEmbeddingConfig() error
	ValidateLLMConfig() error
}
