package driven

import "github.com/custodia-labs/epicrisis/internal/core/domain"

// AIConfigValidator reaches the configured model backends before their
// settings are stored. The narrative generator needs an LLM (ollama, openai
// or anthropic) and the exemplar index needs an embedding model (ollama or
// openai). A nil error for an unset provider means "not configured", not
// "reachable".
type AIConfigValidator interface {
	ValidateEmbedding(config *domain.EmbeddingSettings) error
	ValidateLLM(config *domain.LLMSettings) error
}
