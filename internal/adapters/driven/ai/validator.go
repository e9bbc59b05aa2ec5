package ai

import (
	"fmt"

	"github.com/custodia-labs/epicrisis/internal/core/domain"
	"github.com/custodia-labs/epicrisis/internal/core/ports/driven"
)

var _ driven.AIConfigValidator = (*ConfigValidator)(nil)

// ConfigValidator is what `epicrisis settings llm` and `settings embedding`
// run before saving. It builds the ollama, openai or anthropic adapter from
// the candidate settings and pings it, so a broken backend is reported at
// configuration time instead of in the middle of an EPC generation.
type ConfigValidator struct{}

// NewConfigValidator returns a validator backed by the provider factory.
func NewConfigValidator() *ConfigValidator {
	return &ConfigValidator{}
}

// ValidateEmbedding checks the backend that embeds exemplar EPCs for the
// similarity index. An unset provider, or anthropic which has no embedding
// API, passes; drafts are then generated without exemplars.
func (v *ConfigValidator) ValidateEmbedding(config *domain.EmbeddingSettings) error {
	if err := ValidateEmbeddingConfig(config); err != nil {
		return fmt.Errorf("exemplar embedding backend %s: %w", config.Provider, err)
	}
	return nil
}

// ValidateLLM checks the backend that drafts discharge narratives.
// An unset provider passes; generation then fails with ErrLLMUnavailable.
func (v *ConfigValidator) ValidateLLM(config *domain.LLMSettings) error {
	if err := ValidateLLMConfig(config); err != nil {
		return fmt.Errorf("narrative backend %s: %w", config.Provider, err)
	}
	return nil
}
