package ai

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/custodia-labs/epicrisis/internal/core/domain"
)

func TestConfigValidator_NothingToReach(t *testing.T) {
	v := NewConfigValidator()

	assert.NoError(t, v.ValidateEmbedding(nil))
	assert.NoError(t, v.ValidateEmbedding(&domain.EmbeddingSettings{Model: "nomic-embed-text"}))
	assert.NoError(t, v.ValidateLLM(nil))
	assert.NoError(t, v.ValidateLLM(&domain.LLMSettings{Provider: domain.AIProviderOpenAI}))
}

func TestConfigValidator_Pings(t *testing.T) {
	srv := ollamaServer(t)
	v := NewConfigValidator()

	assert.NoError(t, v.ValidateLLM(&domain.LLMSettings{Provider: domain.AIProviderOllama, BaseURL: srv.URL}))
	assert.NoError(t, v.ValidateEmbedding(&domain.EmbeddingSettings{Provider: domain.AIProviderOllama, BaseURL: srv.URL}))
	assert.Error(t, v.ValidateLLM(&domain.LLMSettings{Provider: domain.AIProviderOllama, BaseURL: deadURL(t)}))
}

func TestConfigValidator_NamesTheFailingBackend(t *testing.T) {
	v := NewConfigValidator()

	err := v.ValidateEmbedding(&domain.EmbeddingSettings{Provider: domain.AIProviderOllama, BaseURL: deadURL(t)})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "exemplar embedding backend ollama")

	err = v.ValidateLLM(&domain.LLMSettings{Provider: domain.AIProviderOllama, BaseURL: deadURL(t)})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "narrative backend ollama")
}
