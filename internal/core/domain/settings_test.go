package domain

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

// TestAIProvider_IsValid tests recognised providers
func TestAIProvider_IsValid(t *testing.T) {
	tests := []struct {
		name     string
		provider AIProvider
		expected bool
	}{
		{name: "ollama is valid", provider: AIProviderOllama, expected: true},
		{name: "openai is valid", provider: AIProviderOpenAI, expected: true},
		{name: "anthropic is valid", provider: AIProviderAnthropic, expected: true},
		{name: "empty is invalid", provider: AIProvider(""), expected: false},
		{name: "unknown is invalid", provider: AIProvider("mistral"), expected: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, tt.provider.IsValid())
		})
	}
}

func TestAIProvider_RequiresAPIKey(t *testing.T) {
	assert.False(t, AIProviderOllama.RequiresAPIKey())
	assert.True(t, AIProviderOpenAI.RequiresAPIKey())
	assert.True(t, AIProviderAnthropic.RequiresAPIKey())
	assert.True(t, AIProviderOllama.IsLocal())
}

func TestLLMSettings_IsConfigured(t *testing.T) {
	tests := []struct {
		name     string
		settings LLMSettings
		expected bool
	}{
		{name: "empty", settings: LLMSettings{}, expected: false},
		{name: "ollama without key", settings: LLMSettings{Provider: AIProviderOllama}, expected: true},
		{name: "openai without key", settings: LLMSettings{Provider: AIProviderOpenAI}, expected: false},
		{name: "openai with key", settings: LLMSettings{Provider: AIProviderOpenAI, APIKey: "sk"}, expected: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, tt.settings.IsConfigured())
		})
	}
}

func TestEmbeddingSettings_AnthropicNotSupported(t *testing.T) {
	s := EmbeddingSettings{Provider: AIProviderAnthropic, APIKey: "key"}
	assert.False(t, s.IsConfigured())
}

func TestDefaultAppSettings(t *testing.T) {
	s := DefaultAppSettings()

	assert.False(t, s.LLM.IsConfigured())
	assert.Equal(t, StorageSQLite, s.Storage.Backend)
	assert.Equal(t, VectorBackendSQLite, s.VectorIndex.Backend)
	assert.True(t, s.Generation.RAGEnabled)
	assert.Equal(t, 3, s.Generation.FewShotCount)
	assert.Positive(t, s.Generation.SectionConcurrency)
	assert.Positive(t, s.Generation.SectionTimeout)
}

func TestBackends_IsValid(t *testing.T) {
	assert.True(t, StoragePostgres.IsValid())
	assert.False(t, StorageBackend("mysql").IsValid())
	assert.True(t, VectorBackendQdrant.IsValid())
	assert.False(t, VectorBackend("faiss").IsValid())
}
