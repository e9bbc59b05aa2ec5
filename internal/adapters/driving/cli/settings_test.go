package cli

import (
	"errors"
	"strconv"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/custodia-labs/epicrisis/internal/core/domain"
)

func TestMaskAPIKey(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		expected string
	}{
		{"Short key", "abc123", "****"},
		{"Exactly 8 chars", "12345678", "****"},
		{"Long key", "sk-1234567890abcdef", "sk-1...cdef"},
		{"Empty key", "", "****"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, maskAPIKey(tt.input))
		})
	}
}

func TestParseChoice(t *testing.T) {
	tests := []struct {
		name       string
		input      string
		maxVal     int
		defaultVal int
		expected   int
	}{
		{"Empty input returns default", "", 5, 1, 1},
		{"Valid choice within range", "3", 5, 1, 3},
		{"Choice below minimum returns default", "0", 5, 1, 1},
		{"Choice above maximum returns default", "6", 5, 1, 1},
		{"Non-numeric returns default", "abc", 5, 2, 2},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, parseChoice(tt.input, tt.maxVal, tt.defaultVal))
		})
	}
}

func TestReadPassword_NonTerminal(t *testing.T) {
	assert.Equal(t, "sk-secret", readPassword(strings.NewReader("  sk-secret \nrest")))
	assert.Equal(t, "", readPassword(strings.NewReader("")))
}

func TestSettingsShow(t *testing.T) {
	s := setupTestServices(t)
	s.settings.settings.LLM = domain.LLMSettings{
		Provider: domain.AIProviderOpenAI,
		Model:    "gpt-4o-mini",
		APIKey:   "sk-1234567890abcdef",
	}
	s.settings.settings.Storage = domain.StorageSettings{
		Backend:     domain.StoragePostgres,
		DatabaseURL: "postgres://user:pass@db/epicrisis",
	}

	out, err := execute(t, "", "settings", "show")

	require.NoError(t, err)
	assert.Contains(t, out, "[LLM]")
	assert.Contains(t, out, "gpt-4o-mini")
	assert.Contains(t, out, "sk-1...cdef")
	assert.NotContains(t, out, "sk-1234567890abcdef")
	assert.NotContains(t, out, "user:pass")
	assert.Contains(t, out, "Backend: postgres")
	assert.Contains(t, out, "Few-shot count: 3")
	assert.Contains(t, out, "Configuration is valid.")
}

func TestSettingsShow_ValidationWarning(t *testing.T) {
	s := setupTestServices(t)
	s.settings.validateErr = errors.New("LLM provider not configured")

	out, err := execute(t, "", "settings")

	require.NoError(t, err)
	assert.Contains(t, out, "Warning: LLM provider not configured")
	assert.Contains(t, out, "Provider: (not set)")
}

func TestSettingsSet(t *testing.T) {
	s := setupTestServices(t)

	out, err := execute(t, "", "settings", "set", "generation.few_shot_count", "5")

	require.NoError(t, err)
	assert.Equal(t, "5", s.settings.set["generation.few_shot_count"])
	assert.Contains(t, out, "Set generation.few_shot_count = 5")
}

func TestSettingsSet_MasksSecrets(t *testing.T) {
	setupTestServices(t)

	out, err := execute(t, "", "settings", "set", "llm.api_key", "sk-1234567890abcdef")

	require.NoError(t, err)
	assert.NotContains(t, out, "sk-1234567890abcdef")
	assert.Contains(t, out, "sk-1...cdef")
}

func TestSettingsSet_Error(t *testing.T) {
	s := setupTestServices(t)
	s.settings.setErr = domain.ErrInvalidInput

	_, err := execute(t, "", "settings", "set", "nope", "1")

	assert.ErrorIs(t, err, domain.ErrInvalidInput)
}

func TestSettingsSet_RequiresTwoArgs(t *testing.T) {
	setupTestServices(t)

	_, err := execute(t, "", "settings", "set", "llm.model")

	assert.Error(t, err)
}

func TestSettingsSetKey(t *testing.T) {
	s := setupTestServices(t)
	s.settings.settings.LLM = domain.LLMSettings{Provider: domain.AIProviderAnthropic, Model: "claude-3-5-haiku-latest"}

	out, err := execute(t, "sk-ant-0123456789\n", "settings", "set-key", "llm")

	require.NoError(t, err)
	require.Len(t, s.settings.llmCalls, 1)
	assert.Equal(t, providerCall{domain.AIProviderAnthropic, "claude-3-5-haiku-latest", "sk-ant-0123456789"},
		s.settings.llmCalls[0])
	assert.NotContains(t, out, "sk-ant-0123456789")
}

func TestSettingsSetKey_Errors(t *testing.T) {
	tests := []struct {
		name     string
		provider domain.AIProvider
		target   string
		stdin    string
	}{
		{"local provider", domain.AIProviderOllama, "llm", "key\n"},
		{"unknown target", domain.AIProviderOpenAI, "vector", "key\n"},
		{"empty key", domain.AIProviderOpenAI, "llm", "\n"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := setupTestServices(t)
			s.settings.settings.LLM.Provider = tt.provider

			_, err := execute(t, tt.stdin, "settings", "set-key", tt.target)

			assert.Error(t, err)
			assert.Empty(t, s.settings.llmCalls)
		})
	}
}

func TestSettingsLLM_Interactive(t *testing.T) {
	s := setupTestServices(t)
	providers := domain.AllLLMProviders()
	choice := -1
	for i, p := range providers {
		if p == domain.AIProviderOllama {
			choice = i + 1
		}
	}
	require.Positive(t, choice)

	out, err := execute(t, strconv.Itoa(choice)+"\nllama3.1\n", "settings", "llm")

	require.NoError(t, err)
	require.Len(t, s.settings.llmCalls, 1)
	assert.Equal(t, domain.AIProviderOllama, s.settings.llmCalls[0].provider)
	assert.Equal(t, "llama3.1", s.settings.llmCalls[0].model)
	assert.Contains(t, out, "Validating configuration... OK")
}

func TestSettingsEmbedding_ValidationFails(t *testing.T) {
	s := setupTestServices(t)
	s.settings.pingErr = domain.ErrEmbeddingUnavailable

	_, err := execute(t, "\n\nsk-1234567890abcdef\n", "settings", "embedding")

	assert.ErrorIs(t, err, domain.ErrEmbeddingUnavailable)
}

func TestSettings_ServiceNotConfigured(t *testing.T) {
	SetServices(Services{})

	_, err := execute(t, "", "settings", "show")

	assert.EqualError(t, err, "settings service not configured")
}
