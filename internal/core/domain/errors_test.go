package domain

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestErrors_Existence(t *testing.T) {
	tests := []struct {
		name string
		err  error
	}{
		{"ErrNotFound", ErrNotFound},
		{"ErrInvalidInput", ErrInvalidInput},
		{"ErrUnsupportedType", ErrUnsupportedType},
		{"ErrExtractionDegraded", ErrExtractionDegraded},
		{"ErrExtractionFailed", ErrExtractionFailed},
		{"ErrParse", ErrParse},
		{"ErrGenerationFailed", ErrGenerationFailed},
		{"ErrValidationContradiction", ErrValidationContradiction},
		{"ErrConcurrentRun", ErrConcurrentRun},
		{"ErrPersistence", ErrPersistence},
		{"ErrLLMUnavailable", ErrLLMUnavailable},
		{"ErrEmbeddingUnavailable", ErrEmbeddingUnavailable},
		{"ErrVectorIndexUnavailable", ErrVectorIndexUnavailable},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.NotNil(t, tt.err)
			assert.NotEmpty(t, tt.err.Error())
		})
	}
}

func TestErrors_Wrapping(t *testing.T) {
	wrapped := fmt.Errorf("save version: %w", ErrPersistence)
	assert.True(t, errors.Is(wrapped, ErrPersistence))
	assert.False(t, errors.Is(wrapped, ErrNotFound))
}

func TestGenerationError_Is(t *testing.T) {
	tests := []struct {
		kind     GenerationErrorKind
		sentinel error
	}{
		{GenerationTimeout, ErrGenerationTimeout},
		{GenerationQuotaExceeded, ErrQuotaExceeded},
		{GenerationProviderError, ErrProviderError},
	}

	for _, tt := range tests {
		t.Run(string(tt.kind), func(t *testing.T) {
			err := fmt.Errorf("section evolution: %w", NewGenerationError(tt.kind, "openai", nil))
			assert.True(t, errors.Is(err, tt.sentinel))

			ge, ok := AsGenerationError(err)
			require.True(t, ok)
			assert.Equal(t, tt.kind, ge.Kind)
			assert.Equal(t, "openai", ge.Provider)
		})
	}
}

func TestGenerationError_Unwrap(t *testing.T) {
	err := NewGenerationError(GenerationTimeout, "ollama", context.DeadlineExceeded)
	assert.True(t, errors.Is(err, context.DeadlineExceeded))
	assert.Contains(t, err.Error(), "ollama: timeout")
}

func TestGenerationError_Message(t *testing.T) {
	err := &GenerationError{Kind: GenerationQuotaExceeded, Provider: "anthropic", Status: 429}
	assert.Equal(t, "anthropic: quota_exceeded (status 429)", err.Error())
}

func TestAsGenerationError_NotPresent(t *testing.T) {
	_, ok := AsGenerationError(errors.New("plain"))
	assert.False(t, ok)
}
