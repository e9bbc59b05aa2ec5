// Package ai provides factory functions for creating AI service adapters.
package ai

import (
	"context"
	"fmt"
	"time"

	ollamaembed "github.com/custodia-labs/epicrisis/internal/adapters/driven/embedding/ollama"
	openaiembed "github.com/custodia-labs/epicrisis/internal/adapters/driven/embedding/openai"
	anthropicllm "github.com/custodia-labs/epicrisis/internal/adapters/driven/llm/anthropic"
	ollamallm "github.com/custodia-labs/epicrisis/internal/adapters/driven/llm/ollama"
	openaillm "github.com/custodia-labs/epicrisis/internal/adapters/driven/llm/openai"
	"github.com/custodia-labs/epicrisis/internal/adapters/driven/llm/throttle"
	"github.com/custodia-labs/epicrisis/internal/adapters/driven/vector/qdrant"
	"github.com/custodia-labs/epicrisis/internal/core/domain"
	"github.com/custodia-labs/epicrisis/internal/core/ports/driven"
	"github.com/custodia-labs/epicrisis/internal/logger"
)

// pingTimeout is the maximum time to wait for service connectivity validation.
const pingTimeout = 5 * time.Second

// InitResult contains the result of AI service initialisation.
type InitResult struct {
	EmbeddingService driven.EmbeddingService
	LLMService       driven.LLMService
	ExemplarIndex    driven.ExemplarIndex
	Warnings         []string // Non-fatal issues that caused fallback.
	FellBack         bool     // True if a configured collaborator was dropped.
}

// Close releases all resources held by InitResult.
func (r *InitResult) Close() {
	if r.EmbeddingService != nil {
		_ = r.EmbeddingService.Close()
	}
	if r.ExemplarIndex != nil {
		_ = r.ExemplarIndex.Close()
	}
	if r.LLMService != nil {
		_ = r.LLMService.Close()
	}
}

func (r *InitResult) warn(format string, args ...any) {
	msg := fmt.Sprintf(format, args...)
	r.Warnings = append(r.Warnings, msg)
	r.FellBack = true
	logger.Warn("%s", msg)
}

// Init builds the LLM, embedding and exemplar index collaborators.
// Nothing here is fatal: a collaborator that cannot be built or reached is
// left nil with a warning, and generation degrades accordingly.
// local is the store-backed index used when the vector backend is sqlite.
func Init(settings *domain.AppSettings, local driven.ExemplarIndex) *InitResult {
	result := &InitResult{}
	if settings == nil {
		return result
	}

	llm, err := CreateAndValidateLLMService(&settings.LLM)
	if err != nil {
		result.warn("LLM disabled: %v", err)
	}
	if llm != nil {
		result.LLMService = throttle.Wrap(llm, throttle.Config{RequestsPerSecond: settings.LLM.RequestsPerSecond})
	}

	if !settings.Generation.RAGEnabled {
		return result
	}

	embedder, err := CreateAndValidateEmbeddingService(&settings.Embedding)
	if err != nil {
		result.warn("exemplar retrieval disabled: %v", err)
	}
	if embedder == nil {
		return result
	}
	result.EmbeddingService = embedder

	index, err := CreateExemplarIndex(&settings.VectorIndex, embedder.Dimensions(), local)
	if err != nil {
		result.warn("exemplar retrieval disabled: %v", err)
	}
	result.ExemplarIndex = index
	return result
}

// CreateExemplarIndex selects the exemplar index for the configured backend.
// Returns nil for the none backend.
func CreateExemplarIndex(settings *domain.VectorIndexSettings, dims int, local driven.ExemplarIndex) (driven.ExemplarIndex, error) {
	if settings == nil {
		return local, nil
	}
	switch settings.Backend {
	case domain.VectorBackendNone:
		return nil, nil
	case domain.VectorBackendQdrant:
		if settings.URL == "" {
			return nil, fmt.Errorf("%w: qdrant backend requires vector_index.url", domain.ErrVectorIndexUnavailable)
		}
		index, err := qdrant.New(qdrant.Config{
			URL:        settings.URL,
			Collection: settings.Collection,
			APIKey:     settings.APIKey,
			Dimensions: dims,
		})
		if err != nil {
			return nil, err
		}
		return index, nil
	case domain.VectorBackendSQLite, "":
		if local == nil {
			return nil, fmt.Errorf("%w: no local index available", domain.ErrVectorIndexUnavailable)
		}
		return local, nil
	default:
		return nil, fmt.Errorf("%w: vector backend %q", domain.ErrUnsupportedType, settings.Backend)
	}
}

// CreateAndValidateEmbeddingService creates an embedding service and validates connectivity.
// Returns the service if successful, or an error with guidance.
func CreateAndValidateEmbeddingService(settings *domain.EmbeddingSettings) (driven.EmbeddingService, error) {
	if settings == nil || !settings.IsConfigured() {
		return nil, nil
	}

	svc, err := CreateEmbeddingService(settings)
	if err != nil {
		return nil, fmt.Errorf("%w: %w. Run 'epicrisis settings set embedding.provider' to fix",
			domain.ErrEmbeddingUnavailable, err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), pingTimeout)
	defer cancel()

	if err := svc.Ping(ctx); err != nil {
		_ = svc.Close()
		return nil, fmt.Errorf("%w: service unreachable (%w)", domain.ErrEmbeddingUnavailable, err)
	}
	return svc, nil
}

// CreateAndValidateLLMService creates an LLM service and validates connectivity.
// Returns the service if successful, or an error with guidance.
func CreateAndValidateLLMService(settings *domain.LLMSettings) (driven.LLMService, error) {
	if settings == nil || !settings.IsConfigured() {
		return nil, nil
	}

	svc, err := CreateLLMService(settings)
	if err != nil {
		return nil, fmt.Errorf("%w: %w. Run 'epicrisis settings set llm.provider' to fix",
			domain.ErrLLMUnavailable, err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), pingTimeout)
	defer cancel()

	if err := svc.Ping(ctx); err != nil {
		_ = svc.Close()
		return nil, fmt.Errorf("%w: service unreachable (%w)", domain.ErrLLMUnavailable, err)
	}
	return svc, nil
}

// ValidateEmbeddingConfig validates an embedding configuration by creating a service and pinging it.
func ValidateEmbeddingConfig(settings *domain.EmbeddingSettings) error {
	if settings == nil || !settings.IsConfigured() {
		return nil
	}

	svc, err := CreateEmbeddingService(settings)
	if err != nil {
		return err
	}
	defer svc.Close()

	ctx, cancel := context.WithTimeout(context.Background(), pingTimeout)
	defer cancel()
	return svc.Ping(ctx)
}

// ValidateLLMConfig validates an LLM configuration by creating a service and pinging it.
func ValidateLLMConfig(settings *domain.LLMSettings) error {
	if settings == nil || !settings.IsConfigured() {
		return nil
	}

	svc, err := CreateLLMService(settings)
	if err != nil {
		return err
	}
	defer svc.Close()

	ctx, cancel := context.WithTimeout(context.Background(), pingTimeout)
	defer cancel()
	return svc.Ping(ctx)
}

// CreateEmbeddingService creates the appropriate embedding service based on settings.
// Returns nil if the provider is not configured.
func CreateEmbeddingService(settings *domain.EmbeddingSettings) (driven.EmbeddingService, error) {
	if settings == nil || !settings.IsConfigured() {
		return nil, nil
	}

	dimensions := domain.EmbeddingDimensions()[settings.Model]
	switch settings.Provider {
	case domain.AIProviderOllama:
		return ollamaembed.NewEmbeddingService(ollamaembed.Config{
			BaseURL:    settings.BaseURL,
			Model:      settings.Model,
			Dimensions: dimensions,
		}), nil
	case domain.AIProviderOpenAI:
		svc, err := openaiembed.NewEmbeddingService(openaiembed.Config{
			APIKey:     settings.APIKey,
			BaseURL:    settings.BaseURL,
			Model:      settings.Model,
			Dimensions: dimensions,
		})
		if err != nil {
			return nil, err
		}
		return svc, nil
	default:
		return nil, fmt.Errorf("%w: embedding provider %s", domain.ErrUnsupportedType, settings.Provider)
	}
}

// CreateLLMService creates the appropriate LLM service based on settings.
// Returns nil if the provider is not configured.
func CreateLLMService(settings *domain.LLMSettings) (driven.LLMService, error) {
	if settings == nil || !settings.IsConfigured() {
		return nil, nil
	}

	switch settings.Provider {
	case domain.AIProviderOllama:
		return ollamallm.NewLLMService(ollamallm.LLMConfig{
			BaseURL: settings.BaseURL,
			Model:   settings.Model,
			Timeout: settings.Timeout,
		}), nil
	case domain.AIProviderOpenAI:
		svc, err := openaillm.NewLLMService(openaillm.LLMConfig{
			APIKey:  settings.APIKey,
			BaseURL: settings.BaseURL,
			Model:   settings.Model,
			Timeout: settings.Timeout,
		})
		if err != nil {
			return nil, err
		}
		return svc, nil
	case domain.AIProviderAnthropic:
		svc, err := anthropicllm.NewLLMService(anthropicllm.Config{
			APIKey:  settings.APIKey,
			BaseURL: settings.BaseURL,
			Model:   settings.Model,
			Timeout: settings.Timeout,
		})
		if err != nil {
			return nil, err
		}
		return svc, nil
	default:
		return nil, fmt.Errorf("%w: LLM provider %s", domain.ErrUnsupportedType, settings.Provider)
	}
}
