package domain

import (
	"errors"
	"fmt"
)

// Domain errors represent business logic failures.
// These are distinct from infrastructure errors.
var (
	// ErrNotFound indicates a requested entity does not exist.
	ErrNotFound = errors.New("not found")

	// ErrAlreadyExists indicates an entity already exists.
	ErrAlreadyExists = errors.New("already exists")

	// ErrInvalidInput indicates malformed or invalid input.
	ErrInvalidInput = errors.New("invalid input")

	// ErrUnsupportedType indicates an unknown source type or backend.
	ErrUnsupportedType = errors.New("unsupported type")

	// Extraction Errors.

	// ErrExtractionDegraded indicates extraction fell back to a free-text scan.
	// It is recorded as a warning on the run, never returned from Generate.
	ErrExtractionDegraded = errors.New("extraction degraded")

	// ErrExtractionFailed indicates no usable text or structure could be extracted.
	ErrExtractionFailed = errors.New("extraction failed")

	// Generation Errors.

	// ErrGenerationTimeout indicates a provider call exceeded its deadline.
	ErrGenerationTimeout = errors.New("generation timeout")

	// ErrQuotaExceeded indicates the provider rejected the call for quota or rate reasons.
	ErrQuotaExceeded = errors.New("provider quota exceeded")

	// ErrProviderError indicates any other provider-side failure.
	ErrProviderError = errors.New("provider error")

	// ErrParse indicates the model output could not be parsed into the section shape.
	ErrParse = errors.New("unparseable model output")

	// ErrGenerationFailed indicates every provider-backed section failed.
	ErrGenerationFailed = errors.New("generation failed for all sections")

	// Validation Errors.

	// ErrValidationContradiction marks the family of rules that detect generated
	// text contradicting rule facts. It appears in reports, not as a returned error.
	ErrValidationContradiction = errors.New("validation contradiction")

	// Run Errors.

	// ErrConcurrentRun indicates a run is already in flight for the episode.
	ErrConcurrentRun = errors.New("generation already in progress for episode")

	// ErrPersistence indicates the version store could not commit.
	ErrPersistence = errors.New("persistence failed")

	// Collaborator Errors.

	// ErrLLMUnavailable indicates the LLM service is not configured.
	ErrLLMUnavailable = errors.New("LLM service unavailable")

	// ErrEmbeddingUnavailable indicates the embedding service is not configured.
	// Exemplar retrieval is disabled without embeddings.
	ErrEmbeddingUnavailable = errors.New("embedding service unavailable")

	// ErrVectorIndexUnavailable indicates the exemplar index is not configured.
	ErrVectorIndexUnavailable = errors.New("vector index unavailable")

	// ErrRateLimited indicates a local throttle refused to wait any longer.
	ErrRateLimited = errors.New("rate limited")
)

// GenerationErrorKind classifies a provider failure.
type GenerationErrorKind string

// Generation error kinds.
const (
	GenerationTimeout       GenerationErrorKind = "timeout"
	GenerationQuotaExceeded GenerationErrorKind = "quota_exceeded"
	GenerationProviderError GenerationErrorKind = "provider_error"
)

// GenerationError is returned by LLM adapters when a completion fails.
type GenerationError struct {
	Kind     GenerationErrorKind
	Provider string
	Status   int
	Err      error
}

// NewGenerationError builds a GenerationError for a provider.
func NewGenerationError(kind GenerationErrorKind, provider string, err error) *GenerationError {
	return &GenerationError{Kind: kind, Provider: provider, Err: err}
}

func (e *GenerationError) Error() string {
	msg := fmt.Sprintf("%s: %s", e.Provider, e.Kind)
	if e.Status != 0 {
		msg = fmt.Sprintf("%s (status %d)", msg, e.Status)
	}
	if e.Err != nil {
		msg = fmt.Sprintf("%s: %v", msg, e.Err)
	}
	return msg
}

// Unwrap returns the underlying cause.
func (e *GenerationError) Unwrap() error {
	return e.Err
}

// Is matches the kind sentinels so callers can use errors.Is.
func (e *GenerationError) Is(target error) bool {
	switch target {
	case ErrGenerationTimeout:
		return e.Kind == GenerationTimeout
	case ErrQuotaExceeded:
		return e.Kind == GenerationQuotaExceeded
	case ErrProviderError:
		return e.Kind == GenerationProviderError
	}
	return false
}

// AsGenerationError extracts a GenerationError from an error chain.
func AsGenerationError(err error) (*GenerationError, bool) {
	var ge *GenerationError
	if errors.As(err, &ge) {
		return ge, true
	}
	return nil, false
}
