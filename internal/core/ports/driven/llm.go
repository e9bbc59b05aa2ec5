package driven

import "context"

// LLMService provides text completion for section generation.
// This is an optional service - when nil, only sections rendered from rule
// facts are produced.
//
// Implementations may include:
//   - OpenAI (GPT-4o family)
//   - Anthropic (Claude)
//   - Ollama (local models)
//
// Complete fails with *domain.GenerationError so callers can tell timeouts
// and quota refusals from other provider failures.
type LLMService interface {
	// Complete produces a completion for a prompt.
	Complete(ctx context.Context, prompt string, opts CompleteOptions) (string, error)

	// ModelName returns the name of the LLM model being used.
	ModelName() string

	// Ping validates the service is reachable by making a lightweight test request.
	Ping(ctx context.Context) error

	// Close releases resources.
	Close() error
}

// CompleteOptions configures a completion call.
type CompleteOptions struct {
	// System is the system instruction sent ahead of the prompt.
	System string

	// MaxTokens is the maximum number of tokens to generate.
	MaxTokens int

	// Temperature controls randomness (0.0 = deterministic, 1.0 = creative).
	Temperature float64

	// StopWords are sequences that stop generation when encountered.
	StopWords []string

	// JSON asks the provider for a JSON object response where supported.
	JSON bool
}
