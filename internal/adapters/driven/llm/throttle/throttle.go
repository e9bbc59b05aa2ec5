// Package throttle rate-limits calls to an LLM provider.
package throttle

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"golang.org/x/time/rate"

	"github.com/custodia-labs/epicrisis/internal/core/domain"
	"github.com/custodia-labs/epicrisis/internal/core/ports/driven"
)

// Ensure LLMService implements the interface.
var _ driven.LLMService = (*LLMService)(nil)

// DefaultCooldown is how long calls pause after a quota refusal.
const DefaultCooldown = 30 * time.Second

const providerName = "throttle"

// Config holds the token bucket settings.
type Config struct {
	// RequestsPerSecond is the sustained rate. Zero or less disables throttling.
	RequestsPerSecond float64

	// Burst is the bucket size (default: 1).
	Burst int

	// Cooldown is the pause after a quota refusal (default: 30s).
	Cooldown time.Duration
}

// LLMService wraps another LLMService with a token bucket.
// A quota refusal from the inner service pauses every caller for the cooldown.
type LLMService struct {
	inner    driven.LLMService
	limiter  *rate.Limiter
	cooldown time.Duration

	mu      sync.Mutex
	retryAt time.Time
	now     func() time.Time
}

// Wrap returns inner unchanged when throttling is disabled.
func Wrap(inner driven.LLMService, cfg Config) driven.LLMService {
	if inner == nil || cfg.RequestsPerSecond <= 0 {
		return inner
	}
	return New(inner, cfg)
}

// New creates a throttled LLM service.
func New(inner driven.LLMService, cfg Config) *LLMService {
	if cfg.Burst <= 0 {
		cfg.Burst = 1
	}
	if cfg.Cooldown <= 0 {
		cfg.Cooldown = DefaultCooldown
	}
	return &LLMService{
		inner:    inner,
		limiter:  rate.NewLimiter(rate.Limit(cfg.RequestsPerSecond), cfg.Burst),
		cooldown: cfg.Cooldown,
		now:      time.Now,
	}
}

// Complete waits for a token, then delegates.
func (s *LLMService) Complete(ctx context.Context, prompt string, opts driven.CompleteOptions) (string, error) {
	if err := s.wait(ctx); err != nil {
		return "", err
	}
	out, err := s.inner.Complete(ctx, prompt, opts)
	if errors.Is(err, domain.ErrQuotaExceeded) {
		s.recordQuota()
	}
	return out, err
}

// wait honours the cooldown before taking a token.
func (s *LLMService) wait(ctx context.Context) error {
	s.mu.Lock()
	retryAt := s.retryAt
	s.mu.Unlock()

	if d := retryAt.Sub(s.now()); d > 0 {
		timer := time.NewTimer(d)
		defer timer.Stop()
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-timer.C:
		}
	}

	if err := s.limiter.Wait(ctx); err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		// The deadline is shorter than the wait for a token.
		return domain.NewGenerationError(domain.GenerationQuotaExceeded, providerName,
			fmt.Errorf("%w: %v", domain.ErrRateLimited, err))
	}
	return nil
}

func (s *LLMService) recordQuota() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.retryAt = s.now().Add(s.cooldown)
}

// ModelName returns the wrapped model name.
func (s *LLMService) ModelName() string { return s.inner.ModelName() }

// Ping bypasses the limiter.
func (s *LLMService) Ping(ctx context.Context) error { return s.inner.Ping(ctx) }

// Close closes the wrapped service.
func (s *LLMService) Close() error { return s.inner.Close() }
