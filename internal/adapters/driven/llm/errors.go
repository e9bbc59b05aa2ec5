// Package llm holds helpers shared by the LLM provider adapters.
package llm

import (
	"context"
	"errors"
	"net"
	"net/http"
	"strings"

	"github.com/custodia-labs/epicrisis/internal/core/domain"
)

// maxErrorBody bounds how much of a provider error body ends up in messages.
const maxErrorBody = 512

// TransportError classifies a failure to reach the provider.
// Deadline overruns are timeouts; everything else is a provider error.
func TransportError(provider string, err error) *domain.GenerationError {
	if isTimeout(err) {
		return domain.NewGenerationError(domain.GenerationTimeout, provider, err)
	}
	return domain.NewGenerationError(domain.GenerationProviderError, provider, err)
}

// StatusError classifies a non-2xx provider response.
func StatusError(provider string, status int, body []byte) *domain.GenerationError {
	kind := domain.GenerationProviderError
	switch {
	case status == http.StatusTooManyRequests:
		kind = domain.GenerationQuotaExceeded
	case status == http.StatusPaymentRequired:
		kind = domain.GenerationQuotaExceeded
	case status == http.StatusRequestTimeout, status == http.StatusGatewayTimeout:
		kind = domain.GenerationTimeout
	}
	ge := domain.NewGenerationError(kind, provider, errors.New(truncate(body)))
	ge.Status = status
	return ge
}

// ResponseError classifies a malformed 2xx response.
func ResponseError(provider string, err error) *domain.GenerationError {
	return domain.NewGenerationError(domain.GenerationProviderError, provider, err)
}

func isTimeout(err error) bool {
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var netErr net.Error
	return errors.As(err, &netErr) && netErr.Timeout()
}

func truncate(body []byte) string {
	s := strings.TrimSpace(string(body))
	if len(s) > maxErrorBody {
		return s[:maxErrorBody] + "..."
	}
	if s == "" {
		return "empty response body"
	}
	return s
}
