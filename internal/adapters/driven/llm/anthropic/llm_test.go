package anthropic

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/custodia-labs/epicrisis/internal/core/domain"
	"github.com/custodia-labs/epicrisis/internal/core/ports/driven"
)

func TestNewLLMService(t *testing.T) {
	_, err := NewLLMService(Config{})
	require.Error(t, err)

	s, err := NewLLMService(Config{APIKey: "k", BaseURL: "http://x/"})
	require.NoError(t, err)
	assert.Equal(t, DefaultModel, s.ModelName())
	assert.Equal(t, "http://x", s.baseURL)
}

func TestLLMService_Complete_JSONPrefill(t *testing.T) {
	var got messagesRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1/messages", r.URL.Path)
		assert.Equal(t, "k", r.Header.Get("x-api-key"))
		assert.Equal(t, anthropicVersion, r.Header.Get("anthropic-version"))
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		_, _ = w.Write([]byte(`{"content":[{"type":"text","text":"\"items\":[]}"}],"stop_reason":"end_turn"}`))
	}))
	defer srv.Close()

	s, err := NewLLMService(Config{APIKey: "k", BaseURL: srv.URL})
	require.NoError(t, err)

	out, err := s.Complete(context.Background(), "listá las interconsultas", driven.CompleteOptions{
		System: "Sos un asistente clínico.",
		JSON:   true,
	})
	require.NoError(t, err)
	assert.Equal(t, `{"items":[]}`, out)

	assert.Equal(t, "Sos un asistente clínico.", got.System)
	assert.Equal(t, DefaultMaxTokens, got.MaxTokens)
	require.Len(t, got.Messages, 2)
	assert.Equal(t, "assistant", got.Messages[1].Role)
	assert.Equal(t, "{", got.Messages[1].Content)
}

func TestLLMService_Complete_PlainText(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(`{"content":[{"type":"text","text":"Paciente "},{"type":"text","text":"estable."}]}`))
	}))
	defer srv.Close()

	s, _ := NewLLMService(Config{APIKey: "k", BaseURL: srv.URL})
	out, err := s.Complete(context.Background(), "p", driven.CompleteOptions{MaxTokens: 10})
	require.NoError(t, err)
	assert.Equal(t, "Paciente estable.", out)
}

func TestLLMService_Complete_Errors(t *testing.T) {
	tests := []struct {
		name   string
		status int
		body   string
		want   error
	}{
		{"rate limited", http.StatusTooManyRequests, `{"error":{"type":"rate_limit_error"}}`, domain.ErrQuotaExceeded},
		{"overloaded", 529, `{"error":{"type":"overloaded_error"}}`, domain.ErrProviderError},
		{"empty content", http.StatusOK, `{"content":[]}`, domain.ErrProviderError},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
				w.WriteHeader(tt.status)
				_, _ = w.Write([]byte(tt.body))
			}))
			defer srv.Close()

			s, _ := NewLLMService(Config{APIKey: "k", BaseURL: srv.URL})
			_, err := s.Complete(context.Background(), "p", driven.CompleteOptions{})
			assert.ErrorIs(t, err, tt.want)
		})
	}
}
