package ai

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/custodia-labs/epicrisis/internal/adapters/driven/llm/throttle"
	"github.com/custodia-labs/epicrisis/internal/adapters/driven/storage/memory"
	"github.com/custodia-labs/epicrisis/internal/adapters/driven/vector/qdrant"
	"github.com/custodia-labs/epicrisis/internal/core/domain"
)

// ollamaServer answers the Ollama tags and embed endpoints.
func ollamaServer(t *testing.T) *httptest.Server {
	t.Helper()
	mux := http.NewServeMux()
	mux.HandleFunc("/api/tags", func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(`{"models":[]}`))
	})
	mux.HandleFunc("/api/embed", func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(`{"embeddings":[[1,0]]}`))
	})
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv
}

func deadURL(t *testing.T) string {
	t.Helper()
	srv := httptest.NewServer(http.NotFoundHandler())
	u := srv.URL
	srv.Close()
	return u
}

func TestInitResult_Close(t *testing.T) {
	result := &InitResult{}
	result.Close()
}

func TestCreateEmbeddingService(t *testing.T) {
	tests := []struct {
		name     string
		settings *domain.EmbeddingSettings
		wantNil  bool
		wantErr  bool
	}{
		{"nil settings", nil, true, false},
		{"unconfigured", &domain.EmbeddingSettings{}, true, false},
		{"ollama", &domain.EmbeddingSettings{Provider: domain.AIProviderOllama, Model: "nomic-embed-text"}, false, false},
		{"openai", &domain.EmbeddingSettings{Provider: domain.AIProviderOpenAI, APIKey: "k"}, false, false},
		{"openai without key", &domain.EmbeddingSettings{Provider: domain.AIProviderOpenAI}, true, false},
		{"anthropic is not an embedding provider", &domain.EmbeddingSettings{Provider: domain.AIProviderAnthropic, APIKey: "k"}, true, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc, err := CreateEmbeddingService(tt.settings)
			if tt.wantErr {
				require.Error(t, err)
			} else {
				require.NoError(t, err)
			}
			if tt.wantNil {
				assert.Nil(t, svc)
			} else {
				assert.NotNil(t, svc)
			}
		})
	}
}

func TestCreateEmbeddingService_Dimensions(t *testing.T) {
	svc, err := CreateEmbeddingService(&domain.EmbeddingSettings{Provider: domain.AIProviderOllama, Model: "mxbai-embed-large"})
	require.NoError(t, err)
	assert.Equal(t, 1024, svc.Dimensions())
}

func TestCreateLLMService(t *testing.T) {
	tests := []struct {
		name      string
		settings  *domain.LLMSettings
		wantNil   bool
		wantModel string
	}{
		{"nil settings", nil, true, ""},
		{"unconfigured", &domain.LLMSettings{}, true, ""},
		{"ollama", &domain.LLMSettings{Provider: domain.AIProviderOllama, Model: "llama3.2"}, false, "llama3.2"},
		{"openai", &domain.LLMSettings{Provider: domain.AIProviderOpenAI, APIKey: "k", Model: "gpt-4o-mini"}, false, "gpt-4o-mini"},
		{"anthropic default model", &domain.LLMSettings{Provider: domain.AIProviderAnthropic, APIKey: "k"}, false, "claude-3-5-sonnet-latest"},
		{"anthropic without key", &domain.LLMSettings{Provider: domain.AIProviderAnthropic}, true, ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc, err := CreateLLMService(tt.settings)
			require.NoError(t, err)
			if tt.wantNil {
				assert.Nil(t, svc)
				return
			}
			require.NotNil(t, svc)
			assert.Equal(t, tt.wantModel, svc.ModelName())
		})
	}
}

func TestCreateExemplarIndex(t *testing.T) {
	local := memory.NewExemplarIndex()

	t.Run("sqlite uses the local index", func(t *testing.T) {
		idx, err := CreateExemplarIndex(&domain.VectorIndexSettings{Backend: domain.VectorBackendSQLite}, 768, local)
		require.NoError(t, err)
		assert.Same(t, local, idx)
	})

	t.Run("sqlite without local index", func(t *testing.T) {
		_, err := CreateExemplarIndex(&domain.VectorIndexSettings{Backend: domain.VectorBackendSQLite}, 768, nil)
		assert.ErrorIs(t, err, domain.ErrVectorIndexUnavailable)
	})

	t.Run("none disables retrieval", func(t *testing.T) {
		idx, err := CreateExemplarIndex(&domain.VectorIndexSettings{Backend: domain.VectorBackendNone}, 768, local)
		require.NoError(t, err)
		assert.Nil(t, idx)
	})

	t.Run("qdrant", func(t *testing.T) {
		idx, err := CreateExemplarIndex(&domain.VectorIndexSettings{
			Backend: domain.VectorBackendQdrant, URL: "http://localhost:6333",
		}, 768, local)
		require.NoError(t, err)
		_, ok := idx.(*qdrant.Index)
		assert.True(t, ok)
	})

	t.Run("qdrant without url", func(t *testing.T) {
		idx, err := CreateExemplarIndex(&domain.VectorIndexSettings{Backend: domain.VectorBackendQdrant}, 768, local)
		assert.ErrorIs(t, err, domain.ErrVectorIndexUnavailable)
		assert.Nil(t, idx)
	})

	t.Run("unknown backend", func(t *testing.T) {
		_, err := CreateExemplarIndex(&domain.VectorIndexSettings{Backend: "faiss"}, 768, local)
		assert.ErrorIs(t, err, domain.ErrUnsupportedType)
	})
}

func TestInit_AllCollaborators(t *testing.T) {
	srv := ollamaServer(t)
	settings := domain.DefaultAppSettings()
	settings.LLM = domain.LLMSettings{Provider: domain.AIProviderOllama, BaseURL: srv.URL, RequestsPerSecond: 2}
	settings.Embedding = domain.EmbeddingSettings{Provider: domain.AIProviderOllama, BaseURL: srv.URL}
	local := memory.NewExemplarIndex()

	result := Init(&settings, local)
	defer result.Close()

	assert.Empty(t, result.Warnings)
	assert.False(t, result.FellBack)
	_, throttled := result.LLMService.(*throttle.LLMService)
	assert.True(t, throttled)
	assert.NotNil(t, result.EmbeddingService)
	assert.Same(t, local, result.ExemplarIndex)
}

func TestInit_RAGDisabled(t *testing.T) {
	srv := ollamaServer(t)
	settings := domain.DefaultAppSettings()
	settings.Generation.RAGEnabled = false
	settings.LLM = domain.LLMSettings{Provider: domain.AIProviderOllama, BaseURL: srv.URL}
	settings.Embedding = domain.EmbeddingSettings{Provider: domain.AIProviderOllama, BaseURL: srv.URL}

	result := Init(&settings, memory.NewExemplarIndex())
	assert.NotNil(t, result.LLMService)
	assert.Nil(t, result.EmbeddingService)
	assert.Nil(t, result.ExemplarIndex)
}

func TestInit_UnreachableProvidersFallBack(t *testing.T) {
	settings := domain.DefaultAppSettings()
	settings.LLM = domain.LLMSettings{Provider: domain.AIProviderOllama, BaseURL: deadURL(t)}
	settings.Embedding = domain.EmbeddingSettings{Provider: domain.AIProviderOllama, BaseURL: deadURL(t)}

	result := Init(&settings, memory.NewExemplarIndex())

	assert.True(t, result.FellBack)
	assert.Len(t, result.Warnings, 2)
	assert.Nil(t, result.LLMService)
	assert.Nil(t, result.EmbeddingService)
	assert.Nil(t, result.ExemplarIndex)
}

func TestInit_NilSettings(t *testing.T) {
	result := Init(nil, nil)
	assert.Nil(t, result.LLMService)
	assert.Empty(t, result.Warnings)
}

func TestValidateLLMConfig(t *testing.T) {
	srv := ollamaServer(t)
	assert.NoError(t, ValidateLLMConfig(&domain.LLMSettings{Provider: domain.AIProviderOllama, BaseURL: srv.URL}))
	assert.Error(t, ValidateLLMConfig(&domain.LLMSettings{Provider: domain.AIProviderOllama, BaseURL: deadURL(t)}))
	assert.NoError(t, ValidateLLMConfig(nil))
}

func TestValidateEmbeddingConfig(t *testing.T) {
	srv := ollamaServer(t)
	assert.NoError(t, ValidateEmbeddingConfig(&domain.EmbeddingSettings{Provider: domain.AIProviderOllama, BaseURL: srv.URL}))
	assert.Error(t, ValidateEmbeddingConfig(&domain.EmbeddingSettings{Provider: domain.AIProviderOllama, BaseURL: deadURL(t)}))
}
