package env

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/custodia-labs/epicrisis/internal/core/domain"
)

// clearEnv blanks every recognised variable for the test.
func clearEnv(t *testing.T) {
	t.Helper()
	for _, name := range Variables() {
		t.Setenv(name, "")
	}
}

func TestVariables(t *testing.T) {
	vars := Variables()
	assert.Contains(t, vars, "EPICRISIS_LLM_PROVIDER")
	assert.Contains(t, vars, "EPICRISIS_DATABASE_URL")
	for _, v := range vars {
		assert.Regexp(t, `^EPICRISIS_[A-Z_]+$`, v)
	}
}

func TestOverlay_Apply_NoOverrides(t *testing.T) {
	clearEnv(t)
	settings := domain.DefaultAppSettings()
	want := settings

	require.NoError(t, New("").Apply(&settings))
	assert.Equal(t, want, settings)
}

func TestOverlay_Apply_Environment(t *testing.T) {
	clearEnv(t)
	t.Setenv("EPICRISIS_LLM_PROVIDER", "Anthropic")
	t.Setenv("EPICRISIS_LLM_API_KEY", "sk-test")
	t.Setenv("EPICRISIS_LLM_TIMEOUT", "45")
	t.Setenv("EPICRISIS_LLM_REQUESTS_PER_SECOND", "0.5")
	t.Setenv("EPICRISIS_STORAGE_BACKEND", "postgres")
	t.Setenv("EPICRISIS_DATABASE_URL", "postgres://localhost/epc")
	t.Setenv("EPICRISIS_RAG_ENABLED", "false")
	t.Setenv("EPICRISIS_FEW_SHOT_COUNT", "0")
	t.Setenv("EPICRISIS_SECTION_TIMEOUT", "2m")
	t.Setenv("EPICRISIS_PROMPTS_WATCH", "true")

	settings := domain.DefaultAppSettings()
	require.NoError(t, New("").Apply(&settings))

	assert.Equal(t, domain.AIProviderAnthropic, settings.LLM.Provider)
	assert.Equal(t, "sk-test", settings.LLM.APIKey)
	assert.Equal(t, 45*time.Second, settings.LLM.Timeout)
	assert.InDelta(t, 0.5, settings.LLM.RequestsPerSecond, 0.0001)
	assert.Equal(t, domain.StoragePostgres, settings.Storage.Backend)
	assert.Equal(t, "postgres://localhost/epc", settings.Storage.DatabaseURL)
	assert.False(t, settings.Generation.RAGEnabled)
	assert.Equal(t, 0, settings.Generation.FewShotCount)
	assert.Equal(t, 2*time.Minute, settings.Generation.SectionTimeout)
	assert.True(t, settings.Prompts.Watch)

	// Untouched fields keep their values.
	assert.Equal(t, domain.VectorBackendSQLite, settings.VectorIndex.Backend)
	assert.Equal(t, 4, settings.Generation.SectionConcurrency)
}

func TestOverlay_Apply_DotEnvFile(t *testing.T) {
	clearEnv(t)
	path := filepath.Join(t.TempDir(), ".env")
	content := "EPICRISIS_LLM_MODEL=llama3.1\nEPICRISIS_VECTOR_BACKEND=qdrant\nEPICRISIS_VECTOR_URL=http://qdrant:6333\n"
	require.NoError(t, os.WriteFile(path, []byte(content), 0600))
	t.Setenv("EPICRISIS_LLM_MODEL", "from-env")

	settings := domain.DefaultAppSettings()
	require.NoError(t, New(path).Apply(&settings))

	assert.Equal(t, "from-env", settings.LLM.Model, "environment wins over the file")
	assert.Equal(t, domain.VectorBackendQdrant, settings.VectorIndex.Backend)
	assert.Equal(t, "http://qdrant:6333", settings.VectorIndex.URL)
}

func TestOverlay_Apply_MissingDotEnvIgnored(t *testing.T) {
	clearEnv(t)
	settings := domain.DefaultAppSettings()

	assert.NoError(t, New(filepath.Join(t.TempDir(), "absent.env")).Apply(&settings))
}

func TestOverlay_Apply_Invalid(t *testing.T) {
	tests := []struct {
		name  string
		key   string
		value string
	}{
		{"provider", "EPICRISIS_LLM_PROVIDER", "gemini"},
		{"embedding provider", "EPICRISIS_EMBEDDING_PROVIDER", "cohere"},
		{"vector backend", "EPICRISIS_VECTOR_BACKEND", "pinecone"},
		{"storage backend", "EPICRISIS_STORAGE_BACKEND", "mongo"},
		{"bool", "EPICRISIS_RAG_ENABLED", "maybe"},
		{"negative int", "EPICRISIS_MAX_RETRIES", "-1"},
		{"int", "EPICRISIS_SECTION_CONCURRENCY", "four"},
		{"rate", "EPICRISIS_LLM_REQUESTS_PER_SECOND", "fast"},
		{"duration", "EPICRISIS_SECTION_TIMEOUT", "soon"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			clearEnv(t)
			t.Setenv("EPICRISIS_LLM_MODEL", "should-not-apply")
			t.Setenv(tt.key, tt.value)

			settings := domain.DefaultAppSettings()
			err := New("").Apply(&settings)

			require.ErrorIs(t, err, domain.ErrInvalidInput)
			assert.Contains(t, err.Error(), tt.key)
			assert.Empty(t, settings.LLM.Model, "settings are untouched on error")
		})
	}
}
