package services

import (
	"fmt"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/custodia-labs/epicrisis/internal/core/domain"
	"github.com/custodia-labs/epicrisis/internal/core/ports/driven"
	"github.com/custodia-labs/epicrisis/internal/core/ports/driving"
)

// Ensure SettingsService implements the interface.
var _ driving.SettingsService = (*SettingsService)(nil)

// Config keys for settings storage.
//
//nolint:gosec // G101: These are config key names, not actual credentials.
const (
	keyLLMProvider     = "llm.provider"
	keyLLMModel        = "llm.model"
	keyLLMBaseURL      = "llm.base_url"
	keyLLMAPIKey       = "llm.api_key"
	keyLLMTimeout      = "llm.timeout"
	keyLLMRate         = "llm.requests_per_second"
	keyEmbedProvider   = "embedding.provider"
	keyEmbedModel      = "embedding.model"
	keyEmbedBaseURL    = "embedding.base_url"
	keyEmbedAPIKey     = "embedding.api_key"
	keyVectorBackend   = "vector_index.backend"
	keyVectorURL       = "vector_index.url"
	keyVectorColl      = "vector_index.collection"
	keyVectorAPIKey    = "vector_index.api_key"
	keyStorageBackend  = "storage.backend"
	keyStorageDataDir  = "storage.data_dir"
	keyStorageDBURL    = "storage.database_url"
	keyGenRAG          = "generation.rag_enabled"
	keyGenFewShot      = "generation.few_shot_count"
	keyGenConcurrency  = "generation.section_concurrency"
	keyGenMaxRetries   = "generation.max_retries"
	keyGenTimeout      = "generation.section_timeout"
	keyRulesTables     = "rules.tables_path"
	keyPromptsDir      = "prompts.dir"
	keyPromptsWatch    = "prompts.watch"
	defaultOllamaURL   = "http://localhost:11434"
	maxSectionParallel = 16
)

// valueKind is how a config key's string form is parsed.
type valueKind int

const (
	kindString valueKind = iota
	kindInt
	kindBool
	kindFloat
	kindDuration
)

var keyKinds = map[string]valueKind{
	keyLLMProvider:    kindString,
	keyLLMModel:       kindString,
	keyLLMBaseURL:     kindString,
	keyLLMAPIKey:      kindString,
	keyLLMTimeout:     kindDuration,
	keyLLMRate:        kindFloat,
	keyEmbedProvider:  kindString,
	keyEmbedModel:     kindString,
	keyEmbedBaseURL:   kindString,
	keyEmbedAPIKey:    kindString,
	keyVectorBackend:  kindString,
	keyVectorURL:      kindString,
	keyVectorColl:     kindString,
	keyVectorAPIKey:   kindString,
	keyStorageBackend: kindString,
	keyStorageDataDir: kindString,
	keyStorageDBURL:   kindString,
	keyGenRAG:         kindBool,
	keyGenFewShot:     kindInt,
	keyGenConcurrency: kindInt,
	keyGenMaxRetries:  kindInt,
	keyGenTimeout:     kindDuration,
	keyRulesTables:    kindString,
	keyPromptsDir:     kindString,
	keyPromptsWatch:   kindBool,
}

// SettingKeys returns every recognised config key, sorted.
func SettingKeys() []string {
	keys := make([]string, 0, len(keyKinds))
	for k := range keyKinds {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// SettingsService manages application settings.
type SettingsService struct {
	configStore driven.ConfigStore
	aiValidator driven.AIConfigValidator
	overlay     driven.SettingsOverlay
}

// NewSettingsService creates a new settings service. overlay may be nil.
func NewSettingsService(
	configStore driven.ConfigStore,
	aiValidator driven.AIConfigValidator,
	overlay driven.SettingsOverlay,
) *SettingsService {
	return &SettingsService{
		configStore: configStore,
		aiValidator: aiValidator,
		overlay:     overlay,
	}
}

// Get merges defaults, the config file and overrides.
func (s *SettingsService) Get() (*domain.AppSettings, error) {
	settings := s.stored()
	if s.overlay != nil {
		if err := s.overlay.Apply(settings); err != nil {
			return nil, fmt.Errorf("apply overrides: %w", err)
		}
	}
	return settings, nil
}

// stored reads the config file over the defaults, without overrides.
func (s *SettingsService) stored() *domain.AppSettings {
	defaults := domain.DefaultAppSettings()
	gen := defaults.Generation

	return &domain.AppSettings{
		LLM: domain.LLMSettings{
			Provider:          s.getProvider(keyLLMProvider, defaults.LLM.Provider),
			Model:             s.getString(keyLLMModel, defaults.LLM.Model),
			BaseURL:           s.configStore.GetString(keyLLMBaseURL),
			APIKey:            s.configStore.GetString(keyLLMAPIKey),
			Timeout:           s.getDuration(keyLLMTimeout, defaults.LLM.Timeout),
			RequestsPerSecond: s.getFloat(keyLLMRate, defaults.LLM.RequestsPerSecond),
		},
		Embedding: domain.EmbeddingSettings{
			Provider: s.getProvider(keyEmbedProvider, defaults.Embedding.Provider),
			Model:    s.getString(keyEmbedModel, defaults.Embedding.Model),
			BaseURL:  s.configStore.GetString(keyEmbedBaseURL),
			APIKey:   s.configStore.GetString(keyEmbedAPIKey),
		},
		VectorIndex: domain.VectorIndexSettings{
			Backend:    domain.VectorBackend(s.getString(keyVectorBackend, string(defaults.VectorIndex.Backend))),
			URL:        s.configStore.GetString(keyVectorURL),
			Collection: s.getString(keyVectorColl, defaults.VectorIndex.Collection),
			APIKey:     s.configStore.GetString(keyVectorAPIKey),
		},
		Storage: domain.StorageSettings{
			Backend:     domain.StorageBackend(s.getString(keyStorageBackend, string(defaults.Storage.Backend))),
			DataDir:     s.configStore.GetString(keyStorageDataDir),
			DatabaseURL: s.configStore.GetString(keyStorageDBURL),
		},
		Generation: domain.GenerationSettings{
			RAGEnabled:         s.getBool(keyGenRAG, gen.RAGEnabled),
			FewShotCount:       s.getInt(keyGenFewShot, gen.FewShotCount),
			SectionConcurrency: s.getInt(keyGenConcurrency, gen.SectionConcurrency),
			MaxRetries:         s.getIntAllowZero(keyGenMaxRetries, gen.MaxRetries),
			SectionTimeout:     s.getDuration(keyGenTimeout, gen.SectionTimeout),
		},
		Rules: domain.RuleSettings{
			TablesPath: s.configStore.GetString(keyRulesTables),
		},
		Prompts: domain.PromptSettings{
			Dir:   s.configStore.GetString(keyPromptsDir),
			Watch: s.getBool(keyPromptsWatch, false),
		},
	}
}

// Save persists application settings. Empty API keys leave stored keys alone.
func (s *SettingsService) Save(settings *domain.AppSettings) error {
	values := []struct {
		key   string
		value any
	}{
		{keyLLMProvider, settings.LLM.Provider.String()},
		{keyLLMModel, settings.LLM.Model},
		{keyLLMBaseURL, settings.LLM.BaseURL},
		{keyLLMTimeout, settings.LLM.Timeout.String()},
		{keyLLMRate, settings.LLM.RequestsPerSecond},
		{keyEmbedProvider, settings.Embedding.Provider.String()},
		{keyEmbedModel, settings.Embedding.Model},
		{keyEmbedBaseURL, settings.Embedding.BaseURL},
		{keyVectorBackend, string(settings.VectorIndex.Backend)},
		{keyVectorURL, settings.VectorIndex.URL},
		{keyVectorColl, settings.VectorIndex.Collection},
		{keyStorageBackend, string(settings.Storage.Backend)},
		{keyStorageDataDir, settings.Storage.DataDir},
		{keyStorageDBURL, settings.Storage.DatabaseURL},
		{keyGenRAG, settings.Generation.RAGEnabled},
		{keyGenFewShot, settings.Generation.FewShotCount},
		{keyGenConcurrency, settings.Generation.SectionConcurrency},
		{keyGenMaxRetries, settings.Generation.MaxRetries},
		{keyGenTimeout, settings.Generation.SectionTimeout.String()},
		{keyRulesTables, settings.Rules.TablesPath},
		{keyPromptsDir, settings.Prompts.Dir},
		{keyPromptsWatch, settings.Prompts.Watch},
	}
	for _, v := range values {
		if err := s.configStore.Set(v.key, v.value); err != nil {
			return fmt.Errorf("save %s: %w", v.key, err)
		}
	}

	secrets := map[string]string{
		keyLLMAPIKey:    settings.LLM.APIKey,
		keyEmbedAPIKey:  settings.Embedding.APIKey,
		keyVectorAPIKey: settings.VectorIndex.APIKey,
	}
	for key, value := range secrets {
		if value == "" {
			continue
		}
		if err := s.configStore.Set(key, value); err != nil {
			return fmt.Errorf("save %s: %w", key, err)
		}
	}
	return nil
}

// Set parses and stores a single dotted key.
func (s *SettingsService) Set(key, value string) error {
	key = strings.ToLower(strings.TrimSpace(key))
	kind, ok := keyKinds[key]
	if !ok {
		return fmt.Errorf("%w: unknown setting %q", domain.ErrInvalidInput, key)
	}
	value = strings.TrimSpace(value)

	var typed any
	switch kind {
	case kindInt:
		n, err := strconv.Atoi(value)
		if err != nil || n < 0 {
			return fmt.Errorf("%w: %s must be a non-negative integer", domain.ErrInvalidInput, key)
		}
		typed = n
	case kindBool:
		b, err := strconv.ParseBool(value)
		if err != nil {
			return fmt.Errorf("%w: %s must be true or false", domain.ErrInvalidInput, key)
		}
		typed = b
	case kindFloat:
		f, err := strconv.ParseFloat(value, 64)
		if err != nil || f < 0 {
			return fmt.Errorf("%w: %s must be a non-negative number", domain.ErrInvalidInput, key)
		}
		typed = f
	case kindDuration:
		d, err := time.ParseDuration(value)
		if err != nil || d < 0 {
			return fmt.Errorf("%w: %s must be a duration such as 90s", domain.ErrInvalidInput, key)
		}
		typed = d.String()
	default:
		if err := validateEnum(key, value); err != nil {
			return err
		}
		typed = value
	}
	return s.configStore.Set(key, typed)
}

func validateEnum(key, value string) error {
	switch key {
	case keyLLMProvider, keyEmbedProvider:
		if value != "" && !domain.AIProvider(value).IsValid() {
			return fmt.Errorf("%w: unknown provider %q", domain.ErrInvalidInput, value)
		}
	case keyVectorBackend:
		if !domain.VectorBackend(value).IsValid() {
			return fmt.Errorf("%w: vector backend must be sqlite, qdrant or none", domain.ErrInvalidInput)
		}
	case keyStorageBackend:
		if !domain.StorageBackend(value).IsValid() {
			return fmt.Errorf("%w: storage backend must be sqlite, postgres or memory", domain.ErrInvalidInput)
		}
	}
	return nil
}

// SetEmbeddingProvider configures the embedding provider.
func (s *SettingsService) SetEmbeddingProvider(provider domain.AIProvider, model, apiKey string) error {
	if !provider.IsValid() {
		return fmt.Errorf("invalid embedding provider: %s", provider)
	}
	supported := false
	for _, p := range domain.AllEmbeddingProviders() {
		if p == provider {
			supported = true
			break
		}
	}
	if !supported {
		return fmt.Errorf("provider %s does not support embeddings", provider)
	}
	if provider.RequiresAPIKey() && apiKey == "" {
		return fmt.Errorf("API key required for %s", provider)
	}

	settings := s.stored()
	settings.Embedding.Provider = provider
	settings.Embedding.Model = modelOrDefault(model, domain.DefaultEmbeddingModels()[provider])
	settings.Embedding.BaseURL = baseURLFor(provider, settings.Embedding.BaseURL)
	settings.Embedding.APIKey = apiKey
	return s.Save(settings)
}

// SetLLMProvider configures the LLM provider.
func (s *SettingsService) SetLLMProvider(provider domain.AIProvider, model, apiKey string) error {
	if !provider.IsValid() {
		return fmt.Errorf("invalid LLM provider: %s", provider)
	}
	if provider.RequiresAPIKey() && apiKey == "" {
		return fmt.Errorf("API key required for %s", provider)
	}

	settings := s.stored()
	settings.LLM.Provider = provider
	settings.LLM.Model = modelOrDefault(model, domain.DefaultLLMModels()[provider])
	settings.LLM.BaseURL = baseURLFor(provider, settings.LLM.BaseURL)
	settings.LLM.APIKey = apiKey
	return s.Save(settings)
}

func modelOrDefault(model, fallback string) string {
	if model != "" {
		return model
	}
	return fallback
}

// baseURLFor keeps a custom URL for local providers and clears it for cloud ones.
func baseURLFor(provider domain.AIProvider, current string) string {
	if !provider.IsLocal() {
		return ""
	}
	if current == "" {
		return defaultOllamaURL
	}
	return current
}

// Validate checks that current settings are consistent.
func (s *SettingsService) Validate() error {
	settings, err := s.Get()
	if err != nil {
		return err
	}

	if settings.LLM.Provider != "" && !settings.LLM.IsConfigured() {
		return fmt.Errorf("LLM provider %s is not fully configured", settings.LLM.Provider)
	}
	if settings.Embedding.Provider != "" && !settings.Embedding.IsConfigured() {
		return fmt.Errorf("embedding provider %s is not fully configured", settings.Embedding.Provider)
	}

	switch settings.VectorIndex.Backend {
	case domain.VectorBackendQdrant:
		if settings.VectorIndex.URL == "" {
			return fmt.Errorf("vector index backend qdrant requires %s", keyVectorURL)
		}
	case domain.VectorBackendSQLite, domain.VectorBackendNone:
	default:
		return fmt.Errorf("invalid vector index backend: %s", settings.VectorIndex.Backend)
	}

	switch settings.Storage.Backend {
	case domain.StoragePostgres:
		if settings.Storage.DatabaseURL == "" {
			return fmt.Errorf("storage backend postgres requires %s", keyStorageDBURL)
		}
	case domain.StorageSQLite, domain.StorageMemory:
	default:
		return fmt.Errorf("invalid storage backend: %s", settings.Storage.Backend)
	}

	gen := settings.Generation
	if gen.SectionConcurrency < 1 || gen.SectionConcurrency > maxSectionParallel {
		return fmt.Errorf("generation.section_concurrency must be between 1 and %d", maxSectionParallel)
	}
	if gen.MaxRetries < 0 {
		return fmt.Errorf("generation.max_retries must not be negative")
	}
	if gen.SectionTimeout <= 0 {
		return fmt.Errorf("generation.section_timeout must be positive")
	}
	return nil
}

// GetDefaults returns default settings.
func (s *SettingsService) GetDefaults() domain.AppSettings {
	return domain.DefaultAppSettings()
}

// ValidateEmbeddingConfig validates the current embedding configuration by pinging the provider.
func (s *SettingsService) ValidateEmbeddingConfig() error {
	if s.aiValidator == nil {
		return nil
	}
	settings, err := s.Get()
	if err != nil {
		return err
	}
	return s.aiValidator.ValidateEmbedding(&settings.Embedding)
}

// ValidateLLMConfig validates the current LLM configuration by pinging the provider.
func (s *SettingsService) ValidateLLMConfig() error {
	if s.aiValidator == nil {
		return nil
	}
	settings, err := s.Get()
	if err != nil {
		return err
	}
	return s.aiValidator.ValidateLLM(&settings.LLM)
}

// Helper methods for reading config with defaults.

func (s *SettingsService) getString(key, defaultVal string) string {
	val := s.configStore.GetString(key)
	if val == "" {
		return defaultVal
	}
	return val
}

func (s *SettingsService) getInt(key string, defaultVal int) int {
	val := s.configStore.GetInt(key)
	if val == 0 {
		return defaultVal
	}
	return val
}

// getIntAllowZero treats a stored zero as a value rather than as unset.
func (s *SettingsService) getIntAllowZero(key string, defaultVal int) int {
	if _, exists := s.configStore.Get(key); !exists {
		return defaultVal
	}
	return s.configStore.GetInt(key)
}

func (s *SettingsService) getBool(key string, defaultVal bool) bool {
	if _, exists := s.configStore.Get(key); !exists {
		return defaultVal
	}
	return s.configStore.GetBool(key)
}

func (s *SettingsService) getFloat(key string, defaultVal float64) float64 {
	val, ok := s.configStore.Get(key)
	if !ok {
		return defaultVal
	}
	switch v := val.(type) {
	case float64:
		return v
	case float32:
		return float64(v)
	case int:
		return float64(v)
	case int64:
		return float64(v)
	case string:
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			return f
		}
	}
	return defaultVal
}

func (s *SettingsService) getDuration(key string, defaultVal time.Duration) time.Duration {
	val := s.configStore.GetString(key)
	if val == "" {
		if n := s.configStore.GetInt(key); n > 0 {
			return time.Duration(n) * time.Second
		}
		return defaultVal
	}
	d, err := time.ParseDuration(val)
	if err != nil || d <= 0 {
		return defaultVal
	}
	return d
}

func (s *SettingsService) getProvider(key string, defaultVal domain.AIProvider) domain.AIProvider {
	val := s.configStore.GetString(key)
	if val == "" {
		return defaultVal
	}
	provider := domain.AIProvider(val)
	if !provider.IsValid() {
		return defaultVal
	}
	return provider
}
