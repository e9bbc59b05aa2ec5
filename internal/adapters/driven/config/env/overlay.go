// Package env overrides stored settings with EPICRISIS_* environment
// variables and an optional .env file.
package env

import (
	"fmt"
	"os"
	"reflect"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/viper"

	"github.com/custodia-labs/epicrisis/internal/core/domain"
	"github.com/custodia-labs/epicrisis/internal/core/ports/driven"
)

// Ensure Overlay implements the interface.
var _ driven.SettingsOverlay = (*Overlay)(nil)

// Overrides holds raw override values. An empty field means no override.
type Overrides struct {
	LLMProvider       string `mapstructure:"EPICRISIS_LLM_PROVIDER"`
	LLMModel          string `mapstructure:"EPICRISIS_LLM_MODEL"`
	LLMBaseURL        string `mapstructure:"EPICRISIS_LLM_BASE_URL"`
	LLMAPIKey         string `mapstructure:"EPICRISIS_LLM_API_KEY"`
	LLMTimeout        string `mapstructure:"EPICRISIS_LLM_TIMEOUT"`
	LLMRate           string `mapstructure:"EPICRISIS_LLM_REQUESTS_PER_SECOND"`
	EmbeddingProvider string `mapstructure:"EPICRISIS_EMBEDDING_PROVIDER"`
	EmbeddingModel    string `mapstructure:"EPICRISIS_EMBEDDING_MODEL"`
	EmbeddingBaseURL  string `mapstructure:"EPICRISIS_EMBEDDING_BASE_URL"`
	EmbeddingAPIKey   string `mapstructure:"EPICRISIS_EMBEDDING_API_KEY"`
	VectorBackend     string `mapstructure:"EPICRISIS_VECTOR_BACKEND"`
	VectorURL         string `mapstructure:"EPICRISIS_VECTOR_URL"`
	VectorCollection  string `mapstructure:"EPICRISIS_VECTOR_COLLECTION"`
	VectorAPIKey      string `mapstructure:"EPICRISIS_VECTOR_API_KEY"`
	StorageBackend    string `mapstructure:"EPICRISIS_STORAGE_BACKEND"`
	DataDir           string `mapstructure:"EPICRISIS_DATA_DIR"`
	DatabaseURL       string `mapstructure:"EPICRISIS_DATABASE_URL"`
	RAGEnabled        string `mapstructure:"EPICRISIS_RAG_ENABLED"`
	FewShotCount      string `mapstructure:"EPICRISIS_FEW_SHOT_COUNT"`
	Concurrency       string `mapstructure:"EPICRISIS_SECTION_CONCURRENCY"`
	MaxRetries        string `mapstructure:"EPICRISIS_MAX_RETRIES"`
	SectionTimeout    string `mapstructure:"EPICRISIS_SECTION_TIMEOUT"`
	RulesTables       string `mapstructure:"EPICRISIS_RULES_TABLES"`
	PromptsDir        string `mapstructure:"EPICRISIS_PROMPTS_DIR"`
	PromptsWatch      string `mapstructure:"EPICRISIS_PROMPTS_WATCH"`
}

// Overlay reads overrides on every Apply, so changes to the environment are
// picked up without restarting.
type Overlay struct {
	envFile string
}

// New creates an overlay. envFile is an optional dotenv file; a missing
// file is ignored. Real environment variables win over the file.
func New(envFile string) *Overlay {
	return &Overlay{envFile: envFile}
}

// Variables returns every recognised environment variable name.
func Variables() []string {
	t := reflect.TypeOf(Overrides{})
	names := make([]string, 0, t.NumField())
	for i := 0; i < t.NumField(); i++ {
		names = append(names, t.Field(i).Tag.Get("mapstructure"))
	}
	return names
}

// Load reads the current overrides.
func (o *Overlay) Load() (*Overrides, error) {
	v := viper.New()
	for _, name := range Variables() {
		if err := v.BindEnv(name); err != nil {
			return nil, fmt.Errorf("bind %s: %w", name, err)
		}
	}

	if o.envFile != "" {
		if _, err := os.Stat(o.envFile); err == nil {
			v.SetConfigFile(o.envFile)
			v.SetConfigType("env")
			if err := v.ReadInConfig(); err != nil {
				return nil, fmt.Errorf("read %s: %w", o.envFile, err)
			}
		}
	}

	out := &Overrides{}
	if err := v.Unmarshal(out); err != nil {
		return nil, fmt.Errorf("unmarshal overrides: %w", err)
	}
	return out, nil
}

// Apply overwrites every setting that has an override. Malformed values
// return an error naming the variable and leave settings untouched.
func (o *Overlay) Apply(settings *domain.AppSettings) error {
	ov, err := o.Load()
	if err != nil {
		return err
	}

	next := *settings
	p := parser{}

	setString(&next.LLM.Model, ov.LLMModel)
	setString(&next.LLM.BaseURL, ov.LLMBaseURL)
	setString(&next.LLM.APIKey, ov.LLMAPIKey)
	if ov.LLMProvider != "" {
		next.LLM.Provider = p.provider("EPICRISIS_LLM_PROVIDER", ov.LLMProvider)
	}
	if ov.LLMTimeout != "" {
		next.LLM.Timeout = p.duration("EPICRISIS_LLM_TIMEOUT", ov.LLMTimeout)
	}
	if ov.LLMRate != "" {
		next.LLM.RequestsPerSecond = p.number("EPICRISIS_LLM_REQUESTS_PER_SECOND", ov.LLMRate)
	}

	setString(&next.Embedding.Model, ov.EmbeddingModel)
	setString(&next.Embedding.BaseURL, ov.EmbeddingBaseURL)
	setString(&next.Embedding.APIKey, ov.EmbeddingAPIKey)
	if ov.EmbeddingProvider != "" {
		next.Embedding.Provider = p.provider("EPICRISIS_EMBEDDING_PROVIDER", ov.EmbeddingProvider)
	}

	if ov.VectorBackend != "" {
		b := domain.VectorBackend(strings.ToLower(ov.VectorBackend))
		if !b.IsValid() {
			p.fail("EPICRISIS_VECTOR_BACKEND", ov.VectorBackend)
		}
		next.VectorIndex.Backend = b
	}
	setString(&next.VectorIndex.URL, ov.VectorURL)
	setString(&next.VectorIndex.Collection, ov.VectorCollection)
	setString(&next.VectorIndex.APIKey, ov.VectorAPIKey)

	if ov.StorageBackend != "" {
		b := domain.StorageBackend(strings.ToLower(ov.StorageBackend))
		if !b.IsValid() {
			p.fail("EPICRISIS_STORAGE_BACKEND", ov.StorageBackend)
		}
		next.Storage.Backend = b
	}
	setString(&next.Storage.DataDir, ov.DataDir)
	setString(&next.Storage.DatabaseURL, ov.DatabaseURL)

	if ov.RAGEnabled != "" {
		next.Generation.RAGEnabled = p.boolean("EPICRISIS_RAG_ENABLED", ov.RAGEnabled)
	}
	if ov.FewShotCount != "" {
		next.Generation.FewShotCount = p.integer("EPICRISIS_FEW_SHOT_COUNT", ov.FewShotCount)
	}
	if ov.Concurrency != "" {
		next.Generation.SectionConcurrency = p.integer("EPICRISIS_SECTION_CONCURRENCY", ov.Concurrency)
	}
	if ov.MaxRetries != "" {
		next.Generation.MaxRetries = p.integer("EPICRISIS_MAX_RETRIES", ov.MaxRetries)
	}
	if ov.SectionTimeout != "" {
		next.Generation.SectionTimeout = p.duration("EPICRISIS_SECTION_TIMEOUT", ov.SectionTimeout)
	}

	setString(&next.Rules.TablesPath, ov.RulesTables)
	setString(&next.Prompts.Dir, ov.PromptsDir)
	if ov.PromptsWatch != "" {
		next.Prompts.Watch = p.boolean("EPICRISIS_PROMPTS_WATCH", ov.PromptsWatch)
	}

	if p.err != nil {
		return p.err
	}
	*settings = next
	return nil
}

func setString(dst *string, value string) {
	if value != "" {
		*dst = value
	}
}

// parser records the first malformed value.
type parser struct {
	err error
}

func (p *parser) fail(name, value string) {
	if p.err == nil {
		p.err = fmt.Errorf("%w: %s=%q", domain.ErrInvalidInput, name, value)
	}
}

func (p *parser) provider(name, value string) domain.AIProvider {
	provider := domain.AIProvider(strings.ToLower(strings.TrimSpace(value)))
	if !provider.IsValid() {
		p.fail(name, value)
	}
	return provider
}

func (p *parser) boolean(name, value string) bool {
	b, err := strconv.ParseBool(strings.TrimSpace(value))
	if err != nil {
		p.fail(name, value)
	}
	return b
}

func (p *parser) integer(name, value string) int {
	n, err := strconv.Atoi(strings.TrimSpace(value))
	if err != nil || n < 0 {
		p.fail(name, value)
	}
	return n
}

func (p *parser) number(name, value string) float64 {
	f, err := strconv.ParseFloat(strings.TrimSpace(value), 64)
	if err != nil || f < 0 {
		p.fail(name, value)
	}
	return f
}

// duration accepts Go durations ("90s") or whole seconds ("90").
func (p *parser) duration(name, value string) time.Duration {
	value = strings.TrimSpace(value)
	if secs, err := strconv.Atoi(value); err == nil && secs > 0 {
		return time.Duration(secs) * time.Second
	}
	d, err := time.ParseDuration(value)
	if err != nil || d <= 0 {
		p.fail(name, value)
	}
	return d
}
