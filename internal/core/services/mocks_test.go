package services

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/custodia-labs/epicrisis/internal/adapters/driven/storage/memory"
	"github.com/custodia-labs/epicrisis/internal/core/domain"
	"github.com/custodia-labs/epicrisis/internal/core/ports/driven"
	"github.com/custodia-labs/epicrisis/internal/extractors"
	"github.com/custodia-labs/epicrisis/internal/rules"
	"github.com/custodia-labs/epicrisis/internal/validation"
)

// mockLLM answers each prompt through respond and records calls.
type mockLLM struct {
	mu      sync.Mutex
	respond func(ctx context.Context, prompt string, opts driven.CompleteOptions) (string, error)
	prompts []string
	opts    []driven.CompleteOptions
}

func (m *mockLLM) Complete(ctx context.Context, prompt string, opts driven.CompleteOptions) (string, error) {
	m.mu.Lock()
	m.prompts = append(m.prompts, prompt)
	m.opts = append(m.opts, opts)
	m.mu.Unlock()
	if m.respond == nil {
		return "", errors.New("no response configured")
	}
	return m.respond(ctx, prompt, opts)
}

func (m *mockLLM) ModelName() string            { return "mock-model" }
func (m *mockLLM) Ping(_ context.Context) error { return nil }
func (m *mockLLM) Close() error                 { return nil }

func (m *mockLLM) calls() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.prompts)
}

// mockPrompts serves templates from a map. Every section template starts
// with "SECTION <key>" so responders can tell sections apart.
type mockPrompts struct {
	templates map[string]string
}

func newMockPrompts() *mockPrompts {
	t := map[string]string{
		driven.PromptSystem:      "Sos un asistente clínico.",
		driven.PromptReformulate: "REFORMULATE {{.Key}}: {{.ParseError}}",
	}
	for _, name := range driven.PromptNames() {
		if _, ok := t[name]; !ok {
			t[name] = "SECTION {{.Key}}\n{{if .Death.Detected}}{{.Death.Line}}\n{{end}}{{.Text}}" +
				"{{range .Exemplars}}\nEJEMPLO: {{.Content}}{{end}}"
		}
	}
	return &mockPrompts{templates: t}
}

func (p *mockPrompts) Load(name string) (string, error) {
	t, ok := p.templates[name]
	if !ok {
		return "", domain.ErrNotFound
	}
	return t, nil
}

func (p *mockPrompts) Reload() {}

// mockEmbedder returns a fixed vector, or err.
type mockEmbedder struct {
	mu     sync.Mutex
	vector []float32
	err    error
	texts  []string
}

func (e *mockEmbedder) Embed(_ context.Context, text string) ([]float32, error) {
	e.mu.Lock()
	e.texts = append(e.texts, text)
	e.mu.Unlock()
	if e.err != nil {
		return nil, e.err
	}
	return e.vector, nil
}

func (e *mockEmbedder) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	out := make([][]float32, len(texts))
	for i, t := range texts {
		v, err := e.Embed(ctx, t)
		if err != nil {
			return nil, err
		}
		out[i] = v
	}
	return out, nil
}

func (e *mockEmbedder) Dimensions() int              { return len(e.vector) }
func (e *mockEmbedder) ModelName() string            { return "mock-embed" }
func (e *mockEmbedder) Ping(_ context.Context) error { return nil }
func (e *mockEmbedder) Close() error                 { return nil }

// stubIndex returns canned hits.
type stubIndex struct {
	hits   []driven.ExemplarHit
	err    error
	k      int
	filter driven.ExemplarFilter
}

func (x *stubIndex) Upsert(_ context.Context, _ domain.Exemplar, _ []float32) error { return x.err }

func (x *stubIndex) Search(_ context.Context, _ []float32, k int, f driven.ExemplarFilter) ([]driven.ExemplarHit, error) {
	x.k, x.filter = k, f
	return x.hits, x.err
}

func (x *stubIndex) Close() error { return nil }

// stubRegistry returns a fixed extraction result.
type stubRegistry struct {
	content *domain.ExtractedContent
}

func (r *stubRegistry) Extract(_ context.Context, episode *domain.ClinicalEpisode) *domain.ExtractedContent {
	c := *r.content
	c.EpisodeID = episode.ID
	return &c
}

func (r *stubRegistry) Register(_ driven.Extractor)      {}
func (r *stubRegistry) SourceTypes() []domain.SourceType { return nil }

// failingVersionStore fails SaveVersion, or LatestVersion when latestErr is set.
type failingVersionStore struct {
	*memory.HistoryStore
	saveErr   error
	latestErr error
}

func (s *failingVersionStore) SaveVersion(ctx context.Context, v *domain.EPCVersion, e domain.AuditEvent) error {
	if s.saveErr != nil {
		return s.saveErr
	}
	return s.HistoryStore.SaveVersion(ctx, v, e)
}

func (s *failingVersionStore) LatestVersion(ctx context.Context, episodeID string) (*domain.EPCVersion, error) {
	if s.latestErr != nil {
		return nil, s.latestErr
	}
	return s.HistoryStore.LatestVersion(ctx, episodeID)
}

func testEngine(t *testing.T) *rules.Engine {
	t.Helper()
	engine, err := rules.NewDefault()
	require.NoError(t, err)
	return engine
}

// noWait replaces retry backoff in tests.
func noWait(ctx context.Context, _ time.Duration) error {
	return ctx.Err()
}

func testGenerator(t *testing.T, llm driven.LLMService) *SectionGenerator {
	t.Helper()
	cfg := DefaultGeneratorConfig()
	cfg.SectionTimeout = 5 * time.Second
	g := NewSectionGenerator(llm, newMockPrompts(), testEngine(t), cfg)
	g.wait = noWait
	return g
}

// sectionKeyOf reads the section key from a rendered mock prompt.
func sectionKeyOf(prompt string) string {
	line, _, _ := strings.Cut(prompt, "\n")
	return strings.TrimPrefix(line, "SECTION ")
}

// cannedAnswers answers every section with valid JSON.
func cannedAnswers(_ context.Context, prompt string, _ driven.CompleteOptions) (string, error) {
	switch sectionKeyOf(prompt) {
	case "motivo_internacion":
		return `{"motivo_internacion": "Disnea progresiva."}`, nil
	case "diagnostico_principal":
		return `{"diagnostico_principal": "Neumonía aguda de la comunidad."}`, nil
	case "evolucion":
		return "```json\n{\"evolucion\": \"Ingresa con disnea. Evolución favorable.\"}\n```", nil
	case "interconsultas":
		return `{"interconsultas": ["03/07/2025 10:00 - Cardiología: evaluación"]}`, nil
	case "medicacion":
		return `{"medicacion": [{"farmaco": "ceftriaxona", "dosis": "1 g", "via": "ev", "frecuencia": "c/24h", "tipo": "internacion"}]}`, nil
	case "indicaciones_alta":
		return `{"indicaciones_alta": ["Reposo relativo"]}`, nil
	case "recomendaciones":
		return `{"recomendaciones": ["Control por consultorio externo en 7 días"]}`, nil
	default:
		return "", errors.New("unexpected prompt")
	}
}

// pipelineFixture wires an orchestrator over memory stores.
type pipelineFixture struct {
	episodes *memory.EpisodeStore
	history  *memory.HistoryStore
	llm      *mockLLM
	orch     *Orchestrator
}

func newPipelineFixture(t *testing.T, llm *mockLLM, versions driven.VersionStore) *pipelineFixture {
	t.Helper()
	engine := testEngine(t)
	pipeline, err := validation.NewDefaultPipeline(engine)
	require.NoError(t, err)

	f := &pipelineFixture{
		episodes: memory.NewEpisodeStore(),
		history:  memory.NewHistoryStore(),
		llm:      llm,
	}
	if versions == nil {
		versions = f.history
	}

	var gen *SectionGenerator
	if llm == nil {
		gen = testGenerator(t, nil)
	} else {
		gen = testGenerator(t, llm)
	}
	f.orch = NewOrchestrator(
		f.episodes,
		extractors.NewDefault(engine),
		engine,
		nil,
		gen,
		NewPostValidator(pipeline),
		versions,
		domain.DefaultGenerationSettings(),
	)
	return f
}

func (f *pipelineFixture) ingest(t *testing.T, id, text string) {
	t.Helper()
	require.NoError(t, f.episodes.SaveEpisode(context.Background(), &domain.ClinicalEpisode{
		ID:         id,
		SourceType: domain.SourceFreeText,
		Raw:        []byte(text),
		IngestedAt: time.Now(),
	}))
}
