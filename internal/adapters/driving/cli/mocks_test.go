package cli

import (
	"bytes"
	"context"
	"strings"
	"testing"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	"github.com/custodia-labs/epicrisis/internal/core/domain"
)

// testServices holds the mocks injected by setupTestServices.
type testServices struct {
	epicrisis *mockEpicrisisService
	episode   *mockEpisodeService
	history   *mockHistoryService
	settings  *mockSettingsService
}

// setupTestServices injects fresh mocks and restores nil services afterwards.
func setupTestServices(t *testing.T) *testServices {
	t.Helper()
	s := &testServices{
		epicrisis: &mockEpicrisisService{},
		episode:   &mockEpisodeService{},
		history:   &mockHistoryService{},
		settings:  &mockSettingsService{settings: domain.DefaultAppSettings()},
	}
	SetServices(Services{
		Epicrisis: s.epicrisis,
		Episode:   s.episode,
		History:   s.history,
		Settings:  s.settings,
	})
	t.Cleanup(func() { SetServices(Services{}) })
	return s
}

// execute runs the root command with args and returns its combined output.
func execute(t *testing.T, stdin string, args ...string) (string, error) {
	t.Helper()
	resetFlags(rootCmd)

	buf := new(bytes.Buffer)
	rootCmd.SetOut(buf)
	rootCmd.SetErr(buf)
	rootCmd.SetIn(strings.NewReader(stdin))
	rootCmd.SetArgs(args)
	defer func() {
		rootCmd.SetArgs(nil)
		rootCmd.SetIn(nil)
	}()

	err := rootCmd.ExecuteContext(context.Background())
	return buf.String(), err
}

// resetFlags restores every flag to its default; cobra keeps values between runs.
func resetFlags(cmd *cobra.Command) {
	reset := func(f *pflag.Flag) {
		_ = f.Value.Set(f.DefValue)
		f.Changed = false
	}
	cmd.Flags().VisitAll(reset)
	cmd.PersistentFlags().VisitAll(reset)
	for _, sub := range cmd.Commands() {
		resetFlags(sub)
	}
}

// mockEpicrisisService is a mock implementation of driving.EpicrisisService.
type mockEpicrisisService struct {
	doc         *domain.EPCDocument
	err         error
	generated   []string
	regenerated []string
}

func (m *mockEpicrisisService) Generate(_ context.Context, episodeID string) (*domain.EPCDocument, error) {
	m.generated = append(m.generated, episodeID)
	return m.doc, m.err
}

func (m *mockEpicrisisService) Regenerate(_ context.Context, episodeID string) (*domain.EPCDocument, error) {
	m.regenerated = append(m.regenerated, episodeID)
	return m.doc, m.err
}

func (m *mockEpicrisisService) Status(_ context.Context, _ string) (*domain.RunStatus, error) {
	return nil, domain.ErrNotFound
}

// mockEpisodeService is a mock implementation of driving.EpisodeService.
type mockEpisodeService struct {
	episodes  []domain.ClinicalEpisode
	extracted *domain.ExtractedContent
	facts     *domain.RuleFacts
	err       error

	ingestedID   string
	ingestedType domain.SourceType
	ingestedRaw  []byte
	importedFile string
}

func (m *mockEpisodeService) Ingest(
	_ context.Context,
	id string,
	sourceType domain.SourceType,
	raw []byte,
) (*domain.ClinicalEpisode, error) {
	if m.err != nil {
		return nil, m.err
	}
	m.ingestedID, m.ingestedType, m.ingestedRaw = id, sourceType, raw
	return &domain.ClinicalEpisode{ID: id, SourceType: sourceType, Raw: raw, IngestedAt: time.Now()}, nil
}

func (m *mockEpisodeService) Import(
	ctx context.Context,
	id, filename string,
	raw []byte,
) (*domain.ClinicalEpisode, error) {
	m.importedFile = filename
	return m.Ingest(ctx, id, domain.SourceFreeText, raw)
}

func (m *mockEpisodeService) Get(_ context.Context, id string) (*domain.ClinicalEpisode, error) {
	for i := range m.episodes {
		if m.episodes[i].ID == id {
			return &m.episodes[i], nil
		}
	}
	return nil, domain.ErrNotFound
}

func (m *mockEpisodeService) List(_ context.Context) ([]domain.ClinicalEpisode, error) {
	return m.episodes, m.err
}

func (m *mockEpisodeService) Facts(_ context.Context, _ string) (*domain.ExtractedContent, *domain.RuleFacts, error) {
	return m.extracted, m.facts, m.err
}

// mockHistoryService is a mock implementation of driving.HistoryService.
type mockHistoryService struct {
	latest   *domain.EPCVersion
	versions []domain.EPCVersion
	events   []domain.AuditEvent
	recorded []domain.FeedbackEntry
	err      error
}

func (m *mockHistoryService) Latest(_ context.Context, _ string) (*domain.EPCVersion, error) {
	return m.latest, m.err
}

func (m *mockHistoryService) History(_ context.Context, _ string) ([]domain.EPCVersion, error) {
	return m.versions, m.err
}

func (m *mockHistoryService) Version(_ context.Context, _ string) (*domain.EPCVersion, error) {
	return m.latest, m.err
}

func (m *mockHistoryService) RecordFeedback(_ context.Context, entry domain.FeedbackEntry) (*domain.FeedbackEntry, error) {
	if m.err != nil {
		return nil, m.err
	}
	if err := entry.Validate(); err != nil {
		return nil, err
	}
	entry.ID = "fb-1"
	entry.Timestamp = time.Date(2026, 3, 4, 10, 0, 0, 0, time.UTC)
	m.recorded = append(m.recorded, entry)
	return &entry, nil
}

func (m *mockHistoryService) Feedback(_ context.Context, _ string) ([]domain.FeedbackEntry, error) {
	return m.recorded, m.err
}

func (m *mockHistoryService) FeedbackSummary(_ context.Context, epcID string) (*domain.FeedbackSummary, error) {
	s := domain.Summarize(epcID, m.recorded)
	return &s, m.err
}

func (m *mockHistoryService) Events(_ context.Context, _ string) ([]domain.AuditEvent, error) {
	return m.events, m.err
}

// mockSettingsService is a mock implementation of driving.SettingsService.
type mockSettingsService struct {
	settings    domain.AppSettings
	validateErr error
	pingErr     error
	setErr      error

	set      map[string]string
	llmCalls []providerCall
	embCalls []providerCall
}

type providerCall struct {
	provider domain.AIProvider
	model    string
	apiKey   string
}

func (m *mockSettingsService) Get() (*domain.AppSettings, error) {
	s := m.settings
	return &s, nil
}

func (m *mockSettingsService) Save(settings *domain.AppSettings) error {
	m.settings = *settings
	return nil
}

func (m *mockSettingsService) Set(key, value string) error {
	if m.setErr != nil {
		return m.setErr
	}
	if m.set == nil {
		m.set = make(map[string]string)
	}
	m.set[key] = value
	return nil
}

func (m *mockSettingsService) SetEmbeddingProvider(provider domain.AIProvider, model, apiKey string) error {
	m.embCalls = append(m.embCalls, providerCall{provider, model, apiKey})
	m.settings.Embedding = domain.EmbeddingSettings{Provider: provider, Model: model, APIKey: apiKey}
	return nil
}

func (m *mockSettingsService) SetLLMProvider(provider domain.AIProvider, model, apiKey string) error {
	m.llmCalls = append(m.llmCalls, providerCall{provider, model, apiKey})
	m.settings.LLM.Provider, m.settings.LLM.Model, m.settings.LLM.APIKey = provider, model, apiKey
	return nil
}

func (m *mockSettingsService) Validate() error {
	return m.validateErr
}

func (m *mockSettingsService) GetDefaults() domain.AppSettings {
	return domain.DefaultAppSettings()
}

func (m *mockSettingsService) ValidateEmbeddingConfig() error {
	return m.pingErr
}

func (m *mockSettingsService) ValidateLLMConfig() error {
	return m.pingErr
}

// sampleDocument builds a small EPC with one corrected and one flagged violation.
func sampleDocument() *domain.EPCDocument {
	evolution := domain.NewSection(domain.SectionEvolution)
	evolution.Text = "Paciente de 70 años, sexo masculino, evoluciona favorablemente."
	evolution.Status = domain.StatusCorrected

	meds := domain.NewSection(domain.SectionMedication)
	meds.Medications = []domain.MedicationEntry{{
		Name:       "Enalapril",
		Dose:       "10 mg",
		Provenance: domain.ProvenancePreAdmission,
		Source:     domain.ClassifiedChronicList,
	}}
	meds.Status = domain.StatusFlagged

	recs := domain.NewSection(domain.SectionRecommendations)
	recs.Status = domain.StatusValidated

	report := domain.NewValidationReport()
	report.Add(domain.Violation{
		Section:       domain.SectionEvolution,
		Rule:          domain.RuleDeathAnnouncement,
		OriginalText:  "se otorga el alta",
		CorrectedText: domain.StringPtr(""),
		AutoCorrected: true,
	})
	report.Add(domain.Violation{
		Section:      domain.SectionMedication,
		Rule:         domain.RuleMedicationProvenance,
		OriginalText: "Ceftriaxona",
	})

	return &domain.EPCDocument{
		ID:           "epc-1",
		EpisodeID:    "ep-1",
		GeneratedAt:  time.Date(2026, 3, 4, 9, 30, 0, 0, time.UTC),
		ModelVersion: "llama3.1",
		Sections:     []domain.EPCSection{evolution, meds, recs},
		Report:       report,
		Run: domain.RunRecord{
			Transitions: []domain.Transition{{State: domain.StateFinalized}},
			Exemplars:   2,
			Warnings:    []string{"exemplar retrieval disabled"},
		},
	}
}
