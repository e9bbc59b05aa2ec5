package services

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/custodia-labs/epicrisis/internal/core/domain"
	"github.com/custodia-labs/epicrisis/internal/core/ports/driven"
)

func generatorContent() *domain.ExtractedContent {
	return &domain.ExtractedContent{
		EpisodeID: "ep-1",
		Text:      "Ingresa el 01/07/2025 por disnea.",
		Patient: domain.PatientInfo{
			Age:           67,
			AdmissionDate: time.Date(2025, 7, 1, 0, 0, 0, 0, time.UTC),
		},
	}
}

func TestSectionGenerator_Generate_Narrative(t *testing.T) {
	llm := &mockLLM{respond: cannedAnswers}
	g := testGenerator(t, llm)

	s, err := g.Generate(context.Background(), domain.SectionAdmissionReason, generatorContent(), &domain.RuleFacts{}, nil)
	require.NoError(t, err)
	assert.Equal(t, "Disnea progresiva.", s.Text)
	assert.Equal(t, domain.StatusDraft, s.Status)
	assert.Equal(t, 1, s.Attempts)

	require.Len(t, llm.opts, 1)
	assert.True(t, llm.opts[0].JSON)
	assert.Equal(t, "Sos un asistente clínico.", llm.opts[0].System)
	assert.InDelta(t, 0.1, llm.opts[0].Temperature, 1e-9)
}

func TestSectionGenerator_Generate_DatedList(t *testing.T) {
	g := testGenerator(t, &mockLLM{respond: cannedAnswers})

	s, err := g.Generate(context.Background(), domain.SectionConsultations, generatorContent(), &domain.RuleFacts{}, nil)
	require.NoError(t, err)
	require.Len(t, s.Events, 1)
	assert.Equal(t, "03/07/2025", s.Events[0].Date.Format(domain.DisplayDateLayout))
	assert.Equal(t, "10:00", s.Events[0].Time)
}

func TestSectionGenerator_Generate_Medication(t *testing.T) {
	g := testGenerator(t, &mockLLM{respond: cannedAnswers})

	s, err := g.Generate(context.Background(), domain.SectionMedication, generatorContent(), &domain.RuleFacts{}, nil)
	require.NoError(t, err)
	require.Len(t, s.Medications, 1)
	assert.Equal(t, "ceftriaxona", s.Medications[0].Name)
	assert.Equal(t, domain.ProvenanceDuringAdmission, s.Medications[0].Provenance)
	assert.Equal(t, domain.ClassifiedGeneratorProposed, s.Medications[0].Source)
}

func TestSectionGenerator_Generate_ProceduresFromFacts(t *testing.T) {
	llm := &mockLLM{respond: cannedAnswers}
	g := testGenerator(t, llm)
	facts := &domain.RuleFacts{Procedures: []domain.SectionItem{
		{Date: time.Date(2025, 7, 2, 0, 0, 0, 0, time.UTC), Time: "09:30", Description: "Radiografía de tórax"},
	}}

	s, err := g.Generate(context.Background(), domain.SectionProcedures, generatorContent(), facts, nil)
	require.NoError(t, err)
	assert.Equal(t, facts.Procedures, s.Events)
	assert.Zero(t, llm.calls())

	s.Events[0].Description = "changed"
	assert.Equal(t, "Radiografía de tórax", facts.Procedures[0].Description)
}

func TestSectionGenerator_Generate_SuppressedOnDeath(t *testing.T) {
	llm := &mockLLM{respond: cannedAnswers}
	g := testGenerator(t, llm)
	facts := &domain.RuleFacts{Death: domain.DeathInfo{Detected: true}}

	s, err := g.Generate(context.Background(), domain.SectionRecommendations, generatorContent(), facts, nil)
	require.NoError(t, err)
	assert.True(t, s.IsEmpty())
	assert.Zero(t, llm.calls())
}

func TestSectionGenerator_Generate_DeathUsesDeathPrompt(t *testing.T) {
	llm := &mockLLM{respond: cannedAnswers}
	g := testGenerator(t, llm)
	g.prompts = &mockPrompts{templates: map[string]string{
		driven.PromptSystem:         "system",
		driven.PromptEvolution:      "SECTION evolucion\nvivo",
		driven.PromptEvolutionDeath: "SECTION evolucion\n{{.Death.Line}}",
	}}
	facts := &domain.RuleFacts{Death: domain.DeathInfo{
		Detected: true,
		Date:     time.Date(2025, 7, 5, 0, 0, 0, 0, time.UTC),
		Time:     "22:00",
	}}

	_, err := g.Generate(context.Background(), domain.SectionEvolution, generatorContent(), facts, nil)
	require.NoError(t, err)
	require.Len(t, llm.prompts, 1)
	assert.Contains(t, llm.prompts[0], "PACIENTE OBITÓ - Fecha: 05/07/2025 Hora: 22:00.")
}

func TestSectionGenerator_Generate_RetriesThenSucceeds(t *testing.T) {
	attempts := 0
	llm := &mockLLM{respond: func(ctx context.Context, prompt string, opts driven.CompleteOptions) (string, error) {
		attempts++
		if attempts < 3 {
			return "", domain.NewGenerationError(domain.GenerationQuotaExceeded, "mock", errors.New("429"))
		}
		return cannedAnswers(ctx, prompt, opts)
	}}
	g := testGenerator(t, llm)

	var waits []time.Duration
	g.wait = func(_ context.Context, d time.Duration) error {
		waits = append(waits, d)
		return nil
	}

	s, err := g.Generate(context.Background(), domain.SectionMainDiagnosis, generatorContent(), &domain.RuleFacts{}, nil)
	require.NoError(t, err)
	assert.Equal(t, 3, s.Attempts)
	assert.Equal(t, "Neumonía aguda de la comunidad.", s.Text)
	assert.Equal(t, []time.Duration{500 * time.Millisecond, time.Second}, waits)
}

func TestSectionGenerator_Generate_RetriesExhausted(t *testing.T) {
	llm := &mockLLM{respond: func(context.Context, string, driven.CompleteOptions) (string, error) {
		return "", errors.New("connection refused")
	}}
	g := testGenerator(t, llm)

	s, err := g.Generate(context.Background(), domain.SectionMainDiagnosis, generatorContent(), &domain.RuleFacts{}, nil)
	require.Error(t, err)
	assert.ErrorIs(t, err, domain.ErrProviderError)
	assert.Equal(t, domain.StatusFlagged, s.Status)
	assert.Equal(t, 3, s.Attempts)
	assert.Equal(t, 3, llm.calls())
}

func TestSectionGenerator_Generate_TimeoutClassified(t *testing.T) {
	llm := &mockLLM{respond: func(ctx context.Context, _ string, _ driven.CompleteOptions) (string, error) {
		<-ctx.Done()
		return "", ctx.Err()
	}}
	g := testGenerator(t, llm)
	g.cfg.SectionTimeout = 10 * time.Millisecond
	g.cfg.MaxRetries = 0

	_, err := g.Generate(context.Background(), domain.SectionMainDiagnosis, generatorContent(), &domain.RuleFacts{}, nil)
	require.Error(t, err)
	assert.ErrorIs(t, err, domain.ErrGenerationTimeout)

	ge, ok := domain.AsGenerationError(err)
	require.True(t, ok)
	assert.Equal(t, domain.GenerationTimeout, ge.Kind)
}

func TestSectionGenerator_Generate_ReformulatesUnparseable(t *testing.T) {
	llm := &mockLLM{respond: func(_ context.Context, prompt string, _ driven.CompleteOptions) (string, error) {
		if strings.Contains(prompt, "REFORMULATE") {
			return `{"recomendaciones": ["Control en 7 días"]}`, nil
		}
		return "Lo siento, no puedo responder en JSON {", nil
	}}
	g := testGenerator(t, llm)

	s, err := g.Generate(context.Background(), domain.SectionRecommendations, generatorContent(), &domain.RuleFacts{}, nil)
	require.NoError(t, err)
	assert.Equal(t, []string{"Control en 7 días"}, s.Items)
	assert.Equal(t, domain.StatusDraft, s.Status)
	require.Len(t, llm.prompts, 2)
	assert.Contains(t, llm.prompts[1], "REFORMULATE recomendaciones: ")
}

func TestSectionGenerator_Generate_FlaggedKeepsRaw(t *testing.T) {
	llm := &mockLLM{respond: func(context.Context, string, driven.CompleteOptions) (string, error) {
		return "{not json at all}", nil
	}}
	g := testGenerator(t, llm)

	s, err := g.Generate(context.Background(), domain.SectionDischargeInstructions, generatorContent(), &domain.RuleFacts{}, nil)
	require.NoError(t, err)
	assert.Equal(t, domain.StatusFlagged, s.Status)
	assert.Equal(t, "{not json at all}", s.Raw)
	assert.Equal(t, 2, llm.calls())
}

func TestSectionGenerator_Generate_ConsultationsFallBack(t *testing.T) {
	llm := &mockLLM{respond: func(context.Context, string, driven.CompleteOptions) (string, error) {
		return "{}", nil
	}}
	g := testGenerator(t, llm)
	facts := &domain.RuleFacts{Consultations: []domain.SectionItem{
		{Date: time.Date(2025, 7, 3, 0, 0, 0, 0, time.UTC), Description: "Cardiología: evaluación", Specialty: "Cardiología"},
	}}

	s, err := g.Generate(context.Background(), domain.SectionConsultations, generatorContent(), facts, nil)
	require.NoError(t, err)
	assert.Equal(t, domain.StatusDraft, s.Status)
	assert.Equal(t, facts.Consultations, s.Events)
}

func TestSectionGenerator_Generate_NoProvider(t *testing.T) {
	g := testGenerator(t, nil)
	assert.False(t, g.Available())
	assert.Empty(t, g.ModelName())

	s, err := g.Generate(context.Background(), domain.SectionEvolution, generatorContent(), &domain.RuleFacts{}, nil)
	assert.ErrorIs(t, err, domain.ErrLLMUnavailable)
	assert.Equal(t, domain.StatusFlagged, s.Status)
}

func TestSectionGenerator_Generate_CancelledDuringBackoff(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	llm := &mockLLM{respond: func(context.Context, string, driven.CompleteOptions) (string, error) {
		return "", errors.New("boom")
	}}
	g := testGenerator(t, llm)
	g.wait = func(ctx context.Context, _ time.Duration) error {
		cancel()
		return ctx.Err()
	}

	_, err := g.Generate(ctx, domain.SectionEvolution, generatorContent(), &domain.RuleFacts{}, nil)
	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, 1, llm.calls())
}

func TestSectionGenerator_Generate_ExemplarsInPrompt(t *testing.T) {
	llm := &mockLLM{respond: cannedAnswers}
	g := testGenerator(t, llm)
	exemplars := []domain.Exemplar{
		{Section: domain.SectionEvolution, Content: "Buena tolerancia oral."},
		{Section: domain.SectionMainDiagnosis, Content: "No corresponde."},
	}

	_, err := g.Generate(context.Background(), domain.SectionEvolution, generatorContent(), &domain.RuleFacts{}, exemplars)
	require.NoError(t, err)
	require.Len(t, llm.prompts, 1)
	assert.Contains(t, llm.prompts[0], "EJEMPLO: Buena tolerancia oral.")
	assert.NotContains(t, llm.prompts[0], "No corresponde.")
}

func TestProviderBacked(t *testing.T) {
	tests := []struct {
		name  domain.SectionName
		death bool
		want  bool
	}{
		{domain.SectionProcedures, false, false},
		{domain.SectionProcedures, true, false},
		{domain.SectionEvolution, true, true},
		{domain.SectionRecommendations, false, true},
		{domain.SectionRecommendations, true, false},
		{domain.SectionDischargeInstructions, true, false},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, ProviderBacked(tt.name, tt.death), "%s death=%v", tt.name, tt.death)
	}
}

func TestSleepCtx(t *testing.T) {
	assert.NoError(t, sleepCtx(context.Background(), 0))
	assert.NoError(t, sleepCtx(context.Background(), time.Millisecond))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	assert.ErrorIs(t, sleepCtx(ctx, time.Hour), context.Canceled)
}
