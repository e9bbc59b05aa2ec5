package mcp

import (
	"context"
	"time"

	"github.com/custodia-labs/epicrisis/internal/core/domain"
)

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

// mockHistoryService is a mock implementation of driving.HistoryService.
type mockHistoryService struct {
	latest   *domain.EPCVersion
	versions []domain.EPCVersion
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
	return nil, m.err
}

// sampleDocument builds a small EPC with one corrected violation.
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
	meds.Status = domain.StatusValidated

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

	return &domain.EPCDocument{
		ID:           "epc-1",
		EpisodeID:    "ep-1",
		GeneratedAt:  time.Date(2026, 3, 4, 9, 30, 0, 0, time.UTC),
		ModelVersion: "llama3.1",
		Sections:     []domain.EPCSection{evolution, meds, recs},
		Report:       report,
		Run:          domain.RunRecord{Warnings: []string{"exemplar retrieval disabled"}},
	}
}
