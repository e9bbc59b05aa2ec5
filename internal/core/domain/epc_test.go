package domain

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sampleDocument() EPCDocument {
	evolution := NewSection(SectionEvolution)
	evolution.Text = "Paciente de 70 años, sexo M."
	evolution.Status = StatusValidated

	procedures := NewSection(SectionProcedures)
	procedures.Events = []SectionItem{{
		Date:        time.Date(2025, 3, 10, 0, 0, 0, 0, time.UTC),
		Description: "Laboratorio (2 estudios)",
		Count:       2,
		Details:     []string{"Hemograma", "Urea"},
	}}

	discharge := NewSection(SectionDischargeInstructions)

	return EPCDocument{
		ID:        "v1",
		EpisodeID: "ep-1",
		Sections:  []EPCSection{procedures, evolution, discharge},
	}
}

func TestSectionName_Kind(t *testing.T) {
	tests := []struct {
		name SectionName
		kind SectionKind
	}{
		{SectionAdmissionReason, KindNarrative},
		{SectionEvolution, KindNarrative},
		{SectionProcedures, KindDatedList},
		{SectionConsultations, KindDatedList},
		{SectionMedication, KindMedication},
		{SectionDischargeInstructions, KindList},
		{SectionRecommendations, KindList},
	}

	for _, tt := range tests {
		t.Run(string(tt.name), func(t *testing.T) {
			assert.Equal(t, tt.kind, tt.name.Kind())
		})
	}
}

func TestSectionName_SuppressedOnDeath(t *testing.T) {
	assert.True(t, SectionDischargeInstructions.SuppressedOnDeath())
	assert.True(t, SectionRecommendations.SuppressedOnDeath())
	assert.False(t, SectionEvolution.SuppressedOnDeath())
}

func TestEPCDocument_MarshalJSON_ReportNeverNull(t *testing.T) {
	data, err := json.Marshal(sampleDocument())
	require.NoError(t, err)

	var raw map[string]json.RawMessage
	require.NoError(t, json.Unmarshal(data, &raw))
	assert.JSONEq(t, `[]`, string(raw["validation_report"]))

	var sections map[string]map[string]json.RawMessage
	require.NoError(t, json.Unmarshal(raw["sections"], &sections))
	assert.JSONEq(t, `[]`, string(sections["discharge_instructions"]["content"]))
	assert.JSONEq(t, `"Paciente de 70 años, sexo M."`, string(sections["evolution"]["content"]))
	assert.JSONEq(t, `["10/03/2025 (hora no registrada) - Laboratorio (2 estudios)"]`,
		string(sections["procedures"]["content"]))
}

func TestEPCDocument_UnmarshalJSON_CanonicalOrder(t *testing.T) {
	data, err := json.Marshal(sampleDocument())
	require.NoError(t, err)

	var doc EPCDocument
	require.NoError(t, json.Unmarshal(data, &doc))

	require.Len(t, doc.Sections, 3)
	assert.Equal(t, SectionEvolution, doc.Sections[0].Name)
	assert.Equal(t, SectionProcedures, doc.Sections[1].Name)
	assert.Equal(t, SectionDischargeInstructions, doc.Sections[2].Name)
	assert.Equal(t, []string{"Hemograma", "Urea"}, doc.Section(SectionProcedures).Events[0].Details)
	assert.NotNil(t, doc.Report.Violations)
}

func TestEPCDocument_Clone_IsDeep(t *testing.T) {
	doc := sampleDocument()
	clone := doc.Clone()

	clone.Section(SectionEvolution).Text = "changed"
	clone.Section(SectionProcedures).Events[0].Details[0] = "changed"

	assert.Equal(t, "Paciente de 70 años, sexo M.", doc.Section(SectionEvolution).Text)
	assert.Equal(t, "Hemograma", doc.Section(SectionProcedures).Events[0].Details[0])
}

func TestSectionItem_Render(t *testing.T) {
	day := time.Date(2025, 7, 29, 0, 0, 0, 0, time.UTC)

	tests := []struct {
		name string
		item SectionItem
		want string
	}{
		{"timed", SectionItem{Date: day, Time: "22:00", Description: "TAC de cerebro"}, "29/07/2025 22:00 - TAC de cerebro"},
		{"untimed", SectionItem{Date: day, Description: "Ecografía"}, "29/07/2025 (hora no registrada) - Ecografía"},
		{"specialty", SectionItem{Date: day, Time: "10:00", Description: "ajuste de dosis", Specialty: "Cardiología"}, "29/07/2025 10:00 - Cardiología: ajuste de dosis"},
		{"undated", SectionItem{Description: "Biopsia"}, "Biopsia"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.item.Render())
		})
	}
}
