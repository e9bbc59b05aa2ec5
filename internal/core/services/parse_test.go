package services

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/custodia-labs/epicrisis/internal/core/domain"
)

func TestStripFences(t *testing.T) {
	assert.Equal(t, `{"a": 1}`, stripFences("```json\n{\"a\": 1}\n```"))
	assert.Equal(t, `{"a": 1}`, stripFences("```\n{\"a\": 1}\n```\n"))
	assert.Equal(t, "plain", stripFences("  plain  "))
}

func TestFirstObject(t *testing.T) {
	tests := []struct {
		name   string
		in     string
		want   string
		wantOK bool
	}{
		{"bare", `{"a":1}`, `{"a":1}`, true},
		{"prose around", `Aquí está: {"a":1} espero que sirva`, `{"a":1}`, true},
		{"nested", `{"a":{"b":[1,2]}} {"c":2}`, `{"a":{"b":[1,2]}}`, true},
		{"brace inside string", `{"a":"x } y"}`, `{"a":"x } y"}`, true},
		{"escaped quote", `{"a":"dijo \"}\" ayer"}`, `{"a":"dijo \"}\" ayer"}`, true},
		{"skips invalid first", `{nope} {"a":1}`, `{"a":1}`, true},
		{"unbalanced", `{"a":1`, "", false},
		{"none", `sin json`, "", false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := firstObject(tt.in)
			assert.Equal(t, tt.wantOK, ok)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestParseOutput_Narrative(t *testing.T) {
	tests := []struct {
		name string
		raw  string
		want string
	}{
		{"section key", `{"evolucion": "Buena evolución."}`, "Buena evolución."},
		{"section name", `{"evolution": "Texto."}`, "Texto."},
		{"single unknown key", `{"texto": "Único."}`, "Único."},
		{"paragraph list", `{"evolucion": ["Primero.", "", "Segundo."]}`, "Primero.\n\nSegundo."},
		{"plain text", "Evolución sin JSON.", "Evolución sin JSON."},
		{"fenced", "```json\n{\"evolucion\": \"Con cerco.\"}\n```", "Con cerco."},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := parseOutput(domain.SectionEvolution, tt.raw)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got.Text)
		})
	}
}

func TestParseOutput_Errors(t *testing.T) {
	tests := []struct {
		name    string
		section domain.SectionName
		raw     string
	}{
		{"empty", domain.SectionEvolution, "   "},
		{"broken braces narrative", domain.SectionEvolution, `{"evolucion": "sin cerrar"`},
		{"list without json", domain.SectionRecommendations, "Control en 7 días"},
		{"missing key among several", domain.SectionEvolution, `{"a": "x", "b": "y"}`},
		{"empty narrative", domain.SectionEvolution, `{"evolucion": "  "}`},
		{"wrong type", domain.SectionEvolution, `{"evolucion": 3}`},
		{"list wrong type", domain.SectionRecommendations, `{"recomendaciones": {"a": 1}}`},
		{"medication missing key", domain.SectionMedication, `{"farmacos": []}`},
		{"medication wrong shape", domain.SectionMedication, `{"medicacion": "ninguna"}`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := parseOutput(tt.section, tt.raw)
			assert.ErrorIs(t, err, domain.ErrParse)
		})
	}
}

func TestParseOutput_List(t *testing.T) {
	got, err := parseOutput(domain.SectionRecommendations, `{"recomendaciones": ["  Control en 7 días ", "", "Dieta hiposódica"]}`)
	require.NoError(t, err)
	assert.Equal(t, []string{"Control en 7 días", "Dieta hiposódica"}, got.Items)

	got, err = parseOutput(domain.SectionDischargeInstructions, `{"indicaciones_alta": "Reposo\nHidratación"}`)
	require.NoError(t, err)
	assert.Equal(t, []string{"Reposo", "Hidratación"}, got.Items)
}

func TestParseOutput_Medication(t *testing.T) {
	raw := `{
		"medicacion_internacion": [{"farmaco": "ceftriaxona", "dosis": "1 g", "via": "ev"}],
		"medicacion_previa": [
			{"farmaco": "losartan", "dosis": "50 mg", "via": "vo"},
			{"farmaco": "omeprazol", "tipo": "internacion"},
			{"farmaco": "  "}
		]
	}`

	got, err := parseOutput(domain.SectionMedication, raw)
	require.NoError(t, err)
	require.Len(t, got.Medications, 3)

	byName := make(map[string]domain.MedicationEntry)
	for _, m := range got.Medications {
		byName[m.Name] = m
	}
	assert.Equal(t, domain.ProvenanceDuringAdmission, byName["ceftriaxona"].Provenance)
	assert.Equal(t, domain.ProvenancePreAdmission, byName["losartan"].Provenance)
	assert.Equal(t, domain.ProvenanceDuringAdmission, byName["omeprazol"].Provenance)
	assert.Equal(t, domain.ClassifiedGeneratorProposed, byName["losartan"].Source)
}

func TestParseOutput_MedicationWithoutProvenance(t *testing.T) {
	got, err := parseOutput(domain.SectionMedication, `{"medicacion": [{"farmaco": "dipirona"}]}`)
	require.NoError(t, err)
	require.Len(t, got.Medications, 1)
	assert.Empty(t, got.Medications[0].Provenance)
	assert.Empty(t, got.Medications[0].Source)
}
