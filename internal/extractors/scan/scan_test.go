package scan

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/custodia-labs/epicrisis/internal/core/domain"
	"github.com/custodia-labs/epicrisis/internal/rules"
)

func newTestScanner(t *testing.T) *Scanner {
	t.Helper()
	engine, err := rules.NewDefault()
	require.NoError(t, err)
	return New(engine)
}

func day(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func TestParseMedicationLine(t *testing.T) {
	tests := []struct {
		name string
		line string
		want domain.MedicationMention
		ok   bool
	}{
		{
			name: "full line",
			line: "losartán 50mg oral cada 12hs",
			want: domain.MedicationMention{Name: "losartán", Dose: "50mg", Route: "oral", Frequency: "cada 12hs"},
			ok:   true,
		},
		{
			name: "bullet and parenteral route",
			line: "- Ceftriaxona 1 g EV cada 24 hs",
			want: domain.MedicationMention{Name: "Ceftriaxona", Dose: "1 g", Route: "ev", Frequency: "cada 24 hs"},
			ok:   true,
		},
		{
			name: "name only",
			line: "aspirina",
			want: domain.MedicationMention{Name: "aspirina"},
			ok:   true,
		},
		{
			name: "no name",
			line: "50 mg oral",
		},
		{
			name: "prose",
			line: "el paciente refiere dolor abdominal intenso desde ayer",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := ParseMedicationLine(tt.line)
			assert.Equal(t, tt.ok, ok)
			if !tt.ok {
				return
			}
			assert.Equal(t, tt.want.Name, got.Name)
			assert.Equal(t, tt.want.Dose, got.Dose)
			assert.Equal(t, tt.want.Route, got.Route)
			assert.Equal(t, tt.want.Frequency, got.Frequency)
			assert.NotEmpty(t, got.RawContext)
		})
	}
}

const history = `Paciente de 72 años, sexo masculino.
Fecha de ingreso: 25/07/2025
Fecha de egreso: 30/07/2025
Motivo de consulta: disnea progresiva.
Diagnóstico: Neumonía aguda de la comunidad
MH: losartán 50mg oral cada 12hs; atorvastatina 20 mg oral por la noche

- [2025-07-26 10:30:00] TOMOGRAFIA
Tomografía de tórax sin contraste
- [2025-07-27 09:00:00] INTERCONSULTA
Interconsulta con Cardiología por fibrilación auricular
Hemograma del 26/07 con leucocitosis.
Tipo de alta: Alta médica`

func TestScanner_Fill(t *testing.T) {
	s := newTestScanner(t)
	c := &domain.ExtractedContent{Text: history}

	s.Fill(c)

	require.Len(t, c.Medications, 2)
	assert.Equal(t, "losartán", c.Medications[0].Name)
	assert.Equal(t, domain.ProvenancePreAdmission, c.Medications[0].DeclaredProvenance)
	assert.Equal(t, "atorvastatina", c.Medications[1].Name)
	assert.Equal(t, "por la noche", c.Medications[1].Frequency)

	require.Len(t, c.Events, 3)
	assert.Equal(t, domain.EventProcedure, c.Events[0].Kind)
	assert.Equal(t, "Tomografía de tórax sin contraste", c.Events[0].Description)
	assert.Equal(t, day(2025, time.July, 26), c.Events[0].Date)
	assert.Equal(t, "10:30", c.Events[0].Time)

	assert.Equal(t, domain.EventConsultation, c.Events[1].Kind)
	assert.Equal(t, "Cardiología", c.Events[1].Specialty)
	assert.Equal(t, "09:00", c.Events[1].Time)

	assert.Equal(t, domain.EventLab, c.Events[2].Kind)
	assert.Equal(t, day(2025, time.July, 26), c.Events[2].Date)
	assert.Empty(t, c.Events[2].Time)

	assert.Equal(t, "Alta médica", c.DischargeTypeCode)
	assert.Equal(t, "disnea progresiva", c.AdmissionReason)
	assert.Equal(t, []string{"Neumonía aguda de la comunidad"}, c.Diagnoses)

	assert.Equal(t, 72, c.Patient.Age)
	assert.Equal(t, "masculino", c.Patient.Sex)
	assert.Equal(t, day(2025, time.July, 25), c.Patient.AdmissionDate)
	assert.Equal(t, day(2025, time.July, 30), c.Patient.DischargeDate)
	assert.Equal(t, 5, c.Patient.StayDays)
}

func TestScanner_Fill_KeepsCallerFields(t *testing.T) {
	s := newTestScanner(t)
	c := &domain.ExtractedContent{
		Text:              history,
		DischargeTypeCode: "OBITO",
		Medications:       []domain.MedicationMention{{Name: "heparina"}},
		Patient:           domain.PatientInfo{Age: 80},
	}

	s.Fill(c)

	assert.Equal(t, "OBITO", c.DischargeTypeCode)
	require.Len(t, c.Medications, 1)
	assert.Equal(t, "heparina", c.Medications[0].Name)
	assert.Equal(t, 80, c.Patient.Age)
	assert.Len(t, c.Events, 3)
}

func TestScanner_Fill_NursingRoutineSkipped(t *testing.T) {
	s := newTestScanner(t)
	c := &domain.ExtractedContent{Text: "- [2025-07-26 08:00:00] ENFERMERIA\nControl de signos vitales"}

	s.Fill(c)

	assert.Empty(t, c.Events)
}

func TestScanner_Fill_EmptyText(t *testing.T) {
	s := newTestScanner(t)
	c := &domain.ExtractedContent{Patient: domain.PatientInfo{
		AdmissionDate: day(2025, time.July, 1),
		DischargeDate: day(2025, time.July, 4),
	}}

	s.Fill(c)

	assert.Empty(t, c.Events)
	assert.Equal(t, 3, c.Patient.StayDays)
	s.Fill(nil)
}

func TestNormalizeSex(t *testing.T) {
	assert.Equal(t, "masculino", NormalizeSex("M"))
	assert.Equal(t, "femenino", NormalizeSex("Femenina"))
	assert.Equal(t, "otro", NormalizeSex(" otro "))
}
