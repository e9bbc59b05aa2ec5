package services

import (
	"bytes"
	"fmt"
	"strings"
	"text/template"
	"time"

	"github.com/custodia-labs/epicrisis/internal/core/domain"
	"github.com/custodia-labs/epicrisis/internal/core/ports/driven"
	"github.com/custodia-labs/epicrisis/internal/rules"
	"github.com/custodia-labs/epicrisis/internal/snippet"
)

// Context sizes handed to the model, in runes.
const (
	admissionExcerptSize = 2000
	narrativeContextSize = 24000
)

// PatientView is the demographic block of a prompt.
type PatientView struct {
	Age           string
	Sex           string
	AdmissionDate string
	DischargeDate string
	StayDays      string
}

// DeathView is the authoritative death status of a prompt.
type DeathView struct {
	Detected bool
	Date     string
	Time     string
	Line     string
}

// MedicationView is a medication mention with its rule classification.
type MedicationView struct {
	Name       string
	Dose       string
	Route      string
	Frequency  string
	Provenance string
	Source     string
}

// ExemplarView is one few-shot pair.
type ExemplarView struct {
	Context string
	Content string
}

// PromptData is the value section templates are executed against.
type PromptData struct {
	Section       string
	Key           string
	Patient       PatientView
	DischargeType string
	Death         DeathView
	Admission     string
	Text          string
	Diagnoses     []string
	Chronology    []string
	Consultations []string
	Medications   []MedicationView
	Exemplars     []ExemplarView

	// Set only when rendering the reformulation instruction.
	Previous   string
	ParseError string
}

// sectionKeys are the JSON keys the model answers with.
var sectionKeys = map[domain.SectionName]string{
	domain.SectionAdmissionReason:       "motivo_internacion",
	domain.SectionMainDiagnosis:         "diagnostico_principal",
	domain.SectionEvolution:             "evolucion",
	domain.SectionProcedures:            "procedimientos",
	domain.SectionConsultations:         "interconsultas",
	domain.SectionMedication:            "medicacion",
	domain.SectionDischargeInstructions: "indicaciones_alta",
	domain.SectionRecommendations:       "recomendaciones",
}

// SectionKey returns the JSON key a section is answered under.
func SectionKey(name domain.SectionName) string {
	if k, ok := sectionKeys[name]; ok {
		return k
	}
	return string(name)
}

// promptName maps a section to its template.
func promptName(name domain.SectionName, death bool) string {
	switch name {
	case domain.SectionAdmissionReason:
		return driven.PromptAdmissionReason
	case domain.SectionMainDiagnosis:
		return driven.PromptMainDiagnosis
	case domain.SectionEvolution:
		if death {
			return driven.PromptEvolutionDeath
		}
		return driven.PromptEvolution
	case domain.SectionConsultations:
		return driven.PromptConsultations
	case domain.SectionMedication:
		return driven.PromptMedication
	case domain.SectionDischargeInstructions:
		return driven.PromptDischargeInstructions
	case domain.SectionRecommendations:
		return driven.PromptRecommendations
	default:
		return ""
	}
}

var (
	admissionWindow = snippet.New(snippet.WithSize(admissionExcerptSize))
	narrativeWindow = snippet.New(snippet.WithSize(narrativeContextSize))
)

// buildPromptData collects everything a section template may reference.
func buildPromptData(
	name domain.SectionName,
	content *domain.ExtractedContent,
	facts *domain.RuleFacts,
	exemplars []domain.Exemplar,
) PromptData {
	data := PromptData{
		Section: name.Title(),
		Key:     SectionKey(name),
	}
	if content != nil {
		p := content.Patient
		data.Patient = PatientView{
			Age:           "no registrada",
			Sex:           "no registrado",
			AdmissionDate: displayDate(p.AdmissionDate),
			DischargeDate: displayDate(p.DischargeDate),
			StayDays:      "no registrados",
		}
		if p.Age > 0 {
			data.Patient.Age = fmt.Sprintf("%d", p.Age)
		}
		if p.Sex != "" {
			data.Patient.Sex = p.Sex
		}
		if p.StayDays > 0 {
			data.Patient.StayDays = fmt.Sprintf("%d", p.StayDays)
		}
		data.DischargeType = content.DischargeTypeCode
		data.Admission = strings.TrimSpace(content.AdmissionReason + "\n\n" + admissionWindow.First(content.Text))
		data.Text = narrativeWindow.First(content.Text)
		data.Diagnoses = content.Diagnoses
	}
	if data.DischargeType == "" {
		data.DischargeType = "no registrado"
	}

	if facts != nil {
		if facts.Death.Detected {
			data.Death = DeathView{
				Detected: true,
				Date:     displayDate(facts.Death.Date),
				Time:     "hora no registrada",
				Line:     rules.DeathHeader(facts.Death),
			}
			if facts.Death.HasTime() {
				data.Death.Time = facts.Death.Time
			}
		}
		for _, it := range facts.Procedures {
			data.Chronology = append(data.Chronology, it.Render())
		}
		for _, it := range facts.Consultations {
			data.Consultations = append(data.Consultations, it.Render())
		}
		for _, m := range facts.Medications {
			data.Medications = append(data.Medications, MedicationView{
				Name:       m.Name,
				Dose:       m.Dose,
				Route:      m.Route,
				Frequency:  m.Frequency,
				Provenance: string(m.Provenance),
				Source:     string(m.Source),
			})
		}
	}

	for _, ex := range exemplars {
		if ex.Section != "" && ex.Section != name {
			continue
		}
		data.Exemplars = append(data.Exemplars, ExemplarView{Context: ex.Context, Content: ex.Content})
	}
	return data
}

func displayDate(t time.Time) string {
	if t.IsZero() {
		return "no registrada"
	}
	return t.Format(domain.DisplayDateLayout)
}

var templateFuncs = template.FuncMap{
	"join": strings.Join,
}

// renderPrompt loads a template by name and executes it.
func renderPrompt(store driven.PromptStore, name string, data PromptData) (string, error) {
	text, err := store.Load(name)
	if err != nil {
		return "", fmt.Errorf("load prompt %s: %w", name, err)
	}
	tmpl, err := template.New(name).Funcs(templateFuncs).Option("missingkey=zero").Parse(text)
	if err != nil {
		return "", fmt.Errorf("parse prompt %s: %w", name, err)
	}
	var buf bytes.Buffer
	if err := tmpl.Execute(&buf, data); err != nil {
		return "", fmt.Errorf("render prompt %s: %w", name, err)
	}
	return strings.TrimSpace(buf.String()), nil
}
