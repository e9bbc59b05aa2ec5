// Package structured extracts clinical content from the external history
// system's JSON export: an episode header plus a list of typed registry
// entries.
package structured

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"strings"

	"github.com/custodia-labs/epicrisis/internal/core/domain"
	"github.com/custodia-labs/epicrisis/internal/core/ports/driven"
	"github.com/custodia-labs/epicrisis/internal/extractors/scan"
	"github.com/custodia-labs/epicrisis/internal/rules"
)

// Ensure Extractor implements the interface.
var _ driven.Extractor = (*Extractor)(nil)

const admissionExcerpt = 300

// Extractor handles structured_json episodes.
type Extractor struct {
	rules   *rules.Engine
	scanner *scan.Scanner
}

// New creates a structured extractor.
func New(engine *rules.Engine, scanner *scan.Scanner) *Extractor {
	return &Extractor{rules: engine, scanner: scanner}
}

// Name identifies the extractor.
func (e *Extractor) Name() string {
	return "structured"
}

// SourceTypes returns the source types this extractor handles.
func (e *Extractor) SourceTypes() []domain.SourceType {
	return []domain.SourceType{domain.SourceStructuredJSON}
}

// Priority returns the selection priority.
func (e *Extractor) Priority() int {
	return 90
}

// Extract decodes the export and maps registry entries to content.
func (e *Extractor) Extract(_ context.Context, episode *domain.ClinicalEpisode) (*domain.ExtractedContent, error) {
	if episode == nil {
		return nil, domain.ErrInvalidInput
	}
	var doc document
	if err := json.Unmarshal(episode.Raw, &doc); err != nil {
		return nil, fmt.Errorf("decode history export: %w", err)
	}
	body := doc.body()
	if body.Episodio == nil && len(body.Historia) == 0 {
		return nil, fmt.Errorf("%w: no episodio or historia in export", domain.ErrInvalidInput)
	}

	entries := make([]entry, len(body.Historia))
	copy(entries, body.Historia)
	sort.SliceStable(entries, func(i, j int) bool {
		return entries[i].AttendedAt < entries[j].AttendedAt
	})

	content := &domain.ExtractedContent{
		EpisodeID:  episode.ID,
		SourceType: episode.SourceType,
		Confidence: domain.ConfidenceFull,
	}
	if ep := body.Episodio; ep != nil {
		content.Patient = patient(ep)
		content.DischargeTypeCode = strings.TrimSpace(ep.DischargeType)
	}

	var narrative []string
	seenDiag := make(map[string]bool)
	for _, en := range entries {
		if text := strings.TrimSpace(en.Progress); text != "" && en.Type != typeFluidBalance && en.Type != typeNursingControl {
			narrative = append(narrative, fmt.Sprintf("[%s] (%s)\n%s", en.AttendedAt, en.Type, text))
		}
		if lines := templateLines(en.Templates); len(lines) > 0 {
			narrative = append(narrative, lines...)
		}

		switch en.Type {
		case typeConsultation:
			if ev, ok := e.consultation(en); ok {
				content.Events = append(content.Events, ev)
			}
		case typeOrder:
			content.Medications = append(content.Medications, medications(en)...)
			content.Events = append(content.Events, e.procedures(en)...)
		}

		for _, d := range en.Diagnoses {
			desc := strings.TrimSpace(d.Description)
			if desc == "" || seenDiag[strings.ToLower(desc)] {
				continue
			}
			seenDiag[strings.ToLower(desc)] = true
			content.Diagnoses = append(content.Diagnoses, desc)
		}
	}

	content.Text = strings.Join(narrative, "\n\n")
	content.AdmissionReason = motive(entries)
	e.scanner.Fill(content)
	return content, nil
}

func patient(ep *episode) domain.PatientInfo {
	p := domain.PatientInfo{
		Age:      int(ep.Age),
		Sex:      scan.NormalizeSex(ep.Sex),
		StayDays: int(ep.StayDays),
	}
	if d, _, ok := rules.ParseDateTime(ep.AdmittedAt); ok {
		p.AdmissionDate = d
	}
	if d, _, ok := rules.ParseDateTime(ep.DischargedAt); ok {
		p.DischargeDate = d
	}
	if p.StayDays == 0 && !p.AdmissionDate.IsZero() && p.DischargeDate.After(p.AdmissionDate) {
		p.StayDays = int(p.DischargeDate.Sub(p.AdmissionDate).Hours() / 24)
	}
	return p
}

// motive looks for a stated reason in the first three admission or triage
// entries, then in the explicit motive field, then falls back to the start
// of the admission note.
func motive(entries []entry) string {
	for i, en := range entries {
		if i >= 3 {
			break
		}
		if en.Type == typeAdmission || strings.Contains(en.Type, "TRIAGE") || strings.Contains(en.Type, "ADMIS") {
			if m := scan.Motive(en.Progress); m != "" {
				return m
			}
		}
	}
	for _, en := range entries {
		if m := strings.TrimSpace(en.Motive); m != "" {
			return m
		}
	}
	for _, en := range entries {
		if en.Type == typeAdmission && strings.TrimSpace(en.Progress) != "" {
			r := []rune(strings.TrimSpace(en.Progress))
			if len(r) > admissionExcerpt {
				return string(r[:admissionExcerpt]) + "..."
			}
			return string(r)
		}
	}
	return ""
}

func (e *Extractor) consultation(en entry) (domain.ClinicalEvent, bool) {
	text := strings.TrimSpace(en.Progress)
	if text == "" {
		return domain.ClinicalEvent{}, false
	}
	ev := domain.ClinicalEvent{
		Kind:        domain.EventConsultation,
		Description: firstSentence(text),
		Specialty:   e.rules.Specialty(text),
	}
	if ev.Specialty == "" {
		for _, d := range en.Diagnoses {
			if sp := e.rules.Specialty(d.Description); sp != "" {
				ev.Specialty = sp
				break
			}
		}
	}
	if d, clock, ok := rules.ParseDateTime(en.AttendedAt); ok {
		ev.Date, ev.Time = d, clock
	}
	return ev, true
}

func medications(en entry) []domain.MedicationMention {
	var out []domain.MedicationMention
	for _, m := range en.Medications {
		name := strings.TrimSpace(m.Drug)
		if name == "" {
			continue
		}
		dose := strings.TrimSpace(string(m.Dose))
		if dose != "" && m.Unit != "" {
			dose += strings.TrimSpace(m.Unit)
		}
		mention := domain.MedicationMention{
			Name:      name,
			Dose:      dose,
			Route:     strings.TrimSpace(m.Route),
			Frequency: strings.TrimSpace(m.Frequency),
		}
		mention.RawContext = strings.Join(nonEmpty(mention.Name, mention.Dose, mention.Route, mention.Frequency), " ")
		out = append(out, mention)
	}
	return out
}

// procedures maps ordered procedures to events. Labs keep only the order
// date since the order time is not when the sample was taken; routine
// nursing care is skipped.
func (e *Extractor) procedures(en entry) []domain.ClinicalEvent {
	date, clock, dated := rules.ParseDateTime(en.AttendedAt)
	var out []domain.ClinicalEvent
	for _, p := range en.Procedures {
		desc := strings.TrimSpace(p.Description)
		if desc == "" || e.rules.IsNursingRoutine(desc) {
			continue
		}
		ev := domain.ClinicalEvent{Kind: domain.EventProcedure, Description: desc}
		if e.rules.IsLab(desc) {
			ev.Kind = domain.EventLab
		}
		if dated {
			ev.Date = date
			if ev.Kind == domain.EventProcedure {
				ev.Time = clock
			}
		}
		out = append(out, ev)
	}
	return out
}

func templateLines(templates []template) []string {
	var out []string
	for _, t := range templates {
		var values []string
		for _, p := range t.Properties {
			v := strings.NewReplacer("<br>", " ", "<br/>", " ", "<br />", " ").Replace(string(p.Value))
			v = strings.Join(strings.Fields(v), " ")
			if v == "" {
				continue
			}
			label := strings.TrimSpace(p.Label)
			if label == "" {
				label = "Campo"
			}
			values = append(values, label+": "+v)
		}
		if len(values) == 0 {
			continue
		}
		head := strings.TrimSpace(t.Group)
		if head != "" {
			head += ": "
		}
		out = append(out, head+strings.Join(values, "; "))
	}
	return out
}

func firstSentence(text string) string {
	text = strings.Join(strings.Fields(text), " ")
	if i := strings.Index(text, ". "); i > 0 {
		text = text[:i+1]
	}
	r := []rune(text)
	if len(r) > 200 {
		return string(r[:200]) + "..."
	}
	return text
}

func nonEmpty(values ...string) []string {
	out := values[:0]
	for _, v := range values {
		if v != "" {
			out = append(out, v)
		}
	}
	return out
}
