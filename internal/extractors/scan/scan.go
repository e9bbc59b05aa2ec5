// Package scan finds clinical facts in free text: medication lists,
// procedure entries, labs, consultations and demographic lines.
package scan

import (
	"regexp"
	"strconv"
	"strings"

	"github.com/custodia-labs/epicrisis/internal/core/domain"
	"github.com/custodia-labs/epicrisis/internal/rules"
)

const maxDescription = 200

var (
	procedureRe     = regexp.MustCompile(`^\s*-\s*\[(\d{4}-\d{1,2}-\d{1,2}[ T]\d{1,2}:\d{2}(?::\d{2})?)\]\s*(.*)$`)
	dischargeTypeRe = regexp.MustCompile(`(?im)tipo de (?:alta|egreso)\s*:\s*([^\n.]+)`)
	motiveRe        = regexp.MustCompile(`(?i)(?:motivo de consulta|motivo (?:de )?ingres\w*|consulta por|\bmc\b)[:\s]+([^.\n]+)`)
	ageRe           = regexp.MustCompile(`(?i)(?:\bedad\s*:?\s*(\d{1,3})\b|\b(\d{1,3})\s*años)`)
	sexRe           = regexp.MustCompile(`(?i)\bsexo\s*:?\s*(masculino|femenino|m|f)\b`)
	sexWordRe       = regexp.MustCompile(`(?i)\b(masculino|femenino|femenina)\b`)
	admissionRe     = regexp.MustCompile(`(?im)fecha de (?:ingreso|internaci[oó]n)\s*:?\s*([^\n]+)`)
	dischargeRe     = regexp.MustCompile(`(?im)fecha de (?:egreso|alta)\s*:?\s*([^\n]+)`)
	diagnosisRe     = regexp.MustCompile(`(?im)^\s*diagn[oó]sticos?(?: principal| de ingreso| presuntivo| de egreso)?\s*:\s*(.+)$`)
	consultRe       = regexp.MustCompile(`(?i)\binterconsulta\b|\bevaluad[oa] por\b|\bvalorad[oa] por\b`)
	sentenceRe      = regexp.MustCompile(`[^.\n]+`)
)

// Scanner extracts facts from free text using the rule vocabulary.
type Scanner struct {
	rules *rules.Engine
}

// New creates a scanner backed by a rule engine.
func New(engine *rules.Engine) *Scanner {
	return &Scanner{rules: engine}
}

// Fill scans c.Text and fills every field the caller left empty.
func (s *Scanner) Fill(c *domain.ExtractedContent) {
	if c == nil {
		return
	}
	if strings.TrimSpace(c.Text) != "" {
		s.fillFromText(c)
	}
	FillPatient(&c.Patient, c.Text)
}

func (s *Scanner) fillFromText(c *domain.ExtractedContent) {
	lines := strings.Split(c.Text, "\n")
	consumed := make(map[int]bool)

	meds := s.medications(lines, consumed)
	events := s.procedureEntries(lines, consumed)
	events = append(events, s.sentenceEvents(lines, consumed)...)

	if len(c.Medications) == 0 {
		c.Medications = meds
	}
	if len(c.Events) == 0 {
		c.Events = events
	}
	if c.DischargeTypeCode == "" {
		c.DischargeTypeCode = DischargeType(c.Text)
	}
	if c.AdmissionReason == "" {
		c.AdmissionReason = Motive(c.Text)
	}
	if len(c.Diagnoses) == 0 {
		c.Diagnoses = Diagnoses(c.Text)
	}
}

func (s *Scanner) medications(lines []string, consumed map[int]bool) []domain.MedicationMention {
	var out []domain.MedicationMention
	for _, b := range medicationBlocks(lines) {
		for _, i := range b.lines {
			consumed[i] = true
		}
		for _, item := range b.items {
			m, ok := ParseMedicationLine(item)
			if !ok {
				continue
			}
			m.DeclaredProvenance = b.declared
			out = append(out, m)
		}
	}
	return out
}

// procedureEntries reads "- [YYYY-MM-DD HH:MM:SS] TYPE" headers, each
// followed by a description line.
func (s *Scanner) procedureEntries(lines []string, consumed map[int]bool) []domain.ClinicalEvent {
	var out []domain.ClinicalEvent
	for i := 0; i < len(lines); i++ {
		m := procedureRe.FindStringSubmatch(lines[i])
		if m == nil {
			continue
		}
		consumed[i] = true
		kind := strings.TrimSpace(m[2])
		desc := kind
		if i+1 < len(lines) && strings.TrimSpace(lines[i+1]) != "" && !procedureRe.MatchString(lines[i+1]) {
			desc = strings.TrimSpace(lines[i+1])
			consumed[i+1] = true
			i++
		}
		date, clock, ok := rules.ParseDateTime(m[1])
		if !ok {
			continue
		}
		if ev, keep := s.classify(kind, desc); keep {
			ev.Date, ev.Time = date, clock
			out = append(out, ev)
		}
	}
	return out
}

// classify turns a typed entry into an event. Routine nursing care is dropped.
func (s *Scanner) classify(kind, desc string) (domain.ClinicalEvent, bool) {
	ev := domain.ClinicalEvent{Description: truncate(desc)}
	switch {
	case consultRe.MatchString(kind) || consultRe.MatchString(desc):
		ev.Kind = domain.EventConsultation
		ev.Specialty = s.rules.Specialty(desc + " " + kind)
	case s.rules.IsLab(desc) || s.rules.IsLab(kind):
		ev.Kind = domain.EventLab
	case s.rules.IsNursingRoutine(desc):
		return ev, false
	default:
		ev.Kind = domain.EventProcedure
	}
	return ev, true
}

// sentenceEvents finds labs and consultations mentioned in narrative
// sentences. Sentences without a date yield undated events.
func (s *Scanner) sentenceEvents(lines []string, consumed map[int]bool) []domain.ClinicalEvent {
	var out []domain.ClinicalEvent
	refYear := rules.ReferenceYear(strings.Join(lines, "\n"))
	for i, line := range lines {
		if consumed[i] {
			continue
		}
		for _, sentence := range sentenceRe.FindAllString(line, -1) {
			sentence = strings.TrimSpace(sentence)
			if sentence == "" {
				continue
			}
			var ev domain.ClinicalEvent
			switch {
			case consultRe.MatchString(sentence) && s.rules.Specialty(sentence) != "":
				ev = domain.ClinicalEvent{Kind: domain.EventConsultation, Specialty: s.rules.Specialty(sentence)}
			case s.rules.IsLab(sentence):
				ev = domain.ClinicalEvent{Kind: domain.EventLab}
			default:
				continue
			}
			ev.Description = truncate(sentence)
			if date, clock, ok := rules.FindDateTime(sentence, refYear); ok {
				ev.Date, ev.Time = date, clock
			}
			out = append(out, ev)
		}
	}
	return out
}

// DischargeType returns the value of a "Tipo de alta:" line.
func DischargeType(text string) string {
	if m := dischargeTypeRe.FindStringSubmatch(text); m != nil {
		return strings.TrimSpace(m[1])
	}
	return ""
}

// Motive returns the stated reason for consultation or admission.
func Motive(text string) string {
	if m := motiveRe.FindStringSubmatch(text); m != nil {
		return strings.TrimSpace(m[1])
	}
	return ""
}

// Diagnoses returns the entries of "Diagnóstico:" lines.
func Diagnoses(text string) []string {
	var out []string
	seen := make(map[string]bool)
	for _, m := range diagnosisRe.FindAllStringSubmatch(text, -1) {
		for _, d := range strings.Split(m[1], ";") {
			d = strings.TrimSpace(strings.TrimSuffix(strings.TrimSpace(d), "."))
			if d == "" || seen[strings.ToLower(d)] {
				continue
			}
			seen[strings.ToLower(d)] = true
			out = append(out, d)
		}
	}
	return out
}

// FillPatient fills empty demographic fields from text.
func FillPatient(p *domain.PatientInfo, text string) {
	if p.Age == 0 {
		if m := ageRe.FindStringSubmatch(text); m != nil {
			v := m[1]
			if v == "" {
				v = m[2]
			}
			if n, err := strconv.Atoi(v); err == nil && n > 0 && n < 130 {
				p.Age = n
			}
		}
	}
	if p.Sex == "" {
		if m := sexRe.FindStringSubmatch(text); m != nil {
			p.Sex = NormalizeSex(m[1])
		} else if m := sexWordRe.FindStringSubmatch(text); m != nil {
			p.Sex = NormalizeSex(m[1])
		}
	}
	if p.AdmissionDate.IsZero() {
		if m := admissionRe.FindStringSubmatch(text); m != nil {
			if d, _, ok := rules.FindDateTime(m[1], 0); ok {
				p.AdmissionDate = d
			}
		}
	}
	if p.DischargeDate.IsZero() {
		if m := dischargeRe.FindStringSubmatch(text); m != nil {
			if d, _, ok := rules.FindDateTime(m[1], 0); ok {
				p.DischargeDate = d
			}
		}
	}
	if p.StayDays == 0 && !p.AdmissionDate.IsZero() && p.DischargeDate.After(p.AdmissionDate) {
		p.StayDays = int(p.DischargeDate.Sub(p.AdmissionDate).Hours() / 24)
	}
}

// NormalizeSex maps source spellings to "masculino" or "femenino".
func NormalizeSex(s string) string {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "m", "masculino", "masc", "hombre", "male":
		return "masculino"
	case "f", "femenino", "femenina", "fem", "mujer", "female":
		return "femenino"
	default:
		return strings.TrimSpace(s)
	}
}

func truncate(s string) string {
	s = strings.TrimSpace(s)
	r := []rune(s)
	if len(r) <= maxDescription {
		return s
	}
	return strings.TrimSpace(string(r[:maxDescription])) + "..."
}
