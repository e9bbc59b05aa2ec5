package domain

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"
)

// SectionName identifies a section of the discharge narrative.
type SectionName string

// Section names.
const (
	SectionAdmissionReason       SectionName = "admission_reason"
	SectionMainDiagnosis         SectionName = "main_diagnosis"
	SectionEvolution             SectionName = "evolution"
	SectionProcedures            SectionName = "procedures"
	SectionConsultations         SectionName = "consultations"
	SectionMedication            SectionName = "medication"
	SectionDischargeInstructions SectionName = "discharge_instructions"
	SectionRecommendations       SectionName = "recommendations"
)

// AllSections returns section names in canonical document order.
func AllSections() []SectionName {
	return []SectionName{
		SectionAdmissionReason,
		SectionMainDiagnosis,
		SectionEvolution,
		SectionProcedures,
		SectionConsultations,
		SectionMedication,
		SectionDischargeInstructions,
		SectionRecommendations,
	}
}

// IsValid returns true if the section name is recognised.
func (s SectionName) IsValid() bool {
	for _, n := range AllSections() {
		if n == s {
			return true
		}
	}
	return false
}

// Kind returns the content shape of the section.
func (s SectionName) Kind() SectionKind {
	switch s {
	case SectionProcedures, SectionConsultations:
		return KindDatedList
	case SectionMedication:
		return KindMedication
	case SectionDischargeInstructions, SectionRecommendations:
		return KindList
	default:
		return KindNarrative
	}
}

// SuppressedOnDeath reports whether the section must be empty when the patient died.
func (s SectionName) SuppressedOnDeath() bool {
	return s == SectionDischargeInstructions || s == SectionRecommendations
}

// Title returns the heading used in rendered output.
func (s SectionName) Title() string {
	switch s {
	case SectionAdmissionReason:
		return "Motivo de internación"
	case SectionMainDiagnosis:
		return "Diagnóstico principal"
	case SectionEvolution:
		return "Evolución"
	case SectionProcedures:
		return "Procedimientos"
	case SectionConsultations:
		return "Interconsultas"
	case SectionMedication:
		return "Medicación"
	case SectionDischargeInstructions:
		return "Indicaciones de alta"
	case SectionRecommendations:
		return "Recomendaciones"
	default:
		return string(s)
	}
}

// SectionKind is the content shape of a section.
type SectionKind string

// Section kinds.
const (
	KindNarrative  SectionKind = "narrative"
	KindList       SectionKind = "list"
	KindDatedList  SectionKind = "dated_list"
	KindMedication SectionKind = "medication"
)

// SectionStatus tracks a section through validation.
type SectionStatus string

// Section statuses.
const (
	StatusDraft     SectionStatus = "draft"
	StatusValidated SectionStatus = "validated"
	StatusCorrected SectionStatus = "corrected"
	StatusFlagged   SectionStatus = "flagged"
)

// EPCSection is one section of the narrative.
// Only the field matching Kind carries content.
type EPCSection struct {
	Name        SectionName
	Kind        SectionKind
	Text        string
	Items       []string
	Events      []SectionItem
	Medications []MedicationEntry
	Status      SectionStatus

	// Raw holds the provider output when parsing failed.
	Raw string

	// Attempts counts provider calls made for the section.
	Attempts int
}

// IsEmpty reports whether the section has no content.
func (s *EPCSection) IsEmpty() bool {
	return strings.TrimSpace(s.Text) == "" && len(s.Items) == 0 &&
		len(s.Events) == 0 && len(s.Medications) == 0
}

// Clear removes all content.
func (s *EPCSection) Clear() {
	s.Text = ""
	s.Items = nil
	s.Events = nil
	s.Medications = nil
}

// Lines returns the section content as display lines.
func (s *EPCSection) Lines() []string {
	switch s.Kind {
	case KindNarrative:
		if s.Text == "" {
			return nil
		}
		return []string{s.Text}
	case KindDatedList:
		out := make([]string, 0, len(s.Events))
		for _, e := range s.Events {
			out = append(out, e.Render())
		}
		return out
	case KindMedication:
		out := make([]string, 0, len(s.Medications))
		for _, m := range s.Medications {
			out = append(out, strings.Join(nonEmpty(m.Name, m.Dose, m.Route, m.Frequency), " "))
		}
		return out
	default:
		return append([]string(nil), s.Items...)
	}
}

// Clone returns a deep copy.
func (s EPCSection) Clone() EPCSection {
	c := s
	c.Items = append([]string(nil), s.Items...)
	c.Medications = append([]MedicationEntry(nil), s.Medications...)
	if s.Events != nil {
		c.Events = make([]SectionItem, len(s.Events))
		for i, e := range s.Events {
			e.Details = append([]string(nil), e.Details...)
			c.Events[i] = e
		}
	}
	return c
}

// NewSection returns an empty draft section of the right kind.
func NewSection(name SectionName) EPCSection {
	return EPCSection{Name: name, Kind: name.Kind(), Status: StatusDraft}
}

// EPCDocument is the generated discharge narrative.
type EPCDocument struct {
	ID           string
	EpisodeID    string
	GeneratedAt  time.Time
	ModelVersion string
	Sections     []EPCSection
	Report       ValidationReport
	Run          RunRecord
}

// Section returns the named section, or nil.
func (d *EPCDocument) Section(name SectionName) *EPCSection {
	for i := range d.Sections {
		if d.Sections[i].Name == name {
			return &d.Sections[i]
		}
	}
	return nil
}

// Clone returns a deep copy.
func (d EPCDocument) Clone() EPCDocument {
	c := d
	c.Sections = make([]EPCSection, len(d.Sections))
	for i, s := range d.Sections {
		c.Sections[i] = s.Clone()
	}
	c.Report = ValidationReport{Violations: append([]Violation(nil), d.Report.Violations...)}
	c.Run.Transitions = append([]Transition(nil), d.Run.Transitions...)
	c.Run.Warnings = append([]string(nil), d.Run.Warnings...)
	return c
}

type sectionJSON struct {
	Status   SectionStatus   `json:"status"`
	Content  json.RawMessage `json:"content"`
	Events   []SectionItem   `json:"events,omitempty"`
	Raw      string          `json:"raw,omitempty"`
	Attempts int             `json:"attempts,omitempty"`
}

type documentJSON struct {
	ID               string                      `json:"id"`
	EpisodeID        string                      `json:"episode_id"`
	GeneratedAt      time.Time                   `json:"generated_at"`
	ModelVersion     string                      `json:"model_version"`
	Sections         map[SectionName]sectionJSON `json:"sections"`
	ValidationReport []Violation                 `json:"validation_report"`
	Run              RunRecord                   `json:"run"`
}

// MarshalJSON writes the canonical section-keyed form.
// validation_report is always an array.
func (d EPCDocument) MarshalJSON() ([]byte, error) {
	out := documentJSON{
		ID:               d.ID,
		EpisodeID:        d.EpisodeID,
		GeneratedAt:      d.GeneratedAt,
		ModelVersion:     d.ModelVersion,
		Sections:         make(map[SectionName]sectionJSON, len(d.Sections)),
		ValidationReport: d.Report.Violations,
		Run:              d.Run,
	}
	if out.ValidationReport == nil {
		out.ValidationReport = []Violation{}
	}
	for _, s := range d.Sections {
		content, err := sectionContent(s)
		if err != nil {
			return nil, fmt.Errorf("section %s: %w", s.Name, err)
		}
		sj := sectionJSON{Status: s.Status, Content: content, Raw: s.Raw, Attempts: s.Attempts}
		if s.Kind == KindDatedList {
			sj.Events = s.Events
		}
		out.Sections[s.Name] = sj
	}
	return json.Marshal(out)
}

func sectionContent(s EPCSection) ([]byte, error) {
	switch s.Kind {
	case KindNarrative:
		return json.Marshal(s.Text)
	case KindMedication:
		if s.Medications == nil {
			return []byte("[]"), nil
		}
		return json.Marshal(s.Medications)
	default:
		lines := s.Lines()
		if lines == nil {
			lines = []string{}
		}
		return json.Marshal(lines)
	}
}

// UnmarshalJSON restores a document, putting sections back in canonical order.
func (d *EPCDocument) UnmarshalJSON(data []byte) error {
	var in documentJSON
	if err := json.Unmarshal(data, &in); err != nil {
		return err
	}
	d.ID = in.ID
	d.EpisodeID = in.EpisodeID
	d.GeneratedAt = in.GeneratedAt
	d.ModelVersion = in.ModelVersion
	d.Report = ValidationReport{Violations: in.ValidationReport}
	d.Run = in.Run
	d.Sections = nil

	for _, name := range AllSections() {
		sj, ok := in.Sections[name]
		if !ok {
			continue
		}
		s := NewSection(name)
		s.Status = sj.Status
		s.Raw = sj.Raw
		s.Attempts = sj.Attempts
		var err error
		switch s.Kind {
		case KindNarrative:
			err = json.Unmarshal(sj.Content, &s.Text)
		case KindMedication:
			err = json.Unmarshal(sj.Content, &s.Medications)
		case KindDatedList:
			s.Events = sj.Events
		default:
			err = json.Unmarshal(sj.Content, &s.Items)
		}
		if err != nil {
			return fmt.Errorf("section %s: %w", name, err)
		}
		d.Sections = append(d.Sections, s)
	}
	return nil
}

// VersionInputs are the facts a version was generated from.
// Regeneration reuses them without re-running extraction.
type VersionInputs struct {
	Extracted ExtractedContent `json:"extracted"`
	Facts     RuleFacts        `json:"facts"`
}

// EPCVersion is an immutable, numbered snapshot of a document.
type EPCVersion struct {
	// ID is the unique identifier for the version.
	ID string

	// EpisodeID links to the ClinicalEpisode.
	EpisodeID string

	// Number is 1-based and increases per episode.
	Number int

	// Document is the finalized document.
	Document EPCDocument

	// Inputs holds the extraction and rule facts used.
	Inputs VersionInputs

	// CreatedAt is when the version was committed.
	CreatedAt time.Time
}

func nonEmpty(parts ...string) []string {
	out := parts[:0:0]
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}
