package domain

import "time"

// SourceType names the shape of a clinical history record.
type SourceType string

// Known source types. Any other value is accepted and handled by the
// free-text fallback.
const (
	SourceFreeText       SourceType = "free_text"
	SourceStructuredJSON SourceType = "structured_json"
	SourceKeyValue       SourceType = "key_value"
)

// IsKnown reports whether a dedicated extractor exists for the type.
func (s SourceType) IsKnown() bool {
	switch s {
	case SourceFreeText, SourceStructuredJSON, SourceKeyValue:
		return true
	default:
		return false
	}
}

// String returns the string representation.
func (s SourceType) String() string {
	return string(s)
}

// ClinicalEpisode is one admission's raw clinical history.
// It is immutable once ingested.
type ClinicalEpisode struct {
	ID         string     `json:"id"`
	SourceType SourceType `json:"source_type"`
	Raw        []byte     `json:"raw"`
	IngestedAt time.Time  `json:"ingested_at"`
}

// Confidence grades how much of the source structure an extractor understood.
type Confidence string

// Extraction confidence levels.
const (
	ConfidenceFull Confidence = "full"
	ConfidenceLow  Confidence = "low"
)

// EventKind classifies a dated clinical event.
type EventKind string

// Event kinds.
const (
	EventProcedure    EventKind = "procedure"
	EventLab          EventKind = "lab"
	EventConsultation EventKind = "consultation"
)

// ClinicalEvent is a procedure, lab or consultation found in the history.
// A zero Date means the source gave no date; an empty Time means no time.
type ClinicalEvent struct {
	Kind        EventKind `json:"kind"`
	Date        time.Time `json:"date,omitempty"`
	Time        string    `json:"time,omitempty"`
	Description string    `json:"description"`
	Specialty   string    `json:"specialty,omitempty"`
}

// HasDate reports whether the event carries a date.
func (e ClinicalEvent) HasDate() bool {
	return !e.Date.IsZero()
}

// MedicationMention is a medication as it appears in the source.
type MedicationMention struct {
	Name       string `json:"name"`
	Dose       string `json:"dose,omitempty"`
	Route      string `json:"route,omitempty"`
	Frequency  string `json:"frequency,omitempty"`
	RawContext string `json:"raw_context,omitempty"`

	// DeclaredProvenance is set only when the source states it explicitly.
	DeclaredProvenance Provenance `json:"declared_provenance,omitempty"`
}

// PatientInfo holds the demographic context threaded into prompts.
type PatientInfo struct {
	Age           int       `json:"age,omitempty"`
	Sex           string    `json:"sex,omitempty"`
	AdmissionDate time.Time `json:"admission_date,omitempty"`
	DischargeDate time.Time `json:"discharge_date,omitempty"`
	StayDays      int       `json:"stay_days,omitempty"`
}

// ExtractedContent is the normalized view of an episode.
type ExtractedContent struct {
	EpisodeID         string              `json:"episode_id"`
	SourceType        SourceType          `json:"source_type"`
	Text              string              `json:"text"`
	Events            []ClinicalEvent     `json:"events"`
	Medications       []MedicationMention `json:"medications"`
	Patient           PatientInfo         `json:"patient"`
	DischargeTypeCode string              `json:"discharge_type_code,omitempty"`
	AdmissionReason   string              `json:"admission_reason,omitempty"`
	Diagnoses         []string            `json:"diagnoses,omitempty"`
	Confidence        Confidence          `json:"confidence"`
	Degraded          bool                `json:"degraded"`
	Warnings          []string            `json:"warnings,omitempty"`
}

// IsEmpty reports whether nothing usable was extracted.
func (c *ExtractedContent) IsEmpty() bool {
	return c == nil || (c.Text == "" && len(c.Events) == 0 && len(c.Medications) == 0)
}

// EventsOfKind returns events of the given kind in source order.
func (c *ExtractedContent) EventsOfKind(kind EventKind) []ClinicalEvent {
	var out []ClinicalEvent
	for _, e := range c.Events {
		if e.Kind == kind {
			out = append(out, e)
		}
	}
	return out
}
