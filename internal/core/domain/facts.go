package domain

import (
	"fmt"
	"strings"
	"time"
)

// DisplayDateLayout is the day-first date layout used in rendered text.
const DisplayDateLayout = "02/01/2006"

// TimeUnrecorded marks a death or event time the source did not record.
const TimeUnrecorded = "unrecorded"

// DeathConfidence grades a death detection.
type DeathConfidence string

// Death confidence levels.
const (
	DeathCertain  DeathConfidence = "certain"
	DeathInferred DeathConfidence = "inferred"
)

// DeathInfo is the authoritative death status of an episode.
type DeathInfo struct {
	Detected       bool            `json:"detected"`
	Date           time.Time       `json:"date,omitempty"`
	Time           string          `json:"time,omitempty"`
	MatchedPhrase  string          `json:"matched_phrase,omitempty"`
	SourceSentence string          `json:"source_sentence,omitempty"`
	Confidence     DeathConfidence `json:"confidence,omitempty"`
}

// HasTime reports whether a clock time was recorded.
func (d DeathInfo) HasTime() bool {
	return d.Time != "" && d.Time != TimeUnrecorded
}

// Provenance says when a medication was started relative to admission.
type Provenance string

// Provenance values.
const (
	ProvenanceDuringAdmission Provenance = "during_admission"
	ProvenancePreAdmission    Provenance = "pre_admission"
)

// IsValid returns true if the provenance is recognised.
func (p Provenance) IsValid() bool {
	return p == ProvenanceDuringAdmission || p == ProvenancePreAdmission
}

// ClassificationSource records which rule decided a provenance.
type ClassificationSource string

// Classification sources, in precedence order.
const (
	ClassifiedExplicit          ClassificationSource = "explicit"
	ClassifiedChronicList       ClassificationSource = "inferred_chronic_list"
	ClassifiedAcuteList         ClassificationSource = "inferred_acute_list"
	ClassifiedGeneratorProposed ClassificationSource = "generator_proposed"
)

// MedicationEntry is a classified medication in the final document.
type MedicationEntry struct {
	Name       string               `json:"name"`
	Dose       string               `json:"dose,omitempty"`
	Route      string               `json:"route,omitempty"`
	Frequency  string               `json:"frequency,omitempty"`
	Provenance Provenance           `json:"provenance"`
	Source     ClassificationSource `json:"classification_source"`
}

// SectionItem is one dated entry of a chronological list.
// Grouped labs carry their individual studies in Details.
type SectionItem struct {
	Date        time.Time `json:"date,omitempty"`
	Time        string    `json:"time,omitempty"`
	Description string    `json:"description"`
	Count       int       `json:"count,omitempty"`
	Details     []string  `json:"details,omitempty"`
	Specialty   string    `json:"specialty,omitempty"`
}

// HasDate reports whether the item carries a date.
func (i SectionItem) HasDate() bool {
	return !i.Date.IsZero()
}

// HasTime reports whether the item carries a clock time.
func (i SectionItem) HasTime() bool {
	return i.Time != "" && i.Time != TimeUnrecorded
}

// Render formats the item as a display line.
func (i SectionItem) Render() string {
	var b strings.Builder
	if i.HasDate() {
		b.WriteString(i.Date.Format(DisplayDateLayout))
		if i.HasTime() {
			b.WriteString(" " + i.Time)
		} else {
			b.WriteString(" (hora no registrada)")
		}
		b.WriteString(" - ")
	}
	if i.Specialty != "" && !strings.HasPrefix(i.Description, i.Specialty) {
		fmt.Fprintf(&b, "%s: ", i.Specialty)
	}
	b.WriteString(i.Description)
	return b.String()
}

// Key identifies duplicate items.
func (i SectionItem) Key() string {
	return fmt.Sprintf("%s|%s|%s", i.Date.Format("2006-01-02"), i.Time, strings.ToLower(strings.TrimSpace(i.Description)))
}

// RuleFacts are the deterministic facts computed before generation.
type RuleFacts struct {
	TablesVersion string            `json:"tables_version"`
	Death         DeathInfo         `json:"death"`
	Medications   []MedicationEntry `json:"medications"`
	Procedures    []SectionItem     `json:"procedures"`
	Consultations []SectionItem     `json:"consultations"`
	LabDetails    []SectionItem     `json:"lab_details,omitempty"`
	Rejected      []ClinicalEvent   `json:"rejected,omitempty"`
}
