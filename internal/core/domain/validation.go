package domain

// Validation rule names as they appear in reports.
const (
	RuleDeathContradiction   = "death_discharge_contradiction"
	RuleDeathAnnouncement    = "death_announcement"
	RuleMedicationProvenance = "medication_provenance"
	RuleEventChronology      = "event_chronology"
)

// Violation is one inconsistency found by the post-validator.
// CorrectedText is nil when the fix was a removal or the violation was only flagged.
type Violation struct {
	Section       SectionName `json:"section"`
	Rule          string      `json:"rule"`
	OriginalText  string      `json:"original_text"`
	CorrectedText *string     `json:"corrected_text"`
	AutoCorrected bool        `json:"auto_corrected"`
}

// ValidationReport lists violations in detection order.
type ValidationReport struct {
	Violations []Violation
}

// NewValidationReport returns an empty, non-nil report.
func NewValidationReport() ValidationReport {
	return ValidationReport{Violations: []Violation{}}
}

// Add appends a violation.
func (r *ValidationReport) Add(v Violation) {
	r.Violations = append(r.Violations, v)
}

// Len returns the number of violations.
func (r ValidationReport) Len() int {
	return len(r.Violations)
}

// ForSection returns violations recorded against one section.
func (r ValidationReport) ForSection(name SectionName) []Violation {
	var out []Violation
	for _, v := range r.Violations {
		if v.Section == name {
			out = append(out, v)
		}
	}
	return out
}

// Flagged returns violations that were not auto-corrected.
func (r ValidationReport) Flagged() []Violation {
	var out []Violation
	for _, v := range r.Violations {
		if !v.AutoCorrected {
			out = append(out, v)
		}
	}
	return out
}

// StringPtr returns a pointer to s.
func StringPtr(s string) *string {
	return &s
}
