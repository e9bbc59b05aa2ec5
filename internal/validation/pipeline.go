package validation

import (
	"fmt"

	"github.com/custodia-labs/epicrisis/internal/core/domain"
	"github.com/custodia-labs/epicrisis/internal/core/ports/driven"
)

// Ensure Pipeline implements the interface.
var _ driven.ValidationPipeline = (*Pipeline)(nil)

// Pipeline chains checks and runs them in order.
type Pipeline struct {
	checks []driven.ValidationCheck
}

// NewPipeline creates a pipeline. Checks run in the order provided.
func NewPipeline(checks ...driven.ValidationCheck) *Pipeline {
	return &Pipeline{checks: checks}
}

// Run applies every check to doc, then settles section statuses from the
// findings.
func (p *Pipeline) Run(doc *domain.EPCDocument, facts *domain.RuleFacts, report *domain.ValidationReport) error {
	if doc == nil {
		return fmt.Errorf("document is nil")
	}
	if facts == nil {
		facts = &domain.RuleFacts{}
	}
	for _, c := range p.checks {
		if err := c.Check(doc, facts, report); err != nil {
			return fmt.Errorf("check %s: %w", c.Name(), err)
		}
	}
	ApplyStatuses(doc, *report)
	return nil
}

// Add appends a check to the pipeline.
func (p *Pipeline) Add(check driven.ValidationCheck) {
	p.checks = append(p.checks, check)
}

// Len returns the number of checks in the pipeline.
func (p *Pipeline) Len() int {
	return len(p.checks)
}

// Names returns check names in execution order.
func (p *Pipeline) Names() []string {
	names := make([]string, len(p.checks))
	for i, c := range p.checks {
		names[i] = c.Name()
	}
	return names
}

// ApplyStatuses marks sections from the report. A flagged finding flags the
// section; an auto-correction marks it corrected; an untouched draft becomes
// validated. Flagged is never downgraded.
func ApplyStatuses(doc *domain.EPCDocument, report domain.ValidationReport) {
	for i := range doc.Sections {
		s := &doc.Sections[i]
		flagged, corrected := false, false
		for _, v := range report.ForSection(s.Name) {
			if v.AutoCorrected {
				corrected = true
			} else {
				flagged = true
			}
		}
		switch {
		case s.Status == domain.StatusFlagged:
		case flagged:
			s.Status = domain.StatusFlagged
		case corrected:
			s.Status = domain.StatusCorrected
		case s.Status == domain.StatusDraft || s.Status == "":
			s.Status = domain.StatusValidated
		}
	}
}
