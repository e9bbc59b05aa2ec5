package services

import (
	"fmt"

	"github.com/custodia-labs/epicrisis/internal/core/domain"
	"github.com/custodia-labs/epicrisis/internal/core/ports/driven"
)

// PostValidator checks a drafted document against the rule facts.
type PostValidator struct {
	pipeline driven.ValidationPipeline
}

// NewPostValidator creates a validator over a check pipeline.
func NewPostValidator(pipeline driven.ValidationPipeline) *PostValidator {
	return &PostValidator{pipeline: pipeline}
}

// Validate returns a corrected copy of draft and the violations found.
// The draft is never modified.
func (v *PostValidator) Validate(draft *domain.EPCDocument, facts *domain.RuleFacts) (*domain.EPCDocument, domain.ValidationReport, error) {
	report := domain.NewValidationReport()
	if draft == nil {
		return nil, report, fmt.Errorf("%w: no document to validate", domain.ErrInvalidInput)
	}
	if facts == nil {
		facts = &domain.RuleFacts{}
	}

	doc := draft.Clone()
	if err := v.pipeline.Run(&doc, facts, &report); err != nil {
		return nil, domain.NewValidationReport(), fmt.Errorf("validate: %w", err)
	}
	doc.Report = report
	return &doc, report, nil
}

// Checks returns the check names in execution order.
func (v *PostValidator) Checks() []string {
	return v.pipeline.Names()
}
