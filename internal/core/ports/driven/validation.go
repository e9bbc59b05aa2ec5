package driven

import "github.com/custodia-labs/epicrisis/internal/core/domain"

// ValidationCheck is one contradiction check of the post-validator.
// Checks run in a fixed order over a working copy of the document.
type ValidationCheck interface {
	// Name returns the rule name recorded in violations.
	Name() string

	// Check inspects doc against facts, corrects it in place where the rule
	// allows, and records every finding in report.
	Check(doc *domain.EPCDocument, facts *domain.RuleFacts, report *domain.ValidationReport) error
}

// ValidationPipeline chains checks.
type ValidationPipeline interface {
	// Run applies every check in order.
	Run(doc *domain.EPCDocument, facts *domain.RuleFacts, report *domain.ValidationReport) error

	// Names returns the check names in execution order.
	Names() []string
}
