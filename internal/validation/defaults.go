package validation

import (
	"github.com/custodia-labs/epicrisis/internal/core/domain"
	"github.com/custodia-labs/epicrisis/internal/core/ports/driven"
	"github.com/custodia-labs/epicrisis/internal/rules"
	"github.com/custodia-labs/epicrisis/internal/validation/checks"
)

// DefaultOrder is the fixed execution order of the built-in checks.
// Contradiction removal runs before the announcement is settled so the
// canonical line is never stripped.
func DefaultOrder() []string {
	return []string{
		domain.RuleDeathContradiction,
		domain.RuleDeathAnnouncement,
		domain.RuleMedicationProvenance,
		domain.RuleEventChronology,
	}
}

// RegisterDefaults registers all built-in checks with the registry.
func RegisterDefaults(r *Registry) {
	r.Register(domain.RuleDeathContradiction, func(e *rules.Engine) driven.ValidationCheck {
		return checks.NewDeathContradiction(e)
	})
	r.Register(domain.RuleDeathAnnouncement, func(_ *rules.Engine) driven.ValidationCheck {
		return checks.NewDeathAnnouncement()
	})
	r.Register(domain.RuleMedicationProvenance, func(e *rules.Engine) driven.ValidationCheck {
		return checks.NewMedicationProvenance(e)
	})
	r.Register(domain.RuleEventChronology, func(_ *rules.Engine) driven.ValidationCheck {
		return checks.NewEventChronology()
	})
}

// NewDefaultPipeline builds the built-in checks in DefaultOrder.
func NewDefaultPipeline(engine *rules.Engine) (*Pipeline, error) {
	r := NewRegistry()
	RegisterDefaults(r)
	return r.BuildPipeline(engine, DefaultOrder()...)
}
