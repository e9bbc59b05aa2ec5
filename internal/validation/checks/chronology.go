package checks

import (
	"strings"

	"github.com/custodia-labs/epicrisis/internal/core/domain"
	"github.com/custodia-labs/epicrisis/internal/core/ports/driven"
	"github.com/custodia-labs/epicrisis/internal/rules"
)

// Ensure EventChronology implements the interface.
var _ driven.ValidationCheck = (*EventChronology)(nil)

// EventChronology keeps dated lists dated, unique and in order.
type EventChronology struct{}

// NewEventChronology creates the check.
func NewEventChronology() *EventChronology {
	return &EventChronology{}
}

// Name returns the rule name.
func (c *EventChronology) Name() string {
	return domain.RuleEventChronology
}

// Check removes undated items as flagged omissions, drops duplicates and
// re-sorts out-of-order lists.
func (c *EventChronology) Check(doc *domain.EPCDocument, _ *domain.RuleFacts, report *domain.ValidationReport) error {
	for i := range doc.Sections {
		s := &doc.Sections[i]
		if s.Kind != domain.KindDatedList || len(s.Events) == 0 {
			continue
		}

		dated := make([]domain.SectionItem, 0, len(s.Events))
		for _, ev := range s.Events {
			if ev.HasDate() {
				dated = append(dated, ev)
				continue
			}
			report.Add(domain.Violation{
				Section:      s.Name,
				Rule:         c.Name(),
				OriginalText: ev.Description,
			})
		}

		unique, removed := rules.DedupeItems(dated)
		for _, ev := range removed {
			report.Add(domain.Violation{
				Section:       s.Name,
				Rule:          c.Name(),
				OriginalText:  ev.Render(),
				AutoCorrected: true,
			})
		}

		if !rules.IsSorted(unique) {
			before := render(unique)
			rules.SortItems(unique)
			report.Add(domain.Violation{
				Section:       s.Name,
				Rule:          c.Name(),
				OriginalText:  before,
				CorrectedText: domain.StringPtr(render(unique)),
				AutoCorrected: true,
			})
		}
		s.Events = unique
	}
	return nil
}

func render(items []domain.SectionItem) string {
	lines := make([]string, len(items))
	for i, it := range items {
		lines[i] = it.Render()
	}
	return strings.Join(lines, "\n")
}
