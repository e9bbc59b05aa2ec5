package checks

import (
	"strings"

	"github.com/custodia-labs/epicrisis/internal/core/domain"
	"github.com/custodia-labs/epicrisis/internal/core/ports/driven"
	"github.com/custodia-labs/epicrisis/internal/rules"
)

// Ensure DeathContradiction implements the interface.
var _ driven.ValidationCheck = (*DeathContradiction)(nil)

// DeathContradiction removes text implying the patient left alive when the
// rule facts say the patient died.
type DeathContradiction struct {
	rules *rules.Engine
}

// NewDeathContradiction creates the check.
func NewDeathContradiction(engine *rules.Engine) *DeathContradiction {
	return &DeathContradiction{rules: engine}
}

// Name returns the rule name.
func (c *DeathContradiction) Name() string {
	return domain.RuleDeathContradiction
}

// Check strips contradicting sentences and empties sections that must not
// exist for a deceased patient.
func (c *DeathContradiction) Check(doc *domain.EPCDocument, facts *domain.RuleFacts, report *domain.ValidationReport) error {
	if !facts.Death.Detected {
		return nil
	}
	for i := range doc.Sections {
		s := &doc.Sections[i]
		if s.Name.SuppressedOnDeath() {
			if !s.IsEmpty() {
				report.Add(domain.Violation{
					Section:       s.Name,
					Rule:          c.Name(),
					OriginalText:  strings.Join(s.Lines(), "\n"),
					AutoCorrected: true,
				})
				s.Clear()
			}
			continue
		}

		switch s.Kind {
		case domain.KindNarrative:
			text, removed := c.rules.StripContradictions(s.Text)
			c.record(report, s.Name, removed)
			s.Text = text
		case domain.KindList:
			s.Items = c.stripItems(report, s.Name, s.Items)
		case domain.KindDatedList:
			s.Events = c.stripEvents(report, s.Name, s.Events)
		}
	}
	return nil
}

func (c *DeathContradiction) record(report *domain.ValidationReport, section domain.SectionName, removed []string) {
	for _, sentence := range removed {
		report.Add(domain.Violation{
			Section:       section,
			Rule:          c.Name(),
			OriginalText:  sentence,
			AutoCorrected: true,
		})
	}
}

func (c *DeathContradiction) stripItems(report *domain.ValidationReport, section domain.SectionName, items []string) []string {
	if len(items) == 0 {
		return items
	}
	out := make([]string, 0, len(items))
	for _, item := range items {
		text, removed := c.rules.StripContradictions(item)
		c.record(report, section, removed)
		if strings.TrimSpace(text) != "" {
			out = append(out, text)
		}
	}
	return out
}

func (c *DeathContradiction) stripEvents(report *domain.ValidationReport, section domain.SectionName, events []domain.SectionItem) []domain.SectionItem {
	if len(events) == 0 {
		return events
	}
	out := make([]domain.SectionItem, 0, len(events))
	for _, ev := range events {
		text, removed := c.rules.StripContradictions(ev.Description)
		c.record(report, section, removed)
		if strings.TrimSpace(text) == "" {
			continue
		}
		ev.Description = text
		out = append(out, ev)
	}
	return out
}
