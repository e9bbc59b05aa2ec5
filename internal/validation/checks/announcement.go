package checks

import (
	"strings"

	"github.com/custodia-labs/epicrisis/internal/core/domain"
	"github.com/custodia-labs/epicrisis/internal/core/ports/driven"
	"github.com/custodia-labs/epicrisis/internal/rules"
)

// Ensure DeathAnnouncement implements the interface.
var _ driven.ValidationCheck = (*DeathAnnouncement)(nil)

// DeathAnnouncement makes the canonical death line the last paragraph of
// the evolution.
type DeathAnnouncement struct{}

// NewDeathAnnouncement creates the check.
func NewDeathAnnouncement() *DeathAnnouncement {
	return &DeathAnnouncement{}
}

// Name returns the rule name.
func (c *DeathAnnouncement) Name() string {
	return domain.RuleDeathAnnouncement
}

// Check removes malformed or misplaced announcement paragraphs and appends
// the canonical line. The narrative following the last announcement the
// generator wrote is kept.
func (c *DeathAnnouncement) Check(doc *domain.EPCDocument, facts *domain.RuleFacts, report *domain.ValidationReport) error {
	if !facts.Death.Detected {
		return nil
	}
	s := doc.Section(domain.SectionEvolution)
	if s == nil {
		return nil
	}

	paragraphs := rules.Paragraphs(s.Text)
	var kept, announcements []string
	for _, p := range paragraphs {
		if rules.IsDeathAnnouncement(p) {
			announcements = append(announcements, p)
			continue
		}
		kept = append(kept, p)
	}

	narrative := ""
	if n := len(announcements); n > 0 {
		narrative = rules.DeathNarrative(announcements[n-1])
	}
	canonical := rules.DeathLine(facts.Death, narrative)

	if len(announcements) == 1 && len(paragraphs) > 0 && paragraphs[len(paragraphs)-1] == canonical {
		return nil
	}

	s.Text = strings.Join(append(kept, canonical), "\n\n")
	report.Add(domain.Violation{
		Section:       s.Name,
		Rule:          c.Name(),
		OriginalText:  strings.Join(announcements, "\n"),
		CorrectedText: domain.StringPtr(canonical),
		AutoCorrected: true,
	})
	return nil
}
