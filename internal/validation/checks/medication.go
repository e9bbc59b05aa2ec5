package checks

import (
	"fmt"
	"strings"

	"github.com/custodia-labs/epicrisis/internal/core/domain"
	"github.com/custodia-labs/epicrisis/internal/core/ports/driven"
	"github.com/custodia-labs/epicrisis/internal/rules"
)

// Ensure MedicationProvenance implements the interface.
var _ driven.ValidationCheck = (*MedicationProvenance)(nil)

// MedicationProvenance re-derives the provenance of every generated
// medication entry and overwrites disagreements.
type MedicationProvenance struct {
	rules *rules.Engine
}

// NewMedicationProvenance creates the check.
func NewMedicationProvenance(engine *rules.Engine) *MedicationProvenance {
	return &MedicationProvenance{rules: engine}
}

// Name returns the rule name.
func (c *MedicationProvenance) Name() string {
	return domain.RuleMedicationProvenance
}

// Check reclassifies entries. A provenance declared by the source wins;
// otherwise the rules decide. Only a provenance that came from the generator
// counts as a proposal, so an entry already classified by the rules keeps
// its classification on a second run.
func (c *MedicationProvenance) Check(doc *domain.EPCDocument, facts *domain.RuleFacts, report *domain.ValidationReport) error {
	s := doc.Section(domain.SectionMedication)
	if s == nil {
		return nil
	}
	for i := range s.Medications {
		m := &s.Medications[i]
		declared, context := domain.Provenance(""), ""
		if src, ok := c.match(facts.Medications, m.Name); ok {
			if src.Source == domain.ClassifiedExplicit {
				declared = src.Provenance
			}
			context = strings.TrimSpace(src.Dose + " " + src.Route)
		}

		proposed := domain.Provenance("")
		if m.Source == "" || m.Source == domain.ClassifiedGeneratorProposed {
			proposed = m.Provenance
		}

		classified := c.rules.Classify(*m, declared, proposed, context)
		if classified.Provenance != m.Provenance {
			report.Add(domain.Violation{
				Section:       s.Name,
				Rule:          c.Name(),
				OriginalText:  describe(*m),
				CorrectedText: domain.StringPtr(describe(classified)),
				AutoCorrected: true,
			})
		}
		*m = classified
	}
	return nil
}

// match finds the extracted medication with the same folded name.
func (c *MedicationProvenance) match(meds []domain.MedicationEntry, name string) (domain.MedicationEntry, bool) {
	key := rules.Fold(strings.TrimSpace(name))
	if key == "" {
		return domain.MedicationEntry{}, false
	}
	for _, m := range meds {
		if rules.Fold(strings.TrimSpace(m.Name)) == key {
			return m, true
		}
	}
	for _, m := range meds {
		f := rules.Fold(strings.TrimSpace(m.Name))
		if f != "" && (strings.HasPrefix(key, f+" ") || strings.HasPrefix(f, key+" ")) {
			return m, true
		}
	}
	return domain.MedicationEntry{}, false
}

func describe(m domain.MedicationEntry) string {
	p := string(m.Provenance)
	if p == "" {
		p = "sin clasificar"
	}
	return fmt.Sprintf("%s: %s", m.Name, p)
}
