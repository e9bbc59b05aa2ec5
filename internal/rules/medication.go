package rules

import (
	"strings"

	"github.com/custodia-labs/epicrisis/internal/core/domain"
)

// ClassifyMention classifies a medication as found in the source.
func (e *Engine) ClassifyMention(m domain.MedicationMention, proposed domain.Provenance) domain.MedicationEntry {
	entry := domain.MedicationEntry{
		Name:      strings.TrimSpace(m.Name),
		Dose:      strings.TrimSpace(m.Dose),
		Route:     strings.TrimSpace(m.Route),
		Frequency: strings.TrimSpace(m.Frequency),
	}
	return e.Classify(entry, m.DeclaredProvenance, proposed, m.RawContext)
}

// Classify assigns provenance to a medication entry. Precedence:
//
//  1. a provenance declared by the source
//  2. chronic list with a non-parenteral route gives pre_admission
//  3. acute list or a parenteral route gives during_admission
//  4. on a tie or no match, the generator's proposal
//  5. during_admission
//
// The result always carries a provenance.
func (e *Engine) Classify(entry domain.MedicationEntry, declared, proposed domain.Provenance, context string) domain.MedicationEntry {
	if declared.IsValid() {
		entry.Provenance = declared
		entry.Source = domain.ClassifiedExplicit
		return entry
	}

	chronic := e.chronic.contains(entry.Name)
	acute := e.acute.contains(entry.Name)
	parenteral := e.isParenteral(entry, context)

	switch {
	case chronic && !acute && !parenteral:
		entry.Provenance = domain.ProvenancePreAdmission
		entry.Source = domain.ClassifiedChronicList
	case parenteral || (acute && !chronic):
		entry.Provenance = domain.ProvenanceDuringAdmission
		entry.Source = domain.ClassifiedAcuteList
	case proposed.IsValid():
		entry.Provenance = proposed
		entry.Source = domain.ClassifiedGeneratorProposed
	default:
		entry.Provenance = domain.ProvenanceDuringAdmission
		entry.Source = domain.ClassifiedAcuteList
	}
	return entry
}

// isParenteral checks the route, then the name and dose, then the source
// context when no route was given.
func (e *Engine) isParenteral(entry domain.MedicationEntry, context string) bool {
	if entry.Route != "" {
		return e.parenteral.contains(entry.Route)
	}
	if e.parenteral.contains(entry.Name + " " + entry.Dose) {
		return true
	}
	return context != "" && e.parenteral.contains(context)
}

// ParseProvenance maps source wording to a provenance. Unknown wording
// returns an empty provenance.
func ParseProvenance(s string) domain.Provenance {
	switch f := Fold(strings.TrimSpace(s)); {
	case f == "":
		return ""
	case f == string(domain.ProvenancePreAdmission), strings.HasPrefix(f, "previ"),
		strings.HasPrefix(f, "habitual"), strings.HasPrefix(f, "cronic"):
		return domain.ProvenancePreAdmission
	case f == string(domain.ProvenanceDuringAdmission), strings.HasPrefix(f, "internacion"),
		strings.HasPrefix(f, "intrahospital"), strings.HasPrefix(f, "agud"):
		return domain.ProvenanceDuringAdmission
	default:
		return ""
	}
}
