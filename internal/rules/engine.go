package rules

import (
	"sort"
	"strings"

	"github.com/custodia-labs/epicrisis/internal/core/domain"
)

// Engine evaluates rule tables against extracted content. It holds no
// mutable state and is safe for concurrent use.
type Engine struct {
	tables *Tables

	deathPhrases   phraseSet
	deathCodes     []string
	contradictions phraseSet
	chronic        phraseSet
	acute          phraseSet
	parenteral     phraseSet
	labs           phraseSet
	nursing        phraseSet
	specialties    []specialty
}

type specialty struct {
	key   []rune
	label string
}

// New compiles an engine from rule tables.
func New(t *Tables) *Engine {
	e := &Engine{
		tables:         t,
		deathPhrases:   newPhraseSet(t.Death.Phrases),
		contradictions: newPhraseSet(t.Contradictions.Phrases),
		chronic:        newPhraseSet(flatten(t.Medication.Chronic)),
		acute:          newPhraseSet(flatten(t.Medication.Acute)),
		parenteral:     newPhraseSet(t.Medication.ParenteralRoutes),
		labs:           newPhraseSet(t.Events.LabKeywords),
		nursing:        newPhraseSet(t.Events.NursingKeywords),
	}
	for _, c := range t.Death.DischargeCodes {
		e.deathCodes = append(e.deathCodes, Fold(c))
	}
	for k, v := range t.Specialties {
		e.specialties = append(e.specialties, specialty{key: []rune(Fold(k)), label: v})
	}
	// Longer keys first so "terapia intensiva" wins over shorter overlaps.
	sort.Slice(e.specialties, func(i, j int) bool {
		a, b := e.specialties[i], e.specialties[j]
		if len(a.key) != len(b.key) {
			return len(a.key) > len(b.key)
		}
		return string(a.key) < string(b.key)
	})
	return e
}

// NewDefault compiles an engine from the embedded tables.
func NewDefault() (*Engine, error) {
	t, err := DefaultTables()
	if err != nil {
		return nil, err
	}
	return New(t), nil
}

// Version returns the rule table version.
func (e *Engine) Version() string {
	return e.tables.Version
}

// IsLab reports whether an event description names a lab study.
func (e *Engine) IsLab(description string) bool {
	return e.labs.contains(description)
}

// IsNursingRoutine reports whether a procedure is routine nursing care.
func (e *Engine) IsNursingRoutine(description string) bool {
	return e.nursing.contains(description)
}

// Specialty returns the display name of the first specialty mentioned in text.
func (e *Engine) Specialty(text string) string {
	folded := foldRunes(text)
	best, bestAt := "", -1
	for _, s := range e.specialties {
		if i := indexWord(folded, s.key, 0); i >= 0 && (bestAt < 0 || i < bestAt) {
			best, bestAt = s.label, i
		}
	}
	return best
}

// Evaluate computes the facts the generated narrative must honour.
func (e *Engine) Evaluate(c *domain.ExtractedContent) domain.RuleFacts {
	facts := domain.RuleFacts{TablesVersion: e.Version()}
	if c == nil {
		return facts
	}

	facts.Death = e.DetectDeath(c.Text, c.DischargeTypeCode)
	if facts.Death.Detected && facts.Death.Date.IsZero() && !c.Patient.DischargeDate.IsZero() {
		facts.Death.Date = c.Patient.DischargeDate
	}

	seen := make(map[string]bool)
	for _, m := range c.Medications {
		entry := e.ClassifyMention(m, "")
		key := Fold(strings.Join([]string{entry.Name, entry.Dose, entry.Route, entry.Frequency}, "|"))
		if seen[key] {
			continue
		}
		seen[key] = true
		facts.Medications = append(facts.Medications, entry)
	}

	chron := e.Chronology(c.Events)
	facts.Procedures = chron.Procedures
	facts.Consultations = chron.Consultations
	facts.LabDetails = chron.LabDetails
	facts.Rejected = chron.Rejected
	return facts
}
