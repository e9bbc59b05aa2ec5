package services

import (
	"encoding/json"
	"fmt"
	"regexp"
	"strings"

	"github.com/custodia-labs/epicrisis/internal/core/domain"
	"github.com/custodia-labs/epicrisis/internal/rules"
)

var fenceLine = regexp.MustCompile("(?m)^\\s*```[a-zA-Z]*\\s*$")

// stripFences removes markdown code fences around model output.
func stripFences(s string) string {
	return strings.TrimSpace(fenceLine.ReplaceAllString(s, ""))
}

// firstObject returns the first balanced JSON object in s.
func firstObject(s string) (string, bool) {
	start := strings.IndexByte(s, '{')
	for start >= 0 {
		depth := 0
		inString, escaped := false, false
	scan:
		for i := start; i < len(s); i++ {
			c := s[i]
			if inString {
				switch {
				case escaped:
					escaped = false
				case c == '\\':
					escaped = true
				case c == '"':
					inString = false
				}
				continue
			}
			switch c {
			case '"':
				inString = true
			case '{':
				depth++
			case '}':
				depth--
				if depth == 0 {
					candidate := s[start : i+1]
					if json.Valid([]byte(candidate)) {
						return candidate, true
					}
					break scan
				}
			}
		}
		next := strings.IndexByte(s[start+1:], '{')
		if next < 0 {
			break
		}
		start += next + 1
	}
	return "", false
}

// medicationJSON is one medication as the model writes it.
type medicationJSON struct {
	Name      string `json:"farmaco"`
	Dose      string `json:"dosis"`
	Route     string `json:"via"`
	Frequency string `json:"frecuencia"`
	Kind      string `json:"tipo"`
}

// Alternative medication keys split by provenance.
const (
	keyMedicationDuring = "medicacion_internacion"
	keyMedicationPrior  = "medicacion_previa"
)

// parsedSection is model output read into a section's shape.
type parsedSection struct {
	Text        string
	Items       []string
	Medications []domain.MedicationEntry
}

// parseOutput reads raw model output into the shape of the named section.
func parseOutput(name domain.SectionName, raw string) (parsedSection, error) {
	cleaned := stripFences(raw)
	if cleaned == "" {
		return parsedSection{}, fmt.Errorf("%w: empty output", domain.ErrParse)
	}

	obj, ok := firstObject(cleaned)
	if !ok {
		if name.Kind() == domain.KindNarrative && !strings.ContainsAny(cleaned, "{}") {
			return parsedSection{Text: cleaned}, nil
		}
		return parsedSection{}, fmt.Errorf("%w: no JSON object", domain.ErrParse)
	}

	var fields map[string]json.RawMessage
	if err := json.Unmarshal([]byte(obj), &fields); err != nil {
		return parsedSection{}, fmt.Errorf("%w: %v", domain.ErrParse, err)
	}

	if name.Kind() == domain.KindMedication {
		return parseMedication(fields)
	}

	value, ok := lookup(fields, name)
	if !ok {
		return parsedSection{}, fmt.Errorf("%w: missing key %q", domain.ErrParse, SectionKey(name))
	}

	switch name.Kind() {
	case domain.KindNarrative:
		text, err := readText(value)
		if err != nil {
			return parsedSection{}, err
		}
		if text == "" {
			return parsedSection{}, fmt.Errorf("%w: empty %s", domain.ErrParse, SectionKey(name))
		}
		return parsedSection{Text: text}, nil
	default:
		items, err := readItems(value)
		if err != nil {
			return parsedSection{}, err
		}
		return parsedSection{Items: items}, nil
	}
}

// lookup finds the section value under its JSON key, its section name, or
// the only key present.
func lookup(fields map[string]json.RawMessage, name domain.SectionName) (json.RawMessage, bool) {
	if v, ok := fields[SectionKey(name)]; ok {
		return v, true
	}
	if v, ok := fields[string(name)]; ok {
		return v, true
	}
	if len(fields) == 1 {
		for _, v := range fields {
			return v, true
		}
	}
	return nil, false
}

func readText(value json.RawMessage) (string, error) {
	var s string
	if err := json.Unmarshal(value, &s); err == nil {
		return strings.TrimSpace(s), nil
	}
	var parts []string
	if err := json.Unmarshal(value, &parts); err == nil {
		return strings.TrimSpace(strings.Join(rules.Paragraphs(strings.Join(parts, "\n")), "\n\n")), nil
	}
	return "", fmt.Errorf("%w: expected text", domain.ErrParse)
}

func readItems(value json.RawMessage) ([]string, error) {
	var items []string
	if err := json.Unmarshal(value, &items); err != nil {
		var s string
		if err2 := json.Unmarshal(value, &s); err2 != nil {
			return nil, fmt.Errorf("%w: expected a list", domain.ErrParse)
		}
		items = rules.Paragraphs(s)
	}
	out := items[:0:0]
	for _, it := range items {
		if it = strings.TrimSpace(it); it != "" {
			out = append(out, it)
		}
	}
	return out, nil
}

func parseMedication(fields map[string]json.RawMessage) (parsedSection, error) {
	var out parsedSection
	found := false

	read := func(key string, provenance domain.Provenance) error {
		value, ok := fields[key]
		if !ok {
			return nil
		}
		found = true
		var meds []medicationJSON
		if err := json.Unmarshal(value, &meds); err != nil {
			return fmt.Errorf("%w: %s: %v", domain.ErrParse, key, err)
		}
		for _, m := range meds {
			name := strings.TrimSpace(m.Name)
			if name == "" {
				continue
			}
			p := provenance
			if declared := rules.ParseProvenance(m.Kind); declared != "" {
				p = declared
			}
			entry := domain.MedicationEntry{
				Name:      name,
				Dose:      strings.TrimSpace(m.Dose),
				Route:     strings.TrimSpace(m.Route),
				Frequency: strings.TrimSpace(m.Frequency),
			}
			if p.IsValid() {
				entry.Provenance = p
				entry.Source = domain.ClassifiedGeneratorProposed
			}
			out.Medications = append(out.Medications, entry)
		}
		return nil
	}

	if err := read(SectionKey(domain.SectionMedication), ""); err != nil {
		return parsedSection{}, err
	}
	if err := read(keyMedicationDuring, domain.ProvenanceDuringAdmission); err != nil {
		return parsedSection{}, err
	}
	if err := read(keyMedicationPrior, domain.ProvenancePreAdmission); err != nil {
		return parsedSection{}, err
	}
	if !found {
		return parsedSection{}, fmt.Errorf("%w: missing key %q", domain.ErrParse, SectionKey(domain.SectionMedication))
	}
	return out, nil
}
