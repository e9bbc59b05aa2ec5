package scan

import (
	"regexp"
	"strings"

	"github.com/custodia-labs/epicrisis/internal/core/domain"
)

var (
	doseRe   = regexp.MustCompile(`(?i)\b\d+(?:[.,]\d+)?\s*(?:mg/kg|mcg|ug|mg|gr|g|ui|ml|meq)\b|\b\d+(?:[.,]\d+)?\s*%`)
	routeRe  = regexp.MustCompile(`(?i)(?:^|[\s,(])(v\.o\.?|vo|oral|sublingual|sl|iv|ev|endovenos[oa]|intravenos[oa]|im|intramuscular|sc|subcut[aá]ne[oa]|inhalatori[oa]|t[oó]pic[oa]|sng|enteral|rectal|transd[eé]rmic[oa])(?:$|[\s,.;)])`)
	freqRe   = regexp.MustCompile(`(?i)\b(?:cada\s+\d+\s*(?:hs|hrs|horas|h)\b|c/\s*\d+\s*(?:hs|hrs|h)\b|\d+\s*veces?\s+(?:al|por)\s+d[ií]a|una vez al d[ií]a|por d[ií]a|diari[oa]|en ayunas|por la (?:noche|ma[nñ]ana)|seg[uú]n necesidad|sos\b)`)
	bulletRe = regexp.MustCompile(`^\s*(?:[-•*]|\d+[.)])\s*`)

	medHeaderRe = regexp.MustCompile(`(?i)^\s*(medicaci[oó]n habitual|mh|medicaci[oó]n previa|tratamiento habitual|medicaci[oó]n(?: al ingreso| actual| al alta)?|indicaciones farmacol[oó]gicas)\s*:\s*(.*)$`)
	headerRe    = regexp.MustCompile(`^\s*[^\d\s\-•*][^\d:]{1,40}:`)
)

// ParseMedicationLine splits a line such as "losartán 50mg oral cada 12hs"
// into name, dose, route and frequency. It reports false when no
// medication name can be found.
func ParseMedicationLine(line string) (domain.MedicationMention, bool) {
	text := strings.TrimSpace(bulletRe.ReplaceAllString(line, ""))
	if text == "" {
		return domain.MedicationMention{}, false
	}
	m := domain.MedicationMention{RawContext: strings.TrimSpace(line)}
	cut := len(text)

	if loc := doseRe.FindStringIndex(text); loc != nil {
		m.Dose = strings.TrimSpace(text[loc[0]:loc[1]])
		cut = min(cut, loc[0])
	}
	if loc := routeRe.FindStringSubmatchIndex(text); loc != nil {
		m.Route = strings.ToLower(strings.TrimSpace(text[loc[2]:loc[3]]))
		cut = min(cut, loc[2])
	}
	if loc := freqRe.FindStringIndex(text); loc != nil {
		m.Frequency = strings.TrimSpace(text[loc[0]:loc[1]])
		cut = min(cut, loc[0])
	}

	name := strings.Trim(strings.TrimSpace(text[:cut]), "-:,;.")
	name = strings.TrimSpace(name)
	if name == "" || strings.ContainsAny(name, "0123456789") {
		return domain.MedicationMention{}, false
	}
	if cut == len(text) && len(strings.Fields(name)) > 4 {
		return domain.MedicationMention{}, false
	}
	m.Name = name
	return m, true
}

// medicationBlock is a run of lines introduced by a medication header.
type medicationBlock struct {
	declared domain.Provenance
	lines    []int
	items    []string
}

func declaredFor(header string) domain.Provenance {
	h := strings.ToLower(header)
	switch {
	case h == "mh", strings.Contains(h, "habitual"), strings.Contains(h, "previa"):
		return domain.ProvenancePreAdmission
	default:
		return ""
	}
}

// medicationBlocks finds header-introduced medication lists. A block runs
// until a blank line or the next header.
func medicationBlocks(lines []string) []medicationBlock {
	var blocks []medicationBlock
	for i := 0; i < len(lines); i++ {
		m := medHeaderRe.FindStringSubmatch(lines[i])
		if m == nil {
			continue
		}
		b := medicationBlock{declared: declaredFor(m[1]), lines: []int{i}}
		b.items = append(b.items, splitItems(m[2])...)
		j := i + 1
		for ; j < len(lines); j++ {
			l := lines[j]
			if strings.TrimSpace(l) == "" || (headerRe.MatchString(l) && !bulletRe.MatchString(l)) {
				break
			}
			b.lines = append(b.lines, j)
			b.items = append(b.items, splitItems(l)...)
		}
		blocks = append(blocks, b)
		i = j - 1
	}
	return blocks
}

func splitItems(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ";") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		pieces := strings.Split(part, ",")
		if len(pieces) > 1 && allLookLikeMedication(pieces) {
			for _, p := range pieces {
				out = append(out, strings.TrimSpace(p))
			}
			continue
		}
		out = append(out, part)
	}
	return out
}

func allLookLikeMedication(pieces []string) bool {
	for _, p := range pieces {
		if !doseRe.MatchString(p) {
			return false
		}
	}
	return true
}
