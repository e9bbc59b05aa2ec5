package rules

import (
	"fmt"
	"regexp"
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/custodia-labs/epicrisis/internal/core/domain"
)

const defaultDeathNarrative = "Se constata óbito."

// DetectDeath decides whether the episode ended in death. A discharge code
// naming death is authoritative; text phrases alone give an inferred result.
func (e *Engine) DetectDeath(text, dischargeCode string) domain.DeathInfo {
	byCode := e.isDeathCode(dischargeCode)
	folded := foldRunes(text)
	hit, byText := e.deathPhrases.first(folded)
	if !byCode && !byText {
		return domain.DeathInfo{}
	}

	info := domain.DeathInfo{
		Detected:   true,
		Time:       domain.TimeUnrecorded,
		Confidence: domain.DeathInferred,
	}
	if byCode {
		info.Confidence = domain.DeathCertain
		info.MatchedPhrase = strings.TrimSpace(dischargeCode)
	}
	if !byText {
		return info
	}

	info.MatchedPhrase = hit.term
	info.SourceSentence = sentenceAround(text, hit)

	window := e.tables.Death.Window
	if d, ok := nearest(dateTokens(text, ReferenceYear(text)), hit, window); ok {
		info.Date = d.date
	}
	if t, ok := nearest(timeTokens(text), hit, window); ok {
		info.Time = t.clock
	}
	return info
}

func (e *Engine) isDeathCode(code string) bool {
	if strings.TrimSpace(code) == "" {
		return false
	}
	f := Fold(code)
	for _, c := range e.deathCodes {
		if strings.Contains(f, c) {
			return true
		}
	}
	return false
}

func sentenceAround(text string, s span) string {
	rs := []rune(text)
	start := s.start
	for start > 0 && rs[start-1] != '.' && rs[start-1] != '\n' {
		start--
	}
	end := s.end
	for end < len(rs) && rs[end] != '.' && rs[end] != '\n' {
		end++
	}
	if end < len(rs) && rs[end] == '.' {
		end++
	}
	return strings.TrimSpace(string(rs[start:end]))
}

// DeathHeader renders the mandatory death announcement prefix:
//
//	PACIENTE OBITÓ - Fecha: 29/07/2025 Hora: 22:00.
func DeathHeader(info domain.DeathInfo) string {
	date := "fecha no registrada"
	if !info.Date.IsZero() {
		date = info.Date.Format(domain.DisplayDateLayout)
	}
	clock := "hora no registrada"
	if info.HasTime() {
		clock = info.Time
	}
	return fmt.Sprintf("PACIENTE OBITÓ - Fecha: %s Hora: %s.", date, clock)
}

// DeathLine renders the full announcement paragraph.
func DeathLine(info domain.DeathInfo, narrative string) string {
	narrative = strings.TrimSpace(narrative)
	if narrative == "" {
		narrative = defaultDeathNarrative
	}
	if !strings.HasSuffix(narrative, ".") {
		narrative += "."
	}
	return DeathHeader(info) + " " + narrative
}

// IsDeathAnnouncement reports whether a paragraph is some form of the
// announcement line, well-formed or not.
func IsDeathAnnouncement(paragraph string) bool {
	return strings.HasPrefix(Fold(strings.TrimSpace(paragraph)), "paciente obito")
}

var announcementPrefix = regexp.MustCompile(
	`(?i)^paciente\s+obit\S*\s*-?\s*` +
		`(?:fecha:?\s*(?:fecha no registrada|[0-9/\-]+)\s*)?` +
		`(?:hora:?\s*(?:hora no registrada|\d{1,2}:\d{2}(?:\s*hs)?)\s*)?\.?\s*`)

// leadingWhen matches date and time clauses that open a prose death
// sentence, e.g. "el 29/07/2025 a las 22:00 hs,".
var leadingWhen = regexp.MustCompile(
	`(?i)^(?:[,;:.\s]*(?:(?:el|del)\s+(?:d[ií]a\s+)?|en\s+fecha\s+|fecha:?\s*|a\s+las?\s+|siendo\s+las?\s+|hora:?\s*|y\s+)*` +
		`(?:\d{1,2}[/\-]\d{1,2}(?:[/\-]\d{2,4})?|\d{1,2}[:.]\d{2}(?:\s*h(?:s|rs)?\b\.?)?))+[,;:.\s]*`)

// DeathNarrative returns the text following the announcement prefix, without
// a leading date or time clause and starting with a capital letter.
func DeathNarrative(paragraph string) string {
	p := strings.TrimSpace(paragraph)
	if loc := announcementPrefix.FindStringIndex(p); loc != nil {
		p = p[loc[1]:]
	}
	if loc := leadingWhen.FindStringIndex(p); loc != nil {
		p = p[loc[1]:]
	}
	p = strings.TrimSpace(strings.TrimLeft(p, ",;:. "))
	if p == "" {
		return ""
	}
	r, size := utf8.DecodeRuneInString(p)
	return string(unicode.ToUpper(r)) + p[size:]
}

// Paragraphs splits text into trimmed, non-empty lines.
func Paragraphs(text string) []string {
	var out []string
	for _, line := range strings.Split(text, "\n") {
		if line = strings.TrimSpace(line); line != "" {
			out = append(out, line)
		}
	}
	return out
}

// abbreviations end with a dot without ending the sentence.
var abbreviations = map[string]bool{
	"dr": true, "dra": true, "sr": true, "sra": true, "lic": true, "aprox": true,
	"nro": true, "num": true, "dto": true, "prof": true, "vs": true, "etc": true,
}

// sentenceSpans splits line into sentences. Each span keeps the whitespace
// that follows it, so joining the spans gives back the line. A terminator
// ends a sentence only when followed by whitespace or the end of the line,
// not inside numbers such as 1.8, after an abbreviation, or before a
// lower-case word or a digit.
func sentenceSpans(line string) []string {
	var spans []string
	start := 0
	for i := 0; i < len(line); i++ {
		if !isTerminator(line[i]) {
			continue
		}
		j := i
		for j+1 < len(line) && isTerminator(line[j+1]) {
			j++
		}
		k := j + 1
		for k < len(line) && (line[k] == ' ' || line[k] == '\t') {
			k++
		}
		if k < len(line) && !endsSentence(line, start, i, j, k) {
			i = j
			continue
		}
		spans = append(spans, line[start:k])
		start = k
		i = k - 1
	}
	if start < len(line) {
		spans = append(spans, line[start:])
	}
	return spans
}

// endsSentence decides a terminator run line[i:j+1] followed by text at k.
func endsSentence(line string, start, i, j, k int) bool {
	if k == j+1 {
		return false
	}
	next, _ := utf8.DecodeRuneInString(line[k:])
	if unicode.IsLower(next) || unicode.IsDigit(next) {
		return false
	}
	if i == j && line[i] == '.' {
		words := strings.Fields(line[start:i])
		if len(words) > 0 && abbreviations[Fold(words[len(words)-1])] {
			return false
		}
	}
	return true
}

func isTerminator(b byte) bool {
	return b == '.' || b == '!' || b == '?'
}

// StripContradictions removes sentences implying the patient left alive.
// Only the offending sentences are cut; the rest of the line is kept as
// written. Lines without a contradiction are returned unchanged.
func (e *Engine) StripContradictions(text string) (string, []string) {
	var removed []string
	var kept []string
	for _, line := range strings.Split(text, "\n") {
		if !e.contradictions.contains(line) {
			kept = append(kept, line)
			continue
		}
		var b strings.Builder
		for _, span := range sentenceSpans(line) {
			if s := strings.TrimSpace(span); s != "" && e.contradictions.contains(s) {
				removed = append(removed, s)
				continue
			}
			b.WriteString(span)
		}
		if rest := strings.TrimSpace(b.String()); rest != "" {
			kept = append(kept, rest)
		}
	}
	if len(removed) == 0 {
		return text, nil
	}
	return strings.TrimSpace(strings.Join(kept, "\n")), removed
}

// Contradicts reports whether text contains a contradiction phrase.
func (e *Engine) Contradicts(text string) bool {
	return e.contradictions.contains(text)
}
