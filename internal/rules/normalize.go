package rules

import (
	"strings"
	"unicode"
	"unicode/utf8"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// Fold lower-cases s and strips diacritics, so "Óbito" and "obito" compare equal.
func Fold(s string) string {
	t := transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
	out, _, err := transform.String(t, s)
	if err != nil {
		out = s
	}
	return strings.ToLower(out)
}

// foldRunes folds s one rune at a time. The result is aligned with []rune(s),
// so offsets found in the folded form index the original text.
func foldRunes(s string) []rune {
	src := []rune(s)
	out := make([]rune, len(src))
	for i, r := range src {
		out[i] = foldRune(r)
	}
	return out
}

func foldRune(r rune) rune {
	if r < utf8.RuneSelf {
		return unicode.ToLower(r)
	}
	d := norm.NFD.String(string(r))
	base, _ := utf8.DecodeRuneInString(d)
	return unicode.ToLower(base)
}

func isWordRune(r rune) bool {
	return unicode.IsLetter(r) || unicode.IsDigit(r)
}

// phrase is a folded table term.
type phrase struct {
	text  string
	runes []rune
}

// phraseSet matches table terms whole-word, in table order.
type phraseSet []phrase

func newPhraseSet(terms []string) phraseSet {
	set := make(phraseSet, 0, len(terms))
	for _, t := range terms {
		f := strings.TrimSpace(Fold(t))
		if f == "" {
			continue
		}
		set = append(set, phrase{text: f, runes: []rune(f)})
	}
	return set
}

// span is a rune range in the original text.
type span struct {
	term       string
	start, end int
}

// first returns the earliest occurrence of the highest-priority term found.
func (p phraseSet) first(folded []rune) (span, bool) {
	for _, ph := range p {
		if i := indexWord(folded, ph.runes, 0); i >= 0 {
			return span{term: ph.text, start: i, end: i + len(ph.runes)}, true
		}
	}
	return span{}, false
}

// all returns every occurrence of every term, in text order.
func (p phraseSet) all(folded []rune) []span {
	var out []span
	for _, ph := range p {
		for from := 0; ; {
			i := indexWord(folded, ph.runes, from)
			if i < 0 {
				break
			}
			out = append(out, span{term: ph.text, start: i, end: i + len(ph.runes)})
			from = i + 1
		}
	}
	return out
}

// contains reports whether any term occurs in text.
func (p phraseSet) contains(text string) bool {
	_, ok := p.first(foldRunes(text))
	return ok
}

// match returns the first term occurring in text.
func (p phraseSet) match(text string) (string, bool) {
	s, ok := p.first(foldRunes(text))
	return s.term, ok
}

func indexWord(hay, needle []rune, from int) int {
	n := len(needle)
	if n == 0 {
		return -1
	}
	for i := from; i+n <= len(hay); i++ {
		if hay[i] != needle[0] {
			continue
		}
		if !equalRunes(hay[i:i+n], needle) {
			continue
		}
		if i > 0 && isWordRune(hay[i-1]) {
			continue
		}
		if i+n < len(hay) && isWordRune(hay[i+n]) {
			continue
		}
		return i
	}
	return -1
}

func equalRunes(a, b []rune) bool {
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}
