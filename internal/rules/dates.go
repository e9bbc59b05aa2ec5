package rules

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"
	"unicode/utf8"
)

var (
	slashDate = regexp.MustCompile(`\b(\d{1,2})/(\d{1,2})/(\d{4})\b`)
	isoDate   = regexp.MustCompile(`\b(\d{4})-(\d{1,2})-(\d{1,2})\b`)
	dashDate  = regexp.MustCompile(`\b(\d{1,2})-(\d{1,2})-(\d{4})\b`)
	shortDate = regexp.MustCompile(`\b(\d{1,2})/(\d{1,2})\b`)
	clockTime = regexp.MustCompile(`\b([01]?\d|2[0-3]):([0-5]\d)(?::[0-5]\d)?(?:\s*(?:hs|hrs|horas)\b)?`)
)

// token is a date or time found in text, with rune offsets.
type token struct {
	start, end int
	date       time.Time
	clock      string
}

func (t token) distance(s span) int {
	switch {
	case t.end <= s.start:
		return s.start - t.end
	case t.start >= s.end:
		return t.start - s.end
	default:
		return 0
	}
}

func makeDate(y, m, d int) (time.Time, bool) {
	if y < 1900 || m < 1 || m > 12 || d < 1 {
		return time.Time{}, false
	}
	t := time.Date(y, time.Month(m), d, 0, 0, 0, 0, time.UTC)
	if t.Day() != d || int(t.Month()) != m {
		return time.Time{}, false
	}
	return t, true
}

func atoi(s string) int {
	n, _ := strconv.Atoi(s)
	return n
}

func runeOffset(text string, byteOff int) int {
	return utf8.RuneCountInString(text[:byteOff])
}

// dateTokens finds full dates, then day/month dates completed with refYear.
func dateTokens(text string, refYear int) []token {
	var out []token
	var taken [][2]int

	add := func(loc []int, y, m, d int) {
		if t, ok := makeDate(y, m, d); ok {
			out = append(out, token{start: runeOffset(text, loc[0]), end: runeOffset(text, loc[1]), date: t})
			taken = append(taken, [2]int{loc[0], loc[1]})
		}
	}

	for _, loc := range slashDate.FindAllStringSubmatchIndex(text, -1) {
		add(loc, atoi(text[loc[6]:loc[7]]), atoi(text[loc[4]:loc[5]]), atoi(text[loc[2]:loc[3]]))
	}
	for _, loc := range isoDate.FindAllStringSubmatchIndex(text, -1) {
		add(loc, atoi(text[loc[2]:loc[3]]), atoi(text[loc[4]:loc[5]]), atoi(text[loc[6]:loc[7]]))
	}
	for _, loc := range dashDate.FindAllStringSubmatchIndex(text, -1) {
		add(loc, atoi(text[loc[6]:loc[7]]), atoi(text[loc[4]:loc[5]]), atoi(text[loc[2]:loc[3]]))
	}
	if refYear == 0 {
		return out
	}

	for _, loc := range shortDate.FindAllStringSubmatchIndex(text, -1) {
		overlaps := false
		for _, r := range taken {
			if loc[0] < r[1] && loc[1] > r[0] {
				overlaps = true
				break
			}
		}
		if overlaps {
			continue
		}
		if t, ok := makeDate(refYear, atoi(text[loc[4]:loc[5]]), atoi(text[loc[2]:loc[3]])); ok {
			out = append(out, token{start: runeOffset(text, loc[0]), end: runeOffset(text, loc[1]), date: t})
		}
	}
	return out
}

func timeTokens(text string) []token {
	var out []token
	for _, loc := range clockTime.FindAllStringSubmatchIndex(text, -1) {
		h := atoi(text[loc[2]:loc[3]])
		m := text[loc[4]:loc[5]]
		out = append(out, token{
			start: runeOffset(text, loc[0]),
			end:   runeOffset(text, loc[1]),
			clock: fmt.Sprintf("%02d:%s", h, m),
		})
	}
	return out
}

// ReferenceYear returns the year of the first full date in text, or 0.
// Day/month dates elsewhere in the text are completed with it.
func ReferenceYear(text string) int {
	toks := dateTokens(text, 0)
	if len(toks) == 0 {
		return 0
	}
	first := toks[0]
	for _, t := range toks[1:] {
		if t.start < first.start {
			first = t
		}
	}
	return first.date.Year()
}

// nearest returns the token closest to s within window runes.
func nearest(toks []token, s span, window int) (token, bool) {
	best, found := token{}, false
	for _, t := range toks {
		d := t.distance(s)
		if d > window {
			continue
		}
		if !found || d < best.distance(s) || (d == best.distance(s) && t.start < best.start) {
			best, found = t, true
		}
	}
	return best, found
}

var dateLayouts = []string{
	time.RFC3339,
	"2006-01-02T15:04:05.999999999",
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05",
	"2006-01-02 15:04",
	"2006-01-02",
	"02/01/2006 15:04:05",
	"02/01/2006 15:04",
	"02/01/2006",
	"2/1/2006",
	"02-01-2006",
}

// ParseDateTime parses the date formats clinical sources use. It returns the
// calendar date at midnight UTC and the clock time as "HH:MM" when the
// layout carries one.
func ParseDateTime(s string) (time.Time, string, bool) {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}, "", false
	}
	for _, layout := range dateLayouts {
		t, err := time.Parse(layout, s)
		if err != nil {
			continue
		}
		date := time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
		clock := ""
		if strings.Contains(layout, "15") {
			clock = t.Format("15:04")
		}
		return date, clock, true
	}
	return time.Time{}, "", false
}

// FindDateTime returns the first date in text and the nearest clock time.
// Day/month dates use refYear when it is non-zero.
func FindDateTime(text string, refYear int) (time.Time, string, bool) {
	dates := dateTokens(text, refYear)
	if len(dates) == 0 {
		return time.Time{}, "", false
	}
	first := dates[0]
	for _, t := range dates[1:] {
		if t.start < first.start {
			first = t
		}
	}
	clock := ""
	if t, ok := nearest(timeTokens(text), span{start: first.start, end: first.end}, 40); ok {
		clock = t.clock
	}
	return first.date, clock, true
}
