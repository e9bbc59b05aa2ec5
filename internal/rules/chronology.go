package rules

import (
	"fmt"
	"regexp"
	"sort"
	"strings"

	"github.com/custodia-labs/epicrisis/internal/core/domain"
)

// Chronology is the ordered, deduplicated view of dated events.
type Chronology struct {
	// Procedures holds procedures and labs, with untimed same-date labs grouped.
	Procedures []domain.SectionItem

	// Consultations holds specialist consultations.
	Consultations []domain.SectionItem

	// LabDetails holds every lab study individually.
	LabDetails []domain.SectionItem

	// Rejected holds events that carried no date.
	Rejected []domain.ClinicalEvent
}

// Chronology orders events by date, drops undated and duplicate entries, and
// groups untimed labs sharing a date into one entry.
func (e *Engine) Chronology(events []domain.ClinicalEvent) Chronology {
	var out Chronology
	var procs, labs, consults []domain.SectionItem

	for _, ev := range events {
		if !ev.HasDate() || strings.TrimSpace(ev.Description) == "" {
			out.Rejected = append(out.Rejected, ev)
			continue
		}
		item := domain.SectionItem{
			Date:        ev.Date,
			Time:        ev.Time,
			Description: strings.TrimSpace(ev.Description),
			Specialty:   ev.Specialty,
		}
		switch ev.Kind {
		case domain.EventLab:
			labs = append(labs, item)
		case domain.EventConsultation:
			consults = append(consults, item)
		default:
			procs = append(procs, item)
		}
	}

	labs, _ = DedupeItems(labs)
	SortItems(labs)
	out.LabDetails = labs

	procs, _ = DedupeItems(procs)
	procs = append(procs, GroupLabs(labs)...)
	SortItems(procs)
	out.Procedures = procs

	consults, _ = DedupeItems(consults)
	SortItems(consults)
	out.Consultations = consults
	return out
}

// GroupLabs merges untimed labs sharing a date into one summary entry.
// Timed labs stay individual.
func GroupLabs(labs []domain.SectionItem) []domain.SectionItem {
	var out []domain.SectionItem
	byDate := make(map[string]int)

	for _, l := range labs {
		if l.HasTime() {
			out = append(out, l)
			continue
		}
		key := l.Date.Format("2006-01-02")
		idx, ok := byDate[key]
		if !ok {
			byDate[key] = len(out)
			out = append(out, domain.SectionItem{
				Date:        l.Date,
				Description: l.Description,
				Count:       1,
				Details:     []string{l.Description},
			})
			continue
		}
		g := &out[idx]
		g.Count++
		g.Details = append(g.Details, l.Description)
		g.Description = fmt.Sprintf("Laboratorio (%d estudios)", g.Count)
	}

	for i := range out {
		if out[i].Count == 1 {
			out[i].Count = 0
			out[i].Details = nil
		}
	}
	return out
}

// SortItems orders items by date. On the same date, timed entries come first
// in time order and untimed entries follow in their original order.
func SortItems(items []domain.SectionItem) {
	sort.SliceStable(items, func(i, j int) bool {
		return itemLess(items[i], items[j])
	})
}

func itemLess(a, b domain.SectionItem) bool {
	if !a.Date.Equal(b.Date) {
		return a.Date.Before(b.Date)
	}
	if a.HasTime() != b.HasTime() {
		return a.HasTime()
	}
	return a.HasTime() && a.Time < b.Time
}

// IsSorted reports whether items are already in chronological order.
func IsSorted(items []domain.SectionItem) bool {
	return sort.SliceIsSorted(items, func(i, j int) bool {
		return itemLess(items[i], items[j])
	})
}

// DedupeItems removes exact (date, time, description) duplicates, keeping
// the first occurrence. It returns the removed items.
func DedupeItems(items []domain.SectionItem) ([]domain.SectionItem, []domain.SectionItem) {
	seen := make(map[string]bool, len(items))
	out := items[:0:0]
	var removed []domain.SectionItem
	for _, it := range items {
		k := it.Key()
		if seen[k] {
			removed = append(removed, it)
			continue
		}
		seen[k] = true
		out = append(out, it)
	}
	return out, removed
}

var (
	bracketItem = regexp.MustCompile(`^\s*[-•*]?\s*\[([^\]]+)\]\s*(.*)$`)
	leadingDash = regexp.MustCompile(`^\s*[-•*]\s*`)
	separator   = regexp.MustCompile(`^\s*(?:\(hora no registrada\))?\s*[-–:]?\s*`)
)

// ParseItem reads a generated list line such as
// "29/07/2025 10:00 - Cardiología: ajuste" or "- [29/07] Cardiología: ajuste".
// Lines without a recognisable date yield an undated item.
func (e *Engine) ParseItem(line string, refYear int) domain.SectionItem {
	item := domain.SectionItem{}
	text := strings.TrimSpace(line)
	var rest string

	if m := bracketItem.FindStringSubmatch(text); m != nil {
		if date, clock, ok := FindDateTime(m[1], refYear); ok {
			item.Date, item.Time = date, clock
		}
		rest = m[2]
	} else {
		rest = leadingDash.ReplaceAllString(text, "")
		if prefix := dateTimePrefix.FindString(rest); prefix != "" {
			if date, clock, ok := FindDateTime(prefix, refYear); ok {
				item.Date, item.Time = date, clock
				rest = rest[len(prefix):]
			}
		} else if date, _, ok := FindDateTime(rest, refYear); ok {
			item.Date = date
		}
	}
	rest = strings.TrimSpace(separator.ReplaceAllString(rest, ""))

	if sp := e.Specialty(rest); sp != "" {
		item.Specialty = sp
		if i := strings.Index(rest, ":"); i > 0 && e.Specialty(rest[:i]) == sp {
			rest = strings.TrimSpace(rest[i+1:])
		}
	}
	item.Description = rest
	return item
}

var dateTimePrefix = regexp.MustCompile(
	`^\s*(?:\d{1,2}/\d{1,2}(?:/\d{4})?|\d{4}-\d{1,2}-\d{1,2}|\d{1,2}-\d{1,2}-\d{4})` +
		`(?:[ T]+\d{1,2}:\d{2}(?::\d{2})?(?:\s*hs)?)?`)
