package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/custodia-labs/epicrisis/internal/core/domain"
)

// Palette colours, shared with the section status badges.
var (
	colorPrimary   = lipgloss.Color("#7C3AED") // Purple
	colorSecondary = lipgloss.Color("#06B6D4") // Cyan
	colorMuted     = lipgloss.Color("#6C7086") // Medium gray
	colorSuccess   = lipgloss.Color("#A6E3A1") // Green
	colorWarning   = lipgloss.Color("#F9E2AF") // Yellow
	colorError     = lipgloss.Color("#F38BA8") // Red
)

// printer writes command output, styled only when the destination is a terminal.
type printer struct {
	w      io.Writer
	styled bool

	title   lipgloss.Style
	heading lipgloss.Style
	muted   lipgloss.Style
	success lipgloss.Style
	warning lipgloss.Style
	failure lipgloss.Style
}

func newPrinter(cmd *cobra.Command) *printer {
	w := cmd.OutOrStdout()
	return &printer{
		w:       w,
		styled:  isTerminal(w),
		title:   lipgloss.NewStyle().Bold(true).Foreground(colorPrimary),
		heading: lipgloss.NewStyle().Bold(true).Foreground(colorSecondary),
		muted:   lipgloss.NewStyle().Foreground(colorMuted),
		success: lipgloss.NewStyle().Foreground(colorSuccess),
		warning: lipgloss.NewStyle().Foreground(colorWarning),
		failure: lipgloss.NewStyle().Bold(true).Foreground(colorError),
	}
}

func isTerminal(w io.Writer) bool {
	f, ok := w.(*os.File)
	return ok && term.IsTerminal(int(f.Fd()))
}

func (p *printer) render(style lipgloss.Style, text string) string {
	if !p.styled {
		return text
	}
	return style.Render(text)
}

func (p *printer) printf(format string, args ...any) {
	fmt.Fprintf(p.w, format, args...)
}

func (p *printer) println(args ...any) {
	fmt.Fprintln(p.w, args...)
}

func (p *printer) statusBadge(status domain.SectionStatus) string {
	label := "[" + string(status) + "]"
	switch status {
	case domain.StatusValidated:
		return p.render(p.success, label)
	case domain.StatusCorrected:
		return p.render(p.warning, label)
	case domain.StatusFlagged:
		return p.render(p.failure, label)
	default:
		return p.render(p.muted, label)
	}
}

// document prints every section followed by the validation report.
func (p *printer) document(doc *domain.EPCDocument) {
	p.println(p.render(p.title, "EPC "+doc.ID))
	p.println(p.render(p.muted, fmt.Sprintf("episode %s, generated %s, model %s",
		doc.EpisodeID, doc.GeneratedAt.Format("2006-01-02 15:04"), orDash(doc.ModelVersion))))
	p.println()

	for i := range doc.Sections {
		section := &doc.Sections[i]
		p.printf("%s %s\n", p.render(p.heading, section.Name.Title()), p.statusBadge(section.Status))
		lines := section.Lines()
		if len(lines) == 0 {
			p.println(p.render(p.muted, "  (sin contenido)"))
		}
		for _, line := range lines {
			if section.Kind == domain.KindNarrative {
				p.println(indent(line, "  "))
				continue
			}
			p.println("  - " + line)
		}
		p.println()
	}

	p.report(doc.Report)
	p.run(doc.Run)
}

func (p *printer) report(report domain.ValidationReport) {
	if report.Len() == 0 {
		p.println(p.render(p.success, "Validation: no issues"))
		return
	}
	p.println(p.render(p.heading, fmt.Sprintf("Validation: %d issue(s)", report.Len())))
	for _, v := range report.Violations {
		outcome := p.render(p.failure, "flagged")
		if v.AutoCorrected {
			outcome = p.render(p.warning, "corrected")
		}
		p.printf("  - %s %s/%s: %q\n", outcome, v.Section, v.Rule, v.OriginalText)
		if v.CorrectedText != nil {
			p.printf("      -> %q\n", *v.CorrectedText)
		}
	}
}

func (p *printer) run(run domain.RunRecord) {
	p.println(p.render(p.muted, fmt.Sprintf("Run: %s, %d exemplar(s)", run.Final(), run.Exemplars)))
	if run.ReusedInputs {
		p.println(p.render(p.muted, "  inputs reused from the previous version"))
	}
	if run.Degraded {
		p.println(p.render(p.warning, "  extraction degraded: output may be incomplete"))
	}
	for _, w := range run.Warnings {
		p.println(p.render(p.warning, "  warning: "+w))
	}
}

func (p *printer) versions(versions []domain.EPCVersion) {
	if len(versions) == 0 {
		p.println("No versions found.")
		return
	}
	for _, v := range versions {
		flagged := len(v.Document.Report.Flagged())
		line := fmt.Sprintf("v%d  %s  %s  %d issue(s), %d flagged",
			v.Number, v.ID, v.CreatedAt.Format("2006-01-02 15:04"), v.Document.Report.Len(), flagged)
		if flagged > 0 {
			line = p.render(p.warning, line)
		}
		p.println(line)
	}
}

func (p *printer) facts(content *domain.ExtractedContent, facts *domain.RuleFacts) {
	p.println(p.render(p.title, "Episode "+content.EpisodeID))
	p.printf("Source: %s (confidence %s)\n", content.SourceType, content.Confidence)
	if content.Degraded {
		p.println(p.render(p.warning, "Extraction degraded"))
	}
	for _, w := range content.Warnings {
		p.println(p.render(p.warning, "  warning: "+w))
	}
	patient := content.Patient
	p.printf("Patient: age %s, sex %s, stay %s day(s)\n",
		orDash(positive(patient.Age)), orDash(patient.Sex), orDash(positive(patient.StayDays)))
	p.printf("Rule tables: %s\n", facts.TablesVersion)
	p.println()

	p.println(p.render(p.heading, "Death"))
	if facts.Death.Detected {
		when := "date not recorded"
		if !facts.Death.Date.IsZero() {
			when = facts.Death.Date.Format(domain.DisplayDateLayout)
		}
		if facts.Death.HasTime() {
			when += " " + facts.Death.Time
		}
		p.printf("  detected (%s), %s\n", facts.Death.Confidence, when)
		if facts.Death.MatchedPhrase != "" {
			p.printf("  matched %q\n", facts.Death.MatchedPhrase)
		}
	} else {
		p.println("  not detected")
	}
	p.println()

	p.println(p.render(p.heading, "Medications"))
	if len(facts.Medications) == 0 {
		p.println(p.render(p.muted, "  none"))
	}
	for _, m := range facts.Medications {
		p.printf("  - %s [%s, %s]\n", strings.Join(nonEmpty(m.Name, m.Dose, m.Route, m.Frequency), " "),
			m.Provenance, m.Source)
	}
	p.println()

	p.itemList("Procedures", facts.Procedures)
	p.itemList("Consultations", facts.Consultations)
	p.itemList("Lab details", facts.LabDetails)

	if len(facts.Rejected) > 0 {
		p.println(p.render(p.heading, "Rejected events"))
		for _, e := range facts.Rejected {
			p.printf("  - %s: %s\n", e.Kind, e.Description)
		}
	}
}

func (p *printer) itemList(title string, items []domain.SectionItem) {
	p.println(p.render(p.heading, title))
	if len(items) == 0 {
		p.println(p.render(p.muted, "  none"))
	}
	for _, item := range items {
		p.println("  - " + item.Render())
		for _, d := range item.Details {
			p.println(p.render(p.muted, "      "+d))
		}
	}
	p.println()
}

func (p *printer) feedback(entries []domain.FeedbackEntry, summary *domain.FeedbackSummary) {
	if len(entries) == 0 {
		p.println("No feedback recorded.")
		return
	}
	for _, e := range entries {
		p.printf("%s  %-22s %-8s %s\n", e.Timestamp.Format("2006-01-02 15:04"), e.Section, e.Rating, e.Author)
		if e.FreeText != "" {
			p.println(p.render(p.muted, "    "+e.FreeText))
		}
	}
	if summary != nil {
		p.printf("\nTotal: %d\n", summary.Total)
	}
}

func (p *printer) events(events []domain.AuditEvent) {
	for _, e := range events {
		p.printf("%s  %-20s %s\n", e.At.Format("2006-01-02 15:04:05"), e.Action, e.Actor)
	}
}

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func indent(text, prefix string) string {
	lines := strings.Split(text, "\n")
	for i, l := range lines {
		if l != "" {
			lines[i] = prefix + l
		}
	}
	return strings.Join(lines, "\n")
}

func orDash(s string) string {
	if s == "" {
		return "-"
	}
	return s
}

func positive(n int) string {
	if n <= 0 {
		return ""
	}
	return fmt.Sprintf("%d", n)
}

func nonEmpty(parts ...string) []string {
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p != "" {
			out = append(out, p)
		}
	}
	return out
}
