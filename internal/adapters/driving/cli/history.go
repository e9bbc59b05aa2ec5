package cli

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/custodia-labs/epicrisis/internal/core/domain"
)

var latestCmd = &cobra.Command{
	Use:   "latest <episode-id>",
	Short: "Show the latest EPC version",
	Args:  cobra.ExactArgs(1),
	RunE:  runLatest,
}

var historyCmd = &cobra.Command{
	Use:   "history <episode-id>",
	Short: "List every EPC version of an episode",
	Args:  cobra.ExactArgs(1),
	RunE:  runHistory,
}

var showCmd = &cobra.Command{
	Use:   "show <version-id>",
	Short: "Show a stored EPC version with its feedback and audit trail",
	Args:  cobra.ExactArgs(1),
	RunE:  runShow,
}

var feedbackCmd = &cobra.Command{
	Use:   "feedback <version-id>",
	Short: "Record reviewer feedback on a section",
	Long: `Record a reviewer's rating for one section of a stored version.

Ratings:
  ok       - Section is correct. It becomes a few-shot exemplar.
  partial  - Usable with changes. Requires --text and the evaluation answers.
  bad      - Unusable. Requires --text and the evaluation answers.

For partial and bad ratings the evaluation answers default to "no" unless
--omissions, --repetitions or --confusing are given.`,
	Args: cobra.ExactArgs(1),
	RunE: runFeedback,
}

func init() {
	latestCmd.Flags().Bool("json", false, "Print the EPC as JSON")
	showCmd.Flags().Bool("json", false, "Print the EPC as JSON")

	feedbackCmd.Flags().StringP("section", "s", "", "Section name (e.g. evolution)")
	feedbackCmd.Flags().StringP("rating", "r", "", "Rating: ok, partial or bad")
	feedbackCmd.Flags().String("text", "", "Free-text comment")
	feedbackCmd.Flags().String("author", "", "Reviewer name")
	feedbackCmd.Flags().Bool("omissions", false, "The section omits relevant information")
	feedbackCmd.Flags().Bool("repetitions", false, "The section repeats information")
	feedbackCmd.Flags().Bool("confusing", false, "The section is confusing")
	_ = feedbackCmd.MarkFlagRequired("section")
	_ = feedbackCmd.MarkFlagRequired("rating")

	rootCmd.AddCommand(latestCmd)
	rootCmd.AddCommand(historyCmd)
	rootCmd.AddCommand(showCmd)
	rootCmd.AddCommand(feedbackCmd)
}

func runLatest(cmd *cobra.Command, args []string) error {
	if historyService == nil {
		return errors.New("history service not configured")
	}

	v, err := historyService.Latest(cmd.Context(), args[0])
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return fmt.Errorf("no EPC generated for episode %s: %w", args[0], err)
		}
		return fmt.Errorf("failed to get latest version: %w", err)
	}

	if asJSON, _ := cmd.Flags().GetBool("json"); asJSON {
		return writeJSON(cmd.OutOrStdout(), v.Document)
	}

	p := newPrinter(cmd)
	p.println(p.render(p.muted, fmt.Sprintf("Version %d", v.Number)))
	p.document(&v.Document)
	return nil
}

func runHistory(cmd *cobra.Command, args []string) error {
	if historyService == nil {
		return errors.New("history service not configured")
	}

	versions, err := historyService.History(cmd.Context(), args[0])
	if err != nil {
		return fmt.Errorf("failed to list versions: %w", err)
	}

	newPrinter(cmd).versions(versions)
	return nil
}

func runShow(cmd *cobra.Command, args []string) error {
	if historyService == nil {
		return errors.New("history service not configured")
	}

	ctx := cmd.Context()
	v, err := historyService.Version(ctx, args[0])
	if err != nil {
		return fmt.Errorf("failed to get version %s: %w", args[0], err)
	}

	if asJSON, _ := cmd.Flags().GetBool("json"); asJSON {
		return writeJSON(cmd.OutOrStdout(), v.Document)
	}

	entries, err := historyService.Feedback(ctx, v.ID)
	if err != nil {
		return fmt.Errorf("failed to list feedback: %w", err)
	}
	summary, err := historyService.FeedbackSummary(ctx, v.ID)
	if err != nil {
		return fmt.Errorf("failed to summarise feedback: %w", err)
	}
	events, err := historyService.Events(ctx, v.ID)
	if err != nil {
		return fmt.Errorf("failed to list events: %w", err)
	}

	p := newPrinter(cmd)
	p.println(p.render(p.muted, fmt.Sprintf("Version %d", v.Number)))
	p.document(&v.Document)
	p.println()
	p.println(p.render(p.heading, "Feedback"))
	p.feedback(entries, summary)
	p.println()
	p.println(p.render(p.heading, "Audit trail"))
	p.events(events)
	return nil
}

func runFeedback(cmd *cobra.Command, args []string) error {
	if historyService == nil {
		return errors.New("history service not configured")
	}

	flags := cmd.Flags()
	section, _ := flags.GetString("section")
	rating, _ := flags.GetString("rating")
	text, _ := flags.GetString("text")
	author, _ := flags.GetString("author")

	entry := domain.FeedbackEntry{
		EPCID:    args[0],
		Section:  domain.SectionName(section),
		Rating:   domain.Rating(rating),
		FreeText: text,
		Author:   author,
	}
	if entry.Rating.NeedsDetail() {
		omissions, _ := flags.GetBool("omissions")
		repetitions, _ := flags.GetBool("repetitions")
		confusing, _ := flags.GetBool("confusing")
		entry.HasOmissions = &omissions
		entry.HasRepetitions = &repetitions
		entry.IsConfusing = &confusing
	}

	saved, err := historyService.RecordFeedback(cmd.Context(), entry)
	if err != nil {
		return fmt.Errorf("failed to record feedback: %w", err)
	}

	cmd.Printf("Recorded %s feedback for %s (%s)\n", saved.Rating, saved.Section.Title(), saved.ID)
	return nil
}
