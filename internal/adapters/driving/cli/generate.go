package cli

import (
	"context"
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/custodia-labs/epicrisis/internal/core/domain"
)

var generateCmd = &cobra.Command{
	Use:   "generate <episode-id>",
	Short: "Generate a discharge summary",
	Long: `Run the full pipeline for an episode: extraction, rule evaluation,
exemplar retrieval, section drafting and validation. Each run stores a new
version; earlier versions are never modified.`,
	Args: cobra.ExactArgs(1),
	RunE: runGenerate,
}

var regenerateCmd = &cobra.Command{
	Use:   "regenerate <episode-id>",
	Short: "Regenerate from the latest version's inputs",
	Long: `Draft a new version reusing the extraction and rule facts stored with
the latest version. Useful after editing prompts or changing the model.`,
	Args: cobra.ExactArgs(1),
	RunE: runRegenerate,
}

func init() {
	generateCmd.Flags().Bool("json", false, "Print the EPC as JSON")
	regenerateCmd.Flags().Bool("json", false, "Print the EPC as JSON")

	rootCmd.AddCommand(generateCmd)
	rootCmd.AddCommand(regenerateCmd)
}

func runGenerate(cmd *cobra.Command, args []string) error {
	return runPipeline(cmd, args[0], func(ctx context.Context, id string) (*domain.EPCDocument, error) {
		return epicrisisService.Generate(ctx, id)
	})
}

func runRegenerate(cmd *cobra.Command, args []string) error {
	return runPipeline(cmd, args[0], func(ctx context.Context, id string) (*domain.EPCDocument, error) {
		return epicrisisService.Regenerate(ctx, id)
	})
}

func runPipeline(
	cmd *cobra.Command,
	episodeID string,
	fn func(ctx context.Context, id string) (*domain.EPCDocument, error),
) error {
	if epicrisisService == nil {
		return errors.New("epicrisis service not configured")
	}

	doc, err := fn(cmd.Context(), episodeID)
	if err != nil {
		return describePipelineError(episodeID, err)
	}

	if asJSON, _ := cmd.Flags().GetBool("json"); asJSON {
		return writeJSON(cmd.OutOrStdout(), doc)
	}

	newPrinter(cmd).document(doc)
	return nil
}

func describePipelineError(episodeID string, err error) error {
	switch {
	case errors.Is(err, domain.ErrConcurrentRun):
		return fmt.Errorf("episode %s: %w; try again when it finishes", episodeID, err)
	case errors.Is(err, domain.ErrNotFound):
		return fmt.Errorf("episode %s not found (or has no previous version): %w", episodeID, err)
	case errors.Is(err, domain.ErrLLMUnavailable):
		return fmt.Errorf("no language model is configured; run 'epicrisis settings show': %w", err)
	default:
		return fmt.Errorf("generation failed: %w", err)
	}
}
