package cli

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"github.com/custodia-labs/epicrisis/internal/core/domain"
)

var ingestCmd = &cobra.Command{
	Use:   "ingest <file>",
	Short: "Store a clinical episode",
	Long: `Store a patient's clinical history as an episode.

Use "-" to read from stdin. Without --id, the file name (without extension)
becomes the episode ID.

Free text files are converted by extension before they are stored:
  .docx              - Word documents (paragraphs and tables)
  .html, .htm        - Exported HTML views
  anything else      - Plain text (UTF-8 or Windows-1252)
Other source types, and stdin, are stored as-is.

Source types:
  free_text        - Narrative notes (default)
  structured_json  - Export from an external clinical system
  key_value        - "Field: value" records`,
	Args: cobra.ExactArgs(1),
	RunE: runIngest,
}

var episodesCmd = &cobra.Command{
	Use:   "episodes",
	Short: "List stored episodes",
	Args:  cobra.NoArgs,
	RunE:  runEpisodes,
}

var factsCmd = &cobra.Command{
	Use:   "facts <episode-id>",
	Short: "Show extracted content and rule facts",
	Long: `Extract an episode and evaluate the rule tables without generating text.

Prints extraction confidence, death detection, classified medications and
the event chronology with lab details.`,
	Args: cobra.ExactArgs(1),
	RunE: runFacts,
}

func init() {
	ingestCmd.Flags().String("id", "", "Episode ID (default: file name)")
	ingestCmd.Flags().StringP("type", "t", string(domain.SourceFreeText), "Source type")
	factsCmd.Flags().Bool("json", false, "Print JSON")

	rootCmd.AddCommand(ingestCmd)
	rootCmd.AddCommand(episodesCmd)
	rootCmd.AddCommand(factsCmd)
}

func runIngest(cmd *cobra.Command, args []string) error {
	if episodeService == nil {
		return errors.New("episode service not configured")
	}

	id, _ := cmd.Flags().GetString("id")
	sourceType, _ := cmd.Flags().GetString("type")

	path := args[0]
	var raw []byte
	var err error
	if path == "-" {
		raw, err = io.ReadAll(cmd.InOrStdin())
	} else {
		raw, err = os.ReadFile(path)
	}
	if err != nil {
		return fmt.Errorf("failed to read %s: %w", path, err)
	}

	if id == "" {
		if path == "-" {
			return errors.New("--id is required when reading from stdin")
		}
		base := filepath.Base(path)
		id = strings.TrimSuffix(base, filepath.Ext(base))
	}

	var episode *domain.ClinicalEpisode
	if path != "-" && domain.SourceType(sourceType) == domain.SourceFreeText {
		episode, err = episodeService.Import(cmd.Context(), id, path, raw)
	} else {
		episode, err = episodeService.Ingest(cmd.Context(), id, domain.SourceType(sourceType), raw)
	}
	if err != nil {
		return fmt.Errorf("failed to ingest episode: %w", err)
	}

	cmd.Printf("Ingested episode %s (%s, %d bytes)\n", episode.ID, episode.SourceType, len(episode.Raw))
	return nil
}

func runEpisodes(cmd *cobra.Command, _ []string) error {
	if episodeService == nil {
		return errors.New("episode service not configured")
	}

	episodes, err := episodeService.List(cmd.Context())
	if err != nil {
		return fmt.Errorf("failed to list episodes: %w", err)
	}
	if len(episodes) == 0 {
		cmd.Println("No episodes stored. Use 'epicrisis ingest' to add one.")
		return nil
	}

	for _, e := range episodes {
		cmd.Printf("%-24s %-16s %s\n", e.ID, e.SourceType, e.IngestedAt.Format("2006-01-02 15:04"))
	}
	return nil
}

func runFacts(cmd *cobra.Command, args []string) error {
	if episodeService == nil {
		return errors.New("episode service not configured")
	}

	content, facts, err := episodeService.Facts(cmd.Context(), args[0])
	if err != nil {
		return fmt.Errorf("failed to compute facts: %w", err)
	}

	if asJSON, _ := cmd.Flags().GetBool("json"); asJSON {
		return writeJSON(cmd.OutOrStdout(), map[string]any{
			"extracted": content,
			"facts":     facts,
		})
	}

	newPrinter(cmd).facts(content, facts)
	return nil
}
