// Package cli implements the epicrisis command-line interface.
package cli

import (
	"context"

	"github.com/spf13/cobra"

	"github.com/custodia-labs/epicrisis/internal/core/ports/driving"
	"github.com/custodia-labs/epicrisis/internal/logger"
)

// version is overridden at build time with -ldflags.
var version = "dev"

var verbose bool

// Service dependencies, injected by main.
var (
	epicrisisService driving.EpicrisisService
	episodeService   driving.EpisodeService
	historyService   driving.HistoryService
	settingsService  driving.SettingsService
)

var rootCmd = &cobra.Command{
	Use:   "epicrisis",
	Short: "Generate hospital discharge summaries",
	Long: `Epicrisis drafts discharge summaries (EPC) from a patient's clinical
history. Deterministic rules decide death, medication provenance and
event chronology; a language model writes the narrative sections; every
result is validated, versioned and open to reviewer feedback.`,
	SilenceUsage: true,
	PersistentPreRun: func(_ *cobra.Command, _ []string) {
		logger.SetVerbose(verbose)
	},
}

func init() {
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Print pipeline progress and debug logs")
}

// Services holds the driving ports the commands call.
type Services struct {
	Epicrisis driving.EpicrisisService
	Episode   driving.EpisodeService
	History   driving.HistoryService
	Settings  driving.SettingsService
}

// SetServices injects the service implementations.
func SetServices(s Services) {
	epicrisisService = s.Epicrisis
	episodeService = s.Episode
	historyService = s.History
	settingsService = s.Settings
}

// SetVersion sets the version printed by the version command.
func SetVersion(v string) {
	if v != "" {
		version = v
	}
}

// Execute runs the root command.
func Execute(ctx context.Context) error {
	return rootCmd.ExecuteContext(ctx)
}
