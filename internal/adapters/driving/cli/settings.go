package cli

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/custodia-labs/epicrisis/internal/core/domain"
)

var settingsCmd = &cobra.Command{
	Use:   "settings",
	Short: "Manage application settings",
	Long: `View and configure AI providers, storage and generation options.

Settings are stored in ~/.epicrisis/config.toml. EPICRISIS_* environment
variables and a .env file in the working directory override stored values.`,
	RunE: runSettingsShow,
}

var settingsShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Show current settings",
	RunE:  runSettingsShow,
}

var settingsSetCmd = &cobra.Command{
	Use:   "set <key> <value>",
	Short: "Set a single configuration key",
	Long: `Set a single configuration key, for example:

  epicrisis settings set generation.few_shot_count 5
  epicrisis settings set generation.section_timeout 2m
  epicrisis settings set storage.backend postgres
  epicrisis settings set storage.database_url postgres://localhost/epicrisis`,
	Args: cobra.ExactArgs(2),
	RunE: runSettingsSet,
}

var settingsSetKeyCmd = &cobra.Command{
	Use:       "set-key <llm|embedding>",
	Short:     "Set a provider API key without echoing it",
	Args:      cobra.ExactArgs(1),
	ValidArgs: []string{"llm", "embedding"},
	RunE:      runSettingsSetKey,
}

var settingsEmbeddingCmd = &cobra.Command{
	Use:   "embedding",
	Short: "Configure embedding provider",
	Long:  `Configure the embedding provider used to retrieve few-shot exemplars.`,
	RunE:  runSettingsEmbedding,
}

var settingsLLMCmd = &cobra.Command{
	Use:   "llm",
	Short: "Configure LLM provider",
	Long:  `Configure the language model that drafts the narrative sections.`,
	RunE:  runSettingsLLM,
}

func init() {
	settingsCmd.AddCommand(settingsShowCmd)
	settingsCmd.AddCommand(settingsSetCmd)
	settingsCmd.AddCommand(settingsSetKeyCmd)
	settingsCmd.AddCommand(settingsEmbeddingCmd)
	settingsCmd.AddCommand(settingsLLMCmd)
	rootCmd.AddCommand(settingsCmd)
}

func runSettingsShow(cmd *cobra.Command, _ []string) error {
	if settingsService == nil {
		return errors.New("settings service not configured")
	}

	settings, err := settingsService.Get()
	if err != nil {
		return fmt.Errorf("failed to get settings: %w", err)
	}

	cmd.Println("Current Settings")
	cmd.Println("================")
	cmd.Println()

	// LLM settings
	cmd.Println("[LLM]")
	cmd.Printf("  Provider: %s\n", describeProvider(settings.LLM.Provider))
	cmd.Printf("  Model: %s\n", orDash(settings.LLM.Model))
	if settings.LLM.BaseURL != "" {
		cmd.Printf("  Base URL: %s\n", settings.LLM.BaseURL)
	}
	if settings.LLM.Provider.RequiresAPIKey() {
		cmd.Printf("  API Key: %s\n", describeKey(settings.LLM.APIKey))
	}
	cmd.Printf("  Timeout: %s\n", settings.LLM.Timeout)
	if settings.LLM.RequestsPerSecond > 0 {
		cmd.Printf("  Rate limit: %g req/s\n", settings.LLM.RequestsPerSecond)
	}
	cmd.Printf("  Status: %s\n", configured(settings.LLM.IsConfigured()))
	cmd.Println()

	// Embedding settings
	cmd.Println("[Embedding]")
	cmd.Printf("  Provider: %s\n", describeProvider(settings.Embedding.Provider))
	cmd.Printf("  Model: %s\n", orDash(settings.Embedding.Model))
	if settings.Embedding.BaseURL != "" {
		cmd.Printf("  Base URL: %s\n", settings.Embedding.BaseURL)
	}
	if settings.Embedding.Provider.RequiresAPIKey() {
		cmd.Printf("  API Key: %s\n", describeKey(settings.Embedding.APIKey))
	}
	cmd.Printf("  Status: %s\n", configured(settings.Embedding.IsConfigured()))
	cmd.Println()

	// Vector index settings
	cmd.Println("[Vector Index]")
	cmd.Printf("  Backend: %s\n", settings.VectorIndex.Backend)
	if settings.VectorIndex.Backend == domain.VectorBackendQdrant {
		cmd.Printf("  URL: %s\n", orDash(settings.VectorIndex.URL))
		cmd.Printf("  Collection: %s\n", settings.VectorIndex.Collection)
	}
	cmd.Println()

	// Storage settings
	cmd.Println("[Storage]")
	cmd.Printf("  Backend: %s\n", settings.Storage.Backend)
	switch settings.Storage.Backend {
	case domain.StorageSQLite:
		cmd.Printf("  Data dir: %s\n", orDefault(settings.Storage.DataDir, "~/.epicrisis/data"))
	case domain.StoragePostgres:
		cmd.Printf("  Database URL: %s\n", describeKey(settings.Storage.DatabaseURL))
	}
	cmd.Println()

	// Generation settings
	gen := settings.Generation
	cmd.Println("[Generation]")
	cmd.Printf("  Exemplar retrieval: %s\n", enabled(gen.RAGEnabled))
	cmd.Printf("  Few-shot count: %d\n", gen.FewShotCount)
	cmd.Printf("  Section concurrency: %d\n", gen.SectionConcurrency)
	cmd.Printf("  Max retries: %d\n", gen.MaxRetries)
	cmd.Printf("  Section timeout: %s\n", gen.SectionTimeout)
	cmd.Println()

	cmd.Println("[Rules & Prompts]")
	cmd.Printf("  Rule tables: %s\n", orDefault(settings.Rules.TablesPath, "built-in"))
	cmd.Printf("  Prompt dir: %s\n", orDefault(settings.Prompts.Dir, "~/.epicrisis/prompts"))
	cmd.Printf("  Watch prompts: %s\n", enabled(settings.Prompts.Watch))
	cmd.Println()

	// Validation
	if err := settingsService.Validate(); err != nil {
		cmd.Printf("Warning: %v\n", err)
		cmd.Println("Run 'epicrisis settings llm' to fix configuration issues.")
	} else {
		cmd.Println("Configuration is valid.")
	}

	return nil
}

func runSettingsSet(cmd *cobra.Command, args []string) error {
	if settingsService == nil {
		return errors.New("settings service not configured")
	}

	key, value := args[0], args[1]
	if err := settingsService.Set(key, value); err != nil {
		return fmt.Errorf("failed to set %s: %w", key, err)
	}

	shown := value
	if strings.HasSuffix(key, "api_key") || strings.HasSuffix(key, "database_url") {
		shown = maskAPIKey(value)
	}
	cmd.Printf("Set %s = %s\n", key, shown)
	return nil
}

func runSettingsSetKey(cmd *cobra.Command, args []string) error {
	if settingsService == nil {
		return errors.New("settings service not configured")
	}

	settings, err := settingsService.Get()
	if err != nil {
		return fmt.Errorf("failed to get settings: %w", err)
	}

	target := args[0]
	var provider domain.AIProvider
	var model string
	switch target {
	case "llm":
		provider, model = settings.LLM.Provider, settings.LLM.Model
	case "embedding":
		provider, model = settings.Embedding.Provider, settings.Embedding.Model
	default:
		return fmt.Errorf("unknown target %q: use llm or embedding", target)
	}
	if !provider.RequiresAPIKey() {
		return fmt.Errorf("%s provider %q does not use an API key; run 'epicrisis settings %s' first",
			target, provider, target)
	}

	cmd.Print("Enter API key: ")
	apiKey := readPassword(cmd.InOrStdin())
	cmd.Println()
	if apiKey == "" {
		return errors.New("API key is required for this provider")
	}

	if target == "llm" {
		err = settingsService.SetLLMProvider(provider, model, apiKey)
	} else {
		err = settingsService.SetEmbeddingProvider(provider, model, apiKey)
	}
	if err != nil {
		return fmt.Errorf("failed to store API key: %w", err)
	}

	cmd.Printf("%s API key set: %s\n", provider.Description(), maskAPIKey(apiKey))
	return nil
}

func runSettingsEmbedding(cmd *cobra.Command, _ []string) error {
	if settingsService == nil {
		return errors.New("settings service not configured")
	}

	reader := bufio.NewReader(cmd.InOrStdin())
	return configureEmbeddingProvider(cmd, reader)
}

func runSettingsLLM(cmd *cobra.Command, _ []string) error {
	if settingsService == nil {
		return errors.New("settings service not configured")
	}

	reader := bufio.NewReader(cmd.InOrStdin())
	return configureLLMProvider(cmd, reader)
}

//nolint:dupl // Similar to configureLLMProvider but for embeddings - intentional for CLI flow clarity
func configureEmbeddingProvider(cmd *cobra.Command, reader *bufio.Reader) error {
	cmd.Println("Select Embedding Provider")
	providers := domain.AllEmbeddingProviders()
	for i, p := range providers {
		cmd.Printf("  %d. %s\n", i+1, p.Description())
	}
	cmd.Print("\nEnter choice [1]: ")
	input := readLine(reader)
	idx := parseChoice(input, len(providers), 1)
	selectedProvider := providers[idx-1]

	// Get model
	defaults := domain.DefaultEmbeddingModels()
	defaultModel := defaults[selectedProvider]
	cmd.Printf("Enter model name [%s]: ", defaultModel)
	model := readLine(reader)
	if model == "" {
		model = defaultModel
	}

	// Get API key if needed
	var apiKey string
	if selectedProvider.RequiresAPIKey() {
		cmd.Print("Enter API key: ")
		apiKey = readSecret(cmd.InOrStdin(), reader)
		cmd.Println()
		if apiKey == "" {
			return errors.New("API key is required for this provider")
		}
	}

	if err := settingsService.SetEmbeddingProvider(selectedProvider, model, apiKey); err != nil {
		return fmt.Errorf("failed to configure embedding provider: %w", err)
	}

	// Validate the configuration by pinging the service
	cmd.Print("Validating configuration... ")
	if err := settingsService.ValidateEmbeddingConfig(); err != nil {
		cmd.Printf("FAILED: %v\n", err)
		return fmt.Errorf("embedding configuration validation failed: %w", err)
	}
	cmd.Println("OK")

	cmd.Printf("Embedding provider configured: %s (%s)\n\n", selectedProvider.Description(), model)
	return nil
}

//nolint:dupl // Similar to configureEmbeddingProvider but for LLM - intentional for CLI flow clarity
func configureLLMProvider(cmd *cobra.Command, reader *bufio.Reader) error {
	cmd.Println("Select LLM Provider")
	providers := domain.AllLLMProviders()
	for i, p := range providers {
		cmd.Printf("  %d. %s\n", i+1, p.Description())
	}
	cmd.Print("\nEnter choice [1]: ")
	input := readLine(reader)
	idx := parseChoice(input, len(providers), 1)
	selectedProvider := providers[idx-1]

	// Get model
	defaults := domain.DefaultLLMModels()
	defaultModel := defaults[selectedProvider]
	cmd.Printf("Enter model name [%s]: ", defaultModel)
	model := readLine(reader)
	if model == "" {
		model = defaultModel
	}

	// Get API key if needed
	var apiKey string
	if selectedProvider.RequiresAPIKey() {
		cmd.Print("Enter API key: ")
		apiKey = readSecret(cmd.InOrStdin(), reader)
		cmd.Println()
		if apiKey == "" {
			return errors.New("API key is required for this provider")
		}
	}

	if err := settingsService.SetLLMProvider(selectedProvider, model, apiKey); err != nil {
		return fmt.Errorf("failed to configure LLM provider: %w", err)
	}

	// Validate the configuration by pinging the service
	cmd.Print("Validating configuration... ")
	if err := settingsService.ValidateLLMConfig(); err != nil {
		cmd.Printf("FAILED: %v\n", err)
		return fmt.Errorf("LLM configuration validation failed: %w", err)
	}
	cmd.Println("OK")

	cmd.Printf("LLM provider configured: %s (%s)\n\n", selectedProvider.Description(), model)
	return nil
}

// Helper functions.

//nolint:errcheck // CLI helper, error ignored for UX
func readLine(reader *bufio.Reader) string {
	input, _ := reader.ReadString('\n')
	return strings.TrimSpace(input)
}

func parseChoice(input string, maxVal, defaultVal int) int {
	if input == "" {
		return defaultVal
	}
	val, err := strconv.Atoi(input)
	if err != nil || val < 1 || val > maxVal {
		return defaultVal
	}
	return val
}

// readPassword reads a secret without echo when in is a terminal.
func readPassword(in io.Reader) string {
	return readSecret(in, bufio.NewReader(in))
}

// readSecret reads without echo from a terminal, or a line from the
// buffered reader otherwise.
func readSecret(in io.Reader, reader *bufio.Reader) string {
	if f, ok := in.(*os.File); ok && term.IsTerminal(int(f.Fd())) {
		password, err := term.ReadPassword(int(f.Fd()))
		if err == nil {
			return strings.TrimSpace(string(password))
		}
	}
	return readLine(reader)
}

func maskAPIKey(key string) string {
	if len(key) <= 8 {
		return "****"
	}
	return key[:4] + "..." + key[len(key)-4:]
}

func describeProvider(p domain.AIProvider) string {
	if p == "" {
		return "(not set)"
	}
	return p.Description()
}

func describeKey(key string) string {
	if key == "" {
		return "(not set)"
	}
	return maskAPIKey(key)
}

func configured(ok bool) string {
	if ok {
		return "configured"
	}
	return "not configured"
}

func enabled(on bool) string {
	if on {
		return "enabled"
	}
	return "disabled"
}

func orDefault(s, def string) string {
	if s == "" {
		return def
	}
	return s
}
