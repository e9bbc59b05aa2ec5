// Command epicrisis generates hospital discharge summaries.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/custodia-labs/epicrisis/internal/adapters/driven/ai"
	"github.com/custodia-labs/epicrisis/internal/adapters/driven/config/env"
	"github.com/custodia-labs/epicrisis/internal/adapters/driven/config/file"
	"github.com/custodia-labs/epicrisis/internal/adapters/driven/storage/memory"
	"github.com/custodia-labs/epicrisis/internal/adapters/driven/storage/postgres"
	"github.com/custodia-labs/epicrisis/internal/adapters/driven/storage/sqlite"
	"github.com/custodia-labs/epicrisis/internal/adapters/driving/cli"
	"github.com/custodia-labs/epicrisis/internal/core/domain"
	"github.com/custodia-labs/epicrisis/internal/core/ports/driven"
	"github.com/custodia-labs/epicrisis/internal/core/services"
	"github.com/custodia-labs/epicrisis/internal/extractors"
	"github.com/custodia-labs/epicrisis/internal/logger"
	"github.com/custodia-labs/epicrisis/internal/normalisers"
	"github.com/custodia-labs/epicrisis/internal/rules"
	"github.com/custodia-labs/epicrisis/internal/validation"
)

// version is set at build time with -ldflags "-X main.version=...".
var version = "dev"

// envFile is read from the working directory when present.
const envFile = ".env"

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	err := run(ctx)
	stop()
	if err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}

// storage bundles the persistence ports of one backend.
type storage struct {
	episodes driven.EpisodeStore
	versions driven.VersionStore
	feedback driven.FeedbackStore
	events   driven.EventStore
	local    driven.ExemplarIndex
	close    func() error
}

func run(ctx context.Context) error {
	logger.SetVerbose(hasVerboseFlag(os.Args[1:]))

	configStore, err := file.NewConfigStore("")
	if err != nil {
		return fmt.Errorf("opening config: %w", err)
	}
	settingsService := services.NewSettingsService(configStore, ai.NewConfigValidator(), env.New(envFile))
	cli.SetVersion(version)

	settings, err := settingsService.Get()
	if err != nil {
		// Settings commands must stay usable to fix a broken configuration.
		logger.Error("Loading settings: %v", err)
		cli.SetServices(cli.Services{Settings: settingsService})
		return cli.Execute(ctx)
	}

	store, err := openStorage(ctx, settings.Storage)
	if err != nil {
		return err
	}
	defer func() {
		if err := store.close(); err != nil {
			logger.Warn("Closing storage: %v", err)
		}
	}()

	engine, err := loadRules(settings.Rules)
	if err != nil {
		return err
	}
	registry := extractors.NewDefault(engine)
	pipeline, err := validation.NewDefaultPipeline(engine)
	if err != nil {
		return fmt.Errorf("building validation pipeline: %w", err)
	}

	prompts, err := file.NewPromptStore(settings.Prompts.Dir)
	if err != nil {
		return fmt.Errorf("opening prompts: %w", err)
	}
	if settings.Prompts.Watch {
		if err := prompts.Watch(ctx); err != nil {
			logger.Warn("Prompt hot reload disabled: %v", err)
		}
	}

	collaborators := ai.Init(settings, store.local)
	defer collaborators.Close()

	retriever := services.NewRetriever(collaborators.EmbeddingService, collaborators.ExemplarIndex)

	genCfg := services.DefaultGeneratorConfig()
	genCfg.MaxRetries = settings.Generation.MaxRetries
	genCfg.SectionTimeout = settings.Generation.SectionTimeout
	generator := services.NewSectionGenerator(collaborators.LLMService, prompts, engine, genCfg)

	orchestrator := services.NewOrchestrator(
		store.episodes,
		registry,
		engine,
		retriever,
		generator,
		services.NewPostValidator(pipeline),
		store.versions,
		settings.Generation,
	)

	episodes := services.NewEpisodeService(store.episodes, registry, engine,
		services.WithNormalisers(normalisers.NewDefault()))

	cli.SetServices(cli.Services{
		Epicrisis: orchestrator,
		Episode:   episodes,
		History:   services.NewHistoryService(store.versions, store.feedback, store.events, retriever),
		Settings:  settingsService,
	})
	return cli.Execute(ctx)
}

func openStorage(ctx context.Context, cfg domain.StorageSettings) (*storage, error) {
	switch cfg.Backend {
	case domain.StoragePostgres:
		store, err := postgres.NewStore(ctx, cfg.DatabaseURL)
		if err != nil {
			return nil, fmt.Errorf("opening postgres: %w", err)
		}
		history := store.HistoryStore()
		return &storage{
			episodes: store.EpisodeStore(),
			versions: history,
			feedback: history,
			events:   history,
			local:    store.ExemplarIndex(),
			close:    store.Close,
		}, nil

	case domain.StorageMemory:
		logger.Warn("Using in-memory storage: versions and feedback are lost on exit")
		history := memory.NewHistoryStore()
		return &storage{
			episodes: memory.NewEpisodeStore(),
			versions: history,
			feedback: history,
			events:   history,
			local:    memory.NewExemplarIndex(),
			close:    func() error { return nil },
		}, nil

	default:
		store, err := sqlite.NewStore(cfg.DataDir)
		if err != nil {
			return nil, fmt.Errorf("opening sqlite: %w", err)
		}
		logger.Debug("Using SQLite store at %s", store.Path())
		history := store.HistoryStore()
		return &storage{
			episodes: store.EpisodeStore(),
			versions: history,
			feedback: history,
			events:   history,
			local:    store.ExemplarIndex(),
			close:    store.Close,
		}, nil
	}
}

func loadRules(cfg domain.RuleSettings) (*rules.Engine, error) {
	if cfg.TablesPath == "" {
		engine, err := rules.NewDefault()
		if err != nil {
			return nil, fmt.Errorf("loading built-in rule tables: %w", err)
		}
		return engine, nil
	}
	tables, err := rules.LoadTables(cfg.TablesPath)
	if err != nil {
		return nil, fmt.Errorf("loading rule tables %s: %w", cfg.TablesPath, err)
	}
	logger.Debug("Loaded rule tables %s", cfg.TablesPath)
	return rules.New(tables), nil
}

// hasVerboseFlag enables debug logs before cobra parses flags, so startup
// is logged too.
func hasVerboseFlag(args []string) bool {
	for _, a := range args {
		if a == "--" {
			return false
		}
		if a == "-v" || a == "--verbose" || a == "--verbose=true" {
			return true
		}
	}
	return false
}
