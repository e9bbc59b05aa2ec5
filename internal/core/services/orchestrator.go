package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/custodia-labs/epicrisis/internal/core/domain"
	"github.com/custodia-labs/epicrisis/internal/core/ports/driven"
	"github.com/custodia-labs/epicrisis/internal/core/ports/driving"
	"github.com/custodia-labs/epicrisis/internal/logger"
	"github.com/custodia-labs/epicrisis/internal/rules"
)

// Ensure Orchestrator implements the interface.
var _ driving.EpicrisisService = (*Orchestrator)(nil)

// Orchestrator runs extraction, rule evaluation, retrieval, drafting and
// validation for an episode, and commits the result as a new version.
type Orchestrator struct {
	episodes  driven.EpisodeReader
	registry  driven.ExtractorRegistry
	rules     *rules.Engine
	retriever *Retriever
	generator *SectionGenerator
	validator *PostValidator
	versions  driven.VersionStore
	cfg       domain.GenerationSettings

	lease *runLease
	now   func() time.Time
}

// NewOrchestrator creates an orchestrator. retriever may be nil, which
// disables exemplar retrieval regardless of cfg.RAGEnabled.
func NewOrchestrator(
	episodes driven.EpisodeReader,
	registry driven.ExtractorRegistry,
	engine *rules.Engine,
	retriever *Retriever,
	generator *SectionGenerator,
	validator *PostValidator,
	versions driven.VersionStore,
	cfg domain.GenerationSettings,
) *Orchestrator {
	if cfg.SectionConcurrency <= 0 {
		cfg.SectionConcurrency = 1
	}
	if cfg.FewShotCount <= 0 {
		cfg.FewShotCount = DefaultFewShotCount
	}
	return &Orchestrator{
		episodes:  episodes,
		registry:  registry,
		rules:     engine,
		retriever: retriever,
		generator: generator,
		validator: validator,
		versions:  versions,
		cfg:       cfg,
		lease:     newRunLease(),
		now:       time.Now,
	}
}

// run tracks one pipeline execution.
type run struct {
	o         *Orchestrator
	episodeID string
	record    domain.RunRecord
}

func (r *run) enter(state domain.RunState, detail string) {
	r.record.Transitions = append(r.record.Transitions, domain.Transition{
		State:  state,
		At:     r.o.now(),
		Detail: detail,
	})
	r.o.lease.setState(r.episodeID, state)

	ev := logger.Event().Str("episode", r.episodeID).Str("state", string(state))
	if detail != "" {
		ev = ev.Str("detail", detail)
	}
	ev.Msg("run transition")
}

func (r *run) fail(err error) error {
	r.enter(domain.StateFailed, err.Error())
	logger.Error("Generation for episode %s failed: %v", r.episodeID, err)
	return err
}

func (r *run) warn(msg string) {
	r.record.Warnings = append(r.record.Warnings, msg)
}

// Generate extracts the episode and produces a new version.
func (o *Orchestrator) Generate(ctx context.Context, episodeID string) (*domain.EPCDocument, error) {
	if episodeID == "" {
		return nil, fmt.Errorf("%w: episode id is required", domain.ErrInvalidInput)
	}
	release, err := o.lease.acquire(episodeID, len(domain.AllSections()))
	if err != nil {
		return nil, err
	}
	defer release()

	logger.Section("Generate " + episodeID)
	r := &run{o: o, episodeID: episodeID}

	r.enter(domain.StateExtracting, "")
	episode, err := o.episodes.GetEpisode(ctx, episodeID)
	if err != nil {
		return nil, r.fail(fmt.Errorf("get episode: %w", err))
	}
	content := o.registry.Extract(ctx, episode)
	if content.Degraded {
		r.record.Degraded = true
		for _, w := range content.Warnings {
			r.warn(w)
		}
	}
	if content.IsEmpty() {
		return nil, r.fail(fmt.Errorf("%w: episode %s", domain.ErrExtractionFailed, episodeID))
	}
	if err := ctx.Err(); err != nil {
		return nil, r.fail(err)
	}

	r.enter(domain.StateRuleEvaluation, "")
	facts := o.rules.Evaluate(content)
	if facts.Death.Detected {
		logger.Info("Death detected (%s): %s", facts.Death.Confidence, facts.Death.MatchedPhrase)
	}

	return o.finish(ctx, r, content, &facts, domain.ActionGenerated)
}

// Regenerate drafts a new version from the inputs of the latest one.
func (o *Orchestrator) Regenerate(ctx context.Context, episodeID string) (*domain.EPCDocument, error) {
	if episodeID == "" {
		return nil, fmt.Errorf("%w: episode id is required", domain.ErrInvalidInput)
	}
	release, err := o.lease.acquire(episodeID, len(domain.AllSections()))
	if err != nil {
		return nil, err
	}
	defer release()

	logger.Section("Regenerate " + episodeID)
	r := &run{o: o, episodeID: episodeID}
	r.record.ReusedInputs = true

	latest, err := o.versions.LatestVersion(ctx, episodeID)
	if err != nil {
		return nil, r.fail(fmt.Errorf("latest version: %w", err))
	}
	content := latest.Inputs.Extracted
	facts := latest.Inputs.Facts
	if content.Degraded {
		r.record.Degraded = true
	}
	return o.finish(ctx, r, &content, &facts, domain.ActionRegenerated)
}

// Status returns the in-flight run for an episode.
func (o *Orchestrator) Status(_ context.Context, episodeID string) (*domain.RunStatus, error) {
	if s, ok := o.lease.status(episodeID); ok {
		return s, nil
	}
	return nil, domain.ErrNotFound
}

// finish runs retrieval, drafting and validation, then commits.
func (o *Orchestrator) finish(
	ctx context.Context,
	r *run,
	content *domain.ExtractedContent,
	facts *domain.RuleFacts,
	action string,
) (*domain.EPCDocument, error) {
	death := facts.Death.Detected

	r.enter(domain.StateRetrieving, "")
	var exemplars map[domain.SectionName][]domain.Exemplar
	if o.cfg.RAGEnabled && o.retriever.Enabled() {
		exemplars = o.retriever.RetrieveSections(ctx, content.Text, providerSections(death), o.cfg.FewShotCount, r.episodeID)
		for _, ex := range exemplars {
			r.record.Exemplars += len(ex)
		}
		logger.Debug("Retrieved %d exemplars", r.record.Exemplars)
	}
	if err := ctx.Err(); err != nil {
		return nil, r.fail(err)
	}

	r.enter(domain.StateGeneratingSections, "")
	draft, err := o.draft(ctx, r, content, facts, exemplars)
	if err != nil {
		return nil, r.fail(err)
	}

	r.enter(domain.StateValidating, "")
	doc, report, err := o.validator.Validate(draft, facts)
	if err != nil {
		return nil, r.fail(err)
	}
	if report.Len() > 0 {
		logger.Info("Validation recorded %d violations", report.Len())
	}
	if err := ctx.Err(); err != nil {
		return nil, r.fail(err)
	}

	number := 1
	prev, err := o.versions.LatestVersion(ctx, r.episodeID)
	switch {
	case err == nil:
		number = prev.Number + 1
	case !errors.Is(err, domain.ErrNotFound):
		return nil, r.fail(fmt.Errorf("%w: %w", domain.ErrPersistence, err))
	}

	r.enter(domain.StateFinalized, fmt.Sprintf("version %d", number))
	doc.Run = r.record
	version := &domain.EPCVersion{
		ID:        doc.ID,
		EpisodeID: r.episodeID,
		Number:    number,
		Document:  *doc,
		Inputs:    domain.VersionInputs{Extracted: *content, Facts: *facts},
		CreatedAt: doc.GeneratedAt,
	}
	event := domain.AuditEvent{
		ID:        uuid.New().String(),
		EPCID:     doc.ID,
		EpisodeID: r.episodeID,
		Actor:     domain.DefaultActor,
		Action:    action,
		At:        o.now(),
	}
	if err := o.versions.SaveVersion(ctx, version, event); err != nil {
		return nil, r.fail(fmt.Errorf("%w: %w", domain.ErrPersistence, err))
	}

	logger.Info("Stored version %d (%s) for episode %s", number, doc.ID, r.episodeID)
	return doc, nil
}

// draft generates every section concurrently.
func (o *Orchestrator) draft(
	ctx context.Context,
	r *run,
	content *domain.ExtractedContent,
	facts *domain.RuleFacts,
	exemplars map[domain.SectionName][]domain.Exemplar,
) (*domain.EPCDocument, error) {
	if !o.generator.Available() {
		return nil, fmt.Errorf("%w: %w", domain.ErrGenerationFailed, domain.ErrLLMUnavailable)
	}

	names := domain.AllSections()
	sections := make([]domain.EPCSection, len(names))
	errs := make([]error, len(names))

	var g errgroup.Group
	g.SetLimit(o.cfg.SectionConcurrency)
	for i, name := range names {
		g.Go(func() error {
			sections[i], errs[i] = o.generator.Generate(ctx, name, content, facts, exemplars[name])
			o.lease.sectionDone(r.episodeID)
			return ctx.Err()
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	backed, failed := 0, 0
	var firstErr error
	for i, name := range names {
		if !ProviderBacked(name, facts.Death.Detected) {
			continue
		}
		backed++
		if errs[i] == nil {
			continue
		}
		failed++
		if firstErr == nil {
			firstErr = errs[i]
		}
		r.warn(errSectionFailed(name, errs[i]).Error())
	}
	if backed > 0 && failed == backed {
		return nil, fmt.Errorf("%w: %w", domain.ErrGenerationFailed, firstErr)
	}

	return &domain.EPCDocument{
		ID:           uuid.New().String(),
		EpisodeID:    r.episodeID,
		GeneratedAt:  o.now(),
		ModelVersion: o.generator.ModelName(),
		Sections:     sections,
	}, nil
}

// providerSections lists the sections drafted by the provider.
func providerSections(death bool) []domain.SectionName {
	var out []domain.SectionName
	for _, name := range domain.AllSections() {
		if ProviderBacked(name, death) {
			out = append(out, name)
		}
	}
	return out
}
