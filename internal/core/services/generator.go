package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/custodia-labs/epicrisis/internal/core/domain"
	"github.com/custodia-labs/epicrisis/internal/core/ports/driven"
	"github.com/custodia-labs/epicrisis/internal/logger"
	"github.com/custodia-labs/epicrisis/internal/rules"
)

// DefaultBackoff is the wait before each provider retry.
var DefaultBackoff = []time.Duration{500 * time.Millisecond, 1 * time.Second, 2 * time.Second}

// GeneratorConfig tunes provider calls.
type GeneratorConfig struct {
	// MaxRetries is the number of retries after a failed provider call.
	MaxRetries int

	// Backoff is the wait before each retry. The last value repeats.
	Backoff []time.Duration

	// SectionTimeout bounds a single provider call. Zero means no deadline.
	SectionTimeout time.Duration

	Temperature float64
	MaxTokens   int
}

// DefaultGeneratorConfig returns the provider call defaults.
func DefaultGeneratorConfig() GeneratorConfig {
	gen := domain.DefaultGenerationSettings()
	return GeneratorConfig{
		MaxRetries:     gen.MaxRetries,
		Backoff:        DefaultBackoff,
		SectionTimeout: gen.SectionTimeout,
		Temperature:    0.1,
		MaxTokens:      2048,
	}
}

// SectionGenerator drafts one section at a time from a text-generation provider.
type SectionGenerator struct {
	llm     driven.LLMService
	prompts driven.PromptStore
	rules   *rules.Engine
	cfg     GeneratorConfig

	// wait sleeps between retries; replaced in tests.
	wait func(ctx context.Context, d time.Duration) error
}

// NewSectionGenerator creates a generator. llm may be nil, in which case
// every provider-backed section fails with domain.ErrLLMUnavailable.
func NewSectionGenerator(
	llm driven.LLMService,
	prompts driven.PromptStore,
	engine *rules.Engine,
	cfg GeneratorConfig,
) *SectionGenerator {
	if cfg.Backoff == nil {
		cfg.Backoff = DefaultBackoff
	}
	if cfg.MaxRetries < 0 {
		cfg.MaxRetries = 0
	}
	return &SectionGenerator{
		llm:     llm,
		prompts: prompts,
		rules:   engine,
		cfg:     cfg,
		wait:    sleepCtx,
	}
}

// Available reports whether a provider is configured.
func (g *SectionGenerator) Available() bool {
	return g.llm != nil
}

// ModelName returns the provider model, or empty without a provider.
func (g *SectionGenerator) ModelName() string {
	if g.llm == nil {
		return ""
	}
	return g.llm.ModelName()
}

// ProviderBacked reports whether the section is drafted by the provider
// under the given death status.
func ProviderBacked(name domain.SectionName, death bool) bool {
	if name == domain.SectionProcedures {
		return false
	}
	return !(death && name.SuppressedOnDeath())
}

// Generate drafts a section. Parse failures never return an error: the
// section comes back flagged with the raw output kept. A non-nil error means
// the provider failed after all retries, or ctx was cancelled.
func (g *SectionGenerator) Generate(
	ctx context.Context,
	name domain.SectionName,
	content *domain.ExtractedContent,
	facts *domain.RuleFacts,
	exemplars []domain.Exemplar,
) (domain.EPCSection, error) {
	if facts == nil {
		facts = &domain.RuleFacts{}
	}
	section := domain.NewSection(name)

	switch {
	case name == domain.SectionProcedures:
		section.Events = cloneItems(facts.Procedures)
		return section, nil
	case facts.Death.Detected && name.SuppressedOnDeath():
		return section, nil
	}

	err := g.draft(ctx, &section, content, facts, exemplars)
	if name == domain.SectionConsultations && section.Status == domain.StatusFlagged && ctx.Err() == nil {
		logger.Debug("Consultations fall back to rule chronology")
		section.Events = cloneItems(facts.Consultations)
		section.Items = nil
		section.Status = domain.StatusDraft
	}
	return section, err
}

func (g *SectionGenerator) draft(
	ctx context.Context,
	section *domain.EPCSection,
	content *domain.ExtractedContent,
	facts *domain.RuleFacts,
	exemplars []domain.Exemplar,
) error {
	if g.llm == nil {
		section.Status = domain.StatusFlagged
		return domain.ErrLLMUnavailable
	}

	data := buildPromptData(section.Name, content, facts, exemplars)
	prompt, err := renderPrompt(g.prompts, promptName(section.Name, facts.Death.Detected), data)
	if err != nil {
		section.Status = domain.StatusFlagged
		return err
	}
	opts := g.options(data)

	raw, err := g.complete(ctx, section, prompt, opts)
	if err != nil {
		section.Status = domain.StatusFlagged
		return err
	}

	parsed, perr := parseOutput(section.Name, raw)
	if perr != nil {
		logger.Debug("Section %s unparseable, reformulating: %v", section.Name, perr)
		data.Previous = raw
		data.ParseError = perr.Error()
		instruction, err := renderPrompt(g.prompts, driven.PromptReformulate, data)
		if err != nil {
			section.Status = domain.StatusFlagged
			section.Raw = raw
			return nil
		}
		raw, err = g.complete(ctx, section, prompt+"\n\n"+instruction, opts)
		if err != nil {
			section.Status = domain.StatusFlagged
			section.Raw = data.Previous
			return err
		}
		parsed, perr = parseOutput(section.Name, raw)
	}
	if perr != nil {
		logger.Warn("Section %s flagged: %v", section.Name, perr)
		section.Status = domain.StatusFlagged
		section.Raw = raw
		return nil
	}

	g.fill(section, parsed, content)
	return nil
}

// fill copies parsed output into the section shape.
func (g *SectionGenerator) fill(section *domain.EPCSection, parsed parsedSection, content *domain.ExtractedContent) {
	switch section.Kind {
	case domain.KindNarrative:
		section.Text = parsed.Text
	case domain.KindMedication:
		section.Medications = parsed.Medications
	case domain.KindDatedList:
		refYear := 0
		if content != nil {
			refYear = rules.ReferenceYear(content.Text)
		}
		for _, line := range parsed.Items {
			section.Events = append(section.Events, g.rules.ParseItem(line, refYear))
		}
	default:
		section.Items = parsed.Items
	}
}

func (g *SectionGenerator) options(data PromptData) driven.CompleteOptions {
	opts := driven.CompleteOptions{
		MaxTokens:   g.cfg.MaxTokens,
		Temperature: g.cfg.Temperature,
		JSON:        true,
	}
	if system, err := renderPrompt(g.prompts, driven.PromptSystem, data); err == nil {
		opts.System = system
	}
	return opts
}

// complete calls the provider, retrying generation errors with backoff.
func (g *SectionGenerator) complete(
	ctx context.Context,
	section *domain.EPCSection,
	prompt string,
	opts driven.CompleteOptions,
) (string, error) {
	var lastErr error
	for attempt := 0; attempt <= g.cfg.MaxRetries; attempt++ {
		if attempt > 0 {
			if err := g.wait(ctx, g.backoff(attempt-1)); err != nil {
				return "", err
			}
		}

		callCtx, cancel := ctx, context.CancelFunc(func() {})
		if g.cfg.SectionTimeout > 0 {
			callCtx, cancel = context.WithTimeout(ctx, g.cfg.SectionTimeout)
		}
		out, err := g.llm.Complete(callCtx, prompt, opts)
		cancel()
		section.Attempts++

		if err == nil {
			return out, nil
		}
		if ctx.Err() != nil {
			return "", ctx.Err()
		}
		lastErr = g.classify(err)
		logger.Warn("Section %s attempt %d failed: %v", section.Name, attempt+1, lastErr)
	}
	return "", lastErr
}

func (g *SectionGenerator) backoff(i int) time.Duration {
	if len(g.cfg.Backoff) == 0 {
		return 0
	}
	if i >= len(g.cfg.Backoff) {
		i = len(g.cfg.Backoff) - 1
	}
	return g.cfg.Backoff[i]
}

// classify makes sure provider failures carry a GenerationError kind.
func (g *SectionGenerator) classify(err error) error {
	if _, ok := domain.AsGenerationError(err); ok {
		return err
	}
	kind := domain.GenerationProviderError
	if errors.Is(err, context.DeadlineExceeded) {
		kind = domain.GenerationTimeout
	}
	return domain.NewGenerationError(kind, g.llm.ModelName(), err)
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

func cloneItems(items []domain.SectionItem) []domain.SectionItem {
	if items == nil {
		return nil
	}
	out := make([]domain.SectionItem, len(items))
	for i, it := range items {
		it.Details = append([]string(nil), it.Details...)
		out[i] = it
	}
	return out
}

// errSectionFailed wraps a section failure with its name.
func errSectionFailed(name domain.SectionName, err error) error {
	return fmt.Errorf("section %s: %w", name, err)
}
