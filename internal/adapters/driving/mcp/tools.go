package mcp

import (
	"context"
	"fmt"
	"time"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/custodia-labs/epicrisis/internal/core/domain"
)

// GenerateInput is the input schema for the generate_epicrisis tool.
type GenerateInput struct {
	EpisodeID  string `json:"episode_id" jsonschema:"ID of an ingested clinical episode"`
	Regenerate bool   `json:"regenerate,omitempty" jsonschema:"reuse the facts of the latest version instead of re-extracting"`
}

// LatestInput is the input schema for the get_latest_epicrisis tool.
type LatestInput struct {
	EpisodeID string `json:"episode_id" jsonschema:"ID of the clinical episode"`
}

// FeedbackInput is the input schema for the submit_feedback tool.
type FeedbackInput struct {
	EPCID          string `json:"epc_id" jsonschema:"ID of the EPC version being rated"`
	Section        string `json:"section" jsonschema:"section name, e.g. evolution or medication"`
	Rating         string `json:"rating" jsonschema:"ok, partial or bad"`
	Text           string `json:"text,omitempty" jsonschema:"reviewer comment, required for partial and bad"`
	Author         string `json:"author,omitempty" jsonschema:"reviewer name"`
	HasOmissions   *bool  `json:"has_omissions,omitempty" jsonschema:"the section omits relevant information (partial and bad only)"`
	HasRepetitions *bool  `json:"has_repetitions,omitempty" jsonschema:"the section repeats information (partial and bad only)"`
	IsConfusing    *bool  `json:"is_confusing,omitempty" jsonschema:"the section is confusing (partial and bad only)"`
}

// SectionOutput is one rendered EPC section.
type SectionOutput struct {
	Name   string   `json:"name"`
	Title  string   `json:"title"`
	Status string   `json:"status"`
	Lines  []string `json:"lines"`
}

// ViolationOutput is one validation finding.
type ViolationOutput struct {
	Section       string `json:"section"`
	Rule          string `json:"rule"`
	OriginalText  string `json:"original_text"`
	CorrectedText string `json:"corrected_text,omitempty"`
	AutoCorrected bool   `json:"auto_corrected"`
}

// EPCOutput is the output schema for tools returning a discharge summary.
type EPCOutput struct {
	EPCID            string            `json:"epc_id"`
	EpisodeID        string            `json:"episode_id"`
	Version          int               `json:"version,omitempty"`
	GeneratedAt      string            `json:"generated_at"`
	ModelVersion     string            `json:"model_version,omitempty"`
	Sections         []SectionOutput   `json:"sections"`
	ValidationReport []ViolationOutput `json:"validation_report"`
	Warnings         []string          `json:"warnings,omitempty"`
}

// FeedbackOutput is the output schema for the submit_feedback tool.
type FeedbackOutput struct {
	FeedbackID string `json:"feedback_id"`
	RecordedAt string `json:"recorded_at"`
}

// registerTools registers all tool handlers with the MCP server.
func (s *Server) registerTools() {
	mcp.AddTool(s.server, &mcp.Tool{
		Name:        "generate_epicrisis",
		Description: "Generate a new discharge summary version for an ingested episode",
	}, s.handleGenerate)

	mcp.AddTool(s.server, &mcp.Tool{
		Name:        "get_latest_epicrisis",
		Description: "Get the latest stored discharge summary for an episode",
	}, s.handleLatest)

	mcp.AddTool(s.server, &mcp.Tool{
		Name:        "submit_feedback",
		Description: "Rate one section of a stored discharge summary",
	}, s.handleFeedback)
}

// handleGenerate runs the pipeline. A run already in flight for the
// episode is reported as a tool error.
func (s *Server) handleGenerate(
	ctx context.Context,
	_ *mcp.CallToolRequest,
	input GenerateInput,
) (*mcp.CallToolResult, EPCOutput, error) {
	if input.EpisodeID == "" {
		return nil, EPCOutput{}, fmt.Errorf("%w: episode_id is required", domain.ErrInvalidInput)
	}

	run := s.ports.Epicrisis.Generate
	if input.Regenerate {
		run = s.ports.Epicrisis.Regenerate
	}
	doc, err := run(ctx, input.EpisodeID)
	if err != nil {
		return nil, EPCOutput{}, err
	}
	return nil, toEPCOutput(doc, 0), nil
}

func (s *Server) handleLatest(
	ctx context.Context,
	_ *mcp.CallToolRequest,
	input LatestInput,
) (*mcp.CallToolResult, EPCOutput, error) {
	if input.EpisodeID == "" {
		return nil, EPCOutput{}, fmt.Errorf("%w: episode_id is required", domain.ErrInvalidInput)
	}

	v, err := s.ports.History.Latest(ctx, input.EpisodeID)
	if err != nil {
		return nil, EPCOutput{}, err
	}
	return nil, toEPCOutput(&v.Document, v.Number), nil
}

func (s *Server) handleFeedback(
	ctx context.Context,
	_ *mcp.CallToolRequest,
	input FeedbackInput,
) (*mcp.CallToolResult, FeedbackOutput, error) {
	entry := domain.FeedbackEntry{
		EPCID:          input.EPCID,
		Section:        domain.SectionName(input.Section),
		Rating:         domain.Rating(input.Rating),
		FreeText:       input.Text,
		Author:         input.Author,
		HasOmissions:   input.HasOmissions,
		HasRepetitions: input.HasRepetitions,
		IsConfusing:    input.IsConfusing,
	}

	saved, err := s.ports.History.RecordFeedback(ctx, entry)
	if err != nil {
		return nil, FeedbackOutput{}, err
	}
	return nil, FeedbackOutput{
		FeedbackID: saved.ID,
		RecordedAt: saved.Timestamp.UTC().Format(time.RFC3339),
	}, nil
}

func toEPCOutput(doc *domain.EPCDocument, version int) EPCOutput {
	out := EPCOutput{
		EPCID:            doc.ID,
		EpisodeID:        doc.EpisodeID,
		Version:          version,
		GeneratedAt:      doc.GeneratedAt.UTC().Format(time.RFC3339),
		ModelVersion:     doc.ModelVersion,
		Sections:         make([]SectionOutput, 0, len(doc.Sections)),
		ValidationReport: make([]ViolationOutput, 0, doc.Report.Len()),
		Warnings:         doc.Run.Warnings,
	}
	for i := range doc.Sections {
		section := &doc.Sections[i]
		lines := section.Lines()
		if lines == nil {
			lines = []string{}
		}
		out.Sections = append(out.Sections, SectionOutput{
			Name:   string(section.Name),
			Title:  section.Name.Title(),
			Status: string(section.Status),
			Lines:  lines,
		})
	}
	for _, v := range doc.Report.Violations {
		vo := ViolationOutput{
			Section:       string(v.Section),
			Rule:          v.Rule,
			OriginalText:  v.OriginalText,
			AutoCorrected: v.AutoCorrected,
		}
		if v.CorrectedText != nil {
			vo.CorrectedText = *v.CorrectedText
		}
		out.ValidationReport = append(out.ValidationReport, vo)
	}
	return out
}
