package mcp

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/custodia-labs/epicrisis/internal/core/domain"
)

const (
	// uriScheme is the custom URI scheme for Epicrisis resources.
	uriScheme = "epicrisis://"

	episodesPrefix = uriScheme + "episodes/"
	latestSuffix   = "/latest"
	historySuffix  = "/history"
)

// versionInfo summarises one stored version in the history resource.
type versionInfo struct {
	EPCID      string `json:"epc_id"`
	Number     int    `json:"number"`
	CreatedAt  string `json:"created_at"`
	Violations int    `json:"violations"`
	Flagged    int    `json:"flagged"`
}

// registerResources registers all resource handlers with the MCP server.
func (s *Server) registerResources() {
	s.server.AddResourceTemplate(&mcp.ResourceTemplate{
		URITemplate: episodesPrefix + "{episodeId}" + latestSuffix,
		Name:        "latest-epicrisis",
		Description: "Latest discharge summary of an episode",
		MIMEType:    "application/json",
	}, s.handleLatestResource)

	s.server.AddResourceTemplate(&mcp.ResourceTemplate{
		URITemplate: episodesPrefix + "{episodeId}" + historySuffix,
		Name:        "epicrisis-history",
		Description: "Every stored discharge summary version of an episode",
		MIMEType:    "application/json",
	}, s.handleHistoryResource)
}

// handleLatestResource returns the latest EPC document of an episode.
func (s *Server) handleLatestResource(
	ctx context.Context,
	req *mcp.ReadResourceRequest,
) (*mcp.ReadResourceResult, error) {
	episodeID := extractEpisodeID(req.Params.URI, latestSuffix)
	if episodeID == "" {
		return nil, mcp.ResourceNotFoundError(req.Params.URI)
	}

	v, err := s.ports.History.Latest(ctx, episodeID)
	if errors.Is(err, domain.ErrNotFound) {
		return nil, mcp.ResourceNotFoundError(req.Params.URI)
	}
	if err != nil {
		return nil, fmt.Errorf("getting latest version: %w", err)
	}

	data, err := json.MarshalIndent(v.Document, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("marshalling document: %w", err)
	}
	return jsonResult(req.Params.URI, data), nil
}

// handleHistoryResource returns a summary of every version of an episode.
func (s *Server) handleHistoryResource(
	ctx context.Context,
	req *mcp.ReadResourceRequest,
) (*mcp.ReadResourceResult, error) {
	episodeID := extractEpisodeID(req.Params.URI, historySuffix)
	if episodeID == "" {
		return nil, mcp.ResourceNotFoundError(req.Params.URI)
	}

	versions, err := s.ports.History.History(ctx, episodeID)
	if err != nil {
		return nil, fmt.Errorf("listing versions: %w", err)
	}

	infos := make([]versionInfo, len(versions))
	for i := range versions {
		report := versions[i].Document.Report
		infos[i] = versionInfo{
			EPCID:      versions[i].ID,
			Number:     versions[i].Number,
			CreatedAt:  versions[i].CreatedAt.UTC().Format(time.RFC3339),
			Violations: report.Len(),
			Flagged:    len(report.Flagged()),
		}
	}

	data, err := json.MarshalIndent(infos, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("marshalling versions: %w", err)
	}
	return jsonResult(req.Params.URI, data), nil
}

func jsonResult(uri string, data []byte) *mcp.ReadResourceResult {
	return &mcp.ReadResourceResult{
		Contents: []*mcp.ResourceContents{{
			URI:      uri,
			MIMEType: "application/json",
			Text:     string(data),
		}},
	}
}

// extractEpisodeID extracts the episode ID from a URI like
// epicrisis://episodes/{episodeId}/latest.
func extractEpisodeID(uri, suffix string) string {
	rest, ok := strings.CutPrefix(uri, episodesPrefix)
	if !ok {
		return ""
	}
	id, ok := strings.CutSuffix(rest, suffix)
	if !ok || strings.Contains(id, "/") {
		return ""
	}
	return id
}
