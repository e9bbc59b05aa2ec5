package mcp

import (
	"github.com/custodia-labs/epicrisis/internal/core/ports/driving"
)

// Ports aggregates all driving port interfaces required by the MCP server.
// This provides a single injection point for dependency injection.
type Ports struct {
	// Epicrisis runs the generation pipeline.
	Epicrisis driving.EpicrisisService

	// History reads versions and records feedback.
	History driving.HistoryService
}

// Validate ensures all required ports are set.
// Returns an error if any required port is nil.
func (p *Ports) Validate() error {
	if p.Epicrisis == nil {
		return ErrMissingEpicrisisService
	}
	if p.History == nil {
		return ErrMissingHistoryService
	}
	return nil
}
