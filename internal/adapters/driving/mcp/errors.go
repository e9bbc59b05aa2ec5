// Package mcp provides an MCP (Model Context Protocol) server adapter for Epicrisis.
// It lets AI assistants generate discharge summaries, read stored versions
// and submit reviewer feedback.
package mcp

import "errors"

var (
	// ErrMissingEpicrisisService is returned when the epicrisis service is not provided.
	ErrMissingEpicrisisService = errors.New("mcp: epicrisis service is required")

	// ErrMissingHistoryService is returned when the history service is not provided.
	ErrMissingHistoryService = errors.New("mcp: history service is required")
)
