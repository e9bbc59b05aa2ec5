// Package domain defines the core clinical entities for epicrisis.
//
// This package is part of the hexagonal architecture's innermost layer.
// It has NO external dependencies and defines the fundamental types:
//
//   - ClinicalEpisode: raw clinical history bytes for one admission
//   - ExtractedContent: usable text and structure pulled from an episode
//   - RuleFacts: deterministic facts the generated narrative must honour
//   - EPCDocument: the section-keyed discharge narrative plus its validation report
//   - EPCVersion: an immutable, numbered snapshot of a document and its inputs
//   - FeedbackEntry and AuditEvent: append-only reviewer history
//
// # Architectural Position
//
// Domain is at the centre of the hexagon. It may only import
// the Go standard library. All other packages depend on domain,
// never the reverse.
//
// # Import Rules
//
//   - Can Import: Standard library only
//   - Cannot Import: Any internal/ package, any external dependency
package domain
