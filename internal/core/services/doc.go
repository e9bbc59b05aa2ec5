// Package services implements the driving port interfaces.
// Services hold the generation pipeline and orchestrate calls to driven
// ports (adapters): episode intake, exemplar retrieval, section drafting,
// post-validation and the append-only version history.
//
// Services depend only on port interfaces; storage, providers and prompt
// templates are injected by cmd/epicrisis.
package services
