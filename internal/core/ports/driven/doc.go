// Package driven defines the interfaces that core calls OUT to infrastructure.
//
// These are the "driven" or "secondary" ports in hexagonal architecture.
// Core services depend on these interfaces, and infrastructure adapters
// implement them.
//
// # Required Interfaces
//
// These must be provided for the application to function:
//
//   - EpisodeStore: Clinical episode persistence and lookup
//   - ExtractorRegistry: Selects an extractor for an episode's source type
//   - VersionStore: Append-only document versions, committed atomically
//   - FeedbackStore: Append-only reviewer feedback
//   - EventStore: Append-only audit events
//   - PromptStore: Section prompt templates
//   - ConfigStore: Application configuration
//
// # Optional Interfaces
//
// These can be nil - the application degrades gracefully:
//
//   - LLMService: Text generation. Without it, only rule-rendered sections are produced.
//   - EmbeddingService: Vector embeddings. Without it, exemplar retrieval is skipped.
//   - ExemplarIndex: Exemplar vector search. Without it, exemplar retrieval is skipped.
//   - NormaliserRegistry: Document import. Without it, imported files are stored as-is.
//
// # Import Rules
//
//   - Can Import: domain package only
//   - Cannot Import: Any adapter or extractor package
package driven
