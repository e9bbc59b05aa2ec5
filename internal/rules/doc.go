// Package rules implements the deterministic rule engine: death detection,
// medication provenance classification and event chronology.
//
// Rule data lives in versioned TOML tables (tables/default.toml is embedded)
// so clinical vocabulary can change without code changes. All matching is
// whole-word over lower-cased, accent-folded text.
//
// Every function here is pure. The post-validator reuses the same engine, so
// generation and validation always agree on the facts.
package rules
