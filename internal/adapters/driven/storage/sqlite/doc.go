// Package sqlite provides the default persistence adapter on modernc.org/sqlite,
// a pure Go SQLite implementation that requires no CGO.
//
// One database file backs several driven ports through wrapper types:
//
//   - EpisodeStore: ingested clinical episodes
//   - HistoryStore: EPC versions, reviewer feedback and the audit trail
//   - ExemplarIndex: few-shot exemplars with brute-force cosine search
//
// # Schema
//
// The schema is managed through numbered migrations embedded from the
// migrations/ directory. Applied versions are recorded in schema_migrations.
//
// # Data Location
//
// By default, the database is stored at ~/.epicrisis/data/epicrisis.db
//
// # Transactions
//
// A version and its audit event are written in one transaction, as are a
// feedback entry and its event. SQLite runs in WAL mode.
package sqlite
