// Package extractors selects and runs the extraction strategy for a
// clinical episode. Strategies live in sub-packages and register with a
// Registry at startup; unknown source types and strategy failures fall back
// to a free-text scan flagged as degraded.
package extractors
