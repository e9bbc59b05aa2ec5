package extractors

import (
	"github.com/custodia-labs/epicrisis/internal/extractors/freetext"
	"github.com/custodia-labs/epicrisis/internal/extractors/keyvalue"
	"github.com/custodia-labs/epicrisis/internal/extractors/scan"
	"github.com/custodia-labs/epicrisis/internal/extractors/structured"
	"github.com/custodia-labs/epicrisis/internal/rules"
)

// NewDefault builds a registry with the built-in extractors and a
// free-text fallback.
func NewDefault(engine *rules.Engine) *Registry {
	scanner := scan.New(engine)
	r := NewRegistry(freetext.New(scanner))
	RegisterDefaults(r, engine, scanner)
	return r
}

// RegisterDefaults registers all built-in extractors with the registry.
func RegisterDefaults(r *Registry, engine *rules.Engine, scanner *scan.Scanner) {
	r.Register(freetext.New(scanner))
	r.Register(structured.New(engine, scanner))
	r.Register(keyvalue.New(scanner))
}
