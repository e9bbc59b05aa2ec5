package validation

import (
	"fmt"
	"sort"

	"github.com/custodia-labs/epicrisis/internal/core/ports/driven"
	"github.com/custodia-labs/epicrisis/internal/rules"
)

// BuilderFunc creates a check bound to a rule engine.
type BuilderFunc func(engine *rules.Engine) driven.ValidationCheck

// Registry maps check names to their builders.
type Registry struct {
	builders map[string]BuilderFunc
}

// NewRegistry creates a new check registry.
func NewRegistry() *Registry {
	return &Registry{
		builders: make(map[string]BuilderFunc),
	}
}

// Register adds a check builder to the registry.
// Name should match the check's Name() return value.
func (r *Registry) Register(name string, builder BuilderFunc) {
	r.builders[name] = builder
}

// Build creates a check by name.
func (r *Registry) Build(name string, engine *rules.Engine) (driven.ValidationCheck, error) {
	builder, ok := r.builders[name]
	if !ok {
		return nil, fmt.Errorf("unknown check: %s", name)
	}
	return builder(engine), nil
}

// Has returns true if a check with the given name is registered.
func (r *Registry) Has(name string) bool {
	_, ok := r.builders[name]
	return ok
}

// Names returns all registered check names, sorted.
func (r *Registry) Names() []string {
	names := make([]string, 0, len(r.builders))
	for name := range r.builders {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// BuildPipeline builds a pipeline running the named checks in order.
func (r *Registry) BuildPipeline(engine *rules.Engine, names ...string) (*Pipeline, error) {
	p := NewPipeline()
	for _, name := range names {
		c, err := r.Build(name, engine)
		if err != nil {
			return nil, err
		}
		p.Add(c)
	}
	return p, nil
}
