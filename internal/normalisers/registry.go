package normalisers

import (
	"path/filepath"
	"strings"
	"sync"

	"github.com/custodia-labs/epicrisis/internal/core/ports/driven"
	"github.com/custodia-labs/epicrisis/internal/normalisers/docx"
	"github.com/custodia-labs/epicrisis/internal/normalisers/html"
	"github.com/custodia-labs/epicrisis/internal/normalisers/plaintext"
)

// Ensure Registry implements the interface.
var _ driven.NormaliserRegistry = (*Registry)(nil)

// Registry maps file extensions to normalisers.
type Registry struct {
	mu       sync.RWMutex
	byExt    map[string]driven.Normaliser
	fallback driven.Normaliser
}

// NewRegistry creates a registry whose fallback is the plain text normaliser.
func NewRegistry() *Registry {
	return &Registry{
		byExt:    make(map[string]driven.Normaliser),
		fallback: plaintext.New(),
	}
}

// NewDefault creates a registry with every built-in normaliser.
func NewDefault() *Registry {
	r := NewRegistry()
	r.Register(plaintext.New())
	r.Register(html.New())
	r.Register(docx.New())
	return r
}

// Register adds n for each of its extensions.
func (r *Registry) Register(n driven.Normaliser) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, ext := range n.Extensions() {
		r.byExt[strings.ToLower(ext)] = n
	}
}

// ForFile returns the normaliser for name's extension, or the fallback.
func (r *Registry) ForFile(name string) driven.Normaliser {
	ext := strings.ToLower(filepath.Ext(name))

	r.mu.RLock()
	defer r.mu.RUnlock()
	if n, ok := r.byExt[ext]; ok {
		return n
	}
	return r.fallback
}

// Formats returns the registered formats keyed by extension.
func (r *Registry) Formats() map[string]string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make(map[string]string, len(r.byExt))
	for ext, n := range r.byExt {
		out[ext] = n.Format()
	}
	return out
}
