package driven

import "context"

// Normaliser converts an exported clinical document into plain text that
// the free-text extractor can read.
type Normaliser interface {
	// Format names the document format, e.g. "docx".
	Format() string

	// Extensions returns the lower-case file extensions handled, with the dot.
	Extensions() []string

	// Normalise returns the document's readable text.
	Normalise(ctx context.Context, raw []byte) (string, error)
}

// NormaliserRegistry selects a normaliser by file name.
type NormaliserRegistry interface {
	// Register adds a normaliser. Later registrations win on shared extensions.
	Register(n Normaliser)

	// ForFile returns the normaliser for name. It never returns nil: unknown
	// extensions get the plain text fallback.
	ForFile(name string) Normaliser
}
